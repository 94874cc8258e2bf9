package db

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"posd/config"
	"posd/interfaces"
	"posd/logs"
	"posd/types"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/dgraph-io/badger/v2"
	lru "github.com/hashicorp/golang-lru"
)

var _ interfaces.BlockStore = (*Manager)(nil)

// Manager 封装 BadgerDB 的区块索引存储
type Manager struct {
	Db     *badger.DB
	mu     sync.RWMutex
	cache  *lru.Cache // blockHash → *types.BlockRef
	Logger logs.Logger
	cfg    config.DatabaseConfig
}

// NewManager 按配置打开数据库
func NewManager(cfg config.DatabaseConfig, logger logs.Logger) (*Manager, error) {
	if logger == nil {
		logger = logs.NewNodeLogger("db")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		// badger v2 不自动创建父目录，需要手动创建
		if err := os.MkdirAll(cfg.Path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create db dir: %w", err)
		}
		opts = badger.DefaultOptions(cfg.Path)
		if cfg.ValueLogFileSize > 0 {
			opts.ValueLogFileSize = cfg.ValueLogFileSize
		}
	}
	opts = opts.WithLogger(nil).WithSyncWrites(cfg.SyncWrites)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	size := cfg.RecordCacheSize
	if size <= 0 {
		size = 4096
	}
	cache, err := lru.New(size)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create record cache: %w", err)
	}

	return &Manager{
		Db:     db,
		cache:  cache,
		Logger: logger,
		cfg:    cfg,
	}, nil
}

// Close 关闭数据库
func (manager *Manager) Close() error {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	if manager.Db == nil {
		return nil
	}
	err := manager.Db.Close()
	manager.Db = nil
	return err
}

func putRecord(txn *badger.Txn, ref *types.BlockRef) error {
	hash := ref.Hash.String()
	if err := txn.Set([]byte(KeyBlockIndex(hash)), encodeBlockRef(ref)); err != nil {
		return err
	}
	return txn.Set([]byte(KeyHeight(ref.Height)), []byte(hash))
}

// PutBlock 写入一条区块索引记录，并在更高时推进 tip
func (manager *Manager) PutBlock(ref *types.BlockRef) error {
	manager.mu.Lock()
	defer manager.mu.Unlock()

	err := manager.Db.Update(func(txn *badger.Txn) error {
		if err := putRecord(txn, ref); err != nil {
			return err
		}
		tip, ok, err := readTip(txn)
		if err != nil {
			return err
		}
		if !ok || ref.Height > tip {
			return txn.Set([]byte(KeyTip()), []byte(strconv.FormatInt(int64(ref.Height), 10)))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to put block %s: %w", ref.Hash, err)
	}
	cp := *ref
	manager.cache.Add(ref.Hash, &cp)
	return nil
}

// GetBlock 按哈希读取，先查缓存
func (manager *Manager) GetBlock(hash chainhash.Hash) (*types.BlockRef, bool, error) {
	if v, ok := manager.cache.Get(hash); ok {
		return v.(*types.BlockRef), true, nil
	}

	manager.mu.RLock()
	defer manager.mu.RUnlock()

	var ref *types.BlockRef
	err := manager.Db.View(func(txn *badger.Txn) error {
		r, err := readRecord(txn, hash.String())
		ref = r
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read block %s: %w", hash, err)
	}
	manager.cache.Add(hash, ref)
	return ref, true, nil
}

// GetBlockByHeight 按高度读取主链区块
func (manager *Manager) GetBlockByHeight(height int32) (*types.BlockRef, bool, error) {
	var hash string
	manager.mu.RLock()
	err := manager.Db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(KeyHeight(height)))
		if err != nil {
			return err
		}
		v, err := item.ValueCopy(nil)
		hash = string(v)
		return err
	})
	manager.mu.RUnlock()
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read height %d: %w", height, err)
	}

	h, err := chainhash.NewHashFromStr(hash)
	if err != nil {
		return nil, false, fmt.Errorf("bad hash %q at height %d: %w", hash, height, err)
	}
	return manager.GetBlock(*h)
}

// TipHeight 最高区块高度，库为空时 ok=false
func (manager *Manager) TipHeight() (int32, bool, error) {
	manager.mu.RLock()
	defer manager.mu.RUnlock()

	var (
		tip int32
		ok  bool
	)
	err := manager.Db.View(func(txn *badger.Txn) error {
		var err error
		tip, ok, err = readTip(txn)
		return err
	})
	if err != nil {
		return 0, false, fmt.Errorf("failed to read tip: %w", err)
	}
	return tip, ok, nil
}

func readRecord(txn *badger.Txn, hash string) (*types.BlockRef, error) {
	item, err := txn.Get([]byte(KeyBlockIndex(hash)))
	if err != nil {
		return nil, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	return decodeBlockRef(val)
}

func readTip(txn *badger.Txn) (int32, bool, error) {
	item, err := txn.Get([]byte(KeyTip()))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return 0, false, err
	}
	h, err := strconv.ParseInt(string(val), 10, 32)
	if err != nil {
		return 0, false, fmt.Errorf("bad tip value %q: %w", val, err)
	}
	return int32(h), true, nil
}
