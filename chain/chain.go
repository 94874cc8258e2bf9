package chain

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"posd/blockindex"
	"posd/config"
	"posd/consensus"
	"posd/interfaces"
	"posd/logs"
	"posd/stats"
	"posd/types"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// ErrRejected 区块被拒绝，具体原因包在里面
var ErrRejected = errors.New("block rejected")

// Chain 区块索引的写入路径
// 验证在快照上进行，通过后才提交到索引和存储；写入串行。
type Chain struct {
	mu     sync.Mutex
	params *config.Params
	index  *blockindex.Index
	store  interfaces.BlockStore
	coins  interfaces.CoinView
	stats  *stats.Stats
	Logger logs.Logger
}

// New 创建空链；store / st 可以为 nil
func New(params *config.Params, store interfaces.BlockStore, st *stats.Stats, logger logs.Logger) *Chain {
	if logger == nil {
		logger = logs.NewNodeLogger("chain")
	}
	return &Chain{
		params: params,
		index:  blockindex.New(params),
		store:  store,
		stats:  st,
		Logger: logger,
	}
}

// SetCoinView 设置 UTXO 视图，之后接收 PoS 区块时核对质押币
func (c *Chain) SetCoinView(coins interfaces.CoinView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.coins = coins
}

// Index 内存索引（只读使用）
func (c *Chain) Index() *blockindex.Index {
	return c.index
}

// Params 共识参数
func (c *Chain) Params() *config.Params {
	return c.params
}

// Load 从存储重建内存索引
func (c *Chain) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store == nil {
		return nil
	}
	tip, ok, err := c.store.TipHeight()
	if err != nil {
		return fmt.Errorf("failed to load tip: %w", err)
	}
	if !ok {
		return nil
	}
	for h := c.index.Height() + 1; h <= tip; h++ {
		ref, ok, err := c.store.GetBlockByHeight(h)
		if err != nil {
			return fmt.Errorf("failed to load block at height %d: %w", h, err)
		}
		if !ok {
			return fmt.Errorf("block index record missing at height %d", h)
		}
		if err := c.index.Append(ref); err != nil {
			return fmt.Errorf("failed to rebuild index at height %d: %w", h, err)
		}
	}
	c.Logger.Info("loaded %d block index records, tip %d", tip+1, tip)
	return nil
}

// AcceptBlock 验证区块头并追加到 tip 之后，返回写入的索引记录
func (c *Chain) AcceptBlock(header *types.BlockHeader) (*types.BlockRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.index.Snapshot()
	prev := snap.Tip()

	height := int32(0)
	if prev != nil {
		if header.PrevHash != prev.Hash {
			return nil, c.reject(header, stats.ReasonStructure,
				fmt.Errorf("prev %s does not match tip %s", header.PrevHash, prev.Hash))
		}
		height = prev.Height + 1
	} else if header.PrevHash != (chainhash.Hash{}) {
		return nil, c.reject(header, stats.ReasonStructure,
			fmt.Errorf("genesis block with non-zero prev %s", header.PrevHash))
	}

	ref := &types.BlockRef{
		Height:   height,
		Time:     header.Time,
		Hash:     header.Hash,
		PrevHash: header.PrevHash,
		Bits:     header.Bits,
	}
	// 结构检查全部在写存储之前完成，拒块不留下任何记录
	if err := c.index.CheckAppend(ref); err != nil {
		return nil, c.reject(header, stats.ReasonStructure, err)
	}

	if c.params.IsProofOfStake(height) {
		start := time.Now()
		proofHash, err := consensus.NewProofChecker(snap).WithCoinView(c.coins).CheckProofOfStake(header, prev)
		if c.stats != nil {
			c.stats.ObserveCheck(time.Since(start))
		}
		if err != nil {
			return nil, c.reject(header, rejectReason(err), err)
		}
		ref.ProofOfStakeHash = proofHash
	}

	mod, generated, err := consensus.ComputeNextStakeModifier(snap, prev)
	if err != nil {
		return nil, c.reject(header, rejectReason(err), err)
	}
	ref.StakeModifier = mod
	ref.GeneratedModifier = generated
	ref.Flags = consensus.BlockFlags(c.params, ref)

	var prevChecksum uint32
	if prev != nil {
		prevChecksum = prev.StakeModifierChecksum
	}
	ref.StakeModifierChecksum = consensus.StakeModifierChecksum(c.params, prevChecksum, ref)

	if c.store != nil {
		if err := c.store.PutBlock(ref); err != nil {
			return nil, c.reject(header, stats.ReasonStorage, err)
		}
	}
	if err := c.index.Append(ref); err != nil {
		// CheckAppend 已在同一把锁下通过，走到这里说明索引和存储不一致
		c.Logger.Error("block %s stored but not indexed: %v", header.Hash, err)
		return nil, c.reject(header, stats.ReasonStructure, err)
	}

	if c.stats != nil {
		c.stats.RecordAccepted(generated)
	}
	if generated {
		c.Logger.Debug("block %d %s generated stake modifier 0x%016x checksum %08x",
			height, header.Hash, mod, ref.StakeModifierChecksum)
	}
	return ref, nil
}

func (c *Chain) reject(header *types.BlockHeader, reason string, err error) error {
	if c.stats != nil {
		c.stats.RecordRejected(reason)
	}
	c.Logger.Warn("reject block %s (%s): %v", header.Hash, reason, err)
	return fmt.Errorf("%w: %s: %w", ErrRejected, reason, err)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, consensus.ErrTargetMiss):
		return stats.ReasonTargetMiss
	case errors.Is(err, consensus.ErrTimestampViolation):
		return stats.ReasonTimestamp
	case errors.Is(err, consensus.ErrStaleModifier):
		return stats.ReasonStale
	case errors.Is(err, consensus.ErrChainLookup):
		return stats.ReasonChainLookup
	case errors.Is(err, consensus.ErrInvalidTarget):
		return stats.ReasonBadTarget
	}
	return stats.ReasonStructure
}

// StakeRequest 质押循环的一次尝试
type StakeRequest struct {
	CoinBlockHash chainhash.Hash
	Outpoint      wire.OutPoint
	Amount        btcutil.Amount
	Bits          uint32

	// 当前时间；在 [Time, Time+HashDrift] 内搜索
	Time int64
}

// Stake 在当前 tip 上为下一个块搜索 kernel
// 窗口内没有命中返回 ok=false，由调用方在 tip 变化后重试。
func (c *Chain) Stake(req *StakeRequest) (*consensus.StakeProof, bool, error) {
	snap := c.index.Snapshot()
	prev := snap.Tip()
	if prev == nil {
		return nil, false, fmt.Errorf("%w: empty chain", consensus.ErrChainLookup)
	}
	if !c.params.IsProofOfStake(prev.Height + 1) {
		return nil, false, fmt.Errorf("height %d is still proof-of-work", prev.Height+1)
	}
	coin, ok := snap.LookupBlock(req.CoinBlockHash)
	if !ok {
		return nil, false, fmt.Errorf("%w: coin block %s", consensus.ErrChainLookup, req.CoinBlockHash)
	}

	proof, hit, err := consensus.NewProofChecker(snap).CheckStakeKernelHash(prev, &consensus.KernelRequest{
		Bits:          req.Bits,
		CoinBlockHash: coin.Hash,
		CoinBlockTime: coin.Time,
		Amount:        req.Amount,
		Outpoint:      req.Outpoint,
		SpendTime:     req.Time,
		HashDrift:     c.params.HashDrift,
	})
	if err != nil {
		return nil, false, err
	}
	if c.stats != nil {
		c.stats.RecordStakeSearch(hit)
	}
	if !hit {
		c.Logger.Debug("no stake this round for %s at tip %d", req.Outpoint, prev.Height)
	}
	return proof, hit, nil
}
