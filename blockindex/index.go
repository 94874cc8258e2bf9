package blockindex

import (
	"fmt"
	"sync"

	"posd/config"
	"posd/interfaces"
	"posd/types"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// ============================================
// 内存区块索引（按高度寻址的 arena）
// ============================================

// Index 只追加的主链索引，记录一旦写入不再修改
type Index struct {
	mu     sync.RWMutex
	params *config.Params
	blocks []*types.BlockRef
	byHash map[chainhash.Hash]int32
}

var _ interfaces.BlockIndexView = (*Index)(nil)
var _ interfaces.BlockIndexView = (*Snapshot)(nil)

// New 创建空索引
func New(params *config.Params) *Index {
	return &Index{
		params: params,
		byHash: make(map[chainhash.Hash]int32),
	}
}

// Append 在 tip 之后追加一个区块记录
func (idx *Index) Append(ref *types.BlockRef) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.checkAppend(ref); err != nil {
		return err
	}
	cp := *ref
	idx.blocks = append(idx.blocks, &cp)
	idx.byHash[cp.Hash] = cp.Height
	return nil
}

// CheckAppend 检查 ref 能否追加，不修改索引
// 写路径在落盘前先调用它，保证落盘之后的 Append 不会失败。
func (idx *Index) CheckAppend(ref *types.BlockRef) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.checkAppend(ref)
}

func (idx *Index) checkAppend(ref *types.BlockRef) error {
	next := int32(len(idx.blocks))
	if ref.Height != next {
		return fmt.Errorf("append height %d, expected %d", ref.Height, next)
	}
	if next > 0 {
		tip := idx.blocks[next-1]
		if ref.PrevHash != tip.Hash {
			return fmt.Errorf("block %s does not extend tip %s", ref.Hash, tip.Hash)
		}
	}
	if h, dup := idx.byHash[ref.Hash]; dup {
		return fmt.Errorf("duplicate block %s at height %d", ref.Hash, h)
	}
	return nil
}

// Params 共识参数
func (idx *Index) Params() *config.Params {
	return idx.params
}

// Height 当前 tip 高度，空索引返回 -1
func (idx *Index) Height() int32 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return int32(len(idx.blocks)) - 1
}

// Tip 当前最高区块，空索引返回 nil
func (idx *Index) Tip() *types.BlockRef {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if len(idx.blocks) == 0 {
		return nil
	}
	return idx.blocks[len(idx.blocks)-1]
}

// LookupBlock 按哈希查找
func (idx *Index) LookupBlock(hash chainhash.Hash) (*types.BlockRef, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	h, ok := idx.byHash[hash]
	if !ok {
		return nil, false
	}
	return idx.blocks[h], true
}

// BlockAtHeight 按高度查找
func (idx *Index) BlockAtHeight(height int32) (*types.BlockRef, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if height < 0 || int(height) >= len(idx.blocks) {
		return nil, false
	}
	return idx.blocks[height], true
}

// Snapshot 以当前 tip 为界的一致性快照
func (idx *Index) Snapshot() *Snapshot {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return &Snapshot{idx: idx, blocks: idx.blocks[:len(idx.blocks):len(idx.blocks)]}
}

// SnapshotAt 以指定高度为 tip 的快照
func (idx *Index) SnapshotAt(height int32) (*Snapshot, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if height < 0 || int(height) >= len(idx.blocks) {
		return nil, fmt.Errorf("snapshot height %d out of range [0, %d)", height, len(idx.blocks))
	}
	n := int(height) + 1
	return &Snapshot{idx: idx, blocks: idx.blocks[:n:n]}, nil
}

// Snapshot 不随 Index 后续追加而变化的只读视图
// 质押线程和验证线程可以各持一份，互不影响。
type Snapshot struct {
	idx    *Index
	blocks []*types.BlockRef
}

func (s *Snapshot) Params() *config.Params {
	return s.idx.params
}

func (s *Snapshot) Tip() *types.BlockRef {
	if len(s.blocks) == 0 {
		return nil
	}
	return s.blocks[len(s.blocks)-1]
}

func (s *Snapshot) LookupBlock(hash chainhash.Hash) (*types.BlockRef, bool) {
	s.idx.mu.RLock()
	h, ok := s.idx.byHash[hash]
	s.idx.mu.RUnlock()
	if !ok || int(h) >= len(s.blocks) {
		return nil, false
	}
	return s.blocks[h], true
}

func (s *Snapshot) BlockAtHeight(height int32) (*types.BlockRef, bool) {
	if height < 0 || int(height) >= len(s.blocks) {
		return nil, false
	}
	return s.blocks[height], true
}
