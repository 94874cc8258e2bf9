package interfaces

import (
	"posd/config"
	"posd/types"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// BlockIndexView 区块索引的只读快照
// 一次共识调用期间，实现方必须保证看到的是同一条链、同一个 tip。
type BlockIndexView interface {
	// Params 本网络的共识参数
	Params() *config.Params

	// LookupBlock 按哈希查找，找不到或超出快照 tip 返回 false
	LookupBlock(hash chainhash.Hash) (*types.BlockRef, bool)

	// BlockAtHeight 主链上指定高度的区块（向前遍历用）
	BlockAtHeight(height int32) (*types.BlockRef, bool)

	// Tip 快照的最高区块
	Tip() *types.BlockRef
}

// CoinView 可选的 UTXO 查询，用于校验区块头声明的质押币
type CoinView interface {
	LookupCoin(outpoint wire.OutPoint) (blockHash chainhash.Hash, amount btcutil.Amount, ok bool)
}

// BlockStore 区块索引持久化（外部写路径）
type BlockStore interface {
	PutBlock(ref *types.BlockRef) error
	GetBlock(hash chainhash.Hash) (*types.BlockRef, bool, error)
	GetBlockByHeight(height int32) (*types.BlockRef, bool, error)
	TipHeight() (int32, bool, error)
}
