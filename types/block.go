package types

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// BlockRef 区块索引记录（只读视图里的一项）
// 由外部写入路径在区块连接时填好 StakeModifier / GeneratedModifier，
// 之后不再修改。
type BlockRef struct {
	Height   int32
	Time     int64
	Hash     chainhash.Hash
	PrevHash chainhash.Hash
	Bits     uint32

	StakeModifier     uint64
	GeneratedModifier bool

	// PoS 区块的 kernel 证明哈希，PoW 区块为全零
	ProofOfStakeHash chainhash.Hash

	// 诊断用，不参与共识
	StakeModifierChecksum uint32

	// 持久化的索引标志位（PoS / 熵位 / 已生成），写入路径填写
	Flags uint32
}

// IsGenesis 是否创世块
func (b *BlockRef) IsGenesis() bool {
	return b.Height == 0
}

// BlockHeader 待验证区块头（只包含 stake 相关字段）
type BlockHeader struct {
	Hash     chainhash.Hash
	PrevHash chainhash.Hash
	Time     int64
	Bits     uint32

	// 以下字段只对 PoS 区块有意义
	StakeBlockHash chainhash.Hash // 质押币所在区块
	StakeOutpoint  wire.OutPoint
	StakeAmount    btcutil.Amount
}
