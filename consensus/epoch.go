package consensus

import (
	"encoding/binary"

	"posd/config"
	"posd/types"
)

// Epoch kernel 协议版本，只由候选时间戳决定，从不持久化
type Epoch uint8

const (
	EpochLegacy Epoch = iota
	Epoch2
)

func (e Epoch) String() string {
	switch e {
	case EpochLegacy:
		return "legacy"
	case Epoch2:
		return "epoch2"
	}
	return "unknown"
}

// EpochAt 时间戳 t 所属的协议版本
func EpochAt(params *config.Params, t int64) Epoch {
	if params.IsEpoch2(t) {
		return Epoch2
	}
	return EpochLegacy
}

// StakeEntropyBit 选中区块贡献给 modifier 的一位
// Legacy 取哈希低 64 位截断的最低位，Epoch2 取整个 256 位小端整数的最低位。
// 两种取法数值上相同，这里保留两条路径以对应各自的持久化格式。
func StakeEntropyBit(params *config.Params, ref *types.BlockRef) uint64 {
	if EpochAt(params, ref.Time) == Epoch2 {
		return uint64(ref.Hash[0] & 1)
	}
	return binary.LittleEndian.Uint64(ref.Hash[:8]) & 1
}
