package consensus

import (
	"encoding/binary"

	"posd/config"
	"posd/types"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// 区块索引标志位，只参与 checksum
const (
	flagProofOfStake      uint32 = 1 << 0
	flagStakeEntropy      uint32 = 1 << 1
	flagGeneratedModifier uint32 = 1 << 2
)

// BlockFlags 区块索引记录的标志位
func BlockFlags(params *config.Params, ref *types.BlockRef) uint32 {
	var flags uint32
	if params.IsProofOfStake(ref.Height) {
		flags |= flagProofOfStake
	}
	if StakeEntropyBit(params, ref) != 0 {
		flags |= flagStakeEntropy
	}
	if ref.GeneratedModifier {
		flags |= flagGeneratedModifier
	}
	return flags
}

// StakeModifierChecksum 诊断用的 32 位校验和
// hash(prevChecksum | flags | proofOfStakeHash | modifier) 的最高 32 位，不做检查点校验。
func StakeModifierChecksum(params *config.Params, prevChecksum uint32, ref *types.BlockRef) uint32 {
	var buf [4 + 4 + chainhash.HashSize + 8]byte
	binary.LittleEndian.PutUint32(buf[0:], prevChecksum)
	binary.LittleEndian.PutUint32(buf[4:], BlockFlags(params, ref))
	copy(buf[8:], ref.ProofOfStakeHash[:])
	binary.LittleEndian.PutUint64(buf[8+chainhash.HashSize:], ref.StakeModifier)

	h := chainhash.DoubleHashH(buf[:])
	return binary.LittleEndian.Uint32(h[chainhash.HashSize-4:])
}
