package consensus

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

const (
	legacyKernelSize = 8 + 4 + 4 + chainhash.HashSize + 4
	epoch2KernelSize = 8 + 4 + 4 + 4 + 4
)

// KernelHash 计算 kernel 哈希（双 SHA256），字段全部小端
//
//	Legacy: modifier(8) | blockFromTime(4) | index(4) | txid(32) | spendTime(4)
//	Epoch2: modifier(8) | blockFromTime(4) | height(4) | index(4) | spendTime(4)
//
// height 是正在出的区块高度，Epoch2 用它代替 txid 做域分离。
func KernelHash(epoch Epoch, modifier uint64, blockFromTime int64, height int32,
	outpoint wire.OutPoint, spendTime int64) chainhash.Hash {

	if epoch == Epoch2 {
		var buf [epoch2KernelSize]byte
		binary.LittleEndian.PutUint64(buf[0:], modifier)
		binary.LittleEndian.PutUint32(buf[8:], uint32(blockFromTime))
		binary.LittleEndian.PutUint32(buf[12:], uint32(height))
		binary.LittleEndian.PutUint32(buf[16:], outpoint.Index)
		binary.LittleEndian.PutUint32(buf[20:], uint32(spendTime))
		return chainhash.DoubleHashH(buf[:])
	}

	var buf [legacyKernelSize]byte
	binary.LittleEndian.PutUint64(buf[0:], modifier)
	binary.LittleEndian.PutUint32(buf[8:], uint32(blockFromTime))
	binary.LittleEndian.PutUint32(buf[12:], outpoint.Index)
	copy(buf[16:], outpoint.Hash[:])
	binary.LittleEndian.PutUint32(buf[48:], uint32(spendTime))
	return chainhash.DoubleHashH(buf[:])
}
