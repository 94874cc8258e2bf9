package consensus

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/holiman/uint256"
)

// ExpandTarget compact 编码展开为 256 位目标值（Bitcoin SetCompact 语义，超出 256 位截断）
//
// 编码格式：高 8 位是字节长度，低 23 位是尾数，第 24 位是符号位。
func ExpandTarget(bits uint32) (target *uint256.Int, negative, overflow bool) {
	size := bits >> 24
	word := bits & 0x007fffff

	target = new(uint256.Int)
	if size <= 3 {
		word >>= 8 * (3 - size)
		target.SetUint64(uint64(word))
	} else {
		target.SetUint64(uint64(word))
		if shift := 8 * (size - 3); shift < 256 {
			target.Lsh(target, uint(shift))
		} else {
			target.Clear()
		}
	}

	negative = word != 0 && bits&0x00800000 != 0
	overflow = word != 0 && (size > 34 ||
		(word > 0xff && size > 33) ||
		(word > 0xffff && size > 32))
	return target, negative, overflow
}

// stakeTarget 展开并检查 stake 目标，不能比 PoW 上限更宽
// 比单纯 SetCompact 更严：负数、溢出、零和超过 PoW 上限的 bits 都按无效目标拒绝，
// 只拦这几种，合法范围内的 bits 与 SetCompact 结果一致。
func stakeTarget(bits, powLimitBits uint32) (*uint256.Int, error) {
	target, negative, overflow := ExpandTarget(bits)
	if negative || overflow || target.IsZero() {
		return nil, fmt.Errorf("%w: bits %08x", ErrInvalidTarget, bits)
	}
	limit, _, _ := ExpandTarget(powLimitBits)
	if target.Gt(limit) {
		return nil, fmt.Errorf("%w: bits %08x above pow limit %08x", ErrInvalidTarget, bits, powLimitBits)
	}
	return target, nil
}

// hashToUint256 哈希按小端解释为 256 位整数
func hashToUint256(hash *chainhash.Hash) *uint256.Int {
	var be [chainhash.HashSize]byte
	for i := 0; i < chainhash.HashSize; i++ {
		be[i] = hash[chainhash.HashSize-1-i]
	}
	return new(uint256.Int).SetBytes32(be[:])
}

// StakeTargetHit 币权重加权后的目标判定：hash < (amount/100) * target
// 乘法按 256 位回绕，溢出不报错。
func StakeTargetHit(hash *chainhash.Hash, amount btcutil.Amount, target *uint256.Int) bool {
	weight := uint64(amount) / 100
	weighted := new(uint256.Int).Mul(uint256.NewInt(weight), target)
	return hashToUint256(hash).Lt(weighted)
}
