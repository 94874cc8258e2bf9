package consensus

import (
	"encoding/binary"
	"fmt"
	"sort"

	"posd/config"
	"posd/interfaces"
	"posd/logs"
	"posd/types"

	"github.com/RoaringBitmap/roaring"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/holiman/uint256"
)

const selectionRounds = 64

// SelectionIntervalSection 第 i 轮选块区间长度（秒），越靠后越长
func SelectionIntervalSection(params *config.Params, section int) int64 {
	if section < 0 || section >= selectionRounds {
		assertf("selection section %d out of range", section)
	}
	return params.ModifierInterval * 63 /
		(63 + (63-int64(section))*(params.ModifierIntervalRatio-1))
}

// SelectionInterval 64 个区间之和
func SelectionInterval(params *config.Params) int64 {
	var total int64
	for i := 0; i < selectionRounds; i++ {
		total += SelectionIntervalSection(params, i)
	}
	return total
}

// Candidate 参与选块的区块（时间戳 + 哈希）
type Candidate struct {
	Time int64
	Hash chainhash.Hash
}

// SortCandidates 按时间升序，时间相同按哈希（小端 256 位整数）升序
func SortCandidates(cands []Candidate) {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].Time != cands[j].Time {
			return cands[i].Time < cands[j].Time
		}
		return hashLess(&cands[i].Hash, &cands[j].Hash)
	})
}

// hashLess 从最高字节（末尾）开始比较
func hashLess(a, b *chainhash.Hash) bool {
	for k := chainhash.HashSize - 1; k >= 0; k-- {
		if a[k] != b[k] {
			return a[k] < b[k]
		}
	}
	return false
}

// selectionVersion 候选集使用的选块协议
type selectionVersion uint8

const (
	selectionLegacy selectionVersion = iota
	selectionV2
	selectionV5
)

func versionFor(params *config.Params, first *types.BlockRef) selectionVersion {
	if first.Height < params.ModifierUpgradeHeight {
		return selectionLegacy
	}
	if params.IsEpoch2(first.Time) {
		return selectionV5
	}
	return selectionV2
}

// selectionHash DoubleSHA256(proofHash | LE64(prevModifier))，PoS 区块再右移 32 位
func selectionHash(proof *chainhash.Hash, prevModifier uint64, pos bool) *uint256.Int {
	var buf [chainhash.HashSize + 8]byte
	copy(buf[:], proof[:])
	binary.LittleEndian.PutUint64(buf[chainhash.HashSize:], prevModifier)
	h := chainhash.DoubleHashH(buf[:])

	v := hashToUint256(&h)
	if pos {
		// PoS 区块在比较中总是占优
		v.Rsh(v, 32)
	}
	return v
}

// SelectBlockFromCandidates 从按 SortCandidates 排好序的候选集中选出一个区块
//
// selected 里的高度会被跳过；已选出一个之后，遇到时间超过 stop 的候选即停止。
// 候选集为空时返回 nil。
func SelectBlockFromCandidates(view interfaces.BlockIndexView, cands []Candidate,
	selected *roaring.Bitmap, stop int64, prevModifier uint64) (*types.BlockRef, error) {

	if len(cands) == 0 {
		return nil, nil
	}
	params := view.Params()

	first, ok := view.LookupBlock(cands[0].Hash)
	if !ok {
		return nil, fmt.Errorf("%w: candidate block %s", ErrChainLookup, cands[0].Hash)
	}
	version := versionFor(params, first)

	var (
		best   *uint256.Int
		picked *types.BlockRef
	)
	for i := range cands {
		ref, ok := view.LookupBlock(cands[i].Hash)
		if !ok {
			return nil, fmt.Errorf("%w: candidate block %s", ErrChainLookup, cands[i].Hash)
		}
		if picked != nil && ref.Time > stop {
			break
		}
		if selected.Contains(uint32(ref.Height)) {
			continue
		}

		pos := params.IsProofOfStake(ref.Height)
		var proof chainhash.Hash
		switch version {
		case selectionV5:
			proof = ref.ProofOfStakeHash
		case selectionV2:
			proof = ref.Hash
		default:
			if !pos {
				proof = ref.Hash
			}
		}

		h := selectionHash(&proof, prevModifier, pos)
		if picked == nil || h.Lt(best) {
			best = h
			picked = ref
		}
	}

	if picked != nil {
		logs.Trace("SelectBlockFromCandidates: height=%d selection hash=%s", picked.Height, best.Hex())
	}
	return picked, nil
}
