package consensus

import (
	"fmt"

	"posd/interfaces"
	"posd/logs"
	"posd/types"

	"github.com/RoaringBitmap/roaring"
)

// LastStakeModifier 从 ref 往回找最近一个生成了 modifier 的区块
func LastStakeModifier(view interfaces.BlockIndexView, ref *types.BlockRef) (modifier uint64, modifierTime int64, err error) {
	if ref == nil {
		return 0, 0, fmt.Errorf("%w: nil block", ErrStaleModifier)
	}
	for !ref.GeneratedModifier && !ref.IsGenesis() {
		parent, ok := view.LookupBlock(ref.PrevHash)
		if !ok {
			return 0, 0, fmt.Errorf("%w: parent %s of block %d", ErrChainLookup, ref.PrevHash, ref.Height)
		}
		ref = parent
	}
	if !ref.GeneratedModifier {
		return 0, 0, fmt.Errorf("%w: no generation at genesis block", ErrStaleModifier)
	}
	return ref.StakeModifier, ref.Time, nil
}

// modifierIntervalElapsed modifier 时间和 tip 时间是否已落在不同的时间桶
func modifierIntervalElapsed(interval, modifierTime, tipTime int64) bool {
	return modifierTime/interval < tipTime/interval
}

// ComputeNextStakeModifier 计算接在 prev 之后的区块的 stake modifier
//
// 同一个时间桶内只生成一次，其余区块原样继承（generated=false）。
// 生成时从最近的一段历史中选出至多 64 个区块，每个贡献一位熵。
func ComputeNextStakeModifier(view interfaces.BlockIndexView, prev *types.BlockRef) (uint64, bool, error) {
	params := view.Params()
	if prev == nil {
		return 0, true, nil // 创世块
	}
	if prev.IsGenesis() {
		return params.GenesisStakeModifier, true, nil
	}

	modifier, modifierTime, err := LastStakeModifier(view, prev)
	if err != nil {
		return 0, false, fmt.Errorf("failed to get last stake modifier: %w", err)
	}
	logs.Trace("ComputeNextStakeModifier: prev modifier=0x%016x time=%d", modifier, modifierTime)

	if !modifierIntervalElapsed(params.ModifierInterval, modifierTime, prev.Time) {
		return modifier, false, nil
	}

	selectionStart := (prev.Time/params.ModifierInterval)*params.ModifierInterval - SelectionInterval(params)
	cands, err := selectionCandidates(view, prev, selectionStart)
	if err != nil {
		return 0, false, err
	}

	rounds := len(cands)
	if rounds > selectionRounds {
		rounds = selectionRounds
	}

	var (
		next     uint64
		stop     = selectionStart
		selected = roaring.New()
	)
	for round := 0; round < rounds; round++ {
		stop += SelectionIntervalSection(params, round)

		ref, err := SelectBlockFromCandidates(view, cands, selected, stop, modifier)
		if err != nil {
			return 0, false, fmt.Errorf("failed to select block in round %d: %w", round, err)
		}
		if ref == nil {
			assertf("round %d selected nothing from %d candidates", round, len(cands))
		}

		bit := StakeEntropyBit(params, ref)
		next |= bit << uint(round)
		selected.Add(uint32(ref.Height))
		logs.Trace("ComputeNextStakeModifier: round=%d stop=%d height=%d bit=%d", round, stop, ref.Height, bit)
	}

	logs.Debug("ComputeNextStakeModifier: new modifier=0x%016x time=%d height=%d",
		next, prev.Time, prev.Height+1)
	return next, true, nil
}

// selectionCandidates prev 及其祖先中时间不早于 start 的区块，已排序
func selectionCandidates(view interfaces.BlockIndexView, prev *types.BlockRef, start int64) ([]Candidate, error) {
	cands := make([]Candidate, 0, selectionRounds)
	for ref := prev; ref.Time >= start; {
		cands = append(cands, Candidate{Time: ref.Time, Hash: ref.Hash})
		if ref.IsGenesis() {
			break
		}
		parent, ok := view.LookupBlock(ref.PrevHash)
		if !ok {
			return nil, fmt.Errorf("%w: parent %s of block %d", ErrChainLookup, ref.PrevHash, ref.Height)
		}
		ref = parent
	}
	SortCandidates(cands)
	return cands, nil
}
