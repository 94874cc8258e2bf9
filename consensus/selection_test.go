package consensus

import (
	"testing"

	"posd/blockindex"
	"posd/config"
	"posd/types"

	"github.com/RoaringBitmap/roaring"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectionIntervalPartition(t *testing.T) {
	for _, tc := range []struct {
		interval int64
		total    int64
	}{
		{60, 2087},
		{20, 673},
		{10, 321},
	} {
		p := &config.Params{ModifierInterval: tc.interval, ModifierIntervalRatio: 3}
		var sum int64
		for i := 0; i < 64; i++ {
			sum += SelectionIntervalSection(p, i)
		}
		assert.Equal(t, tc.total, sum)
		assert.Equal(t, sum, SelectionInterval(p))
	}

	p := fixtureParams(0)
	assert.Equal(t, int64(3), SelectionIntervalSection(p, 0))
	assert.Equal(t, int64(3), SelectionIntervalSection(p, 1))
	assert.Equal(t, int64(9), SelectionIntervalSection(p, 62))
	assert.Equal(t, int64(10), SelectionIntervalSection(p, 63))
}

func TestSelectionIntervalSectionOutOfRange(t *testing.T) {
	p := fixtureParams(0)
	assert.Panics(t, func() { SelectionIntervalSection(p, 64) })
	assert.Panics(t, func() { SelectionIntervalSection(p, -1) })
}

func TestSortCandidatesTieBreak(t *testing.T) {
	a := chainhash.DoubleHashH([]byte("tie-a"))
	b := chainhash.DoubleHashH([]byte("tie-b"))
	c := chainhash.DoubleHashH([]byte("tie-c"))

	cands := []Candidate{{Time: 20, Hash: c}, {Time: 10, Hash: a}, {Time: 10, Hash: b}}
	SortCandidates(cands)

	// 同一时间按小端整数比较，b < a
	assert.Equal(t, []Candidate{{Time: 10, Hash: b}, {Time: 10, Hash: a}, {Time: 20, Hash: c}}, cands)
}

// biasIndex 创世块 + 两个候选块，hashes 分别作为区块哈希
func biasIndex(t *testing.T, lastPOW int32, hashes ...chainhash.Hash) *blockindex.Index {
	t.Helper()
	p := fixtureParams(1 << 40)
	p.ModifierUpgradeHeight = 0
	p.LastPOWBlock = lastPOW

	idx := blockindex.New(p)
	prev := chainhash.DoubleHashH([]byte("bias-genesis"))
	require.NoError(t, idx.Append(&types.BlockRef{Height: 0, Time: fixtureT0, Hash: prev}))
	for i, h := range hashes {
		require.NoError(t, idx.Append(&types.BlockRef{
			Height:   int32(i + 1),
			Time:     fixtureT0 + int64(i+1),
			Hash:     h,
			PrevHash: prev,
		}))
		prev = h
	}
	return idx
}

func TestSelectBlockFromCandidatesPoSBias(t *testing.T) {
	const prevModifier uint64 = 0x1122334455667788
	powHash := labelHash("bias-pow", 0)
	posHash := labelHash("bias-pos", 0)

	// 未移位时 PoW 的选择哈希更小，PoS 右移 32 位后反超
	sPoW := selectionHash(&powHash, prevModifier, false)
	sPoS := selectionHash(&posHash, prevModifier, false)
	require.True(t, sPoW.Lt(sPoS))
	require.True(t, selectionHash(&posHash, prevModifier, true).Lt(sPoW))

	cands := []Candidate{
		{Time: fixtureT0 + 1, Hash: powHash},
		{Time: fixtureT0 + 2, Hash: posHash},
	}

	// block 2 是 PoS
	idx := biasIndex(t, 1, powHash, posHash)
	ref, err := SelectBlockFromCandidates(idx, cands, roaring.New(), fixtureT0+100, prevModifier)
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, int32(2), ref.Height)

	// 两个都是 PoW 时 PoW 哈希胜出
	idx = biasIndex(t, 2, powHash, posHash)
	ref, err = SelectBlockFromCandidates(idx, cands, roaring.New(), fixtureT0+100, prevModifier)
	require.NoError(t, err)
	assert.Equal(t, int32(1), ref.Height)
}

func TestSelectBlockFromCandidatesSkipsSelected(t *testing.T) {
	const prevModifier uint64 = 0x1122334455667788
	powHash := labelHash("bias-pow", 0)
	posHash := labelHash("bias-pos", 0)
	idx := biasIndex(t, 2, powHash, posHash)
	cands := []Candidate{
		{Time: fixtureT0 + 1, Hash: powHash},
		{Time: fixtureT0 + 2, Hash: posHash},
	}

	selected := roaring.BitmapOf(1)
	ref, err := SelectBlockFromCandidates(idx, cands, selected, fixtureT0+100, prevModifier)
	require.NoError(t, err)
	assert.Equal(t, int32(2), ref.Height)

	selected.Add(2)
	ref, err = SelectBlockFromCandidates(idx, cands, selected, fixtureT0+100, prevModifier)
	require.NoError(t, err)
	assert.Nil(t, ref)

	ref, err = SelectBlockFromCandidates(idx, nil, roaring.New(), fixtureT0+100, prevModifier)
	require.NoError(t, err)
	assert.Nil(t, ref)
}

func TestSelectBlockFromCandidatesStopTime(t *testing.T) {
	const prevModifier uint64 = 0x1122334455667788
	powHash := labelHash("bias-pow", 0)
	posHash := labelHash("bias-pos", 0)
	idx := biasIndex(t, 1, powHash, posHash)
	cands := []Candidate{
		{Time: fixtureT0 + 1, Hash: powHash},
		{Time: fixtureT0 + 2, Hash: posHash},
	}

	// 第一个候选已被选中后，超过 stop 的 PoS 块不再参与
	ref, err := SelectBlockFromCandidates(idx, cands, roaring.New(), fixtureT0+1, prevModifier)
	require.NoError(t, err)
	assert.Equal(t, int32(1), ref.Height)

	// 还没选出时不受 stop 限制
	ref, err = SelectBlockFromCandidates(idx, cands, roaring.BitmapOf(1), fixtureT0-100, prevModifier)
	require.NoError(t, err)
	assert.Equal(t, int32(2), ref.Height)
}

func TestSelectBlockFromCandidatesUnknownBlock(t *testing.T) {
	idx := biasIndex(t, 1)
	cands := []Candidate{{Time: fixtureT0, Hash: labelHash("missing", 0)}}
	_, err := SelectBlockFromCandidates(idx, cands, roaring.New(), fixtureT0, 0)
	assert.ErrorIs(t, err, ErrChainLookup)
}
