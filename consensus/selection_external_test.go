package consensus_test

import (
	"testing"

	"posd/blockindex"
	"posd/config"
	"posd/consensus"
	"posd/types"

	"github.com/RoaringBitmap/roaring"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectBlockFromCandidatesOutsidePackage(t *testing.T) {
	params := config.RegTestParams
	idx := blockindex.New(&params)

	var cands []consensus.Candidate
	var prev chainhash.Hash
	for h := int32(0); h < 4; h++ {
		ref := &types.BlockRef{
			Height:   h,
			Time:     1600000000 + int64(3-h), // 倒序时间，依赖排序
			Hash:     chainhash.DoubleHashH([]byte{'x', byte(h)}),
			PrevHash: prev,
		}
		require.NoError(t, idx.Append(ref))
		prev = ref.Hash
		cands = append(cands, consensus.Candidate{Time: ref.Time, Hash: ref.Hash})
	}

	consensus.SortCandidates(cands)
	for i := 1; i < len(cands); i++ {
		assert.LessOrEqual(t, cands[i-1].Time, cands[i].Time)
	}

	selected := roaring.New()
	for round := 0; round < len(cands); round++ {
		ref, err := consensus.SelectBlockFromCandidates(idx, cands, selected, 1600000100, 0x0123456789abcdef)
		require.NoError(t, err)
		require.NotNil(t, ref)
		assert.False(t, selected.Contains(uint32(ref.Height)))
		selected.Add(uint32(ref.Height))
	}

	ref, err := consensus.SelectBlockFromCandidates(idx, cands, selected, 1600000100, 0x0123456789abcdef)
	require.NoError(t, err)
	assert.Nil(t, ref)
}
