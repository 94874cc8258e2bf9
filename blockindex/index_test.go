package blockindex

import (
	"sync"
	"testing"

	"posd/config"
	"posd/types"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ref(h int32) *types.BlockRef {
	r := &types.BlockRef{
		Height: h,
		Time:   1600000000 + int64(h)*60,
		Hash:   chainhash.DoubleHashH([]byte{byte(h), byte(h >> 8), 'b'}),
	}
	if h > 0 {
		r.PrevHash = chainhash.DoubleHashH([]byte{byte(h - 1), byte((h - 1) >> 8), 'b'})
	}
	return r
}

func buildIndex(t *testing.T, n int32) *Index {
	t.Helper()
	params := config.RegTestParams
	idx := New(&params)
	for h := int32(0); h < n; h++ {
		require.NoError(t, idx.Append(ref(h)))
	}
	return idx
}

func TestIndexAppendAndLookup(t *testing.T) {
	params := config.RegTestParams
	idx := New(&params)
	assert.Equal(t, int32(-1), idx.Height())
	assert.Nil(t, idx.Tip())

	for h := int32(0); h < 10; h++ {
		require.NoError(t, idx.Append(ref(h)))
	}
	assert.Equal(t, int32(9), idx.Height())
	assert.Equal(t, ref(9).Hash, idx.Tip().Hash)

	got, ok := idx.LookupBlock(ref(4).Hash)
	require.True(t, ok)
	assert.Equal(t, int32(4), got.Height)

	got, ok = idx.BlockAtHeight(7)
	require.True(t, ok)
	assert.Equal(t, ref(7).Hash, got.Hash)

	_, ok = idx.BlockAtHeight(10)
	assert.False(t, ok)
	_, ok = idx.BlockAtHeight(-1)
	assert.False(t, ok)
	_, ok = idx.LookupBlock(chainhash.Hash{1})
	assert.False(t, ok)
}

func TestIndexAppendRejects(t *testing.T) {
	idx := buildIndex(t, 3)

	assert.Error(t, idx.Append(ref(5)), "height gap")
	assert.Error(t, idx.Append(ref(2)), "height already taken")

	bad := ref(3)
	bad.PrevHash = ref(1).Hash
	assert.Error(t, idx.Append(bad), "does not extend tip")

	dup := ref(3)
	dup.Hash = ref(0).Hash
	assert.Error(t, idx.Append(dup), "duplicate hash")

	assert.Equal(t, int32(2), idx.Height())
}

func TestIndexStoresCopy(t *testing.T) {
	params := config.RegTestParams
	idx := New(&params)
	r := ref(0)
	require.NoError(t, idx.Append(r))
	r.StakeModifier = 42

	got, _ := idx.BlockAtHeight(0)
	assert.Zero(t, got.StakeModifier)
}

func TestSnapshotBounded(t *testing.T) {
	idx := buildIndex(t, 10)

	snap, err := idx.SnapshotAt(4)
	require.NoError(t, err)
	assert.Equal(t, int32(4), snap.Tip().Height)

	_, ok := snap.LookupBlock(ref(5).Hash)
	assert.False(t, ok, "blocks above the snapshot tip are invisible")
	_, ok = snap.BlockAtHeight(5)
	assert.False(t, ok)
	got, ok := snap.LookupBlock(ref(4).Hash)
	require.True(t, ok)
	assert.Equal(t, int32(4), got.Height)

	full := idx.Snapshot()
	require.NoError(t, idx.Append(ref(10)))
	assert.Equal(t, int32(9), full.Tip().Height)
	_, ok = full.LookupBlock(ref(10).Hash)
	assert.False(t, ok)

	_, err = idx.SnapshotAt(11)
	assert.Error(t, err)
	_, err = idx.SnapshotAt(-1)
	assert.Error(t, err)

	empty := New(idx.Params()).Snapshot()
	assert.Nil(t, empty.Tip())
}

func TestIndexConcurrentReaders(t *testing.T) {
	idx := buildIndex(t, 1)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				snap := idx.Snapshot()
				tip := snap.Tip()
				got, ok := snap.BlockAtHeight(tip.Height)
				if assert.True(t, ok) {
					assert.Equal(t, tip.Hash, got.Hash)
				}
			}
		}()
	}
	for h := int32(1); h < 200; h++ {
		require.NoError(t, idx.Append(ref(h)))
	}
	wg.Wait()
	assert.Equal(t, int32(199), idx.Height())
}

func TestCheckAppendDoesNotModify(t *testing.T) {
	idx := buildIndex(t, 3)

	assert.NoError(t, idx.CheckAppend(ref(3)))
	assert.Equal(t, int32(2), idx.Height())

	dup := ref(3)
	dup.Hash = ref(1).Hash
	assert.Error(t, idx.CheckAppend(dup))
	assert.Error(t, idx.CheckAppend(ref(4)))

	got, ok := idx.LookupBlock(ref(1).Hash)
	require.True(t, ok)
	assert.Equal(t, int32(1), got.Height)
}
