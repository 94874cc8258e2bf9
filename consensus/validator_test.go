package consensus

import (
	"testing"

	"posd/blockindex"
	"posd/types"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapCoinView map[wire.OutPoint]struct {
	block  chainhash.Hash
	amount btcutil.Amount
}

func (m mapCoinView) LookupCoin(op wire.OutPoint) (chainhash.Hash, btcutil.Amount, bool) {
	c, ok := m[op]
	return c.block, c.amount, ok
}

func fixtureHeader(idx *blockindex.Index, spend int64) *types.BlockHeader {
	coin, _ := idx.BlockAtHeight(2)
	return &types.BlockHeader{
		Hash:           labelHash("block", 70),
		PrevHash:       idx.Tip().Hash,
		Time:           spend,
		Bits:           fixtureBits,
		StakeBlockHash: coin.Hash,
		StakeOutpoint:  fixtureOutpoint(),
		StakeAmount:    100,
	}
}

func TestCheckProofOfStakeValid(t *testing.T) {
	idx := buildFixtureChain(t, fixtureParams(fixtureT0+72), fixtureCount)
	pc := NewProofChecker(idx)

	hash, err := pc.CheckProofOfStake(fixtureHeader(idx, fixtureSpend), idx.Tip())
	require.NoError(t, err)
	assert.Equal(t, mustHash(t, "5b8e50068a4a986c126f99414b203e4b0210b150933813392dd9c862ffb37d70"), hash)
}

func TestCheckProofOfStakeLegacyValid(t *testing.T) {
	idx := buildFixtureChain(t, fixtureParams(1<<40), fixtureCount)
	pc := NewProofChecker(idx)

	hash, err := pc.CheckProofOfStake(fixtureHeader(idx, fixtureSpend), idx.Tip())
	require.NoError(t, err)
	assert.Equal(t, "0e5c94105fe2ce9341bdcb2b08e55d126d15b4d3de21223db50523145e51d946", hash.String())
}

func TestCheckProofOfStakeTargetMiss(t *testing.T) {
	idx := buildFixtureChain(t, fixtureParams(fixtureT0+72), fixtureCount)
	pc := NewProofChecker(idx)

	_, err := pc.CheckProofOfStake(fixtureHeader(idx, 1600000418), idx.Tip())
	assert.ErrorIs(t, err, ErrTargetMiss)

	// 金额不足 100 聪，权重为 0
	header := fixtureHeader(idx, fixtureSpend)
	header.StakeAmount = 99
	_, err = pc.CheckProofOfStake(header, idx.Tip())
	assert.ErrorIs(t, err, ErrTargetMiss)
}

func TestCheckProofOfStakeLookupFailures(t *testing.T) {
	idx := buildFixtureChain(t, fixtureParams(fixtureT0+72), fixtureCount)
	pc := NewProofChecker(idx)

	header := fixtureHeader(idx, fixtureSpend)
	header.StakeBlockHash = labelHash("missing", 0)
	_, err := pc.CheckProofOfStake(header, idx.Tip())
	assert.ErrorIs(t, err, ErrChainLookup)

	header = fixtureHeader(idx, fixtureSpend)
	header.PrevHash = labelHash("missing", 1)
	_, err = pc.CheckProofOfStake(header, idx.Tip())
	assert.ErrorIs(t, err, ErrChainLookup)

	// 币区块不能晚于 prev
	snap, err := idx.SnapshotAt(60)
	require.NoError(t, err)
	header = fixtureHeader(idx, fixtureSpend)
	b65, _ := idx.BlockAtHeight(65)
	header.StakeBlockHash = b65.Hash
	header.PrevHash = snap.Tip().Hash
	_, err = NewProofChecker(snap).CheckProofOfStake(header, snap.Tip())
	assert.ErrorIs(t, err, ErrChainLookup)
}

func TestCheckProofOfStakeTimestampViolation(t *testing.T) {
	idx := buildFixtureChain(t, fixtureParams(fixtureT0+72), fixtureCount)
	pc := NewProofChecker(idx)

	header := fixtureHeader(idx, fixtureSpend)
	b69, _ := idx.BlockAtHeight(69)
	header.StakeBlockHash = b69.Hash
	_, err := pc.CheckProofOfStake(header, idx.Tip())
	assert.ErrorIs(t, err, ErrTimestampViolation)
}

func TestCheckProofOfStakeRejectsPoWHeight(t *testing.T) {
	idx := buildFixtureChain(t, fixtureParams(fixtureT0+72), 20)
	pc := NewProofChecker(idx)

	header := fixtureHeader(idx, fixtureTime(20))
	_, err := pc.CheckProofOfStake(header, idx.Tip())
	assert.Error(t, err)
}

func TestCheckProofOfStakeCoinView(t *testing.T) {
	idx := buildFixtureChain(t, fixtureParams(fixtureT0+72), fixtureCount)
	coin, _ := idx.BlockAtHeight(2)

	coins := mapCoinView{}
	coins[fixtureOutpoint()] = struct {
		block  chainhash.Hash
		amount btcutil.Amount
	}{coin.Hash, 100}

	pc := NewProofChecker(idx).WithCoinView(coins)
	_, err := pc.CheckProofOfStake(fixtureHeader(idx, fixtureSpend), idx.Tip())
	require.NoError(t, err)

	// 区块头声明的金额与 UTXO 不符
	header := fixtureHeader(idx, fixtureSpend)
	header.StakeAmount = 5000
	_, err = pc.CheckProofOfStake(header, idx.Tip())
	assert.ErrorIs(t, err, ErrChainLookup)

	header = fixtureHeader(idx, fixtureSpend)
	header.StakeOutpoint.Index = 7
	_, err = pc.CheckProofOfStake(header, idx.Tip())
	assert.ErrorIs(t, err, ErrChainLookup)
}

func TestStakeModifierChecksum(t *testing.T) {
	params := fixtureParams(fixtureT0 + 72)
	idx := buildFixtureChain(t, params, fixtureCount)

	var prev uint32
	sums := make(map[uint32]int32)
	for h := int32(0); h < fixtureCount; h++ {
		ref, _ := idx.BlockAtHeight(h)
		sum := StakeModifierChecksum(params, prev, ref)
		assert.Equal(t, sum, StakeModifierChecksum(params, prev, ref))
		sums[sum] = h
		prev = sum
	}
	assert.Len(t, sums, fixtureCount)

	ref, _ := idx.BlockAtHeight(40)
	changed := *ref
	changed.StakeModifier ^= 1
	assert.NotEqual(t, StakeModifierChecksum(params, 7, ref), StakeModifierChecksum(params, 7, &changed))
}

func TestBlockFlags(t *testing.T) {
	params := fixtureParams(fixtureT0 + 72)
	var h chainhash.Hash
	h[0] = 1
	ref := &types.BlockRef{Height: 30, Hash: h, GeneratedModifier: true}
	assert.Equal(t, flagProofOfStake|flagStakeEntropy|flagGeneratedModifier, BlockFlags(params, ref))

	ref = &types.BlockRef{Height: 3}
	assert.Zero(t, BlockFlags(params, ref))
}
