package consensus

import (
	"encoding/binary"
	"testing"

	"posd/blockindex"
	"posd/config"
	"posd/types"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

const (
	fixtureT0    int64  = 1600000000
	fixtureBits  uint32 = 0x207fffff
	fixtureCount        = 70
)

// fixtureParams 回归链参数：0-29 PoW，30 之后 PoS
func fixtureParams(epoch2Time int64) *config.Params {
	return &config.Params{
		Name:                  "fixture",
		PowLimitBits:          0x207fffff,
		StakeMinAge:           300,
		ModifierUpgradeHeight: 5,
		Epoch2Time:            epoch2Time,
		LastPOWBlock:          29,
		ModifierInterval:      10,
		ModifierIntervalRatio: 3,
		HashDrift:             60,
		GenesisStakeModifier:  0x646f6d656b617473,
	}
}

func labelHash(label string, n int32) chainhash.Hash {
	buf := make([]byte, len(label)+4)
	copy(buf, label)
	binary.LittleEndian.PutUint32(buf[len(label):], uint32(n))
	return chainhash.DoubleHashH(buf)
}

// 每 18 秒出 3 个块，时间戳成簇
func fixtureTime(h int32) int64 {
	return fixtureT0 + 18*int64(h/3) + int64(h%3)
}

// buildFixtureChain 逐块计算 modifier 并追加
func buildFixtureChain(t *testing.T, params *config.Params, n int) *blockindex.Index {
	t.Helper()
	idx := blockindex.New(params)
	for h := int32(0); h < int32(n); h++ {
		prev := idx.Tip()
		mod, generated, err := ComputeNextStakeModifier(idx, prev)
		require.NoError(t, err)

		ref := &types.BlockRef{
			Height:            h,
			Time:              fixtureTime(h),
			Hash:              labelHash("block", h),
			Bits:              fixtureBits,
			StakeModifier:     mod,
			GeneratedModifier: generated,
		}
		if prev != nil {
			ref.PrevHash = prev.Hash
		}
		if params.IsProofOfStake(h) {
			ref.ProofOfStakeHash = labelHash("stake", h)
		}
		require.NoError(t, idx.Append(ref))
	}
	return idx
}

// 质押币：block 2 中的 (hash("coin"), 1)，100 聪 → 权重 1
func fixtureOutpoint() wire.OutPoint {
	return wire.OutPoint{Hash: chainhash.DoubleHashH([]byte("coin")), Index: 1}
}

func mustHash(t *testing.T, s string) chainhash.Hash {
	t.Helper()
	h, err := chainhash.NewHashFromStr(s)
	require.NoError(t, err)
	return *h
}
