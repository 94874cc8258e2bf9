package consensus

import (
	"fmt"

	"posd/interfaces"
	"posd/types"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// ModifierResolution 某个币在某个时间点适用的 stake modifier
type ModifierResolution struct {
	Modifier uint64
	Height   int32
	Time     int64
}

// GetKernelStakeModifier 按花费时间所属的协议版本解析 kernel 用的 modifier
//
// Epoch2 直接取 prev 的 modifier；Legacy 从币所在区块向后找，
// 直到某个生成的 modifier 距币区块至少一个完整选块区间。
func GetKernelStakeModifier(view interfaces.BlockIndexView, prev *types.BlockRef,
	coinBlockHash chainhash.Hash, spendTime int64) (ModifierResolution, error) {

	params := view.Params()
	coin, ok := view.LookupBlock(coinBlockHash)
	if !ok {
		return ModifierResolution{}, fmt.Errorf("%w: coin block %s", ErrChainLookup, coinBlockHash)
	}

	if EpochAt(params, spendTime) == Epoch2 {
		if spendTime-params.StakeMinAge <= coin.Time {
			return ModifierResolution{}, fmt.Errorf("%w: coin at %d not mature for spend at %d",
				ErrTimestampViolation, coin.Time, spendTime)
		}
		return ModifierResolution{
			Modifier: prev.StakeModifier,
			Height:   prev.Height,
			Time:     prev.Time,
		}, nil
	}

	res := ModifierResolution{Height: coin.Height, Time: coin.Time}
	until := coin.Time + SelectionInterval(params)
	cur := coin
	for res.Time < until {
		if cur.Height >= prev.Height {
			return ModifierResolution{}, fmt.Errorf("%w: reached tip %d from coin block %d",
				ErrStaleModifier, prev.Height, coin.Height)
		}
		next, ok := view.BlockAtHeight(cur.Height + 1)
		if !ok {
			return ModifierResolution{}, fmt.Errorf("%w: no block at height %d", ErrStaleModifier, cur.Height+1)
		}
		cur = next
		if cur.GeneratedModifier {
			res.Height = cur.Height
			res.Time = cur.Time
		}
	}
	res.Modifier = cur.StakeModifier
	return res, nil
}
