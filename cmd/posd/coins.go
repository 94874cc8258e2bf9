package main

import (
	"posd/blockindex"
	"posd/interfaces"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

var _ interfaces.CoinView = (*syntheticCoins)(nil)

// syntheticCoins 模拟链的 UTXO 视图：每个区块 h 有一个输出 (coinTxid(h), 0)，金额相同
type syntheticCoins struct {
	index  *blockindex.Index
	amount btcutil.Amount
}

func (s *syntheticCoins) LookupCoin(outpoint wire.OutPoint) (chainhash.Hash, btcutil.Amount, bool) {
	if outpoint.Index != 0 {
		return chainhash.Hash{}, 0, false
	}
	for h := s.index.Height(); h >= 0; h-- {
		if *coinTxid(h) != outpoint.Hash {
			continue
		}
		ref, ok := s.index.BlockAtHeight(h)
		if !ok {
			return chainhash.Hash{}, 0, false
		}
		return ref.Hash, s.amount, true
	}
	return chainhash.Hash{}, 0, false
}
