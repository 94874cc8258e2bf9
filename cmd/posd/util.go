package main

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/shopspring/decimal"
)

var satoshiPerCoin = decimal.NewFromInt(btcutil.SatoshiPerBitcoin)

// parseAmount 把 "12.5" 这样的币数解析成最小单位，不允许超过 8 位小数
func parseAmount(s string) (btcutil.Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("amount %q is negative", s)
	}
	sats := d.Mul(satoshiPerCoin)
	if !sats.Equal(sats.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has more than 8 decimal places", s)
	}
	if sats.GreaterThan(decimal.NewFromInt(int64(btcutil.MaxSatoshi))) {
		return 0, fmt.Errorf("amount %q exceeds the money supply", s)
	}
	return btcutil.Amount(sats.IntPart()), nil
}

// syntheticHash 模拟链用的确定性哈希
func syntheticHash(tag string, height int32) chainhash.Hash {
	buf := make([]byte, len(tag)+4)
	copy(buf, tag)
	binary.LittleEndian.PutUint32(buf[len(tag):], uint32(height))
	return chainhash.DoubleHashH(buf)
}
