package consensus

import (
	"fmt"

	"posd/types"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// CheckProofOfStake 验证 PoS 区块头的 kernel 证明，返回 proof-of-stake 哈希
// 任何错误都意味着区块无效。
func (pc *ProofChecker) CheckProofOfStake(header *types.BlockHeader, prev *types.BlockRef) (chainhash.Hash, error) {
	params := pc.view.Params()

	if prev == nil || header.PrevHash != prev.Hash {
		return chainhash.Hash{}, fmt.Errorf("%w: previous block %s", ErrChainLookup, header.PrevHash)
	}
	if !params.IsProofOfStake(prev.Height + 1) {
		return chainhash.Hash{}, fmt.Errorf("block %s at height %d is not proof-of-stake",
			header.Hash, prev.Height+1)
	}

	coin, ok := pc.view.LookupBlock(header.StakeBlockHash)
	if !ok || coin.Height > prev.Height {
		return chainhash.Hash{}, fmt.Errorf("%w: stake block %s", ErrChainLookup, header.StakeBlockHash)
	}
	if onChain, ok := pc.view.BlockAtHeight(coin.Height); !ok || onChain.Hash != coin.Hash {
		return chainhash.Hash{}, fmt.Errorf("%w: stake block %s not on main chain", ErrChainLookup, coin.Hash)
	}

	if pc.coins != nil {
		blockHash, amount, ok := pc.coins.LookupCoin(header.StakeOutpoint)
		if !ok {
			return chainhash.Hash{}, fmt.Errorf("%w: stake outpoint %s", ErrChainLookup, header.StakeOutpoint)
		}
		if blockHash != coin.Hash || amount != header.StakeAmount {
			return chainhash.Hash{}, fmt.Errorf("%w: stake outpoint %s is %v in block %s, header claims %v in %s",
				ErrChainLookup, header.StakeOutpoint, amount, blockHash, header.StakeAmount, coin.Hash)
		}
	}

	proof, hit, err := pc.CheckStakeKernelHash(prev, &KernelRequest{
		Bits:          header.Bits,
		CoinBlockHash: coin.Hash,
		CoinBlockTime: coin.Time,
		Amount:        header.StakeAmount,
		Outpoint:      header.StakeOutpoint,
		SpendTime:     header.Time,
		CheckOnly:     true,
	})
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("check kernel failed on coinstake %s: %w", header.StakeOutpoint, err)
	}
	if !hit {
		return chainhash.Hash{}, fmt.Errorf("%w: block %s coinstake %s", ErrTargetMiss, header.Hash, header.StakeOutpoint)
	}
	return proof.Hash, nil
}
