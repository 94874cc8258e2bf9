package main

import (
	"errors"
	"fmt"

	"posd/chain"
	"posd/consensus"
	"posd/logs"
	"posd/types"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/spf13/cobra"
)

type simulateOptions struct {
	powBlocks int32
	posBlocks int32
	spacing   int64
	startTime int64
	amount    string
	maxRounds int
}

func simulateCommand() *cobra.Command {
	opts := &simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Extend the stored chain with synthetic PoW blocks, then stake PoS blocks on top",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := openNode()
			if err != nil {
				return err
			}
			defer n.Close()
			return runSimulate(n, opts)
		},
	}
	cmd.Flags().Int32Var(&opts.powBlocks, "pow", -1, "PoW blocks to add (-1: up to the last PoW height)")
	cmd.Flags().Int32Var(&opts.posBlocks, "pos", 20, "PoS blocks to stake after the PoW phase")
	cmd.Flags().Int64Var(&opts.spacing, "spacing", 60, "seconds between blocks")
	cmd.Flags().Int64Var(&opts.startTime, "start", 1600000000, "genesis time when the index is empty")
	cmd.Flags().StringVar(&opts.amount, "amount", "1", "value of every synthetic staking coin")
	cmd.Flags().IntVar(&opts.maxRounds, "max-rounds", 1000, "staking rounds per PoS block before giving up")
	return cmd
}

func runSimulate(n *node, opts *simulateOptions) error {
	params := n.chain.Params()
	amount, err := parseAmount(opts.amount)
	if err != nil {
		return err
	}
	// PoS 区块的质押币按模拟的 UTXO 集核对
	n.chain.SetCoinView(&syntheticCoins{index: n.chain.Index(), amount: amount})

	powTarget := opts.powBlocks
	if powTarget < 0 {
		powTarget = params.LastPOWBlock + 1 - (n.chain.Index().Height() + 1)
	}
	for i := int32(0); i < powTarget; i++ {
		tip := n.chain.Index().Tip()
		hdr := &types.BlockHeader{Bits: params.PowLimitBits, Time: opts.startTime}
		height := int32(0)
		if tip != nil {
			height = tip.Height + 1
			hdr.PrevHash = tip.Hash
			hdr.Time = tip.Time + opts.spacing
		}
		if params.IsProofOfStake(height) {
			break
		}
		hdr.Hash = syntheticHash("posd-sim-block", height)
		ref, err := n.chain.AcceptBlock(hdr)
		if err != nil {
			return err
		}
		printModifier(ref)
	}

	for i := int32(0); i < opts.posBlocks; i++ {
		ref, err := stakeNextBlock(n, amount, opts)
		if err != nil {
			return err
		}
		printModifier(ref)
	}

	rejects := n.stats.GetRejectStats()
	if len(rejects) > 0 {
		logs.Warn("rejected blocks: %v", rejects)
	}
	return nil
}

// stakeNextBlock 按轮次推进时间，每轮从最老的币开始尝试，直到有币命中
func stakeNextBlock(n *node, amount btcutil.Amount, opts *simulateOptions) (*types.BlockRef, error) {
	params := n.chain.Params()
	tip := n.chain.Index().Tip()
	if tip == nil {
		return nil, errors.New("cannot stake on an empty chain")
	}
	if !params.IsProofOfStake(tip.Height + 1) {
		return nil, fmt.Errorf("height %d is still proof-of-work, add more PoW blocks first", tip.Height+1)
	}

	now := tip.Time + opts.spacing
	for round := 0; round < opts.maxRounds; round++ {
		for h := int32(1); h <= tip.Height; h++ {
			coin, _ := n.chain.Index().BlockAtHeight(h)
			if coin.Time+params.StakeMinAge >= now {
				break
			}
			req := syntheticCoin(coin, amount, params.PowLimitBits, now)
			proof, ok, err := n.chain.Stake(req)
			if errors.Is(err, consensus.ErrStaleModifier) || errors.Is(err, consensus.ErrTimestampViolation) {
				continue
			}
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}

			logs.Debug("coin %s at height %d staked block %d at %d (%s)",
				req.Outpoint, coin.Height, tip.Height+1, proof.Time, proof.Epoch)
			return n.chain.AcceptBlock(&types.BlockHeader{
				Hash:           syntheticHash("posd-sim-block", tip.Height+1),
				PrevHash:       tip.Hash,
				Time:           proof.Time,
				Bits:           req.Bits,
				StakeBlockHash: coin.Hash,
				StakeOutpoint:  req.Outpoint,
				StakeAmount:    req.Amount,
			})
		}
		now += params.HashDrift + 1
	}
	return nil, fmt.Errorf("no stake found for block %d in %d rounds", tip.Height+1, opts.maxRounds)
}

func syntheticCoin(coin *types.BlockRef, amount btcutil.Amount, bits uint32, now int64) *chain.StakeRequest {
	return &chain.StakeRequest{
		CoinBlockHash: coin.Hash,
		Outpoint:      *wire.NewOutPoint(coinTxid(coin.Height), 0),
		Amount:        amount,
		Bits:          bits,
		Time:          now,
	}
}

func coinTxid(height int32) *chainhash.Hash {
	h := syntheticHash("posd-sim-coin", height)
	return &h
}

func printModifier(ref *types.BlockRef) {
	kind := "pow"
	if ref.ProofOfStakeHash != (chainhash.Hash{}) {
		kind = "pos"
	}
	gen := ""
	if ref.GeneratedModifier {
		gen = " generated"
	}
	fmt.Printf("%6d %d %s %s modifier=%016x checksum=%08x flags=%d%s\n",
		ref.Height, ref.Time, kind, ref.Hash, ref.StakeModifier, ref.StakeModifierChecksum, ref.Flags, gen)
}
