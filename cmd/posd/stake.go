package main

import (
	"errors"
	"fmt"
	"time"

	"posd/chain"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/spf13/cobra"
)

type stakeOptions struct {
	coinBlock  string
	coinHeight int32
	txid       string
	index      uint32
	amount     string
	bits       uint32
	spendTime  int64
}

func stakeCommand() *cobra.Command {
	opts := &stakeOptions{}
	cmd := &cobra.Command{
		Use:   "stake",
		Short: "Search a kernel for one coin on top of the stored chain tip",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := openNode()
			if err != nil {
				return err
			}
			defer n.Close()

			req, err := buildStakeRequest(n, opts)
			if err != nil {
				return err
			}
			proof, ok, err := n.chain.Stake(req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !ok {
				fmt.Fprintf(out, "no stake in [%d, %d]\n", req.Time, req.Time+n.chain.Params().HashDrift)
				return nil
			}
			fmt.Fprintf(out, "stake found: time=%d epoch=%s kernel=%s\n", proof.Time, proof.Epoch, proof.Hash)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.coinBlock, "coin-block", "", "hash of the block holding the coin")
	cmd.Flags().Int32Var(&opts.coinHeight, "coin-height", -1, "height of the block holding the coin (alternative to --coin-block)")
	cmd.Flags().StringVar(&opts.txid, "txid", "", "coin txid (default: the synthetic coin of the simulate command)")
	cmd.Flags().Uint32Var(&opts.index, "vout", 0, "coin output index")
	cmd.Flags().StringVar(&opts.amount, "amount", "1", "coin value")
	cmd.Flags().Uint32Var(&opts.bits, "bits", 0, "compact stake target (0: network pow limit)")
	cmd.Flags().Int64Var(&opts.spendTime, "time", 0, "earliest coinstake time (0: now)")
	return cmd
}

func buildStakeRequest(n *node, opts *stakeOptions) (*chain.StakeRequest, error) {
	params := n.chain.Params()
	req := &chain.StakeRequest{Bits: opts.bits, Time: opts.spendTime}
	if req.Bits == 0 {
		req.Bits = params.PowLimitBits
	}
	if req.Time == 0 {
		req.Time = time.Now().Unix()
	}

	var coinHeight int32
	switch {
	case opts.coinBlock != "":
		h, err := chainhash.NewHashFromStr(opts.coinBlock)
		if err != nil {
			return nil, fmt.Errorf("invalid coin block hash: %w", err)
		}
		coin, ok := n.chain.Index().LookupBlock(*h)
		if !ok {
			return nil, fmt.Errorf("coin block %s not in the index", h)
		}
		req.CoinBlockHash = coin.Hash
		coinHeight = coin.Height
	case opts.coinHeight >= 0:
		coin, ok := n.chain.Index().BlockAtHeight(opts.coinHeight)
		if !ok {
			return nil, fmt.Errorf("no block at height %d", opts.coinHeight)
		}
		req.CoinBlockHash = coin.Hash
		coinHeight = coin.Height
	default:
		return nil, errors.New("one of --coin-block or --coin-height is required")
	}

	txid := coinTxid(coinHeight)
	if opts.txid != "" {
		h, err := chainhash.NewHashFromStr(opts.txid)
		if err != nil {
			return nil, fmt.Errorf("invalid txid: %w", err)
		}
		txid = h
	}
	req.Outpoint = *wire.NewOutPoint(txid, opts.index)

	amount, err := parseAmount(opts.amount)
	if err != nil {
		return nil, err
	}
	req.Amount = amount
	return req, nil
}
