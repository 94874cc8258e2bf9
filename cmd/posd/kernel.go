package main

import (
	"fmt"
	"io"

	"posd/config"
	"posd/consensus"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/spf13/cobra"
)

type kernelOptions struct {
	modifier      uint64
	blockFromTime int64
	height        int32
	txid          string
	index         uint32
	spendTime     int64
	bits          uint32
	amount        string
}

func kernelCommand() *cobra.Command {
	opts := &kernelOptions{}
	cmd := &cobra.Command{
		Use:   "kernel",
		Short: "Print the Legacy and Epoch2 kernel hashes for literal inputs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return printKernel(cmd.OutOrStdout(), &cfg.Consensus, opts)
		},
	}
	cmd.Flags().Uint64Var(&opts.modifier, "modifier", 0, "stake modifier")
	cmd.Flags().Int64Var(&opts.blockFromTime, "block-time", 0, "time of the block holding the coin")
	cmd.Flags().Int32Var(&opts.height, "height", 0, "height of the block being staked (Epoch2 layout)")
	cmd.Flags().StringVar(&opts.txid, "txid", "", "coin txid (hex, display order)")
	cmd.Flags().Uint32Var(&opts.index, "vout", 0, "coin output index")
	cmd.Flags().Int64Var(&opts.spendTime, "time", 0, "coinstake time")
	cmd.Flags().Uint32Var(&opts.bits, "bits", 0, "compact target to test against (0: network pow limit)")
	cmd.Flags().StringVar(&opts.amount, "amount", "0", "coin value")
	return cmd
}

func printKernel(w io.Writer, params *config.Params, opts *kernelOptions) error {
	var txid chainhash.Hash
	if opts.txid != "" {
		h, err := chainhash.NewHashFromStr(opts.txid)
		if err != nil {
			return fmt.Errorf("invalid txid: %w", err)
		}
		txid = *h
	}
	outpoint := wire.OutPoint{Hash: txid, Index: opts.index}

	amount, err := parseAmount(opts.amount)
	if err != nil {
		return err
	}
	bits := opts.bits
	if bits == 0 {
		bits = params.PowLimitBits
	}
	target, negative, overflow := consensus.ExpandTarget(bits)
	if negative || overflow || target.IsZero() {
		return fmt.Errorf("%w: bits %08x", consensus.ErrInvalidTarget, bits)
	}

	active := consensus.EpochAt(params, opts.spendTime)
	for _, epoch := range []consensus.Epoch{consensus.EpochLegacy, consensus.Epoch2} {
		hash := consensus.KernelHash(epoch, opts.modifier, opts.blockFromTime, opts.height, outpoint, opts.spendTime)
		mark := ""
		if epoch == active {
			mark = " *"
		}
		fmt.Fprintf(w, "%-7s %s hit=%v%s\n", epoch, hash, consensus.StakeTargetHit(&hash, amount, target), mark)
	}
	fmt.Fprintf(w, "amount  %s target %s\n", amount, target.Hex())
	return nil
}
