package main

import (
	"context"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"oracleScope/internal/model"
)

// nanoErgExponent scales nanoErg amounts to ERG.
const nanoErgExponent = -9

type statusOutput struct {
	Deployment  string             `json:"deployment"`
	Oracle      string             `json:"oracle_address"`
	Stages      []model.Stage      `json:"stages"`
	Snapshot    model.PoolSnapshot `json:"snapshot"`
	EpochFunds  *decimal.Decimal   `json:"epoch_funds_erg,omitempty"`
	PrepFunds   *decimal.Decimal   `json:"preparation_funds_erg,omitempty"`
	DepositErgs *decimal.Decimal   `json:"deposits_erg,omitempty"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	p, err := a.oraclePool(ctx)
	if err != nil {
		return err
	}

	snap := p.Snapshot(ctx)
	out := statusOutput{
		Deployment: p.PoolNFT(),
		Oracle:     p.LocalOracleAddress(),
		Stages:     p.Stages(),
		Snapshot:   snap,
	}
	if snap.Epoch != nil {
		out.EpochFunds = toErg(snap.Epoch.Funds)
	}
	if snap.Preparation != nil {
		out.PrepFunds = toErg(snap.Preparation.Funds)
	}
	if snap.Deposits != nil {
		out.DepositErgs = toErg(snap.Deposits.TotalErgs)
	}

	pretty, _ := cmd.Flags().GetBool("pretty")
	return printJSON(cmd, out, pretty)
}

func toErg(nanoErgs model.NanoErg) *decimal.Decimal {
	d := decimal.NewFromBigInt(new(big.Int).SetUint64(nanoErgs), nanoErgExponent)
	return &d
}
