package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runScansRegister(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	a.logger.Info("scan setup start",
		zap.String("node", a.cfg.NodeURL),
		zap.String("scan_store", a.cfg.ScanStore),
		zap.String("pool_nft", a.cfg.PoolNFT),
	)

	ids, err := a.scanIDs(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd, ids, true)
}

func runScansShow(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ids, ok, err := a.store.Load(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no scan ids stored, run `oracle scans register` first")
	}
	return printJSON(cmd, ids, true)
}

func printJSON(cmd *cobra.Command, v interface{}, pretty bool) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
