package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "oracle",
		Short:        "Oracle pool state reader",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path (default ./oracle-config.yaml)")
	flags.String("node-url", "", "node REST API URL")
	flags.String("node-api-key", "", "node API key")
	flags.String("oracle-address", "", "address of the local oracle")
	flags.String("oracle-pool-nft", "", "pool NFT token id")
	flags.String("oracle-pool-participant-token", "", "oracle participant token id")
	flags.String("epoch-preparation-contract-address", "", "epoch preparation contract address")
	flags.String("live-epoch-contract-address", "", "live epoch contract address")
	flags.String("datapoint-contract-address", "", "datapoint contract address")
	flags.String("pool-deposit-contract-address", "", "pool deposit contract address")
	flags.String("scan-store", "file", "where scan ids are kept (file, postgres)")
	flags.String("scan-ids-path", "scanIDs.json", "scan ids file for the file store")
	flags.String("pg-dsn", "", "Postgres DSN")
	flags.Duration("timeout", 30*time.Second, "node request timeout")
	flags.Int("max-retries", 3, "maximum retry attempts for node reads")
	flags.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	scansCmd := &cobra.Command{
		Use:   "scans",
		Short: "Manage node scans",
	}
	scansCmd.AddCommand(&cobra.Command{
		Use:   "register",
		Short: "Register the pool scans with the node unless already stored",
		RunE:  runScansRegister,
	})
	scansCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the stored scan ids",
		RunE:  runScansShow,
	})
	root.AddCommand(scansCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print the current pool state",
		RunE:  runStatus,
	}
	statusCmd.Flags().Bool("pretty", true, "indent JSON output")
	root.AddCommand(statusCmd)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the pool and record state changes",
		RunE:  runWatch,
	}
	watchCmd.Flags().Duration("interval", 30*time.Second, "poll interval")
	watchCmd.Flags().String("out", "./data/snapshots.jsonl", "output JSONL path when no pg-dsn is set")
	watchCmd.Flags().Int64("out-max-bytes", 0, "rotate the JSONL output at this size, 0 disables")
	watchCmd.Flags().String("checkpoint", "./data/watch_checkpoint.json", "checkpoint file path when no pg-dsn is set")
	watchCmd.Flags().String("metrics-addr", "", "listen address for /metrics, empty disables")
	watchCmd.Flags().Bool("once", false, "take a single snapshot and exit")
	root.AddCommand(watchCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
