package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"oracleScope/internal/config"
	"oracleScope/internal/node"
	"oracleScope/internal/pool"
	"oracleScope/internal/scans"
	"oracleScope/internal/storage/postgres"
)

// app carries the dependencies shared by every command.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	node   *node.Client
	db     *postgres.Store
	store  scans.Store
}

func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	client, err := node.NewClient(cfg.NodeURL,
		node.WithAPIKey(cfg.NodeAPIKey),
		node.WithTimeout(cfg.Timeout),
		node.WithMaxRetries(cfg.MaxRetries),
		node.WithRetryBackoff(cfg.RetryBackoff),
		node.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, node: client}

	if cfg.PGDSN != "" {
		db, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		a.db = db
	}

	switch cfg.ScanStore {
	case config.ScanStorePostgres:
		a.store = &scans.DBStore{Store: a.db, Deployment: cfg.PoolNFT}
	default:
		a.store = &scans.FileStore{Path: cfg.ScanIDsPath}
	}

	return a, nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
	_ = a.logger.Sync()
}

// scanIDs returns the stored scan ids, registering whichever are missing.
func (a *app) scanIDs(ctx context.Context) (scans.IDs, error) {
	return scans.Setup(ctx, a.store, a.node, a.cfg.Protocol(), a.logger)
}

func (a *app) oraclePool(ctx context.Context) (*pool.OraclePool, error) {
	ids, err := a.scanIDs(ctx)
	if err != nil {
		return nil, err
	}
	return pool.New(a.cfg.Protocol(), ids, a.node, a.logger), nil
}
