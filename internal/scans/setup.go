package scans

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"oracleScope/internal/model"
)

// Registrar registers a scan with the node and returns its id.
type Registrar interface {
	RegisterScan(ctx context.Context, name string, rule Rule) (string, error)
}

// Setup returns the persisted scan ids, registering and saving any stage scan
// that is missing. It is meant to run once before the pool is queried.
func Setup(ctx context.Context, store Store, registrar Registrar, protocol model.Protocol, logger *zap.Logger) (IDs, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		return IDs{}, fmt.Errorf("scan id store is nil")
	}

	ids, ok, err := store.Load(ctx)
	if err != nil {
		return IDs{}, fmt.Errorf("load scan ids: %w", err)
	}
	if ok && ids.Complete() {
		logger.Info("scan ids loaded",
			zap.String("epoch_preparation", ids.EpochPreparation),
			zap.String("live_epoch", ids.LiveEpoch),
			zap.String("datapoint", ids.Datapoint),
			zap.String("pool_deposit", ids.PoolDeposit),
		)
		return ids, nil
	}
	if registrar == nil {
		return IDs{}, fmt.Errorf("scan ids missing and no registrar available")
	}

	requests, err := TrackingRules(protocol)
	if err != nil {
		return IDs{}, fmt.Errorf("build tracking rules: %w", err)
	}

	for _, req := range requests {
		if ids.Get(req.Stage) != "" {
			continue
		}
		scanID, err := registrar.RegisterScan(ctx, req.Name, req.Rule)
		if err != nil {
			return IDs{}, fmt.Errorf("register %s scan: %w", req.Stage, err)
		}
		if err := ids.Set(req.Stage, scanID); err != nil {
			return IDs{}, err
		}
		// Saved per scan so a failed run does not register the same scan twice.
		if err := store.Save(ctx, ids); err != nil {
			return IDs{}, fmt.Errorf("save scan ids: %w", err)
		}
		logger.Info("scan registered", zap.String("stage", req.Stage), zap.String("scan_id", scanID))
	}

	return ids, nil
}
