package watcher

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"oracleScope/internal/model"
	"oracleScope/internal/observability"
	"oracleScope/internal/storage"
)

// DefaultInterval is the poll interval used when none is configured.
const DefaultInterval = 30 * time.Second

// Snapshotter takes one pass over the pool queries.
type Snapshotter interface {
	Snapshot(ctx context.Context) model.PoolSnapshot
}

// RunConfig holds runtime settings for the watcher.
type RunConfig struct {
	Deployment string
	Interval   time.Duration
	// Once stops after the first poll.
	Once bool
}

// Runner polls the pool and writes every changed snapshot to storage.
type Runner struct {
	cfg        RunConfig
	pool       Snapshotter
	storage    storage.Storage
	checkpoint Checkpointer
	metrics    *observability.Metrics
	logger     *zap.Logger

	last *model.PoolSnapshot
}

// NewRunner builds a Runner with its dependencies. checkpoint and metrics
// may be nil.
func NewRunner(cfg RunConfig, pool Snapshotter, sink storage.Storage, checkpoint Checkpointer, metrics *observability.Metrics, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Runner{
		cfg:        cfg,
		pool:       pool,
		storage:    sink,
		checkpoint: checkpoint,
		metrics:    metrics,
		logger:     logger,
	}
}

// Run polls until the context is cancelled, or once when configured so.
func (r *Runner) Run(ctx context.Context) error {
	if r.pool == nil {
		return fmt.Errorf("oracle pool is nil")
	}
	if r.storage == nil {
		return fmt.Errorf("storage is nil")
	}
	if r.cfg.Deployment == "" {
		return fmt.Errorf("deployment is required")
	}

	if r.checkpoint != nil {
		snap, ok, err := r.checkpoint.Load(ctx)
		if err != nil {
			return err
		}
		if ok {
			r.last = &snap
			r.logger.Info("resume from checkpoint", zap.Time("observed_at", snap.ObservedAt), zap.Stringer("stage", snap.Stage))
		}
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := r.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Warn("poll failed", zap.Error(err))
		}
		if r.cfg.Once {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll takes one snapshot and stores it when the pool state changed. It
// reports whether a record was written. A snapshot with any failed scan is
// never stored or checkpointed, since its missing parts and defaulted stage
// would read as a state change.
func (r *Runner) Poll(ctx context.Context) (bool, error) {
	start := time.Now()
	snap := r.pool.Snapshot(ctx)
	if r.metrics != nil {
		r.metrics.PollDuration.Observe(time.Since(start).Seconds())
		r.metrics.RecordSnapshot(snap)
	}

	if !snap.Complete() {
		r.logger.Warn("pool snapshot incomplete, not stored",
			zap.Strings("unavailable", snap.Unavailable),
			zap.Bool("stage_known", snap.StageKnown()),
		)
		return false, nil
	}

	if r.last != nil && r.last.SameState(snap) {
		r.logger.Debug("pool unchanged", zap.Stringer("stage", snap.Stage))
		return false, nil
	}

	record := model.SnapshotRecord{Deployment: r.cfg.Deployment, PoolSnapshot: snap}
	if err := r.storage.PutSnapshotBatch(ctx, []model.SnapshotRecord{record}); err != nil {
		if r.metrics != nil {
			r.metrics.StoreErrors.Inc()
		}
		return false, fmt.Errorf("store snapshot: %w", err)
	}
	if r.checkpoint != nil {
		if err := r.checkpoint.Save(ctx, snap); err != nil {
			return true, err
		}
	}
	if r.metrics != nil {
		r.metrics.SnapshotsStored.Inc()
	}
	r.last = &snap

	fields := []zap.Field{zap.Stringer("stage", snap.Stage)}
	if snap.Epoch != nil {
		fields = append(fields,
			zap.String("epoch_id", snap.Epoch.EpochID),
			zap.Uint64("epoch_ends", snap.Epoch.EpochEnds),
			zap.Bool("datapoint_committed", snap.Epoch.CommitDatapointInEpoch),
		)
	}
	if snap.Deposits != nil {
		fields = append(fields, zap.Uint64("deposit_boxes", snap.Deposits.NumberOfBoxes))
	}
	r.logger.Info("pool state changed", fields...)
	return true, nil
}
