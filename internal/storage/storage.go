package storage

import (
	"context"

	"oracleScope/internal/model"
)

// Storage defines a sink for pool snapshots.
type Storage interface {
	PutSnapshotBatch(ctx context.Context, records []model.SnapshotRecord) error
}
