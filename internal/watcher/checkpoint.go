package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"oracleScope/internal/model"
	"oracleScope/internal/storage/postgres"
)

// DefaultCheckpointFile is where the file checkpoint is kept when no path is
// configured.
const DefaultCheckpointFile = "watch_checkpoint.json"

// Checkpointer remembers the last stored snapshot across restarts so an
// unchanged pool is not written again.
type Checkpointer interface {
	Load(ctx context.Context) (model.PoolSnapshot, bool, error)
	Save(ctx context.Context, snap model.PoolSnapshot) error
}

// Checkpoint is the on-disk checkpoint document.
type Checkpoint struct {
	Snapshot  model.PoolSnapshot `json:"snapshot"`
	UpdatedAt string             `json:"updated_at"`
}

// FileCheckpoint persists the last stored snapshot to a JSON file.
type FileCheckpoint struct {
	path    string
	enabled bool
}

// NewFileCheckpoint returns a file checkpoint at path, or at
// DefaultCheckpointFile when path is empty. A disabled checkpoint never loads
// and discards saves.
func NewFileCheckpoint(path string, enabled bool) *FileCheckpoint {
	if path == "" {
		path = DefaultCheckpointFile
	}
	return &FileCheckpoint{path: path, enabled: enabled}
}

// Load reads the checkpoint file. A missing file is not an error and
// reports false.
func (c *FileCheckpoint) Load(_ context.Context) (model.PoolSnapshot, bool, error) {
	if !c.enabled {
		return model.PoolSnapshot{}, false, nil
	}

	stat, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.PoolSnapshot{}, false, nil
		}
		return model.PoolSnapshot{}, false, fmt.Errorf("stat checkpoint: %w", err)
	}
	if stat.IsDir() {
		return model.PoolSnapshot{}, false, fmt.Errorf("checkpoint path is a directory")
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return model.PoolSnapshot{}, false, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return model.PoolSnapshot{}, false, fmt.Errorf("parse checkpoint: %w", err)
	}
	return cp.Snapshot, true, nil
}

// Save replaces the checkpoint file atomically.
func (c *FileCheckpoint) Save(_ context.Context, snap model.PoolSnapshot) error {
	if !c.enabled {
		return nil
	}

	dir := filepath.Dir(c.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	cp := Checkpoint{
		Snapshot:  snap,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint tmp: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

// DBCheckpoint reads the last snapshot back from the Postgres snapshot table.
// Saving is a no-op since the snapshot row itself is the checkpoint.
type DBCheckpoint struct {
	store      *postgres.Store
	deployment string
}

// NewDBCheckpoint returns a checkpoint that resumes from the latest snapshot
// stored for deployment.
func NewDBCheckpoint(store *postgres.Store, deployment string) *DBCheckpoint {
	return &DBCheckpoint{store: store, deployment: deployment}
}

// Load returns the latest stored snapshot. It fails when the store is nil.
func (c *DBCheckpoint) Load(ctx context.Context) (model.PoolSnapshot, bool, error) {
	if c.store == nil {
		return model.PoolSnapshot{}, false, fmt.Errorf("postgres store is nil")
	}
	snap, ok, err := c.store.LatestSnapshot(ctx, c.deployment)
	if err != nil {
		return model.PoolSnapshot{}, false, fmt.Errorf("load latest snapshot: %w", err)
	}
	return snap, ok, nil
}

// Save does nothing.
func (c *DBCheckpoint) Save(context.Context, model.PoolSnapshot) error {
	return nil
}
