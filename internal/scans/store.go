package scans

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"oracleScope/internal/model"
	"oracleScope/internal/storage/postgres"
)

// DefaultFile is where scan ids are kept when no other path is configured.
const DefaultFile = "scanIDs.json"

// Store persists the scan ids of one deployment.
type Store interface {
	Load(ctx context.Context) (IDs, bool, error)
	Save(ctx context.Context, ids IDs) error
}

// FileStore stores scan ids in a local JSON file.
type FileStore struct {
	Path string
}

func (s *FileStore) path() string {
	if s == nil || s.Path == "" {
		return DefaultFile
	}
	return s.Path
}

// Load reads the scan ids file. A missing file reports false without error.
func (s *FileStore) Load(ctx context.Context) (IDs, bool, error) {
	path := s.path()
	stat, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return IDs{}, false, nil
		}
		return IDs{}, false, fmt.Errorf("stat scan ids: %w", err)
	}
	if stat.IsDir() {
		return IDs{}, false, fmt.Errorf("scan ids path is a directory")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return IDs{}, false, fmt.Errorf("read scan ids: %w", err)
	}

	var ids IDs
	if err := json.Unmarshal(data, &ids); err != nil {
		return IDs{}, false, fmt.Errorf("parse scan ids: %w", err)
	}
	return ids, true, nil
}

// Save writes the scan ids file atomically, creating its directory.
func (s *FileStore) Save(ctx context.Context, ids IDs) error {
	path := s.path()
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create scan ids dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal scan ids: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write scan ids tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename scan ids: %w", err)
	}
	return nil
}

// DBStore stores scan ids in the scan_ids table, keyed by deployment.
type DBStore struct {
	Store      *postgres.Store
	Deployment string
}

// Load reads the scan ids stored for Deployment. It fails when no Postgres
// store is set.
func (s *DBStore) Load(ctx context.Context) (IDs, bool, error) {
	if s == nil || s.Store == nil {
		return IDs{}, false, fmt.Errorf("postgres store is nil")
	}
	byStage, ok, err := s.Store.LoadScanIDs(ctx, s.Deployment)
	if err != nil || !ok {
		return IDs{}, ok, err
	}

	var ids IDs
	for stage, scanID := range byStage {
		if err := ids.Set(stage, scanID); err != nil {
			return IDs{}, false, err
		}
	}
	return ids, true, nil
}

// Save upserts the non-empty scan ids for Deployment. It fails when no
// Postgres store is set.
func (s *DBStore) Save(ctx context.Context, ids IDs) error {
	if s == nil || s.Store == nil {
		return fmt.Errorf("postgres store is nil")
	}
	byStage := make(map[string]string, 4)
	for _, stage := range []string{model.StageEpochPreparation, model.StageLiveEpoch, model.StageDatapoint, model.StagePoolDeposit} {
		if id := ids.Get(stage); id != "" {
			byStage[stage] = id
		}
	}
	return s.Store.SaveScanIDs(ctx, s.Deployment, byStage)
}
