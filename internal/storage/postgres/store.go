package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"oracleScope/internal/model"
)

// Store provides Postgres persistence for pool snapshots and scan ids.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore opens a connection pool for dsn.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// PutSnapshotBatch inserts snapshot records. A record already stored for the
// same deployment and observation time is left untouched.
func (s *Store) PutSnapshotBatch(ctx context.Context, records []model.SnapshotRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, rec := range records {
		state, err := json.Marshal(rec.PoolSnapshot)
		if err != nil {
			return fmt.Errorf("marshal snapshot: %w", err)
		}
		var epochID *string
		if rec.Epoch != nil {
			epochID = &rec.Epoch.EpochID
		}
		batch.Queue(`
			INSERT INTO pool_snapshots (
				deployment, observed_at, stage, epoch_id, state, created_at
			) VALUES ($1, $2, $3, $4, $5, now())
			ON CONFLICT (deployment, observed_at) DO NOTHING
		`,
			rec.Deployment,
			rec.ObservedAt,
			rec.Stage.String(),
			epochID,
			string(state),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LatestSnapshot returns the most recent snapshot stored for a deployment.
func (s *Store) LatestSnapshot(ctx context.Context, deployment string) (model.PoolSnapshot, bool, error) {
	var state []byte
	row := s.pool.QueryRow(ctx, `
		SELECT state FROM pool_snapshots
		WHERE deployment = $1
		ORDER BY observed_at DESC
		LIMIT 1
	`, deployment)
	if err := row.Scan(&state); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PoolSnapshot{}, false, nil
		}
		return model.PoolSnapshot{}, false, err
	}

	var snap model.PoolSnapshot
	if err := json.Unmarshal(state, &snap); err != nil {
		return model.PoolSnapshot{}, false, fmt.Errorf("parse snapshot: %w", err)
	}
	return snap, true, nil
}

// LoadScanIDs returns the scan id per stage for a deployment.
func (s *Store) LoadScanIDs(ctx context.Context, deployment string) (map[string]string, bool, error) {
	if deployment == "" {
		return nil, false, fmt.Errorf("deployment required")
	}
	rows, err := s.pool.Query(ctx, `SELECT stage, scan_id FROM scan_ids WHERE deployment=$1`, deployment)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var stage, scanID string
		if err := rows.Scan(&stage, &scanID); err != nil {
			return nil, false, err
		}
		out[stage] = scanID
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return out, len(out) > 0, nil
}

// SaveScanIDs upserts the scan id per stage for a deployment.
func (s *Store) SaveScanIDs(ctx context.Context, deployment string, byStage map[string]string) error {
	if deployment == "" {
		return fmt.Errorf("deployment required")
	}
	if len(byStage) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for stage, scanID := range byStage {
		batch.Queue(`
			INSERT INTO scan_ids (deployment, stage, scan_id, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (deployment, stage) DO UPDATE
			SET scan_id = EXCLUDED.scan_id, updated_at = now()
		`, deployment, stage, scanID)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range byStage {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// Migrate creates the tables used by the store.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}
