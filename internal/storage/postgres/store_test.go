package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"oracleScope/internal/model"
)

// setupTestStore starts a PostgreSQL container and applies the schema.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	store, err := NewStore(ctx, dsn)
	require.NoError(t, err, "failed to create store")
	t.Cleanup(store.Close)

	require.NoError(t, store.Migrate(ctx), "failed to apply schema")
	return store
}

func TestStore_SnapshotsRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, ok, err := store.LatestSnapshot(ctx, "nft")
	require.NoError(t, err)
	assert.False(t, ok)

	observed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	older := model.SnapshotRecord{
		Deployment: "nft",
		PoolSnapshot: model.PoolSnapshot{
			ObservedAt:  observed,
			Stage:       model.Preparation,
			Preparation: &model.PreparationState{Funds: 10, NextEpochEnds: 400, LatestPoolDatapoint: "1.0"},
		},
	}
	newer := model.SnapshotRecord{
		Deployment: "nft",
		PoolSnapshot: model.PoolSnapshot{
			ObservedAt: observed.Add(time.Minute),
			Stage:      model.Epoch,
			Epoch: &model.EpochState{
				Funds:                  20,
				EpochID:                "E1",
				CommitDatapointInEpoch: true,
				EpochEnds:              500,
				LatestPoolDatapoint:    "1.2345",
			},
			Deposits: &model.PoolDepositsState{NumberOfBoxes: 2, TotalErgs: 350},
		},
	}

	require.NoError(t, store.PutSnapshotBatch(ctx, []model.SnapshotRecord{older, newer}))
	// Re-inserting the same observation is a no-op.
	require.NoError(t, store.PutSnapshotBatch(ctx, []model.SnapshotRecord{newer}))

	latest, ok, err := store.LatestSnapshot(ctx, "nft")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, model.Epoch, latest.Stage)
	require.NotNil(t, latest.Epoch)
	assert.Equal(t, *newer.Epoch, *latest.Epoch)
	require.NotNil(t, latest.Deposits)
	assert.Equal(t, uint64(350), latest.Deposits.TotalErgs)
	assert.Nil(t, latest.Preparation)
	assert.True(t, newer.ObservedAt.Equal(latest.ObservedAt))
}

func TestStore_ScanIDs(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, ok, err := store.LoadScanIDs(ctx, "nft")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SaveScanIDs(ctx, "nft", map[string]string{
		model.StageEpochPreparation: "1",
		model.StageLiveEpoch:        "2",
	}))
	require.NoError(t, store.SaveScanIDs(ctx, "nft", map[string]string{
		model.StageLiveEpoch:   "22",
		model.StageDatapoint:   "3",
		model.StagePoolDeposit: "4",
	}))

	got, ok, err := store.LoadScanIDs(ctx, "nft")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]string{
		model.StageEpochPreparation: "1",
		model.StageLiveEpoch:        "22",
		model.StageDatapoint:        "3",
		model.StagePoolDeposit:      "4",
	}, got)

	_, _, err = store.LoadScanIDs(ctx, "")
	assert.Error(t, err)
}
