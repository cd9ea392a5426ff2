package pool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"oracleScope/internal/model"
	"oracleScope/internal/scans"
)

type fakeProvider struct {
	mu     sync.Mutex
	boxes  map[string][]model.Box
	errs   map[string]error
	counts map[string]int
	// next replaces a scan's boxes after it is served once.
	next map[string][]model.Box
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		boxes:  make(map[string][]model.Box),
		errs:   make(map[string]error),
		counts: make(map[string]int),
		next:   make(map[string][]model.Box),
	}
}

func (f *fakeProvider) ScanBoxes(_ context.Context, scanID string) ([]model.Box, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[scanID]++
	if err := f.errs[scanID]; err != nil {
		return nil, err
	}
	out := make([]model.Box, len(f.boxes[scanID]))
	copy(out, f.boxes[scanID])
	if boxes, ok := f.next[scanID]; ok {
		f.boxes[scanID] = boxes
		delete(f.next, scanID)
	}
	return out, nil
}

func (f *fakeProvider) calls(scanID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[scanID]
}

var testIDs = scans.IDs{EpochPreparation: "1", LiveEpoch: "2", Datapoint: "3", PoolDeposit: "4"}

var testProtocol = model.Protocol{
	OracleAddress:                   "oracle",
	PoolNFT:                         "nft",
	ParticipantToken:                "participant",
	EpochPreparationContractAddress: "prep",
	LiveEpochContractAddress:        "live",
	DatapointContractAddress:        "datapoint",
	PoolDepositContractAddress:      "deposit",
}

func TestOraclePoolStages(t *testing.T) {
	p := New(testProtocol, testIDs, newFakeProvider(), nil)

	stages := p.Stages()
	require.Len(t, stages, 4)
	assert.Equal(t, model.Stage{Name: model.StageEpochPreparation, ContractAddress: "prep", ScanID: "1"}, stages[0])
	assert.Equal(t, model.Stage{Name: model.StagePoolDeposit, ContractAddress: "deposit", ScanID: "4"}, stages[3])
	assert.Equal(t, "oracle", p.LocalOracleAddress())
	assert.Equal(t, "nft", p.PoolNFT())
	assert.Equal(t, "participant", p.ParticipantToken())
}

func TestCheckOraclePoolStage(t *testing.T) {
	provider := newFakeProvider()
	p := New(testProtocol, testIDs, provider, nil)
	ctx := context.Background()

	provider.boxes["1"] = []model.Box{{ID: "P1"}}
	assert.Equal(t, model.Preparation, p.CheckOraclePoolStage(ctx))

	provider.boxes["1"] = nil
	assert.Equal(t, model.Epoch, p.CheckOraclePoolStage(ctx))

	provider.errs["1"] = errors.New("connection refused")
	assert.Equal(t, model.Epoch, p.CheckOraclePoolStage(ctx))
}

func TestLiveEpochStateUsesLocalDatapoint(t *testing.T) {
	provider := newFakeProvider()
	provider.boxes["2"] = []model.Box{epochBox("E1", 7000, "1.2345", 500)}
	provider.boxes["3"] = []model.Box{datapointBox("E1", 12345)}
	p := New(testProtocol, testIDs, provider, nil)

	state, ok := p.LiveEpochState(context.Background())
	require.True(t, ok)
	assert.True(t, state.CommitDatapointInEpoch)
	assert.Equal(t, uint64(500), state.EpochEnds)

	provider.boxes["3"] = []model.Box{datapointBox("E0", 12345)}
	state, ok = p.LiveEpochState(context.Background())
	require.True(t, ok)
	assert.False(t, state.CommitDatapointInEpoch)

	provider.errs["3"] = errors.New("timeout")
	state, ok = p.LiveEpochState(context.Background())
	require.True(t, ok)
	assert.False(t, state.CommitDatapointInEpoch)
}

func TestLiveEpochStateProviderFailure(t *testing.T) {
	provider := newFakeProvider()
	provider.errs["2"] = errors.New("node down")
	p := New(testProtocol, testIDs, provider, nil)

	_, ok := p.LiveEpochState(context.Background())
	assert.False(t, ok)
}

func TestQueriesRefetchEveryCall(t *testing.T) {
	provider := newFakeProvider()
	provider.boxes["4"] = []model.Box{{Value: 100}}
	p := New(testProtocol, testIDs, provider, nil)
	ctx := context.Background()

	first, ok := p.PoolDepositsState(ctx)
	require.True(t, ok)
	assert.Equal(t, uint64(100), first.TotalErgs)

	provider.mu.Lock()
	provider.boxes["4"] = []model.Box{{Value: 100}, {Value: 250}}
	provider.mu.Unlock()

	second, ok := p.PoolDepositsState(ctx)
	require.True(t, ok)
	assert.Equal(t, model.PoolDepositsState{NumberOfBoxes: 2, TotalErgs: 350}, second)
	assert.Equal(t, 2, provider.calls("4"))
}

func TestPoolDepositsStateEmptyVersusFailure(t *testing.T) {
	provider := newFakeProvider()
	p := New(testProtocol, testIDs, provider, nil)
	ctx := context.Background()

	state, ok := p.PoolDepositsState(ctx)
	require.True(t, ok)
	assert.Equal(t, model.PoolDepositsState{}, state)

	provider.errs["4"] = errors.New("node down")
	_, ok = p.PoolDepositsState(ctx)
	assert.False(t, ok)
}

func TestPreparationAndDatapointState(t *testing.T) {
	provider := newFakeProvider()
	provider.boxes["1"] = []model.Box{epochBox("P1", 900, "0.98", 640)}
	provider.boxes["3"] = []model.Box{datapointBox("E1", -3)}
	p := New(testProtocol, testIDs, provider, nil)
	ctx := context.Background()

	prep, ok := p.PreparationState(ctx)
	require.True(t, ok)
	assert.Equal(t, uint64(640), prep.NextEpochEnds)

	_, ok = p.DatapointState(ctx)
	assert.False(t, ok)
}

func TestMultipleSingletonBoxesAreLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	provider := newFakeProvider()
	provider.boxes["2"] = []model.Box{
		epochBox("E1", 1, "1.0", 100),
		epochBox("E2", 2, "2.0", 200),
	}
	p := New(testProtocol, testIDs, provider, zap.New(core))

	state, ok := p.LiveEpochState(context.Background())
	require.True(t, ok)
	assert.Equal(t, "E1", state.EpochID)

	entries := logs.FilterMessage("protocol inconsistency: multiple boxes for singleton stage").All()
	require.Len(t, entries, 1)
	assert.Equal(t, model.StageLiveEpoch, entries[0].ContextMap()["stage"])
	assert.Equal(t, int64(2), entries[0].ContextMap()["boxes"])
}

func TestSnapshot(t *testing.T) {
	provider := newFakeProvider()
	provider.boxes["2"] = []model.Box{epochBox("E1", 7000, "1.2345", 500)}
	provider.boxes["3"] = []model.Box{datapointBox("E1", 12345)}
	provider.boxes["4"] = []model.Box{{Value: 100}, {Value: 250}}
	p := New(testProtocol, testIDs, provider, nil)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	snap := p.Snapshot(context.Background())
	assert.Equal(t, fixed, snap.ObservedAt)
	assert.Equal(t, model.Epoch, snap.Stage)
	require.NotNil(t, snap.Epoch)
	assert.True(t, snap.Epoch.CommitDatapointInEpoch)
	assert.Nil(t, snap.Preparation)
	require.NotNil(t, snap.Datapoint)
	assert.Equal(t, uint64(12345), snap.Datapoint.Datapoint)
	require.NotNil(t, snap.Deposits)
	assert.Equal(t, uint64(350), snap.Deposits.TotalErgs)
	assert.True(t, snap.StageKnown())
	assert.True(t, snap.Complete())
}

func TestSnapshotFetchesEachScanOnce(t *testing.T) {
	provider := newFakeProvider()
	provider.boxes["1"] = []model.Box{epochBox("P1", 900, "0.98", 640)}
	provider.boxes["2"] = []model.Box{epochBox("E1", 7000, "1.2345", 500)}
	provider.boxes["3"] = []model.Box{datapointBox("E1", 12345)}
	p := New(testProtocol, testIDs, provider, nil)

	p.Snapshot(context.Background())
	for _, id := range []string{"1", "2", "3", "4"} {
		assert.Equal(t, 1, provider.calls(id), "scan %s", id)
	}
}

func TestSnapshotPartsAgreeWhenScansChange(t *testing.T) {
	provider := newFakeProvider()
	provider.boxes["1"] = []model.Box{epochBox("P1", 900, "0.98", 640)}
	provider.next["1"] = nil
	provider.boxes["2"] = []model.Box{epochBox("E1", 7000, "1.2345", 500)}
	provider.boxes["3"] = []model.Box{datapointBox("E1", 12345)}
	provider.next["3"] = []model.Box{datapointBox("E0", 12000)}
	p := New(testProtocol, testIDs, provider, nil)

	snap := p.Snapshot(context.Background())
	assert.Equal(t, model.Preparation, snap.Stage)
	require.NotNil(t, snap.Preparation)
	assert.Equal(t, uint64(640), snap.Preparation.NextEpochEnds)

	require.NotNil(t, snap.Datapoint)
	require.NotNil(t, snap.Epoch)
	assert.Equal(t, "E1", snap.Datapoint.FromEpoch)
	assert.True(t, snap.Epoch.CommitDatapointInEpoch)
}

func TestSnapshotPreparationScanFailure(t *testing.T) {
	provider := newFakeProvider()
	provider.errs["1"] = errors.New("node down")
	provider.boxes["2"] = []model.Box{epochBox("E1", 7000, "1.2345", 500)}
	p := New(testProtocol, testIDs, provider, nil)

	snap := p.Snapshot(context.Background())
	assert.Equal(t, model.Epoch, snap.Stage)
	assert.Nil(t, snap.Preparation)
	assert.False(t, snap.StageKnown())
	assert.False(t, snap.Complete())
	assert.Equal(t, []string{model.StageEpochPreparation}, snap.Unavailable)

	require.NotNil(t, snap.Epoch)
	assert.False(t, snap.Epoch.CommitDatapointInEpoch)
	assert.Nil(t, snap.Datapoint)
	assert.False(t, snap.ScanFailed(model.StageDatapoint))
}

func TestNilProviderReportsAbsence(t *testing.T) {
	p := New(testProtocol, testIDs, nil, nil)
	ctx := context.Background()

	assert.Equal(t, model.Epoch, p.CheckOraclePoolStage(ctx))
	_, ok := p.PoolDepositsState(ctx)
	assert.False(t, ok)
}
