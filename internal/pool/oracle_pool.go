package pool

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"oracleScope/internal/model"
	"oracleScope/internal/scans"
)

// ScanProvider returns the unspent boxes currently matched by a node scan. An
// error means the provider failed; an empty slice is a valid empty result.
type ScanProvider interface {
	ScanBoxes(ctx context.Context, scanID string) ([]model.Box, error)
}

// OraclePool exposes the current state of the oracle pool protocol. It is
// read-only after construction and safe for concurrent use. Every query
// fetches fresh boxes, so two queries may observe different ledger heights.
type OraclePool struct {
	localOracleAddress string
	poolNFT            string
	participantToken   string

	epochPreparationStage model.Stage
	liveEpochStage        model.Stage
	datapointStage        model.Stage
	poolDepositStage      model.Stage

	provider ScanProvider
	logger   *zap.Logger
	now      func() time.Time
}

// New builds an OraclePool from protocol configuration and previously
// registered scan ids.
func New(protocol model.Protocol, ids scans.IDs, provider ScanProvider, logger *zap.Logger) *OraclePool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OraclePool{
		localOracleAddress: protocol.OracleAddress,
		poolNFT:            protocol.PoolNFT,
		participantToken:   protocol.ParticipantToken,
		epochPreparationStage: model.Stage{
			Name:            model.StageEpochPreparation,
			ContractAddress: protocol.EpochPreparationContractAddress,
			ScanID:          ids.EpochPreparation,
		},
		liveEpochStage: model.Stage{
			Name:            model.StageLiveEpoch,
			ContractAddress: protocol.LiveEpochContractAddress,
			ScanID:          ids.LiveEpoch,
		},
		datapointStage: model.Stage{
			Name:            model.StageDatapoint,
			ContractAddress: protocol.DatapointContractAddress,
			ScanID:          ids.Datapoint,
		},
		poolDepositStage: model.Stage{
			Name:            model.StagePoolDeposit,
			ContractAddress: protocol.PoolDepositContractAddress,
			ScanID:          ids.PoolDeposit,
		},
		provider: provider,
		logger:   logger,
		now:      time.Now,
	}
}

// LocalOracleAddress returns the address of the local oracle.
func (p *OraclePool) LocalOracleAddress() string { return p.localOracleAddress }

// PoolNFT returns the pool identity token id.
func (p *OraclePool) PoolNFT() string { return p.poolNFT }

// ParticipantToken returns the oracle participant token id.
func (p *OraclePool) ParticipantToken() string { return p.participantToken }

// Stages returns the four stage descriptors.
func (p *OraclePool) Stages() []model.Stage {
	return []model.Stage{p.epochPreparationStage, p.liveEpochStage, p.datapointStage, p.poolDepositStage}
}

// CheckOraclePoolStage reports which stage the pool box is in. A failed
// preparation scan is reported as Epoch.
func (p *OraclePool) CheckOraclePoolStage(ctx context.Context) model.PoolBoxState {
	boxes, ok := p.fetch(ctx, p.epochPreparationStage)
	if !ok {
		return model.Epoch
	}
	return Classify(boxes)
}

// LiveEpochState returns the state of the current live epoch, combined with
// whether the local oracle already posted a datapoint for it.
func (p *OraclePool) LiveEpochState(ctx context.Context) (model.EpochState, bool) {
	boxes, ok := p.fetch(ctx, p.liveEpochStage)
	if !ok {
		return model.EpochState{}, false
	}
	var local *model.DatapointState
	if dp, ok := p.DatapointState(ctx); ok {
		local = &dp
	}
	return p.resolveEpoch(boxes, local)
}

// PreparationState returns the state of the epoch preparation box.
func (p *OraclePool) PreparationState(ctx context.Context) (model.PreparationState, bool) {
	boxes, ok := p.fetch(ctx, p.epochPreparationStage)
	if !ok {
		return model.PreparationState{}, false
	}
	return p.resolvePreparation(boxes)
}

// DatapointState returns the state of the local oracle's datapoint box.
func (p *OraclePool) DatapointState(ctx context.Context) (model.DatapointState, bool) {
	boxes, ok := p.fetch(ctx, p.datapointStage)
	if !ok {
		return model.DatapointState{}, false
	}
	return p.resolveDatapoint(boxes)
}

// PoolDepositsState summarizes the pool deposit boxes. It is absent only when
// the scan itself failed.
func (p *OraclePool) PoolDepositsState(ctx context.Context) (model.PoolDepositsState, bool) {
	boxes, ok := p.fetch(ctx, p.poolDepositStage)
	if !ok {
		return model.PoolDepositsState{}, false
	}
	return p.resolveDeposits(boxes), true
}

type scanResult struct {
	boxes []model.Box
	ok    bool
}

// Snapshot fetches each of the four scans exactly once, concurrently, and
// derives every part from that single set of boxes. The stage and the parts
// therefore agree with each other: Preparation is only set when the stage is
// Preparation, and the epoch commit flag matches the returned Datapoint.
func (p *OraclePool) Snapshot(ctx context.Context) model.PoolSnapshot {
	stages := p.Stages()
	results := make([]scanResult, len(stages))

	var g errgroup.Group
	for i, stage := range stages {
		i, stage := i, stage
		g.Go(func() error {
			boxes, ok := p.fetch(ctx, stage)
			results[i] = scanResult{boxes: boxes, ok: ok}
			return nil
		})
	}
	_ = g.Wait()

	snap := model.PoolSnapshot{ObservedAt: p.now().UTC(), Stage: model.Epoch}
	for i, stage := range stages {
		if !results[i].ok {
			snap.Unavailable = append(snap.Unavailable, stage.Name)
		}
	}
	prep, live, point, deposit := results[0], results[1], results[2], results[3]

	if prep.ok {
		snap.Stage = Classify(prep.boxes)
		if state, ok := p.resolvePreparation(prep.boxes); ok {
			snap.Preparation = &state
		}
	}
	if point.ok {
		if state, ok := p.resolveDatapoint(point.boxes); ok {
			snap.Datapoint = &state
		}
	}
	if live.ok {
		if state, ok := p.resolveEpoch(live.boxes, snap.Datapoint); ok {
			snap.Epoch = &state
		}
	}
	if deposit.ok {
		state := p.resolveDeposits(deposit.boxes)
		snap.Deposits = &state
	}
	return snap
}

func (p *OraclePool) resolveEpoch(boxes []model.Box, local *model.DatapointState) (model.EpochState, bool) {
	p.checkSingleton(p.liveEpochStage, boxes)
	state, ok := ResolveEpochState(boxes, local)
	if !ok && len(boxes) > 0 {
		p.logger.Warn("decode live epoch box failed", zap.String("box_id", boxes[0].ID))
	}
	return state, ok
}

func (p *OraclePool) resolvePreparation(boxes []model.Box) (model.PreparationState, bool) {
	p.checkSingleton(p.epochPreparationStage, boxes)
	state, ok := ResolvePreparationState(boxes)
	if !ok && len(boxes) > 0 {
		p.logger.Warn("decode epoch preparation box failed", zap.String("box_id", boxes[0].ID))
	}
	return state, ok
}

func (p *OraclePool) resolveDatapoint(boxes []model.Box) (model.DatapointState, bool) {
	p.checkSingleton(p.datapointStage, boxes)
	state, ok := ResolveDatapointState(boxes)
	if !ok && len(boxes) > 0 {
		p.logger.Warn("decode datapoint box failed", zap.String("box_id", boxes[0].ID))
	}
	return state, ok
}

func (p *OraclePool) resolveDeposits(boxes []model.Box) model.PoolDepositsState {
	state := AggregateDeposits(boxes)
	p.logger.Debug("pool deposits", zap.Uint64("boxes", state.NumberOfBoxes), zap.Uint64("total_ergs", state.TotalErgs))
	return state
}

func (p *OraclePool) fetch(ctx context.Context, stage model.Stage) ([]model.Box, bool) {
	if p.provider == nil {
		p.logger.Warn("scan provider is nil", zap.String("stage", stage.Name))
		return nil, false
	}
	boxes, err := p.provider.ScanBoxes(ctx, stage.ScanID)
	if err != nil {
		p.logger.Warn("scan boxes unavailable",
			zap.String("stage", stage.Name),
			zap.String("scan_id", stage.ScanID),
			zap.Error(err),
		)
		return nil, false
	}
	return boxes, true
}

// checkSingleton logs when a stage that holds at most one box returned more.
func (p *OraclePool) checkSingleton(stage model.Stage, boxes []model.Box) {
	if len(boxes) <= 1 {
		return
	}
	p.logger.Warn("protocol inconsistency: multiple boxes for singleton stage",
		zap.String("stage", stage.Name),
		zap.Int("boxes", len(boxes)),
		zap.String("selected_box_id", boxes[0].ID),
	)
}
