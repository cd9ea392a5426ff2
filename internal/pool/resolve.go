package pool

import (
	"oracleScope/internal/model"
	"oracleScope/internal/register"
)

// Register positions per stage contract. Index 0 is R4.
const (
	epochDatapointRegister = 0
	epochEndsRegister      = 1

	prepDatapointRegister     = 0
	prepNextEpochEndsRegister = 1

	datapointFromEpochRegister = 1
	datapointValueRegister     = 2
)

// Classify reports Preparation when the epoch-preparation scan returned at
// least one box and Epoch otherwise.
func Classify(preparationBoxes []model.Box) model.PoolBoxState {
	if len(preparationBoxes) > 0 {
		return model.Preparation
	}
	return model.Epoch
}

// ResolveEpochState decodes the first live-epoch box. local is the local
// oracle's datapoint state and may be nil.
func ResolveEpochState(liveEpochBoxes []model.Box, local *model.DatapointState) (model.EpochState, bool) {
	if len(liveEpochBoxes) == 0 {
		return model.EpochState{}, false
	}
	epochBox := liveEpochBoxes[0]

	latest, ok := stringRegister(epochBox, epochDatapointRegister)
	if !ok {
		return model.EpochState{}, false
	}
	ends, ok := unsignedRegister(epochBox, epochEndsRegister)
	if !ok {
		return model.EpochState{}, false
	}

	return model.EpochState{
		Funds:                  epochBox.Value,
		EpochID:                epochBox.ID,
		CommitDatapointInEpoch: local != nil && local.FromEpoch == epochBox.ID,
		EpochEnds:              ends,
		LatestPoolDatapoint:    latest,
	}, true
}

// ResolvePreparationState decodes the first epoch-preparation box.
func ResolvePreparationState(prepBoxes []model.Box) (model.PreparationState, bool) {
	if len(prepBoxes) == 0 {
		return model.PreparationState{}, false
	}
	prepBox := prepBoxes[0]

	latest, ok := stringRegister(prepBox, prepDatapointRegister)
	if !ok {
		return model.PreparationState{}, false
	}
	nextEnds, ok := unsignedRegister(prepBox, prepNextEpochEndsRegister)
	if !ok {
		return model.PreparationState{}, false
	}

	return model.PreparationState{
		Funds:               prepBox.Value,
		NextEpochEnds:       nextEnds,
		LatestPoolDatapoint: latest,
	}, true
}

// ResolveDatapointState decodes the first datapoint box, which belongs to the
// local oracle.
func ResolveDatapointState(datapointBoxes []model.Box) (model.DatapointState, bool) {
	if len(datapointBoxes) == 0 {
		return model.DatapointState{}, false
	}
	datapointBox := datapointBoxes[0]

	fromEpoch, ok := stringRegister(datapointBox, datapointFromEpochRegister)
	if !ok {
		return model.DatapointState{}, false
	}
	datapoint, ok := unsignedRegister(datapointBox, datapointValueRegister)
	if !ok {
		return model.DatapointState{}, false
	}

	return model.DatapointState{
		Datapoint: datapoint,
		FromEpoch: fromEpoch,
	}, true
}

// AggregateDeposits counts the deposit boxes and sums their values.
func AggregateDeposits(depositBoxes []model.Box) model.PoolDepositsState {
	state := model.PoolDepositsState{NumberOfBoxes: uint64(len(depositBoxes))}
	for _, b := range depositBoxes {
		state.TotalErgs += b.Value
	}
	return state
}

func stringRegister(b model.Box, index int) (string, bool) {
	v, ok := b.Register(index)
	if !ok {
		return "", false
	}
	return register.DecodeString(v)
}

// unsignedRegister rejects negative values instead of wrapping them.
func unsignedRegister(b model.Box, index int) (uint64, bool) {
	v, ok := b.Register(index)
	if !ok {
		return 0, false
	}
	n, ok := register.DecodeInteger(v)
	if !ok || n < 0 {
		return 0, false
	}
	return uint64(n), true
}
