package model

// EpochState is the decoded live-epoch box.
type EpochState struct {
	Funds                  NanoErg     `json:"funds"`
	EpochID                EpochID     `json:"epoch_id"`
	CommitDatapointInEpoch bool        `json:"commit_datapoint_in_epoch"`
	EpochEnds              BlockHeight `json:"epoch_ends"`
	LatestPoolDatapoint    string      `json:"latest_pool_datapoint"`
}

// PreparationState is the decoded epoch-preparation box.
type PreparationState struct {
	Funds               NanoErg     `json:"funds"`
	NextEpochEnds       BlockHeight `json:"next_epoch_ends"`
	LatestPoolDatapoint string      `json:"latest_pool_datapoint"`
}

// DatapointState is the decoded datapoint box of the local oracle.
type DatapointState struct {
	Datapoint uint64  `json:"datapoint"`
	FromEpoch EpochID `json:"from_epoch"`
}

// PoolDepositsState summarizes all pool deposit boxes.
type PoolDepositsState struct {
	NumberOfBoxes uint64 `json:"number_of_boxes"`
	TotalErgs     uint64 `json:"total_ergs"`
}
