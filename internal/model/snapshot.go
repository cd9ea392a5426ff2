package model

import "time"

// PoolSnapshot collects one pass over every pool scan. Each scan is fetched
// once, so all parts derive from the same set of boxes. Parts that could not
// be resolved are nil; Unavailable names the stages whose scan failed.
type PoolSnapshot struct {
	ObservedAt  time.Time          `json:"observed_at"`
	Stage       PoolBoxState       `json:"stage"`
	Epoch       *EpochState        `json:"epoch,omitempty"`
	Preparation *PreparationState  `json:"preparation,omitempty"`
	Datapoint   *DatapointState    `json:"datapoint,omitempty"`
	Deposits    *PoolDepositsState `json:"deposits,omitempty"`
	Unavailable []string           `json:"unavailable,omitempty"`
}

// ScanFailed reports whether the scan for the named stage failed.
func (s PoolSnapshot) ScanFailed(stage string) bool {
	for _, name := range s.Unavailable {
		if name == stage {
			return true
		}
	}
	return false
}

// StageKnown reports whether Stage was classified from a successful
// preparation scan rather than defaulted.
func (s PoolSnapshot) StageKnown() bool {
	return !s.ScanFailed(StageEpochPreparation)
}

// Complete reports whether every scan succeeded.
func (s PoolSnapshot) Complete() bool {
	return len(s.Unavailable) == 0
}

// SameState reports whether two snapshots describe the same pool state,
// ignoring when they were taken.
func (s PoolSnapshot) SameState(other PoolSnapshot) bool {
	return s.Stage == other.Stage &&
		equalPtr(s.Epoch, other.Epoch) &&
		equalPtr(s.Preparation, other.Preparation) &&
		equalPtr(s.Datapoint, other.Datapoint) &&
		equalPtr(s.Deposits, other.Deposits)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
