package model

import "fmt"

// Stage identifies one of the protocol box categories by contract address and
// the node scan tracking it.
type Stage struct {
	Name            string `json:"name"`
	ContractAddress string `json:"contract_address"`
	ScanID          string `json:"scan_id"`
}

// Stage names.
const (
	StageEpochPreparation = "epoch_preparation"
	StageLiveEpoch        = "live_epoch"
	StageDatapoint        = "datapoint"
	StagePoolDeposit      = "pool_deposit"
)

// PoolBoxState is the stage the oracle pool box is currently in.
type PoolBoxState int

const (
	Preparation PoolBoxState = iota
	Epoch
)

func (s PoolBoxState) String() string {
	switch s {
	case Preparation:
		return "preparation"
	case Epoch:
		return "epoch"
	default:
		return fmt.Sprintf("PoolBoxState(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s PoolBoxState) MarshalText() ([]byte, error) {
	switch s {
	case Preparation, Epoch:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("invalid pool box state: %d", int(s))
	}
}

// UnmarshalText decodes a state name.
func (s *PoolBoxState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "preparation":
		*s = Preparation
	case "epoch":
		*s = Epoch
	default:
		return fmt.Errorf("invalid pool box state: %q", string(text))
	}
	return nil
}
