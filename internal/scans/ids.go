package scans

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"oracleScope/internal/model"
)

// IDs maps each protocol stage to the node scan tracking it.
type IDs struct {
	EpochPreparation string `json:"epoch_preparation_scan_id"`
	LiveEpoch        string `json:"live_epoch_scan_id"`
	Datapoint        string `json:"datapoint_scan_id"`
	PoolDeposit      string `json:"pool_deposit_scan_id"`
}

// Complete reports whether every stage has a scan id.
func (ids IDs) Complete() bool {
	return ids.EpochPreparation != "" && ids.LiveEpoch != "" && ids.Datapoint != "" && ids.PoolDeposit != ""
}

// Get returns the scan id for a stage name.
func (ids IDs) Get(stage string) string {
	switch stage {
	case model.StageEpochPreparation:
		return ids.EpochPreparation
	case model.StageLiveEpoch:
		return ids.LiveEpoch
	case model.StageDatapoint:
		return ids.Datapoint
	case model.StagePoolDeposit:
		return ids.PoolDeposit
	default:
		return ""
	}
}

// Set stores the scan id for a stage name.
func (ids *IDs) Set(stage, scanID string) error {
	switch stage {
	case model.StageEpochPreparation:
		ids.EpochPreparation = scanID
	case model.StageLiveEpoch:
		ids.LiveEpoch = scanID
	case model.StageDatapoint:
		ids.Datapoint = scanID
	case model.StagePoolDeposit:
		ids.PoolDeposit = scanID
	default:
		return fmt.Errorf("unknown stage: %s", stage)
	}
	return nil
}

// UnmarshalJSON accepts scan ids written either as numbers or as strings.
func (ids *IDs) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	fields := map[string]*string{
		"epoch_preparation_scan_id": &ids.EpochPreparation,
		"live_epoch_scan_id":        &ids.LiveEpoch,
		"datapoint_scan_id":         &ids.Datapoint,
		"pool_deposit_scan_id":      &ids.PoolDeposit,
	}
	for key, dst := range fields {
		value, ok := raw[key]
		if !ok {
			continue
		}
		id, err := scanIDFromJSON(value)
		if err != nil {
			return fmt.Errorf("parse %s: %w", key, err)
		}
		*dst = id
	}
	return nil
}

func scanIDFromJSON(value json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	text := strings.TrimSpace(string(value))
	if text == "null" {
		return "", nil
	}
	if _, err := strconv.ParseUint(text, 10, 64); err != nil {
		return "", fmt.Errorf("invalid scan id: %s", text)
	}
	return text, nil
}
