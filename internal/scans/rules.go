package scans

import (
	"fmt"

	"oracleScope/internal/address"
	"oracleScope/internal/model"
	"oracleScope/internal/register"
)

// Rule is a node scan tracking rule.
type Rule struct {
	Predicate string `json:"predicate"`
	Args      []Rule `json:"args,omitempty"`
	AssetID   string `json:"assetId,omitempty"`
	Register  string `json:"register,omitempty"`
	Value     string `json:"value,omitempty"`
}

// And matches boxes satisfying every rule.
func And(rules ...Rule) Rule {
	return Rule{Predicate: "and", Args: rules}
}

// ContainsAsset matches boxes holding the token.
func ContainsAsset(tokenID string) Rule {
	return Rule{Predicate: "containsAsset", AssetID: tokenID}
}

// Equals matches boxes whose register equals the serialized value.
func Equals(reg string, value register.Value) Rule {
	return Rule{Predicate: "equals", Register: reg, Value: string(value)}
}

// Request is a scan to register for one stage.
type Request struct {
	Stage string
	Name  string
	Rule  Rule
}

// TrackingRules builds the scan requests for the four protocol stages.
func TrackingRules(protocol model.Protocol) ([]Request, error) {
	prepTree, err := contractTree(protocol.EpochPreparationContractAddress)
	if err != nil {
		return nil, fmt.Errorf("epoch preparation contract: %w", err)
	}
	liveTree, err := contractTree(protocol.LiveEpochContractAddress)
	if err != nil {
		return nil, fmt.Errorf("live epoch contract: %w", err)
	}
	datapointTree, err := contractTree(protocol.DatapointContractAddress)
	if err != nil {
		return nil, fmt.Errorf("datapoint contract: %w", err)
	}
	depositTree, err := contractTree(protocol.PoolDepositContractAddress)
	if err != nil {
		return nil, fmt.Errorf("pool deposit contract: %w", err)
	}
	oracleKey, err := oraclePubKey(protocol.OracleAddress)
	if err != nil {
		return nil, fmt.Errorf("oracle address: %w", err)
	}

	return []Request{
		{
			Stage: model.StageEpochPreparation,
			Name:  "Epoch Preparation Scan",
			Rule:  And(ContainsAsset(protocol.PoolNFT), Equals("R1", prepTree)),
		},
		{
			Stage: model.StageLiveEpoch,
			Name:  "Live Epoch Scan",
			Rule:  And(ContainsAsset(protocol.PoolNFT), Equals("R1", liveTree)),
		},
		{
			Stage: model.StageDatapoint,
			Name:  "Datapoint Scan",
			Rule: And(
				ContainsAsset(protocol.ParticipantToken),
				Equals("R1", datapointTree),
				Equals("R4", oracleKey),
			),
		},
		{
			Stage: model.StagePoolDeposit,
			Name:  "Pool Deposit Scan",
			Rule:  Equals("R1", depositTree),
		},
	}, nil
}

func contractTree(input string) (register.Value, error) {
	addr, err := address.Parse(input)
	if err != nil {
		return "", err
	}
	tree, err := addr.ErgoTree()
	if err != nil {
		return "", err
	}
	return register.EncodeBytes(tree), nil
}

func oraclePubKey(input string) (register.Value, error) {
	addr, err := address.Parse(input)
	if err != nil {
		return "", err
	}
	key, err := addr.PublicKey()
	if err != nil {
		return "", err
	}
	value, ok := register.EncodeGroupElement(key)
	if !ok {
		return "", fmt.Errorf("invalid public key length %d", len(key))
	}
	return value, nil
}
