package model

// Protocol identifies one oracle pool deployment and the local participant.
type Protocol struct {
	OracleAddress                   string `json:"oracle_address"`
	PoolNFT                         string `json:"oracle_pool_nft"`
	ParticipantToken                string `json:"oracle_pool_participant_token"`
	EpochPreparationContractAddress string `json:"epoch_preparation_contract_address"`
	LiveEpochContractAddress        string `json:"live_epoch_contract_address"`
	DatapointContractAddress        string `json:"datapoint_contract_address"`
	PoolDepositContractAddress      string `json:"pool_deposit_contract_address"`
}
