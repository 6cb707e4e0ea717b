package model

// Checkpoint tracks the next event index to sync for one contract.
type Checkpoint struct {
	ContractHash string `json:"contract_hash"`
	NextIndex    uint64 `json:"next_index"`
	UpdatedAt    string `json:"updated_at"`
}
