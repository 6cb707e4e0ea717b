package model

// DecodeError records an event that could not be fetched or decoded.
type DecodeError struct {
	ContractHash string `json:"contract_hash"`
	EventIndex   uint64 `json:"event_index"`
	Kind         string `json:"kind"`
	Context      string `json:"context,omitempty"`
	Error        string `json:"error"`
	FailedAt     string `json:"failed_at"`
}
