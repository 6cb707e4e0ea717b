package model

import (
	"encoding/json"
)

// EventRecord is the normalized representation of a decoded contract event for storage.
type EventRecord struct {
	ContractHash  string          `json:"contract_hash"`
	EventIndex    uint64          `json:"event_index"`
	EventName     string          `json:"event_name"`
	Fields        json.RawMessage `json:"fields"`
	Raw           string          `json:"raw"`
	ExecutionHash string          `json:"execution_hash,omitempty"`
	IngestedAt    string          `json:"ingested_at"`
}

// MarshalJSON ensures EventRecord is encoded with stable field names.
func (er EventRecord) MarshalJSON() ([]byte, error) {
	type Alias EventRecord
	return json.Marshal(Alias(er))
}

// UnmarshalJSON decodes an EventRecord from JSON.
func (er *EventRecord) UnmarshalJSON(data []byte) error {
	type Alias EventRecord
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*er = EventRecord(a)
	return nil
}
