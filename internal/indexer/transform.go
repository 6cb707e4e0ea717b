package indexer

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"casperEvents/internal/ces"
	"casperEvents/internal/errs"
	"casperEvents/internal/model"
)

// NewEventRecord converts a decoded event into its storage form.
func NewEventRecord(contract string, ev ces.Event, ingestedAt time.Time) (model.EventRecord, error) {
	raw, err := ev.WireBytes()
	if err != nil {
		return model.EventRecord{}, err
	}
	encoded, err := json.Marshal(ev)
	if err != nil {
		return model.EventRecord{}, fmt.Errorf("marshal event %d: %w", ev.Index, err)
	}
	var body struct {
		Fields json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal(encoded, &body); err != nil {
		return model.EventRecord{}, fmt.Errorf("extract fields of event %d: %w", ev.Index, err)
	}

	return model.EventRecord{
		ContractHash: contract,
		EventIndex:   ev.Index,
		EventName:    ev.Name,
		Fields:       body.Fields,
		Raw:          hex.EncodeToString(raw),
		IngestedAt:   ingestedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

// NewDecodeError records why the event at index could not be stored.
func NewDecodeError(contract string, index uint64, err error, failedAt time.Time) model.DecodeError {
	kind, context := errs.Kind(err)
	return model.DecodeError{
		ContractHash: contract,
		EventIndex:   index,
		Kind:         kind,
		Context:      context,
		Error:        err.Error(),
		FailedAt:     failedAt.UTC().Format(time.RFC3339Nano),
	}
}
