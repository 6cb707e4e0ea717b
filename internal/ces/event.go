package ces

import (
	"encoding/json"
	"fmt"

	"casperEvents/internal/clvalue"
	"casperEvents/internal/errs"
)

// EventPrefix starts the name of every stored event record.
const EventPrefix = "event_"

// Field is one decoded event field.
type Field struct {
	Name  string
	Value clvalue.Value
}

// Event is a decoded event record. Index is its position in the contract's event list.
type Event struct {
	Name   string
	Index  uint64
	Fields []Field
}

// Field returns the value of the named field.
func (e Event) Field(name string) (clvalue.Value, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return clvalue.Value{}, false
}

// WireBytes reproduces the stored record: the prefixed name followed by every field span.
func (e Event) WireBytes() ([]byte, error) {
	out, err := clvalue.AppendString(nil, EventPrefix+e.Name)
	if err != nil {
		return nil, &errs.SerializationError{Context: "event_name", Err: err}
	}
	for _, f := range e.Fields {
		if f.Value.IsZero() {
			return nil, &errs.SerializationError{Context: "field " + f.Name, Err: fmt.Errorf("value has no stored bytes")}
		}
		out = append(out, f.Value.Bytes()...)
	}
	return out, nil
}

type eventFieldJSON struct {
	Name  string        `json:"name"`
	Type  string        `json:"type"`
	Value clvalue.Value `json:"value"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	fields := make([]eventFieldJSON, 0, len(e.Fields))
	for _, f := range e.Fields {
		fields = append(fields, eventFieldJSON{Name: f.Name, Type: f.Value.Type.String(), Value: f.Value})
	}
	return json.Marshal(struct {
		Name   string           `json:"name"`
		Index  uint64           `json:"index"`
		Fields []eventFieldJSON `json:"fields"`
	}{e.Name, e.Index, fields})
}
