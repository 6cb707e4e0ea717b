package ces

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"casperEvents/internal/clvalue"
	"casperEvents/internal/errs"
)

var recordType = clvalue.ListOf(clvalue.U8Type)

// Fetcher reads event records of one contract and decodes them against a schema catalog.
// Remote reads are not retried.
type Fetcher struct {
	Decoder *clvalue.Decoder

	ledger Ledger
	refs   MetadataRefs
	logger *zap.Logger
}

func NewFetcher(ledger Ledger, refs MetadataRefs, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		Decoder: &clvalue.Decoder{},
		ledger:  ledger,
		refs:    refs,
		logger:  logger.With(zap.String("contract", refs.Contract.Hex())),
	}
}

func (f *Fetcher) Refs() MetadataRefs { return f.refs }

// Schemas fetches the contract's schema catalog.
func (f *Fetcher) Schemas(ctx context.Context) (Schemas, error) {
	return FetchSchemas(ctx, f.ledger, f.refs, f.Decoder)
}

// Count reads the number of events emitted so far.
func (f *Fetcher) Count(ctx context.Context) (uint32, error) {
	stored, err := f.ledger.ReadValue(ctx, f.refs.Length)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", LengthKey, err)
	}
	if stored.Type.Kind != clvalue.KindU32 {
		return 0, errs.Unexpected("%s has type %s, want U32", LengthKey, stored.Type)
	}
	v, rest, err := f.Decoder.Decode(clvalue.U32Type, stored.Bytes)
	if err != nil {
		return 0, err
	}
	if len(rest) != 0 {
		return 0, errs.Deserialization(LengthKey, fmt.Errorf("%d trailing bytes", len(rest)))
	}
	return v.Leaf().(uint32), nil
}

// Event reads and decodes the record stored at index.
func (f *Fetcher) Event(ctx context.Context, index uint64, schemas Schemas) (Event, error) {
	key := strconv.FormatUint(index, 10)
	stored, err := f.ledger.ReadDictionaryItem(ctx, f.refs.Events, key)
	if err != nil {
		return Event{}, fmt.Errorf("read event %d: %w", index, err)
	}
	raw, err := unwrapRecord(stored)
	if err != nil {
		return Event{}, fmt.Errorf("event %d: %w", index, err)
	}
	ev, rest, err := f.ParseEvent(raw, schemas)
	if err != nil {
		return Event{}, fmt.Errorf("event %d: %w", index, err)
	}
	if len(rest) != 0 {
		f.logger.Debug("event record has trailing bytes",
			zap.Uint64("index", index), zap.String("event", ev.Name), zap.Int("trailing", len(rest)))
	}
	ev.Index = index
	return ev, nil
}

// ParseEvent decodes a raw record and returns the unconsumed remainder.
func (f *Fetcher) ParseEvent(raw []byte, schemas Schemas) (Event, []byte, error) {
	return parseEvent(f.Decoder, raw, schemas)
}

// ParseEvent decodes a raw record with the default decoder.
func ParseEvent(raw []byte, schemas Schemas) (Event, []byte, error) {
	return parseEvent(&clvalue.Decoder{}, raw, schemas)
}

func parseEvent(dec *clvalue.Decoder, raw []byte, schemas Schemas) (Event, []byte, error) {
	prefixed, rest, err := clvalue.ReadString(raw)
	if err != nil {
		return Event{}, raw, errs.Deserialization("event_name", err)
	}
	name, ok := strings.CutPrefix(prefixed, EventPrefix)
	if !ok {
		return Event{}, raw, errs.Deserialization("event_name", fmt.Errorf("%q lacks the %q prefix", prefixed, EventPrefix))
	}
	schema, ok := schemas.Lookup(name)
	if !ok {
		return Event{}, raw, &errs.NotFoundError{What: "schema for event " + name}
	}
	ev := Event{Name: name, Fields: make([]Field, 0, len(schema.Fields))}
	for _, field := range schema.Fields {
		var v clvalue.Value
		v, rest, err = dec.Decode(field.Type, rest)
		if err != nil {
			return Event{}, raw, fmt.Errorf("%s.%s: %w", name, field.Name, err)
		}
		ev.Fields = append(ev.Fields, Field{Name: field.Name, Value: v})
	}
	return ev, rest, nil
}

// EventsOfExecution decodes every event record written by one execution, in the order
// the execution reports the writes.
func (f *Fetcher) EventsOfExecution(ctx context.Context, executionHash common.Hash, schemas Schemas) ([]Event, error) {
	writes, err := f.ledger.ExecutionEffects(ctx, executionHash)
	if err != nil {
		return nil, fmt.Errorf("effects of %s: %w", executionHash.Hex(), err)
	}
	var events []Event
	for _, w := range writes {
		if !strings.HasPrefix(w.Key, "dictionary-") {
			continue
		}
		key, err := clvalue.ParseKey(w.Key)
		if err != nil {
			return nil, &errs.UnexpectedError{Context: "write key " + w.Key, Err: err}
		}
		dv, err := ParseDictionaryValue(w.Value.Bytes)
		if err != nil {
			return nil, fmt.Errorf("write %s: %w", w.Key, err)
		}
		if dv.Seed != f.refs.Events.Addr {
			continue
		}
		if DictionaryAddress(dv.Seed, dv.ItemKey) != key.Hash {
			return nil, errs.Unexpected("write %s does not match its item key %q", w.Key, dv.ItemKey)
		}
		index, err := strconv.ParseUint(string(dv.ItemKey), 10, 64)
		if err != nil {
			return nil, &errs.UnexpectedError{Context: "event item key " + strconv.Quote(string(dv.ItemKey)), Err: err}
		}
		raw, err := unwrapRecord(dv.Value)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", index, err)
		}
		ev, _, err := f.ParseEvent(raw, schemas)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", index, err)
		}
		ev.Index = index
		events = append(events, ev)
	}
	f.logger.Debug("decoded execution events",
		zap.String("execution", executionHash.Hex()), zap.Int("writes", len(writes)), zap.Int("events", len(events)))
	return events, nil
}

// unwrapRecord strips the List<U8> container an event record is stored in.
func unwrapRecord(stored StoredValue) ([]byte, error) {
	if !stored.Type.Equal(recordType) {
		return nil, errs.Unexpected("event record has type %s, want %s", stored.Type, recordType)
	}
	raw, rest, err := clvalue.ReadBytes(stored.Bytes)
	if err != nil {
		return nil, errs.Deserialization("event record", err)
	}
	if len(rest) != 0 {
		return nil, errs.Deserialization("event record", fmt.Errorf("%d trailing bytes", len(rest)))
	}
	return raw, nil
}
