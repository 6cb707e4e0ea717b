package ces

import (
	"bytes"
	"context"
	"encoding/binary"
	"strconv"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"casperEvents/internal/clvalue"
	"casperEvents/internal/errs"
)

var (
	testContract  = common.BytesToHash(bytes.Repeat([]byte{0xc0}, 32))
	testSchemaRef = clvalue.URef{Addr: common.BytesToHash(bytes.Repeat([]byte{0x01}, 32)), Access: clvalue.AccessReadAddWrite}
	testLengthRef = clvalue.URef{Addr: common.BytesToHash(bytes.Repeat([]byte{0x02}, 32)), Access: clvalue.AccessReadAddWrite}
	testEventsRef = clvalue.URef{Addr: common.BytesToHash(bytes.Repeat([]byte{0x03}, 32)), Access: clvalue.AccessReadAddWrite}
)

type fakeLedger struct {
	named   map[string]string
	values  map[clvalue.URef]StoredValue
	items   map[string]StoredValue
	effects map[common.Hash][]Write
	calls   map[string]int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		named: map[string]string{
			SchemaKey: testSchemaRef.String(),
			LengthKey: testLengthRef.String(),
			EventsKey: testEventsRef.String(),
			"other":   "hash-0000000000000000000000000000000000000000000000000000000000000000",
		},
		values:  make(map[clvalue.URef]StoredValue),
		items:   make(map[string]StoredValue),
		effects: make(map[common.Hash][]Write),
		calls:   make(map[string]int),
	}
}

func (l *fakeLedger) NamedKeys(_ context.Context, contract common.Hash) (map[string]string, error) {
	l.calls["NamedKeys"]++
	if contract != testContract {
		return nil, &errs.NotFoundError{What: "contract " + contract.Hex()}
	}
	return l.named, nil
}

func (l *fakeLedger) ReadValue(_ context.Context, ref clvalue.URef) (StoredValue, error) {
	l.calls["ReadValue"]++
	v, ok := l.values[ref]
	if !ok {
		return StoredValue{}, &errs.NotFoundError{What: ref.String()}
	}
	return v, nil
}

func (l *fakeLedger) ReadDictionaryItem(_ context.Context, seed clvalue.URef, itemKey string) (StoredValue, error) {
	l.calls["ReadDictionaryItem"]++
	if seed != testEventsRef {
		return StoredValue{}, &errs.NotFoundError{What: "dictionary " + seed.String()}
	}
	v, ok := l.items[itemKey]
	if !ok {
		return StoredValue{}, &errs.NotFoundError{What: "dictionary item " + itemKey}
	}
	return v, nil
}

func (l *fakeLedger) ExecutionEffects(_ context.Context, executionHash common.Hash) ([]Write, error) {
	l.calls["ExecutionEffects"]++
	writes, ok := l.effects[executionHash]
	if !ok {
		return nil, &errs.NotFoundError{What: "execution " + executionHash.Hex()}
	}
	return writes, nil
}

func testRefs() MetadataRefs {
	return MetadataRefs{Contract: testContract, Schema: testSchemaRef, Length: testLengthRef, Events: testEventsRef}
}

func testSchemas(t *testing.T) Schemas {
	t.Helper()
	schemas, err := NewSchemas(
		Schema{Name: "Mint", Fields: []SchemaField{
			{Name: "recipient", Type: clvalue.KeyType},
			{Name: "token_ids", Type: clvalue.ListOf(clvalue.U64Type)},
			{Name: "amount", Type: clvalue.U512Type},
		}},
		Schema{Name: "Burn", Fields: []SchemaField{
			{Name: "owner", Type: clvalue.KeyType},
			{Name: "memo", Type: clvalue.OptionOf(clvalue.StringType)},
		}},
	)
	require.NoError(t, err)
	return schemas
}

func appendString(dst []byte, s string) []byte {
	out, _ := clvalue.AppendString(dst, s)
	return out
}

func accountKeyBytes(fill byte) []byte {
	return append([]byte{byte(clvalue.KeyTagAccount)}, bytes.Repeat([]byte{fill}, 32)...)
}

// mintRecord encodes a Mint event: recipient, token_ids [1,6,3,3], amount 1000.
func mintRecord() []byte {
	out := appendString(nil, "event_Mint")
	out = append(out, accountKeyBytes(0xaa)...)
	out = binary.LittleEndian.AppendUint32(out, 4)
	for _, id := range []uint64{1, 6, 3, 3} {
		out = binary.LittleEndian.AppendUint64(out, id)
	}
	return append(out, 2, 0xe8, 0x03)
}

func burnRecord(memo string) []byte {
	out := appendString(nil, "event_Burn")
	out = append(out, accountKeyBytes(0xbb)...)
	out = append(out, clvalue.OptionSomeTag)
	return appendString(out, memo)
}

func storedRecord(raw []byte) StoredValue {
	b, _ := clvalue.AppendBytes(nil, raw)
	return StoredValue{Type: recordType, Bytes: b}
}

func dictionaryWrite(t *testing.T, seed common.Hash, index int, raw []byte) Write {
	t.Helper()
	itemKey := strconv.Itoa(index)
	dv := DictionaryValue{Value: storedRecord(raw), Seed: seed, ItemKey: []byte(itemKey)}
	b, err := dv.MarshalBinary()
	require.NoError(t, err)
	return Write{
		Key:   DictionaryKey(seed, itemKey),
		Value: StoredValue{Type: clvalue.AnyType, Bytes: b},
	}
}
