package main

import (
	"encoding/binary"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casperEvents/internal/ces"
	"casperEvents/internal/clvalue"
	"casperEvents/internal/errs"
)

func pingRecord(t *testing.T, n uint32) []byte {
	t.Helper()
	rec, err := clvalue.AppendString(nil, "event_Ping")
	require.NoError(t, err)
	return binary.LittleEndian.AppendUint32(rec, n)
}

func TestParseRawLine(t *testing.T) {
	raw := pingRecord(t, 9)

	record, got, err := parseRawLine([]byte(hex.EncodeToString(raw)), 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), record.EventIndex)
	assert.Equal(t, raw, got)

	line := `{"contract_hash":"hash-aa","event_index":17,"raw":"0x` + hex.EncodeToString(raw) + `"}`
	record, got, err = parseRawLine([]byte(line), 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(17), record.EventIndex)
	assert.Equal(t, "hash-aa", record.ContractHash)
	assert.Equal(t, raw, got)

	_, _, err = parseRawLine([]byte("zz"), 0)
	require.Error(t, err)
}

func TestDecodeRecord(t *testing.T) {
	schemas, err := ces.ParseSchemaYAML([]byte("Ping:\n  - name: n\n    type: U32\n"), nil)
	require.NoError(t, err)
	decoder := &clvalue.Decoder{}

	ev, err := decodeRecord(decoder, pingRecord(t, 9), schemas, 3)
	require.NoError(t, err)
	assert.Equal(t, "Ping", ev.Name)
	assert.Equal(t, uint64(3), ev.Index)
	n, ok := ev.Field("n")
	require.True(t, ok)
	assert.Equal(t, uint32(9), n.Leaf())

	_, err = decodeRecord(decoder, append(pingRecord(t, 9), 0x00), schemas, 3)
	require.Error(t, err)

	_, err = decodeRecord(decoder, pingRecord(t, 9)[:12], schemas, 3)
	var de *errs.DeserializationError
	require.ErrorAs(t, err, &de)
}
