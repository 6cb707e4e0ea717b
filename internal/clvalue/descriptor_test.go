package clvalue

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDescriptors() []Descriptor {
	return []Descriptor{
		BoolType, I32Type, I64Type, U8Type, U32Type, U64Type, U128Type, U256Type, U512Type,
		UnitType, StringType, KeyType, URefType, PublicKeyType, AnyType,
		OptionOf(U64Type),
		ListOf(U8Type),
		ByteArrayOf(32),
		ResultOf(StringType, U32Type),
		MapOf(StringType, ListOf(KeyType)),
		Tuple1Of(BoolType),
		Tuple2Of(StringType, U512Type),
		Tuple3Of(U8Type, OptionOf(PublicKeyType), ByteArrayOf(6)),
	}
}

func TestDescriptorBinaryRoundTrip(t *testing.T) {
	for _, d := range sampleDescriptors() {
		b, err := d.MarshalBinary()
		require.NoError(t, err)
		parsed, rest, err := ParseDescriptorBytes(append(b, 0xee))
		require.NoError(t, err, d.String())
		assert.Equal(t, []byte{0xee}, rest)
		assert.True(t, d.Equal(parsed), "%s != %s", d, parsed)
	}
}

func TestDescriptorBinaryTags(t *testing.T) {
	b, err := MapOf(StringType, ByteArrayOf(6)).MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{17, 10, 15, 6, 0, 0, 0}, b)

	_, _, err = ParseDescriptorBytes([]byte{23})
	requireDeserialization(t, err, "descriptor")
	_, _, err = ParseDescriptorBytes([]byte{14})
	requireDeserialization(t, err, "descriptor")
}

func nestedList(levels int) Descriptor {
	d := U8Type
	for i := 0; i < levels; i++ {
		d = ListOf(d)
	}
	return d
}

func TestDescriptorParsingUsesDecoderDepth(t *testing.T) {
	deep := nestedList(70)
	b := append(bytes.Repeat([]byte{byte(KindList)}, 70), byte(KindU8))
	text := strings.Repeat("List<", 70) + "U8" + strings.Repeat(">", 70)

	_, _, err := ParseDescriptorBytes(b)
	assert.ErrorIs(t, err, ErrDepthExceeded)
	_, err = ParseDescriptor(text)
	assert.ErrorIs(t, err, ErrDepthExceeded)

	dec := &Decoder{MaxDepth: 100}
	parsed, rest, err := dec.ParseDescriptorBytes(b)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.True(t, deep.Equal(parsed))

	parsed, err = dec.ParseDescriptor(text)
	require.NoError(t, err)
	assert.True(t, deep.Equal(parsed))

	_, _, err = (&Decoder{MaxDepth: 10}).ParseDescriptorBytes(nestedList(10).AppendBinary(nil))
	assert.ErrorIs(t, err, ErrDepthExceeded)
}

func TestDescriptorJSON(t *testing.T) {
	for _, d := range sampleDescriptors() {
		data, err := json.Marshal(d)
		require.NoError(t, err)
		var parsed Descriptor
		require.NoError(t, json.Unmarshal(data, &parsed), string(data))
		assert.True(t, d.Equal(parsed), "%s != %s", d, parsed)
	}

	var d Descriptor
	require.NoError(t, json.Unmarshal([]byte(`{"Map":{"key":"String","value":{"Tuple2":["U64",{"ByteArray":32}]}}}`), &d))
	assert.Equal(t, "Map<String,Tuple2<U64,ByteArray<32>>>", d.String())

	require.Error(t, json.Unmarshal([]byte(`"Option"`), &d))
	require.Error(t, json.Unmarshal([]byte(`{"Tuple2":["U8"]}`), &d))
}

func TestParseDescriptorText(t *testing.T) {
	for _, d := range sampleDescriptors() {
		parsed, err := ParseDescriptor(d.String())
		require.NoError(t, err)
		assert.True(t, d.Equal(parsed))
	}

	d, err := ParseDescriptor(" Option< FixedBytes<4> > ")
	require.NoError(t, err)
	assert.True(t, OptionOf(ByteArrayOf(4)).Equal(d))

	d, err = ParseDescriptor("List<StorageRef>")
	require.NoError(t, err)
	assert.True(t, ListOf(URefType).Equal(d))

	for _, bad := range []string{"", "Nope", "Option", "Map<U8>", "List<U8>>", "ByteArray<x>"} {
		_, err := ParseDescriptor(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseKeyForms(t *testing.T) {
	for _, s := range []string{
		"hash-0101010101010101010101010101010101010101010101010101010101010101",
		"account-hash-0202020202020202020202020202020202020202020202020202020202020202",
		"era-summary-0303030303030303030303030303030303030303030303030303030303030303",
		"dictionary-0404040404040404040404040404040404040404040404040404040404040404",
		"uref-0505050505050505050505050505050505050505050505050505050505050505-007",
		"era-42",
		"package-0606060606060606060606060606060606060606060606060606060606060606",
		"bid-addr-000707070707070707070707070707070707070707070707070707070707070707",
		"balance-hold-0008080808080808080808080808080808080808080808080808080808080808080100000000000000",
		"byte-code-00",
		"block-global-03",
	} {
		k, err := ParseKey(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, k.String())
	}
	for _, bad := range []string{"contract-00", "byte-code-0000", "bid-addr-09", "entity-01zz"} {
		_, err := ParseKey(bad)
		assert.Error(t, err, bad)
	}
}
