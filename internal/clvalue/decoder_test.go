package clvalue

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casperEvents/internal/errs"
)

func u32le(v uint32) []byte { return binary.LittleEndian.AppendUint32(nil, v) }

func u64le(v uint64) []byte { return binary.LittleEndian.AppendUint64(nil, v) }

func str(s string) []byte {
	out, _ := AppendString(nil, s)
	return out
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// roundTrip decodes b fully and checks that re-encoding is byte exact and idempotent.
func roundTrip(t *testing.T, d Descriptor, b []byte) Value {
	t.Helper()
	v, rest, err := Decode(d, b)
	require.NoError(t, err, "decode %s", d)
	assert.Empty(t, rest, "all bytes should have been consumed")
	assert.Equal(t, b, Reencode(v))

	again, rest, err := Decode(d, Reencode(v))
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, Reencode(v), Reencode(again))
	return v
}

func requireDeserialization(t *testing.T, err error, context string) {
	t.Helper()
	var de *errs.DeserializationError
	require.True(t, errors.As(err, &de), "want DeserializationError, got %v", err)
	assert.Equal(t, context, de.Context)
}

func TestStringRoundTrip(t *testing.T) {
	v := roundTrip(t, StringType, str("hello"))
	assert.Equal(t, "hello", v.Leaf())
	assert.Equal(t, 9, v.Len())
}

func TestStringInvalidUTF8(t *testing.T) {
	_, _, err := Decode(StringType, concat(u32le(2), []byte{0xff, 0xfe}))
	requireDeserialization(t, err, "String")
}

func TestPublicKeyRoundTrip(t *testing.T) {
	v := roundTrip(t, PublicKeyType, []byte{0})
	assert.Equal(t, PublicKey{Tag: PublicKeySystem}, v.Leaf())

	ed := make([]byte, 32)
	for i := range ed {
		ed[i] = byte(i)
	}
	v = roundTrip(t, PublicKeyType, concat([]byte{1}, ed))
	assert.Equal(t, "01"+"000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f", v.Native())

	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	compressed := crypto.CompressPubkey(&priv.PublicKey)
	v = roundTrip(t, PublicKeyType, concat([]byte{2}, compressed))
	assert.Equal(t, PublicKeySecp256k1, v.Leaf().(PublicKey).Tag)
}

func TestPublicKeyRejectsBadSecp256k1(t *testing.T) {
	bad := make([]byte, 33)
	bad[0] = 0x05
	_, _, err := Decode(PublicKeyType, concat([]byte{2}, bad))
	requireDeserialization(t, err, "PublicKey")
}

func TestOptionRoundTrip(t *testing.T) {
	some := roundTrip(t, OptionOf(U64Type), concat([]byte{1}, u64le(20)))
	assert.True(t, some.IsSome())
	assert.Equal(t, uint64(20), some.Native())

	none := roundTrip(t, OptionOf(U64Type), []byte{0})
	assert.False(t, none.IsSome())
	assert.Nil(t, none.Native())
}

func TestOptionTagValidation(t *testing.T) {
	_, _, err := Decode(OptionOf(U64Type), concat([]byte{2}, u64le(1)))
	requireDeserialization(t, err, "Option")

	v, rest, err := Decode(OptionOf(U64Type), []byte{0, 0xaa})
	require.NoError(t, err)
	assert.Equal(t, 1, v.Len())
	assert.Equal(t, []byte{0xaa}, rest)

	v, rest, err = Decode(OptionOf(U64Type), concat([]byte{1}, u64le(7), []byte{0xbb}))
	require.NoError(t, err)
	assert.Equal(t, 9, v.Len())
	assert.Equal(t, []byte{0xbb}, rest)
	assert.Equal(t, uint64(7), v.Items()[0].Leaf())
}

func TestListLiteral(t *testing.T) {
	b := concat(u32le(4), u64le(1), u64le(6), u64le(3), u64le(3))
	v := roundTrip(t, ListOf(U64Type), b)
	assert.Equal(t, 36, v.Len())
	require.Len(t, v.Items(), 4)
	assert.Equal(t, []interface{}{uint64(1), uint64(6), uint64(3), uint64(3)}, v.Native())

	empty := roundTrip(t, ListOf(U64Type), u32le(0))
	assert.Empty(t, empty.Items())
}

func TestListTruncatedElement(t *testing.T) {
	// two U64s cannot fit in ten bytes, so the count is refused up front
	_, _, err := Decode(ListOf(U64Type), concat(u32le(2), u64le(1), []byte{1, 2}))
	requireDeserialization(t, err, "List")

	_, _, err = Decode(ListOf(StringType), concat(u32le(2), str("a"), u32le(9)))
	requireDeserialization(t, err, "String")
}

func TestCollectionCountBounds(t *testing.T) {
	huge := u32le(0xffffffff)

	_, _, err := Decode(ListOf(U8Type), concat(huge, []byte{1, 2, 3}))
	requireDeserialization(t, err, "List")
	_, _, err = Decode(MapOf(U32Type, BoolType), concat(u32le(2), u32le(1), []byte{1}, u32le(2)))
	requireDeserialization(t, err, "Map")
	_, _, err = Decode(ListOf(OptionOf(U64Type)), concat(u32le(4), []byte{0, 0, 0}))
	requireDeserialization(t, err, "List")

	for _, d := range []Descriptor{ListOf(UnitType), ListOf(Tuple1Of(UnitType)), MapOf(UnitType, UnitType)} {
		_, _, err := Decode(d, huge)
		requireDeserialization(t, err, d.Kind.String())
	}
	_, _, err = (&Decoder{AllowAny: true}).Decode(ListOf(AnyType), huge)
	requireDeserialization(t, err, "List")

	units := roundTrip(t, ListOf(UnitType), u32le(3))
	assert.Len(t, units.Items(), 3)
	nones := roundTrip(t, ListOf(OptionOf(U64Type)), concat(u32le(3), []byte{0, 0, 0}))
	assert.Len(t, nones.Items(), 3)
}

func TestByteArrayFixedWidth(t *testing.T) {
	b := []byte{1, 0, 3, 2, 6, 6}
	v := roundTrip(t, ByteArrayOf(6), b)
	assert.Equal(t, 6, v.Len())
	assert.Equal(t, "010003020606", v.Native())

	_, _, err := Decode(ByteArrayOf(6), b[:5])
	requireDeserialization(t, err, "ByteArray")
}

func TestResultRoundTrip(t *testing.T) {
	ok := roundTrip(t, ResultOf(U64Type, BoolType), concat([]byte{ResultOkTag}, u64le(32)))
	assert.True(t, ok.IsOk())
	assert.Equal(t, map[string]interface{}{"ok": uint64(32)}, ok.Native())

	bad := roundTrip(t, ResultOf(U64Type, BoolType), []byte{ResultErrTag, 0})
	assert.False(t, bad.IsOk())
	assert.Equal(t, map[string]interface{}{"err": false}, bad.Native())

	_, _, err := Decode(ResultOf(U64Type, BoolType), []byte{7, 0})
	requireDeserialization(t, err, "Result")
}

func TestMapKeepsProducerOrder(t *testing.T) {
	b := concat(u32le(3),
		u64le(30), []byte{1},
		u64le(40), []byte{0},
		u64le(50), []byte{1},
	)
	v := roundTrip(t, MapOf(U64Type, BoolType), b)
	require.Len(t, v.Entries(), 3)
	assert.Equal(t, uint64(30), v.Entries()[0].Key.Leaf())
	assert.Equal(t, true, v.Entries()[0].Value.Leaf())
	assert.Equal(t, uint64(40), v.Entries()[1].Key.Leaf())
	assert.Equal(t, false, v.Entries()[1].Value.Leaf())

	unsorted := concat(u32le(2), u64le(50), []byte{1}, u64le(30), []byte{0})
	v = roundTrip(t, MapOf(U64Type, BoolType), unsorted)
	assert.Equal(t, uint64(50), v.Entries()[0].Key.Leaf())
	assert.Equal(t, uint64(30), v.Entries()[1].Key.Leaf())
}

func TestTupleRoundTrip(t *testing.T) {
	v := roundTrip(t, Tuple2Of(U64Type, PublicKeyType), concat(u64le(42), []byte{0}))
	require.Len(t, v.Items(), 2)
	assert.Equal(t, uint64(42), v.Items()[0].Leaf())

	v = roundTrip(t, Tuple3Of(U8Type, StringType, UnitType), concat([]byte{9}, str("x")))
	assert.Equal(t, []interface{}{uint8(9), "x", nil}, v.Native())

	roundTrip(t, Tuple1Of(I32Type), u32le(0xffffffff))
}

func TestWidthUnderflow(t *testing.T) {
	cases := []struct {
		d     Descriptor
		input []byte
	}{
		{BoolType, nil},
		{U8Type, nil},
		{I32Type, []byte{1, 2, 3}},
		{U32Type, []byte{1}},
		{I64Type, make([]byte, 7)},
		{U64Type, make([]byte, 4)},
	}
	for _, tc := range cases {
		_, rest, err := Decode(tc.d, tc.input)
		requireDeserialization(t, err, tc.d.Kind.String())
		assert.Equal(t, tc.input, rest)
	}

	v, rest, err := Decode(UnitType, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, v.Len())
	assert.Empty(t, rest)
}

func TestBoolRejectsNonCanonicalByte(t *testing.T) {
	_, _, err := Decode(BoolType, []byte{2})
	requireDeserialization(t, err, "Bool")
}

func TestSignedIntegers(t *testing.T) {
	v := roundTrip(t, I32Type, u32le(uint32(0xfffffff6)))
	assert.Equal(t, int32(-10), v.Leaf())
	v = roundTrip(t, I64Type, u64le(^uint64(0)))
	assert.Equal(t, int64(-1), v.Leaf())
}

func TestBigUintKeepsProducerBytes(t *testing.T) {
	// Non-minimal encoding: two magnitude bytes where one would do.
	b := []byte{2, 5, 0}
	v := roundTrip(t, U512Type, b)
	assert.Equal(t, 0, v.Leaf().(*big.Int).Cmp(big.NewInt(5)))
	assert.Equal(t, "5", v.Native())

	v = roundTrip(t, U256Type, []byte{0})
	assert.Equal(t, "0", v.Native())

	_, _, err := Decode(U128Type, append([]byte{17}, make([]byte, 17)...))
	requireDeserialization(t, err, "U128")
}

func TestKeyAndURef(t *testing.T) {
	addr := make([]byte, 32)
	addr[31] = 0xab
	uref := roundTrip(t, URefType, concat(addr, []byte{7}))
	assert.Equal(t, "uref-00000000000000000000000000000000000000000000000000000000000000ab-007", uref.Native())

	key := roundTrip(t, KeyType, concat([]byte{byte(KeyTagHash)}, addr))
	assert.Equal(t, "hash-00000000000000000000000000000000000000000000000000000000000000ab", key.Native())

	era := roundTrip(t, KeyType, concat([]byte{byte(KeyTagEraInfo)}, u64le(12)))
	assert.Equal(t, "era-12", era.Native())

	_, _, err := Decode(URefType, concat(addr, []byte{8}))
	requireDeserialization(t, err, "URef")

	_, _, err = Decode(KeyType, concat([]byte{99}, addr))
	requireDeserialization(t, err, "Key")
}

func TestKeyVariantsAfterChecksumRegistry(t *testing.T) {
	h := bytes.Repeat([]byte{0x11}, 32)
	entity := concat([]byte{1}, h)
	cases := []struct {
		name    string
		payload []byte
		want    string
	}{
		{"bid validator", concat([]byte{byte(KeyTagBidAddr), 1}, h), "bid-addr-01" + strings.Repeat("11", 32)},
		{"bid delegated", concat([]byte{byte(KeyTagBidAddr), 2}, h, h), "bid-addr-02" + strings.Repeat("11", 64)},
		{"bid credit", concat([]byte{byte(KeyTagBidAddr), 4}, h, u64le(9)), ""},
		{"package", concat([]byte{byte(KeyTagPackage)}, h), "package-" + strings.Repeat("11", 32)},
		{"entity", concat([]byte{byte(KeyTagAddressableEntity)}, entity), "entity-01" + strings.Repeat("11", 32)},
		{"byte code empty", []byte{byte(KeyTagByteCode), 0}, "byte-code-00"},
		{"byte code wasm", concat([]byte{byte(KeyTagByteCode), 1}, h), ""},
		{"message topic", concat([]byte{byte(KeyTagMessage)}, entity, h, []byte{0}), ""},
		{"message indexed", concat([]byte{byte(KeyTagMessage)}, entity, h, []byte{1}, u32le(3)), ""},
		{"named key", concat([]byte{byte(KeyTagNamedKey)}, entity, h), ""},
		{"block global", []byte{byte(KeyTagBlockGlobal), 1}, "block-global-01"},
		{"balance hold", concat([]byte{byte(KeyTagBalanceHold), 0}, h, u64le(1)), ""},
		{"entry point v1", concat([]byte{byte(KeyTagEntryPoint), 0}, entity, h), ""},
		{"entry point v2", concat([]byte{byte(KeyTagEntryPoint), 1}, entity, u32le(7)), ""},
		{"state", concat([]byte{byte(KeyTagState)}, entity), "state-01" + strings.Repeat("11", 32)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := roundTrip(t, KeyType, tc.payload)
			key := v.Leaf().(Key)
			assert.Equal(t, KeyTag(tc.payload[0]), key.Tag)
			if tc.want != "" {
				assert.Equal(t, tc.want, v.Native())
			}
			parsed, err := ParseKey(key.String())
			require.NoError(t, err)
			assert.Equal(t, key, parsed)

			// A key inside a list must not swallow the next element.
			list := roundTrip(t, ListOf(KeyType), concat(u32le(2), tc.payload, tc.payload))
			assert.Len(t, list.Items(), 2)
		})
	}
}

func TestKeyVariantsRejectBadPayloads(t *testing.T) {
	h := bytes.Repeat([]byte{0x11}, 32)
	for name, b := range map[string][]byte{
		"bid sub-tag":       concat([]byte{byte(KeyTagBidAddr), 9}, h),
		"entity sub-tag":    concat([]byte{byte(KeyTagAddressableEntity), 3}, h),
		"short entity":      concat([]byte{byte(KeyTagAddressableEntity), 1}, h[:31]),
		"message index tag": concat([]byte{byte(KeyTagMessage), 1}, h, h, []byte{2}),
		"block global":      {byte(KeyTagBlockGlobal), 4},
		"missing sub-tag":   {byte(KeyTagEntryPoint)},
		"unknown tag":       concat([]byte{byte(KeyTagState) + 1}, h),
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := Decode(KeyType, b)
			requireDeserialization(t, err, "Key")
		})
	}
}

func TestAnyIsUnsupportedByDefault(t *testing.T) {
	_, _, err := Decode(AnyType, []byte{1, 2})
	requireDeserialization(t, err, "Any")
	assert.ErrorIs(t, err, errs.ErrUnsupported)

	dec := &Decoder{AllowAny: true}
	v, rest, err := dec.Decode(AnyType, []byte{1, 2})
	require.NoError(t, err)
	assert.Equal(t, Opaque{}, v.Leaf())
	assert.Equal(t, 0, v.Len())
	assert.Equal(t, []byte{1, 2}, rest)
}

func TestDepthLimit(t *testing.T) {
	d := U8Type
	input := []byte{5}
	for i := 0; i < 10; i++ {
		d = OptionOf(d)
		input = append([]byte{1}, input...)
	}

	_, _, err := (&Decoder{MaxDepth: 5}).Decode(d, input)
	assert.ErrorIs(t, err, ErrDepthExceeded)

	v, rest, err := (&Decoder{MaxDepth: 11}).Decode(d, input)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, uint8(5), v.Native())
}

func TestFailureReturnsNoPartialValue(t *testing.T) {
	b := concat(u64le(1), []byte{3})
	v, rest, err := Decode(Tuple2Of(U64Type, BoolType), b)
	requireDeserialization(t, err, "Bool")
	assert.Equal(t, Value{}, v)
	assert.Equal(t, b, rest)
}

func TestNestedComposite(t *testing.T) {
	d := MapOf(StringType, ListOf(OptionOf(Tuple2Of(U32Type, ByteArrayOf(2)))))
	b := concat(u32le(1),
		str("k"),
		u32le(2),
		[]byte{0},
		[]byte{1}, u32le(9), []byte{0xca, 0xfe},
	)
	v := roundTrip(t, d, b)
	entry := v.Entries()[0]
	assert.Equal(t, "k", entry.Key.Leaf())
	assert.Equal(t, []interface{}{nil, []interface{}{uint32(9), "cafe"}}, entry.Value.Native())
}
