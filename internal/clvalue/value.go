package clvalue

import (
	"encoding/hex"
	"encoding/json"
	"math/big"
)

// Value is a decoded value. It keeps the exact byte span it was decoded from, so
// re-encoding reproduces the producer's bytes even when they were not canonical.
// The span aliases the decoded input; use Reencode for an owned copy.
type Value struct {
	Type Descriptor

	raw     []byte
	leaf    interface{}
	items   []Value
	entries []Entry
	tag     byte
}

// Entry is one key/value pair of a decoded Map, in producer order.
type Entry struct {
	Key   Value
	Value Value
}

// Opaque is the leaf of a value typed Any. It carries no data.
type Opaque struct{}

// UnitValue is the leaf of a value typed Unit.
type UnitValue struct{}

// IsZero reports whether v is the zero Value rather than the result of a decode.
func (v Value) IsZero() bool {
	return v.raw == nil && v.leaf == nil && v.items == nil && v.entries == nil
}

// Bytes returns the consumed span.
func (v Value) Bytes() []byte { return v.raw }

// Len returns the number of bytes the value consumed.
func (v Value) Len() int { return len(v.raw) }

// Leaf returns the native leaf: bool, int32, int64, uint8, uint32, uint64, *big.Int,
// UnitValue, string, Key, URef, PublicKey, []byte (ByteArray) or Opaque.
// Composite values return nil.
func (v Value) Leaf() interface{} { return v.leaf }

// Items returns the components of List, Tuple, Option (some) and Result values.
func (v Value) Items() []Value { return v.items }

// Entries returns Map pairs in producer order.
func (v Value) Entries() []Entry { return v.entries }

// IsSome reports whether an Option value holds a value.
func (v Value) IsSome() bool { return v.Type.Kind == KindOption && v.tag == OptionSomeTag }

// IsOk reports whether a Result value took the ok branch.
func (v Value) IsOk() bool { return v.Type.Kind == KindResult && v.tag == ResultOkTag }

// Native converts the value into plain Go data suitable for JSON rendering.
// Integers wider than 64 bits become decimal strings, byte arrays hex strings, Map values
// a list of {"key","value"} objects so producer order survives.
func (v Value) Native() interface{} {
	switch v.Type.Kind {
	case KindOption:
		if !v.IsSome() {
			return nil
		}
		return v.items[0].Native()
	case KindResult:
		if v.IsOk() {
			return map[string]interface{}{"ok": v.items[0].Native()}
		}
		return map[string]interface{}{"err": v.items[0].Native()}
	case KindList, KindTuple1, KindTuple2, KindTuple3:
		out := make([]interface{}, 0, len(v.items))
		for _, item := range v.items {
			out = append(out, item.Native())
		}
		return out
	case KindMap:
		out := make([]interface{}, 0, len(v.entries))
		for _, e := range v.entries {
			out = append(out, map[string]interface{}{"key": e.Key.Native(), "value": e.Value.Native()})
		}
		return out
	}

	switch leaf := v.leaf.(type) {
	case *big.Int:
		return leaf.String()
	case []byte:
		return hex.EncodeToString(leaf)
	case Key:
		return leaf.String()
	case URef:
		return leaf.String()
	case PublicKey:
		return leaf.String()
	case UnitValue, Opaque:
		return nil
	default:
		return leaf
	}
}

// MarshalJSON renders Native.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Native())
}

// Reencode returns a copy of the bytes the value was decoded from.
func Reencode(v Value) []byte {
	return append([]byte(nil), v.raw...)
}
