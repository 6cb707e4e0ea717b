package clvalue

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"

	"casperEvents/internal/errs"
)

// DefaultMaxDepth bounds descriptor nesting when a Decoder does not set its own limit.
const DefaultMaxDepth = 64

// ErrDepthExceeded is wrapped by the DeserializationError returned for over-deep nesting.
var ErrDepthExceeded = errors.New("maximum nesting depth exceeded")

// Decoder walks bytes against a Descriptor. The zero value is ready to use.
// A Decoder holds no mutable state and may be shared between goroutines.
type Decoder struct {
	// MaxDepth limits descriptor nesting; zero means DefaultMaxDepth.
	MaxDepth int
	// AllowAny makes Any decode to an Opaque marker that consumes nothing,
	// instead of failing with errs.ErrUnsupported.
	AllowAny bool
}

var defaultDecoder = &Decoder{}

// Decode decodes with the default Decoder.
func Decode(d Descriptor, b []byte) (Value, []byte, error) {
	return defaultDecoder.Decode(d, b)
}

// Decode consumes a prefix of b shaped like d and returns the value and the remainder.
// On failure no value is returned and the error is an *errs.DeserializationError whose
// Context names the innermost failing kind.
func (dec *Decoder) Decode(d Descriptor, b []byte) (Value, []byte, error) {
	v, rest, err := dec.decode(d, b, dec.limit())
	if err != nil {
		return Value{}, b, err
	}
	return v, rest, nil
}

// limit returns the effective nesting limit; a nil Decoder uses DefaultMaxDepth.
func (dec *Decoder) limit() int {
	if dec == nil || dec.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return dec.MaxDepth
}

func fail(k Kind, format string, args ...interface{}) error {
	return errs.Deserialization(k.String(), fmt.Errorf(format, args...))
}

func fixedWidth(k Kind) (int, bool) {
	switch k {
	case KindBool, KindU8:
		return 1, true
	case KindI32, KindU32:
		return 4, true
	case KindI64, KindU64:
		return 8, true
	case KindUnit:
		return 0, true
	default:
		return 0, false
	}
}

func (dec *Decoder) decode(d Descriptor, b []byte, depth int) (Value, []byte, error) {
	if depth <= 0 {
		return Value{}, b, errs.Deserialization(d.Kind.String(), ErrDepthExceeded)
	}
	if !d.Kind.Valid() {
		return Value{}, b, errs.Deserialization(d.Kind.String(), fmt.Errorf("unknown kind"))
	}
	if len(d.Params) != d.Kind.Arity() {
		return Value{}, b, fail(d.Kind, "malformed descriptor: %d component(s)", len(d.Params))
	}

	if width, ok := fixedWidth(d.Kind); ok {
		span, rest, ok := take(b, width)
		if !ok {
			return Value{}, b, fail(d.Kind, "need %d bytes, have %d", width, len(b))
		}
		leaf, err := fixedLeaf(d.Kind, span)
		if err != nil {
			return Value{}, b, err
		}
		return Value{Type: d, raw: span, leaf: leaf}, rest, nil
	}

	var (
		v    = Value{Type: d}
		rest []byte
		err  error
	)
	switch d.Kind {
	case KindU128, KindU256, KindU512:
		v.leaf, rest, err = readBigUint(b, bigWidth(d.Kind))
	case KindString:
		v.leaf, rest, err = readUTF8(b)
	case KindKey:
		v.leaf, rest, err = readKey(b)
	case KindURef:
		v.leaf, rest, err = readURef(b)
	case KindPublicKey:
		v.leaf, rest, err = readPublicKey(b)
	case KindByteArray:
		span, r, ok := take(b, int(d.Size))
		if !ok {
			return Value{}, b, fail(d.Kind, "need %d bytes, have %d", d.Size, len(b))
		}
		v.leaf, rest = append(make([]byte, 0, len(span)), span...), r
	case KindAny:
		if !dec.AllowAny {
			return Value{}, b, errs.Deserialization(d.Kind.String(), errs.ErrUnsupported)
		}
		v.leaf, rest = Opaque{}, b
	case KindOption:
		return dec.decodeOption(d, b, depth)
	case KindResult:
		return dec.decodeResult(d, b, depth)
	case KindList:
		return dec.decodeList(d, b, depth)
	case KindMap:
		return dec.decodeMap(d, b, depth)
	case KindTuple1, KindTuple2, KindTuple3:
		return dec.decodeTuple(d, b, depth)
	}
	if err != nil {
		return Value{}, b, errs.Deserialization(d.Kind.String(), err)
	}
	v.raw = consumed(b, rest)
	return v, rest, nil
}

func consumed(b, rest []byte) []byte {
	return b[:len(b)-len(rest)]
}

func bigWidth(k Kind) int {
	switch k {
	case KindU128:
		return 16
	case KindU256:
		return 32
	default:
		return 64
	}
}

func fixedLeaf(k Kind, span []byte) (interface{}, error) {
	switch k {
	case KindBool:
		switch span[0] {
		case 0:
			return false, nil
		case 1:
			return true, nil
		default:
			return nil, fail(k, "invalid bool byte %#x", span[0])
		}
	case KindU8:
		return span[0], nil
	case KindI32:
		return int32(binary.LittleEndian.Uint32(span)), nil
	case KindU32:
		return binary.LittleEndian.Uint32(span), nil
	case KindI64:
		return int64(binary.LittleEndian.Uint64(span)), nil
	case KindU64:
		return binary.LittleEndian.Uint64(span), nil
	default:
		return UnitValue{}, nil
	}
}

func readUTF8(b []byte) (string, []byte, error) {
	n, rest, ok := readU32(b)
	if !ok {
		return "", b, fmt.Errorf("length: need 4 bytes, have %d", len(b))
	}
	body, r, ok := take(rest, int(n))
	if !ok {
		return "", b, fmt.Errorf("body: need %d bytes, have %d", n, len(rest))
	}
	if !utf8.Valid(body) {
		return "", b, fmt.Errorf("invalid utf-8")
	}
	return string(body), r, nil
}

func (dec *Decoder) decodeOption(d Descriptor, b []byte, depth int) (Value, []byte, error) {
	tag, rest, ok := readU8(b)
	if !ok {
		return Value{}, b, fail(d.Kind, "missing tag")
	}
	v := Value{Type: d, tag: tag}
	switch tag {
	case OptionNoneTag:
	case OptionSomeTag:
		inner, r, err := dec.decode(d.Params[0], rest, depth-1)
		if err != nil {
			return Value{}, b, err
		}
		v.items = []Value{inner}
		rest = r
	default:
		return Value{}, b, fail(d.Kind, "invalid tag %d", tag)
	}
	v.raw = consumed(b, rest)
	return v, rest, nil
}

func (dec *Decoder) decodeResult(d Descriptor, b []byte, depth int) (Value, []byte, error) {
	tag, rest, ok := readU8(b)
	if !ok {
		return Value{}, b, fail(d.Kind, "missing tag")
	}
	var branch Descriptor
	switch tag {
	case ResultOkTag:
		branch = d.Params[0]
	case ResultErrTag:
		branch = d.Params[1]
	default:
		return Value{}, b, fail(d.Kind, "invalid tag %d", tag)
	}
	inner, rest, err := dec.decode(branch, rest, depth-1)
	if err != nil {
		return Value{}, b, err
	}
	return Value{Type: d, tag: tag, items: []Value{inner}, raw: consumed(b, rest)}, rest, nil
}

// preallocation cap for counts read off the wire
const maxPrealloc = 1024

// maxZeroWidthCount caps lists and maps whose elements may occupy no bytes
// (Unit, Any under AllowAny, tuples of those), where the input length gives no bound.
const maxZeroWidthCount = 1 << 16

// minWidth returns the fewest bytes a value of d can occupy.
func minWidth(d Descriptor) int {
	if w, ok := fixedWidth(d.Kind); ok {
		return w
	}
	switch d.Kind {
	case KindU128, KindU256, KindU512, KindKey, KindPublicKey, KindOption:
		return 1
	case KindString, KindList, KindMap:
		return 4
	case KindURef:
		return 33
	case KindByteArray:
		return int(d.Size)
	case KindResult:
		if len(d.Params) != 2 {
			return 1
		}
		return 1 + min(minWidth(d.Params[0]), minWidth(d.Params[1]))
	case KindTuple1, KindTuple2, KindTuple3:
		sum := 0
		for _, p := range d.Params {
			sum += minWidth(p)
		}
		return sum
	default:
		return 0
	}
}

// checkCount rejects element counts the remaining input cannot hold.
func checkCount(d Descriptor, count uint32, rest []byte, width int) error {
	if width == 0 {
		if count > maxZeroWidthCount {
			return fail(d.Kind, "count %d of zero-width elements exceeds %d", count, maxZeroWidthCount)
		}
		return nil
	}
	if uint64(count) > uint64(len(rest)/width) {
		return fail(d.Kind, "count %d needs at least %d bytes each, have %d", count, width, len(rest))
	}
	return nil
}

func (dec *Decoder) decodeList(d Descriptor, b []byte, depth int) (Value, []byte, error) {
	count, rest, ok := readU32(b)
	if !ok {
		return Value{}, b, fail(d.Kind, "count: need 4 bytes, have %d", len(b))
	}
	if err := checkCount(d, count, rest, minWidth(d.Params[0])); err != nil {
		return Value{}, b, err
	}
	items := make([]Value, 0, min(int(count), maxPrealloc))
	for i := uint32(0); i < count; i++ {
		item, r, err := dec.decode(d.Params[0], rest, depth-1)
		if err != nil {
			return Value{}, b, err
		}
		items = append(items, item)
		rest = r
	}
	return Value{Type: d, items: items, raw: consumed(b, rest)}, rest, nil
}

func (dec *Decoder) decodeMap(d Descriptor, b []byte, depth int) (Value, []byte, error) {
	count, rest, ok := readU32(b)
	if !ok {
		return Value{}, b, fail(d.Kind, "count: need 4 bytes, have %d", len(b))
	}
	if err := checkCount(d, count, rest, minWidth(d.Params[0])+minWidth(d.Params[1])); err != nil {
		return Value{}, b, err
	}
	entries := make([]Entry, 0, min(int(count), maxPrealloc))
	for i := uint32(0); i < count; i++ {
		key, r, err := dec.decode(d.Params[0], rest, depth-1)
		if err != nil {
			return Value{}, b, err
		}
		val, r, err := dec.decode(d.Params[1], r, depth-1)
		if err != nil {
			return Value{}, b, err
		}
		entries = append(entries, Entry{Key: key, Value: val})
		rest = r
	}
	return Value{Type: d, entries: entries, raw: consumed(b, rest)}, rest, nil
}

func (dec *Decoder) decodeTuple(d Descriptor, b []byte, depth int) (Value, []byte, error) {
	rest := b
	items := make([]Value, 0, len(d.Params))
	for _, p := range d.Params {
		item, r, err := dec.decode(p, rest, depth-1)
		if err != nil {
			return Value{}, b, err
		}
		items = append(items, item)
		rest = r
	}
	return Value{Type: d, items: items, raw: consumed(b, rest)}, rest, nil
}
