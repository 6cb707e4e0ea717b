package clvalue

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"casperEvents/internal/errs"
)

// AppendBinary appends the canonical tag encoding of d.
func (d Descriptor) AppendBinary(dst []byte) []byte {
	dst = append(dst, byte(d.Kind))
	if d.Kind == KindByteArray {
		return AppendU32(dst, d.Size)
	}
	for _, p := range d.Params {
		dst = p.AppendBinary(dst)
	}
	return dst
}

// MarshalBinary returns the canonical tag encoding of d.
func (d Descriptor) MarshalBinary() ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, &errs.SerializationError{Context: "descriptor", Err: err}
	}
	return d.AppendBinary(nil), nil
}

// ParseDescriptorBytes decodes a tag-encoded descriptor from the front of b
// with the default nesting limit.
func ParseDescriptorBytes(b []byte) (Descriptor, []byte, error) {
	return defaultDecoder.ParseDescriptorBytes(b)
}

// ParseDescriptorBytes decodes a tag-encoded descriptor from the front of b,
// bounded by the decoder's MaxDepth.
func (dec *Decoder) ParseDescriptorBytes(b []byte) (Descriptor, []byte, error) {
	return parseDescriptorBytes(b, dec.limit())
}

func parseDescriptorBytes(b []byte, depth int) (Descriptor, []byte, error) {
	if depth <= 0 {
		return Descriptor{}, b, errs.Deserialization("descriptor", ErrDepthExceeded)
	}
	tag, rest, ok := readU8(b)
	if !ok {
		return Descriptor{}, b, errs.Deserialization("descriptor", fmt.Errorf("missing tag"))
	}
	kind := Kind(tag)
	if !kind.Valid() {
		return Descriptor{}, b, errs.Deserialization("descriptor", fmt.Errorf("unknown tag %d", tag))
	}
	d := Descriptor{Kind: kind}
	if kind == KindByteArray {
		size, r, ok := readU32(rest)
		if !ok {
			return Descriptor{}, b, errs.Deserialization("descriptor", fmt.Errorf("missing ByteArray length"))
		}
		d.Size = size
		return d, r, nil
	}
	if n := kind.Arity(); n > 0 {
		d.Params = make([]Descriptor, 0, n)
		for i := 0; i < n; i++ {
			p, r, err := parseDescriptorBytes(rest, depth-1)
			if err != nil {
				return Descriptor{}, b, err
			}
			d.Params = append(d.Params, p)
			rest = r
		}
	}
	return d, rest, nil
}

// MarshalJSON renders the node's JSON form, e.g. "U64", {"List":"U8"} or {"ByteArray":32}.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	if len(d.Params) != d.Kind.Arity() {
		return nil, fmt.Errorf("%s expects %d component(s), got %d", d.Kind, d.Kind.Arity(), len(d.Params))
	}
	switch d.Kind {
	case KindByteArray:
		return json.Marshal(map[string]uint32{"ByteArray": d.Size})
	case KindOption, KindList:
		return json.Marshal(map[string]Descriptor{d.Kind.String(): d.Params[0]})
	case KindResult:
		return json.Marshal(map[string]map[string]Descriptor{
			"Result": {"ok": d.Params[0], "err": d.Params[1]},
		})
	case KindMap:
		return json.Marshal(map[string]map[string]Descriptor{
			"Map": {"key": d.Params[0], "value": d.Params[1]},
		})
	case KindTuple1, KindTuple2, KindTuple3:
		return json.Marshal(map[string][]Descriptor{d.Kind.String(): d.Params})
	default:
		if !d.Kind.Valid() {
			return nil, fmt.Errorf("invalid descriptor kind %d", uint8(d.Kind))
		}
		return json.Marshal(d.Kind.String())
	}
}

// UnmarshalJSON parses the node's JSON form.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		kind, ok := kindByName(name)
		if !ok || kind.Arity() > 0 || kind == KindByteArray {
			return fmt.Errorf("unknown cl_type %q", name)
		}
		*d = Descriptor{Kind: kind}
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("cl_type: %w", err)
	}
	if len(obj) != 1 {
		return fmt.Errorf("cl_type object must have exactly one variant, got %d", len(obj))
	}
	for name, raw := range obj {
		kind, ok := kindByName(name)
		if !ok {
			return fmt.Errorf("unknown cl_type %q", name)
		}
		switch kind {
		case KindByteArray:
			var size uint32
			if err := json.Unmarshal(raw, &size); err != nil {
				return fmt.Errorf("ByteArray size: %w", err)
			}
			*d = ByteArrayOf(size)
		case KindOption, KindList:
			var inner Descriptor
			if err := json.Unmarshal(raw, &inner); err != nil {
				return err
			}
			*d = Descriptor{Kind: kind, Params: []Descriptor{inner}}
		case KindResult:
			var r struct {
				Ok  *Descriptor `json:"ok"`
				Err *Descriptor `json:"err"`
			}
			if err := json.Unmarshal(raw, &r); err != nil {
				return err
			}
			if r.Ok == nil || r.Err == nil {
				return fmt.Errorf("Result requires ok and err")
			}
			*d = ResultOf(*r.Ok, *r.Err)
		case KindMap:
			var m struct {
				Key   *Descriptor `json:"key"`
				Value *Descriptor `json:"value"`
			}
			if err := json.Unmarshal(raw, &m); err != nil {
				return err
			}
			if m.Key == nil || m.Value == nil {
				return fmt.Errorf("Map requires key and value")
			}
			*d = MapOf(*m.Key, *m.Value)
		case KindTuple1, KindTuple2, KindTuple3:
			var items []Descriptor
			if err := json.Unmarshal(raw, &items); err != nil {
				return err
			}
			if len(items) != kind.Arity() {
				return fmt.Errorf("%s expects %d items, got %d", kind, kind.Arity(), len(items))
			}
			*d = Descriptor{Kind: kind, Params: items}
		default:
			return fmt.Errorf("cl_type %q takes no parameters", name)
		}
	}
	return nil
}

// MarshalText renders the text form.
func (d Descriptor) MarshalText() ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return []byte(d.String()), nil
}

// UnmarshalText parses the text form.
func (d *Descriptor) UnmarshalText(text []byte) error {
	parsed, err := ParseDescriptor(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDescriptor parses the text form, e.g. "Option<Tuple2<String,U512>>". Whitespace is ignored.
func ParseDescriptor(text string) (Descriptor, error) {
	return defaultDecoder.ParseDescriptor(text)
}

// ParseDescriptor parses the text form with the decoder's nesting limit.
func (dec *Decoder) ParseDescriptor(text string) (Descriptor, error) {
	p := &textParser{src: text}
	d, err := p.parse(dec.limit())
	if err != nil {
		return Descriptor{}, fmt.Errorf("parse descriptor %q: %w", text, err)
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return Descriptor{}, fmt.Errorf("parse descriptor %q: trailing input at %d", text, p.pos)
	}
	return d, nil
}

type textParser struct {
	src string
	pos int
}

func (p *textParser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *textParser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_') {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *textParser) expect(c byte) error {
	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != c {
		return fmt.Errorf("expected %q at %d", c, p.pos)
	}
	p.pos++
	return nil
}

func (p *textParser) parse(depth int) (Descriptor, error) {
	if depth <= 0 {
		return Descriptor{}, ErrDepthExceeded
	}
	name := p.ident()
	if name == "" {
		return Descriptor{}, fmt.Errorf("expected type name at %d", p.pos)
	}
	if name == "StorageRef" {
		name = "URef"
	}
	if name == "FixedBytes" {
		name = "ByteArray"
	}
	kind, ok := kindByName(name)
	if !ok {
		return Descriptor{}, fmt.Errorf("unknown type %q", name)
	}

	if kind == KindByteArray {
		if err := p.expect('<'); err != nil {
			return Descriptor{}, err
		}
		num := p.ident()
		size, err := strconv.ParseUint(strings.TrimSpace(num), 10, 32)
		if err != nil {
			return Descriptor{}, fmt.Errorf("ByteArray size %q: %w", num, err)
		}
		if err := p.expect('>'); err != nil {
			return Descriptor{}, err
		}
		return ByteArrayOf(uint32(size)), nil
	}

	arity := kind.Arity()
	if arity == 0 {
		return Descriptor{Kind: kind}, nil
	}
	if err := p.expect('<'); err != nil {
		return Descriptor{}, err
	}
	params := make([]Descriptor, 0, arity)
	for i := 0; i < arity; i++ {
		if i > 0 {
			if err := p.expect(','); err != nil {
				return Descriptor{}, err
			}
		}
		param, err := p.parse(depth - 1)
		if err != nil {
			return Descriptor{}, err
		}
		params = append(params, param)
	}
	if err := p.expect('>'); err != nil {
		return Descriptor{}, err
	}
	return Descriptor{Kind: kind, Params: params}, nil
}
