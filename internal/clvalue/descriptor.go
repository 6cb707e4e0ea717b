// Package clvalue implements the runtime type descriptors of the ledger's canonical value
// format and a recursive decoder that walks raw bytes against them.
package clvalue

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the tag of a Descriptor. Values match the canonical wire tags.
type Kind uint8

const (
	KindBool Kind = iota
	KindI32
	KindI64
	KindU8
	KindU32
	KindU64
	KindU128
	KindU256
	KindU512
	KindUnit
	KindString
	KindKey
	KindURef
	KindOption
	KindList
	KindByteArray
	KindResult
	KindMap
	KindTuple1
	KindTuple2
	KindTuple3
	KindAny
	KindPublicKey
)

var kindNames = [...]string{
	KindBool:      "Bool",
	KindI32:       "I32",
	KindI64:       "I64",
	KindU8:        "U8",
	KindU32:       "U32",
	KindU64:       "U64",
	KindU128:      "U128",
	KindU256:      "U256",
	KindU512:      "U512",
	KindUnit:      "Unit",
	KindString:    "String",
	KindKey:       "Key",
	KindURef:      "URef",
	KindOption:    "Option",
	KindList:      "List",
	KindByteArray: "ByteArray",
	KindResult:    "Result",
	KindMap:       "Map",
	KindTuple1:    "Tuple1",
	KindTuple2:    "Tuple2",
	KindTuple3:    "Tuple3",
	KindAny:       "Any",
	KindPublicKey: "PublicKey",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Valid reports whether k belongs to the closed kind set.
func (k Kind) Valid() bool {
	return k <= KindPublicKey
}

// Composite reports whether descriptors of this kind own component descriptors.
func (k Kind) Composite() bool {
	switch k {
	case KindOption, KindList, KindResult, KindMap, KindTuple1, KindTuple2, KindTuple3:
		return true
	default:
		return false
	}
}

func kindByName(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), true
		}
	}
	return 0, false
}

// Descriptor describes the shape of a value. Descriptors form a finite tree.
//
// Params holds the component descriptors of composite kinds in declared order:
// Option/List one element, Result ok then err, Map key then value, TupleN N components.
// Size is only meaningful for ByteArray.
type Descriptor struct {
	Kind   Kind
	Params []Descriptor
	Size   uint32
}

// Leaf descriptors.
var (
	BoolType      = Descriptor{Kind: KindBool}
	I32Type       = Descriptor{Kind: KindI32}
	I64Type       = Descriptor{Kind: KindI64}
	U8Type        = Descriptor{Kind: KindU8}
	U32Type       = Descriptor{Kind: KindU32}
	U64Type       = Descriptor{Kind: KindU64}
	U128Type      = Descriptor{Kind: KindU128}
	U256Type      = Descriptor{Kind: KindU256}
	U512Type      = Descriptor{Kind: KindU512}
	UnitType      = Descriptor{Kind: KindUnit}
	StringType    = Descriptor{Kind: KindString}
	KeyType       = Descriptor{Kind: KindKey}
	URefType      = Descriptor{Kind: KindURef}
	PublicKeyType = Descriptor{Kind: KindPublicKey}
	AnyType       = Descriptor{Kind: KindAny}
)

func OptionOf(t Descriptor) Descriptor { return Descriptor{Kind: KindOption, Params: []Descriptor{t}} }

func ListOf(t Descriptor) Descriptor { return Descriptor{Kind: KindList, Params: []Descriptor{t}} }

func ByteArrayOf(n uint32) Descriptor { return Descriptor{Kind: KindByteArray, Size: n} }

func ResultOf(ok, err Descriptor) Descriptor {
	return Descriptor{Kind: KindResult, Params: []Descriptor{ok, err}}
}

func MapOf(k, v Descriptor) Descriptor { return Descriptor{Kind: KindMap, Params: []Descriptor{k, v}} }

func Tuple1Of(a Descriptor) Descriptor { return Descriptor{Kind: KindTuple1, Params: []Descriptor{a}} }

func Tuple2Of(a, b Descriptor) Descriptor {
	return Descriptor{Kind: KindTuple2, Params: []Descriptor{a, b}}
}

func Tuple3Of(a, b, c Descriptor) Descriptor {
	return Descriptor{Kind: KindTuple3, Params: []Descriptor{a, b, c}}
}

// Arity returns the number of component descriptors a kind requires.
func (k Kind) Arity() int {
	switch k {
	case KindOption, KindList, KindTuple1:
		return 1
	case KindResult, KindMap, KindTuple2:
		return 2
	case KindTuple3:
		return 3
	default:
		return 0
	}
}

// Validate checks that the descriptor tree is well formed.
func (d Descriptor) Validate() error {
	if !d.Kind.Valid() {
		return fmt.Errorf("invalid descriptor kind %d", uint8(d.Kind))
	}
	if len(d.Params) != d.Kind.Arity() {
		return fmt.Errorf("%s expects %d component(s), got %d", d.Kind, d.Kind.Arity(), len(d.Params))
	}
	for _, p := range d.Params {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Depth returns the nesting depth of the descriptor; leaves have depth 1.
func (d Descriptor) Depth() int {
	max := 0
	for _, p := range d.Params {
		if depth := p.Depth(); depth > max {
			max = depth
		}
	}
	return max + 1
}

// Equal reports structural equality.
func (d Descriptor) Equal(other Descriptor) bool {
	if d.Kind != other.Kind || len(d.Params) != len(other.Params) {
		return false
	}
	if d.Kind == KindByteArray && d.Size != other.Size {
		return false
	}
	for i := range d.Params {
		if !d.Params[i].Equal(other.Params[i]) {
			return false
		}
	}
	return true
}

// String renders the text form, e.g. "Map<String,Option<U64>>" or "ByteArray<32>".
func (d Descriptor) String() string {
	var b strings.Builder
	d.writeText(&b)
	return b.String()
}

func (d Descriptor) writeText(b *strings.Builder) {
	b.WriteString(d.Kind.String())
	switch {
	case d.Kind == KindByteArray:
		b.WriteByte('<')
		b.WriteString(strconv.FormatUint(uint64(d.Size), 10))
		b.WriteByte('>')
	case len(d.Params) > 0:
		b.WriteByte('<')
		for i, p := range d.Params {
			if i > 0 {
				b.WriteByte(',')
			}
			p.writeText(b)
		}
		b.WriteByte('>')
	}
}
