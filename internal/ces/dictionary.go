package ces

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/blake2b"

	"casperEvents/internal/clvalue"
	"casperEvents/internal/errs"
)

// DictionaryValue is the value stored under a dictionary key: the item value plus the
// seed address and item key it was written under.
type DictionaryValue struct {
	Value   StoredValue
	Seed    common.Hash
	ItemKey []byte
}

// DictionaryAddress derives the global state address of a dictionary item:
// blake2b256(seed address || item key).
func DictionaryAddress(seed common.Hash, itemKey []byte) common.Hash {
	h, _ := blake2b.New256(nil)
	h.Write(seed[:])
	h.Write(itemKey)
	return common.BytesToHash(h.Sum(nil))
}

// DictionaryKey returns the formatted "dictionary-<hex>" key of an item.
func DictionaryKey(seed common.Hash, itemKey string) string {
	return clvalue.Key{Tag: clvalue.KeyTagDictionary, Hash: DictionaryAddress(seed, []byte(itemKey))}.String()
}

// ParseDictionaryValue decodes
// u32 len || value bytes || descriptor || u32 len (32) || seed address || u32 len || item key.
func ParseDictionaryValue(b []byte) (DictionaryValue, error) {
	var (
		dv  DictionaryValue
		err error
	)
	rest := b
	if dv.Value.Bytes, rest, err = clvalue.ReadBytes(rest); err != nil {
		return DictionaryValue{}, errs.Deserialization("dictionary value", err)
	}
	if dv.Value.Type, rest, err = clvalue.ParseDescriptorBytes(rest); err != nil {
		return DictionaryValue{}, err
	}
	var seed []byte
	if seed, rest, err = clvalue.ReadBytes(rest); err != nil {
		return DictionaryValue{}, errs.Deserialization("dictionary seed", err)
	}
	if len(seed) != common.HashLength {
		return DictionaryValue{}, errs.Deserialization("dictionary seed", fmt.Errorf("length %d, want %d", len(seed), common.HashLength))
	}
	dv.Seed = common.BytesToHash(seed)
	if dv.ItemKey, rest, err = clvalue.ReadBytes(rest); err != nil {
		return DictionaryValue{}, errs.Deserialization("dictionary item key", err)
	}
	if len(rest) != 0 {
		return DictionaryValue{}, errs.Deserialization("dictionary value", fmt.Errorf("%d trailing bytes", len(rest)))
	}
	return dv, nil
}

// MarshalBinary encodes the layout read by ParseDictionaryValue.
func (dv DictionaryValue) MarshalBinary() ([]byte, error) {
	out, err := clvalue.AppendBytes(nil, dv.Value.Bytes)
	if err != nil {
		return nil, &errs.SerializationError{Context: "dictionary value", Err: err}
	}
	typ, err := dv.Value.Type.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out = append(out, typ...)
	if out, err = clvalue.AppendBytes(out, dv.Seed[:]); err != nil {
		return nil, &errs.SerializationError{Context: "dictionary seed", Err: err}
	}
	if out, err = clvalue.AppendBytes(out, dv.ItemKey); err != nil {
		return nil, &errs.SerializationError{Context: "dictionary item key", Err: err}
	}
	return out, nil
}
