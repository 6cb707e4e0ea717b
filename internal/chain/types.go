package chain

import (
	"encoding/hex"
	"encoding/json"
	"strings"

	"casperEvents/internal/ces"
	"casperEvents/internal/clvalue"
	"casperEvents/internal/errs"
)

// clValue is the node's JSON rendering of a typed value.
type clValue struct {
	CLType clvalue.Descriptor `json:"cl_type"`
	Bytes  string             `json:"bytes"`
	Parsed json.RawMessage    `json:"parsed,omitempty"`
}

func (v *clValue) stored() (ces.StoredValue, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(v.Bytes, "0x"))
	if err != nil {
		return ces.StoredValue{}, &errs.UnexpectedError{Context: "cl value bytes", Err: err}
	}
	return ces.StoredValue{Type: v.CLType, Bytes: raw}, nil
}

type namedKey struct {
	Name string `json:"name"`
	Key  string `json:"key"`
}

func namedKeyMap(keys []namedKey) map[string]string {
	out := make(map[string]string, len(keys))
	for _, nk := range keys {
		out[nk.Name] = nk.Key
	}
	return out
}

// storedValue keeps only the variants the toolkit reads.
type storedValue struct {
	CLValue  *clValue    `json:"CLValue,omitempty"`
	Contract *contractV1 `json:"Contract,omitempty"`
}

type contractV1 struct {
	ContractPackageHash string     `json:"contract_package_hash"`
	NamedKeys           []namedKey `json:"named_keys"`
}
