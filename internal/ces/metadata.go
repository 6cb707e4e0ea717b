package ces

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"casperEvents/internal/clvalue"
	"casperEvents/internal/errs"
)

// Named keys every event emitting contract carries.
const (
	SchemaKey = "__events_schema"
	LengthKey = "__events_length"
	EventsKey = "__events"
)

// MetadataRefs are the three storage references of one contract.
// They are immutable once resolved and safe to cache.
type MetadataRefs struct {
	Contract common.Hash  `json:"contract_hash"`
	Schema   clvalue.URef `json:"events_schema"`
	Length   clvalue.URef `json:"events_length"`
	Events   clvalue.URef `json:"events"`
}

// Locator resolves MetadataRefs from contract named keys. It does not cache.
type Locator struct {
	Ledger Ledger
}

func NewLocator(ledger Ledger) *Locator {
	return &Locator{Ledger: ledger}
}

// Resolve reads the contract named keys and extracts the event references.
func (l *Locator) Resolve(ctx context.Context, contract common.Hash) (MetadataRefs, error) {
	named, err := l.Ledger.NamedKeys(ctx, contract)
	if err != nil {
		return MetadataRefs{}, fmt.Errorf("named keys of %s: %w", contract.Hex(), err)
	}
	refs := MetadataRefs{Contract: contract}
	for _, slot := range []struct {
		name string
		dst  *clvalue.URef
	}{
		{SchemaKey, &refs.Schema},
		{LengthKey, &refs.Length},
		{EventsKey, &refs.Events},
	} {
		uref, err := urefFromNamedKeys(named, slot.name)
		if err != nil {
			return MetadataRefs{}, err
		}
		*slot.dst = uref
	}
	return refs, nil
}

func urefFromNamedKeys(named map[string]string, name string) (clvalue.URef, error) {
	raw, ok := named[name]
	if !ok {
		return clvalue.URef{}, &errs.NotFoundError{What: "named key " + name}
	}
	uref, err := clvalue.ParseURef(raw)
	if err != nil {
		return clvalue.URef{}, &errs.UnexpectedError{Context: "named key " + name + " is not a uref", Err: err}
	}
	return uref, nil
}
