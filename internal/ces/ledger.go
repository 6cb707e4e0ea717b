// Package ces retrieves and decodes contract events stored under the event standard
// named keys: a schema value, an event counter and a dictionary of event records.
package ces

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"casperEvents/internal/clvalue"
)

// StoredValue is a value read from global state together with its declared type.
type StoredValue struct {
	Type  clvalue.Descriptor
	Bytes []byte
}

// Write is one global state write recorded by an execution, in execution order.
type Write struct {
	Key   string
	Value StoredValue
}

// Ledger is the read surface required from a node.
//
// Implementations report transport failures as *errs.ConnectionError and missing
// entries as *errs.NotFoundError.
type Ledger interface {
	NamedKeys(ctx context.Context, contract common.Hash) (map[string]string, error)
	ReadValue(ctx context.Context, ref clvalue.URef) (StoredValue, error)
	ReadDictionaryItem(ctx context.Context, seed clvalue.URef, itemKey string) (StoredValue, error)
	ExecutionEffects(ctx context.Context, executionHash common.Hash) ([]Write, error)
}
