package ces

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"casperEvents/internal/cache"
	"casperEvents/internal/clvalue"
)

// Registry memoizes MetadataRefs and Schemas per contract. Pinned catalogs are
// served without touching the ledger.
type Registry struct {
	// Decoder bounds descriptor nesting of fetched catalogs; nil means the defaults.
	Decoder *clvalue.Decoder

	locator *Locator
	ledger  Ledger

	refs    cache.Cache[common.Hash, MetadataRefs]
	schemas cache.Cache[common.Hash, Schemas]

	mu     sync.RWMutex
	pinned map[common.Hash]Schemas
}

func NewRegistry(ledger Ledger, capacity int) *Registry {
	return &Registry{
		locator: NewLocator(ledger),
		ledger:  ledger,
		refs:    cache.New[common.Hash, MetadataRefs](capacity),
		schemas: cache.New[common.Hash, Schemas](capacity),
		pinned:  make(map[common.Hash]Schemas),
	}
}

// Pin installs a trusted catalog for contract.
func (r *Registry) Pin(contract common.Hash, schemas Schemas) {
	r.mu.Lock()
	r.pinned[contract] = schemas
	r.mu.Unlock()
}

func (r *Registry) Refs(ctx context.Context, contract common.Hash) (MetadataRefs, error) {
	if refs, ok := r.refs.Get(contract); ok {
		return refs, nil
	}
	refs, err := r.locator.Resolve(ctx, contract)
	if err != nil {
		return MetadataRefs{}, err
	}
	r.refs.Set(contract, refs)
	return refs, nil
}

func (r *Registry) Schemas(ctx context.Context, contract common.Hash) (Schemas, error) {
	r.mu.RLock()
	pinned, ok := r.pinned[contract]
	r.mu.RUnlock()
	if ok {
		return pinned, nil
	}
	if schemas, ok := r.schemas.Get(contract); ok {
		return schemas, nil
	}
	refs, err := r.Refs(ctx, contract)
	if err != nil {
		return Schemas{}, err
	}
	schemas, err := FetchSchemas(ctx, r.ledger, refs, r.Decoder)
	if err != nil {
		return Schemas{}, err
	}
	r.schemas.Set(contract, schemas)
	return schemas, nil
}

// Invalidate drops the memoized entries of contract. Pinned catalogs stay.
func (r *Registry) Invalidate(contract common.Hash) {
	r.refs.Delete(contract)
	r.schemas.Delete(contract)
}
