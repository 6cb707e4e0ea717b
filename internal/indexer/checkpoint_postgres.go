package indexer

import (
	"context"

	"casperEvents/internal/model"
	"casperEvents/internal/storage/postgres"
)

// PostgresCheckpoints keeps checkpoints in the indexer_state table.
type PostgresCheckpoints struct {
	store *postgres.Store
}

var _ CheckpointStore = (*PostgresCheckpoints)(nil)

func NewPostgresCheckpoints(store *postgres.Store) *PostgresCheckpoints {
	return &PostgresCheckpoints{store: store}
}

func (c *PostgresCheckpoints) Load(ctx context.Context, contract string) (model.Checkpoint, bool, error) {
	next, ok, err := c.store.LoadState(ctx, stateName(contract))
	if err != nil || !ok {
		return model.Checkpoint{}, ok, err
	}
	return model.Checkpoint{ContractHash: contract, NextIndex: next}, true, nil
}

func (c *PostgresCheckpoints) Save(ctx context.Context, contract string, next uint64) error {
	return c.store.SaveState(ctx, stateName(contract), next)
}

func stateName(contract string) string {
	return "ces:" + contract
}
