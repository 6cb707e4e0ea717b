package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"casperEvents/internal/model"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS ces_events (
	contract_hash  TEXT        NOT NULL,
	event_index    BIGINT      NOT NULL,
	event_name     TEXT        NOT NULL,
	fields         JSONB       NOT NULL,
	raw            TEXT        NOT NULL,
	execution_hash TEXT,
	ingested_at    TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (contract_hash, event_index)
);
CREATE INDEX IF NOT EXISTS ces_events_name_idx ON ces_events (contract_hash, event_name);
CREATE TABLE IF NOT EXISTS ces_decode_errors (
	contract_hash TEXT        NOT NULL,
	event_index   BIGINT      NOT NULL,
	kind          TEXT        NOT NULL,
	context       TEXT,
	error         TEXT        NOT NULL,
	failed_at     TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (contract_hash, event_index)
);
CREATE TABLE IF NOT EXISTS indexer_state (
	name       TEXT        PRIMARY KEY,
	next_index BIGINT      NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for decoded events and sync state.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables the store writes to.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// PutEventBatch inserts or updates decoded events keyed by (contract_hash, event_index).
func (s *Store) PutEventBatch(ctx context.Context, events []model.EventRecord) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ev := range events {
		var execution *string
		if ev.ExecutionHash != "" {
			execution = &ev.ExecutionHash
		}
		batch.Queue(`
			INSERT INTO ces_events (
				contract_hash, event_index, event_name, fields, raw, execution_hash, ingested_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, now())
			ON CONFLICT (contract_hash, event_index)
			DO UPDATE SET
				event_name = EXCLUDED.event_name,
				fields = EXCLUDED.fields,
				raw = EXCLUDED.raw,
				execution_hash = COALESCE(EXCLUDED.execution_hash, ces_events.execution_hash),
				updated_at = now()
		`,
			ev.ContractHash,
			int64(ev.EventIndex),
			ev.EventName,
			string(ev.Fields),
			ev.Raw,
			execution,
			ev.IngestedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// PutDecodeErrors records the latest failure per event.
func (s *Store) PutDecodeErrors(ctx context.Context, failures []model.DecodeError) error {
	if len(failures) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, f := range failures {
		batch.Queue(`
			INSERT INTO ces_decode_errors (contract_hash, event_index, kind, context, error, failed_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (contract_hash, event_index)
			DO UPDATE SET
				kind = EXCLUDED.kind,
				context = EXCLUDED.context,
				error = EXCLUDED.error,
				failed_at = EXCLUDED.failed_at
		`,
			f.ContractHash,
			int64(f.EventIndex),
			f.Kind,
			f.Context,
			f.Error,
			f.FailedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range failures {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns the next index stored under name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var next int64
	row := s.pool.QueryRow(ctx, `SELECT next_index FROM indexer_state WHERE name=$1`, name)
	if err := row.Scan(&next); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(next), true, nil
}

// SaveState upserts the next index for name.
func (s *Store) SaveState(ctx context.Context, name string, next uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer_state (name, next_index, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET next_index = EXCLUDED.next_index, updated_at = now()
	`, name, int64(next))
	return err
}
