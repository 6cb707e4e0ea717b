package postgres

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casperEvents/internal/model"
)

// openTestStore connects to CES_TEST_PG_DSN and skips when it is unset.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("CES_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("CES_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	store, err := NewStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.EnsureSchema(ctx))
	return store
}

func TestNewStoreRequiresDSN(t *testing.T) {
	_, err := NewStore(context.Background(), "")
	require.Error(t, err)
}

func TestStoreUpsertsEvents(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	contract := "hash-test-" + time.Now().UTC().Format("150405.000000000")
	now := time.Now().UTC().Format(time.RFC3339Nano)

	rec := model.EventRecord{
		ContractHash: contract,
		EventIndex:   3,
		EventName:    "Mint",
		Fields:       json.RawMessage(`[{"name":"amount","type":"U512","value":"1"}]`),
		Raw:          "00",
		IngestedAt:   now,
	}
	require.NoError(t, store.PutEventBatch(ctx, []model.EventRecord{rec}))
	rec.EventName = "Burn"
	require.NoError(t, store.PutEventBatch(ctx, []model.EventRecord{rec}))

	var name string
	var count int
	require.NoError(t, store.pool.QueryRow(ctx,
		`SELECT event_name, count(*) OVER () FROM ces_events WHERE contract_hash=$1`, contract).Scan(&name, &count))
	assert.Equal(t, "Burn", name)
	assert.Equal(t, 1, count)
}

func TestStoreState(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	name := "state-test-" + time.Now().UTC().Format("150405.000000000")

	_, ok, err := store.LoadState(ctx, name)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SaveState(ctx, name, 12))
	next, ok, err := store.LoadState(ctx, name)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(12), next)
}
