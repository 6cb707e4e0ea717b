package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileCheckpointsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "checkpoint.json")
	store := NewFileCheckpoints(path)
	ctx := context.Background()

	if _, ok, err := store.Load(ctx, "hash-aa"); err != nil || ok {
		t.Fatalf("expected empty store, got ok=%v err=%v", ok, err)
	}

	if err := store.Save(ctx, "hash-aa", 10); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := store.Save(ctx, "hash-bb", 3); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := store.Save(ctx, "hash-aa", 12); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	reopened := NewFileCheckpoints(path)
	cp, ok, err := reopened.Load(ctx, "hash-aa")
	if err != nil || !ok {
		t.Fatalf("load failed: ok=%v err=%v", ok, err)
	}
	if cp.NextIndex != 12 || cp.ContractHash != "hash-aa" || cp.UpdatedAt == "" {
		t.Fatalf("unexpected checkpoint: %+v", cp)
	}
	cp, ok, err = reopened.Load(ctx, "hash-bb")
	if err != nil || !ok || cp.NextIndex != 3 {
		t.Fatalf("unexpected checkpoint for hash-bb: %+v ok=%v err=%v", cp, ok, err)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("tmp file left behind: %v", err)
	}
}

func TestFileCheckpointsRejectsDirectory(t *testing.T) {
	store := NewFileCheckpoints(t.TempDir())
	if _, _, err := store.Load(context.Background(), "hash-aa"); err == nil {
		t.Fatalf("expected error for directory path")
	}
}

func TestFileCheckpointsRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, _, err := NewFileCheckpoints(path).Load(context.Background(), "hash-aa"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestRedisCheckpoints(t *testing.T) {
	addr := os.Getenv("CES_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CES_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	store, err := NewRedisCheckpoints(ctx, RedisConfig{
		Address: addr,
		Prefix:  "ces:test:" + time.Now().UTC().Format("150405.000000000") + ":",
	})
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer store.Close()

	if _, ok, err := store.Load(ctx, "hash-aa"); err != nil || ok {
		t.Fatalf("expected missing checkpoint, got ok=%v err=%v", ok, err)
	}
	if err := store.Save(ctx, "hash-aa", 9); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	cp, ok, err := store.Load(ctx, "hash-aa")
	if err != nil || !ok || cp.NextIndex != 9 {
		t.Fatalf("unexpected checkpoint: %+v ok=%v err=%v", cp, ok, err)
	}
}

func TestRedisCheckpointsRequiresAddress(t *testing.T) {
	if _, err := NewRedisCheckpoints(context.Background(), RedisConfig{}); err == nil {
		t.Fatalf("expected error for empty address")
	}
}
