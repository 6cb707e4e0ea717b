package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"casperEvents/internal/model"
)

// CheckpointStore persists the sync position of each contract.
type CheckpointStore interface {
	Load(ctx context.Context, contract string) (model.Checkpoint, bool, error)
	Save(ctx context.Context, contract string, next uint64) error
}

func newCheckpoint(contract string, next uint64) model.Checkpoint {
	return model.Checkpoint{
		ContractHash: contract,
		NextIndex:    next,
		UpdatedAt:    time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// FileCheckpoints keeps every contract's checkpoint in one JSON file.
type FileCheckpoints struct {
	path string
	mu   sync.Mutex
}

var _ CheckpointStore = (*FileCheckpoints)(nil)

func NewFileCheckpoints(path string) *FileCheckpoints {
	return &FileCheckpoints{path: path}
}

func (c *FileCheckpoints) Load(_ context.Context, contract string) (model.Checkpoint, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	all, err := c.readAll()
	if err != nil {
		return model.Checkpoint{}, false, err
	}
	cp, ok := all[contract]
	return cp, ok, nil
}

func (c *FileCheckpoints) Save(_ context.Context, contract string, next uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	all, err := c.readAll()
	if err != nil {
		return err
	}
	all[contract] = newCheckpoint(contract, next)

	dir := filepath.Dir(c.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint tmp: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}

	return nil
}

func (c *FileCheckpoints) readAll() (map[string]model.Checkpoint, error) {
	all := make(map[string]model.Checkpoint)

	stat, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return all, nil
		}
		return nil, fmt.Errorf("stat checkpoint: %w", err)
	}
	if stat.IsDir() {
		return nil, fmt.Errorf("checkpoint path is a directory")
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("parse checkpoint: %w", err)
	}
	return all, nil
}
