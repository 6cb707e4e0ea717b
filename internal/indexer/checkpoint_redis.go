package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"casperEvents/internal/model"
)

// RedisConfig configures the Redis checkpoint backend.
type RedisConfig struct {
	Address  string
	Password string
	Database int
	// Prefix is prepended to every checkpoint key.
	Prefix  string
	Timeout time.Duration
}

// RedisCheckpoints stores one JSON checkpoint per contract key.
type RedisCheckpoints struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

var _ CheckpointStore = (*RedisCheckpoints)(nil)

// NewRedisCheckpoints connects to Redis and verifies the connection.
func NewRedisCheckpoints(ctx context.Context, cfg RedisConfig) (*RedisCheckpoints, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "ces:checkpoints:"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.Database,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisCheckpoints{client: client, prefix: cfg.Prefix, timeout: cfg.Timeout}, nil
}

func (c *RedisCheckpoints) key(contract string) string {
	return c.prefix + contract
}

func (c *RedisCheckpoints) Load(ctx context.Context, contract string) (model.Checkpoint, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, err := c.client.Get(ctx, c.key(contract)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Checkpoint{}, false, nil
		}
		return model.Checkpoint{}, false, fmt.Errorf("load checkpoint from redis: %w", err)
	}

	var cp model.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return model.Checkpoint{}, false, fmt.Errorf("parse checkpoint: %w", err)
	}
	return cp, true, nil
}

func (c *RedisCheckpoints) Save(ctx context.Context, contract string, next uint64) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, err := json.Marshal(newCheckpoint(contract, next))
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := c.client.Set(ctx, c.key(contract), data, 0).Err(); err != nil {
		return fmt.Errorf("save checkpoint to redis: %w", err)
	}
	return nil
}

func (c *RedisCheckpoints) Close() error {
	return c.client.Close()
}
