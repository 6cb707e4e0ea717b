package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// Sink and checkpoint backend names.
const (
	SinkJSONL    = "jsonl"
	SinkPostgres = "postgres"

	CheckpointFile     = "file"
	CheckpointRedis    = "redis"
	CheckpointPostgres = "postgres"
	CheckpointNone     = "none"
)

// SyncConfig holds configuration for the sync command.
type SyncConfig struct {
	Config

	Contracts      []string
	From           uint64
	To             uint64
	BatchSize      uint64
	Sink           string
	Out            string
	Errors         string
	PGDSN          string
	Checkpoint     string
	CheckpointPath string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisPrefix    string
	MaxRetries     int
	RetryBackoff   time.Duration
	MetricsAddr    string
}

// LoadSync merges config file, environment variables, and flags into SyncConfig.
func LoadSync(cfgFile string, flags *pflag.FlagSet) (SyncConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"batch-size":      uint64(100),
		"sink":            SinkJSONL,
		"out":             "./data/events.jsonl",
		"errors":          "./data/decode_errors.jsonl",
		"checkpoint":      CheckpointFile,
		"checkpoint-path": "./data/checkpoint.json",
		"redis-prefix":    "ces:checkpoints:",
		"max-retries":     5,
		"retry-backoff":   500 * time.Millisecond,
	})
	if err != nil {
		return SyncConfig{}, err
	}

	cfg := SyncConfig{
		Config:         baseConfig(v),
		Contracts:      getStringSlice(v, "contract"),
		From:           v.GetUint64("from"),
		To:             v.GetUint64("to"),
		BatchSize:      v.GetUint64("batch-size"),
		Sink:           v.GetString("sink"),
		Out:            v.GetString("out"),
		Errors:         v.GetString("errors"),
		PGDSN:          v.GetString("pg-dsn"),
		Checkpoint:     v.GetString("checkpoint"),
		CheckpointPath: v.GetString("checkpoint-path"),
		RedisAddr:      v.GetString("redis-addr"),
		RedisPassword:  v.GetString("redis-password"),
		RedisDB:        v.GetInt("redis-db"),
		RedisPrefix:    v.GetString("redis-prefix"),
		MaxRetries:     v.GetInt("max-retries"),
		RetryBackoff:   v.GetDuration("retry-backoff"),
		MetricsAddr:    v.GetString("metrics-addr"),
	}

	return cfg, nil
}

// Validate checks the combinations the sync command cannot run with.
func (c SyncConfig) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if len(c.Contracts) == 0 {
		return fmt.Errorf("contract list is required")
	}
	if c.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if c.To != 0 && c.To <= c.From {
		return fmt.Errorf("to index must be greater than from index")
	}

	switch c.Sink {
	case SinkJSONL:
		if c.Out == "" {
			return fmt.Errorf("output path is required")
		}
	case SinkPostgres:
		if c.PGDSN == "" {
			return fmt.Errorf("pg dsn is required for the postgres sink")
		}
	default:
		return fmt.Errorf("unknown sink %q", c.Sink)
	}

	switch c.Checkpoint {
	case CheckpointFile:
		if c.CheckpointPath == "" {
			return fmt.Errorf("checkpoint path is required")
		}
	case CheckpointRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis address is required for redis checkpoints")
		}
	case CheckpointPostgres:
		if c.PGDSN == "" {
			return fmt.Errorf("pg dsn is required for postgres checkpoints")
		}
	case CheckpointNone:
	default:
		return fmt.Errorf("unknown checkpoint backend %q", c.Checkpoint)
	}

	return nil
}
