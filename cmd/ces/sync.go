package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"casperEvents/internal/config"
	"casperEvents/internal/indexer"
	"casperEvents/internal/metrics"
	"casperEvents/internal/storage"
	"casperEvents/internal/storage/postgres"
)

func newSyncCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Copy the event lists of contracts into storage",
		RunE:  runSync,
	}

	cmd.Flags().StringSlice("contract", nil, "contract hashes (comma-separated)")
	cmd.Flags().Uint64("from", 0, "first event index (inclusive)")
	cmd.Flags().Uint64("to", 0, "last event index (exclusive), 0 means the current count")
	cmd.Flags().Uint64("batch-size", 100, "events per batch")
	cmd.Flags().String("sink", config.SinkJSONL, "event sink (jsonl, postgres)")
	cmd.Flags().String("out", "./data/events.jsonl", "output JSONL path")
	cmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL path")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN")
	cmd.Flags().String("checkpoint", config.CheckpointFile, "checkpoint backend (file, redis, postgres, none)")
	cmd.Flags().String("checkpoint-path", "./data/checkpoint.json", "checkpoint file path")
	cmd.Flags().String("redis-addr", "", "Redis address for checkpoints")
	cmd.Flags().String("redis-password", "", "Redis password")
	cmd.Flags().Int("redis-db", 0, "Redis database")
	cmd.Flags().String("redis-prefix", "ces:checkpoints:", "Redis checkpoint key prefix")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts on connection errors")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}

func runSync(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSync(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	contracts, err := indexer.ParseContractHashes(cfg.Contracts)
	if err != nil {
		return err
	}

	m := metrics.New()
	a, err := newApp(cfg.Config, m)
	if err != nil {
		return err
	}
	defer a.close()
	a.pin(contracts...)
	logger := a.logger

	ctx, stop := signalContext()
	defer stop()

	var pg *postgres.Store
	if cfg.Sink == config.SinkPostgres || cfg.Checkpoint == config.CheckpointPostgres {
		pg, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	var (
		sink     storage.Storage
		failures storage.ErrorSink
	)
	switch cfg.Sink {
	case config.SinkPostgres:
		sink, failures = pg, pg
	default:
		sink = storage.NewJsonlStorage(cfg.Out)
		if cfg.Errors != "" {
			failures = storage.NewJsonlStorage(cfg.Errors)
		}
	}

	var checkpoints indexer.CheckpointStore
	switch cfg.Checkpoint {
	case config.CheckpointFile:
		checkpoints = indexer.NewFileCheckpoints(cfg.CheckpointPath)
	case config.CheckpointRedis:
		rc, err := indexer.NewRedisCheckpoints(ctx, indexer.RedisConfig{
			Address:  cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Database: cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
		if err != nil {
			return err
		}
		defer rc.Close()
		checkpoints = rc
	case config.CheckpointPostgres:
		checkpoints = indexer.NewPostgresCheckpoints(pg)
	}

	runner := indexer.NewRunner(indexer.RunConfig{
		Contracts:    contracts,
		FromIndex:    cfg.From,
		ToIndex:      cfg.To,
		BatchSize:    cfg.BatchSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, indexer.Deps{
		Ledger:      a.client,
		Registry:    a.registry,
		Decoder:     a.decoder,
		Storage:     sink,
		Errors:      failures,
		Checkpoints: checkpoints,
		Metrics:     m,
		Logger:      logger,
	})

	logger.Info("sync start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("protocol", a.client.Protocol().Name()),
		zap.Int("contracts", len(contracts)),
		zap.Uint64("from", cfg.From),
		zap.Uint64("to", cfg.To),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("sink", cfg.Sink),
		zap.String("checkpoint", cfg.Checkpoint),
	)

	if cfg.MetricsAddr == "" {
		return runner.Run(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)
	serveCtx, stopServe := context.WithCancel(gctx)
	g.Go(func() error {
		return m.Serve(serveCtx, cfg.MetricsAddr, logger)
	})
	g.Go(func() error {
		defer stopServe()
		return runner.Run(gctx)
	})
	return g.Wait()
}
