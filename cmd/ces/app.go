package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"casperEvents/internal/ces"
	"casperEvents/internal/chain"
	"casperEvents/internal/clvalue"
	"casperEvents/internal/config"
	"casperEvents/internal/indexer"
	"casperEvents/internal/metrics"
)

// app bundles the collaborators every node-facing command needs.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	client   *chain.Client
	registry *ces.Registry
	decoder  *clvalue.Decoder
	pinned   ces.Schemas
	hasPin   bool
}

func newApp(cfg config.Config, m *metrics.Metrics) (*app, error) {
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	client, err := chain.NewClient(chain.Config{
		URL:      cfg.RPCURL,
		Protocol: cfg.Protocol,
		Timeout:  cfg.Timeout,
		Headers:  cfg.Headers,
	}, m, logger)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		registry: ces.NewRegistry(client, cfg.CacheSize),
		decoder:  &clvalue.Decoder{MaxDepth: cfg.MaxDepth, AllowAny: cfg.AllowAny},
	}
	a.registry.Decoder = a.decoder
	if cfg.SchemaFile != "" {
		a.pinned, err = ces.LoadSchemaFile(cfg.SchemaFile, a.decoder)
		if err != nil {
			return nil, err
		}
		a.hasPin = true
		logger.Info("using schema file", zap.String("path", cfg.SchemaFile), zap.Int("events", a.pinned.Len()))
	}
	return a, nil
}

// loadApp reads the shared configuration of cmd and builds an app.
func loadApp(cmd *cobra.Command) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	return newApp(cfg, nil)
}

// pin routes schema lookups for contracts to the schema file, when one is configured.
func (a *app) pin(contracts ...common.Hash) {
	if !a.hasPin {
		return
	}
	for _, contract := range contracts {
		a.registry.Pin(contract, a.pinned)
	}
}

// fetcher resolves contract metadata and returns a fetcher using the configured decoder.
func (a *app) fetcher(ctx context.Context, contract common.Hash) (*ces.Fetcher, error) {
	refs, err := a.registry.Refs(ctx, contract)
	if err != nil {
		return nil, err
	}
	f := ces.NewFetcher(a.client, refs, a.logger)
	f.Decoder = a.decoder
	return f, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

func parseContract(arg string) (common.Hash, error) {
	hashes, err := indexer.ParseContractHashes([]string{arg})
	if err != nil {
		return common.Hash{}, err
	}
	if len(hashes) == 0 {
		return common.Hash{}, fmt.Errorf("contract hash is required")
	}
	return hashes[0], nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
