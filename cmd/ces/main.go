package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "ces",
		Short:        "Casper contract event toolkit",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path")
	flags.String("rpc", "", "node JSON-RPC URL")
	flags.String("protocol", "v1", "node protocol (v1 for 1.x nodes, v2 for 2.x nodes)")
	flags.Duration("timeout", 30*time.Second, "RPC request timeout")
	flags.StringSlice("rpc-header", nil, "extra RPC headers (comma-separated key=value)")
	flags.Int("max-depth", 64, "maximum nesting depth of decoded types")
	flags.Bool("allow-any", false, "decode Any values as opaque markers instead of failing")
	flags.Int("cache-size", 128, "contracts kept in the metadata and schema caches")
	flags.String("schema-file", "", "YAML/JSON schema catalog used instead of the on-chain schema")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		&cobra.Command{
			Use:   "metadata <contract>",
			Short: "Resolve the event named keys of a contract",
			Args:  cobra.ExactArgs(1),
			RunE:  runMetadata,
		},
		&cobra.Command{
			Use:   "schema <contract>",
			Short: "Print the event schemas of a contract",
			Args:  cobra.ExactArgs(1),
			RunE:  runSchema,
		},
		&cobra.Command{
			Use:   "count <contract>",
			Short: "Print the number of events a contract has emitted",
			Args:  cobra.ExactArgs(1),
			RunE:  runCount,
		},
		&cobra.Command{
			Use:   "event <contract> <index>",
			Short: "Fetch and decode one event",
			Args:  cobra.ExactArgs(2),
			RunE:  runEvent,
		},
		newExecutionCommand(),
		newDecodeCommand(),
		newSyncCommand(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
