package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"casperEvents/internal/clvalue"
)

func runMetadata(cmd *cobra.Command, args []string) error {
	contract, err := parseContract(args[0])
	if err != nil {
		return err
	}
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext()
	defer stop()

	refs, err := a.registry.Refs(ctx, contract)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), refs)
}

func runSchema(cmd *cobra.Command, args []string) error {
	contract, err := parseContract(args[0])
	if err != nil {
		return err
	}
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()
	a.pin(contract)

	ctx, stop := signalContext()
	defer stop()

	schemas, err := a.registry.Schemas(ctx, contract)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), schemas)
}

func runCount(cmd *cobra.Command, args []string) error {
	contract, err := parseContract(args[0])
	if err != nil {
		return err
	}
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signalContext()
	defer stop()

	f, err := a.fetcher(ctx, contract)
	if err != nil {
		return err
	}
	count, err := f.Count(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), map[string]interface{}{
		"contract_hash": clvalue.Key{Tag: clvalue.KeyTagHash, Hash: contract}.String(),
		"count":         count,
	})
}

func runEvent(cmd *cobra.Command, args []string) error {
	contract, err := parseContract(args[0])
	if err != nil {
		return err
	}
	index, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid event index %q: %w", args[1], err)
	}
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()
	a.pin(contract)

	ctx, stop := signalContext()
	defer stop()

	schemas, err := a.registry.Schemas(ctx, contract)
	if err != nil {
		return err
	}
	f, err := a.fetcher(ctx, contract)
	if err != nil {
		return err
	}
	ev, err := f.Event(ctx, index, schemas)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), ev)
}

func newExecutionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "execution <hash>",
		Short: "Decode the events a deploy or transaction emitted for a contract",
		Args:  cobra.ExactArgs(1),
		RunE:  runExecution,
	}
	cmd.Flags().String("contract", "", "contract whose events to decode")
	return cmd
}

func runExecution(cmd *cobra.Command, args []string) error {
	executionHash, err := clvalue.ParseHash(args[0])
	if err != nil {
		return err
	}
	contractArg, _ := cmd.Flags().GetString("contract")
	contract, err := parseContract(contractArg)
	if err != nil {
		return err
	}
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()
	a.pin(contract)

	ctx, stop := signalContext()
	defer stop()

	schemas, err := a.registry.Schemas(ctx, contract)
	if err != nil {
		return err
	}
	f, err := a.fetcher(ctx, contract)
	if err != nil {
		return err
	}
	events, err := f.EventsOfExecution(ctx, executionHash, schemas)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), events)
}
