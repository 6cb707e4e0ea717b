package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"casperEvents/internal/ces"
	"casperEvents/internal/clvalue"
	"casperEvents/internal/errs"
	"casperEvents/internal/metrics"
	"casperEvents/internal/model"
	"casperEvents/internal/storage"
)

// RunConfig holds runtime settings for the sync runner.
type RunConfig struct {
	Contracts []common.Hash
	FromIndex uint64
	// ToIndex bounds the sync exclusively; zero means the current event count.
	ToIndex      uint64
	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
}

// Deps are the collaborators of a Runner. Only Ledger and Storage are required.
type Deps struct {
	Ledger      ces.Ledger
	Registry    *ces.Registry
	Decoder     *clvalue.Decoder
	Storage     storage.Storage
	Errors      storage.ErrorSink
	Checkpoints CheckpointStore
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
}

// Runner copies the event lists of contracts into storage.
type Runner struct {
	cfg  RunConfig
	deps Deps
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, deps Deps) *Runner {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Registry == nil && deps.Ledger != nil {
		deps.Registry = ces.NewRegistry(deps.Ledger, 0)
		deps.Registry.Decoder = deps.Decoder
	}
	return &Runner{cfg: cfg, deps: deps}
}

// Run syncs every configured contract in order.
func (r *Runner) Run(ctx context.Context) error {
	if r.deps.Ledger == nil {
		return fmt.Errorf("ledger is nil")
	}
	if r.deps.Storage == nil {
		return fmt.Errorf("storage is nil")
	}
	if r.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if len(r.cfg.Contracts) == 0 {
		return fmt.Errorf("at least one contract is required")
	}

	for _, contract := range r.cfg.Contracts {
		if err := r.syncContract(ctx, contract); err != nil {
			return fmt.Errorf("sync %s: %w", ContractKey(contract), err)
		}
	}
	return nil
}

func (r *Runner) syncContract(ctx context.Context, contract common.Hash) error {
	name := ContractKey(contract)
	logger := r.deps.Logger.With(zap.String("contract", name))

	var refs ces.MetadataRefs
	err := r.retry(ctx, func(ctx context.Context) error {
		var err error
		refs, err = r.deps.Registry.Refs(ctx, contract)
		return err
	})
	if err != nil {
		return err
	}

	var schemas ces.Schemas
	err = r.retry(ctx, func(ctx context.Context) error {
		var err error
		schemas, err = r.deps.Registry.Schemas(ctx, contract)
		return err
	})
	if err != nil {
		return err
	}

	fetcher := ces.NewFetcher(r.deps.Ledger, refs, r.deps.Logger)
	if r.deps.Decoder != nil {
		fetcher.Decoder = r.deps.Decoder
	}

	var count uint32
	err = r.retry(ctx, func(ctx context.Context) error {
		var err error
		count, err = fetcher.Count(ctx)
		return err
	})
	if err != nil {
		return err
	}

	from := r.cfg.FromIndex
	to := uint64(count)
	if r.cfg.ToIndex != 0 && r.cfg.ToIndex < to {
		to = r.cfg.ToIndex
	}

	if r.deps.Checkpoints != nil {
		cp, ok, err := r.deps.Checkpoints.Load(ctx, name)
		if err != nil {
			return fmt.Errorf("load checkpoint: %w", err)
		}
		if ok && cp.NextIndex > from {
			from = cp.NextIndex
			logger.Info("resume from checkpoint", zap.Uint64("next_index", cp.NextIndex))
		}
	}

	if from >= to {
		logger.Info("nothing to sync", zap.Uint64("from", from), zap.Uint64("to", to))
		r.deps.Metrics.Synced(name, from)
		return nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, batch := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		records, failures, err := r.fetchBatch(ctx, fetcher, schemas, name, batch)
		if err != nil {
			return err
		}

		if err := r.deps.Storage.PutEventBatch(ctx, records); err != nil {
			return fmt.Errorf("store events: %w", err)
		}
		if r.deps.Errors != nil {
			if err := r.deps.Errors.PutDecodeErrors(ctx, failures); err != nil {
				return fmt.Errorf("store decode errors: %w", err)
			}
		}

		if r.deps.Checkpoints != nil {
			if err := r.deps.Checkpoints.Save(ctx, name, batch.To); err != nil {
				return fmt.Errorf("save checkpoint: %w", err)
			}
		}
		r.deps.Metrics.Synced(name, batch.To)

		logger.Info("batch complete",
			zap.Int("events", len(records)),
			zap.Int("failures", len(failures)),
			zap.Uint64("from", batch.From),
			zap.Uint64("to", batch.To))
	}

	return nil
}

// fetchBatch decodes every event of batch. Connection failures that survive retries abort
// the batch; any other failure is reported per event.
func (r *Runner) fetchBatch(ctx context.Context, fetcher *ces.Fetcher, schemas ces.Schemas, name string, batch IndexRange) ([]model.EventRecord, []model.DecodeError, error) {
	ingestedAt := time.Now().UTC()
	records := make([]model.EventRecord, 0, batch.Len())
	var failures []model.DecodeError

	for index := batch.From; index < batch.To; index++ {
		var ev ces.Event
		err := r.retry(ctx, func(ctx context.Context) error {
			var err error
			ev, err = fetcher.Event(ctx, index, schemas)
			return err
		})
		if err == nil {
			var record model.EventRecord
			record, err = NewEventRecord(name, ev, ingestedAt)
			if err == nil {
				records = append(records, record)
				r.deps.Metrics.EventDecoded(name, ev.Name)
				continue
			}
		}
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		if errs.IsConnection(err) {
			return nil, nil, err
		}

		failure := NewDecodeError(name, index, err, time.Now())
		failures = append(failures, failure)
		r.deps.Metrics.EventFailed(name, failure.Kind)
		r.deps.Logger.Warn("event decode failed",
			zap.String("contract", name),
			zap.Uint64("index", index),
			zap.String("kind", failure.Kind),
			zap.Error(err))
	}

	return records, failures, nil
}

func (r *Runner) retry(ctx context.Context, fn func(context.Context) error) error {
	return withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		err := fn(ctx)
		if errs.IsConnection(err) {
			r.deps.Logger.Warn("rpc failed, retrying", zap.Error(err))
		}
		return err
	})
}
