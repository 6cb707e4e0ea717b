package storage

import (
	"context"

	"casperEvents/internal/model"
)

// Storage defines a sink for decoded events.
type Storage interface {
	PutEventBatch(ctx context.Context, events []model.EventRecord) error
}

// ErrorSink records events that failed to decode.
type ErrorSink interface {
	PutDecodeErrors(ctx context.Context, failures []model.DecodeError) error
}
