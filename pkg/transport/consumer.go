package transport

import (
	"context"

	"github.com/h2events/go-sdk/pkg/core/events"
)

// Consumer receives the batches of one connection in the order they were
// produced. HandleBatch must not modify the batch or its events.
type Consumer interface {
	HandleBatch(ctx context.Context, batch *events.Batch) error
}

// ConsumerFunc adapts a function to the Consumer interface.
type ConsumerFunc func(ctx context.Context, batch *events.Batch) error

// HandleBatch calls f(ctx, batch).
func (f ConsumerFunc) HandleBatch(ctx context.Context, batch *events.Batch) error {
	return f(ctx, batch)
}

var _ Consumer = (*events.Tracker)(nil)
