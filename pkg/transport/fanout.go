package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/h2events/go-sdk/pkg/core/events"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Fanout delivers every batch to several consumers concurrently. A batch is
// handed to all consumers before HandleBatch returns, so each consumer still
// sees batches in order.
type Fanout struct {
	mu        sync.RWMutex
	consumers []Consumer
	logger    logrus.FieldLogger
}

// FanoutOption configures a Fanout
type FanoutOption func(*Fanout)

// WithFanoutLogger sets the logger used to report consumer failures
func WithFanoutLogger(logger logrus.FieldLogger) FanoutOption {
	return func(f *Fanout) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFanout creates a fan-out over consumers
func NewFanout(consumers []Consumer, options ...FanoutOption) *Fanout {
	f := &Fanout{
		consumers: append([]Consumer(nil), consumers...),
		logger:    logrus.StandardLogger(),
	}
	for _, opt := range options {
		opt(f)
	}
	return f
}

// Add registers another consumer for subsequent batches
func (f *Fanout) Add(c Consumer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consumers = append(f.consumers, c)
}

// Len returns the number of consumers
func (f *Fanout) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.consumers)
}

// HandleBatch delivers batch to every consumer and returns the first error.
// The context passed to the consumers is cancelled as soon as one fails.
func (f *Fanout) HandleBatch(ctx context.Context, batch *events.Batch) error {
	f.mu.RLock()
	consumers := append([]Consumer(nil), f.consumers...)
	f.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range consumers {
		g.Go(func() error {
			if err := c.HandleBatch(gctx, batch); err != nil {
				f.logger.WithFields(logrus.Fields{
					"batch_id": batch.ID(),
					"consumer": i,
				}).WithError(err).Warn("consumer failed")
				return fmt.Errorf("consumer %d: %w", i, err)
			}
			return nil
		})
	}
	return g.Wait()
}
