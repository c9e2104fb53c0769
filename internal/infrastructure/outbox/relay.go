// Package outbox delivers domain events recorded in the transactional
// outbox to the message broker.
package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bibbank/bib/services/loan-servicing/pkg/events"
)

const (
	defaultBatchSize = 100
	defaultInterval  = time.Second
)

// Sink writes serialised entries to the broker.
type Sink interface {
	PublishEntries(ctx context.Context, entries ...events.OutboxEntry) error
}

// Relay publishes outbox entries and stamps them as delivered. Use cases
// call Publish right after their commit; Run picks up whatever that missed.
// Delivery is at least once: consumers de-duplicate on the event_id header.
type Relay struct {
	store     events.OutboxRepository
	sink      Sink
	logger    *slog.Logger
	batchSize int
	interval  time.Duration
}

// Option customises a Relay.
type Option func(*Relay)

// WithBatchSize caps the entries published per poll.
func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithInterval sets the pause between polls.
func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

// NewRelay creates a relay reading store and writing to sink.
func NewRelay(store events.OutboxRepository, sink Sink, logger *slog.Logger, opts ...Option) *Relay {
	r := &Relay{
		store:     store,
		sink:      sink,
		logger:    logger,
		batchSize: defaultBatchSize,
		interval:  defaultInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Publish implements port.EventPublisher for events that are already
// committed to the outbox.
func (r *Relay) Publish(ctx context.Context, evts ...events.DomainEvent) error {
	if len(evts) == 0 {
		return nil
	}
	entries, err := events.NewOutboxEntries(evts...)
	if err != nil {
		return err
	}
	return r.deliver(ctx, entries)
}

// Flush publishes one batch of unpublished entries and reports how many
// were delivered.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	entries, err := r.store.FetchUnpublished(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch unpublished: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}
	if err := r.deliver(ctx, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Run flushes until ctx is canceled. A full batch is followed immediately by
// the next one; failures are logged and retried on the next tick.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info("outbox relay starting", "batch_size", r.batchSize, "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		n, err := r.Flush(ctx)
		if err != nil && ctx.Err() == nil {
			r.logger.ErrorContext(ctx, "outbox relay flush failed", "error", err)
		}
		if err == nil && n == r.batchSize {
			continue
		}

		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopping")
			return nil
		case <-ticker.C:
		}
	}
}

func (r *Relay) deliver(ctx context.Context, entries []events.OutboxEntry) error {
	if err := r.sink.PublishEntries(ctx, entries...); err != nil {
		return fmt.Errorf("publish outbox entries: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	if err := r.store.MarkPublished(ctx, ids); err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return nil
}
