package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// OutboxEntry represents a domain event stored in the outbox table.
type OutboxEntry struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       []byte
	OccurredAt    time.Time
	PublishedAt   *time.Time
}

// NewOutboxEntry creates an OutboxEntry from a DomainEvent.
// The payload is produced by JSON-marshalling the event itself.
func NewOutboxEntry(event DomainEvent) (OutboxEntry, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return OutboxEntry{}, fmt.Errorf("marshal event %s: %w", event.EventType(), err)
	}
	return OutboxEntry{
		ID:            event.EventID(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		EventType:     event.EventType(),
		Payload:       payload,
		OccurredAt:    event.OccurredAt(),
	}, nil
}

// NewOutboxEntries converts events in order.
func NewOutboxEntries(evts ...DomainEvent) ([]OutboxEntry, error) {
	entries := make([]OutboxEntry, 0, len(evts))
	for _, evt := range evts {
		entry, err := NewOutboxEntry(evt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// OutboxRepository is the port for outbox persistence. Entries are stored
// by the aggregate repository inside its own transaction.
type OutboxRepository interface {
	FetchUnpublished(ctx context.Context, batchSize int) ([]OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []string) error
}
