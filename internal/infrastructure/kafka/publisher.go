package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bibbank/bib/services/loan-servicing/internal/domain/event"
	"github.com/bibbank/bib/services/loan-servicing/pkg/events"
	pkgkafka "github.com/bibbank/bib/services/loan-servicing/pkg/kafka"
)

// Producer is the subset of pkg/kafka.Producer the publisher needs.
type Producer interface {
	Publish(ctx context.Context, topic string, messages ...pkgkafka.Message) error
}

// Topics names the outbound topics events are routed to.
type Topics struct {
	Ledger        string
	Notifications string
}

// EventPublisher writes domain events to Kafka. Each event type goes to the
// ledger topic, the notifications topic or both.
type EventPublisher struct {
	producer Producer
	logger   *slog.Logger
	topics   Topics
}

// NewEventPublisher creates a publisher writing through producer.
func NewEventPublisher(producer Producer, topics Topics, logger *slog.Logger) *EventPublisher {
	return &EventPublisher{
		producer: producer,
		topics:   topics,
		logger:   logger,
	}
}

// routes returns the destination topics for an event type.
func (p *EventPublisher) routes(eventType string) []string {
	switch eventType {
	case event.TypeLoanDisbursed,
		event.TypeFineAssessed,
		event.TypeLoanWrittenOff,
		event.TypeLoanPaidOff:
		return []string{p.topics.Ledger}
	case event.TypeRepaymentAllocated:
		return []string{p.topics.Ledger, p.topics.Notifications}
	case event.TypeDelinquencyStatusChanged:
		return []string{p.topics.Notifications}
	default:
		return nil
	}
}

// Publish serialises events and writes them grouped by topic, keyed by loan
// ID so a loan's events stay ordered within a partition.
func (p *EventPublisher) Publish(ctx context.Context, evts ...event.DomainEvent) error {
	entries, err := events.NewOutboxEntries(evts...)
	if err != nil {
		return err
	}
	return p.PublishEntries(ctx, entries...)
}

// PublishEntries writes already serialised outbox entries. Entries with no
// route are dropped with a warning.
func (p *EventPublisher) PublishEntries(ctx context.Context, entries ...events.OutboxEntry) error {
	byTopic := make(map[string][]pkgkafka.Message)
	var order []string

	for _, entry := range entries {
		topics := p.routes(entry.EventType)
		if len(topics) == 0 {
			p.logger.WarnContext(ctx, "no route for domain event, dropping",
				"event_type", entry.EventType,
				"aggregate_id", entry.AggregateID,
			)
			continue
		}

		msg := pkgkafka.Message{
			Key:   []byte(entry.AggregateID),
			Value: entry.Payload,
			Headers: map[string]string{
				"event_type": entry.EventType,
				"event_id":   entry.ID,
			},
		}
		for _, topic := range topics {
			if _, seen := byTopic[topic]; !seen {
				order = append(order, topic)
			}
			byTopic[topic] = append(byTopic[topic], msg)
		}

		p.logger.DebugContext(ctx, "publishing domain event",
			"event_type", entry.EventType,
			"aggregate_id", entry.AggregateID,
			"topics", topics,
			"payload_size", len(entry.Payload),
		)
	}

	for _, topic := range order {
		if err := p.producer.Publish(ctx, topic, byTopic[topic]...); err != nil {
			return fmt.Errorf("failed to publish events to topic %s: %w", topic, err)
		}
	}
	return nil
}
