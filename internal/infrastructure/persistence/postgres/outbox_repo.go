package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bibbank/bib/services/loan-servicing/pkg/events"
)

// OutboxRepo implements events.OutboxRepository over the outbox table that
// LoanRepo.Save writes to.
type OutboxRepo struct {
	pool *pgxpool.Pool
	// settle keeps freshly committed entries away from the relay while the
	// committing request publishes them itself.
	settle time.Duration
}

// NewOutboxRepo creates an outbox repository. Entries younger than settle
// are not returned by FetchUnpublished.
func NewOutboxRepo(pool *pgxpool.Pool, settle time.Duration) *OutboxRepo {
	return &OutboxRepo{pool: pool, settle: settle}
}

// FetchUnpublished returns up to batchSize unpublished entries, oldest first.
func (r *OutboxRepo) FetchUnpublished(ctx context.Context, batchSize int) ([]events.OutboxEntry, error) {
	query := `
		SELECT id, aggregate_id, aggregate_type, event_type, payload, occurred_at, published_at
		FROM outbox
		WHERE published_at IS NULL
		  AND recorded_at <= now() - make_interval(secs => $2)
		ORDER BY recorded_at, id
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, batchSize, r.settle.Seconds())
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (events.OutboxEntry, error) {
		var e events.OutboxEntry
		err := row.Scan(&e.ID, &e.AggregateID, &e.AggregateType, &e.EventType, &e.Payload, &e.OccurredAt, &e.PublishedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan outbox: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps the given entries as delivered. Already stamped
// entries keep their first timestamp.
func (r *OutboxRepo) MarkPublished(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := `
		UPDATE outbox SET published_at = now()
		WHERE id = ANY($1) AND published_at IS NULL
	`
	if _, err := r.pool.Exec(ctx, query, ids); err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}
