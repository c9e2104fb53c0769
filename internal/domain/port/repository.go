package port

import (
	"context"

	"github.com/bibbank/bib/services/loan-servicing/internal/domain/event"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/model"
)

// ---------------------------------------------------------------------------
// Repository ports (driven/secondary adapters)
// ---------------------------------------------------------------------------

// LoanRepository persists and retrieves loans with their installment plans.
// Save fails with model.ErrConcurrentModification when the stored version
// differs from the one the loan was loaded at; FindByID fails with
// model.ErrNotFound for unknown ids.
//
// Save stores the loan's pending domain events in the outbox within the same
// transaction, and records each RepaymentAllocated under its payment id so
// a payment id is only ever applied once.
type LoanRepository interface {
	Save(ctx context.Context, loan model.Loan) error
	FindByID(ctx context.Context, id string) (model.Loan, error)
	// FindRepayment returns the allocation recorded for a payment id, or
	// model.ErrNotFound.
	FindRepayment(ctx context.Context, paymentID string) (event.RepaymentAllocated, error)
	// FindServicingIDs lists loans that are disbursed and not yet closed.
	FindServicingIDs(ctx context.Context) ([]string, error)
}

// ProductRepository looks up validated loan products.
type ProductRepository interface {
	FindByID(ctx context.Context, id string) (model.LoanProduct, error)
}

// ---------------------------------------------------------------------------
// Event publisher port
// ---------------------------------------------------------------------------

// EventPublisher publishes domain events to external consumers. Events reach
// it only after they are committed to the outbox, so a failed publish delays
// delivery but loses nothing.
type EventPublisher interface {
	Publish(ctx context.Context, events ...event.DomainEvent) error
}

// ---------------------------------------------------------------------------
// Concurrency
// ---------------------------------------------------------------------------

// LoanLocker serialises commits against a single loan. fn runs while the
// lock is held and its error is returned unchanged.
type LoanLocker interface {
	WithLock(ctx context.Context, loanID string, fn func(ctx context.Context) error) error
}
