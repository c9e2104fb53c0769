package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bibbank/bib/services/loan-servicing/internal/domain/event"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/valueobject"
)

// ---------------------------------------------------------------------------
// Loan aggregate root
// ---------------------------------------------------------------------------

// Loan is an immutable aggregate. Mutations return a new copy. The product
// is referenced by id only and looked up through its repository.
type Loan struct {
	disbursedAt       time.Time
	classifiedAsOf    time.Time
	createdAt         time.Time
	updatedAt         time.Time
	terms             LoanTerms
	creditBalance     decimal.Decimal
	id                string
	productID         string
	borrowerAccountID string
	delinquencyStatus string
	status            valueobject.LoanStatus
	installments      []Installment
	domainEvents      []event.DomainEvent
	flags             DelinquencyFlags
	daysPastDue       int
	version           int
}

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

// NewLoan creates a PENDING loan. The schedule is attached on disbursement.
func NewLoan(productID, borrowerAccountID string, terms LoanTerms, now time.Time) (Loan, error) {
	if productID == "" {
		return Loan{}, NewValidationError("product_id", "is required")
	}
	if borrowerAccountID == "" {
		return Loan{}, NewValidationError("borrower_account_id", "is required")
	}
	if err := terms.Validate(); err != nil {
		return Loan{}, err
	}

	return Loan{
		id:                uuid.New().String(),
		productID:         productID,
		borrowerAccountID: borrowerAccountID,
		terms:             terms,
		status:            valueobject.LoanStatusPending,
		creditBalance:     decimal.Zero,
		version:           1,
		createdAt:         now,
		updatedAt:         now,
	}, nil
}

// LoanSnapshot carries persisted loan state into ReconstructLoan.
type LoanSnapshot struct {
	DisbursedAt       time.Time
	ClassifiedAsOf    time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Terms             LoanTerms
	CreditBalance     decimal.Decimal
	ID                string
	ProductID         string
	BorrowerAccountID string
	DelinquencyStatus string
	Status            valueobject.LoanStatus
	Installments      []Installment
	Flags             DelinquencyFlags
	DaysPastDue       int
	Version           int
}

// ReconstructLoan rebuilds a Loan aggregate from persistence.
func ReconstructLoan(s LoanSnapshot) Loan {
	return Loan{
		id:                s.ID,
		productID:         s.ProductID,
		borrowerAccountID: s.BorrowerAccountID,
		terms:             s.Terms,
		status:            s.Status,
		delinquencyStatus: s.DelinquencyStatus,
		flags:             s.Flags,
		daysPastDue:       s.DaysPastDue,
		classifiedAsOf:    s.ClassifiedAsOf,
		installments:      CopyInstallments(s.Installments),
		creditBalance:     s.CreditBalance,
		disbursedAt:       s.DisbursedAt,
		version:           s.Version,
		createdAt:         s.CreatedAt,
		updatedAt:         s.UpdatedAt,
	}
}

// ---------------------------------------------------------------------------
// State transitions
// ---------------------------------------------------------------------------

// Disburse attaches the generated schedule and moves PENDING -> DISBURSED.
func (l Loan) Disburse(schedule []Installment, performingStatus string, now time.Time) (Loan, error) {
	if !l.status.CanTransitionTo(valueobject.LoanStatusDisbursed) {
		return l, valueobject.ErrInvalidStatusTransition
	}
	if len(schedule) == 0 {
		return l, NewValidationError("schedule", "must contain at least one installment")
	}

	next := l
	next.installments = CopyInstallments(schedule)
	next.status = valueobject.LoanStatusDisbursed
	next.delinquencyStatus = performingStatus
	next.disbursedAt = now
	next.updatedAt = now

	totalInterest, totalTax := decimal.Zero, decimal.Zero
	for _, inst := range schedule {
		totalInterest = totalInterest.Add(inst.InterestDue)
		totalTax = totalTax.Add(inst.TaxDue)
	}

	next.domainEvents = copyEvents(l.domainEvents)
	next.domainEvents = append(next.domainEvents, event.NewLoanDisbursed(
		l.id, l.productID, l.borrowerAccountID,
		l.terms.Principal, totalInterest, totalTax,
		l.terms.Currency.Code(), len(schedule),
		schedule[0].DueDate, schedule[len(schedule)-1].DueDate, now,
	))
	return next, nil
}

// RecordRepayment stores installments updated by the allocator together with
// the allocation itself. A loan whose claims are all settled moves to
// PAID_OFF.
func (l Loan) RecordRepayment(paymentID string, result PaymentAllocationResult, updated []Installment, now time.Time) (Loan, error) {
	if !l.status.IsServicing() {
		return l, valueobject.ErrInvalidStatusTransition
	}
	if len(updated) != len(l.installments) {
		return l, errors.New("updated schedule does not match the loan's installments")
	}

	next := l
	next.installments = CopyInstallments(updated)
	next.creditBalance = l.creditBalance.Add(result.CreditBalance)
	next.updatedAt = now
	next.domainEvents = copyEvents(l.domainEvents)

	lines := make([]event.AllocationLine, 0, len(result.Allocations))
	for _, a := range result.Allocations {
		lines = append(lines, event.AllocationLine{
			Sequence:  a.Sequence,
			DueDate:   a.DueDate,
			Principal: a.Principal,
			Interest:  a.Interest,
			Fine:      a.Fine,
			Tax:       a.Tax,
		})
	}
	next.domainEvents = append(next.domainEvents, event.NewRepaymentAllocated(
		l.id, paymentID, l.borrowerAccountID,
		result.Payment, result.CreditBalance, next.Outstanding(),
		l.terms.Currency.Code(), lines, now,
	))

	if next.Outstanding().IsZero() {
		next.status = valueobject.LoanStatusPaidOff
		next.daysPastDue = 0
		next.domainEvents = append(next.domainEvents, event.NewLoanPaidOff(
			l.id, next.creditBalance, l.terms.Currency.Code(), now,
		))
	}
	return next, nil
}

// AssessFine adds a fine to one installment's penalty due.
func (l Loan) AssessFine(sequence int, amount decimal.Decimal, daysPastDue int, now time.Time) (Loan, error) {
	if !l.status.IsServicing() {
		return l, valueobject.ErrInvalidStatusTransition
	}
	if !amount.IsPositive() {
		return l, NewValidationError("fine", "must be positive")
	}

	idx := -1
	for i, inst := range l.installments {
		if inst.Sequence == sequence {
			idx = i
			break
		}
	}
	if idx < 0 {
		return l, NewValidationError("installment", "unknown sequence")
	}

	next := l
	next.installments = CopyInstallments(l.installments)
	inst := next.installments[idx]
	inst.PenaltyDue = inst.PenaltyDue.Add(amount)
	inst.SettledAt = time.Time{}
	next.installments[idx] = inst
	next.updatedAt = now
	next.domainEvents = copyEvents(l.domainEvents)
	next.domainEvents = append(next.domainEvents, event.NewFineAssessed(
		l.id, inst.Sequence, inst.DueDate, amount, l.terms.Currency.Code(), daysPastDue, now,
	))
	return next, nil
}

// Reclassify records the delinquency bucket computed for asOf. The first
// bucket of the policy keeps or returns the loan to PERFORMING; any other
// bucket makes it DELINQUENT. A status-change event is raised only when the
// bucket label changes.
func (l Loan) Reclassify(bucket DelinquencyBucket, performing bool, daysPastDue int, asOf, now time.Time) (Loan, error) {
	if !l.status.IsServicing() {
		return l, valueobject.ErrInvalidStatusTransition
	}

	target := valueobject.LoanStatusDelinquent
	if performing {
		target = valueobject.LoanStatusPerforming
	}
	if !l.status.Equal(target) && !l.status.CanTransitionTo(target) {
		return l, valueobject.ErrInvalidStatusTransition
	}

	next := l
	next.status = target
	next.daysPastDue = daysPastDue
	next.classifiedAsOf = asOf
	next.flags = bucket.DelinquencyFlags
	next.delinquencyStatus = bucket.Label
	next.updatedAt = now
	next.domainEvents = copyEvents(l.domainEvents)

	if l.delinquencyStatus != bucket.Label {
		next.domainEvents = append(next.domainEvents, event.NewDelinquencyStatusChanged(
			l.id, l.borrowerAccountID, l.delinquencyStatus, bucket.Label, target.String(),
			daysPastDue, event.DelinquencyFlags{
				NotifyClient:      bucket.NotifyClient,
				NotifyStaff:       bucket.NotifyStaff,
				AffectCreditScore: bucket.AffectCreditScore,
				ReportToBureau:    bucket.ReportToBureau,
			}, now,
		))
	}
	return next, nil
}

// WriteOff removes the loan from servicing. It is only ever triggered by an
// explicit external action.
func (l Loan) WriteOff(reason string, now time.Time) (Loan, error) {
	if !l.status.CanTransitionTo(valueobject.LoanStatusWrittenOff) {
		return l, valueobject.ErrInvalidStatusTransition
	}
	if reason == "" {
		return l, NewValidationError("reason", "is required")
	}

	var principal, interest, fine, tax decimal.Decimal
	for _, inst := range l.installments {
		principal = principal.Add(inst.Outstanding(valueobject.ClaimCapital))
		interest = interest.Add(inst.Outstanding(valueobject.ClaimInterest))
		fine = fine.Add(inst.Outstanding(valueobject.ClaimFine))
		tax = tax.Add(inst.Outstanding(valueobject.ClaimTax))
	}

	next := l
	next.status = valueobject.LoanStatusWrittenOff
	next.updatedAt = now
	next.domainEvents = copyEvents(l.domainEvents)
	next.domainEvents = append(next.domainEvents, event.NewLoanWrittenOff(
		l.id, principal, interest, fine, tax, l.terms.Currency.Code(), reason, now,
	))
	return next, nil
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

func (l Loan) ID() string                        { return l.id }
func (l Loan) ProductID() string                 { return l.productID }
func (l Loan) BorrowerAccountID() string         { return l.borrowerAccountID }
func (l Loan) Terms() LoanTerms                  { return l.terms }
func (l Loan) Status() valueobject.LoanStatus    { return l.status }
func (l Loan) DelinquencyStatus() string         { return l.delinquencyStatus }
func (l Loan) Flags() DelinquencyFlags           { return l.flags }
func (l Loan) DaysPastDue() int                  { return l.daysPastDue }
func (l Loan) ClassifiedAsOf() time.Time         { return l.classifiedAsOf }
func (l Loan) CreditBalance() decimal.Decimal    { return l.creditBalance }
func (l Loan) DisbursedAt() time.Time            { return l.disbursedAt }
func (l Loan) Version() int                      { return l.version }
func (l Loan) CreatedAt() time.Time              { return l.createdAt }
func (l Loan) UpdatedAt() time.Time              { return l.updatedAt }
func (l Loan) DomainEvents() []event.DomainEvent { return l.domainEvents }

// Installments returns a defensive copy of the repayment plan.
func (l Loan) Installments() []Installment {
	return CopyInstallments(l.installments)
}

// Outstanding sums every open claim across the plan.
func (l Loan) Outstanding() decimal.Decimal {
	total := decimal.Zero
	for _, inst := range l.installments {
		total = total.Add(inst.TotalOutstanding())
	}
	return total
}

// ClearEvents returns a copy with an empty event list.
func (l Loan) ClearEvents() Loan {
	next := l
	next.domainEvents = nil
	return next
}

func copyEvents(src []event.DomainEvent) []event.DomainEvent {
	if src == nil {
		return nil
	}
	dst := make([]event.DomainEvent, len(src))
	copy(dst, src)
	return dst
}
