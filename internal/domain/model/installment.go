package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/bib/services/loan-servicing/internal/domain/valueobject"
)

// Installment is one scheduled due-date entry of a repayment plan. The
// contractual amounts are fixed at generation time (PenaltyDue grows when a
// fine is assessed); the *Paid amounts only move through
// RepaymentAllocator.Apply.
type Installment struct {
	PeriodStart time.Time
	DueDate     time.Time
	// SettledAt is zero until every claim on the installment is paid.
	SettledAt time.Time

	OpeningBalance decimal.Decimal
	PrincipalDue   decimal.Decimal
	InterestDue    decimal.Decimal
	TaxDue         decimal.Decimal
	PenaltyDue     decimal.Decimal
	ClosingBalance decimal.Decimal

	PrincipalPaid decimal.Decimal
	InterestPaid  decimal.Decimal
	PenaltyPaid   decimal.Decimal
	TaxPaid       decimal.Decimal

	Sequence int
}

// Due returns the contractual amount for a claim.
func (i Installment) Due(claim valueobject.ClaimType) decimal.Decimal {
	switch claim {
	case valueobject.ClaimCapital:
		return i.PrincipalDue
	case valueobject.ClaimInterest:
		return i.InterestDue
	case valueobject.ClaimFine:
		return i.PenaltyDue
	case valueobject.ClaimTax:
		return i.TaxDue
	}
	return decimal.Zero
}

// Paid returns the amount already paid against a claim.
func (i Installment) Paid(claim valueobject.ClaimType) decimal.Decimal {
	switch claim {
	case valueobject.ClaimCapital:
		return i.PrincipalPaid
	case valueobject.ClaimInterest:
		return i.InterestPaid
	case valueobject.ClaimFine:
		return i.PenaltyPaid
	case valueobject.ClaimTax:
		return i.TaxPaid
	}
	return decimal.Zero
}

// Outstanding returns what is still owed on a claim, never negative.
func (i Installment) Outstanding(claim valueobject.ClaimType) decimal.Decimal {
	out := i.Due(claim).Sub(i.Paid(claim))
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// TotalDue is the sum of all contractual claims.
func (i Installment) TotalDue() decimal.Decimal {
	return i.PrincipalDue.Add(i.InterestDue).Add(i.PenaltyDue).Add(i.TaxDue)
}

// TotalOutstanding is the sum of all open claims.
func (i Installment) TotalOutstanding() decimal.Decimal {
	total := decimal.Zero
	for _, c := range ClaimTypes {
		total = total.Add(i.Outstanding(c))
	}
	return total
}

// IsSettled reports whether nothing remains owed.
func (i Installment) IsSettled() bool { return i.TotalOutstanding().IsZero() }

// IsOverdue reports whether the installment is unsettled and its due date
// lies strictly before asOf.
func (i Installment) IsOverdue(asOf time.Time) bool {
	return !i.IsSettled() && i.DueDate.Before(asOf)
}

// withPaid returns a copy with amount added to the claim's paid-to-date.
func (i Installment) withPaid(claim valueobject.ClaimType, amount decimal.Decimal) Installment {
	switch claim {
	case valueobject.ClaimCapital:
		i.PrincipalPaid = i.PrincipalPaid.Add(amount)
	case valueobject.ClaimInterest:
		i.InterestPaid = i.InterestPaid.Add(amount)
	case valueobject.ClaimFine:
		i.PenaltyPaid = i.PenaltyPaid.Add(amount)
	case valueobject.ClaimTax:
		i.TaxPaid = i.TaxPaid.Add(amount)
	}
	return i
}

// WithAllocation returns a copy with the allocation added to paid-to-date
// amounts. SettledAt is stamped with at the moment the installment becomes
// fully paid.
func (i Installment) WithAllocation(a InstallmentAllocation, at time.Time) Installment {
	next := i
	for _, c := range ClaimTypes {
		next = next.withPaid(c, a.For(c))
	}
	if next.SettledAt.IsZero() && next.IsSettled() {
		next.SettledAt = at
	}
	return next
}

// ClaimTypes lists every claim an installment can carry.
var ClaimTypes = []valueobject.ClaimType{
	valueobject.ClaimInterest,
	valueobject.ClaimCapital,
	valueobject.ClaimFine,
	valueobject.ClaimTax,
}

// CopyInstallments returns a shallow copy of the slice.
func CopyInstallments(in []Installment) []Installment {
	if in == nil {
		return nil
	}
	out := make([]Installment, len(in))
	copy(out, in)
	return out
}
