package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/bib/services/loan-servicing/internal/domain/valueobject"
)

// InstallmentAllocation is the part of a payment assigned to one installment.
type InstallmentAllocation struct {
	DueDate   time.Time
	Principal decimal.Decimal
	Interest  decimal.Decimal
	Fine      decimal.Decimal
	Tax       decimal.Decimal
	Sequence  int
}

// For returns the amount allocated to a claim.
func (a InstallmentAllocation) For(claim valueobject.ClaimType) decimal.Decimal {
	switch claim {
	case valueobject.ClaimCapital:
		return a.Principal
	case valueobject.ClaimInterest:
		return a.Interest
	case valueobject.ClaimFine:
		return a.Fine
	case valueobject.ClaimTax:
		return a.Tax
	}
	return decimal.Zero
}

// With returns a copy with amount added to the claim.
func (a InstallmentAllocation) With(claim valueobject.ClaimType, amount decimal.Decimal) InstallmentAllocation {
	switch claim {
	case valueobject.ClaimCapital:
		a.Principal = a.Principal.Add(amount)
	case valueobject.ClaimInterest:
		a.Interest = a.Interest.Add(amount)
	case valueobject.ClaimFine:
		a.Fine = a.Fine.Add(amount)
	case valueobject.ClaimTax:
		a.Tax = a.Tax.Add(amount)
	}
	return a
}

// Total is the sum over all claims.
func (a InstallmentAllocation) Total() decimal.Decimal {
	return a.Principal.Add(a.Interest).Add(a.Fine).Add(a.Tax)
}

// PaymentAllocationResult is the breakdown of one payment. On success
// Allocated() + CreditBalance == Payment and Unapplied is zero.
type PaymentAllocationResult struct {
	Payment       decimal.Decimal
	CreditBalance decimal.Decimal
	Unapplied     decimal.Decimal
	Allocations   []InstallmentAllocation
}

// Allocated sums every bucket of every touched installment.
func (r PaymentAllocationResult) Allocated() decimal.Decimal {
	total := decimal.Zero
	for _, a := range r.Allocations {
		total = total.Add(a.Total())
	}
	return total
}

// TotalFor sums one claim across installments.
func (r PaymentAllocationResult) TotalFor(claim valueobject.ClaimType) decimal.Decimal {
	total := decimal.Zero
	for _, a := range r.Allocations {
		total = total.Add(a.For(claim))
	}
	return total
}
