package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/bib/services/loan-servicing/internal/domain/model"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/valueobject"
	"github.com/bibbank/bib/services/loan-servicing/pkg/money"
)

// ---------------------------------------------------------------------------
// RepaymentAllocator – stateless domain service
// ---------------------------------------------------------------------------

// RepaymentAllocator splits a payment across the open claims of a loan.
//
// Installments are served oldest due date first. Within an installment the
// claims are served in ascending rank. A claim the remaining payment fully
// covers is paid in full and the rest carries on. When the remainder falls
// short at a claim with a configured rate, the remainder is shared pro rata
// by rate among that claim and the later-ranked open claims of the same
// installment; without a rate the claim simply takes what is left.
type RepaymentAllocator struct{}

// NewRepaymentAllocator returns a new allocator.
func NewRepaymentAllocator() *RepaymentAllocator {
	return &RepaymentAllocator{}
}

// Allocate computes the split without mutating installments. The result
// always satisfies Allocated() + CreditBalance == payment.
func (a *RepaymentAllocator) Allocate(
	currency money.Currency,
	payment decimal.Decimal,
	installments []model.Installment,
	order model.RepaymentOrderConfig,
	policy valueobject.OverpaymentPolicy,
) (model.PaymentAllocationResult, error) {
	switch {
	case currency.IsZero():
		return model.PaymentAllocationResult{}, model.NewConfigurationError("currency", "is required")
	case order.IsZero():
		return model.PaymentAllocationResult{}, model.NewConfigurationError("repayment_order", "is required")
	case policy.IsZero():
		return model.PaymentAllocationResult{}, model.NewConfigurationError("overpayment_policy", "is required")
	case !payment.IsPositive():
		return model.PaymentAllocationResult{}, model.NewValidationError("payment", "must be positive")
	case !currency.Fits(payment):
		return model.PaymentAllocationResult{}, model.NewValidationError("payment",
			"more decimal places than "+currency.Code()+" allows")
	}

	pending := outstandingByDueDate(installments)

	totalOutstanding := decimal.Zero
	for _, inst := range pending {
		totalOutstanding = totalOutstanding.Add(inst.TotalOutstanding())
	}

	result := model.PaymentAllocationResult{
		Payment:       payment,
		CreditBalance: decimal.Zero,
		Unapplied:     decimal.Zero,
	}

	remaining := payment
	if payment.GreaterThan(totalOutstanding) {
		if policy.Equal(valueobject.OverpaymentReject) {
			return model.PaymentAllocationResult{}, &model.OverpaymentError{Payment: payment, Outstanding: totalOutstanding}
		}
		result.CreditBalance = payment.Sub(totalOutstanding)
		remaining = totalOutstanding
	}

	entries := order.Entries()
	for _, inst := range pending {
		if !remaining.IsPositive() {
			break
		}
		var alloc model.InstallmentAllocation
		alloc, remaining = allocateInstallment(currency, inst, entries, remaining)
		if alloc.Total().IsPositive() {
			result.Allocations = append(result.Allocations, alloc)
		}
	}
	result.Unapplied = remaining

	if !result.Allocated().Add(result.CreditBalance).Equal(payment) || !result.Unapplied.IsZero() {
		return model.PaymentAllocationResult{}, fmt.Errorf("%w: allocated %s + credit %s != payment %s",
			model.ErrAllocationInvariant, result.Allocated(), result.CreditBalance, payment)
	}
	return result, nil
}

// Apply returns a copy of installments with the allocation added to the
// paid-to-date amounts. Installments the result does not touch are copied
// unchanged; input order is preserved.
func (a *RepaymentAllocator) Apply(installments []model.Installment, result model.PaymentAllocationResult, at time.Time) []model.Installment {
	bySeq := make(map[int]model.InstallmentAllocation, len(result.Allocations))
	for _, alloc := range result.Allocations {
		bySeq[alloc.Sequence] = alloc
	}

	out := model.CopyInstallments(installments)
	for i, inst := range out {
		if alloc, ok := bySeq[inst.Sequence]; ok {
			out[i] = inst.WithAllocation(alloc, at)
		}
	}
	return out
}

// allocateInstallment serves one installment and returns what is left of
// the payment.
func allocateInstallment(
	currency money.Currency,
	inst model.Installment,
	entries []model.RepaymentOrderEntry,
	remaining decimal.Decimal,
) (model.InstallmentAllocation, decimal.Decimal) {
	alloc := model.InstallmentAllocation{Sequence: inst.Sequence, DueDate: inst.DueDate}

	open := make(map[valueobject.ClaimType]decimal.Decimal, len(entries))
	for _, e := range entries {
		open[e.Claim] = inst.Outstanding(e.Claim)
	}

	for idx, e := range entries {
		if !remaining.IsPositive() {
			break
		}
		owed := open[e.Claim]
		if !owed.IsPositive() {
			continue
		}
		if remaining.GreaterThanOrEqual(owed) {
			alloc = alloc.With(e.Claim, owed)
			remaining = remaining.Sub(owed)
			open[e.Claim] = decimal.Zero
			continue
		}

		// Shortfall at this rank.
		if e.Rate.IsPositive() {
			for claim, share := range splitProRata(currency, remaining, entries[idx:], open) {
				alloc = alloc.With(claim, share)
			}
		} else {
			alloc = alloc.With(e.Claim, remaining)
		}
		remaining = decimal.Zero
	}
	return alloc, remaining
}

// splitProRata shares amount among the open claims of entries (the short
// claim first, then later ranks) weighted by their configured rates. Each
// share is floored to the currency and capped at what the claim owes; the
// rounding remainder goes to the lowest-ranked claim that still has
// capacity. The first entry always owes more than amount, so the remainder
// is always absorbed and the shares sum to amount exactly.
func splitProRata(
	currency money.Currency,
	amount decimal.Decimal,
	entries []model.RepaymentOrderEntry,
	open map[valueobject.ClaimType]decimal.Decimal,
) map[valueobject.ClaimType]decimal.Decimal {
	var participants []model.RepaymentOrderEntry
	weight := decimal.Zero
	for _, e := range entries {
		if e.Rate.IsPositive() && open[e.Claim].IsPositive() {
			participants = append(participants, e)
			weight = weight.Add(e.Rate)
		}
	}

	shares := make(map[valueobject.ClaimType]decimal.Decimal, len(participants))
	distributed := decimal.Zero
	for _, p := range participants {
		share := currency.Floor(amount.Mul(p.Rate).DivRound(weight, ratePrecision))
		if share.GreaterThan(open[p.Claim]) {
			share = open[p.Claim]
		}
		shares[p.Claim] = share
		distributed = distributed.Add(share)
	}

	leftover := amount.Sub(distributed)
	for i := len(participants) - 1; i >= 0 && leftover.IsPositive(); i-- {
		claim := participants[i].Claim
		capacity := open[claim].Sub(shares[claim])
		if !capacity.IsPositive() {
			continue
		}
		top := decimal.Min(capacity, leftover)
		shares[claim] = shares[claim].Add(top)
		leftover = leftover.Sub(top)
	}
	return shares
}

// outstandingByDueDate returns the unsettled installments ordered oldest
// due first, ties broken by sequence.
func outstandingByDueDate(installments []model.Installment) []model.Installment {
	out := make([]model.Installment, 0, len(installments))
	for _, inst := range installments {
		if inst.TotalOutstanding().IsPositive() {
			out = append(out, inst)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].Sequence < out[j].Sequence
	})
	return out
}
