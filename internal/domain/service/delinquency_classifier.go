package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/bib/services/loan-servicing/internal/domain/model"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/valueobject"
	"github.com/bibbank/bib/services/loan-servicing/pkg/money"
)

// ---------------------------------------------------------------------------
// DelinquencyClassifier – stateless domain service
// ---------------------------------------------------------------------------

// DelinquencyClassifier maps days past due to a bucket of a validated
// DelinquencyPolicy.
type DelinquencyClassifier struct{}

// NewDelinquencyClassifier returns a new classifier.
func NewDelinquencyClassifier() *DelinquencyClassifier {
	return &DelinquencyClassifier{}
}

// FineCharge is a fine to be added to one overdue installment.
type FineCharge struct {
	Amount   decimal.Decimal
	Sequence int
}

// Classify returns the first bucket, scanning in ascending DaysFrom order,
// whose range contains daysPastDue. The last bucket is unbounded.
func (c *DelinquencyClassifier) Classify(policy model.DelinquencyPolicy, daysPastDue int) (model.DelinquencyBucket, error) {
	if policy.IsZero() {
		return model.DelinquencyBucket{}, model.NewConfigurationError("delinquency_buckets", "policy is empty")
	}
	if daysPastDue < 0 {
		return model.DelinquencyBucket{}, model.NewValidationError("days_past_due", "must not be negative")
	}

	buckets := policy.Buckets()
	for i, b := range buckets {
		if daysPastDue < b.DaysFrom {
			continue
		}
		if i == len(buckets)-1 || daysPastDue <= b.DaysTo {
			return b, nil
		}
	}
	// A validated policy starts at 0 and has no gaps.
	return buckets[len(buckets)-1], nil
}

// DaysPastDue counts whole calendar days between the due date of the oldest
// unsettled installment and asOf. It is zero when nothing is overdue.
func (c *DelinquencyClassifier) DaysPastDue(installments []model.Installment, asOf time.Time) int {
	var oldest time.Time
	for _, inst := range installments {
		if !inst.IsOverdue(asOf) {
			continue
		}
		if oldest.IsZero() || inst.DueDate.Before(oldest) {
			oldest = inst.DueDate
		}
	}
	if oldest.IsZero() {
		return 0
	}
	days := daysBetween(oldest, asOf)
	if days < 0 {
		return 0
	}
	return days
}

// FinesDue lists the fines owed for installments overdue at asOf that have
// not been fined yet. The fine is priced on what is still owed for
// principal, interest and tax.
func (c *DelinquencyClassifier) FinesDue(
	installments []model.Installment,
	asOf time.Time,
	currency money.Currency,
	fine model.FineDefinition,
) []FineCharge {
	if fine.IsZero() {
		return nil
	}

	var charges []FineCharge
	for _, inst := range installments {
		if !inst.IsOverdue(asOf) || inst.PenaltyDue.IsPositive() {
			continue
		}
		overdue := inst.Outstanding(valueobject.ClaimCapital).
			Add(inst.Outstanding(valueobject.ClaimInterest)).
			Add(inst.Outstanding(valueobject.ClaimTax))
		amount := fine.Amount(currency, overdue)
		if amount.IsPositive() {
			charges = append(charges, FineCharge{Sequence: inst.Sequence, Amount: amount})
		}
	}
	return charges
}
