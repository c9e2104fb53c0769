package model

import (
	"github.com/shopspring/decimal"

	"github.com/bibbank/bib/services/loan-servicing/internal/domain/valueobject"
	"github.com/bibbank/bib/services/loan-servicing/pkg/money"
)

// DefaultMaxInstallments bounds schedule size when a product sets no limit.
const DefaultMaxInstallments = 2000

// FineDefinition prices the one-off fine charged on an overdue installment.
type FineDefinition struct {
	FlatAmount    decimal.Decimal
	RateOnOverdue decimal.Decimal
}

// Amount returns flat + rate × overdue, rounded to the currency.
func (f FineDefinition) Amount(currency money.Currency, overdue decimal.Decimal) decimal.Decimal {
	return currency.Round(f.FlatAmount.Add(f.RateOnOverdue.Mul(overdue)))
}

// IsZero reports whether the definition never charges anything.
func (f FineDefinition) IsZero() bool {
	return f.FlatAmount.IsZero() && f.RateOnOverdue.IsZero()
}

// LoanProductParams carries the raw product configuration.
type LoanProductParams struct {
	OrderOverrides    map[string]RepaymentOrderConfig
	Fine              FineDefinition
	TaxRateOnInterest decimal.Decimal
	ID                string
	Name              string
	Currency          money.Currency
	Overpayment       valueobject.OverpaymentPolicy
	RepaymentOrder    RepaymentOrderConfig
	Delinquency       DelinquencyPolicy
	MaxInstallments   int
}

// LoanProduct is the validated, read-only configuration a loan is serviced
// under.
type LoanProduct struct {
	orderOverrides    map[string]RepaymentOrderConfig
	fine              FineDefinition
	taxRateOnInterest decimal.Decimal
	id                string
	name              string
	currency          money.Currency
	overpayment       valueobject.OverpaymentPolicy
	repaymentOrder    RepaymentOrderConfig
	delinquency       DelinquencyPolicy
	maxInstallments   int
}

// NewLoanProduct validates p. Overrides must be keyed by a label of the
// delinquency policy.
func NewLoanProduct(p LoanProductParams) (LoanProduct, error) {
	switch {
	case p.ID == "":
		return LoanProduct{}, NewConfigurationError("product.id", "is required")
	case p.Currency.IsZero():
		return LoanProduct{}, NewConfigurationError("product.currency", "is required")
	case p.RepaymentOrder.IsZero():
		return LoanProduct{}, NewConfigurationError("product.repayment_order", "is required")
	case p.Delinquency.IsZero():
		return LoanProduct{}, NewConfigurationError("product.delinquency_buckets", "are required")
	case p.Overpayment.IsZero():
		return LoanProduct{}, NewConfigurationError("product.overpayment_policy", "is required")
	case p.MaxInstallments < 0:
		return LoanProduct{}, NewConfigurationError("product.max_installments", "must not be negative")
	case p.TaxRateOnInterest.IsNegative():
		return LoanProduct{}, NewConfigurationError("product.tax_rate_on_interest", "must not be negative")
	case p.Fine.FlatAmount.IsNegative() || p.Fine.RateOnOverdue.IsNegative():
		return LoanProduct{}, NewConfigurationError("product.fine", "must not be negative")
	}

	labels := make(map[string]bool)
	for _, b := range p.Delinquency.Buckets() {
		labels[b.Label] = true
	}
	overrides := make(map[string]RepaymentOrderConfig, len(p.OrderOverrides))
	for label, cfg := range p.OrderOverrides {
		if !labels[label] {
			return LoanProduct{}, NewConfigurationError("product.repayment_order_overrides",
				"unknown delinquency status "+label)
		}
		if cfg.IsZero() {
			return LoanProduct{}, NewConfigurationError("product.repayment_order_overrides",
				"empty order for "+label)
		}
		overrides[label] = cfg
	}

	maxInstallments := p.MaxInstallments
	if maxInstallments == 0 {
		maxInstallments = DefaultMaxInstallments
	}

	return LoanProduct{
		id:                p.ID,
		name:              p.Name,
		currency:          p.Currency,
		repaymentOrder:    p.RepaymentOrder,
		orderOverrides:    overrides,
		delinquency:       p.Delinquency,
		overpayment:       p.Overpayment,
		fine:              p.Fine,
		taxRateOnInterest: p.TaxRateOnInterest,
		maxInstallments:   maxInstallments,
	}, nil
}

func (p LoanProduct) ID() string                                   { return p.id }
func (p LoanProduct) Name() string                                 { return p.name }
func (p LoanProduct) Currency() money.Currency                     { return p.currency }
func (p LoanProduct) RepaymentOrder() RepaymentOrderConfig         { return p.repaymentOrder }
func (p LoanProduct) Delinquency() DelinquencyPolicy               { return p.delinquency }
func (p LoanProduct) Overpayment() valueobject.OverpaymentPolicy   { return p.overpayment }
func (p LoanProduct) Fine() FineDefinition                         { return p.fine }
func (p LoanProduct) TaxRateOnInterest() decimal.Decimal           { return p.taxRateOnInterest }
func (p LoanProduct) MaxInstallments() int                         { return p.maxInstallments }

// OrderFor returns the repayment order for a delinquency status, falling
// back to the default order.
func (p LoanProduct) OrderFor(status string) RepaymentOrderConfig {
	if cfg, ok := p.orderOverrides[status]; ok {
		return cfg
	}
	return p.repaymentOrder
}
