package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/bib/services/loan-servicing/internal/domain/valueobject"
	"github.com/bibbank/bib/services/loan-servicing/pkg/money"
)

// LoanTerms is the contractual input to schedule generation. It is a value
// object: once a committed loan's schedule exists the terms are never
// changed.
type LoanTerms struct {
	FirstRepaymentDate time.Time
	// DisbursementDate anchors the first interest period when set.
	DisbursementDate time.Time

	Principal         decimal.Decimal
	AnnualRate        decimal.Decimal // fraction, 0.12 == 12% p.a.
	TaxRateOnInterest decimal.Decimal

	Currency       money.Currency
	DurationUnit   valueobject.DurationUnit
	Cycle          valueobject.RepaymentCycle
	Method         valueobject.AmortizationMethod
	InterestPeriod valueobject.InterestPeriod

	Duration int
	// NumberOfInstallments is derived from Duration and Cycle when zero.
	NumberOfInstallments int
}

// Validate checks the terms in two passes: enumerations and currency first,
// reported as ConfigurationError, then numeric ranges, reported as
// ValidationError.
func (t LoanTerms) Validate() error {
	switch {
	case t.Currency.IsZero():
		return NewConfigurationError("currency", "is required")
	case t.Cycle.IsZero():
		return NewConfigurationError("cycle", "unknown repayment cycle")
	case t.DurationUnit.IsZero():
		return NewConfigurationError("duration_unit", "unknown duration unit")
	case t.Method.IsZero():
		return NewConfigurationError("method", "unknown amortization method")
	case t.InterestPeriod.IsZero():
		return NewConfigurationError("interest_period", "unknown interest period")
	}

	switch {
	case !t.Principal.IsPositive():
		return NewValidationError("principal", "must be positive")
	case !t.Currency.Fits(t.Principal):
		return NewValidationError("principal", "more decimal places than "+t.Currency.Code()+" allows")
	case !t.AnnualRate.IsPositive():
		return NewValidationError("annual_rate", "must be positive")
	case t.Duration <= 0:
		return NewValidationError("duration", "must be positive")
	case t.NumberOfInstallments < 0:
		return NewValidationError("number_of_installments", "must not be negative")
	case t.TaxRateOnInterest.IsNegative():
		return NewValidationError("tax_rate_on_interest", "must not be negative")
	case t.FirstRepaymentDate.IsZero():
		return NewValidationError("first_repayment_date", "is required")
	case !t.DisbursementDate.IsZero() && !calendarDay(t.DisbursementDate).Before(calendarDay(t.FirstRepaymentDate)):
		return NewValidationError("disbursement_date", "must be before the first repayment date")
	}
	return nil
}

// calendarDay drops the time of day so that a same-day disbursement and
// first repayment compare equal.
func calendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DurationInYears expresses the loan duration as a fraction of a year.
func (t LoanTerms) DurationInYears() decimal.Decimal {
	return t.DurationUnit.InYears(t.Duration)
}
