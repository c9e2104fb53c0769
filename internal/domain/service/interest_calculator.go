package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/bib/services/loan-servicing/internal/domain/model"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/valueobject"
	"github.com/bibbank/bib/services/loan-servicing/pkg/money"
)

// ratePrecision is the number of decimal places kept for periodic rates and
// period ratios. Amounts are rounded to the currency only at the end.
const ratePrecision = 20

var (
	daysPerYear   = decimal.NewFromInt(365)
	daysPerWeek   = decimal.NewFromInt(7)
	monthsPerYear = decimal.NewFromInt(12)
	weeksPerYear  = decimal.NewFromInt(52)
)

// ---------------------------------------------------------------------------
// InterestCalculator – stateless domain service
// ---------------------------------------------------------------------------

// InterestCalculator computes per-period interest.
//
// The annual rate is normalised to the product's interest period before it
// is applied:
//
//	DAILY   = annual / 365
//	WEEKLY  = annual / 52
//	MONTHLY = annual / 12
//	YEARLY  = annual
//
// and one repayment cycle is then expressed as a number of those periods
// (see PeriodsElapsed).
type InterestCalculator struct{}

// NewInterestCalculator returns a new calculator.
func NewInterestCalculator() *InterestCalculator {
	return &InterestCalculator{}
}

// PeriodicRate normalises an annual rate to the interest period.
func (c *InterestCalculator) PeriodicRate(annualRate decimal.Decimal, period valueobject.InterestPeriod) (decimal.Decimal, error) {
	if period.IsZero() {
		return decimal.Zero, model.NewConfigurationError("interest_period", "unknown interest period")
	}
	if !annualRate.IsPositive() {
		return decimal.Zero, model.NewValidationError("annual_rate", "must be positive")
	}
	return annualRate.DivRound(period.PeriodsPerYear(), ratePrecision), nil
}

// InterestFor returns balanceBase × periodicRate × periodsElapsed rounded
// half-up to the currency's minor unit. For declining-balance loans the
// base is the installment's opening balance; for flat loans it is the
// original principal.
func (c *InterestCalculator) InterestFor(
	currency money.Currency,
	balanceBase, periodicRate, periodsElapsed decimal.Decimal,
) (decimal.Decimal, error) {
	switch {
	case !periodicRate.IsPositive():
		return decimal.Zero, model.NewValidationError("periodic_rate", "must be positive")
	case !periodsElapsed.IsPositive():
		return decimal.Zero, model.NewValidationError("duration", "must be positive")
	case balanceBase.IsNegative():
		return decimal.Zero, model.NewValidationError("balance", "must not be negative")
	}
	return currency.Round(balanceBase.Mul(periodicRate).Mul(periodsElapsed)), nil
}

// PeriodsElapsed expresses one repayment cycle, running from periodStart to
// dueDate, in interest periods.
//
// A DAILY interest period counts the actual days between the two dates.
// Every other period uses the nominal length of the cycle, so a monthly
// cycle is exactly one MONTHLY period regardless of the month's length:
//
//	            month-based cycle (m months)   day-based cycle (d days)
//	WEEKLY      m × 52 / 12                     d / 7
//	MONTHLY     m                               d × 12 / 365
//	YEARLY      m / 12                          d / 365
func (c *InterestCalculator) PeriodsElapsed(
	cycle valueobject.RepaymentCycle,
	periodStart, dueDate time.Time,
	period valueobject.InterestPeriod,
) decimal.Decimal {
	if period.Equal(valueobject.InterestPeriodDaily) {
		return decimal.NewFromInt(int64(daysBetween(periodStart, dueDate)))
	}

	months := decimal.NewFromInt(int64(cycle.Months()))
	days := decimal.NewFromInt(int64(cycle.Days()))
	monthBased := cycle.Months() > 0

	switch period {
	case valueobject.InterestPeriodWeekly:
		if monthBased {
			return months.Mul(weeksPerYear).DivRound(monthsPerYear, ratePrecision)
		}
		return days.DivRound(daysPerWeek, ratePrecision)
	case valueobject.InterestPeriodMonthly:
		if monthBased {
			return months
		}
		return days.Mul(monthsPerYear).DivRound(daysPerYear, ratePrecision)
	default:
		if monthBased {
			return months.DivRound(monthsPerYear, ratePrecision)
		}
		return days.DivRound(daysPerYear, ratePrecision)
	}
}

// CycleRate is the nominal rate for one repayment cycle, used to size the
// level payment of an annuity.
func (c *InterestCalculator) CycleRate(annualRate decimal.Decimal, cycle valueobject.RepaymentCycle) decimal.Decimal {
	if cycle.Months() > 0 {
		return annualRate.Mul(decimal.NewFromInt(int64(cycle.Months()))).DivRound(monthsPerYear, ratePrecision)
	}
	return annualRate.Mul(decimal.NewFromInt(int64(cycle.Days()))).DivRound(daysPerYear, ratePrecision)
}

// SimpleInterest returns principal × annualRate × years, rounded to the
// currency. Used for lump-sum loans.
func (c *InterestCalculator) SimpleInterest(
	currency money.Currency,
	principal, annualRate, years decimal.Decimal,
) (decimal.Decimal, error) {
	switch {
	case !annualRate.IsPositive():
		return decimal.Zero, model.NewValidationError("annual_rate", "must be positive")
	case !years.IsPositive():
		return decimal.Zero, model.NewValidationError("duration", "must be positive")
	}
	return currency.Round(principal.Mul(annualRate).Mul(years)), nil
}

// daysBetween counts calendar days from a to b, ignoring time of day.
func daysBetween(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bd.Sub(ad).Hours() / 24)
}
