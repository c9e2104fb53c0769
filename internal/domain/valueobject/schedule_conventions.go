package valueobject

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// RepaymentCycle – immutable value object
// ---------------------------------------------------------------------------

// RepaymentCycle is the interval between two consecutive installment due
// dates. A cycle advances either by calendar months or by a fixed number of
// days; LUMP_SUM has no interval at all.
type RepaymentCycle struct {
	value  string
	months int
	days   int
}

const (
	cycleDaily           = "DAILY"
	cycleWeekly          = "WEEKLY"
	cycleBiweekly        = "BIWEEKLY"
	cycleMonthly         = "MONTHLY"
	cycleBimonthly       = "BIMONTHLY"
	cycleQuarterly       = "QUARTERLY"
	cycleEveryFourMonths = "EVERY_FOUR_MONTHS"
	cycleSemiannual      = "SEMIANNUAL"
	cycleEveryNineMonths = "EVERY_NINE_MONTHS"
	cycleYearly          = "YEARLY"
	cycleLumpSum         = "LUMP_SUM"
)

var (
	CycleDaily           = RepaymentCycle{value: cycleDaily, days: 1}
	CycleWeekly          = RepaymentCycle{value: cycleWeekly, days: 7}
	CycleBiweekly        = RepaymentCycle{value: cycleBiweekly, days: 14}
	CycleMonthly         = RepaymentCycle{value: cycleMonthly, months: 1}
	CycleBimonthly       = RepaymentCycle{value: cycleBimonthly, months: 2}
	CycleQuarterly       = RepaymentCycle{value: cycleQuarterly, months: 3}
	CycleEveryFourMonths = RepaymentCycle{value: cycleEveryFourMonths, months: 4}
	CycleSemiannual      = RepaymentCycle{value: cycleSemiannual, months: 6}
	CycleEveryNineMonths = RepaymentCycle{value: cycleEveryNineMonths, months: 9}
	CycleYearly          = RepaymentCycle{value: cycleYearly, months: 12}
	CycleLumpSum         = RepaymentCycle{value: cycleLumpSum}
)

var validRepaymentCycles = map[string]RepaymentCycle{
	cycleDaily:           CycleDaily,
	cycleWeekly:          CycleWeekly,
	cycleBiweekly:        CycleBiweekly,
	cycleMonthly:         CycleMonthly,
	cycleBimonthly:       CycleBimonthly,
	cycleQuarterly:       CycleQuarterly,
	cycleEveryFourMonths: CycleEveryFourMonths,
	cycleSemiannual:      CycleSemiannual,
	cycleEveryNineMonths: CycleEveryNineMonths,
	cycleYearly:          CycleYearly,
	cycleLumpSum:         CycleLumpSum,
}

// NewRepaymentCycle creates a RepaymentCycle from a raw string.
func NewRepaymentCycle(s string) (RepaymentCycle, error) {
	v, ok := validRepaymentCycles[s]
	if !ok {
		return RepaymentCycle{}, fmt.Errorf("invalid repayment cycle: %q", s)
	}
	return v, nil
}

func (c RepaymentCycle) String() string { return c.value }

func (c RepaymentCycle) IsZero() bool { return c.value == "" }

func (c RepaymentCycle) Equal(other RepaymentCycle) bool { return c.value == other.value }

// IsLumpSum reports whether the loan is repaid in a single installment.
func (c RepaymentCycle) IsLumpSum() bool { return c.value == cycleLumpSum }

// Months is the calendar-month step, zero for day-based cycles.
func (c RepaymentCycle) Months() int { return c.months }

// Days is the fixed day step, zero for month-based cycles.
func (c RepaymentCycle) Days() int { return c.days }

// ---------------------------------------------------------------------------
// DurationUnit – immutable value object
// ---------------------------------------------------------------------------

// DurationUnit qualifies the numeric loan duration.
type DurationUnit struct {
	value string
}

const (
	unitDays   = "DAYS"
	unitWeeks  = "WEEKS"
	unitMonths = "MONTHS"
	unitYears  = "YEARS"
)

var (
	DurationDays   = DurationUnit{value: unitDays}
	DurationWeeks  = DurationUnit{value: unitWeeks}
	DurationMonths = DurationUnit{value: unitMonths}
	DurationYears  = DurationUnit{value: unitYears}
)

var validDurationUnits = map[string]DurationUnit{
	unitDays:   DurationDays,
	unitWeeks:  DurationWeeks,
	unitMonths: DurationMonths,
	unitYears:  DurationYears,
}

// NewDurationUnit creates a DurationUnit from a raw string.
func NewDurationUnit(s string) (DurationUnit, error) {
	v, ok := validDurationUnits[s]
	if !ok {
		return DurationUnit{}, fmt.Errorf("invalid duration unit: %q", s)
	}
	return v, nil
}

func (u DurationUnit) String() string { return u.value }

func (u DurationUnit) IsZero() bool { return u.value == "" }

func (u DurationUnit) Equal(other DurationUnit) bool { return u.value == other.value }

// InYears converts n units into a fraction of a year: days/365, weeks/52,
// months/12. The result is exact for months and years and carries 20
// decimal places otherwise.
func (u DurationUnit) InYears(n int) decimal.Decimal {
	d := decimal.NewFromInt(int64(n))
	switch u.value {
	case unitDays:
		return d.DivRound(decimal.NewFromInt(365), divisionPrecision)
	case unitWeeks:
		return d.DivRound(decimal.NewFromInt(52), divisionPrecision)
	case unitMonths:
		return d.DivRound(decimal.NewFromInt(12), divisionPrecision)
	default:
		return d
	}
}

// ---------------------------------------------------------------------------
// AmortizationMethod – immutable value object
// ---------------------------------------------------------------------------

// AmortizationMethod selects how principal and interest are spread across
// installments.
type AmortizationMethod struct {
	value string
}

const (
	methodDecliningBalance               = "DECLINING_BALANCE"
	methodDecliningBalanceEqualPrincipal = "DECLINING_BALANCE_EQUAL_PRINCIPAL"
	methodFlat                           = "FLAT"
)

var (
	MethodDecliningBalance               = AmortizationMethod{value: methodDecliningBalance}
	MethodDecliningBalanceEqualPrincipal = AmortizationMethod{value: methodDecliningBalanceEqualPrincipal}
	MethodFlat                           = AmortizationMethod{value: methodFlat}
)

var validAmortizationMethods = map[string]AmortizationMethod{
	methodDecliningBalance:               MethodDecliningBalance,
	methodDecliningBalanceEqualPrincipal: MethodDecliningBalanceEqualPrincipal,
	methodFlat:                           MethodFlat,
}

// NewAmortizationMethod creates an AmortizationMethod from a raw string.
func NewAmortizationMethod(s string) (AmortizationMethod, error) {
	v, ok := validAmortizationMethods[s]
	if !ok {
		return AmortizationMethod{}, fmt.Errorf("invalid amortization method: %q", s)
	}
	return v, nil
}

func (m AmortizationMethod) String() string { return m.value }

func (m AmortizationMethod) IsZero() bool { return m.value == "" }

func (m AmortizationMethod) Equal(other AmortizationMethod) bool { return m.value == other.value }

// IsDecliningBalance reports whether interest accrues on the outstanding balance.
func (m AmortizationMethod) IsDecliningBalance() bool {
	return m.value == methodDecliningBalance || m.value == methodDecliningBalanceEqualPrincipal
}

// ---------------------------------------------------------------------------
// InterestPeriod – immutable value object
// ---------------------------------------------------------------------------

// InterestPeriod is the unit the annual rate is normalised to before it is
// applied: DAILY divides by 365, WEEKLY by 52, MONTHLY by 12, YEARLY by 1.
type InterestPeriod struct {
	value          string
	periodsPerYear int64
}

const (
	periodDaily   = "DAILY"
	periodWeekly  = "WEEKLY"
	periodMonthly = "MONTHLY"
	periodYearly  = "YEARLY"
)

var (
	InterestPeriodDaily   = InterestPeriod{value: periodDaily, periodsPerYear: 365}
	InterestPeriodWeekly  = InterestPeriod{value: periodWeekly, periodsPerYear: 52}
	InterestPeriodMonthly = InterestPeriod{value: periodMonthly, periodsPerYear: 12}
	InterestPeriodYearly  = InterestPeriod{value: periodYearly, periodsPerYear: 1}
)

var validInterestPeriods = map[string]InterestPeriod{
	periodDaily:   InterestPeriodDaily,
	periodWeekly:  InterestPeriodWeekly,
	periodMonthly: InterestPeriodMonthly,
	periodYearly:  InterestPeriodYearly,
}

// NewInterestPeriod creates an InterestPeriod from a raw string.
func NewInterestPeriod(s string) (InterestPeriod, error) {
	v, ok := validInterestPeriods[s]
	if !ok {
		return InterestPeriod{}, fmt.Errorf("invalid interest period: %q", s)
	}
	return v, nil
}

func (p InterestPeriod) String() string { return p.value }

func (p InterestPeriod) IsZero() bool { return p.value == "" }

func (p InterestPeriod) Equal(other InterestPeriod) bool { return p.value == other.value }

// PeriodsPerYear returns 365, 52, 12 or 1.
func (p InterestPeriod) PeriodsPerYear() decimal.Decimal {
	return decimal.NewFromInt(p.periodsPerYear)
}

// divisionPrecision is the number of decimal places kept for intermediate
// rate and period ratios. Final amounts are always rounded to the currency.
const divisionPrecision = 20
