package service

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/bib/services/loan-servicing/internal/domain/model"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/valueobject"
)

// annuityPrecision bounds the intermediate scale of (1+i)^n.
const annuityPrecision = 24

// ---------------------------------------------------------------------------
// ScheduleGenerator – stateless domain service
// ---------------------------------------------------------------------------

// ScheduleGenerator builds the contractual installment plan from loan terms.
// Generate is pure: identical terms always yield an identical plan, and a
// plan is either produced in full or not at all.
type ScheduleGenerator struct {
	interest        *InterestCalculator
	maxInstallments int
}

// NewScheduleGenerator returns a generator bounded to maxInstallments
// installments; zero selects model.DefaultMaxInstallments.
func NewScheduleGenerator(interest *InterestCalculator, maxInstallments int) *ScheduleGenerator {
	if maxInstallments <= 0 {
		maxInstallments = model.DefaultMaxInstallments
	}
	return &ScheduleGenerator{interest: interest, maxInstallments: maxInstallments}
}

// WithMaxInstallments returns a copy bounded to n installments, keeping the
// current bound when n is not positive.
func (g *ScheduleGenerator) WithMaxInstallments(n int) *ScheduleGenerator {
	if n <= 0 {
		return g
	}
	return &ScheduleGenerator{interest: g.interest, maxInstallments: n}
}

// Generate validates terms and returns the ordered installment plan.
//
// Steps:
//  1. Validate terms.
//  2. Determine the installment count and due dates.
//  3. Split principal and interest according to the amortization method.
//  4. Let the last installment absorb all rounding so the principal sums
//     exactly and the final closing balance is zero.
//  5. Apply tax on interest.
func (g *ScheduleGenerator) Generate(terms model.LoanTerms) ([]model.Installment, error) {
	// 1. Validate.
	if err := terms.Validate(); err != nil {
		return nil, err
	}

	if terms.Cycle.IsLumpSum() {
		return g.lumpSum(terms)
	}

	// 2. Count and dates.
	count, err := g.installmentCount(terms)
	if err != nil {
		return nil, err
	}
	dueDates := make([]time.Time, count)
	for k := range dueDates {
		dueDates[k] = advance(terms.FirstRepaymentDate, terms.Cycle, k)
	}
	firstStart := terms.DisbursementDate
	if firstStart.IsZero() {
		firstStart = advance(terms.FirstRepaymentDate, terms.Cycle, -1)
	}

	periodicRate, err := g.interest.PeriodicRate(terms.AnnualRate, terms.InterestPeriod)
	if err != nil {
		return nil, err
	}

	installments := make([]model.Installment, count)
	for k := range installments {
		start := firstStart
		if k > 0 {
			start = dueDates[k-1]
		}
		installments[k] = model.Installment{
			Sequence:    k + 1,
			PeriodStart: start,
			DueDate:     dueDates[k],
		}
	}

	// 3-4. Amounts.
	switch {
	case terms.Method.Equal(valueobject.MethodFlat):
		err = g.fillFlat(terms, periodicRate, installments)
	default:
		err = g.fillDecliningBalance(terms, periodicRate, installments)
	}
	if err != nil {
		return nil, err
	}

	// 5. Tax.
	for k := range installments {
		installments[k].TaxDue = terms.Currency.Round(installments[k].InterestDue.Mul(terms.TaxRateOnInterest))
		zeroPaid(&installments[k])
	}
	return installments, nil
}

// fillDecliningBalance charges interest on the opening balance of each
// period. The principal part is either the level annuity payment minus
// interest, or an even split for the equal-principal variant.
func (g *ScheduleGenerator) fillDecliningBalance(terms model.LoanTerms, periodicRate decimal.Decimal, installments []model.Installment) error {
	n := len(installments)
	cur := terms.Currency

	var payment, evenPrincipal decimal.Decimal
	equalPrincipal := terms.Method.Equal(valueobject.MethodDecliningBalanceEqualPrincipal)
	if equalPrincipal {
		evenPrincipal = cur.Round(terms.Principal.DivRound(decimal.NewFromInt(int64(n)), ratePrecision))
	} else {
		payment = cur.Round(annuityPayment(terms.Principal, g.interest.CycleRate(terms.AnnualRate, terms.Cycle), n))
	}

	balance := terms.Principal
	for k := range installments {
		inst := &installments[k]
		periods := g.interest.PeriodsElapsed(terms.Cycle, inst.PeriodStart, inst.DueDate, terms.InterestPeriod)
		interest, err := g.interest.InterestFor(cur, balance, periodicRate, periods)
		if err != nil {
			return fmt.Errorf("installment %d: %w", inst.Sequence, err)
		}

		var principal decimal.Decimal
		switch {
		case k == n-1:
			principal = balance
		case equalPrincipal:
			principal = evenPrincipal
		default:
			principal = payment.Sub(interest)
		}
		if principal.IsNegative() {
			principal = decimal.Zero
		}
		if principal.GreaterThan(balance) {
			principal = balance
		}

		inst.OpeningBalance = balance
		inst.InterestDue = interest
		inst.PrincipalDue = principal
		balance = balance.Sub(principal)
		inst.ClosingBalance = balance
	}
	return nil
}

// fillFlat computes interest once on the original principal over the whole
// term and spreads interest and principal evenly.
func (g *ScheduleGenerator) fillFlat(terms model.LoanTerms, periodicRate decimal.Decimal, installments []model.Installment) error {
	n := len(installments)
	cur := terms.Currency

	totalPeriods := decimal.Zero
	for _, inst := range installments {
		totalPeriods = totalPeriods.Add(g.interest.PeriodsElapsed(terms.Cycle, inst.PeriodStart, inst.DueDate, terms.InterestPeriod))
	}
	totalInterest, err := g.interest.InterestFor(cur, terms.Principal, periodicRate, totalPeriods)
	if err != nil {
		return err
	}

	count := decimal.NewFromInt(int64(n))
	evenInterest := cur.Round(totalInterest.DivRound(count, ratePrecision))
	evenPrincipal := cur.Round(terms.Principal.DivRound(count, ratePrecision))

	balance := terms.Principal
	interestLeft := totalInterest
	for k := range installments {
		inst := &installments[k]
		principal, interest := evenPrincipal, evenInterest
		if k == n-1 || principal.GreaterThan(balance) {
			principal = balance
		}
		if k == n-1 || interest.GreaterThan(interestLeft) {
			interest = interestLeft
		}

		inst.OpeningBalance = balance
		inst.PrincipalDue = principal
		inst.InterestDue = interest
		balance = balance.Sub(principal)
		interestLeft = interestLeft.Sub(interest)
		inst.ClosingBalance = balance
	}
	return nil
}

// lumpSum builds the single bullet installment due on the first repayment
// date, with simple interest over the full duration.
func (g *ScheduleGenerator) lumpSum(terms model.LoanTerms) ([]model.Installment, error) {
	interest, err := g.interest.SimpleInterest(terms.Currency, terms.Principal, terms.AnnualRate, terms.DurationInYears())
	if err != nil {
		return nil, err
	}
	if terms.NumberOfInstallments > 1 {
		return nil, model.NewConfigurationError("number_of_installments", "a lump-sum loan has exactly one installment")
	}

	start := terms.DisbursementDate
	if start.IsZero() {
		start = terms.FirstRepaymentDate.AddDate(0, 0, -daysIn(terms))
	}

	inst := model.Installment{
		Sequence:       1,
		PeriodStart:    start,
		DueDate:        terms.FirstRepaymentDate,
		OpeningBalance: terms.Principal,
		PrincipalDue:   terms.Principal,
		InterestDue:    interest,
		TaxDue:         terms.Currency.Round(interest.Mul(terms.TaxRateOnInterest)),
		ClosingBalance: decimal.Zero,
	}
	zeroPaid(&inst)
	return []model.Installment{inst}, nil
}

// installmentCount returns the explicit count or derives it by stepping
// cycles from the first due date until the end of the duration is covered.
func (g *ScheduleGenerator) installmentCount(terms model.LoanTerms) (int, error) {
	if terms.NumberOfInstallments > 0 {
		if terms.NumberOfInstallments > g.maxInstallments {
			return 0, model.NewConfigurationError("number_of_installments",
				fmt.Sprintf("%d exceeds the limit of %d", terms.NumberOfInstallments, g.maxInstallments))
		}
		return terms.NumberOfInstallments, nil
	}

	start := terms.DisbursementDate
	if start.IsZero() {
		start = advance(terms.FirstRepaymentDate, terms.Cycle, -1)
	}
	end := addDuration(start, terms.Duration, terms.DurationUnit)

	count := 1
	for advance(terms.FirstRepaymentDate, terms.Cycle, count-1).Before(end) {
		count++
		if count > g.maxInstallments {
			return 0, model.NewConfigurationError("duration",
				fmt.Sprintf("derived installment count exceeds the limit of %d", g.maxInstallments))
		}
	}
	return count, nil
}

// annuityPayment returns P·i·(1+i)^n / ((1+i)^n − 1) unrounded.
func annuityPayment(principal, i decimal.Decimal, n int) decimal.Decimal {
	growth := decimal.NewFromInt(1)
	factor := decimal.NewFromInt(1).Add(i)
	for range n {
		growth = growth.Mul(factor).Truncate(annuityPrecision)
	}
	return principal.Mul(i).Mul(growth).DivRound(growth.Sub(decimal.NewFromInt(1)), annuityPrecision)
}

// advance moves anchor by k repayment cycles. Month-based cycles are always
// computed from the anchor and clamp to the end of shorter months, so a
// 31 January anchor yields 29 February and then 31 March.
func advance(anchor time.Time, cycle valueobject.RepaymentCycle, k int) time.Time {
	if cycle.Months() > 0 {
		return addMonthsClamped(anchor, k*cycle.Months())
	}
	return anchor.AddDate(0, 0, k*cycle.Days())
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func addDuration(t time.Time, n int, unit valueobject.DurationUnit) time.Time {
	switch unit {
	case valueobject.DurationDays:
		return t.AddDate(0, 0, n)
	case valueobject.DurationWeeks:
		return t.AddDate(0, 0, 7*n)
	case valueobject.DurationYears:
		return addMonthsClamped(t, 12*n)
	default:
		return addMonthsClamped(t, n)
	}
}

// daysIn is the calendar length of the loan counted back from the first
// repayment date.
func daysIn(terms model.LoanTerms) int {
	due := terms.FirstRepaymentDate
	var start time.Time
	switch terms.DurationUnit {
	case valueobject.DurationDays:
		return terms.Duration
	case valueobject.DurationWeeks:
		return 7 * terms.Duration
	case valueobject.DurationYears:
		start = addMonthsClamped(due, -12*terms.Duration)
	default:
		start = addMonthsClamped(due, -terms.Duration)
	}
	return daysBetween(start, due)
}

func zeroPaid(inst *model.Installment) {
	inst.PenaltyDue = decimal.Zero
	inst.PrincipalPaid = decimal.Zero
	inst.InterestPaid = decimal.Zero
	inst.PenaltyPaid = decimal.Zero
	inst.TaxPaid = decimal.Zero
}
