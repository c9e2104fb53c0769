package model_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/bib/services/loan-servicing/internal/domain/event"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/model"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/valueobject"
	"github.com/bibbank/bib/services/loan-servicing/pkg/money"
	"github.com/bibbank/bib/services/loan-servicing/pkg/testutil"
)

var now = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func validTerms() model.LoanTerms {
	return model.LoanTerms{
		Principal:            decimal.NewFromInt(2000),
		Currency:             money.USD,
		AnnualRate:           testutil.D("0.12"),
		Duration:             2,
		DurationUnit:         valueobject.DurationMonths,
		Cycle:                valueobject.CycleMonthly,
		Method:               valueobject.MethodDecliningBalance,
		InterestPeriod:       valueobject.InterestPeriodMonthly,
		FirstRepaymentDate:   testutil.Date(2024, time.February, 1),
		NumberOfInstallments: 2,
	}
}

func twoInstallments() []model.Installment {
	return []model.Installment{
		{Sequence: 1, DueDate: testutil.Date(2024, time.February, 1), PrincipalDue: testutil.D("995.02"), InterestDue: testutil.D("20.00")},
		{Sequence: 2, DueDate: testutil.Date(2024, time.March, 1), PrincipalDue: testutil.D("1004.98"), InterestDue: testutil.D("10.05")},
	}
}

func disbursedLoan(t *testing.T) model.Loan {
	t.Helper()
	loan, err := model.NewLoan(testutil.TestProductID, "acct-1", validTerms(), now)
	require.NoError(t, err)
	loan, err = loan.Disburse(twoInstallments(), "Normal", now)
	require.NoError(t, err)
	return loan.ClearEvents()
}

func TestNewLoan(t *testing.T) {
	loan, err := model.NewLoan(testutil.TestProductID, "acct-1", validTerms(), now)
	require.NoError(t, err)

	assert.NotEmpty(t, loan.ID())
	assert.Equal(t, valueobject.LoanStatusPending, loan.Status())
	assert.Equal(t, 1, loan.Version())
	assert.Empty(t, loan.Installments())
	assert.Empty(t, loan.DomainEvents())

	_, err = model.NewLoan("", "acct-1", validTerms(), now)
	assert.ErrorIs(t, err, model.ErrValidation)

	bad := validTerms()
	bad.Cycle = valueobject.RepaymentCycle{}
	_, err = model.NewLoan(testutil.TestProductID, "acct-1", bad, now)
	assert.ErrorIs(t, err, model.ErrConfiguration)
}

func TestLoan_Disburse(t *testing.T) {
	loan, err := model.NewLoan(testutil.TestProductID, "acct-1", validTerms(), now)
	require.NoError(t, err)

	disbursed, err := loan.Disburse(twoInstallments(), "Normal", now)
	require.NoError(t, err)

	assert.Equal(t, valueobject.LoanStatusDisbursed, disbursed.Status())
	assert.Equal(t, "Normal", disbursed.DelinquencyStatus())
	assert.Len(t, disbursed.Installments(), 2)
	testutil.AssertDecimal(t, "2030.05", disbursed.Outstanding())

	require.Len(t, disbursed.DomainEvents(), 1)
	evt, ok := disbursed.DomainEvents()[0].(event.LoanDisbursed)
	require.True(t, ok)
	assert.Equal(t, event.TypeLoanDisbursed, evt.EventType())
	assert.Equal(t, loan.ID(), evt.AggregateID())
	testutil.AssertDecimal(t, "30.05", evt.TotalInterest)
	assert.Equal(t, 2, evt.InstallmentCount)
	assert.Equal(t, testutil.Date(2024, time.March, 1), evt.MaturityDate)

	// Original is unchanged.
	assert.Equal(t, valueobject.LoanStatusPending, loan.Status())

	_, err = disbursed.Disburse(twoInstallments(), "Normal", now)
	assert.ErrorIs(t, err, valueobject.ErrInvalidStatusTransition)
}

func TestLoan_RecordRepayment_PaysOff(t *testing.T) {
	loan := disbursedLoan(t)

	updated := loan.Installments()
	result := model.PaymentAllocationResult{Payment: testutil.D("2050.05"), CreditBalance: testutil.D("20")}
	for i, inst := range updated {
		alloc := model.InstallmentAllocation{Sequence: inst.Sequence, Principal: inst.PrincipalDue, Interest: inst.InterestDue}
		result.Allocations = append(result.Allocations, alloc)
		updated[i] = inst.WithAllocation(alloc, now)
	}

	paid, err := loan.RecordRepayment("pay-1", result, updated, now)
	require.NoError(t, err)

	assert.Equal(t, valueobject.LoanStatusPaidOff, paid.Status())
	testutil.AssertDecimal(t, "20", paid.CreditBalance())
	require.Len(t, paid.DomainEvents(), 2)
	allocated, ok := paid.DomainEvents()[0].(event.RepaymentAllocated)
	require.True(t, ok)
	assert.Equal(t, "pay-1", allocated.PaymentID)
	assert.Len(t, allocated.Lines, 2)
	testutil.AssertDecimal(t, "0", allocated.Outstanding)
	assert.Equal(t, event.TypeLoanPaidOff, paid.DomainEvents()[1].EventType())

	_, err = paid.RecordRepayment("pay-2", result, updated, now)
	assert.ErrorIs(t, err, valueobject.ErrInvalidStatusTransition)
}

func TestLoan_Reclassify(t *testing.T) {
	loan := disbursedLoan(t)
	normal := model.DelinquencyBucket{DaysFrom: 0, DaysTo: 30, Label: "Normal"}
	due := model.DelinquencyBucket{DaysFrom: 31, DaysTo: 60, Label: "Due", DelinquencyFlags: model.DelinquencyFlags{NotifyClient: true}}
	asOf := testutil.Date(2024, time.February, 10)

	performing, err := loan.Reclassify(normal, true, 9, asOf, now)
	require.NoError(t, err)
	assert.Equal(t, valueobject.LoanStatusPerforming, performing.Status())
	assert.Empty(t, performing.DomainEvents(), "same bucket raises no event")

	delinquent, err := performing.Reclassify(due, false, 35, asOf, now)
	require.NoError(t, err)
	assert.Equal(t, valueobject.LoanStatusDelinquent, delinquent.Status())
	assert.Equal(t, "Due", delinquent.DelinquencyStatus())
	assert.Equal(t, 35, delinquent.DaysPastDue())
	assert.True(t, delinquent.Flags().NotifyClient)
	require.Len(t, delinquent.DomainEvents(), 1)
	changed, ok := delinquent.DomainEvents()[0].(event.DelinquencyStatusChanged)
	require.True(t, ok)
	assert.Equal(t, "Normal", changed.PreviousStatus)
	assert.Equal(t, "Due", changed.Status)
	assert.True(t, changed.NotifyClient)

	cured, err := delinquent.ClearEvents().Reclassify(normal, true, 0, asOf, now)
	require.NoError(t, err)
	assert.Equal(t, valueobject.LoanStatusPerforming, cured.Status())
	assert.Len(t, cured.DomainEvents(), 1)
}

func TestLoan_AssessFine(t *testing.T) {
	loan := disbursedLoan(t)

	fined, err := loan.AssessFine(1, testutil.D("7.50"), 12, now)
	require.NoError(t, err)
	testutil.AssertDecimal(t, "7.50", fined.Installments()[0].PenaltyDue)
	testutil.AssertDecimal(t, "2037.55", fined.Outstanding())
	require.Len(t, fined.DomainEvents(), 1)
	assert.Equal(t, event.TypeFineAssessed, fined.DomainEvents()[0].EventType())

	_, err = loan.AssessFine(9, testutil.D("7.50"), 12, now)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = loan.AssessFine(1, decimal.Zero, 12, now)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestLoan_WriteOff(t *testing.T) {
	loan := disbursedLoan(t)

	written, err := loan.WriteOff("borrower deceased", now)
	require.NoError(t, err)
	assert.Equal(t, valueobject.LoanStatusWrittenOff, written.Status())

	evt, ok := written.DomainEvents()[0].(event.LoanWrittenOff)
	require.True(t, ok)
	testutil.AssertDecimal(t, "2000", evt.Principal)
	testutil.AssertDecimal(t, "30.05", evt.Interest)

	_, err = written.WriteOff("again", now)
	assert.ErrorIs(t, err, valueobject.ErrInvalidStatusTransition)

	_, err = written.Reclassify(model.DelinquencyBucket{Label: "Normal"}, true, 0, now, now)
	assert.ErrorIs(t, err, valueobject.ErrInvalidStatusTransition)

	_, err = loan.WriteOff("", now)
	assert.ErrorIs(t, err, model.ErrValidation)

	pending, err := model.NewLoan(testutil.TestProductID, "acct-1", validTerms(), now)
	require.NoError(t, err)
	_, err = pending.WriteOff("never disbursed", now)
	assert.ErrorIs(t, err, valueobject.ErrInvalidStatusTransition)
}

func TestReconstructLoan(t *testing.T) {
	original := disbursedLoan(t)

	rebuilt := model.ReconstructLoan(model.LoanSnapshot{
		ID:                original.ID(),
		ProductID:         original.ProductID(),
		BorrowerAccountID: original.BorrowerAccountID(),
		Terms:             original.Terms(),
		Status:            original.Status(),
		DelinquencyStatus: original.DelinquencyStatus(),
		Installments:      original.Installments(),
		CreditBalance:     original.CreditBalance(),
		Version:           original.Version(),
		CreatedAt:         original.CreatedAt(),
		UpdatedAt:         original.UpdatedAt(),
		DisbursedAt:       original.DisbursedAt(),
	})

	assert.Equal(t, original, rebuilt)
}
