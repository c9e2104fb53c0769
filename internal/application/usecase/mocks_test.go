package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/bib/services/loan-servicing/internal/application/dto"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/event"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/model"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/service"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/valueobject"
	"github.com/bibbank/bib/services/loan-servicing/pkg/money"
	"github.com/bibbank/bib/services/loan-servicing/pkg/testutil"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type mockLoanRepository struct {
	saveFunc             func(ctx context.Context, loan model.Loan) error
	findByIDFunc         func(ctx context.Context, id string) (model.Loan, error)
	findServicingIDsFunc func(ctx context.Context) ([]string, error)
	findRepaymentFunc    func(ctx context.Context, paymentID string) (event.RepaymentAllocated, error)
	savedLoans           []model.Loan
}

func (m *mockLoanRepository) Save(ctx context.Context, loan model.Loan) error {
	if m.saveFunc != nil {
		return m.saveFunc(ctx, loan)
	}
	m.savedLoans = append(m.savedLoans, loan)
	return nil
}

func (m *mockLoanRepository) FindByID(ctx context.Context, id string) (model.Loan, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return model.Loan{}, fmt.Errorf("loan %s: %w", id, model.ErrNotFound)
}

func (m *mockLoanRepository) FindServicingIDs(ctx context.Context) ([]string, error) {
	if m.findServicingIDsFunc != nil {
		return m.findServicingIDsFunc(ctx)
	}
	return nil, nil
}

func (m *mockLoanRepository) FindRepayment(ctx context.Context, paymentID string) (event.RepaymentAllocated, error) {
	if m.findRepaymentFunc != nil {
		return m.findRepaymentFunc(ctx, paymentID)
	}
	return event.RepaymentAllocated{}, fmt.Errorf("payment %s: %w", paymentID, model.ErrNotFound)
}

// memoryLoanRepository behaves like the database: saves are version checked,
// stored loans carry no pending events and payment ids are unique.
type memoryLoanRepository struct {
	mu         sync.Mutex
	loans      map[string]model.Loan
	repayments map[string]event.RepaymentAllocated
}

func newMemoryLoanRepository(loans ...model.Loan) *memoryLoanRepository {
	r := &memoryLoanRepository{
		loans:      make(map[string]model.Loan, len(loans)),
		repayments: make(map[string]event.RepaymentAllocated),
	}
	for _, l := range loans {
		r.loans[l.ID()] = l.ClearEvents()
	}
	return r
}

func (r *memoryLoanRepository) Save(_ context.Context, loan model.Loan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if stored, ok := r.loans[loan.ID()]; ok && stored.Version() != loan.Version() {
		return fmt.Errorf("loan %s at version %d: %w", loan.ID(), loan.Version(), model.ErrConcurrentModification)
	}
	var recorded []event.RepaymentAllocated
	for _, evt := range loan.DomainEvents() {
		if repayment, ok := evt.(event.RepaymentAllocated); ok {
			if _, dup := r.repayments[repayment.PaymentID]; dup {
				return fmt.Errorf("payment %s already recorded: %w", repayment.PaymentID, model.ErrConcurrentModification)
			}
			recorded = append(recorded, repayment)
		}
	}
	for _, repayment := range recorded {
		r.repayments[repayment.PaymentID] = repayment
	}
	r.loans[loan.ID()] = committed(loan)
	return nil
}

func (r *memoryLoanRepository) FindByID(_ context.Context, id string) (model.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loan, ok := r.loans[id]
	if !ok {
		return model.Loan{}, fmt.Errorf("loan %s: %w", id, model.ErrNotFound)
	}
	return loan, nil
}

func (r *memoryLoanRepository) FindServicingIDs(context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.loans))
	for id, l := range r.loans {
		if l.Status().IsServicing() {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *memoryLoanRepository) FindRepayment(_ context.Context, paymentID string) (event.RepaymentAllocated, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	repayment, ok := r.repayments[paymentID]
	if !ok {
		return event.RepaymentAllocated{}, fmt.Errorf("payment %s: %w", paymentID, model.ErrNotFound)
	}
	return repayment, nil
}

func (r *memoryLoanRepository) loan(t *testing.T, id string) model.Loan {
	t.Helper()
	loan, err := r.FindByID(context.Background(), id)
	require.NoError(t, err)
	return loan
}

// committed is loan as it reads back after a successful save.
func committed(loan model.Loan) model.Loan {
	return model.ReconstructLoan(model.LoanSnapshot{
		ID:                loan.ID(),
		ProductID:         loan.ProductID(),
		BorrowerAccountID: loan.BorrowerAccountID(),
		Terms:             loan.Terms(),
		Status:            loan.Status(),
		DelinquencyStatus: loan.DelinquencyStatus(),
		Flags:             loan.Flags(),
		DaysPastDue:       loan.DaysPastDue(),
		ClassifiedAsOf:    loan.ClassifiedAsOf(),
		Installments:      loan.Installments(),
		CreditBalance:     loan.CreditBalance(),
		DisbursedAt:       loan.DisbursedAt(),
		Version:           loan.Version() + 1,
		CreatedAt:         loan.CreatedAt(),
		UpdatedAt:         loan.UpdatedAt(),
	})
}

// paidToDate sums every claim paid across the loan's installments.
func paidToDate(loan model.Loan) decimal.Decimal {
	total := decimal.Zero
	for _, inst := range loan.Installments() {
		total = total.Add(inst.PrincipalPaid).Add(inst.InterestPaid).Add(inst.PenaltyPaid).Add(inst.TaxPaid)
	}
	return total
}

type mockProductRepository struct {
	products map[string]model.LoanProduct
}

func (m *mockProductRepository) FindByID(_ context.Context, id string) (model.LoanProduct, error) {
	p, ok := m.products[id]
	if !ok {
		return model.LoanProduct{}, fmt.Errorf("product %s: %w", id, model.ErrNotFound)
	}
	return p, nil
}

type mockEventPublisher struct {
	mu              sync.Mutex
	publishFunc     func(ctx context.Context, evts ...event.DomainEvent) error
	publishedEvents []event.DomainEvent
}

func (m *mockEventPublisher) Publish(ctx context.Context, evts ...event.DomainEvent) error {
	if m.publishFunc != nil {
		return m.publishFunc(ctx, evts...)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishedEvents = append(m.publishedEvents, evts...)
	return nil
}

func (m *mockEventPublisher) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.publishedEvents))
	for _, e := range m.publishedEvents {
		out = append(out, e.EventType())
	}
	return out
}

func eventTypes(evts []event.DomainEvent) []string {
	out := make([]string, 0, len(evts))
	for _, e := range evts {
		out = append(out, e.EventType())
	}
	return out
}

type mockLoanLocker struct {
	mu      sync.Mutex
	lockErr error
	locked  []string
}

func (m *mockLoanLocker) WithLock(ctx context.Context, loanID string, fn func(ctx context.Context) error) error {
	if m.lockErr != nil {
		return m.lockErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locked = append(m.locked, loanID)
	return fn(ctx)
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func testProduct(t *testing.T) model.LoanProduct {
	t.Helper()
	policy, err := model.NewDelinquencyPolicy([]model.DelinquencyBucket{
		{Label: "Normal", DaysFrom: 0, DaysTo: 0},
		{Label: "Watch", DaysFrom: 1, DaysTo: 30, DelinquencyFlags: model.DelinquencyFlags{NotifyClient: true, ApplyFine: true}},
		{Label: "Substandard", DaysFrom: 31, DaysTo: 90, DelinquencyFlags: model.DelinquencyFlags{NotifyStaff: true, ApplyFine: true, AffectCreditScore: true}},
		{Label: "Loss", DaysFrom: 91, DelinquencyFlags: model.DelinquencyFlags{ReportToBureau: true}},
	})
	require.NoError(t, err)

	product, err := model.NewLoanProduct(model.LoanProductParams{
		ID:       testutil.TestProductID,
		Name:     "Standard term loan",
		Currency: money.USD,
		RepaymentOrder: model.MustRepaymentOrderConfig(
			model.RepaymentOrderEntry{Claim: valueobject.ClaimInterest, Rank: 1},
			model.RepaymentOrderEntry{Claim: valueobject.ClaimCapital, Rank: 2},
			model.RepaymentOrderEntry{Claim: valueobject.ClaimFine, Rank: 3},
		),
		OrderOverrides: map[string]model.RepaymentOrderConfig{
			"Watch": model.MustRepaymentOrderConfig(
				model.RepaymentOrderEntry{Claim: valueobject.ClaimCapital, Rank: 1},
				model.RepaymentOrderEntry{Claim: valueobject.ClaimInterest, Rank: 2},
				model.RepaymentOrderEntry{Claim: valueobject.ClaimFine, Rank: 3},
			),
		},
		Delinquency:       policy,
		Overpayment:       valueobject.OverpaymentCreditBalance,
		Fine:              model.FineDefinition{FlatAmount: decimal.NewFromInt(5)},
		TaxRateOnInterest: testutil.D("0.10"),
	})
	require.NoError(t, err)
	return product
}

func rejectingProduct(t *testing.T) model.LoanProduct {
	t.Helper()
	base := testProduct(t)
	product, err := model.NewLoanProduct(model.LoanProductParams{
		ID:             "strict-loan",
		Currency:       base.Currency(),
		RepaymentOrder: base.RepaymentOrder(),
		Delinquency:    base.Delinquency(),
		Overpayment:    valueobject.OverpaymentReject,
	})
	require.NoError(t, err)
	return product
}

func productRepo(products ...model.LoanProduct) *mockProductRepository {
	m := &mockProductRepository{products: make(map[string]model.LoanProduct)}
	for _, p := range products {
		m.products[p.ID()] = p
	}
	return m
}

// termsRequest describes 1000.00 USD at 12% p.a. over two monthly
// installments, due 1 Feb and 1 Mar 2024.
func termsRequest() dto.LoanTermsRequest {
	return dto.LoanTermsRequest{
		Principal:            decimal.NewFromInt(1000),
		AnnualRate:           testutil.D("0.12"),
		Duration:             2,
		DurationUnit:         "MONTHS",
		Cycle:                "MONTHLY",
		Method:               "DECLINING_BALANCE",
		InterestPeriod:       "MONTHLY",
		FirstRepaymentDate:   testutil.Date(2024, time.February, 1),
		NumberOfInstallments: 2,
	}
}

// servicingLoan returns a disbursed loan under product with no pending events.
func servicingLoan(t *testing.T, product model.LoanProduct) model.Loan {
	t.Helper()
	terms := model.LoanTerms{
		Principal:            decimal.NewFromInt(1000),
		Currency:             product.Currency(),
		AnnualRate:           testutil.D("0.12"),
		Duration:             2,
		DurationUnit:         valueobject.DurationMonths,
		Cycle:                valueobject.CycleMonthly,
		Method:               valueobject.MethodDecliningBalance,
		InterestPeriod:       valueobject.InterestPeriodMonthly,
		FirstRepaymentDate:   testutil.Date(2024, time.February, 1),
		NumberOfInstallments: 2,
	}
	now := testutil.Date(2024, time.January, 1)

	loan, err := model.NewLoan(product.ID(), "acct-001", terms, now)
	require.NoError(t, err)
	schedule, err := service.NewScheduleGenerator(service.NewInterestCalculator(), 0).Generate(terms)
	require.NoError(t, err)
	loan, err = loan.Disburse(schedule, product.Delinquency().Performing().Label, now)
	require.NoError(t, err)
	return loan.ClearEvents()
}

func repoWith(loans ...model.Loan) *mockLoanRepository {
	byID := make(map[string]model.Loan, len(loans))
	for _, l := range loans {
		byID[l.ID()] = l
	}
	return &mockLoanRepository{
		findByIDFunc: func(_ context.Context, id string) (model.Loan, error) {
			l, ok := byID[id]
			if !ok {
				return model.Loan{}, fmt.Errorf("loan %s: %w", id, model.ErrNotFound)
			}
			return l, nil
		},
		findServicingIDsFunc: func(context.Context) ([]string, error) {
			ids := make([]string, 0, len(loans))
			for _, l := range loans {
				ids = append(ids, l.ID())
			}
			return ids, nil
		},
	}
}
