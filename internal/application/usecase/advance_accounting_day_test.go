package usecase_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/bib/services/loan-servicing/internal/application/dto"
	"github.com/bibbank/bib/services/loan-servicing/internal/application/usecase"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/event"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/model"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/service"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/valueobject"
	"github.com/bibbank/bib/services/loan-servicing/pkg/testutil"
)

func newAdvance(
	products *mockProductRepository,
	loanRepo *mockLoanRepository,
	locker *mockLoanLocker,
	publisher *mockEventPublisher,
) *usecase.AdvanceAccountingDayUseCase {
	return usecase.NewAdvanceAccountingDayUseCase(loanRepo, products, locker, publisher, service.NewDelinquencyClassifier(), nil)
}

func TestAdvanceAccountingDay_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing overdue keeps the loan performing", func(t *testing.T) {
		product := testProduct(t)
		loan := servicingLoan(t, product)
		loanRepo := repoWith(loan)
		publisher := &mockEventPublisher{}
		uc := newAdvance(productRepo(product), loanRepo, &mockLoanLocker{}, publisher)

		resp, err := uc.Execute(ctx, dto.AdvanceAccountingDayRequest{
			LoanID:       loan.ID(),
			BusinessDate: testutil.Date(2024, time.January, 20),
		})

		require.NoError(t, err)
		assert.Equal(t, 0, resp.DaysPastDue)
		assert.Equal(t, "Normal", resp.DelinquencyStatus)
		assert.Equal(t, "PERFORMING", resp.LoanStatus)
		assert.Empty(t, resp.Fines)
		assert.Empty(t, publisher.publishedEvents)
		require.Len(t, loanRepo.savedLoans, 1)
		assert.Equal(t, valueobject.LoanStatusPerforming, loanRepo.savedLoans[0].Status())
	})

	t.Run("overdue installment moves the loan to a fining bucket", func(t *testing.T) {
		product := testProduct(t)
		loan := servicingLoan(t, product)
		loanRepo := repoWith(loan)
		locker := &mockLoanLocker{}
		publisher := &mockEventPublisher{}
		uc := newAdvance(productRepo(product), loanRepo, locker, publisher)

		resp, err := uc.Execute(ctx, dto.AdvanceAccountingDayRequest{
			LoanID:       loan.ID(),
			BusinessDate: testutil.Date(2024, time.February, 16),
		})

		require.NoError(t, err)
		assert.Equal(t, 15, resp.DaysPastDue)
		assert.Equal(t, "Watch", resp.DelinquencyStatus)
		assert.Equal(t, "DELINQUENT", resp.LoanStatus)
		assert.True(t, resp.Flags.NotifyClient)
		assert.True(t, resp.Flags.ApplyFine)
		require.Len(t, resp.Fines, 1)
		assert.Equal(t, 1, resp.Fines[0].Sequence)
		testutil.AssertDecimal(t, "5.00", resp.Fines[0].Amount)

		assert.Equal(t, []string{loan.ID()}, locker.locked)
		assert.Equal(t, []string{event.TypeFineAssessed, event.TypeDelinquencyStatusChanged}, publisher.types())
		changed, ok := publisher.publishedEvents[1].(event.DelinquencyStatusChanged)
		require.True(t, ok)
		assert.Equal(t, "Normal", changed.PreviousStatus)
		assert.Equal(t, "Watch", changed.Status)

		saved := loanRepo.savedLoans[0]
		testutil.AssertDecimal(t, "5.00", saved.Installments()[0].PenaltyDue)
	})

	t.Run("fine is charged once per installment", func(t *testing.T) {
		product := testProduct(t)
		loan := servicingLoan(t, product)
		loanRepo := repoWith(loan)
		uc := newAdvance(productRepo(product), loanRepo, &mockLoanLocker{}, &mockEventPublisher{})

		_, err := uc.Execute(ctx, dto.AdvanceAccountingDayRequest{LoanID: loan.ID(), BusinessDate: testutil.Date(2024, time.February, 16)})
		require.NoError(t, err)

		fined := loanRepo.savedLoans[0].ClearEvents()
		nextRepo := repoWith(fined)
		publisher := &mockEventPublisher{}
		uc = newAdvance(productRepo(product), nextRepo, &mockLoanLocker{}, publisher)

		resp, err := uc.Execute(ctx, dto.AdvanceAccountingDayRequest{LoanID: loan.ID(), BusinessDate: testutil.Date(2024, time.February, 17)})

		require.NoError(t, err)
		assert.Equal(t, 16, resp.DaysPastDue)
		assert.Empty(t, resp.Fines)
		assert.Empty(t, publisher.publishedEvents, "same bucket and no new fine")
	})

	t.Run("severe arrears land in the open-ended bucket", func(t *testing.T) {
		product := testProduct(t)
		loan := servicingLoan(t, product)
		uc := newAdvance(productRepo(product), repoWith(loan), &mockLoanLocker{}, &mockEventPublisher{})

		resp, err := uc.Execute(ctx, dto.AdvanceAccountingDayRequest{LoanID: loan.ID(), BusinessDate: testutil.Date(2024, time.June, 1)})

		require.NoError(t, err)
		assert.Equal(t, 121, resp.DaysPastDue)
		assert.Equal(t, "Loss", resp.DelinquencyStatus)
		assert.True(t, resp.Flags.ReportToBureau)
		assert.Empty(t, resp.Fines)
	})

	t.Run("rejects a missing business date", func(t *testing.T) {
		uc := newAdvance(productRepo(testProduct(t)), &mockLoanRepository{}, &mockLoanLocker{}, &mockEventPublisher{})

		_, err := uc.Execute(ctx, dto.AdvanceAccountingDayRequest{LoanID: "loan-001"})

		assert.ErrorIs(t, err, model.ErrValidation)
	})

	t.Run("written-off loans are not reclassified", func(t *testing.T) {
		product := testProduct(t)
		loan, err := servicingLoan(t, product).WriteOff("fraud", testutil.Date(2024, time.January, 5))
		require.NoError(t, err)
		loanRepo := repoWith(loan.ClearEvents())
		uc := newAdvance(productRepo(product), loanRepo, &mockLoanLocker{}, &mockEventPublisher{})

		_, err = uc.Execute(ctx, dto.AdvanceAccountingDayRequest{LoanID: loan.ID(), BusinessDate: testutil.Date(2024, time.June, 1)})

		assert.ErrorIs(t, err, valueobject.ErrInvalidStatusTransition)
		assert.Empty(t, loanRepo.savedLoans)
	})
}

func TestCloseAccountingDay_Execute(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	t.Run("reclassifies every servicing loan and reports failures", func(t *testing.T) {
		product := testProduct(t)
		first := servicingLoan(t, product)
		second := servicingLoan(t, product)
		loanRepo := repoWith(first, second)
		loanRepo.findServicingIDsFunc = func(context.Context) ([]string, error) {
			return []string{first.ID(), "ghost", second.ID()}, nil
		}
		advance := newAdvance(productRepo(product), loanRepo, &mockLoanLocker{}, &mockEventPublisher{})
		uc := usecase.NewCloseAccountingDayUseCase(loanRepo, advance, logger)

		resp, err := uc.Execute(ctx, dto.CloseAccountingDayRequest{BusinessDate: testutil.Date(2024, time.February, 16)})

		require.NoError(t, err)
		assert.Equal(t, 2, resp.Processed)
		assert.Equal(t, []string{"ghost"}, resp.FailedLoans)
		assert.Len(t, loanRepo.savedLoans, 2)
	})

	t.Run("fails when servicing loans cannot be listed", func(t *testing.T) {
		loanRepo := &mockLoanRepository{
			findServicingIDsFunc: func(context.Context) ([]string, error) { return nil, errors.New("db down") },
		}
		advance := newAdvance(productRepo(testProduct(t)), loanRepo, &mockLoanLocker{}, &mockEventPublisher{})
		uc := usecase.NewCloseAccountingDayUseCase(loanRepo, advance, logger)

		_, err := uc.Execute(ctx, dto.CloseAccountingDayRequest{BusinessDate: testutil.Date(2024, time.February, 16)})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "list servicing loans")
	})
}
