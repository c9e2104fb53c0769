package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/bib/services/loan-servicing/internal/application/dto"
	"github.com/bibbank/bib/services/loan-servicing/internal/application/usecase"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/event"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/model"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/valueobject"
)

func TestWriteOffLoan_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("writes off a servicing loan", func(t *testing.T) {
		loan := servicingLoan(t, testProduct(t))
		loanRepo := repoWith(loan)
		locker := &mockLoanLocker{}
		publisher := &mockEventPublisher{}
		uc := usecase.NewWriteOffLoanUseCase(loanRepo, locker, publisher, nil)

		resp, err := uc.Execute(ctx, dto.WriteOffLoanRequest{LoanID: loan.ID(), Reason: "borrower insolvent"})

		require.NoError(t, err)
		assert.Equal(t, "WRITTEN_OFF", resp.LoanStatus)
		assert.True(t, loan.Outstanding().Equal(resp.Outstanding))
		assert.Equal(t, []string{loan.ID()}, locker.locked)
		require.Len(t, loanRepo.savedLoans, 1)
		assert.Equal(t, []string{event.TypeLoanWrittenOff}, publisher.types())
	})

	t.Run("requires a reason", func(t *testing.T) {
		loan := servicingLoan(t, testProduct(t))
		loanRepo := repoWith(loan)
		uc := usecase.NewWriteOffLoanUseCase(loanRepo, &mockLoanLocker{}, &mockEventPublisher{}, nil)

		_, err := uc.Execute(ctx, dto.WriteOffLoanRequest{LoanID: loan.ID()})

		assert.ErrorIs(t, err, model.ErrValidation)
		assert.Empty(t, loanRepo.savedLoans)
	})

	t.Run("cannot write off twice", func(t *testing.T) {
		loan := servicingLoan(t, testProduct(t))
		written, err := loan.WriteOff("first", loan.UpdatedAt())
		require.NoError(t, err)
		uc := usecase.NewWriteOffLoanUseCase(repoWith(written.ClearEvents()), &mockLoanLocker{}, &mockEventPublisher{}, nil)

		_, err = uc.Execute(ctx, dto.WriteOffLoanRequest{LoanID: loan.ID(), Reason: "second"})

		assert.ErrorIs(t, err, valueobject.ErrInvalidStatusTransition)
	})
}
