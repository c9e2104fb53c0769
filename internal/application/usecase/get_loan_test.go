package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/bib/services/loan-servicing/internal/application/dto"
	"github.com/bibbank/bib/services/loan-servicing/internal/application/usecase"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/model"
	"github.com/bibbank/bib/services/loan-servicing/pkg/testutil"
)

func TestGetLoanUseCase_Execute(t *testing.T) {
	t.Run("successfully retrieves a loan", func(t *testing.T) {
		loan := servicingLoan(t, testProduct(t))
		uc := usecase.NewGetLoanUseCase(repoWith(loan))

		resp, err := uc.Execute(context.Background(), dto.GetLoanRequest{LoanID: loan.ID()})

		require.NoError(t, err)
		assert.Equal(t, loan.ID(), resp.ID)
		assert.Equal(t, "DISBURSED", resp.Status)
		assert.Equal(t, "Normal", resp.DelinquencyStatus)
		assert.Equal(t, "USD", resp.Currency)
		testutil.AssertDecimal(t, "1000", resp.Principal)
		require.Len(t, resp.Installments, 2)
		assert.Equal(t, 1, resp.Installments[0].Sequence)
		assert.Nil(t, resp.Installments[0].SettledAt)
		assert.True(t, loan.Outstanding().Equal(resp.Outstanding))
	})

	t.Run("fails when loan not found", func(t *testing.T) {
		uc := usecase.NewGetLoanUseCase(&mockLoanRepository{})

		_, err := uc.Execute(context.Background(), dto.GetLoanRequest{LoanID: "missing"})

		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrNotFound)
		assert.Contains(t, err.Error(), "find loan")
	})
}
