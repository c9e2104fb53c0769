package usecase_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/bib/services/loan-servicing/internal/application/dto"
	"github.com/bibbank/bib/services/loan-servicing/internal/application/usecase"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/model"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/service"
	"github.com/bibbank/bib/services/loan-servicing/pkg/testutil"
)

func newSimulate(t *testing.T) *usecase.SimulateLoanUseCase {
	t.Helper()
	generator := service.NewScheduleGenerator(service.NewInterestCalculator(), 0)
	return usecase.NewSimulateLoanUseCase(productRepo(testProduct(t)), generator, nil)
}

func TestSimulateLoan_Execute(t *testing.T) {
	t.Run("quotes a schedule with the product tax rate", func(t *testing.T) {
		uc := newSimulate(t)

		resp, err := uc.Execute(context.Background(), dto.QuoteRequest{
			ProductID: testutil.TestProductID,
			Terms:     termsRequest(),
		})

		require.NoError(t, err)
		assert.Equal(t, "USD", resp.Currency)
		require.Len(t, resp.Installments, 2)
		testutil.AssertDecimal(t, "1000", resp.TotalPrincipal)
		testutil.AssertDecimal(t, "10.00", resp.Installments[0].Interest)
		testutil.AssertDecimal(t, "1.00", resp.Installments[0].Tax)
		assert.True(t, resp.TotalPrincipal.Add(resp.TotalInterest).Add(resp.TotalTax).Equal(resp.TotalDue))
		assert.True(t, resp.Installments[1].ClosingBalance.IsZero())
	})

	t.Run("request tax rate overrides the product", func(t *testing.T) {
		uc := newSimulate(t)
		terms := termsRequest()
		terms.TaxRateOnInterest = decimal.NewNullDecimal(decimal.Zero)

		resp, err := uc.Execute(context.Background(), dto.QuoteRequest{ProductID: testutil.TestProductID, Terms: terms})

		require.NoError(t, err)
		testutil.AssertDecimal(t, "0", resp.TotalTax)
	})

	t.Run("unknown cycle is a configuration error", func(t *testing.T) {
		uc := newSimulate(t)
		terms := termsRequest()
		terms.Cycle = "FORTNIGHTLY"

		_, err := uc.Execute(context.Background(), dto.QuoteRequest{ProductID: testutil.TestProductID, Terms: terms})

		assert.ErrorIs(t, err, model.ErrConfiguration)
	})

	t.Run("non-positive principal is a validation error", func(t *testing.T) {
		uc := newSimulate(t)
		terms := termsRequest()
		terms.Principal = decimal.Zero

		_, err := uc.Execute(context.Background(), dto.QuoteRequest{ProductID: testutil.TestProductID, Terms: terms})

		assert.ErrorIs(t, err, model.ErrValidation)
		assert.Contains(t, err.Error(), "generate schedule")
	})

	t.Run("fails when product not found", func(t *testing.T) {
		uc := newSimulate(t)

		_, err := uc.Execute(context.Background(), dto.QuoteRequest{ProductID: "unknown", Terms: termsRequest()})

		assert.ErrorIs(t, err, model.ErrNotFound)
		assert.Contains(t, err.Error(), "find product")
	})
}

func TestSimulateLoan_ConcurrentQuotesAreIdentical(t *testing.T) {
	const callers = 16
	uc := newSimulate(t)
	req := dto.QuoteRequest{ProductID: testutil.TestProductID, Terms: termsRequest()}

	var wg sync.WaitGroup
	quotes := make([][]byte, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := uc.Execute(context.Background(), req)
			if err != nil {
				errs[i] = err
				return
			}
			quotes[i], errs[i] = json.Marshal(resp)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i], "caller %d", i)
		assert.JSONEq(t, string(quotes[0]), string(quotes[i]), "caller %d", i)
	}
}
