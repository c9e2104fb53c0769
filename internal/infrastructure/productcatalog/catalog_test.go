package productcatalog_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/bib/services/loan-servicing/internal/domain/model"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/valueobject"
	"github.com/bibbank/bib/services/loan-servicing/internal/infrastructure/productcatalog"
	"github.com/bibbank/bib/services/loan-servicing/pkg/testutil"
)

func TestLoad_ExampleCatalog(t *testing.T) {
	catalog, err := productcatalog.Load("../../../configs/products.example.yaml")
	require.NoError(t, err)

	assert.Equal(t, []string{"microloan-weekly", testutil.TestProductID}, catalog.IDs())

	product, err := catalog.FindByID(context.Background(), testutil.TestProductID)
	require.NoError(t, err)
	assert.Equal(t, "USD", product.Currency().Code())
	assert.True(t, product.Overpayment().Equal(valueobject.OverpaymentCreditBalance))
	assert.Equal(t, 600, product.MaxInstallments())
	testutil.AssertDecimal(t, "0.15", product.TaxRateOnInterest())
	testutil.AssertDecimal(t, "10.00", product.Fine().FlatAmount)

	buckets := product.Delinquency().Buckets()
	require.Len(t, buckets, 4)
	assert.Equal(t, "Normal", product.Delinquency().Performing().Label)
	assert.True(t, buckets[1].ApplyFine)
	assert.True(t, buckets[3].ReportToBureau)

	override := product.OrderFor("Substandard").Entries()
	require.NotEmpty(t, override)
	assert.Equal(t, valueobject.ClaimFine, override[0].Claim)
	testutil.AssertDecimal(t, "0.5", override[len(override)-1].Rate)
	assert.Equal(t, valueobject.ClaimInterest, product.OrderFor("Watch").Entries()[1].Claim,
		"statuses without an override use the default order, tax first")

	micro, err := catalog.FindByID(context.Background(), "microloan-weekly")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultMaxInstallments, micro.MaxInstallments())
	assert.True(t, micro.Overpayment().Equal(valueobject.OverpaymentReject))
}

func TestCatalog_FindByID_NotFound(t *testing.T) {
	catalog, err := productcatalog.Load("../../../configs/products.example.yaml")
	require.NoError(t, err)

	_, err = catalog.FindByID(context.Background(), "unknown")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

const validProduct = `
products:
  - id: p1
    currency: EUR
    overpayment_policy: REJECT
    repayment_order:
      - {claim: INTEREST, rank: 1}
      - {claim: CAPITAL, rank: 2}
      - {claim: FINE, rank: 3}
    delinquency_buckets:
      - {label: Normal, days_from: 0, days_to: 30}
      - {label: Late, days_from: 31}
`

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty catalog", "products: []", "no products"},
		{"unknown field", strings.Replace(validProduct, "currency: EUR", "currency: EUR\n    colour: red", 1), "colour"},
		{"bad currency", strings.Replace(validProduct, "EUR", "euro", 1), "currency"},
		{"bad overpayment policy", strings.Replace(validProduct, "REJECT", "REFUND", 1), "overpayment_policy"},
		{"unknown claim", strings.Replace(validProduct, "{claim: FINE, rank: 3}", "{claim: FEE, rank: 3}", 1), "claim"},
		{"missing claim", strings.Replace(validProduct, "      - {claim: FINE, rank: 3}\n", "", 1), "missing rank"},
		{"bucket gap", strings.Replace(validProduct, "days_from: 31", "days_from: 40", 1), "gap"},
		{"override for unknown status", strings.Replace(validProduct, "    delinquency_buckets:",
			"    repayment_order_overrides:\n      Ghost:\n        - {claim: FINE, rank: 1}\n        - {claim: INTEREST, rank: 2}\n        - {claim: CAPITAL, rank: 3}\n    delinquency_buckets:", 1), "Ghost"},
		{"bad decimal", strings.Replace(validProduct, "overpayment_policy: REJECT", "overpayment_policy: REJECT\n    tax_rate_on_interest: abc", 1), "invalid decimal"},
		{"duplicate id", validProduct + strings.TrimPrefix(validProduct, "\nproducts:\n"), "duplicate product id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := productcatalog.Parse(strings.NewReader(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrConfiguration)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_Valid(t *testing.T) {
	catalog, err := productcatalog.Parse(strings.NewReader(validProduct))
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, catalog.IDs())
}
