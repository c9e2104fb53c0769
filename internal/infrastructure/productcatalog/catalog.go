// Package productcatalog loads loan products from a YAML file and serves
// them as a read-only port.ProductRepository.
package productcatalog

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/bibbank/bib/services/loan-servicing/internal/domain/model"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/valueobject"
	"github.com/bibbank/bib/services/loan-servicing/pkg/money"
)

type catalogFile struct {
	Products []productEntry `yaml:"products"`
}

type productEntry struct {
	Overrides         map[string][]orderEntry `yaml:"repayment_order_overrides"`
	ID                string                  `yaml:"id"`
	Name              string                  `yaml:"name"`
	Currency          string                  `yaml:"currency"`
	Overpayment       string                  `yaml:"overpayment_policy"`
	TaxRateOnInterest string                  `yaml:"tax_rate_on_interest"`
	Fine              fineEntry               `yaml:"fine"`
	RepaymentOrder    []orderEntry            `yaml:"repayment_order"`
	Buckets           []bucketEntry           `yaml:"delinquency_buckets"`
	MaxInstallments   int                     `yaml:"max_installments"`
}

type orderEntry struct {
	Claim string `yaml:"claim"`
	Rate  string `yaml:"rate"`
	Rank  int    `yaml:"rank"`
}

type fineEntry struct {
	FlatAmount    string `yaml:"flat_amount"`
	RateOnOverdue string `yaml:"rate_on_overdue"`
}

type bucketEntry struct {
	Label             string `yaml:"label"`
	DaysFrom          int    `yaml:"days_from"`
	DaysTo            int    `yaml:"days_to"`
	NotifyClient      bool   `yaml:"notify_client"`
	NotifyStaff       bool   `yaml:"notify_staff"`
	ApplyFine         bool   `yaml:"apply_fine"`
	AffectCreditScore bool   `yaml:"affect_credit_score"`
	ReportToBureau    bool   `yaml:"report_to_bureau"`
}

// Catalog is an immutable set of validated products.
type Catalog struct {
	products map[string]model.LoanProduct
}

// Load reads and validates the catalog at path.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open product catalog: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes and validates a YAML catalog. Any invalid product fails the
// whole catalog.
func Parse(r io.Reader) (*Catalog, error) {
	var file catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, model.NewConfigurationError("product_catalog", err.Error())
	}
	if len(file.Products) == 0 {
		return nil, model.NewConfigurationError("product_catalog", "no products defined")
	}

	products := make(map[string]model.LoanProduct, len(file.Products))
	for i, entry := range file.Products {
		product, err := entry.toProduct()
		if err != nil {
			return nil, fmt.Errorf("product %d (%s): %w", i, entry.ID, err)
		}
		if _, dup := products[product.ID()]; dup {
			return nil, model.NewConfigurationError("product_catalog", "duplicate product id "+product.ID())
		}
		products[product.ID()] = product
	}
	return &Catalog{products: products}, nil
}

// FindByID implements port.ProductRepository.
func (c *Catalog) FindByID(_ context.Context, id string) (model.LoanProduct, error) {
	p, ok := c.products[id]
	if !ok {
		return model.LoanProduct{}, fmt.Errorf("product %s: %w", id, model.ErrNotFound)
	}
	return p, nil
}

// IDs lists the product ids in ascending order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.products))
	for id := range c.products {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (e productEntry) toProduct() (model.LoanProduct, error) {
	currency, err := money.NewCurrency(e.Currency)
	if err != nil {
		return model.LoanProduct{}, model.NewConfigurationError("currency", err.Error())
	}
	overpayment, err := valueobject.NewOverpaymentPolicy(e.Overpayment)
	if err != nil {
		return model.LoanProduct{}, model.NewConfigurationError("overpayment_policy", err.Error())
	}
	order, err := parseOrder(e.RepaymentOrder)
	if err != nil {
		return model.LoanProduct{}, err
	}
	overrides := make(map[string]model.RepaymentOrderConfig, len(e.Overrides))
	for label, entries := range e.Overrides {
		if overrides[label], err = parseOrder(entries); err != nil {
			return model.LoanProduct{}, fmt.Errorf("override %s: %w", label, err)
		}
	}

	buckets := make([]model.DelinquencyBucket, 0, len(e.Buckets))
	for _, b := range e.Buckets {
		buckets = append(buckets, model.DelinquencyBucket{
			Label:            b.Label,
			DaysFrom:         b.DaysFrom,
			DaysTo:           b.DaysTo,
			DelinquencyFlags: model.DelinquencyFlags{
				NotifyClient:      b.NotifyClient,
				NotifyStaff:       b.NotifyStaff,
				ApplyFine:         b.ApplyFine,
				AffectCreditScore: b.AffectCreditScore,
				ReportToBureau:    b.ReportToBureau,
			},
		})
	}
	policy, err := model.NewDelinquencyPolicy(buckets)
	if err != nil {
		return model.LoanProduct{}, err
	}

	tax, err := parseDecimal("tax_rate_on_interest", e.TaxRateOnInterest)
	if err != nil {
		return model.LoanProduct{}, err
	}
	flat, err := parseDecimal("fine.flat_amount", e.Fine.FlatAmount)
	if err != nil {
		return model.LoanProduct{}, err
	}
	rate, err := parseDecimal("fine.rate_on_overdue", e.Fine.RateOnOverdue)
	if err != nil {
		return model.LoanProduct{}, err
	}

	return model.NewLoanProduct(model.LoanProductParams{
		ID:                e.ID,
		Name:              e.Name,
		Currency:          currency,
		Overpayment:       overpayment,
		RepaymentOrder:    order,
		OrderOverrides:    overrides,
		Delinquency:       policy,
		Fine:              model.FineDefinition{FlatAmount: flat, RateOnOverdue: rate},
		TaxRateOnInterest: tax,
		MaxInstallments:   e.MaxInstallments,
	})
}

func parseOrder(entries []orderEntry) (model.RepaymentOrderConfig, error) {
	out := make([]model.RepaymentOrderEntry, 0, len(entries))
	for _, e := range entries {
		claim, err := valueobject.NewClaimType(e.Claim)
		if err != nil {
			return model.RepaymentOrderConfig{}, model.NewConfigurationError("repayment_order", err.Error())
		}
		rate, err := parseDecimal("repayment_order.rate", e.Rate)
		if err != nil {
			return model.RepaymentOrderConfig{}, err
		}
		out = append(out, model.RepaymentOrderEntry{Claim: claim, Rank: e.Rank, Rate: rate})
	}
	return model.NewRepaymentOrderConfig(out)
}

// parseDecimal treats an empty value as zero.
func parseDecimal(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, model.NewConfigurationError(field, fmt.Sprintf("invalid decimal %q", s))
	}
	return d, nil
}
