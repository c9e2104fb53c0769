package model_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/bibbank/bib/services/loan-servicing/internal/domain/model"
)

func TestErrorTaxonomy_MatchesSentinels(t *testing.T) {
	cfgErr := fmt.Errorf("load product: %w", model.NewConfigurationError("repayment_order", "duplicate rank 1"))
	assert.ErrorIs(t, cfgErr, model.ErrConfiguration)
	assert.NotErrorIs(t, cfgErr, model.ErrValidation)
	assert.Contains(t, cfgErr.Error(), "repayment_order: duplicate rank 1")

	var target *model.ConfigurationError
	assert.True(t, errors.As(cfgErr, &target))
	assert.Equal(t, "repayment_order", target.Field)

	valErr := model.NewValidationError("principal", "must be positive")
	assert.ErrorIs(t, valErr, model.ErrValidation)
	assert.NotErrorIs(t, valErr, model.ErrConfiguration)

	over := &model.OverpaymentError{Payment: decimal.NewFromInt(150), Outstanding: decimal.NewFromInt(100)}
	assert.ErrorIs(t, over, model.ErrOverpayment)
	assert.True(t, over.Excess().Equal(decimal.NewFromInt(50)))
}
