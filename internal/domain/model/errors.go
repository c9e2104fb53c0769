package model

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors. Typed errors below match them through errors.Is so callers
// can branch on the category without caring about the details.
var (
	ErrConfiguration          = errors.New("configuration error")
	ErrValidation             = errors.New("validation error")
	ErrOverpayment            = errors.New("overpayment rejected")
	ErrAllocationInvariant    = errors.New("allocation invariant violated")
	ErrNotFound               = errors.New("not found")
	ErrConcurrentModification = errors.New("concurrent modification")
)

// ConfigurationError reports product or loan configuration that can never
// produce a valid computation. It is raised before any work is done.
type ConfigurationError struct {
	Field  string
	Reason string
}

func NewConfigurationError(field, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: reason}
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// ValidationError reports an input value rejected at a function boundary.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// OverpaymentError is returned when a payment exceeds everything outstanding
// and the product does not allow credit balances.
type OverpaymentError struct {
	Payment     decimal.Decimal
	Outstanding decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("overpayment rejected: payment %s exceeds outstanding %s",
		e.Payment.String(), e.Outstanding.String())
}

func (e *OverpaymentError) Is(target error) bool { return target == ErrOverpayment }

// Excess is the part of the payment that could not be applied.
func (e *OverpaymentError) Excess() decimal.Decimal { return e.Payment.Sub(e.Outstanding) }
