package valueobject

import "fmt"

// ---------------------------------------------------------------------------
// ClaimType – immutable value object
// ---------------------------------------------------------------------------

// ClaimType names one of the competing claims on an installment that a
// repayment can settle.
type ClaimType struct {
	value string
}

const (
	claimInterest = "INTEREST"
	claimCapital  = "CAPITAL"
	claimFine     = "FINE"
	claimTax      = "TAX"
)

var (
	ClaimInterest = ClaimType{value: claimInterest}
	ClaimCapital  = ClaimType{value: claimCapital}
	ClaimFine     = ClaimType{value: claimFine}
	ClaimTax      = ClaimType{value: claimTax}
)

var validClaimTypes = map[string]ClaimType{
	claimInterest: ClaimInterest,
	claimCapital:  ClaimCapital,
	claimFine:     ClaimFine,
	claimTax:      ClaimTax,
}

// NewClaimType creates a ClaimType from a raw string.
func NewClaimType(s string) (ClaimType, error) {
	v, ok := validClaimTypes[s]
	if !ok {
		return ClaimType{}, fmt.Errorf("invalid claim type: %q", s)
	}
	return v, nil
}

func (c ClaimType) String() string { return c.value }

func (c ClaimType) IsZero() bool { return c.value == "" }

func (c ClaimType) Equal(other ClaimType) bool { return c.value == other.value }

// ---------------------------------------------------------------------------
// OverpaymentPolicy – immutable value object
// ---------------------------------------------------------------------------

// OverpaymentPolicy decides what happens to the part of a payment that
// exceeds everything outstanding on the loan.
type OverpaymentPolicy struct {
	value string
}

const (
	overpaymentReject        = "REJECT"
	overpaymentCreditBalance = "CREDIT_BALANCE"
)

var (
	OverpaymentReject        = OverpaymentPolicy{value: overpaymentReject}
	OverpaymentCreditBalance = OverpaymentPolicy{value: overpaymentCreditBalance}
)

var validOverpaymentPolicies = map[string]OverpaymentPolicy{
	overpaymentReject:        OverpaymentReject,
	overpaymentCreditBalance: OverpaymentCreditBalance,
}

// NewOverpaymentPolicy creates an OverpaymentPolicy from a raw string.
func NewOverpaymentPolicy(s string) (OverpaymentPolicy, error) {
	v, ok := validOverpaymentPolicies[s]
	if !ok {
		return OverpaymentPolicy{}, fmt.Errorf("invalid overpayment policy: %q", s)
	}
	return v, nil
}

func (p OverpaymentPolicy) String() string { return p.value }

func (p OverpaymentPolicy) IsZero() bool { return p.value == "" }

func (p OverpaymentPolicy) Equal(other OverpaymentPolicy) bool { return p.value == other.value }
