package model

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/bibbank/bib/services/loan-servicing/internal/domain/valueobject"
)

// RepaymentOrderEntry ranks one claim. Lower ranks are settled first. A
// positive Rate makes the claim take part in a pro-rata split when a payment
// runs short at its rank.
type RepaymentOrderEntry struct {
	Rate  decimal.Decimal
	Claim valueobject.ClaimType
	Rank  int
}

// RepaymentOrderConfig is a validated, rank-sorted repayment precedence.
type RepaymentOrderConfig struct {
	entries []RepaymentOrderEntry
}

var requiredClaims = []valueobject.ClaimType{
	valueobject.ClaimInterest,
	valueobject.ClaimCapital,
	valueobject.ClaimFine,
}

// NewRepaymentOrderConfig validates entries: Interest, Capital and Fine are
// required, Tax is optional, ranks are positive and distinct and rates are
// not negative. When Tax is not ranked it is settled immediately before
// Interest.
func NewRepaymentOrderConfig(entries []RepaymentOrderEntry) (RepaymentOrderConfig, error) {
	seenClaim := make(map[valueobject.ClaimType]bool, len(entries))
	seenRank := make(map[int]valueobject.ClaimType, len(entries))

	for _, e := range entries {
		if e.Claim.IsZero() {
			return RepaymentOrderConfig{}, NewConfigurationError("repayment_order", "unknown claim type")
		}
		if seenClaim[e.Claim] {
			return RepaymentOrderConfig{}, NewConfigurationError("repayment_order",
				fmt.Sprintf("claim %s ranked more than once", e.Claim))
		}
		if e.Rank <= 0 {
			return RepaymentOrderConfig{}, NewConfigurationError("repayment_order",
				fmt.Sprintf("rank for %s must be positive", e.Claim))
		}
		if other, dup := seenRank[e.Rank]; dup {
			return RepaymentOrderConfig{}, NewConfigurationError("repayment_order",
				fmt.Sprintf("rank %d shared by %s and %s", e.Rank, other, e.Claim))
		}
		if e.Rate.IsNegative() {
			return RepaymentOrderConfig{}, NewConfigurationError("repayment_order",
				fmt.Sprintf("rate for %s must not be negative", e.Claim))
		}
		seenClaim[e.Claim] = true
		seenRank[e.Rank] = e.Claim
	}

	for _, c := range requiredClaims {
		if !seenClaim[c] {
			return RepaymentOrderConfig{}, NewConfigurationError("repayment_order",
				fmt.Sprintf("missing rank for %s", c))
		}
	}

	sorted := make([]RepaymentOrderEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })

	if !seenClaim[valueobject.ClaimTax] {
		withTax := make([]RepaymentOrderEntry, 0, len(sorted)+1)
		for _, e := range sorted {
			if e.Claim == valueobject.ClaimInterest {
				withTax = append(withTax, RepaymentOrderEntry{Claim: valueobject.ClaimTax, Rank: e.Rank, Rate: decimal.Zero})
			}
			withTax = append(withTax, e)
		}
		sorted = withTax
	}

	return RepaymentOrderConfig{entries: sorted}, nil
}

// MustRepaymentOrderConfig panics on invalid entries. Intended for tests and
// package-level defaults.
func MustRepaymentOrderConfig(entries ...RepaymentOrderEntry) RepaymentOrderConfig {
	cfg, err := NewRepaymentOrderConfig(entries)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Entries returns the effective precedence, lowest rank first.
func (c RepaymentOrderConfig) Entries() []RepaymentOrderEntry {
	out := make([]RepaymentOrderEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// IsZero reports whether the config was never built.
func (c RepaymentOrderConfig) IsZero() bool { return len(c.entries) == 0 }
