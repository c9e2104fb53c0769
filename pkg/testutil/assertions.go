package testutil

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// D parses a decimal literal, panicking on malformed input.
func D(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// AssertDecimal checks numeric equality, so "1200" and "1200.00" are equal.
func AssertDecimal(t *testing.T, expected string, actual decimal.Decimal, msgAndArgs ...interface{}) bool {
	t.Helper()
	want := D(expected)
	if want.Equal(actual) {
		return true
	}
	return assert.Fail(t, "decimals not equal: expected "+want.String()+", actual "+actual.String(), msgAndArgs...)
}
