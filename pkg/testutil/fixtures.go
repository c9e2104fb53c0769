package testutil

import "time"

// Fixed identifiers for deterministic testing.
const (
	TestLoanID    = "loan-0001"
	TestLoanID2   = "loan-0002"
	TestProductID = "term-loan-standard"
)

// Date returns midnight UTC on the given calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
