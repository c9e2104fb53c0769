package valueobject

import (
	"errors"
	"fmt"
)

// LoanStatus represents the servicing lifecycle stage of a loan.
//
//	PENDING -> DISBURSED -> PERFORMING <-> DELINQUENT -> WRITTEN_OFF
//
// PAID_OFF is reached from any servicing state once every installment is
// settled. WRITTEN_OFF is only reached through an explicit write-off.
type LoanStatus struct {
	value string
}

const (
	loanStatusPending    = "PENDING"
	loanStatusDisbursed  = "DISBURSED"
	loanStatusPerforming = "PERFORMING"
	loanStatusDelinquent = "DELINQUENT"
	loanStatusWrittenOff = "WRITTEN_OFF"
	loanStatusPaidOff    = "PAID_OFF"
)

var (
	LoanStatusPending    = LoanStatus{value: loanStatusPending}
	LoanStatusDisbursed  = LoanStatus{value: loanStatusDisbursed}
	LoanStatusPerforming = LoanStatus{value: loanStatusPerforming}
	LoanStatusDelinquent = LoanStatus{value: loanStatusDelinquent}
	LoanStatusWrittenOff = LoanStatus{value: loanStatusWrittenOff}
	LoanStatusPaidOff    = LoanStatus{value: loanStatusPaidOff}
)

var validLoanStatuses = map[string]LoanStatus{
	loanStatusPending:    LoanStatusPending,
	loanStatusDisbursed:  LoanStatusDisbursed,
	loanStatusPerforming: LoanStatusPerforming,
	loanStatusDelinquent: LoanStatusDelinquent,
	loanStatusWrittenOff: LoanStatusWrittenOff,
	loanStatusPaidOff:    LoanStatusPaidOff,
}

var loanStatusTransitions = map[string][]string{
	loanStatusPending:    {loanStatusDisbursed},
	loanStatusDisbursed:  {loanStatusPerforming, loanStatusDelinquent, loanStatusWrittenOff, loanStatusPaidOff},
	loanStatusPerforming: {loanStatusDelinquent, loanStatusWrittenOff, loanStatusPaidOff},
	loanStatusDelinquent: {loanStatusPerforming, loanStatusWrittenOff, loanStatusPaidOff},
}

// NewLoanStatus creates a LoanStatus from a raw string.
func NewLoanStatus(s string) (LoanStatus, error) {
	v, ok := validLoanStatuses[s]
	if !ok {
		return LoanStatus{}, fmt.Errorf("invalid loan status: %q", s)
	}
	return v, nil
}

// String returns the string representation of the status.
func (s LoanStatus) String() string { return s.value }

// IsZero returns true if the status has not been initialised.
func (s LoanStatus) IsZero() bool { return s.value == "" }

// Equal returns true when both statuses carry the same value.
func (s LoanStatus) Equal(other LoanStatus) bool { return s.value == other.value }

// CanTransitionTo reports whether the state machine allows s -> next.
func (s LoanStatus) CanTransitionTo(next LoanStatus) bool {
	for _, v := range loanStatusTransitions[s.value] {
		if v == next.value {
			return true
		}
	}
	return false
}

// IsServicing reports whether the loan has been disbursed and is still open
// to repayments and accounting-day reclassification.
func (s LoanStatus) IsServicing() bool {
	switch s.value {
	case loanStatusDisbursed, loanStatusPerforming, loanStatusDelinquent:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s LoanStatus) IsTerminal() bool {
	return s.value == loanStatusWrittenOff || s.value == loanStatusPaidOff
}

var (
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)
