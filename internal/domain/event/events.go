package event

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/bib/services/loan-servicing/pkg/events"
)

// DomainEvent is an alias for the shared pkg/events.DomainEvent interface.
type DomainEvent = events.DomainEvent

const aggregateLoan = "Loan"

// Event types. The Kafka publisher routes on these.
const (
	TypeLoanDisbursed            = "loan_servicing.loan.disbursed"
	TypeRepaymentAllocated       = "loan_servicing.repayment.allocated"
	TypeFineAssessed             = "loan_servicing.fine.assessed"
	TypeDelinquencyStatusChanged = "loan_servicing.delinquency.status_changed"
	TypeLoanWrittenOff           = "loan_servicing.loan.written_off"
	TypeLoanPaidOff              = "loan_servicing.loan.paid_off"
)

// ---------------------------------------------------------------------------
// Disbursement
// ---------------------------------------------------------------------------

// LoanDisbursed is raised once the schedule is fixed and funds are released.
// The ledger poster books the principal receivable from it.
type LoanDisbursed struct {
	events.BaseEvent
	FirstDueDate      time.Time       `json:"first_due_date"`
	MaturityDate      time.Time       `json:"maturity_date"`
	Principal         decimal.Decimal `json:"principal"`
	TotalInterest     decimal.Decimal `json:"total_interest"`
	TotalTax          decimal.Decimal `json:"total_tax"`
	ProductID         string          `json:"product_id"`
	BorrowerAccountID string          `json:"borrower_account_id"`
	Currency          string          `json:"currency"`
	InstallmentCount  int             `json:"installment_count"`
}

func NewLoanDisbursed(
	loanID, productID, borrowerAccountID string,
	principal, totalInterest, totalTax decimal.Decimal,
	currency string,
	installmentCount int,
	firstDue, maturity, now time.Time,
) LoanDisbursed {
	return LoanDisbursed{
		BaseEvent:         events.NewBaseEvent(TypeLoanDisbursed, loanID, aggregateLoan, now),
		ProductID:         productID,
		BorrowerAccountID: borrowerAccountID,
		Principal:         principal,
		TotalInterest:     totalInterest,
		TotalTax:          totalTax,
		Currency:          currency,
		InstallmentCount:  installmentCount,
		FirstDueDate:      firstDue,
		MaturityDate:      maturity,
	}
}

// ---------------------------------------------------------------------------
// Repayment
// ---------------------------------------------------------------------------

// AllocationLine is the per-installment breakdown carried on
// RepaymentAllocated, one debit/credit set per line for the ledger poster.
type AllocationLine struct {
	DueDate   time.Time       `json:"due_date"`
	Principal decimal.Decimal `json:"principal"`
	Interest  decimal.Decimal `json:"interest"`
	Fine      decimal.Decimal `json:"fine"`
	Tax       decimal.Decimal `json:"tax"`
	Sequence  int             `json:"sequence"`
}

// RepaymentAllocated is raised after a payment has been split across claims.
type RepaymentAllocated struct {
	events.BaseEvent
	Amount          decimal.Decimal  `json:"amount"`
	CreditBalance   decimal.Decimal  `json:"credit_balance"`
	Outstanding     decimal.Decimal  `json:"outstanding"`
	PaymentID       string           `json:"payment_id"`
	Currency        string           `json:"currency"`
	BorrowerAccount string           `json:"borrower_account_id"`
	Lines           []AllocationLine `json:"lines"`
}

func NewRepaymentAllocated(
	loanID, paymentID, borrowerAccountID string,
	amount, creditBalance, outstanding decimal.Decimal,
	currency string,
	lines []AllocationLine,
	now time.Time,
) RepaymentAllocated {
	return RepaymentAllocated{
		BaseEvent:       events.NewBaseEvent(TypeRepaymentAllocated, loanID, aggregateLoan, now),
		PaymentID:       paymentID,
		BorrowerAccount: borrowerAccountID,
		Amount:          amount,
		CreditBalance:   creditBalance,
		Outstanding:     outstanding,
		Currency:        currency,
		Lines:           lines,
	}
}

// ---------------------------------------------------------------------------
// Delinquency
// ---------------------------------------------------------------------------

// FineAssessed is raised when a fine is charged on an overdue installment.
type FineAssessed struct {
	events.BaseEvent
	DueDate             time.Time       `json:"due_date"`
	Amount              decimal.Decimal `json:"amount"`
	Currency            string          `json:"currency"`
	InstallmentSequence int             `json:"installment_sequence"`
	DaysPastDue         int             `json:"days_past_due"`
}

func NewFineAssessed(
	loanID string, sequence int, dueDate time.Time,
	amount decimal.Decimal, currency string,
	daysPastDue int, now time.Time,
) FineAssessed {
	return FineAssessed{
		BaseEvent:           events.NewBaseEvent(TypeFineAssessed, loanID, aggregateLoan, now),
		InstallmentSequence: sequence,
		DueDate:             dueDate,
		Amount:              amount,
		Currency:            currency,
		DaysPastDue:         daysPastDue,
	}
}

// DelinquencyStatusChanged is raised whenever reclassification moves a loan
// into a different bucket. Notification and credit-bureau consumers act on
// the flags.
type DelinquencyStatusChanged struct {
	events.BaseEvent
	PreviousStatus    string `json:"previous_status"`
	Status            string `json:"status"`
	LoanStatus        string `json:"loan_status"`
	BorrowerAccount   string `json:"borrower_account_id"`
	DaysPastDue       int    `json:"days_past_due"`
	NotifyClient      bool   `json:"notify_client"`
	NotifyStaff       bool   `json:"notify_staff"`
	AffectCreditScore bool   `json:"affect_credit_score"`
	ReportToBureau    bool   `json:"report_to_bureau"`
}

// DelinquencyFlags mirrors the bucket's action flags on the wire.
type DelinquencyFlags struct {
	NotifyClient      bool
	NotifyStaff       bool
	AffectCreditScore bool
	ReportToBureau    bool
}

func NewDelinquencyStatusChanged(
	loanID, borrowerAccountID, previous, status, loanStatus string,
	daysPastDue int, flags DelinquencyFlags, now time.Time,
) DelinquencyStatusChanged {
	return DelinquencyStatusChanged{
		BaseEvent:         events.NewBaseEvent(TypeDelinquencyStatusChanged, loanID, aggregateLoan, now),
		BorrowerAccount:   borrowerAccountID,
		PreviousStatus:    previous,
		Status:            status,
		LoanStatus:        loanStatus,
		DaysPastDue:       daysPastDue,
		NotifyClient:      flags.NotifyClient,
		NotifyStaff:       flags.NotifyStaff,
		AffectCreditScore: flags.AffectCreditScore,
		ReportToBureau:    flags.ReportToBureau,
	}
}

// ---------------------------------------------------------------------------
// Terminal states
// ---------------------------------------------------------------------------

// LoanWrittenOff carries the balances removed from the books.
type LoanWrittenOff struct {
	events.BaseEvent
	Principal decimal.Decimal `json:"principal"`
	Interest  decimal.Decimal `json:"interest"`
	Fine      decimal.Decimal `json:"fine"`
	Tax       decimal.Decimal `json:"tax"`
	Currency  string          `json:"currency"`
	Reason    string          `json:"reason"`
}

func NewLoanWrittenOff(
	loanID string,
	principal, interest, fine, tax decimal.Decimal,
	currency, reason string, now time.Time,
) LoanWrittenOff {
	return LoanWrittenOff{
		BaseEvent: events.NewBaseEvent(TypeLoanWrittenOff, loanID, aggregateLoan, now),
		Principal: principal,
		Interest:  interest,
		Fine:      fine,
		Tax:       tax,
		Currency:  currency,
		Reason:    reason,
	}
}

// LoanPaidOff is raised when the last open claim is settled.
type LoanPaidOff struct {
	events.BaseEvent
	CreditBalance decimal.Decimal `json:"credit_balance"`
	Currency      string          `json:"currency"`
}

func NewLoanPaidOff(loanID string, creditBalance decimal.Decimal, currency string, now time.Time) LoanPaidOff {
	return LoanPaidOff{
		BaseEvent:     events.NewBaseEvent(TypeLoanPaidOff, loanID, aggregateLoan, now),
		CreditBalance: creditBalance,
		Currency:      currency,
	}
}
