package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Request DTOs
// ---------------------------------------------------------------------------

// LoanTermsRequest carries the contractual terms of a quote or disbursement.
// Enumerations are passed by name, e.g. "MONTHLY" or "DECLINING_BALANCE".
type LoanTermsRequest struct {
	FirstRepaymentDate time.Time       `json:"first_repayment_date"`
	DisbursementDate   time.Time       `json:"disbursement_date,omitempty"`
	Principal          decimal.Decimal `json:"principal"`
	AnnualRate         decimal.Decimal `json:"annual_rate"`
	// TaxRateOnInterest overrides the product's rate when set.
	TaxRateOnInterest    decimal.NullDecimal `json:"tax_rate_on_interest"`
	DurationUnit         string              `json:"duration_unit"`
	Cycle                string              `json:"cycle"`
	Method               string              `json:"method"`
	InterestPeriod       string              `json:"interest_period"`
	Duration             int                 `json:"duration"`
	NumberOfInstallments int                 `json:"number_of_installments,omitempty"`
}

// QuoteRequest asks for a schedule without committing anything.
type QuoteRequest struct {
	ProductID string           `json:"product_id"`
	Terms     LoanTermsRequest `json:"terms"`
}

// DisburseLoanRequest commits a new loan under a product.
type DisburseLoanRequest struct {
	ProductID         string           `json:"product_id"`
	BorrowerAccountID string           `json:"borrower_account_id"`
	Terms             LoanTermsRequest `json:"terms"`
}

// ApplyRepaymentRequest carries one incoming payment.
type ApplyRepaymentRequest struct {
	ReceivedAt time.Time       `json:"received_at,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	LoanID     string          `json:"loan_id"`
	PaymentID  string          `json:"payment_id"`
}

// AdvanceAccountingDayRequest reclassifies one loan as of a business date.
type AdvanceAccountingDayRequest struct {
	BusinessDate time.Time `json:"business_date"`
	LoanID       string    `json:"loan_id"`
}

// CloseAccountingDayRequest reclassifies every servicing loan.
type CloseAccountingDayRequest struct {
	BusinessDate time.Time `json:"business_date"`
}

// WriteOffLoanRequest removes a loan from servicing.
type WriteOffLoanRequest struct {
	LoanID string `json:"loan_id"`
	Reason string `json:"reason"`
}

// GetLoanRequest identifies a loan to retrieve.
type GetLoanRequest struct {
	LoanID string `json:"loan_id"`
}

// ---------------------------------------------------------------------------
// Response DTOs
// ---------------------------------------------------------------------------

// InstallmentResponse represents one row of a repayment plan.
type InstallmentResponse struct {
	PeriodStart    time.Time       `json:"period_start"`
	DueDate        time.Time       `json:"due_date"`
	SettledAt      *time.Time      `json:"settled_at,omitempty"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Principal      decimal.Decimal `json:"principal"`
	Interest       decimal.Decimal `json:"interest"`
	Tax            decimal.Decimal `json:"tax"`
	Fine           decimal.Decimal `json:"fine"`
	Total          decimal.Decimal `json:"total"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	Outstanding    decimal.Decimal `json:"outstanding"`
	Sequence       int             `json:"sequence"`
}

// QuoteResponse is a generated schedule with its totals.
type QuoteResponse struct {
	TotalPrincipal decimal.Decimal       `json:"total_principal"`
	TotalInterest  decimal.Decimal       `json:"total_interest"`
	TotalTax       decimal.Decimal       `json:"total_tax"`
	TotalDue       decimal.Decimal       `json:"total_due"`
	ProductID      string                `json:"product_id"`
	Currency       string                `json:"currency"`
	Installments   []InstallmentResponse `json:"installments"`
}

// DelinquencyFlagsResponse mirrors the flags of the current bucket.
type DelinquencyFlagsResponse struct {
	NotifyClient      bool `json:"notify_client"`
	NotifyStaff       bool `json:"notify_staff"`
	ApplyFine         bool `json:"apply_fine"`
	AffectCreditScore bool `json:"affect_credit_score"`
	ReportToBureau    bool `json:"report_to_bureau"`
}

// LoanResponse is the external representation of a loan.
type LoanResponse struct {
	CreatedAt         time.Time                `json:"created_at"`
	UpdatedAt         time.Time                `json:"updated_at"`
	DisbursedAt       time.Time                `json:"disbursed_at"`
	Principal         decimal.Decimal          `json:"principal"`
	AnnualRate        decimal.Decimal          `json:"annual_rate"`
	Outstanding       decimal.Decimal          `json:"outstanding"`
	CreditBalance     decimal.Decimal          `json:"credit_balance"`
	ID                string                   `json:"id"`
	ProductID         string                   `json:"product_id"`
	BorrowerAccountID string                   `json:"borrower_account_id"`
	Currency          string                   `json:"currency"`
	Status            string                   `json:"status"`
	DelinquencyStatus string                   `json:"delinquency_status"`
	Installments      []InstallmentResponse    `json:"installments"`
	Flags             DelinquencyFlagsResponse `json:"flags"`
	DaysPastDue       int                      `json:"days_past_due"`
	Version           int                      `json:"version"`
}

// AllocationResponse is the part of a payment applied to one installment.
type AllocationResponse struct {
	DueDate   time.Time       `json:"due_date"`
	Principal decimal.Decimal `json:"principal"`
	Interest  decimal.Decimal `json:"interest"`
	Fine      decimal.Decimal `json:"fine"`
	Tax       decimal.Decimal `json:"tax"`
	Sequence  int             `json:"sequence"`
}

// RepaymentResponse is the outcome of ApplyRepayment.
type RepaymentResponse struct {
	Amount        decimal.Decimal      `json:"amount"`
	CreditBalance decimal.Decimal      `json:"credit_balance"`
	Outstanding   decimal.Decimal      `json:"outstanding"`
	LoanID        string               `json:"loan_id"`
	PaymentID     string               `json:"payment_id"`
	LoanStatus    string               `json:"loan_status"`
	Allocations   []AllocationResponse `json:"allocations"`
	// Replayed is set when the payment id had already been applied and the
	// original allocation is returned unchanged.
	Replayed bool `json:"replayed,omitempty"`
}

// FineResponse is a fine charged during reclassification.
type FineResponse struct {
	Amount   decimal.Decimal `json:"amount"`
	Sequence int             `json:"sequence"`
}

// ClassificationResponse is the outcome of reclassifying one loan.
type ClassificationResponse struct {
	BusinessDate      time.Time                `json:"business_date"`
	LoanID            string                   `json:"loan_id"`
	DelinquencyStatus string                   `json:"delinquency_status"`
	LoanStatus        string                   `json:"loan_status"`
	Fines             []FineResponse           `json:"fines,omitempty"`
	Flags             DelinquencyFlagsResponse `json:"flags"`
	DaysPastDue       int                      `json:"days_past_due"`
}

// CloseAccountingDayResponse summarises a batch reclassification.
type CloseAccountingDayResponse struct {
	BusinessDate time.Time `json:"business_date"`
	FailedLoans  []string  `json:"failed_loans,omitempty"`
	Processed    int       `json:"processed"`
}

// WriteOffResponse is the outcome of WriteOffLoan.
type WriteOffResponse struct {
	Outstanding decimal.Decimal `json:"outstanding"`
	LoanID      string          `json:"loan_id"`
	LoanStatus  string          `json:"loan_status"`
}
