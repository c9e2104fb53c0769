package grpc

// Request messages. Amounts and rates are decimal strings, dates are
// YYYY-MM-DD and timestamps RFC 3339. Responses reuse the application DTOs.

// LoanTerms are the contractual terms shared by Quote and DisburseLoan.
type LoanTerms struct {
	Principal          string `json:"principal"`
	AnnualRate         string `json:"annual_rate"`
	TaxRateOnInterest  string `json:"tax_rate_on_interest,omitempty"`
	DisbursementDate   string `json:"disbursement_date,omitempty"`
	FirstRepaymentDate string `json:"first_repayment_date"`
	DurationUnit       string `json:"duration_unit"`
	Cycle              string `json:"cycle"`
	Method             string `json:"method"`
	InterestPeriod     string `json:"interest_period"`
	Duration           int32  `json:"duration"`

	// NumberOfInstallments is derived from the duration when zero.
	NumberOfInstallments int32 `json:"number_of_installments,omitempty"`
}

// QuoteRequest asks for a schedule without persisting anything.
type QuoteRequest struct {
	ProductID string    `json:"product_id"`
	Terms     LoanTerms `json:"terms"`
}

// DisburseLoanRequest opens and disburses a loan.
type DisburseLoanRequest struct {
	ProductID         string    `json:"product_id"`
	BorrowerAccountID string    `json:"borrower_account_id"`
	Terms             LoanTerms `json:"terms"`
}

// ApplyRepaymentRequest carries one incoming payment.
type ApplyRepaymentRequest struct {
	LoanID     string `json:"loan_id"`
	PaymentID  string `json:"payment_id,omitempty"`
	Amount     string `json:"amount"`
	ReceivedAt string `json:"received_at,omitempty"`
}

// AdvanceAccountingDayRequest reclassifies one loan as of a business date.
type AdvanceAccountingDayRequest struct {
	LoanID       string `json:"loan_id"`
	BusinessDate string `json:"business_date"`
}

// WriteOffLoanRequest removes a loan from servicing.
type WriteOffLoanRequest struct {
	LoanID string `json:"loan_id"`
	Reason string `json:"reason"`
}

// GetLoanRequest identifies a loan.
type GetLoanRequest struct {
	LoanID string `json:"loan_id"`
}
