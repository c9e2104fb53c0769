package grpc

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bibbank/bib/services/loan-servicing/internal/application/dto"
	"github.com/bibbank/bib/services/loan-servicing/internal/application/usecase"
)

const dateLayout = "2006-01-02"

// LoanServicingHandler implements LoanServicingServiceServer on top of the
// application use cases.
type LoanServicingHandler struct {
	UnimplementedLoanServicingServiceServer

	quote    *usecase.SimulateLoanUseCase
	disburse *usecase.DisburseLoanUseCase
	repay    *usecase.ApplyRepaymentUseCase
	advance  *usecase.AdvanceAccountingDayUseCase
	writeOff *usecase.WriteOffLoanUseCase
	getLoan  *usecase.GetLoanUseCase
}

// NewLoanServicingHandler creates a handler with all use-case dependencies.
func NewLoanServicingHandler(
	quote *usecase.SimulateLoanUseCase,
	disburse *usecase.DisburseLoanUseCase,
	repay *usecase.ApplyRepaymentUseCase,
	advance *usecase.AdvanceAccountingDayUseCase,
	writeOff *usecase.WriteOffLoanUseCase,
	getLoan *usecase.GetLoanUseCase,
) *LoanServicingHandler {
	return &LoanServicingHandler{
		quote:    quote,
		disburse: disburse,
		repay:    repay,
		advance:  advance,
		writeOff: writeOff,
		getLoan:  getLoan,
	}
}

// Quote returns the schedule a loan with the given terms would have.
func (h *LoanServicingHandler) Quote(ctx context.Context, req *QuoteRequest) (*dto.QuoteResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	terms, err := parseTerms(req.Terms)
	if err != nil {
		return nil, err
	}

	resp, err := h.quote.Execute(ctx, dto.QuoteRequest{ProductID: req.ProductID, Terms: terms})
	if err != nil {
		return nil, toStatus(err)
	}
	return &resp, nil
}

// DisburseLoan opens a loan, fixes its schedule and releases the funds.
func (h *LoanServicingHandler) DisburseLoan(ctx context.Context, req *DisburseLoanRequest) (*dto.LoanResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if req.BorrowerAccountID == "" {
		return nil, status.Error(codes.InvalidArgument, "borrower_account_id is required")
	}
	terms, err := parseTerms(req.Terms)
	if err != nil {
		return nil, err
	}

	resp, err := h.disburse.Execute(ctx, dto.DisburseLoanRequest{
		ProductID:         req.ProductID,
		BorrowerAccountID: req.BorrowerAccountID,
		Terms:             terms,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &resp, nil
}

// ApplyRepayment allocates a payment across the loan's open claims.
func (h *LoanServicingHandler) ApplyRepayment(ctx context.Context, req *ApplyRepaymentRequest) (*dto.RepaymentResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if req.LoanID == "" {
		return nil, status.Error(codes.InvalidArgument, "loan_id is required")
	}
	amount, err := parseDecimal("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	var receivedAt time.Time
	if req.ReceivedAt != "" {
		receivedAt, err = time.Parse(time.RFC3339, req.ReceivedAt)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, fmt.Sprintf("invalid received_at: %v", err))
		}
	}

	resp, err := h.repay.Execute(ctx, dto.ApplyRepaymentRequest{
		LoanID:     req.LoanID,
		PaymentID:  req.PaymentID,
		Amount:     amount,
		ReceivedAt: receivedAt,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &resp, nil
}

// AdvanceAccountingDay reclassifies one loan as of the business date.
func (h *LoanServicingHandler) AdvanceAccountingDay(
	ctx context.Context,
	req *AdvanceAccountingDayRequest,
) (*dto.ClassificationResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if req.LoanID == "" {
		return nil, status.Error(codes.InvalidArgument, "loan_id is required")
	}
	businessDate, err := parseDate("business_date", req.BusinessDate)
	if err != nil {
		return nil, err
	}

	resp, err := h.advance.Execute(ctx, dto.AdvanceAccountingDayRequest{
		LoanID:       req.LoanID,
		BusinessDate: businessDate,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &resp, nil
}

// WriteOffLoan removes a loan from servicing.
func (h *LoanServicingHandler) WriteOffLoan(ctx context.Context, req *WriteOffLoanRequest) (*dto.WriteOffResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if req.LoanID == "" {
		return nil, status.Error(codes.InvalidArgument, "loan_id is required")
	}

	resp, err := h.writeOff.Execute(ctx, dto.WriteOffLoanRequest{LoanID: req.LoanID, Reason: req.Reason})
	if err != nil {
		return nil, toStatus(err)
	}
	return &resp, nil
}

// GetLoan retrieves a loan with its schedule.
func (h *LoanServicingHandler) GetLoan(ctx context.Context, req *GetLoanRequest) (*dto.LoanResponse, error) {
	if req == nil || req.LoanID == "" {
		return nil, status.Error(codes.InvalidArgument, "loan_id is required")
	}

	resp, err := h.getLoan.Execute(ctx, dto.GetLoanRequest{LoanID: req.LoanID})
	if err != nil {
		return nil, toStatus(err)
	}
	return &resp, nil
}

func parseTerms(t LoanTerms) (dto.LoanTermsRequest, error) {
	principal, err := parseDecimal("principal", t.Principal)
	if err != nil {
		return dto.LoanTermsRequest{}, err
	}
	rate, err := parseDecimal("annual_rate", t.AnnualRate)
	if err != nil {
		return dto.LoanTermsRequest{}, err
	}
	firstDue, err := parseDate("first_repayment_date", t.FirstRepaymentDate)
	if err != nil {
		return dto.LoanTermsRequest{}, err
	}

	terms := dto.LoanTermsRequest{
		Principal:            principal,
		AnnualRate:           rate,
		FirstRepaymentDate:   firstDue,
		DurationUnit:         t.DurationUnit,
		Cycle:                t.Cycle,
		Method:               t.Method,
		InterestPeriod:       t.InterestPeriod,
		Duration:             int(t.Duration),
		NumberOfInstallments: int(t.NumberOfInstallments),
	}
	if t.DisbursementDate != "" {
		if terms.DisbursementDate, err = parseDate("disbursement_date", t.DisbursementDate); err != nil {
			return dto.LoanTermsRequest{}, err
		}
	}
	if t.TaxRateOnInterest != "" {
		tax, err := parseDecimal("tax_rate_on_interest", t.TaxRateOnInterest)
		if err != nil {
			return dto.LoanTermsRequest{}, err
		}
		terms.TaxRateOnInterest = decimal.NewNullDecimal(tax)
	}
	return terms, nil
}

func parseDecimal(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, status.Error(codes.InvalidArgument, fmt.Sprintf("invalid %s: %v", field, err))
	}
	return d, nil
}

func parseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, status.Error(codes.InvalidArgument, fmt.Sprintf("invalid %s: %v", field, err))
	}
	return t, nil
}
