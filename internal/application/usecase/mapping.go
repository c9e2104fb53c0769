package usecase

import (
	"github.com/shopspring/decimal"

	"github.com/bibbank/bib/services/loan-servicing/internal/application/dto"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/model"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/valueobject"
)

// termsFromRequest parses enumerations by name and completes the terms with
// the product's currency and, unless overridden, its tax rate.
func termsFromRequest(req dto.LoanTermsRequest, product model.LoanProduct) (model.LoanTerms, error) {
	cycle, err := valueobject.NewRepaymentCycle(req.Cycle)
	if err != nil {
		return model.LoanTerms{}, model.NewConfigurationError("cycle", err.Error())
	}
	unit, err := valueobject.NewDurationUnit(req.DurationUnit)
	if err != nil {
		return model.LoanTerms{}, model.NewConfigurationError("duration_unit", err.Error())
	}
	method, err := valueobject.NewAmortizationMethod(req.Method)
	if err != nil {
		return model.LoanTerms{}, model.NewConfigurationError("method", err.Error())
	}
	period, err := valueobject.NewInterestPeriod(req.InterestPeriod)
	if err != nil {
		return model.LoanTerms{}, model.NewConfigurationError("interest_period", err.Error())
	}

	tax := product.TaxRateOnInterest()
	if req.TaxRateOnInterest.Valid {
		tax = req.TaxRateOnInterest.Decimal
	}

	return model.LoanTerms{
		FirstRepaymentDate:   req.FirstRepaymentDate,
		DisbursementDate:     req.DisbursementDate,
		Principal:            req.Principal,
		AnnualRate:           req.AnnualRate,
		TaxRateOnInterest:    tax,
		Currency:             product.Currency(),
		DurationUnit:         unit,
		Cycle:                cycle,
		Method:               method,
		InterestPeriod:       period,
		Duration:             req.Duration,
		NumberOfInstallments: req.NumberOfInstallments,
	}, nil
}

func toInstallmentResponses(installments []model.Installment) []dto.InstallmentResponse {
	out := make([]dto.InstallmentResponse, 0, len(installments))
	for _, inst := range installments {
		resp := dto.InstallmentResponse{
			Sequence:       inst.Sequence,
			PeriodStart:    inst.PeriodStart,
			DueDate:        inst.DueDate,
			OpeningBalance: inst.OpeningBalance,
			Principal:      inst.PrincipalDue,
			Interest:       inst.InterestDue,
			Tax:            inst.TaxDue,
			Fine:           inst.PenaltyDue,
			Total:          inst.TotalDue(),
			ClosingBalance: inst.ClosingBalance,
			Outstanding:    inst.TotalOutstanding(),
		}
		if !inst.SettledAt.IsZero() {
			settled := inst.SettledAt
			resp.SettledAt = &settled
		}
		out = append(out, resp)
	}
	return out
}

func toQuoteResponse(productID string, terms model.LoanTerms, installments []model.Installment) dto.QuoteResponse {
	resp := dto.QuoteResponse{
		ProductID:      productID,
		Currency:       terms.Currency.Code(),
		Installments:   toInstallmentResponses(installments),
		TotalPrincipal: decimal.Zero,
		TotalInterest:  decimal.Zero,
		TotalTax:       decimal.Zero,
		TotalDue:       decimal.Zero,
	}
	for _, inst := range installments {
		resp.TotalPrincipal = resp.TotalPrincipal.Add(inst.PrincipalDue)
		resp.TotalInterest = resp.TotalInterest.Add(inst.InterestDue)
		resp.TotalTax = resp.TotalTax.Add(inst.TaxDue)
		resp.TotalDue = resp.TotalDue.Add(inst.TotalDue())
	}
	return resp
}

func toFlagsResponse(f model.DelinquencyFlags) dto.DelinquencyFlagsResponse {
	return dto.DelinquencyFlagsResponse{
		NotifyClient:      f.NotifyClient,
		NotifyStaff:       f.NotifyStaff,
		ApplyFine:         f.ApplyFine,
		AffectCreditScore: f.AffectCreditScore,
		ReportToBureau:    f.ReportToBureau,
	}
}

func toLoanResponse(loan model.Loan) dto.LoanResponse {
	return dto.LoanResponse{
		ID:                loan.ID(),
		ProductID:         loan.ProductID(),
		BorrowerAccountID: loan.BorrowerAccountID(),
		Principal:         loan.Terms().Principal,
		AnnualRate:        loan.Terms().AnnualRate,
		Currency:          loan.Terms().Currency.Code(),
		Status:            loan.Status().String(),
		DelinquencyStatus: loan.DelinquencyStatus(),
		DaysPastDue:       loan.DaysPastDue(),
		Flags:             toFlagsResponse(loan.Flags()),
		Outstanding:       loan.Outstanding(),
		CreditBalance:     loan.CreditBalance(),
		Installments:      toInstallmentResponses(loan.Installments()),
		Version:           loan.Version(),
		DisbursedAt:       loan.DisbursedAt(),
		CreatedAt:         loan.CreatedAt(),
		UpdatedAt:         loan.UpdatedAt(),
	}
}

func toAllocationResponses(allocations []model.InstallmentAllocation) []dto.AllocationResponse {
	out := make([]dto.AllocationResponse, 0, len(allocations))
	for _, a := range allocations {
		out = append(out, dto.AllocationResponse{
			Sequence:  a.Sequence,
			DueDate:   a.DueDate,
			Principal: a.Principal,
			Interest:  a.Interest,
			Fine:      a.Fine,
			Tax:       a.Tax,
		})
	}
	return out
}
