package usecase

import (
	"context"
	"fmt"

	"github.com/bibbank/bib/services/loan-servicing/internal/application/dto"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/port"
)

// GetLoanUseCase retrieves a loan by ID.
type GetLoanUseCase struct {
	loanRepo port.LoanRepository
}

// NewGetLoanUseCase wires dependencies.
func NewGetLoanUseCase(loanRepo port.LoanRepository) *GetLoanUseCase {
	return &GetLoanUseCase{loanRepo: loanRepo}
}

// Execute returns a loan response for the given ID.
func (uc *GetLoanUseCase) Execute(
	ctx context.Context,
	req dto.GetLoanRequest,
) (dto.LoanResponse, error) {
	loan, err := uc.loanRepo.FindByID(ctx, req.LoanID)
	if err != nil {
		return dto.LoanResponse{}, fmt.Errorf("find loan: %w", err)
	}
	return toLoanResponse(loan), nil
}
