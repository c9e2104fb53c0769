package usecase

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/bibbank/bib/services/loan-servicing/internal/application/dto"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/port"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/service"
)

// SimulateLoanUseCase quotes a repayment schedule for prospective terms. It
// writes nothing and is safe for concurrent use.
type SimulateLoanUseCase struct {
	productRepo port.ProductRepository
	generator   *service.ScheduleGenerator
	inst        *Instruments
}

// NewSimulateLoanUseCase wires dependencies.
func NewSimulateLoanUseCase(
	productRepo port.ProductRepository,
	generator *service.ScheduleGenerator,
	inst *Instruments,
) *SimulateLoanUseCase {
	return &SimulateLoanUseCase{
		productRepo: productRepo,
		generator:   generator,
		inst:        orNop(inst),
	}
}

// Execute generates the schedule the terms would produce under the product.
func (uc *SimulateLoanUseCase) Execute(
	ctx context.Context,
	req dto.QuoteRequest,
) (resp dto.QuoteResponse, err error) {
	ctx, span := uc.inst.start(ctx, "SimulateLoan", attribute.String("product.id", req.ProductID))
	defer func() { endSpan(span, err) }()

	// 1. Look up the product.
	product, err := uc.productRepo.FindByID(ctx, req.ProductID)
	if err != nil {
		return dto.QuoteResponse{}, fmt.Errorf("find product: %w", err)
	}

	// 2. Complete the terms.
	terms, err := termsFromRequest(req.Terms, product)
	if err != nil {
		return dto.QuoteResponse{}, fmt.Errorf("parse terms: %w", err)
	}

	// 3. Generate the schedule.
	schedule, err := uc.generator.WithMaxInstallments(product.MaxInstallments()).Generate(terms)
	if err != nil {
		return dto.QuoteResponse{}, fmt.Errorf("generate schedule: %w", err)
	}
	uc.inst.schedulesGenerated.Add(ctx, 1)

	return toQuoteResponse(product.ID(), terms, schedule), nil
}
