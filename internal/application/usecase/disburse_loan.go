package usecase

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/bibbank/bib/services/loan-servicing/internal/application/dto"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/model"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/port"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/service"
)

// DisburseLoanUseCase commits a new loan, generates its schedule, and
// publishes the disbursement event to the ledger.
type DisburseLoanUseCase struct {
	loanRepo    port.LoanRepository
	productRepo port.ProductRepository
	publisher   port.EventPublisher
	generator   *service.ScheduleGenerator
	inst        *Instruments
}

// NewDisburseLoanUseCase wires dependencies.
func NewDisburseLoanUseCase(
	loanRepo port.LoanRepository,
	productRepo port.ProductRepository,
	publisher port.EventPublisher,
	generator *service.ScheduleGenerator,
	inst *Instruments,
) *DisburseLoanUseCase {
	return &DisburseLoanUseCase{
		loanRepo:    loanRepo,
		productRepo: productRepo,
		publisher:   publisher,
		generator:   generator,
		inst:        orNop(inst),
	}
}

// Execute creates and disburses a loan.
func (uc *DisburseLoanUseCase) Execute(
	ctx context.Context,
	req dto.DisburseLoanRequest,
) (resp dto.LoanResponse, err error) {
	ctx, span := uc.inst.start(ctx, "DisburseLoan",
		attribute.String("product.id", req.ProductID),
		attribute.String("borrower.account_id", req.BorrowerAccountID),
	)
	defer func() { endSpan(span, err) }()

	now := time.Now().UTC()

	// 1. Look up the product.
	product, err := uc.productRepo.FindByID(ctx, req.ProductID)
	if err != nil {
		return dto.LoanResponse{}, fmt.Errorf("find product: %w", err)
	}

	// 2. Complete the terms.
	terms, err := termsFromRequest(req.Terms, product)
	if err != nil {
		return dto.LoanResponse{}, fmt.Errorf("parse terms: %w", err)
	}

	// 3. Create the loan.
	loan, err := model.NewLoan(product.ID(), req.BorrowerAccountID, terms, now)
	if err != nil {
		return dto.LoanResponse{}, fmt.Errorf("create loan: %w", err)
	}

	// 4. Generate the schedule.
	schedule, err := uc.generator.WithMaxInstallments(product.MaxInstallments()).Generate(terms)
	if err != nil {
		return dto.LoanResponse{}, fmt.Errorf("generate schedule: %w", err)
	}
	uc.inst.schedulesGenerated.Add(ctx, 1)

	// 5. Disburse.
	loan, err = loan.Disburse(schedule, product.Delinquency().Performing().Label, now)
	if err != nil {
		return dto.LoanResponse{}, fmt.Errorf("disburse loan: %w", err)
	}

	// 6. Persist.
	if err := uc.loanRepo.Save(ctx, loan); err != nil {
		return dto.LoanResponse{}, fmt.Errorf("save loan: %w", err)
	}

	// 7. Publish the committed events.
	uc.inst.publish(ctx, uc.publisher, loan.DomainEvents())
	uc.inst.loansDisbursed.Add(ctx, 1)

	return toLoanResponse(loan), nil
}
