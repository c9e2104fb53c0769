package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/bibbank/bib/services/loan-servicing/internal/application/dto"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/event"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/model"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/port"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/service"
)

// ApplyRepaymentUseCase allocates an incoming payment across a loan's open
// claims and commits the result.
type ApplyRepaymentUseCase struct {
	loanRepo    port.LoanRepository
	productRepo port.ProductRepository
	locker      port.LoanLocker
	publisher   port.EventPublisher
	allocator   *service.RepaymentAllocator
	inst        *Instruments
}

// NewApplyRepaymentUseCase wires dependencies.
func NewApplyRepaymentUseCase(
	loanRepo port.LoanRepository,
	productRepo port.ProductRepository,
	locker port.LoanLocker,
	publisher port.EventPublisher,
	allocator *service.RepaymentAllocator,
	inst *Instruments,
) *ApplyRepaymentUseCase {
	return &ApplyRepaymentUseCase{
		loanRepo:    loanRepo,
		productRepo: productRepo,
		locker:      locker,
		publisher:   publisher,
		allocator:   allocator,
		inst:        orNop(inst),
	}
}

// Execute applies the payment while holding the loan's lock.
func (uc *ApplyRepaymentUseCase) Execute(
	ctx context.Context,
	req dto.ApplyRepaymentRequest,
) (resp dto.RepaymentResponse, err error) {
	ctx, span := uc.inst.start(ctx, "ApplyRepayment", attribute.String("loan.id", req.LoanID))
	defer func() { endSpan(span, err) }()

	paymentID := req.PaymentID
	if paymentID == "" {
		paymentID = uuid.New().String()
	}
	at := req.ReceivedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	err = uc.locker.WithLock(ctx, req.LoanID, func(ctx context.Context) error {
		var applyErr error
		resp, applyErr = uc.apply(ctx, req, paymentID, at)
		return applyErr
	})
	if err != nil {
		return dto.RepaymentResponse{}, err
	}
	return resp, nil
}

func (uc *ApplyRepaymentUseCase) apply(
	ctx context.Context,
	req dto.ApplyRepaymentRequest,
	paymentID string,
	at time.Time,
) (dto.RepaymentResponse, error) {
	// 1. Retrieve the loan.
	loan, err := uc.loanRepo.FindByID(ctx, req.LoanID)
	if err != nil {
		return dto.RepaymentResponse{}, fmt.Errorf("find loan: %w", err)
	}

	// 2. A payment id that was already applied returns its original result.
	if req.PaymentID != "" {
		recorded, err := uc.loanRepo.FindRepayment(ctx, paymentID)
		switch {
		case err == nil:
			return replayedRepayment(loan, recorded, req)
		case !errors.Is(err, model.ErrNotFound):
			return dto.RepaymentResponse{}, fmt.Errorf("find repayment: %w", err)
		}
	}

	product, err := uc.productRepo.FindByID(ctx, loan.ProductID())
	if err != nil {
		return dto.RepaymentResponse{}, fmt.Errorf("find product: %w", err)
	}

	// 3. Allocate under the order for the current delinquency status.
	result, err := uc.allocator.Allocate(
		loan.Terms().Currency,
		req.Amount,
		loan.Installments(),
		product.OrderFor(loan.DelinquencyStatus()),
		product.Overpayment(),
	)
	if err != nil {
		return dto.RepaymentResponse{}, fmt.Errorf("allocate payment: %w", err)
	}

	// 4. Record the allocation on the loan.
	updated := uc.allocator.Apply(loan.Installments(), result, at)
	loan, err = loan.RecordRepayment(paymentID, result, updated, at)
	if err != nil {
		return dto.RepaymentResponse{}, fmt.Errorf("record repayment: %w", err)
	}

	// 5. Persist. The repository records the payment id with the outbox
	// entries, in the same transaction.
	if err := uc.loanRepo.Save(ctx, loan); err != nil {
		return dto.RepaymentResponse{}, fmt.Errorf("save loan: %w", err)
	}

	// 6. Publish the committed events.
	uc.inst.publish(ctx, uc.publisher, loan.DomainEvents())
	uc.inst.repaymentsAllocated.Add(ctx, 1)

	return toRepaymentResponse(loan, paymentID, result), nil
}

// replayedRepayment rebuilds the response of an earlier application of the
// same payment id. Reusing an id for another loan or amount is rejected.
func replayedRepayment(loan model.Loan, recorded event.RepaymentAllocated, req dto.ApplyRepaymentRequest) (dto.RepaymentResponse, error) {
	if recorded.AggregateID() != loan.ID() || !recorded.Amount.Equal(req.Amount) {
		return dto.RepaymentResponse{}, model.NewValidationError("payment_id", "already used for a different payment")
	}

	allocations := make([]dto.AllocationResponse, 0, len(recorded.Lines))
	for _, line := range recorded.Lines {
		allocations = append(allocations, dto.AllocationResponse{
			Sequence:  line.Sequence,
			DueDate:   line.DueDate,
			Principal: line.Principal,
			Interest:  line.Interest,
			Fine:      line.Fine,
			Tax:       line.Tax,
		})
	}
	return dto.RepaymentResponse{
		LoanID:        loan.ID(),
		PaymentID:     recorded.PaymentID,
		Amount:        recorded.Amount,
		CreditBalance: recorded.CreditBalance,
		Outstanding:   recorded.Outstanding,
		LoanStatus:    loan.Status().String(),
		Allocations:   allocations,
		Replayed:      true,
	}, nil
}

func toRepaymentResponse(loan model.Loan, paymentID string, result model.PaymentAllocationResult) dto.RepaymentResponse {
	return dto.RepaymentResponse{
		LoanID:        loan.ID(),
		PaymentID:     paymentID,
		Amount:        result.Payment,
		CreditBalance: result.CreditBalance,
		Outstanding:   loan.Outstanding(),
		LoanStatus:    loan.Status().String(),
		Allocations:   toAllocationResponses(result.Allocations),
	}
}
