package usecase

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/bibbank/bib/services/loan-servicing/internal/application/dto"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/port"
)

// WriteOffLoanUseCase removes a loan from servicing on explicit request.
type WriteOffLoanUseCase struct {
	loanRepo  port.LoanRepository
	locker    port.LoanLocker
	publisher port.EventPublisher
	inst      *Instruments
}

// NewWriteOffLoanUseCase wires dependencies.
func NewWriteOffLoanUseCase(
	loanRepo port.LoanRepository,
	locker port.LoanLocker,
	publisher port.EventPublisher,
	inst *Instruments,
) *WriteOffLoanUseCase {
	return &WriteOffLoanUseCase{
		loanRepo:  loanRepo,
		locker:    locker,
		publisher: publisher,
		inst:      orNop(inst),
	}
}

// Execute writes the loan off while holding its lock.
func (uc *WriteOffLoanUseCase) Execute(
	ctx context.Context,
	req dto.WriteOffLoanRequest,
) (resp dto.WriteOffResponse, err error) {
	ctx, span := uc.inst.start(ctx, "WriteOffLoan", attribute.String("loan.id", req.LoanID))
	defer func() { endSpan(span, err) }()

	err = uc.locker.WithLock(ctx, req.LoanID, func(ctx context.Context) error {
		// 1. Retrieve the loan.
		loan, err := uc.loanRepo.FindByID(ctx, req.LoanID)
		if err != nil {
			return fmt.Errorf("find loan: %w", err)
		}

		// 2. Write off.
		loan, err = loan.WriteOff(req.Reason, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("write off: %w", err)
		}

		// 3. Persist.
		if err := uc.loanRepo.Save(ctx, loan); err != nil {
			return fmt.Errorf("save loan: %w", err)
		}

		// 4. Publish the committed events.
		uc.inst.publish(ctx, uc.publisher, loan.DomainEvents())
		uc.inst.loansWrittenOff.Add(ctx, 1)

		resp = dto.WriteOffResponse{
			LoanID:      loan.ID(),
			Outstanding: loan.Outstanding(),
			LoanStatus:  loan.Status().String(),
		}
		return nil
	})
	if err != nil {
		return dto.WriteOffResponse{}, err
	}
	return resp, nil
}
