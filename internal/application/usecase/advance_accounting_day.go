package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/bibbank/bib/services/loan-servicing/internal/application/dto"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/model"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/port"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/service"
)

// AdvanceAccountingDayUseCase reclassifies a loan for a business date:
// days past due, delinquency bucket, fines and the PERFORMING/DELINQUENT
// status all follow from the loan's plan as of that date.
type AdvanceAccountingDayUseCase struct {
	loanRepo    port.LoanRepository
	productRepo port.ProductRepository
	locker      port.LoanLocker
	publisher   port.EventPublisher
	classifier  *service.DelinquencyClassifier
	inst        *Instruments
}

// NewAdvanceAccountingDayUseCase wires dependencies.
func NewAdvanceAccountingDayUseCase(
	loanRepo port.LoanRepository,
	productRepo port.ProductRepository,
	locker port.LoanLocker,
	publisher port.EventPublisher,
	classifier *service.DelinquencyClassifier,
	inst *Instruments,
) *AdvanceAccountingDayUseCase {
	return &AdvanceAccountingDayUseCase{
		loanRepo:    loanRepo,
		productRepo: productRepo,
		locker:      locker,
		publisher:   publisher,
		classifier:  classifier,
		inst:        orNop(inst),
	}
}

// Execute reclassifies one loan while holding its lock.
func (uc *AdvanceAccountingDayUseCase) Execute(
	ctx context.Context,
	req dto.AdvanceAccountingDayRequest,
) (resp dto.ClassificationResponse, err error) {
	ctx, span := uc.inst.start(ctx, "AdvanceAccountingDay", attribute.String("loan.id", req.LoanID))
	defer func() { endSpan(span, err) }()

	if req.BusinessDate.IsZero() {
		return dto.ClassificationResponse{}, model.NewValidationError("business_date", "is required")
	}

	err = uc.locker.WithLock(ctx, req.LoanID, func(ctx context.Context) error {
		var advanceErr error
		resp, advanceErr = uc.advance(ctx, req.LoanID, req.BusinessDate)
		return advanceErr
	})
	if err != nil {
		return dto.ClassificationResponse{}, err
	}
	return resp, nil
}

func (uc *AdvanceAccountingDayUseCase) advance(
	ctx context.Context,
	loanID string,
	asOf time.Time,
) (dto.ClassificationResponse, error) {
	now := time.Now().UTC()

	// 1. Retrieve the loan and its product.
	loan, err := uc.loanRepo.FindByID(ctx, loanID)
	if err != nil {
		return dto.ClassificationResponse{}, fmt.Errorf("find loan: %w", err)
	}
	product, err := uc.productRepo.FindByID(ctx, loan.ProductID())
	if err != nil {
		return dto.ClassificationResponse{}, fmt.Errorf("find product: %w", err)
	}

	// 2. Classify.
	policy := product.Delinquency()
	days := uc.classifier.DaysPastDue(loan.Installments(), asOf)
	bucket, err := uc.classifier.Classify(policy, days)
	if err != nil {
		return dto.ClassificationResponse{}, fmt.Errorf("classify: %w", err)
	}

	// 3. Charge fines when the bucket asks for them.
	var fines []dto.FineResponse
	if bucket.ApplyFine {
		charges := uc.classifier.FinesDue(loan.Installments(), asOf, loan.Terms().Currency, product.Fine())
		for _, c := range charges {
			loan, err = loan.AssessFine(c.Sequence, c.Amount, days, now)
			if err != nil {
				return dto.ClassificationResponse{}, fmt.Errorf("assess fine on installment %d: %w", c.Sequence, err)
			}
			fines = append(fines, dto.FineResponse{Sequence: c.Sequence, Amount: c.Amount})
		}
	}

	// 4. Move the loan into the bucket.
	loan, err = loan.Reclassify(bucket, policy.IsPerforming(bucket.Label), days, asOf, now)
	if err != nil {
		return dto.ClassificationResponse{}, fmt.Errorf("reclassify: %w", err)
	}

	// 5. Persist.
	if err := uc.loanRepo.Save(ctx, loan); err != nil {
		return dto.ClassificationResponse{}, fmt.Errorf("save loan: %w", err)
	}

	// 6. Publish the committed events.
	uc.inst.publish(ctx, uc.publisher, loan.DomainEvents())
	uc.inst.reclassifications.Add(ctx, 1)
	if len(fines) > 0 {
		uc.inst.finesAssessed.Add(ctx, int64(len(fines)))
	}

	return dto.ClassificationResponse{
		LoanID:            loan.ID(),
		BusinessDate:      asOf,
		DaysPastDue:       days,
		DelinquencyStatus: loan.DelinquencyStatus(),
		LoanStatus:        loan.Status().String(),
		Flags:             toFlagsResponse(loan.Flags()),
		Fines:             fines,
	}, nil
}

// CloseAccountingDayUseCase reclassifies every servicing loan for a
// business date. A failing loan is logged and reported; it does not stop
// the batch.
type CloseAccountingDayUseCase struct {
	loanRepo port.LoanRepository
	advance  *AdvanceAccountingDayUseCase
	logger   *slog.Logger
}

// NewCloseAccountingDayUseCase wires dependencies.
func NewCloseAccountingDayUseCase(
	loanRepo port.LoanRepository,
	advance *AdvanceAccountingDayUseCase,
	logger *slog.Logger,
) *CloseAccountingDayUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloseAccountingDayUseCase{loanRepo: loanRepo, advance: advance, logger: logger}
}

// Execute runs AdvanceAccountingDay for each servicing loan in turn.
func (uc *CloseAccountingDayUseCase) Execute(
	ctx context.Context,
	req dto.CloseAccountingDayRequest,
) (dto.CloseAccountingDayResponse, error) {
	ids, err := uc.loanRepo.FindServicingIDs(ctx)
	if err != nil {
		return dto.CloseAccountingDayResponse{}, fmt.Errorf("list servicing loans: %w", err)
	}

	resp := dto.CloseAccountingDayResponse{BusinessDate: req.BusinessDate}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return resp, err
		}
		_, err := uc.advance.Execute(ctx, dto.AdvanceAccountingDayRequest{LoanID: id, BusinessDate: req.BusinessDate})
		if err != nil {
			uc.logger.ErrorContext(ctx, "reclassification failed",
				"loan_id", id,
				"business_date", req.BusinessDate.Format(time.DateOnly),
				"error", err,
			)
			resp.FailedLoans = append(resp.FailedLoans, id)
			continue
		}
		resp.Processed++
	}

	uc.logger.InfoContext(ctx, "accounting day closed",
		"business_date", req.BusinessDate.Format(time.DateOnly),
		"processed", resp.Processed,
		"failed", len(resp.FailedLoans),
	)
	return resp, nil
}
