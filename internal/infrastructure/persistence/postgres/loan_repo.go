package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/bibbank/bib/services/loan-servicing/internal/domain/event"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/model"
	"github.com/bibbank/bib/services/loan-servicing/internal/domain/valueobject"
	"github.com/bibbank/bib/services/loan-servicing/pkg/events"
	"github.com/bibbank/bib/services/loan-servicing/pkg/money"
	pgpkg "github.com/bibbank/bib/services/loan-servicing/pkg/postgres"
)

// LoanRepo implements port.LoanRepository.
type LoanRepo struct {
	pool *pgxpool.Pool
}

// NewLoanRepo creates a new PostgreSQL-backed loan repository.
func NewLoanRepo(pool *pgxpool.Pool) *LoanRepo {
	return &LoanRepo{pool: pool}
}

// uniqueViolation is the PostgreSQL SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

// Save upserts a loan and its installment plan in one transaction. The
// update only applies while the stored version equals loan.Version().
// Pending domain events go to the outbox in the same transaction.
func (r *LoanRepo) Save(ctx context.Context, loan model.Loan) error {
	flags, err := json.Marshal(loan.Flags())
	if err != nil {
		return fmt.Errorf("marshal delinquency flags: %w", err)
	}
	pending := loan.DomainEvents()
	entries, err := events.NewOutboxEntries(pending...)
	if err != nil {
		return err
	}

	return pgpkg.WithTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		terms := loan.Terms()
		loanQuery := `
			INSERT INTO loans (
				id, product_id, borrower_account_id,
				principal, currency, annual_rate, tax_rate_on_interest,
				duration, duration_unit, repayment_cycle, amortization_method, interest_period,
				first_repayment_date, disbursement_date, number_of_installments,
				status, delinquency_status, delinquency_flags, days_past_due, classified_as_of,
				credit_balance, disbursed_at, version, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)
			ON CONFLICT (id) DO UPDATE SET
				status             = EXCLUDED.status,
				delinquency_status = EXCLUDED.delinquency_status,
				delinquency_flags  = EXCLUDED.delinquency_flags,
				days_past_due      = EXCLUDED.days_past_due,
				classified_as_of   = EXCLUDED.classified_as_of,
				credit_balance     = EXCLUDED.credit_balance,
				disbursed_at       = EXCLUDED.disbursed_at,
				version            = loans.version + 1,
				updated_at         = EXCLUDED.updated_at
			WHERE loans.version = $23
		`
		tag, err := tx.Exec(ctx, loanQuery,
			loan.ID(), loan.ProductID(), loan.BorrowerAccountID(),
			terms.Principal, terms.Currency.Code(), terms.AnnualRate, terms.TaxRateOnInterest,
			terms.Duration, terms.DurationUnit.String(), terms.Cycle.String(), terms.Method.String(), terms.InterestPeriod.String(),
			terms.FirstRepaymentDate, nullTime(terms.DisbursementDate), terms.NumberOfInstallments,
			loan.Status().String(), loan.DelinquencyStatus(), flags, loan.DaysPastDue(), nullTime(loan.ClassifiedAsOf()),
			loan.CreditBalance(), nullTime(loan.DisbursedAt()), loan.Version(), loan.CreatedAt(), loan.UpdatedAt(),
		)
		if err != nil {
			return fmt.Errorf("save loan: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("loan %s at version %d: %w", loan.ID(), loan.Version(), model.ErrConcurrentModification)
		}

		for _, inst := range loan.Installments() {
			if err := saveInstallment(ctx, tx, loan.ID(), inst); err != nil {
				return err
			}
		}

		for i, entry := range entries {
			if err := insertOutboxEntry(ctx, tx, entry); err != nil {
				return err
			}
			if repayment, ok := pending[i].(event.RepaymentAllocated); ok {
				if err := insertRepayment(ctx, tx, repayment, entry.Payload); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func insertOutboxEntry(ctx context.Context, q pgpkg.Querier, entry events.OutboxEntry) error {
	query := `
		INSERT INTO outbox (id, aggregate_id, aggregate_type, event_type, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := q.Exec(ctx, query,
		entry.ID, entry.AggregateID, entry.AggregateType, entry.EventType, entry.Payload, entry.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox event %s: %w", entry.EventType, err)
	}
	return nil
}

// insertRepayment records the payment id. A second insert of the same id
// means another writer applied the payment first.
func insertRepayment(ctx context.Context, q pgpkg.Querier, repayment event.RepaymentAllocated, payload []byte) error {
	query := `
		INSERT INTO repayments (payment_id, loan_id, amount, event_id, allocation)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := q.Exec(ctx, query,
		repayment.PaymentID, repayment.AggregateID(), repayment.Amount, repayment.EventID(), payload,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("payment %s already recorded: %w", repayment.PaymentID, model.ErrConcurrentModification)
	}
	if err != nil {
		return fmt.Errorf("insert repayment %s: %w", repayment.PaymentID, err)
	}
	return nil
}

func saveInstallment(ctx context.Context, q pgpkg.Querier, loanID string, inst model.Installment) error {
	query := `
		INSERT INTO installments (
			loan_id, sequence, period_start, due_date,
			opening_balance, principal_due, interest_due, tax_due, penalty_due, closing_balance,
			principal_paid, interest_paid, penalty_paid, tax_paid, settled_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (loan_id, sequence) DO UPDATE SET
			penalty_due    = EXCLUDED.penalty_due,
			principal_paid = EXCLUDED.principal_paid,
			interest_paid  = EXCLUDED.interest_paid,
			penalty_paid   = EXCLUDED.penalty_paid,
			tax_paid       = EXCLUDED.tax_paid,
			settled_at     = EXCLUDED.settled_at
	`
	_, err := q.Exec(ctx, query,
		loanID, inst.Sequence, inst.PeriodStart, inst.DueDate,
		inst.OpeningBalance, inst.PrincipalDue, inst.InterestDue, inst.TaxDue, inst.PenaltyDue, inst.ClosingBalance,
		inst.PrincipalPaid, inst.InterestPaid, inst.PenaltyPaid, inst.TaxPaid, nullTime(inst.SettledAt),
	)
	if err != nil {
		return fmt.Errorf("save installment %d: %w", inst.Sequence, err)
	}
	return nil
}

// FindByID retrieves a loan and its installment plan by ID.
func (r *LoanRepo) FindByID(ctx context.Context, id string) (model.Loan, error) {
	query := `
		SELECT id, product_id, borrower_account_id,
		       principal, currency, annual_rate, tax_rate_on_interest,
		       duration, duration_unit, repayment_cycle, amortization_method, interest_period,
		       first_repayment_date, disbursement_date, number_of_installments,
		       status, delinquency_status, delinquency_flags, days_past_due, classified_as_of,
		       credit_balance, disbursed_at, version, created_at, updated_at
		FROM loans
		WHERE id = $1
	`
	snapshot, err := scanLoanRow(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Loan{}, fmt.Errorf("loan %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return model.Loan{}, err
	}

	snapshot.Installments, err = r.loadInstallments(ctx, id)
	if err != nil {
		return model.Loan{}, err
	}
	return model.ReconstructLoan(snapshot), nil
}

// FindRepayment returns the allocation recorded when paymentID was applied.
func (r *LoanRepo) FindRepayment(ctx context.Context, paymentID string) (event.RepaymentAllocated, error) {
	query := `SELECT allocation FROM repayments WHERE payment_id = $1`

	var payload []byte
	err := r.pool.QueryRow(ctx, query, paymentID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return event.RepaymentAllocated{}, fmt.Errorf("payment %s: %w", paymentID, model.ErrNotFound)
	}
	if err != nil {
		return event.RepaymentAllocated{}, fmt.Errorf("find repayment: %w", err)
	}

	var recorded event.RepaymentAllocated
	if err := json.Unmarshal(payload, &recorded); err != nil {
		return event.RepaymentAllocated{}, fmt.Errorf("parse repayment %s: %w", paymentID, err)
	}
	return recorded, nil
}

// FindServicingIDs lists loans that are disbursed and not yet closed.
func (r *LoanRepo) FindServicingIDs(ctx context.Context) ([]string, error) {
	query := `
		SELECT id FROM loans
		WHERE status IN ('DISBURSED', 'PERFORMING', 'DELINQUENT')
		ORDER BY created_at, id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query servicing loans: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan servicing loans: %w", err)
	}
	return ids, nil
}

// ---------------------------------------------------------------------------
// internal helpers
// ---------------------------------------------------------------------------

func scanLoanRow(row pgx.Row) (model.LoanSnapshot, error) {
	var (
		s                                             model.LoanSnapshot
		currency, unit, cycle, method, period, status string
		disbursementDate, classifiedAsOf, disbursedAt *time.Time
		flags                                         []byte
		principal, annualRate, taxRate                decimal.Decimal
		duration, numberOfInstallments                int
		firstRepaymentDate                            time.Time
	)

	err := row.Scan(
		&s.ID, &s.ProductID, &s.BorrowerAccountID,
		&principal, &currency, &annualRate, &taxRate,
		&duration, &unit, &cycle, &method, &period,
		&firstRepaymentDate, &disbursementDate, &numberOfInstallments,
		&status, &s.DelinquencyStatus, &flags, &s.DaysPastDue, &classifiedAsOf,
		&s.CreditBalance, &disbursedAt, &s.Version, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return model.LoanSnapshot{}, fmt.Errorf("scan loan: %w", err)
	}

	terms := model.LoanTerms{
		Principal:            principal,
		AnnualRate:           annualRate,
		TaxRateOnInterest:    taxRate,
		Duration:             duration,
		FirstRepaymentDate:   firstRepaymentDate.UTC(),
		DisbursementDate:     timeOrZero(disbursementDate),
		NumberOfInstallments: numberOfInstallments,
	}
	if terms.Currency, err = money.NewCurrency(currency); err != nil {
		return model.LoanSnapshot{}, fmt.Errorf("parse currency: %w", err)
	}
	if terms.DurationUnit, err = valueobject.NewDurationUnit(unit); err != nil {
		return model.LoanSnapshot{}, fmt.Errorf("parse duration unit: %w", err)
	}
	if terms.Cycle, err = valueobject.NewRepaymentCycle(cycle); err != nil {
		return model.LoanSnapshot{}, fmt.Errorf("parse repayment cycle: %w", err)
	}
	if terms.Method, err = valueobject.NewAmortizationMethod(method); err != nil {
		return model.LoanSnapshot{}, fmt.Errorf("parse amortization method: %w", err)
	}
	if terms.InterestPeriod, err = valueobject.NewInterestPeriod(period); err != nil {
		return model.LoanSnapshot{}, fmt.Errorf("parse interest period: %w", err)
	}
	if s.Status, err = valueobject.NewLoanStatus(status); err != nil {
		return model.LoanSnapshot{}, fmt.Errorf("parse loan status: %w", err)
	}
	if err := json.Unmarshal(flags, &s.Flags); err != nil {
		return model.LoanSnapshot{}, fmt.Errorf("parse delinquency flags: %w", err)
	}

	s.Terms = terms
	s.ClassifiedAsOf = timeOrZero(classifiedAsOf)
	s.DisbursedAt = timeOrZero(disbursedAt)
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}

func (r *LoanRepo) loadInstallments(ctx context.Context, loanID string) ([]model.Installment, error) {
	query := `
		SELECT sequence, period_start, due_date,
		       opening_balance, principal_due, interest_due, tax_due, penalty_due, closing_balance,
		       principal_paid, interest_paid, penalty_paid, tax_paid, settled_at
		FROM installments
		WHERE loan_id = $1
		ORDER BY sequence
	`
	rows, err := r.pool.Query(ctx, query, loanID)
	if err != nil {
		return nil, fmt.Errorf("query installments: %w", err)
	}
	defer rows.Close()

	var installments []model.Installment
	for rows.Next() {
		var (
			inst      model.Installment
			settledAt *time.Time
		)
		if err := rows.Scan(
			&inst.Sequence, &inst.PeriodStart, &inst.DueDate,
			&inst.OpeningBalance, &inst.PrincipalDue, &inst.InterestDue, &inst.TaxDue, &inst.PenaltyDue, &inst.ClosingBalance,
			&inst.PrincipalPaid, &inst.InterestPaid, &inst.PenaltyPaid, &inst.TaxPaid, &settledAt,
		); err != nil {
			return nil, fmt.Errorf("scan installment: %w", err)
		}
		inst.PeriodStart = inst.PeriodStart.UTC()
		inst.DueDate = inst.DueDate.UTC()
		inst.SettledAt = timeOrZero(settledAt)
		installments = append(installments, inst)
	}
	return installments, rows.Err()
}
