package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"credit-engine/internal/domain/loan"
	"credit-engine/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
)

const loanColumns = `id, customer_id, loan_amount, tenure, interest_rate, monthly_repayment, emis_paid_on_time, start_date, end_date, created_at, updated_at`

type LoanRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ loan.Repository = (*LoanRepository)(nil)

func NewLoanRepository(db DBPool, logger *slog.Logger) *LoanRepository {
	if db == nil {
		panic("DBPool cannot be nil for LoanRepository")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewLoanRepository, using default stderr handler")
	}
	return &LoanRepository{
		db:     db,
		logger: logger.With("component", "LoanRepository"),
	}
}

func (r *LoanRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	r.logger.DebugContext(ctx, "Beginning transaction")
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to begin transaction: %w", apperrors.ErrDatabase, err)
	}
	return tx, nil
}

func (r *LoanRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	r.logger.DebugContext(ctx, "Committing transaction")
	if err := tx.Commit(ctx); err != nil {
		r.logger.ErrorContext(ctx, "Failed to commit transaction", slog.Any("error", err))
		return fmt.Errorf("failed to commit transaction: %w", translateDBError(err, r.logger))
	}
	return nil
}

func (r *LoanRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	r.logger.DebugContext(ctx, "Rolling back transaction")
	err := tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		r.logger.ErrorContext(ctx, "Failed to rollback transaction", slog.Any("error", err))
		return fmt.Errorf("%w: failed to rollback transaction: %w", apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *LoanRepository) CreateLoanInTx(ctx context.Context, tx pgx.Tx, l *loan.Loan) (created *loan.Loan, err error) {
	start := time.Now()
	defer func() { observe("CreateLoan", start, err) }()

	if tx == nil {
		return nil, fmt.Errorf("%w: transaction cannot be nil", apperrors.ErrInvalidArgument)
	}
	if l == nil {
		return nil, fmt.Errorf("%w: loan cannot be nil", apperrors.ErrInvalidArgument)
	}
	logger := r.logger.With(slog.Int64("customer_id", l.CustomerID))

	query := `
        INSERT INTO loans (customer_id, loan_amount, tenure, interest_rate, monthly_repayment, emis_paid_on_time, start_date, end_date, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
        RETURNING ` + loanColumns

	created, err = scanLoan(tx.QueryRow(ctx, query,
		l.CustomerID,
		l.LoanAmount,
		l.Tenure,
		l.InterestRate,
		l.MonthlyRepayment,
		l.EMIsPaidOnTime,
		l.StartDate,
		l.EndDate,
	))
	if err != nil {
		translatedErr := translateDBError(err, logger)
		logger.ErrorContext(ctx, "Failed to insert loan", slog.Any("error", translatedErr))
		return nil, fmt.Errorf("failed to insert loan: %w", translatedErr)
	}

	logger.InfoContext(ctx, "Loan inserted", slog.Int64("loan_id", created.ID))
	return created, nil
}

func scanLoan(row pgx.Row) (*loan.Loan, error) {
	var l loan.Loan
	err := row.Scan(
		&l.ID, &l.CustomerID, &l.LoanAmount, &l.Tenure,
		&l.InterestRate, &l.MonthlyRepayment, &l.EMIsPaidOnTime,
		&l.StartDate, &l.EndDate, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *LoanRepository) GetLoanByID(ctx context.Context, loanID int64) (l *loan.Loan, err error) {
	start := time.Now()
	defer func() { observe("GetLoanByID", start, err) }()

	logger := r.logger.With(slog.Int64("loan_id", loanID))
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`

	l, err = scanLoan(r.db.QueryRow(ctx, query, loanID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			logger.WarnContext(ctx, "Loan not found")
			return nil, loan.ErrNotFound
		}
		translatedErr := translateDBError(err, logger)
		logger.ErrorContext(ctx, "Failed to get loan", slog.Any("error", translatedErr))
		return nil, fmt.Errorf("failed to get loan %d: %w", loanID, translatedErr)
	}
	return l, nil
}

func (r *LoanRepository) ListByCustomer(ctx context.Context, customerID int64) (loans []*loan.Loan, err error) {
	start := time.Now()
	defer func() { observe("ListLoansByCustomer", start, err) }()

	return r.listByCustomer(ctx, r.db, customerID)
}

func (r *LoanRepository) ListByCustomerInTx(ctx context.Context, tx pgx.Tx, customerID int64) (loans []*loan.Loan, err error) {
	start := time.Now()
	defer func() { observe("ListLoansByCustomerInTx", start, err) }()

	if tx == nil {
		return nil, fmt.Errorf("%w: transaction cannot be nil", apperrors.ErrInvalidArgument)
	}
	return r.listByCustomer(ctx, tx, customerID)
}

func (r *LoanRepository) listByCustomer(ctx context.Context, q querier, customerID int64) ([]*loan.Loan, error) {
	logger := r.logger.With(slog.Int64("customer_id", customerID))
	query := `SELECT ` + loanColumns + ` FROM loans WHERE customer_id = $1 ORDER BY id ASC`

	rows, err := q.Query(ctx, query, customerID)
	if err != nil {
		translatedErr := translateDBError(err, logger)
		logger.ErrorContext(ctx, "Failed to query loans", slog.Any("error", translatedErr))
		return nil, fmt.Errorf("failed to list loans for customer %d: %w", customerID, translatedErr)
	}
	defer rows.Close()

	loans := make([]*loan.Loan, 0)
	for rows.Next() {
		l, scanErr := scanLoan(rows)
		if scanErr != nil {
			logger.ErrorContext(ctx, "Failed to scan loan row", slog.Any("error", scanErr))
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, scanErr)
		}
		loans = append(loans, l)
	}
	if err := rows.Err(); err != nil {
		translatedErr := translateDBError(err, logger)
		return nil, fmt.Errorf("failed to iterate loans for customer %d: %w", customerID, translatedErr)
	}

	return loans, nil
}

// UpsertLoan writes l under its own id, replacing every stored field.
func (r *LoanRepository) UpsertLoan(ctx context.Context, l *loan.Loan) (err error) {
	start := time.Now()
	defer func() { observe("UpsertLoan", start, err) }()

	if l == nil || l.ID <= 0 {
		return fmt.Errorf("%w: loan with a positive id is required", apperrors.ErrInvalidArgument)
	}

	query := `
        INSERT INTO loans (id, customer_id, loan_amount, tenure, interest_rate, monthly_repayment, emis_paid_on_time, start_date, end_date, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
        ON CONFLICT (id) DO UPDATE
        SET customer_id = EXCLUDED.customer_id, loan_amount = EXCLUDED.loan_amount, tenure = EXCLUDED.tenure, interest_rate = EXCLUDED.interest_rate,
            monthly_repayment = EXCLUDED.monthly_repayment, emis_paid_on_time = EXCLUDED.emis_paid_on_time,
            start_date = EXCLUDED.start_date, end_date = EXCLUDED.end_date, updated_at = NOW()`

	_, err = r.db.Exec(ctx, query,
		l.ID,
		l.CustomerID,
		l.LoanAmount,
		l.Tenure,
		l.InterestRate,
		l.MonthlyRepayment,
		l.EMIsPaidOnTime,
		l.StartDate,
		l.EndDate,
	)
	if err != nil {
		translatedErr := translateDBError(err, r.logger)
		return fmt.Errorf("failed to upsert loan %d: %w", l.ID, translatedErr)
	}
	return nil
}

func (r *LoanRepository) SyncIDSequence(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { observe("SyncLoanSequence", start, err) }()

	if err = syncSequence(ctx, r.db, "loans"); err != nil {
		return fmt.Errorf("failed to sync loan id sequence: %w", translateDBError(err, r.logger))
	}
	return nil
}
