package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"credit-engine/internal/domain/loan"
	"credit-engine/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var loanRowColumns = []string{
	"id", "customer_id", "loan_amount", "tenure", "interest_rate", "monthly_repayment",
	"emis_paid_on_time", "start_date", "end_date", "created_at", "updated_at",
}

var (
	loanStart = time.Date(2026, time.October, 16, 0, 0, 0, 0, time.UTC)
	loanEnd   = time.Date(2027, time.October, 16, 0, 0, 0, 0, time.UTC)
)

func newLoanFixture() *loan.Loan {
	return &loan.Loan{
		ID:               10,
		CustomerID:       1,
		LoanAmount:       100_000,
		Tenure:           12,
		InterestRate:     12,
		MonthlyRepayment: 8884.88,
		EMIsPaidOnTime:   0,
		StartDate:        loanStart,
		EndDate:          loanEnd,
	}
}

func loanRows(loans ...*loan.Loan) *pgxmock.Rows {
	rows := pgxmock.NewRows(loanRowColumns)
	for _, l := range loans {
		rows.AddRow(l.ID, l.CustomerID, l.LoanAmount, l.Tenure, l.InterestRate, l.MonthlyRepayment,
			l.EMIsPaidOnTime, l.StartDate, l.EndDate, createdAt, createdAt)
	}
	return rows
}

func setupLoanRepo(t *testing.T) (context.Context, *LoanRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to open a stub database connection: %v", err)
	}
	return context.Background(), NewLoanRepository(mockPool, logger), mockPool
}

func TestLoanRepositoryTransactions(t *testing.T) {
	t.Run("begin and commit", func(t *testing.T) {
		ctx, repo, mockPool := setupLoanRepo(t)
		defer mockPool.Close()

		mockPool.ExpectBegin()
		mockPool.ExpectCommit()

		tx, err := repo.BeginTx(ctx)
		require.NoError(t, err)
		assert.NoError(t, repo.CommitTx(ctx, tx))
		assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
	})

	t.Run("begin failure", func(t *testing.T) {
		ctx, repo, mockPool := setupLoanRepo(t)
		defer mockPool.Close()

		mockPool.ExpectBegin().WillReturnError(errors.New("too many connections"))

		tx, err := repo.BeginTx(ctx)
		assert.Nil(t, tx)
		assert.ErrorIs(t, err, apperrors.ErrDatabase)
	})

	t.Run("commit failure", func(t *testing.T) {
		ctx, repo, mockPool := setupLoanRepo(t)
		defer mockPool.Close()

		mockPool.ExpectBegin()
		mockPool.ExpectCommit().WillReturnError(errors.New("serialization failure"))

		tx, err := repo.BeginTx(ctx)
		require.NoError(t, err)
		assert.ErrorIs(t, repo.CommitTx(ctx, tx), apperrors.ErrDatabase)
	})

	t.Run("commit serialization conflict", func(t *testing.T) {
		ctx, repo, mockPool := setupLoanRepo(t)
		defer mockPool.Close()

		mockPool.ExpectBegin()
		mockPool.ExpectCommit().WillReturnError(&pgconn.PgError{Code: "40001", Message: "could not serialize access"})

		tx, err := repo.BeginTx(ctx)
		require.NoError(t, err)
		assert.ErrorIs(t, repo.CommitTx(ctx, tx), apperrors.ErrConflict)
	})

	t.Run("rollback after commit is ignored", func(t *testing.T) {
		ctx, repo, mockPool := setupLoanRepo(t)
		defer mockPool.Close()

		mockPool.ExpectBegin()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		tx, err := repo.BeginTx(ctx)
		require.NoError(t, err)
		assert.NoError(t, repo.RollbackTx(ctx, tx))
	})

	t.Run("rollback failure", func(t *testing.T) {
		ctx, repo, mockPool := setupLoanRepo(t)
		defer mockPool.Close()

		mockPool.ExpectBegin()
		mockPool.ExpectRollback().WillReturnError(errors.New("broken pipe"))

		tx, err := repo.BeginTx(ctx)
		require.NoError(t, err)
		assert.ErrorIs(t, repo.RollbackTx(ctx, tx), apperrors.ErrDatabase)
	})
}

func TestCreateLoanInTxWhenSuccess(t *testing.T) {
	ctx, repo, mockPool := setupLoanRepo(t)
	defer mockPool.Close()

	l := newLoanFixture()
	l.ID = 0
	stored := newLoanFixture()
	stored.ID = 77

	mockPool.ExpectBegin()
	mockPool.ExpectQuery(regexp.QuoteMeta("INSERT INTO loans (customer_id, loan_amount")).
		WithArgs(l.CustomerID, l.LoanAmount, l.Tenure, l.InterestRate, l.MonthlyRepayment, l.EMIsPaidOnTime, l.StartDate, l.EndDate).
		WillReturnRows(loanRows(stored))

	tx, err := mockPool.Begin(ctx)
	require.NoError(t, err)

	created, err := repo.CreateLoanInTx(ctx, tx, l)

	require.NoError(t, err)
	assert.Equal(t, int64(77), created.ID)
	assert.Equal(t, 8884.88, created.MonthlyRepayment)
	assert.Equal(t, loanEnd, created.EndDate)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestCreateLoanInTxWhenForeignKeyViolation(t *testing.T) {
	ctx, repo, mockPool := setupLoanRepo(t)
	defer mockPool.Close()

	l := newLoanFixture()
	mockPool.ExpectBegin()
	mockPool.ExpectQuery(regexp.QuoteMeta("INSERT INTO loans")).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "loans_customer_id_fkey"})

	tx, err := mockPool.Begin(ctx)
	require.NoError(t, err)

	created, err := repo.CreateLoanInTx(ctx, tx, l)

	assert.Nil(t, created)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestCreateLoanInTxRejectsMissingArguments(t *testing.T) {
	ctx, repo, mockPool := setupLoanRepo(t)
	defer mockPool.Close()

	_, err := repo.CreateLoanInTx(ctx, nil, newLoanFixture())
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	mockPool.ExpectBegin()
	tx, err := mockPool.Begin(ctx)
	require.NoError(t, err)
	_, err = repo.CreateLoanInTx(ctx, tx, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestGetLoanByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		ctx, repo, mockPool := setupLoanRepo(t)
		defer mockPool.Close()

		want := newLoanFixture()
		mockPool.ExpectQuery(regexp.QuoteMeta("FROM loans WHERE id = $1")).
			WithArgs(int64(10)).
			WillReturnRows(loanRows(want))

		got, err := repo.GetLoanByID(ctx, 10)

		require.NoError(t, err)
		assert.Equal(t, want.CustomerID, got.CustomerID)
		assert.Equal(t, want.Tenure, got.Tenure)
		assert.Equal(t, loanStart, got.StartDate)
		assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
	})

	t.Run("not found", func(t *testing.T) {
		ctx, repo, mockPool := setupLoanRepo(t)
		defer mockPool.Close()

		mockPool.ExpectQuery(regexp.QuoteMeta("FROM loans WHERE id = $1")).
			WithArgs(int64(404)).
			WillReturnError(pgx.ErrNoRows)

		got, err := repo.GetLoanByID(ctx, 404)

		assert.Nil(t, got)
		assert.ErrorIs(t, err, loan.ErrNotFound)
	})

	t.Run("database error", func(t *testing.T) {
		ctx, repo, mockPool := setupLoanRepo(t)
		defer mockPool.Close()

		mockPool.ExpectQuery(regexp.QuoteMeta("FROM loans WHERE id = $1")).
			WithArgs(int64(10)).
			WillReturnError(&pgconn.PgError{Code: "57014", Message: "canceling statement due to statement timeout"})

		_, err := repo.GetLoanByID(ctx, 10)

		assert.ErrorIs(t, err, apperrors.ErrDatabase)
	})
}

func TestListByCustomer(t *testing.T) {
	ctx, repo, mockPool := setupLoanRepo(t)
	defer mockPool.Close()

	first := newLoanFixture()
	second := newLoanFixture()
	second.ID = 11
	second.EMIsPaidOnTime = 5

	mockPool.ExpectQuery(regexp.QuoteMeta("FROM loans WHERE customer_id = $1 ORDER BY id ASC")).
		WithArgs(int64(1)).
		WillReturnRows(loanRows(first, second))

	got, err := repo.ListByCustomer(ctx, 1)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(11), got[1].ID)
	assert.Equal(t, 5, got[1].EMIsPaidOnTime)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestListByCustomerWhenNoLoans(t *testing.T) {
	ctx, repo, mockPool := setupLoanRepo(t)
	defer mockPool.Close()

	mockPool.ExpectQuery(regexp.QuoteMeta("FROM loans WHERE customer_id = $1")).
		WithArgs(int64(2)).
		WillReturnRows(loanRows())

	got, err := repo.ListByCustomer(ctx, 2)

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestListByCustomerWhenQueryFails(t *testing.T) {
	ctx, repo, mockPool := setupLoanRepo(t)
	defer mockPool.Close()

	mockPool.ExpectQuery(regexp.QuoteMeta("FROM loans WHERE customer_id = $1")).
		WithArgs(int64(2)).
		WillReturnError(errors.New("connection refused"))

	_, err := repo.ListByCustomer(ctx, 2)

	assert.ErrorIs(t, err, apperrors.ErrDatabase)
}

func TestListByCustomerInTx(t *testing.T) {
	ctx, repo, mockPool := setupLoanRepo(t)
	defer mockPool.Close()

	mockPool.ExpectBegin()
	mockPool.ExpectQuery(regexp.QuoteMeta("FROM loans WHERE customer_id = $1")).
		WithArgs(int64(1)).
		WillReturnRows(loanRows(newLoanFixture()))

	tx, err := mockPool.Begin(ctx)
	require.NoError(t, err)

	got, err := repo.ListByCustomerInTx(ctx, tx, 1)

	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)

	_, err = repo.ListByCustomerInTx(ctx, nil, 1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestUpsertLoan(t *testing.T) {
	ctx, repo, mockPool := setupLoanRepo(t)
	defer mockPool.Close()

	l := newLoanFixture()
	mockPool.ExpectExec(regexp.QuoteMeta("ON CONFLICT (id) DO UPDATE")).
		WithArgs(l.ID, l.CustomerID, l.LoanAmount, l.Tenure, l.InterestRate, l.MonthlyRepayment, l.EMIsPaidOnTime, l.StartDate, l.EndDate).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.UpsertLoan(ctx, l))
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)

	assert.ErrorIs(t, repo.UpsertLoan(ctx, &loan.Loan{}), apperrors.ErrInvalidArgument)
}

func TestSyncLoanIDSequence(t *testing.T) {
	ctx, repo, mockPool := setupLoanRepo(t)
	defer mockPool.Close()

	mockPool.ExpectQuery(regexp.QuoteMeta("SELECT setval(pg_get_serial_sequence('loans', 'id')")).
		WillReturnError(errors.New("permission denied"))

	assert.ErrorIs(t, repo.SyncIDSequence(ctx), apperrors.ErrDatabase)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}
