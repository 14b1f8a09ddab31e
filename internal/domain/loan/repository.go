package loan

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

var ErrNotFound = errors.New("loan not found")

type Repository interface {
	CreateLoanInTx(ctx context.Context, tx pgx.Tx, loan *Loan) (*Loan, error)

	GetLoanByID(ctx context.Context, loanID int64) (*Loan, error)

	ListByCustomer(ctx context.Context, customerID int64) ([]*Loan, error)

	ListByCustomerInTx(ctx context.Context, tx pgx.Tx, customerID int64) ([]*Loan, error)

	BeginTx(ctx context.Context) (pgx.Tx, error)

	CommitTx(ctx context.Context, tx pgx.Tx) error

	RollbackTx(ctx context.Context, tx pgx.Tx) error
}
