package customer

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

var ErrNotFound = errors.New("customer not found")

type CustomerRepository interface {
	Save(ctx context.Context, customer *Customer) error

	FindByID(ctx context.Context, customerID int64) (*Customer, error)

	// FindByIDForUpdate locks the customer row until tx ends.
	FindByIDForUpdate(ctx context.Context, tx pgx.Tx, customerID int64) (*Customer, error)

	IncreaseDebtInTx(ctx context.Context, tx pgx.Tx, customerID int64, amount float64) error

	FindAll(ctx context.Context) ([]*Customer, error)
}
