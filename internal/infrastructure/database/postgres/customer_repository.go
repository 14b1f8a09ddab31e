package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
)

const customerColumns = `id, first_name, last_name, COALESCE(age, 0), phone_number, monthly_salary, approved_limit, current_debt, created_at, updated_at`

type CustomerRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ customer.CustomerRepository = (*CustomerRepository)(nil)

func NewCustomerRepository(db DBPool, logger *slog.Logger) *CustomerRepository {
	if db == nil {
		panic("DBPool cannot be nil for CustomerRepository")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewCustomerRepository, using default stderr handler")
	}
	return &CustomerRepository{
		db:     db,
		logger: logger.With("component", "CustomerRepository"),
	}
}

func (r *CustomerRepository) Save(ctx context.Context, cust *customer.Customer) error {
	if cust == nil {
		return fmt.Errorf("%w: customer cannot be nil", apperrors.ErrInvalidArgument)
	}

	if cust.CustomerID == 0 {
		return r.createCustomer(ctx, cust)
	}
	return r.updateCustomer(ctx, cust)
}

func (r *CustomerRepository) createCustomer(ctx context.Context, cust *customer.Customer) (err error) {
	start := time.Now()
	defer func() { observe("CreateCustomer", start, err) }()

	r.logger.InfoContext(ctx, "Attempting to insert new customer", slog.String("phone_number", cust.PhoneNumber))

	query := `
        INSERT INTO customers (first_name, last_name, age, phone_number, monthly_salary, approved_limit, current_debt, created_at, updated_at)
        VALUES ($1, $2, NULLIF($3, 0), $4, $5, $6, $7, NOW(), NOW())
        RETURNING id, created_at, updated_at`

	err = r.db.QueryRow(ctx, query,
		cust.FirstName,
		cust.LastName,
		cust.Age,
		cust.PhoneNumber,
		cust.MonthlySalary,
		cust.ApprovedLimit,
		cust.CurrentDebt,
	).Scan(
		&cust.CustomerID,
		&cust.CreateDate,
		&cust.UpdatedAt,
	)
	if err != nil {
		translatedErr := translateDBError(err, r.logger)
		r.logger.ErrorContext(ctx, "Failed to insert customer", slog.Any("error", translatedErr))
		return fmt.Errorf("failed to insert customer: %w", translatedErr)
	}

	r.logger.InfoContext(ctx, "Successfully inserted new customer", slog.Int64("customer_id", cust.CustomerID))
	return nil
}

func (r *CustomerRepository) updateCustomer(ctx context.Context, cust *customer.Customer) (err error) {
	start := time.Now()
	defer func() { observe("UpdateCustomer", start, err) }()

	logger := r.logger.With(slog.Int64("customer_id", cust.CustomerID))
	logger.InfoContext(ctx, "Attempting to update customer")

	query := `
        UPDATE customers
        SET first_name = $1, last_name = $2, age = NULLIF($3, 0), phone_number = $4, monthly_salary = $5, approved_limit = $6, current_debt = $7, updated_at = NOW()
        WHERE id = $8
        RETURNING updated_at`

	err = r.db.QueryRow(ctx, query,
		cust.FirstName,
		cust.LastName,
		cust.Age,
		cust.PhoneNumber,
		cust.MonthlySalary,
		cust.ApprovedLimit,
		cust.CurrentDebt,
		cust.CustomerID,
	).Scan(&cust.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			logger.WarnContext(ctx, "Customer not found for update")
			return customer.ErrNotFound
		}
		translatedErr := translateDBError(err, logger)
		logger.ErrorContext(ctx, "Failed to update customer", slog.Any("error", translatedErr))
		return fmt.Errorf("failed to update customer: %w", translatedErr)
	}

	logger.InfoContext(ctx, "Successfully updated customer")
	return nil
}

func scanCustomer(row pgx.Row) (*customer.Customer, error) {
	var c customer.Customer
	err := row.Scan(
		&c.CustomerID,
		&c.FirstName,
		&c.LastName,
		&c.Age,
		&c.PhoneNumber,
		&c.MonthlySalary,
		&c.ApprovedLimit,
		&c.CurrentDebt,
		&c.CreateDate,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CustomerRepository) FindByID(ctx context.Context, customerID int64) (cust *customer.Customer, err error) {
	start := time.Now()
	defer func() { observe("FindCustomerByID", start, err) }()

	return r.findByID(ctx, r.db, customerID, `SELECT `+customerColumns+` FROM customers WHERE id = $1`)
}

func (r *CustomerRepository) FindByIDForUpdate(ctx context.Context, tx pgx.Tx, customerID int64) (cust *customer.Customer, err error) {
	start := time.Now()
	defer func() { observe("FindCustomerByIDForUpdate", start, err) }()

	if tx == nil {
		return nil, fmt.Errorf("%w: transaction cannot be nil", apperrors.ErrInvalidArgument)
	}
	return r.findByID(ctx, tx, customerID, `SELECT `+customerColumns+` FROM customers WHERE id = $1 FOR UPDATE`)
}

func (r *CustomerRepository) findByID(ctx context.Context, q querier, customerID int64, query string) (*customer.Customer, error) {
	logger := r.logger.With(slog.Int64("customer_id", customerID))

	cust, err := scanCustomer(q.QueryRow(ctx, query, customerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			logger.WarnContext(ctx, "Customer not found")
			return nil, customer.ErrNotFound
		}
		translatedErr := translateDBError(err, logger)
		logger.ErrorContext(ctx, "Failed to find customer", slog.Any("error", translatedErr))
		return nil, fmt.Errorf("failed to find customer %d: %w", customerID, translatedErr)
	}
	return cust, nil
}

func (r *CustomerRepository) IncreaseDebtInTx(ctx context.Context, tx pgx.Tx, customerID int64, amount float64) (err error) {
	start := time.Now()
	defer func() { observe("IncreaseCustomerDebt", start, err) }()

	if tx == nil {
		return fmt.Errorf("%w: transaction cannot be nil", apperrors.ErrInvalidArgument)
	}
	logger := r.logger.With(slog.Int64("customer_id", customerID))

	query := `UPDATE customers SET current_debt = current_debt + $1, updated_at = NOW() WHERE id = $2`

	tag, err := tx.Exec(ctx, query, amount, customerID)
	if err != nil {
		translatedErr := translateDBError(err, logger)
		logger.ErrorContext(ctx, "Failed to increase customer debt", slog.Any("error", translatedErr))
		return fmt.Errorf("failed to increase debt for customer %d: %w", customerID, translatedErr)
	}
	if tag.RowsAffected() == 0 {
		logger.WarnContext(ctx, "Customer not found while increasing debt")
		return customer.ErrNotFound
	}

	logger.InfoContext(ctx, "Customer debt increased", slog.Float64("amount", amount))
	return nil
}

func (r *CustomerRepository) FindAll(ctx context.Context) (customers []*customer.Customer, err error) {
	start := time.Now()
	defer func() { observe("FindAllCustomers", start, err) }()

	query := `SELECT ` + customerColumns + ` FROM customers ORDER BY id ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		translatedErr := translateDBError(err, r.logger)
		r.logger.ErrorContext(ctx, "Failed to query customers", slog.Any("error", translatedErr))
		return nil, fmt.Errorf("failed to list customers: %w", translatedErr)
	}
	defer rows.Close()

	customers = make([]*customer.Customer, 0)
	for rows.Next() {
		c, scanErr := scanCustomer(rows)
		if scanErr != nil {
			r.logger.ErrorContext(ctx, "Failed to scan customer row", slog.Any("error", scanErr))
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, scanErr)
		}
		customers = append(customers, c)
	}
	if err = rows.Err(); err != nil {
		translatedErr := translateDBError(err, r.logger)
		return nil, fmt.Errorf("failed to iterate customers: %w", translatedErr)
	}

	return customers, nil
}

const upsertCustomerQuery = `
        INSERT INTO customers (id, first_name, last_name, age, phone_number, monthly_salary, approved_limit, current_debt, created_at, updated_at)
        VALUES ($1, $2, $3, NULLIF($4, 0), $5, $6, $7, 0, NOW(), NOW())
        ON CONFLICT (id) DO UPDATE
        SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name, age = EXCLUDED.age, phone_number = EXCLUDED.phone_number,
            monthly_salary = EXCLUDED.monthly_salary, approved_limit = EXCLUDED.approved_limit, updated_at = NOW()
        RETURNING current_debt`

// UpsertCustomer writes cust under its own id. New rows start with no
// outstanding debt; existing rows keep the debt their loans accrued.
func (r *CustomerRepository) UpsertCustomer(ctx context.Context, cust *customer.Customer) (err error) {
	start := time.Now()
	defer func() { observe("UpsertCustomer", start, err) }()

	if cust == nil || cust.CustomerID <= 0 {
		return fmt.Errorf("%w: customer with a positive id is required", apperrors.ErrInvalidArgument)
	}

	var currentDebt float64
	err = r.db.QueryRow(ctx, upsertCustomerQuery,
		cust.CustomerID,
		cust.FirstName,
		cust.LastName,
		cust.Age,
		cust.PhoneNumber,
		cust.MonthlySalary,
		cust.ApprovedLimit,
	).Scan(&currentDebt)
	if err != nil {
		translatedErr := translateDBError(err, r.logger)
		return fmt.Errorf("failed to upsert customer %d: %w", cust.CustomerID, translatedErr)
	}
	cust.CurrentDebt = currentDebt
	return nil
}

func (r *CustomerRepository) SyncIDSequence(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { observe("SyncCustomerSequence", start, err) }()

	if err = syncSequence(ctx, r.db, "customers"); err != nil {
		return fmt.Errorf("failed to sync customer id sequence: %w", translateDBError(err, r.logger))
	}
	return nil
}
