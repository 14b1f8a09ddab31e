package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/domain/loan"
	"credit-engine/internal/infrastructure/monitoring"
	"credit-engine/internal/infrastructure/spreadsheet"
)

const (
	entityCustomer = "customer"
	entityLoan     = "loan"

	statusImported = "imported"
	statusInvalid  = "invalid"
	statusFailed   = "failed"
	statusSkipped  = "skipped"
)

// Source yields the parsed rows of the customer and loan workbooks.
type Source interface {
	Customers(ctx context.Context) ([]spreadsheet.CustomerRow, []spreadsheet.RowError, error)
	Loans(ctx context.Context) ([]spreadsheet.LoanRow, []spreadsheet.RowError, error)
}

type CustomerStore interface {
	UpsertCustomer(ctx context.Context, cust *customer.Customer) error
	FindByID(ctx context.Context, customerID int64) (*customer.Customer, error)
	SyncIDSequence(ctx context.Context) error
}

type LoanStore interface {
	UpsertLoan(ctx context.Context, l *loan.Loan) error
	SyncIDSequence(ctx context.Context) error
}

// WorkbookSource reads rows from xlsx files on disk.
type WorkbookSource struct {
	CustomerFile string
	LoanFile     string
}

func (s WorkbookSource) Customers(_ context.Context) ([]spreadsheet.CustomerRow, []spreadsheet.RowError, error) {
	return spreadsheet.ReadCustomersFile(s.CustomerFile)
}

func (s WorkbookSource) Loans(_ context.Context) ([]spreadsheet.LoanRow, []spreadsheet.RowError, error) {
	return spreadsheet.ReadLoansFile(s.LoanFile)
}

type ImportSummary struct {
	CustomersImported int
	CustomersInvalid  int
	CustomersFailed   int
	LoansImported     int
	LoansInvalid      int
	LoansSkipped      int
	LoansFailed       int
}

func (s ImportSummary) failures() int {
	return s.CustomersFailed + s.LoansFailed
}

// ImportJob loads customers and then their loans, upserting both by id.
type ImportJob struct {
	source    Source
	customers CustomerStore
	loans     LoanStore
	timeout   time.Duration
	logger    *slog.Logger
}

func NewImportJob(source Source, customers CustomerStore, loans LoanStore, timeout time.Duration, logger *slog.Logger) *ImportJob {
	if source == nil || customers == nil || loans == nil || logger == nil {
		panic("ImportJob dependencies cannot be nil")
	}
	return &ImportJob{
		source:    source,
		customers: customers,
		loans:     loans,
		timeout:   timeout,
		logger:    logger.With("job", "Import"),
	}
}

func (j *ImportJob) Run(ctx context.Context) error {
	_, err := j.Import(ctx)
	return err
}

func (j *ImportJob) Import(ctx context.Context) (ImportSummary, error) {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	startTime := time.Now()
	j.logger.InfoContext(ctx, "Starting bulk import job.")

	var summary ImportSummary

	known, err := j.importCustomers(ctx, &summary)
	if err != nil {
		return summary, err
	}
	if err := j.importLoans(ctx, known, &summary); err != nil {
		return summary, err
	}

	if err := j.customers.SyncIDSequence(ctx); err != nil {
		j.logger.ErrorContext(ctx, "Failed to advance customer id sequence", slog.Any("error", err))
		return summary, fmt.Errorf("sync customer ids: %w", err)
	}
	if err := j.loans.SyncIDSequence(ctx); err != nil {
		j.logger.ErrorContext(ctx, "Failed to advance loan id sequence", slog.Any("error", err))
		return summary, fmt.Errorf("sync loan ids: %w", err)
	}

	summaryLog := j.logger.With(
		slog.Duration("duration", time.Since(startTime)),
		slog.Int("customers_imported", summary.CustomersImported),
		slog.Int("customers_invalid", summary.CustomersInvalid),
		slog.Int("customers_failed", summary.CustomersFailed),
		slog.Int("loans_imported", summary.LoansImported),
		slog.Int("loans_invalid", summary.LoansInvalid),
		slog.Int("loans_skipped", summary.LoansSkipped),
		slog.Int("loans_failed", summary.LoansFailed),
	)
	if n := summary.failures(); n > 0 {
		summaryLog.WarnContext(ctx, "Bulk import job finished with errors.")
		return summary, fmt.Errorf("import completed with %d errors", n)
	}
	summaryLog.InfoContext(ctx, "Bulk import job finished successfully.")
	return summary, nil
}

func (j *ImportJob) importCustomers(ctx context.Context, summary *ImportSummary) (map[int64]struct{}, error) {
	rows, rowErrs, err := j.source.Customers(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "Failed to read customer rows, aborting job.", slog.Any("error", err))
		return nil, fmt.Errorf("cannot run import, failed to read customers: %w", err)
	}
	j.logRowErrors(ctx, entityCustomer, rowErrs)
	summary.CustomersInvalid = len(rowErrs)

	known := make(map[int64]struct{}, len(rows))
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("customer import interrupted: %w", err)
		}
		cust := customerFromRow(row)
		if err := j.customers.UpsertCustomer(ctx, cust); err != nil {
			j.logger.ErrorContext(ctx, "Failed to upsert customer", slog.Int64("customer_id", row.CustomerID), slog.Any("error", err))
			summary.CustomersFailed++
			continue
		}
		known[row.CustomerID] = struct{}{}
		summary.CustomersImported++
	}

	monitoring.RecordImportRows(entityCustomer, statusImported, summary.CustomersImported)
	monitoring.RecordImportRows(entityCustomer, statusInvalid, summary.CustomersInvalid)
	monitoring.RecordImportRows(entityCustomer, statusFailed, summary.CustomersFailed)
	return known, nil
}

func (j *ImportJob) importLoans(ctx context.Context, known map[int64]struct{}, summary *ImportSummary) error {
	rows, rowErrs, err := j.source.Loans(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "Failed to read loan rows, aborting job.", slog.Any("error", err))
		return fmt.Errorf("cannot run import, failed to read loans: %w", err)
	}
	j.logRowErrors(ctx, entityLoan, rowErrs)
	summary.LoansInvalid = len(rowErrs)

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("loan import interrupted: %w", err)
		}
		logCtx := j.logger.With(slog.Int64("loan_id", row.LoanID), slog.Int64("customer_id", row.CustomerID))

		exists, err := j.customerExists(ctx, known, row.CustomerID)
		if err != nil {
			logCtx.ErrorContext(ctx, "Failed to look up loan owner", slog.Any("error", err))
			summary.LoansFailed++
			continue
		}
		if !exists {
			logCtx.WarnContext(ctx, "Skipping loan for unknown customer")
			summary.LoansSkipped++
			continue
		}

		if err := j.loans.UpsertLoan(ctx, loanFromRow(row)); err != nil {
			logCtx.ErrorContext(ctx, "Failed to upsert loan", slog.Any("error", err))
			summary.LoansFailed++
			continue
		}
		summary.LoansImported++
	}

	monitoring.RecordImportRows(entityLoan, statusImported, summary.LoansImported)
	monitoring.RecordImportRows(entityLoan, statusInvalid, summary.LoansInvalid)
	monitoring.RecordImportRows(entityLoan, statusSkipped, summary.LoansSkipped)
	monitoring.RecordImportRows(entityLoan, statusFailed, summary.LoansFailed)
	return nil
}

// customerExists checks the ids imported in this run before asking the store.
func (j *ImportJob) customerExists(ctx context.Context, known map[int64]struct{}, customerID int64) (bool, error) {
	if _, ok := known[customerID]; ok {
		return true, nil
	}
	_, err := j.customers.FindByID(ctx, customerID)
	switch {
	case err == nil:
		known[customerID] = struct{}{}
		return true, nil
	case errors.Is(err, customer.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (j *ImportJob) logRowErrors(ctx context.Context, entity string, rowErrs []spreadsheet.RowError) {
	for _, re := range rowErrs {
		j.logger.WarnContext(ctx, "Skipping unreadable row", slog.String("entity", entity), slog.Int("row", re.Row), slog.Any("error", re.Err))
	}
}

func customerFromRow(row spreadsheet.CustomerRow) *customer.Customer {
	return &customer.Customer{
		CustomerID:    row.CustomerID,
		FirstName:     strings.TrimSpace(row.FirstName),
		LastName:      strings.TrimSpace(row.LastName),
		Age:           row.Age,
		PhoneNumber:   row.PhoneNumber,
		MonthlySalary: row.MonthlySalary,
		ApprovedLimit: row.ApprovedLimit,
	}
}

func loanFromRow(row spreadsheet.LoanRow) *loan.Loan {
	return &loan.Loan{
		ID:               row.LoanID,
		CustomerID:       row.CustomerID,
		LoanAmount:       row.LoanAmount,
		Tenure:           row.Tenure,
		InterestRate:     row.InterestRate,
		MonthlyRepayment: row.MonthlyPayment,
		EMIsPaidOnTime:   row.EMIsPaidOnTime,
		StartDate:        row.ApprovalDate,
		EndDate:          row.EndDate,
	}
}
