package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/domain/eligibility"
	"credit-engine/internal/event"
	"credit-engine/internal/infrastructure/monitoring"
	"credit-engine/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
)

const (
	MessageDebtExceedsLimit = "Customer's current debt exceeds approved limit"
	MessageConditionsNotMet = "Loan conditions not satisfied"
	MessageApproved         = "Loan approved and created"

	operationCheckEligibility = "check_eligibility"
	operationCreateLoan       = "create_loan"
)

// Application is a requested loan.
type Application struct {
	CustomerID   int64
	LoanAmount   float64
	InterestRate float64
	Tenure       int
}

func (a Application) Validate() error {
	switch {
	case a.CustomerID <= 0:
		return apperrors.NewValidationError("customer_id", "must be positive")
	case a.LoanAmount <= 0:
		return apperrors.NewValidationError("loan_amount", "must be positive")
	case a.InterestRate < 0:
		return apperrors.NewValidationError("interest_rate", "cannot be negative")
	case a.Tenure <= 0:
		return apperrors.NewValidationError("tenure", "must be positive")
	}
	return nil
}

// Evaluation is the outcome of scoring an application. CorrectedRate and
// MonthlyInstallment are nil when the debt ceiling short-circuited scoring.
type Evaluation struct {
	CustomerID          int64
	Approved            bool
	DebtCeilingExceeded bool
	Affordable          bool
	Score               int
	RequestedRate       float64
	CorrectedRate       *float64
	Tenure              int
	MonthlyInstallment  *float64
}

func (e Evaluation) outcome() string {
	switch {
	case e.Approved:
		return monitoring.OutcomeApproved
	case e.DebtCeilingExceeded:
		return monitoring.OutcomeDebtCeiling
	case !e.Affordable:
		return monitoring.OutcomeUnaffordable
	default:
		return monitoring.OutcomePolicy
	}
}

// Decision is an Evaluation plus what create-loan did with it.
type Decision struct {
	Evaluation
	Loan    *Loan
	Message string
}

func (d Decision) LoanID() *int64 {
	if d.Loan == nil {
		return nil
	}
	id := d.Loan.ID
	return &id
}

type LoanDetails struct {
	Loan     *Loan
	Customer *customer.Customer
}

// CustomerLedger is the part of the customer store a loan decision touches.
type CustomerLedger interface {
	FindByID(ctx context.Context, customerID int64) (*customer.Customer, error)
	FindByIDForUpdate(ctx context.Context, tx pgx.Tx, customerID int64) (*customer.Customer, error)
	IncreaseDebtInTx(ctx context.Context, tx pgx.Tx, customerID int64, amount float64) error
}

type LoanService interface {
	CheckEligibility(ctx context.Context, app Application) (*Evaluation, error)

	CreateLoan(ctx context.Context, app Application) (*Decision, error)

	GetLoan(ctx context.Context, loanID int64) (*LoanDetails, error)

	ListCustomerLoans(ctx context.Context, customerID int64) ([]*Loan, error)
}

type loanServiceImpl struct {
	repo      Repository
	customers CustomerLedger
	pub       event.EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

var _ LoanService = (*loanServiceImpl)(nil)

func NewLoanService(r Repository, customers CustomerLedger, pub event.EventPublisher, logger *slog.Logger) LoanService {
	if pub == nil {
		pub = event.NoopPublisher{}
	}
	return &loanServiceImpl{
		repo:      r,
		customers: customers,
		pub:       pub,
		logger:    logger.With(slog.String("component", "loanService")),
		now:       time.Now,
	}
}

// assess runs the scorer, the amortization and the policy against a customer
// whose debt is within its limit.
func assess(cust *customer.Customer, history []*Loan, app Application, now time.Time) (Evaluation, error) {
	ev := Evaluation{
		CustomerID:    app.CustomerID,
		RequestedRate: app.InterestRate,
		Tenure:        app.Tenure,
	}

	ev.Score = eligibility.Score(eligibility.ScoreInput{
		ApprovedLimit:  cust.ApprovedLimit,
		History:        Records(history),
		ProposedTenure: app.Tenure,
		Now:            now,
	})

	emi, err := MonthlyInstallment(app.LoanAmount, app.InterestRate, app.Tenure)
	if err != nil {
		return ev, err
	}

	d := eligibility.Evaluate(eligibility.PolicyInput{
		Score:                ev.Score,
		RequestedRate:        app.InterestRate,
		ExistingInstallments: TotalInstallments(history),
		MonthlySalary:        cust.MonthlySalary,
		NewInstallment:       emi,
	})

	ev.Approved = d.Approved
	ev.Affordable = d.Affordable
	ev.CorrectedRate = &d.CorrectedRate
	ev.MonthlyInstallment = &emi
	return ev, nil
}

func debtCeilingEvaluation(app Application) Evaluation {
	return Evaluation{
		CustomerID:          app.CustomerID,
		DebtCeilingExceeded: true,
		RequestedRate:       app.InterestRate,
		Tenure:              app.Tenure,
	}
}

func (s *loanServiceImpl) lookupError(ctx context.Context, log *slog.Logger, customerID int64, err error) error {
	if errors.Is(err, customer.ErrNotFound) || errors.Is(err, apperrors.ErrNotFound) {
		log.WarnContext(ctx, "Customer not found")
		return apperrors.NewNotFoundError("customer", customerID)
	}
	log.ErrorContext(ctx, "Failed to load customer", slog.Any("error", err))
	return fmt.Errorf("%w: failed to load customer %d: %v", apperrors.ErrInternalServer, customerID, err)
}

func (s *loanServiceImpl) CheckEligibility(ctx context.Context, app Application) (*Evaluation, error) {
	log := s.logger.With(slog.Int64("customerID", app.CustomerID))
	log.InfoContext(ctx, "Checking loan eligibility")

	if err := app.Validate(); err != nil {
		log.WarnContext(ctx, "Invalid loan application", slog.Any("error", err))
		return nil, err
	}

	cust, err := s.customers.FindByID(ctx, app.CustomerID)
	if err != nil {
		return nil, s.lookupError(ctx, log, app.CustomerID, err)
	}

	if cust.ExceedsLimit() {
		ev := debtCeilingEvaluation(app)
		log.WarnContext(ctx, "Current debt exceeds approved limit",
			slog.Float64("currentDebt", cust.CurrentDebt), slog.Float64("approvedLimit", cust.ApprovedLimit))
		monitoring.RecordLoanDecision(operationCheckEligibility, ev.outcome())
		return &ev, nil
	}

	history, err := s.repo.ListByCustomer(ctx, app.CustomerID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load loan history", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to load loans for customer %d: %v", apperrors.ErrInternalServer, app.CustomerID, err)
	}

	ev, err := assess(cust, history, app, s.now())
	if err != nil {
		log.WarnContext(ctx, "Failed to assess application", slog.Any("error", err))
		return nil, err
	}

	monitoring.RecordCreditScore(operationCheckEligibility, ev.Score)
	monitoring.RecordLoanDecision(operationCheckEligibility, ev.outcome())
	log.InfoContext(ctx, "Eligibility checked",
		slog.Int("score", ev.Score), slog.Bool("approved", ev.Approved), slog.Float64("correctedRate", *ev.CorrectedRate))
	return &ev, nil
}

func (s *loanServiceImpl) CreateLoan(ctx context.Context, app Application) (decision *Decision, err error) {
	log := s.logger.With(slog.Int64("customerID", app.CustomerID))
	log.InfoContext(ctx, "Creating new loan")

	if err := app.Validate(); err != nil {
		log.WarnContext(ctx, "Invalid loan application", slog.Any("error", err))
		return nil, err
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		log.ErrorContext(ctx, "Failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%w: could not begin transaction: %v", apperrors.ErrInternalServer, err)
	}

	committed := false
	defer func() {
		if p := recover(); p != nil {
			log.ErrorContext(ctx, "Panic occurred during loan creation", slog.Any("error", p))
			_ = s.repo.RollbackTx(ctx, tx)
			panic(p)
		}
		if !committed {
			if err != nil {
				log.ErrorContext(ctx, "Rolling back transaction due to error", slog.Any("error", err))
			}
			_ = s.repo.RollbackTx(ctx, tx)
		}
	}()

	cust, err := s.customers.FindByIDForUpdate(ctx, tx, app.CustomerID)
	if err != nil {
		return nil, s.lookupError(ctx, log, app.CustomerID, err)
	}

	if cust.ExceedsLimit() {
		log.WarnContext(ctx, "Current debt exceeds approved limit",
			slog.Float64("currentDebt", cust.CurrentDebt), slog.Float64("approvedLimit", cust.ApprovedLimit))
		d := &Decision{Evaluation: debtCeilingEvaluation(app), Message: MessageDebtExceedsLimit}
		monitoring.RecordLoanDecision(operationCreateLoan, d.outcome())
		return d, nil
	}

	history, err := s.repo.ListByCustomerInTx(ctx, tx, app.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load loans for customer %d: %v", apperrors.ErrInternalServer, app.CustomerID, err)
	}

	now := s.now()
	ev, err := assess(cust, history, app, now)
	if err != nil {
		return nil, err
	}
	monitoring.RecordCreditScore(operationCreateLoan, ev.Score)

	if !ev.Approved {
		log.InfoContext(ctx, "Loan conditions not satisfied",
			slog.Int("score", ev.Score), slog.Bool("affordable", ev.Affordable))
		monitoring.RecordLoanDecision(operationCreateLoan, ev.outcome())
		return &Decision{Evaluation: ev, Message: MessageConditionsNotMet}, nil
	}

	loan, err := NewLoan(app.CustomerID, app.LoanAmount, *ev.CorrectedRate, app.Tenure, *ev.MonthlyInstallment, now)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.CreateLoanInTx(ctx, tx, loan)
	if err != nil {
		return nil, txError("failed to save loan", err)
	}

	if err = s.customers.IncreaseDebtInTx(ctx, tx, app.CustomerID, app.LoanAmount); err != nil {
		return nil, txError("failed to update customer debt", err)
	}

	if err = s.repo.CommitTx(ctx, tx); err != nil {
		return nil, txError("could not commit transaction", err)
	}
	committed = true

	monitoring.RecordLoanDecision(operationCreateLoan, ev.outcome())
	log = log.With(slog.Int64("loanID", created.ID))
	s.publishApproved(ctx, log, created)
	log.InfoContext(ctx, "Loan created successfully", slog.Int("score", ev.Score))

	return &Decision{Evaluation: ev, Loan: created, Message: MessageApproved}, nil
}

// txError passes conflicts through and reports anything else as internal.
func txError(action string, err error) error {
	if errors.Is(err, apperrors.ErrConflict) {
		return fmt.Errorf("%s: %w", action, err)
	}
	return fmt.Errorf("%w: %s: %v", apperrors.ErrInternalServer, action, err)
}

func (s *loanServiceImpl) publishApproved(ctx context.Context, log *slog.Logger, l *Loan) {
	evt := event.LoanApprovedEvent{
		LoanID:             l.ID,
		CustomerID:         l.CustomerID,
		LoanAmount:         l.LoanAmount,
		InterestRate:       l.InterestRate,
		Tenure:             l.Tenure,
		MonthlyInstallment: l.MonthlyRepayment,
		StartDate:          l.StartDate,
		EndDate:            l.EndDate,
		Timestamp:          time.Now(),
	}
	if err := s.pub.PublishLoanApproved(ctx, evt); err != nil {
		log.ErrorContext(ctx, "Loan created, but FAILED to publish approval event", slog.Any("error", err))
	}
}

func (s *loanServiceImpl) GetLoan(ctx context.Context, loanID int64) (*LoanDetails, error) {
	log := s.logger.With(slog.Int64("loanID", loanID))
	log.InfoContext(ctx, "Getting loan details")

	loan, err := s.repo.GetLoanByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows) {
			log.WarnContext(ctx, "Loan not found")
			return nil, apperrors.NewNotFoundError("loan", loanID)
		}
		log.ErrorContext(ctx, "Failed to get loan", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to get loan %d: %v", apperrors.ErrInternalServer, loanID, err)
	}

	cust, err := s.customers.FindByID(ctx, loan.CustomerID)
	if err != nil {
		return nil, s.lookupError(ctx, log, loan.CustomerID, err)
	}

	return &LoanDetails{Loan: loan, Customer: cust}, nil
}

func (s *loanServiceImpl) ListCustomerLoans(ctx context.Context, customerID int64) ([]*Loan, error) {
	log := s.logger.With(slog.Int64("customerID", customerID))
	log.InfoContext(ctx, "Listing customer loans")

	if _, err := s.customers.FindByID(ctx, customerID); err != nil {
		return nil, s.lookupError(ctx, log, customerID, err)
	}

	loans, err := s.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to list loans", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to list loans for customer %d: %v", apperrors.ErrInternalServer, customerID, err)
	}
	if loans == nil {
		loans = []*Loan{}
	}
	return loans, nil
}
