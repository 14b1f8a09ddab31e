package customer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"credit-engine/internal/event"
	"credit-engine/internal/infrastructure/monitoring"
	"credit-engine/internal/pkg/apperrors"
)

const customerNotFound = "Customer not found by repository"

// Registration is the onboarding input for a new customer.
type Registration struct {
	FirstName     string
	LastName      string
	Age           int
	MonthlyIncome float64
	PhoneNumber   string
}

type CustomerService interface {
	RegisterCustomer(ctx context.Context, reg Registration) (*Customer, error)
	GetCustomer(ctx context.Context, customerID int64) (*Customer, error)
	ListCustomers(ctx context.Context) ([]*Customer, error)
}

var _ CustomerService = (*customerService)(nil)

type customerService struct {
	repo   CustomerRepository
	pub    event.EventPublisher
	logger *slog.Logger
}

func NewCustomerService(repo CustomerRepository, eventPublisher event.EventPublisher, logger *slog.Logger) CustomerService {
	if repo == nil {
		panic("customer repository cannot be nil")
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("No logger provided to NewCustomerService, using default stderr handler")
	}

	if eventPublisher == nil {
		logger.Warn("No event publisher provided to NewCustomerService, events will be dropped")
		eventPublisher = event.NoopPublisher{}
	}

	return &customerService{
		repo:   repo,
		pub:    eventPublisher,
		logger: logger.With(slog.String("component", "customerService")),
	}
}

func validateRegistration(reg *Registration) error {
	reg.FirstName = strings.TrimSpace(reg.FirstName)
	reg.LastName = strings.TrimSpace(reg.LastName)
	reg.PhoneNumber = strings.TrimSpace(reg.PhoneNumber)

	switch {
	case reg.FirstName == "":
		return apperrors.NewValidationError("first_name", "must not be empty")
	case reg.LastName == "":
		return apperrors.NewValidationError("last_name", "must not be empty")
	case reg.Age <= 0:
		return apperrors.NewValidationError("age", "must be positive")
	case reg.MonthlyIncome <= 0:
		return apperrors.NewValidationError("monthly_income", "must be positive")
	case reg.PhoneNumber == "":
		return apperrors.NewValidationError("phone_number", "must not be empty")
	}
	return nil
}

func (s *customerService) RegisterCustomer(ctx context.Context, reg Registration) (*Customer, error) {
	s.logger.InfoContext(ctx, "Attempting to register new customer")

	if err := validateRegistration(&reg); err != nil {
		s.logger.WarnContext(ctx, "Registration validation failed", slog.Any("error", err))
		return nil, err
	}

	customer := NewCustomer(reg.FirstName, reg.LastName, reg.Age, reg.PhoneNumber, reg.MonthlyIncome)
	log := s.logger.With(slog.Float64("approvedLimit", customer.ApprovedLimit))
	log.DebugContext(ctx, "Customer domain object created")

	if err := s.repo.Save(ctx, customer); err != nil {
		log.ErrorContext(ctx, "Repository failed to save new customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to save new customer: %w", err)
	}
	log = log.With(slog.Int64("customerID", customer.CustomerID))
	monitoring.RecordCustomerRegistered()

	registered := event.CustomerRegisteredEvent{
		CustomerID:    customer.CustomerID,
		FirstName:     customer.FirstName,
		LastName:      customer.LastName,
		PhoneNumber:   customer.PhoneNumber,
		MonthlySalary: customer.MonthlySalary,
		ApprovedLimit: customer.ApprovedLimit,
		Timestamp:     time.Now(),
	}
	if pubErr := s.pub.PublishCustomerRegistered(ctx, registered); pubErr != nil {
		log.ErrorContext(ctx, "Customer registered, but FAILED to publish registration event", slog.Any("error", pubErr))
	}

	log.InfoContext(ctx, "Successfully registered new customer")
	return customer, nil
}

func (s *customerService) GetCustomer(ctx context.Context, customerID int64) (*Customer, error) {
	log := s.logger.With(slog.Int64("customerID", customerID))
	log.InfoContext(ctx, "Attempting to get customer by ID")

	customer, err := s.repo.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.WarnContext(ctx, customerNotFound)
			return nil, apperrors.NewNotFoundError("customer", customerID)
		}
		log.ErrorContext(ctx, "Repository error finding customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to get customer %d: %w", customerID, err)
	}

	log.InfoContext(ctx, "Successfully retrieved customer")
	return customer, nil
}

func (s *customerService) ListCustomers(ctx context.Context) ([]*Customer, error) {
	s.logger.InfoContext(ctx, "Attempting to list customers")

	customers, err := s.repo.FindAll(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Repository error listing customers", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}

	s.logger.InfoContext(ctx, "Successfully retrieved customers", slog.Int("count", len(customers)))
	return customers, nil
}
