package event

import (
	"context"
	"time"
)

const (
	RoutingKeyCustomerRegistered = "customer.registered"
	RoutingKeyLoanApproved       = "loan.approved"
)

type EventPublisher interface {
	PublishCustomerRegistered(ctx context.Context, event CustomerRegisteredEvent) error
	PublishLoanApproved(ctx context.Context, event LoanApprovedEvent) error
}

type CustomerRegisteredEvent struct {
	CustomerID    int64     `json:"customerId"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	PhoneNumber   string    `json:"phoneNumber"`
	MonthlySalary float64   `json:"monthlySalary"`
	ApprovedLimit float64   `json:"approvedLimit"`
	Timestamp     time.Time `json:"timestamp"`
}

type LoanApprovedEvent struct {
	LoanID             int64     `json:"loanId"`
	CustomerID         int64     `json:"customerId"`
	LoanAmount         float64   `json:"loanAmount"`
	InterestRate       float64   `json:"interestRate"`
	Tenure             int       `json:"tenure"`
	MonthlyInstallment float64   `json:"monthlyInstallment"`
	StartDate          time.Time `json:"startDate"`
	EndDate            time.Time `json:"endDate"`
	Timestamp          time.Time `json:"timestamp"`
}

// NoopPublisher drops every event. It is used when RabbitMQ is disabled.
type NoopPublisher struct{}

var _ EventPublisher = NoopPublisher{}

func (NoopPublisher) PublishCustomerRegistered(context.Context, CustomerRegisteredEvent) error {
	return nil
}

func (NoopPublisher) PublishLoanApproved(context.Context, LoanApprovedEvent) error {
	return nil
}
