package loan

import (
	"context"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/event"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

var _ Repository = (*MockRepository)(nil)

type TxMock struct {
	pgx.Tx
}

var tx pgx.Tx = &TxMock{}

func (m *MockRepository) CreateLoanInTx(ctx context.Context, tx pgx.Tx, loan *Loan) (*Loan, error) {
	args := m.Called(ctx, tx, loan)
	var created *Loan
	if args.Get(0) != nil {
		created = args.Get(0).(*Loan)
	}
	return created, args.Error(1)
}

func (m *MockRepository) GetLoanByID(ctx context.Context, loanID int64) (*Loan, error) {
	args := m.Called(ctx, loanID)
	var l *Loan
	if args.Get(0) != nil {
		l = args.Get(0).(*Loan)
	}
	return l, args.Error(1)
}

func (m *MockRepository) ListByCustomer(ctx context.Context, customerID int64) ([]*Loan, error) {
	args := m.Called(ctx, customerID)
	var loans []*Loan
	if args.Get(0) != nil {
		loans = args.Get(0).([]*Loan)
	}
	return loans, args.Error(1)
}

func (m *MockRepository) ListByCustomerInTx(ctx context.Context, tx pgx.Tx, customerID int64) ([]*Loan, error) {
	args := m.Called(ctx, tx, customerID)
	var loans []*Loan
	if args.Get(0) != nil {
		loans = args.Get(0).([]*Loan)
	}
	return loans, args.Error(1)
}

func (m *MockRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	var t pgx.Tx
	if args.Get(0) != nil {
		t = args.Get(0).(pgx.Tx)
	}
	return t, args.Error(1)
}

func (m *MockRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

type MockCustomerLedger struct {
	mock.Mock
}

var _ CustomerLedger = (*MockCustomerLedger)(nil)

func (m *MockCustomerLedger) FindByID(ctx context.Context, customerID int64) (*customer.Customer, error) {
	args := m.Called(ctx, customerID)
	var c *customer.Customer
	if args.Get(0) != nil {
		c = args.Get(0).(*customer.Customer)
	}
	return c, args.Error(1)
}

func (m *MockCustomerLedger) FindByIDForUpdate(ctx context.Context, tx pgx.Tx, customerID int64) (*customer.Customer, error) {
	args := m.Called(ctx, tx, customerID)
	var c *customer.Customer
	if args.Get(0) != nil {
		c = args.Get(0).(*customer.Customer)
	}
	return c, args.Error(1)
}

func (m *MockCustomerLedger) IncreaseDebtInTx(ctx context.Context, tx pgx.Tx, customerID int64, amount float64) error {
	args := m.Called(ctx, tx, customerID, amount)
	return args.Error(0)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishCustomerRegistered(ctx context.Context, evt event.CustomerRegisteredEvent) error {
	return m.Called(ctx, evt).Error(0)
}

func (m *MockEventPublisher) PublishLoanApproved(ctx context.Context, evt event.LoanApprovedEvent) error {
	return m.Called(ctx, evt).Error(0)
}
