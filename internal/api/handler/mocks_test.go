package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/domain/loan"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type MockCustomerService struct {
	mock.Mock
}

var _ customer.CustomerService = (*MockCustomerService)(nil)

func (m *MockCustomerService) RegisterCustomer(ctx context.Context, reg customer.Registration) (*customer.Customer, error) {
	args := m.Called(ctx, reg)
	c, _ := args.Get(0).(*customer.Customer)
	return c, args.Error(1)
}

func (m *MockCustomerService) GetCustomer(ctx context.Context, customerID int64) (*customer.Customer, error) {
	args := m.Called(ctx, customerID)
	c, _ := args.Get(0).(*customer.Customer)
	return c, args.Error(1)
}

func (m *MockCustomerService) ListCustomers(ctx context.Context) ([]*customer.Customer, error) {
	args := m.Called(ctx)
	cs, _ := args.Get(0).([]*customer.Customer)
	return cs, args.Error(1)
}

type MockLoanService struct {
	mock.Mock
}

var _ loan.LoanService = (*MockLoanService)(nil)

func (m *MockLoanService) CheckEligibility(ctx context.Context, app loan.Application) (*loan.Evaluation, error) {
	args := m.Called(ctx, app)
	e, _ := args.Get(0).(*loan.Evaluation)
	return e, args.Error(1)
}

func (m *MockLoanService) CreateLoan(ctx context.Context, app loan.Application) (*loan.Decision, error) {
	args := m.Called(ctx, app)
	d, _ := args.Get(0).(*loan.Decision)
	return d, args.Error(1)
}

func (m *MockLoanService) GetLoan(ctx context.Context, loanID int64) (*loan.LoanDetails, error) {
	args := m.Called(ctx, loanID)
	d, _ := args.Get(0).(*loan.LoanDetails)
	return d, args.Error(1)
}

func (m *MockLoanService) ListCustomerLoans(ctx context.Context, customerID int64) ([]*loan.Loan, error) {
	args := m.Called(ctx, customerID)
	ls, _ := args.Get(0).([]*loan.Loan)
	return ls, args.Error(1)
}

func newRequest(method, target, body string, params map[string]string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}
	return req
}
