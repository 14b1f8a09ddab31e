package dto

import (
	"strings"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/pkg/apperrors"
)

type RegisterCustomerRequest struct {
	FirstName     string  `json:"first_name" example:"Ada"`
	LastName      string  `json:"last_name" example:"Lovelace"`
	Age           int     `json:"age" example:"36"`
	MonthlyIncome float64 `json:"monthly_income" example:"50000"`
	PhoneNumber   string  `json:"phone_number" example:"9876543210"`
}

func (r *RegisterCustomerRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.FirstName) == "":
		return apperrors.NewValidationError("first_name", "cannot be empty")
	case strings.TrimSpace(r.LastName) == "":
		return apperrors.NewValidationError("last_name", "cannot be empty")
	case r.Age <= 0:
		return apperrors.NewValidationError("age", "must be positive")
	case r.MonthlyIncome <= 0:
		return apperrors.NewValidationError("monthly_income", "must be positive")
	case strings.TrimSpace(r.PhoneNumber) == "":
		return apperrors.NewValidationError("phone_number", "cannot be empty")
	}
	return nil
}

func (r *RegisterCustomerRequest) ToRegistration() customer.Registration {
	return customer.Registration{
		FirstName:     r.FirstName,
		LastName:      r.LastName,
		Age:           r.Age,
		MonthlyIncome: r.MonthlyIncome,
		PhoneNumber:   r.PhoneNumber,
	}
}

type CustomerResponse struct {
	CustomerID    int64   `json:"customer_id"`
	Name          string  `json:"name"`
	FirstName     string  `json:"first_name"`
	LastName      string  `json:"last_name"`
	Age           int     `json:"age"`
	PhoneNumber   string  `json:"phone_number"`
	MonthlyIncome float64 `json:"monthly_income"`
	ApprovedLimit float64 `json:"approved_limit"`
	CurrentDebt   float64 `json:"current_debt"`
}

func NewCustomerResponse(c *customer.Customer) CustomerResponse {
	return CustomerResponse{
		CustomerID:    c.CustomerID,
		Name:          strings.TrimSpace(c.FirstName + " " + c.LastName),
		FirstName:     c.FirstName,
		LastName:      c.LastName,
		Age:           c.Age,
		PhoneNumber:   c.PhoneNumber,
		MonthlyIncome: c.MonthlySalary,
		ApprovedLimit: c.ApprovedLimit,
		CurrentDebt:   c.CurrentDebt,
	}
}

func NewCustomerListResponse(customers []*customer.Customer) []CustomerResponse {
	resp := make([]CustomerResponse, 0, len(customers))
	for _, c := range customers {
		resp = append(resp, NewCustomerResponse(c))
	}
	return resp
}
