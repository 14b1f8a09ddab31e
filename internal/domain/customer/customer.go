package customer

import (
	"time"

	"credit-engine/internal/pkg/money"
)

const (
	// ApprovedLimitMultiplier is how many months of salary make up the credit line.
	ApprovedLimitMultiplier = 36
	// approvedLimitPlaces rounds the limit to the nearest 100,000.
	approvedLimitPlaces = -5
)

type Customer struct {
	CustomerID    int64     `json:"customerId"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	Age           int       `json:"age"`
	PhoneNumber   string    `json:"phoneNumber"`
	MonthlySalary float64   `json:"monthlySalary"`
	ApprovedLimit float64   `json:"approvedLimit"`
	CurrentDebt   float64   `json:"currentDebt"`
	CreateDate    time.Time `json:"createDate"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ApprovedLimitFor derives the credit line from a monthly income.
func ApprovedLimitFor(monthlyIncome float64) float64 {
	return money.RoundHalfEven(ApprovedLimitMultiplier*monthlyIncome, approvedLimitPlaces)
}

func NewCustomer(firstName, lastName string, age int, phoneNumber string, monthlyIncome float64) *Customer {
	now := time.Now()
	return &Customer{
		FirstName:     firstName,
		LastName:      lastName,
		Age:           age,
		PhoneNumber:   phoneNumber,
		MonthlySalary: monthlyIncome,
		ApprovedLimit: ApprovedLimitFor(monthlyIncome),
		CurrentDebt:   0,
		CreateDate:    now,
		UpdatedAt:     now,
	}
}

// ExceedsLimit reports whether the outstanding debt is already above the
// approved credit line.
func (c *Customer) ExceedsLimit() bool {
	return c.CurrentDebt > c.ApprovedLimit
}
