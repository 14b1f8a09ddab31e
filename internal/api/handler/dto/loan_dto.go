package dto

import (
	"credit-engine/internal/domain/loan"
)

// LoanRequest is the body of both /check-eligibility and /create-loan.
type LoanRequest struct {
	CustomerID   int64   `json:"customer_id" example:"1"`
	LoanAmount   float64 `json:"loan_amount" example:"100000"`
	InterestRate float64 `json:"interest_rate" example:"12"`
	Tenure       int     `json:"tenure" example:"12"`
}

func (r *LoanRequest) Validate() error {
	return r.ToApplication().Validate()
}

func (r *LoanRequest) ToApplication() loan.Application {
	return loan.Application{
		CustomerID:   r.CustomerID,
		LoanAmount:   r.LoanAmount,
		InterestRate: r.InterestRate,
		Tenure:       r.Tenure,
	}
}

type EligibilityResponse struct {
	CustomerID            int64    `json:"customer_id"`
	Approval              bool     `json:"approval"`
	InterestRate          float64  `json:"interest_rate"`
	CorrectedInterestRate *float64 `json:"corrected_interest_rate"`
	Tenure                int      `json:"tenure"`
	MonthlyInstallment    *float64 `json:"monthly_installment"`
}

func NewEligibilityResponse(e *loan.Evaluation) EligibilityResponse {
	return EligibilityResponse{
		CustomerID:            e.CustomerID,
		Approval:              e.Approved,
		InterestRate:          e.RequestedRate,
		CorrectedInterestRate: e.CorrectedRate,
		Tenure:                e.Tenure,
		MonthlyInstallment:    e.MonthlyInstallment,
	}
}

type CreateLoanResponse struct {
	LoanID             *int64   `json:"loan_id"`
	CustomerID         int64    `json:"customer_id"`
	LoanApproved       bool     `json:"loan_approved"`
	Message            string   `json:"message"`
	MonthlyInstallment *float64 `json:"monthly_installment"`
}

func NewCreateLoanResponse(d *loan.Decision) CreateLoanResponse {
	return CreateLoanResponse{
		LoanID:             d.LoanID(),
		CustomerID:         d.CustomerID,
		LoanApproved:       d.Approved,
		Message:            d.Message,
		MonthlyInstallment: d.MonthlyInstallment,
	}
}

type LoanCustomer struct {
	CustomerID  int64  `json:"customer_id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
	Age         int    `json:"age"`
}

type LoanDetailResponse struct {
	LoanID             int64        `json:"loan_id"`
	Customer           LoanCustomer `json:"customer"`
	LoanAmount         float64      `json:"loan_amount"`
	InterestRate       float64      `json:"interest_rate"`
	MonthlyInstallment float64      `json:"monthly_installment"`
	Tenure             int          `json:"tenure"`
}

func NewLoanDetailResponse(d *loan.LoanDetails) LoanDetailResponse {
	resp := LoanDetailResponse{
		LoanID:             d.Loan.ID,
		LoanAmount:         d.Loan.LoanAmount,
		InterestRate:       d.Loan.InterestRate,
		MonthlyInstallment: d.Loan.MonthlyRepayment,
		Tenure:             d.Loan.Tenure,
	}
	if c := d.Customer; c != nil {
		resp.Customer = LoanCustomer{
			CustomerID:  c.CustomerID,
			FirstName:   c.FirstName,
			LastName:    c.LastName,
			PhoneNumber: c.PhoneNumber,
			Age:         c.Age,
		}
	}
	return resp
}

type LoanSummaryResponse struct {
	LoanID             int64   `json:"loan_id"`
	LoanAmount         float64 `json:"loan_amount"`
	InterestRate       float64 `json:"interest_rate"`
	MonthlyInstallment float64 `json:"monthly_installment"`
	RepaymentsLeft     int     `json:"repayments_left"`
}

func NewLoanSummaryList(loans []*loan.Loan) []LoanSummaryResponse {
	resp := make([]LoanSummaryResponse, 0, len(loans))
	for _, l := range loans {
		resp = append(resp, LoanSummaryResponse{
			LoanID:             l.ID,
			LoanAmount:         l.LoanAmount,
			InterestRate:       l.InterestRate,
			MonthlyInstallment: l.MonthlyRepayment,
			RepaymentsLeft:     l.RepaymentsLeft(),
		})
	}
	return resp
}
