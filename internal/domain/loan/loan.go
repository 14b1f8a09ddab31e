package loan

import (
	"fmt"
	"math"
	"time"

	"credit-engine/internal/domain/eligibility"
	"credit-engine/internal/pkg/apperrors"
	"credit-engine/internal/pkg/money"
)

const (
	monthsPerYear = 12

	// below this rate·tenure product the installment is computed via expm1
	smallRateProduct = 1e-6
)

type Loan struct {
	ID               int64
	CustomerID       int64
	LoanAmount       float64
	Tenure           int
	InterestRate     float64
	MonthlyRepayment float64
	EMIsPaidOnTime   int
	StartDate        time.Time
	EndDate          time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// MonthlyInstallment returns the fixed EMI for principal at annualRate percent
// over tenure months, rounded half-even to cents. A zero rate spreads the
// principal evenly.
func MonthlyInstallment(principal, annualRate float64, tenure int) (float64, error) {
	if principal <= 0 {
		return 0, fmt.Errorf("%w: principal must be positive", apperrors.ErrInvalidArgument)
	}
	if annualRate < 0 {
		return 0, fmt.Errorf("%w: interest rate cannot be negative", apperrors.ErrInvalidArgument)
	}
	if tenure <= 0 {
		return 0, fmt.Errorf("%w: tenure must be positive", apperrors.ErrInvalidArgument)
	}

	r := annualRate / (monthsPerYear * 100)
	if r == 0 {
		return money.RoundCents(principal / float64(tenure)), nil
	}
	n := float64(tenure)

	var emi float64
	if n*r < smallRateProduct {
		// (1+r)^n - 1 cancels badly here, expm1/log1p stay accurate
		gm1 := math.Expm1(n * math.Log1p(r))
		if gm1 == 0 {
			return money.RoundCents(principal / n), nil
		}
		emi = principal * r * (1 + gm1) / gm1
	} else {
		growth := math.Pow(1+r, n)
		switch {
		case growth == 1:
			return money.RoundCents(principal / n), nil
		case math.IsInf(growth, 1):
			// limit of the annuity formula as tenure grows without bound
			return money.RoundCents(principal * r), nil
		}
		emi = principal * r * growth / (growth - 1)
	}
	if math.IsInf(emi, 0) || math.IsNaN(emi) {
		return 0, fmt.Errorf("%w: installment is not representable", apperrors.ErrInvalidArgument)
	}
	return money.RoundCents(emi), nil
}

// EndDate advances start by tenure calendar months. When the target month is
// shorter than start's day, the day is clamped to the month's last day.
func EndDate(start time.Time, tenure int) time.Time {
	year, month, day := start.Date()
	offset := int(month) - 1 + tenure
	targetYear := year + offset/monthsPerYear
	targetMonth := time.Month(offset%monthsPerYear + 1)
	if last := daysIn(targetYear, targetMonth); day > last {
		day = last
	}
	return time.Date(targetYear, targetMonth, day, 0, 0, 0, 0, start.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// NewLoan builds an approved loan starting on startDate's calendar day.
func NewLoan(customerID int64, amount, interestRate float64, tenure int, monthlyRepayment float64, startDate time.Time) (*Loan, error) {
	if customerID <= 0 {
		return nil, fmt.Errorf("%w: customer ID must be positive", apperrors.ErrInvalidArgument)
	}
	if tenure <= 0 {
		return nil, fmt.Errorf("%w: tenure must be positive", apperrors.ErrInvalidArgument)
	}
	if startDate.IsZero() {
		startDate = time.Now()
	}
	y, m, d := startDate.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, startDate.Location())

	return &Loan{
		CustomerID:       customerID,
		LoanAmount:       amount,
		Tenure:           tenure,
		InterestRate:     interestRate,
		MonthlyRepayment: monthlyRepayment,
		EMIsPaidOnTime:   0,
		StartDate:        start,
		EndDate:          EndDate(start, tenure),
	}, nil
}

// RepaymentsLeft is the tenure minus the EMIs already paid on time.
func (l *Loan) RepaymentsLeft() int {
	return l.Tenure - l.EMIsPaidOnTime
}

func (l *Loan) Record() eligibility.LoanRecord {
	return eligibility.LoanRecord{
		Tenure:         l.Tenure,
		EMIsPaidOnTime: l.EMIsPaidOnTime,
		LoanAmount:     l.LoanAmount,
		StartDate:      l.StartDate,
	}
}

func Records(loans []*Loan) []eligibility.LoanRecord {
	records := make([]eligibility.LoanRecord, 0, len(loans))
	for _, l := range loans {
		records = append(records, l.Record())
	}
	return records
}

// TotalInstallments sums the monthly repayments of loans.
func TotalInstallments(loans []*Loan) float64 {
	total := 0.0
	for _, l := range loans {
		total += l.MonthlyRepayment
	}
	return total
}
