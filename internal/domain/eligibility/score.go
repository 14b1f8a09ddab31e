package eligibility

import (
	"math"
	"time"

	"credit-engine/internal/pkg/money"
)

const (
	onTimeWeight     = 40.0
	loanCountBase    = 20.0
	loanCountPenalty = 2.0
	recencyPerLoan   = 5.0
	recencyCap       = 15.0
	volumeWeight     = 25.0
	MaxScore         = 100
	MinScore         = 0
)

// LoanRecord is the slice of a historical loan the scorer looks at.
type LoanRecord struct {
	Tenure         int
	EMIsPaidOnTime int
	LoanAmount     float64
	StartDate      time.Time
}

// ScoreInput carries everything the score depends on.
type ScoreInput struct {
	ApprovedLimit  float64
	History        []LoanRecord
	ProposedTenure int
	Now            time.Time
}

// Breakdown exposes each capped component next to the rounded total.
type Breakdown struct {
	OnTime    float64
	LoanCount float64
	Recency   float64
	Volume    float64
	Score     int
}

// Score returns the 0-100 credit score for in.
func Score(in ScoreInput) int {
	return Explain(in).Score
}

// Explain computes the score and keeps the individual components.
//
// The on-time ratio divides by the loan count times the proposed tenure, not
// by each historical loan's own tenure.
func Explain(in ScoreInput) Breakdown {
	totalLoans := len(in.History)

	var paidOnTime int
	var volume float64
	var thisYear int
	for _, l := range in.History {
		paidOnTime += l.EMIsPaidOnTime
		volume += l.LoanAmount
		if l.StartDate.Year() == in.Now.Year() {
			thisYear++
		}
	}

	var b Breakdown

	onTimeRatio := 0.0
	if totalLoans > 0 && in.ProposedTenure > 0 {
		onTimeRatio = float64(paidOnTime) / float64(totalLoans*in.ProposedTenure)
	}
	b.OnTime = math.Min(onTimeWeight, onTimeRatio*onTimeWeight)
	b.LoanCount = math.Max(0, loanCountBase-float64(totalLoans)*loanCountPenalty)
	b.Recency = math.Min(recencyCap, float64(thisYear)*recencyPerLoan)
	if in.ApprovedLimit > 0 {
		b.Volume = math.Min(volumeWeight, (volume/in.ApprovedLimit)*volumeWeight)
	}

	total := 0.0
	total += b.OnTime
	total += b.LoanCount
	total += b.Recency
	total += b.Volume
	b.Score = clamp(money.RoundToInt(total))
	return b
}

func clamp(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
