package eligibility

const (
	// MidBandMinRate is the minimum annual rate for scores in (30, 50].
	MidBandMinRate = 12.0
	// LowBandMinRate is the minimum annual rate for scores in (10, 30].
	LowBandMinRate = 16.0
	// MaxInstallmentShare caps total monthly installments as a share of salary.
	MaxInstallmentShare = 0.5
)

type PolicyInput struct {
	Score                int
	RequestedRate        float64
	ExistingInstallments float64
	MonthlySalary        float64
	NewInstallment       float64
}

type Decision struct {
	Approved      bool
	CorrectedRate float64
	// Affordable is false when the installment cap overrode the score bands.
	Affordable bool
}

// Evaluate applies the score bands and then the affordability cap. The
// corrected rate from the bands is reported even when the cap rejects.
func Evaluate(in PolicyInput) Decision {
	d := Decision{CorrectedRate: in.RequestedRate}

	switch {
	case in.Score > 50:
		d.Approved = true
	case in.Score > 30:
		if in.RequestedRate >= MidBandMinRate {
			d.Approved = true
		} else {
			d.CorrectedRate = MidBandMinRate
		}
	case in.Score > 10:
		if in.RequestedRate >= LowBandMinRate {
			d.Approved = true
		} else {
			d.CorrectedRate = LowBandMinRate
		}
	default:
		d.Approved = false
	}

	d.Affordable = IsAffordable(in.ExistingInstallments, in.NewInstallment, in.MonthlySalary)
	if !d.Affordable {
		d.Approved = false
	}
	return d
}

// IsAffordable reports whether existing plus new installments stay within
// MaxInstallmentShare of the monthly salary.
func IsAffordable(existing, newInstallment, monthlySalary float64) bool {
	return existing+newInstallment <= MaxInstallmentShare*monthlySalary
}
