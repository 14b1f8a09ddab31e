// Package money holds the rounding rules shared by every monetary figure the
// engine produces. Rounding is half-to-even and is applied to the exact binary
// value of the float64, so 2.675 (stored as 2.67499999...) rounds down to 2.67
// while an exact tie such as 0.125 goes to the even neighbour 0.12.
package money

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// CentPlaces is the number of decimal places kept for installments.
const CentPlaces = 2

var five = big.NewInt(5)

// Exact converts f to a decimal without losing any of its binary digits.
func Exact(f float64) decimal.Decimal {
	if f == 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	frac, exp := math.Frexp(f)
	mant := big.NewInt(int64(frac * (1 << 53)))
	exp -= 53
	if exp >= 0 {
		return decimal.NewFromBigInt(mant.Lsh(mant, uint(exp)), 0)
	}
	k := int64(-exp)
	pow5 := new(big.Int).Exp(five, big.NewInt(k), nil)
	return decimal.NewFromBigInt(mant.Mul(mant, pow5), int32(-k))
}

// RoundHalfEven rounds f to the given number of decimal places. Negative
// places round to the left of the decimal point (-5 rounds to 100,000s).
func RoundHalfEven(f float64, places int32) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	return Exact(f).RoundBank(places).InexactFloat64()
}

// RoundCents rounds f to whole cents.
func RoundCents(f float64) float64 {
	return RoundHalfEven(f, CentPlaces)
}

// RoundToInt rounds f to the nearest integer, ties to even.
func RoundToInt(f float64) int {
	return int(Exact(f).RoundBank(0).IntPart())
}
