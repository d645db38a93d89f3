package core

import "github.com/shopspring/decimal"

var (
	// weeksPerMonth is the average number of weeks in a month.
	weeksPerMonth  = decimal.RequireFromString("4.33")
	monthsPerYear  = decimal.NewFromInt(12)
	amountDecimals = int32(2)
)

// NormalizeMonthly converts a declared amount at the given frequency into its
// monthly equivalent. One-time amounts are returned unchanged; the generator is
// responsible for placing them in the anchor month only.
//
// Weekly amounts are exact products. Yearly amounts are rounded to cents (half
// away from zero) since a twelfth is rarely a finite decimal.
func NormalizeMonthly(amount Money, freq Frequency) Money {
	switch freq {
	case Weekly:
		return amount.Mul(weeksPerMonth)
	case Yearly:
		return amount.DivRound(monthsPerYear, amountDecimals)
	default:
		return amount
	}
}
