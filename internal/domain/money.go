package domain

import "github.com/shopspring/decimal"

// Monetary amounts are carried at full scale through intermediate
// calculations and rounded to two decimals only at final totals.

// Hundred is used for percentage math.
var Hundred = decimal.NewFromInt(100)

// RoundMoney rounds an amount half-up to two decimal places.
// shopspring rounds half away from zero, which matches half-up for the
// non-negative amounts that reach final totals.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Percent applies pct (0..100) to amount without rounding.
func Percent(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(Hundred)
}

// MustMoney parses a decimal literal and panics on malformed input.
// Intended for constants and tests only.
func MustMoney(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic("domain: bad money literal: " + s)
	}
	return d
}
