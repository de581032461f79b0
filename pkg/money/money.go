package money

import "github.com/shopspring/decimal"

var centsPerDollar = decimal.NewFromInt(100)

// FormatCents renders an integer cent amount as a dollar string, e.g. 2500
// becomes "$25.00". Negative amounts keep the sign ahead of the dollar sign.
func FormatCents(cents int64) string {
	amount := decimal.NewFromInt(cents).Div(centsPerDollar)
	if amount.IsNegative() {
		return "-$" + amount.Abs().StringFixed(2)
	}
	return "$" + amount.StringFixed(2)
}

// DollarsToCents converts a decimal dollar amount to integer cents, rounding
// half away from zero.
func DollarsToCents(dollars decimal.Decimal) int64 {
	return dollars.Mul(centsPerDollar).Round(0).IntPart()
}
