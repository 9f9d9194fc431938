package shared

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// CalculateLineDiscount returns the base amount of a line, the discount taken
// off it and the discounted amount. The discounted amount never drops below zero.
func CalculateLineDiscount(quantity, unitPrice, discountPercent float64) (amount, discountAmount, finalAmount decimal.Decimal) {
	amount = decimal.NewFromFloat(quantity).Mul(decimal.NewFromFloat(unitPrice))
	discountAmount = Percent(amount, discountPercent)
	finalAmount = decimal.Max(decimal.Zero, amount.Sub(discountAmount))
	return
}

// Percent returns rate percent of base.
func Percent(base decimal.Decimal, rate float64) decimal.Decimal {
	if rate == 0 {
		return decimal.Zero
	}
	return base.Mul(decimal.NewFromFloat(rate)).Div(hundred)
}

// RatePercent returns part as a percentage of base, to four decimal places.
// A non-positive base yields zero.
func RatePercent(part, base float64) float64 {
	if base <= 0 {
		return 0
	}
	return decimal.NewFromFloat(part).Div(decimal.NewFromFloat(base)).Mul(hundred).Round(4).InexactFloat64()
}

// Money rounds a decimal to cents and converts it back for the wire.
func Money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
