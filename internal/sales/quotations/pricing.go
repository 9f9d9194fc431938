package quotations

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/quotedesk/internal/sales/shared"
)

// withPricing recomputes the derived money fields of a line. Line amounts
// are kept unrounded; only the quotation totals are rounded to cents.
func withPricing(item LineItem) LineItem {
	_, discount, final := shared.CalculateLineDiscount(item.Quantity, item.UnitPrice, item.DiscountRate)
	item.Amount = item.Quantity * item.UnitPrice
	item.DiscountAmount = discount.InexactFloat64()
	item.FinalAmount = final.InexactFloat64()
	return item
}

// HasIndividualDiscounts reports whether any line carries its own discount.
func HasIndividualDiscounts(items []LineItem) bool {
	for _, item := range items {
		if item.DiscountRate > 0 {
			return true
		}
	}
	return false
}

// CalculateTotals derives every quotation total in one pass. Per-line and
// global discounts are mutually exclusive: while any line has a discount the
// global discount rate is ignored entirely. Tax always applies to the
// undiscounted subtotal.
func CalculateTotals(items []LineItem, taxRate, discountRate float64) Totals {
	subtotal := decimal.Zero
	lineDiscounts := decimal.Zero
	lineFinals := decimal.Zero
	for _, item := range items {
		amount, discount, final := shared.CalculateLineDiscount(item.Quantity, item.UnitPrice, item.DiscountRate)
		subtotal = subtotal.Add(amount)
		lineDiscounts = lineDiscounts.Add(discount)
		lineFinals = lineFinals.Add(final)
	}

	individual := HasIndividualDiscounts(items)
	var discount, afterDiscount decimal.Decimal
	if individual {
		discount = lineDiscounts
		afterDiscount = lineFinals
	} else {
		discount = shared.Percent(subtotal, discountRate)
		afterDiscount = subtotal.Sub(discount)
	}
	tax := shared.Percent(subtotal, taxRate)

	return Totals{
		Subtotal:               shared.Money(subtotal),
		DiscountAmount:         shared.Money(discount),
		SubtotalAfterDiscount:  shared.Money(afterDiscount),
		TaxAmount:              shared.Money(tax),
		Total:                  shared.Money(afterDiscount.Add(tax)),
		HasIndividualDiscounts: individual,
		GlobalDiscountEnabled:  !individual,
	}
}
