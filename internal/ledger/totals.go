package ledger

import (
	"github.com/shopspring/decimal"
)

// ComputeSubtotal sums the line totals.
func ComputeSubtotal(items []LineItem) decimal.Decimal {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Total)
	}
	return subtotal
}

// ComputeGrandTotal applies an invoice level discount. The discount must lie
// in [0, subtotal]; anything else is rejected so totals never go negative.
func ComputeGrandTotal(subtotal, discount decimal.Decimal) (decimal.Decimal, error) {
	if discount.IsNegative() {
		return decimal.Zero, invalid("discount", "must not be negative")
	}
	if discount.GreaterThan(subtotal) {
		return decimal.Zero, invalid("discount", "must not exceed the subtotal %s", Display(subtotal))
	}
	return subtotal.Sub(discount), nil
}
