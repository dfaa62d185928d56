// Package finance implements the calculation engine: invoice totals,
// recurrence advancement and the dashboard metrics/forecast queries.
//
// Everything here is a pure function over already-materialized inputs.
// The package performs no I/O, keeps no state and spawns no goroutines;
// callers hand in collections and get values back.
package finance

import (
	"github.com/shopspring/decimal"

	"flowledger/internal/core"
)

// ComputeInvoiceTotals derives (subtotal, tax, total) from an invoice's
// line items, tax rate and absolute discount:
//
//	subtotal = sum of quantity x unit price
//	tax      = (subtotal - discount) x taxRate
//	total    = (subtotal - discount) + tax
//
// The discount is NOT floored at the subtotal: a discount larger than
// the subtotal yields a negative pre-tax amount, negative tax and
// negative total. Zero line items yield zero subtotal.
func ComputeInvoiceTotals(items []core.LineItem, taxRate decimal.Decimal, discount core.Money) (subtotal, tax, total core.Money) {
	for _, li := range items {
		subtotal = subtotal.Add(li.Total())
	}
	afterDiscount := subtotal.Sub(discount)
	tax = afterDiscount.MulRate(taxRate)
	total = afterDiscount.Add(tax)
	return subtotal, tax, total
}
