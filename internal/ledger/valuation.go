package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateRange is an inclusive time window. A zero bound is open.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// IsZero reports whether the range applies no filter at all.
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Contains reports whether t lies inside the window.
func (r DateRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// FilterByRange keeps products created or updated inside r. A zero range
// returns the input unchanged.
func FilterByRange(products []Product, r DateRange) []Product {
	if r.IsZero() {
		return products
	}
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if r.Contains(p.CreatedAt) || r.Contains(p.UpdatedAt) {
			out = append(out, p)
		}
	}
	return out
}

// TotalValueAtCost sums stock_count * cost.
func TotalValueAtCost(products []Product) decimal.Decimal {
	total := decimal.Zero
	for _, p := range products {
		total = total.Add(p.StockCount.Mul(p.Cost))
	}
	return total
}

// TotalValueAtPrice sums stock_count * price.
func TotalValueAtPrice(products []Product) decimal.Decimal {
	total := decimal.Zero
	for _, p := range products {
		total = total.Add(p.StockCount.Mul(p.Price))
	}
	return total
}

// LowStockCount counts the products the rule flags.
func (r LowStockRule) LowStockCount(products []Product) int {
	n := 0
	for i := range products {
		if r.IsLowStock(&products[i]) {
			n++
		}
	}
	return n
}

// InventorySummary aggregates a product set for reporting.
type InventorySummary struct {
	TotalProducts     int             `json:"total_products"`
	TotalValueAtCost  decimal.Decimal `json:"total_value_cost"`
	TotalValueAtPrice decimal.Decimal `json:"total_value_price"`
	PotentialProfit   decimal.Decimal `json:"potential_profit"`
	LowStockCount     int             `json:"low_stock_count"`
	TotalStockCount   decimal.Decimal `json:"total_stock_count"`
	TotalStockWeight  decimal.Decimal `json:"total_stock_weight"`
}

// Summarize filters products by r and aggregates what remains.
func (r LowStockRule) Summarize(products []Product, window DateRange) InventorySummary {
	products = FilterByRange(products, window)
	cost := TotalValueAtCost(products)
	price := TotalValueAtPrice(products)
	s := InventorySummary{
		TotalProducts:     len(products),
		TotalValueAtCost:  cost,
		TotalValueAtPrice: price,
		PotentialProfit:   price.Sub(cost),
		LowStockCount:     r.LowStockCount(products),
		TotalStockCount:   decimal.Zero,
		TotalStockWeight:  decimal.Zero,
	}
	for i := range products {
		p := &products[i]
		s.TotalStockCount = s.TotalStockCount.Add(p.StockCount)
		if w := p.AvailableStock().Weight; w.Valid {
			s.TotalStockWeight = s.TotalStockWeight.Add(w.Decimal)
		}
	}
	return s
}
