package ledger

import (
	"github.com/shopspring/decimal"
)

// DefaultMinQuantity is the low-stock threshold used when neither the
// product nor the configuration sets one.
var DefaultMinQuantity = decimal.NewFromInt(5)

// LowStockRule decides low-stock status. Only stock_count is compared, for
// simple and dual products alike.
type LowStockRule struct {
	DefaultThreshold decimal.Decimal
}

// NewLowStockRule returns a rule with the given fallback threshold.
func NewLowStockRule(defaultThreshold decimal.Decimal) LowStockRule {
	return LowStockRule{DefaultThreshold: defaultThreshold}
}

// Threshold is the product's own min_quantity, or the default.
func (r LowStockRule) Threshold(p *Product) decimal.Decimal {
	if p.MinQuantity.Valid {
		return p.MinQuantity.Decimal
	}
	return r.DefaultThreshold
}

// IsLowStock reports stock_count <= threshold. A product exactly at its
// threshold is low.
func (r LowStockRule) IsLowStock(p *Product) bool {
	return p.StockCount.LessThanOrEqual(r.Threshold(p))
}
