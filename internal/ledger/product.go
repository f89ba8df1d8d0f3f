package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the calculation view of a stocked item.
type Product struct {
	ID            uuid.UUID
	Name          string
	UnitType      UnitType
	Cost          decimal.Decimal
	Price         decimal.Decimal
	StockCount    decimal.Decimal
	StockWeight   decimal.Decimal
	WeightPerUnit decimal.NullDecimal
	MinQuantity   decimal.NullDecimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsDual reports whether p is tracked by count and weight.
func (p *Product) IsDual() bool { return p.UnitType == UnitDual }

// Normalize trims the name, defaults the unit type and drops weight fields
// that a simple product must not carry.
func (p *Product) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	if p.UnitType == "" {
		p.UnitType = UnitSimple
	}
	if !p.IsDual() {
		p.WeightPerUnit = decimal.NullDecimal{}
		p.StockWeight = decimal.Zero
	}
}

// Validate checks the product invariants. Call Normalize first.
func (p *Product) Validate() error {
	if p.Name == "" {
		return invalid("name", "is required")
	}
	if !p.UnitType.Valid() {
		return invalid("unit_type", "must be one of simple, dual")
	}
	if p.Cost.IsNegative() {
		return invalid("cost", "must not be negative")
	}
	if p.Price.IsNegative() {
		return invalid("price", "must not be negative")
	}
	if p.StockCount.IsNegative() {
		return invalid("stock_count", "must not be negative")
	}
	if p.IsDual() {
		if !p.WeightPerUnit.Valid {
			return invalid("weight_per_unit", "is required for dual products")
		}
		if err := checkWeightPerUnit(p.WeightPerUnit.Decimal); err != nil {
			return err
		}
	}
	if p.MinQuantity.Valid && p.MinQuantity.Decimal.IsNegative() {
		return invalid("min_quantity", "must not be negative")
	}
	return nil
}

// SyncStockWeight re-derives stock_weight from stock_count. Use it only when
// the count is set directly; stock movements go through Adjust.
func (p *Product) SyncStockWeight() {
	if !p.IsDual() || !p.WeightPerUnit.Valid {
		p.StockWeight = decimal.Zero
		return
	}
	p.StockWeight = p.StockCount.Mul(p.WeightPerUnit.Decimal)
}

// Available returns the stock on hand in the given unit domain.
func (p *Product) Available(unit SaleUnit) (decimal.Decimal, error) {
	if err := p.checkSaleUnit(unit); err != nil {
		return decimal.Zero, err
	}
	if unit == SaleByWeight {
		return p.StockWeight, nil
	}
	return p.StockCount, nil
}

// AvailableStock is the stock on hand in every unit domain the product
// supports. Weight is only set for dual products.
type AvailableStock struct {
	Count  decimal.Decimal     `json:"count"`
	Weight decimal.NullDecimal `json:"weight"`
}

// AvailableStock reports count and, for dual products, weight together.
func (p *Product) AvailableStock() AvailableStock {
	out := AvailableStock{Count: p.StockCount}
	if p.IsDual() && p.WeightPerUnit.Valid {
		out.Weight = decimal.NewNullDecimal(p.StockWeight)
	}
	return out
}

func (p *Product) checkSaleUnit(unit SaleUnit) error {
	if !unit.Valid() {
		return invalid("sale_unit", "must be one of count, weight")
	}
	if unit == SaleByWeight {
		if !p.IsDual() {
			return invalid("sale_unit", "product %q is sold by count only", p.Name)
		}
		if !p.WeightPerUnit.Valid {
			return invalid("weight_per_unit", "is required for dual products")
		}
		return checkWeightPerUnit(p.WeightPerUnit.Decimal)
	}
	return nil
}

// resolveSaleUnit defaults an empty unit to count and rejects weight for
// simple products.
func (p *Product) resolveSaleUnit(unit SaleUnit) (SaleUnit, error) {
	if unit == "" {
		unit = SaleByCount
	}
	if err := p.checkSaleUnit(unit); err != nil {
		return "", err
	}
	return unit, nil
}
