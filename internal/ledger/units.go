// Package ledger holds the dual-unit inventory and invoicing calculation
// model: unit conversion, line-item accumulation, stock checks, low-stock
// status and inventory valuation. It performs no I/O.
package ledger

import (
	"github.com/shopspring/decimal"
)

// UnitType describes how a product is tracked.
type UnitType string

const (
	// UnitSimple products are tracked by count only.
	UnitSimple UnitType = "simple"
	// UnitDual products are tracked by count and by an implied weight.
	UnitDual UnitType = "dual"
)

// Valid reports whether u is a known unit type.
func (u UnitType) Valid() bool {
	return u == UnitSimple || u == UnitDual
}

// SaleUnit is the domain in which a line item's quantity is expressed.
type SaleUnit string

const (
	SaleByCount  SaleUnit = "count"
	SaleByWeight SaleUnit = "weight"
)

// Valid reports whether s is a known sale unit.
func (s SaleUnit) Valid() bool {
	return s == SaleByCount || s == SaleByWeight
}

// DisplayPlaces is the number of fractional digits used when presenting
// quantities, weights and amounts.
const DisplayPlaces = 2

// Display renders d with exactly two fractional digits. Stored values keep
// full precision; this is for presentation only.
func Display(d decimal.Decimal) string {
	return d.StringFixed(DisplayPlaces)
}

// EquivalentWeight converts a count into weight: count * weightPerUnit.
func EquivalentWeight(count, weightPerUnit decimal.Decimal) (decimal.Decimal, error) {
	if err := checkWeightPerUnit(weightPerUnit); err != nil {
		return decimal.Zero, err
	}
	return count.Mul(weightPerUnit), nil
}

// EquivalentCount converts a weight into count: weight / weightPerUnit.
func EquivalentCount(weight, weightPerUnit decimal.Decimal) (decimal.Decimal, error) {
	if err := checkWeightPerUnit(weightPerUnit); err != nil {
		return decimal.Zero, err
	}
	return weight.Div(weightPerUnit), nil
}

func checkWeightPerUnit(weightPerUnit decimal.Decimal) error {
	if !weightPerUnit.IsPositive() {
		return invalid("weight_per_unit", "must be greater than 0 for dual products")
	}
	return nil
}
