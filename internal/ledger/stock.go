package ledger

import (
	"github.com/shopspring/decimal"
)

// OverflowPolicy decides what happens when a requested quantity exceeds the
// stock on hand.
type OverflowPolicy int

const (
	// ClampOverflow caps the quantity at what is available and reports a
	// StockWarning. Used while a draft is being edited.
	ClampOverflow OverflowPolicy = iota
	// RejectOverflow fails with StockInsufficientError. Used at commit time.
	RejectOverflow
)

// StockChange is a movement of stock expressed in both unit domains. Weight
// is zero for simple products.
type StockChange struct {
	Count  decimal.Decimal `json:"count"`
	Weight decimal.Decimal `json:"weight"`
}

// Neg returns the opposite movement.
func (c StockChange) Neg() StockChange {
	return StockChange{Count: c.Count.Neg(), Weight: c.Weight.Neg()}
}

// Consumption converts qty, given in unit, into the count and weight it
// removes from p.
func Consumption(p *Product, unit SaleUnit, qty decimal.Decimal) (StockChange, error) {
	unit, err := p.resolveSaleUnit(unit)
	if err != nil {
		return StockChange{}, err
	}
	if !p.IsDual() {
		return StockChange{Count: qty, Weight: decimal.Zero}, nil
	}
	wpu := p.WeightPerUnit.Decimal
	if unit == SaleByWeight {
		count, err := EquivalentCount(qty, wpu)
		if err != nil {
			return StockChange{}, err
		}
		return StockChange{Count: count, Weight: qty}, nil
	}
	weight, err := EquivalentWeight(qty, wpu)
	if err != nil {
		return StockChange{}, err
	}
	return StockChange{Count: qty, Weight: weight}, nil
}

// Consume checks qty against live stock and decrements it. The returned
// change is what actually left the shelf, in both unit domains.
func (p *Product) Consume(unit SaleUnit, qty decimal.Decimal) (StockChange, error) {
	unit, err := p.resolveSaleUnit(unit)
	if err != nil {
		return StockChange{}, err
	}
	if !qty.IsPositive() {
		return StockChange{}, invalid("quantity", "must be greater than 0")
	}
	change, err := Consumption(p, unit, qty)
	if err != nil {
		return StockChange{}, err
	}
	applied, err := p.Adjust(unit, change.Neg())
	if err != nil {
		return StockChange{}, err
	}
	return applied.Neg(), nil
}

// Restock adds qty, given in unit, to p. It is the inverse of Consume and is
// used by purchase invoices.
func (p *Product) Restock(unit SaleUnit, qty decimal.Decimal) (StockChange, error) {
	unit, err := p.resolveSaleUnit(unit)
	if err != nil {
		return StockChange{}, err
	}
	if !qty.IsPositive() {
		return StockChange{}, invalid("quantity", "must be greater than 0")
	}
	change, err := Consumption(p, unit, qty)
	if err != nil {
		return StockChange{}, err
	}
	return p.Adjust(unit, change)
}

// Adjust moves p's stock by the signed change, recorded in unit, and returns
// the movement actually applied.
//
// On dual products a weight movement changes stock_weight exactly and the
// count is derived from it; a count movement changes the count exactly and
// the weight by count * weight_per_unit. Emptying either side empties both,
// so no division residue is ever left on the shelf. Removing more than is on
// hand fails with StockInsufficientError and leaves p untouched.
func (p *Product) Adjust(unit SaleUnit, change StockChange) (StockChange, error) {
	dual := p.IsDual() && p.WeightPerUnit.Valid
	byWeight := dual && unit == SaleByWeight
	before := StockChange{Count: p.StockCount, Weight: p.StockWeight}

	if byWeight {
		if change.Weight.IsNegative() && change.Weight.Neg().GreaterThan(p.StockWeight) {
			return StockChange{}, p.shortfall(SaleByWeight, change.Weight.Neg(), p.StockWeight)
		}
		p.StockWeight = p.StockWeight.Add(change.Weight)
		p.StockCount = p.StockWeight.Div(p.WeightPerUnit.Decimal)
	} else {
		if change.Count.IsNegative() && change.Count.Neg().GreaterThan(p.StockCount) {
			return StockChange{}, p.shortfall(SaleByCount, change.Count.Neg(), p.StockCount)
		}
		p.StockCount = p.StockCount.Add(change.Count)
		if dual {
			p.StockWeight = p.StockWeight.Add(change.Count.Mul(p.WeightPerUnit.Decimal))
		}
	}

	if !p.StockCount.IsPositive() || (dual && !p.StockWeight.IsPositive()) {
		p.StockCount = decimal.Zero
		p.StockWeight = decimal.Zero
	}
	if !dual {
		p.StockWeight = decimal.Zero
	}
	return StockChange{
		Count:  p.StockCount.Sub(before.Count),
		Weight: p.StockWeight.Sub(before.Weight),
	}, nil
}

func (p *Product) shortfall(unit SaleUnit, requested, available decimal.Decimal) *StockInsufficientError {
	return &StockInsufficientError{
		ProductID:   p.ID,
		ProductName: p.Name,
		Unit:        unit,
		Requested:   requested,
		Available:   available,
	}
}

// fit applies policy to a request of qty against remaining stock.
func fit(p *Product, unit SaleUnit, qty, remaining decimal.Decimal, policy OverflowPolicy) (decimal.Decimal, *StockWarning, error) {
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	if qty.LessThanOrEqual(remaining) {
		return qty, nil, nil
	}
	if policy == RejectOverflow || !remaining.IsPositive() {
		return decimal.Zero, nil, p.shortfall(unit, qty, remaining)
	}
	return remaining, &StockWarning{
		ProductID:   p.ID,
		ProductName: p.Name,
		Unit:        unit,
		Requested:   qty,
		Clamped:     remaining,
	}, nil
}
