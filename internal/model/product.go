package model

import (
	"time"

	"almoheat/internal/ledger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product represents an item in the inventory. stock_count is the source of
// truth; stock_weight is re-derived from it for dual products.
type Product struct {
	ID            uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string              `gorm:"type:varchar(255);not null;index" json:"name"`
	UnitType      string              `gorm:"type:varchar(10);not null;default:'simple'" json:"unit_type"` // simple, dual
	Cost          decimal.Decimal     `gorm:"type:numeric;not null;default:0" json:"cost"`
	Price         decimal.Decimal     `gorm:"type:numeric;not null;default:0" json:"price"`
	StockCount    decimal.Decimal     `gorm:"type:numeric;not null;default:0" json:"stock_count"`
	StockWeight   decimal.Decimal     `gorm:"type:numeric;not null;default:0" json:"stock_weight"`
	WeightPerUnit decimal.NullDecimal `gorm:"type:numeric" json:"weight_per_unit"`
	MinQuantity   decimal.NullDecimal `gorm:"type:numeric" json:"min_quantity"` // falls back to the configured default
	Description   string              `gorm:"type:text" json:"description"`
	CreatedAt     time.Time           `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time           `gorm:"index" json:"updated_at"`
	DeletedAt     gorm.DeletedAt      `gorm:"index" json:"-"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// Ledger returns the calculation view of p.
func (p *Product) Ledger() *ledger.Product {
	return &ledger.Product{
		ID:            p.ID,
		Name:          p.Name,
		UnitType:      ledger.UnitType(p.UnitType),
		Cost:          p.Cost,
		Price:         p.Price,
		StockCount:    p.StockCount,
		StockWeight:   p.StockWeight,
		WeightPerUnit: p.WeightPerUnit,
		MinQuantity:   p.MinQuantity,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// ApplyLedger copies the calculated fields of lp back onto p.
func (p *Product) ApplyLedger(lp *ledger.Product) {
	p.Name = lp.Name
	p.UnitType = string(lp.UnitType)
	p.Cost = lp.Cost
	p.Price = lp.Price
	p.StockCount = lp.StockCount
	p.StockWeight = lp.StockWeight
	p.WeightPerUnit = lp.WeightPerUnit
	p.MinQuantity = lp.MinQuantity
}

// LedgerProducts converts a slice for aggregation.
func LedgerProducts(products []Product) []ledger.Product {
	out := make([]ledger.Product, len(products))
	for i := range products {
		out[i] = *products[i].Ledger()
	}
	return out
}

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
