package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Movement reasons
const (
	MovementSale       = "SALE"
	MovementPurchase   = "PURCHASE"
	MovementReversal   = "REVERSAL"
	MovementAdjustment = "ADJUSTMENT"
)

// StockMovement (stock card) records every change to a product's stock.
// Deltas are signed: negative when stock leaves.
type StockMovement struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	InvoiceID   *uuid.UUID      `gorm:"type:uuid;index" json:"invoice_id"` // nil for manual adjustments
	Reason      string          `gorm:"type:varchar(20);not null" json:"reason"`
	SaleUnit    string          `gorm:"type:varchar(10)" json:"sale_unit"`
	CountDelta  decimal.Decimal `gorm:"type:numeric;not null" json:"count_delta"`
	WeightDelta decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"weight_delta"`
	CountAfter  decimal.Decimal `gorm:"type:numeric;not null" json:"count_after"`
	WeightAfter decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"weight_after"`
	CreatedAt   time.Time       `gorm:"index" json:"created_at"`
}

func (m *StockMovement) BeforeCreate(tx *gorm.DB) error {
	ensureID(&m.ID)
	return nil
}
