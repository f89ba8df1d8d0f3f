package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InvoiceStatus enum constants
const (
	InvoiceStatusPending   = "pending"
	InvoiceStatusPaid      = "paid"
	InvoiceStatusCancelled = "cancelled"
)

// Invoice is a committed sale or purchase. Totals are computed server side
// and stock has already been moved when a row exists.
type Invoice struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceNumber string          `gorm:"type:varchar(30);uniqueIndex;not null" json:"invoice_number"`
	InvoiceType   string          `gorm:"type:varchar(10);not null;index" json:"invoice_type"` // sale, purchase
	Status        string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ContactID     *uuid.UUID      `gorm:"type:uuid;index" json:"contact_id"`
	ContactName   string          `gorm:"type:varchar(255)" json:"contact_name"`
	Date          time.Time       `gorm:"index" json:"date"`
	Items         []InvoiceItem   `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"items"`
	Subtotal      decimal.Decimal `gorm:"type:numeric;not null" json:"subtotal"`
	Discount      decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"discount"`
	Total         decimal.Decimal `gorm:"type:numeric;not null" json:"total"`
	Notes         string          `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// InvoiceItem is one snapshotted line. CountChange and WeightChange hold the
// stock actually moved so a reversal restores it exactly.
type InvoiceItem struct {
	ID            uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceID     uuid.UUID           `gorm:"type:uuid;not null;index" json:"invoice_id"`
	Position      int                 `gorm:"not null" json:"position"`
	ProductID     uuid.UUID           `gorm:"type:uuid;not null;index" json:"product_id"`
	ProductName   string              `gorm:"type:varchar(255);not null" json:"product_name"`
	UnitType      string              `gorm:"type:varchar(10);not null" json:"unit_type"`
	SaleUnit      string              `gorm:"type:varchar(10);not null" json:"sale_unit"`
	Quantity      decimal.Decimal     `gorm:"type:numeric;not null" json:"quantity"`
	UnitPrice     decimal.Decimal     `gorm:"type:numeric;not null" json:"unit_price"`
	Total         decimal.Decimal     `gorm:"type:numeric;not null" json:"total"`
	WeightPerUnit decimal.NullDecimal `gorm:"type:numeric" json:"weight_per_unit"`
	CountChange   decimal.Decimal     `gorm:"type:numeric;not null;default:0" json:"count_change"`
	WeightChange  decimal.Decimal     `gorm:"type:numeric;not null;default:0" json:"weight_change"`
}

func (it *InvoiceItem) BeforeCreate(tx *gorm.DB) error {
	ensureID(&it.ID)
	return nil
}
