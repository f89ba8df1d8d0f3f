package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CashTransaction is a receipt (income) or payment (expense), optionally
// linked to a contact whose balance it settles.
type CashTransaction struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	TransactionType string          `gorm:"type:varchar(10);not null;index" json:"transaction_type"` // income, expense
	Amount          decimal.Decimal `gorm:"type:numeric;not null" json:"amount"`
	Category        string          `gorm:"type:varchar(100);index" json:"category"`
	Description     string          `gorm:"type:text" json:"description"`
	ContactID       *uuid.UUID      `gorm:"type:uuid;index" json:"contact_id"`
	Date            time.Time       `gorm:"index" json:"date"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (c *CashTransaction) BeforeCreate(tx *gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
