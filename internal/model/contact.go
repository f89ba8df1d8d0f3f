package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ContactType enum constants
const (
	ContactTypeCustomer = "customer"
	ContactTypeSupplier = "supplier"
)

// Contact represents a customer or supplier. A positive balance means the
// contact owes us.
type Contact struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Name              string          `gorm:"type:varchar(255);not null;index" json:"name"`
	ContactType       string          `gorm:"type:varchar(20);not null;default:'customer';index" json:"contact_type"`
	Phone             string          `gorm:"type:varchar(50)" json:"phone"`
	Email             string          `gorm:"type:varchar(255)" json:"email"`
	Address           string          `gorm:"type:text" json:"address"`
	Notes             string          `gorm:"type:text" json:"notes"`
	Balance           decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"balance"`
	LastTransactionAt *time.Time      `json:"last_transaction_at"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	DeletedAt         gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (c *Contact) BeforeCreate(tx *gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
