package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionCreateProduct       = "CREATE_PRODUCT"
	ActionUpdateProduct       = "UPDATE_PRODUCT"
	ActionDeleteProduct       = "DELETE_PRODUCT"
	ActionCreateContact       = "CREATE_CONTACT"
	ActionUpdateContact       = "UPDATE_CONTACT"
	ActionDeleteContact       = "DELETE_CONTACT"
	ActionCreateInvoice       = "CREATE_INVOICE"
	ActionUpdateInvoiceStatus = "UPDATE_INVOICE_STATUS"
	ActionDeleteInvoice       = "DELETE_INVOICE"
	ActionCreateCash          = "CREATE_CASH_TRANSACTION"
	ActionUpdateCash          = "UPDATE_CASH_TRANSACTION"
	ActionDeleteCash          = "DELETE_CASH_TRANSACTION"
)

// AuditLog tracks what changed and when for critical mutations
type AuditLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Action     string    `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string    `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string    `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	RequestID  string    `gorm:"type:varchar(64)" json:"request_id,omitempty"`
	Details    string    `gorm:"type:text" json:"details"` // serialized JSON payload of the action
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
