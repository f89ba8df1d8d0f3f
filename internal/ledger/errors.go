package ledger

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Error codes surfaced to API clients.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeInvalidState      = "INVALID_STATE"
)

// ValidationError reports a client-correctable problem with a single field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Code returns the machine readable error code.
func (e *ValidationError) Code() string { return CodeValidation }

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// StockInsufficientError is returned when live stock cannot satisfy a line.
type StockInsufficientError struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Unit        SaleUnit        `json:"sale_unit"`
	Requested   decimal.Decimal `json:"requested"`
	Available   decimal.Decimal `json:"available"`
}

func (e *StockInsufficientError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: requested %s %s, available %s",
		e.ProductName, e.Requested.String(), e.Unit, e.Available.String())
}

// Code returns the machine readable error code.
func (e *StockInsufficientError) Code() string { return CodeInsufficientStock }

// StockWarning is the soft counterpart of StockInsufficientError: the entry
// was accepted with its quantity capped at what is available.
type StockWarning struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Unit        SaleUnit        `json:"sale_unit"`
	Requested   decimal.Decimal `json:"requested"`
	Clamped     decimal.Decimal `json:"clamped"`
}

func (w StockWarning) String() string {
	return fmt.Sprintf("quantity for %q capped at %s %s (requested %s)",
		w.ProductName, w.Clamped.String(), w.Unit, w.Requested.String())
}

// StateError reports an operation that is not allowed in the draft's current state.
type StateError struct {
	Message string
}

func (e *StateError) Error() string { return e.Message }

// Code returns the machine readable error code.
func (e *StateError) Code() string { return CodeInvalidState }

var (
	ErrNoItems     = &ValidationError{Field: "items", Message: "no items added to the invoice"}
	ErrNoContact   = &ValidationError{Field: "contact_id", Message: "no contact selected"}
	ErrItemIndex   = &ValidationError{Field: "index", Message: "item index out of range"}
	ErrDraftClosed = &StateError{Message: "draft is already closed"}
	ErrDraftBusy   = &StateError{Message: "draft is being submitted"}
)
