package ledger

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceType distinguishes sales, which consume stock, from purchases,
// which add to it.
type InvoiceType string

const (
	InvoiceSale     InvoiceType = "sale"
	InvoicePurchase InvoiceType = "purchase"
)

// Valid reports whether t is a known invoice type.
func (t InvoiceType) Valid() bool {
	return t == InvoiceSale || t == InvoicePurchase
}

// LineItem is one invoice line. Name, unit type and weight_per_unit are
// snapshots taken when the line is entered.
type LineItem struct {
	ProductID     uuid.UUID           `json:"product_id"`
	ProductName   string              `json:"product_name"`
	UnitType      UnitType            `json:"unit_type"`
	SaleUnit      SaleUnit            `json:"sale_unit"`
	Quantity      decimal.Decimal     `json:"quantity"`
	UnitPrice     decimal.Decimal     `json:"unit_price"`
	Total         decimal.Decimal     `json:"total"`
	WeightPerUnit decimal.NullDecimal `json:"weight_per_unit"`
}

// NewLineItem validates a line against p and computes its total as
// quantity * unitPrice with no rounding.
func NewLineItem(p *Product, unit SaleUnit, qty, unitPrice decimal.Decimal) (LineItem, error) {
	unit, err := p.resolveSaleUnit(unit)
	if err != nil {
		return LineItem{}, err
	}
	if !qty.IsPositive() {
		return LineItem{}, invalid("quantity", "must be greater than 0")
	}
	if unitPrice.IsNegative() {
		return LineItem{}, invalid("unit_price", "must not be negative")
	}
	item := LineItem{
		ProductID:   p.ID,
		ProductName: p.Name,
		UnitType:    p.UnitType,
		SaleUnit:    unit,
		Quantity:    qty,
		UnitPrice:   unitPrice,
		Total:       qty.Mul(unitPrice),
	}
	if p.IsDual() {
		item.WeightPerUnit = p.WeightPerUnit
	}
	return item, nil
}

// Equivalent is the line quantity expressed in the other unit domain. It is
// only set for dual items.
func (it LineItem) Equivalent() decimal.NullDecimal {
	if it.UnitType != UnitDual || !it.WeightPerUnit.Valid {
		return decimal.NullDecimal{}
	}
	var (
		v   decimal.Decimal
		err error
	)
	if it.SaleUnit == SaleByWeight {
		v, err = EquivalentCount(it.Quantity, it.WeightPerUnit.Decimal)
	} else {
		v, err = EquivalentWeight(it.Quantity, it.WeightPerUnit.Decimal)
	}
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(v)
}

func (it *LineItem) setQuantity(qty decimal.Decimal) {
	it.Quantity = qty
	it.Total = qty.Mul(it.UnitPrice)
}

// DraftState is the lifecycle position of a draft invoice.
type DraftState string

const (
	DraftEmpty     DraftState = "empty"
	DraftBuilding  DraftState = "building"
	DraftReady     DraftState = "ready"
	DraftSubmitted DraftState = "submitted"
	DraftCancelled DraftState = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s DraftState) Terminal() bool {
	return s == DraftSubmitted || s == DraftCancelled
}

// Draft is an invoice under construction. Its non-terminal state is derived
// from its contents; only submission and cancellation are recorded.
type Draft struct {
	ID             uuid.UUID       `json:"id"`
	InvoiceType    InvoiceType     `json:"invoice_type"`
	ContactID      *uuid.UUID      `json:"contact_id,omitempty"`
	ContactName    string          `json:"contact_name,omitempty"`
	NewContactName string          `json:"new_contact_name,omitempty"`
	Items          []LineItem      `json:"items"`
	Discount       decimal.Decimal `json:"discount"`
	Notes          string          `json:"notes,omitempty"`
	Outcome        DraftState      `json:"outcome,omitempty"`
	InvoiceID      *uuid.UUID      `json:"invoice_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NewDraft starts an empty draft of the given type.
func NewDraft(invoiceType InvoiceType, now time.Time) (*Draft, error) {
	if invoiceType == "" {
		invoiceType = InvoiceSale
	}
	if !invoiceType.Valid() {
		return nil, invalid("invoice_type", "must be one of sale, purchase")
	}
	return &Draft{
		ID:          uuid.New(),
		InvoiceType: invoiceType,
		Items:       []LineItem{},
		Discount:    decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// State derives the current lifecycle position.
func (d *Draft) State() DraftState {
	switch {
	case d.Outcome.Terminal():
		return d.Outcome
	case len(d.Items) == 0:
		return DraftEmpty
	case !d.HasContact():
		return DraftBuilding
	default:
		return DraftReady
	}
}

// HasContact reports whether an existing or new contact is selected.
func (d *Draft) HasContact() bool {
	return d.ContactID != nil || d.NewContactName != ""
}

func (d *Draft) open() error {
	if d.Outcome.Terminal() {
		return ErrDraftClosed
	}
	return nil
}

// AddItem appends a line for p. On sale drafts the quantity is checked
// against the stock left after the lines already holding p; policy decides
// between capping with a warning and failing.
func (d *Draft) AddItem(p *Product, unit SaleUnit, qty, unitPrice decimal.Decimal, policy OverflowPolicy) (*StockWarning, error) {
	if err := d.open(); err != nil {
		return nil, err
	}
	item, err := NewLineItem(p, unit, qty, unitPrice)
	if err != nil {
		return nil, err
	}
	var warning *StockWarning
	if d.InvoiceType == InvoiceSale {
		remaining, err := d.Remaining(p, item.SaleUnit)
		if err != nil {
			return nil, err
		}
		fitted, w, err := fit(p, item.SaleUnit, item.Quantity, remaining, policy)
		if err != nil {
			return nil, err
		}
		item.setQuantity(fitted)
		warning = w
	}
	d.Items = append(d.Items, item)
	return warning, nil
}

// Remaining is p's stock in unit after the lines the draft already holds
// for p are taken, applying them exactly as committing the invoice would.
func (d *Draft) Remaining(p *Product, unit SaleUnit) (decimal.Decimal, error) {
	shelf := *p
	for _, it := range d.Items {
		if it.ProductID != p.ID {
			continue
		}
		if _, err := shelf.Consume(it.SaleUnit, it.Quantity); err != nil {
			var short *StockInsufficientError
			if errors.As(err, &short) {
				// stock fell below what the draft holds
				return decimal.Zero, nil
			}
			return decimal.Zero, err
		}
	}
	return shelf.Available(unit)
}

// RemoveItem drops the line at index.
func (d *Draft) RemoveItem(index int) error {
	if err := d.open(); err != nil {
		return err
	}
	if index < 0 || index >= len(d.Items) {
		return ErrItemIndex
	}
	d.Items = append(d.Items[:index], d.Items[index+1:]...)
	return nil
}

// SetContact selects an existing contact.
func (d *Draft) SetContact(id uuid.UUID, name string) error {
	if err := d.open(); err != nil {
		return err
	}
	d.ContactID = &id
	d.ContactName = name
	d.NewContactName = ""
	return nil
}

// SetNewContact names a contact to be created on submission.
func (d *Draft) SetNewContact(name string) error {
	if err := d.open(); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return invalid("new_contact_name", "is required")
	}
	d.ContactID = nil
	d.ContactName = name
	d.NewContactName = name
	return nil
}

// ClearContact deselects any contact.
func (d *Draft) ClearContact() error {
	if err := d.open(); err != nil {
		return err
	}
	d.ContactID = nil
	d.ContactName = ""
	d.NewContactName = ""
	return nil
}

// SetDiscount sets the invoice level discount; it must fit the current
// subtotal.
func (d *Draft) SetDiscount(discount decimal.Decimal) error {
	if err := d.open(); err != nil {
		return err
	}
	if _, err := ComputeGrandTotal(d.Subtotal(), discount); err != nil {
		return err
	}
	d.Discount = discount
	return nil
}

// SetNotes replaces the free text notes.
func (d *Draft) SetNotes(notes string) error {
	if err := d.open(); err != nil {
		return err
	}
	d.Notes = notes
	return nil
}

// Subtotal sums the current lines.
func (d *Draft) Subtotal() decimal.Decimal {
	return ComputeSubtotal(d.Items)
}

// Submission is what a ready draft sends to the invoice service.
type Submission struct {
	InvoiceType    InvoiceType
	ContactID      *uuid.UUID
	NewContactName string
	Items          []LineItem
	Subtotal       decimal.Decimal
	Discount       decimal.Decimal
	Total          decimal.Decimal
	Notes          string
}

// Submission builds the payload to commit. Only a ready draft may submit;
// the error names the missing precondition otherwise.
func (d *Draft) Submission() (Submission, error) {
	switch d.State() {
	case DraftEmpty:
		return Submission{}, ErrNoItems
	case DraftBuilding:
		return Submission{}, ErrNoContact
	case DraftSubmitted, DraftCancelled:
		return Submission{}, ErrDraftClosed
	}
	subtotal := d.Subtotal()
	total, err := ComputeGrandTotal(subtotal, d.Discount)
	if err != nil {
		return Submission{}, err
	}
	items := make([]LineItem, len(d.Items))
	copy(items, d.Items)
	return Submission{
		InvoiceType:    d.InvoiceType,
		ContactID:      d.ContactID,
		NewContactName: d.NewContactName,
		Items:          items,
		Subtotal:       subtotal,
		Discount:       d.Discount,
		Total:          total,
		Notes:          d.Notes,
	}, nil
}

// MarkSubmitted records that the invoice was committed.
func (d *Draft) MarkSubmitted(invoiceID uuid.UUID) error {
	if st := d.State(); st != DraftReady {
		if st.Terminal() {
			return ErrDraftClosed
		}
		return &StateError{Message: "draft is not ready to submit (state " + string(st) + ")"}
	}
	d.Outcome = DraftSubmitted
	d.InvoiceID = &invoiceID
	return nil
}

// Cancel discards the draft. No stock was touched so nothing is undone.
func (d *Draft) Cancel() error {
	if err := d.open(); err != nil {
		return err
	}
	d.Outcome = DraftCancelled
	return nil
}
