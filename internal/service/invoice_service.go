package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"almoheat/internal/ledger"
	"almoheat/internal/metrics"
	"almoheat/internal/model"
	"almoheat/internal/repository"
	ws "almoheat/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- DTOs ---

type InvoiceItemRequest struct {
	ProductID string              `json:"product_id" binding:"required"`
	Quantity  decimal.Decimal     `json:"quantity" swaggertype:"string"`
	SaleUnit  string              `json:"sale_unit" binding:"omitempty,oneof=count weight"`
	UnitPrice decimal.NullDecimal `json:"unit_price" swaggertype:"string"` // defaults to the product price (sale) or cost (purchase)
}

type CreateInvoiceRequest struct {
	InvoiceNumber  string               `json:"invoice_number" binding:"max=30"`
	Date           string               `json:"date"`
	InvoiceType    string               `json:"invoice_type" binding:"omitempty,oneof=sale purchase"`
	Status         string               `json:"status" binding:"omitempty,oneof=pending paid"`
	ContactID      string               `json:"contact_id"`
	NewContactName string               `json:"new_contact_name" binding:"max=255"`
	Items          []InvoiceItemRequest `json:"items" binding:"required,min=1,dive"`
	Discount       decimal.Decimal      `json:"discount" swaggertype:"string"`
	Notes          string               `json:"notes"`
}

type UpdateInvoiceStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending paid cancelled"`
}

// InvoicePreview is the priced, stock-checked view of a request that has
// not been committed. Quantities over the stock on hand are capped and
// reported in Warnings.
type InvoicePreview struct {
	InvoiceType ledger.InvoiceType    `json:"invoice_type"`
	Items       []PreviewLine         `json:"items"`
	Subtotal    decimal.Decimal       `json:"subtotal"`
	Discount    decimal.Decimal       `json:"discount"`
	Total       decimal.Decimal       `json:"total"`
	Warnings    []ledger.StockWarning `json:"warnings"`
}

type PreviewLine struct {
	ledger.LineItem
	Equivalent decimal.NullDecimal `json:"equivalent" swaggertype:"string"`
}

type InvoiceQuery struct {
	ContactID   string
	InvoiceType string
	Status      string
	StartDate   string
	EndDate     string
	Page        int
	Limit       int
}

type InvoiceService interface {
	GetInvoices(ctx context.Context, q InvoiceQuery) ([]model.Invoice, int64, error)
	GetInvoice(ctx context.Context, id string) (*model.Invoice, error)
	PreviewInvoice(ctx context.Context, req CreateInvoiceRequest) (InvoicePreview, error)
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*model.Invoice, error)
	UpdateStatus(ctx context.Context, id string, status string) (*model.Invoice, error)
	DeleteInvoice(ctx context.Context, id string) error
}

// allowed status transitions; cancelled is terminal
var statusTransitions = map[string][]string{
	model.InvoiceStatusPending: {model.InvoiceStatusPaid, model.InvoiceStatusCancelled},
	model.InvoiceStatusPaid:    {model.InvoiceStatusCancelled},
}

type invoiceService struct {
	invoiceRepo  repository.InvoiceRepository
	productRepo  repository.ProductRepository
	contactRepo  repository.ContactRepository
	movementRepo repository.StockMovementRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	rule         ledger.LowStockRule
	events       EventPublisher
	metrics      *metrics.Metrics
	log          *zap.Logger
	now          func() time.Time
}

func NewInvoiceService(
	invoiceRepo repository.InvoiceRepository,
	productRepo repository.ProductRepository,
	contactRepo repository.ContactRepository,
	movementRepo repository.StockMovementRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	rule ledger.LowStockRule,
	events EventPublisher,
	m *metrics.Metrics,
	log *zap.Logger,
) InvoiceService {
	if log == nil {
		log = zap.NewNop()
	}
	return &invoiceService{
		invoiceRepo:  invoiceRepo,
		productRepo:  productRepo,
		contactRepo:  contactRepo,
		movementRepo: movementRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		rule:         rule,
		events:       events,
		metrics:      m,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *invoiceService) GetInvoices(ctx context.Context, q InvoiceQuery) ([]model.Invoice, int64, error) {
	contactID, err := parseOptionalID("contact_id", q.ContactID)
	if err != nil {
		return nil, 0, err
	}
	rng, err := ParseDateRange(q.StartDate, q.EndDate)
	if err != nil {
		return nil, 0, err
	}
	page, limit := normalizePage(q.Page, q.Limit)
	invoices, total, err := s.invoiceRepo.List(ctx, repository.InvoiceFilter{
		ContactID:   contactID,
		InvoiceType: q.InvoiceType,
		Status:      q.Status,
		Range:       rng,
		Page:        page,
		Limit:       limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list invoices: %w", err)
	}
	return invoices, total, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, id string) (*model.Invoice, error) {
	invoiceID, err := parseID("id", id)
	if err != nil {
		return nil, err
	}
	invoice, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, lookupErr("invoice", invoiceID, err)
	}
	return invoice, nil
}

func parseInvoiceType(raw string) (ledger.InvoiceType, error) {
	t := ledger.InvoiceType(strings.ToLower(strings.TrimSpace(raw)))
	if t == "" {
		return ledger.InvoiceSale, nil
	}
	if !t.Valid() {
		return "", &ledger.ValidationError{Field: "invoice_type", Message: "must be one of sale, purchase"}
	}
	return t, nil
}

func itemField(i int, field string) string {
	return fmt.Sprintf("items[%d].%s", i, field)
}

// withItemField prefixes a ledger validation error with the line position.
func withItemField(i int, err error) error {
	var ve *ledger.ValidationError
	if errors.As(err, &ve) {
		return &ledger.ValidationError{Field: itemField(i, ve.Field), Message: ve.Message}
	}
	return err
}

func defaultUnitPrice(t ledger.InvoiceType, p *model.Product, requested decimal.NullDecimal) decimal.Decimal {
	if requested.Valid {
		return requested.Decimal
	}
	if t == ledger.InvoicePurchase {
		return p.Cost
	}
	return p.Price
}

// PreviewInvoice prices the request against current stock without locking
// or writing anything.
func (s *invoiceService) PreviewInvoice(ctx context.Context, req CreateInvoiceRequest) (InvoicePreview, error) {
	invoiceType, err := parseInvoiceType(req.InvoiceType)
	if err != nil {
		return InvoicePreview{}, err
	}
	draft, err := ledger.NewDraft(invoiceType, s.now())
	if err != nil {
		return InvoicePreview{}, err
	}

	preview := InvoicePreview{InvoiceType: invoiceType, Items: []PreviewLine{}, Warnings: []ledger.StockWarning{}}
	for i, itemReq := range req.Items {
		productID, err := parseID(itemField(i, "product_id"), itemReq.ProductID)
		if err != nil {
			return InvoicePreview{}, err
		}
		product, err := s.productRepo.FindByID(ctx, productID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return InvoicePreview{}, &ledger.ValidationError{Field: itemField(i, "product_id"), Message: "product not found"}
			}
			return InvoicePreview{}, lookupErr("product", productID, err)
		}
		price := defaultUnitPrice(invoiceType, product, itemReq.UnitPrice)
		warning, err := draft.AddItem(product.Ledger(), ledger.SaleUnit(itemReq.SaleUnit), itemReq.Quantity, price, ledger.ClampOverflow)
		if err != nil {
			return InvoicePreview{}, withItemField(i, err)
		}
		if warning != nil {
			preview.Warnings = append(preview.Warnings, *warning)
		}
	}

	for _, it := range draft.Items {
		preview.Items = append(preview.Items, PreviewLine{LineItem: it, Equivalent: it.Equivalent()})
	}
	preview.Subtotal = draft.Subtotal()
	preview.Discount = req.Discount
	preview.Total, err = ledger.ComputeGrandTotal(preview.Subtotal, req.Discount)
	if err != nil {
		return InvoicePreview{}, err
	}
	return preview, nil
}

// resolveContact returns the contact the invoice is billed to, creating one
// from new_contact_name when no existing contact carries that name.
func (s *invoiceService) resolveContact(ctx context.Context, invoiceType ledger.InvoiceType, contactID, newName string) (*model.Contact, error) {
	if strings.TrimSpace(contactID) != "" {
		id, err := parseID("contact_id", contactID)
		if err != nil {
			return nil, err
		}
		contact, err := s.contactRepo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, &ledger.ValidationError{Field: "contact_id", Message: "contact not found"}
			}
			return nil, lookupErr("contact", id, err)
		}
		return contact, nil
	}

	name := strings.TrimSpace(newName)
	if name == "" {
		return nil, ledger.ErrNoContact
	}
	existing, err := s.contactRepo.FindByName(ctx, name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up contact %q: %w", name, err)
	}

	contactType := model.ContactTypeCustomer
	if invoiceType == ledger.InvoicePurchase {
		contactType = model.ContactTypeSupplier
	}
	contact := &model.Contact{Name: name, ContactType: contactType}
	if err := s.contactRepo.Create(ctx, contact); err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}
	if err := recordAudit(ctx, s.auditRepo, model.ActionCreateContact, contact.ID.String(), contact.Name, map[string]string{"source": "invoice"}); err != nil {
		return nil, err
	}
	return contact, nil
}

// nextInvoiceNumber issues INV-YYYYMMDD-NNNNN, skipping numbers already
// taken by hand-entered invoices.
func (s *invoiceService) nextInvoiceNumber(ctx context.Context, date time.Time) (string, error) {
	prefix := "INV-" + date.Format("20060102") + "-"
	n, err := s.invoiceRepo.CountByPrefix(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to count invoices: %w", err)
	}
	for {
		n++
		number := fmt.Sprintf("%s%05d", prefix, n)
		exists, err := s.invoiceRepo.ExistsByNumber(ctx, number)
		if err != nil {
			return "", fmt.Errorf("failed to check invoice number: %w", err)
		}
		if !exists {
			return number, nil
		}
	}
}

// stockLedger tracks the locked products touched by one operation so lines
// repeating a product see each other's effect.
type stockLedger struct {
	order    []uuid.UUID
	products map[uuid.UUID]*model.Product
	views    map[uuid.UUID]*ledger.Product
}

func newStockLedger() *stockLedger {
	return &stockLedger{
		products: make(map[uuid.UUID]*model.Product),
		views:    make(map[uuid.UUID]*ledger.Product),
	}
}

func (l *stockLedger) get(id uuid.UUID) (*model.Product, *ledger.Product, bool) {
	p, ok := l.products[id]
	return p, l.views[id], ok
}

func (l *stockLedger) add(p *model.Product) *ledger.Product {
	lp := p.Ledger()
	l.order = append(l.order, p.ID)
	l.products[p.ID] = p
	l.views[p.ID] = lp
	return lp
}

// flush writes the new stock of every touched product and returns them.
func (l *stockLedger) flush(ctx context.Context, repo repository.ProductRepository) ([]*model.Product, error) {
	out := make([]*model.Product, 0, len(l.order))
	for _, id := range l.order {
		p, lp := l.products[id], l.views[id]
		p.ApplyLedger(lp)
		if err := repo.UpdateStock(ctx, id, p.StockCount, p.StockWeight); err != nil {
			return nil, fmt.Errorf("failed to update stock of %s: %w", p.Name, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *invoiceService) lockProduct(ctx context.Context, stock *stockLedger, i int, rawID string) (*model.Product, *ledger.Product, error) {
	productID, err := parseID(itemField(i, "product_id"), rawID)
	if err != nil {
		return nil, nil, err
	}
	if p, lp, ok := stock.get(productID); ok {
		return p, lp, nil
	}
	p, err := s.productRepo.FindByIDForUpdate(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, &ledger.ValidationError{Field: itemField(i, "product_id"), Message: "product not found"}
		}
		return nil, nil, lookupErr("product", productID, err)
	}
	return p, stock.add(p), nil
}

// CreateInvoice commits a sale or purchase. Every product row is locked,
// stock is checked against live values and moved, the contact balance is
// adjusted and the audit trail written, all in one transaction. Nothing is
// persisted when any line fails.
func (s *invoiceService) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*model.Invoice, error) {
	invoiceType, err := parseInvoiceType(req.InvoiceType)
	if err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, ledger.ErrNoItems
	}
	date := s.now()
	if req.Date != "" {
		if date, err = parseDate("date", req.Date, false); err != nil {
			return nil, err
		}
	}
	status := req.Status
	if status == "" {
		status = model.InvoiceStatusPending
	}

	var invoice *model.Invoice
	var touched []*model.Product
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		contact, err := s.resolveContact(txCtx, invoiceType, req.ContactID, req.NewContactName)
		if err != nil {
			return err
		}

		stock := newStockLedger()
		lines := make([]ledger.LineItem, 0, len(req.Items))
		items := make([]model.InvoiceItem, 0, len(req.Items))
		movements := make([]model.StockMovement, 0, len(req.Items))

		for i, itemReq := range req.Items {
			product, lp, err := s.lockProduct(txCtx, stock, i, itemReq.ProductID)
			if err != nil {
				return err
			}
			line, err := ledger.NewLineItem(lp, ledger.SaleUnit(itemReq.SaleUnit), itemReq.Quantity, defaultUnitPrice(invoiceType, product, itemReq.UnitPrice))
			if err != nil {
				return withItemField(i, err)
			}

			var change ledger.StockChange
			reason := model.MovementSale
			if invoiceType == ledger.InvoiceSale {
				change, err = lp.Consume(line.SaleUnit, line.Quantity)
			} else {
				reason = model.MovementPurchase
				change, err = lp.Restock(line.SaleUnit, line.Quantity)
			}
			if err != nil {
				var stockErr *ledger.StockInsufficientError
				if errors.As(err, &stockErr) {
					s.metrics.StockRejected()
					return err
				}
				return withItemField(i, err)
			}

			delta := change
			if invoiceType == ledger.InvoiceSale {
				delta = change.Neg()
			}
			lines = append(lines, line)
			items = append(items, model.InvoiceItem{
				Position:      i,
				ProductID:     line.ProductID,
				ProductName:   line.ProductName,
				UnitType:      string(line.UnitType),
				SaleUnit:      string(line.SaleUnit),
				Quantity:      line.Quantity,
				UnitPrice:     line.UnitPrice,
				Total:         line.Total,
				WeightPerUnit: line.WeightPerUnit,
				CountChange:   change.Count,
				WeightChange:  change.Weight,
			})
			movements = append(movements, model.StockMovement{
				ProductID:   product.ID,
				Reason:      reason,
				SaleUnit:    string(line.SaleUnit),
				CountDelta:  delta.Count,
				WeightDelta: delta.Weight,
				CountAfter:  lp.StockCount,
				WeightAfter: lp.StockWeight,
			})
		}

		subtotal := ledger.ComputeSubtotal(lines)
		total, err := ledger.ComputeGrandTotal(subtotal, req.Discount)
		if err != nil {
			return err
		}

		number := strings.TrimSpace(req.InvoiceNumber)
		if number == "" {
			if number, err = s.nextInvoiceNumber(txCtx, date); err != nil {
				return err
			}
		} else {
			exists, err := s.invoiceRepo.ExistsByNumber(txCtx, number)
			if err != nil {
				return fmt.Errorf("failed to check invoice number: %w", err)
			}
			if exists {
				return &ledger.ValidationError{Field: "invoice_number", Message: "is already in use"}
			}
		}

		invoice = &model.Invoice{
			InvoiceNumber: number,
			InvoiceType:   string(invoiceType),
			Status:        status,
			ContactID:     &contact.ID,
			ContactName:   contact.Name,
			Date:          date,
			Items:         items,
			Subtotal:      subtotal,
			Discount:      req.Discount,
			Total:         total,
			Notes:         req.Notes,
		}
		if err := s.invoiceRepo.Create(txCtx, invoice); err != nil {
			return fmt.Errorf("failed to create invoice: %w", err)
		}

		if touched, err = stock.flush(txCtx, s.productRepo); err != nil {
			return err
		}
		for i := range movements {
			movements[i].InvoiceID = &invoice.ID
			if err := s.movementRepo.Create(txCtx, &movements[i]); err != nil {
				return fmt.Errorf("failed to record stock movement: %w", err)
			}
		}

		if err := s.contactRepo.AdjustBalance(txCtx, contact.ID, ledger.InvoiceBalanceEffect(invoiceType, total), &date); err != nil {
			return fmt.Errorf("failed to adjust contact balance: %w", err)
		}

		return recordAudit(txCtx, s.auditRepo, model.ActionCreateInvoice, invoice.ID.String(), invoice.InvoiceNumber, map[string]any{
			"invoice_type": invoice.InvoiceType,
			"contact_id":   contact.ID.String(),
			"items":        len(items),
			"subtotal":     subtotal.String(),
			"discount":     req.Discount.String(),
			"total":        total.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("invoice created",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("invoice_type", invoice.InvoiceType),
		zap.String("total", invoice.Total.String()),
	)
	s.metrics.InvoiceCreated(invoice.InvoiceType, invoice.Total)
	notifyStock(s.events, s.rule, touched)
	if s.events != nil {
		s.events.Publish(ws.EventInvoiceCreated, invoice)
	}
	return invoice, nil
}

// reverse undoes the stock and balance effects of inv using the changes
// recorded on its items. Products deleted since are skipped.
func (s *invoiceService) reverse(ctx context.Context, inv *model.Invoice) ([]*model.Product, error) {
	stock := newStockLedger()
	sale := inv.InvoiceType == string(ledger.InvoiceSale)

	for _, it := range inv.Items {
		_, lp, ok := stock.get(it.ProductID)
		if !ok {
			p, err := s.productRepo.FindByIDForUpdate(ctx, it.ProductID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					s.log.Warn("reversal skips deleted product",
						zap.String("invoice_id", inv.ID.String()),
						zap.String("product_id", it.ProductID.String()))
					continue
				}
				return nil, lookupErr("product", it.ProductID, err)
			}
			lp = stock.add(p)
		}

		// a sale gave the recorded change away; a purchase brought it in
		undo := ledger.StockChange{Count: it.CountChange, Weight: it.WeightChange}
		if !sale {
			// purchased stock may have been sold since
			undo = undo.Neg()
		}
		applied, err := lp.Adjust(ledger.SaleUnit(it.SaleUnit), undo)
		if err != nil {
			return nil, err
		}

		if err := s.movementRepo.Create(ctx, &model.StockMovement{
			ProductID:   it.ProductID,
			InvoiceID:   &inv.ID,
			Reason:      model.MovementReversal,
			SaleUnit:    it.SaleUnit,
			CountDelta:  applied.Count,
			WeightDelta: applied.Weight,
			CountAfter:  lp.StockCount,
			WeightAfter: lp.StockWeight,
		}); err != nil {
			return nil, fmt.Errorf("failed to record stock movement: %w", err)
		}
	}

	touched, err := stock.flush(ctx, s.productRepo)
	if err != nil {
		return nil, err
	}

	if inv.ContactID != nil {
		effect := ledger.InvoiceBalanceEffect(ledger.InvoiceType(inv.InvoiceType), inv.Total).Neg()
		if err := s.contactRepo.AdjustBalance(ctx, *inv.ContactID, effect, nil); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to restore contact balance: %w", err)
		}
	}
	return touched, nil
}

func canTransition(from, to string) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// UpdateStatus moves an invoice along pending -> paid -> cancelled.
// Cancelling reverses stock and balance exactly once.
func (s *invoiceService) UpdateStatus(ctx context.Context, id string, status string) (*model.Invoice, error) {
	invoiceID, err := parseID("id", id)
	if err != nil {
		return nil, err
	}

	var invoice *model.Invoice
	var touched []*model.Product
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		found, findErr := s.invoiceRepo.FindByIDForUpdate(txCtx, invoiceID)
		if findErr != nil {
			return lookupErr("invoice", invoiceID, findErr)
		}
		invoice = found

		if !canTransition(invoice.Status, status) {
			return &ledger.StateError{Message: fmt.Sprintf("invoice cannot move from %s to %s", invoice.Status, status)}
		}
		if status == model.InvoiceStatusCancelled {
			var err error
			if touched, err = s.reverse(txCtx, invoice); err != nil {
				return err
			}
		}
		if err := s.invoiceRepo.UpdateStatus(txCtx, invoiceID, status); err != nil {
			return fmt.Errorf("failed to update invoice status: %w", err)
		}
		from := invoice.Status
		invoice.Status = status
		return recordAudit(txCtx, s.auditRepo, model.ActionUpdateInvoiceStatus, invoice.ID.String(), invoice.InvoiceNumber, map[string]string{
			"from": from,
			"to":   status,
		})
	})
	if err != nil {
		return nil, err
	}

	if status == model.InvoiceStatusCancelled {
		s.metrics.InvoiceReversed("cancelled")
		notifyStock(s.events, s.rule, touched)
	}
	if s.events != nil {
		s.events.Publish(ws.EventInvoiceUpdated, invoice)
	}
	return invoice, nil
}

// DeleteInvoice removes an invoice, reversing its effects unless it was
// already cancelled.
func (s *invoiceService) DeleteInvoice(ctx context.Context, id string) error {
	invoiceID, err := parseID("id", id)
	if err != nil {
		return err
	}

	var touched []*model.Product
	reversed := false
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		invoice, err := s.invoiceRepo.FindByIDForUpdate(txCtx, invoiceID)
		if err != nil {
			return lookupErr("invoice", invoiceID, err)
		}
		if invoice.Status != model.InvoiceStatusCancelled {
			if touched, err = s.reverse(txCtx, invoice); err != nil {
				return err
			}
			reversed = true
		}
		if err := s.invoiceRepo.Delete(txCtx, invoiceID); err != nil {
			return fmt.Errorf("failed to delete invoice: %w", err)
		}
		return recordAudit(txCtx, s.auditRepo, model.ActionDeleteInvoice, invoice.ID.String(), invoice.InvoiceNumber, map[string]any{
			"status":   invoice.Status,
			"reversed": reversed,
			"total":    invoice.Total.String(),
		})
	})
	if err != nil {
		return err
	}

	if reversed {
		s.metrics.InvoiceReversed("deleted")
		notifyStock(s.events, s.rule, touched)
	}
	return nil
}
