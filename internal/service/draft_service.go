package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"almoheat/internal/draftstore"
	"almoheat/internal/ledger"
	"almoheat/internal/metrics"
	"almoheat/internal/model"
	"almoheat/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- DTOs ---

type CreateDraftRequest struct {
	InvoiceType string `json:"invoice_type" binding:"omitempty,oneof=sale purchase"`
}

type AddDraftItemRequest struct {
	ProductID string              `json:"product_id" binding:"required"`
	Quantity  decimal.Decimal     `json:"quantity" swaggertype:"string"`
	SaleUnit  string              `json:"sale_unit" binding:"omitempty,oneof=count weight"`
	UnitPrice decimal.NullDecimal `json:"unit_price" swaggertype:"string"`
}

// DraftContactRequest selects an existing contact, names a new one, or
// clears the selection when both are empty.
type DraftContactRequest struct {
	ContactID      string `json:"contact_id"`
	NewContactName string `json:"new_contact_name" binding:"max=255"`
}

type DraftDiscountRequest struct {
	Discount decimal.Decimal `json:"discount" swaggertype:"string"`
	Notes    *string         `json:"notes"`
}

// DraftView is a draft together with its derived state and totals.
type DraftView struct {
	*ledger.Draft
	State    ledger.DraftState    `json:"state"`
	Subtotal decimal.Decimal      `json:"subtotal"`
	Total    decimal.Decimal      `json:"total"`
	Warning  *ledger.StockWarning `json:"warning,omitempty"`
}

type DraftService interface {
	CreateDraft(ctx context.Context, req CreateDraftRequest) (*DraftView, error)
	GetDraft(ctx context.Context, id string) (*DraftView, error)
	AddItem(ctx context.Context, id string, req AddDraftItemRequest) (*DraftView, error)
	RemoveItem(ctx context.Context, id string, index int) (*DraftView, error)
	SetContact(ctx context.Context, id string, req DraftContactRequest) (*DraftView, error)
	SetDiscount(ctx context.Context, id string, req DraftDiscountRequest) (*DraftView, error)
	Submit(ctx context.Context, id string) (*model.Invoice, error)
	Cancel(ctx context.Context, id string) (*DraftView, error)
}

type draftService struct {
	store       draftstore.Store
	productRepo repository.ProductRepository
	contactRepo repository.ContactRepository
	invoices    InvoiceService
	metrics     *metrics.Metrics
	log         *zap.Logger
	now         func() time.Time
}

func NewDraftService(
	store draftstore.Store,
	productRepo repository.ProductRepository,
	contactRepo repository.ContactRepository,
	invoices InvoiceService,
	m *metrics.Metrics,
	log *zap.Logger,
) DraftService {
	if log == nil {
		log = zap.NewNop()
	}
	return &draftService{
		store:       store,
		productRepo: productRepo,
		contactRepo: contactRepo,
		invoices:    invoices,
		metrics:     m,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func view(d *ledger.Draft, warning *ledger.StockWarning) *DraftView {
	subtotal := d.Subtotal()
	total, err := ledger.ComputeGrandTotal(subtotal, d.Discount)
	if err != nil {
		// removing lines can leave the discount above the subtotal; submit
		// reports it
		total = decimal.Zero
	}
	return &DraftView{Draft: d, State: d.State(), Subtotal: subtotal, Total: total, Warning: warning}
}

func (s *draftService) load(ctx context.Context, id string) (*ledger.Draft, error) {
	draftID, err := parseID("id", id)
	if err != nil {
		return nil, err
	}
	d, err := s.store.Get(ctx, draftID)
	if err != nil {
		if errors.Is(err, draftstore.ErrNotFound) {
			return nil, fmt.Errorf("draft %s: %w", draftID, ErrNotFound)
		}
		return nil, err
	}
	return d, nil
}

func (s *draftService) save(ctx context.Context, d *ledger.Draft) error {
	d.UpdatedAt = s.now()
	return s.store.Save(ctx, d)
}

// mutate loads a draft, applies fn and stores the result when fn succeeds.
func (s *draftService) mutate(ctx context.Context, id string, fn func(d *ledger.Draft) (*ledger.StockWarning, error)) (*DraftView, error) {
	d, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	warning, err := fn(d)
	if err != nil {
		return nil, err
	}
	if err := s.checkUnclaimed(ctx, d.ID); err != nil {
		return nil, err
	}
	if err := s.save(ctx, d); err != nil {
		return nil, err
	}
	return view(d, warning), nil
}

func (s *draftService) CreateDraft(ctx context.Context, req CreateDraftRequest) (*DraftView, error) {
	d, err := ledger.NewDraft(ledger.InvoiceType(req.InvoiceType), s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, d); err != nil {
		return nil, err
	}
	return view(d, nil), nil
}

func (s *draftService) GetDraft(ctx context.Context, id string) (*DraftView, error) {
	d, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return view(d, nil), nil
}

// AddItem prices the line from the product when no unit price is given and
// caps sale quantities at the stock left, returning a warning when it does.
func (s *draftService) AddItem(ctx context.Context, id string, req AddDraftItemRequest) (*DraftView, error) {
	productID, err := parseID("product_id", req.ProductID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, func(d *ledger.Draft) (*ledger.StockWarning, error) {
		product, err := s.productRepo.FindByID(ctx, productID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, &ledger.ValidationError{Field: "product_id", Message: "product not found"}
			}
			return nil, lookupErr("product", productID, err)
		}
		price := defaultUnitPrice(d.InvoiceType, product, req.UnitPrice)
		return d.AddItem(product.Ledger(), ledger.SaleUnit(req.SaleUnit), req.Quantity, price, ledger.ClampOverflow)
	})
}

func (s *draftService) RemoveItem(ctx context.Context, id string, index int) (*DraftView, error) {
	return s.mutate(ctx, id, func(d *ledger.Draft) (*ledger.StockWarning, error) {
		return nil, d.RemoveItem(index)
	})
}

func (s *draftService) SetContact(ctx context.Context, id string, req DraftContactRequest) (*DraftView, error) {
	return s.mutate(ctx, id, func(d *ledger.Draft) (*ledger.StockWarning, error) {
		switch {
		case req.ContactID != "":
			contactID, err := parseID("contact_id", req.ContactID)
			if err != nil {
				return nil, err
			}
			contact, err := s.contactRepo.FindByID(ctx, contactID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return nil, &ledger.ValidationError{Field: "contact_id", Message: "contact not found"}
				}
				return nil, lookupErr("contact", contactID, err)
			}
			return nil, d.SetContact(contact.ID, contact.Name)
		case req.NewContactName != "":
			return nil, d.SetNewContact(req.NewContactName)
		default:
			return nil, d.ClearContact()
		}
	})
}

func (s *draftService) SetDiscount(ctx context.Context, id string, req DraftDiscountRequest) (*DraftView, error) {
	return s.mutate(ctx, id, func(d *ledger.Draft) (*ledger.StockWarning, error) {
		if err := d.SetDiscount(req.Discount); err != nil {
			return nil, err
		}
		if req.Notes != nil {
			return nil, d.SetNotes(*req.Notes)
		}
		return nil, nil
	})
}

// Submit commits a ready draft through the invoice service, which re-checks
// stock against locked rows. The draft is claimed first so a second submit,
// from a double click or another replica, cannot commit it again. A failed
// commit releases the claim and leaves the draft ready to be adjusted and
// retried.
func (s *draftService) Submit(ctx context.Context, id string) (*model.Invoice, error) {
	d, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := d.Submission(); err != nil {
		return nil, err
	}

	claimed, err := s.store.Claim(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ledger.ErrDraftBusy
	}

	invoice, err := s.commit(ctx, id)
	if err != nil {
		s.release(ctx, d.ID)
		return nil, err
	}
	s.metrics.DraftOutcome("submitted")
	return invoice, nil
}

// commit runs under the claim. The draft is reloaded because another
// submit may have finished between the first load and the claim.
func (s *draftService) commit(ctx context.Context, id string) (*model.Invoice, error) {
	d, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	sub, err := d.Submission()
	if err != nil {
		return nil, err
	}

	req := CreateInvoiceRequest{
		InvoiceType:    string(sub.InvoiceType),
		NewContactName: sub.NewContactName,
		Items:          make([]InvoiceItemRequest, 0, len(sub.Items)),
		Discount:       sub.Discount,
		Notes:          sub.Notes,
	}
	if sub.ContactID != nil {
		req.ContactID = sub.ContactID.String()
	}
	for _, it := range sub.Items {
		req.Items = append(req.Items, InvoiceItemRequest{
			ProductID: it.ProductID.String(),
			Quantity:  it.Quantity,
			SaleUnit:  string(it.SaleUnit),
			UnitPrice: decimal.NewNullDecimal(it.UnitPrice),
		})
	}

	invoice, err := s.invoices.CreateInvoice(ctx, req)
	if err != nil {
		s.metrics.DraftOutcome("failed")
		s.log.Info("draft submission failed", zap.String("draft_id", d.ID.String()), zap.Error(err))
		return nil, err
	}

	if err := d.MarkSubmitted(invoice.ID); err != nil {
		return nil, err
	}
	if err := s.save(ctx, d); err != nil {
		// the invoice is committed and the claim stays, so the draft
		// cannot be submitted twice even though its state is stale
		s.log.Warn("failed to store submitted draft", zap.String("draft_id", d.ID.String()), zap.Error(err))
	}
	return invoice, nil
}

func (s *draftService) release(ctx context.Context, id uuid.UUID) {
	if err := s.store.Release(context.WithoutCancel(ctx), id); err != nil {
		s.log.Warn("failed to release draft claim", zap.String("draft_id", id.String()), zap.Error(err))
	}
}

// checkUnclaimed refuses edits while a submission is in flight.
func (s *draftService) checkUnclaimed(ctx context.Context, id uuid.UUID) error {
	claimed, err := s.store.Claimed(ctx, id)
	if err != nil {
		return err
	}
	if claimed {
		return ledger.ErrDraftBusy
	}
	return nil
}

// Cancel abandons the draft and removes it from the store. No stock was
// reserved so nothing is released.
func (s *draftService) Cancel(ctx context.Context, id string) (*DraftView, error) {
	d, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := d.Cancel(); err != nil {
		return nil, err
	}
	if err := s.checkUnclaimed(ctx, d.ID); err != nil {
		return nil, err
	}
	if err := s.store.Delete(ctx, d.ID); err != nil {
		if errors.Is(err, draftstore.ErrNotFound) {
			return nil, fmt.Errorf("draft %s: %w", d.ID, ErrNotFound)
		}
		return nil, err
	}
	s.metrics.DraftOutcome("cancelled")
	return view(d, nil), nil
}
