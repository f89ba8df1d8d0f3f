package service

import (
	"context"
	"fmt"
	"strings"

	"almoheat/internal/ledger"
	"almoheat/internal/model"
	"almoheat/internal/repository"

	"github.com/shopspring/decimal"
)

// --- Contact DTOs ---

type CreateContactRequest struct {
	Name           string          `json:"name" binding:"required,max=255"`
	ContactType    string          `json:"contact_type" binding:"omitempty,oneof=customer supplier"`
	Phone          string          `json:"phone" binding:"max=50"`
	Email          string          `json:"email" binding:"omitempty,email"`
	Address        string          `json:"address"`
	Notes          string          `json:"notes"`
	OpeningBalance decimal.Decimal `json:"opening_balance" swaggertype:"string"`
}

// UpdateContactRequest uses pointers so absent fields stay untouched.
type UpdateContactRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=255"`
	ContactType *string `json:"contact_type" binding:"omitempty,oneof=customer supplier"`
	Phone       *string `json:"phone"`
	Email       *string `json:"email" binding:"omitempty,email|eq="` // "" clears it
	Address     *string `json:"address"`
	Notes       *string `json:"notes"`
}

type ContactQuery struct {
	ContactType string
	Search      string
	Page        int
	Limit       int
}

type ContactService interface {
	GetContacts(ctx context.Context, q ContactQuery) ([]model.Contact, int64, error)
	GetContact(ctx context.Context, id string) (*model.Contact, error)
	CreateContact(ctx context.Context, req CreateContactRequest) (*model.Contact, error)
	UpdateContact(ctx context.Context, id string, req UpdateContactRequest) (*model.Contact, error)
	DeleteContact(ctx context.Context, id string) error
}

type contactService struct {
	contactRepo repository.ContactRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
}

func NewContactService(
	contactRepo repository.ContactRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) ContactService {
	return &contactService{
		contactRepo: contactRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
	}
}

func (s *contactService) GetContacts(ctx context.Context, q ContactQuery) ([]model.Contact, int64, error) {
	page, limit := normalizePage(q.Page, q.Limit)
	contacts, total, err := s.contactRepo.List(ctx, q.ContactType, q.Search, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list contacts: %w", err)
	}
	return contacts, total, nil
}

func (s *contactService) GetContact(ctx context.Context, id string) (*model.Contact, error) {
	contactID, err := parseID("id", id)
	if err != nil {
		return nil, err
	}
	contact, err := s.contactRepo.FindByID(ctx, contactID)
	if err != nil {
		return nil, lookupErr("contact", contactID, err)
	}
	return contact, nil
}

func (s *contactService) CreateContact(ctx context.Context, req CreateContactRequest) (*model.Contact, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, &ledger.ValidationError{Field: "name", Message: "is required"}
	}
	contactType := req.ContactType
	if contactType == "" {
		contactType = model.ContactTypeCustomer
	}

	contact := &model.Contact{
		Name:        name,
		ContactType: contactType,
		Phone:       strings.TrimSpace(req.Phone),
		Email:       strings.TrimSpace(req.Email),
		Address:     req.Address,
		Notes:       req.Notes,
		Balance:     req.OpeningBalance,
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.contactRepo.Create(txCtx, contact); err != nil {
			return fmt.Errorf("failed to create contact: %w", err)
		}
		return recordAudit(txCtx, s.auditRepo, model.ActionCreateContact, contact.ID.String(), contact.Name, req)
	})
	if err != nil {
		return nil, err
	}
	return contact, nil
}

func (s *contactService) UpdateContact(ctx context.Context, id string, req UpdateContactRequest) (*model.Contact, error) {
	contactID, err := parseID("id", id)
	if err != nil {
		return nil, err
	}

	var contact *model.Contact
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		found, findErr := s.contactRepo.FindByID(txCtx, contactID)
		if findErr != nil {
			return lookupErr("contact", contactID, findErr)
		}
		contact = found

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return &ledger.ValidationError{Field: "name", Message: "is required"}
			}
			contact.Name = name
		}
		if req.ContactType != nil {
			contact.ContactType = *req.ContactType
		}
		if req.Phone != nil {
			contact.Phone = strings.TrimSpace(*req.Phone)
		}
		if req.Email != nil {
			contact.Email = strings.TrimSpace(*req.Email)
		}
		if req.Address != nil {
			contact.Address = *req.Address
		}
		if req.Notes != nil {
			contact.Notes = *req.Notes
		}

		// balance is owned by invoices and cash; never written from here
		if err := s.contactRepo.Update(txCtx, contact); err != nil {
			return fmt.Errorf("failed to update contact: %w", err)
		}
		return recordAudit(txCtx, s.auditRepo, model.ActionUpdateContact, contact.ID.String(), contact.Name, req)
	})
	if err != nil {
		return nil, err
	}
	return contact, nil
}

// DeleteContact soft deletes; invoices and cash rows keep their reference.
func (s *contactService) DeleteContact(ctx context.Context, id string) error {
	contactID, err := parseID("id", id)
	if err != nil {
		return err
	}
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		contact, err := s.contactRepo.FindByID(txCtx, contactID)
		if err != nil {
			return lookupErr("contact", contactID, err)
		}
		if err := s.contactRepo.Delete(txCtx, contactID); err != nil {
			return fmt.Errorf("failed to delete contact: %w", err)
		}
		return recordAudit(txCtx, s.auditRepo, model.ActionDeleteContact, contact.ID.String(), contact.Name, map[string]bool{"deleted": true})
	})
}
