package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"almoheat/internal/ledger"
	"almoheat/internal/model"
	"almoheat/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type CashRequest struct {
	TransactionType string          `json:"transaction_type" binding:"required"` // income|expense, or receipt|payment
	Amount          decimal.Decimal `json:"amount" swaggertype:"string"`
	Category        string          `json:"category" binding:"max=100"`
	Description     string          `json:"description"`
	ContactID       string          `json:"contact_id"`
	Date            string          `json:"date"`
}

type CashQuery struct {
	TransactionType string
	ContactID       string
	StartDate       string
	EndDate         string
	Page            int
	Limit           int
}

type CashService interface {
	GetTransactions(ctx context.Context, q CashQuery) ([]model.CashTransaction, int64, error)
	GetTransaction(ctx context.Context, id string) (*model.CashTransaction, error)
	CreateTransaction(ctx context.Context, req CashRequest) (*model.CashTransaction, error)
	UpdateTransaction(ctx context.Context, id string, req CashRequest) (*model.CashTransaction, error)
	DeleteTransaction(ctx context.Context, id string) error
	GetBalance(ctx context.Context, startDate, endDate string) (ledger.CashSummary, error)
}

type cashService struct {
	cashRepo    repository.CashRepository
	contactRepo repository.ContactRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	now         func() time.Time
}

func NewCashService(
	cashRepo repository.CashRepository,
	contactRepo repository.ContactRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) CashService {
	return &cashService{
		cashRepo:    cashRepo,
		contactRepo: contactRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *cashService) filter(q CashQuery) (repository.CashFilter, error) {
	var f repository.CashFilter
	if q.TransactionType != "" {
		t, err := ledger.ParseCashType(q.TransactionType)
		if err != nil {
			return f, err
		}
		f.TransactionType = string(t)
	}
	contactID, err := parseOptionalID("contact_id", q.ContactID)
	if err != nil {
		return f, err
	}
	f.ContactID = contactID
	if f.Range, err = ParseDateRange(q.StartDate, q.EndDate); err != nil {
		return f, err
	}
	return f, nil
}

func (s *cashService) GetTransactions(ctx context.Context, q CashQuery) ([]model.CashTransaction, int64, error) {
	f, err := s.filter(q)
	if err != nil {
		return nil, 0, err
	}
	f.Page, f.Limit = normalizePage(q.Page, q.Limit)
	txs, total, err := s.cashRepo.List(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list cash transactions: %w", err)
	}
	return txs, total, nil
}

func (s *cashService) GetTransaction(ctx context.Context, id string) (*model.CashTransaction, error) {
	txID, err := parseID("id", id)
	if err != nil {
		return nil, err
	}
	tx, err := s.cashRepo.FindByID(ctx, txID)
	if err != nil {
		return nil, lookupErr("cash transaction", txID, err)
	}
	return tx, nil
}

// build validates req and fills tx. The linked contact must exist.
func (s *cashService) build(ctx context.Context, tx *model.CashTransaction, req CashRequest) (ledger.CashType, error) {
	cashType, err := ledger.ParseCashType(req.TransactionType)
	if err != nil {
		return "", err
	}
	if err := ledger.ValidateCashAmount(req.Amount); err != nil {
		return "", err
	}
	contactID, err := parseOptionalID("contact_id", req.ContactID)
	if err != nil {
		return "", err
	}
	if contactID != nil {
		if _, err := s.contactRepo.FindByID(ctx, *contactID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return "", &ledger.ValidationError{Field: "contact_id", Message: "contact not found"}
			}
			return "", lookupErr("contact", *contactID, err)
		}
	}
	date := s.now()
	if req.Date != "" {
		if date, err = parseDate("date", req.Date, false); err != nil {
			return "", err
		}
	}

	tx.TransactionType = string(cashType)
	tx.Amount = req.Amount
	tx.Category = strings.TrimSpace(req.Category)
	tx.Description = req.Description
	tx.ContactID = contactID
	tx.Date = date
	return cashType, nil
}

func (s *cashService) settle(ctx context.Context, contactID *uuid.UUID, effect decimal.Decimal, at *time.Time) error {
	if contactID == nil {
		return nil
	}
	if err := s.contactRepo.AdjustBalance(ctx, *contactID, effect, at); err != nil {
		return fmt.Errorf("failed to adjust contact balance: %w", err)
	}
	return nil
}

func (s *cashService) CreateTransaction(ctx context.Context, req CashRequest) (*model.CashTransaction, error) {
	tx := &model.CashTransaction{}
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		cashType, err := s.build(txCtx, tx, req)
		if err != nil {
			return err
		}
		if err := s.cashRepo.Create(txCtx, tx); err != nil {
			return fmt.Errorf("failed to create cash transaction: %w", err)
		}
		if err := s.settle(txCtx, tx.ContactID, ledger.CashBalanceEffect(cashType, tx.Amount), &tx.Date); err != nil {
			return err
		}
		return recordAudit(txCtx, s.auditRepo, model.ActionCreateCash, tx.ID.String(), tx.Category, req)
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// UpdateTransaction replaces a transaction. The old balance effect is undone
// before the new one is applied, so moving it to another contact is safe.
func (s *cashService) UpdateTransaction(ctx context.Context, id string, req CashRequest) (*model.CashTransaction, error) {
	txID, err := parseID("id", id)
	if err != nil {
		return nil, err
	}

	var tx *model.CashTransaction
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		found, findErr := s.cashRepo.FindByIDForUpdate(txCtx, txID)
		if findErr != nil {
			return lookupErr("cash transaction", txID, findErr)
		}
		tx = found

		oldEffect := ledger.CashBalanceEffect(ledger.CashType(tx.TransactionType), tx.Amount)
		if err := s.settle(txCtx, tx.ContactID, oldEffect.Neg(), nil); err != nil {
			return err
		}

		cashType, err := s.build(txCtx, tx, req)
		if err != nil {
			return err
		}
		if err := s.cashRepo.Update(txCtx, tx); err != nil {
			return fmt.Errorf("failed to update cash transaction: %w", err)
		}
		if err := s.settle(txCtx, tx.ContactID, ledger.CashBalanceEffect(cashType, tx.Amount), &tx.Date); err != nil {
			return err
		}
		return recordAudit(txCtx, s.auditRepo, model.ActionUpdateCash, tx.ID.String(), tx.Category, req)
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *cashService) DeleteTransaction(ctx context.Context, id string) error {
	txID, err := parseID("id", id)
	if err != nil {
		return err
	}
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		tx, err := s.cashRepo.FindByIDForUpdate(txCtx, txID)
		if err != nil {
			return lookupErr("cash transaction", txID, err)
		}
		effect := ledger.CashBalanceEffect(ledger.CashType(tx.TransactionType), tx.Amount)
		if err := s.settle(txCtx, tx.ContactID, effect.Neg(), nil); err != nil {
			return err
		}
		if err := s.cashRepo.Delete(txCtx, txID); err != nil {
			return fmt.Errorf("failed to delete cash transaction: %w", err)
		}
		return recordAudit(txCtx, s.auditRepo, model.ActionDeleteCash, tx.ID.String(), tx.Category, map[string]string{
			"transaction_type": tx.TransactionType,
			"amount":           tx.Amount.String(),
		})
	})
}

// GetBalance sums receipts and payments in the optional window.
func (s *cashService) GetBalance(ctx context.Context, startDate, endDate string) (ledger.CashSummary, error) {
	rng, err := ParseDateRange(startDate, endDate)
	if err != nil {
		return ledger.CashSummary{}, err
	}
	return cashSummary(ctx, s.cashRepo, repository.CashFilter{Range: rng})
}

func cashSummary(ctx context.Context, repo repository.CashRepository, f repository.CashFilter) (ledger.CashSummary, error) {
	totals, err := repo.TotalsByType(ctx, f)
	if err != nil {
		return ledger.CashSummary{}, err
	}
	entries := make([]ledger.CashEntry, 0, len(totals))
	for _, t := range totals {
		entries = append(entries, ledger.CashEntry{Type: ledger.CashType(t.TransactionType), Amount: t.Total})
	}
	return ledger.CashBalance(entries), nil
}
