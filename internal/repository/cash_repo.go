package repository

import (
	"context"
	"fmt"

	"almoheat/internal/ledger"
	"almoheat/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CashFilter narrows a cash listing. Limit 0 returns every match.
type CashFilter struct {
	TransactionType string
	ContactID       *uuid.UUID
	Range           ledger.DateRange
	Page            int
	Limit           int
}

type CashRepository interface {
	Create(ctx context.Context, tx *model.CashTransaction) error
	Update(ctx context.Context, tx *model.CashTransaction) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.CashTransaction, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.CashTransaction, error)
	List(ctx context.Context, filter CashFilter) ([]model.CashTransaction, int64, error)
	TotalsByType(ctx context.Context, filter CashFilter) ([]model.CashTotals, error)
}

type cashRepository struct {
	db *gorm.DB
}

func NewCashRepository(db *gorm.DB) CashRepository {
	return &cashRepository{db: db}
}

func (r *cashRepository) Create(ctx context.Context, tx *model.CashTransaction) error {
	return GetDB(ctx, r.db).Create(tx).Error
}

func (r *cashRepository) Update(ctx context.Context, tx *model.CashTransaction) error {
	return GetDB(ctx, r.db).Save(tx).Error
}

func (r *cashRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.CashTransaction{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *cashRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.CashTransaction, error) {
	var tx model.CashTransaction
	if err := GetDB(ctx, r.db).First(&tx, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &tx, nil
}

func (r *cashRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.CashTransaction, error) {
	var tx model.CashTransaction
	if err := forUpdate(GetDB(ctx, r.db)).Where("id = ?", id).First(&tx).Error; err != nil {
		return nil, notFound(err)
	}
	return &tx, nil
}

func (r *cashRepository) scope(db *gorm.DB, filter CashFilter) *gorm.DB {
	q := db.Model(&model.CashTransaction{})
	if filter.TransactionType != "" {
		q = q.Where("transaction_type = ?", filter.TransactionType)
	}
	if filter.ContactID != nil {
		q = q.Where("contact_id = ?", *filter.ContactID)
	}
	return inRange(q, "date", filter.Range)
}

func (r *cashRepository) List(ctx context.Context, filter CashFilter) ([]model.CashTransaction, int64, error) {
	var txs []model.CashTransaction
	var total int64

	db := GetDB(ctx, r.db)
	if err := r.scope(db, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := paginate(r.scope(db, filter).Order("date desc").Order("created_at desc"), filter.Page, filter.Limit)
	if err := q.Find(&txs).Error; err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

func (r *cashRepository) TotalsByType(ctx context.Context, filter CashFilter) ([]model.CashTotals, error) {
	var totals []model.CashTotals
	if err := r.scope(GetDB(ctx, r.db), filter).
		Select("transaction_type, COALESCE(SUM(amount), 0) AS total").
		Group("transaction_type").
		Scan(&totals).Error; err != nil {
		return nil, fmt.Errorf("failed to sum cash transactions: %w", err)
	}
	return totals, nil
}
