package repository

import (
	"context"
	"fmt"

	"almoheat/internal/ledger"
	"almoheat/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InvoiceFilter narrows an invoice listing. Limit 0 returns every match.
type InvoiceFilter struct {
	ContactID   *uuid.UUID
	InvoiceType string
	Status      string
	Range       ledger.DateRange
	Page        int
	Limit       int
}

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *model.Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	List(ctx context.Context, filter InvoiceFilter) ([]model.Invoice, int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountByPrefix(ctx context.Context, prefix string) (int64, error)
	ExistsByNumber(ctx context.Context, number string) (bool, error)
	Count(ctx context.Context) (int64, error)
	TotalsByType(ctx context.Context, r ledger.DateRange) ([]model.InvoiceTotals, error)
	TopProducts(ctx context.Context, invoiceType string, r ledger.DateRange, limit int) ([]model.ProductRanking, error)
}

type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func preloadItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position asc")
	})
}

// Create inserts the invoice together with its items.
func (r *invoiceRepository) Create(ctx context.Context, invoice *model.Invoice) error {
	return GetDB(ctx, r.db).Create(invoice).Error
}

func (r *invoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := preloadItems(GetDB(ctx, r.db)).First(&invoice, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &invoice, nil
}

func (r *invoiceRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	db := GetDB(ctx, r.db)
	if err := forUpdate(db).Where("id = ?", id).First(&invoice).Error; err != nil {
		return nil, notFound(err)
	}
	if err := db.Where("invoice_id = ?", id).Order("position asc").Find(&invoice.Items).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) scope(db *gorm.DB, filter InvoiceFilter) *gorm.DB {
	q := db.Model(&model.Invoice{})
	if filter.ContactID != nil {
		q = q.Where("contact_id = ?", *filter.ContactID)
	}
	if filter.InvoiceType != "" {
		q = q.Where("invoice_type = ?", filter.InvoiceType)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	return inRange(q, "date", filter.Range)
}

func (r *invoiceRepository) List(ctx context.Context, filter InvoiceFilter) ([]model.Invoice, int64, error) {
	var invoices []model.Invoice
	var total int64

	db := GetDB(ctx, r.db)
	if err := r.scope(db, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := paginate(preloadItems(r.scope(db, filter)).Order("date desc").Order("created_at desc"), filter.Page, filter.Limit)
	if err := q.Find(&invoices).Error; err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

func (r *invoiceRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return GetDB(ctx, r.db).Model(&model.Invoice{}).Where("id = ?", id).Update("status", status).Error
}

// Delete removes the invoice and its items. Stock movements are history and
// stay.
func (r *invoiceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("invoice_id = ?", id).Delete(&model.InvoiceItem{}).Error; err != nil {
		return err
	}
	res := db.Where("id = ?", id).Delete(&model.Invoice{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *invoiceRepository) CountByPrefix(ctx context.Context, prefix string) (int64, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(&model.Invoice{}).Where("invoice_number LIKE ?", prefix+"%").Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *invoiceRepository) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(&model.Invoice{}).Where("invoice_number = ?", number).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *invoiceRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := GetDB(ctx, r.db).Model(&model.Invoice{}).Count(&n).Error
	return n, err
}

// TotalsByType sums non-cancelled invoices per type.
func (r *invoiceRepository) TotalsByType(ctx context.Context, rng ledger.DateRange) ([]model.InvoiceTotals, error) {
	var totals []model.InvoiceTotals
	q := GetDB(ctx, r.db).Model(&model.Invoice{}).
		Select("invoice_type, COUNT(*) AS count, COALESCE(SUM(total), 0) AS total").
		Where("status <> ?", model.InvoiceStatusCancelled)
	if err := inRange(q, "date", rng).Group("invoice_type").Scan(&totals).Error; err != nil {
		return nil, fmt.Errorf("failed to sum invoices: %w", err)
	}
	return totals, nil
}

// TopProducts ranks products by quantity moved on non-cancelled invoices of
// the given type.
func (r *invoiceRepository) TopProducts(ctx context.Context, invoiceType string, rng ledger.DateRange, limit int) ([]model.ProductRanking, error) {
	var rankings []model.ProductRanking
	q := GetDB(ctx, r.db).Table("invoice_items").
		Select("invoice_items.product_id AS product_id, MAX(invoice_items.product_name) AS product_name, " +
			"COALESCE(SUM(invoice_items.count_change), 0) AS total_count, COALESCE(SUM(invoice_items.total), 0) AS total_value").
		Joins("JOIN invoices ON invoices.id = invoice_items.invoice_id").
		Where("invoices.invoice_type = ? AND invoices.status <> ?", invoiceType, model.InvoiceStatusCancelled)
	q = inRange(q, "invoices.date", rng).Group("invoice_items.product_id").Order("total_count DESC")
	if err := paginate(q, 1, limit).Scan(&rankings).Error; err != nil {
		return nil, fmt.Errorf("failed to query top products: %w", err)
	}
	return rankings, nil
}
