package repository

import (
	"context"

	"almoheat/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StockMovementRepository interface {
	Create(ctx context.Context, movement *model.StockMovement) error
	ListByProduct(ctx context.Context, productID uuid.UUID, page, limit int) ([]model.StockMovement, int64, error)
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]model.StockMovement, error)
}

type stockMovementRepository struct {
	db *gorm.DB
}

func NewStockMovementRepository(db *gorm.DB) StockMovementRepository {
	return &stockMovementRepository{db: db}
}

func (r *stockMovementRepository) Create(ctx context.Context, movement *model.StockMovement) error {
	return GetDB(ctx, r.db).Create(movement).Error
}

func (r *stockMovementRepository) ListByProduct(ctx context.Context, productID uuid.UUID, page, limit int) ([]model.StockMovement, int64, error) {
	var movements []model.StockMovement
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.StockMovement{}).Where("product_id = ?", productID).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := paginate(db.Where("product_id = ?", productID).Order("created_at desc"), page, limit).
		Find(&movements).Error; err != nil {
		return nil, 0, err
	}
	return movements, total, nil
}

func (r *stockMovementRepository) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]model.StockMovement, error) {
	var movements []model.StockMovement
	if err := GetDB(ctx, r.db).Where("invoice_id = ?", invoiceID).Order("created_at asc").Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}
