package service

import (
	"context"
	"fmt"

	"almoheat/internal/ledger"
	"almoheat/internal/model"
	"almoheat/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DTOs
type ProductRequest struct {
	Name          string              `json:"name" binding:"required,max=255"`
	UnitType      string              `json:"unit_type" binding:"omitempty,oneof=simple dual"`
	Cost          decimal.Decimal     `json:"cost" swaggertype:"string"`
	Price         decimal.Decimal     `json:"price" swaggertype:"string"`
	StockCount    decimal.Decimal     `json:"stock_count" swaggertype:"string"`
	WeightPerUnit decimal.NullDecimal `json:"weight_per_unit" swaggertype:"string"`
	MinQuantity   decimal.NullDecimal `json:"min_quantity" swaggertype:"string"`
	Description   string              `json:"description"`
}

type ProductResponse struct {
	model.Product
	Available         ledger.AvailableStock `json:"available"`
	LowStock          bool                  `json:"low_stock"`
	LowStockThreshold decimal.Decimal       `json:"low_stock_threshold"`
}

type ProductQuery struct {
	Search   string
	LowStock bool
	Page     int
	Limit    int
}

type InventoryService interface {
	GetProducts(ctx context.Context, q ProductQuery) ([]ProductResponse, int64, error)
	GetProduct(ctx context.Context, id string) (ProductResponse, error)
	CreateProduct(ctx context.Context, req ProductRequest) (ProductResponse, error)
	UpdateProduct(ctx context.Context, id string, req ProductRequest) (ProductResponse, error)
	DeleteProduct(ctx context.Context, id string) error
	GetMovements(ctx context.Context, id string, page, limit int) ([]model.StockMovement, int64, error)
	LowStockProducts(ctx context.Context) ([]model.LowStockItem, error)
}

type inventoryService struct {
	productRepo  repository.ProductRepository
	movementRepo repository.StockMovementRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	rule         ledger.LowStockRule
	events       EventPublisher
	log          *zap.Logger
}

func NewInventoryService(
	productRepo repository.ProductRepository,
	movementRepo repository.StockMovementRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	rule ledger.LowStockRule,
	events EventPublisher,
	log *zap.Logger,
) InventoryService {
	if log == nil {
		log = zap.NewNop()
	}
	return &inventoryService{
		productRepo:  productRepo,
		movementRepo: movementRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		rule:         rule,
		events:       events,
		log:          log,
	}
}

func (s *inventoryService) toResponse(p *model.Product) ProductResponse {
	lp := p.Ledger()
	return ProductResponse{
		Product:           *p,
		Available:         lp.AvailableStock(),
		LowStock:          s.rule.IsLowStock(lp),
		LowStockThreshold: s.rule.Threshold(lp),
	}
}

func (s *inventoryService) GetProducts(ctx context.Context, q ProductQuery) ([]ProductResponse, int64, error) {
	page, limit := normalizePage(q.Page, q.Limit)
	products, total, err := s.productRepo.List(ctx, repository.ProductFilter{
		Search:             q.Search,
		LowStockOnly:       q.LowStock,
		DefaultMinQuantity: s.rule.DefaultThreshold,
		Page:               page,
		Limit:              limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}

	res := make([]ProductResponse, 0, len(products))
	for i := range products {
		res = append(res, s.toResponse(&products[i]))
	}
	return res, total, nil
}

func (s *inventoryService) GetProduct(ctx context.Context, id string) (ProductResponse, error) {
	productID, err := parseID("id", id)
	if err != nil {
		return ProductResponse{}, err
	}
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return ProductResponse{}, lookupErr("product", productID, err)
	}
	return s.toResponse(product), nil
}

// apply validates req through the ledger and copies it onto p. Stock weight
// is always re-derived from the count.
func apply(p *model.Product, req ProductRequest) error {
	lp := p.Ledger()
	lp.Name = req.Name
	lp.UnitType = ledger.UnitType(req.UnitType)
	lp.Cost = req.Cost
	lp.Price = req.Price
	lp.StockCount = req.StockCount
	lp.WeightPerUnit = req.WeightPerUnit
	lp.MinQuantity = req.MinQuantity
	lp.Normalize()
	if err := lp.Validate(); err != nil {
		return err
	}
	lp.SyncStockWeight()
	p.ApplyLedger(lp)
	p.Description = req.Description
	return nil
}

func (s *inventoryService) CreateProduct(ctx context.Context, req ProductRequest) (ProductResponse, error) {
	var product model.Product
	if err := apply(&product, req); err != nil {
		return ProductResponse{}, err
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.productRepo.Create(txCtx, &product); err != nil {
			return fmt.Errorf("failed to create product: %w", err)
		}
		if product.StockCount.IsPositive() {
			if err := s.movementRepo.Create(txCtx, &model.StockMovement{
				ProductID:   product.ID,
				Reason:      model.MovementAdjustment,
				SaleUnit:    string(ledger.SaleByCount),
				CountDelta:  product.StockCount,
				WeightDelta: product.StockWeight,
				CountAfter:  product.StockCount,
				WeightAfter: product.StockWeight,
			}); err != nil {
				return fmt.Errorf("failed to record opening stock: %w", err)
			}
		}
		return recordAudit(txCtx, s.auditRepo, model.ActionCreateProduct, product.ID.String(), product.Name, req)
	})
	if err != nil {
		return ProductResponse{}, err
	}

	s.log.Info("product created", zap.String("product_id", product.ID.String()), zap.String("name", product.Name))
	notifyStock(s.events, s.rule, []*model.Product{&product})
	return s.toResponse(&product), nil
}

func (s *inventoryService) UpdateProduct(ctx context.Context, id string, req ProductRequest) (ProductResponse, error) {
	productID, err := parseID("id", id)
	if err != nil {
		return ProductResponse{}, err
	}

	var product *model.Product
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		locked, findErr := s.productRepo.FindByIDForUpdate(txCtx, productID)
		if findErr != nil {
			return lookupErr("product", productID, findErr)
		}
		product = locked
		beforeCount, beforeWeight := product.StockCount, product.StockWeight

		if err := apply(product, req); err != nil {
			return err
		}
		if err := s.productRepo.Update(txCtx, product); err != nil {
			return fmt.Errorf("failed to update product: %w", err)
		}

		// manual stock edits go on the stock card like any other movement
		if !product.StockCount.Equal(beforeCount) || !product.StockWeight.Equal(beforeWeight) {
			if err := s.movementRepo.Create(txCtx, &model.StockMovement{
				ProductID:   product.ID,
				Reason:      model.MovementAdjustment,
				SaleUnit:    string(ledger.SaleByCount),
				CountDelta:  product.StockCount.Sub(beforeCount),
				WeightDelta: product.StockWeight.Sub(beforeWeight),
				CountAfter:  product.StockCount,
				WeightAfter: product.StockWeight,
			}); err != nil {
				return fmt.Errorf("failed to record stock adjustment: %w", err)
			}
		}
		return recordAudit(txCtx, s.auditRepo, model.ActionUpdateProduct, product.ID.String(), product.Name, req)
	})
	if err != nil {
		return ProductResponse{}, err
	}

	notifyStock(s.events, s.rule, []*model.Product{product})
	return s.toResponse(product), nil
}

func (s *inventoryService) DeleteProduct(ctx context.Context, id string) error {
	productID, err := parseID("id", id)
	if err != nil {
		return err
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		product, err := s.productRepo.FindByID(txCtx, productID)
		if err != nil {
			return lookupErr("product", productID, err)
		}
		if err := s.productRepo.Delete(txCtx, productID); err != nil {
			return fmt.Errorf("failed to delete product: %w", err)
		}
		return recordAudit(txCtx, s.auditRepo, model.ActionDeleteProduct, product.ID.String(), product.Name, map[string]bool{"deleted": true})
	})
}

func (s *inventoryService) GetMovements(ctx context.Context, id string, page, limit int) ([]model.StockMovement, int64, error) {
	productID, err := parseID("id", id)
	if err != nil {
		return nil, 0, err
	}
	if _, err := s.productRepo.FindByID(ctx, productID); err != nil {
		return nil, 0, lookupErr("product", productID, err)
	}
	page, limit = normalizePage(page, limit)
	movements, total, err := s.movementRepo.ListByProduct(ctx, productID, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list stock movements: %w", err)
	}
	return movements, total, nil
}

// LowStockProducts lists every product at or below its threshold.
func (s *inventoryService) LowStockProducts(ctx context.Context) ([]model.LowStockItem, error) {
	products, err := s.productRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return lowStockItems(s.rule, products), nil
}

func lowStockItems(rule ledger.LowStockRule, products []model.Product) []model.LowStockItem {
	items := []model.LowStockItem{}
	for i := range products {
		p := &products[i]
		lp := p.Ledger()
		if !rule.IsLowStock(lp) {
			continue
		}
		items = append(items, model.LowStockItem{
			ProductID:   p.ID.String(),
			ProductName: p.Name,
			UnitType:    p.UnitType,
			StockCount:  p.StockCount,
			StockWeight: lp.AvailableStock().Weight,
			Threshold:   rule.Threshold(lp),
		})
	}
	return items
}
