package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"almoheat/internal/database"
	"almoheat/internal/ledger"
	"almoheat/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	// every pooled connection would otherwise get its own empty database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(n int) time.Time { return time.Date(2024, 3, n, 12, 0, 0, 0, time.UTC) }

func TestProductRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProductRepository(db)
	ctx := context.Background()

	cement := &model.Product{
		Name: "Cement Bag", UnitType: "dual", Cost: d("10"), Price: d("12"),
		StockCount: d("3"), StockWeight: d("150"), WeightPerUnit: decimal.NewNullDecimal(d("50")),
	}
	bolts := &model.Product{
		Name: "Bolts", UnitType: "simple", Cost: d("1"), Price: d("2"),
		StockCount: d("40"), MinQuantity: decimal.NewNullDecimal(d("50")),
	}
	nails := &model.Product{Name: "Nails", UnitType: "simple", StockCount: d("100")}
	for _, p := range []*model.Product{cement, bolts, nails} {
		require.NoError(t, repo.Create(ctx, p))
		assert.NotEqual(t, uuid.Nil, p.ID)
	}

	t.Run("FindByID round trips decimals", func(t *testing.T) {
		found, err := repo.FindByID(ctx, cement.ID)
		require.NoError(t, err)
		assert.Equal(t, "Cement Bag", found.Name)
		assert.True(t, found.WeightPerUnit.Valid)
		assert.True(t, d("50").Equal(found.WeightPerUnit.Decimal))
		assert.False(t, found.MinQuantity.Valid)
	})

	t.Run("search is case insensitive", func(t *testing.T) {
		got, total, err := repo.List(ctx, ProductFilter{Search: "CEM", Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, got, 1)
		assert.Equal(t, cement.ID, got[0].ID)
	})

	t.Run("low stock uses own threshold or default", func(t *testing.T) {
		got, total, err := repo.List(ctx, ProductFilter{LowStockOnly: true, DefaultMinQuantity: d("5"), Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		names := []string{got[0].Name, got[1].Name}
		assert.ElementsMatch(t, []string{"Bolts", "Cement Bag"}, names)
	})

	t.Run("UpdateStock writes both columns", func(t *testing.T) {
		require.NoError(t, repo.UpdateStock(ctx, cement.ID, d("2"), d("100")))
		found, err := repo.FindByIDForUpdate(ctx, cement.ID)
		require.NoError(t, err)
		assert.True(t, d("2").Equal(found.StockCount))
		assert.True(t, d("100").Equal(found.StockWeight))
	})

	t.Run("delete is soft and reports missing rows", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, nails.ID))
		_, err := repo.FindByID(ctx, nails.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, nails.ID), ErrNotFound)

		n, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})
}

func TestContactRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewContactRepository(db)
	ctx := context.Background()

	acme := &model.Contact{Name: "ACME Trading", ContactType: model.ContactTypeCustomer, Phone: "0100"}
	supplier := &model.Contact{Name: "Steel Works", ContactType: model.ContactTypeSupplier}
	require.NoError(t, repo.Create(ctx, acme))
	require.NoError(t, repo.Create(ctx, supplier))

	t.Run("FindByName ignores case and padding", func(t *testing.T) {
		found, err := repo.FindByName(ctx, "  acme trading ")
		require.NoError(t, err)
		assert.Equal(t, acme.ID, found.ID)

		_, err = repo.FindByName(ctx, "nobody")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("List filters by type", func(t *testing.T) {
		got, total, err := repo.List(ctx, model.ContactTypeSupplier, "", 1, 20)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, supplier.ID, got[0].ID)

		_, total, err = repo.List(ctx, "", "0100", 1, 20)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})

	t.Run("AdjustBalance accumulates", func(t *testing.T) {
		at := day(3)
		require.NoError(t, repo.AdjustBalance(ctx, acme.ID, d("100.5"), &at))
		require.NoError(t, repo.AdjustBalance(ctx, acme.ID, d("-40"), nil))

		found, err := repo.FindByID(ctx, acme.ID)
		require.NoError(t, err)
		assert.True(t, d("60.5").Equal(found.Balance), found.Balance.String())
		require.NotNil(t, found.LastTransactionAt)
		assert.True(t, at.Equal(*found.LastTransactionAt))

		assert.ErrorIs(t, repo.AdjustBalance(ctx, uuid.New(), d("1"), nil), ErrNotFound)
	})

	t.Run("AdjustBalance reaches soft-deleted contacts", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, supplier.ID))
		assert.NoError(t, repo.AdjustBalance(ctx, supplier.ID, d("5"), nil))
	})
}

func seedInvoice(t *testing.T, repo InvoiceRepository, number, typ, status string, contactID *uuid.UUID, date time.Time, productID uuid.UUID, qty, total string) *model.Invoice {
	t.Helper()
	inv := &model.Invoice{
		InvoiceNumber: number,
		InvoiceType:   typ,
		Status:        status,
		ContactID:     contactID,
		Date:          date,
		Subtotal:      d(total),
		Discount:      decimal.Zero,
		Total:         d(total),
		Items: []model.InvoiceItem{
			{Position: 1, ProductID: productID, ProductName: "Widget", UnitType: "simple", SaleUnit: "count",
				Quantity: d(qty), UnitPrice: d(total).Div(d(qty)), Total: d(total), CountChange: d(qty)},
			{Position: 0, ProductID: productID, ProductName: "Widget", UnitType: "simple", SaleUnit: "count",
				Quantity: d("0.5"), UnitPrice: decimal.Zero, Total: decimal.Zero, CountChange: d("0.5")},
		},
	}
	require.NoError(t, repo.Create(context.Background(), inv))
	return inv
}

func TestInvoiceRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewInvoiceRepository(db)
	ctx := context.Background()

	contactID := uuid.New()
	productID := uuid.New()
	first := seedInvoice(t, repo, "INV-20240301-00001", "sale", model.InvoiceStatusPending, &contactID, day(1), productID, "2", "20")
	seedInvoice(t, repo, "INV-20240310-00001", "sale", model.InvoiceStatusPaid, nil, day(10), productID, "1", "15")
	seedInvoice(t, repo, "INV-20240310-00002", "purchase", model.InvoiceStatusPending, &contactID, day(10), productID, "10", "50")
	seedInvoice(t, repo, "INV-20240320-00001", "sale", model.InvoiceStatusCancelled, nil, day(20), productID, "3", "99")

	t.Run("FindByID loads items in position order", func(t *testing.T) {
		found, err := repo.FindByID(ctx, first.ID)
		require.NoError(t, err)
		require.Len(t, found.Items, 2)
		assert.Equal(t, 0, found.Items[0].Position)
		assert.Equal(t, 1, found.Items[1].Position)

		locked, err := repo.FindByIDForUpdate(ctx, first.ID)
		require.NoError(t, err)
		assert.Len(t, locked.Items, 2)
	})

	t.Run("List filters by contact type and range", func(t *testing.T) {
		_, total, err := repo.List(ctx, InvoiceFilter{ContactID: &contactID})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)

		got, total, err := repo.List(ctx, InvoiceFilter{InvoiceType: "sale", Range: ledger.DateRange{Start: day(5), End: day(15)}})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, "INV-20240310-00001", got[0].InvoiceNumber)

		got, _, err = repo.List(ctx, InvoiceFilter{Page: 1, Limit: 2})
		require.NoError(t, err)
		assert.Len(t, got, 2)
		assert.Equal(t, "INV-20240320-00001", got[0].InvoiceNumber, "newest first")
	})

	t.Run("TotalsByType skips cancelled invoices", func(t *testing.T) {
		totals, err := repo.TotalsByType(ctx, ledger.DateRange{})
		require.NoError(t, err)
		byType := map[string]model.InvoiceTotals{}
		for _, tt := range totals {
			byType[tt.InvoiceType] = tt
		}
		assert.Equal(t, int64(2), byType["sale"].Count)
		assert.True(t, d("35").Equal(byType["sale"].Total))
		assert.True(t, d("50").Equal(byType["purchase"].Total))
	})

	t.Run("TopProducts sums count changes", func(t *testing.T) {
		ranking, err := repo.TopProducts(ctx, "sale", ledger.DateRange{}, 5)
		require.NoError(t, err)
		require.Len(t, ranking, 1)
		assert.Equal(t, productID.String(), ranking[0].ProductID)
		assert.True(t, d("4").Equal(ranking[0].TotalCount), ranking[0].TotalCount.String())
	})

	t.Run("numbering helpers", func(t *testing.T) {
		n, err := repo.CountByPrefix(ctx, "INV-20240310-")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		exists, err := repo.ExistsByNumber(ctx, "INV-20240301-00001")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("status update and delete", func(t *testing.T) {
		require.NoError(t, repo.UpdateStatus(ctx, first.ID, model.InvoiceStatusPaid))
		found, err := repo.FindByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, model.InvoiceStatusPaid, found.Status)

		require.NoError(t, repo.Delete(ctx, first.ID))
		_, err = repo.FindByID(ctx, first.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		var orphans int64
		require.NoError(t, db.Model(&model.InvoiceItem{}).Where("invoice_id = ?", first.ID).Count(&orphans).Error)
		assert.Zero(t, orphans)
		assert.ErrorIs(t, repo.Delete(ctx, first.ID), ErrNotFound)
	})
}

func TestCashRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCashRepository(db)
	ctx := context.Background()
	contactID := uuid.New()

	for _, tx := range []*model.CashTransaction{
		{TransactionType: "income", Amount: d("100"), Date: day(1), ContactID: &contactID},
		{TransactionType: "income", Amount: d("25.5"), Date: day(8)},
		{TransactionType: "expense", Amount: d("30"), Date: day(9), Category: "rent"},
	} {
		require.NoError(t, repo.Create(ctx, tx))
	}

	totals, err := repo.TotalsByType(ctx, CashFilter{})
	require.NoError(t, err)
	got := map[string]decimal.Decimal{}
	for _, tt := range totals {
		got[tt.TransactionType] = tt.Total
	}
	assert.True(t, d("125.5").Equal(got["income"]))
	assert.True(t, d("30").Equal(got["expense"]))

	list, total, err := repo.List(ctx, CashFilter{Range: ledger.DateRange{Start: day(5)}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, "expense", list[0].TransactionType)

	_, total, err = repo.List(ctx, CashFilter{ContactID: &contactID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	assert.ErrorIs(t, repo.Delete(ctx, uuid.New()), ErrNotFound)
}

func TestStockMovementAndAuditRepositories(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	movements := NewStockMovementRepository(db)
	audits := NewAuditRepository(db)

	productID := uuid.New()
	invoiceID := uuid.New()
	for i := 0; i < 3; i++ {
		require.NoError(t, movements.Create(ctx, &model.StockMovement{
			ProductID: productID, InvoiceID: &invoiceID, Reason: model.MovementSale,
			CountDelta: d("-1"), CountAfter: decimal.NewFromInt(int64(10 - i)),
		}))
	}
	list, total, err := movements.ListByProduct(ctx, productID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, list, 2)

	byInvoice, err := movements.ListByInvoice(ctx, invoiceID)
	require.NoError(t, err)
	assert.Len(t, byInvoice, 3)

	require.NoError(t, audits.Log(ctx, &model.AuditLog{Action: model.ActionCreateInvoice, EntityID: invoiceID.String()}))
	require.NoError(t, audits.Log(ctx, &model.AuditLog{Action: model.ActionDeleteInvoice, EntityID: invoiceID.String()}))
	logs, total, err := audits.List(ctx, model.ActionDeleteInvoice, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, model.ActionDeleteInvoice, logs[0].Action)
}

func TestTransactionManager(t *testing.T) {
	db := setupTestDB(t)
	tm := NewTransactionManager(db)
	repo := NewContactRepository(db)
	ctx := context.Background()

	t.Run("rolls back on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := tm.RunInTx(ctx, func(txCtx context.Context) error {
			require.NoError(t, repo.Create(txCtx, &model.Contact{Name: "Ghost"}))
			return boom
		})
		assert.ErrorIs(t, err, boom)
		n, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("nested calls join the outer transaction", func(t *testing.T) {
		err := tm.RunInTx(ctx, func(txCtx context.Context) error {
			return tm.RunInTx(txCtx, func(inner context.Context) error {
				return repo.Create(inner, &model.Contact{Name: "Kept"})
			})
		})
		require.NoError(t, err)
		n, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}

func newMockProductRepository(t *testing.T) (ProductRepository, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true, Logger: logger.Discard})
	require.NoError(t, err)
	return NewProductRepository(gormDB), mock
}

func TestProductRepository_FindByIDForUpdate_LocksRow(t *testing.T) {
	repo, mock := newMockProductRepository(t)
	id := uuid.New()

	rows := sqlmock.NewRows([]string{"id", "name", "unit_type", "stock_count", "stock_weight"}).
		AddRow(id.String(), "Cement", "dual", "10", "500")
	mock.ExpectQuery(`SELECT \* FROM "products" WHERE id = \$1 AND "products"\."deleted_at" IS NULL ORDER BY .* FOR UPDATE`).
		WithArgs(id, 1).
		WillReturnRows(rows)

	p, err := repo.FindByIDForUpdate(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, p.ID)
	assert.True(t, d("500").Equal(p.StockWeight))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_FindByID_MapsNotFound(t *testing.T) {
	repo, mock := newMockProductRepository(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM "products" WHERE id = \$1`).
		WithArgs(id, 1).
		WillReturnError(gorm.ErrRecordNotFound)

	p, err := repo.FindByID(context.Background(), id)
	assert.Nil(t, p)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
