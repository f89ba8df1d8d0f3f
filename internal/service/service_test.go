package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"almoheat/internal/database"
	"almoheat/internal/draftstore"
	"almoheat/internal/ledger"
	"almoheat/internal/metrics"
	"almoheat/internal/model"
	"almoheat/internal/repository"
	ws "almoheat/internal/websocket"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(event string, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) count(event string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e == event {
			n++
		}
	}
	return n
}

type fixture struct {
	ctx       context.Context
	products  repository.ProductRepository
	contacts  repository.ContactRepository
	invoices  repository.InvoiceRepository
	cash      repository.CashRepository
	movements repository.StockMovementRepository
	audits    repository.AuditRepository
	events    *recordingPublisher
	metrics   *metrics.Metrics

	inventory InventoryService
	contact   ContactService
	invoice   InvoiceService
	cashSvc   CashService
	draft     DraftService
	report    ReportService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	f := &fixture{
		ctx:       context.Background(),
		products:  repository.NewProductRepository(db),
		contacts:  repository.NewContactRepository(db),
		invoices:  repository.NewInvoiceRepository(db),
		cash:      repository.NewCashRepository(db),
		movements: repository.NewStockMovementRepository(db),
		audits:    repository.NewAuditRepository(db),
		events:    &recordingPublisher{},
		metrics:   metrics.New(),
	}
	tx := repository.NewTransactionManager(db)
	rule := ledger.NewLowStockRule(decimal.NewFromInt(5))

	f.inventory = NewInventoryService(f.products, f.movements, f.audits, tx, rule, f.events, nil)
	f.contact = NewContactService(f.contacts, f.audits, tx)
	f.invoice = NewInvoiceService(f.invoices, f.products, f.contacts, f.movements, f.audits, tx, rule, f.events, f.metrics, nil)
	f.cashSvc = NewCashService(f.cash, f.contacts, f.audits, tx)
	f.draft = NewDraftService(draftstore.NewMemoryStore(time.Hour), f.products, f.contacts, f.invoice, f.metrics, nil)
	f.report = NewReportService(f.products, f.contacts, f.invoices, f.cash, rule, f.metrics)
	return f
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	if !d(want).Equal(got) {
		assert.Fail(t, fmt.Sprintf("want %s, got %s", want, got), msgAndArgs...)
	}
}

// seed creates a dual product (cement, 50 per bag), a simple one (bolts) and
// a customer.
func (f *fixture) seed(t *testing.T) (cement, bolts ProductResponse, customer *model.Contact) {
	t.Helper()
	var err error
	cement, err = f.inventory.CreateProduct(f.ctx, ProductRequest{
		Name: "Cement", UnitType: "dual", Cost: d("10"), Price: d("12"),
		StockCount: d("10"), WeightPerUnit: decimal.NewNullDecimal(d("50")),
	})
	require.NoError(t, err)
	bolts, err = f.inventory.CreateProduct(f.ctx, ProductRequest{
		Name: "Bolts", UnitType: "simple", Cost: d("1"), Price: d("2"), StockCount: d("100"),
	})
	require.NoError(t, err)
	customer, err = f.contact.CreateContact(f.ctx, CreateContactRequest{Name: "Omar Stores"})
	require.NoError(t, err)
	return cement, bolts, customer
}

func (f *fixture) product(t *testing.T, id string) *model.Product {
	t.Helper()
	p, err := f.inventory.GetProduct(f.ctx, id)
	require.NoError(t, err)
	return &p.Product
}

func (f *fixture) balance(t *testing.T, c *model.Contact) decimal.Decimal {
	t.Helper()
	got, err := f.contacts.FindByID(f.ctx, c.ID)
	require.NoError(t, err)
	return got.Balance
}

func TestParseDateRange(t *testing.T) {
	t.Run("date only end runs to end of day", func(t *testing.T) {
		r, err := ParseDateRange("2024-03-01", "2024-03-31")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), r.Start)
		assert.True(t, r.Contains(time.Date(2024, 3, 31, 23, 59, 0, 0, time.UTC)))
		assert.False(t, r.Contains(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("RFC3339 is taken as is", func(t *testing.T) {
		r, err := ParseDateRange("", "2024-03-31T10:00:00Z")
		require.NoError(t, err)
		assert.True(t, r.Start.IsZero())
		assert.Equal(t, time.Date(2024, 3, 31, 10, 0, 0, 0, time.UTC), r.End.UTC())
	})

	t.Run("empty is open", func(t *testing.T) {
		r, err := ParseDateRange("", "")
		require.NoError(t, err)
		assert.True(t, r.IsZero())
	})

	t.Run("rejects bad input", func(t *testing.T) {
		var ve *ledger.ValidationError

		_, err := ParseDateRange("03/01/2024", "")
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "start_date", ve.Field)

		_, err = ParseDateRange("2024-03-10", "2024-03-01")
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "end_date", ve.Field)
	})
}

func TestInventoryService(t *testing.T) {
	f := newFixture(t)
	cement, bolts, _ := f.seed(t)

	t.Run("dual stock weight is derived from count", func(t *testing.T) {
		assertDecimal(t, "500", cement.StockWeight)
		assert.True(t, cement.Available.Weight.Valid)
		assert.False(t, cement.LowStock)
	})

	t.Run("opening stock goes on the stock card", func(t *testing.T) {
		moves, total, err := f.inventory.GetMovements(f.ctx, bolts.ID.String(), 1, 10)
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		assert.Equal(t, model.MovementAdjustment, moves[0].Reason)
		assertDecimal(t, "100", moves[0].CountDelta)
	})

	t.Run("manual stock edit records an adjustment", func(t *testing.T) {
		res, err := f.inventory.UpdateProduct(f.ctx, bolts.ID.String(), ProductRequest{
			Name: "Bolts", UnitType: "simple", Cost: d("1"), Price: d("2"), StockCount: d("4"),
		})
		require.NoError(t, err)
		assert.True(t, res.LowStock)

		moves, _, err := f.inventory.GetMovements(f.ctx, bolts.ID.String(), 1, 10)
		require.NoError(t, err)
		require.Len(t, moves, 2)

		low, err := f.inventory.LowStockProducts(f.ctx)
		require.NoError(t, err)
		require.Len(t, low, 1)
		assert.Equal(t, "Bolts", low[0].ProductName)
		assertDecimal(t, "5", low[0].Threshold)
	})

	t.Run("dual product needs a weight per unit", func(t *testing.T) {
		_, err := f.inventory.CreateProduct(f.ctx, ProductRequest{Name: "Sand", UnitType: "dual", StockCount: d("1")})
		var ve *ledger.ValidationError
		require.ErrorAs(t, err, &ve)
	})

	t.Run("unknown product", func(t *testing.T) {
		_, err := f.inventory.GetProduct(f.ctx, "9b0b3c8e-0000-4000-8000-000000000000")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = f.inventory.GetProduct(f.ctx, "nope")
		var ve *ledger.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "id", ve.Field)
	})

	assert.Positive(t, f.events.count(ws.EventStockUpdated))
	assert.Positive(t, f.events.count(ws.EventStockLow))
}

func TestInvoiceService_CreateSale(t *testing.T) {
	f := newFixture(t)
	cement, bolts, customer := f.seed(t)

	inv, err := f.invoice.CreateInvoice(f.ctx, CreateInvoiceRequest{
		Date:      "2024-03-15",
		ContactID: customer.ID.String(),
		Items: []InvoiceItemRequest{
			{ProductID: cement.ID.String(), Quantity: d("2")},
			{ProductID: cement.ID.String(), Quantity: d("100"), SaleUnit: "weight", UnitPrice: decimal.NewNullDecimal(d("0.3"))},
			{ProductID: bolts.ID.String(), Quantity: d("10"), UnitPrice: decimal.NewNullDecimal(d("1.5"))},
		},
		Discount: d("9"),
	})
	require.NoError(t, err)

	assert.Equal(t, "INV-20240315-00001", inv.InvoiceNumber)
	assert.Equal(t, model.InvoiceStatusPending, inv.Status)
	assertDecimal(t, "69", inv.Subtotal)
	assertDecimal(t, "60", inv.Total)

	stored, err := f.invoice.GetInvoice(f.ctx, inv.ID.String())
	require.NoError(t, err)
	require.Len(t, stored.Items, 3)
	assertDecimal(t, "12", stored.Items[0].UnitPrice, "sale lines default to the product price")
	assertDecimal(t, "2", stored.Items[1].CountChange, "weight line moves count by weight / weight_per_unit")
	assertDecimal(t, "100", stored.Items[1].WeightChange)

	c := f.product(t, cement.ID.String())
	assertDecimal(t, "6", c.StockCount)
	assertDecimal(t, "300", c.StockWeight)
	assertDecimal(t, "90", f.product(t, bolts.ID.String()).StockCount)
	assertDecimal(t, "60", f.balance(t, customer))

	moves, err := f.movements.ListByInvoice(f.ctx, inv.ID)
	require.NoError(t, err)
	assert.Len(t, moves, 3)

	assert.Equal(t, 1, f.events.count(ws.EventInvoiceCreated))
	series, err := testutil.GatherAndCount(f.metrics.Registry(), "almoheat_invoices_created_total")
	require.NoError(t, err)
	assert.Equal(t, 1, series)
}

func TestInvoiceService_CreatePurchase(t *testing.T) {
	f := newFixture(t)
	cement, _, _ := f.seed(t)

	inv, err := f.invoice.CreateInvoice(f.ctx, CreateInvoiceRequest{
		InvoiceType:    "purchase",
		Date:           "2024-03-15",
		NewContactName: "Acme Supply",
		Items:          []InvoiceItemRequest{{ProductID: cement.ID.String(), Quantity: d("5")}},
	})
	require.NoError(t, err)
	assertDecimal(t, "50", inv.Total, "purchase lines default to the product cost")
	require.NotNil(t, inv.ContactID)

	supplier, err := f.contacts.FindByID(f.ctx, *inv.ContactID)
	require.NoError(t, err)
	assert.Equal(t, model.ContactTypeSupplier, supplier.ContactType)
	assertDecimal(t, "-50", supplier.Balance)
	assertDecimal(t, "15", f.product(t, cement.ID.String()).StockCount)

	again, err := f.invoice.CreateInvoice(f.ctx, CreateInvoiceRequest{
		InvoiceType:    "purchase",
		Date:           "2024-03-15",
		NewContactName: "acme supply",
		Items:          []InvoiceItemRequest{{ProductID: cement.ID.String(), Quantity: d("1")}},
	})
	require.NoError(t, err)
	assert.Equal(t, supplier.ID, *again.ContactID, "an existing name is reused")
	assert.Equal(t, "INV-20240315-00002", again.InvoiceNumber)
}

func TestInvoiceService_CreateRejects(t *testing.T) {
	f := newFixture(t)
	cement, bolts, customer := f.seed(t)

	t.Run("insufficient stock rolls everything back", func(t *testing.T) {
		_, err := f.invoice.CreateInvoice(f.ctx, CreateInvoiceRequest{
			ContactID: customer.ID.String(),
			Items: []InvoiceItemRequest{
				{ProductID: bolts.ID.String(), Quantity: d("10")},
				{ProductID: cement.ID.String(), Quantity: d("11")},
			},
		})
		var stockErr *ledger.StockInsufficientError
		require.ErrorAs(t, err, &stockErr)
		assertDecimal(t, "10", stockErr.Available)

		assertDecimal(t, "100", f.product(t, bolts.ID.String()).StockCount)
		assertDecimal(t, "0", f.balance(t, customer))
		n, err := f.invoices.Count(f.ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("repeated product lines share the stock", func(t *testing.T) {
		_, err := f.invoice.CreateInvoice(f.ctx, CreateInvoiceRequest{
			ContactID: customer.ID.String(),
			Items: []InvoiceItemRequest{
				{ProductID: cement.ID.String(), Quantity: d("6")},
				{ProductID: cement.ID.String(), Quantity: d("250"), SaleUnit: "weight"},
			},
		})
		var stockErr *ledger.StockInsufficientError
		require.ErrorAs(t, err, &stockErr)
		assertDecimal(t, "200", stockErr.Available)
		assertDecimal(t, "10", f.product(t, cement.ID.String()).StockCount)
	})

	t.Run("unknown product names the line", func(t *testing.T) {
		_, err := f.invoice.CreateInvoice(f.ctx, CreateInvoiceRequest{
			ContactID: customer.ID.String(),
			Items: []InvoiceItemRequest{
				{ProductID: bolts.ID.String(), Quantity: d("1")},
				{ProductID: "9b0b3c8e-0000-4000-8000-000000000000", Quantity: d("1")},
			},
		})
		var ve *ledger.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "items[1].product_id", ve.Field)
	})

	t.Run("weight is refused for simple products", func(t *testing.T) {
		_, err := f.invoice.CreateInvoice(f.ctx, CreateInvoiceRequest{
			ContactID: customer.ID.String(),
			Items:     []InvoiceItemRequest{{ProductID: bolts.ID.String(), Quantity: d("1"), SaleUnit: "weight"}},
		})
		var ve *ledger.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "items[0].sale_unit", ve.Field)
	})

	t.Run("discount above subtotal", func(t *testing.T) {
		_, err := f.invoice.CreateInvoice(f.ctx, CreateInvoiceRequest{
			ContactID: customer.ID.String(),
			Items:     []InvoiceItemRequest{{ProductID: bolts.ID.String(), Quantity: d("1")}},
			Discount:  d("3"),
		})
		var ve *ledger.ValidationError
		require.ErrorAs(t, err, &ve)
	})

	t.Run("no contact", func(t *testing.T) {
		_, err := f.invoice.CreateInvoice(f.ctx, CreateInvoiceRequest{
			Items: []InvoiceItemRequest{{ProductID: bolts.ID.String(), Quantity: d("1")}},
		})
		assert.ErrorIs(t, err, ledger.ErrNoContact)
	})

	t.Run("no items", func(t *testing.T) {
		_, err := f.invoice.CreateInvoice(f.ctx, CreateInvoiceRequest{ContactID: customer.ID.String()})
		assert.ErrorIs(t, err, ledger.ErrNoItems)
	})
}

func TestInvoiceService_Numbering(t *testing.T) {
	f := newFixture(t)
	_, bolts, customer := f.seed(t)

	create := func(number string) (*model.Invoice, error) {
		return f.invoice.CreateInvoice(f.ctx, CreateInvoiceRequest{
			InvoiceNumber: number,
			Date:          "2024-03-15",
			ContactID:     customer.ID.String(),
			Items:         []InvoiceItemRequest{{ProductID: bolts.ID.String(), Quantity: d("1")}},
		})
	}

	manual, err := create("INV-20240315-00002")
	require.NoError(t, err)
	assert.Equal(t, "INV-20240315-00002", manual.InvoiceNumber)

	auto, err := create("")
	require.NoError(t, err)
	assert.Equal(t, "INV-20240315-00003", auto.InvoiceNumber, "taken numbers are skipped")

	_, err = create("INV-20240315-00002")
	var ve *ledger.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "invoice_number", ve.Field)
}

func TestInvoiceService_Preview(t *testing.T) {
	f := newFixture(t)
	cement, _, _ := f.seed(t)

	preview, err := f.invoice.PreviewInvoice(f.ctx, CreateInvoiceRequest{
		Items: []InvoiceItemRequest{
			{ProductID: cement.ID.String(), Quantity: d("8")},
			{ProductID: cement.ID.String(), Quantity: d("5")},
		},
	})
	require.NoError(t, err)
	require.Len(t, preview.Items, 2)
	assertDecimal(t, "2", preview.Items[1].Quantity, "capped at the stock left")
	require.Len(t, preview.Warnings, 1)
	assertDecimal(t, "5", preview.Warnings[0].Requested)
	assertDecimal(t, "120", preview.Total)
	assert.True(t, preview.Items[0].Equivalent.Valid)
	assertDecimal(t, "400", preview.Items[0].Equivalent.Decimal)

	assertDecimal(t, "10", f.product(t, cement.ID.String()).StockCount, "preview writes nothing")
}

func TestInvoiceService_StatusAndReversal(t *testing.T) {
	f := newFixture(t)
	cement, bolts, customer := f.seed(t)

	sale := func() *model.Invoice {
		inv, err := f.invoice.CreateInvoice(f.ctx, CreateInvoiceRequest{
			ContactID: customer.ID.String(),
			Items: []InvoiceItemRequest{
				{ProductID: cement.ID.String(), Quantity: d("100"), SaleUnit: "weight", UnitPrice: decimal.NewNullDecimal(d("1"))},
				{ProductID: bolts.ID.String(), Quantity: d("10")},
			},
		})
		require.NoError(t, err)
		return inv
	}

	t.Run("paid then cancelled reverses once", func(t *testing.T) {
		inv := sale()
		assertDecimal(t, "120", f.balance(t, customer))

		_, err := f.invoice.UpdateStatus(f.ctx, inv.ID.String(), model.InvoiceStatusPaid)
		require.NoError(t, err)

		cancelled, err := f.invoice.UpdateStatus(f.ctx, inv.ID.String(), model.InvoiceStatusCancelled)
		require.NoError(t, err)
		assert.Equal(t, model.InvoiceStatusCancelled, cancelled.Status)
		assertDecimal(t, "10", f.product(t, cement.ID.String()).StockCount)
		assertDecimal(t, "500", f.product(t, cement.ID.String()).StockWeight)
		assertDecimal(t, "100", f.product(t, bolts.ID.String()).StockCount)
		assertDecimal(t, "0", f.balance(t, customer))

		_, err = f.invoice.UpdateStatus(f.ctx, inv.ID.String(), model.InvoiceStatusCancelled)
		var se *ledger.StateError
		require.ErrorAs(t, err, &se)

		require.NoError(t, f.invoice.DeleteInvoice(f.ctx, inv.ID.String()))
		assertDecimal(t, "100", f.product(t, bolts.ID.String()).StockCount, "deleting a cancelled invoice does not reverse again")
		_, err = f.invoice.GetInvoice(f.ctx, inv.ID.String())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("paid cannot go back to pending", func(t *testing.T) {
		inv := sale()
		_, err := f.invoice.UpdateStatus(f.ctx, inv.ID.String(), model.InvoiceStatusPaid)
		require.NoError(t, err)
		_, err = f.invoice.UpdateStatus(f.ctx, inv.ID.String(), model.InvoiceStatusPending)
		var se *ledger.StateError
		require.ErrorAs(t, err, &se)
		require.NoError(t, f.invoice.DeleteInvoice(f.ctx, inv.ID.String()))
	})

	t.Run("deleting a pending invoice reverses it", func(t *testing.T) {
		inv := sale()
		assertDecimal(t, "90", f.product(t, bolts.ID.String()).StockCount)
		require.NoError(t, f.invoice.DeleteInvoice(f.ctx, inv.ID.String()))
		assertDecimal(t, "100", f.product(t, bolts.ID.String()).StockCount)
		assertDecimal(t, "0", f.balance(t, customer))
	})

	t.Run("purchase reversal needs the stock still on hand", func(t *testing.T) {
		purchase, err := f.invoice.CreateInvoice(f.ctx, CreateInvoiceRequest{
			InvoiceType: "purchase",
			ContactID:   customer.ID.String(),
			Items:       []InvoiceItemRequest{{ProductID: bolts.ID.String(), Quantity: d("5")}},
		})
		require.NoError(t, err)
		_, err = f.invoice.CreateInvoice(f.ctx, CreateInvoiceRequest{
			ContactID: customer.ID.String(),
			Items:     []InvoiceItemRequest{{ProductID: bolts.ID.String(), Quantity: d("103")}},
		})
		require.NoError(t, err)

		_, err = f.invoice.UpdateStatus(f.ctx, purchase.ID.String(), model.InvoiceStatusCancelled)
		var stockErr *ledger.StockInsufficientError
		require.ErrorAs(t, err, &stockErr)

		got, err := f.invoice.GetInvoice(f.ctx, purchase.ID.String())
		require.NoError(t, err)
		assert.Equal(t, model.InvoiceStatusPending, got.Status)
	})

	t.Run("reversal skips deleted products", func(t *testing.T) {
		inv, err := f.invoice.CreateInvoice(f.ctx, CreateInvoiceRequest{
			ContactID: customer.ID.String(),
			Items:     []InvoiceItemRequest{{ProductID: cement.ID.String(), Quantity: d("1")}},
		})
		require.NoError(t, err)
		require.NoError(t, f.inventory.DeleteProduct(f.ctx, cement.ID.String()))
		_, err = f.invoice.UpdateStatus(f.ctx, inv.ID.String(), model.InvoiceStatusCancelled)
		require.NoError(t, err)
	})

	assert.Positive(t, f.events.count(ws.EventInvoiceUpdated))
}

func TestDraftService(t *testing.T) {
	f := newFixture(t)
	cement, bolts, customer := f.seed(t)

	t.Run("builds, clamps and submits", func(t *testing.T) {
		v, err := f.draft.CreateDraft(f.ctx, CreateDraftRequest{})
		require.NoError(t, err)
		assert.Equal(t, ledger.DraftEmpty, v.State)
		id := v.ID.String()

		v, err = f.draft.AddItem(f.ctx, id, AddDraftItemRequest{ProductID: cement.ID.String(), Quantity: d("12")})
		require.NoError(t, err)
		require.NotNil(t, v.Warning)
		assertDecimal(t, "10", v.Items[0].Quantity)
		assert.Equal(t, ledger.DraftBuilding, v.State)

		_, err = f.draft.Submit(f.ctx, id)
		assert.ErrorIs(t, err, ledger.ErrNoContact)

		v, err = f.draft.SetContact(f.ctx, id, DraftContactRequest{ContactID: customer.ID.String()})
		require.NoError(t, err)
		assert.Equal(t, ledger.DraftReady, v.State)
		assert.Equal(t, "Omar Stores", v.ContactName)

		v, err = f.draft.SetDiscount(f.ctx, id, DraftDiscountRequest{Discount: d("20")})
		require.NoError(t, err)
		assertDecimal(t, "100", v.Total)

		inv, err := f.draft.Submit(f.ctx, id)
		require.NoError(t, err)
		assertDecimal(t, "100", inv.Total)
		assertDecimal(t, "0", f.product(t, cement.ID.String()).StockCount)

		v, err = f.draft.GetDraft(f.ctx, id)
		require.NoError(t, err)
		assert.Equal(t, ledger.DraftSubmitted, v.State)
		require.NotNil(t, v.InvoiceID)
		assert.Equal(t, inv.ID, *v.InvoiceID)

		_, err = f.draft.Submit(f.ctx, id)
		assert.ErrorIs(t, err, ledger.ErrDraftClosed)
	})

	t.Run("failed submit leaves the draft ready", func(t *testing.T) {
		v, err := f.draft.CreateDraft(f.ctx, CreateDraftRequest{InvoiceType: "sale"})
		require.NoError(t, err)
		id := v.ID.String()
		_, err = f.draft.AddItem(f.ctx, id, AddDraftItemRequest{ProductID: bolts.ID.String(), Quantity: d("60")})
		require.NoError(t, err)
		_, err = f.draft.SetContact(f.ctx, id, DraftContactRequest{NewContactName: "Walk-in"})
		require.NoError(t, err)

		// stock sold elsewhere while the draft was open
		_, err = f.invoice.CreateInvoice(f.ctx, CreateInvoiceRequest{
			ContactID: customer.ID.String(),
			Items:     []InvoiceItemRequest{{ProductID: bolts.ID.String(), Quantity: d("50")}},
		})
		require.NoError(t, err)

		_, err = f.draft.Submit(f.ctx, id)
		var stockErr *ledger.StockInsufficientError
		require.ErrorAs(t, err, &stockErr)

		v, err = f.draft.GetDraft(f.ctx, id)
		require.NoError(t, err)
		assert.Equal(t, ledger.DraftReady, v.State)

		_, err = f.contacts.FindByName(f.ctx, "Walk-in")
		assert.ErrorIs(t, err, repository.ErrNotFound, "the new contact is rolled back too")

		// the claim taken for the failed attempt is released
		_, err = f.draft.RemoveItem(f.ctx, id, 0)
		require.NoError(t, err)
		_, err = f.draft.AddItem(f.ctx, id, AddDraftItemRequest{ProductID: bolts.ID.String(), Quantity: d("10")})
		require.NoError(t, err)
		inv, err := f.draft.Submit(f.ctx, id)
		require.NoError(t, err)
		assertDecimal(t, "20", inv.Total)
		assertDecimal(t, "40", f.product(t, bolts.ID.String()).StockCount)
	})

	t.Run("remove item and cancel", func(t *testing.T) {
		v, err := f.draft.CreateDraft(f.ctx, CreateDraftRequest{InvoiceType: "purchase"})
		require.NoError(t, err)
		id := v.ID.String()
		v, err = f.draft.AddItem(f.ctx, id, AddDraftItemRequest{ProductID: bolts.ID.String(), Quantity: d("500")})
		require.NoError(t, err)
		assert.Nil(t, v.Warning, "purchases are not capped")
		assertDecimal(t, "500", v.Subtotal)

		_, err = f.draft.RemoveItem(f.ctx, id, 3)
		assert.ErrorIs(t, err, ledger.ErrItemIndex)
		v, err = f.draft.RemoveItem(f.ctx, id, 0)
		require.NoError(t, err)
		assert.Equal(t, ledger.DraftEmpty, v.State)

		v, err = f.draft.Cancel(f.ctx, id)
		require.NoError(t, err)
		assert.Equal(t, ledger.DraftCancelled, v.State)

		_, err = f.draft.AddItem(f.ctx, id, AddDraftItemRequest{ProductID: bolts.ID.String(), Quantity: d("1")})
		assert.ErrorIs(t, err, ErrNotFound, "cancelled drafts are dropped from the store")
		_, err = f.draft.Cancel(f.ctx, id)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unknown draft", func(t *testing.T) {
		_, err := f.draft.GetDraft(f.ctx, "9b0b3c8e-0000-4000-8000-000000000000")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	outcomes, err := testutil.GatherAndCount(f.metrics.Registry(), "almoheat_draft_outcomes_total")
	require.NoError(t, err)
	assert.Equal(t, 3, outcomes, "submitted, failed and cancelled series")
}

// slowInvoices holds CreateInvoice open so concurrent submits overlap.
type slowInvoices struct {
	InvoiceService
	delay time.Duration
}

func (s slowInvoices) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*model.Invoice, error) {
	time.Sleep(s.delay)
	return s.InvoiceService.CreateInvoice(ctx, req)
}

func TestDraftService_ConcurrentSubmit(t *testing.T) {
	f := newFixture(t)
	_, bolts, customer := f.seed(t)
	drafts := NewDraftService(draftstore.NewMemoryStore(time.Hour), f.products, f.contacts,
		slowInvoices{InvoiceService: f.invoice, delay: 50 * time.Millisecond}, f.metrics, nil)

	v, err := drafts.CreateDraft(f.ctx, CreateDraftRequest{})
	require.NoError(t, err)
	id := v.ID.String()
	_, err = drafts.AddItem(f.ctx, id, AddDraftItemRequest{ProductID: bolts.ID.String(), Quantity: d("5")})
	require.NoError(t, err)
	_, err = drafts.SetContact(f.ctx, id, DraftContactRequest{ContactID: customer.ID.String()})
	require.NoError(t, err)

	start := make(chan struct{})
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = drafts.Submit(f.ctx, id)
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var se *ledger.StateError
		assert.ErrorAs(t, err, &se)
	}
	assert.Equal(t, 1, succeeded, "errors: %v", errs)

	n, err := f.invoices.Count(f.ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assertDecimal(t, "95", f.product(t, bolts.ID.String()).StockCount)

	v, err = drafts.GetDraft(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, ledger.DraftSubmitted, v.State)
	_, err = drafts.SetDiscount(f.ctx, id, DraftDiscountRequest{Discount: d("1")})
	assert.ErrorIs(t, err, ledger.ErrDraftClosed)
}

func TestInvoiceService_WeightSalesEmptyStock(t *testing.T) {
	f := newFixture(t)
	_, _, customer := f.seed(t)
	sand, err := f.inventory.CreateProduct(f.ctx, ProductRequest{
		Name: "Sand", UnitType: "dual", Cost: d("1"), Price: d("2"),
		StockCount: d("1"), WeightPerUnit: decimal.NewNullDecimal(d("3")),
	})
	require.NoError(t, err)

	sell := func(weight string) *model.Invoice {
		inv, err := f.invoice.CreateInvoice(f.ctx, CreateInvoiceRequest{
			ContactID: customer.ID.String(),
			Items:     []InvoiceItemRequest{{ProductID: sand.ID.String(), Quantity: d(weight), SaleUnit: "weight"}},
		})
		require.NoError(t, err)
		return inv
	}

	sell("2")
	last := sell("1")
	p := f.product(t, sand.ID.String())
	assert.True(t, p.StockCount.IsZero(), "count %s", p.StockCount)
	assert.True(t, p.StockWeight.IsZero(), "weight %s", p.StockWeight)

	_, err = f.invoice.UpdateStatus(f.ctx, last.ID.String(), model.InvoiceStatusCancelled)
	require.NoError(t, err)
	assertDecimal(t, "1", f.product(t, sand.ID.String()).StockWeight)

	moves, total, err := f.inventory.GetMovements(f.ctx, sand.ID.String(), 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 4, total, "opening, two sales and the reversal")
	card := decimal.Zero
	for _, m := range moves {
		card = card.Add(m.WeightDelta)
	}
	assertDecimal(t, "1", card, "the stock card matches the shelf")
}

func TestCashService(t *testing.T) {
	f := newFixture(t)
	_, bolts, customer := f.seed(t)

	_, err := f.invoice.CreateInvoice(f.ctx, CreateInvoiceRequest{
		ContactID: customer.ID.String(),
		Items:     []InvoiceItemRequest{{ProductID: bolts.ID.String(), Quantity: d("30")}},
	})
	require.NoError(t, err)
	assertDecimal(t, "60", f.balance(t, customer))

	receipt, err := f.cashSvc.CreateTransaction(f.ctx, CashRequest{
		TransactionType: "receipt", Amount: d("60"), Category: "sales", ContactID: customer.ID.String(), Date: "2024-03-16",
	})
	require.NoError(t, err)
	assert.Equal(t, string(ledger.CashIncome), receipt.TransactionType)
	assertDecimal(t, "0", f.balance(t, customer), "a receipt settles what the contact owes")

	_, err = f.cashSvc.UpdateTransaction(f.ctx, receipt.ID.String(), CashRequest{
		TransactionType: "income", Amount: d("50"), Category: "sales", ContactID: customer.ID.String(),
	})
	require.NoError(t, err)
	assertDecimal(t, "10", f.balance(t, customer))

	_, err = f.cashSvc.CreateTransaction(f.ctx, CashRequest{TransactionType: "expense", Amount: d("15"), Category: "rent"})
	require.NoError(t, err)

	sum, err := f.cashSvc.GetBalance(f.ctx, "", "")
	require.NoError(t, err)
	assertDecimal(t, "50", sum.Receipts)
	assertDecimal(t, "15", sum.Payments)
	assertDecimal(t, "35", sum.Balance)

	list, total, err := f.cashSvc.GetTransactions(f.ctx, CashQuery{TransactionType: "expense"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "rent", list[0].Category)

	require.NoError(t, f.cashSvc.DeleteTransaction(f.ctx, receipt.ID.String()))
	assertDecimal(t, "60", f.balance(t, customer))

	t.Run("rejects", func(t *testing.T) {
		var ve *ledger.ValidationError
		_, err := f.cashSvc.CreateTransaction(f.ctx, CashRequest{TransactionType: "income", Amount: d("0")})
		require.ErrorAs(t, err, &ve)

		_, err = f.cashSvc.CreateTransaction(f.ctx, CashRequest{TransactionType: "gift", Amount: d("1")})
		require.ErrorAs(t, err, &ve)

		_, err = f.cashSvc.CreateTransaction(f.ctx, CashRequest{
			TransactionType: "income", Amount: d("1"), ContactID: "9b0b3c8e-0000-4000-8000-000000000000",
		})
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "contact_id", ve.Field)

		err = f.cashSvc.DeleteTransaction(f.ctx, receipt.ID.String())
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestReportService(t *testing.T) {
	f := newFixture(t)
	cement, bolts, customer := f.seed(t)

	sale, err := f.invoice.CreateInvoice(f.ctx, CreateInvoiceRequest{
		Date:      "2024-03-15",
		ContactID: customer.ID.String(),
		Items:     []InvoiceItemRequest{{ProductID: cement.ID.String(), Quantity: d("6")}},
	})
	require.NoError(t, err)
	_, err = f.invoice.CreateInvoice(f.ctx, CreateInvoiceRequest{
		InvoiceType:    "purchase",
		Date:           "2024-03-15",
		NewContactName: "Acme Supply",
		Items:          []InvoiceItemRequest{{ProductID: bolts.ID.String(), Quantity: d("20")}},
	})
	require.NoError(t, err)
	cancelled, err := f.invoice.CreateInvoice(f.ctx, CreateInvoiceRequest{
		Date:      "2024-03-15",
		ContactID: customer.ID.String(),
		Items:     []InvoiceItemRequest{{ProductID: bolts.ID.String(), Quantity: d("1")}},
	})
	require.NoError(t, err)
	_, err = f.invoice.UpdateStatus(f.ctx, cancelled.ID.String(), model.InvoiceStatusCancelled)
	require.NoError(t, err)
	_, err = f.invoice.CreateInvoice(f.ctx, CreateInvoiceRequest{
		Date:      "2024-04-02",
		ContactID: customer.ID.String(),
		Items:     []InvoiceItemRequest{{ProductID: bolts.ID.String(), Quantity: d("5")}},
	})
	require.NoError(t, err)

	_, err = f.cashSvc.CreateTransaction(f.ctx, CashRequest{
		TransactionType: "income", Amount: d("30"), ContactID: customer.ID.String(), Date: "2024-03-20",
	})
	require.NoError(t, err)
	_, err = f.cashSvc.CreateTransaction(f.ctx, CashRequest{TransactionType: "expense", Amount: d("8"), Date: "2024-03-21"})
	require.NoError(t, err)

	t.Run("profit and loss", func(t *testing.T) {
		pl, err := f.report.GetProfitLoss(f.ctx, "2024-03-01", "2024-03-31")
		require.NoError(t, err)
		assertDecimal(t, "72", pl.TotalSales)
		assertDecimal(t, "20", pl.TotalPurchases)
		assertDecimal(t, "30", pl.TotalIncome)
		assertDecimal(t, "8", pl.TotalExpenses)
		assertDecimal(t, "52", pl.GrossProfit)
		assertDecimal(t, "74", pl.NetProfit)
		assert.EqualValues(t, 2, pl.InvoiceCount, "cancelled invoices are left out")
		require.NotNil(t, pl.EndDate)
	})

	t.Run("account statement", func(t *testing.T) {
		st, err := f.report.GetAccountStatement(f.ctx, customer.ID.String(), "", "")
		require.NoError(t, err)
		assert.Len(t, st.Invoices, 3)
		assert.Len(t, st.Transactions, 1)
		assertDecimal(t, "82", st.TotalInvoiced)
		assertDecimal(t, "30", st.TotalReceived)
		assertDecimal(t, "0", st.TotalPaid)
		assertDecimal(t, "52", st.ClosingBalance)
		assertDecimal(t, st.TotalInvoiced.Sub(st.TotalReceived).String(), st.ClosingBalance)

		_, err = f.report.GetAccountStatement(f.ctx, "9b0b3c8e-0000-4000-8000-000000000000", "", "")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("dashboard", func(t *testing.T) {
		dash, err := f.report.GetDashboard(f.ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 2, dash.TotalProducts)
		assert.EqualValues(t, 2, dash.TotalContacts)
		assert.EqualValues(t, 4, dash.TotalInvoices)
		assertDecimal(t, "82", dash.TotalSales)
		assertDecimal(t, "20", dash.TotalPurchases)
		assert.Equal(t, 1, dash.LowStockCount)
		assert.Equal(t, "Cement", dash.LowStock[0].ProductName)
		assertDecimal(t, "22", dash.Cash.Balance)
		assert.Len(t, dash.RecentInvoices, 4)
		require.NotEmpty(t, dash.TopSelling)
		assert.Equal(t, sale.Items[0].ProductName, dash.TopSelling[0].ProductName)
		assertDecimal(t, "6", dash.TopSelling[0].TotalCount)
	})

	t.Run("inventory", func(t *testing.T) {
		rep, err := f.report.GetInventoryReport(f.ctx, "", "")
		require.NoError(t, err)
		assert.Len(t, rep.Products, 2)
		assert.Equal(t, 2, rep.Summary.TotalProducts)
		assertDecimal(t, "155", rep.Summary.TotalValueAtCost)
		assert.Equal(t, 1, rep.Summary.LowStockCount)

		rep, err = f.report.GetInventoryReport(f.ctx, "2001-01-01", "2001-01-31")
		require.NoError(t, err)
		assert.Empty(t, rep.Products)
		assert.Zero(t, rep.Summary.TotalProducts)

		_, err = f.report.GetInventoryReport(f.ctx, "2024-02-01", "2024-01-01")
		var ve *ledger.ValidationError
		assert.True(t, errors.As(err, &ve))
	})
}
