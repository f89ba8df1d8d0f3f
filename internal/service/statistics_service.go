package service

import (
	"context"
	"fmt"

	"almoheat/internal/ledger"
	"almoheat/internal/metrics"
	"almoheat/internal/model"
	"almoheat/internal/repository"

	"github.com/shopspring/decimal"
)

const (
	dashboardRecentInvoices = 5
	dashboardTopProducts    = 5
)

type ReportService interface {
	GetDashboard(ctx context.Context) (model.DashboardResponse, error)
	GetInventoryReport(ctx context.Context, startDate, endDate string) (model.InventoryReport, error)
	GetProfitLoss(ctx context.Context, startDate, endDate string) (model.ProfitLossReport, error)
	GetAccountStatement(ctx context.Context, contactID, startDate, endDate string) (model.AccountStatement, error)
}

type reportService struct {
	productRepo repository.ProductRepository
	contactRepo repository.ContactRepository
	invoiceRepo repository.InvoiceRepository
	cashRepo    repository.CashRepository
	rule        ledger.LowStockRule
	metrics     *metrics.Metrics
}

func NewReportService(
	productRepo repository.ProductRepository,
	contactRepo repository.ContactRepository,
	invoiceRepo repository.InvoiceRepository,
	cashRepo repository.CashRepository,
	rule ledger.LowStockRule,
	m *metrics.Metrics,
) ReportService {
	return &reportService{
		productRepo: productRepo,
		contactRepo: contactRepo,
		invoiceRepo: invoiceRepo,
		cashRepo:    cashRepo,
		rule:        rule,
		metrics:     m,
	}
}

// invoiceTotals splits per-type sums into sales and purchases.
func (s *reportService) invoiceTotals(ctx context.Context, rng ledger.DateRange) (sales, purchases decimal.Decimal, count int64, err error) {
	totals, err := s.invoiceRepo.TotalsByType(ctx, rng)
	if err != nil {
		return decimal.Zero, decimal.Zero, 0, err
	}
	sales, purchases = decimal.Zero, decimal.Zero
	for _, t := range totals {
		count += t.Count
		switch ledger.InvoiceType(t.InvoiceType) {
		case ledger.InvoiceSale:
			sales = sales.Add(t.Total)
		case ledger.InvoicePurchase:
			purchases = purchases.Add(t.Total)
		}
	}
	return sales, purchases, count, nil
}

// GetDashboard aggregates counts, totals, low stock, cash and recent activity.
func (s *reportService) GetDashboard(ctx context.Context) (model.DashboardResponse, error) {
	var res model.DashboardResponse
	var err error

	if res.TotalProducts, err = s.productRepo.Count(ctx); err != nil {
		return res, fmt.Errorf("failed to count products: %w", err)
	}
	if res.TotalContacts, err = s.contactRepo.Count(ctx); err != nil {
		return res, fmt.Errorf("failed to count contacts: %w", err)
	}
	if res.TotalInvoices, err = s.invoiceRepo.Count(ctx); err != nil {
		return res, fmt.Errorf("failed to count invoices: %w", err)
	}
	if res.TotalSales, res.TotalPurchases, _, err = s.invoiceTotals(ctx, ledger.DateRange{}); err != nil {
		return res, err
	}

	products, err := s.productRepo.ListAll(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to list products: %w", err)
	}
	res.LowStock = lowStockItems(s.rule, products)
	res.LowStockCount = len(res.LowStock)
	s.metrics.SetLowStock(res.LowStockCount)

	if res.Cash, err = cashSummary(ctx, s.cashRepo, repository.CashFilter{}); err != nil {
		return res, err
	}

	if res.RecentInvoices, _, err = s.invoiceRepo.List(ctx, repository.InvoiceFilter{Page: 1, Limit: dashboardRecentInvoices}); err != nil {
		return res, fmt.Errorf("failed to list recent invoices: %w", err)
	}
	if res.TopSelling, err = s.invoiceRepo.TopProducts(ctx, string(ledger.InvoiceSale), ledger.DateRange{}, dashboardTopProducts); err != nil {
		return res, err
	}
	if res.TopSelling == nil {
		res.TopSelling = []model.ProductRanking{}
	}
	return res, nil
}

// GetInventoryReport values the products created or updated in the window.
func (s *reportService) GetInventoryReport(ctx context.Context, startDate, endDate string) (model.InventoryReport, error) {
	rng, err := ParseDateRange(startDate, endDate)
	if err != nil {
		return model.InventoryReport{}, err
	}
	products, err := s.productRepo.ListAll(ctx)
	if err != nil {
		return model.InventoryReport{}, fmt.Errorf("failed to list products: %w", err)
	}

	inRange := make([]model.Product, 0, len(products))
	for _, p := range products {
		if rng.IsZero() || rng.Contains(p.CreatedAt) || rng.Contains(p.UpdatedAt) {
			inRange = append(inRange, p)
		}
	}

	res := model.InventoryReport{
		Products: inRange,
		Summary:  s.rule.Summarize(model.LedgerProducts(products), rng),
	}
	res.StartDate, res.EndDate = rangeBounds(rng)
	return res, nil
}

// GetProfitLoss: gross = sales - purchases; net = gross + income - expenses.
// Cancelled invoices are excluded.
func (s *reportService) GetProfitLoss(ctx context.Context, startDate, endDate string) (model.ProfitLossReport, error) {
	rng, err := ParseDateRange(startDate, endDate)
	if err != nil {
		return model.ProfitLossReport{}, err
	}

	var res model.ProfitLossReport
	if res.TotalSales, res.TotalPurchases, res.InvoiceCount, err = s.invoiceTotals(ctx, rng); err != nil {
		return res, err
	}
	cash, err := cashSummary(ctx, s.cashRepo, repository.CashFilter{Range: rng})
	if err != nil {
		return res, err
	}
	res.TotalIncome = cash.Receipts
	res.TotalExpenses = cash.Payments
	res.GrossProfit = res.TotalSales.Sub(res.TotalPurchases)
	res.NetProfit = res.GrossProfit.Add(res.TotalIncome).Sub(res.TotalExpenses)
	res.StartDate, res.EndDate = rangeBounds(rng)
	return res, nil
}

// GetAccountStatement lists a contact's invoices and cash in the window.
// TotalInvoiced is the signed balance effect of the non-cancelled invoices;
// ClosingBalance is the contact's current running balance.
func (s *reportService) GetAccountStatement(ctx context.Context, contactID, startDate, endDate string) (model.AccountStatement, error) {
	id, err := parseID("contact_id", contactID)
	if err != nil {
		return model.AccountStatement{}, err
	}
	rng, err := ParseDateRange(startDate, endDate)
	if err != nil {
		return model.AccountStatement{}, err
	}
	contact, err := s.contactRepo.FindByID(ctx, id)
	if err != nil {
		return model.AccountStatement{}, lookupErr("contact", id, err)
	}

	invoices, _, err := s.invoiceRepo.List(ctx, repository.InvoiceFilter{ContactID: &id, Range: rng})
	if err != nil {
		return model.AccountStatement{}, fmt.Errorf("failed to list invoices: %w", err)
	}
	txs, _, err := s.cashRepo.List(ctx, repository.CashFilter{ContactID: &id, Range: rng})
	if err != nil {
		return model.AccountStatement{}, fmt.Errorf("failed to list cash transactions: %w", err)
	}

	res := model.AccountStatement{
		Contact:        *contact,
		Invoices:       invoices,
		Transactions:   txs,
		TotalInvoiced:  decimal.Zero,
		TotalReceived:  decimal.Zero,
		TotalPaid:      decimal.Zero,
		ClosingBalance: contact.Balance,
	}
	for _, inv := range invoices {
		if inv.Status == model.InvoiceStatusCancelled {
			continue
		}
		res.TotalInvoiced = res.TotalInvoiced.Add(ledger.InvoiceBalanceEffect(ledger.InvoiceType(inv.InvoiceType), inv.Total))
	}
	for _, tx := range txs {
		if ledger.CashType(tx.TransactionType) == ledger.CashExpense {
			res.TotalPaid = res.TotalPaid.Add(tx.Amount)
		} else {
			res.TotalReceived = res.TotalReceived.Add(tx.Amount)
		}
	}
	res.StartDate, res.EndDate = rangeBounds(rng)
	return res, nil
}
