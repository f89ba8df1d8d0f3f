package model

import (
	"time"

	"almoheat/internal/ledger"

	"github.com/shopspring/decimal"
)

// DashboardResponse is the landing page summary.
type DashboardResponse struct {
	TotalProducts  int64              `json:"total_products"`
	TotalContacts  int64              `json:"total_contacts"`
	TotalInvoices  int64              `json:"total_invoices"`
	TotalSales     decimal.Decimal    `json:"total_sales"`
	TotalPurchases decimal.Decimal    `json:"total_purchases"`
	LowStockCount  int                `json:"low_stock_count"`
	LowStock       []LowStockItem     `json:"low_stock"`
	Cash           ledger.CashSummary `json:"cash"`
	RecentInvoices []Invoice          `json:"recent_invoices"`
	TopSelling     []ProductRanking   `json:"top_selling"`
}

// LowStockItem is a product at or below its threshold.
type LowStockItem struct {
	ProductID   string              `json:"product_id"`
	ProductName string              `json:"product_name"`
	UnitType    string              `json:"unit_type"`
	StockCount  decimal.Decimal     `json:"stock_count"`
	StockWeight decimal.NullDecimal `json:"stock_weight"`
	Threshold   decimal.Decimal     `json:"threshold"`
}

// InventoryReport lists products in range together with their summary.
type InventoryReport struct {
	Products  []Product               `json:"products"`
	Summary   ledger.InventorySummary `json:"summary"`
	StartDate *time.Time              `json:"start_date,omitempty"`
	EndDate   *time.Time              `json:"end_date,omitempty"`
}

// ProfitLossReport aggregates invoices and cash in range.
// net_profit = sales - purchases + income - expenses
type ProfitLossReport struct {
	TotalSales     decimal.Decimal `json:"total_sales"`
	TotalPurchases decimal.Decimal `json:"total_purchases"`
	TotalIncome    decimal.Decimal `json:"total_income"`
	TotalExpenses  decimal.Decimal `json:"total_expenses"`
	GrossProfit    decimal.Decimal `json:"gross_profit"`
	NetProfit      decimal.Decimal `json:"net_profit"`
	InvoiceCount   int64           `json:"invoice_count"`
	StartDate      *time.Time      `json:"start_date,omitempty"`
	EndDate        *time.Time      `json:"end_date,omitempty"`
}

// AccountStatement is a contact's activity in range.
type AccountStatement struct {
	Contact        Contact           `json:"contact"`
	Invoices       []Invoice         `json:"invoices"`
	Transactions   []CashTransaction `json:"transactions"`
	TotalInvoiced  decimal.Decimal   `json:"total_invoiced"`
	TotalReceived  decimal.Decimal   `json:"total_received"`
	TotalPaid      decimal.Decimal   `json:"total_paid"`
	ClosingBalance decimal.Decimal   `json:"closing_balance"`
	StartDate      *time.Time        `json:"start_date,omitempty"`
	EndDate        *time.Time        `json:"end_date,omitempty"`
}

// InvoiceTotals is a per-type sum over invoices.
type InvoiceTotals struct {
	InvoiceType string          `json:"invoice_type"`
	Count       int64           `json:"count"`
	Total       decimal.Decimal `json:"total"`
}

// CashTotals is a per-type sum over cash transactions.
type CashTotals struct {
	TransactionType string          `json:"transaction_type"`
	Total           decimal.Decimal `json:"total"`
}

// ProductRanking is a product ranked by quantity moved on invoices.
type ProductRanking struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	TotalCount  decimal.Decimal `json:"total_count"`
	TotalValue  decimal.Decimal `json:"total_value"`
}
