package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CashType is the direction of a cash movement.
type CashType string

const (
	CashIncome  CashType = "income"
	CashExpense CashType = "expense"
)

// ParseCashType accepts the canonical names and the receipt/payment aliases.
func ParseCashType(s string) (CashType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income", "receipt":
		return CashIncome, nil
	case "expense", "payment":
		return CashExpense, nil
	}
	return "", invalid("transaction_type", "must be one of income, expense, receipt, payment")
}

// SignedAmount is +amount for income and -amount for expenses.
func SignedAmount(t CashType, amount decimal.Decimal) decimal.Decimal {
	if t == CashExpense {
		return amount.Neg()
	}
	return amount
}

// ValidateCashAmount requires a strictly positive amount.
func ValidateCashAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return invalid("amount", "must be greater than 0")
	}
	return nil
}

// CashEntry is the minimal view of a cash transaction for balancing.
type CashEntry struct {
	Type   CashType
	Amount decimal.Decimal
}

// CashSummary splits a set of cash movements into receipts and payments.
type CashSummary struct {
	Receipts decimal.Decimal `json:"receipts"`
	Payments decimal.Decimal `json:"payments"`
	Balance  decimal.Decimal `json:"balance"`
}

// CashBalance totals receipts and payments; balance = receipts - payments.
func CashBalance(entries []CashEntry) CashSummary {
	s := CashSummary{Receipts: decimal.Zero, Payments: decimal.Zero}
	for _, e := range entries {
		if e.Type == CashExpense {
			s.Payments = s.Payments.Add(e.Amount)
		} else {
			s.Receipts = s.Receipts.Add(e.Amount)
		}
	}
	s.Balance = s.Receipts.Sub(s.Payments)
	return s
}

// InvoiceBalanceEffect is how an invoice moves the contact's balance. A
// positive balance means the contact owes us.
func InvoiceBalanceEffect(t InvoiceType, total decimal.Decimal) decimal.Decimal {
	if t == InvoicePurchase {
		return total.Neg()
	}
	return total
}

// CashBalanceEffect is how a cash movement linked to a contact moves its
// balance: a receipt settles what they owe, a payment settles what we owe.
func CashBalanceEffect(t CashType, amount decimal.Decimal) decimal.Decimal {
	return SignedAmount(t, amount).Neg()
}
