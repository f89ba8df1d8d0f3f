package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"almoheat/internal/ledger"
	"almoheat/internal/model"
	"almoheat/internal/repository"
	ws "almoheat/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned (wrapped) when the addressed entity does not exist.
var ErrNotFound = repository.ErrNotFound

// EventPublisher pushes realtime events; *websocket.Hub implements it.
type EventPublisher interface {
	Publish(event string, data any)
}

const dateLayout = "2006-01-02"

func parseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, &ledger.ValidationError{Field: field, Message: "must be a valid UUID"}
	}
	return id, nil
}

func parseOptionalID(field, raw string) (*uuid.UUID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	id, err := parseID(field, raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// lookupErr wraps a repository error for entity.
func lookupErr(entity string, id uuid.UUID, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s %s: %w", entity, id, err)
}

// parseDate accepts RFC3339 or YYYY-MM-DD. endOfDay moves a date-only value
// to the last instant of that day.
func parseDate(field, raw string, endOfDay bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, &ledger.ValidationError{Field: field, Message: "must be RFC3339 or YYYY-MM-DD"}
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

// ParseDateRange builds an inclusive window from optional query values.
func ParseDateRange(start, end string) (ledger.DateRange, error) {
	from, err := parseDate("start_date", start, false)
	if err != nil {
		return ledger.DateRange{}, err
	}
	to, err := parseDate("end_date", end, true)
	if err != nil {
		return ledger.DateRange{}, err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return ledger.DateRange{}, &ledger.ValidationError{Field: "end_date", Message: "must not be before start_date"}
	}
	return ledger.DateRange{Start: from, End: to}, nil
}

func rangeBounds(r ledger.DateRange) (start, end *time.Time) {
	if !r.Start.IsZero() {
		s := r.Start
		start = &s
	}
	if !r.End.IsZero() {
		e := r.End
		end = &e
	}
	return start, end
}

func normalizePage(page, limit int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	return page, limit
}

// StockEvent is the payload of stock.updated and stock.low.
type StockEvent struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitType    string          `json:"unit_type"`
	StockCount  decimal.Decimal `json:"stock_count"`
	StockWeight decimal.Decimal `json:"stock_weight"`
	Threshold   decimal.Decimal `json:"threshold"`
	LowStock    bool            `json:"low_stock"`
}

// notifyStock publishes stock.updated for each product, plus stock.low for
// the ones at or below their threshold.
func notifyStock(pub EventPublisher, rule ledger.LowStockRule, products []*model.Product) {
	if pub == nil {
		return
	}
	for _, p := range products {
		lp := p.Ledger()
		ev := StockEvent{
			ProductID:   p.ID,
			ProductName: p.Name,
			UnitType:    p.UnitType,
			StockCount:  p.StockCount,
			StockWeight: p.StockWeight,
			Threshold:   rule.Threshold(lp),
			LowStock:    rule.IsLowStock(lp),
		}
		pub.Publish(ws.EventStockUpdated, ev)
		if ev.LowStock {
			pub.Publish(ws.EventStockLow, ev)
		}
	}
}
