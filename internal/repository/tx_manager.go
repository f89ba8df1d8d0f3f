package repository

import (
	"context"
	"errors"

	"almoheat/internal/ledger"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type contextKey string

const txKey contextKey = "gorm_tx"

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// TransactionManager runs a function inside a database transaction. The
// transaction travels in the context so every repository call made with
// txCtx joins it.
type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

type transactionManager struct {
	db *gorm.DB
}

func NewTransactionManager(db *gorm.DB) TransactionManager {
	return &transactionManager{db: db}
}

func (t *transactionManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	// nested calls reuse the outer transaction
	if _, ok := ctx.Value(txKey).(*gorm.DB); ok {
		return fn(ctx)
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey, tx))
	})
}

// GetDB extracts the transaction DB from context if present, otherwise returns root DB.
func GetDB(ctx context.Context, rootDB *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return rootDB.WithContext(ctx)
}

// forUpdate adds SELECT ... FOR UPDATE. Dialects without row locks ignore it.
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// notFound maps gorm's sentinel onto ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func offset(page, limit int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}

// paginate applies offset and limit. A limit of 0 leaves the query unbounded.
func paginate(db *gorm.DB, page, limit int) *gorm.DB {
	if limit <= 0 {
		return db
	}
	return db.Offset(offset(page, limit)).Limit(limit)
}

func likePattern(s string) string {
	return "%" + s + "%"
}

// inRange restricts column to the inclusive window. Zero bounds are open.
func inRange(db *gorm.DB, column string, r ledger.DateRange) *gorm.DB {
	if !r.Start.IsZero() {
		db = db.Where(column+" >= ?", r.Start)
	}
	if !r.End.IsZero() {
		db = db.Where(column+" <= ?", r.End)
	}
	return db
}
