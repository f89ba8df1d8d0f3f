package database

import (
	"fmt"

	"almoheat/internal/config"
	"almoheat/internal/logger"
	"almoheat/internal/model"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewConnection opens the PostgreSQL pool and, when enabled, migrates the
// schema.
func NewConnection(cfg config.DatabaseConfig, logLevel string, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.NewGormLogger(log, logger.GormLevel(logLevel), cfg.SlowThreshold),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if cfg.AutoMigrate {
		if err := Migrate(db); err != nil {
			// the schema may already be managed externally; keep serving
			log.Warn("failed to auto-migrate models", zap.Error(err))
		}
	}
	return db, nil
}

// Models lists every persisted type in dependency order.
func Models() []any {
	return []any{
		&model.Product{},
		&model.Contact{},
		&model.Invoice{},
		&model.InvoiceItem{},
		&model.StockMovement{},
		&model.CashTransaction{},
		&model.AuditLog{},
	}
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
