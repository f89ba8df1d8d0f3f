package repository

import (
	"context"

	"almoheat/internal/model"

	"gorm.io/gorm"
)

type AuditRepository interface {
	Log(ctx context.Context, entry *model.AuditLog) error
	List(ctx context.Context, action string, page, limit int) ([]model.AuditLog, int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Log(ctx context.Context, entry *model.AuditLog) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *auditRepository) List(ctx context.Context, action string, page, limit int) ([]model.AuditLog, int64, error) {
	var logs []model.AuditLog
	var total int64

	db := GetDB(ctx, r.db)
	scope := func() *gorm.DB {
		q := db.Model(&model.AuditLog{})
		if action != "" {
			q = q.Where("action = ?", action)
		}
		return q
	}
	if err := scope().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := paginate(scope().Order("created_at desc"), page, limit).Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
