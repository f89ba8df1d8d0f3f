package repository

import (
	"context"
	"strings"
	"time"

	"almoheat/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ContactRepository interface {
	Create(ctx context.Context, contact *model.Contact) error
	Update(ctx context.Context, contact *model.Contact) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Contact, error)
	FindByName(ctx context.Context, name string) (*model.Contact, error)
	List(ctx context.Context, contactType, search string, page, limit int) ([]model.Contact, int64, error)
	AdjustBalance(ctx context.Context, id uuid.UUID, delta decimal.Decimal, at *time.Time) error
	Count(ctx context.Context) (int64, error)
}

type contactRepository struct {
	db *gorm.DB
}

func NewContactRepository(db *gorm.DB) ContactRepository {
	return &contactRepository{db: db}
}

func (r *contactRepository) Create(ctx context.Context, contact *model.Contact) error {
	return GetDB(ctx, r.db).Create(contact).Error
}

// Update saves profile fields. The balance columns are only ever moved by
// AdjustBalance.
func (r *contactRepository) Update(ctx context.Context, contact *model.Contact) error {
	return GetDB(ctx, r.db).Omit("balance", "last_transaction_at").Save(contact).Error
}

func (r *contactRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Contact{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *contactRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Contact, error) {
	var contact model.Contact
	if err := GetDB(ctx, r.db).First(&contact, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &contact, nil
}

// FindByName matches case-insensitively.
func (r *contactRepository) FindByName(ctx context.Context, name string) (*model.Contact, error) {
	var contact model.Contact
	err := GetDB(ctx, r.db).Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name))).
		Order("created_at asc").First(&contact).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &contact, nil
}

func (r *contactRepository) scope(db *gorm.DB, contactType, search string) *gorm.DB {
	q := db.Model(&model.Contact{})
	if contactType != "" {
		q = q.Where("contact_type = ?", contactType)
	}
	if s := strings.TrimSpace(search); s != "" {
		p := likePattern(strings.ToLower(s))
		q = q.Where("LOWER(name) LIKE ? OR LOWER(phone) LIKE ? OR LOWER(email) LIKE ?", p, p, p)
	}
	return q
}

func (r *contactRepository) List(ctx context.Context, contactType, search string, page, limit int) ([]model.Contact, int64, error) {
	var contacts []model.Contact
	var total int64

	db := GetDB(ctx, r.db)
	if err := r.scope(db, contactType, search).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := paginate(r.scope(db, contactType, search).Order("name asc"), page, limit).
		Find(&contacts).Error; err != nil {
		return nil, 0, err
	}
	return contacts, total, nil
}

// AdjustBalance adds delta to the running balance in one statement. When at
// is set it also becomes last_transaction_at. Soft-deleted contacts still
// carry their balance.
func (r *contactRepository) AdjustBalance(ctx context.Context, id uuid.UUID, delta decimal.Decimal, at *time.Time) error {
	updates := map[string]any{"balance": gorm.Expr("balance + ?", delta)}
	if at != nil {
		updates["last_transaction_at"] = *at
	}
	res := GetDB(ctx, r.db).Unscoped().Model(&model.Contact{}).Where("id = ?", id).UpdateColumns(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *contactRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := GetDB(ctx, r.db).Model(&model.Contact{}).Count(&n).Error
	return n, err
}
