package promo

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/superbazaar/storefront-api/pkg/db/models"
	pkgerrors "github.com/superbazaar/storefront-api/pkg/errors"
)

// PromoRepository exposes promo code persistence.
type PromoRepository interface {
	WithTx(tx *gorm.DB) PromoRepository
	FindByCode(ctx context.Context, code string) (*models.PromoCode, error)
	MarkUsed(ctx context.Context, id uuid.UUID) error
}

// Repository is the gorm-backed PromoRepository.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a promo repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) PromoRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByCode loads a promo code. Codes are stored uppercase so lookup
// normalizes the input first.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	var promo models.PromoCode
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if err := r.db.WithContext(ctx).First(&promo, "code = ?", normalized).Error; err != nil {
		return nil, err
	}
	return &promo, nil
}

// MarkUsed consumes one usage slot. The usage cap is re-checked in the
// WHERE clause so two concurrent checkouts cannot both take the last slot.
func (r *Repository) MarkUsed(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.PromoCode{}).
		Where("id = ? AND is_active = ? AND (max_usage IS NULL OR used_count < max_usage)", id, true).
		Update("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "promo code usage limit reached")
	}
	return nil
}
