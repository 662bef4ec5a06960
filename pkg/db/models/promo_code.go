package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/superbazaar/storefront-api/pkg/enums"
)

// PromoCode is a time- and usage-bounded discount rule. Codes match
// case-insensitively; the canonical form is stored uppercase.
type PromoCode struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Code          string             `gorm:"column:code;not null;uniqueIndex"`
	Description   string             `gorm:"column:description"`
	DiscountType  enums.DiscountType `gorm:"column:discount_type;not null;default:'percentage'"`
	DiscountValue decimal.Decimal    `gorm:"column:discount_value;type:numeric(10,2);not null"`
	MaxDiscount   *decimal.Decimal   `gorm:"column:max_discount;type:numeric(10,2)"`
	MinPurchase   decimal.Decimal    `gorm:"column:min_purchase;type:numeric(10,2);not null;default:0"`
	MaxUsage      *int               `gorm:"column:max_usage"`
	UsedCount     int                `gorm:"column:used_count;not null;default:0"`
	IsActive      bool               `gorm:"column:is_active;not null"`
	ValidFrom     time.Time          `gorm:"column:valid_from;not null"`
	ValidUntil    *time.Time         `gorm:"column:valid_until"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *PromoCode) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
