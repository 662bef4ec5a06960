package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ShippingMethod is a selectable delivery option. MinOrderAmount, when set
// above zero, is the subtotal threshold past which the method becomes free.
type ShippingMethod struct {
	ID                    uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name                  string          `gorm:"column:name;not null"`
	Description           string          `gorm:"column:description"`
	Price                 decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	MinOrderAmount        decimal.Decimal `gorm:"column:min_order_amount;type:numeric(10,2);not null;default:0"`
	EstimatedDeliveryDays int             `gorm:"column:estimated_delivery_days;not null;default:3"`
	IsActive              bool            `gorm:"column:is_active;not null;index"`
	CreatedAt             time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (m *ShippingMethod) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
