package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/superbazaar/storefront-api/pkg/enums"
)

// Payment is the one-to-one payment record behind an order.
type Payment struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	PaymentState   enums.PaymentStatus `gorm:"column:payment_state;not null;default:'pending'"`
	PaymentMethod  enums.PaymentMethod `gorm:"column:payment_method;not null"`
	Amount         decimal.Decimal     `gorm:"column:amount;type:numeric(10,2);not null"`
	Currency       string              `gorm:"column:currency;not null;default:'INR'"`
	TransactionID  *string             `gorm:"column:transaction_id"`
	PaymentDetails []byte              `gorm:"column:payment_details;type:jsonb"`
	FailureCode    *string             `gorm:"column:failure_code"`
	FailureMessage *string             `gorm:"column:failure_message"`
	PaidAt         *time.Time          `gorm:"column:paid_at"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payment) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
