package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/superbazaar/storefront-api/pkg/enums"
)

// Order is the immutable commercial record produced by checkout. Monetary
// fields are fixed at creation; only status and payment status mutate
// afterwards.
type Order struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber       string              `gorm:"column:order_number;not null;uniqueIndex"`
	UserID            *uuid.UUID          `gorm:"column:user_id;type:uuid;index"`
	Status            enums.OrderStatus   `gorm:"column:status;not null;default:'pending';index:idx_orders_status"`
	PaymentStatus     enums.PaymentStatus `gorm:"column:payment_status;not null;default:'pending';index:idx_orders_status"`
	PaymentMethod     enums.PaymentMethod `gorm:"column:payment_method;not null;default:'cod'"`
	Subtotal          decimal.Decimal     `gorm:"column:subtotal;type:numeric(10,2);not null"`
	TaxAmount         decimal.Decimal     `gorm:"column:tax_amount;type:numeric(10,2);not null"`
	ShippingCost      decimal.Decimal     `gorm:"column:shipping_cost;type:numeric(10,2);not null"`
	DiscountAmount    decimal.Decimal     `gorm:"column:discount_amount;type:numeric(10,2);not null"`
	Total             decimal.Decimal     `gorm:"column:total;type:numeric(10,2);not null"`
	PromoCodeID       *uuid.UUID          `gorm:"column:promo_code_id;type:uuid"`
	BillingAddressID  *uuid.UUID          `gorm:"column:billing_address_id;type:uuid"`
	ShippingAddressID *uuid.UUID          `gorm:"column:shipping_address_id;type:uuid"`
	DeliveryAgentID   *uuid.UUID          `gorm:"column:delivery_agent_id;type:uuid;index"`
	CustomerNote      string              `gorm:"column:customer_note"`
	IPAddress         *string             `gorm:"column:ip_address"`
	Items             []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payment           *Payment            `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	ShippingAddress   *Address            `gorm:"foreignKey:ShippingAddressID"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(_ *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// BeforeSave re-derives the total so the cross-field invariant
// total = subtotal + tax + shipping - discount holds on every persist.
func (o *Order) BeforeSave(_ *gorm.DB) error {
	o.Total = o.Subtotal.Add(o.TaxAmount).Add(o.ShippingCost).Sub(o.DiscountAmount)
	return nil
}

// CanCancel reports whether the order is still in a cancellable state.
func (o *Order) CanCancel() bool {
	return o.Status == enums.OrderStatusPending || o.Status == enums.OrderStatusProcessing
}
