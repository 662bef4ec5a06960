package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/superbazaar/storefront-api/pkg/enums"
)

// Notification is a durable outbound message row. Rows are written inside
// the transaction that produced the event and drained by the dispatcher.
type Notification struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	Kind      enums.NotificationKind `gorm:"column:kind;not null"`
	OrderID   *uuid.UUID             `gorm:"column:order_id;type:uuid;index"`
	Recipient string                 `gorm:"column:recipient;not null"`
	Subject   string                 `gorm:"column:subject;not null"`
	Body      string                 `gorm:"column:body;not null"`
	Attempts  int                    `gorm:"column:attempts;not null;default:0"`
	LastError *string                `gorm:"column:last_error"`
	SentAt    *time.Time             `gorm:"column:sent_at;index"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (n *Notification) BeforeCreate(_ *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// Pending reports whether the row is still awaiting a successful send.
func (n *Notification) Pending() bool {
	return n.SentAt == nil
}
