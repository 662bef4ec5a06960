package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeliveryAgent is a courier eligible for order assignment.
type DeliveryAgent struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	Name          string    `gorm:"column:name;not null"`
	Phone         string    `gorm:"column:phone;not null"`
	VehicleNumber string    `gorm:"column:vehicle_number"`
	IsActive      bool      `gorm:"column:is_active;not null;index"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *DeliveryAgent) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
