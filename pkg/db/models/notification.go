package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/serataapp/serata-backend/pkg/enums"
)

// Notification is a back-office inbox row produced by the notification
// worker from domain events. ReadAt is nil until a staff member opens it.
type Notification struct {
	ID        uuid.UUID              `gorm:"type:uuid;primaryKey"`
	TenantID  uuid.UUID              `gorm:"column:tenant_id;type:uuid;not null"`
	Type      enums.NotificationType `gorm:"column:type;not null"`
	Title     string                 `gorm:"column:title;not null"`
	Message   string                 `gorm:"column:message;not null"`
	Link      *string                `gorm:"column:link"`
	ReadAt    *time.Time             `gorm:"column:read_at"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
}

// BeforeCreate mints the id when the caller did not set one.
func (m *Notification) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
