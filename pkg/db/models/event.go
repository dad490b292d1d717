package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Event is one night/party organized by a tenant.
type Event struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey"`
	TenantID  uuid.UUID      `gorm:"column:tenant_id;type:uuid;not null"`
	Name      string         `gorm:"column:name;not null"`
	VenueName *string        `gorm:"column:venue_name"`
	StartsAt  time.Time      `gorm:"column:starts_at;not null"`
	EndsAt    *time.Time     `gorm:"column:ends_at"`
	Genres    pq.StringArray `gorm:"column:genres;type:text[]"`
	Active    bool           `gorm:"column:active;not null;default:true"`
	CreatedBy uuid.UUID      `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate mints the id when the caller did not set one.
func (m *Event) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
