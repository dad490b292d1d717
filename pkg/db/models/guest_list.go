package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GuestList belongs to one event. CurrentCount tracks live (non-cancelled)
// entries and is only ever moved through the conditional ledger updates,
// so it never exceeds Capacity when one is set.
type GuestList struct {
	ID                       uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID                 uuid.UUID  `gorm:"column:tenant_id;type:uuid;not null"`
	EventID                  uuid.UUID  `gorm:"column:event_id;type:uuid;not null"`
	Name                     string     `gorm:"column:name;not null"`
	Capacity                 *int       `gorm:"column:capacity"`
	CurrentCount             int        `gorm:"column:current_count;not null;default:0"`
	Active                   bool       `gorm:"column:active;not null;default:true"`
	AutoApproveCancellations bool       `gorm:"column:auto_approve_cancellations;not null;default:false"`
	CreatedByProfileID       *uuid.UUID `gorm:"column:created_by_profile_id;type:uuid"`
	CreatedByAccountID       *uuid.UUID `gorm:"column:created_by_account_id;type:uuid"`
	CreatedAt                time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate mints the id when the caller did not set one.
func (m *GuestList) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
