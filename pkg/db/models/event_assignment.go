package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventAssignment grants a promoter rights on one event. Legacy rows
// populate account_id only; some of those historically stored a
// promoter-profile id in that column.
type EventAssignment struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey"`
	EventID           uuid.UUID  `gorm:"column:event_id;type:uuid;not null"`
	PromoterProfileID *uuid.UUID `gorm:"column:promoter_profile_id;type:uuid"`
	AccountID         *uuid.UUID `gorm:"column:account_id;type:uuid"`
	CanAddToGuests    bool       `gorm:"column:can_add_to_guests;not null;default:false"`
	CanProposeTables  bool       `gorm:"column:can_propose_tables;not null;default:false"`
	Active            bool       `gorm:"column:active;not null;default:true"`
	CreatedBy         uuid.UUID  `gorm:"column:created_by;type:uuid;not null"`
	DeactivatedAt     *time.Time `gorm:"column:deactivated_at"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate mints the id when the caller did not set one.
func (m *EventAssignment) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
