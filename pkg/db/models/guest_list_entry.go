package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/serataapp/serata-backend/pkg/enums"
	"gorm.io/gorm"
)

// GuestListEntry is one guest on a list. The credential is unique and
// immutable once issued; ScannedAt is set exactly once by check-in.
type GuestListEntry struct {
	ID                uuid.UUID         `gorm:"type:uuid;primaryKey"`
	GuestListID       uuid.UUID         `gorm:"column:guest_list_id;type:uuid;not null;index"`
	IdentityID        *uuid.UUID        `gorm:"column:identity_id;type:uuid"`
	FirstName         string            `gorm:"column:first_name;not null"`
	LastName          string            `gorm:"column:last_name;not null"`
	Phone             *string           `gorm:"column:phone"`
	Status            enums.EntryStatus `gorm:"column:status;type:entry_status;not null;default:'pending'"`
	Credential        string            `gorm:"column:credential;not null;uniqueIndex"`
	PromoterProfileID *uuid.UUID        `gorm:"column:promoter_profile_id;type:uuid;index"`
	AccountID         *uuid.UUID        `gorm:"column:account_id;type:uuid"`
	ScannedAt         *time.Time        `gorm:"column:scanned_at"`
	ScannedBy         *uuid.UUID        `gorm:"column:scanned_by;type:uuid"`
	CancelledAt       *time.Time        `gorm:"column:cancelled_at"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate mints the id when the caller did not set one.
func (m *GuestListEntry) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
