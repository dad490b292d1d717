package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/serataapp/serata-backend/pkg/enums"
	"gorm.io/gorm"
)

// TableParticipant is one person on a booking. The credential is minted
// when the booking is approved, so it stays null for pending proposals.
type TableParticipant struct {
	ID             uuid.UUID         `gorm:"type:uuid;primaryKey"`
	TableBookingID uuid.UUID         `gorm:"column:table_booking_id;type:uuid;not null;index"`
	IdentityID     *uuid.UUID        `gorm:"column:identity_id;type:uuid"`
	FirstName      string            `gorm:"column:first_name;not null"`
	LastName       string            `gorm:"column:last_name;not null"`
	Phone          *string           `gorm:"column:phone"`
	Status         enums.EntryStatus `gorm:"column:status;type:entry_status;not null;default:'pending'"`
	Credential     *string           `gorm:"column:credential;uniqueIndex"`
	ScannedAt      *time.Time        `gorm:"column:scanned_at"`
	ScannedBy      *uuid.UUID        `gorm:"column:scanned_by;type:uuid"`
	CancelledAt    *time.Time        `gorm:"column:cancelled_at"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate mints the id when the caller did not set one.
func (m *TableParticipant) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
