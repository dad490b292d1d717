package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/serataapp/serata-backend/pkg/enums"
	"gorm.io/gorm"
)

// TableBooking is a table reservation holding 1..10 participants.
type TableBooking struct {
	ID                uuid.UUID           `gorm:"type:uuid;primaryKey"`
	TableTypeID       uuid.UUID           `gorm:"column:table_type_id;type:uuid;not null;index"`
	EventID           uuid.UUID           `gorm:"column:event_id;type:uuid;not null"`
	Status            enums.BookingStatus `gorm:"column:status;type:booking_status;not null;default:'pending_approval'"`
	PartySize         int                 `gorm:"column:party_size;not null"`
	GuestName         string              `gorm:"column:guest_name;not null"`
	GuestPhone        *string             `gorm:"column:guest_phone"`
	PromoterProfileID *uuid.UUID          `gorm:"column:promoter_profile_id;type:uuid;index"`
	AccountID         *uuid.UUID          `gorm:"column:account_id;type:uuid"`
	Notes             *string             `gorm:"column:notes"`
	DecidedBy         *uuid.UUID          `gorm:"column:decided_by;type:uuid"`
	DecidedAt         *time.Time          `gorm:"column:decided_at"`
	CancelledAt       *time.Time          `gorm:"column:cancelled_at"`
	Participants      []TableParticipant  `gorm:"foreignKey:TableBookingID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate mints the id when the caller did not set one.
func (m *TableBooking) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
