package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/serataapp/serata-backend/pkg/enums"
	"gorm.io/gorm"
)

// CancellationRequest targets exactly one guest entry or one booking,
// never both. AutoApproved is set when the owning list permits automatic
// approval, in which case the target is cancelled in the same transaction.
type CancellationRequest struct {
	ID                   uuid.UUID                `gorm:"type:uuid;primaryKey"`
	TenantID             uuid.UUID                `gorm:"column:tenant_id;type:uuid;not null"`
	GuestListEntryID     *uuid.UUID               `gorm:"column:guest_list_entry_id;type:uuid"`
	TableBookingID       *uuid.UUID               `gorm:"column:table_booking_id;type:uuid"`
	Status               enums.CancellationStatus `gorm:"column:status;type:cancellation_status;not null;default:'pending'"`
	Reason               *string                  `gorm:"column:reason"`
	AutoApproved         bool                     `gorm:"column:auto_approved;not null;default:false"`
	RequestedByProfileID *uuid.UUID               `gorm:"column:requested_by_profile_id;type:uuid"`
	RequestedByAccountID *uuid.UUID               `gorm:"column:requested_by_account_id;type:uuid"`
	DecidedBy            *uuid.UUID               `gorm:"column:decided_by;type:uuid"`
	DecidedAt            *time.Time               `gorm:"column:decided_at"`
	CreatedAt            time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate mints the id when the caller did not set one.
func (m *CancellationRequest) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
