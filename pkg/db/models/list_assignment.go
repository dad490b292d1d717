package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ListAssignment narrows an EventAssignment to one guest list, with an
// optional per-promoter quota (null = unlimited).
type ListAssignment struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	EventAssignmentID uuid.UUID `gorm:"column:event_assignment_id;type:uuid;not null;uniqueIndex:ux_list_assignments_assignment_list"`
	GuestListID       uuid.UUID `gorm:"column:guest_list_id;type:uuid;not null;uniqueIndex:ux_list_assignments_assignment_list"`
	Quota             *int      `gorm:"column:quota"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
}

// BeforeCreate mints the id when the caller did not set one.
func (m *ListAssignment) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
