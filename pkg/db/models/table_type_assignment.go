package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TableTypeAssignment narrows an EventAssignment to one table-type pool,
// with an optional per-promoter quota (null = unlimited).
type TableTypeAssignment struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	EventAssignmentID uuid.UUID `gorm:"column:event_assignment_id;type:uuid;not null;uniqueIndex:ux_table_type_assignments_assignment_type"`
	TableTypeID       uuid.UUID `gorm:"column:table_type_id;type:uuid;not null;uniqueIndex:ux_table_type_assignments_assignment_type"`
	Quota             *int      `gorm:"column:quota"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
}

// BeforeCreate mints the id when the caller did not set one.
func (m *TableTypeAssignment) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
