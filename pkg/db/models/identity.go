package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Identity is the normalized real-world person record, keyed by
// normalized phone. At most one Identity exists per phone family.
type Identity struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	FirstName       *string   `gorm:"column:first_name"`
	LastName        *string   `gorm:"column:last_name"`
	Email           *string   `gorm:"column:email"`
	Phone           *string   `gorm:"column:phone"`
	NormalizedPhone string    `gorm:"column:normalized_phone;not null;uniqueIndex"`
	Instagram       *string   `gorm:"column:instagram"`
	Notes           *string   `gorm:"column:notes"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate mints the id when the caller did not set one.
func (m *Identity) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
