package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/serataapp/serata-backend/pkg/enums"
	"gorm.io/gorm"
)

// Account represents a login-capable principal.
type Account struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey"`
	Email        string            `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash string            `gorm:"column:password_hash;not null"`
	FirstName    string            `gorm:"column:first_name;not null"`
	LastName     string            `gorm:"column:last_name;not null"`
	Phone        *string           `gorm:"column:phone"`
	Role         enums.AccountRole `gorm:"column:role;type:account_role;not null"`
	TenantID     *uuid.UUID        `gorm:"column:tenant_id;type:uuid"`
	IsActive     bool              `gorm:"column:is_active;not null;default:true"`
	LastLoginAt  *time.Time        `gorm:"column:last_login_at"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate mints the id when the caller did not set one.
func (m *Account) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
