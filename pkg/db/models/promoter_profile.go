package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PromoterProfile is a promoter's membership in one tenant. Profiles may
// exist without a login account (mobile-app-only promoters) and several
// profiles across tenants may share a phone.
type PromoterProfile struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID     uuid.UUID  `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:ux_promoter_profiles_tenant_code"`
	AccountID    *uuid.UUID `gorm:"column:account_id;type:uuid"`
	IdentityID   *uuid.UUID `gorm:"column:identity_id;type:uuid"`
	DisplayName  string     `gorm:"column:display_name;not null"`
	PromoterCode string     `gorm:"column:promoter_code;not null;uniqueIndex:ux_promoter_profiles_tenant_code"`
	Phone        *string    `gorm:"column:phone"`
	Email        *string    `gorm:"column:email"`
	SessionToken *string    `gorm:"column:session_token;uniqueIndex"`
	Active       bool       `gorm:"column:active;not null;default:true"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate mints the id when the caller did not set one.
func (m *PromoterProfile) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
