package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TableType is a pool of equivalent tables for one event (e.g. "privé",
// "dancefloor"). BookedTables moves through the same conditional ledger
// updates as guest-list counts.
type TableType struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TenantID     uuid.UUID       `gorm:"column:tenant_id;type:uuid;not null"`
	EventID      uuid.UUID       `gorm:"column:event_id;type:uuid;not null"`
	Name         string          `gorm:"column:name;not null"`
	TotalTables  int             `gorm:"column:total_tables;not null"`
	BookedTables int             `gorm:"column:booked_tables;not null;default:0"`
	MinimumSpend decimal.Decimal `gorm:"column:minimum_spend;type:numeric(10,2);not null;default:0"`
	Active       bool            `gorm:"column:active;not null;default:true"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate mints the id when the caller did not set one.
func (m *TableType) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
