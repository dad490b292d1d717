package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CampaignSendMarker records that one recipient already received one
// campaign message. The unique index makes the insert-if-absent dedup
// survive process restarts.
type CampaignSendMarker struct {
	ID                  uuid.UUID `gorm:"type:uuid;primaryKey"`
	CampaignID          uuid.UUID `gorm:"column:campaign_id;type:uuid;not null;uniqueIndex:ux_campaign_send_markers_campaign_recipient"`
	RecipientIdentityID uuid.UUID `gorm:"column:recipient_identity_id;type:uuid;not null;uniqueIndex:ux_campaign_send_markers_campaign_recipient"`
	Channel             string    `gorm:"column:channel;not null;default:'email'"`
	SentAt              time.Time `gorm:"column:sent_at;autoCreateTime"`
}

// BeforeCreate mints the id when the caller did not set one.
func (m *CampaignSendMarker) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
