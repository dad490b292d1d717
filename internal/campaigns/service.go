package campaigns

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/serataapp/serata-backend/pkg/db"
	"github.com/serataapp/serata-backend/pkg/db/models"
	"github.com/serataapp/serata-backend/pkg/enums"
	pkgerrors "github.com/serataapp/serata-backend/pkg/errors"
	"github.com/serataapp/serata-backend/pkg/logger"
	"github.com/serataapp/serata-backend/pkg/outbox"
	"github.com/serataapp/serata-backend/pkg/outbox/payloads"
)

// Repository persists campaign send markers.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, marker *models.CampaignSendMarker) error
	Exists(ctx context.Context, campaignID, recipientID uuid.UUID) (bool, error)
	CountByCampaign(ctx context.Context, campaignID uuid.UUID) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a gorm-backed marker repository.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Insert(ctx context.Context, marker *models.CampaignSendMarker) error {
	return r.db.WithContext(ctx).Create(marker).Error
}

func (r *repositoryImpl) Exists(ctx context.Context, campaignID, recipientID uuid.UUID) (bool, error) {
	var marker models.CampaignSendMarker
	err := r.db.WithContext(ctx).
		First(&marker, "campaign_id = ? AND recipient_identity_id = ?", campaignID, recipientID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *repositoryImpl) CountByCampaign(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CampaignSendMarker{}).
		Where("campaign_id = ?", campaignID).
		Count(&count).Error
	return count, err
}

// Service guards campaign sends with a persisted per-recipient marker.
// The unique index is the actual dedup, there is no in-process cache.
type Service struct {
	db     *dbpkg.Client
	repo   Repository
	events *outbox.Service
	logg   *logger.Logger
}

// NewService wires the campaign service.
func NewService(db *dbpkg.Client, repo Repository, events *outbox.Service, logg *logger.Logger) (*Service, error) {
	if db == nil || repo == nil || events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "campaigns: missing dependency")
	}
	return &Service{db: db, repo: repo, events: events, logg: logg}, nil
}

// QueueInput describes one message to one recipient.
type QueueInput struct {
	CampaignID          uuid.UUID
	RecipientIdentityID uuid.UUID
	Channel             string
	Actor               *outbox.ActorRef
}

// Queue marks the recipient as sent and emits the delivery event, or
// reports that the recipient already got this campaign. Two concurrent
// queues for the same pair race on the unique index, exactly one wins.
func (s *Service) Queue(ctx context.Context, input QueueInput) (bool, error) {
	if input.CampaignID == uuid.Nil || input.RecipientIdentityID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "campaign id and recipient id are required")
	}
	channel := input.Channel
	if channel == "" {
		channel = "email"
	}

	queued := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		marker := &models.CampaignSendMarker{
			CampaignID:          input.CampaignID,
			RecipientIdentityID: input.RecipientIdentityID,
			Channel:             channel,
		}
		if err := s.repo.WithTx(tx).Insert(ctx, marker); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "inserting send marker")
		}
		queued = true
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCampaignMessageQueued,
			AggregateType: enums.AggregateCampaign,
			AggregateID:   input.CampaignID,
			Actor:         input.Actor,
			Data: payloads.CampaignMessageQueuedEvent{
				CampaignID:          input.CampaignID,
				RecipientIdentityID: input.RecipientIdentityID,
				Channel:             channel,
			},
			Version:    1,
			OccurredAt: time.Now().UTC(),
		})
	})
	if err != nil {
		return false, err
	}
	return queued, nil
}

// AlreadySent reports whether the recipient has a marker for the
// campaign.
func (s *Service) AlreadySent(ctx context.Context, campaignID, recipientID uuid.UUID) (bool, error) {
	sent, err := s.repo.Exists(ctx, campaignID, recipientID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking send marker")
	}
	return sent, nil
}

// SentCount returns how many recipients a campaign reached.
func (s *Service) SentCount(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	count, err := s.repo.CountByCampaign(ctx, campaignID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "counting send markers")
	}
	return count, nil
}
