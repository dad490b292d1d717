package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/serataapp/serata-backend/pkg/db/models"
)

// Repository persists back-office notifications.
type Repository interface {
	Create(ctx context.Context, notification *models.Notification) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Notification, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id uuid.UUID) (bool, error)
	TenantForEvent(ctx context.Context, eventID uuid.UUID) (uuid.UUID, error)
	TenantForCancellation(ctx context.Context, requestID uuid.UUID) (uuid.UUID, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a notifications repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	var notification models.Notification
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&notification).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &notification, nil
}

func (r *repositoryImpl) ListByTenant(ctx context.Context, tenantID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Limit(limit)
	if unreadOnly {
		query = query.Where("read_at IS NULL")
	}
	var rows []models.Notification
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repositoryImpl) MarkRead(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND read_at IS NULL", id).
		Update("read_at", time.Now().UTC())
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) TenantForEvent(ctx context.Context, eventID uuid.UUID) (uuid.UUID, error) {
	var event models.Event
	err := r.db.WithContext(ctx).Select("tenant_id").Where("id = ?", eventID).First(&event).Error
	if err != nil {
		return uuid.Nil, err
	}
	return event.TenantID, nil
}

func (r *repositoryImpl) TenantForCancellation(ctx context.Context, requestID uuid.UUID) (uuid.UUID, error) {
	var request models.CancellationRequest
	err := r.db.WithContext(ctx).Select("tenant_id").Where("id = ?", requestID).First(&request).Error
	if err != nil {
		return uuid.Nil, err
	}
	return request.TenantID, nil
}
