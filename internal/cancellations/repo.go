package cancellations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/serataapp/serata-backend/pkg/db/models"
	"github.com/serataapp/serata-backend/pkg/enums"
)

// Repository persists cancellation requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.CancellationRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.CancellationRequest, error)
	HasPendingForEntry(ctx context.Context, entryID uuid.UUID) (bool, error)
	HasPendingForBooking(ctx context.Context, bookingID uuid.UUID) (bool, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, status *enums.CancellationStatus) ([]models.CancellationRequest, error)
	Transition(ctx context.Context, id uuid.UUID, to enums.CancellationStatus, updates map[string]any) (bool, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a cancellations repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, request *models.CancellationRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.CancellationRequest, error) {
	var request models.CancellationRequest
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

func (r *repositoryImpl) HasPendingForEntry(ctx context.Context, entryID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CancellationRequest{}).
		Where("guest_list_entry_id = ? AND status = ?", entryID, enums.CancellationStatusPending).
		Count(&count).Error
	return count > 0, err
}

func (r *repositoryImpl) HasPendingForBooking(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CancellationRequest{}).
		Where("table_booking_id = ? AND status = ?", bookingID, enums.CancellationStatusPending).
		Count(&count).Error
	return count > 0, err
}

func (r *repositoryImpl) ListByTenant(ctx context.Context, tenantID uuid.UUID, status *enums.CancellationStatus) ([]models.CancellationRequest, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC")
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var rows []models.CancellationRequest
	err := query.Find(&rows).Error
	return rows, err
}

// Transition moves a pending request to a terminal state as one
// conditional update.
func (r *repositoryImpl) Transition(ctx context.Context, id uuid.UUID, to enums.CancellationStatus, updates map[string]any) (bool, error) {
	if updates == nil {
		updates = map[string]any{}
	}
	updates["status"] = to
	updates["updated_at"] = time.Now()

	result := r.db.WithContext(ctx).
		Model(&models.CancellationRequest{}).
		Where("id = ? AND status = ?", id, enums.CancellationStatusPending).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
