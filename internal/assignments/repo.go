package assignments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/serataapp/serata-backend/pkg/db/models"
)

// Repository exposes persistence helpers for event assignments and their
// narrowing rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, assignment *models.EventAssignment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.EventAssignment, error)
	ListActiveMatching(ctx context.Context, params matchParams) ([]models.EventAssignment, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.EventAssignment, error)
	Deactivate(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	DeactivateForPastEvents(ctx context.Context, now time.Time) ([]models.EventAssignment, error)
	ListNarrowingLists(ctx context.Context, assignmentIDs []uuid.UUID) ([]models.ListAssignment, error)
	ListNarrowingTableTypes(ctx context.Context, assignmentIDs []uuid.UUID) ([]models.TableTypeAssignment, error)
	AddListNarrowing(ctx context.Context, row *models.ListAssignment) error
	AddTableTypeNarrowing(ctx context.Context, row *models.TableTypeAssignment) error
}

// matchParams captures the identity values an assignment row may match.
// LegacyProfileID is checked against the account_id column because legacy
// rows historically stored promoter-profile ids there.
type matchParams struct {
	EventID         uuid.UUID
	ProfileID       *uuid.UUID
	AccountID       *uuid.UUID
	LegacyProfileID *uuid.UUID
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an assignments repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, assignment *models.EventAssignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.EventAssignment, error) {
	var assignment models.EventAssignment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&assignment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &assignment, nil
}

func (r *repositoryImpl) ListActiveMatching(ctx context.Context, params matchParams) ([]models.EventAssignment, error) {
	query := r.db.WithContext(ctx).
		Model(&models.EventAssignment{}).
		Where("event_id = ? AND active", params.EventID)

	match := r.db.Where("1 = 0")
	if params.ProfileID != nil {
		match = match.Or("promoter_profile_id = ?", *params.ProfileID)
	}
	if params.AccountID != nil {
		match = match.Or("account_id = ?", *params.AccountID)
	}
	if params.LegacyProfileID != nil {
		match = match.Or("account_id = ?", *params.LegacyProfileID)
	}

	var rows []models.EventAssignment
	if err := query.Where(match).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repositoryImpl) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.EventAssignment, error) {
	var rows []models.EventAssignment
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repositoryImpl) Deactivate(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.EventAssignment{}).
		Where("id = ? AND active", id).
		Updates(map[string]any{
			"active":         false,
			"deactivated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) DeactivateForPastEvents(ctx context.Context, now time.Time) ([]models.EventAssignment, error) {
	var expired []models.EventAssignment
	err := r.db.WithContext(ctx).
		Joins("JOIN events ON events.id = event_assignments.event_id").
		Where("event_assignments.active AND COALESCE(events.ends_at, events.starts_at) < ?", now).
		Find(&expired).Error
	if err != nil {
		return nil, err
	}
	if len(expired) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(expired))
	for _, row := range expired {
		ids = append(ids, row.ID)
	}
	err = r.db.WithContext(ctx).
		Model(&models.EventAssignment{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"active":         false,
			"deactivated_at": now,
		}).Error
	if err != nil {
		return nil, err
	}
	return expired, nil
}

func (r *repositoryImpl) ListNarrowingLists(ctx context.Context, assignmentIDs []uuid.UUID) ([]models.ListAssignment, error) {
	if len(assignmentIDs) == 0 {
		return nil, nil
	}
	var rows []models.ListAssignment
	err := r.db.WithContext(ctx).
		Where("event_assignment_id IN ?", assignmentIDs).
		Find(&rows).Error
	return rows, err
}

func (r *repositoryImpl) ListNarrowingTableTypes(ctx context.Context, assignmentIDs []uuid.UUID) ([]models.TableTypeAssignment, error) {
	if len(assignmentIDs) == 0 {
		return nil, nil
	}
	var rows []models.TableTypeAssignment
	err := r.db.WithContext(ctx).
		Where("event_assignment_id IN ?", assignmentIDs).
		Find(&rows).Error
	return rows, err
}

func (r *repositoryImpl) AddListNarrowing(ctx context.Context, row *models.ListAssignment) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repositoryImpl) AddTableTypeNarrowing(ctx context.Context, row *models.TableTypeAssignment) error {
	return r.db.WithContext(ctx).Create(row).Error
}
