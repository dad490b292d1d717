package checkin

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/serataapp/serata-backend/pkg/db/models"
	"github.com/serataapp/serata-backend/pkg/enums"
)

// Repository holds the door-scan queries. Redemption is one conditional
// update per namespace: a credential moves to arrived exactly once, and
// never once cancelled.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	RedeemGuest(ctx context.Context, code string, scannedBy uuid.UUID, now time.Time) (bool, error)
	FindGuestByCredential(ctx context.Context, code string) (*models.GuestListEntry, error)

	RedeemParticipant(ctx context.Context, code string, scannedBy uuid.UUID, now time.Time) (bool, error)
	FindParticipantByCredential(ctx context.Context, code string) (*models.TableParticipant, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a check-in repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) RedeemGuest(ctx context.Context, code string, scannedBy uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.GuestListEntry{}).
		Where("credential = ? AND scanned_at IS NULL AND status <> ?", code, enums.EntryStatusCancelled).
		Updates(map[string]any{
			"status":     enums.EntryStatusArrived,
			"scanned_at": now,
			"scanned_by": scannedBy,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) FindGuestByCredential(ctx context.Context, code string) (*models.GuestListEntry, error) {
	var entry models.GuestListEntry
	err := r.db.WithContext(ctx).Where("credential = ?", code).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repositoryImpl) RedeemParticipant(ctx context.Context, code string, scannedBy uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.TableParticipant{}).
		Where("credential = ? AND scanned_at IS NULL AND status <> ?", code, enums.EntryStatusCancelled).
		Updates(map[string]any{
			"status":     enums.EntryStatusArrived,
			"scanned_at": now,
			"scanned_by": scannedBy,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) FindParticipantByCredential(ctx context.Context, code string) (*models.TableParticipant, error) {
	var participant models.TableParticipant
	err := r.db.WithContext(ctx).Where("credential = ?", code).First(&participant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &participant, nil
}
