package tables

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/serataapp/serata-backend/pkg/db/models"
	"github.com/serataapp/serata-backend/pkg/enums"
)

// Repository persists table types, bookings, and participants. Table
// availability moves through conditional updates, mirroring the
// guest-list slot ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateTableType(ctx context.Context, tableType *models.TableType) error
	FindTableTypeByID(ctx context.Context, id uuid.UUID) (*models.TableType, error)
	ListTableTypesByEvent(ctx context.Context, eventID uuid.UUID) ([]models.TableType, error)
	UpdateTableType(ctx context.Context, id uuid.UUID, updates map[string]any) error
	TryReserveTable(ctx context.Context, tableTypeID uuid.UUID) (bool, error)
	ReleaseTable(ctx context.Context, tableTypeID uuid.UUID) error

	CreateBooking(ctx context.Context, booking *models.TableBooking) error
	FindBookingByID(ctx context.Context, id uuid.UUID) (*models.TableBooking, error)
	ListBookingsByEvent(ctx context.Context, eventID uuid.UUID) ([]models.TableBooking, error)
	CountLiveBookingsByPromoter(ctx context.Context, tableTypeID uuid.UUID, profileID, accountID *uuid.UUID) (int64, error)
	TransitionBooking(ctx context.Context, id uuid.UUID, from []enums.BookingStatus, to enums.BookingStatus, updates map[string]any) (bool, error)

	ListParticipants(ctx context.Context, bookingID uuid.UUID) ([]models.TableParticipant, error)
	SetParticipantCredential(ctx context.Context, id uuid.UUID, credential string) error
	CancelLiveParticipants(ctx context.Context, bookingID uuid.UUID, now time.Time) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a tables repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) CreateTableType(ctx context.Context, tableType *models.TableType) error {
	return r.db.WithContext(ctx).Create(tableType).Error
}

func (r *repositoryImpl) FindTableTypeByID(ctx context.Context, id uuid.UUID) (*models.TableType, error) {
	var tableType models.TableType
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&tableType).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tableType, nil
}

func (r *repositoryImpl) ListTableTypesByEvent(ctx context.Context, eventID uuid.UUID) ([]models.TableType, error) {
	var rows []models.TableType
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repositoryImpl) UpdateTableType(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.TableType{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// TryReserveTable takes one table from the pool; it only succeeds while
// the pool is active and has tables left.
func (r *repositoryImpl) TryReserveTable(ctx context.Context, tableTypeID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.TableType{}).
		Where("id = ? AND active AND booked_tables < total_tables", tableTypeID).
		UpdateColumn("booked_tables", gorm.Expr("booked_tables + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ReleaseTable returns one table to the pool, floored at zero.
func (r *repositoryImpl) ReleaseTable(ctx context.Context, tableTypeID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.TableType{}).
		Where("id = ? AND booked_tables > 0", tableTypeID).
		UpdateColumn("booked_tables", gorm.Expr("booked_tables - 1")).Error
}

func (r *repositoryImpl) CreateBooking(ctx context.Context, booking *models.TableBooking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

func (r *repositoryImpl) FindBookingByID(ctx context.Context, id uuid.UUID) (*models.TableBooking, error) {
	var booking models.TableBooking
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("id = ?", id).
		First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &booking, nil
}

func (r *repositoryImpl) ListBookingsByEvent(ctx context.Context, eventID uuid.UUID) ([]models.TableBooking, error) {
	var rows []models.TableBooking
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("event_id = ?", eventID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repositoryImpl) CountLiveBookingsByPromoter(ctx context.Context, tableTypeID uuid.UUID, profileID, accountID *uuid.UUID) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.TableBooking{}).
		Where("table_type_id = ? AND status IN ?", tableTypeID,
			[]enums.BookingStatus{enums.BookingStatusPendingApproval, enums.BookingStatusApproved})

	attribution := r.db.Where("1 = 0")
	if profileID != nil {
		attribution = attribution.Or("promoter_profile_id = ?", *profileID)
	}
	if accountID != nil {
		attribution = attribution.Or("account_id = ?", *accountID)
	}

	var count int64
	err := query.Where(attribution).Count(&count).Error
	return count, err
}

// TransitionBooking applies a status transition as one conditional update.
func (r *repositoryImpl) TransitionBooking(ctx context.Context, id uuid.UUID, from []enums.BookingStatus, to enums.BookingStatus, updates map[string]any) (bool, error) {
	if updates == nil {
		updates = map[string]any{}
	}
	updates["status"] = to
	updates["updated_at"] = time.Now()

	result := r.db.WithContext(ctx).
		Model(&models.TableBooking{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) ListParticipants(ctx context.Context, bookingID uuid.UUID) ([]models.TableParticipant, error) {
	var rows []models.TableParticipant
	err := r.db.WithContext(ctx).
		Where("table_booking_id = ?", bookingID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repositoryImpl) SetParticipantCredential(ctx context.Context, id uuid.UUID, credential string) error {
	return r.db.WithContext(ctx).
		Model(&models.TableParticipant{}).
		Where("id = ?", id).
		UpdateColumn("credential", credential).Error
}

func (r *repositoryImpl) CancelLiveParticipants(ctx context.Context, bookingID uuid.UUID, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.TableParticipant{}).
		Where("table_booking_id = ? AND status IN ?", bookingID,
			[]enums.EntryStatus{enums.EntryStatusPending, enums.EntryStatusConfirmed}).
		Updates(map[string]any{
			"status":       enums.EntryStatusCancelled,
			"cancelled_at": now,
		}).Error
}
