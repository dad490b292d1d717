package guestlists

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/serataapp/serata-backend/pkg/db/models"
	"github.com/serataapp/serata-backend/pkg/enums"
	"github.com/serataapp/serata-backend/pkg/pagination"
)

// Repository persists guest lists and entries. The two slot-ledger
// operations (TryAdmit, ReleaseSlot) are single conditional updates so
// concurrent admissions can never push current_count past capacity.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateList(ctx context.Context, list *models.GuestList) error
	FindListByID(ctx context.Context, id uuid.UUID) (*models.GuestList, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.GuestList, error)
	UpdateList(ctx context.Context, id uuid.UUID, updates map[string]any) error
	TryAdmit(ctx context.Context, listID uuid.UUID) (bool, error)
	ReleaseSlot(ctx context.Context, listID uuid.UUID) error

	CreateEntry(ctx context.Context, entry *models.GuestListEntry) error
	FindEntryByID(ctx context.Context, id uuid.UUID) (*models.GuestListEntry, error)
	FindEntryByCredential(ctx context.Context, credential string) (*models.GuestListEntry, error)
	ListEntries(ctx context.Context, listID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.GuestListEntry, error)
	CountLiveByPromoter(ctx context.Context, listID uuid.UUID, profileID, accountID *uuid.UUID) (int64, error)
	TransitionEntry(ctx context.Context, id uuid.UUID, from []enums.EntryStatus, to enums.EntryStatus, updates map[string]any) (bool, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a guest-list repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) CreateList(ctx context.Context, list *models.GuestList) error {
	return r.db.WithContext(ctx).Create(list).Error
}

func (r *repositoryImpl) FindListByID(ctx context.Context, id uuid.UUID) (*models.GuestList, error) {
	var list models.GuestList
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&list).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &list, nil
}

func (r *repositoryImpl) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.GuestList, error) {
	var lists []models.GuestList
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at ASC").
		Find(&lists).Error
	return lists, err
}

func (r *repositoryImpl) UpdateList(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.GuestList{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// TryAdmit takes one slot. The WHERE clause is the capacity invariant:
// the row only moves when the list is active and below capacity, so the
// database serializes racing admissions and at most capacity succeed.
func (r *repositoryImpl) TryAdmit(ctx context.Context, listID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.GuestList{}).
		Where("id = ? AND active AND (capacity IS NULL OR current_count < capacity)", listID).
		UpdateColumn("current_count", gorm.Expr("current_count + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ReleaseSlot returns one slot, floored at zero.
func (r *repositoryImpl) ReleaseSlot(ctx context.Context, listID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.GuestList{}).
		Where("id = ? AND current_count > 0", listID).
		UpdateColumn("current_count", gorm.Expr("current_count - 1")).Error
}

func (r *repositoryImpl) CreateEntry(ctx context.Context, entry *models.GuestListEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repositoryImpl) FindEntryByID(ctx context.Context, id uuid.UUID) (*models.GuestListEntry, error) {
	var entry models.GuestListEntry
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repositoryImpl) FindEntryByCredential(ctx context.Context, credential string) (*models.GuestListEntry, error) {
	var entry models.GuestListEntry
	err := r.db.WithContext(ctx).Where("credential = ?", credential).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repositoryImpl) ListEntries(ctx context.Context, listID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.GuestListEntry, error) {
	query := r.db.WithContext(ctx).
		Where("guest_list_id = ?", listID).
		Order("created_at ASC, id ASC").
		Limit(limit)
	if cursor != nil {
		query = query.Where(
			"(created_at, id) > (?, ?)", cursor.CreatedAt, cursor.ID,
		)
	}
	var entries []models.GuestListEntry
	err := query.Find(&entries).Error
	return entries, err
}

func (r *repositoryImpl) CountLiveByPromoter(ctx context.Context, listID uuid.UUID, profileID, accountID *uuid.UUID) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.GuestListEntry{}).
		Where("guest_list_id = ? AND status <> ?", listID, enums.EntryStatusCancelled)

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

// TransitionEntry applies a status transition as one conditional update.
// Extra column writes ride along in updates; updated_at is always bumped.
func (r *repositoryImpl) TransitionEntry(ctx context.Context, id uuid.UUID, from []enums.EntryStatus, to enums.EntryStatus, updates map[string]any) (bool, error) {
	if updates == nil {
		updates = map[string]any{}
	}
	updates["status"] = to
	updates["updated_at"] = time.Now()

	result := r.db.WithContext(ctx).
		Model(&models.GuestListEntry{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
