package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/serataapp/serata-backend/pkg/db/models"
)

// Repository exposes the lookups identity resolution and the person
// registry need.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindAccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	FindProfileByID(ctx context.Context, id uuid.UUID) (*models.PromoterProfile, error)
	FindProfileByAccountID(ctx context.Context, accountID uuid.UUID) (*models.PromoterProfile, error)
	FindIdentityByNormalizedPhones(ctx context.Context, phones []string) (*models.Identity, error)
	CreateIdentity(ctx context.Context, identity *models.Identity) error
	UpdateIdentity(ctx context.Context, identity *models.Identity) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an identity repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) FindAccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *repositoryImpl) FindProfileByID(ctx context.Context, id uuid.UUID) (*models.PromoterProfile, error) {
	var profile models.PromoterProfile
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

func (r *repositoryImpl) FindProfileByAccountID(ctx context.Context, accountID uuid.UUID) (*models.PromoterProfile, error) {
	var profile models.PromoterProfile
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at ASC").
		First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

func (r *repositoryImpl) FindIdentityByNormalizedPhones(ctx context.Context, phones []string) (*models.Identity, error) {
	if len(phones) == 0 {
		return nil, nil
	}
	var identity models.Identity
	err := r.db.WithContext(ctx).
		Where("normalized_phone IN ?", phones).
		First(&identity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &identity, nil
}

func (r *repositoryImpl) CreateIdentity(ctx context.Context, identity *models.Identity) error {
	return r.db.WithContext(ctx).Create(identity).Error
}

func (r *repositoryImpl) UpdateIdentity(ctx context.Context, identity *models.Identity) error {
	return r.db.WithContext(ctx).Save(identity).Error
}
