package promoters

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/serataapp/serata-backend/pkg/db/models"
)

// Repository persists promoter profiles.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, profile *models.PromoterProfile) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PromoterProfile, error)
	FindByTenantAndCode(ctx context.Context, tenantID uuid.UUID, code string) (*models.PromoterProfile, error)
	FindBySessionToken(ctx context.Context, token string) (*models.PromoterProfile, error)
	FindByAccountID(ctx context.Context, accountID uuid.UUID) (*models.PromoterProfile, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]models.PromoterProfile, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error
	SetSessionToken(ctx context.Context, id uuid.UUID, token *string) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a gorm-backed promoter repository.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, profile *models.PromoterProfile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.PromoterProfile, error) {
	var profile models.PromoterProfile
	err := r.db.WithContext(ctx).First(&profile, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repositoryImpl) FindByTenantAndCode(ctx context.Context, tenantID uuid.UUID, code string) (*models.PromoterProfile, error) {
	var profile models.PromoterProfile
	err := r.db.WithContext(ctx).
		First(&profile, "tenant_id = ? AND promoter_code = ?", tenantID, code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repositoryImpl) FindBySessionToken(ctx context.Context, token string) (*models.PromoterProfile, error) {
	var profile models.PromoterProfile
	err := r.db.WithContext(ctx).First(&profile, "session_token = ?", token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repositoryImpl) FindByAccountID(ctx context.Context, accountID uuid.UUID) (*models.PromoterProfile, error) {
	var profile models.PromoterProfile
	err := r.db.WithContext(ctx).First(&profile, "account_id = ?", accountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repositoryImpl) ListByTenant(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]models.PromoterProfile, error) {
	query := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if activeOnly {
		query = query.Where("active")
	}
	var profiles []models.PromoterProfile
	if err := query.Order("display_name ASC").Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *repositoryImpl) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&models.PromoterProfile{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repositoryImpl) SetSessionToken(ctx context.Context, id uuid.UUID, token *string) error {
	return r.db.WithContext(ctx).
		Model(&models.PromoterProfile{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"session_token": token,
			"updated_at":    time.Now().UTC(),
		}).Error
}
