package promoters

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/serataapp/serata-backend/internal/identity"
	dbpkg "github.com/serataapp/serata-backend/pkg/db"
	"github.com/serataapp/serata-backend/pkg/db/models"
	pkgerrors "github.com/serataapp/serata-backend/pkg/errors"
	"github.com/serataapp/serata-backend/pkg/logger"
	"github.com/serataapp/serata-backend/pkg/phone"
)

const sessionTokenBytes = 32

// Service manages promoter profiles: per-tenant CRUD, identity linking
// by phone family, and the opaque bearer tokens the mobile app uses.
// Profiles without a linked account are the normal case.
type Service struct {
	db      *dbpkg.Client
	repo    Repository
	people  *identity.Registry
	matcher *phone.Matcher
	logg    *logger.Logger
}

// NewService wires the promoter service.
func NewService(db *dbpkg.Client, repo Repository, people *identity.Registry, matcher *phone.Matcher, logg *logger.Logger) (*Service, error) {
	if db == nil || repo == nil || people == nil || matcher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promoters: missing dependency")
	}
	return &Service{db: db, repo: repo, people: people, matcher: matcher, logg: logg}, nil
}

// CreateInput describes a new promoter profile.
type CreateInput struct {
	TenantID     uuid.UUID
	DisplayName  string
	PromoterCode string
	Phone        string
	Email        string
	AccountID    *uuid.UUID
}

// Create registers a promoter in one tenant. The promoter code is unique
// per tenant; the same phone may exist in several tenants and all those
// profiles link to the one identity of that phone family.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.PromoterProfile, error) {
	if input.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	if strings.TrimSpace(input.DisplayName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "display name is required")
	}
	code := normalizeCode(input.PromoterCode)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promoter code is required")
	}

	profile := &models.PromoterProfile{
		TenantID:     input.TenantID,
		AccountID:    input.AccountID,
		DisplayName:  strings.TrimSpace(input.DisplayName),
		PromoterCode: code,
		Active:       true,
	}
	if trimmed := strings.TrimSpace(input.Phone); trimmed != "" {
		profile.Phone = &trimmed
	}
	if trimmed := strings.TrimSpace(input.Email); trimmed != "" {
		profile.Email = &trimmed
	}

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if profile.Phone != nil {
			person, err := s.people.WithTx(tx).Upsert(ctx, identity.ContactInput{
				FirstName: profile.DisplayName,
				Phone:     *profile.Phone,
				Email:     input.Email,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "linking promoter identity")
			}
			if person != nil {
				profile.IdentityID = &person.ID
			}
		}
		if err := s.repo.WithTx(tx).Create(ctx, profile); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict,
					fmt.Sprintf("promoter code %q is already taken", code))
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating promoter profile")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// Get returns one profile.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.PromoterProfile, error) {
	profile, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading promoter profile")
	}
	if profile == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "promoter profile not found")
	}
	return profile, nil
}

// GetByAccount returns the profile linked to a login account, nil when
// the account has none.
func (s *Service) GetByAccount(ctx context.Context, accountID uuid.UUID) (*models.PromoterProfile, error) {
	profile, err := s.repo.FindByAccountID(ctx, accountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading promoter profile")
	}
	return profile, nil
}

// ListByTenant returns the tenant's roster, optionally active only.
func (s *Service) ListByTenant(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]models.PromoterProfile, error) {
	profiles, err := s.repo.ListByTenant(ctx, tenantID, activeOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing promoter profiles")
	}
	return profiles, nil
}

// UpdateInput carries optional profile changes. Nil fields are left as
// they are.
type UpdateInput struct {
	DisplayName *string
	Phone       *string
	Email       *string
}

// Update edits a profile. A phone change re-links the identity by the
// new phone family.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.PromoterProfile, error) {
	var updated *models.PromoterProfile
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		profile, err := s.repo.WithTx(tx).FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading promoter profile")
		}
		if profile == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "promoter profile not found")
		}

		updates := map[string]interface{}{}
		if input.DisplayName != nil {
			name := strings.TrimSpace(*input.DisplayName)
			if name == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "display name cannot be empty")
			}
			updates["display_name"] = name
			profile.DisplayName = name
		}
		if input.Email != nil {
			updates["email"] = input.Email
			profile.Email = input.Email
		}
		if input.Phone != nil {
			trimmed := strings.TrimSpace(*input.Phone)
			if trimmed == "" {
				updates["phone"] = nil
				profile.Phone = nil
			} else {
				updates["phone"] = trimmed
				profile.Phone = &trimmed
				person, err := s.people.WithTx(tx).Upsert(ctx, identity.ContactInput{
					FirstName: profile.DisplayName,
					Phone:     trimmed,
				})
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "linking promoter identity")
				}
				if person != nil {
					updates["identity_id"] = person.ID
					profile.IdentityID = &person.ID
				}
			}
		}
		if len(updates) == 0 {
			updated = profile
			return nil
		}
		if err := s.repo.WithTx(tx).Update(ctx, id, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating promoter profile")
		}
		updated = profile
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SetActive toggles a profile. Deactivation revokes the mobile session
// so a fired promoter's app stops working immediately.
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.PromoterProfile, error) {
	var updated *models.PromoterProfile
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		profile, err := s.repo.WithTx(tx).FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading promoter profile")
		}
		if profile == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "promoter profile not found")
		}
		updates := map[string]interface{}{"active": active}
		if !active {
			updates["session_token"] = nil
			profile.SessionToken = nil
		}
		if err := s.repo.WithTx(tx).Update(ctx, id, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating promoter profile")
		}
		profile.Active = active
		updated = profile
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// IssueToken exchanges a promoter code plus the profile's phone for an
// opaque bearer token. A fresh issue replaces any prior token, there is
// at most one live mobile session per profile.
func (s *Service) IssueToken(ctx context.Context, tenantID uuid.UUID, promoterCode, rawPhone string) (*models.PromoterProfile, string, error) {
	code := normalizeCode(promoterCode)
	if tenantID == uuid.Nil || code == "" || strings.TrimSpace(rawPhone) == "" {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "tenant, promoter code and phone are required")
	}

	profile, err := s.repo.FindByTenantAndCode(ctx, tenantID, code)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading promoter profile")
	}
	// One generic failure for unknown code, inactive profile, and phone
	// mismatch, so the endpoint does not leak which part was wrong.
	if profile == nil || !profile.Active || profile.Phone == nil ||
		!s.matcher.Match(*profile.Phone, rawPhone) {
		return nil, "", pkgerrors.New(pkgerrors.CodeUnauthenticated, "promoter credentials do not match")
	}

	token, err := generateSessionToken()
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generating session token")
	}
	if err := s.repo.SetSessionToken(ctx, profile.ID, &token); err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storing session token")
	}
	profile.SessionToken = &token
	return profile, token, nil
}

// ResolveToken maps a bearer token to its active profile. Unknown or
// revoked tokens resolve to nil without an error, the middleware turns
// that into anonymous.
func (s *Service) ResolveToken(ctx context.Context, token string) (*models.PromoterProfile, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	profile, err := s.repo.FindBySessionToken(ctx, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolving promoter token")
	}
	if profile == nil || !profile.Active {
		return nil, nil
	}
	return profile, nil
}

// RevokeToken clears the profile's mobile session.
func (s *Service) RevokeToken(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SetSessionToken(ctx, id, nil); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoking session token")
	}
	return nil
}

func normalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

func generateSessionToken() (string, error) {
	bytes := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
