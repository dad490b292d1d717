package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/serataapp/serata-backend/pkg/db/models"
)

type fakeRepo struct {
	accounts          map[uuid.UUID]*models.Account
	profiles          map[uuid.UUID]*models.PromoterProfile
	profilesByAccount map[uuid.UUID]*models.PromoterProfile
	identitiesByPhone map[string]*models.Identity
	created           []*models.Identity
	updated           []*models.Identity
	failLookups       bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		accounts:          map[uuid.UUID]*models.Account{},
		profiles:          map[uuid.UUID]*models.PromoterProfile{},
		profilesByAccount: map[uuid.UUID]*models.PromoterProfile{},
		identitiesByPhone: map[string]*models.Identity{},
	}
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) FindAccountByID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	if f.failLookups {
		return nil, errors.New("db down")
	}
	return f.accounts[id], nil
}

func (f *fakeRepo) FindProfileByID(_ context.Context, id uuid.UUID) (*models.PromoterProfile, error) {
	if f.failLookups {
		return nil, errors.New("db down")
	}
	return f.profiles[id], nil
}

func (f *fakeRepo) FindProfileByAccountID(_ context.Context, accountID uuid.UUID) (*models.PromoterProfile, error) {
	if f.failLookups {
		return nil, errors.New("db down")
	}
	return f.profilesByAccount[accountID], nil
}

func (f *fakeRepo) FindIdentityByNormalizedPhones(_ context.Context, phones []string) (*models.Identity, error) {
	if f.failLookups {
		return nil, errors.New("db down")
	}
	for _, p := range phones {
		if identity, ok := f.identitiesByPhone[p]; ok {
			return identity, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) CreateIdentity(_ context.Context, identity *models.Identity) error {
	if f.failLookups {
		return errors.New("db down")
	}
	identity.ID = uuid.New()
	f.identitiesByPhone[identity.NormalizedPhone] = identity
	f.created = append(f.created, identity)
	return nil
}

func (f *fakeRepo) UpdateIdentity(_ context.Context, identity *models.Identity) error {
	if f.failLookups {
		return errors.New("db down")
	}
	f.updated = append(f.updated, identity)
	return nil
}

func TestResolveBackfillsAccountFromProfile(t *testing.T) {
	repo := newFakeRepo()
	accountID := uuid.New()
	profileID := uuid.New()
	repo.profiles[profileID] = &models.PromoterProfile{ID: profileID, AccountID: &accountID}

	resolver := NewResolver(repo, nil)
	resolved := resolver.Resolve(context.Background(), RequestCredentials{PromoterProfileID: &profileID})

	if resolved.PromoterProfileID == nil || *resolved.PromoterProfileID != profileID {
		t.Fatalf("profile id lost during resolution")
	}
	if resolved.AccountID == nil || *resolved.AccountID != accountID {
		t.Fatalf("expected account backfilled from profile")
	}
}

func TestResolveBackfillsProfileFromAccount(t *testing.T) {
	repo := newFakeRepo()
	accountID := uuid.New()
	profileID := uuid.New()
	repo.profilesByAccount[accountID] = &models.PromoterProfile{ID: profileID, AccountID: &accountID}

	resolver := NewResolver(repo, nil)
	resolved := resolver.Resolve(context.Background(), RequestCredentials{AccountID: &accountID})

	if resolved.AccountID == nil || *resolved.AccountID != accountID {
		t.Fatalf("account id lost during resolution")
	}
	if resolved.PromoterProfileID == nil || *resolved.PromoterProfileID != profileID {
		t.Fatalf("expected profile backfilled from account")
	}
}

func TestResolveProfileWithoutAccountStaysProfileOnly(t *testing.T) {
	repo := newFakeRepo()
	profileID := uuid.New()
	repo.profiles[profileID] = &models.PromoterProfile{ID: profileID}

	resolver := NewResolver(repo, nil)
	resolved := resolver.Resolve(context.Background(), RequestCredentials{PromoterProfileID: &profileID})

	if resolved.AccountID != nil {
		t.Fatalf("unexpected account id for account-less profile")
	}
	if resolved.PromoterProfileID == nil {
		t.Fatalf("profile id must survive")
	}
	if resolved.IsAnonymous() {
		t.Fatalf("profile-only identity is not anonymous")
	}
}

func TestResolveUnknownProfileDropsDanglingReference(t *testing.T) {
	repo := newFakeRepo()
	profileID := uuid.New()

	resolver := NewResolver(repo, nil)
	resolved := resolver.Resolve(context.Background(), RequestCredentials{PromoterProfileID: &profileID})

	if !resolved.IsAnonymous() {
		t.Fatalf("stale bearer credential should resolve to anonymous")
	}
}

func TestResolveNeverErrors(t *testing.T) {
	repo := newFakeRepo()
	repo.failLookups = true
	accountID := uuid.New()

	resolver := NewResolver(repo, nil)
	resolved := resolver.Resolve(context.Background(), RequestCredentials{AccountID: &accountID})

	if resolved.AccountID == nil || *resolved.AccountID != accountID {
		t.Fatalf("lookup failure must degrade to the known subset")
	}
}

func TestResolveEmptyCredentialsIsAnonymous(t *testing.T) {
	resolver := NewResolver(newFakeRepo(), nil)
	resolved := resolver.Resolve(context.Background(), RequestCredentials{})
	if !resolved.IsAnonymous() {
		t.Fatalf("empty credentials must resolve to anonymous")
	}
}
