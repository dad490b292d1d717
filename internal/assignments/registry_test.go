package assignments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/serataapp/serata-backend/internal/identity"
	"github.com/serataapp/serata-backend/pkg/db/models"
	pkgerrors "github.com/serataapp/serata-backend/pkg/errors"
)

type fakeRepo struct {
	assignments []models.EventAssignment
	lists       []models.ListAssignment
	tableTypes  []models.TableTypeAssignment
}

func (f *fakeRepo) WithTx(_ *gorm.DB) Repository { return f }

func (f *fakeRepo) Create(_ context.Context, assignment *models.EventAssignment) error {
	if assignment.ID == uuid.Nil {
		assignment.ID = uuid.New()
	}
	f.assignments = append(f.assignments, *assignment)
	return nil
}

func (f *fakeRepo) FindByID(_ context.Context, id uuid.UUID) (*models.EventAssignment, error) {
	for i := range f.assignments {
		if f.assignments[i].ID == id {
			row := f.assignments[i]
			return &row, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) ListActiveMatching(_ context.Context, params matchParams) ([]models.EventAssignment, error) {
	var out []models.EventAssignment
	for _, row := range f.assignments {
		if row.EventID != params.EventID || !row.Active {
			continue
		}
		if matches(row, params) {
			out = append(out, row)
		}
	}
	return out, nil
}

func matches(row models.EventAssignment, params matchParams) bool {
	if params.ProfileID != nil && row.PromoterProfileID != nil && *row.PromoterProfileID == *params.ProfileID {
		return true
	}
	if params.AccountID != nil && row.AccountID != nil && *row.AccountID == *params.AccountID {
		return true
	}
	if params.LegacyProfileID != nil && row.AccountID != nil && *row.AccountID == *params.LegacyProfileID {
		return true
	}
	return false
}

func (f *fakeRepo) ListByEvent(_ context.Context, eventID uuid.UUID) ([]models.EventAssignment, error) {
	var out []models.EventAssignment
	for _, row := range f.assignments {
		if row.EventID == eventID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeRepo) Deactivate(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	for i := range f.assignments {
		if f.assignments[i].ID == id && f.assignments[i].Active {
			f.assignments[i].Active = false
			f.assignments[i].DeactivatedAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) DeactivateForPastEvents(_ context.Context, _ time.Time) ([]models.EventAssignment, error) {
	return nil, nil
}

func (f *fakeRepo) ListNarrowingLists(_ context.Context, assignmentIDs []uuid.UUID) ([]models.ListAssignment, error) {
	var out []models.ListAssignment
	for _, row := range f.lists {
		for _, id := range assignmentIDs {
			if row.EventAssignmentID == id {
				out = append(out, row)
			}
		}
	}
	return out, nil
}

func (f *fakeRepo) ListNarrowingTableTypes(_ context.Context, assignmentIDs []uuid.UUID) ([]models.TableTypeAssignment, error) {
	var out []models.TableTypeAssignment
	for _, row := range f.tableTypes {
		for _, id := range assignmentIDs {
			if row.EventAssignmentID == id {
				out = append(out, row)
			}
		}
	}
	return out, nil
}

func (f *fakeRepo) AddListNarrowing(_ context.Context, row *models.ListAssignment) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	f.lists = append(f.lists, *row)
	return nil
}

func (f *fakeRepo) AddTableTypeNarrowing(_ context.Context, row *models.TableTypeAssignment) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	f.tableTypes = append(f.tableTypes, *row)
	return nil
}

func newTestRegistry(t *testing.T, repo *fakeRepo) *Registry {
	t.Helper()
	registry, err := NewRegistry(repo, nil)
	require.NoError(t, err)
	return registry
}

func ptr[T any](v T) *T { return &v }

func profileActor(profileID uuid.UUID) identity.ResolvedIdentity {
	return identity.ResolvedIdentity{PromoterProfileID: &profileID}
}

func TestAuthorizeEventUnionsCapabilities(t *testing.T) {
	eventID := uuid.New()
	profileID := uuid.New()
	repo := &fakeRepo{assignments: []models.EventAssignment{
		{ID: uuid.New(), EventID: eventID, PromoterProfileID: &profileID, CanAddToGuests: true, Active: true},
		{ID: uuid.New(), EventID: eventID, PromoterProfileID: &profileID, CanProposeTables: true, Active: true},
		{ID: uuid.New(), EventID: eventID, PromoterProfileID: &profileID, CanAddToGuests: true, CanProposeTables: true, Active: false},
	}}
	registry := newTestRegistry(t, repo)

	caps, err := registry.AuthorizeEvent(context.Background(), eventID, profileActor(profileID))
	require.NoError(t, err)
	assert.True(t, caps.CanAddToGuests)
	assert.True(t, caps.CanProposeTables)
	assert.Len(t, caps.AssignmentIDs, 2)
}

func TestAuthorizeEventLegacyProfileInAccountColumn(t *testing.T) {
	// Legacy import rows kept the promoter-profile id in the account
	// column; the lookup must still find them.
	eventID := uuid.New()
	profileID := uuid.New()
	repo := &fakeRepo{assignments: []models.EventAssignment{
		{ID: uuid.New(), EventID: eventID, AccountID: &profileID, CanAddToGuests: true, Active: true},
	}}
	registry := newTestRegistry(t, repo)

	caps, err := registry.AuthorizeEvent(context.Background(), eventID, profileActor(profileID))
	require.NoError(t, err)
	assert.True(t, caps.CanAddToGuests)
}

func TestAuthorizeEventDeniesStrangers(t *testing.T) {
	eventID := uuid.New()
	repo := &fakeRepo{assignments: []models.EventAssignment{
		{ID: uuid.New(), EventID: eventID, PromoterProfileID: ptr(uuid.New()), CanAddToGuests: true, Active: true},
	}}
	registry := newTestRegistry(t, repo)

	_, err := registry.AuthorizeEvent(context.Background(), eventID, profileActor(uuid.New()))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	_, err = registry.AuthorizeEvent(context.Background(), eventID, identity.ResolvedIdentity{})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthenticated, pkgerrors.CodeOf(err))
}

func TestAuthorizeListUnscopedDefaultGrant(t *testing.T) {
	eventID := uuid.New()
	profileID := uuid.New()
	assignmentID := uuid.New()
	repo := &fakeRepo{assignments: []models.EventAssignment{
		{ID: assignmentID, EventID: eventID, PromoterProfileID: &profileID, CanAddToGuests: true, Active: true},
	}}
	registry := newTestRegistry(t, repo)
	list := &models.GuestList{ID: uuid.New(), EventID: eventID}

	// No narrowing rows at all: the event-level grant covers every list.
	grant, err := registry.AuthorizeList(context.Background(), list, profileActor(profileID))
	require.NoError(t, err)
	assert.True(t, grant.Allowed)
	assert.True(t, grant.Unscoped)
	assert.Nil(t, grant.Quota)

	// One narrowing row pointing elsewhere flips the default off.
	repo.lists = append(repo.lists, models.ListAssignment{
		ID: uuid.New(), EventAssignmentID: assignmentID, GuestListID: uuid.New(), Quota: ptr(5),
	})
	_, err = registry.AuthorizeList(context.Background(), list, profileActor(profileID))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))
}

func TestAuthorizeListScopedQuota(t *testing.T) {
	eventID := uuid.New()
	profileID := uuid.New()
	assignmentID := uuid.New()
	listID := uuid.New()
	repo := &fakeRepo{
		assignments: []models.EventAssignment{
			{ID: assignmentID, EventID: eventID, PromoterProfileID: &profileID, CanAddToGuests: true, Active: true},
		},
		lists: []models.ListAssignment{
			{ID: uuid.New(), EventAssignmentID: assignmentID, GuestListID: listID, Quota: ptr(10)},
		},
	}
	registry := newTestRegistry(t, repo)

	grant, err := registry.AuthorizeList(context.Background(), &models.GuestList{ID: listID, EventID: eventID}, profileActor(profileID))
	require.NoError(t, err)
	assert.True(t, grant.Allowed)
	assert.False(t, grant.Unscoped)
	require.NotNil(t, grant.Quota)
	assert.Equal(t, 10, *grant.Quota)
}

func TestAuthorizeListMostPermissiveQuotaWins(t *testing.T) {
	eventID := uuid.New()
	profileID := uuid.New()
	accountID := uuid.New()
	listID := uuid.New()
	first := uuid.New()
	second := uuid.New()
	repo := &fakeRepo{
		assignments: []models.EventAssignment{
			{ID: first, EventID: eventID, PromoterProfileID: &profileID, CanAddToGuests: true, Active: true},
			{ID: second, EventID: eventID, AccountID: &accountID, CanAddToGuests: true, Active: true},
		},
		lists: []models.ListAssignment{
			{ID: uuid.New(), EventAssignmentID: first, GuestListID: listID, Quota: ptr(3)},
			{ID: uuid.New(), EventAssignmentID: second, GuestListID: listID, Quota: ptr(8)},
		},
	}
	registry := newTestRegistry(t, repo)
	actor := identity.ResolvedIdentity{AccountID: &accountID, PromoterProfileID: &profileID}

	grant, err := registry.AuthorizeList(context.Background(), &models.GuestList{ID: listID, EventID: eventID}, actor)
	require.NoError(t, err)
	require.NotNil(t, grant.Quota)
	assert.Equal(t, 8, *grant.Quota)

	// An unlimited row trumps every numeric cap.
	repo.lists = append(repo.lists, models.ListAssignment{
		ID: uuid.New(), EventAssignmentID: first, GuestListID: listID,
	})
	grant, err = registry.AuthorizeList(context.Background(), &models.GuestList{ID: listID, EventID: eventID}, actor)
	require.NoError(t, err)
	assert.Nil(t, grant.Quota)
}

func TestAuthorizeListCreatorAlwaysAllowed(t *testing.T) {
	eventID := uuid.New()
	profileID := uuid.New()
	assignmentID := uuid.New()
	repo := &fakeRepo{
		assignments: []models.EventAssignment{
			{ID: assignmentID, EventID: eventID, PromoterProfileID: &profileID, CanAddToGuests: true, Active: true},
		},
		lists: []models.ListAssignment{
			// Narrowed to a different list entirely.
			{ID: uuid.New(), EventAssignmentID: assignmentID, GuestListID: uuid.New(), Quota: ptr(2)},
		},
	}
	registry := newTestRegistry(t, repo)
	list := &models.GuestList{ID: uuid.New(), EventID: eventID, CreatedByProfileID: &profileID}

	grant, err := registry.AuthorizeList(context.Background(), list, profileActor(profileID))
	require.NoError(t, err)
	assert.True(t, grant.Allowed)
	assert.True(t, grant.Unscoped)
}

func TestAuthorizeListRequiresGuestCapability(t *testing.T) {
	eventID := uuid.New()
	profileID := uuid.New()
	repo := &fakeRepo{assignments: []models.EventAssignment{
		{ID: uuid.New(), EventID: eventID, PromoterProfileID: &profileID, CanProposeTables: true, Active: true},
	}}
	registry := newTestRegistry(t, repo)

	_, err := registry.AuthorizeList(context.Background(), &models.GuestList{ID: uuid.New(), EventID: eventID}, profileActor(profileID))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))
}

func TestAuthorizeTableTypeScoped(t *testing.T) {
	eventID := uuid.New()
	profileID := uuid.New()
	assignmentID := uuid.New()
	tableTypeID := uuid.New()
	repo := &fakeRepo{
		assignments: []models.EventAssignment{
			{ID: assignmentID, EventID: eventID, PromoterProfileID: &profileID, CanProposeTables: true, Active: true},
		},
		tableTypes: []models.TableTypeAssignment{
			{ID: uuid.New(), EventAssignmentID: assignmentID, TableTypeID: tableTypeID, Quota: ptr(2)},
		},
	}
	registry := newTestRegistry(t, repo)

	grant, err := registry.AuthorizeTableType(context.Background(), &models.TableType{ID: tableTypeID, EventID: eventID}, profileActor(profileID))
	require.NoError(t, err)
	require.NotNil(t, grant.Quota)
	assert.Equal(t, 2, *grant.Quota)

	_, err = registry.AuthorizeTableType(context.Background(), &models.TableType{ID: uuid.New(), EventID: eventID}, profileActor(profileID))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))
}

func TestCreateValidation(t *testing.T) {
	registry := newTestRegistry(t, &fakeRepo{})

	_, err := registry.Create(context.Background(), CreateInput{EventID: uuid.New()})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = registry.Create(context.Background(), CreateInput{
		EventID:           uuid.New(),
		PromoterProfileID: ptr(uuid.New()),
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	created, err := registry.Create(context.Background(), CreateInput{
		EventID:           uuid.New(),
		PromoterProfileID: ptr(uuid.New()),
		CanAddToGuests:    true,
		CreatedBy:         uuid.New(),
	})
	require.NoError(t, err)
	assert.True(t, created.Active)
	assert.NotEqual(t, uuid.Nil, created.ID)
}

func TestDeactivateIdempotent(t *testing.T) {
	assignmentID := uuid.New()
	repo := &fakeRepo{assignments: []models.EventAssignment{
		{ID: assignmentID, EventID: uuid.New(), PromoterProfileID: ptr(uuid.New()), CanAddToGuests: true, Active: true},
	}}
	registry := newTestRegistry(t, repo)
	now := time.Now()

	require.NoError(t, registry.Deactivate(context.Background(), assignmentID, now))
	require.NoError(t, registry.Deactivate(context.Background(), assignmentID, now))

	err := registry.Deactivate(context.Background(), uuid.New(), now)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}
