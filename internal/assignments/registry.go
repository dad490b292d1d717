package assignments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/serataapp/serata-backend/internal/identity"
	"github.com/serataapp/serata-backend/pkg/db/models"
	pkgerrors "github.com/serataapp/serata-backend/pkg/errors"
	"github.com/serataapp/serata-backend/pkg/logger"
)

// DefaultGrantWhenUnscoped controls what an event-level grant means when an
// assignment carries zero narrowing rows for a resource kind: the promoter
// may use every active resource of that kind on the event. The production
// data predates narrowing rows, so most assignments rely on this default.
const DefaultGrantWhenUnscoped = true

// EventCapabilities is the union of capability flags across every
// assignment row that matched the caller on one event.
type EventCapabilities struct {
	CanAddToGuests   bool
	CanProposeTables bool
	// AssignmentIDs are the matched rows, needed to load narrowing rows.
	AssignmentIDs []uuid.UUID
}

// ResourceGrant is the outcome of authorizing one guest list or table type.
type ResourceGrant struct {
	Allowed bool
	// Unscoped is true when the grant came from the creator rule or from
	// an assignment with no narrowing rows. Unscoped grants carry no quota.
	Unscoped bool
	// Quota is the per-promoter cap from the most permissive narrowing row,
	// nil meaning unlimited. Meaningless when Allowed is false.
	Quota *int
}

// Registry answers "may this caller touch this resource" for promoters.
// Admins and owners bypass it entirely at the middleware layer; everything
// here reasons about assignment rows only.
type Registry struct {
	repo Repository
	logg *logger.Logger
}

// NewRegistry wires the assignment registry.
func NewRegistry(repo Repository, logg *logger.Logger) (*Registry, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "assignments: repository is required")
	}
	return &Registry{repo: repo, logg: logg}, nil
}

// WithTx returns a registry whose reads join an open transaction.
func (s *Registry) WithTx(tx *gorm.DB) *Registry {
	return &Registry{repo: s.repo.WithTx(tx), logg: s.logg}
}

// AuthorizeEvent collects every active assignment matching the caller on
// the event and unions the capability flags. Matching tries three shapes
// because the assignment table predates promoter profiles: a direct
// promoter_profile_id match, an account_id match, and the caller's profile
// id tried against account_id, since legacy rows stored profile ids there.
func (s *Registry) AuthorizeEvent(ctx context.Context, eventID uuid.UUID, actor identity.ResolvedIdentity) (*EventCapabilities, error) {
	if actor.IsAnonymous() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "authentication required")
	}
	if eventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}

	rows, err := s.repo.ListActiveMatching(ctx, matchParams{
		EventID:         eventID,
		ProfileID:       actor.PromoterProfileID,
		AccountID:       actor.AccountID,
		LegacyProfileID: actor.PromoterProfileID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load event assignments")
	}
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "no active assignment for this event")
	}

	caps := &EventCapabilities{AssignmentIDs: make([]uuid.UUID, 0, len(rows))}
	for _, row := range rows {
		caps.CanAddToGuests = caps.CanAddToGuests || row.CanAddToGuests
		caps.CanProposeTables = caps.CanProposeTables || row.CanProposeTables
		caps.AssignmentIDs = append(caps.AssignmentIDs, row.ID)
	}
	return caps, nil
}

// AuthorizeList decides whether the caller may add guests to one list.
// The creator of a list always keeps unscoped access to it, even when
// narrowing rows later point the assignment elsewhere.
func (s *Registry) AuthorizeList(ctx context.Context, list *models.GuestList, actor identity.ResolvedIdentity) (*ResourceGrant, error) {
	if list == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guest list is required")
	}

	caps, err := s.AuthorizeEvent(ctx, list.EventID, actor)
	if err != nil {
		return nil, err
	}
	if !caps.CanAddToGuests {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "assignment does not permit guest additions")
	}

	if listCreatedBy(list, actor) {
		return &ResourceGrant{Allowed: true, Unscoped: true}, nil
	}

	narrowing, err := s.repo.ListNarrowingLists(ctx, caps.AssignmentIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load list assignments")
	}
	if len(narrowing) == 0 {
		if DefaultGrantWhenUnscoped {
			return &ResourceGrant{Allowed: true, Unscoped: true}, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "no list assignment for this guest list")
	}

	var quotas []*int
	for _, row := range narrowing {
		if row.GuestListID == list.ID {
			quotas = append(quotas, row.Quota)
		}
	}
	if len(quotas) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "no list assignment for this guest list")
	}
	return grantFromQuotas(quotas), nil
}

// AuthorizeTableType mirrors AuthorizeList for table-type proposals.
func (s *Registry) AuthorizeTableType(ctx context.Context, tableType *models.TableType, actor identity.ResolvedIdentity) (*ResourceGrant, error) {
	if tableType == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "table type is required")
	}

	caps, err := s.AuthorizeEvent(ctx, tableType.EventID, actor)
	if err != nil {
		return nil, err
	}
	if !caps.CanProposeTables {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "assignment does not permit table proposals")
	}

	narrowing, err := s.repo.ListNarrowingTableTypes(ctx, caps.AssignmentIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load table type assignments")
	}
	if len(narrowing) == 0 {
		if DefaultGrantWhenUnscoped {
			return &ResourceGrant{Allowed: true, Unscoped: true}, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "no table assignment for this table type")
	}

	var quotas []*int
	for _, row := range narrowing {
		if row.TableTypeID == tableType.ID {
			quotas = append(quotas, row.Quota)
		}
	}
	if len(quotas) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "no table assignment for this table type")
	}
	return grantFromQuotas(quotas), nil
}

// CreateInput describes a new promoter grant on an event.
type CreateInput struct {
	EventID           uuid.UUID
	PromoterProfileID *uuid.UUID
	AccountID         *uuid.UUID
	CanAddToGuests    bool
	CanProposeTables  bool
	CreatedBy         uuid.UUID
}

// Create records a new assignment. New rows always carry a promoter
// profile id; the account column stays writable only for imports.
func (s *Registry) Create(ctx context.Context, input CreateInput) (*models.EventAssignment, error) {
	if input.EventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	if input.PromoterProfileID == nil && input.AccountID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "assignment needs a promoter profile or account")
	}
	if !input.CanAddToGuests && !input.CanProposeTables {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "assignment must grant at least one capability")
	}

	assignment := &models.EventAssignment{
		EventID:           input.EventID,
		PromoterProfileID: input.PromoterProfileID,
		AccountID:         input.AccountID,
		CanAddToGuests:    input.CanAddToGuests,
		CanProposeTables:  input.CanProposeTables,
		Active:            true,
		CreatedBy:         input.CreatedBy,
	}
	if err := s.repo.Create(ctx, assignment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to create event assignment")
	}
	return assignment, nil
}

// ListByEvent returns every assignment row on an event, active or not.
func (s *Registry) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.EventAssignment, error) {
	if eventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	rows, err := s.repo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to list event assignments")
	}
	return rows, nil
}

// Deactivate revokes a grant. Existing entries attributed to the promoter
// are untouched; only future authorization stops.
func (s *Registry) Deactivate(ctx context.Context, id uuid.UUID, now time.Time) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "assignment id is required")
	}
	done, err := s.repo.Deactivate(ctx, id, now)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to deactivate assignment")
	}
	if !done {
		existing, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load assignment")
		}
		if existing == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
		}
		// Already inactive: deactivation is idempotent.
	}
	return nil
}

// NarrowToList attaches a narrowing row so the assignment covers one guest
// list, optionally with a per-promoter quota.
func (s *Registry) NarrowToList(ctx context.Context, assignmentID, guestListID uuid.UUID, quota *int) (*models.ListAssignment, error) {
	if err := s.checkNarrowingTarget(ctx, assignmentID, guestListID, quota); err != nil {
		return nil, err
	}
	row := &models.ListAssignment{
		EventAssignmentID: assignmentID,
		GuestListID:       guestListID,
		Quota:             quota,
	}
	if err := s.repo.AddListNarrowing(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to create list assignment")
	}
	return row, nil
}

// NarrowToTableType mirrors NarrowToList for table types.
func (s *Registry) NarrowToTableType(ctx context.Context, assignmentID, tableTypeID uuid.UUID, quota *int) (*models.TableTypeAssignment, error) {
	if err := s.checkNarrowingTarget(ctx, assignmentID, tableTypeID, quota); err != nil {
		return nil, err
	}
	row := &models.TableTypeAssignment{
		EventAssignmentID: assignmentID,
		TableTypeID:       tableTypeID,
		Quota:             quota,
	}
	if err := s.repo.AddTableTypeNarrowing(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to create table type assignment")
	}
	return row, nil
}

func (s *Registry) checkNarrowingTarget(ctx context.Context, assignmentID, targetID uuid.UUID, quota *int) error {
	if assignmentID == uuid.Nil || targetID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "assignment id and target id are required")
	}
	if quota != nil && *quota < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quota must not be negative")
	}
	assignment, err := s.repo.FindByID(ctx, assignmentID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load assignment")
	}
	if assignment == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
	}
	return nil
}

// listCreatedBy reports whether the caller created the guest list, by
// either attribution column.
func listCreatedBy(list *models.GuestList, actor identity.ResolvedIdentity) bool {
	if list.CreatedByProfileID != nil && actor.PromoterProfileID != nil &&
		*list.CreatedByProfileID == *actor.PromoterProfileID {
		return true
	}
	if list.CreatedByAccountID != nil && actor.AccountID != nil &&
		*list.CreatedByAccountID == *actor.AccountID {
		return true
	}
	return false
}

// grantFromQuotas folds quotas from every matching narrowing row into one
// grant, keeping the most permissive: any nil quota means unlimited,
// otherwise the largest cap wins.
func grantFromQuotas(quotas []*int) *ResourceGrant {
	grant := &ResourceGrant{Allowed: true}
	var best *int
	for _, quota := range quotas {
		if quota == nil {
			return grant
		}
		if best == nil || *quota > *best {
			q := *quota
			best = &q
		}
	}
	grant.Quota = best
	return grant
}
