package guestlists

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/serataapp/serata-backend/internal/assignments"
	"github.com/serataapp/serata-backend/internal/identity"
	"github.com/serataapp/serata-backend/pkg/credential"
	dbpkg "github.com/serataapp/serata-backend/pkg/db"
	"github.com/serataapp/serata-backend/pkg/db/models"
	"github.com/serataapp/serata-backend/pkg/enums"
	pkgerrors "github.com/serataapp/serata-backend/pkg/errors"
	"github.com/serataapp/serata-backend/pkg/logger"
	"github.com/serataapp/serata-backend/pkg/outbox"
	"github.com/serataapp/serata-backend/pkg/outbox/payloads"
	"github.com/serataapp/serata-backend/pkg/pagination"
)

// Service owns guest lists and their entries: list CRUD, quota-bounded
// admission, status transitions, and the slot ledger.
type Service struct {
	db     *dbpkg.Client
	repo   Repository
	grants *assignments.Registry
	people *identity.Registry
	events *outbox.Service
	logg   *logger.Logger
}

// NewService wires the guest-list service.
func NewService(db *dbpkg.Client, repo Repository, grants *assignments.Registry, people *identity.Registry, events *outbox.Service, logg *logger.Logger) (*Service, error) {
	if db == nil || repo == nil || grants == nil || people == nil || events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guestlists: missing dependency")
	}
	return &Service{db: db, repo: repo, grants: grants, people: people, events: events, logg: logg}, nil
}

// CreateListInput describes a new guest list.
type CreateListInput struct {
	TenantID                 uuid.UUID
	EventID                  uuid.UUID
	Name                     string
	Capacity                 *int
	AutoApproveCancellations bool
	Actor                    identity.ResolvedIdentity
}

// CreateList opens a new list on an event. The creator attribution
// columns feed the creator-always-wins authorization rule.
func (s *Service) CreateList(ctx context.Context, input CreateListInput) (*models.GuestList, error) {
	if input.TenantID == uuid.Nil || input.EventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id and event id are required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "list name is required")
	}
	if input.Capacity != nil && *input.Capacity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "capacity must not be negative")
	}

	list := &models.GuestList{
		TenantID:                 input.TenantID,
		EventID:                  input.EventID,
		Name:                     strings.TrimSpace(input.Name),
		Capacity:                 input.Capacity,
		Active:                   true,
		AutoApproveCancellations: input.AutoApproveCancellations,
		CreatedByProfileID:       input.Actor.PromoterProfileID,
		CreatedByAccountID:       input.Actor.AccountID,
	}
	if err := s.repo.CreateList(ctx, list); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to create guest list")
	}
	return list, nil
}

// GetList loads one list.
func (s *Service) GetList(ctx context.Context, id uuid.UUID) (*models.GuestList, error) {
	list, err := s.repo.FindListByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load guest list")
	}
	if list == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "guest list not found")
	}
	return list, nil
}

// ListByEvent returns every list on an event.
func (s *Service) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.GuestList, error) {
	if eventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	lists, err := s.repo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to list guest lists")
	}
	return lists, nil
}

// UpdateListInput carries the mutable list fields. Capacity may shrink
// below current_count; existing entries are never evicted, the list just
// stops admitting.
type UpdateListInput struct {
	Name                     *string
	Capacity                 *int
	CapacitySet              bool
	Active                   *bool
	AutoApproveCancellations *bool
}

// UpdateList applies a partial update.
func (s *Service) UpdateList(ctx context.Context, id uuid.UUID, input UpdateListInput) (*models.GuestList, error) {
	if _, err := s.GetList(ctx, id); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "list name must not be empty")
		}
		updates["name"] = strings.TrimSpace(*input.Name)
	}
	if input.CapacitySet {
		if input.Capacity != nil && *input.Capacity < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "capacity must not be negative")
		}
		updates["capacity"] = input.Capacity
	}
	if input.Active != nil {
		updates["active"] = *input.Active
	}
	if input.AutoApproveCancellations != nil {
		updates["auto_approve_cancellations"] = *input.AutoApproveCancellations
	}
	if len(updates) == 0 {
		return s.GetList(ctx, id)
	}

	if err := s.repo.UpdateList(ctx, id, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to update guest list")
	}
	return s.GetList(ctx, id)
}

// AddGuestInput describes one admission attempt.
type AddGuestInput struct {
	GuestListID uuid.UUID
	FirstName   string
	LastName    string
	Phone       string
	Email       string
	Instagram   string
	Actor       identity.ResolvedIdentity
	ActorRole   string
	// StaffOverride skips assignment authorization and quotas for tenant
	// staff. Capacity and the active flag still apply.
	StaffOverride bool
}

// AddGuest admits one guest. The whole decision runs in a single
// transaction: authorization, the ledger checks, the conditional slot
// increment, the entry insert, and the outbox emit either all commit or
// all roll back.
func (s *Service) AddGuest(ctx context.Context, input AddGuestInput) (*models.GuestListEntry, error) {
	if input.GuestListID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guest list id is required")
	}
	if strings.TrimSpace(input.FirstName) == "" || strings.TrimSpace(input.LastName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guest first and last name are required")
	}
	if !input.StaffOverride && input.Actor.IsAnonymous() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "authentication required")
	}

	code, err := credential.Issue(credential.KindGuest)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to issue credential")
	}

	var entry *models.GuestListEntry
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		list, err := repo.FindListByID(ctx, input.GuestListID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load guest list")
		}
		if list == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "guest list not found")
		}

		var grant *assignments.ResourceGrant
		if !input.StaffOverride {
			grant, err = s.grants.WithTx(tx).AuthorizeList(ctx, list, input.Actor)
			if err != nil {
				return err
			}
		}

		if err := checkAdmission(list); err != nil {
			return err
		}

		admitted, err := repo.TryAdmit(ctx, list.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to take list slot")
		}
		if !admitted {
			// Lost the race between the read and the increment.
			return pkgerrors.New(pkgerrors.CodeCapacityExceeded, "guest list is full")
		}

		if grant != nil && grant.Quota != nil {
			// Counted only after TryAdmit: the list row lock orders us
			// behind competing admissions, so the count sees their
			// committed entries. Rolling back releases the slot.
			liveCount, err := repo.CountLiveByPromoter(ctx, list.ID, input.Actor.PromoterProfileID, input.Actor.AccountID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to count promoter entries")
			}
			if err := checkQuota(grant, liveCount); err != nil {
				return err
			}
		}

		person, err := s.people.WithTx(tx).Upsert(ctx, identity.ContactInput{
			FirstName: input.FirstName,
			LastName:  input.LastName,
			Phone:     input.Phone,
			Email:     input.Email,
			Instagram: input.Instagram,
		})
		if err != nil {
			return err
		}

		entry = &models.GuestListEntry{
			GuestListID:       list.ID,
			FirstName:         strings.TrimSpace(input.FirstName),
			LastName:          strings.TrimSpace(input.LastName),
			Status:            enums.EntryStatusPending,
			Credential:        code,
			PromoterProfileID: input.Actor.PromoterProfileID,
			AccountID:         input.Actor.AccountID,
		}
		if person != nil {
			entry.IdentityID = &person.ID
		}
		if phone := strings.TrimSpace(input.Phone); phone != "" {
			entry.Phone = &phone
		}
		if err := repo.CreateEntry(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to create guest entry")
		}

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventGuestAdmitted,
			AggregateType: enums.AggregateGuestListEntry,
			AggregateID:   entry.ID,
			Actor:         actorRef(input.Actor, input.ActorRole),
			Data: payloads.GuestAdmittedEvent{
				EntryID:           entry.ID,
				GuestListID:       list.ID,
				EventID:           list.EventID,
				PromoterProfileID: input.Actor.PromoterProfileID,
				GuestName:         entry.FirstName + " " + entry.LastName,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// GetEntry loads one entry.
func (s *Service) GetEntry(ctx context.Context, id uuid.UUID) (*models.GuestListEntry, error) {
	entry, err := s.repo.FindEntryByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load entry")
	}
	if entry == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "entry not found")
	}
	return entry, nil
}

// GetEntryInTx is GetEntry joined to an open transaction.
func (s *Service) GetEntryInTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.GuestListEntry, error) {
	entry, err := s.repo.WithTx(tx).FindEntryByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load entry")
	}
	if entry == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "entry not found")
	}
	return entry, nil
}

// GetListInTx is GetList joined to an open transaction.
func (s *Service) GetListInTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.GuestList, error) {
	list, err := s.repo.WithTx(tx).FindListByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load guest list")
	}
	if list == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "guest list not found")
	}
	return list, nil
}

// EntryPage is one page of entries plus the cursor for the next.
type EntryPage struct {
	Entries    []models.GuestListEntry
	NextCursor string
}

// ListEntries pages through a list's entries in insertion order.
func (s *Service) ListEntries(ctx context.Context, listID uuid.UUID, params pagination.Params) (*EntryPage, error) {
	if listID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guest list id is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	entries, err := s.repo.ListEntries(ctx, listID, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to list entries")
	}

	page := &EntryPage{Entries: entries}
	if len(entries) > limit {
		page.Entries = entries[:limit]
		last := page.Entries[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

// ConfirmEntry moves a pending entry to confirmed.
func (s *Service) ConfirmEntry(ctx context.Context, id uuid.UUID, actor identity.ResolvedIdentity, role string) (*models.GuestListEntry, error) {
	var entry *models.GuestListEntry
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		moved, err := repo.TransitionEntry(ctx, id, []enums.EntryStatus{enums.EntryStatusPending}, enums.EntryStatusConfirmed, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to confirm entry")
		}

		entry, err = repo.FindEntryByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load entry")
		}
		if entry == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "entry not found")
		}
		if !moved {
			if entry.Status == enums.EntryStatusConfirmed {
				return nil // already confirmed, idempotent
			}
			return pkgerrors.New(pkgerrors.CodeInvalidState, "entry cannot be confirmed from status "+entry.Status.String())
		}

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventGuestConfirmed,
			AggregateType: enums.AggregateGuestListEntry,
			AggregateID:   entry.ID,
			Actor:         actorRef(actor, role),
			Data: payloads.GuestStatusEvent{
				EntryID:     entry.ID,
				GuestListID: entry.GuestListID,
				Status:      enums.EntryStatusConfirmed,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// CancelEntry cancels a live entry and releases its slot back to the
// list in the same transaction, so a racing admission can take it.
func (s *Service) CancelEntry(ctx context.Context, id uuid.UUID, actor identity.ResolvedIdentity, role string) (*models.GuestListEntry, error) {
	var entry *models.GuestListEntry
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		entry, err = s.CancelEntryInTx(ctx, tx, id, actor, role)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// CancelEntryInTx is CancelEntry joined to an open transaction. The
// cancellation workflow uses it to cancel a target atomically with the
// request bookkeeping.
func (s *Service) CancelEntryInTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, actor identity.ResolvedIdentity, role string) (*models.GuestListEntry, error) {
	repo := s.repo.WithTx(tx)

	now := time.Now()
	moved, err := repo.TransitionEntry(ctx, id,
		[]enums.EntryStatus{enums.EntryStatusPending, enums.EntryStatusConfirmed},
		enums.EntryStatusCancelled,
		map[string]any{"cancelled_at": now},
	)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to cancel entry")
	}

	entry, err := repo.FindEntryByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load entry")
	}
	if entry == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "entry not found")
	}
	if !moved {
		if entry.Status == enums.EntryStatusCancelled {
			return entry, nil // already cancelled, idempotent
		}
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, "entry cannot be cancelled from status "+entry.Status.String())
	}

	if err := repo.ReleaseSlot(ctx, entry.GuestListID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to release list slot")
	}

	err = s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventGuestCancelled,
		AggregateType: enums.AggregateGuestListEntry,
		AggregateID:   entry.ID,
		Actor:         actorRef(actor, role),
		Data: payloads.GuestStatusEvent{
			EntryID:     entry.ID,
			GuestListID: entry.GuestListID,
			Status:      enums.EntryStatusCancelled,
		},
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func actorRef(actor identity.ResolvedIdentity, role string) *outbox.ActorRef {
	if actor.IsAnonymous() && role == "" {
		return nil
	}
	return &outbox.ActorRef{
		AccountID:         actor.AccountID,
		PromoterProfileID: actor.PromoterProfileID,
		Role:              role,
	}
}
