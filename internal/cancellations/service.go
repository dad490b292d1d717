package cancellations

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/serataapp/serata-backend/internal/guestlists"
	"github.com/serataapp/serata-backend/internal/identity"
	"github.com/serataapp/serata-backend/internal/tables"
	dbpkg "github.com/serataapp/serata-backend/pkg/db"
	"github.com/serataapp/serata-backend/pkg/db/models"
	"github.com/serataapp/serata-backend/pkg/enums"
	pkgerrors "github.com/serataapp/serata-backend/pkg/errors"
	"github.com/serataapp/serata-backend/pkg/logger"
	"github.com/serataapp/serata-backend/pkg/outbox"
	"github.com/serataapp/serata-backend/pkg/outbox/payloads"
)

// Service runs the cancellation-request workflow. A request targets
// exactly one guest entry or one table booking. Guest lists may opt
// into auto-approval, in which case the target is cancelled in the same
// transaction that records the request; everything else waits for a
// manager decision.
type Service struct {
	db       *dbpkg.Client
	repo     Repository
	guests   *guestlists.Service
	bookings *tables.Service
	events   *outbox.Service
	logg     *logger.Logger
}

// NewService wires the cancellation service.
func NewService(db *dbpkg.Client, repo Repository, guests *guestlists.Service, bookings *tables.Service, events *outbox.Service, logg *logger.Logger) (*Service, error) {
	if db == nil || repo == nil || guests == nil || bookings == nil || events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellations: missing dependency")
	}
	return &Service{db: db, repo: repo, guests: guests, bookings: bookings, events: events, logg: logg}, nil
}

// RequestInput describes one cancellation request. Exactly one of
// GuestListEntryID and TableBookingID must be set.
type RequestInput struct {
	TenantID         uuid.UUID
	GuestListEntryID *uuid.UUID
	TableBookingID   *uuid.UUID
	Reason           string
	Actor            identity.ResolvedIdentity
	ActorRole        string
}

// Request records a cancellation request and, when the owning guest
// list auto-approves, cancels the target immediately.
func (s *Service) Request(ctx context.Context, input RequestInput) (*models.CancellationRequest, error) {
	if input.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	if (input.GuestListEntryID == nil) == (input.TableBookingID == nil) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "exactly one of guest entry or booking must be targeted")
	}

	var request *models.CancellationRequest
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		autoApprove := false
		if input.GuestListEntryID != nil {
			entry, err := s.guests.GetEntryInTx(ctx, tx, *input.GuestListEntryID)
			if err != nil {
				return err
			}
			if entry.Status.IsTerminal() {
				return pkgerrors.New(pkgerrors.CodeInvalidState, "entry is already "+entry.Status.String())
			}
			pending, err := repo.HasPendingForEntry(ctx, entry.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to check pending requests")
			}
			if pending {
				return pkgerrors.New(pkgerrors.CodeConflict, "a cancellation request is already pending for this entry")
			}
			list, err := s.guests.GetListInTx(ctx, tx, entry.GuestListID)
			if err != nil {
				return err
			}
			autoApprove = list.AutoApproveCancellations
		} else {
			booking, err := s.bookings.GetBookingInTx(ctx, tx, *input.TableBookingID)
			if err != nil {
				return err
			}
			if booking.Status.IsTerminal() {
				return pkgerrors.New(pkgerrors.CodeInvalidState, "booking is already "+booking.Status.String())
			}
			pending, err := repo.HasPendingForBooking(ctx, booking.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to check pending requests")
			}
			if pending {
				return pkgerrors.New(pkgerrors.CodeConflict, "a cancellation request is already pending for this booking")
			}
		}

		request = &models.CancellationRequest{
			TenantID:             input.TenantID,
			GuestListEntryID:     input.GuestListEntryID,
			TableBookingID:       input.TableBookingID,
			Status:               enums.CancellationStatusPending,
			RequestedByProfileID: input.Actor.PromoterProfileID,
			RequestedByAccountID: input.Actor.AccountID,
		}
		if reason := strings.TrimSpace(input.Reason); reason != "" {
			request.Reason = &reason
		}
		if autoApprove {
			now := time.Now()
			request.Status = enums.CancellationStatusApproved
			request.AutoApproved = true
			request.DecidedAt = &now
		}
		if err := repo.Create(ctx, request); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to create cancellation request")
		}

		if autoApprove {
			if _, err := s.guests.CancelEntryInTx(ctx, tx, *input.GuestListEntryID, input.Actor, input.ActorRole); err != nil {
				return err
			}
		}

		err := s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCancellationRequested,
			AggregateType: enums.AggregateCancellation,
			AggregateID:   request.ID,
			Actor:         actorRef(input.Actor, input.ActorRole),
			Data: payloads.CancellationRequestedEvent{
				RequestID:        request.ID,
				GuestListEntryID: request.GuestListEntryID,
				TableBookingID:   request.TableBookingID,
				AutoApproved:     request.AutoApproved,
			},
		})
		if err != nil {
			return err
		}
		if !autoApprove {
			return nil
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCancellationDecided,
			AggregateType: enums.AggregateCancellation,
			AggregateID:   request.ID,
			Actor:         actorRef(input.Actor, input.ActorRole),
			Data: payloads.CancellationDecidedEvent{
				RequestID: request.ID,
				Status:    enums.CancellationStatusApproved,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// Get loads one request.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.CancellationRequest, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load cancellation request")
	}
	if request == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cancellation request not found")
	}
	return request, nil
}

// ListByTenant returns a tenant's requests, optionally filtered by status.
func (s *Service) ListByTenant(ctx context.Context, tenantID uuid.UUID, status *enums.CancellationStatus) ([]models.CancellationRequest, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	rows, err := s.repo.ListByTenant(ctx, tenantID, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to list cancellation requests")
	}
	return rows, nil
}

// Approve grants a pending request and cancels its target in the same
// transaction.
func (s *Service) Approve(ctx context.Context, id, decidedBy uuid.UUID, actor identity.ResolvedIdentity, role string) (*models.CancellationRequest, error) {
	return s.decide(ctx, id, decidedBy, actor, role, true)
}

// Reject declines a pending request; the target stays untouched.
func (s *Service) Reject(ctx context.Context, id, decidedBy uuid.UUID, actor identity.ResolvedIdentity, role string) (*models.CancellationRequest, error) {
	return s.decide(ctx, id, decidedBy, actor, role, false)
}

func (s *Service) decide(ctx context.Context, id, decidedBy uuid.UUID, actor identity.ResolvedIdentity, role string, approve bool) (*models.CancellationRequest, error) {
	if id == uuid.Nil || decidedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id and decider are required")
	}

	target := enums.CancellationStatusRejected
	if approve {
		target = enums.CancellationStatusApproved
	}

	var request *models.CancellationRequest
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		now := time.Now()
		moved, err := repo.Transition(ctx, id, target,
			map[string]any{"decided_by": decidedBy, "decided_at": now})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to decide cancellation request")
		}

		request, err = repo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load cancellation request")
		}
		if request == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cancellation request not found")
		}
		if !moved {
			if request.Status == target {
				return nil // repeated decision, idempotent
			}
			return pkgerrors.New(pkgerrors.CodeInvalidState, "request is already "+request.Status.String())
		}

		if approve {
			if request.GuestListEntryID != nil {
				if _, err := s.guests.CancelEntryInTx(ctx, tx, *request.GuestListEntryID, actor, role); err != nil {
					return err
				}
			} else if request.TableBookingID != nil {
				if _, err := s.bookings.CancelBookingInTx(ctx, tx, *request.TableBookingID, actor, role); err != nil {
					return err
				}
			}
		}

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCancellationDecided,
			AggregateType: enums.AggregateCancellation,
			AggregateID:   request.ID,
			Actor:         actorRef(actor, role),
			Data: payloads.CancellationDecidedEvent{
				RequestID: request.ID,
				Status:    target,
				DecidedBy: &decidedBy,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return request, nil
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
