package tables

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
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
)

// Party size bounds for one table.
const (
	MinPartySize = 1
	MaxPartySize = 10
)

// Service owns table-type pools and the proposal/approval workflow.
// A proposal reserves a table immediately so managers decide against a
// truthful availability picture; rejection returns it to the pool.
type Service struct {
	db     *dbpkg.Client
	repo   Repository
	grants *assignments.Registry
	people *identity.Registry
	events *outbox.Service
	logg   *logger.Logger
}

// NewService wires the tables service.
func NewService(db *dbpkg.Client, repo Repository, grants *assignments.Registry, people *identity.Registry, events *outbox.Service, logg *logger.Logger) (*Service, error) {
	if db == nil || repo == nil || grants == nil || people == nil || events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tables: missing dependency")
	}
	return &Service{db: db, repo: repo, grants: grants, people: people, events: events, logg: logg}, nil
}

// CreateTableTypeInput describes a new table pool on an event.
type CreateTableTypeInput struct {
	TenantID     uuid.UUID
	EventID      uuid.UUID
	Name         string
	TotalTables  int
	MinimumSpend decimal.Decimal
}

// CreateTableType opens a new pool.
func (s *Service) CreateTableType(ctx context.Context, input CreateTableTypeInput) (*models.TableType, error) {
	if input.TenantID == uuid.Nil || input.EventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id and event id are required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "table type name is required")
	}
	if input.TotalTables <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "total tables must be positive")
	}
	if input.MinimumSpend.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "minimum spend must not be negative")
	}

	tableType := &models.TableType{
		TenantID:     input.TenantID,
		EventID:      input.EventID,
		Name:         strings.TrimSpace(input.Name),
		TotalTables:  input.TotalTables,
		MinimumSpend: input.MinimumSpend,
		Active:       true,
	}
	if err := s.repo.CreateTableType(ctx, tableType); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to create table type")
	}
	return tableType, nil
}

// GetTableType loads one pool.
func (s *Service) GetTableType(ctx context.Context, id uuid.UUID) (*models.TableType, error) {
	tableType, err := s.repo.FindTableTypeByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load table type")
	}
	if tableType == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "table type not found")
	}
	return tableType, nil
}

// ListTableTypes returns every pool on an event.
func (s *Service) ListTableTypes(ctx context.Context, eventID uuid.UUID) ([]models.TableType, error) {
	if eventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	rows, err := s.repo.ListTableTypesByEvent(ctx, eventID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to list table types")
	}
	return rows, nil
}

// UpdateTableTypeInput carries the mutable pool fields. TotalTables may
// shrink below booked_tables; existing bookings stand, the pool just
// stops accepting proposals.
type UpdateTableTypeInput struct {
	Name         *string
	TotalTables  *int
	MinimumSpend *decimal.Decimal
	Active       *bool
}

// UpdateTableType applies a partial update.
func (s *Service) UpdateTableType(ctx context.Context, id uuid.UUID, input UpdateTableTypeInput) (*models.TableType, error) {
	if _, err := s.GetTableType(ctx, id); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "table type name must not be empty")
		}
		updates["name"] = strings.TrimSpace(*input.Name)
	}
	if input.TotalTables != nil {
		if *input.TotalTables <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "total tables must be positive")
		}
		updates["total_tables"] = *input.TotalTables
	}
	if input.MinimumSpend != nil {
		if input.MinimumSpend.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "minimum spend must not be negative")
		}
		updates["minimum_spend"] = *input.MinimumSpend
	}
	if input.Active != nil {
		updates["active"] = *input.Active
	}
	if len(updates) == 0 {
		return s.GetTableType(ctx, id)
	}

	if err := s.repo.UpdateTableType(ctx, id, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to update table type")
	}
	return s.GetTableType(ctx, id)
}

// ParticipantInput is one person on a proposal.
type ParticipantInput struct {
	FirstName string
	LastName  string
	Phone     string
}

// ProposeBookingInput describes one table proposal.
type ProposeBookingInput struct {
	TableTypeID  uuid.UUID
	GuestName    string
	GuestPhone   string
	Notes        string
	Participants []ParticipantInput
	Actor        identity.ResolvedIdentity
	ActorRole    string
	// StaffOverride skips assignment authorization and quotas for tenant
	// staff. Pool availability still applies.
	StaffOverride bool
}

// ProposeBooking reserves a table and records the proposal in one
// transaction. The booking waits in pending_approval; participant
// credentials are only minted on approval.
func (s *Service) ProposeBooking(ctx context.Context, input ProposeBookingInput) (*models.TableBooking, error) {
	if input.TableTypeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "table type id is required")
	}
	if strings.TrimSpace(input.GuestName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guest name is required")
	}
	if len(input.Participants) < MinPartySize || len(input.Participants) > MaxPartySize {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("party size must be between %d and %d", MinPartySize, MaxPartySize))
	}
	for _, p := range input.Participants {
		if strings.TrimSpace(p.FirstName) == "" || strings.TrimSpace(p.LastName) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "participant first and last name are required")
		}
	}
	if !input.StaffOverride && input.Actor.IsAnonymous() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "authentication required")
	}

	var booking *models.TableBooking
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		tableType, err := repo.FindTableTypeByID(ctx, input.TableTypeID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load table type")
		}
		if tableType == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "table type not found")
		}

		var grant *assignments.ResourceGrant
		if !input.StaffOverride {
			grant, err = s.grants.WithTx(tx).AuthorizeTableType(ctx, tableType, input.Actor)
			if err != nil {
				return err
			}
		}

		if !tableType.Active {
			return pkgerrors.New(pkgerrors.CodeListClosed, "table type is closed")
		}
		reserved, err := repo.TryReserveTable(ctx, tableType.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to reserve table")
		}
		if !reserved {
			return pkgerrors.New(pkgerrors.CodeCapacityExceeded, "no tables left in this pool")
		}

		if grant != nil && grant.Quota != nil {
			// Counted only after TryReserveTable: the pool row lock
			// orders us behind competing proposals, so the count sees
			// their committed bookings. Rolling back frees the table.
			live, err := repo.CountLiveBookingsByPromoter(ctx, tableType.ID, input.Actor.PromoterProfileID, input.Actor.AccountID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to count promoter bookings")
			}
			if live >= int64(*grant.Quota) {
				return pkgerrors.New(pkgerrors.CodeQuotaExceeded, "promoter quota exhausted for this table type")
			}
		}

		booking = &models.TableBooking{
			TableTypeID:       tableType.ID,
			EventID:           tableType.EventID,
			Status:            enums.BookingStatusPendingApproval,
			PartySize:         len(input.Participants),
			GuestName:         strings.TrimSpace(input.GuestName),
			PromoterProfileID: input.Actor.PromoterProfileID,
			AccountID:         input.Actor.AccountID,
		}
		if phone := strings.TrimSpace(input.GuestPhone); phone != "" {
			booking.GuestPhone = &phone
		}
		if notes := strings.TrimSpace(input.Notes); notes != "" {
			booking.Notes = &notes
		}

		people := s.people.WithTx(tx)
		for _, p := range input.Participants {
			participant := models.TableParticipant{
				FirstName: strings.TrimSpace(p.FirstName),
				LastName:  strings.TrimSpace(p.LastName),
				Status:    enums.EntryStatusPending,
			}
			person, err := people.Upsert(ctx, identity.ContactInput{
				FirstName: p.FirstName,
				LastName:  p.LastName,
				Phone:     p.Phone,
			})
			if err != nil {
				return err
			}
			if person != nil {
				participant.IdentityID = &person.ID
			}
			if phone := strings.TrimSpace(p.Phone); phone != "" {
				participant.Phone = &phone
			}
			booking.Participants = append(booking.Participants, participant)
		}

		if err := repo.CreateBooking(ctx, booking); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to create booking")
		}

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBookingProposed,
			AggregateType: enums.AggregateTableBooking,
			AggregateID:   booking.ID,
			Actor:         actorRef(input.Actor, input.ActorRole),
			Data: payloads.BookingProposedEvent{
				BookingID:         booking.ID,
				TableTypeID:       tableType.ID,
				EventID:           tableType.EventID,
				PartySize:         booking.PartySize,
				PromoterProfileID: input.Actor.PromoterProfileID,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// GetBooking loads one booking with its participants.
func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*models.TableBooking, error) {
	booking, err := s.repo.FindBookingByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load booking")
	}
	if booking == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
	}
	return booking, nil
}

// GetBookingInTx is GetBooking joined to an open transaction.
func (s *Service) GetBookingInTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.TableBooking, error) {
	booking, err := s.repo.WithTx(tx).FindBookingByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load booking")
	}
	if booking == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
	}
	return booking, nil
}

// ListBookings returns every booking on an event.
func (s *Service) ListBookings(ctx context.Context, eventID uuid.UUID) ([]models.TableBooking, error) {
	if eventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	rows, err := s.repo.ListBookingsByEvent(ctx, eventID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to list bookings")
	}
	return rows, nil
}

// ApproveBooking moves a pending proposal to approved and mints one
// scannable credential per participant, all in one transaction.
func (s *Service) ApproveBooking(ctx context.Context, id, decidedBy uuid.UUID, actor identity.ResolvedIdentity, role string) (*models.TableBooking, error) {
	return s.decideBooking(ctx, id, decidedBy, actor, role, true)
}

// RejectBooking declines a pending proposal and returns the table to
// the pool.
func (s *Service) RejectBooking(ctx context.Context, id, decidedBy uuid.UUID, actor identity.ResolvedIdentity, role string) (*models.TableBooking, error) {
	return s.decideBooking(ctx, id, decidedBy, actor, role, false)
}

func (s *Service) decideBooking(ctx context.Context, id, decidedBy uuid.UUID, actor identity.ResolvedIdentity, role string, approve bool) (*models.TableBooking, error) {
	if id == uuid.Nil || decidedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking id and decider are required")
	}

	target := enums.BookingStatusRejected
	eventType := enums.EventBookingRejected
	if approve {
		target = enums.BookingStatusApproved
		eventType = enums.EventBookingApproved
	}

	var booking *models.TableBooking
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		now := time.Now()
		moved, err := repo.TransitionBooking(ctx, id,
			[]enums.BookingStatus{enums.BookingStatusPendingApproval},
			target,
			map[string]any{"decided_by": decidedBy, "decided_at": now},
		)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to decide booking")
		}

		booking, err = repo.FindBookingByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load booking")
		}
		if booking == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		if !moved {
			if booking.Status == target {
				return nil // repeated decision, idempotent
			}
			return pkgerrors.New(pkgerrors.CodeInvalidState, "booking cannot be decided from status "+booking.Status.String())
		}

		if approve {
			for i := range booking.Participants {
				code, err := credential.Issue(credential.KindTable)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to issue participant credential")
				}
				if err := repo.SetParticipantCredential(ctx, booking.Participants[i].ID, code); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to store participant credential")
				}
				booking.Participants[i].Credential = &code
			}
		} else {
			if err := repo.CancelLiveParticipants(ctx, booking.ID, now); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to cancel participants")
			}
			if err := repo.ReleaseTable(ctx, booking.TableTypeID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to release table")
			}
		}

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateTableBooking,
			AggregateID:   booking.ID,
			Actor:         actorRef(actor, role),
			Data: payloads.BookingDecisionEvent{
				BookingID:   booking.ID,
				TableTypeID: booking.TableTypeID,
				EventID:     booking.EventID,
				Status:      target,
				DecidedBy:   decidedBy,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// CancelBooking cancels a live booking, returns the table to the pool,
// and cancels every live participant.
func (s *Service) CancelBooking(ctx context.Context, id uuid.UUID, actor identity.ResolvedIdentity, role string) (*models.TableBooking, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking id is required")
	}

	var booking *models.TableBooking
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		booking, err = s.CancelBookingInTx(ctx, tx, id, actor, role)
		return err
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// CancelBookingInTx is CancelBooking joined to an open transaction. The
// cancellation workflow uses it to cancel a target atomically with the
// request bookkeeping.
func (s *Service) CancelBookingInTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, actor identity.ResolvedIdentity, role string) (*models.TableBooking, error) {
	repo := s.repo.WithTx(tx)

	now := time.Now()
	moved, err := repo.TransitionBooking(ctx, id,
		[]enums.BookingStatus{enums.BookingStatusPendingApproval, enums.BookingStatusApproved},
		enums.BookingStatusCancelled,
		map[string]any{"cancelled_at": now},
	)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to cancel booking")
	}

	booking, err := repo.FindBookingByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load booking")
	}
	if booking == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
	}
	if !moved {
		if booking.Status == enums.BookingStatusCancelled {
			return booking, nil // already cancelled, idempotent
		}
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, "booking cannot be cancelled from status "+booking.Status.String())
	}

	if err := repo.CancelLiveParticipants(ctx, booking.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to cancel participants")
	}
	if err := repo.ReleaseTable(ctx, booking.TableTypeID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to release table")
	}

	err = s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventBookingCancelled,
		AggregateType: enums.AggregateTableBooking,
		AggregateID:   booking.ID,
		Actor:         actorRef(actor, role),
		Data: payloads.BookingDecisionEvent{
			BookingID:   booking.ID,
			TableTypeID: booking.TableTypeID,
			EventID:     booking.EventID,
			Status:      enums.BookingStatusCancelled,
			DecidedBy:   uuid.Nil,
		},
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
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
