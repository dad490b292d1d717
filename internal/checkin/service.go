package checkin

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/serataapp/serata-backend/pkg/credential"
	dbpkg "github.com/serataapp/serata-backend/pkg/db"
	"github.com/serataapp/serata-backend/pkg/db/models"
	"github.com/serataapp/serata-backend/pkg/enums"
	pkgerrors "github.com/serataapp/serata-backend/pkg/errors"
	"github.com/serataapp/serata-backend/pkg/logger"
	"github.com/serataapp/serata-backend/pkg/metrics"
	"github.com/serataapp/serata-backend/pkg/outbox"
	"github.com/serataapp/serata-backend/pkg/outbox/payloads"
)

// Rejection reasons reported to metrics.
const (
	rejectMalformed = "malformed"
	rejectUnknown   = "unknown"
	rejectCancelled = "cancelled"
)

// ScanResult describes an accepted redemption.
type ScanResult struct {
	Kind        credential.Kind
	Guest       *models.GuestListEntry
	Participant *models.TableParticipant
	ScannedAt   time.Time
}

// PriorScan is attached as details to ALREADY_REDEEMED errors so door
// staff can see when and by whom the credential was first used.
type PriorScan struct {
	ScannedAt time.Time `json:"scanned_at"`
	ScannedBy uuid.UUID `json:"scanned_by"`
}

// Service redeems scannable credentials at the door. The credential
// prefix routes to the right namespace, and the redemption itself is a
// single conditional update so two doors scanning the same code can
// only produce one arrival.
type Service struct {
	db      *dbpkg.Client
	repo    Repository
	events  *outbox.Service
	metrics *metrics.CheckInMetrics
	logg    *logger.Logger
}

// NewService wires the check-in service. Metrics may be nil.
func NewService(db *dbpkg.Client, repo Repository, events *outbox.Service, m *metrics.CheckInMetrics, logg *logger.Logger) (*Service, error) {
	if db == nil || repo == nil || events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkin: missing dependency")
	}
	return &Service{db: db, repo: repo, events: events, metrics: m, logg: logg}, nil
}

// Redeem resolves one scan. It returns the redeemed record on success,
// ALREADY_REDEEMED with the prior scan attached for duplicates, and
// INVALID_STATE for cancelled credentials.
func (s *Service) Redeem(ctx context.Context, raw string, scannedBy uuid.UUID) (*ScanResult, error) {
	start := time.Now()
	if scannedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scanner identity is required")
	}

	kind, err := credential.Parse(raw)
	if err != nil {
		s.metrics.IncRejected(rejectMalformed)
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed credential")
	}
	code := credential.Normalize(raw)

	var result *ScanResult
	switch kind {
	case credential.KindGuest:
		result, err = s.redeemGuest(ctx, code, scannedBy)
	case credential.KindTable:
		result, err = s.redeemParticipant(ctx, code, scannedBy)
	default:
		s.metrics.IncRejected(rejectUnknown)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown credential kind")
	}
	if err != nil {
		return nil, err
	}

	s.metrics.IncArrival(kind.String())
	s.metrics.ObserveScan(kind.String(), time.Since(start).Seconds())
	return result, nil
}

func (s *Service) redeemGuest(ctx context.Context, code string, scannedBy uuid.UUID) (*ScanResult, error) {
	now := time.Now()
	var entry *models.GuestListEntry

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		redeemed, err := repo.RedeemGuest(ctx, code, scannedBy, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to redeem credential")
		}
		entry, err = repo.FindGuestByCredential(ctx, code)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load entry")
		}
		if entry == nil {
			s.metrics.IncRejected(rejectUnknown)
			return pkgerrors.New(pkgerrors.CodeNotFound, "unknown credential")
		}
		if !redeemed {
			return s.rejectGuest(entry)
		}

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventGuestArrived,
			AggregateType: enums.AggregateGuestListEntry,
			AggregateID:   entry.ID,
			Data: payloads.GuestArrivedEvent{
				EntryID:     entry.ID,
				GuestListID: entry.GuestListID,
				ScannedBy:   scannedBy,
				ScannedAt:   now,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return &ScanResult{Kind: credential.KindGuest, Guest: entry, ScannedAt: now}, nil
}

func (s *Service) rejectGuest(entry *models.GuestListEntry) error {
	if entry.Status == enums.EntryStatusCancelled {
		s.metrics.IncRejected(rejectCancelled)
		return pkgerrors.New(pkgerrors.CodeInvalidState, "credential was cancelled")
	}
	if entry.ScannedAt != nil {
		s.metrics.IncDuplicate(credential.KindGuest.String())
		prior := PriorScan{ScannedAt: *entry.ScannedAt}
		if entry.ScannedBy != nil {
			prior.ScannedBy = *entry.ScannedBy
		}
		return pkgerrors.New(pkgerrors.CodeAlreadyRedeemed, "credential already redeemed").WithDetails(prior)
	}
	// The conditional update missed for neither reason we can name.
	return pkgerrors.New(pkgerrors.CodeInternal, "credential could not be redeemed")
}

func (s *Service) redeemParticipant(ctx context.Context, code string, scannedBy uuid.UUID) (*ScanResult, error) {
	now := time.Now()
	var participant *models.TableParticipant

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		redeemed, err := repo.RedeemParticipant(ctx, code, scannedBy, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to redeem credential")
		}
		participant, err = repo.FindParticipantByCredential(ctx, code)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load participant")
		}
		if participant == nil {
			s.metrics.IncRejected(rejectUnknown)
			return pkgerrors.New(pkgerrors.CodeNotFound, "unknown credential")
		}
		if !redeemed {
			return s.rejectParticipant(participant)
		}

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventParticipantArrived,
			AggregateType: enums.AggregateTableParticipant,
			AggregateID:   participant.ID,
			Data: payloads.ParticipantArrivedEvent{
				ParticipantID:  participant.ID,
				TableBookingID: participant.TableBookingID,
				ScannedBy:      scannedBy,
				ScannedAt:      now,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return &ScanResult{Kind: credential.KindTable, Participant: participant, ScannedAt: now}, nil
}

func (s *Service) rejectParticipant(participant *models.TableParticipant) error {
	if participant.Status == enums.EntryStatusCancelled {
		s.metrics.IncRejected(rejectCancelled)
		return pkgerrors.New(pkgerrors.CodeInvalidState, "credential was cancelled")
	}
	if participant.ScannedAt != nil {
		s.metrics.IncDuplicate(credential.KindTable.String())
		prior := PriorScan{ScannedAt: *participant.ScannedAt}
		if participant.ScannedBy != nil {
			prior.ScannedBy = *participant.ScannedBy
		}
		return pkgerrors.New(pkgerrors.CodeAlreadyRedeemed, "credential already redeemed").WithDetails(prior)
	}
	return pkgerrors.New(pkgerrors.CodeInternal, "credential could not be redeemed")
}
