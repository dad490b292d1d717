package cancellations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/serataapp/serata-backend/internal/assignments"
	"github.com/serataapp/serata-backend/internal/guestlists"
	"github.com/serataapp/serata-backend/internal/identity"
	"github.com/serataapp/serata-backend/internal/tables"
	"github.com/serataapp/serata-backend/pkg/config"
	dbpkg "github.com/serataapp/serata-backend/pkg/db"
	"github.com/serataapp/serata-backend/pkg/db/models"
	"github.com/serataapp/serata-backend/pkg/enums"
	pkgerrors "github.com/serataapp/serata-backend/pkg/errors"
	"github.com/serataapp/serata-backend/pkg/outbox"
	"github.com/serataapp/serata-backend/pkg/phone"
)

type testEnv struct {
	db       *gorm.DB
	svc      *Service
	guests   *guestlists.Service
	bookings *tables.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "cancellations.db") +
		"?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.GuestList{},
		&models.GuestListEntry{},
		&models.TableType{},
		&models.TableBooking{},
		&models.TableParticipant{},
		&models.EventAssignment{},
		&models.ListAssignment{},
		&models.TableTypeAssignment{},
		&models.Identity{},
		&models.CancellationRequest{},
		&models.OutboxEvent{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	client := dbpkg.NewWithConn(db)
	grants, err := assignments.NewRegistry(assignments.NewRepository(db), nil)
	if err != nil {
		t.Fatalf("assignment registry: %v", err)
	}
	matcher := phone.NewMatcher(config.PhoneConfig{DefaultCountryCode: "39", MinMatchDigits: 6})
	people, err := identity.NewRegistry(identity.NewRepository(db), matcher)
	if err != nil {
		t.Fatalf("identity registry: %v", err)
	}
	events := outbox.NewService(outbox.NewRepository(db), nil)

	guests, err := guestlists.NewService(client, guestlists.NewRepository(db), grants, people, events, nil)
	if err != nil {
		t.Fatalf("guestlists service: %v", err)
	}
	bookings, err := tables.NewService(client, tables.NewRepository(db), grants, people, events, nil)
	if err != nil {
		t.Fatalf("tables service: %v", err)
	}
	svc, err := NewService(client, NewRepository(db), guests, bookings, events, nil)
	if err != nil {
		t.Fatalf("cancellations service: %v", err)
	}
	return &testEnv{db: db, svc: svc, guests: guests, bookings: bookings}
}

func (e *testEnv) seedEntry(t *testing.T, autoApprove bool) (*models.GuestList, *models.GuestListEntry, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	profileID := uuid.New()

	list := &models.GuestList{
		TenantID:                 uuid.New(),
		EventID:                  uuid.New(),
		Name:                     "Lista Venerdì",
		Active:                   true,
		AutoApproveCancellations: autoApprove,
	}
	if err := e.db.Create(list).Error; err != nil {
		t.Fatalf("seed list: %v", err)
	}
	assignment := &models.EventAssignment{
		EventID:           list.EventID,
		PromoterProfileID: &profileID,
		CanAddToGuests:    true,
		Active:            true,
		CreatedBy:         uuid.New(),
	}
	if err := e.db.Create(assignment).Error; err != nil {
		t.Fatalf("seed assignment: %v", err)
	}

	entry, err := e.guests.AddGuest(ctx, guestlists.AddGuestInput{
		GuestListID: list.ID,
		FirstName:   "Marco",
		LastName:    "Rossi",
		Actor:       identity.ResolvedIdentity{PromoterProfileID: &profileID},
	})
	if err != nil {
		t.Fatalf("seed entry: %v", err)
	}
	return list, entry, profileID
}

func TestRequestValidatesTarget(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Request(ctx, RequestInput{TenantID: uuid.New()})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for no target, got %v", err)
	}

	entryID := uuid.New()
	bookingID := uuid.New()
	_, err = env.svc.Request(ctx, RequestInput{
		TenantID:         uuid.New(),
		GuestListEntryID: &entryID,
		TableBookingID:   &bookingID,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for both targets, got %v", err)
	}
}

func TestRequestThenApproveCancelsEntry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	list, entry, profileID := env.seedEntry(t, false)
	actor := identity.ResolvedIdentity{PromoterProfileID: &profileID}

	request, err := env.svc.Request(ctx, RequestInput{
		TenantID:         list.TenantID,
		GuestListEntryID: &entry.ID,
		Reason:           "guest is sick",
		Actor:            actor,
		ActorRole:        "promoter",
	})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if request.Status != enums.CancellationStatusPending || request.AutoApproved {
		t.Fatalf("expected plain pending request, got %+v", request)
	}

	// The entry is untouched while the request is pending.
	var pendingEntry models.GuestListEntry
	if err := env.db.First(&pendingEntry, "id = ?", entry.ID).Error; err != nil {
		t.Fatalf("load entry: %v", err)
	}
	if pendingEntry.Status != enums.EntryStatusPending {
		t.Fatalf("entry changed before decision: %s", pendingEntry.Status)
	}

	manager := uuid.New()
	decided, err := env.svc.Approve(ctx, request.ID, manager, identity.ResolvedIdentity{AccountID: &manager}, "admin")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if decided.Status != enums.CancellationStatusApproved {
		t.Fatalf("expected approved, got %s", decided.Status)
	}

	var cancelled models.GuestListEntry
	if err := env.db.First(&cancelled, "id = ?", entry.ID).Error; err != nil {
		t.Fatalf("reload entry: %v", err)
	}
	if cancelled.Status != enums.EntryStatusCancelled {
		t.Fatalf("expected cancelled entry, got %s", cancelled.Status)
	}

	var refreshedList models.GuestList
	if err := env.db.First(&refreshedList, "id = ?", list.ID).Error; err != nil {
		t.Fatalf("load list: %v", err)
	}
	if refreshedList.CurrentCount != 0 {
		t.Fatalf("expected released slot, current_count %d", refreshedList.CurrentCount)
	}
}

func TestRequestAutoApproves(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	list, entry, profileID := env.seedEntry(t, true)
	actor := identity.ResolvedIdentity{PromoterProfileID: &profileID}

	request, err := env.svc.Request(ctx, RequestInput{
		TenantID:         list.TenantID,
		GuestListEntryID: &entry.ID,
		Actor:            actor,
		ActorRole:        "promoter",
	})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if request.Status != enums.CancellationStatusApproved || !request.AutoApproved {
		t.Fatalf("expected auto-approved request, got %+v", request)
	}

	var cancelled models.GuestListEntry
	if err := env.db.First(&cancelled, "id = ?", entry.ID).Error; err != nil {
		t.Fatalf("load entry: %v", err)
	}
	if cancelled.Status != enums.EntryStatusCancelled {
		t.Fatalf("expected cancelled entry, got %s", cancelled.Status)
	}

	var decidedEvents int64
	if err := env.db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventCancellationDecided).
		Count(&decidedEvents).Error; err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	if decidedEvents != 1 {
		t.Fatalf("expected decided event alongside auto-approval, got %d", decidedEvents)
	}
}

func TestRejectLeavesEntryAlone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	list, entry, profileID := env.seedEntry(t, false)
	actor := identity.ResolvedIdentity{PromoterProfileID: &profileID}

	request, err := env.svc.Request(ctx, RequestInput{
		TenantID:         list.TenantID,
		GuestListEntryID: &entry.ID,
		Actor:            actor,
	})
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	manager := uuid.New()
	rejected, err := env.svc.Reject(ctx, request.ID, manager, identity.ResolvedIdentity{AccountID: &manager}, "admin")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != enums.CancellationStatusRejected {
		t.Fatalf("expected rejected, got %s", rejected.Status)
	}

	var untouched models.GuestListEntry
	if err := env.db.First(&untouched, "id = ?", entry.ID).Error; err != nil {
		t.Fatalf("load entry: %v", err)
	}
	if untouched.Status != enums.EntryStatusPending {
		t.Fatalf("expected entry untouched, got %s", untouched.Status)
	}

	// A rejected request frees the target for a new one.
	if _, err := env.svc.Request(ctx, RequestInput{
		TenantID:         list.TenantID,
		GuestListEntryID: &entry.ID,
		Actor:            actor,
	}); err != nil {
		t.Fatalf("second request after rejection: %v", err)
	}
}

func TestDuplicatePendingRequestConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	list, entry, profileID := env.seedEntry(t, false)
	actor := identity.ResolvedIdentity{PromoterProfileID: &profileID}

	if _, err := env.svc.Request(ctx, RequestInput{
		TenantID:         list.TenantID,
		GuestListEntryID: &entry.ID,
		Actor:            actor,
	}); err != nil {
		t.Fatalf("first request: %v", err)
	}

	_, err := env.svc.Request(ctx, RequestInput{
		TenantID:         list.TenantID,
		GuestListEntryID: &entry.ID,
		Actor:            actor,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestApproveBookingRequestReleasesTable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tenantID := uuid.New()
	profileID := uuid.New()
	tableType := &models.TableType{
		TenantID:    tenantID,
		EventID:     uuid.New(),
		Name:        "Privé",
		TotalTables: 1,
		Active:      true,
	}
	if err := env.db.Create(tableType).Error; err != nil {
		t.Fatalf("seed table type: %v", err)
	}
	assignment := &models.EventAssignment{
		EventID:           tableType.EventID,
		PromoterProfileID: &profileID,
		CanProposeTables:  true,
		Active:            true,
		CreatedBy:         uuid.New(),
	}
	if err := env.db.Create(assignment).Error; err != nil {
		t.Fatalf("seed assignment: %v", err)
	}

	booking, err := env.bookings.ProposeBooking(ctx, tables.ProposeBookingInput{
		TableTypeID: tableType.ID,
		GuestName:   "Luca Verdi",
		Participants: []tables.ParticipantInput{
			{FirstName: "Luca", LastName: "Verdi"},
			{FirstName: "Anna", LastName: "Gialli"},
		},
		Actor: identity.ResolvedIdentity{PromoterProfileID: &profileID},
	})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	request, err := env.svc.Request(ctx, RequestInput{
		TenantID:       tenantID,
		TableBookingID: &booking.ID,
		Actor:          identity.ResolvedIdentity{PromoterProfileID: &profileID},
	})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if request.Status != enums.CancellationStatusPending {
		t.Fatalf("booking requests never auto-approve, got %s", request.Status)
	}

	manager := uuid.New()
	if _, err := env.svc.Approve(ctx, request.ID, manager, identity.ResolvedIdentity{AccountID: &manager}, "admin"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	var pool models.TableType
	if err := env.db.First(&pool, "id = ?", tableType.ID).Error; err != nil {
		t.Fatalf("load pool: %v", err)
	}
	if pool.BookedTables != 0 {
		t.Fatalf("expected released table, booked_tables %d", pool.BookedTables)
	}

	var cancelledBooking models.TableBooking
	if err := env.db.First(&cancelledBooking, "id = ?", booking.ID).Error; err != nil {
		t.Fatalf("load booking: %v", err)
	}
	if cancelledBooking.Status != enums.BookingStatusCancelled {
		t.Fatalf("expected cancelled booking, got %s", cancelledBooking.Status)
	}
}
