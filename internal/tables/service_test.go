package tables

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/serataapp/serata-backend/internal/assignments"
	"github.com/serataapp/serata-backend/internal/identity"
	"github.com/serataapp/serata-backend/pkg/config"
	dbpkg "github.com/serataapp/serata-backend/pkg/db"
	"github.com/serataapp/serata-backend/pkg/db/models"
	"github.com/serataapp/serata-backend/pkg/enums"
	pkgerrors "github.com/serataapp/serata-backend/pkg/errors"
	"github.com/serataapp/serata-backend/pkg/outbox"
	"github.com/serataapp/serata-backend/pkg/phone"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "tables.db") +
		"?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.TableType{},
		&models.TableBooking{},
		&models.TableParticipant{},
		&models.EventAssignment{},
		&models.TableTypeAssignment{},
		&models.Identity{},
		&models.OutboxEvent{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
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
	svc, err := NewService(dbpkg.NewWithConn(db), NewRepository(db), grants, people, events, nil)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return svc
}

func seedTableType(t *testing.T, db *gorm.DB, totalTables int) *models.TableType {
	t.Helper()
	tableType := &models.TableType{
		TenantID:     uuid.New(),
		EventID:      uuid.New(),
		Name:         "Privé",
		TotalTables:  totalTables,
		MinimumSpend: decimal.NewFromInt(500),
		Active:       true,
	}
	if err := db.Create(tableType).Error; err != nil {
		t.Fatalf("seed table type: %v", err)
	}
	return tableType
}

func seedTableAssignment(t *testing.T, db *gorm.DB, eventID, profileID uuid.UUID) *models.EventAssignment {
	t.Helper()
	assignment := &models.EventAssignment{
		EventID:           eventID,
		PromoterProfileID: &profileID,
		CanProposeTables:  true,
		Active:            true,
		CreatedBy:         uuid.New(),
	}
	if err := db.Create(assignment).Error; err != nil {
		t.Fatalf("seed assignment: %v", err)
	}
	return assignment
}

func promoter(profileID uuid.UUID) identity.ResolvedIdentity {
	return identity.ResolvedIdentity{PromoterProfileID: &profileID}
}

func party(n int) []ParticipantInput {
	participants := make([]ParticipantInput, 0, n)
	for i := 0; i < n; i++ {
		participants = append(participants, ParticipantInput{
			FirstName: "Ospite",
			LastName:  fmt.Sprintf("Tavolo%d", i),
		})
	}
	return participants
}

func TestProposeAndApproveBooking(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	tableType := seedTableType(t, db, 3)
	profileID := uuid.New()
	seedTableAssignment(t, db, tableType.EventID, profileID)

	booking, err := svc.ProposeBooking(ctx, ProposeBookingInput{
		TableTypeID:  tableType.ID,
		GuestName:    "Luca Verdi",
		GuestPhone:   "+39 347 000 1122",
		Participants: party(4),
		Actor:        promoter(profileID),
		ActorRole:    "promoter",
	})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if booking.Status != enums.BookingStatusPendingApproval {
		t.Fatalf("expected pending_approval, got %s", booking.Status)
	}
	if booking.PartySize != 4 || len(booking.Participants) != 4 {
		t.Fatalf("unexpected party: size %d, participants %d", booking.PartySize, len(booking.Participants))
	}
	for _, p := range booking.Participants {
		if p.Credential != nil {
			t.Fatal("credentials must not be minted before approval")
		}
	}

	var pool models.TableType
	if err := db.First(&pool, "id = ?", tableType.ID).Error; err != nil {
		t.Fatalf("load pool: %v", err)
	}
	if pool.BookedTables != 1 {
		t.Fatalf("expected booked_tables 1, got %d", pool.BookedTables)
	}

	manager := uuid.New()
	approved, err := svc.ApproveBooking(ctx, booking.ID, manager, identity.ResolvedIdentity{AccountID: &manager}, "admin")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != enums.BookingStatusApproved {
		t.Fatalf("expected approved, got %s", approved.Status)
	}
	if approved.DecidedBy == nil || *approved.DecidedBy != manager {
		t.Fatal("expected decided_by to be recorded")
	}
	seen := map[string]bool{}
	for _, p := range approved.Participants {
		if p.Credential == nil || !strings.HasPrefix(*p.Credential, "ST-") {
			t.Fatalf("participant missing table credential: %+v", p.Credential)
		}
		if seen[*p.Credential] {
			t.Fatal("duplicate participant credential")
		}
		seen[*p.Credential] = true
	}

	// Approving again is a no-op.
	if _, err := svc.ApproveBooking(ctx, booking.ID, manager, identity.ResolvedIdentity{AccountID: &manager}, "admin"); err != nil {
		t.Fatalf("idempotent approve: %v", err)
	}
}

func TestRejectBookingReleasesTable(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	tableType := seedTableType(t, db, 1)
	profileID := uuid.New()
	seedTableAssignment(t, db, tableType.EventID, profileID)

	booking, err := svc.ProposeBooking(ctx, ProposeBookingInput{
		TableTypeID:  tableType.ID,
		GuestName:    "Sara Neri",
		Participants: party(2),
		Actor:        promoter(profileID),
	})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	// Pool exhausted while the proposal is pending.
	_, err = svc.ProposeBooking(ctx, ProposeBookingInput{
		TableTypeID:  tableType.ID,
		GuestName:    "Altro Gruppo",
		Participants: party(2),
		Actor:        promoter(profileID),
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeCapacityExceeded {
		t.Fatalf("expected capacity error, got %v", err)
	}

	manager := uuid.New()
	rejected, err := svc.RejectBooking(ctx, booking.ID, manager, identity.ResolvedIdentity{AccountID: &manager}, "admin")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != enums.BookingStatusRejected {
		t.Fatalf("expected rejected, got %s", rejected.Status)
	}
	for _, p := range rejected.Participants {
		if p.Status != enums.EntryStatusCancelled {
			t.Fatalf("expected cancelled participant, got %s", p.Status)
		}
	}

	// The released table is available again.
	if _, err := svc.ProposeBooking(ctx, ProposeBookingInput{
		TableTypeID:  tableType.ID,
		GuestName:    "Altro Gruppo",
		Participants: party(2),
		Actor:        promoter(profileID),
	}); err != nil {
		t.Fatalf("propose after release: %v", err)
	}
}

func TestProposeBookingPoolUnderConcurrency(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	const totalTables = 2
	const attempts = 6

	tableType := seedTableType(t, db, totalTables)
	profileID := uuid.New()
	seedTableAssignment(t, db, tableType.EventID, profileID)

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.ProposeBooking(ctx, ProposeBookingInput{
				TableTypeID:  tableType.ID,
				GuestName:    fmt.Sprintf("Gruppo %d", i),
				Participants: party(3),
				Actor:        promoter(profileID),
			})
		}(i)
	}
	wg.Wait()

	booked := 0
	for i, err := range errs {
		if err == nil {
			booked++
			continue
		}
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeCapacityExceeded {
			t.Fatalf("attempt %d: unexpected error: %v", i, err)
		}
	}
	if booked != totalTables {
		t.Fatalf("expected exactly %d bookings, got %d", totalTables, booked)
	}

	var pool models.TableType
	if err := db.First(&pool, "id = ?", tableType.ID).Error; err != nil {
		t.Fatalf("load pool: %v", err)
	}
	if pool.BookedTables != totalTables {
		t.Fatalf("expected booked_tables %d, got %d", totalTables, pool.BookedTables)
	}
}

func TestProposeBookingPartySizeBounds(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	tableType := seedTableType(t, db, 5)
	profileID := uuid.New()
	seedTableAssignment(t, db, tableType.EventID, profileID)

	for _, size := range []int{0, 11} {
		_, err := svc.ProposeBooking(ctx, ProposeBookingInput{
			TableTypeID:  tableType.ID,
			GuestName:    "Gruppo",
			Participants: party(size),
			Actor:        promoter(profileID),
		})
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("size %d: expected validation error, got %v", size, err)
		}
	}
}

func TestProposeBookingPerPromoterQuota(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	tableType := seedTableType(t, db, 10)
	profileID := uuid.New()
	assignment := seedTableAssignment(t, db, tableType.EventID, profileID)
	narrowing := &models.TableTypeAssignment{
		EventAssignmentID: assignment.ID,
		TableTypeID:       tableType.ID,
		Quota:             func() *int { v := 1; return &v }(),
	}
	if err := db.Create(narrowing).Error; err != nil {
		t.Fatalf("seed narrowing: %v", err)
	}

	if _, err := svc.ProposeBooking(ctx, ProposeBookingInput{
		TableTypeID:  tableType.ID,
		GuestName:    "Primo Gruppo",
		Participants: party(2),
		Actor:        promoter(profileID),
	}); err != nil {
		t.Fatalf("first proposal: %v", err)
	}

	_, err := svc.ProposeBooking(ctx, ProposeBookingInput{
		TableTypeID:  tableType.ID,
		GuestName:    "Secondo Gruppo",
		Participants: party(2),
		Actor:        promoter(profileID),
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeQuotaExceeded {
		t.Fatalf("expected quota error, got %v", err)
	}
}

func TestProposeBookingQuotaUnderConcurrency(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	const quota = 2
	const attempts = 8

	tableType := seedTableType(t, db, 20)
	profileID := uuid.New()
	assignment := seedTableAssignment(t, db, tableType.EventID, profileID)
	narrowing := &models.TableTypeAssignment{
		EventAssignmentID: assignment.ID,
		TableTypeID:       tableType.ID,
		Quota:             func() *int { v := quota; return &v }(),
	}
	if err := db.Create(narrowing).Error; err != nil {
		t.Fatalf("seed narrowing: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.ProposeBooking(ctx, ProposeBookingInput{
				TableTypeID:  tableType.ID,
				GuestName:    fmt.Sprintf("Gruppo %d", i),
				Participants: party(2),
				Actor:        promoter(profileID),
			})
		}(i)
	}
	wg.Wait()

	booked := 0
	for i, err := range errs {
		if err == nil {
			booked++
			continue
		}
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeQuotaExceeded {
			t.Fatalf("attempt %d: unexpected error: %v", i, err)
		}
	}
	if booked != quota {
		t.Fatalf("expected exactly %d bookings, got %d", quota, booked)
	}

	// Quota rejections must also return the table they reserved.
	var pool models.TableType
	if err := db.First(&pool, "id = ?", tableType.ID).Error; err != nil {
		t.Fatalf("load pool: %v", err)
	}
	if pool.BookedTables != quota {
		t.Fatalf("expected booked_tables %d, got %d", quota, pool.BookedTables)
	}
}

func TestCancelBookingReleasesTable(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	tableType := seedTableType(t, db, 1)
	profileID := uuid.New()
	seedTableAssignment(t, db, tableType.EventID, profileID)

	booking, err := svc.ProposeBooking(ctx, ProposeBookingInput{
		TableTypeID:  tableType.ID,
		GuestName:    "Gruppo",
		Participants: party(2),
		Actor:        promoter(profileID),
	})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	manager := uuid.New()
	if _, err := svc.ApproveBooking(ctx, booking.ID, manager, identity.ResolvedIdentity{AccountID: &manager}, "admin"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	cancelled, err := svc.CancelBooking(ctx, booking.ID, promoter(profileID), "promoter")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != enums.BookingStatusCancelled || cancelled.CancelledAt == nil {
		t.Fatalf("unexpected cancelled booking: %+v", cancelled.Status)
	}

	var pool models.TableType
	if err := db.First(&pool, "id = ?", tableType.ID).Error; err != nil {
		t.Fatalf("load pool: %v", err)
	}
	if pool.BookedTables != 0 {
		t.Fatalf("expected booked_tables 0, got %d", pool.BookedTables)
	}

	// Cancelling again is a no-op and must not double-release.
	if _, err := svc.CancelBooking(ctx, booking.ID, promoter(profileID), "promoter"); err != nil {
		t.Fatalf("idempotent cancel: %v", err)
	}
	if err := db.First(&pool, "id = ?", tableType.ID).Error; err != nil {
		t.Fatalf("reload pool: %v", err)
	}
	if pool.BookedTables != 0 {
		t.Fatalf("expected booked_tables still 0, got %d", pool.BookedTables)
	}
}
