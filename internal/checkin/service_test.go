package checkin

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/serataapp/serata-backend/pkg/credential"
	dbpkg "github.com/serataapp/serata-backend/pkg/db"
	"github.com/serataapp/serata-backend/pkg/db/models"
	"github.com/serataapp/serata-backend/pkg/enums"
	pkgerrors "github.com/serataapp/serata-backend/pkg/errors"
	"github.com/serataapp/serata-backend/pkg/metrics"
	"github.com/serataapp/serata-backend/pkg/outbox"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "checkin.db") +
		"?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.GuestListEntry{},
		&models.TableParticipant{},
		&models.OutboxEvent{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	events := outbox.NewService(outbox.NewRepository(db), nil)
	svc, err := NewService(dbpkg.NewWithConn(db), NewRepository(db), events, metrics.NewCheckInMetrics(nil), nil)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return svc
}

func seedGuest(t *testing.T, db *gorm.DB, status enums.EntryStatus) *models.GuestListEntry {
	t.Helper()
	code, err := credential.Issue(credential.KindGuest)
	if err != nil {
		t.Fatalf("issue credential: %v", err)
	}
	entry := &models.GuestListEntry{
		GuestListID: uuid.New(),
		FirstName:   "Marco",
		LastName:    "Rossi",
		Status:      status,
		Credential:  code,
	}
	if err := db.Create(entry).Error; err != nil {
		t.Fatalf("seed entry: %v", err)
	}
	return entry
}

func seedParticipant(t *testing.T, db *gorm.DB) *models.TableParticipant {
	t.Helper()
	code, err := credential.Issue(credential.KindTable)
	if err != nil {
		t.Fatalf("issue credential: %v", err)
	}
	participant := &models.TableParticipant{
		TableBookingID: uuid.New(),
		FirstName:      "Giulia",
		LastName:       "Bianchi",
		Status:         enums.EntryStatusConfirmed,
		Credential:     &code,
	}
	if err := db.Create(participant).Error; err != nil {
		t.Fatalf("seed participant: %v", err)
	}
	return participant
}

func TestRedeemGuestFirstScan(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	entry := seedGuest(t, db, enums.EntryStatusPending)
	door := uuid.New()

	result, err := svc.Redeem(ctx, entry.Credential, door)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if result.Kind != credential.KindGuest || result.Guest == nil {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Guest.Status != enums.EntryStatusArrived {
		t.Fatalf("expected arrived, got %s", result.Guest.Status)
	}
	if result.Guest.ScannedAt == nil || result.Guest.ScannedBy == nil || *result.Guest.ScannedBy != door {
		t.Fatal("expected scan attribution on entry")
	}

	var outboxCount int64
	if err := db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventGuestArrived).
		Count(&outboxCount).Error; err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	if outboxCount != 1 {
		t.Fatalf("expected 1 arrived event, got %d", outboxCount)
	}
}

func TestRedeemGuestNormalizesInput(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	entry := seedGuest(t, db, enums.EntryStatusConfirmed)
	scanned := "  " + strings.ToLower(entry.Credential) + "  "

	if _, err := svc.Redeem(ctx, scanned, uuid.New()); err != nil {
		t.Fatalf("redeem lower-case scan: %v", err)
	}
}

func TestRedeemGuestDuplicate(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	entry := seedGuest(t, db, enums.EntryStatusPending)
	firstDoor := uuid.New()

	first, err := svc.Redeem(ctx, entry.Credential, firstDoor)
	if err != nil {
		t.Fatalf("first scan: %v", err)
	}

	_, err = svc.Redeem(ctx, entry.Credential, uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeAlreadyRedeemed {
		t.Fatalf("expected already redeemed, got %v", err)
	}
	prior, ok := typed.Details().(PriorScan)
	if !ok {
		t.Fatalf("expected prior scan details, got %T", typed.Details())
	}
	if prior.ScannedBy != firstDoor {
		t.Fatalf("expected first door in details, got %s", prior.ScannedBy)
	}
	if !prior.ScannedAt.Equal(*first.Guest.ScannedAt) {
		t.Fatal("expected original scan time in details")
	}
}

func TestRedeemCancelledCredential(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	entry := seedGuest(t, db, enums.EntryStatusCancelled)

	_, err := svc.Redeem(ctx, entry.Credential, uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInvalidState {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestRedeemUnknownAndMalformed(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	unknown, err := credential.Issue(credential.KindGuest)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	_, err = svc.Redeem(ctx, unknown, uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	_, err = svc.Redeem(ctx, "QR-NOTAREALCREDENTIAL", uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRedeemParticipant(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	participant := seedParticipant(t, db)
	door := uuid.New()

	result, err := svc.Redeem(ctx, *participant.Credential, door)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if result.Kind != credential.KindTable || result.Participant == nil {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Participant.Status != enums.EntryStatusArrived {
		t.Fatalf("expected arrived, got %s", result.Participant.Status)
	}

	_, err = svc.Redeem(ctx, *participant.Credential, uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeAlreadyRedeemed {
		t.Fatalf("expected already redeemed, got %v", err)
	}

	var outboxCount int64
	if err := db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventParticipantArrived).
		Count(&outboxCount).Error; err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	if outboxCount != 1 {
		t.Fatalf("expected 1 arrived event, got %d", outboxCount)
	}
}

func TestRedeemConcurrentScans(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	entry := seedGuest(t, db, enums.EntryStatusConfirmed)

	const scanners = 8
	var wg sync.WaitGroup
	errs := make([]error, scanners)
	for i := 0; i < scanners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Redeem(ctx, entry.Credential, uuid.New())
		}(i)
	}
	wg.Wait()

	arrived := 0
	for i, err := range errs {
		if err == nil {
			arrived++
			continue
		}
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeAlreadyRedeemed {
			t.Fatalf("scanner %d: unexpected error: %v", i, err)
		}
	}
	if arrived != 1 {
		t.Fatalf("expected exactly one arrival, got %d", arrived)
	}

	var outboxCount int64
	if err := db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventGuestArrived).
		Count(&outboxCount).Error; err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	if outboxCount != 1 {
		t.Fatalf("expected exactly one arrived event, got %d", outboxCount)
	}
}
