package notifications

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/serataapp/serata-backend/pkg/db/models"
	"github.com/serataapp/serata-backend/pkg/enums"
	pkgerrors "github.com/serataapp/serata-backend/pkg/errors"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "notifications.db") +
		"?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Notification{}))

	svc, err := NewService(NewRepository(db), nil)
	require.NoError(t, err)
	return svc, db
}

func seedNotification(t *testing.T, db *gorm.DB, tenantID uuid.UUID) *models.Notification {
	t.Helper()
	notification := &models.Notification{
		TenantID: tenantID,
		Type:     enums.NotificationTypeBookingReview,
		Title:    "Table proposal awaiting approval",
		Message:  "A table for 4 guests was proposed and needs a decision.",
	}
	require.NoError(t, db.Create(notification).Error)
	return notification
}

func TestListScopesToTenant(t *testing.T) {
	svc, db := newTestService(t)
	tenantA := uuid.New()
	tenantB := uuid.New()
	seedNotification(t, db, tenantA)
	seedNotification(t, db, tenantA)
	seedNotification(t, db, tenantB)

	rows, err := svc.List(context.Background(), tenantA, false, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		require.Equal(t, tenantA, row.TenantID)
	}
}

func TestListUnreadOnlyExcludesReadRows(t *testing.T) {
	svc, db := newTestService(t)
	tenantID := uuid.New()
	read := seedNotification(t, db, tenantID)
	unread := seedNotification(t, db, tenantID)

	require.NoError(t, svc.MarkRead(context.Background(), tenantID, read.ID))

	rows, err := svc.List(context.Background(), tenantID, true, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, unread.ID, rows[0].ID)
}

func TestMarkReadRejectsForeignTenant(t *testing.T) {
	svc, db := newTestService(t)
	notification := seedNotification(t, db, uuid.New())

	err := svc.MarkRead(context.Background(), uuid.New(), notification.ID)
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestMarkReadIsIdempotent(t *testing.T) {
	svc, db := newTestService(t)
	tenantID := uuid.New()
	notification := seedNotification(t, db, tenantID)

	require.NoError(t, svc.MarkRead(context.Background(), tenantID, notification.ID))
	require.NoError(t, svc.MarkRead(context.Background(), tenantID, notification.ID))

	var stored models.Notification
	require.NoError(t, db.First(&stored, "id = ?", notification.ID).Error)
	require.NotNil(t, stored.ReadAt)
}
