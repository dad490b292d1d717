package notifications

import (
	"context"

	"github.com/google/uuid"

	"github.com/serataapp/serata-backend/pkg/db/models"
	pkgerrors "github.com/serataapp/serata-backend/pkg/errors"
	"github.com/serataapp/serata-backend/pkg/logger"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Service exposes the back-office notification inbox.
type Service struct {
	repo Repository
	logg *logger.Logger
}

// NewService wires notification dependencies.
func NewService(repo Repository, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notifications: missing dependency")
	}
	return &Service{repo: repo, logg: logg}, nil
}

// List returns the most recent notifications for a tenant.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	rows, err := s.repo.ListByTenant(ctx, tenantID, unreadOnly, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	return rows, nil
}

// MarkRead flags a notification as read. Marking an already-read row is a no-op.
func (s *Service) MarkRead(ctx context.Context, tenantID, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}
	notification, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load notification")
	}
	if notification == nil || notification.TenantID != tenantID {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	if _, err := s.repo.MarkRead(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	return nil
}
