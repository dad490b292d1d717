package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/serataapp/serata-backend/pkg/db/models"
	"github.com/serataapp/serata-backend/pkg/enums"
	"github.com/serataapp/serata-backend/pkg/logger"
	"github.com/serataapp/serata-backend/pkg/outbox"
	"github.com/serataapp/serata-backend/pkg/outbox/payloads"
)

// AssignmentExpiryRepo is the slice of the assignments repository the
// job needs.
type AssignmentExpiryRepo interface {
	DeactivateForPastEvents(ctx context.Context, now time.Time) ([]models.EventAssignment, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// AssignmentExpiryJobParams configure the expiry job.
type AssignmentExpiryJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository func(tx *gorm.DB) AssignmentExpiryRepo
	Outbox     outboxEmitter
}

// NewAssignmentExpiryJob deactivates event assignments whose event has
// already ended, so promoters lose access the day after the night.
func NewAssignmentExpiryJob(params AssignmentExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("assignments repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &assignmentExpiryJob{
		logg:   params.Logger,
		db:     params.DB,
		repo:   params.Repository,
		outbox: params.Outbox,
		now:    time.Now,
	}, nil
}

type assignmentExpiryJob struct {
	logg   *logger.Logger
	db     txRunner
	repo   func(tx *gorm.DB) AssignmentExpiryRepo
	outbox outboxEmitter
	now    func() time.Time
}

func (j *assignmentExpiryJob) Name() string { return "assignment-expiry" }

func (j *assignmentExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	var expired []models.EventAssignment
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.repo(tx).DeactivateForPastEvents(ctx, now)
		if err != nil {
			return fmt.Errorf("deactivate past assignments: %w", err)
		}
		expired = rows

		var emitErrs []error
		for _, assignment := range rows {
			emitErr := j.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventAssignmentDeactivated,
				AggregateType: enums.AggregateEventAssignment,
				AggregateID:   assignment.ID,
				Data: payloads.AssignmentDeactivatedEvent{
					AssignmentID: assignment.ID,
					EventID:      assignment.EventID,
				},
				Version:    1,
				OccurredAt: now,
			})
			if emitErr != nil {
				emitErrs = append(emitErrs,
					fmt.Errorf("emit deactivation for %s: %w", assignment.ID, emitErr))
			}
		}
		return multierr.Combine(emitErrs...)
	})
	if err != nil {
		return err
	}

	logCtx := j.logg.WithField(ctx, "deactivated", len(expired))
	j.logg.Info(logCtx, "assignment expiry complete")
	return nil
}
