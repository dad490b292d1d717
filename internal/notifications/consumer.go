package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/serataapp/serata-backend/pkg/db/models"
	"github.com/serataapp/serata-backend/pkg/enums"
	"github.com/serataapp/serata-backend/pkg/logger"
	"github.com/serataapp/serata-backend/pkg/outbox"
	"github.com/serataapp/serata-backend/pkg/outbox/idempotency"
	"github.com/serataapp/serata-backend/pkg/outbox/payloads"
)

const backOfficeConsumer = "backoffice-notifications"

// Consumer watches domain events and turns items that need staff review
// into back-office notifications.
type Consumer struct {
	repo         Repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds a back-office notification consumer.
func NewConsumer(repo Repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg.Attributes["event_type"], msg.ID, msg.Data)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, eventType, messageID string, data []byte) processResult {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": messageID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventBookingProposed) &&
		eventType != string(enums.EventCancellationRequested) {
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, backOfficeConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := c.handle(ctx, eventType, envelope.Data, logCtx); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, backOfficeConsumer, eventID)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func (c *Consumer) handle(ctx context.Context, eventType string, data json.RawMessage, logCtx context.Context) error {
	switch eventType {
	case string(enums.EventBookingProposed):
		return c.notifyBookingProposed(ctx, data, logCtx)
	case string(enums.EventCancellationRequested):
		return c.notifyCancellationRequested(ctx, data, logCtx)
	}
	return nil
}

func (c *Consumer) notifyBookingProposed(ctx context.Context, data json.RawMessage, logCtx context.Context) error {
	var payload payloads.BookingProposedEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse booking payload: %w", err)
	}
	if payload.EventID == uuid.Nil {
		return fmt.Errorf("event id missing")
	}
	tenantID, err := c.repo.TenantForEvent(ctx, payload.EventID)
	if err != nil {
		return fmt.Errorf("resolve tenant for event %s: %w", payload.EventID, err)
	}
	link := fmt.Sprintf("/events/%s/bookings/%s", payload.EventID, payload.BookingID)
	notification := &models.Notification{
		TenantID: tenantID,
		Type:     enums.NotificationTypeBookingReview,
		Title:    "Table proposal awaiting approval",
		Message:  fmt.Sprintf("A table for %d guests was proposed and needs a decision.", payload.PartySize),
		Link:     stringPtr(link),
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "staff notified of booking proposal")
	return nil
}

func (c *Consumer) notifyCancellationRequested(ctx context.Context, data json.RawMessage, logCtx context.Context) error {
	var payload payloads.CancellationRequestedEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse cancellation payload: %w", err)
	}
	if payload.AutoApproved {
		// Nothing for staff to review.
		return nil
	}
	if payload.RequestID == uuid.Nil {
		return fmt.Errorf("request id missing")
	}
	tenantID, err := c.repo.TenantForCancellation(ctx, payload.RequestID)
	if err != nil {
		return fmt.Errorf("resolve tenant for request %s: %w", payload.RequestID, err)
	}
	link := fmt.Sprintf("/cancellations/%s", payload.RequestID)
	target := "a guest entry"
	if payload.TableBookingID != nil {
		target = "a table booking"
	}
	notification := &models.Notification{
		TenantID: tenantID,
		Type:     enums.NotificationTypeCancellationReview,
		Title:    "Cancellation awaiting review",
		Message:  fmt.Sprintf("A cancellation was requested for %s.", target),
		Link:     stringPtr(link),
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "staff notified of cancellation request")
	return nil
}

func stringPtr(value string) *string {
	return &value
}
