package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/serataapp/serata-backend/pkg/config"
	"github.com/serataapp/serata-backend/pkg/db/models"
	"github.com/serataapp/serata-backend/pkg/enums"
	"github.com/serataapp/serata-backend/pkg/outbox"
	"github.com/serataapp/serata-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate/topic/payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() interface{}
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

// Error implements error.
func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

// NewEventRegistry builds the registry with the configured topic names.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.NotificationTopic == "" {
		return nil, fmt.Errorf("notification topic is required")
	}
	if cfg.CheckinTopic == "" {
		return nil, fmt.Errorf("checkin topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	notificationTopic := cfg.NotificationTopic
	checkinTopic := cfg.CheckinTopic

	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventGuestAdmitted,
			AggregateType:  enums.AggregateGuestListEntry,
			Topic:          notificationTopic,
			PayloadFactory: func() interface{} { return &payloads.GuestAdmittedEvent{} },
		},
		{
			EventType:      enums.EventGuestConfirmed,
			AggregateType:  enums.AggregateGuestListEntry,
			Topic:          notificationTopic,
			PayloadFactory: func() interface{} { return &payloads.GuestStatusEvent{} },
		},
		{
			EventType:      enums.EventGuestCancelled,
			AggregateType:  enums.AggregateGuestListEntry,
			Topic:          notificationTopic,
			PayloadFactory: func() interface{} { return &payloads.GuestStatusEvent{} },
		},
		{
			EventType:      enums.EventBookingProposed,
			AggregateType:  enums.AggregateTableBooking,
			Topic:          notificationTopic,
			PayloadFactory: func() interface{} { return &payloads.BookingProposedEvent{} },
		},
		{
			EventType:      enums.EventBookingApproved,
			AggregateType:  enums.AggregateTableBooking,
			Topic:          notificationTopic,
			PayloadFactory: func() interface{} { return &payloads.BookingDecisionEvent{} },
		},
		{
			EventType:      enums.EventBookingRejected,
			AggregateType:  enums.AggregateTableBooking,
			Topic:          notificationTopic,
			PayloadFactory: func() interface{} { return &payloads.BookingDecisionEvent{} },
		},
		{
			EventType:      enums.EventBookingCancelled,
			AggregateType:  enums.AggregateTableBooking,
			Topic:          notificationTopic,
			PayloadFactory: func() interface{} { return &payloads.BookingDecisionEvent{} },
		},
		{
			EventType:      enums.EventCancellationRequested,
			AggregateType:  enums.AggregateCancellation,
			Topic:          notificationTopic,
			PayloadFactory: func() interface{} { return &payloads.CancellationRequestedEvent{} },
		},
		{
			EventType:      enums.EventCancellationDecided,
			AggregateType:  enums.AggregateCancellation,
			Topic:          notificationTopic,
			PayloadFactory: func() interface{} { return &payloads.CancellationDecidedEvent{} },
		},
		{
			EventType:      enums.EventAssignmentDeactivated,
			AggregateType:  enums.AggregateEventAssignment,
			Topic:          notificationTopic,
			PayloadFactory: func() interface{} { return &payloads.AssignmentDeactivatedEvent{} },
		},
		{
			EventType:      enums.EventCampaignMessageQueued,
			AggregateType:  enums.AggregateCampaign,
			Topic:          notificationTopic,
			PayloadFactory: func() interface{} { return &payloads.CampaignMessageQueuedEvent{} },
		},
	} {
		reg.register(desc)
	}

	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventGuestArrived,
			AggregateType:  enums.AggregateGuestListEntry,
			Topic:          checkinTopic,
			PayloadFactory: func() interface{} { return &payloads.GuestArrivedEvent{} },
		},
		{
			EventType:      enums.EventParticipantArrived,
			AggregateType:  enums.AggregateTableParticipant,
			Topic:          checkinTopic,
			PayloadFactory: func() interface{} { return &payloads.ParticipantArrivedEvent{} },
		},
	} {
		reg.register(desc)
	}

	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}
