package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateGuestListEntry   OutboxAggregateType = "guest_list_entry"
	AggregateGuestList        OutboxAggregateType = "guest_list"
	AggregateTableBooking     OutboxAggregateType = "table_booking"
	AggregateTableParticipant OutboxAggregateType = "table_participant"
	AggregateCancellation     OutboxAggregateType = "cancellation_request"
	AggregateEventAssignment  OutboxAggregateType = "event_assignment"
	AggregateCampaign         OutboxAggregateType = "campaign"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateGuestListEntry,
	AggregateGuestList,
	AggregateTableBooking,
	AggregateTableParticipant,
	AggregateCancellation,
	AggregateEventAssignment,
	AggregateCampaign,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventGuestAdmitted         OutboxEventType = "guest_admitted"
	EventGuestConfirmed        OutboxEventType = "guest_confirmed"
	EventGuestArrived          OutboxEventType = "guest_arrived"
	EventGuestCancelled        OutboxEventType = "guest_cancelled"
	EventBookingProposed       OutboxEventType = "booking_proposed"
	EventBookingApproved       OutboxEventType = "booking_approved"
	EventBookingRejected       OutboxEventType = "booking_rejected"
	EventBookingCancelled      OutboxEventType = "booking_cancelled"
	EventParticipantArrived    OutboxEventType = "participant_arrived"
	EventCancellationRequested OutboxEventType = "cancellation_requested"
	EventCancellationDecided   OutboxEventType = "cancellation_decided"
	EventAssignmentDeactivated OutboxEventType = "assignment_deactivated"
	EventCampaignMessageQueued OutboxEventType = "campaign_message_queued"
)

var validOutboxEventTypes = []OutboxEventType{
	EventGuestAdmitted,
	EventGuestConfirmed,
	EventGuestArrived,
	EventGuestCancelled,
	EventBookingProposed,
	EventBookingApproved,
	EventBookingRejected,
	EventBookingCancelled,
	EventParticipantArrived,
	EventCancellationRequested,
	EventCancellationDecided,
	EventAssignmentDeactivated,
	EventCampaignMessageQueued,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// OutboxDLQErrorReason maps to the outbox_dlq_error_reason_enum in Postgres.
type OutboxDLQErrorReason string

const (
	DLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts_exhausted"
	DLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
