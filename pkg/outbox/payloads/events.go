package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/serataapp/serata-backend/pkg/enums"
)

// GuestAdmittedEvent is emitted when an entry clears the capacity/quota
// checks and lands on a list.
type GuestAdmittedEvent struct {
	EntryID           uuid.UUID  `json:"entry_id"`
	GuestListID       uuid.UUID  `json:"guest_list_id"`
	EventID           uuid.UUID  `json:"event_id"`
	PromoterProfileID *uuid.UUID `json:"promoter_profile_id,omitempty"`
	GuestName         string     `json:"guest_name"`
}

// GuestStatusEvent covers confirm/cancel transitions on a guest entry.
type GuestStatusEvent struct {
	EntryID     uuid.UUID         `json:"entry_id"`
	GuestListID uuid.UUID         `json:"guest_list_id"`
	Status      enums.EntryStatus `json:"status"`
}

// GuestArrivedEvent is emitted on first successful credential redemption.
type GuestArrivedEvent struct {
	EntryID     uuid.UUID `json:"entry_id"`
	GuestListID uuid.UUID `json:"guest_list_id"`
	ScannedBy   uuid.UUID `json:"scanned_by"`
	ScannedAt   time.Time `json:"scanned_at"`
}

// BookingProposedEvent signals a new table proposal awaiting decision.
type BookingProposedEvent struct {
	BookingID         uuid.UUID  `json:"booking_id"`
	TableTypeID       uuid.UUID  `json:"table_type_id"`
	EventID           uuid.UUID  `json:"event_id"`
	PartySize         int        `json:"party_size"`
	PromoterProfileID *uuid.UUID `json:"promoter_profile_id,omitempty"`
}

// BookingDecisionEvent is emitted when a manager decides a proposal.
type BookingDecisionEvent struct {
	BookingID   uuid.UUID           `json:"booking_id"`
	TableTypeID uuid.UUID           `json:"table_type_id"`
	EventID     uuid.UUID           `json:"event_id"`
	Status      enums.BookingStatus `json:"status"`
	DecidedBy   uuid.UUID           `json:"decided_by"`
}

// ParticipantArrivedEvent is emitted on first redemption of a table credential.
type ParticipantArrivedEvent struct {
	ParticipantID  uuid.UUID `json:"participant_id"`
	TableBookingID uuid.UUID `json:"table_booking_id"`
	ScannedBy      uuid.UUID `json:"scanned_by"`
	ScannedAt      time.Time `json:"scanned_at"`
}

// CancellationRequestedEvent signals a pending cancellation awaiting review.
type CancellationRequestedEvent struct {
	RequestID        uuid.UUID  `json:"request_id"`
	GuestListEntryID *uuid.UUID `json:"guest_list_entry_id,omitempty"`
	TableBookingID   *uuid.UUID `json:"table_booking_id,omitempty"`
	AutoApproved     bool       `json:"auto_approved"`
}

// CancellationDecidedEvent is emitted when a request reaches a terminal state.
type CancellationDecidedEvent struct {
	RequestID uuid.UUID                `json:"request_id"`
	Status    enums.CancellationStatus `json:"status"`
	DecidedBy *uuid.UUID               `json:"decided_by,omitempty"`
}

// AssignmentDeactivatedEvent is emitted by the expiry job.
type AssignmentDeactivatedEvent struct {
	AssignmentID uuid.UUID `json:"assignment_id"`
	EventID      uuid.UUID `json:"event_id"`
}

// CampaignMessageQueuedEvent tells the messaging pipeline to deliver one message.
type CampaignMessageQueuedEvent struct {
	CampaignID          uuid.UUID `json:"campaign_id"`
	RecipientIdentityID uuid.UUID `json:"recipient_identity_id"`
	Channel             string    `json:"channel"`
}
