package enums

import "fmt"

// BookingStatus tracks the approval workflow of a table booking.
type BookingStatus string

const (
	BookingStatusPendingApproval BookingStatus = "pending_approval"
	BookingStatusApproved        BookingStatus = "approved"
	BookingStatusRejected        BookingStatus = "rejected"
	BookingStatusCancelled       BookingStatus = "cancelled"
)

var validBookingStatuses = []BookingStatus{
	BookingStatusPendingApproval,
	BookingStatusApproved,
	BookingStatusRejected,
	BookingStatusCancelled,
}

// String implements fmt.Stringer.
func (s BookingStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known BookingStatus.
func (s BookingStatus) IsValid() bool {
	for _, candidate := range validBookingStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the workflow is finished for this booking.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusRejected || s == BookingStatusCancelled
}

// ParseBookingStatus converts raw input into a BookingStatus.
func ParseBookingStatus(value string) (BookingStatus, error) {
	for _, candidate := range validBookingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid booking status %q", value)
}
