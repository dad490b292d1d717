package enums

import "fmt"

// EntryStatus tracks the lifecycle of a guest-list entry or table participant.
type EntryStatus string

const (
	EntryStatusPending   EntryStatus = "pending"
	EntryStatusConfirmed EntryStatus = "confirmed"
	EntryStatusArrived   EntryStatus = "arrived"
	EntryStatusCancelled EntryStatus = "cancelled"
)

var validEntryStatuses = []EntryStatus{
	EntryStatusPending,
	EntryStatusConfirmed,
	EntryStatusArrived,
	EntryStatusCancelled,
}

// String implements fmt.Stringer.
func (s EntryStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known EntryStatus.
func (s EntryStatus) IsValid() bool {
	for _, candidate := range validEntryStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition may leave the status.
func (s EntryStatus) IsTerminal() bool {
	return s == EntryStatusArrived || s == EntryStatusCancelled
}

// IsLive reports whether the entry still occupies a list slot.
func (s EntryStatus) IsLive() bool {
	return s != EntryStatusCancelled
}

// CanTransitionTo reports whether the lifecycle permits moving to next.
func (s EntryStatus) CanTransitionTo(next EntryStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch next {
	case EntryStatusConfirmed:
		return s == EntryStatusPending
	case EntryStatusArrived:
		return s == EntryStatusPending || s == EntryStatusConfirmed
	case EntryStatusCancelled:
		return s == EntryStatusPending || s == EntryStatusConfirmed
	}
	return false
}

// ParseEntryStatus converts raw input into an EntryStatus.
func ParseEntryStatus(value string) (EntryStatus, error) {
	for _, candidate := range validEntryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid entry status %q", value)
}
