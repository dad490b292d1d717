package enums

import "fmt"

// CancellationStatus tracks the review state of a cancellation request.
type CancellationStatus string

const (
	CancellationStatusPending  CancellationStatus = "pending"
	CancellationStatusApproved CancellationStatus = "approved"
	CancellationStatusRejected CancellationStatus = "rejected"
)

var validCancellationStatuses = []CancellationStatus{
	CancellationStatusPending,
	CancellationStatusApproved,
	CancellationStatusRejected,
}

// String implements fmt.Stringer.
func (s CancellationStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known CancellationStatus.
func (s CancellationStatus) IsValid() bool {
	for _, candidate := range validCancellationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseCancellationStatus converts raw input into a CancellationStatus.
func ParseCancellationStatus(value string) (CancellationStatus, error) {
	for _, candidate := range validCancellationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cancellation status %q", value)
}
