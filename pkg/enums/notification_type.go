package enums

// NotificationType categorizes back-office notifications.
type NotificationType string

const (
	NotificationTypeBookingReview      NotificationType = "booking_review"
	NotificationTypeCancellationReview NotificationType = "cancellation_review"
)

// String implements fmt.Stringer.
func (t NotificationType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known NotificationType.
func (t NotificationType) IsValid() bool {
	switch t {
	case NotificationTypeBookingReview, NotificationTypeCancellationReview:
		return true
	}
	return false
}
