package enums

import "fmt"

// NotificationType classifies persisted notifications.
type NotificationType string

const (
	NotificationOrderCreated     NotificationType = "order_created"
	NotificationOrderStatus      NotificationType = "order_status"
	NotificationPaymentRequested NotificationType = "payment_requested"
	NotificationPaymentCompleted NotificationType = "payment_completed"
	NotificationPaymentFailed    NotificationType = "payment_failed"
	NotificationReservation      NotificationType = "reservation"
	NotificationSupportRequested NotificationType = "support_requested"
	NotificationSystem           NotificationType = "system"
)

var validNotificationTypes = []NotificationType{
	NotificationOrderCreated,
	NotificationOrderStatus,
	NotificationPaymentRequested,
	NotificationPaymentCompleted,
	NotificationPaymentFailed,
	NotificationReservation,
	NotificationSupportRequested,
	NotificationSystem,
}

// IsValid reports whether the value is a known NotificationType.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw input into a NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
