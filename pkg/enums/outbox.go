package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder          OutboxAggregateType = "order"
	AggregateReservation    OutboxAggregateType = "reservation"
	AggregatePaymentAttempt OutboxAggregateType = "payment_attempt"
	AggregateNotification   OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateReservation,
	AggregatePaymentAttempt,
	AggregateNotification,
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

// OutboxEventType maps to the event_type enum in Postgres. These are the only
// event names producers may emit and the fanout dispatch table consumes.
type OutboxEventType string

const (
	EventOrderCreated           OutboxEventType = "order_created"
	EventOrderStatusChanged     OutboxEventType = "order_status_changed"
	EventOrderItemStatusChanged OutboxEventType = "order_item_status_changed"
	EventPaymentRequested       OutboxEventType = "payment_requested"
	EventPaymentCompleted       OutboxEventType = "payment_completed"
	EventPaymentFailed          OutboxEventType = "payment_failed"
	EventPaymentExpired         OutboxEventType = "payment_expired"
	EventReservationConfirmed   OutboxEventType = "reservation_confirmed"
	EventReservationReleased    OutboxEventType = "reservation_released"
	EventReservationCompleted   OutboxEventType = "reservation_completed"
	EventReservationNoShow      OutboxEventType = "reservation_no_show"
	EventLoyaltyAwardRequested  OutboxEventType = "loyalty_award_requested"
	EventNotificationNew        OutboxEventType = "notification_new"
	EventNotificationBroadcast  OutboxEventType = "notification_broadcast"
	EventNotificationMarkedRead OutboxEventType = "notification_marked_read"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderStatusChanged,
	EventOrderItemStatusChanged,
	EventPaymentRequested,
	EventPaymentCompleted,
	EventPaymentFailed,
	EventPaymentExpired,
	EventReservationConfirmed,
	EventReservationReleased,
	EventReservationCompleted,
	EventReservationNoShow,
	EventLoyaltyAwardRequested,
	EventNotificationNew,
	EventNotificationBroadcast,
	EventNotificationMarkedRead,
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

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
