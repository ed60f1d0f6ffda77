package notifications

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/quangtran/dinehub-backend/pkg/db/models"
	"github.com/quangtran/dinehub-backend/pkg/enums"
	"github.com/quangtran/dinehub-backend/pkg/outbox/payloads"
)

// Wire event names pushed over the socket. This is the closed set both the
// dispatcher and clients consume; producers never invent names outside it.
const (
	WireOrderCreated           = "order:created"
	WireOrderStatusChanged     = "order:statusChanged"
	WireOrderItemStatusChanged = "order:itemStatusChanged"
	WirePaymentRequested       = "payment:requested"
	WirePaymentCompleted       = "payment:completed"
	WirePaymentFailed          = "payment:failed"
	WireNotificationNew        = "notification:new"
	WireNotificationBroadcast  = "notification:broadcast"
	WireNotificationMarkedRead = "notification:markedRead"
)

var staffAudience = string(enums.UserRoleStaff)

// delivery is one routed event: the wire name, the target rooms, and the
// notification row persisted before any push goes out. A nil notification
// means the event is push-only (read-state sync).
type delivery struct {
	wire         string
	rooms        []string
	notification *models.Notification
}

type routeFunc func(data json.RawMessage) (*delivery, error)

// dispatchTable maps every fanned-out event type to its route. Types absent
// here (loyalty awards) are consumed by other processors and skipped.
var dispatchTable = map[enums.OutboxEventType]routeFunc{
	enums.EventOrderCreated:           routeOrderCreated,
	enums.EventOrderStatusChanged:     routeOrderStatusChanged,
	enums.EventOrderItemStatusChanged: routeOrderItemStatusChanged,
	enums.EventPaymentRequested:       routePaymentRequested,
	enums.EventPaymentCompleted:       routePaymentCompleted,
	enums.EventPaymentFailed:          routePaymentFailed,
	enums.EventPaymentExpired:         routePaymentExpired,
	enums.EventReservationConfirmed:   routeReservationConfirmed,
	enums.EventReservationReleased:    routeReservationReleased,
	enums.EventReservationCompleted:   routeReservationCompleted,
	enums.EventReservationNoShow:      routeReservationNoShow,
	enums.EventNotificationNew:        routeNotificationNew,
	enums.EventNotificationBroadcast:  routeNotificationBroadcast,
	enums.EventNotificationMarkedRead: routeNotificationMarkedRead,
}

func routeOrderCreated(data json.RawMessage) (*delivery, error) {
	var payload payloads.OrderCreatedEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	rooms := []string{RoomStaff}
	if payload.TableID != nil {
		rooms = append(rooms, RoomTable(*payload.TableID))
	}
	return &delivery{
		wire:  WireOrderCreated,
		rooms: rooms,
		notification: &models.Notification{
			Type:         enums.NotificationOrderCreated,
			Title:        "New order",
			Message:      fmt.Sprintf("Order opened for %s VND.", formatVND(payload.TotalVND)),
			AudienceRole: &staffAudience,
			OrderID:      &payload.OrderID,
		},
	}, nil
}

func routeOrderStatusChanged(data json.RawMessage) (*delivery, error) {
	var payload payloads.OrderStatusChangedEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return &delivery{
		wire:  WireOrderStatusChanged,
		rooms: []string{RoomOrder(payload.OrderID), RoomStaff},
		notification: &models.Notification{
			Type:    enums.NotificationOrderStatus,
			Title:   "Order updated",
			Message: fmt.Sprintf("Order moved from %s to %s.", payload.From, payload.To),
			OrderID: &payload.OrderID,
		},
	}, nil
}

func routeOrderItemStatusChanged(data json.RawMessage) (*delivery, error) {
	var payload payloads.OrderItemStatusChangedEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return &delivery{
		wire:  WireOrderItemStatusChanged,
		rooms: []string{RoomOrder(payload.OrderID)},
		notification: &models.Notification{
			Type:    enums.NotificationOrderStatus,
			Title:   "Kitchen update",
			Message: fmt.Sprintf("An item is now %s.", payload.Status),
			OrderID: &payload.OrderID,
		},
	}, nil
}

func routePaymentRequested(data json.RawMessage) (*delivery, error) {
	var payload payloads.PaymentRequestedEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	var rooms []string
	if payload.OrderID != nil {
		rooms = append(rooms, RoomOrder(*payload.OrderID))
	}
	return &delivery{
		wire:  WirePaymentRequested,
		rooms: rooms,
		notification: &models.Notification{
			Type:          enums.NotificationPaymentRequested,
			Title:         "Payment started",
			Message:       fmt.Sprintf("A payment of %s VND is awaiting the gateway.", formatVND(payload.AmountVND)),
			OrderID:       payload.OrderID,
			ReservationID: payload.ReservationID,
		},
	}, nil
}

func routePaymentCompleted(data json.RawMessage) (*delivery, error) {
	var payload payloads.PaymentCompletedEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	rooms := []string{RoomStaff}
	if payload.OrderID != nil {
		rooms = append(rooms, RoomOrder(*payload.OrderID))
	}
	return &delivery{
		wire:  WirePaymentCompleted,
		rooms: rooms,
		notification: &models.Notification{
			Type:          enums.NotificationPaymentCompleted,
			Title:         "Payment completed",
			Message:       fmt.Sprintf("Payment of %s VND settled.", formatVND(payload.AmountVND)),
			OrderID:       payload.OrderID,
			ReservationID: payload.ReservationID,
		},
	}, nil
}

func routePaymentFailed(data json.RawMessage) (*delivery, error) {
	var payload payloads.PaymentFailedEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	rooms := []string{RoomStaff}
	if payload.OrderID != nil {
		rooms = append(rooms, RoomOrder(*payload.OrderID))
	}
	return &delivery{
		wire:  WirePaymentFailed,
		rooms: rooms,
		notification: &models.Notification{
			Type:          enums.NotificationPaymentFailed,
			Title:         "Payment failed",
			Message:       fmt.Sprintf("The gateway declined the payment (code %s).", payload.OutcomeCode),
			OrderID:       payload.OrderID,
			ReservationID: payload.ReservationID,
		},
	}, nil
}

func routePaymentExpired(data json.RawMessage) (*delivery, error) {
	var payload payloads.PaymentExpiredEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return &delivery{
		wire:  WireNotificationBroadcast,
		rooms: []string{RoomStaff},
		notification: &models.Notification{
			Type:         enums.NotificationSystem,
			Title:        "Payment attempt expired",
			Message:      fmt.Sprintf("Attempt %s timed out without a gateway result.", payload.TxnRef),
			AudienceRole: &staffAudience,
		},
	}, nil
}

func routeReservationConfirmed(data json.RawMessage) (*delivery, error) {
	var payload payloads.ReservationConfirmedEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	message := fmt.Sprintf("Reservation confirmed with a %s VND deposit.", formatVND(payload.DepositVND))
	if payload.Waived {
		message = "Reservation confirmed with the deposit waived."
	}
	return &delivery{
		wire:  WireNotificationBroadcast,
		rooms: []string{RoomStaff},
		notification: &models.Notification{
			Type:          enums.NotificationReservation,
			Title:         "Reservation confirmed",
			Message:       message,
			AudienceRole:  &staffAudience,
			ReservationID: &payload.ReservationID,
		},
	}, nil
}

func routeReservationReleased(data json.RawMessage) (*delivery, error) {
	var payload payloads.ReservationReleasedEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return &delivery{
		wire:  WireNotificationBroadcast,
		rooms: []string{RoomStaff},
		notification: &models.Notification{
			Type:          enums.NotificationReservation,
			Title:         "Reservation released",
			Message:       fmt.Sprintf("Table hold released: %s.", payload.Reason),
			AudienceRole:  &staffAudience,
			ReservationID: &payload.ReservationID,
		},
	}, nil
}

func routeReservationCompleted(data json.RawMessage) (*delivery, error) {
	var payload payloads.ReservationCompletedEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return &delivery{
		wire:  WireNotificationBroadcast,
		rooms: []string{RoomStaff},
		notification: &models.Notification{
			Type:          enums.NotificationReservation,
			Title:         "Reservation completed",
			Message:       "The visit has ended and the table is free.",
			AudienceRole:  &staffAudience,
			ReservationID: &payload.ReservationID,
		},
	}, nil
}

func routeReservationNoShow(data json.RawMessage) (*delivery, error) {
	var payload payloads.ReservationNoShowEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return &delivery{
		wire:  WireNotificationBroadcast,
		rooms: []string{RoomStaff},
		notification: &models.Notification{
			Type:          enums.NotificationReservation,
			Title:         "Reservation no-show",
			Message:       "The party never arrived; the deposit is kept.",
			AudienceRole:  &staffAudience,
			ReservationID: &payload.ReservationID,
		},
	}, nil
}

// routeNotificationNew fans out a notification some producer already
// persisted, for flows that target a specific user directly (support
// requests, manual staff messages).
func routeNotificationNew(data json.RawMessage) (*delivery, error) {
	var payload payloads.NotificationNewEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	var rooms []string
	if payload.RecipientUserID != nil {
		rooms = append(rooms, RoomUser(*payload.RecipientUserID))
	}
	if payload.AudienceRole == string(enums.UserRoleStaff) {
		rooms = append(rooms, RoomStaff)
	}
	return &delivery{wire: WireNotificationNew, rooms: rooms}, nil
}

func routeNotificationBroadcast(data json.RawMessage) (*delivery, error) {
	var payload payloads.NotificationNewEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return &delivery{
		wire:  WireNotificationBroadcast,
		rooms: []string{RoomStaff},
	}, nil
}

func routeNotificationMarkedRead(data json.RawMessage) (*delivery, error) {
	var payload payloads.NotificationMarkedReadEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	if payload.UserID == uuid.Nil {
		return nil, nil
	}
	// push-only: the read flip is already persisted on the rows themselves
	return &delivery{
		wire:  WireNotificationMarkedRead,
		rooms: []string{RoomUser(payload.UserID)},
	}, nil
}

// formatVND groups digits for the push message; amounts are integers.
func formatVND(amount int64) string {
	raw := fmt.Sprintf("%d", amount)
	negative := false
	if len(raw) > 0 && raw[0] == '-' {
		negative = true
		raw = raw[1:]
	}
	var out []byte
	for i, digit := range []byte(raw) {
		if i > 0 && (len(raw)-i)%3 == 0 {
			out = append(out, '.')
		}
		out = append(out, digit)
	}
	if negative {
		return "-" + string(out)
	}
	return string(out)
}
