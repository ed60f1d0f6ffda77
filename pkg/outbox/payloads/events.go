package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/quangtran/dinehub-backend/pkg/enums"
)

// OrderCreatedEvent signals a new dine-in order opened at a table.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID  `json:"order_id"`
	TableID       *uuid.UUID `json:"table_id,omitempty"`
	ReservationID *uuid.UUID `json:"reservation_id,omitempty"`
	TotalVND      int64      `json:"total_vnd"`
}

// OrderStatusChangedEvent is emitted on every order lifecycle transition.
type OrderStatusChangedEvent struct {
	OrderID uuid.UUID         `json:"order_id"`
	From    enums.OrderStatus `json:"from"`
	To      enums.OrderStatus `json:"to"`
}

// OrderItemStatusChangedEvent tracks kitchen progress on a single line.
type OrderItemStatusChangedEvent struct {
	OrderID uuid.UUID             `json:"order_id"`
	ItemID  uuid.UUID             `json:"item_id"`
	Status  enums.OrderItemStatus `json:"status"`
}

// PaymentRequestedEvent is emitted when a redirect URL is minted for an attempt.
type PaymentRequestedEvent struct {
	TxnRef        string            `json:"txn_ref"`
	Kind          enums.PaymentKind `json:"kind"`
	OrderID       *uuid.UUID        `json:"order_id,omitempty"`
	ReservationID *uuid.UUID        `json:"reservation_id,omitempty"`
	AmountVND     int64             `json:"amount_vnd"`
	ExpiresAt     time.Time         `json:"expires_at"`
}

// PaymentCompletedEvent is emitted exactly once when an attempt settles successfully.
type PaymentCompletedEvent struct {
	TxnRef        string            `json:"txn_ref"`
	Kind          enums.PaymentKind `json:"kind"`
	OrderID       *uuid.UUID        `json:"order_id,omitempty"`
	ReservationID *uuid.UUID        `json:"reservation_id,omitempty"`
	AmountVND     int64             `json:"amount_vnd"`
	BankCode      string            `json:"bank_code,omitempty"`
	SettledAt     time.Time         `json:"settled_at"`
}

// PaymentFailedEvent is emitted exactly once when an attempt settles as failed.
type PaymentFailedEvent struct {
	TxnRef        string            `json:"txn_ref"`
	Kind          enums.PaymentKind `json:"kind"`
	OrderID       *uuid.UUID        `json:"order_id,omitempty"`
	ReservationID *uuid.UUID        `json:"reservation_id,omitempty"`
	OutcomeCode   string            `json:"outcome_code"`
}

// PaymentExpiredEvent reports an attempt swept past its deadline.
type PaymentExpiredEvent struct {
	TxnRef    string    `json:"txn_ref"`
	ExpiredAt time.Time `json:"expired_at"`
}

// ReservationConfirmedEvent is emitted when a deposit settles or is waived.
type ReservationConfirmedEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	DepositVND    int64     `json:"deposit_vnd"`
	Waived        bool      `json:"waived"`
}

// ReservationReleasedEvent is emitted when a hold is released back to inventory.
type ReservationReleasedEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	Reason        string    `json:"reason"`
}

// ReservationCompletedEvent closes out a visit after the party leaves.
type ReservationCompletedEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
}

// ReservationNoShowEvent records a party that never arrived.
type ReservationNoShowEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
}

// LoyaltyAwardRequestedEvent asks the loyalty processor to credit points.
type LoyaltyAwardRequestedEvent struct {
	UserID    uuid.UUID `json:"user_id"`
	OrderID   uuid.UUID `json:"order_id"`
	AmountVND int64     `json:"amount_vnd"`
}

// NotificationNewEvent carries a persisted notification toward socket rooms.
type NotificationNewEvent struct {
	NotificationID  uuid.UUID              `json:"notification_id"`
	Type            enums.NotificationType `json:"type"`
	RecipientUserID *uuid.UUID             `json:"recipient_user_id,omitempty"`
	AudienceRole    string                 `json:"audience_role,omitempty"`
	OrderID         *uuid.UUID             `json:"order_id,omitempty"`
	ReservationID   *uuid.UUID             `json:"reservation_id,omitempty"`
}

// NotificationMarkedReadEvent reports which notifications an actor flipped to
// read, so their other sessions can reconcile.
type NotificationMarkedReadEvent struct {
	UserID          uuid.UUID   `json:"user_id"`
	NotificationIDs []uuid.UUID `json:"notification_ids"`
}
