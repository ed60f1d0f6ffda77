package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/quangtran/dinehub-backend/pkg/enums"
)

// PaymentAttempt tracks one pass through the redirect gateway. The transaction
// reference is the idempotency anchor for callbacks; the amount is immutable
// once the row exists. Superseded attempts stay for audit.
type PaymentAttempt struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TxnRef        string             `gorm:"column:txn_ref;type:text;not null;uniqueIndex:ux_payment_attempts_txn_ref"`
	Kind          enums.PaymentKind  `gorm:"column:kind;type:payment_kind;not null"`
	OrderID       *uuid.UUID         `gorm:"column:order_id;type:uuid"`
	ReservationID *uuid.UUID         `gorm:"column:reservation_id;type:uuid"`
	AmountVND     int64              `gorm:"column:amount_vnd;not null"`
	State         enums.AttemptState `gorm:"column:state;type:attempt_state;not null;default:'created'"`
	OutcomeCode   *string            `gorm:"column:outcome_code;type:text"`
	BankCode      *string            `gorm:"column:bank_code;type:text"`
	ExpiresAt     time.Time          `gorm:"column:expires_at;not null"`
	SettledAt     *time.Time         `gorm:"column:settled_at"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
