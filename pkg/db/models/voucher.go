package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/quangtran/dinehub-backend/pkg/enums"
)

// Voucher is a discount code. CurrentUses is mutated only by the voucher
// ledger's commit; apply-time validation never consumes a use.
type Voucher struct {
	ID           uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code         string                    `gorm:"column:code;type:text;not null;uniqueIndex:ux_vouchers_code"`
	DiscountType enums.VoucherDiscountType `gorm:"column:discount_type;type:voucher_discount_type;not null"`
	Value        int64                     `gorm:"column:value;not null"`
	MinOrderVND  int64                     `gorm:"column:min_order_vnd;not null;default:0"`
	MaxUses      int                       `gorm:"column:max_uses;not null;default:0"`
	CurrentUses  int                       `gorm:"column:current_uses;not null;default:0"`
	Active       bool                      `gorm:"column:active;not null;default:true"`
	ExpiryDate   *time.Time                `gorm:"column:expiry_date"`
	CreatedAt    time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

// VoucherUsage records one committed redemption. The unique index on
// (voucher_id, order_id) backs the at-most-once guarantee per order.
type VoucherUsage struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VoucherID uuid.UUID  `gorm:"column:voucher_id;type:uuid;not null;uniqueIndex:ux_voucher_usages_voucher_order"`
	OrderID   uuid.UUID  `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_voucher_usages_voucher_order"`
	UserID    *uuid.UUID `gorm:"column:user_id;type:uuid"`
	UsedAt    time.Time  `gorm:"column:used_at;not null"`
}
