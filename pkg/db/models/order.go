package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/quangtran/dinehub-backend/pkg/enums"
)

// Order is a dine-in order bound to a table. Subtotal, discount, tax and total
// are always rewritten together; no caller updates one of them in isolation.
type Order struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        *uuid.UUID        `gorm:"column:user_id;type:uuid"`
	ReservationID *uuid.UUID        `gorm:"column:reservation_id;type:uuid"`
	TableID       *uuid.UUID        `gorm:"column:table_id;type:uuid"`
	TableGroupID  *uuid.UUID        `gorm:"column:table_group_id;type:uuid"`
	VoucherID     *uuid.UUID        `gorm:"column:voucher_id;type:uuid"`
	Status        enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'open'"`
	SubtotalVND   int64             `gorm:"column:subtotal_vnd;not null;default:0"`
	DiscountVND   int64             `gorm:"column:discount_vnd;not null;default:0"`
	TaxVND        int64             `gorm:"column:tax_vnd;not null;default:0"`
	TotalVND      int64             `gorm:"column:total_vnd;not null;default:0"`
	DepositVND    int64             `gorm:"column:deposit_vnd;not null;default:0"`
	Notes         *string           `gorm:"column:notes"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem is a single ordered line. Removed lines are kept for audit and
// excluded from totals.
type OrderItem struct {
	ID           uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID      uuid.UUID             `gorm:"column:order_id;type:uuid;not null"`
	DishID       uuid.UUID             `gorm:"column:dish_id;type:uuid;not null"`
	Name         string                `gorm:"column:name;type:text;not null"`
	UnitPriceVND int64                 `gorm:"column:unit_price_vnd;not null"`
	Qty          int                   `gorm:"column:qty;not null"`
	LineTotalVND int64                 `gorm:"column:line_total_vnd;not null"`
	Status       enums.OrderItemStatus `gorm:"column:status;type:order_item_status;not null;default:'pending'"`
	Notes        *string               `gorm:"column:notes"`
	CreatedAt    time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
