package orders

import (
	"github.com/google/uuid"

	"github.com/quangtran/dinehub-backend/pkg/db/models"
)

// NewItemInput describes one line to add to an order.
type NewItemInput struct {
	DishID       uuid.UUID
	Name         string
	UnitPriceVND int64
	Qty          int
	Notes        *string
}

// CreateOrderInput carries everything needed to open an order.
type CreateOrderInput struct {
	UserID        *uuid.UUID
	TableID       *uuid.UUID
	TableGroupID  *uuid.UUID
	ReservationID *uuid.UUID
	Items         []NewItemInput
	Notes         *string
}

// Detail bundles an order with its lines for responses.
type Detail struct {
	Order models.Order       `json:"order"`
	Items []models.OrderItem `json:"items"`
}

// Totals is the always-written-together money triple plus the derived total.
type Totals struct {
	SubtotalVND int64 `json:"subtotal_vnd"`
	DiscountVND int64 `json:"discount_vnd"`
	TaxVND      int64 `json:"tax_vnd"`
	TotalVND    int64 `json:"total_vnd"`
}
