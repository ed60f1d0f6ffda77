package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/quangtran/dinehub-backend/api/middleware"
	"github.com/quangtran/dinehub-backend/api/responses"
	"github.com/quangtran/dinehub-backend/api/validators"
	"github.com/quangtran/dinehub-backend/internal/orders"
	"github.com/quangtran/dinehub-backend/pkg/enums"
	pkgerrors "github.com/quangtran/dinehub-backend/pkg/errors"
	"github.com/quangtran/dinehub-backend/pkg/logger"
)

type orderItemRequest struct {
	DishID       uuid.UUID `json:"dish_id" validate:"required"`
	Name         string    `json:"name" validate:"required"`
	UnitPriceVND int64     `json:"unit_price_vnd" validate:"min=0"`
	Qty          int       `json:"qty" validate:"required,min=1"`
	Notes        *string   `json:"notes"`
}

func (i orderItemRequest) toInput() orders.NewItemInput {
	return orders.NewItemInput{
		DishID:       i.DishID,
		Name:         i.Name,
		UnitPriceVND: i.UnitPriceVND,
		Qty:          i.Qty,
		Notes:        i.Notes,
	}
}

type createOrderRequest struct {
	TableID       *uuid.UUID         `json:"table_id"`
	TableGroupID  *uuid.UUID         `json:"table_group_id"`
	ReservationID *uuid.UUID         `json:"reservation_id"`
	Items         []orderItemRequest `json:"items" validate:"required,min=1,dive"`
	Notes         *string            `json:"notes"`
}

// CreateOrder opens a dine-in order with at least one line.
func CreateOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := orders.CreateOrderInput{
			TableID:       req.TableID,
			TableGroupID:  req.TableGroupID,
			ReservationID: req.ReservationID,
			Notes:         req.Notes,
		}
		if actor := middleware.UserIDFromContext(r.Context()); actor != uuid.Nil {
			input.UserID = &actor
		}
		for _, item := range req.Items {
			input.Items = append(input.Items, item.toInput())
		}

		detail, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, detail)
	}
}

func GetOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

func AddOrderItem(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req orderItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.AddItem(r.Context(), orderID, req.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

func RemoveOrderItem(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := pathUUID(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.RemoveItem(r.Context(), orderID, itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

type itemStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// UpdateOrderItemStatus moves a line through the kitchen flow; staff only.
func UpdateOrderItemStatus(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := pathUUID(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req itemStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseOrderItemStatus(req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item status"))
			return
		}
		if err := svc.UpdateItemStatus(r.Context(), orderID, itemID, status); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": string(status)})
	}
}

type applyVoucherRequest struct {
	Code string `json:"code" validate:"required"`
}

func ApplyOrderVoucher(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req applyVoucherRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.ApplyVoucher(r.Context(), orderID, req.Code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

func CancelOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Cancel(r.Context(), orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cancelled"})
	}
}

// CloseOrder settles the table after payment; staff only.
func CloseOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Close(r.Context(), orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "closed"})
	}
}
