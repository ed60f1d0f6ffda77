package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/quangtran/dinehub-backend/api/middleware"
	"github.com/quangtran/dinehub-backend/api/responses"
	"github.com/quangtran/dinehub-backend/api/validators"
	"github.com/quangtran/dinehub-backend/internal/orders"
	"github.com/quangtran/dinehub-backend/internal/reservations"
	"github.com/quangtran/dinehub-backend/pkg/db/models"
	"github.com/quangtran/dinehub-backend/pkg/logger"
)

type bookReservationRequest struct {
	TableID         *uuid.UUID `json:"table_id"`
	TableGroupID    *uuid.UUID `json:"table_group_id"`
	EventID         *uuid.UUID `json:"event_id"`
	ReservationTime time.Time  `json:"reservation_time" validate:"required"`
	DurationMinutes int        `json:"duration_minutes" validate:"min=0"`
	NumPeople       int        `json:"num_people" validate:"required,min=1"`
	DepositVND      int64      `json:"deposit_vnd" validate:"min=0"`
	DepositWaived   bool       `json:"deposit_waived"`
}

func BookReservation(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bookReservationRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := reservations.BookInput{
			TableID:         req.TableID,
			TableGroupID:    req.TableGroupID,
			EventID:         req.EventID,
			ReservationTime: req.ReservationTime,
			DurationMinutes: req.DurationMinutes,
			NumPeople:       req.NumPeople,
			DepositVND:      req.DepositVND,
			DepositWaived:   req.DepositWaived,
		}
		if actor := middleware.UserIDFromContext(r.Context()); actor != uuid.Nil {
			input.UserID = &actor
		}

		reservation, err := svc.Book(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, reservation)
	}
}

func GetReservation(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "reservationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reservation, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reservation)
	}
}

// ConfirmReservation is the staff override for holds whose deposit settled or
// was waived.
func ConfirmReservation(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "reservationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Confirm(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "confirmed"})
	}
}

type checkInResponse struct {
	Reservation *models.Reservation `json:"reservation"`
	Order       *orders.Detail      `json:"order"`
}

// CheckInReservation seats the party and opens the table's order.
func CheckInReservation(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "reservationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reservation, order, err := svc.CheckIn(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, checkInResponse{Reservation: reservation, Order: order})
	}
}

// CompleteReservation closes out the visit after the party leaves.
func CompleteReservation(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "reservationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Complete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "completed"})
	}
}

// MarkReservationNoShow records a party that never arrived.
func MarkReservationNoShow(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "reservationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.MarkNoShow(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "no_show"})
	}
}

type cancelReservationRequest struct {
	Reason string `json:"reason"`
}

func CancelReservation(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "reservationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req cancelReservationRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		if req.Reason == "" {
			req.Reason = "cancelled by guest"
		}
		if err := svc.Cancel(r.Context(), id, req.Reason); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cancelled"})
	}
}
