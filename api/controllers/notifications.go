package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/quangtran/dinehub-backend/api/middleware"
	"github.com/quangtran/dinehub-backend/api/responses"
	"github.com/quangtran/dinehub-backend/api/validators"
	"github.com/quangtran/dinehub-backend/internal/notifications"
	"github.com/quangtran/dinehub-backend/pkg/logger"
	"github.com/quangtran/dinehub-backend/pkg/pagination"
)

// ListNotifications returns the caller's notifications plus role broadcasts.
func ListNotifications(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		unreadOnly, err := validators.ParseQueryBool(r, "unreadOnly")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := notifications.ListParams{
			RecipientID: middleware.UserIDFromContext(r.Context()),
			Role:        middleware.RoleFromContext(r.Context()),
			Limit:       limit,
			Cursor:      strings.TrimSpace(r.URL.Query().Get("cursor")),
			UnreadOnly:  unreadOnly,
		}

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type markReadRequest struct {
	IDs []uuid.UUID `json:"ids" validate:"required,min=1"`
}

// MarkNotificationsRead flips the listed notifications to read for the caller.
func MarkNotificationsRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req markReadRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		flipped, err := svc.MarkRead(
			r.Context(),
			middleware.UserIDFromContext(r.Context()),
			middleware.RoleFromContext(r.Context()),
			req.IDs,
		)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"marked": flipped})
	}
}

func MarkAllNotificationsRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flipped, err := svc.MarkAllRead(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"marked": flipped})
	}
}
