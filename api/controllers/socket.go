package controllers

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/quangtran/dinehub-backend/api/middleware"
	"github.com/quangtran/dinehub-backend/api/responses"
	"github.com/quangtran/dinehub-backend/internal/notifications"
	pkgAuth "github.com/quangtran/dinehub-backend/pkg/auth"
	"github.com/quangtran/dinehub-backend/pkg/config"
	pkgerrors "github.com/quangtran/dinehub-backend/pkg/errors"
	"github.com/quangtran/dinehub-backend/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// origin policy is enforced at the edge proxy
	CheckOrigin: func(r *http.Request) bool { return true },
}

// NotificationsSocket upgrades the connection and pumps hub events to the
// client. Browsers cannot set headers on websocket dials, so the token also
// rides the query string.
func NotificationsSocket(hub *notifications.Hub, cfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := middleware.BearerToken(r)
		if token == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}
		claims, err := pkgAuth.ParseAccessToken(cfg, token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error
			if logg != nil {
				logg.Warn(logg.WithField(r.Context(), "upgrade_error", err.Error()), "websocket upgrade failed")
			}
			return
		}

		identity := notifications.Identity{UserID: claims.UserID, Role: claims.Role}
		notifications.ServeConn(r.Context(), hub, logg, conn, identity)
	}
}
