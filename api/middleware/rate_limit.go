package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/quangtran/dinehub-backend/api/responses"
	"github.com/quangtran/dinehub-backend/pkg/config"
	pkgerrors "github.com/quangtran/dinehub-backend/pkg/errors"
	"github.com/quangtran/dinehub-backend/pkg/logger"
)

type rateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// CallbackRateLimit throttles the gateway callback surface per source IP.
// On limiter failure the request passes through: the callback contract says
// always answer, and the settlement CAS already dedupes replays.
func CallbackRateLimit(cfg config.AuthRateLimitConfig, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil || cfg.CallbackWindow <= 0 || cfg.CallbackIPLimit <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := clientIP(r)

			allowed, count, err := store.FixedWindowAllow(ctx, "callback:"+ip, int64(cfg.CallbackIPLimit), cfg.CallbackWindow)
			if err != nil {
				if logg != nil {
					logg.Warn(logg.WithField(ctx, "ip", ip), "callback rate limiter unavailable, letting request through")
				}
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				if logg != nil {
					fields := map[string]any{
						"ip":             ip,
						"attempts":       count,
						"limit":          cfg.CallbackIPLimit,
						"window_seconds": int(cfg.CallbackWindow.Seconds()),
					}
					logg.Warn(logg.WithFields(ctx, fields), "callback.rate_limit.blocked")
				}
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
