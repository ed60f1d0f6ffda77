package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quangtran/dinehub-backend/api/controllers"
	"github.com/quangtran/dinehub-backend/api/middleware"
	"github.com/quangtran/dinehub-backend/internal/notifications"
	"github.com/quangtran/dinehub-backend/internal/orders"
	"github.com/quangtran/dinehub-backend/internal/reservations"
	"github.com/quangtran/dinehub-backend/internal/settlement"
	"github.com/quangtran/dinehub-backend/internal/vouchers"
	"github.com/quangtran/dinehub-backend/pkg/config"
	"github.com/quangtran/dinehub-backend/pkg/db"
	"github.com/quangtran/dinehub-backend/pkg/logger"
	"github.com/quangtran/dinehub-backend/pkg/redis"
)

// Services bundles everything the router mounts.
type Services struct {
	Orders        orders.Service
	Reservations  reservations.Service
	Payments      settlement.PaymentService
	Coordinator   settlement.Coordinator
	Notifications notifications.Service
	Vouchers      vouchers.Service
	Hub           *notifications.Hub
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	// gateway callbacks carry their own HMAC; they never see the JWT layer
	r.Route("/api/v1/payments/gateway", func(r chi.Router) {
		r.Use(middleware.CallbackRateLimit(cfg.AuthRateLimit, redisClient, logg))
		r.Get("/return", controllers.GatewayReturn(svcs.Coordinator, logg))
		r.Get("/ipn", controllers.GatewayIPN(svcs.Coordinator, logg))
		r.Post("/ipn", controllers.GatewayIPN(svcs.Coordinator, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.CreateOrder(svcs.Orders, logg))
			r.Get("/{orderId}", controllers.GetOrder(svcs.Orders, logg))
			r.Post("/{orderId}/items", controllers.AddOrderItem(svcs.Orders, logg))
			r.Delete("/{orderId}/items/{itemId}", controllers.RemoveOrderItem(svcs.Orders, logg))
			r.Post("/{orderId}/voucher", controllers.ApplyOrderVoucher(svcs.Orders, logg))
			r.Post("/{orderId}/cancel", controllers.CancelOrder(svcs.Orders, logg))
			r.Post("/{orderId}/payments", controllers.RequestOrderPayment(svcs.Payments, logg))
			r.Post("/{orderId}/deposit", controllers.RequestOrderDeposit(svcs.Payments, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireStaff(logg))
				r.Patch("/{orderId}/items/{itemId}/status", controllers.UpdateOrderItemStatus(svcs.Orders, logg))
				r.Post("/{orderId}/close", controllers.CloseOrder(svcs.Orders, logg))
			})
		})

		r.Route("/reservations", func(r chi.Router) {
			r.Post("/", controllers.BookReservation(svcs.Reservations, logg))
			r.Get("/{reservationId}", controllers.GetReservation(svcs.Reservations, logg))
			r.Post("/{reservationId}/cancel", controllers.CancelReservation(svcs.Reservations, logg))
			r.Post("/{reservationId}/deposit", controllers.RequestReservationDeposit(svcs.Payments, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireStaff(logg))
				r.Post("/{reservationId}/confirm", controllers.ConfirmReservation(svcs.Reservations, logg))
				r.Post("/{reservationId}/check-in", controllers.CheckInReservation(svcs.Reservations, logg))
				r.Post("/{reservationId}/complete", controllers.CompleteReservation(svcs.Reservations, logg))
				r.Post("/{reservationId}/no-show", controllers.MarkReservationNoShow(svcs.Reservations, logg))
			})
		})

		r.Post("/vouchers/preview", controllers.PreviewVoucher(svcs.Vouchers, logg))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(svcs.Notifications, logg))
			r.Post("/read", controllers.MarkNotificationsRead(svcs.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(svcs.Notifications, logg))
		})
	})

	// the socket authenticates inline because the token may ride the query string
	r.Get("/api/v1/ws", controllers.NotificationsSocket(svcs.Hub, cfg.JWT, logg))

	return r
}
