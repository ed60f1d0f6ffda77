package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/quangtran/dinehub-backend/api/routes"
	"github.com/quangtran/dinehub-backend/internal/gateway"
	"github.com/quangtran/dinehub-backend/internal/notifications"
	"github.com/quangtran/dinehub-backend/internal/orders"
	"github.com/quangtran/dinehub-backend/internal/reservations"
	"github.com/quangtran/dinehub-backend/internal/settlement"
	"github.com/quangtran/dinehub-backend/internal/vouchers"
	"github.com/quangtran/dinehub-backend/pkg/config"
	"github.com/quangtran/dinehub-backend/pkg/db"
	"github.com/quangtran/dinehub-backend/pkg/logger"
	"github.com/quangtran/dinehub-backend/pkg/migrate"
	"github.com/quangtran/dinehub-backend/pkg/outbox"
	"github.com/quangtran/dinehub-backend/pkg/outbox/idempotency"
	"github.com/quangtran/dinehub-backend/pkg/redis"
)

// settlementGuardTTL bounds how long a claimed (txn_ref, outcome) pair stays
// in redis; the database CAS remains the authority after it lapses.
const settlementGuardTTL = 24 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gormDB := dbClient.DB()
	outboxSvc := outbox.NewService(outbox.NewRepository(gormDB), logg)

	gatewayClient, err := gateway.NewClient(cfg.Gateway)
	if err != nil {
		logg.Error(context.Background(), "failed to create gateway client", err)
		os.Exit(1)
	}

	vouchersSvc, err := vouchers.NewService(vouchers.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create voucher ledger", err)
		os.Exit(1)
	}

	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repo:           orders.NewRepository(gormDB),
		Tx:             dbClient,
		Outbox:         outboxSvc,
		Vouchers:       vouchersSvc,
		TaxRatePercent: cfg.Order.TaxRatePercent,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	settlementRepo := settlement.NewRepository(gormDB)

	reservationsSvc, err := reservations.NewService(reservations.ServiceParams{
		Repo:     reservations.NewRepository(gormDB),
		Tx:       dbClient,
		Outbox:   outboxSvc,
		Deposits: settlementRepo,
		Orders:   ordersSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reservations service", err)
		os.Exit(1)
	}

	paymentsSvc, err := settlement.NewPaymentService(settlement.PaymentServiceParams{
		Repo:         settlementRepo,
		Orders:       orders.NewRepository(gormDB),
		Reservations: reservations.NewRepository(gormDB),
		Gateway:      gatewayClient,
		Tx:           dbClient,
		Outbox:       outboxSvc,
		AttemptTTL:   cfg.Gateway.AttemptTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	guard, err := idempotency.NewManager(redisClient, settlementGuardTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement guard", err)
		os.Exit(1)
	}

	coordinator, err := settlement.NewCoordinator(settlement.CoordinatorParams{
		Repo:         settlementRepo,
		Orders:       orders.NewRepository(gormDB),
		Vouchers:     vouchersSvc,
		Reservations: reservationsSvc,
		Gateway:      gatewayClient,
		Tx:           dbClient,
		Outbox:       outboxSvc,
		Guard:        guard,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement coordinator", err)
		os.Exit(1)
	}

	notificationsRepo := notifications.NewRepository(gormDB)
	notificationsSvc, err := notifications.NewService(notificationsRepo, dbClient, outboxSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	hub := notifications.NewHub(logg)
	dispatcher, err := notifications.NewDispatcher(notifications.DispatcherParams{
		Logger:       logg,
		Source:       outbox.NewRepository(gormDB),
		Repo:         notificationsRepo,
		Hub:          hub,
		BatchSize:    cfg.Fanout.BatchSize,
		PollInterval: time.Duration(cfg.Fanout.PollIntervalMS) * time.Millisecond,
		MaxAttempts:  cfg.Fanout.MaxAttempts,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification fanout", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "notification fanout stopped unexpectedly", err)
		}
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, routes.Services{
			Orders:        ordersSvc,
			Reservations:  reservationsSvc,
			Payments:      paymentsSvc,
			Coordinator:   coordinator,
			Notifications: notificationsSvc,
			Vouchers:      vouchersSvc,
			Hub:           hub,
		}),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(logCtx, "server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(logCtx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(logCtx, "api server shut down gracefully")
}
