package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/quangtran/dinehub-backend/internal/jobs"
	"github.com/quangtran/dinehub-backend/internal/orders"
	"github.com/quangtran/dinehub-backend/internal/reservations"
	"github.com/quangtran/dinehub-backend/internal/settlement"
	"github.com/quangtran/dinehub-backend/internal/vouchers"
	"github.com/quangtran/dinehub-backend/pkg/config"
	"github.com/quangtran/dinehub-backend/pkg/db"
	"github.com/quangtran/dinehub-backend/pkg/logger"
	"github.com/quangtran/dinehub-backend/pkg/metrics"
	"github.com/quangtran/dinehub-backend/pkg/migrate"
	"github.com/quangtran/dinehub-backend/pkg/outbox"
	"github.com/quangtran/dinehub-backend/pkg/redis"
)

const lockKeyFormat = "dinehub:sweep-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "sweep-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "sweep-worker"

	logg = logger.New(logger.Options{
		ServiceName: "sweep-worker",
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
	settlementRepo := settlement.NewRepository(gormDB)

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

	sweepJob, err := settlement.NewExpirySweepJob(settlement.ExpirySweepJobParams{
		Logger:       logg,
		DB:           dbClient,
		Repo:         settlementRepo,
		Reservations: reservationsSvc,
		Outbox:       outboxSvc,
		BatchSize:    cfg.Sweep.BatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create expiry sweep job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewJobMetrics(prometheus.DefaultRegisterer)
	lock, err := jobs.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create worker lock", err)
		os.Exit(1)
	}

	service, err := jobs.NewService(jobs.ServiceParams{
		Logger:   logg,
		Registry: jobs.NewRegistry(sweepJob),
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Sweep.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sweep service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting sweep worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "sweep worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "sweep worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
