package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mazaj-interiors/payments-backend/internal/capture"
	"github.com/mazaj-interiors/payments-backend/internal/cron"
	"github.com/mazaj-interiors/payments-backend/internal/gateway/paytabs"
	"github.com/mazaj-interiors/payments-backend/internal/gateway/tabby"
	"github.com/mazaj-interiors/payments-backend/internal/gateway/tamara"
	"github.com/mazaj-interiors/payments-backend/internal/orders"
	"github.com/mazaj-interiors/payments-backend/internal/reconcile"
	"github.com/mazaj-interiors/payments-backend/pkg/config"
	"github.com/mazaj-interiors/payments-backend/pkg/db"
	"github.com/mazaj-interiors/payments-backend/pkg/instance"
	"github.com/mazaj-interiors/payments-backend/pkg/logger"
	"github.com/mazaj-interiors/payments-backend/pkg/metrics"
	"github.com/mazaj-interiors/payments-backend/pkg/migrate"
	"github.com/mazaj-interiors/payments-backend/pkg/outbox"
	"github.com/mazaj-interiors/payments-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "reconciler"})
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "reconciler",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	paytabsClient, err := paytabs.NewClient(ctx, cfg.PayTabs, logg)
	if err != nil {
		logg.Error(ctx, "failed to create paytabs client", err)
		os.Exit(1)
	}
	tabbyClient, err := tabby.NewClient(ctx, cfg.Tabby, logg)
	if err != nil {
		logg.Error(ctx, "failed to create tabby client", err)
		os.Exit(1)
	}
	tamaraClient, err := tamara.NewClient(ctx, cfg.Tamara, logg)
	if err != nil {
		logg.Error(ctx, "failed to create tamara client", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	attemptsRepo := reconcile.NewAttemptRepository(dbClient.DB())
	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	engine, err := reconcile.NewEngine(reconcile.EngineParams{
		DB:             dbClient,
		Orders:         ordersRepo,
		Attempts:       attemptsRepo,
		Outbox:         outboxSvc,
		Logger:         logg,
		Metrics:        metrics.NewWebhookMetrics(prometheus.DefaultRegisterer),
		StaffRecipient: cfg.Notify.StaffRecipient,
	})
	if err != nil {
		logg.Error(ctx, "failed to create reconcile engine", err)
		os.Exit(1)
	}

	coordinator, err := capture.NewCoordinator(capture.CoordinatorParams{
		Tabby:      tabbyClient,
		Engine:     engine,
		Attempts:   attemptsRepo,
		Logger:     logg,
		MaxRetries: cfg.Reconciler.CaptureRetries,
	})
	if err != nil {
		logg.Error(ctx, "failed to create capture coordinator", err)
		os.Exit(1)
	}

	captureRetryJob, err := cron.NewCaptureRetryJob(cron.CaptureRetryJobParams{
		DB:             dbClient,
		Attempts:       attemptsRepo,
		Coordinator:    coordinator,
		Outbox:         outboxSvc,
		Logger:         logg,
		StaffRecipient: cfg.Notify.StaffRecipient,
		MaxAttempts:    int(cfg.Reconciler.CaptureRetries),
	})
	if err != nil {
		logg.Error(ctx, "failed to create capture retry job", err)
		os.Exit(1)
	}

	stalePendingJob, err := cron.NewStalePendingJob(cron.StalePendingJobParams{
		Orders:   ordersRepo,
		Attempts: attemptsRepo,
		Engine:   engine,
		PayTabs:  paytabsClient,
		Tabby:    tabbyClient,
		Tamara:   tamaraClient,
		Logger:   logg,
		Cutoff:   cfg.Reconciler.PendingCutoff,
	})
	if err != nil {
		logg.Error(ctx, "failed to create stale pending job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("reconciler"), cfg.Reconciler.LockTTL)
	if err != nil {
		logg.Error(ctx, "failed to create reconciler lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(captureRetryJob, stalePendingJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Reconciler.Interval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create reconciler service", err)
		os.Exit(1)
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	runCtx = logg.WithField(runCtx, "env", cfg.App.Env)
	runCtx = logg.WithField(runCtx, "worker_id", instance.GetID())
	logg.Info(runCtx, "starting reconciler")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "reconciler stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(runCtx, "reconciler shutting down gracefully")
}
