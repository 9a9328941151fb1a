package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/mazaj-interiors/payments-backend/internal/notify"
	"github.com/mazaj-interiors/payments-backend/pkg/config"
	"github.com/mazaj-interiors/payments-backend/pkg/db"
	"github.com/mazaj-interiors/payments-backend/pkg/instance"
	"github.com/mazaj-interiors/payments-backend/pkg/logger"
	"github.com/mazaj-interiors/payments-backend/pkg/migrate"
	"github.com/mazaj-interiors/payments-backend/pkg/outbox"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "notifier"})
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
		ServiceName: "notifier",
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

	var sender notify.Sender
	if cfg.Notify.EmailServiceURL != "" {
		sender, err = notify.NewHTTPSender(cfg.Notify)
		if err != nil {
			logg.Error(ctx, "failed to create email sender", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(ctx, "no email service configured, using log sender")
		sender = notify.NewLogSender(logg)
	}

	dispatcher, err := notify.NewDispatcher(notify.DispatcherParams{
		Repo:   outbox.NewRepository(dbClient.DB()),
		Sender: sender,
		Logger: logg,
		Config: cfg.Outbox,
		Notify: cfg.Notify,
	})
	if err != nil {
		logg.Error(ctx, "failed to create dispatcher", err)
		os.Exit(1)
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	runCtx = logg.WithField(runCtx, "env", cfg.App.Env)
	runCtx = logg.WithField(runCtx, "worker_id", instance.GetID())
	logg.Info(runCtx, "starting notifier")

	if err := dispatcher.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "notifier stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(runCtx, "notifier shutting down gracefully")
}
