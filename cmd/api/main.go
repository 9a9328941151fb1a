package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mazaj-interiors/payments-backend/api/routes"
	"github.com/mazaj-interiors/payments-backend/internal/capture"
	"github.com/mazaj-interiors/payments-backend/internal/coupons"
	"github.com/mazaj-interiors/payments-backend/internal/gateway"
	"github.com/mazaj-interiors/payments-backend/internal/gateway/paytabs"
	"github.com/mazaj-interiors/payments-backend/internal/gateway/tabby"
	"github.com/mazaj-interiors/payments-backend/internal/gateway/tamara"
	"github.com/mazaj-interiors/payments-backend/internal/orders"
	"github.com/mazaj-interiors/payments-backend/internal/reconcile"
	"github.com/mazaj-interiors/payments-backend/internal/webhooks"
	"github.com/mazaj-interiors/payments-backend/pkg/config"
	"github.com/mazaj-interiors/payments-backend/pkg/db"
	"github.com/mazaj-interiors/payments-backend/pkg/logger"
	"github.com/mazaj-interiors/payments-backend/pkg/metrics"
	"github.com/mazaj-interiors/payments-backend/pkg/migrate"
	"github.com/mazaj-interiors/payments-backend/pkg/outbox"
	"github.com/mazaj-interiors/payments-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})
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
		ServiceName: "api",
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
	webhookMetrics := metrics.NewWebhookMetrics(prometheus.DefaultRegisterer)

	engine, err := reconcile.NewEngine(reconcile.EngineParams{
		DB:             dbClient,
		Orders:         ordersRepo,
		Attempts:       attemptsRepo,
		Outbox:         outboxSvc,
		Logger:         logg,
		Metrics:        webhookMetrics,
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

	paytabsAdapter, err := paytabs.NewAdapter(paytabsClient, cfg.App.BaseURL, cfg.PayTabs.Currency)
	if err != nil {
		logg.Error(ctx, "failed to create paytabs adapter", err)
		os.Exit(1)
	}

	ordersSvc, err := orders.NewService(orders.ServiceParams{
		DB:      dbClient,
		Orders:  ordersRepo,
		Coupons: coupons.NewRepository(dbClient.DB()),
		Adapters: []gateway.Adapter{
			paytabsAdapter,
			tabby.NewAdapter(tabbyClient, cfg.App.BaseURL),
			tamara.NewAdapter(tamaraClient, cfg.App.BaseURL),
		},
		Logger: logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create orders service", err)
		os.Exit(1)
	}

	guard := webhooks.NewGuard(redisClient, cfg.Outbox.IdempotencyTTL)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	runCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(runCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:      cfg,
			Logger:      logg,
			DBPinger:    dbClient,
			RedisPinger: redisClient,
			Orders:      ordersSvc,
			Engine:      engine,
			Coordinator: coordinator,
			PayTabs:     paytabsClient,
			Tamara:      tamaraClient,
			Guard:       guard,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(runCtx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
