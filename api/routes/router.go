package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mazaj-interiors/payments-backend/api/controllers"
	webhookcontrollers "github.com/mazaj-interiors/payments-backend/api/controllers/webhooks"
	"github.com/mazaj-interiors/payments-backend/api/middleware"
	"github.com/mazaj-interiors/payments-backend/internal/gateway/paytabs"
	"github.com/mazaj-interiors/payments-backend/pkg/config"
	"github.com/mazaj-interiors/payments-backend/pkg/logger"
)

type RouterParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	DBPinger    controllers.Pinger
	RedisPinger controllers.Pinger
	Orders      controllers.OrdersService
	Engine      webhookcontrollers.ResultApplier
	Coordinator webhookcontrollers.CaptureDriver
	PayTabs     *paytabs.Client
	Tamara      webhookcontrollers.TamaraOrderFetcher
	Guard       webhookcontrollers.DeliveryGuard
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.DBPinger, params.RedisPinger))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Post("/", controllers.CreateOrder(params.Orders, logg))
		r.Get("/", controllers.ListOrders(params.Orders, logg))
		r.Get("/{orderID}", controllers.GetOrder(params.Orders, logg))
		r.Get("/{orderID}/status", controllers.OrderStatus(params.Orders, logg))
		r.Post("/{orderID}/checkout", controllers.CheckoutOrder(params.Orders, logg))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/paytabs", webhookcontrollers.PayTabsCallback(params.Engine, params.PayTabs, params.Guard, logg))
		r.Post("/tabby", webhookcontrollers.TabbyWebhook(params.Coordinator, params.Guard, logg))
		r.Post("/tamara", webhookcontrollers.TamaraWebhook(params.Engine, params.Tamara, params.Guard, logg))
	})

	r.Get("/api/v1/payments/tamara/confirm", webhookcontrollers.TamaraConfirm(params.Engine, params.Tamara, logg))

	return r
}
