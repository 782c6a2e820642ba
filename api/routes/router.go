package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/settlement-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/settlement-backend/api/controllers/orders"
	paymentcontrollers "github.com/angelmondragon/settlement-backend/api/controllers/payments"
	webhookcontrollers "github.com/angelmondragon/settlement-backend/api/controllers/webhooks"
	"github.com/angelmondragon/settlement-backend/api/middleware"
	"github.com/angelmondragon/settlement-backend/internal/orders"
	"github.com/angelmondragon/settlement-backend/internal/payments"
	"github.com/angelmondragon/settlement-backend/internal/settlement"
	"github.com/angelmondragon/settlement-backend/pkg/config"
	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/gateway"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/settlement-backend/pkg/redis"
)

type redisStore interface {
	pkgredis.IdempotencyStore
	Ping(context.Context) error
}

// settlementService is what the payment routes need from the coordinator.
type settlementService interface {
	paymentcontrollers.Verifier
	webhookcontrollers.WebhookService
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient redisStore,
	paymentsSvc payments.Service,
	settlementSvc settlementService,
	ordersSvc orders.Service,
	gatewayClient *gateway.Client,
	webhookGuard *settlement.WebhookGuard,
	metricsHandler http.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// signed by the gateway, no bearer token
		r.Post("/payments/webhook", webhookcontrollers.GatewayWebhook(settlementSvc, gatewayClient, webhookGuard, logg))

		// inline group so idempotency sees the full route pattern
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(redisClient, logg))

			r.Post("/payments/initialize", paymentcontrollers.Initialize(paymentsSvc, logg))
			r.Get("/payments/verify/{reference}", paymentcontrollers.Verify(settlementSvc, logg))

			r.Get("/orders/{orderId}", ordercontrollers.Detail(ordersSvc, logg))
			r.Put("/orders/{orderId}/mark-delivered", ordercontrollers.MarkDelivered(ordersSvc, logg))
			r.Put("/orders/{orderId}/cancel", ordercontrollers.Cancel(ordersSvc, logg))
		})
	})

	return r
}
