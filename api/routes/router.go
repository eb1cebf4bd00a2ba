package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/order-refunds/api/controllers"
	refundcontrollers "github.com/angelmondragon/order-refunds/api/controllers/refunds"
	"github.com/angelmondragon/order-refunds/api/middleware"
	"github.com/angelmondragon/order-refunds/internal/refunds"
	"github.com/angelmondragon/order-refunds/pkg/config"
	"github.com/angelmondragon/order-refunds/pkg/db"
	"github.com/angelmondragon/order-refunds/pkg/logger"
	pkgredis "github.com/angelmondragon/order-refunds/pkg/redis"
)

// redisStore is the slice of the redis client the HTTP surface needs.
type redisStore interface {
	pkgredis.IdempotencyStore
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
	Ping(context.Context) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient redisStore,
	gatherer prometheus.Gatherer,
	refundsService refunds.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	savePolicy := middleware.NewRateLimitPolicy(
		"refund-save",
		cfg.RateLimit.SaveWindow,
		cfg.RateLimit.SaveIPLimit,
		cfg.RateLimit.SaveActorLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequirePermission(cfg.Refunds.Permission, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		saveLimit := middleware.RateLimit(savePolicy, redisClient, logg)

		r.Route("/refunds", func(r chi.Router) {
			r.Post("/calculate", refundcontrollers.Calculate(refundsService, logg))
			r.With(saveLimit).Post("/", refundcontrollers.Create(refundsService, logg))
			r.Get("/{refundId}", refundcontrollers.Detail(refundsService, logg))
			r.With(saveLimit).Put("/{refundId}", refundcontrollers.Update(refundsService, logg))
		})

		r.Route("/orders/{orderId}", func(r chi.Router) {
			r.Get("/refunds", refundcontrollers.ListForOrder(refundsService, logg))
			r.Get("/refundable", refundcontrollers.Refundable(refundsService, logg))
		})
	})

	return r
}
