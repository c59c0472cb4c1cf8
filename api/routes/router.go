package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/packquote-backend/api/controllers"
	"github.com/angelmondragon/packquote-backend/api/middleware"
	"github.com/angelmondragon/packquote-backend/internal/coupons"
	"github.com/angelmondragon/packquote-backend/internal/inventory"
	"github.com/angelmondragon/packquote-backend/internal/pricing"
	"github.com/angelmondragon/packquote-backend/internal/quotations"
	"github.com/angelmondragon/packquote-backend/internal/rates"
	"github.com/angelmondragon/packquote-backend/internal/samples"
	"github.com/angelmondragon/packquote-backend/pkg/config"
	"github.com/angelmondragon/packquote-backend/pkg/logger"
	"github.com/angelmondragon/packquote-backend/pkg/redis"
)

// Dependencies is everything the HTTP surface needs. Redis and PubSub may be
// nil; the routes that use them then degrade to pass-through.
type Dependencies struct {
	DB         controllers.Pinger
	Redis      *redis.Client
	PubSub     controllers.Pinger
	Metrics    http.Handler
	Resolver   *rates.Resolver
	RateTables *rates.Service
	Engine     *pricing.Engine
	Coupons    *coupons.Evaluator
	Quotations *quotations.Service
	Samples    *samples.Service
	Inventory  *inventory.Service
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
		middleware.Customer(logg),
	)

	var idempotencyStore middleware.IdempotencyStore
	var rateStore *redis.Client
	readiness := map[string]controllers.Pinger{"database": deps.DB}
	if deps.Redis != nil {
		idempotencyStore = deps.Redis
		rateStore = deps.Redis
		readiness["redis"] = deps.Redis
	}
	if deps.PubSub != nil {
		readiness["pubsub"] = deps.PubSub
	}

	couponPolicy := middleware.NewRateLimitPolicy(
		"coupon_validate",
		cfg.RateLimit.CouponWindow,
		cfg.RateLimit.CouponIPLimit,
	)
	couponLimiter := middleware.RateLimit(couponPolicy, nil, logg)
	if rateStore != nil {
		couponLimiter = middleware.RateLimit(couponPolicy, rateStore, logg)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	metricsHandler := deps.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/pricing", func(r chi.Router) {
			r.Post("/quotes", controllers.PricingQuote(deps.Resolver, deps.Engine, logg))
			r.Get("/rates", controllers.RateTableVersions(deps.RateTables, logg))
			r.Get("/rates/{version}", controllers.RateTableGet(deps.Resolver, logg))
			r.Put("/rates/{version}", controllers.RateTablePublish(deps.RateTables, logg))
		})

		r.With(couponLimiter).Post("/coupons/validate", controllers.CouponValidate(deps.Coupons, logg))

		r.Route("/quotations", func(r chi.Router) {
			r.Post("/", controllers.QuotationCreate(deps.Quotations, logg))
			r.Get("/{quotationId}", controllers.QuotationGet(deps.Quotations, logg))
			r.Patch("/{quotationId}/status", controllers.QuotationUpdateStatus(deps.Quotations, logg))
			r.Put("/{quotationId}/pdf", controllers.QuotationSetPDF(deps.Quotations, logg))
		})

		r.Route("/sample-requests", func(r chi.Router) {
			r.Post("/", controllers.SampleRequestCreate(deps.Samples, logg))
			r.Get("/{sampleRequestId}", controllers.SampleRequestGet(deps.Samples, logg))
		})

		r.Route("/inventory/{inventoryId}", func(r chi.Router) {
			r.Get("/", controllers.InventoryGet(deps.Inventory, logg))
			r.Get("/history", controllers.InventoryHistory(deps.Inventory, logg))
			r.Post("/adjustments", controllers.InventoryAdjust(deps.Inventory, logg))
		})
	})

	return r
}
