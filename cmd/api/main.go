package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/packquote-backend/api/controllers"
	"github.com/angelmondragon/packquote-backend/api/routes"
	"github.com/angelmondragon/packquote-backend/internal/coupons"
	"github.com/angelmondragon/packquote-backend/internal/inventory"
	"github.com/angelmondragon/packquote-backend/internal/numbering"
	"github.com/angelmondragon/packquote-backend/internal/pricing"
	"github.com/angelmondragon/packquote-backend/internal/quotations"
	"github.com/angelmondragon/packquote-backend/internal/rates"
	"github.com/angelmondragon/packquote-backend/internal/samples"
	"github.com/angelmondragon/packquote-backend/pkg/config"
	"github.com/angelmondragon/packquote-backend/pkg/db"
	"github.com/angelmondragon/packquote-backend/pkg/logger"
	"github.com/angelmondragon/packquote-backend/pkg/metrics"
	"github.com/angelmondragon/packquote-backend/pkg/migrate"
	"github.com/angelmondragon/packquote-backend/pkg/outbox"
	"github.com/angelmondragon/packquote-backend/pkg/pubsub"
	"github.com/angelmondragon/packquote-backend/pkg/redis"
)

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

	if err := migrate.OnBoot(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "schema check failed", err)
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

	// The API only writes the outbox; Pub/Sub is checked for readiness when a
	// project is configured.
	var pubsubPinger controllers.Pinger
	if cfg.GCP.ProjectID != "" {
		pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub client", err)
			}
		}()
		pubsubPinger = pubsubClient
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	quoteMetrics := metrics.NewQuoteMetrics(registry)

	emitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	numbers := numbering.NewGenerator()

	rateRepo := rates.NewRepository(dbClient.DB())
	resolver := rates.NewResolver(rateRepo, redisClient, logg, cfg.Pricing.DefaultRateVersion, cfg.Pricing.RateCacheTTL)
	rateTables, err := rates.NewService(rateRepo, resolver, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create rate table service", err)
		os.Exit(1)
	}

	engine := pricing.NewEngine(pricing.Options{MaxTiers: cfg.Pricing.MaxQuantityTiers, Observer: quoteMetrics})

	couponRepo := coupons.NewRepository(dbClient.DB())
	evaluator := coupons.NewEvaluator(couponRepo, time.Now)

	quotationService, err := quotations.NewService(quotations.Deps{
		Tx:       dbClient,
		Repo:     quotations.NewRepository(dbClient.DB()),
		Coupons:  evaluator,
		Redeemer: couponRepo,
		Numbers:  numbers,
		Outbox:   emitter,
		Metrics:  quoteMetrics,
		Logger:   logg,
		Config:   cfg.Quotation,
		Rates:    resolver,
		Pricer:   engine,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create quotation service", err)
		os.Exit(1)
	}

	sampleService, err := samples.NewService(dbClient, samples.NewRepository(dbClient.DB()), numbers, emitter, quoteMetrics, logg, cfg.Quotation.NumberAttempts)
	if err != nil {
		logg.Error(context.Background(), "failed to create sample request service", err)
		os.Exit(1)
	}

	inventoryService, err := inventory.NewService(inventory.NewRepository(dbClient.DB()), dbClient, emitter, quoteMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			DB:         dbClient,
			Redis:      redisClient,
			PubSub:     pubsubPinger,
			Metrics:    promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			Resolver:   resolver,
			RateTables: rateTables,
			Engine:     engine,
			Coupons:    evaluator,
			Quotations: quotationService,
			Samples:    sampleService,
			Inventory:  inventoryService,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shut down gracefully")
	}
}
