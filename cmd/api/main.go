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

	"github.com/angelmondragon/order-refunds/api/routes"
	"github.com/angelmondragon/order-refunds/internal/gateway"
	"github.com/angelmondragon/order-refunds/internal/inventory"
	"github.com/angelmondragon/order-refunds/internal/ledger"
	"github.com/angelmondragon/order-refunds/internal/orders"
	"github.com/angelmondragon/order-refunds/internal/refunds"
	"github.com/angelmondragon/order-refunds/pkg/config"
	"github.com/angelmondragon/order-refunds/pkg/db"
	"github.com/angelmondragon/order-refunds/pkg/enums"
	"github.com/angelmondragon/order-refunds/pkg/instance"
	"github.com/angelmondragon/order-refunds/pkg/logger"
	"github.com/angelmondragon/order-refunds/pkg/metrics"
	"github.com/angelmondragon/order-refunds/pkg/migrate"
	"github.com/angelmondragon/order-refunds/pkg/outbox"
	"github.com/angelmondragon/order-refunds/pkg/redis"
	"github.com/angelmondragon/order-refunds/pkg/square"
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
		Static:      map[string]any{"instance": instance.GetID("local")},
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

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	refundMetrics := metrics.NewRefundMetrics(registry)

	refundsService, err := buildRefundsService(context.Background(), cfg, logg, dbClient, redisClient, refundMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create refunds service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, registry, refundsService),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-sigCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}

func buildRefundsService(
	ctx context.Context,
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	refundMetrics *metrics.RefundMetrics,
) (refunds.Service, error) {
	conn := dbClient.DB()

	ordersService, err := orders.NewService(orders.NewRepository(conn))
	if err != nil {
		return nil, err
	}
	inventoryService, err := inventory.NewService(inventory.NewRepository(conn))
	if err != nil {
		return nil, err
	}
	ledgerService, err := ledger.NewService(ledger.NewRepository(conn))
	if err != nil {
		return nil, err
	}

	gateways := map[enums.TransactionGateway]gateway.Gateway{
		enums.GatewayManual: gateway.Manual{},
	}
	if cfg.FeatureFlags.SquareRefunds {
		squareClient, err := square.NewClient(ctx, cfg.Square, logg)
		if err != nil {
			return nil, err
		}
		squareGateway, err := gateway.NewSquare(squareClient)
		if err != nil {
			return nil, err
		}
		gateways[enums.GatewaySquare] = squareGateway
	}

	references, err := refunds.NewReferenceGenerator(cfg.Refunds.ReferenceTemplate, redisClient)
	if err != nil {
		return nil, err
	}

	repo := refunds.NewRepository(conn)
	store, err := refunds.NewStore(ordersService, repo)
	if err != nil {
		return nil, err
	}

	outboxService := outbox.NewService(outbox.NewRepository(), logg)

	return refunds.NewService(refunds.ServiceParams{
		Tx:         dbClient,
		Repo:       repo,
		Store:      store,
		Orders:     ordersService,
		Inventory:  inventoryService,
		Ledger:     ledgerService,
		Gateway:    gateway.NewRegistry(gateways),
		References: references,
		Observer: refunds.Observers{
			refunds.NewOutboxObserver(outboxService),
			refunds.NewMetricsObserver(refundMetrics),
		},
		Metrics:     refundMetrics,
		Logger:      logg,
		DefaultNote: cfg.Refunds.DefaultNote,
	})
}
