package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/order-refunds/internal/orders"
	"github.com/angelmondragon/order-refunds/internal/refunds"
	"github.com/angelmondragon/order-refunds/pkg/config"
	"github.com/angelmondragon/order-refunds/pkg/db"
	"github.com/angelmondragon/order-refunds/pkg/logger"
	"github.com/angelmondragon/order-refunds/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "refunds-backfill"})

	_ = godotenv.Load()

	limit := flag.Int("limit", 0, "maximum number of refund transactions to backfill (0 = all)")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "refunds-backfill",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "limit": *limit})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer redisClient.Close()

	ordersService, err := orders.NewService(orders.NewRepository(dbClient.DB()))
	requireResource(ctx, logg, "orders service", err)

	references, err := refunds.NewReferenceGenerator(cfg.Refunds.ReferenceTemplate, redisClient)
	requireResource(ctx, logg, "reference generator", err)

	backfiller, err := refunds.NewBackfiller(refunds.NewRepository(dbClient.DB()), ordersService, references, logg)
	requireResource(ctx, logg, "backfiller", err)

	logg.Info(ctx, "refunds backfill starting")
	result, err := backfiller.Run(ctx, *limit)
	fmt.Printf("scanned=%d created=%d failed=%d\n", result.Scanned, result.Created, result.Failed)
	if err != nil {
		logg.Error(ctx, "refunds backfill finished with failures", err)
		os.Exit(1)
	}
	logg.Info(ctx, "refunds backfill completed")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
