package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/order-refunds/pkg/config"
	"github.com/angelmondragon/order-refunds/pkg/db"
	"github.com/angelmondragon/order-refunds/pkg/instance"
	"github.com/angelmondragon/order-refunds/pkg/logger"
	"github.com/angelmondragon/order-refunds/pkg/migrate"
	"github.com/angelmondragon/order-refunds/pkg/outbox"
	"github.com/angelmondragon/order-refunds/pkg/outbox/idempotency"
	"github.com/angelmondragon/order-refunds/pkg/outbox/registry"
	"github.com/angelmondragon/order-refunds/pkg/pubsub"
	"github.com/angelmondragon/order-refunds/pkg/redis"
)

// publishClaimTTL outlives the longest redelivery window of the topic.
const publishClaimTTL = 7 * 24 * time.Hour

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "reading .env:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "outbox publisher:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) (err error) {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	instanceID := instance.GetID("outbox-publisher-0")
	logg := logger.New(logger.Options{
		ServiceName: "outbox-publisher",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Static:      map[string]any{"instance": instanceID},
	})
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(dbClient))

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(pubsubClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(redisClient))

	guard, err := idempotency.NewManager(redisClient, publishClaimTTL)
	if err != nil {
		return err
	}
	events, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return err
	}

	rl, err := newRelay(relayDeps{
		Outbox:     cfg.Outbox,
		Logger:     logg,
		DB:         dbClient,
		Topics:     pubsubTopics{client: pubsubClient},
		Rows:       outbox.NewRepository(),
		DLQ:        outbox.NewDeadLetters(),
		Events:     events,
		Guard:      guard,
		InstanceID: instanceID,
	})
	if err != nil {
		return err
	}

	logg.Info(logg.WithField(ctx, "topics", events.Topics()), "starting outbox publisher")
	if err := rl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "outbox publisher stopped")
	return nil
}
