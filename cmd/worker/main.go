package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/campusmart/campusmart-backend/internal/notifications"
	"github.com/campusmart/campusmart-backend/pkg/config"
	"github.com/campusmart/campusmart-backend/pkg/db"
	"github.com/campusmart/campusmart-backend/pkg/instance"
	"github.com/campusmart/campusmart-backend/pkg/logger"
	"github.com/campusmart/campusmart-backend/pkg/metrics"
	"github.com/campusmart/campusmart-backend/pkg/outbox/idempotency"
	"github.com/campusmart/campusmart-backend/pkg/pubsub"
	"github.com/campusmart/campusmart-backend/pkg/pubsub/consumer"
	"github.com/campusmart/campusmart-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "worker",
		"instance":    instance.GetID(),
	})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "worker shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer closeLogged(logg, "database", dbClient.Close)

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer closeLogged(logg, "redis", redisClient.Close)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("bootstrap pubsub: %w", err)
	}
	defer closeLogged(logg, "pubsub", pubsubClient.Close)

	if err := ready(ctx, logg, []dependency{
		{"database", dbClient},
		{"redis", redisClient},
		{"pubsub", pubsubClient},
	}); err != nil {
		return err
	}

	subs, err := subscriptions(ctx, pubsubClient,
		cfg.PubSub.NotificationsOrdersSubscription,
		cfg.PubSub.NotificationsMarketSubscription,
	)
	if err != nil {
		return err
	}
	ledger, err := idempotency.NewLedger(redisClient, notifications.ConsumerName, cfg.PubSub.ProcessedTTL)
	if err != nil {
		return fmt.Errorf("notifications ledger: %w", err)
	}
	handler, err := notifications.NewEventHandler(notifications.NewRepository(dbClient.DB()), logg)
	if err != nil {
		return fmt.Errorf("notifications handler: %w", err)
	}
	c, err := consumer.New(consumer.Params{
		Name:          notifications.ConsumerName,
		Handler:       handler,
		Ledger:        ledger,
		Subscriptions: subs,
		Metrics:       metrics.NewConsumerMetrics(prometheus.DefaultRegisterer),
		Logger:        logg,
	})
	if err != nil {
		return fmt.Errorf("notifications consumer: %w", err)
	}

	logg.Info(ctx, "starting notifications consumer")
	return c.Run(ctx)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type dependency struct {
	name string
	p    pinger
}

// ready pings each dependency in order and stops at the first failure.
func ready(ctx context.Context, logg *logger.Logger, deps []dependency) error {
	for _, dep := range deps {
		if err := dep.p.Ping(ctx); err != nil {
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}
	logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func subscriptions(ctx context.Context, client *pubsub.Client, names ...string) ([]consumer.Receiver, error) {
	out := make([]consumer.Receiver, 0, len(names))
	for _, name := range names {
		sub, err := client.Subscriber(ctx, name)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, nil
}

func closeLogged(logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(context.Background(), "error closing "+name, err)
	}
}
