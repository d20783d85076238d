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

	"github.com/campusmart/campusmart-backend/pkg/config"
	"github.com/campusmart/campusmart-backend/pkg/db"
	"github.com/campusmart/campusmart-backend/pkg/instance"
	"github.com/campusmart/campusmart-backend/pkg/logger"
	"github.com/campusmart/campusmart-backend/pkg/metrics"
	"github.com/campusmart/campusmart-backend/pkg/migrate"
	"github.com/campusmart/campusmart-backend/pkg/outbox"
	"github.com/campusmart/campusmart-backend/pkg/outbox/idempotency"
	"github.com/campusmart/campusmart-backend/pkg/outbox/registry"
	"github.com/campusmart/campusmart-backend/pkg/outbox/relay"
	"github.com/campusmart/campusmart-backend/pkg/pubsub"
	"github.com/campusmart/campusmart-backend/pkg/redis"
)

const serviceName = "outbox-publisher"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	must(context.Background(), logg, "load config", err)
	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"instance":    instance.GetID(),
		"serviceKind": serviceName,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	must(ctx, logg, "bootstrap database", err)
	defer closeWith(logg, "database", dbClient.Close)
	must(ctx, logg, "run dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	must(ctx, logg, "bootstrap redis", err)
	defer closeWith(logg, "redis", redisClient.Close)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	must(ctx, logg, "bootstrap pubsub", err)
	defer closeWith(logg, "pubsub", pubsubClient.Close)
	must(ctx, logg, "ping pubsub", pubsubClient.Ping(ctx))

	ledger, err := idempotency.NewLedger(redisClient, relay.ConsumerName, cfg.Outbox.RelayedTTL)
	must(ctx, logg, "build relayed-event ledger", err)
	routes, err := registry.New(cfg.PubSub)
	must(ctx, logg, "build event registry", err)

	r, err := relay.New(relay.Params{
		Tx:        dbClient,
		Store:     outbox.NewRepository(dbClient.DB()),
		Resolver:  routes,
		Publisher: pubsubClient,
		Ledger:    ledger,
		Metrics:   metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
		Logger:    logg,
		Options:   relay.OptionsFromConfig(cfg.Outbox),
	})
	must(ctx, logg, "create relay", err)

	logg.Info(ctx, "starting outbox publisher")
	if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "outbox publisher shutting down gracefully")
}

func must(ctx context.Context, logg *logger.Logger, step string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("failed to %s", step), err)
	os.Exit(1)
}

func closeWith(logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(context.Background(), "error closing "+name, err)
	}
}
