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

	"github.com/campusmart/campusmart-backend/internal/analytics/router"
	"github.com/campusmart/campusmart-backend/internal/analytics/types"
	"github.com/campusmart/campusmart-backend/internal/analytics/worker"
	"github.com/campusmart/campusmart-backend/internal/analytics/writer"
	"github.com/campusmart/campusmart-backend/pkg/bigquery"
	"github.com/campusmart/campusmart-backend/pkg/config"
	"github.com/campusmart/campusmart-backend/pkg/logger"
	"github.com/campusmart/campusmart-backend/pkg/metrics"
	"github.com/campusmart/campusmart-backend/pkg/outbox/idempotency"
	"github.com/campusmart/campusmart-backend/pkg/pubsub"
	"github.com/campusmart/campusmart-backend/pkg/pubsub/consumer"
	"github.com/campusmart/campusmart-backend/pkg/redis"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "analytics-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)
	if !cfg.BigQuery.Enabled() {
		requireResource(ctx, logg, "bigquery dataset", errors.New(config.EnvBigQueryDataset+" not set"))
	}

	logg = logger.New(logger.Options{
		ServiceName: "analytics-worker",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer closeWith(logg, "redis", redisClient.Close)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer closeWith(logg, "pubsub", pubsubClient.Close)

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	requireResource(ctx, logg, "bigquery client", err)
	defer closeWith(logg, "bigquery", bqClient.Close)

	if cfg.BigQuery.CreateMissingTable {
		created, err := bqClient.EnsureTable(ctx, types.MarketplaceEventsSchema, types.MarketplaceEventsPartitionField)
		requireResource(ctx, logg, "marketplace events table", err)
		if created {
			logg.Info(logg.WithField(ctx, "table", cfg.BigQuery.MarketplaceEventsTable), "created marketplace events table")
		}
	} else {
		requireResource(ctx, logg, "marketplace events table", bqClient.Ping(ctx))
	}

	subscription, err := pubsubClient.Subscriber(ctx, cfg.PubSub.AnalyticsSubscription)
	requireResource(ctx, logg, "analytics subscription", err)

	ledger, err := idempotency.NewLedger(redisClient, worker.ConsumerName, cfg.BigQuery.ProcessedTTL)
	requireResource(ctx, logg, "analytics ledger", err)

	analyticsWriter, err := writer.New(bqClient, writer.Options{
		Table:       cfg.BigQuery.MarketplaceEventsTable,
		MaxAttempts: cfg.BigQuery.InsertMaxAttempts,
		Logger:      logg,
	})
	requireResource(ctx, logg, "analytics bigquery writer", err)

	rows, err := router.NewRouter(analyticsWriter, logg)
	requireResource(ctx, logg, "analytics router", err)

	handler, err := worker.NewHandler(rows, logg)
	requireResource(ctx, logg, "analytics handler", err)

	analytics, err := consumer.New(consumer.Params{
		Name:          worker.ConsumerName,
		Handler:       handler,
		Ledger:        ledger,
		Subscriptions: []consumer.Receiver{subscription},
		Metrics:       metrics.NewConsumerMetrics(prometheus.DefaultRegisterer),
		Logger:        logg,
	})
	requireResource(ctx, logg, "analytics consumer", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":          cfg.App.Env,
		"subscription": cfg.PubSub.AnalyticsSubscription,
		"table":        cfg.BigQuery.MarketplaceEventsTable,
	})
	logg.Info(runCtx, "analytics worker ready")

	if err := analytics.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "analytics worker failed", err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}

func closeWith(logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(context.Background(), "failed to close "+name+" client", err)
	}
}
