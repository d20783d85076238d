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

	"github.com/campusmart/campusmart-backend/internal/cron"
	"github.com/campusmart/campusmart-backend/internal/notifications"
	"github.com/campusmart/campusmart-backend/pkg/config"
	"github.com/campusmart/campusmart-backend/pkg/db"
	"github.com/campusmart/campusmart-backend/pkg/instance"
	"github.com/campusmart/campusmart-backend/pkg/logger"
	"github.com/campusmart/campusmart-backend/pkg/metrics"
	"github.com/campusmart/campusmart-backend/pkg/migrate"
	"github.com/campusmart/campusmart-backend/pkg/outbox"
	"github.com/campusmart/campusmart-backend/pkg/redis"
)

const serviceName = "cron-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
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
		"serviceKind": serviceName,
		"instance":    instance.GetID(),
	})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer closeLogged(logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer closeLogged(logg, "redis", redisClient.Close)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName(cfg.App.Env)), cfg.Cron.LockTTL)
	if err != nil {
		return fmt.Errorf("cron lock: %w", err)
	}
	registry, err := jobs(cfg.Cron, logg, dbClient)
	if err != nil {
		return err
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		return fmt.Errorf("cron service: %w", err)
	}

	logg.Info(ctx, "starting cron worker")
	return service.Run(ctx)
}

// jobs registers the retention jobs against the primary database.
func jobs(cfg config.CronConfig, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:        logg,
		Outbox:        outboxRepo,
		DeadLetters:   outboxRepo,
		RetentionDays: cfg.OutboxRetentionDays,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}
	notificationJob, err := cron.NewNotificationRetentionJob(cron.NotificationRetentionJobParams{
		Logger:        logg,
		Notifications: notifications.NewRepository(dbClient.DB()),
		RetentionDays: cfg.NotificationRetentionDays,
	})
	if err != nil {
		return nil, fmt.Errorf("notification retention job: %w", err)
	}

	registry := cron.NewRegistry()
	for _, job := range []cron.Job{outboxJob, notificationJob} {
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func closeLogged(logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(context.Background(), "error closing "+name, err)
	}
}

// lockName scopes the leader lock per environment so staging and production
// crons never block each other.
func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return serviceName + ":" + env
}
