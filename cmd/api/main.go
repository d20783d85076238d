package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/campusmart/campusmart-backend/api/routes"
	"github.com/campusmart/campusmart-backend/pkg/auth/session"
	"github.com/campusmart/campusmart-backend/pkg/config"
	"github.com/campusmart/campusmart-backend/pkg/db"
	"github.com/campusmart/campusmart-backend/pkg/instance"
	"github.com/campusmart/campusmart-backend/pkg/logger"
	"github.com/campusmart/campusmart-backend/pkg/migrate"
	"github.com/campusmart/campusmart-backend/pkg/redis"
	"github.com/campusmart/campusmart-backend/pkg/storage/gcs"
)

const (
	shutdownTimeout   = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
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
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "api",
		"instance":    instance.GetID(),
	})

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
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

	sessions, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return fmt.Errorf("session manager: %w", err)
	}

	gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	if err != nil {
		return fmt.Errorf("bootstrap gcs: %w", err)
	}
	defer closeLogged(logg, "gcs", gcsClient.Close)

	deps, cleanup, err := buildDependencies(ctx, cfg, logg, dbClient, redisClient, sessions, gcsClient)
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}
	defer cleanup()

	server := &http.Server{
		Addr:              ":" + listenPort(cfg.App),
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return serve(ctx, logg, server)
}

// serve runs server until ctx ends, then drains in-flight requests for up to
// shutdownTimeout.
func serve(ctx context.Context, logg *logger.Logger, server *http.Server) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logg.Info(logg.WithField(ctx, "addr", server.Addr), "starting api server")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

// listenPort prefers PORT, which Cloud Run injects.
func listenPort(app config.AppConfig) string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return app.Port
}

func closeLogged(logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(context.Background(), "error closing "+name, err)
	}
}
