package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/campusmart/campusmart-backend/api/controllers"
	"github.com/campusmart/campusmart-backend/api/routes"
	"github.com/campusmart/campusmart-backend/internal/analytics"
	"github.com/campusmart/campusmart-backend/internal/assistant"
	"github.com/campusmart/campusmart-backend/internal/auth"
	"github.com/campusmart/campusmart-backend/internal/cart"
	"github.com/campusmart/campusmart-backend/internal/items"
	"github.com/campusmart/campusmart-backend/internal/media"
	"github.com/campusmart/campusmart-backend/internal/notifications"
	"github.com/campusmart/campusmart-backend/internal/orderhistory"
	"github.com/campusmart/campusmart-backend/internal/orders"
	"github.com/campusmart/campusmart-backend/internal/reviews"
	"github.com/campusmart/campusmart-backend/internal/users"
	"github.com/campusmart/campusmart-backend/pkg/auth/session"
	"github.com/campusmart/campusmart-backend/pkg/bigquery"
	"github.com/campusmart/campusmart-backend/pkg/config"
	"github.com/campusmart/campusmart-backend/pkg/db"
	"github.com/campusmart/campusmart-backend/pkg/genai"
	"github.com/campusmart/campusmart-backend/pkg/logger"
	"github.com/campusmart/campusmart-backend/pkg/metrics"
	"github.com/campusmart/campusmart-backend/pkg/outbox"
	"github.com/campusmart/campusmart-backend/pkg/recaptcha"
	"github.com/campusmart/campusmart-backend/pkg/redis"
	"github.com/campusmart/campusmart-backend/pkg/storage/gcs"
)

func buildDependencies(
	ctx context.Context,
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	sessionManager *session.Manager,
	gcsClient *gcs.Client,
) (routes.Dependencies, func(), error) {
	cleanup := func() {}
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	userRepo := users.NewRepository(dbClient.DB())
	itemRepo := items.NewRepository(dbClient.DB())
	cartRepo := cart.NewRepository(dbClient.DB())

	authSvc, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		return routes.Dependencies{}, cleanup, fmt.Errorf("auth service: %w", err)
	}

	usersSvc, err := users.NewService(userRepo)
	if err != nil {
		return routes.Dependencies{}, cleanup, fmt.Errorf("users service: %w", err)
	}

	reviewsSvc, err := reviews.NewService(reviews.NewRepository(dbClient.DB()), dbClient, outboxSvc, logg)
	if err != nil {
		return routes.Dependencies{}, cleanup, fmt.Errorf("reviews service: %w", err)
	}

	mediaSvc, err := media.NewService(gcsClient, cfg.Media.MaxUploadBytes(), cfg.Media.DefaultFolder, logg)
	if err != nil {
		return routes.Dependencies{}, cleanup, fmt.Errorf("media service: %w", err)
	}

	itemsSvc, err := items.NewService(itemRepo, dbClient, media.NewRemover(gcsClient), logg)
	if err != nil {
		return routes.Dependencies{}, cleanup, fmt.Errorf("items service: %w", err)
	}

	cartSvc, err := cart.NewService(cartRepo, itemRepo, dbClient, outboxSvc, logg)
	if err != nil {
		return routes.Dependencies{}, cleanup, fmt.Errorf("cart service: %w", err)
	}

	notificationsSvc, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		return routes.Dependencies{}, cleanup, fmt.Errorf("notifications service: %w", err)
	}

	captcha, err := buildCaptcha(cfg)
	if err != nil {
		return routes.Dependencies{}, cleanup, err
	}

	var history orderhistory.Store = orderhistory.Noop{}
	if cfg.Mongo.Enabled() {
		mongoClient, err := orderhistory.Connect(ctx, cfg.Mongo, logg)
		if err != nil {
			return routes.Dependencies{}, cleanup, err
		}
		cleanup = func() {
			if err := mongoClient.Disconnect(context.Background()); err != nil {
				logg.Error(context.Background(), "error closing mongo", err)
			}
		}
		store, err := orderhistory.NewMongoStore(mongoClient, cfg.Mongo)
		if err != nil {
			return routes.Dependencies{}, cleanup, err
		}
		history = store
	}

	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repo:      orders.NewRepository(dbClient.DB()),
		Tx:        dbClient,
		Outbox:    outboxSvc,
		Cart:      cartRepo,
		Catalog:   itemRepo,
		Captcha:   captcha,
		History:   history,
		Metrics:   metrics.NewOrderMetrics(registry),
		Logger:    logg,
		OTPLength: cfg.Orders.OTPLength,
		OTPTTL:    cfg.Orders.OTPTTL,
	})
	if err != nil {
		return routes.Dependencies{}, cleanup, fmt.Errorf("orders service: %w", err)
	}

	deps := routes.Dependencies{
		Pingers: map[string]controllers.Pinger{
			"db":    dbClient,
			"redis": redisClient,
		},
		Cache:         redisClient,
		Sessions:      sessionManager,
		HTTPMetrics:   metrics.NewHTTPMetrics(registry),
		Metrics:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Auth:          authSvc,
		Users:         usersSvc,
		Reviews:       reviewsSvc,
		Items:         itemsSvc,
		Media:         mediaSvc,
		Cart:          cartSvc,
		Orders:        ordersSvc,
		Notifications: notificationsSvc,
	}

	if cfg.Assistant.APIKey != "" {
		llm, err := genai.NewClient(cfg.Assistant.APIKey,
			genai.WithBaseURL(cfg.Assistant.BaseURL),
			genai.WithModel(cfg.Assistant.Model),
		)
		if err != nil {
			return routes.Dependencies{}, cleanup, fmt.Errorf("assistant client: %w", err)
		}
		assistantSvc, err := assistant.NewService(redisClient, llm, assistant.Config{
			SystemPrompt: cfg.Assistant.SystemPrompt,
			SessionTTL:   cfg.Assistant.SessionTTL,
			MaxTurns:     cfg.Assistant.MaxTurns,
		}, logg)
		if err != nil {
			return routes.Dependencies{}, cleanup, fmt.Errorf("assistant service: %w", err)
		}
		deps.Assistant = assistantSvc
	} else {
		logg.Warn(ctx, "assistant api key not set, chat endpoints disabled")
	}

	if cfg.BigQuery.Enabled() {
		bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
		if err != nil {
			return routes.Dependencies{}, cleanup, fmt.Errorf("bigquery client: %w", err)
		}
		previous := cleanup
		cleanup = func() {
			if err := bqClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing bigquery", err)
			}
			previous()
		}
		analyticsSvc, err := analytics.NewService(bqClient, cfg.BigQuery.MarketplaceEventsTable)
		if err != nil {
			return routes.Dependencies{}, cleanup, fmt.Errorf("analytics service: %w", err)
		}
		deps.Analytics = analyticsSvc
		deps.Pingers["bigquery"] = bqClient
	} else {
		logg.Warn(ctx, "bigquery dataset not set, analytics endpoints disabled")
	}

	return deps, cleanup, nil
}

func buildCaptcha(cfg *config.Config) (orders.HumanVerifier, error) {
	if cfg.FeatureFlags.CaptchaBypass {
		return recaptcha.AllowAll{}, nil
	}
	client, err := recaptcha.NewClient(cfg.Recaptcha.Secret,
		recaptcha.WithVerifyURL(cfg.Recaptcha.VerifyURL),
		recaptcha.WithMinScore(cfg.Recaptcha.MinScore),
	)
	if err != nil {
		return nil, fmt.Errorf("recaptcha client: %w", err)
	}
	return client, nil
}
