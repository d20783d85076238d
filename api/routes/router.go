package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/campusmart/campusmart-backend/api/controllers"
	"github.com/campusmart/campusmart-backend/api/middleware"
	"github.com/campusmart/campusmart-backend/internal/analytics"
	"github.com/campusmart/campusmart-backend/internal/assistant"
	"github.com/campusmart/campusmart-backend/internal/auth"
	"github.com/campusmart/campusmart-backend/internal/cart"
	"github.com/campusmart/campusmart-backend/internal/items"
	"github.com/campusmart/campusmart-backend/internal/media"
	"github.com/campusmart/campusmart-backend/internal/notifications"
	"github.com/campusmart/campusmart-backend/internal/orders"
	"github.com/campusmart/campusmart-backend/internal/reviews"
	"github.com/campusmart/campusmart-backend/internal/users"
	"github.com/campusmart/campusmart-backend/pkg/auth/session"
	"github.com/campusmart/campusmart-backend/pkg/config"
	"github.com/campusmart/campusmart-backend/pkg/logger"
	pkgredis "github.com/campusmart/campusmart-backend/pkg/redis"
)

type cacheStore interface {
	pkgredis.IdempotencyStore
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

const (
	checkoutReplayTTL = 7 * 24 * time.Hour
)

type requestObserver interface {
	Observe(route string, status int, duration time.Duration)
}

// Dependencies collects everything the HTTP surface is wired to.
// A nil Cache disables rate limiting and idempotent replay; a nil Assistant or Analytics answers 503.
type Dependencies struct {
	Pingers     map[string]controllers.Pinger
	Cache       cacheStore
	Sessions    session.AccessSessionChecker
	HTTPMetrics requestObserver
	Metrics     http.Handler

	Auth          auth.Service
	Users         users.Service
	Reviews       reviews.Service
	Items         items.Service
	Media         media.Service
	Cart          cart.Service
	Orders        orders.Service
	Notifications notifications.Service
	Assistant     assistant.Service
	Analytics     analytics.Service
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	limits := cfg.AuthRateLimit
	loginPolicy := middleware.RatePolicy{Name: "login", Window: limits.LoginWindow, Rules: []middleware.RateRule{
		{Scope: "ip", Limit: limits.LoginIPLimit, Key: middleware.ByClientIP},
		{Scope: "email", Limit: limits.LoginEmailLimit, Key: middleware.ByEmail, ReadsBody: true},
	}}
	registerPolicy := middleware.RatePolicy{Name: "register", Window: limits.RegisterWindow, Rules: []middleware.RateRule{
		{Scope: "ip", Limit: limits.RegisterIPLimit, Key: middleware.ByClientIP},
		{Scope: "email", Limit: limits.RegisterEmailLimit, Key: middleware.ByEmail, ReadsBody: true},
	}}
	// caps delivery code guesses per caller and order
	deliverPolicy := middleware.RatePolicy{Name: "deliver", Window: limits.DeliverWindow, Rules: []middleware.RateRule{
		{Scope: "user_order", Limit: limits.DeliverLimit, Key: middleware.ByUserAndParam("orderId")},
	}}

	var limiter, idem cacheStore
	if deps.Cache != nil {
		limiter, idem = deps.Cache, deps.Cache
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Pingers))
	})

	metricsHandler := deps.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.RateLimit(loginPolicy, limiter, logg)).Post("/login", controllers.AuthLogin(deps.Auth, logg))
		r.With(middleware.RateLimit(registerPolicy, limiter, logg)).Post("/register", controllers.AuthRegister(deps.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(deps.Auth, logg))
		r.Post("/logout", controllers.AuthLogout(deps.Auth, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))

		r.Route("/users", func(r chi.Router) {
			r.Get("/me", controllers.UsersMe(deps.Users, logg))
			r.Patch("/me", controllers.UsersUpdateMe(deps.Users, logg))
			r.Get("/{userId}", controllers.UsersPublic(deps.Users, logg))
			r.Get("/{userId}/reviews", controllers.ReviewsList(deps.Reviews, logg))
			r.Post("/{userId}/reviews", controllers.ReviewsSubmit(deps.Reviews, logg))
			r.Delete("/{userId}/reviews", controllers.ReviewsDelete(deps.Reviews, logg))
		})

		r.Route("/items", func(r chi.Router) {
			r.Get("/", controllers.ItemsList(deps.Items, logg))
			r.Post("/", controllers.ItemsCreate(deps.Items, logg))
			r.Get("/{itemId}", controllers.ItemsGet(deps.Items, logg))
			r.Patch("/{itemId}", controllers.ItemsUpdate(deps.Items, logg))
			r.Delete("/{itemId}", controllers.ItemsDelete(deps.Items, logg))
		})

		r.Route("/media/images", func(r chi.Router) {
			r.Post("/", controllers.MediaUpload(deps.Media, cfg.Media.MaxUploadBytes(), logg))
			r.Delete("/*", controllers.MediaDelete(deps.Media, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartList(deps.Cart, logg))
			r.Post("/", controllers.CartAdd(deps.Cart, logg))
			r.Delete("/{lineId}", controllers.CartRemove(deps.Cart, logg))
			r.Post("/{lineId}/save-for-later", controllers.CartSaveForLater(deps.Cart, logg))
			r.Post("/{lineId}/bargain", controllers.CartBargain(deps.Cart, logg))
		})

		r.Route("/bargains", func(r chi.Router) {
			r.Get("/incoming", controllers.BargainsIncoming(deps.Cart, logg))
			r.Post("/{lineId}/respond", controllers.BargainsRespond(deps.Cart, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.With(middleware.Idempotency(idem, checkoutReplayTTL, logg)).Post("/", controllers.OrdersCheckout(deps.Orders, logg))
			r.Get("/", controllers.OrdersList(deps.Orders, logg))
			r.Get("/{orderId}", controllers.OrdersGet(deps.Orders, logg))
			r.Get("/{orderId}/history", controllers.OrdersHistory(deps.Orders, logg))
			r.Post("/{orderId}/otp", controllers.OrdersRegenerateOTP(deps.Orders, logg))
			r.With(middleware.RateLimit(deliverPolicy, limiter, logg)).Post("/{orderId}/deliver", controllers.OrdersDeliver(deps.Orders, logg))
			r.Post("/{orderId}/cancel", controllers.OrdersCancel(deps.Orders, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.NotificationsList(deps.Notifications, logg))
			r.Post("/read-all", controllers.NotificationsMarkAllRead(deps.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.NotificationsMarkRead(deps.Notifications, logg))
		})

		r.Get("/analytics/sales", controllers.AnalyticsSales(deps.Analytics, logg))

		r.Route("/assistant", func(r chi.Router) {
			r.Post("/chat", controllers.AssistantChat(deps.Assistant, logg))
			r.Delete("/sessions/{sessionId}", controllers.AssistantReset(deps.Assistant, logg))
		})
	})

	return r
}
