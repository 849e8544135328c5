package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/pmcoach/internal/auth"
	"github.com/BradenHooton/pmcoach/internal/handlers"
	"github.com/BradenHooton/pmcoach/internal/metrics"
	middlewareCustom "github.com/BradenHooton/pmcoach/internal/middleware"
	pkghttp "github.com/BradenHooton/pmcoach/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes
type Handlers struct {
	Throttle     *handlers.ThrottleHandler
	Usage        *handlers.UsageHandler
	Activity     *handlers.ActivityHandler
	Subscription *handlers.SubscriptionHandler
	Health       *handlers.HealthHandler
}

// Config carries the cross-cutting settings the router needs
type Config struct {
	Env                 string
	AllowedOrigins      []string
	InternalAPIKey      string
	RequestTimeout      time.Duration
	InternalRateLimit   middlewareCustom.RateLimitConfig
	SubscriberRateLimit middlewareCustom.RateLimitConfig
}

// NewRouter builds the chi router with the global middleware stack and all routes
func NewRouter(
	h Handlers,
	cfg Config,
	verifier *auth.TokenVerifier,
	timingDelay *auth.TimingDelay,
	resolver *pkghttp.ClientIPResolver,
	logger *slog.Logger,
) chi.Router {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Env}))
	router.Use(middlewareCustom.CORS(cfg.AllowedOrigins))
	router.Use(middlewareCustom.SecureLogger(logger, resolver))
	router.Use(metrics.Middleware)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(cfg.RequestTimeout))

	RegisterRoutes(router, h, cfg, verifier, timingDelay, resolver, logger)
	return router
}

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	h Handlers,
	cfg Config,
	verifier *auth.TokenVerifier,
	timingDelay *auth.TimingDelay,
	resolver *pkghttp.ClientIPResolver,
	logger *slog.Logger,
) {
	// Operational endpoints - no authentication required
	router.Get("/health", h.Health.Health)
	router.Method(http.MethodGet, "/metrics", metrics.Handler())

	router.Route("/v1", func(r chi.Router) {
		// Service-to-service routes - shared internal key
		r.Group(func(r chi.Router) {
			r.Use(middlewareCustom.RateLimitByIP(cfg.InternalRateLimit, resolver))
			r.Use(auth.RequireInternalKey(cfg.InternalAPIKey, timingDelay, logger))

			r.Post("/login-attempts/check", h.Throttle.Check)
			r.Post("/login-attempts/failures", h.Throttle.RecordFailure)
			r.Post("/login-attempts/reset", h.Throttle.Reset)

			r.Put("/subscriptions/{subscriberID}", h.Subscription.Put)
		})

		// Subscriber routes - bearer token required
		r.Group(func(r chi.Router) {
			r.Use(auth.AuthMiddleware(verifier, logger))
			r.Use(middlewareCustom.RateLimitBySubscriber(cfg.SubscriberRateLimit, resolver))

			r.Get("/usage", h.Usage.GetUsage)
			r.Post("/usage/messages", h.Usage.TrackMessage)

			r.Get("/activity", h.Activity.List)
			r.Post("/activity", h.Activity.Record)
		})
	})
}
