package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/parleyapp/parley/internal/api/middleware"
	"github.com/parleyapp/parley/internal/config"
	"github.com/parleyapp/parley/internal/handlers"
	"github.com/parleyapp/parley/internal/store"
)

// maxJSONBody bounds non-upload request bodies. The message-send endpoint
// carries multipart attachments and gets its own larger limit.
const maxJSONBody = 16 * 1024

// NewRouter creates and configures the HTTP router.
func NewRouter(cfg *config.Config, logger zerolog.Logger, h *handlers.Handler, redisStore *store.RedisStore) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Caller auth: identities are resolved for every request so the rate
	// limiter can key on them; endpoints opt into RequireAuth below.
	auth := middleware.NewAuthMiddleware(cfg.JWTSecret)
	r.Use(auth.Authenticate)

	// Rate limiting (needs redis; skipped in single-node dev setups)
	if redisStore != nil {
		limiter := middleware.NewRateLimiter(redisStore.Client(), logger, middleware.RateLimiterConfig{
			Whitelist: cfg.RateLimitWhitelist,
		})
		r.Use(limiter.Middleware)
	}

	// CORS - browser clients call from the web app origin or mobile webviews
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes (no auth required)
	r.Get("/health", h.Health)
	r.Get("/status", h.Status)
	r.Get("/avatar/{filename}", h.ServeAvatar)

	// Credential issuance. /token expects an authenticated caller by
	// convention but does not enforce it here; /refresh-token is the
	// deliberately weaker channel-direct path.
	r.Group(func(r chi.Router) {
		r.Use(middleware.MaxBodySize(maxJSONBody))
		r.Post("/token", h.CreateToken)
		r.Post("/refresh-token", h.RefreshToken)
	})

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)

		r.Get("/uploads/{filename}", h.ServeUpload)
		r.Get("/sessions/{sessionID}/messages", h.GetMessages)
		r.Get("/sessions/{sessionID}/stream", h.StreamMessages)

		r.Group(func(r chi.Router) {
			r.Use(middleware.MaxBodySize(handlers.MaxSendBody))
			r.Post("/sessions/{sessionID}/messages", h.SendMessage)
		})
	})

	return r
}
