package server

import (
	"context"
	"net/http"

	"github.com/cloo-solutions/kbchat/internal/api"
	"github.com/cloo-solutions/kbchat/internal/api/handlers"
	"github.com/cloo-solutions/kbchat/internal/api/middleware"
	"github.com/cloo-solutions/kbchat/internal/metrics"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const DefaultMaxBodyBytes int64 = 5 * 1024 * 1024

type RouterConfig struct {
	Logger        *zap.Logger
	ChatHandler   *handlers.ChatHandler
	IngestHandler *handlers.IngestHandler
	// RateLimiter throttles /v1 per client address; nil disables it.
	RateLimiter *middleware.IPRateLimiter
	// HealthCheck, when set, must succeed for /healthz to report ok.
	HealthCheck func(ctx context.Context) error
	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler
	MaxBodyBytes   int64
	// TrustProxy takes the client address from X-Forwarded-For and X-Real-IP.
	TrustProxy bool
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	r.Use(middleware.RequestContext(cfg.TrustProxy))
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(metrics.Middleware)
	r.Use(middleware.MaxBodyBytes(maxBody))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.HealthCheck != nil {
			if err := cfg.HealthCheck(r.Context()); err != nil {
				api.JSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": "database unavailable"})
				return
			}
		}
		api.JSON(w, http.StatusOK, api.OKResponse{OK: true})
	})

	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimiter))

		r.Post("/chat", cfg.ChatHandler.Chat)
		r.Post("/ingest", cfg.IngestHandler.Ingest)
	})

	return r
}
