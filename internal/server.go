package internal

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/starford/mindmap/internal/api"
	"github.com/starford/mindmap/internal/expander"
	"github.com/starford/mindmap/internal/mapservice"
)

// pinger reports index health for /health/ready.
type pinger interface {
	Ping(ctx context.Context) error
}

// newHandler builds the root HTTP handler: health, metrics and the
// authenticated API under /api/v1.
func newHandler(cfg *Config, svc *mapservice.Service, events http.Handler, db pinger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.App.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "If-Match", "X-Requested-With"},
		ExposedHeaders:   []string{"ETag"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(api.MetricsMiddleware)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Mount API routes under /api/v1.
	r.Mount("/api/v1", api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, events))

	return r
}

// newExpander builds the configured AI expander.
func newExpander(cfg AIConfig, logger *slog.Logger) expander.Expander {
	if cfg.Provider != AIProviderOpenAI {
		return expander.Heuristic{}
	}
	return &expander.Fallback{
		Primary:   expander.NewOpenAI(cfg.APIKey, cfg.Model, cfg.BaseURL, logger),
		Secondary: expander.Heuristic{},
		Logger:    logger,
	}
}
