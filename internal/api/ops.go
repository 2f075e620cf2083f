package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/api/middleware"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/observability/metrics"
)

// OpsConfig describes the operational endpoints of a background worker.
type OpsConfig struct {
	Service  string
	Version  string
	Metrics  *metrics.Metrics
	// Checks are pinged by /ready; any failure answers 503.
	Checks   map[string]Pinger
	Breakers BreakerHealth
	Logger   *zap.Logger
}

// NewOpsRouter serves /health, /ready and /metrics for the outbox relay
// and the activity service.
func NewOpsRouter(c OpsConfig) http.Handler {
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recover(logger))
	if c.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", c.Metrics.Handler())
	}
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": c.Service,
			"version": c.Version,
		})
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		names := make([]string, 0, len(c.Checks))
		for name := range c.Checks {
			names = append(names, name)
		}
		sort.Strings(names)

		body := map[string]any{"status": "ready"}
		checks := make(map[string]string, len(names))
		code := http.StatusOK
		for _, name := range names {
			if err := c.Checks[name].Ping(ctx); err != nil {
				checks[name] = err.Error()
				code = http.StatusServiceUnavailable
				body["status"] = "not ready"
				continue
			}
			checks[name] = "ok"
		}
		body["checks"] = checks
		if c.Breakers != nil {
			health := c.Breakers.Health()
			body["circuit_breakers"] = health
			if c.Metrics != nil {
				c.Metrics.ObserveBreakers(health)
			}
		}
		writeStatus(w, code, body)
	})
	return r
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }
