// Package httptransport is the thin HTTP layer: it decodes requests,
// delegates to the gateway and services, and encodes their results. No
// business rule lives here.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"housing/internal/platform/metrics"
	"housing/internal/platform/middleware"
	"housing/internal/policy"
	"housing/pkg/domain"
	"housing/pkg/platform/httputil"
)

// Registrar mounts a handler's routes.
type Registrar interface {
	Register(r chi.Router)
}

// RouterConfig carries the cross-cutting pieces of the router.
type RouterConfig struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
	// Checks back /readyz; each must pass for the portal to report ready.
	Checks map[string]func(ctx context.Context) error
}

// NewRouter builds the chi router with the shared middleware chain and mounts
// every handler under it. /healthz, /readyz and /metrics sit outside the JSON
// group.
func NewRouter(cfg RouterConfig, handlers ...Registrar) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.LatencyMiddleware(cfg.Metrics))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		failed := map[string]string{}
		for name, check := range cfg.Checks {
			if err := check(r.Context()); err != nil {
				logger.WarnContext(r.Context(), "readiness check failed", "check", name, "error", err)
				failed[name] = "unavailable"
			}
		}
		if len(failed) > 0 {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "checks": failed})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		for _, h := range handlers {
			h.Register(r)
		}
	})
	return r
}

// ExposedAreas lists every area the HTTP surface can reach: the portal's
// navigable areas plus those guarding API routes. The policy table must
// declare all of them.
func ExposedAreas() []domain.Area {
	seen := map[domain.Area]struct{}{}
	var out []domain.Area
	add := func(a domain.Area) {
		if _, ok := seen[a]; !ok {
			seen[a] = struct{}{}
			out = append(out, a)
		}
	}
	for _, rule := range policy.DefaultRules() {
		add(rule.Area)
	}
	for _, a := range guardedAreas {
		add(a)
	}
	return out
}
