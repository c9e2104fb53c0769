package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

const readinessTimeout = 2 * time.Second

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// HealthHandler serves liveness, readiness and metrics over HTTP.
type HealthHandler struct {
	logger  *slog.Logger
	checks  map[string]Check
	metrics http.Handler
	service string
}

// NewHealthHandler creates the HTTP handler. checks are run on every
// readiness check; metrics may be nil.
func NewHealthHandler(service string, logger *slog.Logger, metrics http.Handler, checks map[string]Check) *HealthHandler {
	return &HealthHandler{
		service: service,
		logger:  logger,
		metrics: metrics,
		checks:  checks,
	}
}

// RegisterRoutes attaches the routes to the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.liveness)
	mux.HandleFunc("GET /readyz", h.readiness)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}
}

func (h *HealthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": h.service,
	})
}

func (h *HealthHandler) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	code := http.StatusOK
	state := "ready"
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.WarnContext(ctx, "readiness check failed", "check", name, "error", err)
			results[name] = err.Error()
			code = http.StatusServiceUnavailable
			state = "unavailable"
			continue
		}
		results[name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":  state,
		"service": h.service,
		"checks":  results,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck
}
