package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/lumencraft/storefront-api/internal/platform/httpx"
)

// ReadinessProbe reports whether a backing dependency can serve traffic.
type ReadinessProbe func(ctx context.Context) error

// HealthHandlers serves liveness and readiness endpoints.
type HealthHandlers struct {
	version     string
	environment string
	startedAt   time.Time
	clock       func() time.Time
	probes      map[string]ReadinessProbe
}

// HealthOption customises the health handlers.
type HealthOption func(*HealthHandlers)

// WithHealthBuildInfo attaches version metadata to health responses.
func WithHealthBuildInfo(version, environment string, startedAt time.Time) HealthOption {
	return func(h *HealthHandlers) {
		h.version = version
		h.environment = environment
		h.startedAt = startedAt
	}
}

// WithHealthClock overrides the clock used for uptime reporting.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// WithReadinessProbe registers a named dependency check for /readyz.
func WithReadinessProbe(name string, probe ReadinessProbe) HealthOption {
	return func(h *HealthHandlers) {
		if name != "" && probe != nil {
			h.probes[name] = probe
		}
	}
}

// NewHealthHandlers constructs health endpoints with optional probes.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{
		clock:     time.Now,
		startedAt: time.Now(),
		probes:    make(map[string]ReadinessProbe),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock()
	payload := map[string]any{
		"status":    "ok",
		"uptime":    now.Sub(h.startedAt).String(),
		"timestamp": now.UTC().Format(time.RFC3339),
	}
	if h.version != "" {
		payload["version"] = h.version
	}
	if h.environment != "" {
		payload["environment"] = h.environment
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

// Readyz runs every registered probe and fails when any dependency is down.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	failures := make(map[string]string)
	for name, probe := range h.probes {
		if err := probe(ctx); err != nil {
			failures[name] = err.Error()
		}
	}
	if len(failures) > 0 {
		details := make(map[string]any, len(failures))
		for name, msg := range failures {
			details[name] = msg
		}
		httpx.WriteError(ctx, w, httpx.NewError("not_ready", "one or more dependencies are unavailable", http.StatusServiceUnavailable).WithDetails(details))
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"status": "ready"})
}
