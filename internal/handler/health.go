package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/newsletter/newsletter/internal/telemetry"
)

// HealthChecker defines an interface for checking service health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthHandler manages health check endpoints.
type HealthHandler struct {
	db      HealthChecker
	timeout time.Duration
}

// NewHealthHandler creates a new HealthHandler.
// Pass nil for db if it is not yet initialized.
func NewHealthHandler(db HealthChecker) *HealthHandler {
	return &HealthHandler{
		db:      db,
		timeout: 5 * time.Second,
	}
}

// HealthResponse represents the readiness response.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HealthCheck is the liveness probe. It returns 200 with an empty body and
// touches no dependency.
//
// GET /health_check
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	Empty(http.StatusOK).Write(w)
}

// Readyz is a readiness probe endpoint.
// It returns 200 only if the database answers a ping. Ping failures are
// logged; the body only reports the check as unreachable.
//
// GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := make(map[string]string)
	healthy := true

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			telemetry.Logger(ctx, slog.Default()).Error("readiness check failed",
				slog.String("check", "postgres"),
				slog.String("error", err.Error()),
			)
			checks["postgres"] = "unreachable"
			healthy = false
		} else {
			checks["postgres"] = "ok"
		}
	} else {
		checks["postgres"] = "not configured"
	}

	res := Result{Status: http.StatusOK, Body: HealthResponse{Status: "ok", Checks: checks}}
	if !healthy {
		res = Result{Status: http.StatusServiceUnavailable, Body: HealthResponse{Status: "unhealthy", Checks: checks}}
	}
	res.Write(w)
}
