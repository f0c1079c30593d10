package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/newsletter/newsletter/internal/telemetry"
)

// mockHealthChecker is a mock implementation of HealthChecker for testing.
type mockHealthChecker struct {
	err   error
	calls int
}

func (m *mockHealthChecker) Ping(ctx context.Context) error {
	m.calls++
	return m.err
}

func TestHealthHandler_HealthCheck(t *testing.T) {
	db := &mockHealthChecker{err: errors.New("connection refused")}
	h := NewHealthHandler(db)

	req := httptest.NewRequest(http.MethodGet, "/health_check", nil)
	rec := httptest.NewRecorder()

	h.HealthCheck(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", rec.Body.String())
	}
	if db.calls != 0 {
		t.Errorf("liveness probe touched the database %d times", db.calls)
	}
}

func TestHealthHandler_Readyz_Healthy(t *testing.T) {
	h := NewHealthHandler(&mockHealthChecker{})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	h.Readyz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	var response HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Status != "ok" {
		t.Errorf("expected status 'ok', got %s", response.Status)
	}
	if response.Checks["postgres"] != "ok" {
		t.Errorf("expected postgres check 'ok', got %s", response.Checks["postgres"])
	}
}

func TestHealthHandler_Readyz_DatabaseUnhealthy(t *testing.T) {
	pingErr := errors.New("failed to connect to `host=db.internal user=admin database=prod`: dial error")
	h := NewHealthHandler(&mockHealthChecker{err: pingErr})

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	req = req.WithContext(telemetry.WithLogger(req.Context(), logger))
	rec := httptest.NewRecorder()

	h.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}

	body := rec.Body.String()
	if strings.Contains(body, "db.internal") {
		t.Errorf("connection detail leaked into body: %s", body)
	}

	var response HealthResponse
	if err := json.Unmarshal([]byte(body), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Status != "unhealthy" {
		t.Errorf("expected status 'unhealthy', got %s", response.Status)
	}
	if response.Checks["postgres"] != "unreachable" {
		t.Errorf("unexpected postgres check: %s", response.Checks["postgres"])
	}
	if !strings.Contains(logs.String(), `"msg":"readiness check failed"`) || !strings.Contains(logs.String(), "db.internal") {
		t.Errorf("ping failure not logged with its cause: %s", logs.String())
	}
}

func TestHealthHandler_Readyz_NoDependencies(t *testing.T) {
	h := NewHealthHandler(nil)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	h.Readyz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	var response HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Checks["postgres"] != "not configured" {
		t.Errorf("expected 'not configured', got %s", response.Checks["postgres"])
	}
}
