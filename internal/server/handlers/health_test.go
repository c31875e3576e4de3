package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/3leaps/jobprobe/pkg/driver"
)

type stubChecker struct {
	err error
}

func (s stubChecker) CheckHealth(ctx context.Context) error {
	return s.err
}

func TestHealthHandlerReturnsHealthyStatus(t *testing.T) {
	manager := NewHealthManager("1.2.3")
	manager.RegisterChecker("ok", stubChecker{err: nil})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	manager.HealthHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Status != "healthy" {
		t.Fatalf("expected healthy status, got %s", resp.Status)
	}

	if resp.Version != "1.2.3" {
		t.Fatalf("expected version 1.2.3, got %s", resp.Version)
	}

	if resp.Checks["ok"] != "healthy" {
		t.Fatalf("expected ok check to be healthy, got %s", resp.Checks["ok"])
	}
}

func TestHealthHandlerReturnsServiceUnavailableWhenUnhealthy(t *testing.T) {
	manager := NewHealthManager("1.2.3")
	manager.RegisterChecker("loop", stubChecker{err: errors.New("stopped")})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	manager.HealthHandler(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Error.Code != "SERVICE_UNAVAILABLE" {
		t.Fatalf("expected SERVICE_UNAVAILABLE error code, got %s", resp.Error.Code)
	}

	checks, ok := resp.Error.Details["checks"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected checks in error details")
	}

	if status, ok := checks["loop"].(string); !ok || status != "unhealthy" {
		t.Fatalf("expected loop check to be unhealthy, got %v", checks["loop"])
	}
}

func TestHealthCheckerFuncTimeoutIsDegraded(t *testing.T) {
	manager := NewHealthManager("dev")
	manager.RegisterChecker("slow", HealthCheckerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := httptest.NewRequest(http.MethodGet, "/health", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	manager.HealthHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "degraded" {
		t.Fatalf("expected degraded status, got %s", resp.Status)
	}
}

func TestDetermineOverallStatusTreatsTimeoutAsDegraded(t *testing.T) {
	status := determineOverallStatus(map[string]string{
		"loop": "timeout",
	})

	if status != "degraded" {
		t.Fatalf("expected degraded status, got %s", status)
	}
}

type stubStats struct{}

func (stubStats) Snapshot() []driver.StatsSnapshot {
	return []driver.StatsSnapshot{
		{Endpoint: "http://a", Attempted: 4, Succeeded: 3, Failed: 1},
		{Endpoint: "http://b"},
	}
}

func (stubStats) Rounds() int { return 4 }

func TestStatsHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()

	StatsHandler(stubStats{})(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp["rounds"] != float64(4) {
		t.Fatalf("expected 4 rounds, got %v", resp["rounds"])
	}

	endpoints := resp["endpoints"].([]any)
	first := endpoints[0].(map[string]any)
	if first["endpoint"] != "http://a" || first["succeeded"] != float64(3) || first["success_rate"] != float64(75) {
		t.Fatalf("unexpected first endpoint: %v", first)
	}
	second := endpoints[1].(map[string]any)
	if second["success_rate"] != float64(0) {
		t.Fatalf("expected zero success rate, got %v", second["success_rate"])
	}
}
