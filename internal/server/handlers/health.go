// Package handlers implements the status server endpoints.
package handlers

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"
)

// HealthChecker reports whether a dependency is healthy.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// HealthCheckerFunc adapts a function to HealthChecker.
type HealthCheckerFunc func(ctx context.Context) error

// CheckHealth calls f.
func (f HealthCheckerFunc) CheckHealth(ctx context.Context) error {
	return f(ctx)
}

// HealthResponse is the body of a healthy /health answer.
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// checkTimeout bounds each registered check.
const checkTimeout = 2 * time.Second

// HealthManager runs registered checks for the health endpoint.
type HealthManager struct {
	version  string
	mu       sync.RWMutex
	checkers map[string]HealthChecker
}

// NewHealthManager creates a manager reporting version.
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		version:  version,
		checkers: make(map[string]HealthChecker),
	}
}

// RegisterChecker adds a named check.
func (m *HealthManager) RegisterChecker(name string, c HealthChecker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[name] = c
}

// HealthHandler answers GET /health.
func (m *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	checks := m.runChecks(r.Context())
	status := determineOverallStatus(checks)

	if status == "unhealthy" {
		RespondWithError(w, r, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "one or more checks failed",
			map[string]any{"checks": checks})
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    status,
		Version:   m.version,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	})
}

func (m *HealthManager) runChecks(ctx context.Context) map[string]string {
	m.mu.RLock()
	names := make([]string, 0, len(m.checkers))
	for name := range m.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	checkers := make([]HealthChecker, len(names))
	for i, name := range names {
		checkers[i] = m.checkers[name]
	}
	m.mu.RUnlock()

	results := make(map[string]string, len(names))
	for i, c := range checkers {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := c.CheckHealth(cctx)
		switch {
		case err == nil:
			results[names[i]] = "healthy"
		case cctx.Err() != nil:
			results[names[i]] = "timeout"
		default:
			results[names[i]] = "unhealthy"
		}
		cancel()
	}
	return results
}

// determineOverallStatus folds check results: any unhealthy check makes
// the whole unhealthy, a timeout only degrades it.
func determineOverallStatus(checks map[string]string) string {
	status := "healthy"
	for _, s := range checks {
		switch s {
		case "unhealthy":
			return "unhealthy"
		case "timeout":
			status = "degraded"
		}
	}
	return status
}
