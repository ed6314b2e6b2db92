// Package httpserver provides HTTP server infrastructure components.
package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health and readiness states reported by the health endpoints.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
	StatusReady     = "ready"
	StatusNotReady  = "not_ready"
)

// ComponentStatus represents the health status of a single component.
type ComponentStatus struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// DirectoryInfo summarizes the user directory the simulator resolves against.
type DirectoryInfo struct {
	Users        int    `json:"users"`
	Source       string `json:"source"`
	FallbackMode string `json:"fallback_mode"`
}

// HealthResponse represents the response for health endpoints.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components []ComponentStatus `json:"components,omitempty"`
	Directory  *DirectoryInfo    `json:"directory,omitempty"`
}

// HealthChecker reports whether the simulator can serve traffic: the user
// directory is loaded and the dataset backend, if any, answers.
type HealthChecker interface {
	// IsReady reports whether simulated requests can be answered.
	IsReady(ctx context.Context) bool

	// GetHealthStatus returns the status of every component.
	GetHealthStatus(ctx context.Context) []ComponentStatus
}

// DirectoryReporter is implemented by checkers that can describe the loaded
// directory. /health/details and /ready include it when available.
type DirectoryReporter interface {
	DirectoryInfo() DirectoryInfo
}

// HealthEndpoints serves liveness, readiness and detail endpoints.
type HealthEndpoints struct {
	checker HealthChecker
}

// NewHealthEndpoints creates a new HealthEndpoints instance. A nil checker
// reports the service as ready with no components.
func NewHealthEndpoints(checker HealthChecker) *HealthEndpoints {
	return &HealthEndpoints{checker: checker}
}

// Register registers GET /health, /ready and /health/details on e.
func (h *HealthEndpoints) Register(e *echo.Echo) {
	e.GET("/health", h.handleHealth)
	e.GET("/ready", h.handleReady)
	e.GET("/health/details", h.handleHealthDetails)
}

func (h *HealthEndpoints) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: StatusHealthy})
}

func (h *HealthEndpoints) handleReady(c echo.Context) error {
	ctx := c.Request().Context()

	resp := h.report(ctx)
	if h.checker != nil && !h.checker.IsReady(ctx) {
		resp.Status = StatusNotReady
		return c.JSON(http.StatusServiceUnavailable, resp)
	}

	resp.Status = StatusReady
	return c.JSON(http.StatusOK, resp)
}

func (h *HealthEndpoints) handleHealthDetails(c echo.Context) error {
	resp := h.report(c.Request().Context())

	resp.Status = aggregateStatus(resp.Components)
	if resp.Status == StatusUnhealthy {
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

// report collects component statuses and directory details without setting
// the overall status.
func (h *HealthEndpoints) report(ctx context.Context) HealthResponse {
	var resp HealthResponse
	if h.checker == nil {
		return resp
	}

	resp.Components = h.checker.GetHealthStatus(ctx)
	if reporter, ok := h.checker.(DirectoryReporter); ok {
		info := reporter.DirectoryInfo()
		resp.Directory = &info
	}
	return resp
}

// aggregateStatus returns unhealthy if any component is unhealthy, degraded
// if any is degraded, healthy otherwise.
func aggregateStatus(components []ComponentStatus) string {
	status := StatusHealthy
	for _, comp := range components {
		switch comp.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}

// RegisterHealthEndpoints registers health endpoints backed by checker.
func (r *Router) RegisterHealthEndpoints(checker HealthChecker) {
	NewHealthEndpoints(checker).Register(r.echo)
}
