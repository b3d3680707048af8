package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthChecker reports whether a dependency is usable.
type HealthChecker interface {
	IsHealthy() bool
}

// HealthHandler serves GET /health.
type HealthHandler struct {
	db HealthChecker
}

// NewHealthHandler creates a HealthHandler. db may be nil when the service
// runs on the in-memory store.
func NewHealthHandler(db HealthChecker) *HealthHandler {
	return &HealthHandler{db: db}
}

// Check responds 200 when every dependency is healthy and 503 otherwise.
func (h *HealthHandler) Check(c echo.Context) error {
	if h.db == nil {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok", "database": "memory"})
	}
	if !h.db.IsHealthy() {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "degraded", "database": "down"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "database": "up"})
}
