package api

import (
	"context"
	"net/http"
	"time"

	"github.com/felixgeelhaar/studiobook/pkg/observability"
	"github.com/gin-gonic/gin"
)

// HealthHandler reports component health.
type HealthHandler struct {
	registry *observability.HealthRegistry
	version  string
	started  time.Time
}

// NewHealthHandler creates a health handler. A nil registry reports healthy.
func NewHealthHandler(registry *observability.HealthRegistry, version string) *HealthHandler {
	if registry == nil {
		registry = observability.NewHealthRegistry()
	}
	return &HealthHandler{registry: registry, version: version, started: time.Now()}
}

// Health handles GET /health. Unhealthy components turn the response 503;
// degraded ones keep it 200.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	health := h.registry.GetOverallHealth(ctx)
	status := http.StatusOK
	if health.Status == observability.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status":         health.Status,
		"version":        h.version,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"time":           time.Now().UTC().Format(time.RFC3339),
		"checks":         health.Checks,
	})
}
