package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Healthy(ctx context.Context) error
}

// HealthHandler serves GET / and GET /health for the orchestrator.
type HealthHandler struct {
	serviceName string
	version     string
	redis       Pinger
}

func NewHealthHandler(serviceName, version string, redis Pinger) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, redis: redis}
}

func (h *HealthHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": h.serviceName,
		"version": h.version,
		"status":  "running",
	})
}

func (h *HealthHandler) Health(c *gin.Context) {
	status := "healthy"
	redisStatus := "connected"
	if err := h.redis.Healthy(c.Request.Context()); err != nil {
		status = "degraded"
		redisStatus = "unavailable"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  status,
		"service": h.serviceName,
		"redis":   redisStatus,
	})
}
