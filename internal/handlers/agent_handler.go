package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GiacomoBacchetta/OmniA/internal/model"
	"github.com/GiacomoBacchetta/OmniA/internal/registry"
)

// AgentRegistry is the registry surface the HTTP handlers need.
type AgentRegistry interface {
	Register(ctx context.Context, field, agentURL string, capabilities map[string]string) error
	Unregister(ctx context.Context, field string) error
	Get(ctx context.Context, field string) (model.AgentRecord, error)
	List(ctx context.Context) ([]model.AgentRecord, error)
}

// AgentHandler handles the /api/v1/agents routes.
type AgentHandler struct {
	registry AgentRegistry
	logger   *zap.Logger
}

func NewAgentHandler(reg AgentRegistry, logger *zap.Logger) *AgentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AgentHandler{registry: reg, logger: logger}
}

func (h *AgentHandler) Register(c *gin.Context) {
	var req model.AgentRegistration
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.registry.Register(c.Request.Context(), req.Field, req.AgentURL, req.Capabilities); err != nil {
		h.logger.Error("agent registration failed",
			zap.String("field", req.Field),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register agent"})
		return
	}
	h.logger.Info("agent registered",
		zap.String("field", req.Field),
		zap.String("agent_url", req.AgentURL))
	c.JSON(http.StatusCreated, gin.H{"status": "registered", "field": req.Field})
}

func (h *AgentHandler) Unregister(c *gin.Context) {
	field := c.Param("field")
	if err := h.registry.Unregister(c.Request.Context(), field); err != nil {
		h.logger.Error("agent unregistration failed",
			zap.String("field", field),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unregister agent"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AgentHandler) Get(c *gin.Context) {
	field := c.Param("field")
	record, err := h.registry.Get(c.Request.Context(), field)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "agent not found for field " + field})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to look up agent"})
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *AgentHandler) List(c *gin.Context) {
	records, err := h.registry.List(c.Request.Context())
	if err != nil {
		h.logger.Error("agent listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list agents"})
		return
	}
	if records == nil {
		records = []model.AgentRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"agents": records})
}
