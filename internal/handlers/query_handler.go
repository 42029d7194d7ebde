package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GiacomoBacchetta/OmniA/internal/model"
)

// QueryProcessor runs one query through selection, fan-out and synthesis.
type QueryProcessor interface {
	ProcessQuery(ctx context.Context, queryID, query string, fields []string, maxResults int) (model.QueryResponse, error)
}

// QueryHandler handles POST /api/v1/query.
type QueryHandler struct {
	processor         QueryProcessor
	maxQueryLength    int
	defaultMaxResults int
	logger            *zap.Logger
}

func NewQueryHandler(processor QueryProcessor, maxQueryLength, defaultMaxResults int, logger *zap.Logger) *QueryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryHandler{
		processor:         processor,
		maxQueryLength:    maxQueryLength,
		defaultMaxResults: defaultMaxResults,
		logger:            logger,
	}
}

func (h *QueryHandler) Query(c *gin.Context) {
	var req model.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Query) > h.maxQueryLength {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("query exceeds maximum length of %d characters", h.maxQueryLength),
		})
		return
	}
	if req.MaxResults <= 0 {
		req.MaxResults = h.defaultMaxResults
	}

	queryID := uuid.NewString()
	h.logger.Info("processing query",
		zap.String("query_id", queryID),
		zap.Strings("fields", req.Fields))

	resp, err := h.processor.ProcessQuery(c.Request.Context(), queryID, req.Query, req.Fields, req.MaxResults)
	if err != nil {
		h.logger.Error("query processing failed",
			zap.String("query_id", queryID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process query"})
		return
	}
	c.JSON(http.StatusOK, resp)
}
