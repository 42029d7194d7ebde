package agent

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GiacomoBacchetta/OmniA/internal/model"
)

// Server exposes the field agent's HTTP contract.
type Server struct {
	svc        *Service
	maxResults int
	logger     *zap.Logger
}

// NewServer creates the HTTP layer over a field agent service. maxResults is
// the default when a request leaves max_results unset.
func NewServer(svc *Service, maxResults int, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{svc: svc, maxResults: maxResults, logger: logger}
}

// Routes registers the agent endpoints.
func (s *Server) Routes(r *gin.Engine) {
	r.GET("/", s.info)
	r.GET("/health", s.health)
	r.POST("/query", s.query)
}

func (s *Server) info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": s.svc.Field() + "-agent",
		"field":   s.svc.Field(),
		"status":  "running",
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) query(c *gin.Context) {
	var req model.AgentQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.MaxResults <= 0 {
		req.MaxResults = s.maxResults
	}

	answer, err := s.svc.Answer(c.Request.Context(), req.Query, req.MaxResults)
	if err != nil {
		s.logger.Error("Query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, answer)
}
