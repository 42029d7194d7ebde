package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the orchestrator's gin engine with all routes attached.
func NewRouter(query *QueryHandler, agents *AgentHandler, health *HealthHandler, registry *prometheus.Registry) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/", health.Root)
	router.GET("/health", health.Health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/query", query.Query)
		v1.POST("/agents/register", agents.Register)
		v1.GET("/agents", agents.List)
		v1.GET("/agents/:field", agents.Get)
		v1.DELETE("/agents/:field", agents.Unregister)
	}

	return router
}
