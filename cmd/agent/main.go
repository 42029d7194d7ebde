// A field agent serves retrieval-augmented answers for exactly one field of
// the personal archive. It registers itself with the orchestrator on startup
// and unregisters on shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GiacomoBacchetta/OmniA/internal/agent"
	"github.com/GiacomoBacchetta/OmniA/internal/ai"
	"github.com/GiacomoBacchetta/OmniA/internal/config"
	"github.com/GiacomoBacchetta/OmniA/internal/logging"
	"github.com/GiacomoBacchetta/OmniA/internal/vectorindex"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aiClient, err := ai.NewClient(cfg.AI.BaseURL, cfg.AI.Model, cfg.AI.EmbeddingModel, cfg.AI, logger)
	if err != nil {
		logger.Fatal("initializing AI client", zap.Error(err))
	}

	svc := agent.NewService(
		cfg.Agent.Field,
		aiClient,
		vectorindex.NewGateway(cfg.Vector, logger),
		aiClient,
		cfg.Agent.MaxContextLength,
		cfg.Vector.ScoreThreshold,
		logger,
	)

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	agent.NewServer(svc, cfg.Agent.MaxResults, logger).Routes(router)

	srv := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("field agent listening",
			zap.String("field", cfg.Agent.Field),
			zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	selfURL := cfg.Agent.SelfURL
	if selfURL == "" {
		selfURL = fmt.Sprintf("http://%s-agent:%s", cfg.Agent.Field, cfg.Server.Port)
	}
	registrar := agent.NewRegistrar(cfg.Agent.OrchestratorURL)
	capabilities := map[string]string{"field": cfg.Agent.Field, "type": "rag"}
	if err := registrar.Register(ctx, cfg.Agent.Field, selfURL, capabilities); err != nil {
		// The agent still serves; the orchestrator just cannot route to it
		// until a later registration succeeds.
		logger.Error("self-registration failed", zap.Error(err))
	} else {
		logger.Info("registered with orchestrator",
			zap.String("orchestrator", cfg.Agent.OrchestratorURL),
			zap.String("agent_url", selfURL))
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := registrar.Unregister(shutdownCtx, cfg.Agent.Field); err != nil {
		logger.Warn("unregistration failed", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", zap.Error(err))
	}
}
