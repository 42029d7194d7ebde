// The orchestrator service answers user queries by fanning out to the
// registered field agents and synthesizing their partial answers. It also
// owns the agent registry HTTP surface.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/GiacomoBacchetta/OmniA/internal/agent"
	"github.com/GiacomoBacchetta/OmniA/internal/ai"
	"github.com/GiacomoBacchetta/OmniA/internal/config"
	"github.com/GiacomoBacchetta/OmniA/internal/handlers"
	"github.com/GiacomoBacchetta/OmniA/internal/logging"
	"github.com/GiacomoBacchetta/OmniA/internal/metrics"
	"github.com/GiacomoBacchetta/OmniA/internal/orchestrator"
	"github.com/GiacomoBacchetta/OmniA/internal/registry"
)

const serviceVersion = "1.0.0"

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := registry.NewRedisStore(cfg.Redis)
	defer store.Close()
	reg := registry.New(store, logger)

	aiClient, err := ai.NewClient(cfg.AI.BaseURL, cfg.AI.Model, cfg.AI.EmbeddingModel, cfg.AI, logger)
	if err != nil {
		logger.Fatal("initializing AI client", zap.Error(err))
	}

	promRegistry := prometheus.NewRegistry()
	m := metrics.New(promRegistry)

	processor := orchestrator.NewProcessor(
		orchestrator.NewAllRegisteredSelector(reg),
		reg,
		agent.NewClient(cfg.Agent.CallTimeout),
		orchestrator.NewSynthesizer(aiClient, m, logger),
		cfg.Query.Timeout,
		m,
		logger,
	)

	gin.SetMode(cfg.Server.Mode)
	router := handlers.NewRouter(
		handlers.NewQueryHandler(processor, cfg.Query.MaxQueryLength, cfg.Query.DefaultMaxResults, logger),
		handlers.NewAgentHandler(reg, logger),
		handlers.NewHealthHandler("orchestrator", serviceVersion, reg),
		promRegistry,
	)

	srv := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("orchestrator listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", zap.Error(err))
	}
}
