// The embedder daemon consumes queued embedding messages, generates vectors,
// writes them to the vector index, and reports terminal status back to the
// archive.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GiacomoBacchetta/OmniA/internal/ai"
	"github.com/GiacomoBacchetta/OmniA/internal/archive"
	"github.com/GiacomoBacchetta/OmniA/internal/config"
	"github.com/GiacomoBacchetta/OmniA/internal/logging"
	"github.com/GiacomoBacchetta/OmniA/internal/metrics"
	"github.com/GiacomoBacchetta/OmniA/internal/pipeline"
	"github.com/GiacomoBacchetta/OmniA/internal/queue"
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

	primary, err := ai.NewClient(cfg.AI.BaseURL, cfg.AI.Model, cfg.AI.EmbeddingModel, cfg.AI, logger)
	if err != nil {
		logger.Fatal("initializing embedding client", zap.Error(err))
	}
	var fallback ai.Embedder
	if cfg.AI.FallbackBaseURL != "" {
		fb, err := ai.NewClient(cfg.AI.FallbackBaseURL, cfg.AI.Model, cfg.AI.FallbackModel, cfg.AI, logger)
		if err != nil {
			logger.Fatal("initializing fallback embedding client", zap.Error(err))
		}
		fallback = fb
	}
	embedder := ai.NewFallbackEmbedder(primary, fallback, logger)

	promRegistry := prometheus.NewRegistry()
	m := metrics.New(promRegistry)

	processor := pipeline.New(
		embedder,
		vectorindex.NewGateway(cfg.Vector, logger),
		archive.NewClient(cfg.Archive),
		m,
		logger,
	)

	consumer, err := queue.NewConsumer(ctx, cfg.Queue, processor, logger)
	if err != nil {
		logger.Fatal("connecting to queue", zap.Error(err))
	}
	defer consumer.Close()

	// Metrics and liveness on the side; the daemon's real work is the queue.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{Addr: cfg.Server.Host + ":" + cfg.Server.Port, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	defer srv.Close()

	logger.Info("embedder consuming",
		zap.String("queue", cfg.Queue.Name),
		zap.Int("prefetch", cfg.Queue.Prefetch))
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("consumer stopped", zap.Error(err))
	}
	logger.Info("embedder stopped")
}
