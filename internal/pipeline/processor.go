// Package pipeline implements the embedding consumer's per-message chain:
// decode, embed, store the vector, report the terminal status back to the
// archive. The chain is idempotent end to end: re-running it for the same
// item overwrites the stored point and repeats the same callback, so
// at-least-once delivery is safe.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/GiacomoBacchetta/OmniA/internal/ai"
	"github.com/GiacomoBacchetta/OmniA/internal/metrics"
	"github.com/GiacomoBacchetta/OmniA/internal/model"
	"github.com/GiacomoBacchetta/OmniA/internal/vectorindex"
)

// VectorWriter is the slice of the vector index gateway the pipeline needs.
type VectorWriter interface {
	Upsert(ctx context.Context, field, id string, vector []float32, payload vectorindex.Payload) error
}

// StatusReporter reports terminal embedding status to the archive of record.
type StatusReporter interface {
	ReportCompleted(ctx context.Context, itemID string, vector []float32) error
	ReportFailed(ctx context.Context, itemID string) error
}

// Processor turns one queue message into a stored vector plus a status
// callback. A nil return from Process means the message reached a terminal
// state and may be acknowledged; an error return means a transient fault and
// the message must be redelivered.
type Processor struct {
	embedder ai.Embedder
	writer   VectorWriter
	reporter StatusReporter
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// New wires a processor.
func New(embedder ai.Embedder, writer VectorWriter, reporter StatusReporter, m *metrics.Metrics, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		embedder: embedder,
		writer:   writer,
		reporter: reporter,
		metrics:  m,
		logger:   logger,
	}
}

// Process runs the chain: received -> embedding-generated -> vector-stored
// -> status-reported. Permanent failures (malformed message, both embedding
// backends down, dimension mismatch) mark the item failed and terminate the
// message rather than requeueing it; a malformed item must not poison the
// queue.
func (p *Processor) Process(ctx context.Context, body []byte) error {
	var msg model.EmbeddingMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		p.logger.Error("Dropping malformed embedding message", zap.Error(err))
		p.metrics.ItemsProcessed.WithLabelValues(model.EmbeddingStatusFailed).Inc()
		return nil
	}
	if msg.ItemID == "" || msg.Field == "" {
		p.logger.Error("Dropping embedding message without item_id or field")
		p.metrics.ItemsProcessed.WithLabelValues(model.EmbeddingStatusFailed).Inc()
		return nil
	}

	p.logger.Info("Processing item",
		zap.String("item_id", msg.ItemID),
		zap.String("field", msg.Field))

	vector, err := p.embedder.EmbedText(ctx, msg.Content)
	if err != nil {
		if interrupted(ctx, err) {
			// Shutdown or deadline, not a backend refusal; the broker
			// redelivers and the chain retries cleanly from the top.
			return fmt.Errorf("embedding interrupted for item %s: %w", msg.ItemID, err)
		}
		// Both backends refused the item; terminal.
		p.logger.Error("Embedding generation failed",
			zap.String("item_id", msg.ItemID),
			zap.Error(err))
		return p.terminate(ctx, msg.ItemID)
	}

	payload := vectorindex.Payload{
		Content:  msg.Content,
		Metadata: msg.Metadata,
	}
	if err := p.writer.Upsert(ctx, msg.Field, msg.ItemID, vector, payload); err != nil {
		if interrupted(ctx, err) {
			return fmt.Errorf("vector store write interrupted for item %s: %w", msg.ItemID, err)
		}
		if errors.Is(err, vectorindex.ErrDimensionMismatch) {
			p.logger.Error("Vector dimension mismatch",
				zap.String("item_id", msg.ItemID),
				zap.String("field", msg.Field),
				zap.Error(err))
			return p.terminate(ctx, msg.ItemID)
		}
		// Backend unavailable: let the broker redeliver.
		return fmt.Errorf("vector store unavailable for item %s: %w", msg.ItemID, err)
	}

	if err := p.reporter.ReportCompleted(ctx, msg.ItemID, vector); err != nil {
		// Best-effort: the vector is stored, the archive just lags.
		p.logger.Warn("Status callback failed",
			zap.String("item_id", msg.ItemID),
			zap.Error(err))
		p.metrics.CallbackFailures.Inc()
	}

	p.metrics.ItemsProcessed.WithLabelValues(model.EmbeddingStatusCompleted).Inc()
	p.logger.Info("Item processed", zap.String("item_id", msg.ItemID))
	return nil
}

// interrupted reports whether an error came from cancellation rather than
// the backend refusing the item. Such messages must be requeued, never
// marked failed.
func interrupted(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// terminate marks the item failed (best-effort) and consumes the message.
func (p *Processor) terminate(ctx context.Context, itemID string) error {
	if err := p.reporter.ReportFailed(ctx, itemID); err != nil {
		p.logger.Warn("Failure callback failed",
			zap.String("item_id", itemID),
			zap.Error(err))
		p.metrics.CallbackFailures.Inc()
	}
	p.metrics.ItemsProcessed.WithLabelValues(model.EmbeddingStatusFailed).Inc()
	return nil
}
