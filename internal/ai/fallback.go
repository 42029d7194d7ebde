package ai

import (
	"context"

	"go.uber.org/zap"
)

// FallbackEmbedder tries a primary backend and, on error, exactly one
// fallback. Both backends share the package's truncation and dimension
// normalization, so the caller sees identical vector shapes either way.
type FallbackEmbedder struct {
	primary  Embedder
	fallback Embedder
	logger   *zap.Logger
}

// NewFallbackEmbedder wires the chain. fallback may be nil, in which case
// primary errors are returned as-is.
func NewFallbackEmbedder(primary, fallback Embedder, logger *zap.Logger) *FallbackEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackEmbedder{primary: primary, fallback: fallback, logger: logger}
}

func (f *FallbackEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vector, err := f.primary.EmbedText(ctx, text)
	if err == nil {
		return vector, nil
	}
	if f.fallback == nil {
		return nil, err
	}

	f.logger.Warn("Primary embedding backend failed, trying fallback", zap.Error(err))
	vector, fbErr := f.fallback.EmbedText(ctx, text)
	if fbErr != nil {
		f.logger.Error("Fallback embedding backend also failed", zap.Error(fbErr))
		return nil, fbErr
	}
	return vector, nil
}
