// Package ai is the model-inference boundary: text embedding and answer
// generation against OpenAI-compatible endpoints. Input truncation and
// embedding dimension normalization happen here and nowhere else, so every
// vector leaving this package has the configured length.
package ai

import (
	"context"
	"unicode/utf8"
)

// Embedder generates a fixed-dimension vector embedding for a text.
// Implementations must be safe for concurrent use.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Generator produces a completion for a prompt.
// Implementations must be safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Truncate cuts text to at most max bytes without splitting a multi-byte
// rune; the cut backs up to the nearest rune boundary. Zero or negative max
// leaves the text untouched.
func Truncate(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// NormalizeDim pads a vector with zeros or truncates it so its length equals
// dim. Vectors produced by different backends vary in size; collections are
// fixed-dimension, so the mismatch is resolved once, here.
func NormalizeDim(vector []float32, dim int) []float32 {
	if dim <= 0 || len(vector) == dim {
		return vector
	}
	if len(vector) > dim {
		return vector[:dim]
	}
	out := make([]float32, dim)
	copy(out, vector)
	return out
}
