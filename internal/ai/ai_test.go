package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (s *stubEmbedder) EmbedText(_ context.Context, _ string) ([]float32, error) {
	s.calls++
	return s.vector, s.err
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "ab", Truncate("abcdef", 2))
	assert.Equal(t, strings.Repeat("x", 512), Truncate(strings.Repeat("x", 1000), 512))
	assert.Equal(t, "abc", Truncate("abc", 0), "zero max disables truncation")
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	// "é" is two bytes; a cut inside it must back up to the boundary.
	assert.Equal(t, "a", Truncate("aé", 2))
	assert.Equal(t, "aé", Truncate("aéb", 3))
	assert.Equal(t, "日", Truncate("日本語", 5), "three-byte runes")
	for _, cut := range []int{1, 2, 3, 4, 5, 6, 7, 8} {
		assert.True(t, utf8.ValidString(Truncate("über niño 東京", cut)))
	}
}

func TestNormalizeDim(t *testing.T) {
	v := []float32{1, 2, 3}

	assert.Equal(t, v, NormalizeDim(v, 3))
	assert.Equal(t, []float32{1, 2}, NormalizeDim(v, 2))

	padded := NormalizeDim(v, 5)
	require.Len(t, padded, 5)
	assert.Equal(t, []float32{1, 2, 3, 0, 0}, padded)

	assert.Equal(t, v, NormalizeDim(v, 0), "zero dim disables normalization")
}

func TestFallbackEmbedderUsesPrimary(t *testing.T) {
	primary := &stubEmbedder{vector: []float32{1}}
	fallback := &stubEmbedder{vector: []float32{2}}
	chain := NewFallbackEmbedder(primary, fallback, nil)

	vector, err := chain.EmbedText(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, vector)
	assert.Equal(t, 0, fallback.calls, "fallback must not be consulted on success")
}

func TestFallbackEmbedderFallsBackOnce(t *testing.T) {
	primary := &stubEmbedder{err: errors.New("backend down")}
	fallback := &stubEmbedder{vector: []float32{2}}
	chain := NewFallbackEmbedder(primary, fallback, nil)

	vector, err := chain.EmbedText(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{2}, vector)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestFallbackEmbedderBothFail(t *testing.T) {
	primary := &stubEmbedder{err: errors.New("primary down")}
	fallback := &stubEmbedder{err: errors.New("fallback down")}
	chain := NewFallbackEmbedder(primary, fallback, nil)

	_, err := chain.EmbedText(context.Background(), "hello")
	assert.ErrorContains(t, err, "fallback down")
}

func TestFallbackEmbedderWithoutFallback(t *testing.T) {
	primary := &stubEmbedder{err: errors.New("primary down")}
	chain := NewFallbackEmbedder(primary, nil, nil)

	_, err := chain.EmbedText(context.Background(), "hello")
	assert.ErrorContains(t, err, "primary down")
}
