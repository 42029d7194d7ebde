package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GiacomoBacchetta/OmniA/internal/vectorindex"
)

type stubEmbedder struct {
	vector []float32
	err    error
}

func (s *stubEmbedder) EmbedText(context.Context, string) ([]float32, error) {
	return s.vector, s.err
}

type stubSearcher struct {
	points []vectorindex.ScoredPoint
	err    error
}

func (s *stubSearcher) Search(context.Context, string, []float32, int, float32) ([]vectorindex.ScoredPoint, error) {
	return s.points, s.err
}

type stubGenerator struct {
	answer string
	err    error
	prompt string
}

func (s *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.answer, s.err
}

func point(id, content string, score float32) vectorindex.ScoredPoint {
	return vectorindex.ScoredPoint{
		ID:      id,
		Score:   score,
		Payload: vectorindex.Payload{Content: content},
	}
}

func newService(searcher Searcher, generator *stubGenerator, maxContext int) *Service {
	return NewService("learning", &stubEmbedder{vector: []float32{1}}, searcher, generator, maxContext, 0.7, nil)
}

func TestAnswerWithSources(t *testing.T) {
	searcher := &stubSearcher{points: []vectorindex.ScoredPoint{
		point("x1", "gradient descent minimizes loss", 0.82),
	}}
	generator := &stubGenerator{answer: "Gradient descent is an optimizer."}
	svc := newService(searcher, generator, 2000)

	answer, err := svc.Answer(context.Background(), "explain gradient descent", 5)
	require.NoError(t, err)

	assert.Equal(t, "Gradient descent is an optimizer.", answer.Answer)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "x1", answer.Sources[0].ID)
	assert.InDelta(t, 0.82, float64(answer.Confidence), 1e-6)
	assert.Contains(t, generator.prompt, "learning archive")
	assert.Contains(t, generator.prompt, "gradient descent minimizes loss")
}

func TestAnswerNoSources(t *testing.T) {
	svc := newService(&stubSearcher{}, &stubGenerator{answer: "unused"}, 2000)

	answer, err := svc.Answer(context.Background(), "anything", 5)
	require.NoError(t, err)

	assert.Contains(t, answer.Answer, "I don't have any information in the learning field")
	assert.Empty(t, answer.Sources)
	assert.Zero(t, answer.Confidence)
}

func TestAnswerSearchFailureDegrades(t *testing.T) {
	searcher := &stubSearcher{err: errors.New("collection missing")}
	svc := newService(searcher, &stubGenerator{answer: "unused"}, 2000)

	answer, err := svc.Answer(context.Background(), "anything", 5)
	require.NoError(t, err, "a search failure is a low-confidence result, not an error")
	assert.Zero(t, answer.Confidence)
	assert.Empty(t, answer.Sources)
}

func TestAnswerLLMFailureDegrades(t *testing.T) {
	searcher := &stubSearcher{points: []vectorindex.ScoredPoint{point("a", "content", 0.9)}}
	svc := newService(searcher, &stubGenerator{err: errors.New("model overloaded")}, 2000)

	answer, err := svc.Answer(context.Background(), "q", 5)
	require.NoError(t, err, "an LLM failure must not abort the caller's fan-out")
	assert.Contains(t, answer.Answer, "Error generating answer")
	require.Len(t, answer.Sources, 1, "sources are still returned alongside the degraded answer")
}

func TestAnswerEmbeddingFailureIsAnError(t *testing.T) {
	svc := NewService("learning", &stubEmbedder{err: errors.New("backends down")},
		&stubSearcher{}, &stubGenerator{}, 2000, 0.7, nil)

	_, err := svc.Answer(context.Background(), "q", 5)
	assert.Error(t, err)
}

func TestConfidenceTopThreeMean(t *testing.T) {
	searcher := &stubSearcher{points: []vectorindex.ScoredPoint{
		point("a", "1", 0.9),
		point("b", "2", 0.8),
		point("c", "3", 0.7),
		point("d", "4", 0.1),
	}}
	svc := newService(searcher, &stubGenerator{answer: "ok"}, 2000)

	answer, err := svc.Answer(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, float64(answer.Confidence), 1e-6,
		"confidence ignores everything below the top three")
}

func TestBuildContextTruncatesLastFragment(t *testing.T) {
	long := strings.Repeat("a", 900)
	searcher := &stubSearcher{points: []vectorindex.ScoredPoint{
		point("a", long, 0.9),
		point("b", strings.Repeat("b", 900), 0.8),
	}}
	generator := &stubGenerator{answer: "ok"}
	svc := newService(searcher, generator, 1000)

	_, err := svc.Answer(context.Background(), "q", 5)
	require.NoError(t, err)

	assert.Contains(t, generator.prompt, long)
	assert.Contains(t, generator.prompt, strings.Repeat("b", 100)+"...",
		"the overflowing source is truncated, not dropped")
	assert.NotContains(t, generator.prompt, strings.Repeat("b", 101))
}

func TestBuildContextSkipsTinyRemainder(t *testing.T) {
	searcher := &stubSearcher{points: []vectorindex.ScoredPoint{
		point("a", strings.Repeat("a", 950), 0.9),
		point("b", strings.Repeat("b", 900), 0.8),
	}}
	generator := &stubGenerator{answer: "ok"}
	svc := newService(searcher, generator, 1000)

	_, err := svc.Answer(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.NotContains(t, generator.prompt, "bbb",
		"a remainder under 100 chars is not worth a fragment")
}
