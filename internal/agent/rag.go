// Package agent implements the field-scoped retrieval-augmented responder:
// it answers a query from its own field's vector collection, and nothing
// else. One agent process serves exactly one field.
package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/GiacomoBacchetta/OmniA/internal/ai"
	"github.com/GiacomoBacchetta/OmniA/internal/model"
	"github.com/GiacomoBacchetta/OmniA/internal/vectorindex"
)

// Searcher is the slice of the vector index gateway the agent needs.
type Searcher interface {
	Search(ctx context.Context, field string, vector []float32, limit int, scoreThreshold float32) ([]vectorindex.ScoredPoint, error)
}

// Service answers queries for one field.
type Service struct {
	field          string
	embedder       ai.Embedder
	searcher       Searcher
	generator      ai.Generator
	maxContext     int
	scoreThreshold float32
	logger         *zap.Logger
}

// NewService wires a field agent.
func NewService(field string, embedder ai.Embedder, searcher Searcher, generator ai.Generator, maxContext int, scoreThreshold float32, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		field:          field,
		embedder:       embedder,
		searcher:       searcher,
		generator:      generator,
		maxContext:     maxContext,
		scoreThreshold: scoreThreshold,
		logger:         logger,
	}
}

// Field returns the field this agent serves.
func (s *Service) Field() string {
	return s.field
}

// Answer embeds the query, retrieves the field's most similar content, and
// asks the language model for an answer grounded in it. Zero retrieved
// sources is not an error: the agent returns a canned answer with confidence
// zero. An LLM failure degrades to an explicit error string in the answer,
// never an error return that would abort a caller's fan-out.
func (s *Service) Answer(ctx context.Context, query string, maxResults int) (model.AgentAnswer, error) {
	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return model.AgentAnswer{}, fmt.Errorf("failed to embed query: %w", err)
	}

	sources := s.search(ctx, vector, maxResults)
	if len(sources) == 0 {
		return model.AgentAnswer{
			Answer:     fmt.Sprintf("I don't have any information in the %s field to answer your question.", s.field),
			Sources:    []model.Source{},
			Confidence: 0.0,
		}, nil
	}

	answer := s.generate(ctx, query, s.buildContext(sources))
	return model.AgentAnswer{
		Answer:     answer,
		Sources:    sources,
		Confidence: confidence(sources),
	}, nil
}

func (s *Service) search(ctx context.Context, vector []float32, maxResults int) []model.Source {
	points, err := s.searcher.Search(ctx, s.field, vector, maxResults, s.scoreThreshold)
	if err != nil {
		// No collection yet, or the backend is down; either way the agent
		// answers from nothing rather than failing the request.
		s.logger.Warn("Vector search failed",
			zap.String("field", s.field),
			zap.Error(err))
		return nil
	}

	sources := make([]model.Source, 0, len(points))
	for _, p := range points {
		sources = append(sources, model.Source{
			ID:       p.ID,
			Content:  p.Payload.Content,
			Score:    p.Score,
			Metadata: p.Payload.Metadata,
		})
	}
	return sources
}

// buildContext concatenates source contents up to the context budget. When
// the budget runs out mid-source, the last fragment is truncated rather than
// dropped, but only if a meaningful amount of room remains.
func (s *Service) buildContext(sources []model.Source) string {
	var parts []string
	length := 0

	for _, source := range sources {
		content := source.Content
		if length+len(content) > s.maxContext {
			remaining := s.maxContext - length
			if remaining > 100 {
				parts = append(parts, ai.Truncate(content, remaining)+"...")
			}
			break
		}
		parts = append(parts, content)
		length += len(content)
	}
	return strings.Join(parts, "\n\n")
}

func (s *Service) generate(ctx context.Context, query, contextText string) string {
	prompt := fmt.Sprintf(`You are a helpful AI assistant with access to information from the user's %s archive.

Context from %s:
%s

User Question: %s

Based on the context above, provide a helpful and accurate answer. If the context doesn't contain enough information to fully answer the question, say so clearly.`,
		s.field, s.field, contextText, query)

	answer, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.logger.Error("LLM generation failed",
			zap.String("field", s.field),
			zap.Error(err))
		return fmt.Sprintf("Error generating answer: %s", err)
	}
	return answer
}

// confidence is the mean of the top three source scores, or of however many
// sources exist.
func confidence(sources []model.Source) float32 {
	if len(sources) == 0 {
		return 0.0
	}
	n := len(sources)
	if n > 3 {
		n = 3
	}
	var sum float32
	for _, s := range sources[:n] {
		sum += s.Score
	}
	return sum / float32(n)
}
