package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/GiacomoBacchetta/OmniA/internal/ai"
	"github.com/GiacomoBacchetta/OmniA/internal/metrics"
	"github.com/GiacomoBacchetta/OmniA/internal/model"
)

const (
	maxExcerptsPerField = 3
	maxExcerptLength    = 200
)

// FieldAnswer pairs a field with the answer its agent produced.
type FieldAnswer struct {
	Field  string
	Answer model.AgentAnswer
}

// Synthesizer merges per-field answers into a single response. It asks the
// LLM first; if generation fails it falls back to a deterministic labelled
// concatenation so a degraded model never makes the query fail.
type Synthesizer struct {
	generator ai.Generator
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewSynthesizer(generator ai.Generator, m *metrics.Metrics, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{generator: generator, metrics: m, logger: logger}
}

// Synthesize produces the final answer text. Answers must already be in the
// caller's intended order; the output preserves it in both tiers.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, answers []FieldAnswer) string {
	if len(answers) == 0 {
		return "No relevant information found."
	}

	prompt := s.buildPrompt(query, answers)
	response, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.logger.Warn("synthesis generation failed, using concatenation",
			zap.Error(err))
		if s.metrics != nil {
			s.metrics.SynthesisFallbacks.Inc()
		}
		return s.concatenate(answers)
	}
	response = strings.TrimSpace(response)
	if response == "" {
		return s.concatenate(answers)
	}
	return response
}

func (s *Synthesizer) buildPrompt(query string, answers []FieldAnswer) string {
	var sb strings.Builder
	for _, fa := range answers {
		fmt.Fprintf(&sb, "--- Information from %s ---\n", fa.Field)
		sb.WriteString(fa.Answer.Answer)
		sb.WriteString("\n")
		if len(fa.Answer.Sources) > 0 {
			sb.WriteString("Relevant excerpts:\n")
			for i, src := range fa.Answer.Sources {
				if i >= maxExcerptsPerField {
					break
				}
				excerpt := src.Content
				if len(excerpt) > maxExcerptLength {
					excerpt = ai.Truncate(excerpt, maxExcerptLength) + "..."
				}
				fmt.Fprintf(&sb, "- %s\n", excerpt)
			}
		}
		sb.WriteString("\n")
	}

	return fmt.Sprintf(`You are a helpful AI assistant. Based on the following information retrieved from various sources, provide a comprehensive and coherent answer to the user's question.

User question: %s

Retrieved information:
%s

Provide a clear, well-structured answer based on the information above. If the information is insufficient or contradictory, acknowledge this in your response.`, query, sb.String())
}

func (s *Synthesizer) concatenate(answers []FieldAnswer) string {
	parts := make([]string, 0, len(answers))
	for _, fa := range answers {
		parts = append(parts, fmt.Sprintf("From %s: %s", fa.Field, fa.Answer.Answer))
	}
	return strings.Join(parts, "\n\n")
}
