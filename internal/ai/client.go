package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/GiacomoBacchetta/OmniA/internal/config"
)

// Client talks to one OpenAI-compatible endpoint for both embeddings and
// completions. Ollama's /v1 API is the default deployment target.
type Client struct {
	llm      *openai.LLM
	embedder embeddings.Embedder
	dim      int
	maxInput int
	logger   *zap.Logger
}

// NewClient builds a client for the given endpoint and models.
func NewClient(baseURL, model, embeddingModel string, cfg config.AIConfig, logger *zap.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("ai: base URL is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// Local OpenAI-compatible services accept any token.
	llm, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithToken("none"),
		openai.WithModel(model),
		openai.WithEmbeddingModel(embeddingModel),
	)
	if err != nil {
		return nil, fmt.Errorf("ai: failed to create client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(llm, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("ai: failed to create embedder: %w", err)
	}

	return &Client{
		llm:      llm,
		embedder: embedder,
		dim:      cfg.EmbeddingDim,
		maxInput: cfg.MaxInputLength,
		logger:   logger,
	}, nil
}

// EmbedText embeds one text, truncated to the model input limit and
// normalized to the configured dimension.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	text = Truncate(text, c.maxInput)

	vectors, err := c.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("ai: embedding failed: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, errors.New("ai: embedder returned an empty vector")
	}

	return NormalizeDim(vectors[0], c.dim), nil
}

// Generate produces a completion for the prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt)
	if err != nil {
		return "", fmt.Errorf("ai: generation failed: %w", err)
	}
	return out, nil
}
