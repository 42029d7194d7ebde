package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/GiacomoBacchetta/OmniA/internal/model"
)

// Client is the orchestrator-side HTTP client for field agents. Every call
// carries its own timeout, independent of sibling calls in a fan-out.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient creates an agent client with the given per-call timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{},
		timeout:    timeout,
	}
}

// Query calls POST {agentURL}/query and returns the agent's answer.
func (c *Client) Query(ctx context.Context, agentURL, query string, maxResults int) (model.AgentAnswer, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(model.AgentQueryRequest{
		Query:      query,
		MaxResults: maxResults,
	})
	if err != nil {
		return model.AgentAnswer{}, fmt.Errorf("failed to encode agent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, agentURL+"/query", bytes.NewReader(body))
	if err != nil {
		return model.AgentAnswer{}, fmt.Errorf("failed to create agent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.AgentAnswer{}, fmt.Errorf("agent call failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return model.AgentAnswer{}, fmt.Errorf("agent returned status %d", resp.StatusCode)
	}

	var answer model.AgentAnswer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return model.AgentAnswer{}, fmt.Errorf("failed to decode agent response: %w", err)
	}
	return answer, nil
}
