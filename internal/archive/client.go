// Package archive is the client side of the archive collaborator's status
// callback: once an item's embedding reaches a terminal state, the consumer
// reports it back so the archive record reflects reality. The callback is
// best-effort; a failure is logged by the caller and never re-opens the
// queue message.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/GiacomoBacchetta/OmniA/internal/config"
	"github.com/GiacomoBacchetta/OmniA/internal/model"
)

// StatusUpdate is the callback body. The vector and timestamp are present
// only on success.
type StatusUpdate struct {
	EmbeddingStatus    string     `json:"embedding_status"`
	EmbeddingCreatedAt *time.Time `json:"embedding_created_at,omitempty"`
	EmbeddingVector    []float32  `json:"embedding_vector,omitempty"`
}

// Client reports embedding status to the archive service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a callback client for the configured archive service.
func NewClient(cfg config.ArchiveConfig) *Client {
	return &Client{
		baseURL:    cfg.URL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// ReportCompleted marks an item completed and attaches its vector. Repeating
// the call with the same payload is safe: the archive stores the same
// terminal state both times.
func (c *Client) ReportCompleted(ctx context.Context, itemID string, vector []float32) error {
	now := time.Now().UTC()
	return c.patch(ctx, itemID, StatusUpdate{
		EmbeddingStatus:    model.EmbeddingStatusCompleted,
		EmbeddingCreatedAt: &now,
		EmbeddingVector:    vector,
	})
}

// ReportFailed marks an item as permanently failed.
func (c *Client) ReportFailed(ctx context.Context, itemID string) error {
	return c.patch(ctx, itemID, StatusUpdate{
		EmbeddingStatus: model.EmbeddingStatusFailed,
	})
}

func (c *Client) patch(ctx context.Context, itemID string, update StatusUpdate) error {
	body, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to encode status update: %w", err)
	}

	url := fmt.Sprintf("%s/archive/%s/embedding-status", c.baseURL, itemID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("status callback failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status callback returned %d for item %s", resp.StatusCode, itemID)
	}
	return nil
}
