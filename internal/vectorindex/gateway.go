// Package vectorindex is a uniform create/upsert/search/delete facade over a
// Qdrant backend. Each field owns one collection whose dimension is fixed by
// the first successful upsert; later vectors must match it exactly. The
// gateway never pads or truncates vectors; that is the embedding boundary's
// job.
package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/GiacomoBacchetta/OmniA/internal/config"
)

var (
	// ErrNotFound is returned when a field has no collection or a point is
	// absent.
	ErrNotFound = errors.New("vectorindex: not found")
	// ErrDimensionMismatch is returned when an upserted vector's length does
	// not match the collection's fixed dimension.
	ErrDimensionMismatch = errors.New("vectorindex: vector dimension mismatch")
)

// Payload is the content stored alongside each vector.
type Payload struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ScoredPoint is one search hit ordered by descending similarity.
type ScoredPoint struct {
	ID      string  `json:"id"`
	Score   float32 `json:"score"`
	Payload Payload `json:"payload"`
}

// Gateway fronts the Qdrant REST API.
type Gateway struct {
	cfg        config.VectorConfig
	httpClient *http.Client
	logger     *zap.Logger

	mu   sync.Mutex
	dims map[string]int // known collection dimensions
}

// NewGateway creates a gateway for the configured Qdrant endpoint.
func NewGateway(cfg config.VectorConfig, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		dims:       make(map[string]int),
	}
}

// HealthCheck verifies connectivity to the backend.
func (g *Gateway) HealthCheck(ctx context.Context) error {
	_, err := g.doRequest(ctx, http.MethodGet, "/collections", nil)
	if err != nil {
		return fmt.Errorf("vector backend unhealthy: %w", err)
	}
	return nil
}

// Upsert writes one point into the field's collection, creating the
// collection with the vector's length as its dimension if it does not exist.
// Collisions on id overwrite the stored point.
func (g *Gateway) Upsert(ctx context.Context, field, id string, vector []float32, payload Payload) error {
	dim, err := g.ensureCollection(ctx, field, len(vector))
	if err != nil {
		return err
	}
	if dim != len(vector) {
		return fmt.Errorf("%w: collection %q has dimension %d, vector has %d",
			ErrDimensionMismatch, field, dim, len(vector))
	}

	reqBody := map[string]any{
		"points": []map[string]any{{
			"id":      id,
			"vector":  vector,
			"payload": payload,
		}},
	}
	path := fmt.Sprintf("/collections/%s/points?wait=true", field)
	if _, err := g.doRequest(ctx, http.MethodPut, path, reqBody); err != nil {
		return fmt.Errorf("failed to upsert point %s into %q: %w", id, field, err)
	}

	g.logger.Debug("Point upserted",
		zap.String("collection", field),
		zap.String("id", id))
	return nil
}

// Search returns up to limit nearest points. A positive scoreThreshold
// filters out points scoring below it; zero disables the filter. Searching a
// field with no collection fails with ErrNotFound.
func (g *Gateway) Search(ctx context.Context, field string, vector []float32, limit int, scoreThreshold float32) ([]ScoredPoint, error) {
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if scoreThreshold > 0 {
		reqBody["score_threshold"] = scoreThreshold
	}

	path := fmt.Sprintf("/collections/%s/points/search", field)
	respBody, err := g.doRequest(ctx, http.MethodPost, path, reqBody)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("%w: collection %q", ErrNotFound, field)
		}
		return nil, fmt.Errorf("search in %q failed: %w", field, err)
	}

	var response struct {
		Result []ScoredPoint `json:"result"`
	}
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}
	return response.Result, nil
}

// Delete removes a point by id. Deleting an absent point is a no-op;
// deleting from a field with no collection fails with ErrNotFound.
func (g *Gateway) Delete(ctx context.Context, field, id string) error {
	reqBody := map[string]any{
		"points": []string{id},
	}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", field)
	if _, err := g.doRequest(ctx, http.MethodPost, path, reqBody); err != nil {
		if isStatus(err, http.StatusNotFound) {
			return fmt.Errorf("%w: collection %q", ErrNotFound, field)
		}
		return fmt.Errorf("failed to delete point %s from %q: %w", id, field, err)
	}
	return nil
}

// DropCollection removes a field's collection entirely.
func (g *Gateway) DropCollection(ctx context.Context, field string) error {
	path := fmt.Sprintf("/collections/%s", field)
	if _, err := g.doRequest(ctx, http.MethodDelete, path, nil); err != nil {
		if isStatus(err, http.StatusNotFound) {
			return fmt.Errorf("%w: collection %q", ErrNotFound, field)
		}
		return fmt.Errorf("failed to drop collection %q: %w", field, err)
	}

	g.mu.Lock()
	delete(g.dims, field)
	g.mu.Unlock()
	return nil
}

// ensureCollection returns the collection's dimension, creating it with
// createDim if it does not exist yet.
func (g *Gateway) ensureCollection(ctx context.Context, field string, createDim int) (int, error) {
	g.mu.Lock()
	if dim, ok := g.dims[field]; ok {
		g.mu.Unlock()
		return dim, nil
	}
	g.mu.Unlock()

	dim, err := g.collectionDim(ctx, field)
	if err == nil {
		g.rememberDim(field, dim)
		return dim, nil
	}
	if !isStatus(err, http.StatusNotFound) {
		return 0, fmt.Errorf("failed to inspect collection %q: %w", field, err)
	}

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     createDim,
			"distance": g.cfg.Distance,
		},
	}
	path := fmt.Sprintf("/collections/%s", field)
	if _, err := g.doRequest(ctx, http.MethodPut, path, reqBody); err != nil {
		// A concurrent upsert may have created it first; re-inspect.
		if dim, dimErr := g.collectionDim(ctx, field); dimErr == nil {
			g.rememberDim(field, dim)
			return dim, nil
		}
		return 0, fmt.Errorf("failed to create collection %q: %w", field, err)
	}

	g.logger.Info("Created vector collection",
		zap.String("collection", field),
		zap.Int("dimension", createDim))
	g.rememberDim(field, createDim)
	return createDim, nil
}

func (g *Gateway) rememberDim(field string, dim int) {
	g.mu.Lock()
	g.dims[field] = dim
	g.mu.Unlock()
}

func (g *Gateway) collectionDim(ctx context.Context, field string) (int, error) {
	path := fmt.Sprintf("/collections/%s", field)
	respBody, err := g.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, err
	}

	var response struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBody, &response); err != nil {
		return 0, fmt.Errorf("failed to parse collection info: %w", err)
	}
	return response.Result.Config.Params.Vectors.Size, nil
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.status, e.body)
}

func isStatus(err error, status int) bool {
	var se *statusError
	return errors.As(err, &se) && se.status == status
}

func (g *Gateway) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	url := g.cfg.URL + path

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.cfg.APIKey != "" {
		req.Header.Set("api-key", g.cfg.APIKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, &statusError{status: resp.StatusCode, body: string(respBody)}
	}
	return respBody, nil
}
