package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/GiacomoBacchetta/OmniA/internal/model"
)

// Registrar announces a field agent to the orchestrator on startup and
// withdraws it on graceful shutdown. A crash skips the withdrawal; the
// registry keeps the stale record until something removes it.
type Registrar struct {
	orchestratorURL string
	httpClient      *http.Client
}

// NewRegistrar creates a registrar targeting the orchestrator's agents API.
func NewRegistrar(orchestratorURL string) *Registrar {
	return &Registrar{
		orchestratorURL: orchestratorURL,
		httpClient:      &http.Client{},
	}
}

// Register announces the agent.
func (r *Registrar) Register(ctx context.Context, field, selfURL string, capabilities map[string]string) error {
	body, err := json.Marshal(model.AgentRegistration{
		Field:        field,
		AgentURL:     selfURL,
		Capabilities: capabilities,
	})
	if err != nil {
		return fmt.Errorf("failed to encode registration: %w", err)
	}

	url := r.orchestratorURL + "/api/v1/agents/register"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create registration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("registration returned status %d", resp.StatusCode)
	}
	return nil
}

// Unregister withdraws the agent.
func (r *Registrar) Unregister(ctx context.Context, field string) error {
	url := fmt.Sprintf("%s/api/v1/agents/%s", r.orchestratorURL, field)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create unregistration request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("unregistration failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("unregistration returned status %d", resp.StatusCode)
	}
	return nil
}
