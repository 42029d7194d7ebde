// Package registry manages registration and discovery of field-specific
// agents. Records live in a single hash keyed by field name with
// last-write-wins semantics and no expiry: an agent that crashes without
// unregistering stays discoverable until it is explicitly removed. A
// heartbeat or liveness probe before fan-out is a known gap here.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GiacomoBacchetta/OmniA/internal/model"
)

// Registry is the durable directory mapping fields to live agent endpoints.
type Registry struct {
	store  Store
	logger *zap.Logger
}

// New creates a registry backed by the given store.
func New(store Store, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{store: store, logger: logger}
}

// Register upserts the record for a field. Re-registration overwrites the
// previous record wholesale; capabilities are not merged.
func (r *Registry) Register(ctx context.Context, field, agentURL string, capabilities map[string]string) error {
	if capabilities == nil {
		capabilities = map[string]string{}
	}
	record := model.AgentRecord{
		Field:        field,
		AgentURL:     strings.TrimRight(agentURL, "/"),
		Capabilities: capabilities,
		RegisteredAt: time.Now().UTC(),
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode agent record: %w", err)
	}
	if err := r.store.Set(ctx, field, string(data)); err != nil {
		return fmt.Errorf("failed to store agent record: %w", err)
	}

	r.logger.Info("Registered agent",
		zap.String("field", field),
		zap.String("agent_url", record.AgentURL))
	return nil
}

// Unregister removes the record for a field. Removing an absent field is a
// no-op.
func (r *Registry) Unregister(ctx context.Context, field string) error {
	if err := r.store.Delete(ctx, field); err != nil {
		return fmt.Errorf("failed to delete agent record: %w", err)
	}
	r.logger.Info("Unregistered agent", zap.String("field", field))
	return nil
}

// Get returns the record for a field, or ErrNotFound.
func (r *Registry) Get(ctx context.Context, field string) (model.AgentRecord, error) {
	data, err := r.store.Get(ctx, field)
	if err != nil {
		return model.AgentRecord{}, err
	}
	var record model.AgentRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return model.AgentRecord{}, fmt.Errorf("failed to decode agent record for %q: %w", field, err)
	}
	return record, nil
}

// List returns all registered agents in unspecified order.
func (r *Registry) List(ctx context.Context) ([]model.AgentRecord, error) {
	all, err := r.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list agent records: %w", err)
	}
	records := make([]model.AgentRecord, 0, len(all))
	for field, data := range all {
		var record model.AgentRecord
		if err := json.Unmarshal([]byte(data), &record); err != nil {
			return nil, fmt.Errorf("failed to decode agent record for %q: %w", field, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// ResolveMany returns the subset of the requested fields that have a
// registered agent. Missing fields are skipped silently; the caller decides
// what an empty result means.
func (r *Registry) ResolveMany(ctx context.Context, fields []string) (map[string]model.AgentRecord, error) {
	agents := make(map[string]model.AgentRecord, len(fields))
	for _, field := range fields {
		record, err := r.Get(ctx, field)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				r.logger.Debug("No agent registered for field", zap.String("field", field))
				continue
			}
			return nil, err
		}
		agents[field] = record
	}
	return agents, nil
}

// Healthy reports whether the backing store is reachable.
func (r *Registry) Healthy(ctx context.Context) error {
	return r.store.Ping(ctx)
}
