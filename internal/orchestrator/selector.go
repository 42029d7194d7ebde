package orchestrator

import (
	"context"
	"sort"

	"github.com/GiacomoBacchetta/OmniA/internal/model"
)

// FieldSelector picks which fields a query should be routed to when the
// caller does not name them. It is a seam: a relevance-based selector can
// replace the placeholder without touching the orchestration logic.
type FieldSelector interface {
	SelectFields(ctx context.Context, query string) ([]string, error)
}

// agentLister is the registry slice the selector needs.
type agentLister interface {
	List(ctx context.Context) ([]model.AgentRecord, error)
}

// AllRegisteredSelector returns every registered field, sorted for a
// deterministic fan-out order. Intelligent, query-aware selection is an
// acknowledged simplification.
type AllRegisteredSelector struct {
	registry agentLister
}

// NewAllRegisteredSelector creates the placeholder selector.
func NewAllRegisteredSelector(registry agentLister) *AllRegisteredSelector {
	return &AllRegisteredSelector{registry: registry}
}

func (s *AllRegisteredSelector) SelectFields(ctx context.Context, _ string) ([]string, error) {
	records, err := s.registry.List(ctx)
	if err != nil {
		return nil, err
	}
	fields := make([]string, 0, len(records))
	for _, record := range records {
		fields = append(fields, record.Field)
	}
	sort.Strings(fields)
	return fields, nil
}
