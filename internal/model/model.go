// Package model holds the wire and domain types shared across the Omnia
// services: the embedding queue message, the agent registry record, and the
// request/response shapes of the agent and orchestrator HTTP contracts.
package model

import "time"

// Embedding status values reported back to the archive service. The
// pending->processing transition is implicit in message delivery; only the
// terminal states are ever written through the callback.
const (
	EmbeddingStatusPending    = "pending"
	EmbeddingStatusProcessing = "processing"
	EmbeddingStatusCompleted  = "completed"
	EmbeddingStatusFailed     = "failed"
)

// Content types carried by archive items.
const (
	ContentTypeText      = "text"
	ContentTypeFile      = "file"
	ContentTypeInstagram = "instagram"
)

// DefaultFields are the field partitions created out of the box. Any
// lowercase token is a valid field; these are only seeds.
var DefaultFields = []string{
	"personal",
	"work",
	"inspiration",
	"learning",
	"health",
	"finance",
}

// EmbeddingMessage is the payload published to the embedding queue for every
// archived item. It is immutable once published and consumed at least once.
type EmbeddingMessage struct {
	ItemID      string            `json:"item_id"`
	Field       string            `json:"field"`
	ContentType string            `json:"content_type"`
	Content     string            `json:"content"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// AgentRecord describes a registered field agent. Records are keyed by field
// with last-write-wins semantics and no expiry.
type AgentRecord struct {
	Field        string            `json:"field"`
	AgentURL     string            `json:"agent_url"`
	Capabilities map[string]string `json:"capabilities"`
	RegisteredAt time.Time         `json:"registered_at"`
}

// Source is one retrieved piece of evidence returned by a field agent, with
// its similarity score and the payload metadata stored at ingestion time.
type Source struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Score    float32           `json:"score"`
	Metadata map[string]string `json:"metadata"`
}

// AgentQueryRequest is the body of POST /query on a field agent.
type AgentQueryRequest struct {
	Query      string `json:"query" binding:"required"`
	MaxResults int    `json:"max_results"`
}

// AgentAnswer is a field agent's response: the generated answer, the ordered
// source list backing it, and a confidence derived from source scores.
type AgentAnswer struct {
	Answer     string   `json:"answer"`
	Sources    []Source `json:"sources"`
	Confidence float32  `json:"confidence"`
}

// QueryRequest is the body of POST /api/v1/query on the orchestrator.
// A nil Fields slice means "all registered fields".
type QueryRequest struct {
	Query      string   `json:"query" binding:"required"`
	Fields     []string `json:"fields"`
	MaxResults int      `json:"max_results"`
}

// QueryResponse is the orchestrator's synthesized reply. AgentsConsulted
// lists the fields that actually returned an answer, not the requested set.
type QueryResponse struct {
	QueryID          string   `json:"query_id"`
	Query            string   `json:"query"`
	Response         string   `json:"response"`
	Sources          []Source `json:"sources"`
	AgentsConsulted  []string `json:"agents_consulted"`
	ProcessingTimeMs float64  `json:"processing_time_ms"`
}

// AgentRegistration is the body of POST /api/v1/agents/register.
type AgentRegistration struct {
	Field        string            `json:"field" binding:"required"`
	AgentURL     string            `json:"agent_url" binding:"required"`
	Capabilities map[string]string `json:"capabilities"`
}
