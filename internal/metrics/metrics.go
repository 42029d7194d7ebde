// Package metrics exposes the Prometheus instruments for the ingestion
// pipeline and the orchestrator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the collectors so they can be injected instead of living
// as package globals.
type Metrics struct {
	MessagesPublished  prometheus.Counter
	PublishFailures    prometheus.Counter
	ItemsProcessed     *prometheus.CounterVec // label: outcome = completed|failed
	CallbackFailures   prometheus.Counter
	QueriesProcessed   prometheus.Counter
	AgentCallFailures  prometheus.Counter
	SynthesisFallbacks prometheus.Counter
	QueryDuration      prometheus.Histogram
}

// New registers the Omnia collectors on the given registerer. Pass
// prometheus.NewRegistry() in tests to avoid default-registry collisions.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		MessagesPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "omnia_embedding_messages_published_total",
			Help: "Messages successfully enqueued for embedding.",
		}),
		PublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "omnia_embedding_publish_failures_total",
			Help: "Publish attempts that failed after reconnecting; these items stay pending until re-published.",
		}),
		ItemsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "omnia_embedding_items_processed_total",
			Help: "Consumed embedding messages by terminal outcome.",
		}, []string{"outcome"}),
		CallbackFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "omnia_archive_callback_failures_total",
			Help: "Best-effort archive status callbacks that failed.",
		}),
		QueriesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "omnia_queries_processed_total",
			Help: "Queries handled by the orchestrator.",
		}),
		AgentCallFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "omnia_agent_call_failures_total",
			Help: "Field agent calls that timed out or errored during fan-out.",
		}),
		SynthesisFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "omnia_synthesis_fallbacks_total",
			Help: "Queries answered by concatenation because LLM synthesis failed.",
		}),
		QueryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "omnia_query_duration_seconds",
			Help:    "End-to-end query processing time.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
