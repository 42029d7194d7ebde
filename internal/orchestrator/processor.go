package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GiacomoBacchetta/OmniA/internal/metrics"
	"github.com/GiacomoBacchetta/OmniA/internal/model"
)

// AgentCaller issues a query to a single field agent. Implementations own
// the per-call timeout so one slow agent cannot hold the whole fan-out.
type AgentCaller interface {
	Query(ctx context.Context, agentURL, query string, maxResults int) (model.AgentAnswer, error)
}

// Resolver is the registry slice the processor needs.
type Resolver interface {
	ResolveMany(ctx context.Context, fields []string) (map[string]model.AgentRecord, error)
}

// Processor runs a query end to end: select fields, resolve agents, fan out
// concurrently, and synthesize the partial answers into one response.
type Processor struct {
	selector     FieldSelector
	resolver     Resolver
	caller       AgentCaller
	synthesizer  *Synthesizer
	queryTimeout time.Duration
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

func NewProcessor(selector FieldSelector, resolver Resolver, caller AgentCaller, synthesizer *Synthesizer, queryTimeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		selector:     selector,
		resolver:     resolver,
		caller:       caller,
		synthesizer:  synthesizer,
		queryTimeout: queryTimeout,
		metrics:      m,
		logger:       logger,
	}
}

// ProcessQuery answers a user query. When fields is empty the selector
// decides which agents to consult. Agents that fail or time out are skipped;
// the response is built from whichever answers arrive.
func (p *Processor) ProcessQuery(ctx context.Context, queryID, query string, fields []string, maxResults int) (model.QueryResponse, error) {
	start := time.Now()

	if p.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.queryTimeout)
		defer cancel()
	}

	if len(fields) == 0 {
		selected, err := p.selector.SelectFields(ctx, query)
		if err != nil {
			return model.QueryResponse{}, err
		}
		fields = selected
	}

	agents, err := p.resolver.ResolveMany(ctx, fields)
	if err != nil {
		return model.QueryResponse{}, err
	}

	// Fixed snapshot: the requested order, filtered to resolved fields.
	// Everything downstream (fan-in, consulted list, synthesis) follows it.
	resolved := make([]string, 0, len(agents))
	for _, field := range fields {
		if _, ok := agents[field]; ok {
			resolved = append(resolved, field)
		}
	}

	if len(resolved) == 0 {
		p.logger.Warn("no agents available for query",
			zap.String("query_id", queryID),
			zap.Strings("requested_fields", fields))
		return p.respond(queryID, query, "No agents available to answer your query.", nil, []string{}, start), nil
	}

	answers := p.fanOut(ctx, queryID, query, maxResults, resolved, agents)

	consulted := make([]string, 0, len(answers))
	sources := make([]model.Source, 0)
	for _, fa := range answers {
		consulted = append(consulted, fa.Field)
		sources = append(sources, fa.Answer.Sources...)
	}

	var response string
	if len(answers) == 0 {
		response = "No agents were able to answer your query."
	} else {
		response = p.synthesizer.Synthesize(ctx, query, answers)
	}

	if p.metrics != nil {
		p.metrics.QueriesProcessed.Inc()
		p.metrics.QueryDuration.Observe(time.Since(start).Seconds())
	}
	return p.respond(queryID, query, response, sources, consulted, start), nil
}

// fanOut queries every resolved agent concurrently and returns the
// successful answers in snapshot order.
func (p *Processor) fanOut(ctx context.Context, queryID, query string, maxResults int, resolved []string, agents map[string]model.AgentRecord) []FieldAnswer {
	results := make([]*model.AgentAnswer, len(resolved))

	var g errgroup.Group
	for i, field := range resolved {
		i, field, record := i, field, agents[field]
		g.Go(func() error {
			answer, err := p.caller.Query(ctx, record.AgentURL, query, maxResults)
			if err != nil {
				// A failed agent is skipped, never fatal for the query.
				p.logger.Warn("agent query failed",
					zap.String("query_id", queryID),
					zap.String("field", field),
					zap.String("agent_url", record.AgentURL),
					zap.Error(err))
				if p.metrics != nil {
					p.metrics.AgentCallFailures.Inc()
				}
				return nil
			}
			results[i] = &answer
			return nil
		})
	}
	_ = g.Wait()

	answers := make([]FieldAnswer, 0, len(resolved))
	for i, field := range resolved {
		if results[i] != nil {
			answers = append(answers, FieldAnswer{Field: field, Answer: *results[i]})
		}
	}
	return answers
}

func (p *Processor) respond(queryID, query, response string, sources []model.Source, consulted []string, start time.Time) model.QueryResponse {
	if sources == nil {
		sources = []model.Source{}
	}
	return model.QueryResponse{
		QueryID:          queryID,
		Query:            query,
		Response:         response,
		Sources:          sources,
		AgentsConsulted:  consulted,
		ProcessingTimeMs: float64(time.Since(start).Microseconds()) / 1000.0,
	}
}
