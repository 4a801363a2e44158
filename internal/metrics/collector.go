package metrics

import (
	"context"
	"sync"

	"github.com/thymos-run/thymos/internal/thyerrors"
)

// trendWindow is how many recent samples the in-memory collector looks at
// when deriving a PerformanceTrend.
const trendWindow = 5

// Collector is implemented by anything that can report an agent's current
// metrics and its history; a concrete external collector (Prometheus,
// Datadog, etc.) is a Non-goal, so only the in-memory reference
// implementation below ships in this package.
type Collector interface {
	CollectMetricsByID(ctx context.Context, agentID string) (AgentMetrics, error)
	GetHistory(ctx context.Context, agentID string) ([]AgentMetrics, error)
}

// InMemoryCollector stores every recorded sample per agent and derives the
// latest AgentMetrics' trend from the most recent window of samples.
type InMemoryCollector struct {
	mu      sync.RWMutex
	history map[string][]AgentMetrics
}

// NewInMemoryCollector builds an empty collector.
func NewInMemoryCollector() *InMemoryCollector {
	return &InMemoryCollector{history: make(map[string][]AgentMetrics)}
}

// RecordObservation appends sample to agentID's history; its Trend field
// is recomputed from the trailing window before being stored, overriding
// whatever the caller set.
func (c *InMemoryCollector) RecordObservation(agentID string, sample AgentMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sample.AgentID = agentID
	history := c.history[agentID]
	sample.Trend = deriveTrend(history, sample)
	c.history[agentID] = append(history, sample)
}

// CollectMetricsByID returns the most recent sample recorded for agentID.
func (c *InMemoryCollector) CollectMetricsByID(_ context.Context, agentID string) (AgentMetrics, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	history := c.history[agentID]
	if len(history) == 0 {
		return AgentMetrics{}, thyerrors.NotFound("agent metrics", agentID)
	}
	return history[len(history)-1], nil
}

// GetHistory returns every sample recorded for agentID, oldest first.
func (c *InMemoryCollector) GetHistory(_ context.Context, agentID string) ([]AgentMetrics, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	history := c.history[agentID]
	out := make([]AgentMetrics, len(history))
	copy(out, history)
	return out, nil
}

// deriveTrend compares the incoming sample's overall score against the
// average of the trailing window: a modest swing is Stable, a clear
// improvement or decline reports accordingly.
func deriveTrend(history []AgentMetrics, incoming AgentMetrics) PerformanceTrend {
	if len(history) == 0 {
		return TrendUnknown
	}

	window := history
	if len(window) > trendWindow {
		window = window[len(window)-trendWindow:]
	}

	var sum float64
	for _, m := range window {
		sum += m.OverallScore
	}
	avg := sum / float64(len(window))

	const epsilon = 0.02
	switch {
	case incoming.OverallScore > avg+epsilon:
		return TrendImproving
	case incoming.OverallScore < avg-epsilon:
		return TrendDeclining
	default:
		return TrendStable
	}
}
