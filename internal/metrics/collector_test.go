package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectMetricsByIDReturnsLatest(t *testing.T) {
	c := NewInMemoryCollector()
	c.RecordObservation("agent-1", AgentMetrics{OverallScore: 0.5})
	c.RecordObservation("agent-1", AgentMetrics{OverallScore: 0.6})

	metrics, err := c.CollectMetricsByID(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.Equal(t, 0.6, metrics.OverallScore)
}

func TestCollectMetricsByIDUnknownAgent(t *testing.T) {
	c := NewInMemoryCollector()
	_, err := c.CollectMetricsByID(context.Background(), "nobody")
	assert.Error(t, err)
}

func TestGetHistoryPreservesOrder(t *testing.T) {
	c := NewInMemoryCollector()
	c.RecordObservation("agent-1", AgentMetrics{OverallScore: 0.1})
	c.RecordObservation("agent-1", AgentMetrics{OverallScore: 0.2})
	c.RecordObservation("agent-1", AgentMetrics{OverallScore: 0.3})

	history, err := c.GetHistory(context.Background(), "agent-1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, 0.1, history[0].OverallScore)
	assert.Equal(t, 0.3, history[2].OverallScore)
}

func TestTrendDeclining(t *testing.T) {
	c := NewInMemoryCollector()
	for i := 0; i < 3; i++ {
		c.RecordObservation("agent-1", AgentMetrics{OverallScore: 0.8})
	}
	c.RecordObservation("agent-1", AgentMetrics{OverallScore: 0.3})

	metrics, err := c.CollectMetricsByID(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.Equal(t, TrendDeclining, metrics.Trend)
}

func TestTrendImproving(t *testing.T) {
	c := NewInMemoryCollector()
	for i := 0; i < 3; i++ {
		c.RecordObservation("agent-1", AgentMetrics{OverallScore: 0.3})
	}
	c.RecordObservation("agent-1", AgentMetrics{OverallScore: 0.9})

	metrics, err := c.CollectMetricsByID(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.Equal(t, TrendImproving, metrics.Trend)
}

func TestTrendUnknownForFirstSample(t *testing.T) {
	c := NewInMemoryCollector()
	c.RecordObservation("agent-1", AgentMetrics{OverallScore: 0.5})

	metrics, err := c.CollectMetricsByID(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.Equal(t, TrendUnknown, metrics.Trend)
}
