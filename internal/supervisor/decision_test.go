package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thymos-run/thymos/internal/metrics"
)

func TestShouldNotRollbackOnLowErrorRate(t *testing.T) {
	c := metrics.NewInMemoryCollector()
	c.RecordObservation("agent-1", metrics.AgentMetrics{
		OverallScore:    0.9,
		TaskPerformance: metrics.TaskPerformance{SuccessRate: 0.95, ErrorRate: 0.05},
	})
	e := NewAutoDecisionEngine(c)

	should, err := e.ShouldRollback(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.False(t, should)
}

func TestShouldRollbackOnErrorRateAboveTenPercent(t *testing.T) {
	c := metrics.NewInMemoryCollector()
	c.RecordObservation("agent-1", metrics.AgentMetrics{
		OverallScore:    0.9,
		TaskPerformance: metrics.TaskPerformance{ErrorRate: 0.15},
	})
	e := NewAutoDecisionEngine(c)

	should, err := e.ShouldRollback(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.True(t, should)
}

func TestShouldRollbackOnLowSuccessRate(t *testing.T) {
	c := metrics.NewInMemoryCollector()
	c.RecordObservation("agent-1", metrics.AgentMetrics{
		TaskPerformance: metrics.TaskPerformance{SuccessRate: 0.3},
	})
	e := NewAutoDecisionEngine(c)

	should, err := e.ShouldRollback(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.True(t, should)
}

func TestShouldRollbackOnHighLatencyOrCost(t *testing.T) {
	c := metrics.NewInMemoryCollector()
	c.RecordObservation("agent-1", metrics.AgentMetrics{
		ResponsePerformance: metrics.ResponsePerformance{P95Latency: 11 * time.Second},
	})
	e := NewAutoDecisionEngine(c)

	should, err := e.ShouldRollback(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.True(t, should)
}

func TestShouldNotRollbackOnHealthyAgent(t *testing.T) {
	c := metrics.NewInMemoryCollector()
	c.RecordObservation("agent-1", metrics.AgentMetrics{
		OverallScore:    0.9,
		TaskPerformance: metrics.TaskPerformance{SuccessRate: 0.95, ErrorRate: 0.01},
	})
	e := NewAutoDecisionEngine(c)

	should, err := e.ShouldRollback(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.False(t, should)
}

func TestShouldMergeOnScoreImprovementOverBaseline(t *testing.T) {
	c := metrics.NewInMemoryCollector()
	c.RecordObservation("agent-1", metrics.AgentMetrics{
		OverallScore:    0.8,
		TaskPerformance: metrics.TaskPerformance{SuccessRate: 0.8},
	})
	c.RecordObservation("agent-1", metrics.AgentMetrics{
		OverallScore:    0.95,
		TaskPerformance: metrics.TaskPerformance{SuccessRate: 0.8},
	})
	e := NewAutoDecisionEngine(c)

	should, err := e.ShouldMerge(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.True(t, should)
}

func TestShouldNotMergeOnMarginalGainEvenWithHighScore(t *testing.T) {
	c := metrics.NewInMemoryCollector()
	c.RecordObservation("agent-1", metrics.AgentMetrics{
		OverallScore:    0.95,
		TaskPerformance: metrics.TaskPerformance{SuccessRate: 0.9},
	})
	c.RecordObservation("agent-1", metrics.AgentMetrics{
		OverallScore:    0.96,
		TaskPerformance: metrics.TaskPerformance{SuccessRate: 0.9},
	})
	e := NewAutoDecisionEngine(c)

	should, err := e.ShouldMerge(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.False(t, should)
}

func TestShouldMergeIsFalseWithLessThanTwoSamples(t *testing.T) {
	c := metrics.NewInMemoryCollector()
	c.RecordObservation("agent-1", metrics.AgentMetrics{OverallScore: 0.99})
	e := NewAutoDecisionEngine(c)

	should, err := e.ShouldMerge(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.False(t, should)
}

func TestShouldExperimentOnDecliningTrend(t *testing.T) {
	c := metrics.NewInMemoryCollector()
	for i := 0; i < 3; i++ {
		c.RecordObservation("agent-1", metrics.AgentMetrics{OverallScore: 0.9})
	}
	c.RecordObservation("agent-1", metrics.AgentMetrics{OverallScore: 0.5})
	e := NewAutoDecisionEngine(c)

	should, err := e.ShouldExperiment(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.True(t, should)
}

func TestShouldExperimentFalseOnFreshAgentWithNoMetrics(t *testing.T) {
	c := metrics.NewInMemoryCollector()
	e := NewAutoDecisionEngine(c)

	should, err := e.ShouldExperiment(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.False(t, should)
}

func TestEvaluateReturnsActionsInPriorityOrder(t *testing.T) {
	c := metrics.NewInMemoryCollector()
	c.RecordObservation("agent-1", metrics.AgentMetrics{
		OverallScore:    0.2,
		TaskPerformance: metrics.TaskPerformance{ErrorRate: 0.5},
	})
	e := NewAutoDecisionEngine(c)

	actions, err := e.Evaluate(context.Background(), "agent-1", EvalContext{})
	require.NoError(t, err)
	require.NotEmpty(t, actions)
	assert.Equal(t, ActionRollback, actions[0])
}

func TestAddRuleKeepsDescendingPriorityOrder(t *testing.T) {
	c := metrics.NewInMemoryCollector()
	e := NewAutoDecisionEngine(c)
	e.AddRule(DecisionRule{Name: "custom-high", Priority: 1000})

	rules := e.Rules()
	assert.Equal(t, "custom-high", rules[0].Name)
}

func TestEvaluateConditionExperimentTimeoutNeedsExperimentStart(t *testing.T) {
	c := metrics.NewInMemoryCollector()
	e := NewAutoDecisionEngine(c)

	rule := DecisionRule{Condition: ConditionExperimentTimeout, Threshold: 60}

	matched := e.evaluateCondition(rule, metrics.AgentMetrics{}, nil, EvalContext{})
	assert.False(t, matched, "no experiment start recorded")

	matched = e.evaluateCondition(rule, metrics.AgentMetrics{}, nil, EvalContext{ExperimentStart: time.Now().Add(-2 * time.Minute)})
	assert.True(t, matched, "two minutes exceeds a sixty second timeout")
}

func TestEvaluateConditionSuccessCriteriaMetUsesBaselineWhenPresent(t *testing.T) {
	c := metrics.NewInMemoryCollector()
	e := NewAutoDecisionEngine(c)

	rule := DecisionRule{Condition: ConditionSuccessCriteriaMet, Threshold: 0.5}
	baseline := metrics.AgentMetrics{OverallScore: 0.7}

	matched := e.evaluateCondition(rule, metrics.AgentMetrics{OverallScore: 0.6}, nil, EvalContext{Baseline: &baseline})
	assert.False(t, matched, "below baseline even though above the absolute floor")
}
