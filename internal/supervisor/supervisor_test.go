package supervisor

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thymos-run/thymos/internal/metrics"
	"github.com/thymos-run/thymos/internal/versioning"
	"github.com/thymos-run/thymos/pkg/backend"
)

type stubAgentSupervisor struct {
	modeSet map[string]AgentMode
}

func newStubAgentSupervisor() *stubAgentSupervisor {
	return &stubAgentSupervisor{modeSet: make(map[string]AgentMode)}
}

func (s *stubAgentSupervisor) Start(context.Context, string, AgentMode, []byte) (AgentHandle, error) {
	return AgentHandle{}, nil
}

func (s *stubAgentSupervisor) Stop(context.Context, string, bool) error { return nil }

func (s *stubAgentSupervisor) GetStatus(context.Context, string) (AgentStatus, error) {
	return StatusActive, nil
}

func (s *stubAgentSupervisor) SetMode(_ context.Context, agentID string, mode AgentMode) error {
	s.modeSet[agentID] = mode
	return nil
}

func (s *stubAgentSupervisor) ListAgents(context.Context) ([]string, error) { return nil, nil }

func (s *stubAgentSupervisor) HealthCheck(context.Context, string) (HealthStatus, error) {
	return HealthHealthy, nil
}

func newTestVersioningSupervisor(t *testing.T) (*VersioningSupervisor, *stubAgentSupervisor, metrics.Collector) {
	t.Helper()
	engine, err := versioning.NewEngine(backend.NewMemoryBackend())
	require.NoError(t, err)

	base := newStubAgentSupervisor()
	collector := metrics.NewInMemoryCollector()
	s := NewVersioningSupervisor(DefaultVersioningSupervisorConfig(), base, engine, collector)
	return s, base, collector
}

func TestAutoCreateExperimentBranchRegistersActiveExperiment(t *testing.T) {
	s, _, collector := newTestVersioningSupervisor(t)
	collector.(*metrics.InMemoryCollector).RecordObservation("agent-1", metrics.AgentMetrics{
		TaskPerformance: metrics.TaskPerformance{SuccessRate: 0.5},
	})

	branch, err := s.AutoCreateExperimentBranch(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.Contains(t, branch, "experiment-agent-1-")
	assert.Equal(t, branch, s.GetActiveExperiments()["agent-1"])
}

func TestAutoCreateExperimentBranchErrorsWhenCriteriaNotMet(t *testing.T) {
	s, _, collector := newTestVersioningSupervisor(t)
	collector.(*metrics.InMemoryCollector).RecordObservation("agent-1", metrics.AgentMetrics{
		TaskPerformance: metrics.TaskPerformance{SuccessRate: 0.95},
	})

	_, err := s.AutoCreateExperimentBranch(context.Background(), "agent-1")
	require.Error(t, err)
}

func TestAutoCreateExperimentBranchErrorsOnFreshAgentWithNoMetrics(t *testing.T) {
	s, _, _ := newTestVersioningSupervisor(t)

	_, err := s.AutoCreateExperimentBranch(context.Background(), "never-seen")
	require.Error(t, err)
}

func TestAutoCreateExperimentBranchDisabledIsError(t *testing.T) {
	s, _, _ := newTestVersioningSupervisor(t)
	s.config.AutoBranchingEnabled = false

	_, err := s.AutoCreateExperimentBranch(context.Background(), "agent-1")
	require.Error(t, err)
}

func TestAutoRollbackOnFailureRemovesExperimentBranch(t *testing.T) {
	s, _, collector := newTestVersioningSupervisor(t)
	collector.(*metrics.InMemoryCollector).RecordObservation("agent-1", metrics.AgentMetrics{
		TaskPerformance: metrics.TaskPerformance{ErrorRate: 0.5},
	})

	_, err := s.AutoCreateExperimentBranch(context.Background(), "agent-1")
	require.NoError(t, err)

	require.NoError(t, s.AutoRollbackOnFailure(context.Background(), "agent-1"))
	assert.Empty(t, s.GetActiveExperiments())
}

func TestAutoRollbackOnFailureNoopWhenCriteriaNotMet(t *testing.T) {
	s, _, collector := newTestVersioningSupervisor(t)
	ic := collector.(*metrics.InMemoryCollector)
	ic.RecordObservation("agent-1", metrics.AgentMetrics{
		TaskPerformance: metrics.TaskPerformance{SuccessRate: 0.5},
	})

	branch, err := s.AutoCreateExperimentBranch(context.Background(), "agent-1")
	require.NoError(t, err)

	ic.RecordObservation("agent-1", metrics.AgentMetrics{
		TaskPerformance: metrics.TaskPerformance{SuccessRate: 0.95, ErrorRate: 0.01},
	})

	require.NoError(t, s.AutoRollbackOnFailure(context.Background(), "agent-1"))
	assert.Equal(t, branch, s.GetActiveExperiments()["agent-1"], "healthy agent's experiment is left in place")
}

func TestAutoRollbackOnFailureDisabledIsError(t *testing.T) {
	s, _, _ := newTestVersioningSupervisor(t)
	s.config.AutoRollbackEnabled = false

	err := s.AutoRollbackOnFailure(context.Background(), "agent-1")
	require.Error(t, err)
}

func TestAutoMergeOnSuccessRequiresActiveExperiment(t *testing.T) {
	s, _, _ := newTestVersioningSupervisor(t)
	_, err := s.AutoMergeOnSuccess(context.Background(), "agent-1")
	assert.Error(t, err)
}

func TestAutoMergeOnSuccessMergesAndClearsExperiment(t *testing.T) {
	s, _, collector := newTestVersioningSupervisor(t)
	collector.(*metrics.InMemoryCollector).RecordObservation("agent-1", metrics.AgentMetrics{
		TaskPerformance: metrics.TaskPerformance{SuccessRate: 0.5},
	})

	branch, err := s.AutoCreateExperimentBranch(context.Background(), "agent-1")
	require.NoError(t, err)

	engine := s.engine
	require.NoError(t, engine.StageAddition(branch, "mem1", "content", nil, nil))
	_, err = engine.Commit(branch, "experiment commit", "agent-1")
	require.NoError(t, err)

	ic := collector.(*metrics.InMemoryCollector)
	ic.RecordObservation("agent-1", metrics.AgentMetrics{OverallScore: 0.5, TaskPerformance: metrics.TaskPerformance{SuccessRate: 0.5}})
	ic.RecordObservation("agent-1", metrics.AgentMetrics{OverallScore: 0.95, TaskPerformance: metrics.TaskPerformance{SuccessRate: 0.5}})

	result, err := s.AutoMergeOnSuccess(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, s.GetActiveExperiments())

	names := engine.ListBranches()
	assert.NotContains(t, names, branch, "merged branch should be deleted")
}

func TestAutoMergeOnSuccessNoopWhenCriteriaNotMet(t *testing.T) {
	s, _, collector := newTestVersioningSupervisor(t)
	ic := collector.(*metrics.InMemoryCollector)
	ic.RecordObservation("agent-1", metrics.AgentMetrics{
		TaskPerformance: metrics.TaskPerformance{SuccessRate: 0.5},
	})

	branch, err := s.AutoCreateExperimentBranch(context.Background(), "agent-1")
	require.NoError(t, err)

	ic.RecordObservation("agent-1", metrics.AgentMetrics{OverallScore: 0.5})

	result, err := s.AutoMergeOnSuccess(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, branch, s.GetActiveExperiments()["agent-1"])
}

func TestAutoMergeOnSuccessDisabledIsError(t *testing.T) {
	s, _, _ := newTestVersioningSupervisor(t)
	s.config.AutoMergeEnabled = false

	_, err := s.AutoMergeOnSuccess(context.Background(), "agent-1")
	require.Error(t, err)
}

func TestMonitorAgentRollsBackOnLowScore(t *testing.T) {
	s, _, collector := newTestVersioningSupervisor(t)
	collector.(*metrics.InMemoryCollector).RecordObservation("agent-1", metrics.AgentMetrics{
		OverallScore:    0.1,
		TaskPerformance: metrics.TaskPerformance{ErrorRate: 0.5},
	})

	_, err := s.AutoCreateExperimentBranch(context.Background(), "agent-1")
	require.NoError(t, err)

	require.NoError(t, s.MonitorAgent(context.Background(), "agent-1"))
	assert.Empty(t, s.GetActiveExperiments())
}

func TestMonitorAgentDispatchesPauseThroughBaseSupervisor(t *testing.T) {
	s, base, _ := newTestVersioningSupervisor(t)
	require.NoError(t, s.dispatchAction(context.Background(), "agent-1", ActionPause))
	assert.Equal(t, ModeDormant, base.modeSet["agent-1"])
}

func TestMonitorAgentCollectsDisabledActionAsError(t *testing.T) {
	s, _, collector := newTestVersioningSupervisor(t)
	collector.(*metrics.InMemoryCollector).RecordObservation("agent-1", metrics.AgentMetrics{
		OverallScore:    0.1,
		TaskPerformance: metrics.TaskPerformance{ErrorRate: 0.5},
	})

	s.config.AutoRollbackEnabled = false
	err := s.MonitorAgent(context.Background(), "agent-1")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "disabled"))
}
