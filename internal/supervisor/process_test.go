package supervisor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocatePortIncrementsFromStart(t *testing.T) {
	s := NewProcessSupervisor(SupervisorConfig{PortStart: 4000})
	assert.Equal(t, 4000, s.allocatePort())
	assert.Equal(t, 4001, s.allocatePort())
	assert.Equal(t, 4002, s.allocatePort())
}

func TestWriteContextPersistsPayload(t *testing.T) {
	s := NewProcessSupervisor(SupervisorConfig{})
	path, err := s.writeContext("agent-1", []byte(`{"hello":"world"}`))
	require.NoError(t, err)
	assert.Contains(t, path, "agent-1")
}

func TestGetStatusDormantForUnknownAgent(t *testing.T) {
	s := NewProcessSupervisor(SupervisorConfig{})
	status, err := s.GetStatus(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, StatusDormant, status)
}

func TestHealthCheckUnknownForUntrackedAgent(t *testing.T) {
	s := NewProcessSupervisor(SupervisorConfig{})
	health, err := s.HealthCheck(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, HealthUnknown, health)
}

func TestStopUnknownAgentReturnsNotFound(t *testing.T) {
	s := NewProcessSupervisor(SupervisorConfig{})
	err := s.Stop(context.Background(), "nobody", false)
	assert.Error(t, err)
}

func TestListAgentsEmptyInitially(t *testing.T) {
	s := NewProcessSupervisor(SupervisorConfig{})
	agents, err := s.ListAgents(context.Background())
	require.NoError(t, err)
	assert.Empty(t, agents)
}

func TestCheckPortReadyFalseForClosedPort(t *testing.T) {
	assert.False(t, checkPortReady(1))
}

func TestDefaultSupervisorConfig(t *testing.T) {
	cfg := DefaultSupervisorConfig("/usr/local/bin/thymos-agent")
	assert.Equal(t, 3000, cfg.PortStart)
	assert.Equal(t, "/usr/local/bin/thymos-agent", cfg.AgentBinary)
}
