package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMonitorSchedulerRejectsInvalidSpec(t *testing.T) {
	s, _, _ := newTestVersioningSupervisor(t)
	_, err := NewMonitorScheduler(s, "not a cron spec")
	assert.Error(t, err)
}

func TestWatchAndUnwatchTrackAgentSet(t *testing.T) {
	sup, _, _ := newTestVersioningSupervisor(t)
	s, err := NewMonitorScheduler(sup, "@every 1m")
	require.NoError(t, err)

	s.Watch("agent-1")
	s.Watch("agent-2")
	assert.Len(t, s.agents, 2)

	s.Unwatch("agent-1")
	assert.Len(t, s.agents, 1)
	_, ok := s.agents["agent-2"]
	assert.True(t, ok)
}
