package supervisor

import "context"

// AgentMode selects how a started agent process operates.
type AgentMode int

const (
	ModeActive AgentMode = iota
	ModeDormant
	ModeListening
)

func (m AgentMode) String() string {
	switch m {
	case ModeActive:
		return "active"
	case ModeListening:
		return "listening"
	default:
		return "dormant"
	}
}

// AgentStatus reports whether an agent's process is currently running.
type AgentStatus int

const (
	StatusDormant AgentStatus = iota
	StatusActive
	StatusListening
)

// HealthStatus reports the outcome of a health check against a started
// agent.
type HealthStatus int

const (
	HealthUnknown HealthStatus = iota
	HealthHealthy
	HealthUnhealthy
)

// AgentHandle identifies a running agent process.
type AgentHandle struct {
	AgentID string
	PID     int
	Port    int
}

// AgentSupervisor starts, stops, and monitors agent processes. The process
// supervisor in this package is the reference implementation; a
// VersioningSupervisor wraps one to add auto-branching/rollback/merge
// behavior on top.
type AgentSupervisor interface {
	Start(ctx context.Context, agentID string, mode AgentMode, agentContext []byte) (AgentHandle, error)
	Stop(ctx context.Context, agentID string, saveState bool) error
	GetStatus(ctx context.Context, agentID string) (AgentStatus, error)
	SetMode(ctx context.Context, agentID string, mode AgentMode) error
	ListAgents(ctx context.Context) ([]string, error)
	HealthCheck(ctx context.Context, agentID string) (HealthStatus, error)
}
