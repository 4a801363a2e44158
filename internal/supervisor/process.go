package supervisor

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/thymos-run/thymos/internal/thyerrors"
)

// SupervisorConfig configures a ProcessSupervisor.
type SupervisorConfig struct {
	// AgentBinary is the executable spawned for every agent.
	AgentBinary string
	// PortStart is the first port handed out by allocatePort; each
	// subsequent Start call gets the next one.
	PortStart int
	// StartupTimeout bounds how long Start waits for a spawned agent to
	// accept connections on its assigned port.
	StartupTimeout time.Duration
	// ShutdownTimeout bounds how long Stop waits for a graceful exit
	// after SIGTERM before killing the process.
	ShutdownTimeout time.Duration
	// WorkingDir, if set, becomes the spawned process's working directory.
	WorkingDir string
}

// DefaultSupervisorConfig mirrors the defaults a hands-off deployment
// starts with.
func DefaultSupervisorConfig(agentBinary string) SupervisorConfig {
	return SupervisorConfig{
		AgentBinary:     agentBinary,
		PortStart:       3000,
		StartupTimeout:  10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// ProcessSupervisor starts and stops agents as OS subprocesses, one per
// agent ID, each listening on its own allocated port.
type ProcessSupervisor struct {
	config SupervisorConfig

	mu        sync.Mutex
	nextPort  int
	processes map[string]*exec.Cmd
	handles   map[string]AgentHandle
}

// NewProcessSupervisor builds a ProcessSupervisor over config.
func NewProcessSupervisor(config SupervisorConfig) *ProcessSupervisor {
	return &ProcessSupervisor{
		config:    config,
		nextPort:  config.PortStart,
		processes: make(map[string]*exec.Cmd),
		handles:   make(map[string]AgentHandle),
	}
}

// allocatePort hands out the next port in sequence; it does not verify the
// port is actually free, matching the teacher's own stubbed readiness
// check below.
func (s *ProcessSupervisor) allocatePort() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	port := s.nextPort
	s.nextPort++
	return port
}

// writeContext writes agentContext to a temp file so it can be passed to
// the spawned process as a file path rather than an argv blob.
func (s *ProcessSupervisor) writeContext(agentID string, agentContext []byte) (string, error) {
	dir := os.TempDir()
	path := filepath.Join(dir, fmt.Sprintf("thymos-agent-%s-context.json", agentID))
	if err := os.WriteFile(path, agentContext, 0o600); err != nil {
		return "", fmt.Errorf("write context file for %s: %w", agentID, err)
	}
	return path, nil
}

// Start spawns agentID's process and waits for it to become ready.
func (s *ProcessSupervisor) Start(ctx context.Context, agentID string, mode AgentMode, agentContext []byte) (AgentHandle, error) {
	port := s.allocatePort()

	contextFile, err := s.writeContext(agentID, agentContext)
	if err != nil {
		return AgentHandle{}, err
	}

	cmd := exec.CommandContext(ctx, s.config.AgentBinary,
		"--agent-id", agentID,
		"--port", strconv.Itoa(port),
		"--mode", mode.String(),
		"--context", contextFile,
	)
	if s.config.WorkingDir != "" {
		cmd.Dir = s.config.WorkingDir
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return AgentHandle{}, fmt.Errorf("spawn agent process for %s: %w", agentID, err)
	}
	pid := cmd.Process.Pid

	if err := s.waitForReady(ctx, port, s.config.StartupTimeout); err != nil {
		_ = cmd.Process.Kill()
		return AgentHandle{}, fmt.Errorf("agent %s did not become ready: %w", agentID, err)
	}

	handle := AgentHandle{AgentID: agentID, PID: pid, Port: port}

	s.mu.Lock()
	s.processes[agentID] = cmd
	s.handles[agentID] = handle
	s.mu.Unlock()

	return handle, nil
}

// waitForReady polls checkPortReady with exponential backoff until it
// succeeds or timeout elapses.
func (s *ProcessSupervisor) waitForReady(ctx context.Context, port int, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	policy := backoff.WithContext(b, ctx)

	return backoff.Retry(func() error {
		if checkPortReady(port) {
			return nil
		}
		return fmt.Errorf("port %d not yet accepting connections", port)
	}, policy)
}

// checkPortReady reports whether something is listening on port. This is
// a placeholder the same way the original is: a real implementation would
// hit the agent's own health endpoint rather than just dialing the port.
func checkPortReady(port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), 200*time.Millisecond)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Stop sends SIGTERM to agentID's process and waits up to the configured
// shutdown timeout, then kills it and waits for it to exit; saveState is accepted but not yet
// acted on (no state-capture hook exists to call into).
func (s *ProcessSupervisor) Stop(ctx context.Context, agentID string, saveState bool) error {
	s.mu.Lock()
	cmd, ok := s.processes[agentID]
	delete(s.processes, agentID)
	delete(s.handles, agentID)
	s.mu.Unlock()

	if !ok {
		return thyerrors.NotFound("agent process", agentID)
	}

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		_ = cmd.Process.Kill()
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-done:
	case <-time.After(s.config.ShutdownTimeout):
		_ = cmd.Process.Kill()
		<-done
	}

	return nil
}

// GetStatus reports StatusActive if agentID has a tracked process, or
// StatusDormant otherwise. A tracked entry that has already exited still
// reads as active until the caller Stops it; the teacher's own
// implementation carries the same limitation.
func (s *ProcessSupervisor) GetStatus(_ context.Context, agentID string) (AgentStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.processes[agentID]; ok {
		return StatusActive, nil
	}
	return StatusDormant, nil
}

// SetMode is not implemented: switching an already-running agent's mode
// requires IPC with the process that this supervisor does not yet have.
func (s *ProcessSupervisor) SetMode(_ context.Context, _ string, _ AgentMode) error {
	return nil
}

// ListAgents returns the agent IDs with a currently tracked process.
func (s *ProcessSupervisor) ListAgents(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.processes))
	for id := range s.processes {
		out = append(out, id)
	}
	return out, nil
}

// HealthCheck reports Healthy for any agent whose status is Active or
// Listening, Unhealthy otherwise, and Unknown for an agent with no handle
// at all.
func (s *ProcessSupervisor) HealthCheck(ctx context.Context, agentID string) (HealthStatus, error) {
	s.mu.Lock()
	_, tracked := s.handles[agentID]
	s.mu.Unlock()
	if !tracked {
		return HealthUnknown, nil
	}

	status, err := s.GetStatus(ctx, agentID)
	if err != nil {
		return HealthUnknown, err
	}
	switch status {
	case StatusActive, StatusListening:
		return HealthHealthy, nil
	default:
		return HealthUnhealthy, nil
	}
}
