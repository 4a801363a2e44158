package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentMonitors bounds how many agents a single tick monitors at
// once, so a large watched set doesn't spawn an unbounded goroutine burst.
const maxConcurrentMonitors = 16

// MonitorScheduler periodically runs MonitorAgent for every agent it has
// been told to watch, on a cron schedule rather than a hand-rolled ticker.
type MonitorScheduler struct {
	c          *cron.Cron
	supervisor *VersioningSupervisor

	mu      sync.Mutex
	agents  map[string]struct{}
	entryID cron.EntryID
}

// NewMonitorScheduler builds a scheduler that calls supervisor.MonitorAgent
// for each registered agent on the given cron spec (e.g. "@every 30s").
func NewMonitorScheduler(supervisor *VersioningSupervisor, spec string) (*MonitorScheduler, error) {
	s := &MonitorScheduler{
		c:          cron.New(),
		supervisor: supervisor,
		agents:     make(map[string]struct{}),
	}

	id, err := s.c.AddFunc(spec, s.tick)
	if err != nil {
		return nil, fmt.Errorf("invalid monitor schedule %q: %w", spec, err)
	}
	s.entryID = id
	return s, nil
}

// Watch adds agentID to the set of agents monitored on every tick.
func (s *MonitorScheduler) Watch(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[agentID] = struct{}{}
}

// Unwatch removes agentID from the monitored set.
func (s *MonitorScheduler) Unwatch(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.agents, agentID)
}

// Start begins the cron runner and blocks until ctx is cancelled.
func (s *MonitorScheduler) Start(ctx context.Context) {
	s.c.Start()
	slog.Info("monitor scheduler started")
	<-ctx.Done()
	s.c.Stop()
	slog.Info("monitor scheduler stopped")
}

// tick is the cron callback: it runs MonitorAgent for every watched agent
// concurrently, logging but not propagating per-agent failures so one
// broken agent does not stop the others from being monitored, and one
// slow agent does not delay the rest.
func (s *MonitorScheduler) tick() {
	s.mu.Lock()
	agents := make([]string, 0, len(s.agents))
	for id := range s.agents {
		agents = append(agents, id)
	}
	s.mu.Unlock()

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(maxConcurrentMonitors)
	for _, agentID := range agents {
		agentID := agentID
		g.Go(func() error {
			if err := s.supervisor.MonitorAgent(ctx, agentID); err != nil {
				slog.Warn("monitor agent failed", "agent_id", agentID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}
