package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/thymos-run/thymos/internal/metrics"
	"github.com/thymos-run/thymos/internal/thyerrors"
	"github.com/thymos-run/thymos/internal/versioning"
)

// VersioningSupervisorConfig toggles which automatic versioning behaviors
// MonitorAgent is allowed to take.
type VersioningSupervisorConfig struct {
	AutoBranchingEnabled bool
	AutoRollbackEnabled  bool
	AutoMergeEnabled     bool
	ABTestingEnabled     bool
	DefaultMergeStrategy versioning.MergeStrategy
}

// DefaultVersioningSupervisorConfig matches a hands-off deployment: every
// automatic action is on except A/B testing, and merges prefer the
// experiment branch's content over the baseline's.
func DefaultVersioningSupervisorConfig() VersioningSupervisorConfig {
	return VersioningSupervisorConfig{
		AutoBranchingEnabled: true,
		AutoRollbackEnabled:  true,
		AutoMergeEnabled:     true,
		ABTestingEnabled:     false,
		DefaultMergeStrategy: versioning.MergeStrategy{Kind: versioning.MergeTheirs},
	}
}

// VersioningSupervisor wraps a base AgentSupervisor with automatic
// branch/rollback/merge decisions driven by an AutoDecisionEngine, turning
// observed agent metrics into versioning.Engine operations.
type VersioningSupervisor struct {
	config VersioningSupervisorConfig

	base      AgentSupervisor
	engine    *versioning.Engine
	collector metrics.Collector
	decisions *AutoDecisionEngine

	mu                sync.Mutex
	activeExperiments map[string]string                // agentID -> experiment branch name
	experimentStart   map[string]time.Time             // agentID -> when its experiment branched
	baseline          map[string]*metrics.AgentMetrics // agentID -> metrics snapshot at branch time
}

// NewVersioningSupervisor builds a VersioningSupervisor over the given
// base process supervisor, versioning engine, and metrics collector.
func NewVersioningSupervisor(config VersioningSupervisorConfig, base AgentSupervisor, engine *versioning.Engine, collector metrics.Collector) *VersioningSupervisor {
	return &VersioningSupervisor{
		config:            config,
		base:              base,
		engine:            engine,
		collector:         collector,
		decisions:         NewAutoDecisionEngine(collector),
		activeExperiments: make(map[string]string),
		experimentStart:   make(map[string]time.Time),
		baseline:          make(map[string]*metrics.AgentMetrics),
	}
}

// DecisionEngine exposes the underlying AutoDecisionEngine so callers can
// add custom rules.
func (s *VersioningSupervisor) DecisionEngine() *AutoDecisionEngine { return s.decisions }

// ParseMergeStrategyName maps config.yaml's supervisor.default_merge_strategy
// value to a versioning.MergeStrategy, defaulting to MergeTheirs for an
// empty or unrecognized name.
func ParseMergeStrategyName(name string) versioning.MergeStrategy {
	switch name {
	case "ours":
		return versioning.MergeStrategy{Kind: versioning.MergeOurs}
	case "manual":
		return versioning.MergeStrategy{Kind: versioning.MergeManual}
	case "auto_merge", "auto":
		return versioning.MergeStrategy{Kind: versioning.MergeAutoMerge}
	default:
		return versioning.MergeStrategy{Kind: versioning.MergeTheirs}
	}
}

// evalContextFor builds the EvalContext for agentID from whatever
// experiment bookkeeping is currently on file; the zero value is returned
// for an agent with no active experiment.
func (s *VersioningSupervisor) evalContextFor(agentID string) EvalContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return EvalContext{
		Baseline:        s.baseline[agentID],
		ExperimentStart: s.experimentStart[agentID],
	}
}

// AutoCreateExperimentBranch branches off main for agentID and records the
// new branch, its start time, and its baseline metrics as agentID's active
// experiment. Disabled by config, or an agent that doesn't meet the
// experiment criteria, is an error rather than a silent no-op.
func (s *VersioningSupervisor) AutoCreateExperimentBranch(ctx context.Context, agentID string) (string, error) {
	if !s.config.AutoBranchingEnabled {
		return "", thyerrors.New(thyerrors.KindInvalidArgument, "automatic experiment branching is disabled")
	}

	should, err := s.decisions.ShouldExperiment(ctx, agentID)
	if err != nil {
		return "", fmt.Errorf("evaluate experiment criteria for %s: %w", agentID, err)
	}
	if !should {
		return "", thyerrors.New(thyerrors.KindInvalidArgument, fmt.Sprintf("agent %s does not meet experiment criteria", agentID))
	}

	current, err := s.collector.CollectMetricsByID(ctx, agentID)
	if err != nil && !isNotFound(err) {
		return "", fmt.Errorf("collect baseline metrics for %s: %w", agentID, err)
	}

	branch := fmt.Sprintf("experiment-%s-%d", agentID, time.Now().Unix())
	if err := s.engine.CreateBranch(branch, s.engine.CurrentBranch(), ""); err != nil {
		return "", fmt.Errorf("create experiment branch for %s: %w", agentID, err)
	}

	baseline := current
	s.mu.Lock()
	s.activeExperiments[agentID] = branch
	s.experimentStart[agentID] = time.Now()
	s.baseline[agentID] = &baseline
	s.mu.Unlock()

	slog.Info("created experiment branch", "agent_id", agentID, "branch", branch)
	return branch, nil
}

// AutoRollbackOnFailure discards agentID's active experiment branch if its
// metrics warrant it. Disabled by config is an error; no active experiment,
// or metrics that don't warrant rollback, is a no-op success.
func (s *VersioningSupervisor) AutoRollbackOnFailure(ctx context.Context, agentID string) error {
	if !s.config.AutoRollbackEnabled {
		return thyerrors.New(thyerrors.KindInvalidArgument, "automatic rollback is disabled")
	}

	should, err := s.decisions.ShouldRollback(ctx, agentID)
	if err != nil {
		return fmt.Errorf("evaluate rollback criteria for %s: %w", agentID, err)
	}
	if !should {
		return nil
	}

	s.mu.Lock()
	branch, ok := s.activeExperiments[agentID]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	if s.engine.CurrentBranch() == branch {
		if _, err := s.engine.CheckoutBranch(versioning.DefaultBranch); err != nil {
			return fmt.Errorf("checkout main before rollback for %s: %w", agentID, err)
		}
	}
	if err := s.engine.DeleteBranch(branch, true); err != nil {
		return fmt.Errorf("roll back experiment branch %s for %s: %w", branch, agentID, err)
	}

	s.clearExperiment(agentID)
	slog.Warn("rolled back experiment branch", "agent_id", agentID, "branch", branch)
	return nil
}

// AutoMergeOnSuccess merges agentID's active experiment branch into main
// using the supervisor's default merge strategy, deleting the experiment
// branch on a clean merge. Disabled by config is an error; metrics that
// don't meet the merge criteria is a no-op.
func (s *VersioningSupervisor) AutoMergeOnSuccess(ctx context.Context, agentID string) (versioning.MergeResult, error) {
	if !s.config.AutoMergeEnabled {
		return versioning.MergeResult{}, thyerrors.New(thyerrors.KindInvalidArgument, "automatic merge is disabled")
	}

	s.mu.Lock()
	branch, ok := s.activeExperiments[agentID]
	s.mu.Unlock()
	if !ok {
		return versioning.MergeResult{}, thyerrors.NotFound("active experiment", agentID)
	}

	should, err := s.decisions.ShouldMerge(ctx, agentID)
	if err != nil {
		return versioning.MergeResult{}, fmt.Errorf("evaluate merge criteria for %s: %w", agentID, err)
	}
	if !should {
		return versioning.MergeResult{}, nil
	}

	result, err := s.engine.Merge(branch, versioning.DefaultBranch, s.config.DefaultMergeStrategy)
	if err != nil {
		return versioning.MergeResult{}, fmt.Errorf("merge experiment branch %s for %s: %w", branch, agentID, err)
	}
	if !result.Success {
		return result, nil
	}

	if err := s.engine.DeleteBranch(branch, true); err != nil {
		return result, fmt.Errorf("delete merged branch %s for %s: %w", branch, agentID, err)
	}

	s.clearExperiment(agentID)
	slog.Info("merged experiment branch", "agent_id", agentID, "branch", branch, "commit", result.Commit)
	return result, nil
}

func (s *VersioningSupervisor) clearExperiment(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.activeExperiments, agentID)
	delete(s.experimentStart, agentID)
	delete(s.baseline, agentID)
}

// MonitorAgent evaluates agentID's current metrics against the decision
// engine and dispatches the resulting actions. One action failing does not
// stop the rest from being attempted; every failure is collected and
// returned together.
func (s *VersioningSupervisor) MonitorAgent(ctx context.Context, agentID string) error {
	actions, err := s.decisions.Evaluate(ctx, agentID, s.evalContextFor(agentID))
	if err != nil {
		return fmt.Errorf("evaluate decisions for %s: %w", agentID, err)
	}

	var errs error
	for _, action := range actions {
		if actionErr := s.dispatchAction(ctx, agentID, action); actionErr != nil {
			errs = multierr.Append(errs, actionErr)
		}
	}
	return errs
}

// dispatchAction routes a fired rule's action to the matching operation.
// Enablement and should-I-actually-do-this gating lives in the Auto*
// methods themselves, not here: a disabled or criteria-unmet action
// surfaces as that method's own error or no-op.
func (s *VersioningSupervisor) dispatchAction(ctx context.Context, agentID string, action DecisionAction) error {
	switch action {
	case ActionCreateExperiment:
		_, err := s.AutoCreateExperimentBranch(ctx, agentID)
		return err
	case ActionRollback:
		return s.AutoRollbackOnFailure(ctx, agentID)
	case ActionMerge:
		_, err := s.AutoMergeOnSuccess(ctx, agentID)
		return err
	case ActionAlert:
		slog.Warn("agent metrics crossed an alert threshold", "agent_id", agentID)
		return nil
	case ActionPause:
		return s.base.SetMode(ctx, agentID, ModeDormant)
	default:
		return nil
	}
}

// GetActiveExperiments returns a snapshot of agentID -> experiment branch
// for every agent currently running an experiment.
func (s *VersioningSupervisor) GetActiveExperiments() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.activeExperiments))
	for k, v := range s.activeExperiments {
		out[k] = v
	}
	return out
}
