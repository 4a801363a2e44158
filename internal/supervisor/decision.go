// Package supervisor evaluates agent performance metrics against a set of
// heuristic rules and turns the result into versioning actions: branching
// an experiment, rolling back a regression, or merging a proven one in.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/thymos-run/thymos/internal/metrics"
	"github.com/thymos-run/thymos/internal/thyerrors"
)

// DecisionCondition is one predicate from the decision engine's closed
// condition set, evaluated against an agent's current metrics (and, for
// comparative conditions, its prior samples or an injected EvalContext).
type DecisionCondition int

const (
	ConditionPerformanceDrop DecisionCondition = iota
	ConditionPerformanceDeclining
	ConditionErrorRateExceeded
	ConditionSuccessRateBelow
	ConditionLatencyExceeded
	ConditionCostExceeded
	ConditionResourceUsageExceeded
	ConditionSuccessCriteriaMet
	ConditionFailureCriteriaMet
	ConditionExperimentTimeout
)

// DecisionAction is what a satisfied rule tells the supervisor to do.
type DecisionAction int

const (
	ActionCreateExperiment DecisionAction = iota
	ActionRollback
	ActionMerge
	ActionPause
	ActionAlert
	ActionNone
)

// DecisionRule pairs a condition with the action to take when it fires.
// Threshold is the condition's primary comparison value; Threshold2 holds
// the second bound for two-threshold conditions (ResourceUsageExceeded's
// memory bound, FailureCriteriaMet's success-rate bound). Priority breaks
// ties when more than one rule matches (higher runs first).
type DecisionRule struct {
	Name       string
	Condition  DecisionCondition
	Threshold  float64
	Threshold2 float64
	Action     DecisionAction
	Priority   int
}

// EvalContext carries supervisor-owned side inputs that a condition can't
// derive from AgentMetrics alone: the baseline an active experiment is
// being measured against, and when that experiment started. The decision
// engine itself tracks neither; the supervisor injects them per call.
type EvalContext struct {
	Baseline        *metrics.AgentMetrics
	ExperimentStart time.Time
}

// AutoDecisionEngine evaluates an agent's metrics against its configured
// rules and reports which actions should fire.
type AutoDecisionEngine struct {
	rules     []DecisionRule
	collector metrics.Collector
}

// NewAutoDecisionEngine builds an engine with the default rule set over
// collector.
func NewAutoDecisionEngine(collector metrics.Collector) *AutoDecisionEngine {
	e := &AutoDecisionEngine{collector: collector}
	for _, r := range defaultRules() {
		e.AddRule(r)
	}
	return e
}

// defaultRules mirrors the heuristics a hands-off supervisor starts with,
// exercising every condition in the closed set at least once except
// ConditionSuccessRateBelow, which no default rule uses.
func defaultRules() []DecisionRule {
	return []DecisionRule{
		{Name: "rollback-on-regression", Condition: ConditionPerformanceDrop, Threshold: 0.4, Action: ActionRollback, Priority: 100},
		{Name: "rollback-on-failure-criteria", Condition: ConditionFailureCriteriaMet, Threshold: 0.10, Threshold2: 0.50, Action: ActionRollback, Priority: 95},
		{Name: "rollback-on-errors", Condition: ConditionErrorRateExceeded, Threshold: 0.10, Action: ActionRollback, Priority: 90},
		{Name: "rollback-on-latency", Condition: ConditionLatencyExceeded, Threshold: 10, Action: ActionRollback, Priority: 88},
		{Name: "merge-on-success", Condition: ConditionSuccessCriteriaMet, Threshold: 0.85, Action: ActionMerge, Priority: 50},
		{Name: "experiment-on-decline", Condition: ConditionPerformanceDeclining, Action: ActionCreateExperiment, Priority: 30},
		{Name: "alert-on-cost", Condition: ConditionCostExceeded, Threshold: 0.20, Action: ActionAlert, Priority: 10},
		{Name: "alert-on-resource-usage", Condition: ConditionResourceUsageExceeded, Threshold: 0.90, Threshold2: 0.90, Action: ActionAlert, Priority: 8},
		{Name: "alert-on-experiment-timeout", Condition: ConditionExperimentTimeout, Threshold: 3600, Action: ActionAlert, Priority: 5},
	}
}

// AddRule inserts rule, keeping rules sorted by descending priority.
func (e *AutoDecisionEngine) AddRule(rule DecisionRule) {
	e.rules = append(e.rules, rule)
	sort.SliceStable(e.rules, func(i, j int) bool {
		return e.rules[i].Priority > e.rules[j].Priority
	})
}

// Rules returns the engine's current rule set, highest priority first.
func (e *AutoDecisionEngine) Rules() []DecisionRule {
	out := make([]DecisionRule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Evaluate runs every rule against agentID's latest metrics and returns the
// actions of every rule whose condition matched, in priority order.
// evalCtx supplies the side inputs ConditionExperimentTimeout and
// ConditionSuccessCriteriaMet need beyond AgentMetrics; pass the zero value
// when agentID has no active experiment.
func (e *AutoDecisionEngine) Evaluate(ctx context.Context, agentID string, evalCtx EvalContext) ([]DecisionAction, error) {
	current, err := e.collector.CollectMetricsByID(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("collect metrics for %s: %w", agentID, err)
	}
	history, err := e.collector.GetHistory(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("collect history for %s: %w", agentID, err)
	}

	var actions []DecisionAction
	for _, rule := range e.rules {
		if e.evaluateCondition(rule, current, history, evalCtx) {
			actions = append(actions, rule.Action)
		}
	}
	return actions, nil
}

// ShouldExperiment reports whether agentID's current metrics warrant
// branching an experiment. A fresh agent with no recorded metrics does not.
func (e *AutoDecisionEngine) ShouldExperiment(ctx context.Context, agentID string) (bool, error) {
	current, err := e.collector.CollectMetricsByID(ctx, agentID)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("collect metrics for %s: %w", agentID, err)
	}

	if current.Trend == metrics.TrendDeclining {
		return true, nil
	}
	if current.Trend == metrics.TrendStable && current.Variance < 0.05 {
		return true, nil
	}
	if current.TaskPerformance.SuccessRate < 0.85 {
		return true, nil
	}
	if current.ResponsePerformance.P95Latency > 5*time.Second {
		return true, nil
	}
	if current.ResourcePerformance.CostPerRequest > 0.10 {
		return true, nil
	}
	return false, nil
}

// ShouldRollback reports whether agentID has regressed badly enough to
// revert its active experiment: an error rate, latency, cost, or success
// rate past the rollback thresholds.
func (e *AutoDecisionEngine) ShouldRollback(ctx context.Context, agentID string) (bool, error) {
	current, err := e.collector.CollectMetricsByID(ctx, agentID)
	if err != nil {
		return false, fmt.Errorf("collect metrics for %s: %w", agentID, err)
	}

	return current.TaskPerformance.ErrorRate > 0.10 ||
		current.TaskPerformance.SuccessRate < 0.50 ||
		current.ResponsePerformance.P95Latency > 10*time.Second ||
		current.ResourcePerformance.CostPerRequest > 0.20, nil
}

// ShouldMerge reports whether agentID's current metrics improve on its prior
// (baseline) sample: overall score above 1.10x, success rate above 1.05x,
// or average latency or cost per request below 0.90x the baseline. No
// absolute floor is checked.
// With fewer than two historical samples there's nothing to compare
// against, so the experiment is never merged sight unseen.
func (e *AutoDecisionEngine) ShouldMerge(ctx context.Context, agentID string) (bool, error) {
	history, err := e.collector.GetHistory(ctx, agentID)
	if err != nil {
		return false, fmt.Errorf("collect history for %s: %w", agentID, err)
	}
	if len(history) < 2 {
		return false, nil
	}

	current := history[len(history)-1]
	baseline := history[len(history)-2]

	scoreImproved := baseline.OverallScore > 0 && current.OverallScore > 1.10*baseline.OverallScore
	successImproved := baseline.TaskPerformance.SuccessRate > 0 &&
		current.TaskPerformance.SuccessRate > 1.05*baseline.TaskPerformance.SuccessRate
	latencyImproved := baseline.ResponsePerformance.AvgLatency > 0 &&
		current.ResponsePerformance.AvgLatency < time.Duration(0.90*float64(baseline.ResponsePerformance.AvgLatency))
	costImproved := baseline.ResourcePerformance.CostPerRequest > 0 &&
		current.ResourcePerformance.CostPerRequest < 0.90*baseline.ResourcePerformance.CostPerRequest

	return scoreImproved || successImproved || latencyImproved || costImproved, nil
}

// evaluateCondition checks a single rule's condition against current and,
// for comparative conditions, the sample immediately before it in history
// or the supervisor-supplied evalCtx.
func (e *AutoDecisionEngine) evaluateCondition(rule DecisionRule, current metrics.AgentMetrics, history []metrics.AgentMetrics, evalCtx EvalContext) bool {
	switch rule.Condition {
	case ConditionPerformanceDrop:
		return current.OverallScore < rule.Threshold
	case ConditionPerformanceDeclining:
		return current.Trend == metrics.TrendDeclining
	case ConditionErrorRateExceeded:
		return current.TaskPerformance.ErrorRate > rule.Threshold
	case ConditionSuccessRateBelow:
		return current.TaskPerformance.SuccessRate < rule.Threshold
	case ConditionLatencyExceeded:
		return current.ResponsePerformance.P95Latency.Seconds() > rule.Threshold
	case ConditionCostExceeded:
		return current.ResourcePerformance.CostPerRequest > rule.Threshold
	case ConditionResourceUsageExceeded:
		return current.ResourcePerformance.CPUUsage > rule.Threshold || current.ResourcePerformance.MemoryUsagePercent > rule.Threshold2
	case ConditionSuccessCriteriaMet:
		if evalCtx.Baseline != nil {
			return current.OverallScore >= evalCtx.Baseline.OverallScore && current.OverallScore >= rule.Threshold
		}
		return current.OverallScore >= rule.Threshold
	case ConditionFailureCriteriaMet:
		return current.TaskPerformance.ErrorRate > rule.Threshold || current.TaskPerformance.SuccessRate < rule.Threshold2
	case ConditionExperimentTimeout:
		if evalCtx.ExperimentStart.IsZero() {
			return false
		}
		return time.Since(evalCtx.ExperimentStart).Seconds() > rule.Threshold
	default:
		return false
	}
}

// isNotFound reports whether err is a thyerrors.Error of kind NotFound.
func isNotFound(err error) bool {
	var te *thyerrors.Error
	return errors.As(err, &te) && te.Kind() == thyerrors.KindNotFound
}
