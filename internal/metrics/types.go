// Package metrics collects per-agent performance data and exposes it to
// the supervisor's auto-decision engine.
package metrics

import "time"

// PerformanceTrend summarizes the direction of an agent's recent
// performance relative to its own history.
type PerformanceTrend int

const (
	TrendUnknown PerformanceTrend = iota
	TrendImproving
	TrendStable
	TrendDeclining
)

func (t PerformanceTrend) String() string {
	switch t {
	case TrendImproving:
		return "improving"
	case TrendStable:
		return "stable"
	case TrendDeclining:
		return "declining"
	default:
		return "unknown"
	}
}

// TaskPerformance tracks task-completion quality.
type TaskPerformance struct {
	SuccessRate float64
	ErrorRate   float64
	TasksRun    int
}

// ResponsePerformance tracks latency.
type ResponsePerformance struct {
	AvgLatency time.Duration
	P95Latency time.Duration
}

// ResourcePerformance tracks cost and resource consumption.
type ResourcePerformance struct {
	CPUUsage          float64
	MemoryUsagePercent float64
	CostPerRequest    float64
}

// AgentMetrics is one point-in-time snapshot of an agent's performance.
type AgentMetrics struct {
	AgentID             string
	OverallScore        float64
	Variance            float64
	Trend               PerformanceTrend
	TaskPerformance     TaskPerformance
	ResponsePerformance ResponsePerformance
	ResourcePerformance ResourcePerformance
	CollectedAt         time.Time
}
