package commands

import (
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thymos-run/thymos/internal/app"
	"github.com/thymos-run/thymos/internal/metrics"
	"github.com/thymos-run/thymos/internal/output"
	"github.com/thymos-run/thymos/internal/supervisor"
)

// NewSupervisorCmd creates the supervisor command.
//
// ProcessSupervisor tracks live OS subprocesses and InMemoryCollector holds
// metrics in memory, so unlike the rest of the CLI's request/response
// commands, `run` is a long-running foreground process: it owns the agent
// handles and the monitor scheduler's cron loop for as long as it's alive.
func NewSupervisorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "supervisor",
		Short: "Run the monitor scheduler that drives automatic branching, rollback, and merge",
	}

	cmd.AddCommand(newSupervisorRunCmd())

	return cmd
}

func newSupervisorRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the monitor scheduler in the foreground until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			watchList, _ := cmd.Flags().GetString("watch")
			agentBinary, _ := cmd.Flags().GetString("agent-binary")
			schedule, _ := cmd.Flags().GetString("schedule")

			settings := app.EffectiveSupervisorSettings()
			if agentBinary == "" {
				agentBinary = settings.AgentBinary
			}
			if schedule == "" {
				schedule = settings.MonitorSchedule
			}

			engine, closeEngine, err := openEngine()
			if err != nil {
				return cmdErr(err)
			}
			defer closeEngine()

			base := supervisor.NewProcessSupervisor(supervisor.DefaultSupervisorConfig(agentBinary))
			collector := metrics.NewInMemoryCollector()
			vs := supervisor.NewVersioningSupervisor(effectiveVersioningSupervisorConfig(), base, engine, collector)

			scheduler, err := supervisor.NewMonitorScheduler(vs, schedule)
			if err != nil {
				return cmdErr(err)
			}

			for _, agentID := range splitWatchList(watchList) {
				scheduler.Watch(agentID)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			_ = output.PrintSuccess(struct {
				Watching []string `json:"watching"`
				Schedule string   `json:"schedule"`
			}{Watching: splitWatchList(watchList), Schedule: schedule})

			scheduler.Start(ctx)
			return nil
		},
	}

	cmd.Flags().String("watch", "", "Comma-separated agent ids to monitor")
	cmd.Flags().String("agent-binary", "", "Executable spawned for agents (default: config.yaml agent_binary)")
	cmd.Flags().String("schedule", "", "Cron schedule for monitor ticks (default: config.yaml monitor_schedule)")

	return cmd
}

// effectiveVersioningSupervisorConfig layers config.yaml's supervisor.*
// gates over DefaultVersioningSupervisorConfig.
func effectiveVersioningSupervisorConfig() supervisor.VersioningSupervisorConfig {
	cfg := supervisor.DefaultVersioningSupervisorConfig()
	branching, rollback, merge, strategyName := app.EffectiveVersioningSupervisorGates(
		cfg.AutoBranchingEnabled, cfg.AutoRollbackEnabled, cfg.AutoMergeEnabled, "theirs",
	)
	cfg.AutoBranchingEnabled = branching
	cfg.AutoRollbackEnabled = rollback
	cfg.AutoMergeEnabled = merge
	cfg.DefaultMergeStrategy = supervisor.ParseMergeStrategyName(strategyName)
	return cfg
}

func splitWatchList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
