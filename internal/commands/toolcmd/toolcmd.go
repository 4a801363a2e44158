// Package toolcmd wires the capability-gated tool runtime into the CLI.
package toolcmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/thymos-run/thymos/internal/app"
	"github.com/thymos-run/thymos/internal/output"
	"github.com/thymos-run/thymos/internal/tools"
	"github.com/thymos-run/thymos/pkg/memory"
)

// NewToolCmd creates the tool command with subcommands.
func NewToolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tool",
		Short: "List and invoke capability-gated tools",
	}

	cmd.AddCommand(newToolListCmd())
	cmd.AddCommand(newToolCallCmd())

	return cmd
}

func newToolListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every registered tool and the capabilities it requires",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := builtinRegistry()
			if err != nil {
				return cmderr(err)
			}

			type resp struct {
				Tools []tools.ToolMetadata `json:"tools"`
			}
			return output.PrintSuccess(resp{Tools: reg.List()})
		},
	}
}

// resolvePolicy accepts both the CLI's short policy names and config.yaml's
// capability_policy names (spec §6: deny_all, safe_only, allow_all, plus
// the teacher-style memory_only addition).
func resolvePolicy(name string) (*tools.CapabilityPolicy, error) {
	switch name {
	case "deny", "deny_all", "":
		return tools.DenyAllPolicy(), nil
	case "allow", "allow_all":
		return tools.AllowAllPolicy(), nil
	case "safe", "safe_only":
		return tools.SafeOnlyPolicy(), nil
	case "memory", "memory_only":
		return tools.MemoryOnlyPolicy(), nil
	default:
		return nil, fmt.Errorf("unknown policy %q (supported: deny, allow, safe, memory)", name)
	}
}

func newToolCallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call [tool-name]",
		Short: "Invoke a registered tool with JSON arguments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			argsJSON, _ := cmd.Flags().GetString("args")
			policyName, _ := cmd.Flags().GetString("policy")
			agentID, _ := cmd.Flags().GetString("agent")
			cacheTTL, _ := cmd.Flags().GetDuration("cache-ttl")
			cacheSize, _ := cmd.Flags().GetInt("cache-size")

			if !cmd.Flags().Changed("policy") {
				policyName = app.EffectiveCapabilityPolicyName(policyName)
			}
			policy, err := resolvePolicy(policyName)
			if err != nil {
				return cmderr(err)
			}

			reg, err := builtinRegistry()
			if err != nil {
				return cmderr(err)
			}
			tool, err := reg.Get(name)
			if err != nil {
				return cmderr(err)
			}

			if argsJSON == "" {
				argsJSON = "{}"
			}
			if !json.Valid([]byte(argsJSON)) {
				return cmderr(fmt.Errorf("--args is not valid JSON"))
			}

			execCtx := tools.NewToolExecutionContext()
			if agentID != "" {
				execCtx = execCtx.WithAgentID(agentID)
			}

			runtime := tools.NewToolRuntime(policy)
			if cacheTTL > 0 {
				runtime = runtime.WithResultCache(memory.NewLRU(cacheSize), cacheTTL)
			}
			result := runtime.Execute(context.Background(), tool, json.RawMessage(argsJSON), execCtx)

			return output.PrintSuccess(result)
		},
	}

	cmd.Flags().String("args", "{}", "Tool arguments as a JSON object")
	cmd.Flags().String("policy", "safe", "Capability policy: deny, allow, safe, memory")
	cmd.Flags().String("agent", "", "Agent id attributed to this call")
	cmd.Flags().Duration("cache-ttl", 0, "Cache read-only tool results for this long, keyed by tool+agent+args (0 disables)")
	cmd.Flags().Int("cache-size", 256, "Max cached results retained per tool+agent pair")

	return cmd
}
