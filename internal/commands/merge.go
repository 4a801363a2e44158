package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thymos-run/thymos/internal/llm"
	"github.com/thymos-run/thymos/internal/output"
	"github.com/thymos-run/thymos/internal/versioning"
)

// NewMergeCmd creates the merge command.
func NewMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge one branch into another",
		RunE: func(cmd *cobra.Command, args []string) error {
			source, _ := cmd.Flags().GetString("source")
			target, _ := cmd.Flags().GetString("target")
			strategyName, _ := cmd.Flags().GetString("strategy")
			autoResolve, _ := cmd.Flags().GetBool("auto-resolve")

			strategy, err := parseMergeStrategy(strategyName, autoResolve)
			if err != nil {
				return cmdErr(err)
			}

			var result versioning.MergeResult
			if err := withEngine(func(engine *versioning.Engine) error {
				r, err := engine.Merge(source, target, strategy)
				if err != nil {
					return err
				}
				result = r
				return nil
			}); err != nil {
				return err
			}

			type resp struct {
				Success   bool                         `json:"success"`
				Commit    string                       `json:"commit,omitempty"`
				Conflicts []versioning.MemoryConflict `json:"conflicts,omitempty"`
			}
			return output.PrintSuccess(resp{Success: result.Success, Commit: result.Commit, Conflicts: result.Conflicts})
		},
	}

	cmd.Flags().StringP("source", "s", "", "Source branch (required)")
	cmd.Flags().StringP("target", "t", "", "Target branch (required)")
	cmd.Flags().String("strategy", "manual", "Conflict strategy: manual, auto, ours, theirs")
	cmd.Flags().Bool("auto-resolve", false, "With --strategy auto, resolve conflicts via the configured agent CLI")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

func parseMergeStrategy(name string, autoResolve bool) (versioning.MergeStrategy, error) {
	switch name {
	case "manual", "":
		return versioning.MergeStrategy{Kind: versioning.MergeManual}, nil
	case "ours":
		return versioning.MergeStrategy{Kind: versioning.MergeOurs}, nil
	case "theirs":
		return versioning.MergeStrategy{Kind: versioning.MergeTheirs}, nil
	case "auto":
		strategy := versioning.MergeStrategy{Kind: versioning.MergeAutoMerge}
		if autoResolve {
			provider, err := llm.NewCLIProvider("")
			if err != nil {
				return versioning.MergeStrategy{}, fmt.Errorf("set up conflict resolver: %w", err)
			}
			strategy.Resolver = llm.NewConflictResolver(provider)
		}
		return strategy, nil
	default:
		return versioning.MergeStrategy{}, fmt.Errorf("unknown merge strategy %q", name)
	}
}
