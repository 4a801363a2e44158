package commands

import (
	"github.com/spf13/cobra"

	"github.com/thymos-run/thymos/internal/output"
	"github.com/thymos-run/thymos/internal/thyerrors"
	"github.com/thymos-run/thymos/internal/versioning"
)

// NewBranchCmd creates the branch command with subcommands.
func NewBranchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "branch",
		Short: "Create, list, and check out memory branches",
	}

	cmd.AddCommand(newBranchCreateCmd())
	cmd.AddCommand(newBranchDeleteCmd())
	cmd.AddCommand(newBranchListCmd())
	cmd.AddCommand(newBranchCheckoutCmd())
	cmd.AddCommand(newBranchShowCmd())

	return cmd
}

func newBranchCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new branch from a source branch or commit",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			source, _ := cmd.Flags().GetString("source")
			fromCommit, _ := cmd.Flags().GetString("from-commit")

			if err := withEngine(func(engine *versioning.Engine) error {
				if source == "" && fromCommit == "" {
					source = engine.CurrentBranch()
				}
				return engine.CreateBranch(name, source, fromCommit)
			}); err != nil {
				return err
			}

			type resp struct {
				Name   string `json:"name"`
				Source string `json:"source,omitempty"`
			}
			return output.PrintSuccess(resp{Name: name, Source: source})
		},
	}

	cmd.Flags().StringP("name", "n", "", "New branch name (required)")
	cmd.Flags().StringP("source", "s", "", "Source branch (default: current branch)")
	cmd.Flags().String("from-commit", "", "Create from a specific commit instead of a branch head")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newBranchDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a branch",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			force, _ := cmd.Flags().GetBool("force")

			if err := withEngine(func(engine *versioning.Engine) error {
				return engine.DeleteBranch(name, force)
			}); err != nil {
				return err
			}

			type resp struct {
				Name string `json:"name"`
			}
			return output.PrintSuccess(resp{Name: name})
		},
	}

	cmd.Flags().StringP("name", "n", "", "Branch name (required)")
	cmd.Flags().Bool("force", false, "Delete even if the branch has commits not reachable from main")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newBranchListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all branches",
		RunE: func(cmd *cobra.Command, args []string) error {
			var names []string
			var current string
			if err := withEngine(func(engine *versioning.Engine) error {
				names = engine.ListBranches()
				current = engine.CurrentBranch()
				return nil
			}); err != nil {
				return err
			}

			type resp struct {
				Current  string   `json:"current"`
				Branches []string `json:"branches"`
			}
			return output.PrintSuccess(resp{Current: current, Branches: names})
		},
	}

	return cmd
}

func newBranchCheckoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Restore the backend to a branch's snapshot and make it current",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")

			var result versioning.CheckoutResult
			if err := withEngine(func(engine *versioning.Engine) error {
				r, err := engine.CheckoutBranch(name)
				if err != nil {
					return err
				}
				result = r
				return nil
			}); err != nil {
				return err
			}

			type resp struct {
				Previous string `json:"previous"`
				Current  string `json:"current"`
			}
			return output.PrintSuccess(resp{Previous: result.Previous, Current: result.Current})
		},
	}

	cmd.Flags().StringP("name", "n", "", "Branch name (required)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newBranchShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a single branch's head and snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")

			var branch versioning.Branch
			var found bool
			if err := withEngine(func(engine *versioning.Engine) error {
				if name == "" {
					name = engine.CurrentBranch()
				}
				b, ok := engine.GetBranch(name)
				branch, found = b, ok
				return nil
			}); err != nil {
				return err
			}
			if !found {
				return cmdErr(thyerrors.NotFound("branch", name))
			}

			return output.PrintSuccess(branch)
		},
	}

	cmd.Flags().StringP("name", "n", "", "Branch name (default: current branch)")

	return cmd
}
