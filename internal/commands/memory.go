package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thymos-run/thymos/internal/idgen"
	"github.com/thymos-run/thymos/internal/output"
	"github.com/thymos-run/thymos/internal/versioning"
	"github.com/thymos-run/thymos/pkg/backend"
)

// NewMemoryCmd creates the memory command with subcommands.
func NewMemoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Read, write, and version agent memories",
		Long:  "Store, fetch, and search memories, and stage changes for commit on a branch.",
	}

	cmd.AddCommand(newMemoryStoreCmd())
	cmd.AddCommand(newMemoryGetCmd())
	cmd.AddCommand(newMemorySearchCmd())
	cmd.AddCommand(newMemoryDeleteCmd())
	cmd.AddCommand(newMemoryStageCmd())
	cmd.AddCommand(newMemoryCommitCmd())
	cmd.AddCommand(newMemoryLogCmd())

	return cmd
}

func newMemoryStoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Stage and commit a new memory in one step",
		RunE: func(cmd *cobra.Command, args []string) error {
			author, err := requireAgentName(cmd, "")
			if err != nil {
				return cmdErr(err)
			}
			content, _ := cmd.Flags().GetString("content")
			branch, _ := cmd.Flags().GetString("branch")
			message, _ := cmd.Flags().GetString("message")
			id, _ := cmd.Flags().GetString("id")
			if id == "" {
				id = idgen.New("mem")
			}

			var hash string
			if err := withEngine(func(engine *versioning.Engine) error {
				if branch == "" {
					branch = engine.CurrentBranch()
				}
				if err := engine.StageAddition(branch, id, content, nil, nil); err != nil {
					return err
				}
				if message == "" {
					message = fmt.Sprintf("store memory %s", id)
				}
				h, err := engine.Commit(branch, message, author)
				if err != nil {
					return err
				}
				hash = h
				return nil
			}); err != nil {
				return err
			}

			type resp struct {
				MemoryID string `json:"memory_id"`
				Branch   string `json:"branch"`
				Commit   string `json:"commit"`
			}
			return output.PrintSuccess(resp{MemoryID: id, Branch: branch, Commit: hash})
		},
	}

	cmd.Flags().StringP("content", "c", "", "Memory content (required)")
	cmd.Flags().StringP("branch", "b", "", "Branch to commit to (default: current branch)")
	cmd.Flags().StringP("message", "m", "", "Commit message (default: auto-generated)")
	cmd.Flags().String("id", "", "Memory id (default: auto-generated)")
	_ = cmd.MarkFlagRequired("content")

	return cmd
}

func newMemoryGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Fetch a memory by id from the checked-out state",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetString("id")

			var mem backend.Memory
			var found bool
			if err := withBackend(func(be backend.Backend) error {
				m, ok, err := be.Get(id)
				if err != nil {
					return err
				}
				mem, found = m, ok
				return nil
			}); err != nil {
				return err
			}
			if !found {
				return cmdErr(fmt.Errorf("memory %q not found", id))
			}

			return output.PrintSuccess(mem)
		},
	}

	cmd.Flags().StringP("id", "i", "", "Memory id (required)")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func newMemorySearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search memories in the checked-out state",
		RunE: func(cmd *cobra.Command, args []string) error {
			query, _ := cmd.Flags().GetString("query")
			limit, _ := cmd.Flags().GetInt("limit")

			var results []backend.SearchResult
			if err := withBackend(func(be backend.Backend) error {
				r, err := be.Search(query, backend.SearchOptions{Limit: limit})
				if err != nil {
					return err
				}
				results = r
				return nil
			}); err != nil {
				return err
			}

			type resp struct {
				Query   string                  `json:"query"`
				Count   int                     `json:"count"`
				Results []backend.SearchResult `json:"results"`
			}
			return output.PrintSuccess(resp{Query: query, Count: len(results), Results: results})
		},
	}

	cmd.Flags().StringP("query", "q", "", "Search query")
	cmd.Flags().IntP("limit", "n", 20, "Maximum results to return")

	return cmd
}

func newMemoryDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Stage and commit a memory deletion in one step",
		RunE: func(cmd *cobra.Command, args []string) error {
			author, err := requireAgentName(cmd, "")
			if err != nil {
				return cmdErr(err)
			}
			id, _ := cmd.Flags().GetString("id")
			branch, _ := cmd.Flags().GetString("branch")
			message, _ := cmd.Flags().GetString("message")

			var hash string
			if err := withEngine(func(engine *versioning.Engine) error {
				if branch == "" {
					branch = engine.CurrentBranch()
				}
				if err := engine.StageDeletion(branch, id); err != nil {
					return err
				}
				if message == "" {
					message = fmt.Sprintf("delete memory %s", id)
				}
				h, err := engine.Commit(branch, message, author)
				if err != nil {
					return err
				}
				hash = h
				return nil
			}); err != nil {
				return err
			}

			type resp struct {
				MemoryID string `json:"memory_id"`
				Branch   string `json:"branch"`
				Commit   string `json:"commit"`
			}
			return output.PrintSuccess(resp{MemoryID: id, Branch: branch, Commit: hash})
		},
	}

	cmd.Flags().StringP("id", "i", "", "Memory id (required)")
	cmd.Flags().StringP("branch", "b", "", "Branch to commit to (default: current branch)")
	cmd.Flags().StringP("message", "m", "", "Commit message (default: auto-generated)")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

// newMemoryStageCmd groups the lower-level staging operations a caller uses
// to build up a multi-memory commit before calling `memory commit`.
func newMemoryStageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Stage memory changes without committing",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add",
		Short: "Stage a new memory",
		RunE: func(cmd *cobra.Command, args []string) error {
			content, _ := cmd.Flags().GetString("content")
			branch, _ := cmd.Flags().GetString("branch")
			id, _ := cmd.Flags().GetString("id")
			if id == "" {
				id = idgen.New("mem")
			}

			if err := withEngine(func(engine *versioning.Engine) error {
				if branch == "" {
					branch = engine.CurrentBranch()
				}
				return engine.StageAddition(branch, id, content, nil, nil)
			}); err != nil {
				return err
			}

			type resp struct {
				MemoryID string `json:"memory_id"`
				Branch   string `json:"branch"`
			}
			return output.PrintSuccess(resp{MemoryID: id, Branch: branch})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Stage a memory deletion",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetString("id")
			branch, _ := cmd.Flags().GetString("branch")

			if err := withEngine(func(engine *versioning.Engine) error {
				if branch == "" {
					branch = engine.CurrentBranch()
				}
				return engine.StageDeletion(branch, id)
			}); err != nil {
				return err
			}

			type resp struct {
				MemoryID string `json:"memory_id"`
				Branch   string `json:"branch"`
			}
			return output.PrintSuccess(resp{MemoryID: id, Branch: branch})
		},
	})

	for _, sub := range cmd.Commands() {
		sub.Flags().StringP("branch", "b", "", "Branch to stage against (default: current branch)")
		if sub.Use == "add" {
			sub.Flags().StringP("content", "c", "", "Memory content (required)")
			sub.Flags().String("id", "", "Memory id (default: auto-generated)")
			_ = sub.MarkFlagRequired("content")
		} else {
			sub.Flags().StringP("id", "i", "", "Memory id (required)")
			_ = sub.MarkFlagRequired("id")
		}
	}

	return cmd
}

func newMemoryCommitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Commit everything staged on a branch",
		RunE: func(cmd *cobra.Command, args []string) error {
			author, err := requireAgentName(cmd, "")
			if err != nil {
				return cmdErr(err)
			}
			branch, _ := cmd.Flags().GetString("branch")
			message, _ := cmd.Flags().GetString("message")

			var hash string
			if err := withEngine(func(engine *versioning.Engine) error {
				if branch == "" {
					branch = engine.CurrentBranch()
				}
				h, err := engine.Commit(branch, message, author)
				if err != nil {
					return err
				}
				hash = h
				return nil
			}); err != nil {
				return err
			}

			type resp struct {
				Branch string `json:"branch"`
				Commit string `json:"commit"`
			}
			return output.PrintSuccess(resp{Branch: branch, Commit: hash})
		},
	}

	cmd.Flags().StringP("branch", "b", "", "Branch to commit (default: current branch)")
	cmd.Flags().StringP("message", "m", "", "Commit message (required)")
	_ = cmd.MarkFlagRequired("message")

	return cmd
}

func newMemoryLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "List the commit history of a branch",
		RunE: func(cmd *cobra.Command, args []string) error {
			branch, _ := cmd.Flags().GetString("branch")

			var history []versioning.Commit
			if err := withEngine(func(engine *versioning.Engine) error {
				if branch == "" {
					branch = engine.CurrentBranch()
				}
				h, err := engine.GetCommitHistory(branch)
				if err != nil {
					return err
				}
				history = h
				return nil
			}); err != nil {
				return err
			}

			type resp struct {
				Branch  string               `json:"branch"`
				Commits []versioning.Commit `json:"commits"`
			}
			return output.PrintSuccess(resp{Branch: branch, Commits: history})
		},
	}

	cmd.Flags().StringP("branch", "b", "", "Branch to inspect (default: current branch)")

	return cmd
}
