package commands

import (
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/thymos-run/thymos/internal/idgen"
	"github.com/thymos-run/thymos/internal/output"
	"github.com/thymos-run/thymos/internal/thyerrors"
	"github.com/thymos-run/thymos/internal/versioning"
	"github.com/thymos-run/thymos/pkg/backend"
	"github.com/thymos-run/thymos/pkg/backend/embedded"
)

// NewWorktreeCmd creates the worktree command with subcommands.
//
// Each invocation of this command is a fresh process, so the
// versioning.WorktreeManager it builds never survives between commands. The
// manifest file under <dbDir>/worktrees/manifest.json is the only thing
// that does: create builds a manager to create the worktree and records it
// in the manifest; commit rebuilds a manager against a factory that reopens
// the worktree's own SQLite file and re-registers the worktree via
// WorktreeManager.RegisterExisting before acting on it; list and remove
// work from the manifest alone.
func NewWorktreeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worktree",
		Short: "Create and manage isolated per-agent checkouts of a branch",
	}

	cmd.AddCommand(newWorktreeCreateCmd())
	cmd.AddCommand(newWorktreeListCmd())
	cmd.AddCommand(newWorktreeCommitCmd())
	cmd.AddCommand(newWorktreeRemoveCmd())

	return cmd
}

func worktreeBackendFactory() versioning.BackendFactory {
	return func(id string) (backend.Backend, error) {
		dbPath, err := worktreeDBPath(id)
		if err != nil {
			return nil, err
		}
		return embedded.Open(dbPath)
	}
}

func removeWorktreeFile(dbPath string) error {
	if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func newWorktreeCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Check out a branch into a new isolated worktree",
		RunE: func(cmd *cobra.Command, args []string) error {
			branch, _ := cmd.Flags().GetString("branch")
			id, _ := cmd.Flags().GetString("id")
			if id == "" {
				id = idgen.New("wt")
			}

			var wt *versioning.Worktree
			if err := withEngine(func(engine *versioning.Engine) error {
				wm := versioning.NewWorktreeManager(engine, worktreeBackendFactory())
				w, err := wm.CreateWorktree(branch, id)
				if err != nil {
					return err
				}
				wt = w
				return nil
			}); err != nil {
				return err
			}
			if closer, ok := wt.Backend.(interface{ Close() error }); ok {
				defer func() { _ = closer.Close() }()
			}

			dbPath, err := worktreeDBPath(wt.ID)
			if err != nil {
				return cmdErr(err)
			}

			entries, err := loadWorktreeManifest()
			if err != nil {
				return cmdErr(err)
			}
			entries = upsertWorktreeEntry(entries, worktreeManifestEntry{
				ID:        wt.ID,
				Branch:    wt.Branch,
				Commit:    wt.Commit,
				DBPath:    dbPath,
				CreatedAt: wt.CreatedAt,
			})
			if err := saveWorktreeManifest(entries); err != nil {
				return cmdErr(err)
			}

			type resp struct {
				ID     string `json:"id"`
				Branch string `json:"branch"`
				Commit string `json:"commit"`
			}
			return output.PrintSuccess(resp{ID: wt.ID, Branch: wt.Branch, Commit: wt.Commit})
		},
	}

	cmd.Flags().StringP("branch", "b", "", "Branch to check out (required)")
	cmd.Flags().String("id", "", "Worktree id (default: auto-generated)")
	_ = cmd.MarkFlagRequired("branch")

	return cmd
}

func newWorktreeListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known worktrees",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := loadWorktreeManifest()
			if err != nil {
				return cmdErr(err)
			}

			type item struct {
				worktreeManifestEntry
				Age string `json:"age"`
			}
			items := make([]item, 0, len(entries))
			for _, e := range entries {
				items = append(items, item{worktreeManifestEntry: e, Age: humanize.Time(e.CreatedAt)})
			}

			type resp struct {
				Worktrees []item `json:"worktrees"`
			}
			return output.PrintSuccess(resp{Worktrees: items})
		},
	}
}

func newWorktreeCommitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Commit a worktree's changes onto its branch in the shared engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			author, err := requireAgentName(cmd, "")
			if err != nil {
				return cmdErr(err)
			}
			id, _ := cmd.Flags().GetString("id")
			message, _ := cmd.Flags().GetString("message")

			entries, err := loadWorktreeManifest()
			if err != nil {
				return cmdErr(err)
			}
			entry, ok := findWorktreeEntry(entries, id)
			if !ok {
				return cmdErr(thyerrors.NotFound("worktree", id))
			}

			wtBackend, err := embedded.Open(entry.DBPath)
			if err != nil {
				return cmdErr(err)
			}
			defer func() { _ = wtBackend.Close() }()

			var hash string
			if err := withEngine(func(engine *versioning.Engine) error {
				wm := versioning.NewWorktreeManager(engine, worktreeBackendFactory())
				wm.RegisterExisting(&versioning.Worktree{
					ID:        entry.ID,
					Branch:    entry.Branch,
					Commit:    entry.Commit,
					Backend:   wtBackend,
					CreatedAt: entry.CreatedAt,
				})
				h, err := wm.CommitWorktreeChanges(id, message, author)
				if err != nil {
					return err
				}
				hash = h
				return nil
			}); err != nil {
				return err
			}

			entry.Commit = hash
			entries = upsertWorktreeEntry(entries, entry)
			if err := saveWorktreeManifest(entries); err != nil {
				return cmdErr(err)
			}

			type resp struct {
				ID     string `json:"id"`
				Branch string `json:"branch"`
				Commit string `json:"commit"`
			}
			return output.PrintSuccess(resp{ID: entry.ID, Branch: entry.Branch, Commit: hash})
		},
	}

	cmd.Flags().StringP("id", "i", "", "Worktree id (required)")
	cmd.Flags().StringP("message", "m", "", "Commit message (required)")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("message")

	return cmd
}

func newWorktreeRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove a worktree and delete its backend file",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetString("id")

			entries, err := loadWorktreeManifest()
			if err != nil {
				return cmdErr(err)
			}
			entry, ok := findWorktreeEntry(entries, id)
			if !ok {
				return cmdErr(thyerrors.NotFound("worktree", id))
			}

			if err := removeWorktreeFile(entry.DBPath); err != nil {
				return cmdErr(err)
			}

			entries = removeWorktreeEntry(entries, id)
			if err := saveWorktreeManifest(entries); err != nil {
				return cmdErr(err)
			}

			type resp struct {
				ID string `json:"id"`
			}
			return output.PrintSuccess(resp{ID: id})
		},
	}

	cmd.Flags().StringP("id", "i", "", "Worktree id (required)")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}
