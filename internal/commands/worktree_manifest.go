package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/thymos-run/thymos/internal/app"
)

// worktreeManifestEntry records enough about a worktree to rehydrate a
// versioning.WorktreeManager in a later CLI invocation: each `thymos
// worktree` command runs in its own process, so nothing survives between
// calls except what's written to disk here and the worktree's own SQLite
// file.
type worktreeManifestEntry struct {
	ID        string    `json:"id"`
	Branch    string    `json:"branch"`
	Commit    string    `json:"commit,omitempty"`
	DBPath    string    `json:"db_path"`
	CreatedAt time.Time `json:"created_at"`
}

func worktreesDir() (string, error) {
	dbPath, err := app.GetDBPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(dbPath), "worktrees"), nil
}

func worktreeManifestPath() (string, error) {
	dir, err := worktreesDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "manifest.json"), nil
}

func worktreeDBPath(id string) (string, error) {
	dir, err := worktreesDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, id+".db"), nil
}

func loadWorktreeManifest() ([]worktreeManifestEntry, error) {
	path, err := worktreeManifestPath()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read worktree manifest: %w", err)
	}
	var entries []worktreeManifestEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("parse worktree manifest: %w", err)
	}
	return entries, nil
}

func saveWorktreeManifest(entries []worktreeManifestEntry) error {
	dir, err := worktreesDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create worktrees directory: %w", err)
	}
	path, err := worktreeManifestPath()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode worktree manifest: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}

func findWorktreeEntry(entries []worktreeManifestEntry, id string) (worktreeManifestEntry, bool) {
	for _, e := range entries {
		if e.ID == id {
			return e, true
		}
	}
	return worktreeManifestEntry{}, false
}

func upsertWorktreeEntry(entries []worktreeManifestEntry, updated worktreeManifestEntry) []worktreeManifestEntry {
	for i, e := range entries {
		if e.ID == updated.ID {
			entries[i] = updated
			return entries
		}
	}
	return append(entries, updated)
}

func removeWorktreeEntry(entries []worktreeManifestEntry, id string) []worktreeManifestEntry {
	out := entries[:0]
	for _, e := range entries {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}
