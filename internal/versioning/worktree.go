package versioning

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/semaphore"

	"github.com/thymos-run/thymos/internal/idgen"
	"github.com/thymos-run/thymos/internal/thyerrors"
	"github.com/thymos-run/thymos/pkg/backend"
)

// maxConcurrentWorktreeCreations bounds how many CreateWorktree calls may
// materialize a snapshot into a fresh backend at once, so a burst of agent
// starts doesn't exhaust memory copying many snapshots in parallel.
const maxConcurrentWorktreeCreations = 8

// Worktree is an isolated agent instance checked out from a branch: its own
// backend.Backend, restored to the branch's snapshot at creation time, so
// concurrent agents never see each other's uncommitted changes.
type Worktree struct {
	ID        string
	Branch    string
	Commit    string
	Backend   backend.Backend
	CreatedAt time.Time
}

// BackendFactory creates a fresh, empty backend.Backend for a new worktree.
// Embedded-mode callers typically close over a per-worktree data directory;
// in-memory callers can just return backend.NewMemoryBackend().
type BackendFactory func(worktreeID string) (backend.Backend, error)

// WorktreeManager creates and tracks worktrees against a shared Engine.
type WorktreeManager struct {
	mu        sync.RWMutex
	engine    *Engine
	factory   BackendFactory
	worktrees map[string]*Worktree
	sem       *semaphore.Weighted
}

// NewWorktreeManager returns a manager that checks out worktrees from
// engine's branches, building each worktree's backend with factory.
func NewWorktreeManager(engine *Engine, factory BackendFactory) *WorktreeManager {
	return &WorktreeManager{
		engine:    engine,
		factory:   factory,
		worktrees: make(map[string]*Worktree),
		sem:       semaphore.NewWeighted(maxConcurrentWorktreeCreations),
	}
}

// CreateWorktree checks out branchName into a freshly built backend and
// registers the result under worktreeID (auto-generated if empty).
//
// This performs the cross-instance snapshot restore the original
// implementation left as a TODO: every memory reachable in the branch's
// snapshot is read out of the shared engine's backend and recreated, by
// id, in the worktree's own backend.
func (m *WorktreeManager) CreateWorktree(branchName, worktreeID string) (*Worktree, error) {
	branch, ok := m.engine.GetBranch(branchName)
	if !ok {
		return nil, thyerrors.NotFound("branch", branchName)
	}

	id := worktreeID
	if id == "" {
		id = idgen.UUID()
	}

	wtBackend, err := m.factory(id)
	if err != nil {
		return nil, fmt.Errorf("create worktree backend: %w", err)
	}

	snap, ok := m.engine.snapshotByID(branch.SnapshotID)
	if !ok {
		return nil, thyerrors.NotFound("snapshot", branch.SnapshotID)
	}

	if err := m.sem.Acquire(context.Background(), 1); err != nil {
		return nil, fmt.Errorf("acquire worktree creation slot: %w", err)
	}
	err = materializeSnapshot(m.engine.be, wtBackend, snap)
	m.sem.Release(1)
	if err != nil {
		return nil, fmt.Errorf("materialize snapshot into worktree: %w", err)
	}

	wt := &Worktree{
		ID:        id,
		Branch:    branchName,
		Commit:    branch.Head,
		Backend:   wtBackend,
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.worktrees[id] = wt
	m.mu.Unlock()

	return wt, nil
}

// materializeSnapshot recreates every memory pinned by snap, reading its
// content from src and writing it into dst via Store so dst ends up
// holding independent copies rather than shared state.
func materializeSnapshot(src, dst backend.Backend, snap backend.Snapshot) error {
	for memoryID := range snap.VersionMap {
		mem, ok, err := src.GetInSnapshot(snap, memoryID)
		if err != nil {
			return fmt.Errorf("read memory %q from source snapshot: %w", memoryID, err)
		}
		if !ok {
			continue
		}
		if _, err := dst.Store(mem.Content, backend.StoreOptions{
			ID:         mem.ID,
			Properties: mem.Properties,
			Embedding:  mem.Embedding,
			CreatedAt:  mem.CreatedAt,
		}); err != nil {
			return fmt.Errorf("recreate memory %q in worktree backend: %w", memoryID, err)
		}
	}
	return nil
}

// RegisterExisting re-registers a worktree whose backend was already
// materialized by a previous CreateWorktree call (e.g. in an earlier
// process), without touching the backend's contents. Callers rebuilding a
// WorktreeManager across process restarts use this to restore its
// in-memory index from whatever manifest they persisted.
func (m *WorktreeManager) RegisterExisting(wt *Worktree) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.worktrees[wt.ID] = wt
}

// GetWorktree returns the worktree registered under id.
func (m *WorktreeManager) GetWorktree(id string) (*Worktree, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wt, ok := m.worktrees[id]
	if !ok {
		return nil, thyerrors.NotFound("worktree", id)
	}
	return wt, nil
}

// ListWorktrees returns all registered worktree ids in deterministic
// (lexicographic) order.
func (m *WorktreeManager) ListWorktrees() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := maps.Keys(m.worktrees)
	slices.Sort(ids)
	return ids
}

// CommitWorktreeChanges snapshots the worktree's backend and commits that
// snapshot's memory set onto the worktree's branch in the shared engine,
// by staging every live memory as an addition and committing. Memories
// deleted in the worktree are not deleted from the branch.
func (m *WorktreeManager) CommitWorktreeChanges(id, message, author string) (string, error) {
	m.mu.RLock()
	wt, ok := m.worktrees[id]
	m.mu.RUnlock()
	if !ok {
		return "", thyerrors.NotFound("worktree", id)
	}

	snap, err := wt.Backend.CreateSnapshot("")
	if err != nil {
		return "", fmt.Errorf("snapshot worktree backend: %w", err)
	}

	if err := m.engine.ClearStaging(wt.Branch); err != nil {
		return "", err
	}
	for memoryID := range snap.VersionMap {
		mem, ok, err := wt.Backend.GetInSnapshot(snap, memoryID)
		if err != nil {
			return "", fmt.Errorf("read worktree memory %q: %w", memoryID, err)
		}
		if !ok {
			continue
		}
		if err := m.engine.StageAddition(wt.Branch, mem.ID, mem.Content, mem.Properties, mem.Embedding); err != nil {
			return "", err
		}
	}

	hash, err := m.engine.Commit(wt.Branch, message, author)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	wt.Commit = hash
	m.mu.Unlock()

	return hash, nil
}

// RemoveWorktree unregisters a worktree. The caller is responsible for
// closing wt.Backend if it holds external resources (e.g. an open SQLite
// file); RemoveWorktree itself never deletes data.
func (m *WorktreeManager) RemoveWorktree(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.worktrees[id]; !ok {
		return thyerrors.NotFound("worktree", id)
	}
	delete(m.worktrees, id)
	return nil
}
