package versioning

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/thymos-run/thymos/internal/thyerrors"
	"github.com/thymos-run/thymos/pkg/backend"
)

// DefaultBranch is the branch an Engine starts on.
const DefaultBranch = "main"

// Engine coordinates commits, branches, and staging areas against a single
// backend.Backend. It does not own worktree lifecycle; see Worktree for
// that concern.
type Engine struct {
	mu sync.RWMutex

	be backend.Backend

	branches      map[string]*Branch
	commits       map[string]*Commit
	snapshots     map[string]backend.Snapshot
	staging       map[string]*StagingArea
	currentBranch string
}

// NewEngine creates an Engine over be, seeding a "main" branch pointed at
// whatever is currently stored.
func NewEngine(be backend.Backend) (*Engine, error) {
	snap, err := be.CreateSnapshot("")
	if err != nil {
		return nil, fmt.Errorf("seed initial snapshot: %w", err)
	}

	e := &Engine{
		be:            be,
		branches:      make(map[string]*Branch),
		commits:       make(map[string]*Commit),
		snapshots:     make(map[string]backend.Snapshot),
		staging:       make(map[string]*StagingArea),
		currentBranch: DefaultBranch,
	}
	e.snapshots[snap.SnapshotID] = snap
	e.branches[DefaultBranch] = &Branch{Name: DefaultBranch, SnapshotID: snap.SnapshotID}
	e.staging[DefaultBranch] = NewStagingArea()
	return e, nil
}

// Backend returns the backend this engine operates on.
func (e *Engine) Backend() backend.Backend { return e.be }

// CurrentBranch returns the name of the currently checked-out branch.
func (e *Engine) CurrentBranch() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.currentBranch
}

// CreateBranch creates a new branch pointed at the given source branch's
// current snapshot (or, if fromCommit is non-empty, at that commit's
// snapshot instead).
func (e *Engine) CreateBranch(name, sourceBranch, fromCommit string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.branches[name]; exists {
		return thyerrors.AlreadyExists("branch", name)
	}

	var snapshotID, head string
	if fromCommit != "" {
		commit, ok := e.commits[fromCommit]
		if !ok {
			return thyerrors.NotFound("commit", fromCommit)
		}
		snapshotID = commit.SnapshotID
		head = fromCommit
	} else {
		src, ok := e.branches[sourceBranch]
		if !ok {
			return thyerrors.NotFound("branch", sourceBranch)
		}
		snapshotID = src.SnapshotID
		head = src.Head
	}

	e.branches[name] = &Branch{Name: name, SnapshotID: snapshotID, Head: head}
	e.staging[name] = NewStagingArea()
	return nil
}

// DeleteBranch removes a branch. main can never be deleted, regardless of
// which branch is current. Deleting the current branch is refused. A branch
// with commits not reachable from main is refused unless force is set.
func (e *Engine) DeleteBranch(name string, force bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if name == DefaultBranch {
		return thyerrors.New(thyerrors.KindInvalidArgument, "the main branch cannot be deleted")
	}
	b, ok := e.branches[name]
	if !ok {
		return thyerrors.NotFound("branch", name)
	}
	if name == e.currentBranch {
		return thyerrors.New(thyerrors.KindInvalidArgument, "cannot delete the currently checked-out branch")
	}
	if !force && !e.fullyMergedLocked(b) {
		return thyerrors.New(thyerrors.KindConflict, fmt.Sprintf("branch %q has unmerged commits; pass force to delete anyway", name))
	}

	delete(e.branches, name)
	delete(e.staging, name)
	return nil
}

// fullyMergedLocked reports whether branch's head commit is already
// reachable from main's head, i.e. deleting it loses no history. Callers
// must hold e.mu.
func (e *Engine) fullyMergedLocked(b *Branch) bool {
	if b.Head == "" {
		return true
	}
	main, ok := e.branches[DefaultBranch]
	if !ok || main.Head == "" {
		return false
	}
	return e.commonAncestorLocked(main.Head, b.Head) == b.Head
}

// commonAncestorLocked is FindCommonAncestor without acquiring e.mu, for use
// by callers that already hold it.
func (e *Engine) commonAncestorLocked(a, b string) string {
	if a == b {
		return a
	}

	ancestorsA := make(map[string]struct{})
	for hash := a; hash != ""; {
		ancestorsA[hash] = struct{}{}
		c, ok := e.commits[hash]
		if !ok || len(c.ParentCommits) == 0 {
			break
		}
		hash = c.ParentCommits[0]
	}

	for hash := b; hash != ""; {
		if _, ok := ancestorsA[hash]; ok {
			return hash
		}
		c, ok := e.commits[hash]
		if !ok || len(c.ParentCommits) == 0 {
			break
		}
		hash = c.ParentCommits[0]
	}

	return a
}

// SetCurrentBranch switches the active branch without touching the
// backend's stored memories; pair with CheckoutBranch to also restore state.
func (e *Engine) SetCurrentBranch(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.branches[name]; !ok {
		return thyerrors.NotFound("branch", name)
	}
	e.currentBranch = name
	return nil
}

// GetBranch returns a copy of the named branch.
func (e *Engine) GetBranch(name string) (Branch, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	b, ok := e.branches[name]
	if !ok {
		return Branch{}, false
	}
	return *b, true
}

// ListBranches returns all known branch names in deterministic
// (lexicographic) order, so repeated calls and CLI output stay stable
// across the map's unspecified iteration order.
func (e *Engine) ListBranches() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := maps.Keys(e.branches)
	slices.Sort(names)
	return names
}

func (e *Engine) stagingFor(branch string) (*StagingArea, error) {
	s, ok := e.staging[branch]
	if !ok {
		return nil, thyerrors.NotFound("branch", branch)
	}
	return s, nil
}

// StageAddition stages a new memory against branch.
func (e *Engine) StageAddition(branch, memoryID, content string, properties map[string]any, embedding []float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.stagingFor(branch)
	if err != nil {
		return err
	}
	s.StageAddition(memoryID, content, properties, embedding)
	return nil
}

// StageModification stages an update to an existing memory against branch.
func (e *Engine) StageModification(branch, memoryID, content string, properties map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.stagingFor(branch)
	if err != nil {
		return err
	}
	s.StageModification(memoryID, content, properties)
	return nil
}

// StageDeletion stages removal of a memory against branch.
func (e *Engine) StageDeletion(branch, memoryID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.stagingFor(branch)
	if err != nil {
		return err
	}
	s.StageDeletion(memoryID)
	return nil
}

// ClearStaging discards all staged changes for branch.
func (e *Engine) ClearStaging(branch string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.stagingFor(branch)
	if err != nil {
		return err
	}
	s.Clear()
	return nil
}

// Commit applies the staged changes for branch to the backend, snapshots
// the result, and records a new Commit whose single parent is the
// branch's previous head (if any).
func (e *Engine) Commit(branch, message, author string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.branches[branch]
	if !ok {
		return "", thyerrors.NotFound("branch", branch)
	}
	staging, err := e.stagingFor(branch)
	if err != nil {
		return "", err
	}

	if err := e.applyStaged(staging); err != nil {
		return "", err
	}

	snap, err := e.be.CreateSnapshot("")
	if err != nil {
		return "", fmt.Errorf("snapshot after commit: %w", err)
	}
	e.snapshots[snap.SnapshotID] = snap

	timestamp := time.Now()
	hash := commitHash(snap.SnapshotID, message, author, timestamp)

	var parents []string
	if b.Head != "" {
		parents = []string{b.Head}
	}

	commit := &Commit{
		Hash:          hash,
		SnapshotID:    snap.SnapshotID,
		ParentCommits: parents,
		Author:        author,
		Message:       message,
		Timestamp:     timestamp,
	}
	e.commits[hash] = commit

	b.Head = hash
	b.SnapshotID = snap.SnapshotID

	return hash, nil
}

// applyStaged writes every pending change in staging to the backend and
// clears it. Callers hold e.mu for the duration.
func (e *Engine) applyStaged(staging *StagingArea) error {
	for _, change := range staging.Changes() {
		switch change.Operation {
		case OpAdd, OpModify:
			if _, err := e.be.Store(change.Content, backend.StoreOptions{
				ID:         change.MemoryID,
				Properties: change.Properties,
				Embedding:  change.Embedding,
			}); err != nil {
				return fmt.Errorf("apply staged change for %q: %w", change.MemoryID, err)
			}
		case OpDelete:
			if _, err := e.be.Delete(change.MemoryID); err != nil {
				return fmt.Errorf("apply staged deletion for %q: %w", change.MemoryID, err)
			}
		}
	}
	staging.Clear()
	return nil
}

func commitHash(snapshotID, message, author string, timestamp time.Time) string {
	data := snapshotID + message + author + timestamp.Format(time.RFC3339Nano)
	sum := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", sum)
}

// snapshotByID returns the snapshot recorded under id, if any.
func (e *Engine) snapshotByID(id string) (backend.Snapshot, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	snap, ok := e.snapshots[id]
	return snap, ok
}

// GetCommit returns a copy of the commit with the given hash.
func (e *Engine) GetCommit(hash string) (Commit, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.commits[hash]
	if !ok {
		return Commit{}, false
	}
	return *c, true
}

// GetCommitHistory walks the branch's commit chain following each commit's
// first parent, oldest ancestor last.
func (e *Engine) GetCommitHistory(branch string) ([]Commit, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	b, ok := e.branches[branch]
	if !ok {
		return nil, thyerrors.NotFound("branch", branch)
	}

	var history []Commit
	hash := b.Head
	for hash != "" {
		c, ok := e.commits[hash]
		if !ok {
			break
		}
		history = append(history, *c)
		if len(c.ParentCommits) == 0 {
			break
		}
		hash = c.ParentCommits[0]
	}
	return history, nil
}

// CheckoutResult reports the outcome of a checkout.
type CheckoutResult struct {
	Previous string
	Current  string
}

// CheckoutBranch restores the backend to branch's snapshot and makes it
// the current branch.
func (e *Engine) CheckoutBranch(branch string) (CheckoutResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.branches[branch]
	if !ok {
		return CheckoutResult{}, thyerrors.NotFound("branch", branch)
	}
	snap, ok := e.snapshots[b.SnapshotID]
	if !ok {
		return CheckoutResult{}, thyerrors.NotFound("snapshot", b.SnapshotID)
	}

	if err := e.be.Restore(snap, backend.RestoreOverwrite); err != nil {
		return CheckoutResult{}, fmt.Errorf("restore branch snapshot: %w", err)
	}

	previous := e.currentBranch
	e.currentBranch = branch
	return CheckoutResult{Previous: previous, Current: branch}, nil
}

// CheckoutCommit restores the backend to a specific commit's snapshot. If
// createBranch is non-empty, a new branch is created pointing at the
// commit and becomes current; otherwise the engine ends up in a detached
// state addressed by "HEAD-<short hash>".
func (e *Engine) CheckoutCommit(hash, createBranch string) (CheckoutResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.commits[hash]
	if !ok {
		return CheckoutResult{}, thyerrors.NotFound("commit", hash)
	}
	snap, ok := e.snapshots[c.SnapshotID]
	if !ok {
		return CheckoutResult{}, thyerrors.NotFound("snapshot", c.SnapshotID)
	}
	if err := e.be.Restore(snap, backend.RestoreOverwrite); err != nil {
		return CheckoutResult{}, fmt.Errorf("restore commit snapshot: %w", err)
	}

	previous := e.currentBranch
	if createBranch != "" {
		if _, exists := e.branches[createBranch]; exists {
			return CheckoutResult{}, thyerrors.AlreadyExists("branch", createBranch)
		}
		e.branches[createBranch] = &Branch{Name: createBranch, SnapshotID: c.SnapshotID, Head: hash}
		e.staging[createBranch] = NewStagingArea()
		e.currentBranch = createBranch
		return CheckoutResult{Previous: previous, Current: createBranch}, nil
	}

	short := hash
	if len(short) > 8 {
		short = short[:8]
	}
	detached := "HEAD-" + short
	e.currentBranch = detached
	return CheckoutResult{Previous: previous, Current: detached}, nil
}

// FindCommonAncestor returns the nearest commit reachable from both a and
// b by following first-parent links, mirroring `git merge-base` restricted
// to linear history. If no common ancestor exists, it returns a itself, as
// the original implementation does to avoid failing merges outright.
func (e *Engine) FindCommonAncestor(a, b string) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.commonAncestorLocked(a, b), nil
}
