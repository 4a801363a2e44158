package versioning

import (
	"fmt"
	"time"

	"github.com/thymos-run/thymos/internal/thyerrors"
	"github.com/thymos-run/thymos/pkg/backend"
)

// MergeStrategyKind selects how conflicts are resolved during a merge.
type MergeStrategyKind int

const (
	// MergeAutoMerge resolves conflicts with a ConflictResolver (e.g. an
	// LLM-backed one); conflicts are returned unresolved if Resolver is nil.
	MergeAutoMerge MergeStrategyKind = iota
	// MergeManual always surfaces conflicts for the caller to resolve.
	MergeManual
	// MergeOurs keeps the target branch unchanged on conflict.
	MergeOurs
	// MergeTheirs points the target branch at the source branch on conflict.
	MergeTheirs
)

// MergeStrategy configures a Merge call.
type MergeStrategy struct {
	Kind     MergeStrategyKind
	Resolver ConflictResolver
}

// ConflictResolver resolves a single memory conflict into concrete content.
type ConflictResolver interface {
	ResolveConflict(conflict MemoryConflict) (ConflictResolution, error)
}

// MemoryConflict is a memory whose content diverged between two branches
// since their common ancestor.
type MemoryConflict struct {
	MemoryID      string
	TargetVersion backend.Memory
	SourceVersion backend.Memory
	Description   string
}

// ConflictResolution is the resolved content for a MemoryConflict.
type ConflictResolution struct {
	ResolvedContent    string
	ResolvedProperties map[string]any
}

// MergeResult reports whether a merge completed or needs conflict
// resolution.
type MergeResult struct {
	Success   bool
	Commit    string
	Conflicts []MemoryConflict
}

// Merge merges sourceBranch into targetBranch using strategy, detecting
// conflicts by comparing the two branches' snapshots memory-by-memory.
func (e *Engine) Merge(sourceBranch, targetBranch string, strategy MergeStrategy) (MergeResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	source, ok := e.branches[sourceBranch]
	if !ok {
		return MergeResult{}, thyerrors.NotFound("branch", sourceBranch)
	}
	target, ok := e.branches[targetBranch]
	if !ok {
		return MergeResult{}, thyerrors.NotFound("branch", targetBranch)
	}

	sourceSnap, ok := e.snapshots[source.SnapshotID]
	if !ok {
		return MergeResult{}, thyerrors.NotFound("snapshot", source.SnapshotID)
	}
	targetSnap, ok := e.snapshots[target.SnapshotID]
	if !ok {
		return MergeResult{}, thyerrors.NotFound("snapshot", target.SnapshotID)
	}

	conflicts, err := e.detectConflicts(sourceSnap, targetSnap)
	if err != nil {
		return MergeResult{}, err
	}

	if len(conflicts) > 0 {
		switch strategy.Kind {
		case MergeOurs:
			return MergeResult{Success: true}, nil
		case MergeTheirs:
			target.SnapshotID = source.SnapshotID
			if source.Head != "" {
				target.Head = source.Head
			}
			return MergeResult{Success: true}, nil
		case MergeAutoMerge:
			if strategy.Resolver == nil {
				return MergeResult{Success: false, Conflicts: conflicts}, nil
			}
			if err := e.resolveConflicts(targetBranch, conflicts, strategy.Resolver); err != nil {
				return MergeResult{}, err
			}
			staging, err := e.stagingFor(targetBranch)
			if err != nil {
				return MergeResult{}, err
			}
			if err := e.applyStaged(staging); err != nil {
				return MergeResult{}, err
			}
		case MergeManual:
			return MergeResult{Success: false, Conflicts: conflicts}, nil
		}
	}

	parents := mergeParents(source.Head, target.Head)
	message := fmt.Sprintf("Merge branch %q into %q", sourceBranch, targetBranch)

	snap, err := e.be.CreateSnapshot("")
	if err != nil {
		return MergeResult{}, fmt.Errorf("snapshot for merge commit: %w", err)
	}
	e.snapshots[snap.SnapshotID] = snap

	timestamp := time.Now()
	hash := commitHash(snap.SnapshotID, message, "system", timestamp)
	e.commits[hash] = &Commit{
		Hash:          hash,
		SnapshotID:    snap.SnapshotID,
		ParentCommits: parents,
		Author:        "system",
		Message:       message,
		Timestamp:     timestamp,
	}
	target.Head = hash
	target.SnapshotID = snap.SnapshotID

	return MergeResult{Success: true, Commit: hash}, nil
}

func mergeParents(sourceHead, targetHead string) []string {
	switch {
	case sourceHead != "" && targetHead != "":
		return []string{sourceHead, targetHead}
	case sourceHead != "":
		return []string{sourceHead}
	case targetHead != "":
		return []string{targetHead}
	default:
		return nil
	}
}

// detectConflicts compares the memories shared by both snapshots under
// different versions; a conflict is any such memory whose content or
// properties differ.
func (e *Engine) detectConflicts(source, target backend.Snapshot) ([]MemoryConflict, error) {
	var conflicts []MemoryConflict

	for memoryID, sourceVersion := range source.VersionMap {
		targetVersion, sharedID := target.VersionMap[memoryID]
		if !sharedID || sourceVersion == targetVersion {
			continue
		}

		sourceMem, ok, err := e.be.GetInSnapshot(source, memoryID)
		if err != nil {
			return nil, fmt.Errorf("read source snapshot memory %q: %w", memoryID, err)
		}
		if !ok {
			continue
		}
		targetMem, ok, err := e.be.GetInSnapshot(target, memoryID)
		if err != nil {
			return nil, fmt.Errorf("read target snapshot memory %q: %w", memoryID, err)
		}
		if !ok {
			continue
		}

		if sourceMem.Content != targetMem.Content || !propertiesEqual(sourceMem.Properties, targetMem.Properties) {
			conflicts = append(conflicts, MemoryConflict{
				MemoryID:      memoryID,
				TargetVersion: targetMem,
				SourceVersion: sourceMem,
				Description:   fmt.Sprintf("memory %q was modified differently in source and target branches", memoryID),
			})
		}
	}

	return conflicts, nil
}

func propertiesEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		other, ok := b[k]
		if !ok || fmt.Sprint(v) != fmt.Sprint(other) {
			return false
		}
	}
	return true
}

// resolveConflicts applies resolver to each conflict and stages the
// resolution against targetBranch so the next commit picks it up.
func (e *Engine) resolveConflicts(targetBranch string, conflicts []MemoryConflict, resolver ConflictResolver) error {
	staging, err := e.stagingFor(targetBranch)
	if err != nil {
		return err
	}
	for _, conflict := range conflicts {
		resolution, err := resolver.ResolveConflict(conflict)
		if err != nil {
			return fmt.Errorf("resolve conflict for %q: %w", conflict.MemoryID, err)
		}
		staging.StageModification(conflict.MemoryID, resolution.ResolvedContent, resolution.ResolvedProperties)
	}
	return nil
}
