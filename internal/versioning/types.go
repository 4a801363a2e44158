// Package versioning implements Thymos's Git-style memory versioning:
// commits, branches, staging areas, checkout, merge, and worktrees, all
// built on top of a single backend.Backend.
package versioning

import "time"

// Commit wraps a backend.Snapshot with the ancestry and authorship a
// memory history needs.
type Commit struct {
	Hash          string    `json:"hash"`
	SnapshotID    string    `json:"snapshot_id"`
	ParentCommits []string  `json:"parent_commits"`
	Author        string    `json:"author"`
	Message       string    `json:"message"`
	Timestamp     time.Time `json:"timestamp"`
}

// Branch is a movable pointer to a snapshot, optionally backed by a commit
// history (Head is empty for a branch with no commits yet).
type Branch struct {
	Name       string `json:"name"`
	SnapshotID string `json:"snapshot_id"`
	Head       string `json:"head,omitempty"`
}

// Operation identifies the kind of change staged against a memory.
type Operation int

const (
	OpAdd Operation = iota
	OpModify
	OpDelete
)

// StagedChange is a pending mutation against a single memory id, applied to
// the backend at commit time.
type StagedChange struct {
	MemoryID   string
	Operation  Operation
	Content    string
	Properties map[string]any
	Embedding  []float32
}

// StagingArea is the index of pending changes for one branch. Staging the
// same memory id twice replaces the earlier pending operation, mirroring
// how Git's index treats repeated `add`/`rm` of the same path.
type StagingArea struct {
	changes map[string]*StagedChange
}

// NewStagingArea returns an empty staging area.
func NewStagingArea() *StagingArea {
	return &StagingArea{changes: make(map[string]*StagedChange)}
}

// StageAddition stages a brand new memory.
func (s *StagingArea) StageAddition(memoryID, content string, properties map[string]any, embedding []float32) {
	s.changes[memoryID] = &StagedChange{
		MemoryID:   memoryID,
		Operation:  OpAdd,
		Content:    content,
		Properties: properties,
		Embedding:  embedding,
	}
}

// StageModification stages a content/property change to an existing memory.
func (s *StagingArea) StageModification(memoryID, content string, properties map[string]any) {
	s.changes[memoryID] = &StagedChange{
		MemoryID:   memoryID,
		Operation:  OpModify,
		Content:    content,
		Properties: properties,
	}
}

// StageDeletion stages removal of a memory.
func (s *StagingArea) StageDeletion(memoryID string) {
	s.changes[memoryID] = &StagedChange{MemoryID: memoryID, Operation: OpDelete}
}

// IsEmpty reports whether any change is staged.
func (s *StagingArea) IsEmpty() bool {
	return len(s.changes) == 0
}

// Clear discards all staged changes.
func (s *StagingArea) Clear() {
	s.changes = make(map[string]*StagedChange)
}

// Changes returns the pending changes in no particular order.
func (s *StagingArea) Changes() []*StagedChange {
	out := make([]*StagedChange, 0, len(s.changes))
	for _, c := range s.changes {
		out = append(out, c)
	}
	return out
}
