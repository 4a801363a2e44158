package backend

import (
	"encoding/json"
	"time"
)

// Snapshot is an immutable pointer-set into a backend: every memory
// reachable at snapshot time is pinned by version. This is the only
// binary contract Thymos specifies — the JSON shape below is load-bearing.
type Snapshot struct {
	SnapshotID string            `json:"snapshot_id"`
	VersionMap map[string]string `json:"version_map"`
	CreatedAt  time.Time         `json:"created_at"`
}

// MarshalJSON and UnmarshalJSON are the default struct-tag-driven encoding;
// they are not overridden so the wire format matches the spec's document
// exactly: {"snapshot_id", "version_map", "created_at"}.

// Encode serializes a snapshot to its canonical JSON interchange form.
func Encode(s Snapshot) ([]byte, error) {
	return json.Marshal(s)
}

// Decode parses a snapshot from its canonical JSON interchange form.
func Decode(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

// Equivalent reports whether two snapshots pin the same multiset of
// (memory_id, version_id) pairs, regardless of map iteration order.
func Equivalent(a, b Snapshot) bool {
	if len(a.VersionMap) != len(b.VersionMap) {
		return false
	}
	for id, version := range a.VersionMap {
		if b.VersionMap[id] != version {
			return false
		}
	}
	return true
}
