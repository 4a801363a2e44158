package versioning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeNoConflicts(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.StageAddition("main", "mem1", "shared base", nil, nil))
	_, err := e.Commit("main", "base", "agent-1")
	require.NoError(t, err)

	require.NoError(t, e.CreateBranch("feature", "main", ""))
	require.NoError(t, e.StageAddition("feature", "mem2", "feature-only memory", nil, nil))
	_, err = e.Commit("feature", "feature work", "agent-1")
	require.NoError(t, err)

	result, err := e.Merge("feature", "main", MergeStrategy{Kind: MergeManual})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.Commit)
	assert.Empty(t, result.Conflicts)
}

func TestMergeDetectsConflict(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.StageAddition("main", "mem1", "original", nil, nil))
	_, err := e.Commit("main", "base", "agent-1")
	require.NoError(t, err)
	require.NoError(t, e.CreateBranch("feature", "main", ""))

	require.NoError(t, e.StageModification("main", "mem1", "changed on main", nil))
	_, err = e.Commit("main", "main edit", "agent-1")
	require.NoError(t, err)

	require.NoError(t, e.StageModification("feature", "mem1", "changed on feature", nil))
	_, err = e.Commit("feature", "feature edit", "agent-1")
	require.NoError(t, err)

	result, err := e.Merge("feature", "main", MergeStrategy{Kind: MergeManual})
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, "mem1", result.Conflicts[0].MemoryID)
}

func TestMergeTheirsAdoptsSource(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.StageAddition("main", "mem1", "original", nil, nil))
	_, err := e.Commit("main", "base", "agent-1")
	require.NoError(t, err)
	require.NoError(t, e.CreateBranch("feature", "main", ""))

	require.NoError(t, e.StageModification("main", "mem1", "changed on main", nil))
	_, err = e.Commit("main", "main edit", "agent-1")
	require.NoError(t, err)

	require.NoError(t, e.StageModification("feature", "mem1", "changed on feature", nil))
	_, err = e.Commit("feature", "feature edit", "agent-1")
	require.NoError(t, err)

	result, err := e.Merge("feature", "main", MergeStrategy{Kind: MergeTheirs})
	require.NoError(t, err)
	assert.True(t, result.Success)

	target, ok := e.GetBranch("main")
	require.True(t, ok)
	source, ok := e.GetBranch("feature")
	require.True(t, ok)
	assert.Equal(t, source.SnapshotID, target.SnapshotID)
}

type stubResolver struct{}

func (stubResolver) ResolveConflict(conflict MemoryConflict) (ConflictResolution, error) {
	return ConflictResolution{ResolvedContent: "merged: " + conflict.SourceVersion.Content}, nil
}

func TestMergeAutoMergeResolvesViaResolver(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.StageAddition("main", "mem1", "original", nil, nil))
	_, err := e.Commit("main", "base", "agent-1")
	require.NoError(t, err)
	require.NoError(t, e.CreateBranch("feature", "main", ""))

	require.NoError(t, e.StageModification("main", "mem1", "changed on main", nil))
	_, err = e.Commit("main", "main edit", "agent-1")
	require.NoError(t, err)

	require.NoError(t, e.StageModification("feature", "mem1", "changed on feature", nil))
	_, err = e.Commit("feature", "feature edit", "agent-1")
	require.NoError(t, err)

	result, err := e.Merge("feature", "main", MergeStrategy{Kind: MergeAutoMerge, Resolver: stubResolver{}})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.Commit)
}
