package versioning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thymos-run/thymos/pkg/backend"
)

func memoryFactory(_ string) (backend.Backend, error) {
	return backend.NewMemoryBackend(), nil
}

func TestCreateWorktreeMaterializesSnapshot(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.StageAddition("main", "mem1", "shared content", nil, nil))
	_, err := e.Commit("main", "seed", "agent-1")
	require.NoError(t, err)

	mgr := NewWorktreeManager(e, memoryFactory)
	wt, err := mgr.CreateWorktree("main", "")
	require.NoError(t, err)
	require.NotEmpty(t, wt.ID)
	assert.Equal(t, "main", wt.Branch)

	mem, ok, err := wt.Backend.Get("mem1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "shared content", mem.Content)

	_, err = wt.Backend.Store("worktree-local", backend.StoreOptions{ID: "mem2"})
	require.NoError(t, err)
	_, ok, err = e.Backend().Get("mem2")
	require.NoError(t, err)
	assert.False(t, ok, "worktree mutations must not leak back into the shared engine backend")
}

func TestCommitWorktreeChangesFlowsIntoBranch(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.StageAddition("main", "mem1", "base", nil, nil))
	_, err := e.Commit("main", "seed", "agent-1")
	require.NoError(t, err)

	mgr := NewWorktreeManager(e, memoryFactory)
	wt, err := mgr.CreateWorktree("main", "wt-1")
	require.NoError(t, err)

	_, err = wt.Backend.Store("added in worktree", backend.StoreOptions{ID: "mem2"})
	require.NoError(t, err)

	hash, err := mgr.CommitWorktreeChanges("wt-1", "worktree sync", "agent-2")
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	mem, ok, err := e.Backend().Get("mem2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "added in worktree", mem.Content)
}

func TestRemoveWorktree(t *testing.T) {
	e := newTestEngine(t)
	mgr := NewWorktreeManager(e, memoryFactory)
	wt, err := mgr.CreateWorktree("main", "wt-1")
	require.NoError(t, err)

	require.NoError(t, mgr.RemoveWorktree(wt.ID))
	_, err = mgr.GetWorktree(wt.ID)
	assert.Error(t, err)

	err = mgr.RemoveWorktree("does-not-exist")
	assert.Error(t, err)
}
