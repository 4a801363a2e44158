package embedded

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thymos-run/thymos/pkg/backend"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBackendStoreGetDelete(t *testing.T) {
	b := newTestBackend(t)

	id, err := b.Store("hello sqlite world", backend.StoreOptions{
		Properties: map[string]any{"kind": "note"},
	})
	require.NoError(t, err)

	mem, ok, err := b.Get(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "hello sqlite world", mem.Content)
	require.Equal(t, "note", mem.Properties["kind"])

	count, err := b.Count()
	require.NoError(t, err)
	require.Equal(t, 1, count)

	deleted, err := b.Delete(id)
	require.NoError(t, err)
	require.True(t, deleted)

	_, ok, err = b.Get(id)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBackendSearchAndSnapshot(t *testing.T) {
	b := newTestBackend(t)

	id1, err := b.Store("cats chase mice", backend.StoreOptions{})
	require.NoError(t, err)
	_, err = b.Store("dogs bark loudly", backend.StoreOptions{})
	require.NoError(t, err)

	results, err := b.Search("cats", backend.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "cats chase mice", results[0].Memory.Content)

	snap, err := b.CreateSnapshot("tagged")
	require.NoError(t, err)
	require.Equal(t, "tagged", snap.SnapshotID)
	require.Len(t, snap.VersionMap, 2)

	_, err = b.Delete(id1)
	require.NoError(t, err)
	count, err := b.Count()
	require.NoError(t, err)
	require.Equal(t, 1, count)

	snapResults, err := b.SearchInSnapshot(snap, "cats", backend.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, snapResults, 1)

	require.NoError(t, b.Restore(snap, backend.RestoreOverwrite))
	count, err = b.Count()
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestBackendHealthCheck(t *testing.T) {
	b := newTestBackend(t)
	status, err := b.HealthCheck()
	require.NoError(t, err)
	require.True(t, status.Healthy)
}
