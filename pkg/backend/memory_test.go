package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackendStoreGetDelete(t *testing.T) {
	b := NewMemoryBackend()

	id, err := b.Store("the quick brown fox", StoreOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	mem, ok, err := b.Get(id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "the quick brown fox", mem.Content)
	assert.NotNil(t, mem.LastAccessed)

	count, err := b.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	deleted, err := b.Delete(id)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, ok, err = b.Get(id)
	require.NoError(t, err)
	assert.False(t, ok)

	deletedAgain, err := b.Delete(id)
	require.NoError(t, err)
	assert.False(t, deletedAgain)
}

func TestMemoryBackendSearchRanksByOverlap(t *testing.T) {
	b := NewMemoryBackend()

	_, err := b.Store("cats chase mice", StoreOptions{})
	require.NoError(t, err)
	_, err = b.Store("cats and dogs are friends", StoreOptions{})
	require.NoError(t, err)
	_, err = b.Store("the weather today", StoreOptions{})
	require.NoError(t, err)

	results, err := b.Search("cats dogs", SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "cats and dogs are friends", results[0].Memory.Content)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestMemoryBackendSearchRespectsLimit(t *testing.T) {
	b := NewMemoryBackend()
	for i := 0; i < 5; i++ {
		_, err := b.Store("shared term entry", StoreOptions{})
		require.NoError(t, err)
	}

	results, err := b.Search("shared", SearchOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestMemoryBackendSnapshotRoundTrip(t *testing.T) {
	b := NewMemoryBackend()
	id1, err := b.Store("first memory", StoreOptions{})
	require.NoError(t, err)
	_, err = b.Store("second memory", StoreOptions{})
	require.NoError(t, err)

	snap, err := b.CreateSnapshot("v1")
	require.NoError(t, err)
	assert.Equal(t, "v1", snap.SnapshotID)
	assert.Len(t, snap.VersionMap, 2)

	id3, err := b.Store("third memory, added after snapshot", StoreOptions{})
	require.NoError(t, err)
	_, err = b.Delete(id1)
	require.NoError(t, err)

	count, err := b.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	results, err := b.SearchInSnapshot(snap, "first", SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "first memory", results[0].Memory.Content)

	err = b.Restore(snap, RestoreOverwrite)
	require.NoError(t, err)

	count, err = b.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, ok, err := b.Get(id1)
	require.NoError(t, err)
	assert.True(t, ok, "overwrite restore should resurrect memories pinned by the snapshot")

	_, ok, err = b.Get(id3)
	require.NoError(t, err)
	assert.False(t, ok, "overwrite restore should drop memories absent from the snapshot")
}

func TestMemoryBackendSnapshotEquivalence(t *testing.T) {
	a := Snapshot{VersionMap: map[string]string{"m1": "v1", "m2": "v2"}}
	bSnap := Snapshot{VersionMap: map[string]string{"m2": "v2", "m1": "v1"}}
	c := Snapshot{VersionMap: map[string]string{"m1": "v1"}}

	assert.True(t, Equivalent(a, bSnap))
	assert.False(t, Equivalent(a, c))
}

func TestMemoryBackendHealthCheck(t *testing.T) {
	b := NewMemoryBackend()
	status, err := b.HealthCheck()
	require.NoError(t, err)
	assert.True(t, status.Healthy)
}
