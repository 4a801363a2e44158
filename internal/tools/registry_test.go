package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	tool := newEchoTool()

	require.NoError(t, r.Register(tool))

	got, err := r.Get("echo")
	require.NoError(t, err)
	assert.Equal(t, "echo", got.Metadata().Name)
}

func TestRegistryRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newEchoTool()))

	err := r.Register(newEchoTool())
	assert.Error(t, err)
}

func TestRegistryGetMissing(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("does-not-exist")
	assert.Error(t, err)
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newEchoTool()))

	r.Unregister("echo")
	_, err := r.Get("echo")
	assert.Error(t, err)
}

func TestRegistryListAndNames(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newEchoTool()))
	require.NoError(t, r.Register(newFileReadTool()))

	assert.Len(t, r.List(), 2)
	assert.ElementsMatch(t, []string{"echo", "file_read"}, r.Names())
}
