package commands

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newActorTestCmd(t *testing.T) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("agent", "", "")
	cmd.Flags().String("actor", "", "")
	cmd.Flags().String("worker", "", "")
	return cmd
}

func TestResolveAgentName_Precedence(t *testing.T) {
	cmd := newActorTestCmd(t)
	t.Setenv("THYMOS_AGENT", "env-agent")
	require.NoError(t, cmd.Flags().Set("actor", "legacy-actor"))
	require.NoError(t, cmd.Flags().Set("agent", "global-agent"))
	require.NoError(t, cmd.Flags().Set("worker", "per-cmd-agent"))

	got := resolveAgentName(cmd, "worker")
	require.Equal(t, "per-cmd-agent", got)
}

func TestResolveAgentName_UsesEnvFallback(t *testing.T) {
	cmd := newActorTestCmd(t)
	t.Setenv("THYMOS_AGENT", "env-agent")

	got := resolveAgentName(cmd, "worker")
	require.Equal(t, "env-agent", got)
}

func TestRequireAgentName_ErrorWhenMissing(t *testing.T) {
	cmd := newActorTestCmd(t)
	t.Setenv("THYMOS_AGENT", "")

	got, err := requireAgentName(cmd, "worker")
	require.Error(t, err)
	require.Empty(t, got)
	require.Contains(t, err.Error(), "agent is required")
}

func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("agent", "", "")
	cmd.Flags().String("actor", "", "")
	return cmd
}

func TestResolveAgentName_Normalization(t *testing.T) {
	tests := []struct {
		name     string
		flagVal  string
		expected string
	}{
		{"lowercase passthrough", "claude", "claude"},
		{"uppercase normalized", "Claude", "claude"},
		{"mixed case", "Poet-Agent", "poet-agent"},
		{"whitespace trimmed", "  claude  ", "claude"},
		{"upper + whitespace", " CLAUDE ", "claude"},
		{"empty stays empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newTestCmd()
			if tt.flagVal != "" {
				_ = cmd.Flags().Set("agent", tt.flagVal)
			}
			got := resolveAgentName(cmd, "")
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResolveAgentName_EnvNormalized(t *testing.T) {
	cmd := newTestCmd()
	t.Setenv("THYMOS_AGENT", "Claude")
	got := resolveAgentName(cmd, "")
	assert.Equal(t, "claude", got)
}

func TestRequireAgentName_ErrorsWhenTooLong(t *testing.T) {
	cmd := newTestCmd()
	long := make([]byte, maxAgentNameLength+1)
	for i := range long {
		long[i] = 'a'
	}
	require.NoError(t, cmd.Flags().Set("agent", string(long)))

	_, err := requireAgentName(cmd, "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "exceeds maximum length")
}
