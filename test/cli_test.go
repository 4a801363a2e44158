// Package test provides black-box integration tests that drive the built
// thymos binary the way an agent would: as a subprocess emitting one JSON
// response per invocation.
package test

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	thymosTestBin     string
	thymosTestBinOnce sync.Once
	thymosTestBinErr  error
)

// TestMain builds the thymos binary once before running all tests in this
// package.
func TestMain(m *testing.M) {
	repoRoot, err := filepath.Abs(filepath.Join(filepath.Dir(os.Args[0]), "..", ".."))
	if err != nil {
		os.Exit(1)
	}

	thymosTestBinOnce.Do(func() {
		tmpDir, mkErr := os.MkdirTemp("", "thymos-test-bin-*")
		if mkErr != nil {
			thymosTestBinErr = mkErr
			return
		}
		binPath := filepath.Join(tmpDir, "thymos")
		cmd := exec.Command("go", "build", "-o", binPath, "./cmd/thymos")
		cmd.Dir = repoRoot
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if buildErr := cmd.Run(); buildErr != nil {
			thymosTestBinErr = buildErr
			return
		}
		thymosTestBin = binPath
	})

	os.Exit(m.Run())
}

type cliResult struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func runThymos(t *testing.T, dbPath string, args ...string) cliResult {
	t.Helper()
	require.NoError(t, thymosTestBinErr)
	require.NotEmpty(t, thymosTestBin)

	fullArgs := append([]string{"--db-path", dbPath, "--agent", "test-suite"}, args...)
	cmd := exec.Command(thymosTestBin, fullArgs...) //nolint:gosec // G204: test-built binary with test-controlled args
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	_ = cmd.Run()

	var result cliResult
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &result), "stdout: %s stderr: %s", stdout.String(), stderr.String())
	return result
}

func newTestDB(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "thymos.db")
}

func TestMemoryStoreGetSearch(t *testing.T) {
	dbPath := newTestDB(t)

	stored := runThymos(t, dbPath, "memory", "store", "--content", "the lighthouse keeper's log")
	require.True(t, stored.Success, stored.Error)

	var storedData struct {
		MemoryID string `json:"memory_id"`
	}
	require.NoError(t, json.Unmarshal(stored.Data, &storedData))
	require.NotEmpty(t, storedData.MemoryID)

	got := runThymos(t, dbPath, "memory", "get", "--id", storedData.MemoryID)
	require.True(t, got.Success, got.Error)

	searched := runThymos(t, dbPath, "memory", "search", "--query", "lighthouse")
	require.True(t, searched.Success, searched.Error)

	var searchData struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(searched.Data, &searchData))
	require.GreaterOrEqual(t, searchData.Count, 1)
}

func TestBranchCreateAndCheckout(t *testing.T) {
	dbPath := newTestDB(t)

	created := runThymos(t, dbPath, "branch", "create", "--name", "experiment/alpha")
	require.True(t, created.Success, created.Error)

	listed := runThymos(t, dbPath, "branch", "list")
	require.True(t, listed.Success, listed.Error)

	var listData struct {
		Branches []string `json:"branches"`
	}
	require.NoError(t, json.Unmarshal(listed.Data, &listData))
	require.Contains(t, listData.Branches, "experiment/alpha")

	checkedOut := runThymos(t, dbPath, "branch", "checkout", "--name", "experiment/alpha")
	require.True(t, checkedOut.Success, checkedOut.Error)
}

func TestWorktreeLifecycle(t *testing.T) {
	dbPath := newTestDB(t)

	worktree := runThymos(t, dbPath, "worktree", "create", "--branch", "main")
	require.True(t, worktree.Success, worktree.Error)

	var wtData struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(worktree.Data, &wtData))
	require.NotEmpty(t, wtData.ID)

	committed := runThymos(t, dbPath, "worktree", "commit", "--id", wtData.ID, "--message", "checkpoint")
	require.True(t, committed.Success, committed.Error)

	removed := runThymos(t, dbPath, "worktree", "remove", "--id", wtData.ID)
	require.True(t, removed.Success, removed.Error)
}

func TestConceptExtractAndTrack(t *testing.T) {
	dbPath := newTestDB(t)

	extracted := runThymos(t, dbPath, "concept", "extract", "--text", "Captain Ahab chased the whale across the Atlantic.")
	require.True(t, extracted.Success, extracted.Error)

	tracked := runThymos(t, dbPath, "concept", "track", "--text", "Captain Ahab chased the whale.", "--memory-id", "mem-1")
	require.True(t, tracked.Success, tracked.Error)

	listed := runThymos(t, dbPath, "concept", "list")
	require.True(t, listed.Success, listed.Error)
}

func TestToolListAndCall(t *testing.T) {
	dbPath := newTestDB(t)

	listed := runThymos(t, dbPath, "tool", "list")
	require.True(t, listed.Success, listed.Error)

	stored := runThymos(t, dbPath, "memory", "store", "--content", "a tool-store round trip")
	require.True(t, stored.Success, stored.Error)

	called := runThymos(t, dbPath, "tool", "call", "memory_search", "--args", `{"query":"round trip"}`, "--policy", "safe")
	require.True(t, called.Success, called.Error)
}
