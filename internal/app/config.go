package app

import (
	"os"
	"path/filepath"
)

// ConfigDir returns ~/.config/thymos/ on all platforms.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "thymos"), nil
}

// EnsureConfigDir creates the config directory and default config.yaml if missing.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	configFile := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return os.WriteFile(configFile, []byte(defaultConfig), 0600)
	}
	return nil
}

const defaultConfig = `# thymos configuration
# Run: thymos --help

# Optional: override the SQLite-backed memory store location.
# Can also be set via THYMOS_DB_PATH or --db-path.
# db_path: ~/.config/thymos/thymos.db

# Optional: binary spawned by the process supervisor for each started agent.
# agent_binary: /usr/local/bin/thymos-agent

# Optional: cron spec driving the supervisor's periodic monitor_agent calls.
# monitor_schedule: "@every 30s"

# Optional: where the versioning engine stores memories. Only "embedded"
# (the default) is implemented today; "server" and "hybrid" parse but fall
# back to it.
# memory:
#   mode: embedded

# Optional: concept promotion tuning (see internal/concepts).
# promotion:
#   min_mentions_provisional: 2
#   min_mentions_tracked: 5
#   recency_window_secs: 86400
# promotion_threshold: 0.6

# Optional: gates on the supervisor's automatic versioning actions.
# supervisor:
#   auto_branching_enabled: true
#   auto_rollback_enabled: true
#   auto_merge_enabled: true
#   default_merge_strategy: theirs  # ours | theirs | manual | auto_merge

# Optional: default capability policy for "thymos tool call" when --policy
# isn't passed: deny_all | safe_only | allow_all | memory_only.
# capability_policy: safe_only
`
