package app

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Settings represents configuration loaded from config.yaml.
// Field names match snake_case YAML keys; the nested tables mirror spec
// §6's options table (memory.mode, promotion.*, supervisor.*,
// capability_policy).
type Settings struct {
	DBPath             string  `yaml:"db_path"`
	AgentBinary        string  `yaml:"agent_binary"`
	MonitorSchedule    string  `yaml:"monitor_schedule"`
	PromotionThreshold float64 `yaml:"promotion_threshold"`

	Memory           MemorySettings    `yaml:"memory"`
	Promotion        PromotionSettings `yaml:"promotion"`
	Supervisor       SupervisorYAML    `yaml:"supervisor"`
	CapabilityPolicy string            `yaml:"capability_policy"`
}

// MemorySettings selects where the versioning engine's backend stores its
// data. Only ModeEmbedded is implemented; Server and Hybrid are accepted
// so config files stay forward-compatible but currently fall back to
// ModeEmbedded (see EffectiveMemoryMode).
type MemorySettings struct {
	Mode string `yaml:"mode"`
}

const (
	MemoryModeEmbedded = "embedded"
	MemoryModeServer   = "server"
	MemoryModeHybrid   = "hybrid"
)

// PromotionSettings tunes internal/concepts.PromotionConfig from config.yaml.
// Zero values mean "use the built-in default" (see EffectivePromotionMentionThresholds).
type PromotionSettings struct {
	MinMentionsProvisional int   `yaml:"min_mentions_provisional"`
	MinMentionsTracked     int   `yaml:"min_mentions_tracked"`
	RecencyWindowSecs      int64 `yaml:"recency_window_secs"`
}

// SupervisorYAML tunes the VersioningSupervisor's auto-* gates from
// config.yaml. Zero values mean "use the built-in default"; the enabled
// flags use *bool so an explicit `false` in YAML is distinguishable from
// "not set" (see EffectiveVersioningSupervisorGates).
type SupervisorYAML struct {
	AutoBranchingEnabled *bool  `yaml:"auto_branching_enabled"`
	AutoRollbackEnabled  *bool  `yaml:"auto_rollback_enabled"`
	AutoMergeEnabled     *bool  `yaml:"auto_merge_enabled"`
	DefaultMergeStrategy string `yaml:"default_merge_strategy"`
}

// Capability policy names recognized under the top-level capability_policy
// key, matching spec §6's `deny_all | safe_only | allow_all` enumeration
// plus the teacher-style addition of a memory-only policy.
const (
	CapabilityPolicyDenyAll  = "deny_all"
	CapabilityPolicySafeOnly = "safe_only"
	CapabilityPolicyAllowAll = "allow_all"
	CapabilityPolicyMemory   = "memory_only"
)

// SupervisorSettings are the effective runtime values used to configure the
// process supervisor and monitor scheduler.
type SupervisorSettings struct {
	AgentBinary     string
	MonitorSchedule string
}

const defaultMonitorSchedule = "@every 30s"

// EffectiveSupervisorSettings returns validated supervisor settings with
// defaults. A missing or unreadable config file falls back to defaults
// rather than failing the caller.
func EffectiveSupervisorSettings() SupervisorSettings {
	cfg := SupervisorSettings{MonitorSchedule: defaultMonitorSchedule}

	s, err := LoadSettings()
	if err != nil {
		return cfg
	}

	if s.AgentBinary != "" {
		cfg.AgentBinary = s.AgentBinary
	}
	if s.MonitorSchedule != "" {
		cfg.MonitorSchedule = s.MonitorSchedule
	}
	return cfg
}

// EffectivePromotionThreshold returns the configured concept promotion
// threshold, or fallback if the config cannot be loaded or the threshold is
// unset or out of the valid (0, 1] range.
func EffectivePromotionThreshold(fallback float64) float64 {
	s, err := LoadSettings()
	if err != nil || s.PromotionThreshold <= 0 || s.PromotionThreshold > 1 {
		return fallback
	}
	return s.PromotionThreshold
}

// EffectivePromotionMentionThresholds returns the configured
// min_mentions_provisional/min_mentions_tracked/recency_window_secs,
// falling back to each of fallbackProvisional, fallbackTracked,
// fallbackRecencySecs individually for whichever is unset (<= 0) or the
// config file can't be read. Callers pass concepts.DefaultPromotionConfig's
// fields as fallbacks so app stays independent of the concepts package.
func EffectivePromotionMentionThresholds(fallbackProvisional, fallbackTracked int, fallbackRecencySecs int64) (provisional, tracked int, recencySecs int64) {
	provisional, tracked, recencySecs = fallbackProvisional, fallbackTracked, fallbackRecencySecs

	s, err := LoadSettings()
	if err != nil {
		return provisional, tracked, recencySecs
	}
	if s.Promotion.MinMentionsProvisional > 0 {
		provisional = s.Promotion.MinMentionsProvisional
	}
	if s.Promotion.MinMentionsTracked > 0 {
		tracked = s.Promotion.MinMentionsTracked
	}
	if s.Promotion.RecencyWindowSecs > 0 {
		recencySecs = s.Promotion.RecencyWindowSecs
	}
	return provisional, tracked, recencySecs
}

// EffectiveMemoryMode returns the configured memory.mode, defaulting to
// MemoryModeEmbedded (the only mode the engine currently implements;
// Server and Hybrid parse but are not yet wired to a backend).
func EffectiveMemoryMode() string {
	s, err := LoadSettings()
	if err != nil || s.Memory.Mode == "" {
		return MemoryModeEmbedded
	}
	return s.Memory.Mode
}

// EffectiveCapabilityPolicyName returns the configured capability_policy
// name, defaulting to fallback if unset or the config file can't be read.
func EffectiveCapabilityPolicyName(fallback string) string {
	s, err := LoadSettings()
	if err != nil || s.CapabilityPolicy == "" {
		return fallback
	}
	return s.CapabilityPolicy
}

// EffectiveVersioningSupervisorGates returns the configured
// auto_branching_enabled/auto_rollback_enabled/auto_merge_enabled flags
// and default_merge_strategy, using each of the fallback* arguments
// individually when a flag is unset in config.yaml or the file is
// unreadable. Callers pass
// supervisor.DefaultVersioningSupervisorConfig's fields as fallbacks so
// app stays independent of the supervisor package.
func EffectiveVersioningSupervisorGates(fallbackBranching, fallbackRollback, fallbackMerge bool, fallbackStrategy string) (branching, rollback, merge bool, strategy string) {
	branching, rollback, merge, strategy = fallbackBranching, fallbackRollback, fallbackMerge, fallbackStrategy

	s, err := LoadSettings()
	if err != nil {
		return branching, rollback, merge, strategy
	}
	if s.Supervisor.AutoBranchingEnabled != nil {
		branching = *s.Supervisor.AutoBranchingEnabled
	}
	if s.Supervisor.AutoRollbackEnabled != nil {
		rollback = *s.Supervisor.AutoRollbackEnabled
	}
	if s.Supervisor.AutoMergeEnabled != nil {
		merge = *s.Supervisor.AutoMergeEnabled
	}
	if s.Supervisor.DefaultMergeStrategy != "" {
		strategy = s.Supervisor.DefaultMergeStrategy
	}
	return branching, rollback, merge, strategy
}

// settingsOnce, settings, settingsErr implement the sync.Once lazy-load singleton for config.
// dbPathOverrideMu and dbPathOverride implement a mutex-protected process-wide override for CLI --db-path.
// These globals are required by the sync.Once pattern and the RWMutex pattern; they cannot be avoided.
//
//nolint:gochecknoglobals // sync.Once singleton + RWMutex override are intentional process-wide state
var (
	settingsOnce sync.Once
	settings     Settings
	settingsErr  error

	dbPathOverrideMu sync.RWMutex
	dbPathOverride   string
)

// SetDBPathOverride sets a process-wide database path override.
// Intended for CLI flag support (e.g. --db-path).
func SetDBPathOverride(path string) {
	dbPathOverrideMu.Lock()
	dbPathOverride = path
	dbPathOverrideMu.Unlock()
}

func getDBPathOverride() string {
	dbPathOverrideMu.RLock()
	v := dbPathOverride
	dbPathOverrideMu.RUnlock()
	return v
}

// LoadSettings loads configuration once using the documented lookup order.
// Lookup order (first found wins):
// 1) ~/.config/thymos/config.yaml
// 2) /etc/thymos/config.yaml
// 3) ./config.yaml (lowest priority; allows repo-local overrides if desired)
// Environment variables are handled separately.
func LoadSettings() (Settings, error) {
	settingsOnce.Do(func() {
		settings = Settings{}

		// 1) User config (~/.config/thymos/config.yaml)
		dir, err := ConfigDir()
		if err != nil {
			settingsErr = err
			return
		}
		if s, err := loadSettingsFile(filepath.Join(dir, "config.yaml")); err == nil {
			settings = s
			return
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			settingsErr = err
			return
		}

		// 2) /etc
		if s, err := loadSettingsFile(filepath.Join(string(os.PathSeparator), "etc", "thymos", "config.yaml")); err == nil {
			settings = s
			return
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			settingsErr = err
			return
		}

		// 3) Local ./config.yaml (lowest priority)
		if s, err := loadSettingsFile("config.yaml"); err == nil {
			settings = s
			return
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			settingsErr = err
			return
		}
	})

	return settings, settingsErr
}

func loadSettingsFile(path string) (Settings, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}

	var s Settings
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}
