// Package config provides configuration management for modlens.
// It supports multi-layer configuration with precedence:
//  1. Built-in defaults (lowest priority)
//  2. Global user config ($XDG_CONFIG_HOME/modlens/config.toml)
//  3. Project config (.modlens/config.toml or modlens.toml)
//  4. Environment variables (MODLENS_*)
//  5. CLI flags (highest priority)
package config

import (
	"slices"
	"time"
)

// Config is the main configuration struct for modlens.
type Config struct {
	// Game locates the base game installation.
	Game GameConfig `toml:"game"`

	// Mod locates the override tree.
	Mod ModConfig `toml:"mod"`

	// Watch configures the change notifiers.
	Watch WatchConfig `toml:"watch"`

	// Load configures the initial cache load.
	Load LoadConfig `toml:"load"`

	// Resources selects which resource caches are built.
	Resources ResourcesConfig `toml:"resources"`

	// Log configures diagnostics.
	Log LogConfig `toml:"log"`
}

// GameConfig holds the base tree location.
type GameConfig struct {
	// Root is the base game directory.
	Root string `toml:"root"`
}

// ModConfig holds the override tree location.
type ModConfig struct {
	// Root is the mod directory. Empty means no override tree.
	Root string `toml:"root"`
}

// WatchConfig holds change notifier settings.
type WatchConfig struct {
	// Enabled specifies whether file changes are delivered.
	Enabled *bool `toml:"enabled"`

	// IntervalMS is the consolidation period in milliseconds.
	IntervalMS int `toml:"interval_ms"`

	// MaxPending bounds the pending event list.
	MaxPending int `toml:"max_pending"`

	// Ignore are extra doublestar globs for files never reported.
	Ignore []string `toml:"ignore"`
}

// LoadConfig holds initial load settings.
type LoadConfig struct {
	// Parallel parses the initial file set concurrently.
	Parallel *bool `toml:"parallel"`
}

// ResourcesConfig specifies which resource kinds to build.
type ResourcesConfig struct {
	// Enabled is the list of kinds to build. Empty means all available.
	Enabled []string `toml:"enabled"`

	// Disabled is the list of kinds to skip.
	// Takes precedence over Enabled.
	Disabled []string `toml:"disabled"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Verbosity is 0 (error) through 4 (trace).
	Verbosity *int `toml:"verbosity"`

	// Format is "text" or "json".
	Format string `toml:"format"`
}

// Defaults for the watch section.
const (
	DefaultIntervalMS = 700
	DefaultMaxPending = 4096
)

// NewConfig creates a new Config with built-in defaults.
func NewConfig() *Config {
	trueVal := true
	verbosity := 1
	return &Config{
		Watch: WatchConfig{
			Enabled:    &trueVal,
			IntervalMS: DefaultIntervalMS,
			MaxPending: DefaultMaxPending,
			Ignore:     []string{},
		},
		Load: LoadConfig{
			Parallel: &trueVal,
		},
		Resources: ResourcesConfig{
			Enabled:  []string{},
			Disabled: []string{},
		},
		Log: LogConfig{
			Verbosity: &verbosity,
			Format:    "text",
		},
	}
}

// IsResourceEnabled checks if a resource kind is enabled.
func (c *Config) IsResourceEnabled(kind string) bool {
	if slices.Contains(c.Resources.Disabled, kind) {
		return false
	}
	if len(c.Resources.Enabled) == 0 {
		return true
	}
	return slices.Contains(c.Resources.Enabled, kind)
}

// EnabledResources filters available, preserving its order.
func (c *Config) EnabledResources(available []string) []string {
	var enabled []string
	for _, kind := range available {
		if c.IsResourceEnabled(kind) {
			enabled = append(enabled, kind)
		}
	}
	return enabled
}

// WatchEnabled reports whether notifiers start delivering.
func (c *Config) WatchEnabled() bool {
	return c.Watch.Enabled == nil || *c.Watch.Enabled
}

// WatchInterval returns the consolidation period.
func (c *Config) WatchInterval() time.Duration {
	if c.Watch.IntervalMS <= 0 {
		return DefaultIntervalMS * time.Millisecond
	}
	return time.Duration(c.Watch.IntervalMS) * time.Millisecond
}

// ParallelLoad reports whether the initial load runs concurrently.
func (c *Config) ParallelLoad() bool {
	return c.Load.Parallel == nil || *c.Load.Parallel
}

// LogVerbosity returns the configured verbosity.
func (c *Config) LogVerbosity() int {
	if c.Log.Verbosity == nil {
		return 1
	}
	return *c.Log.Verbosity
}

// Merge merges another config into this one (other takes precedence).
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Game.Root != "" {
		c.Game.Root = other.Game.Root
	}
	if other.Mod.Root != "" {
		c.Mod.Root = other.Mod.Root
	}

	// Merge watch config
	if other.Watch.Enabled != nil {
		c.Watch.Enabled = other.Watch.Enabled
	}
	if other.Watch.IntervalMS > 0 {
		c.Watch.IntervalMS = other.Watch.IntervalMS
	}
	if other.Watch.MaxPending > 0 {
		c.Watch.MaxPending = other.Watch.MaxPending
	}
	if len(other.Watch.Ignore) > 0 {
		c.Watch.Ignore = append(c.Watch.Ignore, other.Watch.Ignore...)
	}

	if other.Load.Parallel != nil {
		c.Load.Parallel = other.Load.Parallel
	}

	// Merge resources config
	if len(other.Resources.Enabled) > 0 {
		c.Resources.Enabled = other.Resources.Enabled
	}
	if len(other.Resources.Disabled) > 0 {
		c.Resources.Disabled = append(c.Resources.Disabled, other.Resources.Disabled...)
	}

	// Merge log config
	if other.Log.Verbosity != nil {
		c.Log.Verbosity = other.Log.Verbosity
	}
	if other.Log.Format != "" {
		c.Log.Format = other.Log.Format
	}
}
