package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/albertocavalcante/modlens/internal/log"
)

// ConfigFileName is the name of the project-level config file.
const ConfigFileName = "modlens.toml"

// ConfigDirName is the name of the project-level config directory.
const ConfigDirName = ".modlens"

// GlobalConfigDir is the name of the global config directory inside user's config.
const GlobalConfigDir = "modlens"

// Load loads configuration from all layers in order of precedence:
//  1. Built-in defaults
//  2. Global user config ($XDG_CONFIG_HOME/modlens/config.toml)
//  3. Project config (.modlens/config.toml or modlens.toml)
//  4. Environment variables (MODLENS_*)
//
// CLI flags are applied separately after Load() returns.
func Load() *Config {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return LoadFrom(wd)
}

// LoadFrom loads configuration starting from a specific directory.
func LoadFrom(dir string) *Config {
	cfg := NewConfig()

	// Layer 2: Global user config
	if globalCfg := loadGlobalConfig(); globalCfg != nil {
		cfg.Merge(globalCfg)
	}

	// Layer 3: Project config from specified directory
	if projectCfg := loadProjectConfigFrom(dir); projectCfg != nil {
		cfg.Merge(projectCfg)
	}

	// Layer 4: Environment variables
	applyEnvironmentVariables(cfg)

	return cfg
}

// LoadFile loads defaults, then the given file in place of the global and
// project layers, then environment variables. Unlike the implicit layers a
// missing or malformed file is an error.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var fileCfg Config
	if _, err := toml.Decode(string(data), &fileCfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg := NewConfig()
	cfg.Merge(&fileCfg)
	applyEnvironmentVariables(cfg)
	return cfg, nil
}

// loadGlobalConfig loads the global user configuration.
func loadGlobalConfig() *Config {
	path := GetGlobalConfigPath()
	if path == "" {
		return nil
	}
	return loadConfigFile(path)
}

// loadProjectConfigFrom looks for project configuration starting from the given directory.
func loadProjectConfigFrom(dir string) *Config {
	// Search up the directory tree for config files
	current := dir
	for {
		for _, p := range GetProjectConfigPaths(current) {
			if cfg := loadConfigFile(p); cfg != nil {
				return cfg
			}
		}

		// Stop at filesystem root or mod/repository root
		if isProjectRoot(current) {
			break
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	return nil
}

// isProjectRoot checks if the directory is a mod root or repository root.
func isProjectRoot(dir string) bool {
	markers := []string{"descriptor.mod", ".git"}
	for _, marker := range markers {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

// loadConfigFile loads a configuration from a TOML file.
func loadConfigFile(path string) *Config {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		log.Warn("ignoring malformed config file", "path", path, "error", err)
		return nil
	}

	return &cfg
}

// applyEnvironmentVariables applies MODLENS_* environment variables to the config.
func applyEnvironmentVariables(cfg *Config) {
	if v := os.Getenv("MODLENS_GAME_ROOT"); v != "" {
		cfg.Game.Root = v
	}
	if v := os.Getenv("MODLENS_MOD_ROOT"); v != "" {
		cfg.Mod.Root = v
	}

	applyBoolEnv("MODLENS_WATCH_ENABLED", &cfg.Watch.Enabled)
	applyIntEnv("MODLENS_WATCH_INTERVAL_MS", &cfg.Watch.IntervalMS)
	applyIntEnv("MODLENS_WATCH_MAX_PENDING", &cfg.Watch.MaxPending)
	// MODLENS_WATCH_IGNORE: comma-separated globs
	if v := os.Getenv("MODLENS_WATCH_IGNORE"); v != "" {
		cfg.Watch.Ignore = append(cfg.Watch.Ignore, splitAndTrim(v)...)
	}

	applyBoolEnv("MODLENS_LOAD_PARALLEL", &cfg.Load.Parallel)

	// MODLENS_RESOURCES_ENABLED: comma-separated list of kinds to build
	if v := os.Getenv("MODLENS_RESOURCES_ENABLED"); v != "" {
		cfg.Resources.Enabled = splitAndTrim(v)
	}
	// MODLENS_RESOURCES_DISABLED: comma-separated list of kinds to skip
	if v := os.Getenv("MODLENS_RESOURCES_DISABLED"); v != "" {
		cfg.Resources.Disabled = splitAndTrim(v)
	}

	if v := os.Getenv("MODLENS_LOG_VERBOSITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Log.Verbosity = &n
		}
	}
	if v := os.Getenv("MODLENS_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// splitAndTrim splits a comma-separated string and trims whitespace.
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// applyBoolEnv applies a boolean environment variable to a pointer.
func applyBoolEnv(envVar string, target **bool) {
	if v := os.Getenv(envVar); v != "" {
		v = strings.ToLower(v)
		if v == "true" || v == "1" || v == "yes" {
			t := true
			*target = &t
		} else if v == "false" || v == "0" || v == "no" {
			f := false
			*target = &f
		}
	}
}

// applyIntEnv applies a positive integer environment variable.
func applyIntEnv(envVar string, target *int) {
	if v := os.Getenv(envVar); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*target = n
		}
	}
}

// GetGlobalConfigPath returns the path to the global config file.
func GetGlobalConfigPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(configDir, GlobalConfigDir, "config.toml")
}

// GetProjectConfigPaths returns potential project config paths for a given directory.
func GetProjectConfigPaths(dir string) []string {
	return []string{
		filepath.Join(dir, ConfigDirName, "config.toml"),
		filepath.Join(dir, ConfigFileName),
	}
}

// ErrNoGameRoot is returned by Validate when no base tree is configured.
var ErrNoGameRoot = errors.New("config: game.root is not set")

// Validate checks that the configuration can drive a workspace.
func (c *Config) Validate() error {
	if c.Game.Root == "" {
		return ErrNoGameRoot
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: unknown log.format %q", c.Log.Format)
	}
	if v := c.LogVerbosity(); v < 0 || v > 4 {
		return fmt.Errorf("config: log.verbosity %d out of range 0-4", v)
	}
	return nil
}
