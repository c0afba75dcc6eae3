// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/fibdrv/lib/fibonacci"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// EnvVar names the environment variable [Load] reads the config path from.
const EnvVar = "FIBDRV_CONFIG"

// Config is the master configuration for the fibdrv daemon.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Paths configures filesystem locations.
	Paths PathsConfig `yaml:"paths"`

	// Engine configures the sequence engine.
	Engine EngineConfig `yaml:"engine"`

	// Session configures socket-held device sessions.
	Session SessionConfig `yaml:"session"`

	// FUSE configures the device mount.
	FUSE FUSEConfig `yaml:"fuse"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`

	// Log configures the structured logger.
	Log LogConfig `yaml:"log"`

	// Per-environment overrides, applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Paths   *PathsConfig   `yaml:"paths,omitempty"`
	Engine  *EngineConfig  `yaml:"engine,omitempty"`
	Session *SessionConfig `yaml:"session,omitempty"`
	FUSE    *FUSEConfig    `yaml:"fuse,omitempty"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
	Log     *LogConfig     `yaml:"log,omitempty"`
}

// PathsConfig configures filesystem locations.
type PathsConfig struct {
	// Root is the base directory for fibdrv runtime state.
	Root string `yaml:"root"`

	// Mountpoint is where the device directory is mounted.
	// Default: ${FIBDRV_ROOT}/dev
	Mountpoint string `yaml:"mountpoint"`

	// Socket is the Unix socket the daemon serves.
	// Default: ${FIBDRV_ROOT}/fibdrv.sock
	Socket string `yaml:"socket"`
}

// EngineConfig configures the sequence engine.
type EngineConfig struct {
	// Algorithm selects the engine algorithm ("table" or "rolling").
	Algorithm string `yaml:"algorithm"`

	// MaxWorkingSlots bounds the table algorithm's working memory.
	MaxWorkingSlots uint64 `yaml:"max_working_slots"`
}

// SessionConfig configures socket-held sessions.
type SessionConfig struct {
	// IdleTimeout is how long an unused socket session may hold the
	// device before a contending open reclaims it. "0" disables reclaim.
	// Default: 5m (development), 30s (production)
	IdleTimeout string `yaml:"idle_timeout"`
}

// FUSEConfig configures the device mount.
type FUSEConfig struct {
	// Enabled mounts the device directory at startup.
	Enabled bool `yaml:"enabled"`

	// AllowOther lets users other than the daemon's open the device.
	// Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool `yaml:"allow_other"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// ListenAddress is the host:port serving /metrics. Empty disables
	// the endpoint.
	ListenAddress string `yaml:"listen_address"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "fibdrv")

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:       defaultRoot,
			Mountpoint: "${FIBDRV_ROOT}/dev",
			Socket:     "${FIBDRV_ROOT}/fibdrv.sock",
		},
		Engine: EngineConfig{
			Algorithm:       string(fibonacci.AlgorithmTable),
			MaxWorkingSlots: fibonacci.DefaultMaxWorkingSlots,
		},
		Session: SessionConfig{
			IdleTimeout: "5m",
		},
		FUSE: FUSEConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the FIBDRV_CONFIG environment variable.
// There are no fallbacks: if FIBDRV_CONFIG is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your fibdrv.yaml config file, or use --config flag", EnvVar)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables do not
// override config values; the only expansion performed is ${HOME} and
// similar path variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: quieter logs, faster reclaim.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Session: &SessionConfig{IdleTimeout: "30s"},
				Log:     &LogConfig{Level: "warn"},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.Root != "" {
			c.Paths.Root = overrides.Paths.Root
		}
		if overrides.Paths.Mountpoint != "" {
			c.Paths.Mountpoint = overrides.Paths.Mountpoint
		}
		if overrides.Paths.Socket != "" {
			c.Paths.Socket = overrides.Paths.Socket
		}
	}

	if overrides.Engine != nil {
		if overrides.Engine.Algorithm != "" {
			c.Engine.Algorithm = overrides.Engine.Algorithm
		}
		if overrides.Engine.MaxWorkingSlots != 0 {
			c.Engine.MaxWorkingSlots = overrides.Engine.MaxWorkingSlots
		}
	}

	if overrides.Session != nil && overrides.Session.IdleTimeout != "" {
		c.Session.IdleTimeout = overrides.Session.IdleTimeout
	}

	if overrides.FUSE != nil {
		// Booleans are always applied from an override section.
		c.FUSE.Enabled = overrides.FUSE.Enabled
		c.FUSE.AllowOther = overrides.FUSE.AllowOther
	}

	if overrides.Metrics != nil && overrides.Metrics.ListenAddress != "" {
		c.Metrics.ListenAddress = overrides.Metrics.ListenAddress
	}

	if overrides.Log != nil && overrides.Log.Level != "" {
		c.Log.Level = overrides.Log.Level
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"FIBDRV_ROOT": c.Paths.Root,
		"HOME":        os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["FIBDRV_ROOT"] = c.Paths.Root

	c.Paths.Mountpoint = expandVars(c.Paths.Mountpoint, vars)
	c.Paths.Socket = expandVars(c.Paths.Socket, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns, checking vars
// before the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	if c.Paths.Socket == "" {
		errs = append(errs, fmt.Errorf("paths.socket is required"))
	}
	if c.FUSE.Enabled && c.Paths.Mountpoint == "" {
		errs = append(errs, fmt.Errorf("paths.mountpoint is required when fuse.enabled is set"))
	}

	if _, err := fibonacci.New(c.EngineOptions()); err != nil {
		errs = append(errs, fmt.Errorf("engine: %w", err))
	}

	if _, err := c.IdleTimeout(); err != nil {
		errs = append(errs, err)
	}

	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EngineOptions returns the sequence engine options.
func (c *Config) EngineOptions() fibonacci.Options {
	return fibonacci.Options{
		Algorithm:       fibonacci.Algorithm(c.Engine.Algorithm),
		MaxWorkingSlots: c.Engine.MaxWorkingSlots,
	}
}

// IdleTimeout parses Session.IdleTimeout.
func (c *Config) IdleTimeout() (time.Duration, error) {
	timeout, err := time.ParseDuration(c.Session.IdleTimeout)
	if err != nil {
		return 0, fmt.Errorf("session.idle_timeout: %w", err)
	}
	if timeout < 0 {
		return 0, fmt.Errorf("session.idle_timeout must not be negative, got %s", c.Session.IdleTimeout)
	}
	return timeout, nil
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
}

// EnsurePaths creates the root directory and the parents of the socket
// and mountpoint.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.Root,
		filepath.Dir(c.Paths.Socket),
	}
	if c.FUSE.Enabled {
		paths = append(paths, c.Paths.Mountpoint)
	}

	for _, path := range paths {
		if path == "" || path == "." {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}
