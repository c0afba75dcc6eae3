// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/fibdrv/lib/fibonacci"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "fibdrv.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return configPath
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}
	if cfg.Engine.Algorithm != string(fibonacci.AlgorithmTable) {
		t.Errorf("expected algorithm=table, got %s", cfg.Engine.Algorithm)
	}
	if !cfg.FUSE.Enabled {
		t.Error("expected fuse.enabled=true by default")
	}
	if cfg.Metrics.ListenAddress != "" {
		t.Errorf("expected metrics disabled by default, got %q", cfg.Metrics.ListenAddress)
	}
}

func TestLoad_RequiresEnvVar(t *testing.T) {
	t.Setenv(EnvVar, "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when FIBDRV_CONFIG not set, got nil")
	}
	if !strings.HasPrefix(err.Error(), "FIBDRV_CONFIG environment variable not set") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_WithEnvVar(t *testing.T) {
	configPath := writeConfig(t, `
environment: staging
paths:
  root: /test/root
engine:
  algorithm: rolling
`)
	t.Setenv(EnvVar, configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Environment != Staging {
		t.Errorf("expected environment=staging, got %s", cfg.Environment)
	}
	if cfg.Engine.Algorithm != "rolling" {
		t.Errorf("expected algorithm=rolling, got %s", cfg.Engine.Algorithm)
	}
	if cfg.Paths.Socket != "/test/root/fibdrv.sock" {
		t.Errorf("socket default not derived from root: %s", cfg.Paths.Socket)
	}
	if cfg.Paths.Mountpoint != "/test/root/dev" {
		t.Errorf("mountpoint default not derived from root: %s", cfg.Paths.Mountpoint)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestLoadFile_Malformed(t *testing.T) {
	configPath := writeConfig(t, "engine: [unterminated\n")
	if _, err := LoadFile(configPath); err == nil {
		t.Error("expected parse error, got nil")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	configPath := writeConfig(t, `
environment: development
paths:
  root: /base
fuse:
  enabled: true
development:
  paths:
    socket: /override/dev.sock
  fuse:
    enabled: false
  log:
    level: debug
production:
  log:
    level: error
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Paths.Socket != "/override/dev.sock" {
		t.Errorf("socket = %s, want development override", cfg.Paths.Socket)
	}
	if cfg.FUSE.Enabled {
		t.Error("fuse.enabled override not applied")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log.level = %s, want debug", cfg.Log.Level)
	}
	if cfg.Paths.Root != "/base" {
		t.Errorf("root = %s, want base value", cfg.Paths.Root)
	}
}

func TestProductionDefaults(t *testing.T) {
	configPath := writeConfig(t, `
environment: production
paths:
  root: /srv/fibdrv
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("production log.level = %s, want warn", cfg.Log.Level)
	}
	timeout, err := cfg.IdleTimeout()
	if err != nil || timeout != 30*time.Second {
		t.Errorf("production idle timeout = %v, %v; want 30s", timeout, err)
	}
}

func TestExpandVars(t *testing.T) {
	t.Setenv("FIBDRV_TEST_VAR", "from-env")

	vars := map[string]string{"FIBDRV_ROOT": "/root-dir"}
	tests := []struct {
		input string
		want  string
	}{
		{"${FIBDRV_ROOT}/x", "/root-dir/x"},
		{"${FIBDRV_TEST_VAR}/y", "from-env/y"},
		{"${FIBDRV_UNSET_VAR:-fallback}/z", "fallback/z"},
		{"${FIBDRV_UNSET_VAR}", ""},
		{"/plain/path", "/plain/path"},
	}

	for _, test := range tests {
		if got := expandVars(test.input, vars); got != test.want {
			t.Errorf("expandVars(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad environment", func(c *Config) { c.Environment = "qa" }, "invalid environment"},
		{"no root", func(c *Config) { c.Paths.Root = "" }, "paths.root is required"},
		{"no socket", func(c *Config) { c.Paths.Socket = "" }, "paths.socket is required"},
		{"fuse without mountpoint", func(c *Config) { c.Paths.Mountpoint = "" }, "paths.mountpoint is required"},
		{"fuse disabled without mountpoint", func(c *Config) {
			c.FUSE.Enabled = false
			c.Paths.Mountpoint = ""
		}, ""},
		{"unknown algorithm", func(c *Config) { c.Engine.Algorithm = "matrix" }, "unknown algorithm"},
		{"bad idle timeout", func(c *Config) { c.Session.IdleTimeout = "soon" }, "session.idle_timeout"},
		{"negative idle timeout", func(c *Config) { c.Session.IdleTimeout = "-1s" }, "must not be negative"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			cfg.expandVariables()
			test.mutate(cfg)

			err := cfg.Validate()
			if test.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, test.wantErr)
			}
		})
	}
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, test := range tests {
		cfg := Default()
		cfg.Log.Level = test.level
		got, err := cfg.LogLevel()
		if err != nil || got != test.want {
			t.Errorf("LogLevel(%q) = %v, %v; want %v", test.level, got, err, test.want)
		}
	}
}

func TestIdleTimeoutZeroDisables(t *testing.T) {
	cfg := Default()
	cfg.Session.IdleTimeout = "0"
	timeout, err := cfg.IdleTimeout()
	if err != nil || timeout != 0 {
		t.Errorf("IdleTimeout() = %v, %v; want 0, nil", timeout, err)
	}
}

func TestEnsurePaths(t *testing.T) {
	root := filepath.Join(t.TempDir(), "fibdrv")
	cfg := Default()
	cfg.Paths.Root = root
	cfg.Paths.Socket = filepath.Join(root, "run", "fibdrv.sock")
	cfg.Paths.Mountpoint = filepath.Join(root, "dev")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths: %v", err)
	}
	for _, dir := range []string{root, filepath.Join(root, "run"), filepath.Join(root, "dev")} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("%s not created: %v", dir, err)
		}
	}
}
