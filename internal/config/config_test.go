package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/muurk/fleetsync/internal/reconcile"
)

func TestGetConfigDir(t *testing.T) {
	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	if !strings.Contains(configDir, "fleetsync") {
		t.Errorf("GetConfigDir() = %v, should contain 'fleetsync'", configDir)
	}

	switch runtime.GOOS {
	case "darwin", "linux":
		if os.Getenv("XDG_CONFIG_HOME") == "" && !strings.Contains(configDir, ".config") {
			t.Errorf("Unix config dir should contain '.config', got: %v", configDir)
		}
	}
}

func TestGetConfigDirHonoursXDG(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME only applies on linux")
	}
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	dir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if dir != filepath.Join("/tmp/xdg", "fleetsync") {
		t.Errorf("GetConfigDir() = %v, want /tmp/xdg/fleetsync", dir)
	}
}

func TestGetConfigPath(t *testing.T) {
	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.BaseURL != "http://localhost:8080" {
		t.Errorf("API.BaseURL = %v, want http://localhost:8080", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 10*time.Second {
		t.Errorf("API.Timeout = %v, want 10s", cfg.API.Timeout)
	}
	want := reconcile.DefaultOptions()
	if cfg.Reconcile.MaxAttempts != want.MaxAttempts {
		t.Errorf("Reconcile.MaxAttempts = %v, want %v", cfg.Reconcile.MaxAttempts, want.MaxAttempts)
	}
	if cfg.Reconcile.InitialDelay != want.InitialDelay || cfg.Reconcile.DelayIncrement != want.DelayIncrement {
		t.Errorf("Reconcile delays = %v/%v, want %v/%v", cfg.Reconcile.InitialDelay, cfg.Reconcile.DelayIncrement, want.InitialDelay, want.DelayIncrement)
	}
	if cfg.Session.Backend != "file" {
		t.Errorf("Session.Backend = %v, want file", cfg.Session.Backend)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
api:
  base_url: http://fleet.example:9000
  timeout: 3s
reconcile:
  initial_delay: 250ms
  max_attempts: 5
session:
  backend: memory
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FLEETSYNC_RECONCILE_DELAY_INCREMENT", "500ms")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.BaseURL != "http://fleet.example:9000" {
		t.Errorf("API.BaseURL = %v", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 3*time.Second {
		t.Errorf("API.Timeout = %v, want 3s", cfg.API.Timeout)
	}
	if cfg.Reconcile.InitialDelay != 250*time.Millisecond {
		t.Errorf("InitialDelay = %v, want 250ms", cfg.Reconcile.InitialDelay)
	}
	if cfg.Reconcile.DelayIncrement != 500*time.Millisecond {
		t.Errorf("DelayIncrement = %v, want 500ms from env", cfg.Reconcile.DelayIncrement)
	}
	if cfg.Reconcile.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %v, want 5", cfg.Reconcile.MaxAttempts)
	}
	if cfg.Session.Backend != "memory" {
		t.Errorf("Session.Backend = %v, want memory", cfg.Session.Backend)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		API:       APIConfig{BaseURL: "http://x", Timeout: time.Second},
		Reconcile: ReconcileConfig{MaxAttempts: 3},
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"empty base url", func(c *Config) { c.API.BaseURL = "" }, true},
		{"no scheme", func(c *Config) { c.API.BaseURL = "fleet.local" }, true},
		{"zero timeout", func(c *Config) { c.API.Timeout = 0 }, true},
		{"zero attempts", func(c *Config) { c.Reconcile.MaxAttempts = 0 }, true},
		{"negative delay", func(c *Config) { c.Reconcile.InitialDelay = -time.Second }, true},
		{"cert without key", func(c *Config) { c.Events.CertPath = "events.crt" }, true},
		{"cert and key", func(c *Config) { c.Events.CertPath, c.Events.KeyPath = "events.crt", "events.key" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
