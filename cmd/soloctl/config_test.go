package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadServiceConfigDefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "config.toml")
	content := `
app_id = "notes-app"
poll_interval_ms = 100
activate_timeout_ms = 750
heartbeat_seconds = 2
diag_listen_addr = "127.0.0.1:9180"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadServiceConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.AppID != "notes-app" {
		t.Fatalf("unexpected app id: %q", cfg.AppID)
	}
	if cfg.PollInterval != 100*time.Millisecond {
		t.Fatalf("unexpected poll interval: %v", cfg.PollInterval)
	}
	if cfg.ActivateTimeout != 750*time.Millisecond {
		t.Fatalf("unexpected activate timeout: %v", cfg.ActivateTimeout)
	}
	if cfg.HeartbeatInterval != 2*time.Second {
		t.Fatalf("unexpected heartbeat: %v", cfg.HeartbeatInterval)
	}
	if cfg.DiagListenAddr != "127.0.0.1:9180" {
		t.Fatalf("unexpected diag addr: %q", cfg.DiagListenAddr)
	}
}

func TestLoadServiceConfigKeepsDefaultsWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`app_id = "notes-app"`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadServiceConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Fatalf("expected default poll interval, got %v", cfg.PollInterval)
	}
	if cfg.ActivateTimeout != time.Second {
		t.Fatalf("expected default activate timeout, got %v", cfg.ActivateTimeout)
	}
	if cfg.DiagListenAddr != "" {
		t.Fatalf("expected diagnostics disabled by default, got %q", cfg.DiagListenAddr)
	}
}

func TestLoadServiceConfigAppProfileIndirection(t *testing.T) {
	dir := t.TempDir()
	runtimeDir := t.TempDir()

	profilePath := filepath.Join(dir, "profile.toml")
	profile := `
app_id = "notes-app"
display_name = "Notes"
runtime_dir = "` + runtimeDir + `"
`
	if err := os.WriteFile(profilePath, []byte(profile), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}

	path := filepath.Join(dir, "config.toml")
	content := `
app_id = "overridden-below"
app_profile_path = "profile.toml"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadServiceConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.AppID != "notes-app" {
		t.Fatalf("profile app id must win, got %q", cfg.AppID)
	}
	if cfg.RuntimeDir != runtimeDir {
		t.Fatalf("unexpected runtime dir: %q", cfg.RuntimeDir)
	}
}

func TestLoadServiceConfigRejectsBadDurations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`
app_id = "notes-app"
poll_interval_ms = 0
`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := loadServiceConfig(path); err == nil {
		t.Fatalf("expected rejection of zero poll interval")
	}
}

func TestLoadServiceConfigRequiresAppID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`app_id = "  "`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := loadServiceConfig(path); err == nil {
		t.Fatalf("expected missing app_id rejection")
	}
}
