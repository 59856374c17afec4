package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/soloctl/internal/config"
	"github.com/danmuck/soloctl/internal/instance"
)

// soloctl config.toml key mapping to daemon runtime settings.
type fileConfig struct {
	AppID             string `toml:"app_id"`
	RuntimeDir        string `toml:"runtime_dir"`
	PollIntervalMS    int    `toml:"poll_interval_ms"`
	ActivateTimeoutMS int    `toml:"activate_timeout_ms"`
	HeartbeatSeconds  int    `toml:"heartbeat_seconds"`
	DiagListenAddr    string `toml:"diag_listen_addr"`
	AppProfilePath    string `toml:"app_profile_path"`
}

// soloctl loader for TOML config with default overlay.
func loadServiceConfig(path string) (instance.ServiceConfig, error) {
	cfg := instance.DefaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return instance.ServiceConfig{}, fmt.Errorf("load soloctl config: %w", err)
	}

	if meta.IsDefined("app_id") {
		cfg.AppID = strings.TrimSpace(raw.AppID)
	}
	if meta.IsDefined("runtime_dir") {
		cfg.RuntimeDir = strings.TrimSpace(raw.RuntimeDir)
	}
	if meta.IsDefined("poll_interval_ms") {
		if raw.PollIntervalMS <= 0 {
			return instance.ServiceConfig{}, fmt.Errorf("load soloctl config: poll_interval_ms must be positive")
		}
		cfg.PollInterval = time.Duration(raw.PollIntervalMS) * time.Millisecond
	}
	if meta.IsDefined("activate_timeout_ms") {
		if raw.ActivateTimeoutMS <= 0 {
			return instance.ServiceConfig{}, fmt.Errorf("load soloctl config: activate_timeout_ms must be positive")
		}
		cfg.ActivateTimeout = time.Duration(raw.ActivateTimeoutMS) * time.Millisecond
	}
	if meta.IsDefined("heartbeat_seconds") {
		if raw.HeartbeatSeconds <= 0 {
			return instance.ServiceConfig{}, fmt.Errorf("load soloctl config: heartbeat_seconds must be positive")
		}
		cfg.HeartbeatInterval = time.Duration(raw.HeartbeatSeconds) * time.Second
	}
	if meta.IsDefined("diag_listen_addr") {
		cfg.DiagListenAddr = strings.TrimSpace(raw.DiagListenAddr)
	}

	profilePath := strings.TrimSpace(raw.AppProfilePath)
	if profilePath != "" {
		if !filepath.IsAbs(profilePath) {
			profilePath = filepath.Join(filepath.Dir(path), profilePath)
		}
		profile, err := config.LoadAppProfile(profilePath)
		if err != nil {
			return instance.ServiceConfig{}, fmt.Errorf("load soloctl config: %w", err)
		}
		cfg.AppID = profile.AppID
		if strings.TrimSpace(profile.RuntimeDir) != "" {
			cfg.RuntimeDir = profile.RuntimeDir
		}
	}

	if strings.TrimSpace(cfg.AppID) == "" {
		return instance.ServiceConfig{}, fmt.Errorf("load soloctl config: app_id is required")
	}
	return cfg, nil
}
