// Package config loads app profile files: the identity under which an
// application participates in single-instance coordination.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// AppProfile names one coordinated application and where its runtime files
// live. Two processes coordinate iff they share an AppID and RuntimeDir.
type AppProfile struct {
	AppID       string `toml:"app_id"`
	DisplayName string `toml:"display_name"`
	RuntimeDir  string `toml:"runtime_dir"`
}

func LoadAppProfile(path string) (AppProfile, error) {
	var profile AppProfile
	if err := loadToml(path, &profile); err != nil {
		return AppProfile{}, err
	}
	if profile.DisplayName == "" {
		profile.DisplayName = profile.AppID
	}
	if err := ValidateAppProfile(profile); err != nil {
		return AppProfile{}, err
	}
	return profile, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("profile load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("profile parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateAppProfile(profile AppProfile) error {
	appID := strings.TrimSpace(profile.AppID)
	if appID == "" {
		return fmt.Errorf("app profile missing app_id")
	}
	if strings.ContainsAny(appID, `/\`) {
		return fmt.Errorf("app profile app_id %q must not contain path separators", appID)
	}
	if dir := strings.TrimSpace(profile.RuntimeDir); dir != "" {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("app profile runtime_dir %q: %w", dir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("app profile runtime_dir %q is not a directory", dir)
		}
	}
	return nil
}
