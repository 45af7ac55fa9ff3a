package config

import (
	"os"
	"path/filepath"
)

// XDGConfigHome returns the XDG config home or a default fallback.
func XDGConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".config")
}

// DefaultConfigPath returns the default TOML config path.
func DefaultConfigPath() string {
	return filepath.Join(XDGConfigHome(), "flightquery", "config.toml")
}

// DefaultRegionsPath returns where a region overlay is looked for when none
// is configured.
func DefaultRegionsPath() string {
	return filepath.Join(XDGConfigHome(), "flightquery", "regions.yaml")
}
