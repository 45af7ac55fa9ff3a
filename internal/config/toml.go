// Package config loads flightquery settings from TOML and the environment.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file. Pointer fields tell
// "not set" apart from zero values.
type FileConfig struct {
	Server     ServerConfig     `toml:"server"`
	Translator TranslatorConfig `toml:"translator"`
	Data       DataConfig       `toml:"data"`
}

// ServerConfig maps HTTP server settings.
type ServerConfig struct {
	Addr      *string `toml:"addr"`
	RateLimit *int    `toml:"rate-limit"`
}

// TranslatorConfig maps text-generation settings.
type TranslatorConfig struct {
	Provider  *string `toml:"provider"`
	APIKey    *string `toml:"api-key"`
	Model     *string `toml:"model"`
	Endpoint  *string `toml:"endpoint"`
	MaxTokens *int    `toml:"max-tokens"`
	Timeout   *string `toml:"timeout"`
}

// DataConfig maps dataset, region and history settings.
type DataConfig struct {
	RegionsFile *string `toml:"regions-file"`
	HistoryDSN  *string `toml:"history-dsn"`
	TopK        *int    `toml:"top-k"`
}

// LoadFile reads a TOML config from the given path. Missing file is not an error.
func LoadFile(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
