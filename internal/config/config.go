package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spektr-org/flightquery/translator"
)

// Providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Config holds the resolved application configuration.
type Config struct {
	Addr      string
	RateLimit int // requests per minute per client, 0 disables

	Provider  string
	APIKey    string
	Model     string
	Endpoint  string
	MaxTokens int
	Timeout   time.Duration

	RegionsFile string // empty: no overlay
	HistoryDSN  string
	TopK        int
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Addr:       ":8080",
		RateLimit:  60,
		Provider:   ProviderAnthropic,
		MaxTokens:  translator.DefaultMaxTokens,
		Timeout:    30 * time.Second,
		HistoryDSN: ":memory:",
		TopK:       5,
	}
}

// Load resolves configuration: defaults, then the TOML file at path (the
// XDG default when path is empty), then environment variables. With no
// regions file configured, DefaultRegionsPath is used if it exists.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}
	file, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := cfg.merge(file); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	if cfg.RegionsFile == "" {
		if def := DefaultRegionsPath(); fileExists(def) {
			cfg.RegionsFile = def
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) merge(f FileConfig) error {
	if f.Server.Addr != nil {
		c.Addr = *f.Server.Addr
	}
	if f.Server.RateLimit != nil {
		c.RateLimit = *f.Server.RateLimit
	}
	if f.Translator.Provider != nil {
		c.Provider = *f.Translator.Provider
	}
	if f.Translator.APIKey != nil {
		c.APIKey = *f.Translator.APIKey
	}
	if f.Translator.Model != nil {
		c.Model = *f.Translator.Model
	}
	if f.Translator.Endpoint != nil {
		c.Endpoint = *f.Translator.Endpoint
	}
	if f.Translator.MaxTokens != nil {
		c.MaxTokens = *f.Translator.MaxTokens
	}
	if f.Translator.Timeout != nil {
		d, err := time.ParseDuration(*f.Translator.Timeout)
		if err != nil {
			return fmt.Errorf("invalid translator timeout %q: %w", *f.Translator.Timeout, err)
		}
		c.Timeout = d
	}
	if f.Data.RegionsFile != nil {
		c.RegionsFile = *f.Data.RegionsFile
	}
	if f.Data.HistoryDSN != nil {
		c.HistoryDSN = *f.Data.HistoryDSN
	}
	if f.Data.TopK != nil {
		c.TopK = *f.Data.TopK
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Addr = getEnv("FLIGHTQUERY_ADDR", c.Addr)
	c.Provider = strings.ToLower(getEnv("FLIGHTQUERY_PROVIDER", c.Provider))
	c.Model = getEnv("FLIGHTQUERY_MODEL", c.Model)
	c.HistoryDSN = getEnv("FLIGHTQUERY_HISTORY_DSN", c.HistoryDSN)
	c.RegionsFile = getEnv("FLIGHTQUERY_REGIONS_FILE", c.RegionsFile)
	if secs := getEnvAsInt("FLIGHTQUERY_TIMEOUT", -1); secs >= 0 {
		c.Timeout = time.Duration(secs) * time.Second
	}

	switch c.Provider {
	case ProviderGemini:
		c.APIKey = getEnv("GEMINI_API_KEY", c.APIKey)
	default:
		c.APIKey = getEnv("ANTHROPIC_API_KEY", c.APIKey)
	}
}

// Validate checks the resolved values.
func (c *Config) Validate() error {
	if c.Provider != ProviderAnthropic && c.Provider != ProviderGemini {
		return fmt.Errorf("unknown provider %q (want %s or %s)", c.Provider, ProviderAnthropic, ProviderGemini)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max-tokens must be positive")
	}
	if c.TopK <= 0 {
		return fmt.Errorf("top-k must be positive")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate-limit must not be negative")
	}
	return nil
}

// Generator builds the configured text-generation client.
func (c *Config) Generator() (translator.Generator, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("%s API key is required", c.Provider)
	}
	tc := translator.Config{
		APIKey:    c.APIKey,
		Model:     c.Model,
		Endpoint:  c.Endpoint,
		MaxTokens: c.MaxTokens,
		Timeout:   c.Timeout,
	}
	if c.Provider == ProviderGemini {
		return translator.NewGemini(tc), nil
	}
	return translator.NewAnthropic(tc), nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
