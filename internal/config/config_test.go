package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spektr-org/flightquery/translator"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ANTHROPIC_API_KEY", "GEMINI_API_KEY", "FLIGHTQUERY_ADDR", "FLIGHTQUERY_PROVIDER",
		"FLIGHTQUERY_MODEL", "FLIGHTQUERY_HISTORY_DSN", "FLIGHTQUERY_REGIONS_FILE", "FLIGHTQUERY_TIMEOUT",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.Provider != ProviderAnthropic || cfg.Timeout != 30*time.Second {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.HistoryDSN != ":memory:" || cfg.MaxTokens != translator.DefaultMaxTokens {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `[server]
addr = ":9090"
rate-limit = 10

[translator]
provider = "gemini"
model = "gemini-test"
timeout = "1500ms"

[data]
regions-file = "/etc/regions.yaml"
top-k = 3
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("FLIGHTQUERY_ADDR", ":7070")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("ANTHROPIC_API_KEY", "a-key")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Addr != ":7070" {
		t.Errorf("expected env addr, got %s", cfg.Addr)
	}
	if cfg.Provider != ProviderGemini || cfg.Model != "gemini-test" || cfg.APIKey != "g-key" {
		t.Errorf("unexpected translator settings %+v", cfg)
	}
	if cfg.Timeout != 1500*time.Millisecond || cfg.RateLimit != 10 || cfg.TopK != 3 {
		t.Errorf("unexpected file values %+v", cfg)
	}
	if cfg.RegionsFile != "/etc/regions.yaml" {
		t.Errorf("unexpected regions file %s", cfg.RegionsFile)
	}

	t.Setenv("FLIGHTQUERY_TIMEOUT", "5")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("expected env timeout, got %v", cfg.Timeout)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(bad, []byte("[translator]\ntimeout = \"soon\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(bad); err == nil {
		t.Error("expected error for invalid timeout")
	}

	t.Setenv("FLIGHTQUERY_PROVIDER", "openai")
	if _, err := Load(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestGeneratorRequiresKey(t *testing.T) {
	cfg := Defaults()
	if _, err := cfg.Generator(); err == nil {
		t.Error("expected error without API key")
	}
	cfg.APIKey = "k"
	gen, err := cfg.Generator()
	if err != nil {
		t.Fatalf("Generator failed: %v", err)
	}
	if _, ok := gen.(*translator.Anthropic); !ok {
		t.Errorf("expected Anthropic generator, got %T", gen)
	}
}

func TestDefaultConfigPathUsesXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if got := DefaultConfigPath(); got != "/tmp/xdg/flightquery/config.toml" {
		t.Errorf("unexpected path %s", got)
	}
}

func TestLoadPicksUpDefaultRegionsFile(t *testing.T) {
	clearEnv(t)
	missing := filepath.Join(t.TempDir(), "nope.toml")

	cfg, err := Load(missing)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RegionsFile != "" {
		t.Errorf("expected no regions file, got %s", cfg.RegionsFile)
	}

	def := DefaultRegionsPath()
	if err := os.MkdirAll(filepath.Dir(def), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(def, []byte("regions: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if cfg, err = Load(missing); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RegionsFile != def {
		t.Errorf("expected %s, got %s", def, cfg.RegionsFile)
	}

	t.Setenv("FLIGHTQUERY_REGIONS_FILE", "/etc/custom.yaml")
	if cfg, err = Load(missing); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RegionsFile != "/etc/custom.yaml" {
		t.Errorf("expected configured file to win, got %s", cfg.RegionsFile)
	}
}
