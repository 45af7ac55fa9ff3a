package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/spektr-org/flightquery/engine"
)

// ============================================================================
// TRANSLATOR — AI boundary for natural language → FilterSpec
// ============================================================================
// The Translator is the ONLY component that calls an external AI service.
// It receives registry metadata + user question, returns a validated
// FilterSpec and optional AggregationSpec.
// It NEVER sees raw data. Only column names, dimension shapes and region tags.
// ============================================================================

// Generator is one synchronous call to a text-generation service.
// Implementations: Anthropic (default), Gemini.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// Result is a validated translation.
type Result struct {
	Filters     engine.FilterSpec       `json:"filters,omitempty"`
	HasFilters  bool                    `json:"-"` // the reply carried a "filters" object
	Aggregation *engine.AggregationSpec `json:"aggregation,omitempty"`
	Produced    json.RawMessage         `json:"produced"` // canonical {filters, aggregation}
}

// Config holds provider configuration.
type Config struct {
	APIKey    string        // AI provider API key (consumer's key)
	Model     string        // Model name
	Endpoint  string        // API endpoint override (empty = default)
	MaxTokens int           // reply budget
	Timeout   time.Duration // HTTP client timeout
}

const (
	anthropicEndpoint = "https://api.anthropic.com/v1"
	anthropicVersion  = "2023-06-01"
	geminiEndpoint    = "https://generativelanguage.googleapis.com/v1beta/models"

	DefaultAnthropicModel = "claude-3-5-haiku-20241022"
	DefaultGeminiModel    = "gemini-2.0-flash"
	DefaultMaxTokens      = 1000
)

// DefaultAnthropicConfig returns a Config with sensible Anthropic defaults.
func DefaultAnthropicConfig(apiKey string) Config {
	return Config{
		APIKey:    apiKey,
		Model:     DefaultAnthropicModel,
		Endpoint:  anthropicEndpoint,
		MaxTokens: DefaultMaxTokens,
		Timeout:   30 * time.Second,
	}
}

// DefaultGeminiConfig returns a Config with sensible Gemini defaults.
func DefaultGeminiConfig(apiKey string) Config {
	return Config{
		APIKey:    apiKey,
		Model:     DefaultGeminiModel,
		Endpoint:  geminiEndpoint,
		MaxTokens: DefaultMaxTokens,
		Timeout:   30 * time.Second,
	}
}

// ============================================================================
// ERRORS
// ============================================================================

// TranslationError reports that no usable structured object was obtained:
// the service call failed or its reply could not be parsed.
type TranslationError struct {
	Query string
	Reply string // raw reply, empty when the call itself failed
	Err   error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("translation failed: %v", e.Err)
}

func (e *TranslationError) Unwrap() error { return e.Err }

// StatusError is a non-200 reply from a provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	switch e.StatusCode {
	case http.StatusTooManyRequests:
		return fmt.Sprintf("%s rate limited the request (status 429): %s", e.Provider, truncate(e.Body, 200))
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Sprintf("%s rejected the credentials (status %d): %s", e.Provider, e.StatusCode, truncate(e.Body, 200))
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, truncate(e.Body, 200))
}

// RateLimited reports whether the provider throttled the request.
func (e *StatusError) RateLimited() bool { return e.StatusCode == http.StatusTooManyRequests }

// truncate cuts s to at most maxLen bytes on a rune boundary.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
