package translator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Anthropic Generator Tests
// ============================================================================

// TestAnthropic_Generate tests request shape and reply extraction
func TestAnthropic_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-api-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultAnthropicModel, req.Model)
		assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
		assert.Equal(t, "system prompt", req.System)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "flights to Laredo", req.Messages[0].Content)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"type":"text","text":"{\"filters\":{}}"}],"stop_reason":"end_turn"}`))
	}))
	defer server.Close()

	gen := NewAnthropic(Config{APIKey: "test-api-key", Endpoint: server.URL + "/"})
	assert.Equal(t, DefaultAnthropicModel, gen.Model())

	reply, err := gen.Generate(context.Background(), "system prompt", "flights to Laredo")
	require.NoError(t, err)
	assert.Equal(t, `{"filters":{}}`, reply)
}

// TestAnthropic_StatusErrors tests non-200 replies
func TestAnthropic_StatusErrors(t *testing.T) {
	status := http.StatusTooManyRequests
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(`{"error":{"type":"rate_limit_error"}}`))
	}))
	defer server.Close()

	gen := NewAnthropic(Config{APIKey: "k", Endpoint: server.URL})

	_, err := gen.Generate(context.Background(), "s", "u")
	require.Error(t, err)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.True(t, se.RateLimited())
	assert.Contains(t, err.Error(), "rate limited")

	status = http.StatusUnauthorized
	_, err = gen.Generate(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected the credentials")
}

// TestAnthropic_EmptyContent tests a reply without text blocks
func TestAnthropic_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[]}`))
	}))
	defer server.Close()

	_, err := NewAnthropic(Config{APIKey: "k", Endpoint: server.URL}).Generate(context.Background(), "s", "u")
	assert.Error(t, err)
}

// TestAnthropic_ContextCancelled tests that the caller's deadline bounds the call
func TestAnthropic_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewAnthropic(Config{APIKey: "k", Endpoint: server.URL}).Generate(ctx, "s", "u")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

// ============================================================================
// Gemini Generator Tests
// ============================================================================

// TestGemini_Generate tests request shape and reply extraction
func TestGemini_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/"+DefaultGeminiModel+":generateContent", r.URL.Path)
		assert.Equal(t, "gemini-key", r.Header.Get("x-goog-api-key"))
		assert.Empty(t, r.URL.RawQuery)

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.SystemInstruction)
		assert.Equal(t, "system prompt", req.SystemInstruction.Parts[0].Text)
		require.Len(t, req.Contents, 1)
		assert.Equal(t, "only Mexico", req.Contents[0].Parts[0].Text)
		assert.Equal(t, DefaultMaxTokens, req.GenerationConfig.MaxOutputTokens)

		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"filters\":{\"destinations\":[\"mexico\"]}}"}]}}]}`))
	}))
	defer server.Close()

	gen := NewGemini(Config{APIKey: "gemini-key", Endpoint: server.URL})
	reply, err := gen.Generate(context.Background(), "system prompt", "only Mexico")
	require.NoError(t, err)
	assert.Equal(t, `{"filters":{"destinations":["mexico"]}}`, reply)
}

// TestGemini_Errors tests API-level and empty replies
func TestGemini_Errors(t *testing.T) {
	body := `{"error":{"code":400,"message":"bad request"}}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer server.Close()

	gen := NewGemini(Config{APIKey: "k", Endpoint: server.URL})

	_, err := gen.Generate(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad request")

	body = `{"candidates":[]}`
	_, err = gen.Generate(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty response")
}

// TestGemini_KeyNotInErrors tests that transport and status errors never carry the key
func TestGemini_KeyNotInErrors(t *testing.T) {
	const key = "SECRET-KEY-123"

	closed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	closed.Close()
	_, err := NewGemini(Config{APIKey: key, Endpoint: closed.URL}).Generate(context.Background(), "s", "u")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), key)

	denied := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"denied"}}`))
	}))
	defer denied.Close()
	_, err = NewGemini(Config{APIKey: key, Endpoint: denied.URL}).Generate(context.Background(), "s", "u")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), key)
}
