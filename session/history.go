package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Exchange statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Exchange is one question and what came back for it.
type Exchange struct {
	Query     string          `json:"query"`
	Produced  json.RawMessage `json:"produced,omitempty"`
	Status    string          `json:"status"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// HistoryStore keeps per-session exchanges, oldest first.
type HistoryStore interface {
	Append(ctx context.Context, sessionID string, ex Exchange) error
	// Recent returns the last n exchanges, newest last. n <= 0 returns all.
	Recent(ctx context.Context, sessionID string, n int) ([]Exchange, error)
	Clear(ctx context.Context, sessionID string) error
}

// MemoryHistory is an in-process HistoryStore.
type MemoryHistory struct {
	mu      sync.RWMutex
	entries map[string][]Exchange
}

// NewMemoryHistory creates an empty in-memory store.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{entries: make(map[string][]Exchange)}
}

func (h *MemoryHistory) Append(_ context.Context, sessionID string, ex Exchange) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[sessionID] = append(h.entries[sessionID], ex)
	return nil
}

func (h *MemoryHistory) Recent(_ context.Context, sessionID string, n int) ([]Exchange, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	all := h.entries[sessionID]
	if n > 0 && len(all) > n {
		all = all[len(all)-n:]
	}
	return append([]Exchange{}, all...), nil
}

func (h *MemoryHistory) Clear(_ context.Context, sessionID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.entries, sessionID)
	return nil
}
