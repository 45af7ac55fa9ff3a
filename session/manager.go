package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/spektr-org/flightquery/engine"
	"github.com/spektr-org/flightquery/helpers"
	"github.com/spektr-org/flightquery/schema"
)

// ErrNotFound is returned for an unknown session ID.
var ErrNotFound = errors.New("session not found")

// env is shared by a manager and all of its sessions.
type env struct {
	translator Translator
	history    HistoryStore
	registry   func() *schema.Registry
	dataset    atomic.Pointer[helpers.Dataset]
	timeout    time.Duration
	topK       int
	now        func() time.Time
}

func (e *env) engineOpts() []engine.Option {
	if e.topK > 0 {
		return []engine.Option{engine.WithTopK(e.topK)}
	}
	return nil
}

// Option configures a Manager.
type Option func(*env)

// WithHistory sets the history store. Default: NewMemoryHistory().
func WithHistory(h HistoryStore) Option {
	return func(e *env) { e.history = h }
}

// WithRegistry sets where sessions read the registry from. Default:
// schema.Default().
func WithRegistry(src func() *schema.Registry) Option {
	return func(e *env) { e.registry = src }
}

// WithTimeout bounds every translation call. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(e *env) { e.timeout = d }
}

// WithTopK sets the number of top destinations in summaries.
func WithTopK(k int) Option {
	return func(e *env) { e.topK = k }
}

// WithClock overrides the clock used for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *env) { e.now = now }
}

// Manager owns the sessions of one process and the dataset they read.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	env      *env
}

// NewManager creates a manager whose sessions translate with tr.
func NewManager(tr Translator, opts ...Option) *Manager {
	reg := schema.Default()
	e := &env{
		translator: tr,
		history:    NewMemoryHistory(),
		registry:   func() *schema.Registry { return reg },
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return &Manager{
		sessions: make(map[string]*Session),
		env:      e,
	}
}

// SetDataset replaces the dataset every session reads. Filter layers are kept.
func (m *Manager) SetDataset(ds *helpers.Dataset) {
	m.env.dataset.Store(ds)
	log.Printf("📦 Sessions: dataset replaced (%d records)", len(ds.Records))
}

// Dataset returns the current dataset, or nil.
func (m *Manager) Dataset() *helpers.Dataset { return m.env.dataset.Load() }

// Registry returns the registry sessions validate against.
func (m *Manager) Registry() *schema.Registry { return m.env.registry() }

// Create starts a new session with a fresh ID.
func (m *Manager) Create() *Session {
	s := newSession(uuid.NewString(), m.env)
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get looks up a session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// Delete tears a session down and drops its history.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return m.env.history.Clear(ctx, id)
}

// IDs returns the live session IDs in sorted order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
