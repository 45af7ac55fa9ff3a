package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/spektr-org/flightquery/engine"
	"github.com/spektr-org/flightquery/helpers"
	"github.com/spektr-org/flightquery/schema"
	"github.com/spektr-org/flightquery/translator"
)

// ErrNoDataset is returned when a session operation needs records and no
// dataset has been loaded.
var ErrNoDataset = errors.New("no dataset loaded")

// Translator is the part of translator.Translator a session needs.
type Translator interface {
	Translate(ctx context.Context, query string) (*translator.Result, error)
}

// Answer is what Ask returns: the validated translation and the data after
// the new effective filters were applied.
type Answer struct {
	Translation *translator.Result `json:"translation"`
	Result      *engine.Result     `json:"result"`
}

// Snapshot is a copy of a session's filter layers.
type Snapshot struct {
	Manual      engine.FilterSpec       `json:"manual"`
	Chat        engine.FilterSpec       `json:"chat"`
	Effective   engine.FilterSpec       `json:"effective"`
	Aggregation *engine.AggregationSpec `json:"aggregation,omitempty"`
}

// Session sequences translate → merge → apply for one analysis session.
// Operations on one session are serialized; different sessions run in
// parallel.
type Session struct {
	ID      string
	Created time.Time

	mu          sync.Mutex
	state       *FilterState
	aggregation *engine.AggregationSpec
	env         *env
}

func newSession(id string, e *env) *Session {
	return &Session{
		ID:      id,
		Created: e.now(),
		state:   NewFilterState(),
		env:     e,
	}
}

// ============================================================================
// CHAT
// ============================================================================

// Ask translates query and, on success, replaces the chat layer with the
// translated filters when the reply carried a "filters" object. On any error
// the filter state is left exactly as it was.
func (s *Session) Ask(ctx context.Context, query string) (*Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds := s.env.dataset.Load()
	if ds == nil {
		return nil, ErrNoDataset
	}

	if s.env.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.env.timeout)
		defer cancel()
	}

	res, err := s.env.translator.Translate(ctx, query)
	if err != nil {
		s.record(ctx, Exchange{Query: query, Status: StatusError, Error: err.Error()})
		return nil, err
	}

	next := s.state.clone()
	if res.HasFilters {
		next.ApplyChat(res.Filters)
	}
	agg := s.aggregation
	if res.Aggregation != nil {
		agg = res.Aggregation
	}

	out, err := engine.Execute(ds.View(), engine.Query{Filters: next.Effective(), Aggregation: agg}, s.env.registry(), s.env.engineOpts()...)
	if err != nil {
		s.record(ctx, Exchange{Query: query, Produced: res.Produced, Status: StatusError, Error: err.Error()})
		return nil, err
	}

	s.state = next
	s.aggregation = agg
	s.record(ctx, Exchange{Query: query, Produced: res.Produced, Status: StatusSuccess})

	log.Printf("✅ Session %s: %d of %d records after chat filters", shortID(s.ID), out.Summary.Count, ds.View().Len())
	return &Answer{Translation: res, Result: out}, nil
}

// record appends to history. A failing store is logged and does not undo the
// state change it describes.
func (s *Session) record(ctx context.Context, ex Exchange) {
	ex.Timestamp = s.env.now()
	if err := s.env.history.Append(context.WithoutCancel(ctx), s.ID, ex); err != nil {
		log.Printf("⚠️ Session %s: failed to record history: %v", shortID(s.ID), err)
	}
}

// History returns the last n exchanges, newest last. n <= 0 returns all.
func (s *Session) History(ctx context.Context, n int) ([]Exchange, error) {
	return s.env.history.Recent(ctx, s.ID, n)
}

// ============================================================================
// MANUAL LAYER
// ============================================================================

// SetManual validates c against the registry and overwrites the manual layer
// at dim. An invalid constraint leaves the state unchanged.
func (s *Session) SetManual(dim string, c engine.Constraint) error {
	if err := engine.ValidateSpec(engine.FilterSpec{dim: c}, s.env.registry()); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.SetManual(dim, c)
	return nil
}

// ClearManual removes dim from the manual layer.
func (s *Session) ClearManual(dim string) error {
	if _, ok := s.env.registry().Dimension(dim); !ok {
		return &engine.InvalidFilterSpecError{Dimension: dim, Reason: "unknown dimension"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ClearManual(dim)
	return nil
}

// ClearChat drops the chat layer and the remembered aggregation.
func (s *Session) ClearChat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ClearChat()
	s.aggregation = nil
}

// Reset clears both layers, the remembered aggregation and the history.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Reset()
	s.aggregation = nil
	if err := s.env.history.Clear(ctx, s.ID); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// ============================================================================
// READS
// ============================================================================

// State returns a copy of the filter layers.
func (s *Session) State() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	var agg *engine.AggregationSpec
	if s.aggregation != nil {
		a := *s.aggregation
		agg = &a
	}
	return Snapshot{
		Manual:      s.state.Manual(),
		Chat:        s.state.Chat(),
		Effective:   s.state.Effective(),
		Aggregation: agg,
	}
}

// Filtered applies the effective spec to the current dataset.
func (s *Session) Filtered() (engine.RecordView, error) {
	ds, spec, _ := s.inputs()
	if ds == nil {
		return nil, ErrNoDataset
	}
	return engine.Apply(ds.View(), spec, s.env.registry())
}

// Summary summarizes the filtered records.
func (s *Session) Summary() (engine.Summary, error) {
	view, err := s.Filtered()
	if err != nil {
		return engine.Summary{}, err
	}
	return engine.Summarize(view, s.env.engineOpts()...), nil
}

// Result runs the effective spec and the last aggregation in one pass.
func (s *Session) Result() (*engine.Result, error) {
	ds, spec, agg := s.inputs()
	if ds == nil {
		return nil, ErrNoDataset
	}
	return engine.Execute(ds.View(), engine.Query{Filters: spec, Aggregation: agg}, s.env.registry(), s.env.engineOpts()...)
}

// Dataset returns the dataset the session currently reads.
func (s *Session) Dataset() *helpers.Dataset {
	return s.env.dataset.Load()
}

// Registry returns the registry the session validates against.
func (s *Session) Registry() *schema.Registry {
	return s.env.registry()
}

func (s *Session) inputs() (*helpers.Dataset, engine.FilterSpec, *engine.AggregationSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.env.dataset.Load(), s.state.Effective(), s.aggregation
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
