package session

import (
	"github.com/spektr-org/flightquery/engine"
)

// ============================================================================
// FILTER STATE — two layers, chat over manual
// ============================================================================
// manual: one constraint per dimension, last write wins.
// chat:   replaced wholesale by every successful translation that carries a
//         "filters" object. Never merged with the previous chat layer.
//
// Effective() = manual with chat laid over it per dimension. It is computed on
// every call, never cached.
// ============================================================================

// FilterState is the per-session accumulator. It is not safe for concurrent
// use; Session serializes access to it.
type FilterState struct {
	manual engine.FilterSpec
	chat   engine.FilterSpec
}

// NewFilterState returns the initial state: both layers empty, matching all.
func NewFilterState() *FilterState {
	return &FilterState{
		manual: engine.FilterSpec{},
		chat:   engine.FilterSpec{},
	}
}

// SetManual overwrites the manual layer at dim.
func (s *FilterState) SetManual(dim string, c engine.Constraint) {
	c.Values = append([]string(nil), c.Values...)
	s.manual[dim] = c
}

// ClearManual removes dim from the manual layer.
func (s *FilterState) ClearManual(dim string) {
	delete(s.manual, dim)
}

// ApplyChat replaces the chat layer with spec.
func (s *FilterState) ApplyChat(spec engine.FilterSpec) {
	s.chat = spec.Clone()
	if s.chat == nil {
		s.chat = engine.FilterSpec{}
	}
}

// ClearChat empties the chat layer and leaves manual constraints alone.
func (s *FilterState) ClearChat() {
	s.chat = engine.FilterSpec{}
}

// Reset returns to the initial state.
func (s *FilterState) Reset() {
	s.manual = engine.FilterSpec{}
	s.chat = engine.FilterSpec{}
}

// Manual returns a copy of the manual layer.
func (s *FilterState) Manual() engine.FilterSpec { return s.manual.Clone() }

// Chat returns a copy of the chat layer.
func (s *FilterState) Chat() engine.FilterSpec { return s.chat.Clone() }

// Effective merges the layers. Dimensions the chat layer names override the
// manual value; the others keep it.
func (s *FilterState) Effective() engine.FilterSpec {
	out := s.manual.Clone()
	for dim, c := range s.chat.Clone() {
		out[dim] = c
	}
	return out
}

// IsInitial reports whether both layers are empty.
func (s *FilterState) IsInitial() bool {
	return len(s.manual) == 0 && len(s.chat) == 0
}

func (s *FilterState) clone() *FilterState {
	return &FilterState{manual: s.manual.Clone(), chat: s.chat.Clone()}
}
