package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/spektr-org/flightquery/engine"
	"github.com/spektr-org/flightquery/helpers"
	"github.com/spektr-org/flightquery/schema"
	"github.com/spektr-org/flightquery/translator"
)

// ── Test Helpers ──────────────────────────────────────────────────────────────

// scriptedGenerator replays canned replies in order.
type scriptedGenerator struct {
	replies []string
	calls   int
}

func (g *scriptedGenerator) Generate(_ context.Context, _, _ string) (string, error) {
	if g.calls >= len(g.replies) {
		return "", fmt.Errorf("no reply scripted for call %d", g.calls)
	}
	reply := g.replies[g.calls]
	g.calls++
	return reply, nil
}

func testDataset() *helpers.Dataset {
	return &helpers.Dataset{Records: []engine.Record{
		{FlightID: "F1", OriginCity: "McAllen", DestCity: "Laredo", DestLat: 27.53, DestLon: -99.48, Altitude: 1200, Speed: 40},
		{FlightID: "F2", OriginCity: "Brownsville", DestCity: "Laredo", DestLat: 27.53, DestLon: -99.48, Altitude: 6000, Speed: 50},
		{FlightID: "F3", OriginCity: "McAllen", DestCity: "Dallas", DestLat: 32.78, DestLon: -96.80, Altitude: 900, Speed: 60},
	}}
}

func newTestSession(t *testing.T, replies ...string) (*Manager, *Session, *scriptedGenerator) {
	t.Helper()
	gen := &scriptedGenerator{replies: replies}
	m := NewManager(translator.New(gen, schema.Default()), WithTimeout(time.Second))
	m.SetDataset(testDataset())
	return m, m.Create(), gen
}

func filteredIDs(t *testing.T, s *Session) []string {
	t.Helper()
	view, err := s.Filtered()
	if err != nil {
		t.Fatalf("Filtered failed: %v", err)
	}
	ids := make([]string, view.Len())
	for i := range ids {
		ids[i] = view.At(i).FlightID
	}
	return ids
}

func sameIDs(got []string, want ...string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func sameSpec(a, b engine.FilterSpec) bool {
	if len(a) != len(b) {
		return false
	}
	for dim, c := range a {
		if !c.Equal(b[dim]) {
			return false
		}
	}
	return true
}

// ============================================================================
// 1. FILTER STATE
// ============================================================================

func TestFilterStateInitial(t *testing.T) {
	s := NewFilterState()
	if !s.IsInitial() || len(s.Effective()) != 0 {
		t.Errorf("expected empty initial state, got %+v", s.Effective())
	}
}

func TestFilterStateChatOverridesManual(t *testing.T) {
	s := NewFilterState()
	s.SetManual("dest_cities", engine.Labels("Dallas"))
	s.SetManual("altitude_range", engine.NumberRange(0, 5000))
	s.ApplyChat(engine.FilterSpec{"dest_cities": engine.Labels("Laredo")})

	eff := s.Effective()
	if !eff["dest_cities"].Equal(engine.Labels("Laredo")) {
		t.Errorf("expected chat value to win, got %+v", eff["dest_cities"])
	}
	if !eff["altitude_range"].Equal(engine.NumberRange(0, 5000)) {
		t.Errorf("expected manual altitude kept, got %+v", eff["altitude_range"])
	}

	s.ClearChat()
	if !s.Effective()["dest_cities"].Equal(engine.Labels("Dallas")) {
		t.Error("expected manual value back after clearing chat")
	}
}

func TestFilterStateChatReplacedWholesale(t *testing.T) {
	s := NewFilterState()
	s.ApplyChat(engine.FilterSpec{"dest_cities": engine.Labels("Laredo"), "speed_range": engine.NumberRange(0, 50)})
	s.ApplyChat(engine.FilterSpec{"origin_cities": engine.Labels("McAllen")})

	chat := s.Chat()
	if len(chat) != 1 || !chat["origin_cities"].Equal(engine.Labels("McAllen")) {
		t.Errorf("expected only the latest chat spec, got %+v", chat)
	}
}

func TestFilterStateManualLastWriteWins(t *testing.T) {
	s := NewFilterState()
	s.SetManual("speed_range", engine.NumberRange(0, 10))
	s.SetManual("speed_range", engine.NumberRange(20, 30))
	if got := s.Manual()["speed_range"]; !got.Equal(engine.NumberRange(20, 30)) {
		t.Errorf("expected last write, got %+v", got)
	}
	s.ClearManual("speed_range")
	if len(s.Manual()) != 0 {
		t.Error("expected manual layer empty")
	}
}

func TestFilterStateResetRestoresInitial(t *testing.T) {
	s := NewFilterState()
	s.SetManual("speed_range", engine.NumberRange(0, 10))
	s.ApplyChat(engine.FilterSpec{"dest_cities": engine.Labels("Laredo")})
	s.Reset()
	if !s.IsInitial() {
		t.Errorf("expected initial state, got manual=%+v chat=%+v", s.Manual(), s.Chat())
	}
}

func TestFilterStateCopiesInput(t *testing.T) {
	s := NewFilterState()
	spec := engine.FilterSpec{"dest_cities": engine.Labels("Laredo")}
	s.ApplyChat(spec)
	spec["dest_cities"].Values[0] = "Dallas"
	if !s.Chat()["dest_cities"].Equal(engine.Labels("Laredo")) {
		t.Error("chat layer shares memory with the caller's spec")
	}
}

// ============================================================================
// 2. SESSION
// ============================================================================

func TestAskThenSetManualKeepsBoth(t *testing.T) {
	_, s, _ := newTestSession(t, `{"filters":{"dest_cities":["Laredo"]}}`)

	ans, err := s.Ask(context.Background(), "flights to Laredo")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if ans.Result.Summary.Count != 2 {
		t.Errorf("expected 2 records after chat, got %d", ans.Result.Summary.Count)
	}

	if err := s.SetManual("altitude_range", engine.NumberRange(0, 5000)); err != nil {
		t.Fatalf("SetManual failed: %v", err)
	}

	eff := s.State().Effective
	if len(eff) != 2 || !eff["dest_cities"].Active() || !eff["altitude_range"].Active() {
		t.Fatalf("expected both dimensions active, got %+v", eff)
	}
	if ids := filteredIDs(t, s); !sameIDs(ids, "F1") {
		t.Errorf("expected [F1], got %v", ids)
	}
}

func TestAskFailureLeavesStateUnchanged(t *testing.T) {
	_, s, _ := newTestSession(t,
		`{"filters":{"dest_cities":["Laredo"]}}`,
		"not json at all",
		`{"filters":{"wingspan":[1,2]}}`,
	)
	if _, err := s.Ask(context.Background(), "to Laredo"); err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if err := s.SetManual("speed_range", engine.NumberRange(0, 55)); err != nil {
		t.Fatalf("SetManual failed: %v", err)
	}
	before := s.State()

	_, err := s.Ask(context.Background(), "gibberish")
	var te *translator.TranslationError
	if !errors.As(err, &te) {
		t.Fatalf("expected TranslationError, got %v", err)
	}

	_, err = s.Ask(context.Background(), "by wingspan")
	if !errors.Is(err, engine.ErrInvalidFilterSpec) {
		t.Fatalf("expected ErrInvalidFilterSpec, got %v", err)
	}

	after := s.State()
	if !sameSpec(before.Manual, after.Manual) || !sameSpec(before.Chat, after.Chat) {
		t.Errorf("state changed after failures: before=%+v after=%+v", before, after)
	}

	hist, err := s.History(context.Background(), 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(hist) != 3 || hist[0].Status != StatusSuccess || hist[1].Status != StatusError || hist[2].Status != StatusError {
		t.Errorf("unexpected history %+v", hist)
	}
}

func TestAskEmptyObjectIsNoOp(t *testing.T) {
	_, s, _ := newTestSession(t, `{"filters":{"origin_cities":["McAllen"]}}`, `{}`)
	if _, err := s.Ask(context.Background(), "from McAllen"); err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if _, err := s.Ask(context.Background(), "thanks"); err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if chat := s.State().Chat; !chat["origin_cities"].Equal(engine.Labels("McAllen")) {
		t.Errorf("expected chat layer kept, got %+v", chat)
	}
}

func TestAskRemembersAggregation(t *testing.T) {
	_, s, _ := newTestSession(t, `{"aggregation":{"type":"count","group_by":"dest_city"}}`)
	ans, err := s.Ask(context.Background(), "how many per destination")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	agg := ans.Result.Aggregation
	if agg == nil || len(agg.Groups) != 2 || agg.Groups[0].Key != "Laredo" || agg.Groups[0].Count != 2 {
		t.Fatalf("unexpected aggregation %+v", agg)
	}

	res, err := s.Result()
	if err != nil {
		t.Fatalf("Result failed: %v", err)
	}
	if res.Aggregation == nil {
		t.Error("expected aggregation to persist")
	}

	s.ClearChat()
	if s.State().Aggregation != nil {
		t.Error("expected aggregation cleared with the chat layer")
	}
}

func TestResetRestoresInitialState(t *testing.T) {
	_, s, _ := newTestSession(t, `{"filters":{"dest_cities":["Dallas"]}}`)
	if _, err := s.Ask(context.Background(), "to Dallas"); err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if err := s.SetManual("altitude_range", engine.NumberRange(0, 1000)); err != nil {
		t.Fatalf("SetManual failed: %v", err)
	}

	if err := s.Reset(context.Background()); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	snap := s.State()
	if len(snap.Manual) != 0 || len(snap.Chat) != 0 || snap.Aggregation != nil {
		t.Errorf("expected initial state, got %+v", snap)
	}
	if ids := filteredIDs(t, s); !sameIDs(ids, "F1", "F2", "F3") {
		t.Errorf("expected all records, got %v", ids)
	}
	if hist, _ := s.History(context.Background(), 0); len(hist) != 0 {
		t.Errorf("expected history cleared, got %d entries", len(hist))
	}
}

func TestSetManualRejectsInvalid(t *testing.T) {
	_, s, _ := newTestSession(t)
	if err := s.SetManual("altitude_range", engine.NumberRange(5000, 0)); !errors.Is(err, engine.ErrInvalidFilterSpec) {
		t.Errorf("expected ErrInvalidFilterSpec, got %v", err)
	}
	if err := s.SetManual("destinations", engine.Regions("atlantis")); !errors.Is(err, engine.ErrInvalidFilterSpec) {
		t.Errorf("expected ErrInvalidFilterSpec, got %v", err)
	}
	if err := s.ClearManual("wingspan"); !errors.Is(err, engine.ErrInvalidFilterSpec) {
		t.Errorf("expected ErrInvalidFilterSpec, got %v", err)
	}
	if len(s.State().Manual) != 0 {
		t.Error("invalid manual values reached the state")
	}
}

func TestHistoryRecentNewestLast(t *testing.T) {
	_, s, _ := newTestSession(t, `{}`, `{}`, `{}`)
	for _, q := range []string{"one", "two", "three"} {
		if _, err := s.Ask(context.Background(), q); err != nil {
			t.Fatalf("Ask failed: %v", err)
		}
	}
	hist, err := s.History(context.Background(), 2)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(hist) != 2 || hist[0].Query != "two" || hist[1].Query != "three" {
		t.Errorf("unexpected history %+v", hist)
	}
	if string(hist[1].Produced) != "{}" {
		t.Errorf("expected produced object recorded, got %s", hist[1].Produced)
	}
}

func TestAskWithoutDataset(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{`{}`}}
	m := NewManager(translator.New(gen, schema.Default()))
	s := m.Create()
	if _, err := s.Ask(context.Background(), "anything"); !errors.Is(err, ErrNoDataset) {
		t.Fatalf("expected ErrNoDataset, got %v", err)
	}
	if gen.calls != 0 {
		t.Errorf("expected no generator call, got %d", gen.calls)
	}
	if _, err := s.Filtered(); !errors.Is(err, ErrNoDataset) {
		t.Errorf("expected ErrNoDataset, got %v", err)
	}
}

// ============================================================================
// 3. MANAGER
// ============================================================================

func TestManagerLifecycle(t *testing.T) {
	m, s, _ := newTestSession(t)

	got, err := m.Get(s.ID)
	if err != nil || got != s {
		t.Fatalf("expected to find session %s, got %v", s.ID, err)
	}
	other := m.Create()
	if other.ID == s.ID {
		t.Error("expected distinct session IDs")
	}
	if len(m.IDs()) != 2 {
		t.Errorf("expected 2 sessions, got %d", len(m.IDs()))
	}

	if err := m.Delete(context.Background(), s.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := m.Get(s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := m.Delete(context.Background(), s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSetDatasetRepointsSessions(t *testing.T) {
	m, s, _ := newTestSession(t)
	if err := s.SetManual("origin_cities", engine.Labels("McAllen")); err != nil {
		t.Fatalf("SetManual failed: %v", err)
	}
	if ids := filteredIDs(t, s); !sameIDs(ids, "F1", "F3") {
		t.Fatalf("expected [F1 F3], got %v", ids)
	}

	m.SetDataset(&helpers.Dataset{Records: []engine.Record{
		{FlightID: "N1", OriginCity: "McAllen"},
		{FlightID: "N2", OriginCity: "Laredo"},
	}})
	if ids := filteredIDs(t, s); !sameIDs(ids, "N1") {
		t.Errorf("expected [N1] from the new dataset, got %v", ids)
	}
}

func TestRegionReloadKeepsSessionUsable(t *testing.T) {
	live := schema.NewLive(schema.Default())
	laredo := schema.Region{Tag: "laredo", North: 28, South: 27, East: -99, West: -100}
	if err := live.Overlay([]schema.Region{laredo}); err != nil {
		t.Fatalf("Overlay failed: %v", err)
	}
	m := NewManager(nil, WithRegistry(live.Load))
	m.SetDataset(testDataset())
	s := m.Create()
	if err := s.SetManual("destinations", engine.Regions("laredo")); err != nil {
		t.Fatalf("SetManual failed: %v", err)
	}

	if err := live.Overlay(nil); !errors.Is(err, schema.ErrRegionRemoved) {
		t.Fatalf("expected ErrRegionRemoved, got %v", err)
	}
	if ids := filteredIDs(t, s); !sameIDs(ids, "F1", "F2") {
		t.Errorf("expected [F1 F2] after rejected reload, got %v", ids)
	}
	if _, err := s.Summary(); err != nil {
		t.Errorf("Summary failed after rejected reload: %v", err)
	}
}
