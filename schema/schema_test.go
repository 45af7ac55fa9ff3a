package schema

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// ============================================================================
// 1. DEFAULT REGISTRY
// ============================================================================

func TestDefaultRegistryValid(t *testing.T) {
	reg := Default()
	if err := reg.Validate(); err != nil {
		t.Fatalf("default registry invalid: %v", err)
	}

	want := []string{"time_range", "altitude_range", "speed_range", "destinations", "origin_cities", "dest_cities"}
	got := reg.DimensionKeys()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("expected dimensions %v, got %v", want, got)
	}
	if len(reg.ColumnKeys()) != 10 {
		t.Errorf("expected 10 contract columns, got %d", len(reg.ColumnKeys()))
	}
	if strings.Join(reg.RegionTags(), ",") != "mexico,us" {
		t.Errorf("unexpected regions %v", reg.RegionTags())
	}
}

func TestRegionLookupCaseInsensitive(t *testing.T) {
	reg := Default()
	r, ok := reg.Region("  Mexico ")
	if !ok {
		t.Fatal("expected mexico region")
	}
	if r.North != 32.7183 || r.South != 14.5344 || r.East != -86.5964 || r.West != -118.5989 {
		t.Errorf("unexpected mexico bounds %+v", r)
	}
	if _, ok := reg.Region("atlantis"); ok {
		t.Error("atlantis should not exist")
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(r *Registry){
		"duplicate dimension": func(r *Registry) { r.Dimensions = append(r.Dimensions, r.Dimensions[0]) },
		"unknown column":      func(r *Registry) { r.Dimensions[1].Column = "wingspan" },
		"unknown position":    func(r *Registry) { r.Dimensions[3].Column = "midpoint" },
		"unknown kind":        func(r *Registry) { r.Dimensions[0].Kind = "polygon" },
		"duplicate region":    func(r *Registry) { r.Regions = append(r.Regions, r.Regions[0]) },
		"inverted region":     func(r *Registry) { r.Regions[0].South, r.Regions[0].North = 40, 10 },
		"empty tag":           func(r *Registry) { r.Regions[0].Tag = "" },
	}
	for name, mutate := range cases {
		reg := Default()
		mutate(reg)
		if err := reg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	reg := Default()
	c := reg.Clone()
	c.Regions[0].North = 0
	c.Dimensions[0].Key = "changed"
	if reg.Regions[0].North != 32.7183 || reg.Dimensions[0].Key != "time_range" {
		t.Error("clone shares state with original")
	}
}

// ============================================================================
// 2. REGIONS
// ============================================================================

func TestRegionContains(t *testing.T) {
	mexico, _ := Default().Region("mexico")
	cases := []struct {
		name     string
		lat, lon float64
		want     bool
	}{
		{"Mexico City", 19.43, -99.13, true},
		{"north-east corner", 32.7183, -86.5964, true},
		{"south-west corner", 14.5344, -118.5989, true},
		{"just north", 32.7184, -100, false},
		{"just east", 20, -86.5963, false},
		{"Madrid", 40.41, -3.70, false},
	}
	for _, c := range cases {
		if got := mexico.Contains(c.lat, c.lon); got != c.want {
			t.Errorf("%s: expected %v, got %v", c.name, c.want, got)
		}
	}
}

func TestRegionAntimeridian(t *testing.T) {
	r := Region{Tag: "pacific", North: 10, South: -10, West: 170, East: -170}
	if err := r.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Contains(0, 179) || !r.Contains(0, -175) {
		t.Error("expected points on both sides of the antimeridian")
	}
	if r.Contains(0, 0) {
		t.Error("expected prime meridian outside")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

const canadaYAML = `regions:
  - tag: Canada
    display_name: Canada
    north: 83.1
    south: 41.7
    east: -52.6
    west: -141.0
  - tag: mexico
    display_name: Mexico (narrow)
    north: 30
    south: 15
    east: -90
    west: -115
`

func TestLoadRegionsAndOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.yaml")
	writeFile(t, path, canadaYAML)

	regions, err := LoadRegions(path)
	if err != nil {
		t.Fatalf("LoadRegions failed: %v", err)
	}
	if len(regions) != 2 || regions[0].Tag != "canada" {
		t.Fatalf("unexpected regions %+v", regions)
	}

	base := Default()
	reg := base.WithRegions(regions)
	if err := reg.Validate(); err != nil {
		t.Fatalf("overlay registry invalid: %v", err)
	}
	if strings.Join(reg.RegionTags(), ",") != "mexico,us,canada" {
		t.Errorf("unexpected tags %v", reg.RegionTags())
	}
	if m, _ := reg.Region("mexico"); m.North != 30 {
		t.Errorf("expected mexico replaced, got %+v", m)
	}
	if m, _ := base.Region("mexico"); m.North != 32.7183 {
		t.Error("overlay modified the base registry")
	}
}

func TestLoadRegionsRejectsBadFile(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	writeFile(t, bad, "regions:\n  - tag: x\n    north: 1\n    south: 5\n")
	if _, err := LoadRegions(bad); err == nil {
		t.Error("expected error for inverted region")
	}
	if _, err := LoadRegions(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.yaml")
	writeFile(t, path, "regions: []\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan []Region, 4)
	if err := Watch(ctx, path, func(r []Region) { got <- r }); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	writeFile(t, path, canadaYAML)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case regions := <-got:
			if len(regions) == 2 {
				return
			}
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}

// ============================================================================
// 3. HEADER DISCOVERY
// ============================================================================

func TestMatchHeader(t *testing.T) {
	reg := Default()
	headers := []string{"Flight ID", "Origin City", "originLat", "origin_lng", "Destination", "dest_lat",
		"Dest Longitude", "Timestamp", "Speed (kts)", "Altitude (ft)", "operator"}
	index, missing := reg.MatchHeader(headers)
	if len(missing) != 0 {
		t.Fatalf("unexpected missing columns %v", missing)
	}
	expect := map[string]int{
		ColFlightID: 0, ColOriginCity: 1, ColOriginLat: 2, ColOriginLon: 3, ColDestCity: 4,
		ColDestLat: 5, ColDestLon: 6, ColTimestamp: 7, ColSpeed: 8, ColAltitude: 9,
	}
	for col, want := range expect {
		if index[col] != want {
			t.Errorf("%s: expected index %d, got %d", col, want, index[col])
		}
	}
}

func TestMatchHeaderPrefersExactKey(t *testing.T) {
	_, missing := Default().MatchHeader([]string{"flight_id"})
	if len(missing) != 9 || missing[0] != ColOriginCity {
		t.Errorf("unexpected missing %v", missing)
	}

	index, _ := Default().MatchHeader([]string{"speed", "speed_kts"})
	if index[ColSpeed] != 1 {
		t.Errorf("expected exact key to win, got index %d", index[ColSpeed])
	}
}

func TestNormalizeHeader(t *testing.T) {
	cases := map[string]string{
		"Speed (kts)":     "speed",
		"originLat":       "origin_lat",
		"  Dest - City  ": "dest_city",
		"\ufeffflight_id": "flight_id",
		"altitude_ft":     "altitude_ft",
	}
	for in, want := range cases {
		if got := NormalizeHeader(in); got != want {
			t.Errorf("%q: expected %q, got %q", in, want, got)
		}
	}
}

func TestLiveOverlay(t *testing.T) {
	live := NewLive(Default())
	if err := live.Overlay([]Region{{Tag: "canada", North: 83.1, South: 41.7, East: -52.6, West: -141.0}}); err != nil {
		t.Fatalf("Overlay failed: %v", err)
	}
	if _, ok := live.Load().Region("canada"); !ok {
		t.Fatal("expected canada after overlay")
	}

	if err := live.Overlay([]Region{{Tag: "broken", North: 1, South: 5}}); err == nil {
		t.Fatal("expected invalid overlay to be rejected")
	}
	if _, ok := live.Load().Region("canada"); !ok {
		t.Error("rejected overlay replaced the registry in effect")
	}

	// Redefining a tag in effect is allowed.
	if err := live.Overlay([]Region{{Tag: "canada", North: 60, South: 41.7, East: -52.6, West: -141.0}}); err != nil {
		t.Fatalf("Overlay failed: %v", err)
	}
	if r, _ := live.Load().Region("canada"); r.North != 60 {
		t.Errorf("expected redefined canada north 60, got %v", r.North)
	}

	// Dropping a tag in effect is rejected; the registry keeps it.
	err := live.Overlay(nil)
	if !errors.Is(err, ErrRegionRemoved) {
		t.Fatalf("expected ErrRegionRemoved, got %v", err)
	}
	if _, ok := live.Load().Region("canada"); !ok {
		t.Error("expected canada to survive an overlay that drops it")
	}
}

func TestLiveLoadAndWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.yaml")
	writeFile(t, path, "regions: []\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	live := NewLive(Default())
	if err := live.LoadAndWatch(ctx, path); err != nil {
		t.Fatalf("LoadAndWatch failed: %v", err)
	}
	writeFile(t, path, canadaYAML)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := live.Load().Region("canada"); ok {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("overlay not applied after file change")
}
