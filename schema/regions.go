package schema

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/golang/geo/r1"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"gopkg.in/yaml.v3"
)

// ============================================================================
// NAMED REGIONS — Rectangular bounding boxes usable as destination filters
// ============================================================================
// A region whose West edge is greater than its East edge crosses the
// antimeridian. Bounds are inclusive on every edge.
// ============================================================================

// Region is a named lat/lon bounding box.
type Region struct {
	Tag         string  `json:"tag" yaml:"tag"`
	DisplayName string  `json:"displayName" yaml:"display_name"`
	North       float64 `json:"north" yaml:"north"`
	South       float64 `json:"south" yaml:"south"`
	East        float64 `json:"east" yaml:"east"`
	West        float64 `json:"west" yaml:"west"`
}

// Rect returns the region as an s2 rectangle.
func (r Region) Rect() s2.Rect {
	return s2.Rect{
		Lat: r1.Interval{Lo: degrees(r.South), Hi: degrees(r.North)},
		Lng: s1.IntervalFromEndpoints(degrees(r.West), degrees(r.East)),
	}
}

// Contains reports whether the position lies inside the region, edges included.
func (r Region) Contains(lat, lon float64) bool {
	return r.Rect().ContainsLatLng(s2.LatLngFromDegrees(lat, lon))
}

// Validate checks that the region has a tag and sane bounds.
func (r Region) Validate() error {
	if r.Tag == "" {
		return fmt.Errorf("region with empty tag")
	}
	if r.Tag != NormalizeTag(r.Tag) {
		return fmt.Errorf("region tag %q must be lowercase without surrounding spaces", r.Tag)
	}
	for _, v := range []float64{r.North, r.South, r.East, r.West} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("region %q has a non-finite bound", r.Tag)
		}
	}
	if r.South < -90 || r.North > 90 {
		return fmt.Errorf("region %q latitude outside [-90, 90]", r.Tag)
	}
	if r.South > r.North {
		return fmt.Errorf("region %q south %.4f is above north %.4f", r.Tag, r.South, r.North)
	}
	if r.West < -180 || r.West > 180 || r.East < -180 || r.East > 180 {
		return fmt.Errorf("region %q longitude outside [-180, 180]", r.Tag)
	}
	return nil
}

func degrees(v float64) float64 {
	return (s1.Angle(v) * s1.Degree).Radians()
}

// ============================================================================
// REGION OVERLAY FILE
// ============================================================================

type regionFile struct {
	Regions []Region `yaml:"regions"`
}

// LoadRegions reads a YAML region overlay:
//
//	regions:
//	  - tag: canada
//	    display_name: Canada
//	    north: 83.1
//	    south: 41.7
//	    east: -52.6
//	    west: -141.0
func LoadRegions(path string) ([]Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read regions file: %w", err)
	}
	var f regionFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse regions file: %w", err)
	}
	for i := range f.Regions {
		f.Regions[i].Tag = NormalizeTag(f.Regions[i].Tag)
		if err := f.Regions[i].Validate(); err != nil {
			return nil, err
		}
	}
	return f.Regions, nil
}

// WithRegions returns a copy of the registry with the given regions added.
// A region whose tag already exists replaces the existing one in place.
func (r *Registry) WithRegions(regions []Region) *Registry {
	out := r.Clone()
	for _, add := range regions {
		replaced := false
		for i := range out.Regions {
			if out.Regions[i].Tag == add.Tag {
				out.Regions[i] = add
				replaced = true
				break
			}
		}
		if !replaced {
			out.Regions = append(out.Regions, add)
		}
	}
	return out
}

// Watch reloads the region overlay whenever the file changes and passes the
// new regions to onChange. It returns once the watch is established; the
// watch stops when ctx is cancelled. A file that fails to load is logged and
// skipped, keeping the last good regions.
func Watch(ctx context.Context, path string, onChange func([]Region)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return err
	}
	// Watch the directory so editors that replace the file are still seen.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(evt.Name) != abs {
					continue
				}
				if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				regions, err := LoadRegions(abs)
				if err != nil {
					log.Printf("⚠️ Regions: reload of %s failed: %v", abs, err)
					continue
				}
				log.Printf("🗺️ Regions: reloaded %d regions from %s", len(regions), abs)
				onChange(regions)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("⚠️ Regions: watcher error: %v", err)
			}
		}
	}()
	return nil
}

// Live holds the registry in effect. The region watcher swaps it
// atomically; readers never see a partially updated registry.
type Live struct {
	base *Registry
	cur  atomic.Pointer[Registry]
}

// NewLive starts from base.
func NewLive(base *Registry) *Live {
	l := &Live{base: base}
	l.cur.Store(base)
	return l
}

// Load returns the registry in effect.
func (l *Live) Load() *Registry { return l.cur.Load() }

// ErrRegionRemoved is returned by Overlay when the new overlay drops a tag
// that is in effect. Filter layers may reference any tag in effect, so tags
// are only removed by a restart.
var ErrRegionRemoved = errors.New("overlay removes a region in effect")

// Overlay lays regions over the base registry and swaps it in. Regions may be
// added or redefined. An invalid result, or one that drops a tag in effect,
// leaves the current registry in place.
func (l *Live) Overlay(regions []Region) error {
	next := l.base.WithRegions(regions)
	if err := next.Validate(); err != nil {
		return err
	}
	for _, tag := range l.cur.Load().RegionTags() {
		if _, ok := next.Region(tag); !ok {
			return fmt.Errorf("%w: %q", ErrRegionRemoved, tag)
		}
	}
	l.cur.Store(next)
	return nil
}

// LoadAndWatch applies the overlay at path and keeps applying it on change.
func (l *Live) LoadAndWatch(ctx context.Context, path string) error {
	regions, err := LoadRegions(path)
	if err != nil {
		return err
	}
	if err := l.Overlay(regions); err != nil {
		return err
	}
	return Watch(ctx, path, func(regions []Region) {
		if err := l.Overlay(regions); err != nil {
			log.Printf("⚠️ Regions: overlay rejected: %v", err)
		}
	})
}
