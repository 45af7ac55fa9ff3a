package engine

import (
	"math"

	"github.com/golang/geo/s2"
	"github.com/spektr-org/flightquery/schema"
)

// ============================================================================
// FILTERS — Registry-driven filtering via RecordView
// ============================================================================
// Single-pass filter: checks ALL active dimension constraints per record in
// one loop. Predicates are compiled once in registry order.
// Returns a SubView (index list into parent) — zero data copy.
// ============================================================================

type predicate func(*Record) bool

// Apply returns a view of records matching every active dimension of spec.
// An empty spec returns the view unchanged. The input view is never mutated.
func Apply(view RecordView, spec FilterSpec, reg *schema.Registry) (RecordView, error) {
	if err := ValidateSpec(spec, reg); err != nil {
		return nil, err
	}

	preds := compile(spec, reg)
	if len(preds) == 0 {
		return view, nil
	}

	// Single pass — record passes if it matches ALL predicates
	n := view.Len()
	indices := make([]int, 0, n)
	for i := 0; i < n; i++ {
		r := view.At(i)
		pass := true
		for _, p := range preds {
			if !p(r) {
				pass = false
				break
			}
		}
		if pass {
			indices = append(indices, i)
		}
	}

	return newSubView(view, indices), nil
}

// compile builds predicates for the active dimensions of a validated spec.
func compile(spec FilterSpec, reg *schema.Registry) []predicate {
	var preds []predicate
	for _, dim := range reg.Dimensions {
		c, ok := spec[dim.Key]
		if !ok || !c.Active() {
			continue
		}
		switch dim.Kind {
		case schema.KindTimeRange:
			preds = append(preds, timePredicate(dim.Column, c))
		case schema.KindNumberRange:
			preds = append(preds, numberPredicate(dim.Column, c))
		case schema.KindRegionSet:
			preds = append(preds, regionPredicate(dim.Column, c, reg))
		case schema.KindLabelSet:
			preds = append(preds, labelPredicate(dim.Column, c))
		}
	}
	return preds
}

func timePredicate(col string, c Constraint) predicate {
	return func(r *Record) bool {
		t := r.Time(col)
		if t.IsZero() {
			return false
		}
		return !t.Before(c.Start) && !t.After(c.End)
	}
}

func numberPredicate(col string, c Constraint) predicate {
	return func(r *Record) bool {
		v := r.Number(col)
		if math.IsNaN(v) {
			return false
		}
		return v >= c.Lo && v <= c.Hi
	}
}

// regionPredicate matches when the position falls in ANY of the regions.
func regionPredicate(position string, c Constraint, reg *schema.Registry) predicate {
	rects := make([]s2.Rect, 0, len(c.Values))
	for _, tag := range c.Values {
		if region, ok := reg.Region(tag); ok {
			rects = append(rects, region.Rect())
		}
	}
	return func(r *Record) bool {
		lat, lon, ok := r.Position(position)
		if !ok || !finite(lat) || !finite(lon) {
			return false
		}
		ll := s2.LatLngFromDegrees(lat, lon)
		for _, rect := range rects {
			if rect.ContainsLatLng(ll) {
				return true
			}
		}
		return false
	}
}

// labelPredicate is a case-sensitive exact match against the label set.
func labelPredicate(col string, c Constraint) predicate {
	set := make(map[string]struct{}, len(c.Values))
	for _, v := range c.Values {
		set[v] = struct{}{}
	}
	return func(r *Record) bool {
		_, ok := set[r.Label(col)]
		return ok
	}
}
