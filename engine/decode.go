package engine

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/spektr-org/flightquery/schema"
)

// ============================================================================
// DECODE — Strict decoding of untrusted filter JSON
// ============================================================================
// Translator replies, HTTP bodies and CLI flags all land here. Any violation
// rejects the whole spec; nothing is partially applied.
//
// Shapes:
//   time_range   → ["<instant>", "<instant>"]
//   number_range → [<number>, <number>]
//   region_set   → ["<tag>", ...]   (tags must exist in the registry)
//   label_set    → ["<label>", ...]
//
// A dimension whose value is JSON null is treated as omitted.
// ============================================================================

// instantLayouts are tried in order. Layouts without a zone are read as UTC.
var instantLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseInstant parses a timestamp in one of the accepted layouts.
func ParseInstant(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DecodeFilterSpec decodes and validates a raw filter object against the
// registry. Unknown dimensions and malformed shapes are rejected.
func DecodeFilterSpec(raw map[string]json.RawMessage, reg *schema.Registry) (FilterSpec, error) {
	spec := make(FilterSpec, len(raw))
	for _, key := range sortedKeys(raw) {
		if isNull(raw[key]) {
			continue
		}
		c, err := DecodeConstraint(key, raw[key], reg)
		if err != nil {
			return nil, err
		}
		spec[key] = c
	}
	return spec, nil
}

// DecodeConstraint decodes a single dimension value.
func DecodeConstraint(dim string, raw json.RawMessage, reg *schema.Registry) (Constraint, error) {
	meta, ok := reg.Dimension(dim)
	if !ok {
		return Constraint{}, invalid(dim, "unknown dimension")
	}
	if isNull(raw) {
		return Constraint{}, invalid(dim, "value is null")
	}

	var c Constraint
	switch meta.Kind {
	case schema.KindTimeRange:
		pair, err := decodePair(dim, raw)
		if err != nil {
			return Constraint{}, err
		}
		var bounds [2]time.Time
		for i, elem := range pair {
			var s string
			if err := json.Unmarshal(elem, &s); err != nil {
				return Constraint{}, invalid(dim, "bound %d is not a string", i)
			}
			t, ok := ParseInstant(s)
			if !ok {
				return Constraint{}, invalid(dim, "bound %q is not a recognized instant", s)
			}
			bounds[i] = t
		}
		c = TimeRange(bounds[0], bounds[1])

	case schema.KindNumberRange:
		pair, err := decodePair(dim, raw)
		if err != nil {
			return Constraint{}, err
		}
		var bounds [2]float64
		for i, elem := range pair {
			if err := json.Unmarshal(elem, &bounds[i]); err != nil {
				return Constraint{}, invalid(dim, "bound %d is not a number", i)
			}
		}
		c = NumberRange(bounds[0], bounds[1])

	case schema.KindRegionSet, schema.KindLabelSet:
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return Constraint{}, invalid(dim, "expected an array of strings")
		}
		values := make([]string, 0, len(elems))
		for _, elem := range elems {
			var s string
			if isNull(elem) || json.Unmarshal(elem, &s) != nil {
				return Constraint{}, invalid(dim, "expected an array of strings")
			}
			if meta.Kind == schema.KindRegionSet {
				s = schema.NormalizeTag(s)
			}
			values = append(values, s)
		}
		if meta.Kind == schema.KindRegionSet {
			c = Regions(values...)
		} else {
			c = Labels(values...)
		}

	default:
		return Constraint{}, invalid(dim, "unsupported kind %q", meta.Kind)
	}

	if err := validateConstraint(dim, meta, c, reg); err != nil {
		return Constraint{}, err
	}
	return c, nil
}

// ValidateSpec checks a spec against the registry. Specs built with the typed
// constructors still go through this, so a bad manual value fails the same
// way a bad translator value does.
func ValidateSpec(spec FilterSpec, reg *schema.Registry) error {
	for _, key := range sortedKeys(spec) {
		meta, ok := reg.Dimension(key)
		if !ok {
			return invalid(key, "unknown dimension")
		}
		if err := validateConstraint(key, meta, spec[key], reg); err != nil {
			return err
		}
	}
	return nil
}

func validateConstraint(dim string, meta schema.DimensionMeta, c Constraint, reg *schema.Registry) error {
	if c.Kind != meta.Kind {
		return invalid(dim, "expected %s, got %s", meta.Kind, c.Kind)
	}
	switch c.Kind {
	case schema.KindTimeRange:
		if c.Start.IsZero() || c.End.IsZero() {
			return invalid(dim, "missing bound")
		}
		if c.Start.After(c.End) {
			return invalid(dim, "start %s is after end %s", c.Start.Format(time.RFC3339), c.End.Format(time.RFC3339))
		}
	case schema.KindNumberRange:
		if !finite(c.Lo) || !finite(c.Hi) {
			return invalid(dim, "bounds must be finite")
		}
		if c.Lo > c.Hi {
			return invalid(dim, "min %g is greater than max %g", c.Lo, c.Hi)
		}
	case schema.KindRegionSet:
		for _, tag := range c.Values {
			if _, ok := reg.Region(tag); !ok {
				return invalid(dim, "unknown region %q", tag)
			}
		}
	}
	return nil
}

func decodePair(dim string, raw json.RawMessage) ([]json.RawMessage, error) {
	var pair []json.RawMessage
	if err := json.Unmarshal(raw, &pair); err != nil || len(pair) != 2 {
		return nil, invalid(dim, "expected a two-element array")
	}
	for i, elem := range pair {
		if isNull(elem) {
			return nil, invalid(dim, "bound %d is null", i)
		}
	}
	return pair, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
