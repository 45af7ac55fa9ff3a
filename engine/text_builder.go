package engine

import (
	"fmt"
	"strings"
	"time"
)

// ============================================================================
// TEXT BUILDER — Plain-text digest of a Result
// ============================================================================

// BuildText renders a result as a short human-readable digest.
func BuildText(res *Result) string {
	s := res.Summary
	if s.Count == 0 {
		return "No records match the current filters."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s flights, %d origins, %d destinations (%s)\n",
		FormatInt(s.Count), s.DistinctOrigins, s.DistinctDestinations, DerivePeriod(res.View))
	fmt.Fprintf(&b, "Mean altitude %.0f ft, mean speed %.1f kts, mean distance %.1f km\n",
		s.MeanAltitude, s.MeanSpeed, s.MeanDistanceKm)

	if len(s.TopDestinations) > 0 {
		parts := make([]string, len(s.TopDestinations))
		for i, d := range s.TopDestinations {
			parts[i] = fmt.Sprintf("%s (%d)", d.Label, d.Count)
		}
		fmt.Fprintf(&b, "Top destinations: %s\n", strings.Join(parts, ", "))
	}

	if agg := res.Aggregation; agg != nil {
		if len(agg.Groups) == 0 {
			fmt.Fprintf(&b, "%s: %s\n", LabelForAggregation(agg), formatValue(agg.Value))
		} else {
			fmt.Fprintf(&b, "%s by %s:\n", LabelForAggregation(agg), agg.GroupBy)
			for _, g := range agg.Groups {
				fmt.Fprintf(&b, "  %s: %s (%d)\n", g.Key, formatValue(g.Value), g.Count)
			}
		}
	}
	return b.String()
}

// ============================================================================
// PERIOD HELPER
// ============================================================================

// DerivePeriod builds a human-readable period string from a view's timestamps.
func DerivePeriod(view RecordView) string {
	if view == nil || view.Len() == 0 {
		return "No data"
	}

	var earliest, latest time.Time
	for i := 0; i < view.Len(); i++ {
		t := view.At(i).Timestamp
		if t.IsZero() {
			continue
		}
		if earliest.IsZero() || t.Before(earliest) {
			earliest = t
		}
		if latest.IsZero() || t.After(latest) {
			latest = t
		}
	}

	if earliest.IsZero() {
		return "All time"
	}
	const layout = "2006-01-02 15:04"
	if earliest.Equal(latest) {
		return earliest.Format(layout)
	}
	return fmt.Sprintf("%s – %s", earliest.Format(layout), latest.Format(layout))
}
