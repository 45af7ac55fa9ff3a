package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/golang/geo/s2"
	"github.com/spektr-org/flightquery/schema"
)

// ============================================================================
// AGGREGATORS — Summary statistics, grouping and aggregation via RecordView
// ============================================================================
// All functions operate on RecordView — zero-copy access to any data source.
// Grouping produces SubViews (index lists into parent view).
// Missing values (NaN numbers, zero times, empty labels) are skipped.
// ============================================================================

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// Summarize computes headline statistics of a view.
// An empty view yields zeros and an empty top-destination list.
func Summarize(view RecordView, opts ...Option) Summary {
	cfg := applyOptions(opts)

	s := Summary{
		Count:           view.Len(),
		TopDestinations: []LabelCount{},
	}
	if s.Count == 0 {
		return s
	}

	origins := make(map[string]struct{})
	destCounts := make(map[string]int)
	var destOrder []string
	var alt, spd, dist mean

	for i := 0; i < view.Len(); i++ {
		r := view.At(i)
		if r.OriginCity != "" {
			origins[r.OriginCity] = struct{}{}
		}
		if r.DestCity != "" {
			if _, seen := destCounts[r.DestCity]; !seen {
				destOrder = append(destOrder, r.DestCity)
			}
			destCounts[r.DestCity]++
		}
		alt.add(r.Altitude)
		spd.add(r.Speed)
		dist.add(DistanceKm(r))
	}

	s.DistinctOrigins = len(origins)
	s.DistinctDestinations = len(destCounts)
	s.TopDestinations = topK(destOrder, destCounts, cfg.TopK)
	s.MeanAltitude = alt.value()
	s.MeanSpeed = spd.value()
	s.MeanDistanceKm = dist.value()
	return s
}

// topK returns the k most frequent labels. Ties keep first-encountered order.
func topK(order []string, counts map[string]int, k int) []LabelCount {
	out := make([]LabelCount, len(order))
	for i, label := range order {
		out[i] = LabelCount{Label: label, Count: counts[label]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// DistanceKm returns the great-circle distance between a record's origin and
// destination, or NaN when either position is not finite.
func DistanceKm(r *Record) float64 {
	if !finite(r.OriginLat) || !finite(r.OriginLon) || !finite(r.DestLat) || !finite(r.DestLon) {
		return math.NaN()
	}
	o := s2.LatLngFromDegrees(r.OriginLat, r.OriginLon)
	d := s2.LatLngFromDegrees(r.DestLat, r.DestLon)
	return o.Distance(d).Radians() * EarthRadiusKm
}

// MeanNumber averages a numeric column, skipping missing values.
// Returns 0 when no value is valid.
func MeanNumber(view RecordView, col string) float64 {
	var m mean
	for i := 0; i < view.Len(); i++ {
		m.add(view.At(i).Number(col))
	}
	return m.value()
}

type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	m.sum += v
	m.n++
}

func (m *mean) value() float64 {
	if m.n == 0 {
		return 0
	}
	return m.sum / float64(m.n)
}

// ============================================================================
// AGGREGATION — count / average / group_by
// ============================================================================

// Aggregate runs the handler for spec.Type. A nil spec, an unknown type or an
// unusable column yields nil: the request is a no-op, not an error.
func Aggregate(view RecordView, spec *AggregationSpec, reg *schema.Registry) *AggregationResult {
	if spec == nil {
		return nil
	}
	if spec.GroupBy != "" {
		if _, ok := reg.Column(spec.GroupBy); !ok {
			return nil
		}
	}

	res := &AggregationResult{
		Type:    spec.Type,
		Column:  spec.Column,
		GroupBy: spec.GroupBy,
		Count:   view.Len(),
	}

	switch spec.Type {
	case AggCount:
		res.Value = float64(res.Count)
		if spec.GroupBy != "" {
			res.Groups = groupByColumn(view, spec.GroupBy)
			for i := range res.Groups {
				res.Groups[i].Value = float64(res.Groups[i].Count)
			}
		}

	case AggAverage:
		if !isNumericColumn(reg, spec.Column) {
			return nil
		}
		res.Value = MeanNumber(view, spec.Column)
		if spec.GroupBy != "" {
			res.Groups = groupByColumn(view, spec.GroupBy)
			for i := range res.Groups {
				res.Groups[i].Value = MeanNumber(res.Groups[i].View, spec.Column)
			}
		}

	case AggGroupBy:
		key := spec.GroupBy
		measure := spec.Column
		if key == "" {
			// {"type":"group_by","column":"dest_city"} groups by column.
			key, measure = spec.Column, ""
			res.GroupBy, res.Column = key, ""
		}
		if _, ok := reg.Column(key); !ok {
			return nil
		}
		if measure != "" && !isNumericColumn(reg, measure) {
			measure = ""
			res.Column = ""
		}
		res.Value = float64(res.Count)
		res.Groups = groupByColumn(view, key)
		for i := range res.Groups {
			if measure != "" {
				res.Groups[i].Value = MeanNumber(res.Groups[i].View, measure)
			} else {
				res.Groups[i].Value = float64(res.Groups[i].Count)
			}
		}

	default:
		return nil
	}
	return res
}

// NormalizeAggregationType maps accepted aliases onto handler names.
func NormalizeAggregationType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "count":
		return AggCount
	case "average", "avg", "mean":
		return AggAverage
	case "group_by", "groupby", "group":
		return AggGroupBy
	}
	return strings.TrimSpace(t)
}

func isNumericColumn(reg *schema.Registry, col string) bool {
	meta, ok := reg.Column(col)
	return ok && meta.Type == schema.ColumnNumber
}

// groupByColumn buckets a view by a column's rendered value.
// Groups keep first-encountered order.
func groupByColumn(view RecordView, col string) []Group {
	grouped := make(map[string][]int)
	order := make([]string, 0)

	for i := 0; i < view.Len(); i++ {
		key := view.At(i).Value(col)
		if _, exists := grouped[key]; !exists {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], i)
	}

	groups := make([]Group, 0, len(order))
	for _, key := range order {
		groups = append(groups, Group{
			Key:   key,
			Count: len(grouped[key]),
			View:  newSubView(view, grouped[key]),
		})
	}
	return groups
}

// ============================================================================
// EXTENTS — Filter option discovery
// ============================================================================

// ComputeExtents returns the distinct labels and value ranges of a view.
// Labels are sorted; missing values are ignored.
func ComputeExtents(view RecordView) Extents {
	e := Extents{
		Count:        view.Len(),
		Origins:      UniqueLabels(view, schema.ColOriginCity),
		Destinations: UniqueLabels(view, schema.ColDestCity),
	}
	sort.Strings(e.Origins)
	sort.Strings(e.Destinations)

	altSeen, spdSeen := false, false
	for i := 0; i < view.Len(); i++ {
		r := view.At(i)
		if !r.Timestamp.IsZero() {
			if e.Earliest.IsZero() || r.Timestamp.Before(e.Earliest) {
				e.Earliest = r.Timestamp
			}
			if e.Latest.IsZero() || r.Timestamp.After(e.Latest) {
				e.Latest = r.Timestamp
			}
		}
		if finite(r.Altitude) {
			if !altSeen || r.Altitude < e.MinAltitude {
				e.MinAltitude = r.Altitude
			}
			if !altSeen || r.Altitude > e.MaxAltitude {
				e.MaxAltitude = r.Altitude
			}
			altSeen = true
		}
		if finite(r.Speed) {
			if !spdSeen || r.Speed < e.MinSpeed {
				e.MinSpeed = r.Speed
			}
			if !spdSeen || r.Speed > e.MaxSpeed {
				e.MaxSpeed = r.Speed
			}
			spdSeen = true
		}
	}
	return e
}

// UniqueLabels returns distinct non-empty values of a column in
// first-encountered order.
func UniqueLabels(view RecordView, col string) []string {
	seen := make(map[string]bool)
	result := []string{}
	for i := 0; i < view.Len(); i++ {
		val := view.At(i).Label(col)
		if val != "" && !seen[val] {
			seen[val] = true
			result = append(result, val)
		}
	}
	return result
}

// ============================================================================
// FORMATTING UTILITIES
// ============================================================================

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	if n < 0 {
		return "-" + FormatInt(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s,%03d", FormatInt(n/1000), n%1000)
}

// RoundTo2 rounds to 2 decimal places.
func RoundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}
