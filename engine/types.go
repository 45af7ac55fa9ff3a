package engine

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/spektr-org/flightquery/schema"
)

// ============================================================================
// ENGINE TYPES — Movement records, filter specs, aggregation specs
// ============================================================================
// The engine reads records through RecordView and evaluates FilterSpecs
// against the schema.Registry. It never hardcodes dimension names.
// ============================================================================

// ============================================================================
// RECORD — One movement event
// ============================================================================

// Record is one movement event.
//
// Speed and Altitude are NaN when the source value could not be coerced.
// Timestamp is the zero time when it could not be parsed.
// Raw keeps the original CSV cells (may be nil for records built in code).
type Record struct {
	FlightID   string    `json:"flight_id"`
	OriginCity string    `json:"origin_city"`
	OriginLat  float64   `json:"origin_lat"`
	OriginLon  float64   `json:"origin_lon"`
	DestCity   string    `json:"dest_city"`
	DestLat    float64   `json:"dest_lat"`
	DestLon    float64   `json:"dest_lon"`
	Timestamp  time.Time `json:"timestamp"`
	Speed      float64   `json:"speed_kts"`
	Altitude   float64   `json:"altitude_ft"`

	Raw []string `json:"-"`
}

// Label returns the value of a string column, or "" for other columns.
func (r *Record) Label(col string) string {
	switch col {
	case schema.ColFlightID:
		return r.FlightID
	case schema.ColOriginCity:
		return r.OriginCity
	case schema.ColDestCity:
		return r.DestCity
	}
	return ""
}

// Number returns the value of a numeric column, or NaN when the column is
// unknown or the value is missing.
func (r *Record) Number(col string) float64 {
	switch col {
	case schema.ColOriginLat:
		return r.OriginLat
	case schema.ColOriginLon:
		return r.OriginLon
	case schema.ColDestLat:
		return r.DestLat
	case schema.ColDestLon:
		return r.DestLon
	case schema.ColSpeed:
		return r.Speed
	case schema.ColAltitude:
		return r.Altitude
	}
	return math.NaN()
}

// Time returns the value of a time column, or the zero time.
func (r *Record) Time(col string) time.Time {
	if col == schema.ColTimestamp {
		return r.Timestamp
	}
	return time.Time{}
}

// Position returns the coordinates for a position prefix ("origin" or "dest").
func (r *Record) Position(prefix string) (lat, lon float64, ok bool) {
	switch prefix {
	case schema.PositionOrigin:
		return r.OriginLat, r.OriginLon, true
	case schema.PositionDest:
		return r.DestLat, r.DestLon, true
	}
	return 0, 0, false
}

// Value renders any contract column as a string. Missing values render as "".
func (r *Record) Value(col string) string {
	switch col {
	case schema.ColFlightID, schema.ColOriginCity, schema.ColDestCity:
		return r.Label(col)
	case schema.ColTimestamp:
		if r.Timestamp.IsZero() {
			return ""
		}
		return r.Timestamp.Format(time.RFC3339)
	}
	v := r.Number(col)
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ============================================================================
// FILTER SPEC — Contract between translator, manual controls and engine
// ============================================================================

// FilterSpec maps dimension keys to constraints.
// Dimensions are AND-combined. Absent dimensions are unconstrained.
type FilterSpec map[string]Constraint

// Constraint is the value of one filter dimension. Which fields are used
// depends on Kind.
type Constraint struct {
	Kind   schema.Kind
	Lo, Hi float64   // number_range
	Start  time.Time // time_range
	End    time.Time
	Values []string // region_set, label_set
}

// TimeRange builds an inclusive time window.
func TimeRange(start, end time.Time) Constraint {
	return Constraint{Kind: schema.KindTimeRange, Start: start, End: end}
}

// NumberRange builds an inclusive numeric interval.
func NumberRange(lo, hi float64) Constraint {
	return Constraint{Kind: schema.KindNumberRange, Lo: lo, Hi: hi}
}

// Regions builds a set of named-region tags.
func Regions(tags ...string) Constraint {
	return Constraint{Kind: schema.KindRegionSet, Values: append([]string(nil), tags...)}
}

// Labels builds a set of exact labels.
func Labels(values ...string) Constraint {
	return Constraint{Kind: schema.KindLabelSet, Values: append([]string(nil), values...)}
}

// Active reports whether the constraint restricts anything. Empty sets do not.
func (c Constraint) Active() bool {
	switch c.Kind {
	case schema.KindRegionSet, schema.KindLabelSet:
		return len(c.Values) > 0
	}
	return true
}

// MarshalJSON writes the constraint in the same shape the decoder accepts.
func (c Constraint) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case schema.KindTimeRange:
		return json.Marshal([2]string{c.Start.Format(time.RFC3339Nano), c.End.Format(time.RFC3339Nano)})
	case schema.KindNumberRange:
		return json.Marshal([2]float64{c.Lo, c.Hi})
	default:
		if c.Values == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(c.Values)
	}
}

// Equal reports whether two constraints express the same restriction.
func (c Constraint) Equal(o Constraint) bool {
	if c.Kind != o.Kind {
		return false
	}
	switch c.Kind {
	case schema.KindTimeRange:
		return c.Start.Equal(o.Start) && c.End.Equal(o.End)
	case schema.KindNumberRange:
		return c.Lo == o.Lo && c.Hi == o.Hi
	}
	if len(c.Values) != len(o.Values) {
		return false
	}
	for i := range c.Values {
		if c.Values[i] != o.Values[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the spec that shares no slices with the original.
func (s FilterSpec) Clone() FilterSpec {
	if s == nil {
		return nil
	}
	out := make(FilterSpec, len(s))
	for k, c := range s {
		c.Values = append([]string(nil), c.Values...)
		out[k] = c
	}
	return out
}

// ============================================================================
// AGGREGATION SPEC
// ============================================================================

// Aggregation types with a handler.
const (
	AggCount   = "count"
	AggAverage = "average"
	AggGroupBy = "group_by"
)

// AggregationSpec is an optional aggregation request attached to a query.
type AggregationSpec struct {
	Type    string `json:"type"`
	Column  string `json:"column,omitempty"`
	GroupBy string `json:"group_by,omitempty"`
}

// Query bundles what Execute needs.
type Query struct {
	Filters     FilterSpec       `json:"filters,omitempty"`
	Aggregation *AggregationSpec `json:"aggregation,omitempty"`
}

// ============================================================================
// SUMMARY / RESULT
// ============================================================================

// LabelCount is a label with its occurrence count.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Summary holds headline statistics of a view.
type Summary struct {
	Count                int          `json:"count"`
	DistinctOrigins      int          `json:"distinctOrigins"`
	DistinctDestinations int          `json:"distinctDestinations"`
	TopDestinations      []LabelCount `json:"topDestinations"`
	MeanAltitude         float64      `json:"meanAltitude"`
	MeanSpeed            float64      `json:"meanSpeed"`
	MeanDistanceKm       float64      `json:"meanDistanceKm"`
}

// Group is one bucket of a grouped aggregation.
type Group struct {
	Key   string     `json:"key"`
	Count int        `json:"count"`
	Value float64    `json:"value"`
	View  RecordView `json:"-"` // records in this group (zero-copy)
}

// AggregationResult is the output of an aggregation handler.
type AggregationResult struct {
	Type    string  `json:"type"`
	Column  string  `json:"column,omitempty"`
	GroupBy string  `json:"groupBy,omitempty"`
	Count   int     `json:"count"`
	Value   float64 `json:"value"`
	Groups  []Group `json:"groups,omitempty"`
}

// Result is the output of Execute.
type Result struct {
	View        RecordView         `json:"-"`
	Summary     Summary            `json:"summary"`
	Aggregation *AggregationResult `json:"aggregation,omitempty"`
}

// Extents describes the value ranges present in a view, used to seed
// manual filter controls.
type Extents struct {
	Count        int       `json:"count"`
	Origins      []string  `json:"origins"`
	Destinations []string  `json:"destinations"`
	Earliest     time.Time `json:"earliest"`
	Latest       time.Time `json:"latest"`
	MinAltitude  float64   `json:"minAltitude"`
	MaxAltitude  float64   `json:"maxAltitude"`
	MinSpeed     float64   `json:"minSpeed"`
	MaxSpeed     float64   `json:"maxSpeed"`
}
