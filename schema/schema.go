package schema

import (
	"fmt"
	"strings"
)

// ============================================================================
// REGISTRY — Describes the filterable shape of a movement dataset
// ============================================================================
// The translator uses registry metadata to build its instruction prompt.
// The engine uses it to validate and evaluate filter specs.
// Both iterate the registry; neither hardcodes dimension names or regions.
// ============================================================================

// Kind is the constraint shape a dimension accepts.
type Kind string

const (
	KindTimeRange   Kind = "time_range"   // [start instant, end instant]
	KindNumberRange Kind = "number_range" // [min, max]
	KindRegionSet   Kind = "region_set"   // set of named-region tags
	KindLabelSet    Kind = "label_set"    // set of exact labels
)

// ColumnType is the value type of a record column.
type ColumnType string

const (
	ColumnString ColumnType = "string"
	ColumnNumber ColumnType = "number"
	ColumnTime   ColumnType = "time"
)

// Registry is the complete set of recognized filter dimensions, record
// columns and named regions.
type Registry struct {
	Name       string          `json:"name" yaml:"name"`
	Columns    []ColumnMeta    `json:"columns" yaml:"columns"`
	Dimensions []DimensionMeta `json:"dimensions" yaml:"dimensions"`
	Regions    []Region        `json:"regions" yaml:"regions"`
}

// ColumnMeta describes one column of the input contract.
type ColumnMeta struct {
	Key         string     `json:"key" yaml:"key"`
	Type        ColumnType `json:"type" yaml:"type"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Unit        string     `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// DimensionMeta describes a filter dimension.
//
// Column names the record column the predicate reads. Region-set dimensions
// read the position prefix in Column (e.g. "dest" → dest_lat/dest_lon).
type DimensionMeta struct {
	Key         string `json:"key" yaml:"key"`
	DisplayName string `json:"displayName" yaml:"display_name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Kind        Kind   `json:"kind" yaml:"kind"`
	Column      string `json:"column" yaml:"column"`
	Unit        string `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// Record column keys of the input contract.
const (
	ColFlightID   = "flight_id"
	ColOriginCity = "origin_city"
	ColOriginLat  = "origin_lat"
	ColOriginLon  = "origin_lon"
	ColDestCity   = "dest_city"
	ColDestLat    = "dest_lat"
	ColDestLon    = "dest_lon"
	ColTimestamp  = "timestamp"
	ColSpeed      = "speed_kts"
	ColAltitude   = "altitude_ft"
)

// Position prefixes used by region-set dimensions.
const (
	PositionOrigin = "origin"
	PositionDest   = "dest"
)

// Default returns the built-in registry for drone/flight movement data.
func Default() *Registry {
	return &Registry{
		Name: "Flight movements",
		Columns: []ColumnMeta{
			{Key: ColFlightID, Type: ColumnString, Description: "Opaque flight identifier"},
			{Key: ColOriginCity, Type: ColumnString, Description: "Origin city label"},
			{Key: ColOriginLat, Type: ColumnNumber, Description: "Origin latitude", Unit: "degrees"},
			{Key: ColOriginLon, Type: ColumnNumber, Description: "Origin longitude", Unit: "degrees"},
			{Key: ColDestCity, Type: ColumnString, Description: "Destination city label"},
			{Key: ColDestLat, Type: ColumnNumber, Description: "Destination latitude", Unit: "degrees"},
			{Key: ColDestLon, Type: ColumnNumber, Description: "Destination longitude", Unit: "degrees"},
			{Key: ColTimestamp, Type: ColumnTime, Description: "Time of the movement"},
			{Key: ColSpeed, Type: ColumnNumber, Description: "Ground speed", Unit: "kts"},
			{Key: ColAltitude, Type: ColumnNumber, Description: "Altitude", Unit: "ft"},
		},
		Dimensions: []DimensionMeta{
			{Key: "time_range", DisplayName: "Time range", Kind: KindTimeRange, Column: ColTimestamp,
				Description: "Inclusive window on the movement timestamp"},
			{Key: "altitude_range", DisplayName: "Altitude range", Kind: KindNumberRange, Column: ColAltitude, Unit: "ft",
				Description: "Inclusive altitude bounds"},
			{Key: "speed_range", DisplayName: "Speed range", Kind: KindNumberRange, Column: ColSpeed, Unit: "kts",
				Description: "Inclusive speed bounds"},
			{Key: "destinations", DisplayName: "Destination regions", Kind: KindRegionSet, Column: PositionDest,
				Description: "Destination position falls in any of the named regions"},
			{Key: "origin_cities", DisplayName: "Origin cities", Kind: KindLabelSet, Column: ColOriginCity,
				Description: "Exact, case-sensitive origin city labels"},
			{Key: "dest_cities", DisplayName: "Destination cities", Kind: KindLabelSet, Column: ColDestCity,
				Description: "Exact, case-sensitive destination city labels"},
		},
		Regions: []Region{
			{Tag: "mexico", DisplayName: "Mexico", North: 32.7183, South: 14.5344, East: -86.5964, West: -118.5989},
			{Tag: "us", DisplayName: "United States", North: 49.3844, South: 24.3963, East: -66.9346, West: -125.0000},
		},
	}
}

// Dimension returns the dimension with the given key.
func (r *Registry) Dimension(key string) (DimensionMeta, bool) {
	for _, d := range r.Dimensions {
		if d.Key == key {
			return d, true
		}
	}
	return DimensionMeta{}, false
}

// Column returns the contract column with the given key.
func (r *Registry) Column(key string) (ColumnMeta, bool) {
	for _, c := range r.Columns {
		if c.Key == key {
			return c, true
		}
	}
	return ColumnMeta{}, false
}

// Region returns the region with the given tag. Tags are case-insensitive.
func (r *Registry) Region(tag string) (Region, bool) {
	tag = NormalizeTag(tag)
	for _, reg := range r.Regions {
		if reg.Tag == tag {
			return reg, true
		}
	}
	return Region{}, false
}

// DimensionKeys returns all dimension keys in registry order.
func (r *Registry) DimensionKeys() []string {
	keys := make([]string, len(r.Dimensions))
	for i, d := range r.Dimensions {
		keys[i] = d.Key
	}
	return keys
}

// ColumnKeys returns all column keys in contract order.
func (r *Registry) ColumnKeys() []string {
	keys := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		keys[i] = c.Key
	}
	return keys
}

// RegionTags returns all region tags in registry order.
func (r *Registry) RegionTags() []string {
	tags := make([]string, len(r.Regions))
	for i, reg := range r.Regions {
		tags[i] = reg.Tag
	}
	return tags
}

// Validate checks the registry for internal consistency.
func (r *Registry) Validate() error {
	seenDim := make(map[string]bool)
	for _, d := range r.Dimensions {
		if d.Key == "" {
			return fmt.Errorf("dimension with empty key")
		}
		if seenDim[d.Key] {
			return fmt.Errorf("duplicate dimension %q", d.Key)
		}
		seenDim[d.Key] = true

		switch d.Kind {
		case KindTimeRange, KindNumberRange, KindLabelSet:
			if _, ok := r.Column(d.Column); !ok {
				return fmt.Errorf("dimension %q reads unknown column %q", d.Key, d.Column)
			}
		case KindRegionSet:
			if d.Column != PositionOrigin && d.Column != PositionDest {
				return fmt.Errorf("dimension %q reads unknown position %q", d.Key, d.Column)
			}
		default:
			return fmt.Errorf("dimension %q has unknown kind %q", d.Key, d.Kind)
		}
	}

	seenTag := make(map[string]bool)
	for _, reg := range r.Regions {
		if err := reg.Validate(); err != nil {
			return err
		}
		if seenTag[reg.Tag] {
			return fmt.Errorf("duplicate region %q", reg.Tag)
		}
		seenTag[reg.Tag] = true
	}
	return nil
}

// Clone returns a deep copy of the registry.
func (r *Registry) Clone() *Registry {
	return &Registry{
		Name:       r.Name,
		Columns:    append([]ColumnMeta(nil), r.Columns...),
		Dimensions: append([]DimensionMeta(nil), r.Dimensions...),
		Regions:    append([]Region(nil), r.Regions...),
	}
}

// NormalizeTag lowercases and trims a region tag.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}
