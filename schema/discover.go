package schema

import (
	"regexp"
	"strings"
	"unicode"
)

// ============================================================================
// HEADER DISCOVERY — Map arbitrary CSV headers onto contract columns
// ============================================================================
// Exports from different tools spell the same column differently:
// "Origin City", "originLat", "Speed (kts)", "alt_ft". Each header is
// normalized to snake_case, a trailing unit in parentheses is dropped, and
// the result is matched against the column key first, then its aliases.
// ============================================================================

// columnAliases lists accepted spellings per contract column, after
// normalization. The column key itself always matches.
var columnAliases = map[string][]string{
	ColFlightID:   {"flight", "flight_no", "flight_number", "id"},
	ColOriginCity: {"origin", "from", "from_city", "origin_name"},
	ColOriginLat:  {"origin_latitude", "from_lat", "origin_y"},
	ColOriginLon:  {"origin_longitude", "origin_lng", "from_lon", "from_lng", "origin_x"},
	ColDestCity:   {"destination", "destination_city", "dest", "to", "to_city"},
	ColDestLat:    {"dest_latitude", "destination_lat", "destination_latitude", "to_lat", "dest_y"},
	ColDestLon:    {"dest_longitude", "dest_lng", "destination_lon", "destination_longitude", "to_lon", "to_lng", "dest_x"},
	ColTimestamp:  {"time", "datetime", "date_time", "event_time", "ts"},
	ColSpeed:      {"speed", "ground_speed", "speed_knots"},
	ColAltitude:   {"altitude", "alt", "alt_ft", "altitude_feet"},
}

var unitSuffix = regexp.MustCompile(`\s*\([^)]*\)\s*$`)

// NormalizeHeader converts a raw CSV header into its matching form.
// "Speed (kts)" → "speed", "originLat" → "origin_lat".
func NormalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.TrimSpace(h)
	h = unitSuffix.ReplaceAllString(h, "")
	return toSnakeCase(h)
}

// ColumnForHeader returns the contract column a header refers to.
func (r *Registry) ColumnForHeader(header string) (string, bool) {
	key := NormalizeHeader(header)
	for _, c := range r.Columns {
		if c.Key == key {
			return c.Key, true
		}
	}
	for _, c := range r.Columns {
		for _, alias := range columnAliases[c.Key] {
			if alias == key {
				return c.Key, true
			}
		}
	}
	return "", false
}

// MatchHeader maps contract columns to their position in a header row.
// When several headers resolve to the same column, an exact key beats an
// alias and the leftmost header wins among equals. Columns with no header
// are returned in missing, in contract order.
func (r *Registry) MatchHeader(headers []string) (index map[string]int, missing []string) {
	index = make(map[string]int, len(r.Columns))
	exact := make(map[string]bool, len(r.Columns))

	for i, h := range headers {
		col, ok := r.ColumnForHeader(h)
		if !ok {
			continue
		}
		isExact := NormalizeHeader(h) == col
		if _, seen := index[col]; seen && (exact[col] || !isExact) {
			continue
		}
		index[col] = i
		exact[col] = isExact
	}

	for _, c := range r.Columns {
		if _, ok := index[c.Key]; !ok {
			missing = append(missing, c.Key)
		}
	}
	return index, missing
}

// ============================================================================
// STRING UTILITIES
// ============================================================================

// toSnakeCase converts "Column Name" or "columnName" → "column_name".
func toSnakeCase(s string) string {
	// Handle camelCase: insert underscore before uppercase letters
	var result strings.Builder
	prev := rune(0)
	for i, r := range s {
		if unicode.IsUpper(r) && i > 0 {
			if unicode.IsLower(prev) || unicode.IsDigit(prev) {
				result.WriteRune('_')
			}
		}
		result.WriteRune(r)
		prev = r
	}

	s = result.String()
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	s = strings.Trim(s, "_")
	return s
}
