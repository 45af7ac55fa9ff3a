package translator

import (
	"fmt"
	"strings"
	"time"

	"github.com/spektr-org/flightquery/schema"
)

// ============================================================================
// PROMPT BUILDER — Registry-Driven Instruction Prompt
// ============================================================================
// The prompt is generated from schema.Registry:
//   - Columns → listed as the available fields
//   - Dimensions → listed with their constraint shape
//   - Regions → listed as the only accepted destination tags
//   - Current time → so "last 24 hours" can be resolved to instants
//
// Total data sent to AI: column names and shapes only. Never raw data.
// ============================================================================

// BuildPrompt generates the complete system prompt for the AI translator.
func BuildPrompt(reg *schema.Registry, now time.Time) string {
	var b strings.Builder

	// ── Header ────────────────────────────────────────────────────────────
	fmt.Fprintf(&b, `You are a data-query planner for "%s". The user asks questions about movement records.
Only return a JSON object matching the schema below. Do not include prose.
Translate the user's intent into filters over the dimensions and an optional aggregation.
Never execute code or return SQL. Never access external tools.
If a value is unknown, omit the field.

CURRENT TIME: %s (UTC)

`, reg.Name, now.UTC().Format(time.RFC3339))

	// ── Columns ───────────────────────────────────────────────────────────
	b.WriteString("AVAILABLE COLUMNS: ")
	b.WriteString(strings.Join(reg.ColumnKeys(), ", "))
	b.WriteString("\n\n")

	// ── Dimensions ────────────────────────────────────────────────────────
	b.WriteString("FILTER DIMENSIONS:\n")
	b.WriteString(buildDimensionDescription(reg))
	b.WriteString("\n")

	// ── Regions ───────────────────────────────────────────────────────────
	b.WriteString(buildRegionDescription(reg))

	// ── Response Format ───────────────────────────────────────────────────
	b.WriteString(buildResponseFormat(reg))

	// ── Common Query Translations ─────────────────────────────────────────
	b.WriteString(buildExampleTranslations(reg))

	// ── Footer ────────────────────────────────────────────────────────────
	b.WriteString("Remember: respond with the JSON object only. An empty object {} means no change.\n")

	return b.String()
}

// ============================================================================
// SECTION BUILDERS
// ============================================================================

func buildDimensionDescription(reg *schema.Registry) string {
	var b strings.Builder
	for _, d := range reg.Dimensions {
		fmt.Fprintf(&b, "- \"%s\"", d.Key)
		if d.DisplayName != "" && d.DisplayName != d.Key {
			fmt.Fprintf(&b, " (%s)", d.DisplayName)
		}
		fmt.Fprintf(&b, ": %s", shapeOf(d))
		if d.Description != "" {
			fmt.Fprintf(&b, " — %s", d.Description)
		}
		if d.Unit != "" {
			fmt.Fprintf(&b, " [unit: %s]", d.Unit)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// shapeOf describes the JSON value a dimension accepts.
func shapeOf(d schema.DimensionMeta) string {
	switch d.Kind {
	case schema.KindTimeRange:
		return `["start_datetime", "end_datetime"] as "YYYY-MM-DD HH:MM:SS" or RFC 3339`
	case schema.KindNumberRange:
		return "[min, max] as numbers"
	case schema.KindRegionSet:
		return `["region_tag", ...] using only the region tags listed below`
	case schema.KindLabelSet:
		return `["label", ...] exact, case-sensitive values of ` + d.Column
	}
	return string(d.Kind)
}

func buildRegionDescription(reg *schema.Registry) string {
	if len(reg.Regions) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("REGION TAGS:\n")
	for _, r := range reg.Regions {
		fmt.Fprintf(&b, "- \"%s\"", r.Tag)
		if r.DisplayName != "" {
			fmt.Fprintf(&b, " (%s)", r.DisplayName)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}

func buildResponseFormat(reg *schema.Registry) string {
	// Build dimension filter keys dynamically
	lines := make([]string, 0, len(reg.Dimensions))
	for _, d := range reg.Dimensions {
		var example string
		switch d.Kind {
		case schema.KindTimeRange:
			example = `["start_datetime", "end_datetime"]`
		case schema.KindNumberRange:
			example = "[min, max]"
		case schema.KindRegionSet:
			tags := reg.RegionTags()
			example = "[" + strings.Join(quotedValues(tags), ", ") + "]"
		default:
			example = `["value1", "value2"]`
		}
		lines = append(lines, fmt.Sprintf("    \"%s\": %s (optional)", d.Key, example))
	}

	return fmt.Sprintf(`SCHEMA:
{
  "filters": {
%s
  },
  "aggregation": {
    "type": "count" | "average" | "group_by",
    "column": "column_name" (optional),
    "group_by": "column_name" (optional)
  }
}

`, strings.Join(lines, ",\n"))
}

func buildExampleTranslations(reg *schema.Registry) string {
	var b strings.Builder
	b.WriteString("EXAMPLES:\n")

	var timeDim, numberDim, regionDim, labelDim string
	var labelCol string
	for _, d := range reg.Dimensions {
		switch d.Kind {
		case schema.KindTimeRange:
			if timeDim == "" {
				timeDim = d.Key
			}
		case schema.KindNumberRange:
			if numberDim == "" {
				numberDim = d.Key
			}
		case schema.KindRegionSet:
			if regionDim == "" {
				regionDim = d.Key
			}
		case schema.KindLabelSet:
			if d.Column == schema.ColDestCity || labelDim == "" {
				labelDim, labelCol = d.Key, d.Column
			}
		}
	}

	if labelDim != "" && timeDim != "" && numberDim != "" {
		fmt.Fprintf(&b, "- \"Show flights to Laredo in the last 24 hours above 500 ft\" → filters with %s: [\"Laredo\"], %s, %s\n",
			labelDim, timeDim, numberDim)
	}
	if regionDim != "" && numberDim != "" && len(reg.Regions) > 0 {
		fmt.Fprintf(&b, "- \"Only destinations in %s, altitude < 1000 ft\" → filters with %s: [\"%s\"], %s\n",
			reg.Regions[0].DisplayName, regionDim, reg.Regions[0].Tag, numberDim)
	}
	if labelDim != "" {
		fmt.Fprintf(&b, "- \"Compare McAllen vs Brownsville by average altitude\" → aggregation with type \"average\", column \"%s\", group_by: \"%s\" and %s filter\n",
			schema.ColAltitude, labelCol, labelDim)
	}
	b.WriteString("- \"How many flights are there?\" → {\"aggregation\": {\"type\": \"count\"}}\n")

	b.WriteString("\n")
	return b.String()
}

// ============================================================================
// HELPERS
// ============================================================================

func quotedValues(vals []string) []string {
	quoted := make([]string, len(vals))
	for i, v := range vals {
		quoted[i] = fmt.Sprintf("\"%s\"", v)
	}
	return quoted
}
