package engine

import (
	"fmt"

	"github.com/spektr-org/flightquery/schema"
)

// ============================================================================
// TABLE BUILDER — Produces TableData from views and aggregation results
// ============================================================================
// All functions operate on RecordView — zero-copy access to any data source.
// Column discovery uses the registry instead of inspecting records.
// ============================================================================

// TableData is a row/column rendering of records or aggregation groups.
type TableData struct {
	Title   string     `json:"title"`
	Columns []Column   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Footer  *Footer    `json:"footer,omitempty"`
}

// Column defines a table column.
type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Type  string `json:"type"`  // "text", "number", "time"
	Align string `json:"align"` // "left", "right"
}

// Footer provides totals for a table.
type Footer struct {
	Label  string            `json:"label"`
	Values map[string]string `json:"values"`
}

// ============================================================================
// RECORD TABLE — Row per record
// ============================================================================

// BuildRecordTable renders a view with one column per contract column.
func BuildRecordTable(title string, view RecordView, reg *schema.Registry) *TableData {
	columns := make([]Column, 0, len(reg.Columns))
	for _, c := range reg.Columns {
		col := Column{Key: c.Key, Label: c.Key, Type: "text", Align: "left"}
		switch c.Type {
		case schema.ColumnNumber:
			col.Type, col.Align = "number", "right"
		case schema.ColumnTime:
			col.Type = "time"
		}
		if c.Unit != "" && c.Type == schema.ColumnNumber {
			col.Label = fmt.Sprintf("%s (%s)", c.Key, c.Unit)
		}
		columns = append(columns, col)
	}

	rows := make([][]string, 0, view.Len())
	for i := 0; i < view.Len(); i++ {
		r := view.At(i)
		row := make([]string, 0, len(columns))
		for _, c := range columns {
			row = append(row, r.Value(c.Key))
		}
		rows = append(rows, row)
	}

	return &TableData{
		Title:   title,
		Columns: columns,
		Rows:    rows,
		Footer: &Footer{
			Label:  fmt.Sprintf("%s records", FormatInt(view.Len())),
			Values: map[string]string{},
		},
	}
}

// ============================================================================
// AGGREGATION TABLE — Row per group
// ============================================================================

// BuildAggregationTable renders the groups of an aggregation result.
// Ungrouped results render as a single "Total" row.
func BuildAggregationTable(agg *AggregationResult) *TableData {
	if agg == nil {
		return &TableData{Columns: []Column{}, Rows: [][]string{}}
	}

	groupLabel := "Group"
	if agg.GroupBy != "" {
		groupLabel = agg.GroupBy
	}

	columns := []Column{
		{Key: "group", Label: groupLabel, Type: "text", Align: "left"},
		{Key: "value", Label: LabelForAggregation(agg), Type: "number", Align: "right"},
		{Key: "count", Label: "Count", Type: "number", Align: "right"},
	}

	if len(agg.Groups) == 0 {
		return &TableData{
			Title:   LabelForAggregation(agg),
			Columns: columns,
			Rows:    [][]string{{"Total", formatValue(agg.Value), FormatInt(agg.Count)}},
		}
	}

	rows := make([][]string, 0, len(agg.Groups))
	var totalCount int
	for _, g := range agg.Groups {
		key := g.Key
		if key == "" {
			key = "(missing)"
		}
		rows = append(rows, []string{key, formatValue(g.Value), FormatInt(g.Count)})
		totalCount += g.Count
	}

	return &TableData{
		Title:   LabelForAggregation(agg),
		Columns: columns,
		Rows:    rows,
		Footer: &Footer{
			Label: "Total",
			Values: map[string]string{
				"count": FormatInt(totalCount),
			},
		},
	}
}

// LabelForAggregation returns a human-readable label for an aggregation.
func LabelForAggregation(agg *AggregationResult) string {
	switch agg.Type {
	case AggCount:
		return "Count"
	case AggAverage:
		return "Average " + agg.Column
	case AggGroupBy:
		if agg.Column != "" {
			return "Average " + agg.Column
		}
		return "Count"
	default:
		return "Value"
	}
}

func formatValue(v float64) string {
	return fmt.Sprintf("%.2f", RoundTo2(v))
}
