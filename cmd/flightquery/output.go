package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spektr-org/flightquery/engine"
	"github.com/spektr-org/flightquery/schema"
)

// ============================================================================
// CSV OUTPUT — Sheets-ready aggregation or summary
// ============================================================================

func writeCSV(w io.Writer, result *engine.Result, reg *schema.Registry) error {
	cw := csv.NewWriter(w)

	switch {
	case result == nil:
		cw.Write([]string{"Result", "No data"})
	case result.Aggregation != nil:
		writeAggregationCSV(cw, result.Aggregation)
	default:
		writeSummaryCSV(cw, result.Summary, reg)
	}

	cw.Flush()
	return cw.Error()
}

func writeAggregationCSV(cw *csv.Writer, agg *engine.AggregationResult) {
	groupLabel := "Group"
	if agg.GroupBy != "" {
		groupLabel = agg.GroupBy
	}
	cw.Write([]string{groupLabel, engine.LabelForAggregation(agg), "Count"})

	// Ungrouped → single total row
	if len(agg.Groups) == 0 {
		cw.Write([]string{"Total", fmtNum(agg.Value), strconv.Itoa(agg.Count)})
		return
	}
	for _, g := range agg.Groups {
		cw.Write([]string{g.Key, fmtNum(g.Value), strconv.Itoa(g.Count)})
	}
}

func writeSummaryCSV(cw *csv.Writer, s engine.Summary, reg *schema.Registry) {
	cw.Write([]string{"Metric", "Value"})
	cw.Write([]string{"Flights", strconv.Itoa(s.Count)})
	cw.Write([]string{"Distinct origins", strconv.Itoa(s.DistinctOrigins)})
	cw.Write([]string{"Distinct destinations", strconv.Itoa(s.DistinctDestinations)})
	cw.Write([]string{"Mean altitude" + unitSuffix(reg, schema.ColAltitude), fmtNum(s.MeanAltitude)})
	cw.Write([]string{"Mean speed" + unitSuffix(reg, schema.ColSpeed), fmtNum(s.MeanSpeed)})
	cw.Write([]string{"Mean distance (km)", fmtNum(s.MeanDistanceKm)})
	for _, lc := range s.TopDestinations {
		cw.Write([]string{"Top destination: " + lc.Label, strconv.Itoa(lc.Count)})
	}
}

func unitSuffix(reg *schema.Registry, col string) string {
	if c, ok := reg.Column(col); ok && c.Unit != "" {
		return " (" + c.Unit + ")"
	}
	return ""
}

// ============================================================================
// JSON OUTPUT
// ============================================================================

func writeJSON(w io.Writer, v interface{}, format string) error {
	var out []byte
	var err error

	if format == "pretty" {
		out, err = json.MarshalIndent(v, "", "  ")
	} else {
		out, err = json.Marshal(v)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// ============================================================================
// HELPERS
// ============================================================================

func fmtNum(v float64) string {
	// Whole numbers → no decimals, fractional → 2 decimals
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
