package helpers

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spektr-org/flightquery/engine"
	"github.com/spektr-org/flightquery/schema"
)

// ============================================================================
// CSV HELPER — Parses movement CSV data into []engine.Record and back
// ============================================================================
// Consumer reads the CSV from wherever it lives (file, upload, stdin).
// This helper enforces the input contract, coerces values and keeps the raw
// cells so an export reproduces every original column.
// ============================================================================

// ErrMissingColumns is returned when the header lacks a contract column.
var ErrMissingColumns = errors.New("missing required columns")

// Dataset is an ingested CSV file.
type Dataset struct {
	Header  []string        // original header, as read
	Records []engine.Record // valid records in file order
	Dropped int             // rows excluded for invalid coordinates or shape
}

// View returns the dataset as a RecordView.
func (d *Dataset) View() engine.RecordView {
	return engine.NewSliceView(d.Records)
}

// ParseCSV parses CSV bytes into a Dataset.
func ParseCSV(data []byte, reg *schema.Registry) (*Dataset, error) {
	return ReadCSV(bytes.NewReader(data), reg)
}

// ReadCSVFile opens and parses a CSV file.
func ReadCSVFile(path string, reg *schema.Registry) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()
	return ReadCSV(f, reg)
}

// ReadCSV parses a CSV stream into a Dataset.
//
// Every contract column must be present; headers are matched with
// Registry.MatchHeader, so "Origin City" or "Speed (kts)" are accepted. Rows whose coordinates are missing,
// non-numeric or out of range are dropped. Speed and altitude that cannot be
// coerced are kept as NaN; an unparseable timestamp is kept as zero time.
func ReadCSV(r io.Reader, reg *schema.Registry) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	// Read header
	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV headers: %w", err)
	}

	// Build contract column → index mapping
	index, missing := reg.MatchHeader(headers)
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	ds := &Dataset{Header: headers}
	cell := func(row []string, key string) string {
		i := index[key]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	// Read rows
	line := 1
	for {
		row, err := reader.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				ds.Dropped++ // skip malformed rows
				continue
			}
			return nil, fmt.Errorf("failed to read CSV row %d: %w", line, err)
		}

		rec := engine.Record{
			FlightID:   cell(row, schema.ColFlightID),
			OriginCity: cell(row, schema.ColOriginCity),
			DestCity:   cell(row, schema.ColDestCity),
			Speed:      parseNumber(cell(row, schema.ColSpeed)),
			Altitude:   parseNumber(cell(row, schema.ColAltitude)),
			Raw:        row,
		}
		rec.Timestamp, _ = engine.ParseInstant(cell(row, schema.ColTimestamp))

		var ok bool
		if rec.OriginLat, rec.OriginLon, ok = parsePosition(cell(row, schema.ColOriginLat), cell(row, schema.ColOriginLon)); !ok {
			ds.Dropped++
			continue
		}
		if rec.DestLat, rec.DestLon, ok = parsePosition(cell(row, schema.ColDestLat), cell(row, schema.ColDestLon)); !ok {
			ds.Dropped++
			continue
		}

		ds.Records = append(ds.Records, rec)
	}

	if ds.Dropped > 0 {
		log.Printf("⚠️ CSV: dropped %d of %d rows with invalid coordinates or shape", ds.Dropped, line-2)
	}
	log.Printf("✅ CSV: loaded %d records", len(ds.Records))
	return ds, nil
}

func parseNumber(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) {
		return math.NaN()
	}
	return f
}

func parsePosition(latStr, lonStr string) (lat, lon float64, ok bool) {
	lat, lon = parseNumber(latStr), parseNumber(lonStr)
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return 0, 0, false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, false
	}
	return lat, lon, true
}

// ============================================================================
// EXPORT
// ============================================================================

// WriteCSV writes a view under the given header. Records that kept their raw
// cells are written verbatim; others are rendered column by column, leaving
// non-contract columns empty.
func WriteCSV(w io.Writer, header []string, view engine.RecordView, reg *schema.Registry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}

	keys := make([]string, len(header))
	for i, h := range header {
		keys[i], _ = reg.ColumnForHeader(h)
	}

	for i := 0; i < view.Len(); i++ {
		r := view.At(i)
		if len(r.Raw) == len(header) {
			if err := cw.Write(r.Raw); err != nil {
				return err
			}
			continue
		}
		row := make([]string, len(keys))
		for j, key := range keys {
			if key != "" {
				row[j] = r.Value(key)
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ExportFilename returns the download name for a filtered export.
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("filtered_drone_flights_%s.csv", now.Format("20060102_150405"))
}
