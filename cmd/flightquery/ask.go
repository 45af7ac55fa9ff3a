package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spektr-org/flightquery/engine"
	"github.com/spektr-org/flightquery/helpers"
	"github.com/spektr-org/flightquery/session"
)

// ============================================================================
// ASK — One question against a CSV file
// ============================================================================

type askOptions struct {
	file    string
	query   string
	sets    []string
	format  string
	outFile string
}

func newAskCmd() *cobra.Command {
	o := &askOptions{}
	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Translate a question into filters and apply them to a CSV file",
		Example: `  flightquery ask --file flights.csv --query "flights to Laredo above 500 ft" --format text
  flightquery ask --file flights.csv --query "average speed by destination" --format csv
  flightquery ask --file flights.csv --set 'altitude_range=[0,5000]' --set 'destinations=["mexico"]' --format records --out mexico.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAsk(cmd.Context(), cmd.OutOrStdout(), o)
		},
	}
	cmd.Flags().StringVar(&o.file, "file", "", "path to CSV data file (required)")
	cmd.Flags().StringVar(&o.query, "query", "", "natural language question")
	cmd.Flags().StringArrayVar(&o.sets, "set", nil, "manual filter as dimension=JSON, repeatable")
	cmd.Flags().StringVar(&o.format, "format", "json", "output format: json, pretty, text, csv, records")
	cmd.Flags().StringVar(&o.outFile, "out", "", "write output to file instead of stdout")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runAsk(ctx context.Context, stdout io.Writer, o *askOptions) error {
	if o.query == "" && len(o.sets) == 0 {
		return fmt.Errorf("either --query or --set is required")
	}
	if err := checkFormat(o.format, "json", "pretty", "text", "csv", "records"); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	live, err := liveRegistry(ctx, cfg, false)
	if err != nil {
		return err
	}
	manager, err := newManager(cfg, live, o.query != "")
	if err != nil {
		return err
	}

	// ── Read data ─────────────────────────────────────────────────────────
	ds, err := helpers.ReadCSVFile(o.file, live.Load())
	if err != nil {
		return err
	}
	log.Printf("📊 Parsed %d records (%d dropped)", len(ds.Records), ds.Dropped)
	manager.SetDataset(ds)

	s := manager.Create()

	// ── Manual filters ────────────────────────────────────────────────────
	for _, set := range o.sets {
		dim, raw, ok := strings.Cut(set, "=")
		if !ok {
			return fmt.Errorf("invalid --set %q: expected dimension=JSON", set)
		}
		dim = strings.TrimSpace(dim)
		c, err := engine.DecodeConstraint(dim, json.RawMessage(raw), s.Registry())
		if err != nil {
			return err
		}
		if err := s.SetManual(dim, c); err != nil {
			return err
		}
	}

	// ── Query ─────────────────────────────────────────────────────────────
	out := cliOutput{Query: o.query}
	var res *engine.Result
	if o.query != "" {
		ans, err := s.Ask(ctx, o.query)
		if err != nil {
			return err
		}
		out.Produced = ans.Translation.Produced
		res = ans.Result
	} else if res, err = s.Result(); err != nil {
		return err
	}
	out.State = s.State()
	out.Summary = res.Summary
	out.Aggregation = res.Aggregation
	out.Text = engine.BuildText(res)

	// ── Render output ─────────────────────────────────────────────────────
	w, closeOut, err := openOutput(stdout, o.outFile)
	if err != nil {
		return err
	}
	defer closeOut()

	switch o.format {
	case "records":
		if err := helpers.WriteCSV(w, ds.Header, res.View, s.Registry()); err != nil {
			return err
		}
	case "csv":
		if err := writeCSV(w, res, s.Registry()); err != nil {
			return err
		}
	case "text":
		fmt.Fprintln(w, out.Text)
	default:
		if err := writeJSON(w, out, o.format); err != nil {
			return err
		}
	}
	if o.outFile != "" {
		log.Printf("📄 Output written to %s", o.outFile)
	}
	return nil
}

// ============================================================================
// SUMMARY — Headline statistics and extents of a CSV file
// ============================================================================

func newSummaryCmd() *cobra.Command {
	var file, format string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print summary statistics and value extents of a CSV file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(format, "json", "pretty", "text"); err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			live, err := liveRegistry(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			ds, err := helpers.ReadCSVFile(file, live.Load())
			if err != nil {
				return err
			}
			view := ds.View()
			res := &engine.Result{View: view, Summary: engine.Summarize(view, engine.WithTopK(cfg.TopK))}

			w := cmd.OutOrStdout()
			if format == "text" {
				fmt.Fprintln(w, engine.BuildText(res))
				return nil
			}
			return writeJSON(w, summaryOutput{
				Records: len(ds.Records),
				Dropped: ds.Dropped,
				Summary: res.Summary,
				Extents: engine.ComputeExtents(view),
				Period:  engine.DerivePeriod(view),
			}, format)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to CSV data file (required)")
	cmd.Flags().StringVar(&format, "format", "pretty", "output format: json, pretty, text")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// ============================================================================
// OUTPUT TYPES
// ============================================================================

type cliOutput struct {
	Query       string                    `json:"query,omitempty"`
	Produced    json.RawMessage           `json:"produced,omitempty"`
	State       session.Snapshot          `json:"state"`
	Summary     engine.Summary            `json:"summary"`
	Aggregation *engine.AggregationResult `json:"aggregation,omitempty"`
	Text        string                    `json:"text"`
}

type summaryOutput struct {
	Records int            `json:"records"`
	Dropped int            `json:"dropped"`
	Summary engine.Summary `json:"summary"`
	Extents engine.Extents `json:"extents"`
	Period  string         `json:"period"`
}

func openOutput(stdout io.Writer, path string) (io.Writer, func(), error) {
	if path == "" {
		return stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func checkFormat(format string, allowed ...string) error {
	for _, a := range allowed {
		if format == a {
			return nil
		}
	}
	return fmt.Errorf("unknown format %q (want one of %s)", format, strings.Join(allowed, ", "))
}
