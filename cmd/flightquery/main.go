// Package main provides the CLI entrypoint for flightquery.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spektr-org/flightquery/internal/config"
	"github.com/spektr-org/flightquery/schema"
	"github.com/spektr-org/flightquery/session"
	"github.com/spektr-org/flightquery/translator"
)

// ============================================================================
// FLIGHTQUERY CLI — Ask questions about flight movement data
// ============================================================================

const version = "0.1.0"

var configPath string

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "flightquery",
		Short: "Natural-language filters over flight movement data",
		Long: `flightquery turns questions like "flights to Laredo in the last 24 hours above 500 ft"
into structured filters and applies them to a CSV of flight movements.

Environment:
  ANTHROPIC_API_KEY         Required for --query (provider anthropic)
  GEMINI_API_KEY            Required for --query (provider gemini)
  FLIGHTQUERY_PROVIDER      anthropic (default) or gemini
  FLIGHTQUERY_MODEL         Model override
  FLIGHTQUERY_TIMEOUT       Translation timeout in seconds (default 30)
  FLIGHTQUERY_REGIONS_FILE  YAML region overlay
  FLIGHTQUERY_ADDR          serve: listen address (default :8080)
  FLIGHTQUERY_HISTORY_DSN   serve: SQLite DSN for chat history (default in-memory)`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/flightquery/config.toml)")

	rootCmd.AddCommand(newAskCmd())
	rootCmd.AddCommand(newSummaryCmd())
	rootCmd.AddCommand(newRegionsCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "flightquery %s\n", version)
		},
	}
}

// ============================================================================
// SHARED SETUP
// ============================================================================

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// liveRegistry builds the registry in effect, with the configured region
// overlay applied. With watch set the overlay is reloaded until ctx ends.
func liveRegistry(ctx context.Context, cfg *config.Config, watch bool) (*schema.Live, error) {
	live := schema.NewLive(schema.Default())
	if cfg.RegionsFile == "" {
		return live, nil
	}
	var err error
	if watch {
		err = live.LoadAndWatch(ctx, cfg.RegionsFile)
	} else {
		var regions []schema.Region
		if regions, err = schema.LoadRegions(cfg.RegionsFile); err == nil {
			err = live.Overlay(regions)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load regions: %w", err)
	}
	log.Printf("🗺️ Regions: %s", strings.Join(live.Load().RegionTags(), ", "))
	return live, nil
}

// newManager wires a session manager. The generator is only built when
// needed, so commands that never translate run without an API key.
func newManager(cfg *config.Config, live *schema.Live, needTranslator bool, opts ...session.Option) (*session.Manager, error) {
	var tr session.Translator
	if needTranslator {
		gen, err := cfg.Generator()
		if err != nil {
			return nil, err
		}
		tr = translator.New(gen, live.Load(), translator.WithRegistrySource(live.Load))
	}
	opts = append([]session.Option{
		session.WithRegistry(live.Load),
		session.WithTimeout(cfg.Timeout),
		session.WithTopK(cfg.TopK),
	}, opts...)
	return session.NewManager(tr, opts...), nil
}

func newRegionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regions",
		Short: "List the named regions usable in the destinations filter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			live, err := liveRegistry(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%-12s %-24s %10s %10s %10s %10s\n", "TAG", "NAME", "SOUTH", "NORTH", "WEST", "EAST")
			for _, r := range live.Load().Regions {
				fmt.Fprintf(w, "%-12s %-24s %10.4f %10.4f %10.4f %10.4f\n", r.Tag, r.DisplayName, r.South, r.North, r.West, r.East)
			}
			return nil
		},
	}
}
