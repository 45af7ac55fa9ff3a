package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/spektr-org/flightquery/helpers"
	"github.com/spektr-org/flightquery/internal/api"
	"github.com/spektr-org/flightquery/internal/store"
	"github.com/spektr-org/flightquery/session"
)

// ============================================================================
// SERVE — HTTP API over analysis sessions
// ============================================================================

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var addr, file string
	var debug bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if !debug {
				gin.SetMode(gin.ReleaseMode)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// ── History ───────────────────────────────────────────────────────
			history, err := store.Open(cfg.HistoryDSN)
			if err != nil {
				return err
			}
			defer history.Close()

			// ── Registry + sessions ───────────────────────────────────────────
			live, err := liveRegistry(ctx, cfg, true)
			if err != nil {
				return err
			}
			manager, err := newManager(cfg, live, true, session.WithHistory(history))
			if err != nil {
				return err
			}
			if file != "" {
				ds, err := helpers.ReadCSVFile(file, live.Load())
				if err != nil {
					return err
				}
				manager.SetDataset(ds)
			}

			router := api.SetupRouter(manager, api.Options{RateLimit: cfg.RateLimit, Version: version})
			srv := &http.Server{
				Addr:              cfg.Addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Printf("🚀 flightquery %s listening on %s (provider %s)", version, cfg.Addr, cfg.Provider)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			log.Printf("🛑 Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&file, "file", "", "CSV dataset to load at startup")
	cmd.Flags().BoolVar(&debug, "debug", false, "run gin in debug mode")
	return cmd
}
