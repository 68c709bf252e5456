package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/artinstitute/galleryroom/internal/config"
	"github.com/artinstitute/galleryroom/internal/handlers"
	"github.com/artinstitute/galleryroom/internal/metrics"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gallery room API server",
		Long: `Starts the Gallery Room API on the specified port.

Browsers upload an artwork, start an analysis and then drive the carousel
over HTTP or the websocket stream. Services are configured from the
environment (STYLE_API_URL, PREDICT_PROVIDER, GALLERY_FILE, ...).`,
		Example: `  # Start server on default port 8888
  galleryroom serve

  # Start server on custom port
  galleryroom serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("port") {
				port = cfg.Port
			}

			deps, err := buildDeps(cfg)
			if err != nil {
				return err
			}
			handler := handlers.New(deps, cfg.AnalyzeTimeout())

			// Set up routes
			mux := http.NewServeMux()
			handler.Register(mux)
			mux.Handle("/metrics", metrics.Handler())
			mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
				if _, err := w.Write([]byte("OK")); err != nil {
					slog.Error("Unable to write healthcheck", "err", err)
				}
			})
			mux.HandleFunc("/", handler.HandleStatic)

			addr := ":" + port
			server := &http.Server{
				Addr:              addr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			go handler.SweepSessions(cmd.Context(), cfg.SessionTTL)

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Gallery room available", "addr", addr, "url", "http://localhost"+addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				handler.Wait()
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on (defaults to $PORT)")

	return cmd
}
