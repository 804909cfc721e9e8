package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/aerofleet/internal/app"
	"github.com/ternarybob/aerofleet/internal/common"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scraping engine",
	Long: `Starts the scheduler: the queue poll loop, the worker pool, stale-job
reclamation and, when enabled, the cron enqueue branch. Exposes a health
endpoint and runs until interrupted.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "health endpoint listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := common.InitLogger(cfg)
	common.PrintBanner(common.LoadVersionFromFile())
	common.InstallCrashHandler("logs")
	defer common.RecoverWithCrashFile()

	ctx := context.Background()
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	if err := application.SchedulerService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	srv := &http.Server{Addr: serveAddr, Handler: healthHandler(application)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", serveAddr).Msg("Health endpoint failed")
		}
	}()

	logger.Info().
		Str("addr", serveAddr).
		Msg("Engine running - press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Health endpoint shutdown failed")
	}
	if err := application.SchedulerService.Stop(); err != nil {
		logger.Warn().Err(err).Msg("Scheduler stop failed")
	}

	logger.Info().Msg("Engine stopped")
	return nil
}

// healthHandler reports process liveness and database reachability.
func healthHandler(application *app.App) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK
		if err := application.Storage.Ping(r.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    status,
			"scheduler": application.SchedulerService.IsRunning(),
			"version":   common.Version,
		})
	})
	return mux
}
