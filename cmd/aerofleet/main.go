package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/aerofleet/internal/common"
	"github.com/ternarybob/aerofleet/internal/interfaces"
	"github.com/ternarybob/aerofleet/internal/storage/postgres"
)

var (
	configFiles []string
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "aerofleet",
	Short: "Airline fleet scraping engine",
	Long: `AeroFleet keeps a PostgreSQL catalog of airline fleets current by
scraping public fleet databases through a persistent job queue, a pooled
headless browser and LLM extraction.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringArrayVarP(&configFiles, "config", "c", nil,
		"config file path (repeatable, later files override earlier ones)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level override (trace|debug|info|warn|error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(enqueueCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves configuration: defaults, then config files in flag
// order, then environment, then the log-level flag on top.
func loadConfig() (*common.Config, error) {
	paths := configFiles
	if len(paths) == 0 {
		// Auto-discover a config file next to the working directory.
		if _, err := os.Stat("aerofleet.toml"); err == nil {
			paths = []string{"aerofleet.toml"}
		}
	}

	cfg, err := common.LoadFromFiles(paths...)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStorage connects PostgreSQL for the lightweight commands that do
// not need the scraping stack.
func openStorage(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (interfaces.StorageManager, error) {
	storage, err := postgres.NewManager(ctx, logger, &cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := storage.Ping(ctx); err != nil {
		storage.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}
	return storage, nil
}
