package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/aerofleet/internal/common"
	"github.com/ternarybob/aerofleet/internal/interfaces"
	"github.com/ternarybob/aerofleet/internal/models"
	"github.com/ternarybob/aerofleet/internal/services/events"
	"github.com/ternarybob/aerofleet/internal/services/queue"
)

var (
	enqueueAirline  string
	enqueuePriority string
	enqueueForce    bool
	enqueueDryRun   bool
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Queue a fleet update for one airline",
	Long: `Creates a pending full-fleet-update job. A running serve process (or
any other scheduler against the same database) picks it up.`,
	RunE: runEnqueue,
}

func init() {
	enqueueCmd.Flags().StringVar(&enqueueAirline, "airline", "", "airline IATA or ICAO code (required)")
	enqueueCmd.Flags().StringVar(&enqueuePriority, "priority", "normal", "job priority (high|normal|low)")
	enqueueCmd.Flags().BoolVar(&enqueueForce, "force", false, "bypass the page cache")
	enqueueCmd.Flags().BoolVar(&enqueueDryRun, "dry-run", false, "run all phases but persist nothing")
	enqueueCmd.MarkFlagRequired("airline")
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	priority, err := parsePriority(enqueuePriority)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := common.InitLogger(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	storage, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer storage.Close()

	var publisher interfaces.EventPublisher
	if cfg.Events.NATSURL != "" {
		publisher, err = events.NewPublisher(&cfg.Events, logger)
		if err != nil {
			return err
		}
	} else {
		publisher = events.NewNoop()
	}
	defer publisher.Close()

	q := queue.NewService(storage.Jobs(), storage.Airlines(), publisher, &cfg.Scraper, logger)
	jobID, err := q.Create(ctx, enqueueAirline, models.CreateJobOptions{
		Priority:        priority,
		ForceFullScrape: enqueueForce,
		DryRun:          enqueueDryRun,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Enqueued %s\n", jobID)
	return nil
}

func parsePriority(s string) (models.JobPriority, error) {
	switch s {
	case "high":
		return models.JobPriorityHigh, nil
	case "normal", "":
		return models.JobPriorityNormal, nil
	case "low":
		return models.JobPriorityLow, nil
	default:
		return "", fmt.Errorf("invalid priority %q (want high, normal or low)", s)
	}
}
