package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/aerofleet/internal/common"
	"github.com/ternarybob/aerofleet/internal/models"
	"github.com/ternarybob/aerofleet/internal/services/monitor"
)

var statusJobID string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue health, coverage and data quality",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusJobID, "job", "", "show one job by job_id instead of the full snapshot")
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	svc := monitor.NewService(storage.Monitor(), storage.Jobs(), logger)

	if statusJobID != "" {
		job, err := svc.JobStatus(ctx, statusJobID)
		if err != nil {
			return err
		}
		if job == nil {
			fmt.Printf("No job with id %s\n", statusJobID)
			return nil
		}
		printJob(job)
		return nil
	}

	snapshot, err := svc.Snapshot(ctx)
	if err != nil {
		return err
	}
	printSnapshot(snapshot)
	return nil
}

func printJob(job *models.ScrapingJob) {
	fmt.Printf("Job      %s\n", job.JobID)
	fmt.Printf("Airline  %s", job.AirlineCode)
	if job.AirlineName != "" {
		fmt.Printf(" (%s)", job.AirlineName)
	}
	fmt.Println()
	fmt.Printf("Type     %s\n", job.JobType)
	fmt.Printf("Status   %s (priority %s)\n", job.Status, job.Priority)
	fmt.Printf("Created  %s\n", job.CreatedAt.Local().Format(time.RFC3339))
	if job.StartedAt != nil {
		fmt.Printf("Started  %s\n", job.StartedAt.Local().Format(time.RFC3339))
	}
	if job.CompletedAt != nil {
		fmt.Printf("Finished %s", job.CompletedAt.Local().Format(time.RFC3339))
		if job.DurationSeconds != nil {
			fmt.Printf(" (%.1fs)", *job.DurationSeconds)
		}
		fmt.Println()
	}
	fmt.Printf("Counts   discovered=%d new=%d updated=%d errors=%d\n",
		job.DiscoveredCount, job.NewCount, job.UpdatedCount, job.ErrorCount)
	if job.Retry.RetryCount > 0 || job.Status == models.JobStatusPending {
		fmt.Printf("Retries  %d/%d, next attempt %s\n",
			job.Retry.RetryCount, job.Retry.MaxRetries,
			job.Retry.ScheduledAt.Local().Format(time.RFC3339))
	}
	if job.ErrorMessage != "" {
		fmt.Printf("Error    %s\n", job.ErrorMessage)
	}
}

func printSnapshot(s *models.MonitorSnapshot) {
	fmt.Printf("Queue\n")
	fmt.Printf("  pending %d, running %d, completed 24h %d, failed 24h %d\n",
		s.Queue.Pending, s.Queue.Running, s.Queue.Completed24h, s.Queue.Failed24h)
	fmt.Printf("  jobs 7d %d, avg duration %.1fs\n", s.Queue.Total7d, s.Queue.AvgDurationSec)

	fmt.Printf("\nAirlines\n")
	fmt.Printf("  total %d, scraped %d, never scraped %d, stale %d\n",
		s.Coverage.Total, s.Coverage.Scraped, s.Coverage.NeverScraped, s.Coverage.Stale)

	fmt.Printf("\nAircraft confidence\n")
	fmt.Printf("  high %d, medium %d, low %d, unscored %d\n",
		s.Quality.High, s.Quality.Medium, s.Quality.Low, s.Quality.Unscored)

	if len(s.RecentJobs) > 0 {
		fmt.Printf("\nRecent jobs\n")
		fmt.Printf("  %-28s %-8s %-10s %s\n", "JOB ID", "AIRLINE", "STATUS", "CREATED")
		for _, job := range s.RecentJobs {
			fmt.Printf("  %-28s %-8s %-10s %s\n",
				job.JobID, job.AirlineCode, job.Status,
				job.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		}
	}

	fmt.Printf("\nGenerated %s\n", s.GeneratedAt.Local().Format(time.RFC3339))
}
