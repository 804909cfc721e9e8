// Package app wires configuration, storage and services into one
// container shared by every command.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/aerofleet/internal/common"
	"github.com/ternarybob/aerofleet/internal/interfaces"
	"github.com/ternarybob/aerofleet/internal/services/audit"
	"github.com/ternarybob/aerofleet/internal/services/cache"
	"github.com/ternarybob/aerofleet/internal/services/content"
	"github.com/ternarybob/aerofleet/internal/services/details"
	"github.com/ternarybob/aerofleet/internal/services/discovery"
	"github.com/ternarybob/aerofleet/internal/services/events"
	"github.com/ternarybob/aerofleet/internal/services/extractor"
	"github.com/ternarybob/aerofleet/internal/services/monitor"
	"github.com/ternarybob/aerofleet/internal/services/pageloader"
	"github.com/ternarybob/aerofleet/internal/services/queue"
	"github.com/ternarybob/aerofleet/internal/services/scheduler"
	"github.com/ternarybob/aerofleet/internal/services/sources"
	"github.com/ternarybob/aerofleet/internal/services/validation"
	"github.com/ternarybob/aerofleet/internal/services/workflow"
	"github.com/ternarybob/aerofleet/internal/storage/postgres"
)

// App holds all application components and dependencies.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	Storage interfaces.StorageManager

	// Scraping infrastructure
	PageCache interfaces.PageCache
	Auditor   interfaces.ExtractionAuditor
	Loader    interfaces.PageLoader
	Extractor interfaces.Extractor
	Catalog   interfaces.SourceCatalog

	// Agents
	DiscoveryAgent  interfaces.DiscoveryAgent
	DetailsAgent    interfaces.DetailsAgent
	ValidationAgent interfaces.ValidationAgent

	// Engine
	Events           interfaces.EventPublisher
	WorkflowService  interfaces.WorkflowService
	QueueService     interfaces.JobQueue
	SchedulerService interfaces.SchedulerService
	MonitorService   interfaces.MonitorService
}

// New initializes the application with all dependencies. Construction
// order matters: storage, then the scraping stack, then the engine on
// top of both.
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initServices(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logger.Info().
		Str("llm_provider", app.Extractor.Provider()).
		Bool("cache_enabled", cfg.Cache.Enabled).
		Msg("Application initialization complete")

	return app, nil
}

// initStorage connects PostgreSQL and verifies the pool.
func (a *App) initStorage(ctx context.Context) error {
	storage, err := postgres.NewManager(ctx, a.Logger, &a.Config.Database)
	if err != nil {
		return err
	}
	if err := storage.Ping(ctx); err != nil {
		storage.Close()
		return fmt.Errorf("database unreachable: %w", err)
	}

	a.Storage = storage
	a.Logger.Debug().Msg("Storage layer initialized")
	return nil
}

// initServices builds the scraping stack and the engine in dependency
// order.
func (a *App) initServices(ctx context.Context) error {
	var err error

	// 1. Page cache (Badger, TTL-evicted). Disabled config keeps the
	// loader on the null cache so every fetch goes to the network.
	if a.Config.Cache.Enabled {
		a.PageCache, err = cache.NewPageCache(a.Logger, a.Config.Cache.Dir, time.Duration(a.Config.Cache.TTLHours)*time.Hour)
		if err != nil {
			return fmt.Errorf("failed to open page cache: %w", err)
		}
	} else {
		a.PageCache = cache.NewNullPageCache()
	}
	a.Logger.Debug().Bool("enabled", a.Config.Cache.Enabled).Msg("Page cache initialized")

	// 2. Extraction audit trail (Badgerhold).
	if a.Config.Audit.Enabled {
		a.Auditor, err = audit.NewAuditor(a.Logger, a.Config.Audit.Dir)
		if err != nil {
			return fmt.Errorf("failed to open audit store: %w", err)
		}
	} else {
		a.Auditor = audit.NewNullAuditor()
	}
	a.Logger.Debug().Bool("enabled", a.Config.Audit.Enabled).Msg("Extraction audit initialized")

	// 3. Headless browser pool behind the page loader.
	a.Loader, err = pageloader.NewLoader(a.Config.Browser, a.Config.Scraper, a.PageCache, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize page loader: %w", err)
	}
	a.Logger.Debug().Int("browsers", a.Config.Browser.MaxInstances).Msg("Page loader initialized")

	// 4. LLM extractor for the configured provider.
	a.Extractor, err = extractor.New(ctx, a.Config, a.Auditor, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize extractor: %w", err)
	}
	a.Logger.Debug().Str("provider", a.Extractor.Provider()).Msg("Extractor initialized")

	// 5. Content processor and source catalog feed the agents.
	processor := content.NewProcessor(a.Logger)
	a.Catalog, err = sources.NewCatalog(a.Logger)
	if err != nil {
		return fmt.Errorf("failed to load source catalog: %w", err)
	}
	a.Logger.Debug().Msg("Source catalog loaded")

	// 6. Agents.
	a.DiscoveryAgent = discovery.NewAgent(a.Storage.Airlines(), a.Loader, a.Extractor, processor, a.Catalog, a.Logger)
	a.DetailsAgent = details.NewAgent(a.Storage.Aircraft(), a.Loader, a.Extractor, processor, a.Catalog, a.Logger)
	a.ValidationAgent = validation.NewAgent(a.Storage.Aircraft(), a.Extractor, a.Logger)
	a.Logger.Debug().Msg("Agents initialized")

	// 7. Workflow over the agents.
	a.WorkflowService = workflow.NewService(
		a.DiscoveryAgent,
		a.DetailsAgent,
		a.ValidationAgent,
		a.Storage.Airlines(),
		a.Storage.Aircraft(),
		&a.Config.Scraper,
		a.Logger,
	)
	a.Logger.Debug().Msg("Workflow service initialized")

	// 8. Event publisher. No broker URL means lifecycle events stay off.
	if a.Config.Events.NATSURL != "" {
		a.Events, err = events.NewPublisher(&a.Config.Events, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize event publisher: %w", err)
		}
	} else {
		a.Events = events.NewNoop()
		a.Logger.Debug().Msg("Event publication disabled")
	}

	// 9. Queue, scheduler and monitor complete the engine.
	a.QueueService = queue.NewService(a.Storage.Jobs(), a.Storage.Airlines(), a.Events, &a.Config.Scraper, a.Logger)
	a.SchedulerService = scheduler.NewService(a.QueueService, a.WorkflowService, a.Storage.Airlines(), a.Storage.Jobs(), &a.Config.Scraper, a.Logger)
	a.MonitorService = monitor.NewService(a.Storage.Monitor(), a.Storage.Jobs(), a.Logger)
	a.Logger.Debug().Msg("Queue, scheduler and monitor initialized")

	return nil
}

// Close releases all application resources in reverse dependency order.
func (a *App) Close() error {
	if a.SchedulerService != nil && a.SchedulerService.IsRunning() {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler")
		}
	}

	if a.Loader != nil {
		if err := a.Loader.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close page loader")
		}
	}

	if a.Events != nil {
		a.Events.Close()
	}

	if a.Auditor != nil {
		if err := a.Auditor.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close audit store")
		}
	}

	if a.PageCache != nil {
		if err := a.PageCache.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close page cache")
		}
	}

	if a.Storage != nil {
		a.Storage.Close()
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
