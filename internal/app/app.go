package app

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pharmascout/internal/common"
	"github.com/ternarybob/pharmascout/internal/handlers"
	"github.com/ternarybob/pharmascout/internal/interfaces"
	"github.com/ternarybob/pharmascout/internal/services/browser"
	"github.com/ternarybob/pharmascout/internal/services/dispatcher"
	"github.com/ternarybob/pharmascout/internal/services/pipeline"
	"github.com/ternarybob/pharmascout/internal/services/publisher"
	"github.com/ternarybob/pharmascout/internal/services/scheduler"
	"github.com/ternarybob/pharmascout/internal/storage"
	"github.com/ternarybob/pharmascout/internal/storage/filesystem"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Scrape services
	Screenshots *filesystem.ScreenshotStore
	Launcher    interfaces.BrowserLauncher
	Runner      *pipeline.Runner
	Publisher   interfaces.ResultPublisher
	Dispatcher  *dispatcher.Service

	// Watchlist
	SchedulerService interfaces.SchedulerService

	// HTTP handlers
	ScrapeHandler  *handlers.ScrapeHandler
	ResultsHandler *handlers.ResultsHandler
	StatusHandler  *handlers.StatusHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Info().
		Str("driver", cfg.Browser.Driver).
		Bool("publishing", cfg.Publish.NATSURL != "").
		Bool("scheduler", cfg.Scheduler.Enabled).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer (Badger)
func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	return nil
}

// initServices wires the scrape stack in dependency order:
// artifacts -> pipeline runner -> browser launcher -> publisher -> dispatcher -> scheduler
func (a *App) initServices() error {
	var err error

	a.Screenshots, err = filesystem.NewScreenshotStore(a.Config.Storage.Filesystem.Screenshots, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create screenshot store: %w", err)
	}

	settings := pipeline.SettingsFromConfig(a.Config.Pipeline, a.Config.Browser)
	sink := pipeline.NewScreenshotSink(a.Screenshots, settings.ScreenshotTimeout, a.Logger)
	a.Runner = pipeline.NewRunner(settings, sink, a.Logger)

	a.Launcher, err = browser.NewLauncher(a.Config.Browser, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create browser launcher: %w", err)
	}

	a.Publisher, err = publisher.New(a.Config.Publish, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create result publisher: %w", err)
	}

	a.Dispatcher = dispatcher.NewService(
		a.Config.Dispatcher,
		a.Launcher,
		a.Runner,
		a.StorageManager.ResultStorage(),
		a.Publisher,
		a.Logger,
	)

	a.SchedulerService = scheduler.NewService(a.Config.Scheduler, a.Dispatcher, a.Logger)
	if err := a.SchedulerService.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler service: %w", err)
	}

	return nil
}

func (a *App) initHandlers() {
	a.ScrapeHandler = handlers.NewScrapeHandler(a.Dispatcher, a.Logger)
	a.ResultsHandler = handlers.NewResultsHandler(a.StorageManager.ResultStorage(), a.Logger)
	a.StatusHandler = handlers.NewStatusHandler(a.StorageManager.ResultStorage(), a.SchedulerService, a.Logger)
}

// Close closes all application resources
func (a *App) Close() error {
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close result publisher")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
