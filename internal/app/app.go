// -----------------------------------------------------------------------
// Application wiring - constructs storage, backend client, services and
// handlers in dependency order and owns their shutdown
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vindex/internal/backend"
	"github.com/ternarybob/vindex/internal/common"
	"github.com/ternarybob/vindex/internal/handlers"
	"github.com/ternarybob/vindex/internal/interfaces"
	"github.com/ternarybob/vindex/internal/models"
	"github.com/ternarybob/vindex/internal/pipeline"
	"github.com/ternarybob/vindex/internal/services/classify"
	"github.com/ternarybob/vindex/internal/services/events"
	"github.com/ternarybob/vindex/internal/services/linker"
	"github.com/ternarybob/vindex/internal/services/reconcile"
	"github.com/ternarybob/vindex/internal/services/status"
	badgerstore "github.com/ternarybob/vindex/internal/storage/badger"
)

// App holds all application dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	DB         *badgerstore.BadgerDB
	RunStorage interfaces.RunStorage

	// Backend
	Backend *backend.Client

	// Services
	EventService  interfaces.EventService
	StatusService *status.Service
	Grouper       *classify.Grouper
	Linker        *linker.Service
	Reconciler    *reconcile.Scheduler
	Tracker       *pipeline.Tracker
	Uploader      *pipeline.Uploader
	Coordinator   *pipeline.Coordinator

	// Handlers
	StatusHandler   *handlers.StatusHandler
	PipelineHandler *handlers.PipelineHandler
	DocumentHandler *handlers.DocumentHandler
	VehicleHandler  *handlers.VehicleHandler
	WSHandler       *handlers.WebSocketHandler
}

// refreshBridge breaks the construction cycle between the linker (which
// requests background refreshes) and the reconciliation scheduler (which
// calls back into the linker to perform them).
type refreshBridge struct {
	linker    *linker.Service
	scheduler *reconcile.Scheduler
}

func (b *refreshBridge) Refresh(ctx context.Context) (*models.Classification, error) {
	return b.linker.Refresh(ctx)
}

func (b *refreshBridge) RequestRefresh() {
	b.scheduler.RequestRefresh()
}

// New creates the application with all dependencies wired
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{
		Config: config,
		Logger: logger,
	}

	// Storage
	db, err := badgerstore.NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}
	a.DB = db
	a.RunStorage = badgerstore.NewRunStorage(db, logger)

	a.pruneRunJournal()

	// Backend client
	a.Backend = backend.NewClient(
		config.Backend.BaseURL,
		config.Backend.APIKey,
		backend.WithLogger(logger),
		backend.WithTimeout(config.BackendTimeout()),
		backend.WithRateLimit(config.Backend.RateLimit),
	)

	// Services
	a.EventService = events.NewService(logger)
	a.StatusService = status.NewService(a.EventService, logger)
	a.Grouper = classify.NewGrouper(a.Backend, a.Backend, logger)

	bridge := &refreshBridge{}
	a.Linker = linker.NewService(a.Backend, a.Grouper, bridge, logger)
	a.Reconciler = reconcile.NewScheduler(bridge, a.EventService, config.ReconcileDebounce(), logger)
	bridge.linker = a.Linker
	bridge.scheduler = a.Reconciler

	// Pipeline
	a.Tracker = pipeline.NewTracker(config.PollInterval(), logger)
	a.Uploader = pipeline.NewUploader(a.Backend, a.EventService, config.Pipeline.MaxBatchFiles, config.Pipeline.AutoIndex, logger)
	a.Coordinator = pipeline.NewCoordinator(
		a.Backend,
		a.Uploader,
		a.Tracker,
		a.RunStorage,
		a.StatusService,
		a.EventService,
		pipeline.Options{
			EnableOCR:         config.Pipeline.EnableOCR,
			MaxFileSizeMB:     config.Pipeline.MaxFileSizeMB,
			AutoIndex:         config.Pipeline.AutoIndex,
			IndexSettleDelay:  config.IndexSettleDelay(),
			ReadinessAttempts: config.Pipeline.ReadinessAttempts,
		},
		logger,
	)

	// Handlers
	a.StatusHandler = handlers.NewStatusHandler(a.StatusService, logger)
	a.PipelineHandler = handlers.NewPipelineHandler(a.Coordinator, a.RunStorage, config.Pipeline.MaxBatchFiles, logger)
	a.DocumentHandler = handlers.NewDocumentHandler(a.Backend, a.Linker, logger)
	a.VehicleHandler = handlers.NewVehicleHandler(a.Linker, logger)

	wsHandler, err := handlers.NewWebSocketHandler(a.EventService, config.WebSocket.AllowedEvents, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create websocket handler: %w", err)
	}
	a.WSHandler = wsHandler

	if config.Reconcile.Enabled {
		if err := a.Reconciler.Start(config.Reconcile.Schedule); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to start reconciliation scheduler: %w", err)
		}
	}

	logger.Info().
		Str("backend", config.Backend.BaseURL).
		Str("storage", config.Storage.Badger.Path).
		Msg("Application initialized")

	return a, nil
}

// pruneRunJournal removes journal entries older than the retention window
func (a *App) pruneRunJournal() {
	days := a.Config.Storage.Badger.RetentionDays
	if days <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	deleted, err := a.RunStorage.DeleteRunsBefore(cutoff)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Run journal prune failed")
		return
	}
	if deleted > 0 {
		a.Logger.Info().Int("deleted", deleted).Msg("Pruned run journal")
	}
}

// Close releases application resources in reverse dependency order
func (a *App) Close() error {
	a.Logger.Info().Msg("Shutting down application")

	if a.Reconciler != nil {
		a.Reconciler.Stop()
	}

	if a.Tracker != nil {
		a.Tracker.StopAll()
	}

	if a.WSHandler != nil {
		a.WSHandler.Close()
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Event service close failed")
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			return fmt.Errorf("failed to close badger store: %w", err)
		}
	}

	a.Logger.Info().Msg("Application shutdown complete")
	return nil
}
