// -----------------------------------------------------------------------
// Pipeline Coordinator - drives upload, conversion and indexing stages
// for one run at a time
// -----------------------------------------------------------------------

package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vindex/internal/interfaces"
	"github.com/ternarybob/vindex/internal/models"
)

const (
	// SlotConversion and SlotIndexing are the poller slots; one active
	// job per stage per run.
	SlotConversion = "conversion"
	SlotIndexing   = "indexing"
)

// StateSetter receives coordinator state transitions (the status service)
type StateSetter interface {
	SetState(state models.RunState, runID string, metadata map[string]interface{})
}

// Options tune stage behavior
type Options struct {
	EnableOCR         bool
	MaxFileSizeMB     int
	AutoIndex         bool
	IndexSettleDelay  time.Duration
	ReadinessAttempts int
}

// Coordinator chains Upload -> Conversion -> Indexing, gated by stage
// outcomes. It is instantiated per session with injected status-fetch
// dependencies; there are no process-wide coordination flags.
type Coordinator struct {
	backend      interfaces.BackendClient
	uploader     *Uploader
	tracker      *Tracker
	runStore     interfaces.RunStorage
	statusSvc    StateSetter
	eventService interfaces.EventService
	logger       arbor.ILogger
	opts         Options

	mu          sync.Mutex
	busy        bool
	run         *models.PipelineRun
	indexingJob string
	cancelRun   context.CancelFunc
}

// NewCoordinator creates a pipeline coordinator
func NewCoordinator(
	backend interfaces.BackendClient,
	uploader *Uploader,
	tracker *Tracker,
	runStore interfaces.RunStorage,
	statusSvc StateSetter,
	eventService interfaces.EventService,
	opts Options,
	logger arbor.ILogger,
) *Coordinator {
	if opts.IndexSettleDelay <= 0 {
		opts.IndexSettleDelay = time.Second
	}
	if opts.ReadinessAttempts <= 0 {
		opts.ReadinessAttempts = 3
	}
	return &Coordinator{
		backend:      backend,
		uploader:     uploader,
		tracker:      tracker,
		runStore:     runStore,
		statusSvc:    statusSvc,
		eventService: eventService,
		logger:       logger,
		opts:         opts,
	}
}

// Run starts a pipeline run for the given files and blocks until the
// run reaches a terminal state. Only one run may be in flight; a second
// call while busy returns an error immediately.
func (c *Coordinator) Run(ctx context.Context, files []interfaces.UploadFile) (*models.PipelineRun, error) {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return nil, fmt.Errorf("a pipeline run is already in flight")
	}
	c.busy = true
	runCtx, cancel := context.WithCancel(ctx)
	c.cancelRun = cancel
	run := models.NewPipelineRun()
	c.run = run
	c.indexingJob = ""
	c.mu.Unlock()

	defer c.reset(cancel)

	runLogger := c.logger.WithCorrelationId(run.ID)
	runLogger.Info().Int("files", len(files)).Msg("Pipeline run starting")

	err := c.execute(runCtx, run, files, runLogger)
	if err != nil {
		c.failRun(run, err, runLogger)
		return run, err
	}

	return run, nil
}

// CurrentRun returns a snapshot of the in-flight run, or nil when idle
func (c *Coordinator) CurrentRun() *models.PipelineRun {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run == nil {
		return nil
	}
	snapshot := *c.run
	return &snapshot
}

// Busy reports whether a run is in flight
func (c *Coordinator) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Cancel requests indexing be stopped for the in-flight run. The
// resulting cancelled status arrives through polling and is treated as
// terminal, not an error. Cancelling a run that has not reached the
// indexing stage is rejected.
func (c *Coordinator) Cancel(ctx context.Context) error {
	c.mu.Lock()
	jobID := c.indexingJob
	run := c.run
	c.mu.Unlock()

	if run == nil || jobID == "" {
		return fmt.Errorf("no indexing job to cancel")
	}

	if err := c.backend.StopIndexing(ctx, jobID); err != nil {
		return err
	}

	c.mu.Lock()
	if c.run == run {
		run.Cancelled = true
	}
	c.mu.Unlock()

	c.logger.Info().
		Str("run_id", run.ID).
		Str("job_id", jobID).
		Msg("Indexing cancellation requested")
	return nil
}

// execute walks the state machine. Prior completed stages are never
// rolled back: a conversion that succeeded stays converted even when
// indexing subsequently fails.
func (c *Coordinator) execute(ctx context.Context, run *models.PipelineRun, files []interfaces.UploadFile, logger arbor.ILogger) error {
	// Stage 1: upload
	c.transition(run, models.RunStateUploading, nil)

	uploadResult, err := c.uploader.Run(ctx, files)
	if err != nil {
		return fmt.Errorf("upload stage failed: %w", err)
	}
	c.mutateRun(run, func() { run.Upload = uploadResult })

	switch uploadResult.Decision() {
	case models.DecisionSkipConversion:
		logger.Info().
			Str("summary", uploadResult.Summary()).
			Msg("All files already present and indexed, skipping conversion")
		c.completeRun(run, logger)
		return nil

	case models.DecisionAbort:
		return fmt.Errorf("upload batch failed entirely: %s", uploadResult.Summary())
	}

	logger.Info().Str("summary", uploadResult.Summary()).Msg("Upload stage complete")

	// Stage 2: conversion
	c.transition(run, models.RunStateConverting, map[string]interface{}{
		"uploaded": uploadResult.UploadedCount,
	})

	convTaskID, err := c.backend.StartConversion(ctx, interfaces.ConversionOptions{
		Incremental:   true,
		EnableOCR:     c.opts.EnableOCR,
		MaxFileSizeMB: c.opts.MaxFileSizeMB,
	})
	if err != nil {
		return fmt.Errorf("failed to start conversion: %w", err)
	}
	c.mutateRun(run, func() { run.ConversionJobID = convTaskID })

	convJob, err := c.awaitJob(ctx, SlotConversion, convTaskID, c.backend.GetConversionStatus)
	if err != nil {
		return fmt.Errorf("conversion polling failed: %w", err)
	}

	switch convJob.Status {
	case models.JobStatusFailed:
		return fmt.Errorf("conversion job failed: %s (%d of %d files failed)",
			convJob.Error, convJob.Progress.FailedFiles, convJob.Progress.TotalFiles)
	case models.JobStatusCancelled:
		return fmt.Errorf("conversion job was cancelled")
	}

	if convJob.Progress.ConvertedFiles == 0 {
		logger.Info().Msg("Conversion produced no new files, skipping indexing")
		c.completeRun(run, logger)
		return nil
	}

	logger.Info().
		Int("converted", convJob.Progress.ConvertedFiles).
		Int("failed", convJob.Progress.FailedFiles).
		Msg("Conversion stage complete")

	// The backend exposes no explicit conversion->indexing readiness
	// signal. Probe document visibility first and fall back to a short
	// settle delay when the probes stay inconclusive.
	c.awaitIndexReadiness(ctx, logger)

	// Stage 3: indexing
	c.transition(run, models.RunStateIndexing, map[string]interface{}{
		"converted": convJob.Progress.ConvertedFiles,
	})

	idxTaskID, err := c.backend.StartIndexing(ctx, interfaces.IndexingOptions{
		Mode:           "incremental",
		SkipConversion: true,
	})
	if err != nil {
		return fmt.Errorf("failed to start indexing: %w", err)
	}

	c.mutateRun(run, func() {
		c.indexingJob = idxTaskID
		run.IndexingJobID = idxTaskID
	})

	idxJob, err := c.awaitJob(ctx, SlotIndexing, idxTaskID, c.backend.GetIndexingStatus)

	// Indexing completion triggers a document/statistics refresh
	// regardless of outcome.
	c.requestRefresh(run.ID)

	if err != nil {
		return fmt.Errorf("indexing polling failed: %w", err)
	}

	switch idxJob.Status {
	case models.JobStatusFailed:
		return fmt.Errorf("indexing job failed: %s (%d documents processed before failure)",
			idxJob.Error, idxJob.Statistics.DocumentsProcessed)
	case models.JobStatusCancelled:
		logger.Info().
			Int("documents_processed", idxJob.Statistics.DocumentsProcessed).
			Msg("Indexing cancelled by user, run finished")
		c.mutateRun(run, func() { run.Cancelled = true })
	default:
		logger.Info().
			Int("documents_processed", idxJob.Statistics.DocumentsProcessed).
			Msg("Indexing stage complete")
	}

	c.completeRun(run, logger)
	return nil
}

// awaitJob starts a poller for the job and blocks until it delivers a
// terminal status or an error. Every intermediate status is published
// as a job progress event.
func (c *Coordinator) awaitJob(ctx context.Context, slot, jobID string, fetch StatusFetcher) (*models.Job, error) {
	done := make(chan *models.Job, 1)
	errCh := make(chan error, 1)

	onUpdate := func(job *models.Job) {
		c.publishJobProgress(job)
		if job.IsTerminal() {
			select {
			case done <- job:
			default:
			}
		}
	}
	onError := func(err error) {
		select {
		case errCh <- err:
		default:
		}
	}

	c.tracker.Start(ctx, slot, jobID, fetch, onUpdate, onError)

	select {
	case job := <-done:
		return job, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// awaitIndexReadiness probes whether converted documents are visible to
// the indexer yet. When every probe stays inconclusive it falls back to
// the configured settle delay rather than blocking the run.
func (c *Coordinator) awaitIndexReadiness(ctx context.Context, logger arbor.ILogger) {
	probeGap := c.opts.IndexSettleDelay / time.Duration(c.opts.ReadinessAttempts)
	if probeGap <= 0 {
		probeGap = 250 * time.Millisecond
	}

	for attempt := 1; attempt <= c.opts.ReadinessAttempts; attempt++ {
		stats, err := c.backend.GetStats(ctx)
		if err == nil && stats.DocumentsByStatus[string(models.DocumentStatusPendingIndexing)] > 0 {
			logger.Debug().
				Int("attempt", attempt).
				Msg("Converted documents visible, indexing ready")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(probeGap):
		}
	}

	logger.Debug().
		Dur("settle_delay", c.opts.IndexSettleDelay).
		Msg("Readiness probes inconclusive, applying settle delay")

	select {
	case <-ctx.Done():
	case <-time.After(c.opts.IndexSettleDelay):
	}
}

func (c *Coordinator) publishJobProgress(job *models.Job) {
	c.eventService.Publish(context.Background(), interfaces.Event{
		Type: interfaces.EventJobProgress,
		Payload: map[string]interface{}{
			"job_id":     job.ID,
			"kind":       string(job.Kind),
			"status":     string(job.Status),
			"percentage": job.Progress.Percentage,
			"converted":  job.Progress.ConvertedFiles,
			"failed":     job.Progress.FailedFiles,
		},
	})
}

// requestRefresh asks subscribers (the reconcile scheduler) to refetch
// documents and statistics from the source of truth.
func (c *Coordinator) requestRefresh(runID string) {
	c.eventService.Publish(context.Background(), interfaces.Event{
		Type:    interfaces.EventRunRefresh,
		Payload: map[string]interface{}{"run_id": runID},
	})
}

// mutateRun applies a change to the run record under the coordinator
// lock so CurrentRun snapshots never observe a half-written record.
// The journal gets a copy taken while still locked: the store encoder
// must never read the live record while Cancel writes to it.
func (c *Coordinator) mutateRun(run *models.PipelineRun, fn func()) {
	c.mu.Lock()
	fn()
	record := *run
	c.mu.Unlock()
	c.saveRun(&record)
}

func (c *Coordinator) transition(run *models.PipelineRun, state models.RunState, metadata map[string]interface{}) {
	c.mutateRun(run, func() { run.State = state })
	c.statusSvc.SetState(state, run.ID, metadata)
}

func (c *Coordinator) completeRun(run *models.PipelineRun, logger arbor.ILogger) {
	var cancelled bool
	c.mutateRun(run, func() {
		run.State = models.RunStateCompleted
		run.MarkFinished()
		cancelled = run.Cancelled
	})
	c.statusSvc.SetState(models.RunStateCompleted, run.ID, map[string]interface{}{
		"cancelled": cancelled,
	})
	logger.Info().Bool("cancelled", cancelled).Msg("Pipeline run completed")
}

func (c *Coordinator) failRun(run *models.PipelineRun, err error, logger arbor.ILogger) {
	c.mutateRun(run, func() {
		run.State = models.RunStateFailed
		run.Error = err.Error()
		run.MarkFinished()
	})
	c.statusSvc.SetState(models.RunStateFailed, run.ID, map[string]interface{}{
		"error": err.Error(),
	})
	logger.Error().Err(err).Msg("Pipeline run failed")
}

func (c *Coordinator) saveRun(run *models.PipelineRun) {
	if c.runStore == nil {
		return
	}
	if err := c.runStore.SaveRun(run); err != nil {
		c.logger.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to persist run journal entry")
	}
}

// reset discards per-run job state once the run is terminal. Run
// records live on in the journal; the Job values themselves are gone.
func (c *Coordinator) reset(cancel context.CancelFunc) {
	c.tracker.StopAll()
	cancel()

	c.mu.Lock()
	c.busy = false
	c.indexingJob = ""
	c.cancelRun = nil
	c.mu.Unlock()

	c.statusSvc.SetState(models.RunStateIdle, "", nil)
}
