package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vindex/internal/interfaces"
	"github.com/ternarybob/vindex/internal/models"
)

func testCoordinator(backend *fakeBackend, events interfaces.EventService, stateSetter StateSetter, store interfaces.RunStorage) *Coordinator {
	logger := arbor.NewLogger()
	uploader := NewUploader(backend, events, 5, false, logger)
	tracker := NewTracker(2*time.Millisecond, logger)
	return NewCoordinator(backend, uploader, tracker, store, stateSetter, events, Options{
		EnableOCR:         true,
		MaxFileSizeMB:     25,
		IndexSettleDelay:  10 * time.Millisecond,
		ReadinessAttempts: 2,
	}, logger)
}

func TestCoordinatorHappyPath(t *testing.T) {
	backend := newFakeBackend()
	backend.convStatusFn = runningThenDone("conv-1", models.JobKindConversion, 2, models.JobStatusCompleted)
	backend.idxStatusFn = runningThenDone("idx-1", models.JobKindIndexing, 2, models.JobStatusCompleted)

	events := &recordingEvents{}
	states := &stubStateSetter{}
	store := newMemoryRunStore()
	coordinator := testCoordinator(backend, events, states, store)

	run, err := coordinator.Run(context.Background(), uploadBatch("report.pdf"))
	require.NoError(t, err)

	assert.Equal(t, models.RunStateCompleted, run.State)
	assert.False(t, run.Cancelled)
	assert.Equal(t, "conv-1", run.ConversionJobID)
	assert.Equal(t, "idx-1", run.IndexingJobID)
	require.NotNil(t, run.FinishedAt)

	// Exactly one conversion and one indexing job
	assert.Equal(t, 1, backend.startConvCalls)
	assert.Equal(t, 1, backend.startIdxCalls)

	// Every stage was announced
	assert.True(t, states.seen(models.RunStateUploading))
	assert.True(t, states.seen(models.RunStateConverting))
	assert.True(t, states.seen(models.RunStateIndexing))
	assert.True(t, states.seen(models.RunStateCompleted))

	// Refresh requested after indexing
	assert.NotEmpty(t, events.ofType(interfaces.EventRunRefresh))

	// Journal entry persisted in terminal state
	saved, err := store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStateCompleted, saved.State)

	assert.False(t, coordinator.Busy())
}

func TestCoordinatorAllDuplicatesSkipsConversion(t *testing.T) {
	backend := newFakeBackend()
	backend.uploadFn = func(ctx context.Context, file interfaces.UploadFile, autoIndex bool) (*models.UploadOutcome, error) {
		return &models.UploadOutcome{Filename: file.Name, DocumentID: "doc-1", IsDuplicate: true}, nil
	}

	states := &stubStateSetter{}
	coordinator := testCoordinator(backend, nullEvents{}, states, newMemoryRunStore())

	run, err := coordinator.Run(context.Background(), uploadBatch("same.pdf", "same2.pdf"))
	require.NoError(t, err)

	assert.Equal(t, models.RunStateCompleted, run.State)
	assert.Equal(t, 0, backend.startConvCalls, "conversion must not start for an all-duplicate batch")
	assert.Equal(t, 0, backend.startIdxCalls)
	assert.False(t, states.seen(models.RunStateConverting))
}

func TestCoordinatorAllFailuresAborts(t *testing.T) {
	backend := newFakeBackend()
	backend.uploadFn = func(ctx context.Context, file interfaces.UploadFile, autoIndex bool) (*models.UploadOutcome, error) {
		return nil, fmt.Errorf("upload rejected")
	}

	coordinator := testCoordinator(backend, nullEvents{}, &stubStateSetter{}, newMemoryRunStore())

	run, err := coordinator.Run(context.Background(), uploadBatch("bad.pdf"))
	require.Error(t, err)

	assert.Equal(t, models.RunStateFailed, run.State)
	assert.Contains(t, run.Error, "upload batch failed entirely")
	assert.Equal(t, 0, backend.startConvCalls)
}

func TestCoordinatorNoConvertedFilesSkipsIndexing(t *testing.T) {
	backend := newFakeBackend()
	backend.convStatusFn = func(ctx context.Context, taskID string) (*models.Job, error) {
		return &models.Job{
			ID:     taskID,
			Kind:   models.JobKindConversion,
			Status: models.JobStatusCompleted,
			Progress: models.JobProgress{
				TotalFiles:     1,
				ConvertedFiles: 0,
				FailedFiles:    1,
			},
		}, nil
	}

	coordinator := testCoordinator(backend, nullEvents{}, &stubStateSetter{}, newMemoryRunStore())

	run, err := coordinator.Run(context.Background(), uploadBatch("weird.pdf"))
	require.NoError(t, err)

	assert.Equal(t, models.RunStateCompleted, run.State)
	assert.Equal(t, 1, backend.startConvCalls)
	assert.Equal(t, 0, backend.startIdxCalls, "indexing must not start with nothing converted")
}

func TestCoordinatorConversionFailureFailsRun(t *testing.T) {
	backend := newFakeBackend()
	backend.convStatusFn = func(ctx context.Context, taskID string) (*models.Job, error) {
		return &models.Job{
			ID:     taskID,
			Kind:   models.JobKindConversion,
			Status: models.JobStatusFailed,
			Error:  "converter crashed",
		}, nil
	}

	coordinator := testCoordinator(backend, nullEvents{}, &stubStateSetter{}, newMemoryRunStore())

	run, err := coordinator.Run(context.Background(), uploadBatch("doc.pdf"))
	require.Error(t, err)
	assert.Equal(t, models.RunStateFailed, run.State)
	assert.Contains(t, run.Error, "converter crashed")
	assert.Equal(t, 0, backend.startIdxCalls)
}

func TestCoordinatorCancelledIndexingIsTerminalNotError(t *testing.T) {
	backend := newFakeBackend()
	backend.idxStatusFn = func(ctx context.Context, taskID string) (*models.Job, error) {
		return &models.Job{
			ID:         taskID,
			Kind:       models.JobKindIndexing,
			Status:     models.JobStatusCancelled,
			Statistics: models.JobStatistics{DocumentsProcessed: 3},
		}, nil
	}

	events := &recordingEvents{}
	coordinator := testCoordinator(backend, events, &stubStateSetter{}, newMemoryRunStore())

	run, err := coordinator.Run(context.Background(), uploadBatch("doc.pdf"))
	require.NoError(t, err, "user cancellation is a terminal outcome, not a failure")

	assert.Equal(t, models.RunStateCompleted, run.State)
	assert.True(t, run.Cancelled)

	// Refresh still requested so partial indexing becomes visible
	assert.NotEmpty(t, events.ofType(interfaces.EventRunRefresh))
}

func TestCoordinatorJournalsCopiesNotTheLiveRun(t *testing.T) {
	backend := newFakeBackend()
	store := newCapturingRunStore()
	coordinator := testCoordinator(backend, nullEvents{}, &stubStateSetter{}, store)

	run, err := coordinator.Run(context.Background(), uploadBatch("doc.pdf"))
	require.NoError(t, err)

	// The journal encoder reads records unsynchronized, so every save
	// must receive a snapshot, never the record Cancel writes to.
	require.NotEmpty(t, store.saved)
	for _, rec := range store.saved {
		assert.NotSame(t, run, rec)
	}
}

func TestCoordinatorCancelDuringIndexing(t *testing.T) {
	backend := newFakeBackend()
	backend.idxStatusFn = func(ctx context.Context, taskID string) (*models.Job, error) {
		backend.mu.Lock()
		stopped := backend.stopIdxCalls > 0
		backend.mu.Unlock()
		if !stopped {
			return &models.Job{ID: taskID, Kind: models.JobKindIndexing, Status: models.JobStatusRunning}, nil
		}
		return &models.Job{ID: taskID, Kind: models.JobKindIndexing, Status: models.JobStatusCancelled}, nil
	}

	store := newMemoryRunStore()
	coordinator := testCoordinator(backend, nullEvents{}, &stubStateSetter{}, store)

	done := make(chan *models.PipelineRun, 1)
	go func() {
		run, _ := coordinator.Run(context.Background(), uploadBatch("doc.pdf"))
		done <- run
	}()

	require.Eventually(t, func() bool {
		current := coordinator.CurrentRun()
		return current != nil && current.IndexingJobID != ""
	}, time.Second, 2*time.Millisecond)

	require.NoError(t, coordinator.Cancel(context.Background()))

	run := <-done
	assert.True(t, run.Cancelled)
	assert.Equal(t, models.RunStateCompleted, run.State)

	saved, err := store.GetRun(run.ID)
	require.NoError(t, err)
	assert.True(t, saved.Cancelled, "cancellation must reach the journal")
}

func TestCoordinatorRejectsConcurrentRuns(t *testing.T) {
	backend := newFakeBackend()
	release := make(chan struct{})
	backend.convStatusFn = func(ctx context.Context, taskID string) (*models.Job, error) {
		select {
		case <-release:
			return terminalJob(taskID, models.JobKindConversion, models.JobStatusCompleted), nil
		default:
			return &models.Job{ID: taskID, Kind: models.JobKindConversion, Status: models.JobStatusRunning}, nil
		}
	}

	coordinator := testCoordinator(backend, nullEvents{}, &stubStateSetter{}, newMemoryRunStore())

	done := make(chan error, 1)
	go func() {
		_, err := coordinator.Run(context.Background(), uploadBatch("slow.pdf"))
		done <- err
	}()

	require.Eventually(t, coordinator.Busy, time.Second, 5*time.Millisecond)

	_, err := coordinator.Run(context.Background(), uploadBatch("second.pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already in flight")

	close(release)
	require.NoError(t, <-done)
	assert.False(t, coordinator.Busy())
}

func TestCoordinatorCancelWithoutIndexingJob(t *testing.T) {
	coordinator := testCoordinator(newFakeBackend(), nullEvents{}, &stubStateSetter{}, newMemoryRunStore())

	err := coordinator.Cancel(context.Background())
	assert.Error(t, err)
}
