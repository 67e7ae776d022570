package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vindex/internal/models"
)

func collectUpdates(updates chan<- *models.Job) StatusHandler {
	return func(job *models.Job) {
		updates <- job
	}
}

func TestTrackerTerminalJobSingleFetch(t *testing.T) {
	tracker := NewTracker(10*time.Millisecond, arbor.NewLogger())

	var fetches int32
	fetch := func(ctx context.Context, jobID string) (*models.Job, error) {
		atomic.AddInt32(&fetches, 1)
		return terminalJob(jobID, models.JobKindConversion, models.JobStatusCompleted), nil
	}

	updates := make(chan *models.Job, 4)
	tracker.Start(context.Background(), SlotConversion, "job-1", fetch, collectUpdates(updates), nil)

	select {
	case job := <-updates:
		assert.Equal(t, models.JobStatusCompleted, job.Status)
	case <-time.After(time.Second):
		t.Fatal("no status update delivered")
	}

	// Poller must stop after the immediate fetch; no timer fires
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetches))
	assert.Empty(t, tracker.ActiveJob(SlotConversion))
}

func TestTrackerPollsUntilTerminal(t *testing.T) {
	tracker := NewTracker(5*time.Millisecond, arbor.NewLogger())

	fetch := runningThenDone("job-2", models.JobKindIndexing, 3, models.JobStatusCompleted)

	updates := make(chan *models.Job, 16)
	tracker.Start(context.Background(), SlotIndexing, "job-2", fetch, collectUpdates(updates), nil)

	deadline := time.After(2 * time.Second)
	var last *models.Job
	for last == nil || !last.IsTerminal() {
		select {
		case job := <-updates:
			last = job
		case <-deadline:
			t.Fatal("job never reached terminal state")
		}
	}

	assert.Equal(t, models.JobStatusCompleted, last.Status)
	tracker.Stop(SlotIndexing)
}

func TestTrackerFetchErrorStopsPoller(t *testing.T) {
	tracker := NewTracker(5*time.Millisecond, arbor.NewLogger())

	fetchErr := fmt.Errorf("backend unreachable")
	fetch := func(ctx context.Context, jobID string) (*models.Job, error) {
		return nil, fetchErr
	}

	errCh := make(chan error, 1)
	onError := func(err error) { errCh <- err }

	tracker.Start(context.Background(), SlotConversion, "job-3", fetch, func(*models.Job) {}, onError)

	select {
	case err := <-errCh:
		require.ErrorContains(t, err, "backend unreachable")
	case <-time.After(time.Second):
		t.Fatal("fetch error was not surfaced")
	}

	// Fail-closed: no retry, slot released
	assert.Eventually(t, func() bool {
		return tracker.ActiveJob(SlotConversion) == ""
	}, time.Second, 10*time.Millisecond)
}

func TestTrackerSlotReplacement(t *testing.T) {
	tracker := NewTracker(5*time.Millisecond, arbor.NewLogger())

	// First poller never terminates on its own
	blockedFetch := func(ctx context.Context, jobID string) (*models.Job, error) {
		return &models.Job{ID: jobID, Status: models.JobStatusRunning}, nil
	}
	tracker.Start(context.Background(), SlotConversion, "old-job", blockedFetch, func(*models.Job) {}, nil)
	assert.Equal(t, "old-job", tracker.ActiveJob(SlotConversion))

	// Starting a new job in the same slot cancels the old poller
	updates := make(chan *models.Job, 4)
	tracker.Start(context.Background(), SlotConversion, "new-job", func(ctx context.Context, jobID string) (*models.Job, error) {
		return terminalJob(jobID, models.JobKindConversion, models.JobStatusCompleted), nil
	}, collectUpdates(updates), nil)

	select {
	case job := <-updates:
		assert.Equal(t, "new-job", job.ID)
	case <-time.After(time.Second):
		t.Fatal("replacement poller never fetched")
	}

	assert.Eventually(t, func() bool {
		return tracker.ActiveJob(SlotConversion) == ""
	}, time.Second, 10*time.Millisecond)
}

func TestTrackerReplacementAwaitsOldPoller(t *testing.T) {
	tracker := NewTracker(5*time.Millisecond, arbor.NewLogger())

	inFetch := make(chan struct{}, 1)
	release := make(chan struct{})
	var oldUpdates int32
	oldFetch := func(ctx context.Context, jobID string) (*models.Job, error) {
		select {
		case inFetch <- struct{}{}:
		default:
		}
		<-release
		return &models.Job{ID: jobID, Status: models.JobStatusRunning}, nil
	}

	tracker.Start(context.Background(), SlotConversion, "old-job", oldFetch,
		func(*models.Job) { atomic.AddInt32(&oldUpdates, 1) }, nil)
	<-inFetch

	// The old poller is blocked mid-fetch; let it finish shortly after
	// the replacement arrives.
	go func() {
		time.Sleep(10 * time.Millisecond)
		close(release)
	}()

	tracker.Start(context.Background(), SlotConversion, "new-job", func(ctx context.Context, jobID string) (*models.Job, error) {
		return terminalJob(jobID, models.JobKindConversion, models.JobStatusCompleted), nil
	}, func(*models.Job) {}, nil)

	// Start blocks until the old poller has fully exited, so whatever the
	// stale in-flight fetch delivered, it delivered before this point.
	delivered := atomic.LoadInt32(&oldUpdates)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, delivered, atomic.LoadInt32(&oldUpdates),
		"old job must not deliver updates after its replacement started")
}

func TestTrackerStopCancelsAndWaits(t *testing.T) {
	tracker := NewTracker(5*time.Millisecond, arbor.NewLogger())

	tracker.Start(context.Background(), SlotIndexing, "job-4", func(ctx context.Context, jobID string) (*models.Job, error) {
		return &models.Job{ID: jobID, Status: models.JobStatusRunning}, nil
	}, func(*models.Job) {}, nil)

	tracker.Stop(SlotIndexing)
	assert.Empty(t, tracker.ActiveJob(SlotIndexing))

	// Stopping an empty slot is a no-op
	tracker.Stop(SlotIndexing)
}

func TestTrackerCancelledContextIsNotAnError(t *testing.T) {
	tracker := NewTracker(5*time.Millisecond, arbor.NewLogger())

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	tracker.Start(ctx, SlotConversion, "job-5", func(ctx context.Context, jobID string) (*models.Job, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &models.Job{ID: jobID, Status: models.JobStatusRunning}, nil
	}, func(*models.Job) {}, func(err error) { errCh <- err })

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		t.Fatalf("cancellation surfaced as fetch error: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}
