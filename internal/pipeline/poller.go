// -----------------------------------------------------------------------
// Job Status Poller - cancellable repeating status fetch for remote jobs
// -----------------------------------------------------------------------

package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vindex/internal/common"
	"github.com/ternarybob/vindex/internal/models"
)

// StatusFetcher retrieves the current status of a remote job
type StatusFetcher func(ctx context.Context, jobID string) (*models.Job, error)

// StatusHandler receives every fetched status, terminal ones included
type StatusHandler func(job *models.Job)

// PollErrorHandler receives the error that stopped a poller. Transient
// fetch errors are fail-closed: surfaced once, never silently retried.
type PollErrorHandler func(err error)

// DefaultPollInterval is the fixed gap between status fetches
const DefaultPollInterval = 2 * time.Second

// activePoll is one running poll loop bound to a job id
type activePoll struct {
	jobID  string
	cancel context.CancelFunc
	done   chan struct{}
}

// Tracker runs at most one poller per slot. Starting a poll for a new
// job id cancels any prior poller occupying the same slot, so no orphan
// pollers survive past a job's terminal state.
type Tracker struct {
	interval time.Duration
	logger   arbor.ILogger
	mu       sync.Mutex
	active   map[string]*activePoll
}

// NewTracker creates a poller tracker with the given fetch interval
func NewTracker(interval time.Duration, logger arbor.ILogger) *Tracker {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Tracker{
		interval: interval,
		logger:   logger,
		active:   make(map[string]*activePoll),
	}
}

// Start begins polling the job in the given slot. The first fetch
// happens immediately, so a job that is already terminal costs exactly
// one fetch and schedules no timer. Polling stops when the job reaches
// a terminal status, a fetch fails, or the context is cancelled.
func (t *Tracker) Start(ctx context.Context, slot, jobID string, fetch StatusFetcher, onUpdate StatusHandler, onError PollErrorHandler) {
	pollCtx, cancel := context.WithCancel(ctx)
	p := &activePoll{
		jobID:  jobID,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	t.mu.Lock()
	prev := t.active[slot]
	t.active[slot] = p
	t.mu.Unlock()

	// A replaced poller is awaited, not just cancelled: an in-flight
	// fetch must not deliver a stale update for the old job once the new
	// poller is running. Waiting happens outside the lock because the
	// exiting poller's release needs it.
	if prev != nil {
		t.logger.Debug().
			Str("slot", slot).
			Str("old_job_id", prev.jobID).
			Str("new_job_id", jobID).
			Msg("Replacing active poller")
		prev.cancel()
		<-prev.done
	}

	common.SafeGo(t.logger, "jobPoller", func() {
		defer close(p.done)
		defer t.release(slot, p)
		t.poll(pollCtx, slot, jobID, fetch, onUpdate, onError)
	})
}

// Stop cancels the poller in the given slot, if any, and waits for it
// to exit.
func (t *Tracker) Stop(slot string) {
	t.mu.Lock()
	p, ok := t.active[slot]
	t.mu.Unlock()

	if !ok {
		return
	}

	p.cancel()
	<-p.done
}

// StopAll cancels every active poller. Used on shutdown and when the
// coordinator resets between runs.
func (t *Tracker) StopAll() {
	t.mu.Lock()
	polls := make([]*activePoll, 0, len(t.active))
	for _, p := range t.active {
		polls = append(polls, p)
	}
	t.mu.Unlock()

	for _, p := range polls {
		p.cancel()
		<-p.done
	}
}

// ActiveJob returns the job id currently polled in a slot, or empty
func (t *Tracker) ActiveJob(slot string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.active[slot]; ok {
		return p.jobID
	}
	return ""
}

// release removes the poll from the slot unless it was already replaced
func (t *Tracker) release(slot string, p *activePoll) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active[slot] == p {
		delete(t.active, slot)
	}
}

// poll is the explicit suspension loop: fetch, deliver, sleep, repeat.
func (t *Tracker) poll(ctx context.Context, slot, jobID string, fetch StatusFetcher, onUpdate StatusHandler, onError PollErrorHandler) {
	logger := t.logger.WithCorrelationId(jobID)

	// Immediate first fetch - an already-terminal job never starts a timer
	job, err := fetch(ctx, jobID)
	if err != nil {
		t.failPoll(ctx, logger, slot, jobID, err, onError)
		return
	}
	onUpdate(job)
	if job.IsTerminal() {
		logger.Debug().
			Str("slot", slot).
			Str("status", string(job.Status)).
			Msg("Job already terminal, poller stopping after single fetch")
		return
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Str("slot", slot).Msg("Poller cancelled")
			return

		case <-ticker.C:
			job, err := fetch(ctx, jobID)
			if err != nil {
				t.failPoll(ctx, logger, slot, jobID, err, onError)
				return
			}

			onUpdate(job)

			if job.IsTerminal() {
				logger.Info().
					Str("slot", slot).
					Str("status", string(job.Status)).
					Msg("Job reached terminal state, poller stopping")
				return
			}
		}
	}
}

func (t *Tracker) failPoll(ctx context.Context, logger arbor.ILogger, slot, jobID string, err error, onError PollErrorHandler) {
	// Cancellation is not a fetch failure
	if ctx.Err() != nil {
		logger.Debug().Str("slot", slot).Msg("Poller cancelled during fetch")
		return
	}

	logger.Error().
		Err(err).
		Str("slot", slot).
		Str("job_id", jobID).
		Msg("Status fetch failed, poller stopping")

	if onError != nil {
		onError(err)
	}
}
