package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/vindex/internal/interfaces"
	"github.com/ternarybob/vindex/internal/models"
)

// fakeBackend implements interfaces.BackendClient with injectable behavior
type fakeBackend struct {
	mu sync.Mutex

	uploadFn       func(ctx context.Context, file interfaces.UploadFile, autoIndex bool) (*models.UploadOutcome, error)
	statsFn        func(ctx context.Context) (*models.DocumentStats, error)
	convStatusFn   func(ctx context.Context, taskID string) (*models.Job, error)
	idxStatusFn    func(ctx context.Context, taskID string) (*models.Job, error)
	startConvErr   error
	startIdxErr    error
	stopIndexErr   error
	conversionID   string
	indexingID     string
	startConvCalls int
	startIdxCalls  int
	stopIdxCalls   int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		conversionID: "conv-1",
		indexingID:   "idx-1",
	}
}

func (f *fakeBackend) Upload(ctx context.Context, file interfaces.UploadFile, autoIndex bool) (*models.UploadOutcome, error) {
	if f.uploadFn != nil {
		return f.uploadFn(ctx, file, autoIndex)
	}
	return &models.UploadOutcome{Filename: file.Name, DocumentID: "doc-" + file.Name, IsNew: true}, nil
}

func (f *fakeBackend) ListDocuments(ctx context.Context, opts *interfaces.ListOptions) ([]models.Document, error) {
	return nil, nil
}

func (f *fakeBackend) GetStats(ctx context.Context) (*models.DocumentStats, error) {
	if f.statsFn != nil {
		return f.statsFn(ctx)
	}
	return &models.DocumentStats{
		DocumentsByStatus: map[string]int{string(models.DocumentStatusPendingIndexing): 1},
	}, nil
}

func (f *fakeBackend) AnalyzeIdentifiers(ctx context.Context, documentIDs []string, useAI bool) (*models.AnalysisResult, error) {
	return &models.AnalysisResult{}, nil
}

func (f *fakeBackend) GetClassifiedDocuments(ctx context.Context) (*models.ClassifiedDocuments, error) {
	return &models.ClassifiedDocuments{}, nil
}

func (f *fakeBackend) StartConversion(ctx context.Context, opts interfaces.ConversionOptions) (string, error) {
	f.mu.Lock()
	f.startConvCalls++
	f.mu.Unlock()
	if f.startConvErr != nil {
		return "", f.startConvErr
	}
	return f.conversionID, nil
}

func (f *fakeBackend) GetConversionStatus(ctx context.Context, taskID string) (*models.Job, error) {
	if f.convStatusFn != nil {
		return f.convStatusFn(ctx, taskID)
	}
	return terminalJob(taskID, models.JobKindConversion, models.JobStatusCompleted), nil
}

func (f *fakeBackend) StartIndexing(ctx context.Context, opts interfaces.IndexingOptions) (string, error) {
	f.mu.Lock()
	f.startIdxCalls++
	f.mu.Unlock()
	if f.startIdxErr != nil {
		return "", f.startIdxErr
	}
	return f.indexingID, nil
}

func (f *fakeBackend) GetIndexingStatus(ctx context.Context, taskID string) (*models.Job, error) {
	if f.idxStatusFn != nil {
		return f.idxStatusFn(ctx, taskID)
	}
	return terminalJob(taskID, models.JobKindIndexing, models.JobStatusCompleted), nil
}

func (f *fakeBackend) StopIndexing(ctx context.Context, taskID string) error {
	f.mu.Lock()
	f.stopIdxCalls++
	f.mu.Unlock()
	return f.stopIndexErr
}

func (f *fakeBackend) FindByVRN(ctx context.Context, vrn string) (*models.Vehicle, error) {
	return nil, nil
}

func (f *fakeBackend) LinkDocuments(ctx context.Context, vehicleID string, documentIDs []string) (*models.LinkBatchResult, error) {
	return &models.LinkBatchResult{LinkedCount: len(documentIDs)}, nil
}

func (f *fakeBackend) UnlinkDocuments(ctx context.Context, vehicleID string, documentIDs []string) (*models.LinkBatchResult, error) {
	return &models.LinkBatchResult{LinkedCount: len(documentIDs)}, nil
}

func (f *fakeBackend) CreateVehicleAndLink(ctx context.Context, vrn string, documentIDs []string, details models.VehicleDetails) (*models.Vehicle, *models.LinkBatchResult, error) {
	return &models.Vehicle{ID: "veh-1", VRN: vrn}, &models.LinkBatchResult{LinkedCount: len(documentIDs)}, nil
}

func (f *fakeBackend) LinkDocument(ctx context.Context, vehicleID, documentID string) error {
	return nil
}

func (f *fakeBackend) UnlinkDocument(ctx context.Context, vehicleID, documentID string) error {
	return nil
}

func terminalJob(id string, kind models.JobKind, status models.JobStatus) *models.Job {
	return &models.Job{
		ID:     id,
		Kind:   kind,
		Status: status,
		Progress: models.JobProgress{
			TotalFiles:     1,
			ConvertedFiles: 1,
		},
	}
}

// runningThenDone returns a fetcher that reports running for n fetches
// before turning completed
func runningThenDone(id string, kind models.JobKind, n int, final models.JobStatus) func(ctx context.Context, taskID string) (*models.Job, error) {
	var mu sync.Mutex
	calls := 0
	return func(ctx context.Context, taskID string) (*models.Job, error) {
		mu.Lock()
		calls++
		current := calls
		mu.Unlock()
		if current <= n {
			return &models.Job{ID: id, Kind: kind, Status: models.JobStatusRunning}, nil
		}
		return terminalJob(id, kind, final), nil
	}
}

// nullEvents satisfies interfaces.EventService without delivering anything
type nullEvents struct{}

func (nullEvents) Subscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	return nil
}
func (nullEvents) Publish(ctx context.Context, event interfaces.Event) error     { return nil }
func (nullEvents) PublishSync(ctx context.Context, event interfaces.Event) error { return nil }
func (nullEvents) Close() error                                                  { return nil }

// recordingEvents captures published events for assertions
type recordingEvents struct {
	mu     sync.Mutex
	events []interfaces.Event
}

func (r *recordingEvents) Subscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	return nil
}

func (r *recordingEvents) Publish(ctx context.Context, event interfaces.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingEvents) PublishSync(ctx context.Context, event interfaces.Event) error {
	return r.Publish(ctx, event)
}

func (r *recordingEvents) Close() error { return nil }

func (r *recordingEvents) ofType(t interfaces.EventType) []interfaces.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []interfaces.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// stubStateSetter records coordinator state transitions
type stubStateSetter struct {
	mu     sync.Mutex
	states []models.RunState
}

func (s *stubStateSetter) SetState(state models.RunState, runID string, metadata map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, state)
}

func (s *stubStateSetter) seen(state models.RunState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.states {
		if st == state {
			return true
		}
	}
	return false
}

// memoryRunStore keeps run records in a map for journal assertions
type memoryRunStore struct {
	mu   sync.Mutex
	runs map[string]models.PipelineRun
}

func newMemoryRunStore() *memoryRunStore {
	return &memoryRunStore{runs: make(map[string]models.PipelineRun)}
}

func (m *memoryRunStore) SaveRun(run *models.PipelineRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = *run
	return nil
}

func (m *memoryRunStore) GetRun(id string) (*models.PipelineRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	snapshot := run
	return &snapshot, nil
}

func (m *memoryRunStore) ListRuns(limit int) ([]*models.PipelineRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.PipelineRun
	for _, run := range m.runs {
		snapshot := run
		out = append(out, &snapshot)
	}
	return out, nil
}

func (m *memoryRunStore) DeleteRunsBefore(cutoff time.Time) (int, error) {
	return 0, nil
}

// capturingRunStore additionally records the exact pointers handed to
// SaveRun, for isolation assertions
type capturingRunStore struct {
	*memoryRunStore
	ptrMu sync.Mutex
	saved []*models.PipelineRun
}

func newCapturingRunStore() *capturingRunStore {
	return &capturingRunStore{memoryRunStore: newMemoryRunStore()}
}

func (c *capturingRunStore) SaveRun(run *models.PipelineRun) error {
	c.ptrMu.Lock()
	c.saved = append(c.saved, run)
	c.ptrMu.Unlock()
	return c.memoryRunStore.SaveRun(run)
}
