package badger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vindex/internal/common"
	"github.com/ternarybob/vindex/internal/interfaces"
	"github.com/ternarybob/vindex/internal/models"
)

func testRunStorage(t *testing.T) interfaces.RunStorage {
	t.Helper()

	db, err := NewBadgerDB(arbor.NewLogger(), &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "vindex-test"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewRunStorage(db, arbor.NewLogger())
}

func TestRunStorageRoundTrip(t *testing.T) {
	store := testRunStorage(t)

	run := models.NewPipelineRun()
	run.State = models.RunStateCompleted
	run.ConversionJobID = "conv-1"
	run.Upload = &models.UploadBatchResult{UploadedCount: 2, DuplicateCount: 1}
	run.MarkFinished()

	require.NoError(t, store.SaveRun(run))

	got, err := store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, models.RunStateCompleted, got.State)
	assert.Equal(t, "conv-1", got.ConversionJobID)
	require.NotNil(t, got.Upload)
	assert.Equal(t, 2, got.Upload.UploadedCount)
	assert.NotNil(t, got.FinishedAt)
}

func TestRunStorageUpsertUpdates(t *testing.T) {
	store := testRunStorage(t)

	run := models.NewPipelineRun()
	require.NoError(t, store.SaveRun(run))

	run.State = models.RunStateFailed
	run.Error = "conversion job failed"
	require.NoError(t, store.SaveRun(run))

	got, err := store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStateFailed, got.State)
	assert.Equal(t, "conversion job failed", got.Error)
}

func TestRunStorageGetMissing(t *testing.T) {
	store := testRunStorage(t)

	_, err := store.GetRun("run_does_not_exist")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRunStorageSaveRequiresID(t *testing.T) {
	store := testRunStorage(t)

	err := store.SaveRun(&models.PipelineRun{})
	assert.Error(t, err)
}

func TestRunStorageListNewestFirst(t *testing.T) {
	store := testRunStorage(t)

	base := time.Now().Add(-time.Hour)
	var ids []string
	for i := 0; i < 3; i++ {
		run := models.NewPipelineRun()
		run.StartedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.SaveRun(run))
		ids = append(ids, run.ID)
	}

	runs, err := store.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[0], runs[2].ID)

	// Limit applies
	limited, err := store.ListRuns(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestRunStorageDeleteRunsBefore(t *testing.T) {
	store := testRunStorage(t)

	old := models.NewPipelineRun()
	old.StartedAt = time.Now().AddDate(0, 0, -40)
	require.NoError(t, store.SaveRun(old))

	fresh := models.NewPipelineRun()
	require.NoError(t, store.SaveRun(fresh))

	deleted, err := store.DeleteRunsBefore(time.Now().AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = store.GetRun(old.ID)
	assert.Error(t, err)

	_, err = store.GetRun(fresh.ID)
	assert.NoError(t, err)
}
