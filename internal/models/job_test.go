package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJobStatus(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    JobStatus
		wantErr bool
	}{
		{name: "pending", input: "pending", want: JobStatusPending},
		{name: "running", input: "running", want: JobStatusRunning},
		{name: "completed", input: "completed", want: JobStatusCompleted},
		{name: "failed", input: "failed", want: JobStatusFailed},
		{name: "cancelled", input: "cancelled", want: JobStatusCancelled},
		{name: "unknown value rejected", input: "paused", wantErr: true},
		{name: "empty rejected", input: "", wantErr: true},
		{name: "case-sensitive", input: "Completed", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJobStatus(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJobStatusIsTerminal(t *testing.T) {
	assert.False(t, JobStatusPending.IsTerminal())
	assert.False(t, JobStatusRunning.IsTerminal())
	assert.True(t, JobStatusCompleted.IsTerminal())
	assert.True(t, JobStatusFailed.IsTerminal())
	assert.True(t, JobStatusCancelled.IsTerminal())
}

func TestRunStateIsTerminal(t *testing.T) {
	assert.False(t, RunStateIdle.IsTerminal())
	assert.False(t, RunStateUploading.IsTerminal())
	assert.False(t, RunStateConverting.IsTerminal())
	assert.False(t, RunStateIndexing.IsTerminal())
	assert.True(t, RunStateCompleted.IsTerminal())
	assert.True(t, RunStateFailed.IsTerminal())
}

func TestNewPipelineRun(t *testing.T) {
	run := NewPipelineRun()

	assert.NotEmpty(t, run.ID)
	assert.Contains(t, run.ID, "run_")
	assert.Equal(t, RunStateUploading, run.State)
	assert.False(t, run.StartedAt.IsZero())
	assert.Nil(t, run.FinishedAt)

	run.MarkFinished()
	require.NotNil(t, run.FinishedAt)

	first := *run.FinishedAt
	run.MarkFinished()
	assert.Equal(t, first, *run.FinishedAt, "second MarkFinished must not move the timestamp")
}
