package history

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidspeed/internal/model"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleSummary(started time.Time) model.BatchSummary {
	return model.BatchSummary{
		BatchID:    uuid.NewString(),
		Speed:      0.5,
		OutputDir:  "/out",
		Total:      2,
		Completed:  1,
		Failed:     1,
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
		Jobs: []model.Job{
			{Index: 1, InputPath: "/v/a.mp4", OutputPath: "/out/a_x0.50.mp4", Status: model.StatusSucceeded, StartedAt: started, FinishedAt: started.Add(30 * time.Second)},
			{Index: 2, InputPath: "/v/b.mp4", OutputPath: "/out/b_x0.50.mp4", Status: model.StatusFailed, ExitCode: -1, Crashed: true, ErrorMessage: "process crashed"},
		},
	}
}

func TestRecordBatchAndList(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	older := sampleSummary(base)
	newer := sampleSummary(base.Add(time.Hour + 500*time.Millisecond))
	require.NoError(t, s.RecordBatch(ctx, older))
	require.NoError(t, s.RecordBatch(ctx, newer))

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newer.BatchID, all[0].ID)
	assert.Equal(t, older.BatchID, all[1].ID)
	assert.True(t, newer.StartedAt.Equal(all[0].StartedAt))
	assert.Equal(t, 2, all[1].Total)
	assert.Equal(t, 1, all[1].Completed)
	assert.Equal(t, 1, all[1].Failed)
	assert.Equal(t, 0.5, all[1].Speed)

	limited, err := s.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, newer.BatchID, limited[0].ID)
}

func TestJobsRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	summary := sampleSummary(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, s.RecordBatch(ctx, summary))

	jobs, err := s.Jobs(ctx, summary.BatchID)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, model.StatusSucceeded, jobs[0].Status)
	assert.True(t, summary.Jobs[0].StartedAt.Equal(jobs[0].StartedAt))
	assert.True(t, jobs[1].Crashed)
	assert.Equal(t, -1, jobs[1].ExitCode)
	assert.Equal(t, "process crashed", jobs[1].ErrorMessage)
	assert.True(t, jobs[1].StartedAt.IsZero())
}

func TestJobsUnknownBatch(t *testing.T) {
	s := openStore(t)
	_, err := s.Jobs(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordBatchRejectsDuplicateID(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	summary := sampleSummary(time.Now())
	require.NoError(t, s.RecordBatch(ctx, summary))
	require.Error(t, s.RecordBatch(ctx, summary))

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	first, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, first.RecordBatch(context.Background(), sampleSummary(time.Now())))
	require.NoError(t, first.Close())

	second, err := Open(dir)
	require.NoError(t, err)
	defer second.Close()
	all, err := second.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
