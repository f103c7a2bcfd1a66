package summary

import (
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"math/rand"
	"path/filepath"
	"testing"
	"time"
	"warden/internal/database"
	"warden/internal/storage"
	"warden/internal/types"
)

func jobs(statuses ...types.JobStatus) []*types.BackupJob {
	out := make([]*types.BackupJob, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, &types.BackupJob{Status: s})
	}
	return out
}

func TestHealthScore(t *testing.T) {
	cfg := Config{}
	assert.Equal(t, 100.0, HealthScore(nil, 0, cfg))
	assert.InDelta(t, 70.0, HealthScore(nil, 100, cfg), 1e-9)
	assert.InDelta(t, 30.0, HealthScore(jobs(types.JobStatusFailed), 0, cfg), 1e-9)
	assert.InDelta(t, 65.0, HealthScore(jobs(types.JobStatusFailed, types.JobStatusCompleted), 0, cfg), 1e-9)
	assert.Equal(t, 0.0, HealthScore(jobs(types.JobStatusFailed), 150, cfg))

	storageOnly := Config{StorageWeight: 1}
	assert.InDelta(t, 40.0, HealthScore(jobs(types.JobStatusFailed), 60, storageOnly), 1e-9)
}

// Replacing a successful recent job with a failure must strictly lower the score.
func TestHealthScore_MoreFailuresLowerScore(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	statuses := []types.JobStatus{types.JobStatusCompleted, types.JobStatusCancelled, types.JobStatusFailed}
	cfg := Config{FailureWeight: 0.7, StorageWeight: 0.3}

	for i := 0; i < 200; i++ {
		n := 1 + rnd.Intn(20)
		recent := make([]*types.BackupJob, n)
		for j := range recent {
			recent[j] = &types.BackupJob{Status: statuses[rnd.Intn(len(statuses))]}
		}
		usage := rnd.Float64() * 100

		for j, job := range recent {
			if job.Status == types.JobStatusFailed {
				continue
			}
			worse := append([]*types.BackupJob(nil), recent...)
			worse[j] = &types.BackupJob{Status: types.JobStatusFailed}
			assert.Less(t, HealthScore(worse, usage, cfg), HealthScore(recent, usage, cfg))
			break
		}
	}
}

func TestBand(t *testing.T) {
	assert.Equal(t, "healthy", Band(80))
	assert.Equal(t, "degraded", Band(79.9))
	assert.Equal(t, "degraded", Band(50))
	assert.Equal(t, "critical", Band(49))
}

func TestAggregator_Summary(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(filepath.Join(t.TempDir(), "warden.db"))
	require.NoError(t, err)
	defer database.Close(db)
	jobRepo := database.NewJobRepository(db)
	scheduleRepo := database.NewScheduleRepository(db)
	alertRepo := database.NewAlertRepository(db)

	now := time.Now().UTC()
	finish := func(status types.JobStatus, seconds int) {
		job := &types.BackupJob{BackupType: types.BackupTypeFull, Status: types.JobStatusPending, Databases: types.DatabaseList{"orders"}, TriggeredBy: types.TriggerManual}
		require.NoError(t, jobRepo.Create(ctx, job))
		start := now.Add(-time.Hour)
		require.NoError(t, job.Start(start))
		require.NoError(t, jobRepo.MarkRunning(ctx, job))
		require.NoError(t, job.Finish(status, start.Add(time.Duration(seconds)*time.Second)))
		require.NoError(t, jobRepo.Finalize(ctx, job))
	}
	finish(types.JobStatusCompleted, 60)
	finish(types.JobStatusCompleted, 120)
	finish(types.JobStatusFailed, 10)
	require.NoError(t, jobRepo.Create(ctx, &types.BackupJob{BackupType: types.BackupTypeFull, Status: types.JobStatusPending, Databases: types.DatabaseList{"users"}, TriggeredBy: types.TriggerManual}))

	next := now.Add(3 * time.Hour)
	require.NoError(t, scheduleRepo.Create(ctx, &types.BackupSchedule{ScheduleName: "nightly", BackupType: types.BackupTypeFull, CronExpression: "0 2 * * *", Databases: types.DatabaseList{"orders"}, IsActive: true, NextRun: &next}))
	require.NoError(t, alertRepo.Create(ctx, &types.BackupAlert{AlertType: types.AlertTypeError, Severity: types.SeverityHigh, Title: "Backup failed", Source: types.SourceExecutor}))

	st, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	agg := New(Dependencies{Jobs: jobRepo, Schedules: scheduleRepo, Alerts: alertRepo, Storage: st}, Config{})

	s, err := agg.Summary(ctx, 24)
	require.NoError(t, err)
	assert.Equal(t, int64(4), s.TotalJobs)
	assert.Equal(t, int64(2), s.SuccessfulJobs)
	assert.Equal(t, int64(1), s.FailedJobs)
	assert.Equal(t, int64(1), s.PendingJobs)
	assert.Equal(t, 24, s.WindowHours)
	assert.InDelta(t, 90.0, s.AverageDurationSeconds, 1e-9)
	require.NotNil(t, s.LastCompletedAt)
	require.NotNil(t, s.NextScheduledAt)
	assert.True(t, s.NextScheduledAt.Equal(next))
	assert.Equal(t, int64(1), s.ActiveSchedules)
	assert.Equal(t, int64(1), s.UnresolvedAlerts)
	assert.Greater(t, s.HealthScore, 0.0)
	assert.Less(t, s.HealthScore, 100.0)
	assert.Equal(t, Band(s.HealthScore), s.HealthStatus)

	_, err = agg.Summary(ctx, -1)
	assert.ErrorIs(t, err, types.ErrValidation)
}
