package retention

import (
	"context"
	"fmt"
	"go.uber.org/zap"
	"time"
	"warden/internal/alert"
	"warden/internal/backup"
	"warden/internal/database"
	"warden/internal/metrics"
	"warden/internal/types"
	"warden/logger"
)

type (
	Dependencies struct {
		Schedules database.ScheduleRepository
		Jobs      database.JobRepository
		Engine    backup.Engine
		Alerts    *alert.Emitter
	}

	Report struct {
		Schedules int       `json:"schedules"`
		Examined  int       `json:"examined"`
		Expired   int       `json:"expired"`
		Failed    int       `json:"failed"`
		RanAt     time.Time `json:"ran_at"`
	}

	Manager struct {
		deps Dependencies
	}
)

func New(deps Dependencies) *Manager {
	return &Manager{deps: deps}
}

// Run expires the artifacts of completed jobs older than their schedule's
// retention window. Job rows are only marked, never deleted. A failed
// deletion is alerted and retried on the next run.
func (m *Manager) Run(ctx context.Context, now time.Time) (Report, error) {
	now = now.UTC()
	report := Report{RanAt: now}

	schedules, err := m.deps.Schedules.FindWithRetention(ctx)
	if err != nil {
		return report, err
	}

	for _, schedule := range schedules {
		if schedule.RetentionDays <= 0 {
			continue
		}
		report.Schedules++
		cutoff := now.AddDate(0, 0, -schedule.RetentionDays)
		jobs, err := m.deps.Jobs.FindExpirable(ctx, schedule.ID, cutoff)
		if err != nil {
			return report, err
		}

		for _, job := range jobs {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			report.Examined++
			if err := m.expire(ctx, schedule, job, now); err != nil {
				report.Failed++
				metrics.RetentionResult("failed")
				m.failed(ctx, schedule, job, err)
				continue
			}
			report.Expired++
			metrics.RetentionResult("expired")
		}
	}

	logger.Info("retention run finished",
		zap.Int("examined", report.Examined),
		zap.Int("expired", report.Expired),
		zap.Int("failed", report.Failed))
	return report, nil
}

func (m *Manager) expire(ctx context.Context, schedule *types.BackupSchedule, job *types.BackupJob, now time.Time) error {
	if err := m.deps.Engine.Delete(ctx, job.BackupPath); err != nil {
		return err
	}
	logger.Debug("backup artifact expired",
		zap.String("schedule", schedule.ScheduleName),
		zap.String("job_uuid", job.JobUUID.String()),
		zap.String("path", job.BackupPath))
	return m.deps.Jobs.MarkExpired(ctx, job.ID, now)
}

func (m *Manager) failed(ctx context.Context, schedule *types.BackupSchedule, job *types.BackupJob, cause error) {
	logger.Warn("failed to expire backup",
		zap.String("schedule", schedule.ScheduleName),
		zap.String("job_uuid", job.JobUUID.String()),
		zap.Error(cause))

	msg := fmt.Sprintf("artifact %s of job %s could not be deleted and will be retried: %s",
		job.BackupPath, job.JobUUID, cause.Error())
	if _, err := m.deps.Alerts.Emit(ctx, types.AlertTypeWarning, types.SeverityLow, "Retention deletion failed", msg,
		types.SourceRetention, alert.WithJob(job.ID), alert.WithSchedule(schedule.ID)); err != nil {
		logger.Error("failed to raise alert", zap.Error(err))
	}
}
