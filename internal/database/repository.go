package database

import (
	"context"
	"github.com/google/uuid"
	"time"
	"warden/internal/types"
)

type JobRepository interface {
	Create(ctx context.Context, job *types.BackupJob) error
	// MarkRunning persists pending -> running. It fails with
	// types.ErrInvalidTransition when the stored job is no longer pending.
	MarkRunning(ctx context.Context, job *types.BackupJob) error
	// Finalize persists the terminal status and every derived field in one
	// transaction. It fails with types.ErrInvalidTransition when the stored
	// job is already terminal.
	Finalize(ctx context.Context, job *types.BackupJob) error
	FindByID(ctx context.Context, id uint) (*types.BackupJob, error)
	FindByUUID(ctx context.Context, jobUUID uuid.UUID) (*types.BackupJob, error)
	List(ctx context.Context, filter types.JobFilter) ([]*types.BackupJob, error)
	FindActiveBySchedule(ctx context.Context, scheduleID uint) ([]*types.BackupJob, error)
	FindUnfinished(ctx context.Context) ([]*types.BackupJob, error)
	RecentTerminalBySchedule(ctx context.Context, scheduleID uint, limit int) ([]*types.BackupJob, error)
	RecentTerminal(ctx context.Context, limit int) ([]*types.BackupJob, error)
	FindExpirable(ctx context.Context, scheduleID uint, before time.Time) ([]*types.BackupJob, error)
	MarkExpired(ctx context.Context, id uint, at time.Time) error
	CountByStatus(ctx context.Context, since *time.Time) (types.StatusCounts, error)
	AverageDuration(ctx context.Context, since *time.Time) (float64, error)
	LastCompleted(ctx context.Context) (*time.Time, error)
}

type ScheduleRepository interface {
	Create(ctx context.Context, schedule *types.BackupSchedule) error
	Save(ctx context.Context, schedule *types.BackupSchedule) error
	// Advance records a fired run. It only touches an active schedule whose
	// cron expression is still expression and reports whether it did.
	Advance(ctx context.Context, id uint, expression string, lastRun, nextRun time.Time) (bool, error)
	// Deactivate sets is_active false and clears next_run. It reports false
	// when the schedule was already inactive.
	Deactivate(ctx context.Context, id uint) (bool, error)
	FindByID(ctx context.Context, id uint) (*types.BackupSchedule, error)
	FindAll(ctx context.Context, activeOnly bool) ([]*types.BackupSchedule, error)
	// FindDue returns active schedules with next_run <= now, oldest first.
	FindDue(ctx context.Context, now time.Time) ([]*types.BackupSchedule, error)
	FindWithRetention(ctx context.Context) ([]*types.BackupSchedule, error)
	Delete(ctx context.Context, id uint) error
	NextScheduled(ctx context.Context) (*time.Time, error)
	CountActive(ctx context.Context) (int64, error)
}

type AlertRepository interface {
	Create(ctx context.Context, alert *types.BackupAlert) error
	FindByID(ctx context.Context, id uint) (*types.BackupAlert, error)
	List(ctx context.Context, filter types.AlertFilter) ([]*types.BackupAlert, error)
	MarkRead(ctx context.Context, id uint) (*types.BackupAlert, error)
	Resolve(ctx context.Context, id uint, at time.Time) (*types.BackupAlert, error)
	CountUnresolved(ctx context.Context) (int64, error)
	HasUnresolved(ctx context.Context, source, title string) (bool, error)
}
