package service

import (
	"context"
	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"strconv"
	"strings"
	"sync"
	"time"
	"warden/internal/alert"
	"warden/internal/database"
	"warden/internal/executor"
	"warden/internal/retention"
	"warden/internal/scheduler"
	"warden/internal/storage"
	"warden/internal/summary"
	"warden/internal/types"
	"warden/logger"
)

type (
	BackupService interface {
		Run(ctx context.Context) error
		Stop(ctx context.Context) error

		ListJobs(ctx context.Context, filter types.JobFilter) ([]*types.BackupJob, error)
		GetJob(ctx context.Context, ref string) (*types.BackupJob, error)
		ExecuteNow(ctx context.Context, params types.ExecuteJobParams) (*types.BackupJob, error)
		CancelJob(ctx context.Context, ref string) (*types.BackupJob, error)

		ListSchedules(ctx context.Context, activeOnly bool) ([]*types.BackupSchedule, error)
		CreateSchedule(ctx context.Context, params types.CreateScheduleParams) (*types.BackupSchedule, error)
		PatchSchedule(ctx context.Context, id uint, params types.PatchScheduleParams) (*types.BackupSchedule, error)
		DeleteSchedule(ctx context.Context, id uint) error

		ListAlerts(ctx context.Context, filter types.AlertFilter) ([]*types.BackupAlert, error)
		AcknowledgeAlert(ctx context.Context, id uint) (*types.BackupAlert, error)
		ResolveAlert(ctx context.Context, id uint) (*types.BackupAlert, error)

		Summary(ctx context.Context, windowHours int) (*types.DashboardSummary, error)
		Databases() []types.Resource
		RunRetention(ctx context.Context) (retention.Report, error)
	}

	Config struct {
		TickInterval      time.Duration
		RetentionInterval time.Duration
		StorageThreshold  float64
	}

	Dependencies struct {
		Jobs       database.JobRepository
		Schedules  database.ScheduleRepository
		Catalog    *types.Catalog
		Executor   *executor.Executor
		Scheduler  *scheduler.Scheduler
		Retention  *retention.Manager
		Aggregator *summary.Aggregator
		Alerts     *alert.Emitter
		Storage    storage.Storage
	}

	backupService struct {
		deps    Dependencies
		config  Config
		cadence gocron.Scheduler
		now     func() time.Time

		stopOnce sync.Once
	}
)

func NewBackupService(deps Dependencies, config Config) (BackupService, error) {
	if config.TickInterval <= 0 {
		config.TickInterval = time.Minute
	}
	if config.RetentionInterval <= 0 {
		config.RetentionInterval = 24 * time.Hour
	}
	cadence, err := gocron.NewScheduler(gocron.WithLocation(deps.Scheduler.Location()))
	if err != nil {
		return nil, err
	}
	return &backupService{
		deps:    deps,
		config:  config,
		cadence: cadence,
		now:     time.Now,
	}, nil
}

// Run recovers jobs left behind by a previous process and starts the tick
// and retention cadences. Neither cadence overlaps itself.
func (b *backupService) Run(ctx context.Context) error {
	if _, err := b.deps.Executor.Recover(ctx); err != nil {
		return errors.Wrap(err, "failed to recover interrupted jobs")
	}

	_, err := b.cadence.NewJob(
		gocron.DurationJob(b.config.TickInterval),
		gocron.NewTask(b.tick, ctx),
		gocron.WithName("scheduler-tick"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()))
	if err != nil {
		return errors.Wrap(err, "failed to register scheduler tick")
	}

	_, err = b.cadence.NewJob(
		gocron.DurationJob(b.config.RetentionInterval),
		gocron.NewTask(b.retention, ctx),
		gocron.WithName("retention"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule))
	if err != nil {
		return errors.Wrap(err, "failed to register retention")
	}

	logger.Info("backup cadences started",
		zap.Duration("tick", b.config.TickInterval),
		zap.Duration("retention", b.config.RetentionInterval))
	b.cadence.Start()
	return nil
}

func (b *backupService) Stop(ctx context.Context) error {
	b.stopOnce.Do(func() {
		if err := b.cadence.Shutdown(); err != nil {
			logger.Warn("failed to stop cadences", zap.Error(err))
		}
	})
	return b.deps.Executor.Shutdown(ctx)
}

func (b *backupService) tick(ctx context.Context) {
	report, err := b.deps.Scheduler.Tick(ctx, b.now())
	if err != nil {
		logger.Error("scheduler tick failed", zap.Error(err))
		return
	}
	if report.Due > 0 {
		logger.Info("scheduler tick",
			zap.Int("due", report.Due),
			zap.Int("submitted", report.Submitted),
			zap.Int("skipped", report.Skipped),
			zap.Int("disabled", report.Disabled))
	}
}

func (b *backupService) retention(ctx context.Context) {
	if _, err := b.RunRetention(ctx); err != nil {
		logger.Error("retention run failed", zap.Error(err))
	}
}

func (b *backupService) ListJobs(ctx context.Context, filter types.JobFilter) ([]*types.BackupJob, error) {
	filter, err := filter.Normalize()
	if err != nil {
		return nil, err
	}
	return b.deps.Jobs.List(ctx, filter)
}

// GetJob accepts a numeric id or a job uuid.
func (b *backupService) GetJob(ctx context.Context, ref string) (*types.BackupJob, error) {
	ref = strings.TrimSpace(ref)
	if id, err := uuid.Parse(ref); err == nil {
		return b.deps.Jobs.FindByUUID(ctx, id)
	}
	id, err := strconv.ParseUint(ref, 10, 64)
	if err != nil {
		return nil, types.Invalid("invalid job reference: %q", ref)
	}
	return b.deps.Jobs.FindByID(ctx, uint(id))
}

func (b *backupService) ExecuteNow(ctx context.Context, params types.ExecuteJobParams) (*types.BackupJob, error) {
	if err := types.Validate(params); err != nil {
		return nil, err
	}
	if params.TriggeredBy == "" {
		params.TriggeredBy = types.TriggerManual
	}
	return b.deps.Executor.Submit(ctx, executor.SubmitParams{
		BackupType:      params.BackupType,
		Databases:       params.Databases,
		TriggeredBy:     params.TriggeredBy,
		TriggeredByUser: params.TriggeredByUser,
		Notes:           params.Notes,
	})
}

func (b *backupService) CancelJob(ctx context.Context, ref string) (*types.BackupJob, error) {
	job, err := b.GetJob(ctx, ref)
	if err != nil {
		return nil, err
	}
	return b.deps.Executor.Cancel(ctx, job.JobUUID)
}

func (b *backupService) ListSchedules(ctx context.Context, activeOnly bool) ([]*types.BackupSchedule, error) {
	return b.deps.Schedules.FindAll(ctx, activeOnly)
}

func (b *backupService) CreateSchedule(ctx context.Context, params types.CreateScheduleParams) (*types.BackupSchedule, error) {
	if err := types.Validate(params); err != nil {
		return nil, err
	}
	next, err := b.deps.Scheduler.NextRun(params.CronExpression, b.now())
	if err != nil {
		return nil, err
	}
	databases, err := b.deps.Catalog.Resolve(params.Databases)
	if err != nil {
		return nil, err
	}

	schedule := &types.BackupSchedule{
		ScheduleName:   strings.TrimSpace(params.Name),
		BackupType:     params.BackupType,
		CronExpression: strings.TrimSpace(params.CronExpression),
		Databases:      databases,
		IsActive:       params.IsActive == nil || *params.IsActive,
		RetentionDays:  params.RetentionDays,
	}
	if schedule.IsActive {
		schedule.NextRun = &next
	}
	if err := b.deps.Schedules.Create(ctx, schedule); err != nil {
		return nil, err
	}
	logger.Info("schedule created",
		zap.String("schedule", schedule.ScheduleName),
		zap.String("cron", schedule.CronExpression),
		zap.Bool("active", schedule.IsActive))
	return schedule, nil
}

// PatchSchedule applies the non-nil fields. next_run is recomputed from now
// when the schedule is activated or its expression changes, and cleared when
// it is deactivated.
func (b *backupService) PatchSchedule(ctx context.Context, id uint, params types.PatchScheduleParams) (*types.BackupSchedule, error) {
	if err := types.Validate(params); err != nil {
		return nil, err
	}
	schedule, err := b.deps.Schedules.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	recompute := false
	if params.Name != nil {
		schedule.ScheduleName = strings.TrimSpace(*params.Name)
	}
	if params.BackupType != nil {
		schedule.BackupType = *params.BackupType
	}
	if params.CronExpression != nil {
		schedule.CronExpression = strings.TrimSpace(*params.CronExpression)
		recompute = true
	}
	if params.Databases != nil {
		if schedule.Databases, err = b.deps.Catalog.Resolve(params.Databases); err != nil {
			return nil, err
		}
	}
	if params.RetentionDays != nil {
		schedule.RetentionDays = *params.RetentionDays
	}
	if params.IsActive != nil {
		recompute = recompute || (*params.IsActive && !schedule.IsActive)
		schedule.IsActive = *params.IsActive
	}

	// an inactive schedule still keeps a parseable expression
	next, err := b.deps.Scheduler.NextRun(schedule.CronExpression, b.now())
	if err != nil {
		return nil, err
	}
	switch {
	case !schedule.IsActive:
		schedule.Disable()
	case recompute || schedule.NextRun == nil:
		schedule.NextRun = &next
	}

	if err := b.deps.Schedules.Save(ctx, schedule); err != nil {
		return nil, err
	}
	return schedule, nil
}

func (b *backupService) DeleteSchedule(ctx context.Context, id uint) error {
	return b.deps.Schedules.Delete(ctx, id)
}

func (b *backupService) ListAlerts(ctx context.Context, filter types.AlertFilter) ([]*types.BackupAlert, error) {
	return b.deps.Alerts.List(ctx, filter)
}

func (b *backupService) AcknowledgeAlert(ctx context.Context, id uint) (*types.BackupAlert, error) {
	return b.deps.Alerts.Acknowledge(ctx, id)
}

func (b *backupService) ResolveAlert(ctx context.Context, id uint) (*types.BackupAlert, error) {
	return b.deps.Alerts.Resolve(ctx, id)
}

func (b *backupService) Summary(ctx context.Context, windowHours int) (*types.DashboardSummary, error) {
	return b.deps.Aggregator.Summary(ctx, windowHours)
}

func (b *backupService) Databases() []types.Resource {
	names := b.deps.Catalog.Names()
	out := make([]types.Resource, 0, len(names))
	for _, name := range names {
		r, _ := b.deps.Catalog.Lookup(name)
		out = append(out, r)
	}
	return out
}

// RunRetention expires old artifacts and then re-checks storage usage.
func (b *backupService) RunRetention(ctx context.Context) (retention.Report, error) {
	report, err := b.deps.Retention.Run(ctx, b.now())
	if err != nil {
		return report, err
	}

	if b.deps.Storage != nil {
		usage, err := b.deps.Storage.Usage(ctx)
		if err != nil {
			logger.Warn("failed to read storage usage", zap.Error(err))
			return report, nil
		}
		if _, err := b.deps.Alerts.CheckStorage(ctx, usage, b.config.StorageThreshold); err != nil {
			logger.Error("failed to check storage usage", zap.Error(err))
		}
	}
	return report, nil
}
