package scheduler

import (
	"context"
	"errors"
	"fmt"
	"go.uber.org/zap"
	"time"
	"warden/internal/alert"
	"warden/internal/backup"
	"warden/internal/database"
	"warden/internal/executor"
	"warden/internal/metrics"
	"warden/internal/types"
	"warden/logger"
)

type (
	Submitter interface {
		Submit(ctx context.Context, params executor.SubmitParams) (*types.BackupJob, error)
	}

	Dependencies struct {
		Schedules database.ScheduleRepository
		Jobs      database.JobRepository
		Catalog   *types.Catalog
		Submitter Submitter
		Alerts    *alert.Emitter
	}

	// TickReport is what a single evaluation did.
	TickReport struct {
		Due       int
		Submitted int
		Skipped   int
		Disabled  int
	}

	Scheduler struct {
		deps     Dependencies
		location *time.Location
	}
)

func New(deps Dependencies, location *time.Location) *Scheduler {
	if location == nil {
		location = time.UTC
	}
	return &Scheduler{deps: deps, location: location}
}

func (s *Scheduler) Location() *time.Location {
	return s.location
}

// NextRun computes the first firing instant of expression strictly after t.
func (s *Scheduler) NextRun(expression string, t time.Time) (time.Time, error) {
	c, err := backup.ParseCron(expression, s.location)
	if err != nil {
		return time.Time{}, err
	}
	return c.Next(t), nil
}

// Tick evaluates every due schedule once. A schedule that missed several
// instants fires once and its next run is computed from now.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (TickReport, error) {
	metrics.SchedulerTick()
	now = now.UTC()

	due, err := s.deps.Schedules.FindDue(ctx, now)
	if err != nil {
		return TickReport{}, err
	}

	report := TickReport{Due: len(due)}
	for _, schedule := range due {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		outcome, err := s.evaluate(ctx, schedule, now)
		if err != nil {
			logger.Error("failed to evaluate schedule",
				zap.String("schedule", schedule.ScheduleName),
				zap.Error(err))
			continue
		}
		switch outcome {
		case submitted:
			report.Submitted++
		case skipped:
			report.Skipped++
		case disabled:
			report.Disabled++
		}
	}
	return report, nil
}

type outcome int

const (
	submitted outcome = iota
	skipped
	disabled
)

func (s *Scheduler) evaluate(ctx context.Context, schedule *types.BackupSchedule, now time.Time) (outcome, error) {
	c, err := backup.ParseCron(schedule.CronExpression, s.location)
	if err != nil {
		return disabled, s.disable(ctx, schedule, err)
	}
	if _, err := s.deps.Catalog.Resolve(schedule.Databases); err != nil {
		return disabled, s.disable(ctx, schedule, err)
	}

	active, err := s.deps.Jobs.FindActiveBySchedule(ctx, schedule.ID)
	if err != nil {
		return skipped, err
	}
	if len(active) > 0 {
		logger.Info("previous run still active, skipping tick",
			zap.String("schedule", schedule.ScheduleName),
			zap.String("job_uuid", active[0].JobUUID.String()))
		if now.Sub(*schedule.NextRun) > c.Period(*schedule.NextRun) {
			s.skippedAlert(ctx, schedule, active[0])
		}
		return skipped, nil
	}

	_, err = s.deps.Submitter.Submit(ctx, executor.SubmitParams{
		BackupType:  schedule.BackupType,
		Databases:   schedule.Databases,
		TriggeredBy: types.TriggerSchedule,
		ScheduleID:  &schedule.ID,
	})
	if err != nil {
		if errors.Is(err, types.ErrValidation) {
			return disabled, s.disable(ctx, schedule, err)
		}
		return skipped, err
	}

	next := c.Next(now)
	advanced, err := s.deps.Schedules.Advance(ctx, schedule.ID, schedule.CronExpression, now, next)
	if err != nil {
		return submitted, err
	}
	if !advanced {
		// deactivated or rescheduled while the job was being submitted
		logger.Info("schedule changed during tick, next run left as is",
			zap.String("schedule", schedule.ScheduleName))
		return submitted, nil
	}
	schedule.LastRun = &now
	schedule.NextRun = &next
	logger.Info("scheduled backup submitted",
		zap.String("schedule", schedule.ScheduleName),
		zap.Time("next_run", next))
	return submitted, nil
}

func (s *Scheduler) disable(ctx context.Context, schedule *types.BackupSchedule, cause error) error {
	changed, err := s.deps.Schedules.Deactivate(ctx, schedule.ID)
	if err != nil {
		return err
	}
	schedule.Disable()
	if !changed {
		return nil
	}
	logger.Warn("schedule disabled", zap.String("schedule", schedule.ScheduleName), zap.Error(cause))

	msg := fmt.Sprintf("schedule %q was disabled: %s", schedule.ScheduleName, cause.Error())
	_, err = s.deps.Alerts.Emit(ctx, types.AlertTypeError, types.SeverityCritical, "Schedule disabled", msg,
		types.SourceScheduler, alert.WithSchedule(schedule.ID))
	return err
}

// skippedAlert is raised at most once while an earlier one for the same
// schedule is unresolved.
func (s *Scheduler) skippedAlert(ctx context.Context, schedule *types.BackupSchedule, active *types.BackupJob) {
	title := fmt.Sprintf("Scheduled backup %q skipped", schedule.ScheduleName)
	exists, err := s.deps.Alerts.HasUnresolved(ctx, types.SourceScheduler, title)
	if err != nil || exists {
		return
	}
	msg := fmt.Sprintf("run due at %s was skipped because job %s is still %s",
		schedule.NextRun.Format(time.RFC3339), active.JobUUID, active.Status)
	if _, err := s.deps.Alerts.Emit(ctx, types.AlertTypeWarning, types.SeverityLow, title, msg,
		types.SourceScheduler, alert.WithSchedule(schedule.ID), alert.WithJob(active.ID)); err != nil {
		logger.Error("failed to raise alert", zap.Error(err))
	}
}
