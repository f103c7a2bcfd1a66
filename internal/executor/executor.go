package executor

import (
	"context"
	"fmt"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"strings"
	"sync"
	"time"
	"warden/internal/alert"
	"warden/internal/backup"
	"warden/internal/database"
	"warden/internal/eventbus"
	"warden/internal/locker"
	"warden/internal/metrics"
	"warden/internal/storage"
	"warden/internal/types"
	"warden/logger"
)

const (
	DefaultJobTimeout = 2 * time.Hour
	// DefaultPersistRetries bounds how often a failed job state write is retried.
	DefaultPersistRetries = 5
	DefaultPersistBackoff = 200 * time.Millisecond

	restartMessage = "interrupted by service restart"
)

type (
	Config struct {
		JobTimeout       time.Duration
		StorageThreshold float64
		PersistRetries   int
		// PersistBackoff is the first delay between job state write attempts, it doubles up to a few seconds.
		PersistBackoff time.Duration
	}

	Dependencies struct {
		Jobs      database.JobRepository
		Schedules database.ScheduleRepository
		Catalog   *types.Catalog
		Engine    backup.Engine
		Locker    locker.Locker
		Alerts    *alert.Emitter
		Bus       eventbus.Bus
		// Storage is optional, when set its usage is checked after every completed job.
		Storage storage.Storage
	}

	SubmitParams struct {
		BackupType      types.BackupType
		Databases       []string
		TriggeredBy     types.Trigger
		TriggeredByUser string
		ScheduleID      *uint
		Notes           string
	}

	execution struct {
		cancel context.CancelFunc
		done   chan struct{}
	}

	Executor struct {
		deps      Dependencies
		config    Config
		now       func() time.Time
		ctx       context.Context
		cancelAll context.CancelFunc

		mu      sync.Mutex
		running map[uuid.UUID]*execution
		wg      sync.WaitGroup
	}
)

func New(deps Dependencies, config Config) *Executor {
	if config.JobTimeout <= 0 {
		config.JobTimeout = DefaultJobTimeout
	}
	if config.PersistRetries <= 0 {
		config.PersistRetries = DefaultPersistRetries
	}
	if config.PersistBackoff <= 0 {
		config.PersistBackoff = DefaultPersistBackoff
	}
	if deps.Locker == nil {
		deps.Locker = locker.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Executor{
		deps:      deps,
		config:    config,
		now:       time.Now,
		ctx:       ctx,
		cancelAll: cancel,
		running:   make(map[uuid.UUID]*execution),
	}
}

// Submit validates params, persists a pending job and starts it in the
// background. The returned job is a snapshot taken before execution starts.
func (e *Executor) Submit(ctx context.Context, params SubmitParams) (*types.BackupJob, error) {
	if !params.BackupType.Valid() {
		return nil, types.Invalid("unknown backup type: %s", params.BackupType)
	}
	if params.TriggeredBy == "" {
		params.TriggeredBy = types.TriggerManual
	}
	if !params.TriggeredBy.Valid() {
		return nil, types.Invalid("unknown trigger: %s", params.TriggeredBy)
	}
	if params.TriggeredBy == types.TriggerSchedule {
		params.TriggeredByUser = ""
	} else if strings.TrimSpace(params.TriggeredByUser) == "" {
		return nil, types.Invalid("triggered_by_user is required for %s jobs", params.TriggeredBy)
	}
	databases, err := e.deps.Catalog.Resolve(params.Databases)
	if err != nil {
		return nil, err
	}
	if e.ctx.Err() != nil {
		return nil, errors.New("executor is shutting down")
	}

	job := &types.BackupJob{
		BackupType:      params.BackupType,
		Status:          types.JobStatusPending,
		Databases:       databases,
		TriggeredBy:     params.TriggeredBy,
		TriggeredByUser: strings.TrimSpace(params.TriggeredByUser),
		ScheduleID:      params.ScheduleID,
		Notes:           params.Notes,
		CreatedAt:       e.now().UTC(),
	}
	if err := e.deps.Jobs.Create(ctx, job); err != nil {
		return nil, errors.Wrap(err, "failed to persist job")
	}
	snapshot := *job

	logger.Info("backup job submitted",
		zap.String("job_uuid", job.JobUUID.String()),
		zap.Strings("databases", job.Databases),
		zap.String("triggered_by", string(job.TriggeredBy)))
	e.publish(job)

	jobCtx, cancel := context.WithCancel(e.ctx)
	exec := &execution{cancel: cancel, done: make(chan struct{})}
	e.mu.Lock()
	e.running[job.JobUUID] = exec
	e.mu.Unlock()

	e.wg.Add(1)
	go e.run(jobCtx, job, exec)
	return &snapshot, nil
}

// Cancel stops a pending or running job and waits until it is finalised.
func (e *Executor) Cancel(ctx context.Context, jobUUID uuid.UUID) (*types.BackupJob, error) {
	job, err := e.deps.Jobs.FindByUUID(ctx, jobUUID)
	if err != nil {
		return nil, err
	}
	if job.IsTerminal() {
		return nil, types.InvalidTransition(job.Status, types.JobStatusCancelled)
	}

	e.mu.Lock()
	exec, owned := e.running[jobUUID]
	if owned {
		exec.cancel()
	}
	e.mu.Unlock()

	if !owned {
		// left behind by another process, nothing is running it here
		if err := job.Finish(types.JobStatusCancelled, e.now().UTC()); err != nil {
			return nil, err
		}
		if err := e.deps.Jobs.Finalize(ctx, job); err != nil {
			return nil, err
		}
		e.publish(job)
		return job, nil
	}

	select {
	case <-exec.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return e.deps.Jobs.FindByUUID(ctx, jobUUID)
}

// Recover finalises jobs a previous process left behind: running jobs fail,
// pending ones never started and are cancelled.
func (e *Executor) Recover(ctx context.Context) (int, error) {
	orphans, err := e.deps.Jobs.FindUnfinished(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to load unfinished jobs")
	}

	recovered := make([]string, 0, len(orphans))
	for _, job := range orphans {
		e.mu.Lock()
		_, owned := e.running[job.JobUUID]
		e.mu.Unlock()
		if owned {
			continue
		}

		status := types.JobStatusCancelled
		if job.Status == types.JobStatusRunning {
			status = types.JobStatusFailed
			job.ErrorMessage = restartMessage
		}
		if err := job.Finish(status, e.now().UTC()); err != nil {
			return len(recovered), err
		}
		if err := e.deps.Jobs.Finalize(ctx, job); err != nil {
			return len(recovered), errors.Wrapf(err, "failed to recover job %s", job.JobUUID)
		}
		recovered = append(recovered, job.JobUUID.String())
		e.publish(job)
	}

	if len(recovered) > 0 {
		logger.Warn("recovered interrupted jobs", zap.Strings("jobs", recovered))
		msg := fmt.Sprintf("%d job(s) were %s: %s", len(recovered), restartMessage, strings.Join(recovered, ", "))
		if _, err := e.deps.Alerts.Emit(ctx, types.AlertTypeWarning, types.SeverityLow, "Interrupted jobs recovered", msg, types.SourceExecutor); err != nil {
			return len(recovered), err
		}
	}
	return len(recovered), nil
}

// Running reports the number of jobs owned by this executor that are not yet terminal.
func (e *Executor) Running() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.running)
}

// Wait blocks until every submitted job is terminal.
func (e *Executor) Wait() {
	e.wg.Wait()
}

// Shutdown cancels in-flight jobs and waits for their workers to exit.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.cancelAll()
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Executor) run(ctx context.Context, job *types.BackupJob, exec *execution) {
	defer e.wg.Done()
	defer func() {
		exec.cancel()
		e.mu.Lock()
		delete(e.running, job.JobUUID)
		e.mu.Unlock()
		close(exec.done)
	}()

	release, err := e.deps.Locker.Acquire(ctx, job.Databases)
	if err != nil {
		e.finish(ctx, job, types.JobStatusCancelled, nil, false)
		return
	}
	defer release()

	if err := job.Start(e.now().UTC()); err != nil {
		logger.Error("failed to start job", zap.String("job_uuid", job.JobUUID.String()), zap.Error(err))
		return
	}
	if err := e.persist(ctx, job, e.deps.Jobs.MarkRunning); err != nil {
		logger.Error("failed to mark job running", zap.String("job_uuid", job.JobUUID.String()), zap.Error(err))
		if !errors.Is(err, types.ErrInvalidTransition) {
			e.finish(ctx, job, types.JobStatusFailed, errors.Wrap(err, "failed to mark job running"), false)
		}
		return
	}
	metrics.JobStarted()
	e.publish(job)

	runCtx, cancel := context.WithTimeout(ctx, e.config.JobTimeout)
	res, err := e.deps.Engine.Backup(runCtx, backup.Request{
		JobUUID:    job.JobUUID,
		BackupType: job.BackupType,
		Databases:  job.Databases,
	})
	timedOut := errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	cancel()

	switch {
	case err == nil:
		job.TotalSizeBytes = &res.TotalSizeBytes
		job.CompressedSizeBytes = &res.CompressedSizeBytes
		job.BackupPath = res.Path
		e.finish(ctx, job, types.JobStatusCompleted, nil, true)
	case timedOut:
		e.finish(ctx, job, types.JobStatusCancelled, context.DeadlineExceeded, true)
	case ctx.Err() != nil:
		e.finish(ctx, job, types.JobStatusCancelled, nil, true)
	default:
		e.finish(ctx, job, types.JobStatusFailed, err, true)
	}
}

// finish persists the terminal state and only then raises alerts.
func (e *Executor) finish(ctx context.Context, job *types.BackupJob, status types.JobStatus, cause error, wasRunning bool) {
	ctx = context.WithoutCancel(ctx)
	log := logger.With(zap.String("job_uuid", job.JobUUID.String()), zap.Strings("databases", job.Databases))

	var previous []*types.BackupJob
	if job.ScheduleID != nil && status == types.JobStatusCompleted {
		var err error
		previous, err = e.deps.Jobs.RecentTerminalBySchedule(ctx, *job.ScheduleID, 1)
		if err != nil {
			log.Warn("failed to load previous job", zap.Error(err))
		}
	}

	if status == types.JobStatusFailed {
		job.ErrorMessage = backup.Describe(cause)
	}
	if err := job.Finish(status, e.now().UTC()); err != nil {
		log.Error("invalid terminal transition", zap.Error(err))
		return
	}
	if err := e.persist(ctx, job, e.deps.Jobs.Finalize); err != nil {
		log.Error("failed to finalize job", zap.Error(err))
		if !errors.Is(err, types.ErrInvalidTransition) {
			msg := fmt.Sprintf("job %s finished as %s but the result could not be stored, it stays unfinished until the service restarts: %s",
				job.JobUUID, job.Status, err.Error())
			e.emit(ctx, types.AlertTypeError, types.SeverityCritical, "Job state not persisted", msg, job)
		}
		return
	}
	metrics.JobFinished(job, wasRunning)
	e.publish(job)
	log.Info("backup job finished",
		zap.String("status", string(job.Status)),
		zap.Float64p("duration_seconds", job.DurationSeconds))

	switch status {
	case types.JobStatusCompleted:
		e.afterSuccess(ctx, job, previous)
	case types.JobStatusFailed:
		e.afterFailure(ctx, job, cause)
	case types.JobStatusCancelled:
		if errors.Is(cause, context.DeadlineExceeded) {
			msg := fmt.Sprintf("job %s exceeded the %s timeout and was cancelled", job.JobUUID, e.config.JobTimeout)
			e.emit(ctx, types.AlertTypeWarning, types.SeverityLow, "Backup job timed out", msg, job)
		}
	}
}

func (e *Executor) afterSuccess(ctx context.Context, job *types.BackupJob, previous []*types.BackupJob) {
	if len(previous) > 0 && previous[0].Status == types.JobStatusFailed {
		msg := fmt.Sprintf("backup of %s succeeded after a failed run", strings.Join(job.Databases, ", "))
		e.emit(ctx, types.AlertTypeSuccess, types.SeverityLow, "Backup recovered", msg, job)
	}

	if e.deps.Storage == nil {
		return
	}
	usage, err := e.deps.Storage.Usage(ctx)
	if err != nil {
		logger.Warn("failed to read storage usage", zap.Error(err))
		return
	}
	if _, err := e.deps.Alerts.CheckStorage(ctx, usage, e.config.StorageThreshold); err != nil {
		logger.Error("failed to check storage usage", zap.Error(err))
	}
}

func (e *Executor) afterFailure(ctx context.Context, job *types.BackupJob, cause error) {
	consecutive := 1
	if job.ScheduleID != nil {
		recent, err := e.deps.Jobs.RecentTerminalBySchedule(ctx, *job.ScheduleID, alert.ConsecutiveFailureThreshold)
		if err != nil {
			logger.Warn("failed to count consecutive failures", zap.Error(err))
		} else {
			consecutive = alert.ConsecutiveFailures(recent)
		}
	}

	severity := alert.FailureSeverity(job.BackupType, consecutive)
	title := "Backup failed"
	if consecutive >= alert.ConsecutiveFailureThreshold {
		title = fmt.Sprintf("Backup failed %d times in a row", consecutive)
	}
	e.emit(ctx, types.AlertTypeError, severity, title, job.ErrorMessage, job)

	if backup.Classify(cause) == backup.ClassConfiguration && job.TriggeredBy == types.TriggerSchedule && job.ScheduleID != nil {
		e.disableSchedule(ctx, *job.ScheduleID, job.ErrorMessage)
	}
}

func (e *Executor) disableSchedule(ctx context.Context, id uint, reason string) {
	schedule, err := e.deps.Schedules.FindByID(ctx, id)
	if err != nil {
		logger.Warn("failed to load schedule to disable", zap.Uint("schedule", id), zap.Error(err))
		return
	}
	changed, err := e.deps.Schedules.Deactivate(ctx, id)
	if err != nil {
		logger.Error("failed to disable schedule", zap.Uint("schedule", id), zap.Error(err))
		return
	}
	if !changed {
		return
	}

	msg := fmt.Sprintf("schedule %q was disabled after a configuration error: %s", schedule.ScheduleName, reason)
	if _, err := e.deps.Alerts.Emit(ctx, types.AlertTypeError, types.SeverityCritical, "Schedule disabled", msg, types.SourceExecutor, alert.WithSchedule(id)); err != nil {
		logger.Error("failed to raise alert", zap.Error(err))
	}
}

// persist retries a job state write with exponential backoff. The write runs
// detached from ctx so a cancelled job still records its outcome. An invalid
// transition is final.
func (e *Executor) persist(ctx context.Context, job *types.BackupJob, write func(context.Context, *types.BackupJob) error) error {
	ctx = context.WithoutCancel(ctx)
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.config.PersistBackoff
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = 0

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := write(ctx, job)
		if err == nil {
			return nil
		}
		if errors.Is(err, types.ErrInvalidTransition) {
			return backoff.Permanent(err)
		}
		logger.Warn("job state write failed",
			zap.String("job_uuid", job.JobUUID.String()),
			zap.String("status", string(job.Status)),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return err
	}, backoff.WithMaxRetries(policy, uint64(e.config.PersistRetries)))
}

func (e *Executor) emit(ctx context.Context, alertType types.AlertType, severity types.Severity, title, message string, job *types.BackupJob) {
	opts := []alert.Option{alert.WithJob(job.ID)}
	if job.ScheduleID != nil {
		opts = append(opts, alert.WithSchedule(*job.ScheduleID))
	}
	if _, err := e.deps.Alerts.Emit(ctx, alertType, severity, title, message, types.SourceExecutor, opts...); err != nil {
		logger.Error("failed to raise alert", zap.String("job_uuid", job.JobUUID.String()), zap.Error(err))
	}
}

func (e *Executor) publish(job *types.BackupJob) {
	evType := eventbus.Info
	switch job.Status {
	case types.JobStatusCompleted:
		evType = eventbus.Success
	case types.JobStatusFailed:
		evType = eventbus.Error
	case types.JobStatusCancelled:
		evType = eventbus.Complete
	}
	snapshot := *job
	e.deps.Bus.BroadcastWithData(job.JobUUID.String(), evType, "job "+string(job.Status), &snapshot)
}
