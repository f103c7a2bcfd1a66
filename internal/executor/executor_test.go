package executor

import (
	"bytes"
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"warden/internal/alert"
	"warden/internal/backup"
	"warden/internal/database"
	"warden/internal/eventbus"
	"warden/internal/storage"
	"warden/internal/types"
	"warden/logger"
)

func TestMain(m *testing.M) {
	logger.Replace(zap.NewNop())
	os.Exit(m.Run())
}

type fakeEngine struct {
	backup func(ctx context.Context, req backup.Request) (backup.Result, error)
}

func (f *fakeEngine) Backup(ctx context.Context, req backup.Request) (backup.Result, error) {
	return f.backup(ctx, req)
}

func (f *fakeEngine) Delete(context.Context, string) error {
	return nil
}

func succeed(_ context.Context, req backup.Request) (backup.Result, error) {
	return backup.Result{Path: req.JobUUID.String(), TotalSizeBytes: 1000, CompressedSizeBytes: 250}, nil
}

// blockUntilCancelled reports every started request on started and returns
// only when its context ends.
func blockUntilCancelled(started chan<- backup.Request) func(ctx context.Context, req backup.Request) (backup.Result, error) {
	return func(ctx context.Context, req backup.Request) (backup.Result, error) {
		started <- req
		<-ctx.Done()
		return backup.Result{}, ctx.Err()
	}
}

type testEnv struct {
	executor  *Executor
	jobs      database.JobRepository
	schedules database.ScheduleRepository
	alerts    database.AlertRepository
	catalog   *types.Catalog
}

func newTestEnv(t *testing.T, engine backup.Engine, config Config) *testEnv {
	t.Helper()
	return newTestEnvWithJobs(t, engine, config, nil)
}

// newTestEnvWithJobs lets wrap stand between the executor and the job store.
// env.jobs stays the unwrapped repository.
func newTestEnvWithJobs(t *testing.T, engine backup.Engine, config Config, wrap func(database.JobRepository) database.JobRepository) *testEnv {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "warden.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = database.Close(db)
	})

	env := &testEnv{
		jobs:      database.NewJobRepository(db),
		schedules: database.NewScheduleRepository(db),
		alerts:    database.NewAlertRepository(db),
		catalog: types.NewCatalog(
			types.Resource{Name: "orders", Engine: types.StorageEnginePostgres, Container: "pg-orders"},
			types.Resource{Name: "users", Engine: types.StorageEnginePostgres, Container: "pg-users"},
			types.Resource{Name: "billing", Engine: types.StorageEnginePostgres, Container: "pg-billing"},
		),
	}
	bus := eventbus.New()
	jobs := env.jobs
	if wrap != nil {
		jobs = wrap(jobs)
	}
	env.executor = New(Dependencies{
		Jobs:      jobs,
		Schedules: env.schedules,
		Catalog:   env.catalog,
		Engine:    engine,
		Alerts:    alert.NewEmitter(env.alerts, bus),
		Bus:       bus,
	}, config)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = env.executor.Shutdown(ctx)
	})
	return env
}

func (env *testEnv) job(t *testing.T, job *types.BackupJob) *types.BackupJob {
	t.Helper()
	stored, err := env.jobs.FindByUUID(context.Background(), job.JobUUID)
	require.NoError(t, err)
	return stored
}

func (env *testEnv) alertList(t *testing.T) []*types.BackupAlert {
	t.Helper()
	list, err := env.alerts.List(context.Background(), types.AlertFilter{Limit: 100})
	require.NoError(t, err)
	return list
}

func manual(databases ...string) SubmitParams {
	return SubmitParams{
		BackupType:      types.BackupTypeIncremental,
		Databases:       databases,
		TriggeredBy:     types.TriggerManual,
		TriggeredByUser: "ops",
	}
}

func TestExecutor_Completes(t *testing.T) {
	env := newTestEnv(t, &fakeEngine{backup: succeed}, Config{})

	job, err := env.executor.Submit(context.Background(), manual("orders", "users", "orders"))
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusPending, job.Status)
	assert.Equal(t, types.DatabaseList{"orders", "users"}, job.Databases)

	env.executor.Wait()
	stored := env.job(t, job)
	assert.Equal(t, types.JobStatusCompleted, stored.Status)
	assert.Equal(t, int64(1000), *stored.TotalSizeBytes)
	assert.Equal(t, int64(250), *stored.CompressedSizeBytes)
	assert.Equal(t, job.JobUUID.String(), stored.BackupPath)
	require.NotNil(t, stored.EndTime)
	assert.InDelta(t, stored.EndTime.Sub(*stored.StartTime).Seconds(), *stored.DurationSeconds, 0.001)
	assert.Empty(t, env.alertList(t))
}

func TestExecutor_SubmitValidation(t *testing.T) {
	env := newTestEnv(t, &fakeEngine{backup: succeed}, Config{})
	ctx := context.Background()

	tests := []struct {
		name   string
		params SubmitParams
	}{
		{"empty databases", manual()},
		{"unknown database", manual("orders", "ghost")},
		{"bad type", SubmitParams{BackupType: "weekly", Databases: []string{"orders"}, TriggeredByUser: "ops"}},
		{"missing user", SubmitParams{BackupType: types.BackupTypeFull, Databases: []string{"orders"}, TriggeredBy: types.TriggerAPI}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := env.executor.Submit(ctx, test.params)
			assert.ErrorIs(t, err, types.ErrValidation)
		})
	}

	jobs, err := env.jobs.List(ctx, types.JobFilter{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestExecutor_SameDatabaseJobsQueue(t *testing.T) {
	started := make(chan backup.Request, 4)
	release := make(chan struct{})
	engine := &fakeEngine{backup: func(ctx context.Context, req backup.Request) (backup.Result, error) {
		started <- req
		select {
		case <-release:
		case <-ctx.Done():
			return backup.Result{}, ctx.Err()
		}
		return succeed(ctx, req)
	}}
	env := newTestEnv(t, engine, Config{})
	ctx := context.Background()

	first, err := env.executor.Submit(ctx, manual("orders"))
	require.NoError(t, err)
	req := <-started
	assert.Equal(t, first.JobUUID, req.JobUUID)

	second, err := env.executor.Submit(ctx, manual("orders", "users"))
	require.NoError(t, err)
	independent, err := env.executor.Submit(ctx, manual("billing"))
	require.NoError(t, err)

	req = <-started
	assert.Equal(t, independent.JobUUID, req.JobUUID, "disjoint job runs alongside")
	assert.Equal(t, types.JobStatusPending, env.job(t, second).Status)

	release <- struct{}{}
	release <- struct{}{}
	req = <-started
	assert.Equal(t, second.JobUUID, req.JobUUID)
	close(release)
	env.executor.Wait()

	a, b := env.job(t, first), env.job(t, second)
	assert.Equal(t, types.JobStatusCompleted, a.Status)
	assert.Equal(t, types.JobStatusCompleted, b.Status)
	assert.False(t, b.StartTime.Before(*a.EndTime), "second job started before the first ended")
}

type fakeDumper struct {
	fail map[string]error
}

func (f fakeDumper) Dump(_ context.Context, resource types.Resource) (types.File, error) {
	if err, ok := f.fail[resource.Name]; ok {
		return types.File{}, err
	}
	return types.File{Content: types.NoOpReadCloser{Reader: bytes.NewBufferString("dump of " + resource.Name)}}, nil
}

func (f fakeDumper) Extension() string {
	return "sql"
}

func TestExecutor_PartialFailure(t *testing.T) {
	root := t.TempDir()
	st, err := storage.NewFileStorage(root)
	require.NoError(t, err)

	engine := &fakeEngine{}
	env := newTestEnv(t, engine, Config{})
	inner := backup.NewEngine(env.catalog, map[types.StorageEngine]backup.Dumper{
		types.StorageEnginePostgres: fakeDumper{fail: map[string]error{"users": errors.New("connection refused")}},
	}, st)
	engine.backup = inner.Backup

	job, err := env.executor.Submit(context.Background(), manual("orders", "users", "billing"))
	require.NoError(t, err)
	env.executor.Wait()

	stored := env.job(t, job)
	assert.Equal(t, types.JobStatusFailed, stored.Status)
	assert.Contains(t, stored.ErrorMessage, "partial failure")
	assert.Contains(t, stored.ErrorMessage, "users")
	assert.NotContains(t, stored.ErrorMessage, "orders:")
	assert.Empty(t, stored.BackupPath)
	assert.NotNil(t, stored.EndTime)

	_, statErr := os.Stat(filepath.Join(root, job.JobUUID.String()))
	assert.True(t, os.IsNotExist(statErr))

	alerts := env.alertList(t)
	require.Len(t, alerts, 1)
	assert.Equal(t, types.SeverityHigh, alerts[0].Severity)
	assert.Equal(t, types.AlertTypeError, alerts[0].AlertType)
}

func TestExecutor_FullBackupFailureIsCritical(t *testing.T) {
	env := newTestEnv(t, &fakeEngine{backup: func(context.Context, backup.Request) (backup.Result, error) {
		return backup.Result{}, backup.ErrStorageUnwritable
	}}, Config{})

	params := manual("orders")
	params.BackupType = types.BackupTypeFull
	job, err := env.executor.Submit(context.Background(), params)
	require.NoError(t, err)
	env.executor.Wait()

	assert.Contains(t, env.job(t, job).ErrorMessage, "transient failure")
	alerts := env.alertList(t)
	require.Len(t, alerts, 1)
	assert.Equal(t, types.SeverityCritical, alerts[0].Severity)
}

func TestExecutor_ThreeConsecutiveFailuresEscalate(t *testing.T) {
	var mu sync.Mutex
	fail := true
	env := newTestEnv(t, &fakeEngine{backup: func(ctx context.Context, req backup.Request) (backup.Result, error) {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			return backup.Result{}, errors.New("connection reset")
		}
		return succeed(ctx, req)
	}}, Config{})
	scheduleID := uint(9)

	params := SubmitParams{BackupType: types.BackupTypeIncremental, Databases: []string{"orders"}, TriggeredBy: types.TriggerSchedule, ScheduleID: &scheduleID}
	var severities []types.Severity
	for i := 0; i < 3; i++ {
		_, err := env.executor.Submit(context.Background(), params)
		require.NoError(t, err)
		env.executor.Wait()
		severities = append(severities, env.alertList(t)[0].Severity)
	}
	assert.Equal(t, []types.Severity{types.SeverityHigh, types.SeverityHigh, types.SeverityCritical}, severities)

	mu.Lock()
	fail = false
	mu.Unlock()
	_, err := env.executor.Submit(context.Background(), params)
	require.NoError(t, err)
	env.executor.Wait()

	latest := env.alertList(t)[0]
	assert.Equal(t, types.AlertTypeSuccess, latest.AlertType)
	require.NotNil(t, latest.ScheduleID)
	assert.Equal(t, scheduleID, *latest.ScheduleID)
}

func TestExecutor_ConfigurationErrorDisablesSchedule(t *testing.T) {
	env := newTestEnv(t, &fakeEngine{backup: func(context.Context, backup.Request) (backup.Result, error) {
		return backup.Result{}, backup.ErrMissingCredentials
	}}, Config{})
	ctx := context.Background()
	next := time.Now().UTC().Add(time.Hour)
	schedule := &types.BackupSchedule{
		ScheduleName:   "nightly",
		BackupType:     types.BackupTypeIncremental,
		CronExpression: "0 2 * * *",
		Databases:      types.DatabaseList{"orders"},
		IsActive:       true,
		NextRun:        &next,
	}
	require.NoError(t, env.schedules.Create(ctx, schedule))

	_, err := env.executor.Submit(ctx, SubmitParams{BackupType: types.BackupTypeIncremental, Databases: []string{"orders"}, TriggeredBy: types.TriggerSchedule, ScheduleID: &schedule.ID})
	require.NoError(t, err)
	env.executor.Wait()

	stored, err := env.schedules.FindByID(ctx, schedule.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.Nil(t, stored.NextRun)

	alerts := env.alertList(t)
	require.Len(t, alerts, 2)
	assert.Equal(t, "Schedule disabled", alerts[0].Title)
	assert.Equal(t, types.SeverityCritical, alerts[0].Severity)
}

func TestExecutor_Timeout(t *testing.T) {
	started := make(chan backup.Request, 1)
	env := newTestEnv(t, &fakeEngine{backup: blockUntilCancelled(started)}, Config{JobTimeout: 50 * time.Millisecond})

	job, err := env.executor.Submit(context.Background(), manual("orders"))
	require.NoError(t, err)
	env.executor.Wait()

	stored := env.job(t, job)
	assert.Equal(t, types.JobStatusCancelled, stored.Status)
	assert.Empty(t, stored.ErrorMessage)
	alerts := env.alertList(t)
	require.Len(t, alerts, 1)
	assert.Equal(t, types.AlertTypeWarning, alerts[0].AlertType)
	assert.Equal(t, types.SeverityLow, alerts[0].Severity)
}

func TestExecutor_CancelRunning(t *testing.T) {
	started := make(chan backup.Request, 1)
	env := newTestEnv(t, &fakeEngine{backup: blockUntilCancelled(started)}, Config{})
	ctx := context.Background()

	job, err := env.executor.Submit(ctx, manual("orders"))
	require.NoError(t, err)
	<-started

	cancelled, err := env.executor.Cancel(ctx, job.JobUUID)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.EndTime)
	assert.Empty(t, env.alertList(t))

	_, err = env.executor.Cancel(ctx, job.JobUUID)
	assert.ErrorIs(t, err, types.ErrInvalidTransition)
}

func TestExecutor_CancelPending(t *testing.T) {
	started := make(chan backup.Request, 2)
	env := newTestEnv(t, &fakeEngine{backup: blockUntilCancelled(started)}, Config{})
	ctx := context.Background()

	first, err := env.executor.Submit(ctx, manual("orders"))
	require.NoError(t, err)
	<-started
	queued, err := env.executor.Submit(ctx, manual("orders"))
	require.NoError(t, err)

	cancelled, err := env.executor.Cancel(ctx, queued.JobUUID)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.DurationSeconds)
	assert.Equal(t, 0.0, *cancelled.DurationSeconds)
	assert.Len(t, started, 0, "queued job never reached the engine")

	_, err = env.executor.Cancel(ctx, first.JobUUID)
	require.NoError(t, err)
}

func TestExecutor_Recover(t *testing.T) {
	env := newTestEnv(t, &fakeEngine{backup: succeed}, Config{})
	ctx := context.Background()

	pending := &types.BackupJob{BackupType: types.BackupTypeFull, Status: types.JobStatusPending, Databases: types.DatabaseList{"orders"}, TriggeredBy: types.TriggerManual}
	require.NoError(t, env.jobs.Create(ctx, pending))
	running := &types.BackupJob{BackupType: types.BackupTypeFull, Status: types.JobStatusPending, Databases: types.DatabaseList{"users"}, TriggeredBy: types.TriggerManual}
	require.NoError(t, env.jobs.Create(ctx, running))
	require.NoError(t, running.Start(time.Now().UTC().Add(-time.Minute)))
	require.NoError(t, env.jobs.MarkRunning(ctx, running))

	n, err := env.executor.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stored := env.job(t, running)
	assert.Equal(t, types.JobStatusFailed, stored.Status)
	assert.Equal(t, restartMessage, stored.ErrorMessage)
	assert.NotNil(t, stored.EndTime)

	// a pending job never started, it is cancelled rather than failed
	stored = env.job(t, pending)
	assert.Equal(t, types.JobStatusCancelled, stored.Status)
	assert.Empty(t, stored.ErrorMessage)
	assert.Equal(t, 0.0, *stored.DurationSeconds)
	alerts := env.alertList(t)
	require.Len(t, alerts, 1)
	assert.Equal(t, types.SeverityLow, alerts[0].Severity)

	n, err = env.executor.Recover(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExecutor_ShutdownCancelsInFlight(t *testing.T) {
	started := make(chan backup.Request, 1)
	env := newTestEnv(t, &fakeEngine{backup: blockUntilCancelled(started)}, Config{})

	job, err := env.executor.Submit(context.Background(), manual("orders"))
	require.NoError(t, err)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, env.executor.Shutdown(ctx))
	assert.Equal(t, types.JobStatusCancelled, env.job(t, job).Status)

	_, err = env.executor.Submit(context.Background(), manual("orders"))
	assert.Error(t, err)
}

// flakyJobs fails the first n calls of Finalize and MarkRunning with a lock error.
type flakyJobs struct {
	database.JobRepository
	finalizeFailures int32
	runningFailures  int32
}

var errLocked = errors.New("database is locked")

func (f *flakyJobs) Finalize(ctx context.Context, job *types.BackupJob) error {
	if atomic.AddInt32(&f.finalizeFailures, -1) >= 0 {
		return errLocked
	}
	return f.JobRepository.Finalize(ctx, job)
}

func (f *flakyJobs) MarkRunning(ctx context.Context, job *types.BackupJob) error {
	if atomic.AddInt32(&f.runningFailures, -1) >= 0 {
		return errLocked
	}
	return f.JobRepository.MarkRunning(ctx, job)
}

func TestExecutor_RetriesJobStateWrites(t *testing.T) {
	tests := []struct {
		name     string
		finalize int32
		running  int32
	}{
		{"finalize fails once", 1, 0},
		{"mark running fails twice", 0, 2},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			env := newTestEnvWithJobs(t, &fakeEngine{backup: succeed}, Config{PersistBackoff: time.Millisecond},
				func(jobs database.JobRepository) database.JobRepository {
					return &flakyJobs{JobRepository: jobs, finalizeFailures: test.finalize, runningFailures: test.running}
				})

			job, err := env.executor.Submit(context.Background(), manual("orders"))
			require.NoError(t, err)
			env.executor.Wait()

			stored := env.job(t, job)
			assert.Equal(t, types.JobStatusCompleted, stored.Status)
			assert.NotNil(t, stored.EndTime)
			assert.Zero(t, env.executor.Running())
			assert.Empty(t, env.alertList(t))
		})
	}
}

func TestExecutor_FinalizeGivesUpWithCriticalAlert(t *testing.T) {
	env := newTestEnvWithJobs(t, &fakeEngine{backup: succeed}, Config{PersistBackoff: time.Millisecond, PersistRetries: 2},
		func(jobs database.JobRepository) database.JobRepository {
			return &flakyJobs{JobRepository: jobs, finalizeFailures: 100}
		})

	job, err := env.executor.Submit(context.Background(), manual("orders"))
	require.NoError(t, err)
	env.executor.Wait()

	assert.Equal(t, types.JobStatusRunning, env.job(t, job).Status)
	alerts := env.alertList(t)
	require.Len(t, alerts, 1)
	assert.Equal(t, types.SeverityCritical, alerts[0].Severity)
	assert.Equal(t, "Job state not persisted", alerts[0].Title)
	assert.Equal(t, env.job(t, job).ID, *alerts[0].JobID)
}

func TestExecutor_MarkRunningGivesUpAndFails(t *testing.T) {
	env := newTestEnvWithJobs(t, &fakeEngine{backup: succeed}, Config{PersistBackoff: time.Millisecond, PersistRetries: 1},
		func(jobs database.JobRepository) database.JobRepository {
			return &flakyJobs{JobRepository: jobs, runningFailures: 100}
		})

	job, err := env.executor.Submit(context.Background(), manual("orders"))
	require.NoError(t, err)
	env.executor.Wait()

	stored := env.job(t, job)
	assert.Equal(t, types.JobStatusFailed, stored.Status)
	assert.Contains(t, stored.ErrorMessage, "database is locked")
	assert.NotNil(t, stored.EndTime)
}
