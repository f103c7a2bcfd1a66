package summary

import (
	"context"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"time"
	"warden/internal/database"
	"warden/internal/storage"
	"warden/internal/types"
	"warden/logger"
)

const (
	DefaultFailureWeight = 0.7
	DefaultStorageWeight = 0.3
	DefaultRecentJobs    = 20
)

type (
	Config struct {
		FailureWeight float64 `yaml:"failure_weight" validate:"gte=0"`
		StorageWeight float64 `yaml:"storage_weight" validate:"gte=0"`
		// RecentJobs is how many of the latest terminal jobs feed the failure rate.
		RecentJobs int `yaml:"recent_jobs" validate:"gte=0"`
	}

	Dependencies struct {
		Jobs      database.JobRepository
		Schedules database.ScheduleRepository
		Alerts    database.AlertRepository
		Storage   storage.Storage
	}

	Aggregator struct {
		deps   Dependencies
		config Config
		now    func() time.Time
	}
)

func (c Config) withDefaults() Config {
	if c.FailureWeight+c.StorageWeight <= 0 {
		c.FailureWeight = DefaultFailureWeight
		c.StorageWeight = DefaultStorageWeight
	}
	if c.RecentJobs <= 0 {
		c.RecentJobs = DefaultRecentJobs
	}
	return c
}

func New(deps Dependencies, config Config) *Aggregator {
	return &Aggregator{deps: deps, config: config.withDefaults(), now: time.Now}
}

// Summary builds the dashboard rollup. windowHours > 0 restricts job counts
// and the average duration to jobs created inside the window.
func (a *Aggregator) Summary(ctx context.Context, windowHours int) (*types.DashboardSummary, error) {
	if windowHours < 0 {
		return nil, types.Invalid("window_hours must not be negative")
	}
	now := a.now().UTC()
	var since *time.Time
	if windowHours > 0 {
		since = lo.ToPtr(now.Add(-time.Duration(windowHours) * time.Hour))
	}

	counts, err := a.deps.Jobs.CountByStatus(ctx, since)
	if err != nil {
		return nil, err
	}
	avg, err := a.deps.Jobs.AverageDuration(ctx, since)
	if err != nil {
		return nil, err
	}
	lastCompleted, err := a.deps.Jobs.LastCompleted(ctx)
	if err != nil {
		return nil, err
	}
	nextScheduled, err := a.deps.Schedules.NextScheduled(ctx)
	if err != nil {
		return nil, err
	}
	activeSchedules, err := a.deps.Schedules.CountActive(ctx)
	if err != nil {
		return nil, err
	}
	unresolved, err := a.deps.Alerts.CountUnresolved(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := a.deps.Jobs.RecentTerminal(ctx, a.config.RecentJobs)
	if err != nil {
		return nil, err
	}

	var usage storage.Usage
	if a.deps.Storage != nil {
		usage, err = a.deps.Storage.Usage(ctx)
		if err != nil {
			logger.Warn("storage usage unavailable for summary", zap.Error(err))
			usage = storage.Usage{}
		}
	}

	score := HealthScore(recent, usage.Percent(), a.config)
	return &types.DashboardSummary{
		TotalJobs:              counts.Total(),
		SuccessfulJobs:         counts[types.JobStatusCompleted],
		FailedJobs:             counts[types.JobStatusFailed],
		RunningJobs:            counts[types.JobStatusRunning],
		PendingJobs:            counts[types.JobStatusPending],
		CancelledJobs:          counts[types.JobStatusCancelled],
		WindowHours:            windowHours,
		StorageUsedBytes:       usage.UsedBytes,
		StorageTotalBytes:      usage.TotalBytes,
		StorageUsagePercent:    usage.Percent(),
		AverageDurationSeconds: avg,
		LastCompletedAt:        lastCompleted,
		NextScheduledAt:        nextScheduled,
		ActiveSchedules:        activeSchedules,
		UnresolvedAlerts:       unresolved,
		HealthScore:            score,
		HealthStatus:           Band(score),
		GeneratedAt:            now,
	}, nil
}

// HealthScore blends the failure rate of recent terminal jobs with storage
// headroom into a 0..100 score.
func HealthScore(recent []*types.BackupJob, usagePercent float64, config Config) float64 {
	config = config.withDefaults()

	failureRate := 0.0
	if len(recent) > 0 {
		failed := lo.CountBy(recent, func(job *types.BackupJob) bool {
			return job.Status == types.JobStatusFailed
		})
		failureRate = float64(failed) / float64(len(recent))
	}
	headroom := 1 - clamp(usagePercent, 0, 100)/100

	score := 100 * (config.FailureWeight*(1-failureRate) + config.StorageWeight*headroom) /
		(config.FailureWeight + config.StorageWeight)
	return clamp(score, 0, 100)
}

// Band names the health bands operators see.
func Band(score float64) string {
	switch {
	case score >= 80:
		return "healthy"
	case score >= 50:
		return "degraded"
	}
	return "critical"
}

func clamp(v, low, high float64) float64 {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}
