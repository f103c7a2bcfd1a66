package types

import "time"

type (
	DashboardSummary struct {
		TotalJobs              int64      `json:"total_jobs"`
		SuccessfulJobs         int64      `json:"successful_jobs"`
		FailedJobs             int64      `json:"failed_jobs"`
		RunningJobs            int64      `json:"running_jobs"`
		PendingJobs            int64      `json:"pending_jobs"`
		CancelledJobs          int64      `json:"cancelled_jobs"`
		WindowHours            int        `json:"window_hours,omitempty"`
		StorageUsedBytes       int64      `json:"storage_used_bytes"`
		StorageTotalBytes      int64      `json:"storage_total_bytes"`
		StorageUsagePercent    float64    `json:"storage_usage_percent"`
		AverageDurationSeconds float64    `json:"average_duration_seconds"`
		LastCompletedAt        *time.Time `json:"last_completed_at"`
		NextScheduledAt        *time.Time `json:"next_scheduled_at"`
		ActiveSchedules        int64      `json:"active_schedules"`
		UnresolvedAlerts       int64      `json:"unresolved_alerts"`
		HealthScore            float64    `json:"health_score"`
		HealthStatus           string     `json:"health_status"`
		GeneratedAt            time.Time  `json:"generated_at"`
	}

	// StatusCounts maps a job status to the number of jobs in it.
	StatusCounts map[JobStatus]int64
)

func (c StatusCounts) Total() int64 {
	var total int64
	for _, n := range c {
		total += n
	}
	return total
}
