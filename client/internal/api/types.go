package api

import (
	"github.com/google/uuid"
	"time"
)

type (
	Job struct {
		ID                  uint       `json:"id"`
		JobUUID             uuid.UUID  `json:"job_uuid"`
		BackupType          string     `json:"backup_type"`
		Status              string     `json:"status"`
		Databases           []string   `json:"databases"`
		StartTime           *time.Time `json:"start_time"`
		EndTime             *time.Time `json:"end_time"`
		DurationSeconds     *float64   `json:"duration_seconds"`
		TotalSizeBytes      *int64     `json:"total_size_bytes"`
		CompressedSizeBytes *int64     `json:"compressed_size_bytes"`
		BackupPath          string     `json:"backup_path"`
		ErrorMessage        string     `json:"error_message"`
		TriggeredBy         string     `json:"triggered_by"`
		TriggeredByUser     string     `json:"triggered_by_user"`
		ScheduleID          *uint      `json:"schedule_id"`
		Notes               string     `json:"notes"`
		CreatedAt           time.Time  `json:"created_at"`
	}

	Schedule struct {
		ID             uint       `json:"id"`
		ScheduleName   string     `json:"schedule_name"`
		BackupType     string     `json:"backup_type"`
		CronExpression string     `json:"cron_expression"`
		Databases      []string   `json:"databases"`
		IsActive       bool       `json:"is_active"`
		RetentionDays  int        `json:"retention_days"`
		NextRun        *time.Time `json:"next_run"`
		LastRun        *time.Time `json:"last_run"`
	}

	Alert struct {
		ID         uint      `json:"id"`
		AlertType  string    `json:"alert_type"`
		Severity   string    `json:"severity"`
		Title      string    `json:"title"`
		Message    string    `json:"message"`
		Source     string    `json:"source"`
		IsRead     bool      `json:"is_read"`
		IsResolved bool      `json:"is_resolved"`
		CreatedAt  time.Time `json:"created_at"`
	}

	Summary struct {
		TotalJobs              int64      `json:"total_jobs"`
		SuccessfulJobs         int64      `json:"successful_jobs"`
		FailedJobs             int64      `json:"failed_jobs"`
		RunningJobs            int64      `json:"running_jobs"`
		PendingJobs            int64      `json:"pending_jobs"`
		CancelledJobs          int64      `json:"cancelled_jobs"`
		WindowHours            int        `json:"window_hours"`
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
	}

	Event struct {
		Type       string    `json:"type"`
		Identifier string    `json:"identifier"`
		Message    string    `json:"message"`
		Data       *Job      `json:"data,omitempty"`
		Time       time.Time `json:"time"`
	}

	RunJobParams struct {
		BackupType      string   `json:"backup_type"`
		Databases       []string `json:"databases"`
		Notes           string   `json:"notes,omitempty"`
		TriggeredBy     string   `json:"triggered_by"`
		TriggeredByUser string   `json:"triggered_by_user"`
	}

	CreateScheduleParams struct {
		Name           string   `json:"name" validate:"required"`
		BackupType     string   `json:"backup_type" validate:"required,oneof=full incremental differential manual"`
		CronExpression string   `json:"cron_expression" validate:"required"`
		Databases      []string `json:"databases" validate:"required,min=1"`
		RetentionDays  int      `json:"retention_days" validate:"gte=0"`
		IsActive       *bool    `json:"is_active,omitempty"`
	}

	PatchScheduleParams struct {
		IsActive *bool `json:"is_active,omitempty"`
	}
)

// IsTerminal reports whether the job can no longer change.
func (j Job) IsTerminal() bool {
	switch j.Status {
	case "completed", "failed", "cancelled":
		return true
	}
	return false
}
