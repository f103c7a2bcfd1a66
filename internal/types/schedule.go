package types

import "time"

type (
	BackupSchedule struct {
		ID             uint         `gorm:"primaryKey" json:"id"`
		ScheduleName   string       `gorm:"size:255;uniqueIndex;not null" json:"schedule_name"`
		BackupType     BackupType   `gorm:"size:20;not null" json:"backup_type"`
		CronExpression string       `gorm:"size:120;not null" json:"cron_expression"`
		Databases      DatabaseList `gorm:"type:text;not null" json:"databases"`
		IsActive       bool         `gorm:"index;not null" json:"is_active"`
		RetentionDays  int          `gorm:"not null" json:"retention_days"`
		NextRun        *time.Time   `gorm:"index" json:"next_run"`
		LastRun        *time.Time   `json:"last_run"`
		CreatedAt      time.Time    `json:"created_at"`
		UpdatedAt      time.Time    `json:"updated_at"`
	}
)

// IsDue reports whether an active schedule should fire at now.
func (s *BackupSchedule) IsDue(now time.Time) bool {
	return s.IsActive && s.NextRun != nil && !s.NextRun.After(now)
}

// Disable deactivates the schedule and clears next_run.
func (s *BackupSchedule) Disable() {
	s.IsActive = false
	s.NextRun = nil
}
