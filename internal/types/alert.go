package types

import "time"

type (
	AlertType string
	Severity  string

	BackupAlert struct {
		ID         uint       `gorm:"primaryKey" json:"id"`
		AlertType  AlertType  `gorm:"size:20;not null" json:"alert_type"`
		Severity   Severity   `gorm:"size:20;index;not null" json:"severity"`
		Title      string     `gorm:"size:255;not null" json:"title"`
		Message    string     `gorm:"type:text" json:"message"`
		Source     string     `gorm:"size:64;not null" json:"source"`
		JobID      *uint      `gorm:"index" json:"job_id,omitempty"`
		ScheduleID *uint      `gorm:"index" json:"schedule_id,omitempty"`
		IsRead     bool       `gorm:"not null" json:"is_read"`
		IsResolved bool       `gorm:"index;not null" json:"is_resolved"`
		ResolvedAt *time.Time `json:"resolved_at,omitempty"`
		CreatedAt  time.Time  `json:"created_at"`
	}
)

const (
	AlertTypeError   AlertType = "error"
	AlertTypeWarning AlertType = "warning"
	AlertTypeInfo    AlertType = "info"
	AlertTypeSuccess AlertType = "success"
)

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Alert sources.
const (
	SourceScheduler = "scheduler"
	SourceExecutor  = "executor"
	SourceRetention = "retention"
	SourceStorage   = "storage"
)

func (t AlertType) Valid() bool {
	switch t {
	case AlertTypeError, AlertTypeWarning, AlertTypeInfo, AlertTypeSuccess:
		return true
	}
	return false
}

// Rank orders severities, low = 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	}
	return 0
}

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}
