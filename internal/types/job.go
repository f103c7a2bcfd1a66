package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"github.com/google/uuid"
	"time"
)

type (
	BackupType string
	JobStatus  string
	Trigger    string

	// DatabaseList is an ordered set of resource names stored as a JSON column.
	DatabaseList []string

	BackupJob struct {
		ID                  uint         `gorm:"primaryKey" json:"id"`
		JobUUID             uuid.UUID    `gorm:"uniqueIndex;not null" json:"job_uuid"`
		BackupType          BackupType   `gorm:"size:20;not null" json:"backup_type"`
		Status              JobStatus    `gorm:"size:20;index;not null" json:"status"`
		StartTime           *time.Time   `json:"start_time"`
		EndTime             *time.Time   `json:"end_time"`
		DurationSeconds     *float64     `json:"duration_seconds"`
		TotalSizeBytes      *int64       `json:"total_size_bytes"`
		CompressedSizeBytes *int64       `json:"compressed_size_bytes"`
		Databases           DatabaseList `gorm:"type:text;not null" json:"databases"`
		BackupPath          string       `json:"backup_path,omitempty"`
		TriggeredBy         Trigger      `gorm:"size:20;not null" json:"triggered_by"`
		TriggeredByUser     string       `json:"triggered_by_user,omitempty"`
		ScheduleID          *uint        `gorm:"index" json:"schedule_id,omitempty"`
		Notes               string       `json:"notes,omitempty"`
		ErrorMessage        string       `gorm:"type:text" json:"error_message,omitempty"`
		RetentionExpired    bool         `gorm:"not null" json:"retention_expired"`
		ExpiredAt           *time.Time   `json:"expired_at,omitempty"`
		CreatedAt           time.Time    `json:"created_at"`
		UpdatedAt           time.Time    `json:"-"`
	}
)

const (
	BackupTypeFull         BackupType = "full"
	BackupTypeIncremental  BackupType = "incremental"
	BackupTypeDifferential BackupType = "differential"
	BackupTypeManual       BackupType = "manual"
)

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

const (
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
	TriggerAPI      Trigger = "api"
)

var transitions = map[JobStatus][]JobStatus{
	JobStatusPending: {JobStatusRunning, JobStatusCancelled},
	JobStatusRunning: {JobStatusCompleted, JobStatusFailed, JobStatusCancelled},
}

func (t BackupType) Valid() bool {
	switch t {
	case BackupTypeFull, BackupTypeIncremental, BackupTypeDifferential, BackupTypeManual:
		return true
	}
	return false
}

func (t Trigger) Valid() bool {
	switch t {
	case TriggerSchedule, TriggerManual, TriggerAPI:
		return true
	}
	return false
}

func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// CanTransition reports whether the job state machine allows s -> to.
func (s JobStatus) CanTransition(to JobStatus) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s JobStatus) String() string {
	return string(s)
}

func (j *BackupJob) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// Start moves a pending job to running.
func (j *BackupJob) Start(at time.Time) error {
	if !j.Status.CanTransition(JobStatusRunning) {
		return InvalidTransition(j.Status, JobStatusRunning)
	}
	j.Status = JobStatusRunning
	j.StartTime = &at
	return nil
}

// Finish moves the job into a terminal status and derives end_time and
// duration_seconds. A job cancelled before it ever ran gets start_time = at.
func (j *BackupJob) Finish(status JobStatus, at time.Time) error {
	if !status.IsTerminal() || !j.Status.CanTransition(status) {
		return InvalidTransition(j.Status, status)
	}
	if j.StartTime == nil {
		j.StartTime = &at
	}
	j.Status = status
	j.EndTime = &at
	duration := at.Sub(*j.StartTime).Seconds()
	j.DurationSeconds = &duration
	return nil
}

func (d DatabaseList) Value() (driver.Value, error) {
	if d == nil {
		d = DatabaseList{}
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (d *DatabaseList) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	case nil:
		*d = DatabaseList{}
		return nil
	}
	return errors.New("failed to scan DatabaseList: unsupported column type")
}

// Overlaps reports whether d and other share at least one resource.
func (d DatabaseList) Overlaps(other DatabaseList) bool {
	seen := make(map[string]struct{}, len(d))
	for _, name := range d {
		seen[name] = struct{}{}
	}
	for _, name := range other {
		if _, ok := seen[name]; ok {
			return true
		}
	}
	return false
}
