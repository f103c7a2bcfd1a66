package types

type (
	CreateScheduleParams struct {
		Name           string     `json:"name" validate:"required,max=255"`
		BackupType     BackupType `json:"backup_type" validate:"required,oneof=full incremental differential manual"`
		CronExpression string     `json:"cron_expression" validate:"required"`
		Databases      []string   `json:"databases" validate:"required,min=1,dive,required"`
		RetentionDays  int        `json:"retention_days" validate:"gte=0"`
		IsActive       *bool      `json:"is_active"`
	}

	PatchScheduleParams struct {
		Name           *string     `json:"name" validate:"omitempty,min=1,max=255"`
		BackupType     *BackupType `json:"backup_type" validate:"omitempty,oneof=full incremental differential manual"`
		CronExpression *string     `json:"cron_expression" validate:"omitempty,min=1"`
		Databases      []string    `json:"databases" validate:"omitempty,min=1,dive,required"`
		RetentionDays  *int        `json:"retention_days" validate:"omitempty,gte=0"`
		IsActive       *bool       `json:"is_active"`
	}

	ExecuteJobParams struct {
		BackupType      BackupType `json:"backup_type" validate:"required,oneof=full incremental differential manual"`
		Databases       []string   `json:"databases" validate:"required,min=1,dive,required"`
		Notes           string     `json:"notes"`
		TriggeredBy     Trigger    `json:"triggered_by" validate:"omitempty,oneof=manual api"`
		TriggeredByUser string     `json:"triggered_by_user" validate:"required"`
	}

	JobFilter struct {
		Limit  int
		Offset int
		Status JobStatus
	}

	AlertFilter struct {
		UnresolvedOnly bool
		Limit          int
	}
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Normalize clamps paging parameters and rejects unknown status filters.
func (f JobFilter) Normalize() (JobFilter, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Status != "" && !f.Status.Valid() {
		return f, Invalid("unknown job status: %s", f.Status)
	}
	return f, nil
}

func (f AlertFilter) Normalize() AlertFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	return f
}
