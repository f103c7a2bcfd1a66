package database

import (
	"context"
	"database/sql"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"time"
	"warden/internal/types"
)

var unfinished = []types.JobStatus{types.JobStatusPending, types.JobStatusRunning}

type jobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (j jobRepository) Create(ctx context.Context, job *types.BackupJob) error {
	if job.JobUUID == uuid.Nil {
		job.JobUUID = uuid.New()
	}
	return j.db.WithContext(ctx).Create(job).Error
}

func (j jobRepository) MarkRunning(ctx context.Context, job *types.BackupJob) error {
	res := j.db.WithContext(ctx).
		Model(&types.BackupJob{}).
		Where("id = ? AND status = ?", job.ID, types.JobStatusPending).
		Updates(map[string]interface{}{
			"status":     types.JobStatusRunning,
			"start_time": job.StartTime,
		})
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to mark job running")
	}
	if res.RowsAffected == 0 {
		return types.InvalidTransition(types.JobStatusPending, types.JobStatusRunning)
	}
	return nil
}

func (j jobRepository) Finalize(ctx context.Context, job *types.BackupJob) error {
	if !job.Status.IsTerminal() {
		return errors.Errorf("finalize requires a terminal status, got %s", job.Status)
	}

	return j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&types.BackupJob{}).
			Where("id = ? AND status IN ?", job.ID, unfinished).
			Updates(map[string]interface{}{
				"status":                job.Status,
				"start_time":            job.StartTime,
				"end_time":              job.EndTime,
				"duration_seconds":      job.DurationSeconds,
				"total_size_bytes":      job.TotalSizeBytes,
				"compressed_size_bytes": job.CompressedSizeBytes,
				"backup_path":           job.BackupPath,
				"error_message":         job.ErrorMessage,
			})
		if res.Error != nil {
			return errors.Wrap(res.Error, "failed to finalize job")
		}
		if res.RowsAffected == 0 {
			return types.InvalidTransition("terminal", job.Status)
		}
		return nil
	})
}

func (j jobRepository) FindByID(ctx context.Context, id uint) (*types.BackupJob, error) {
	job := &types.BackupJob{}
	err := j.db.WithContext(ctx).Where("id = ?", id).First(job).Error
	if err != nil {
		return nil, notFound(err, "job %d not found", id)
	}
	return job, nil
}

func (j jobRepository) FindByUUID(ctx context.Context, jobUUID uuid.UUID) (*types.BackupJob, error) {
	job := &types.BackupJob{}
	err := j.db.WithContext(ctx).Where("job_uuid = ?", jobUUID).First(job).Error
	if err != nil {
		return nil, notFound(err, "job %s not found", jobUUID)
	}
	return job, nil
}

func (j jobRepository) List(ctx context.Context, filter types.JobFilter) ([]*types.BackupJob, error) {
	result := make([]*types.BackupJob, 0)
	query := j.db.WithContext(ctx)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	err := query.Order("id DESC").Find(&result).Error
	return result, err
}

func (j jobRepository) FindActiveBySchedule(ctx context.Context, scheduleID uint) ([]*types.BackupJob, error) {
	result := make([]*types.BackupJob, 0)
	err := j.db.WithContext(ctx).
		Where("schedule_id = ? AND triggered_by = ? AND status IN ?", scheduleID, types.TriggerSchedule, unfinished).
		Find(&result).Error
	return result, err
}

func (j jobRepository) FindUnfinished(ctx context.Context) ([]*types.BackupJob, error) {
	result := make([]*types.BackupJob, 0)
	err := j.db.WithContext(ctx).Where("status IN ?", unfinished).Order("id ASC").Find(&result).Error
	return result, err
}

func (j jobRepository) RecentTerminalBySchedule(ctx context.Context, scheduleID uint, limit int) ([]*types.BackupJob, error) {
	result := make([]*types.BackupJob, 0)
	err := j.db.WithContext(ctx).
		Where("schedule_id = ? AND status NOT IN ?", scheduleID, unfinished).
		Order("end_time DESC, id DESC").
		Limit(limit).
		Find(&result).Error
	return result, err
}

func (j jobRepository) RecentTerminal(ctx context.Context, limit int) ([]*types.BackupJob, error) {
	result := make([]*types.BackupJob, 0)
	err := j.db.WithContext(ctx).
		Where("status NOT IN ?", unfinished).
		Order("end_time DESC, id DESC").
		Limit(limit).
		Find(&result).Error
	return result, err
}

func (j jobRepository) FindExpirable(ctx context.Context, scheduleID uint, before time.Time) ([]*types.BackupJob, error) {
	result := make([]*types.BackupJob, 0)
	err := j.db.WithContext(ctx).
		Where("schedule_id = ? AND status = ? AND retention_expired = ? AND end_time < ?",
			scheduleID, types.JobStatusCompleted, false, before).
		Order("end_time ASC").
		Find(&result).Error
	return result, err
}

func (j jobRepository) MarkExpired(ctx context.Context, id uint, at time.Time) error {
	return j.db.WithContext(ctx).
		Model(&types.BackupJob{}).
		Where("id = ? AND retention_expired = ?", id, false).
		Updates(map[string]interface{}{
			"retention_expired": true,
			"expired_at":        at,
		}).Error
}

func (j jobRepository) CountByStatus(ctx context.Context, since *time.Time) (types.StatusCounts, error) {
	var rows []struct {
		Status types.JobStatus
		N      int64
	}
	query := j.db.WithContext(ctx).Model(&types.BackupJob{}).Select("status, count(*) AS n")
	if since != nil {
		query = query.Where("created_at >= ?", *since)
	}
	if err := query.Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(types.StatusCounts, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}

func (j jobRepository) AverageDuration(ctx context.Context, since *time.Time) (float64, error) {
	var avg sql.NullFloat64
	query := j.db.WithContext(ctx).Model(&types.BackupJob{}).
		Select("AVG(duration_seconds)").
		Where("status = ?", types.JobStatusCompleted)
	if since != nil {
		query = query.Where("created_at >= ?", *since)
	}
	if err := query.Row().Scan(&avg); err != nil {
		return 0, err
	}
	return avg.Float64, nil
}

func (j jobRepository) LastCompleted(ctx context.Context) (*time.Time, error) {
	job := &types.BackupJob{}
	err := j.db.WithContext(ctx).
		Where("status = ?", types.JobStatusCompleted).
		Order("end_time DESC").
		Take(job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job.EndTime, nil
}
