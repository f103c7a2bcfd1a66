package database

import (
	"context"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"strings"
	"time"
	"warden/internal/types"
)

type scheduleRepository struct {
	db *gorm.DB
}

func NewScheduleRepository(db *gorm.DB) ScheduleRepository {
	return &scheduleRepository{db: db}
}

func (s scheduleRepository) Create(ctx context.Context, schedule *types.BackupSchedule) error {
	err := s.db.WithContext(ctx).Create(schedule).Error
	if isUniqueViolation(err) {
		return types.Invalid("schedule %q already exists", schedule.ScheduleName)
	}
	return err
}

func (s scheduleRepository) Save(ctx context.Context, schedule *types.BackupSchedule) error {
	err := s.db.WithContext(ctx).Save(schedule).Error
	if isUniqueViolation(err) {
		return types.Invalid("schedule %q already exists", schedule.ScheduleName)
	}
	return err
}

func (s scheduleRepository) Advance(ctx context.Context, id uint, expression string, lastRun, nextRun time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&types.BackupSchedule{}).
		Where("id = ? AND is_active = ? AND cron_expression = ?", id, true, expression).
		Updates(map[string]interface{}{
			"last_run": lastRun,
			"next_run": nextRun,
		})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "failed to advance schedule")
	}
	return res.RowsAffected > 0, nil
}

func (s scheduleRepository) Deactivate(ctx context.Context, id uint) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&types.BackupSchedule{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]interface{}{
			"is_active": false,
			"next_run":  nil,
		})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "failed to deactivate schedule")
	}
	return res.RowsAffected > 0, nil
}

func (s scheduleRepository) FindByID(ctx context.Context, id uint) (*types.BackupSchedule, error) {
	schedule := &types.BackupSchedule{}
	err := s.db.WithContext(ctx).Where("id = ?", id).First(schedule).Error
	if err != nil {
		return nil, notFound(err, "schedule %d not found", id)
	}
	return schedule, nil
}

func (s scheduleRepository) FindAll(ctx context.Context, activeOnly bool) ([]*types.BackupSchedule, error) {
	result := make([]*types.BackupSchedule, 0)
	query := s.db.WithContext(ctx)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("id ASC").Find(&result).Error
	return result, err
}

func (s scheduleRepository) FindDue(ctx context.Context, now time.Time) ([]*types.BackupSchedule, error) {
	result := make([]*types.BackupSchedule, 0)
	err := s.db.WithContext(ctx).
		Where("is_active = ? AND next_run IS NOT NULL AND next_run <= ?", true, now).
		Order("next_run ASC, id ASC").
		Find(&result).Error
	return result, err
}

func (s scheduleRepository) FindWithRetention(ctx context.Context) ([]*types.BackupSchedule, error) {
	result := make([]*types.BackupSchedule, 0)
	err := s.db.WithContext(ctx).Where("retention_days > 0").Order("id ASC").Find(&result).Error
	return result, err
}

func (s scheduleRepository) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&types.BackupSchedule{}, id)
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to delete schedule")
	}
	if res.RowsAffected == 0 {
		return types.NotFound("schedule %d not found", id)
	}
	return nil
}

func (s scheduleRepository) NextScheduled(ctx context.Context) (*time.Time, error) {
	schedule := &types.BackupSchedule{}
	err := s.db.WithContext(ctx).
		Where("is_active = ? AND next_run IS NOT NULL", true).
		Order("next_run ASC").
		Take(schedule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return schedule.NextRun, nil
}

func (s scheduleRepository) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&types.BackupSchedule{}).Where("is_active = ?", true).Count(&n).Error
	return n, err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
