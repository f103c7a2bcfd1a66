package database

import (
	"context"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"time"
	"warden/internal/types"
)

type alertRepository struct {
	db *gorm.DB
}

func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{db: db}
}

func (a alertRepository) Create(ctx context.Context, alert *types.BackupAlert) error {
	return a.db.WithContext(ctx).Create(alert).Error
}

func (a alertRepository) FindByID(ctx context.Context, id uint) (*types.BackupAlert, error) {
	alert := &types.BackupAlert{}
	err := a.db.WithContext(ctx).Where("id = ?", id).First(alert).Error
	if err != nil {
		return nil, notFound(err, "alert %d not found", id)
	}
	return alert, nil
}

func (a alertRepository) List(ctx context.Context, filter types.AlertFilter) ([]*types.BackupAlert, error) {
	result := make([]*types.BackupAlert, 0)
	query := a.db.WithContext(ctx)
	if filter.UnresolvedOnly {
		query = query.Where("is_resolved = ?", false)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	err := query.Order("id DESC").Find(&result).Error
	return result, err
}

func (a alertRepository) MarkRead(ctx context.Context, id uint) (*types.BackupAlert, error) {
	return a.update(ctx, id, map[string]interface{}{"is_read": true})
}

func (a alertRepository) Resolve(ctx context.Context, id uint, at time.Time) (*types.BackupAlert, error) {
	alert, err := a.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert.IsResolved {
		return alert, nil
	}
	return a.update(ctx, id, map[string]interface{}{
		"is_read":     true,
		"is_resolved": true,
		"resolved_at": at,
	})
}

func (a alertRepository) CountUnresolved(ctx context.Context) (int64, error) {
	var n int64
	err := a.db.WithContext(ctx).Model(&types.BackupAlert{}).Where("is_resolved = ?", false).Count(&n).Error
	return n, err
}

func (a alertRepository) HasUnresolved(ctx context.Context, source, title string) (bool, error) {
	var n int64
	err := a.db.WithContext(ctx).Model(&types.BackupAlert{}).
		Where("is_resolved = ? AND source = ? AND title = ?", false, source, title).
		Count(&n).Error
	return n > 0, err
}

func (a alertRepository) update(ctx context.Context, id uint, fields map[string]interface{}) (*types.BackupAlert, error) {
	res := a.db.WithContext(ctx).Model(&types.BackupAlert{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "failed to update alert")
	}
	if res.RowsAffected == 0 {
		return nil, types.NotFound("alert %d not found", id)
	}
	return a.FindByID(ctx, id)
}
