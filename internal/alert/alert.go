package alert

import (
	"context"
	"fmt"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"time"
	"warden/internal/database"
	"warden/internal/eventbus"
	"warden/internal/metrics"
	"warden/internal/storage"
	"warden/internal/types"
	"warden/logger"
)

// Identifier is the event bus identifier alerts are published under.
const Identifier = "alerts"

const (
	// ConsecutiveFailureThreshold is the run of failed jobs of one schedule
	// that escalates a failure to critical.
	ConsecutiveFailureThreshold = 3
	DefaultStorageThreshold     = 85.0

	TitleStorageUsage = "Backup storage usage above threshold"
)

type (
	Option func(a *types.BackupAlert)

	Emitter struct {
		alerts database.AlertRepository
		bus    eventbus.Bus
		now    func() time.Time
	}
)

func WithJob(id uint) Option {
	return func(a *types.BackupAlert) {
		a.JobID = &id
	}
}

func WithSchedule(id uint) Option {
	return func(a *types.BackupAlert) {
		a.ScheduleID = &id
	}
}

func NewEmitter(alerts database.AlertRepository, bus eventbus.Bus) *Emitter {
	return &Emitter{alerts: alerts, bus: bus, now: time.Now}
}

// Emit persists an alert and then publishes it.
func (e *Emitter) Emit(ctx context.Context, alertType types.AlertType, severity types.Severity, title, message, source string, opts ...Option) (*types.BackupAlert, error) {
	if !alertType.Valid() {
		return nil, types.Invalid("unknown alert type: %s", alertType)
	}
	if !severity.Valid() {
		return nil, types.Invalid("unknown severity: %s", severity)
	}

	a := &types.BackupAlert{
		AlertType: alertType,
		Severity:  severity,
		Title:     title,
		Message:   message,
		Source:    source,
		CreatedAt: e.now().UTC(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if err := e.alerts.Create(ctx, a); err != nil {
		return nil, errors.Wrap(err, "failed to persist alert")
	}

	metrics.AlertRaised(severity)
	e.bus.BroadcastWithData(Identifier, eventbus.Alert, title, a)
	logger.Info("alert raised",
		zap.Uint("id", a.ID),
		zap.String("severity", string(severity)),
		zap.String("source", source),
		zap.String("title", title))
	return a, nil
}

func (e *Emitter) List(ctx context.Context, filter types.AlertFilter) ([]*types.BackupAlert, error) {
	return e.alerts.List(ctx, filter.Normalize())
}

func (e *Emitter) Acknowledge(ctx context.Context, id uint) (*types.BackupAlert, error) {
	return e.alerts.MarkRead(ctx, id)
}

func (e *Emitter) Resolve(ctx context.Context, id uint) (*types.BackupAlert, error) {
	return e.alerts.Resolve(ctx, id, e.now().UTC())
}

func (e *Emitter) HasUnresolved(ctx context.Context, source, title string) (bool, error) {
	return e.alerts.HasUnresolved(ctx, source, title)
}

// CheckStorage raises a medium warning when usage is above threshold, at most
// once while an earlier storage alert is unresolved. It returns nil when no
// alert was raised.
func (e *Emitter) CheckStorage(ctx context.Context, usage storage.Usage, threshold float64) (*types.BackupAlert, error) {
	if threshold <= 0 {
		threshold = DefaultStorageThreshold
	}
	percent := usage.Percent()
	if percent <= threshold {
		return nil, nil
	}

	exists, err := e.alerts.HasUnresolved(ctx, types.SourceStorage, TitleStorageUsage)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil
	}

	msg := fmt.Sprintf("backup storage is %.1f%% full (%d of %d bytes), threshold is %.0f%%",
		percent, usage.UsedBytes, usage.TotalBytes, threshold)
	return e.Emit(ctx, types.AlertTypeWarning, types.SeverityMedium, TitleStorageUsage, msg, types.SourceStorage)
}

// FailureSeverity is critical for full backups and for a schedule that has
// failed ConsecutiveFailureThreshold times in a row, high otherwise.
func FailureSeverity(backupType types.BackupType, consecutiveFailures int) types.Severity {
	if backupType == types.BackupTypeFull || consecutiveFailures >= ConsecutiveFailureThreshold {
		return types.SeverityCritical
	}
	return types.SeverityHigh
}

// ConsecutiveFailures counts failed jobs from the head of a newest first list.
func ConsecutiveFailures(recent []*types.BackupJob) int {
	n := 0
	for _, job := range recent {
		if job.Status != types.JobStatusFailed {
			break
		}
		n++
	}
	return n
}
