package metrics

import (
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"testing"
	"warden/internal/types"
)

func TestJobMetrics(t *testing.T) {
	startRunning := testutil.ToFloat64(jobsRunning)
	startFailed := testutil.ToFloat64(jobsTotal.WithLabelValues("failed"))

	JobStarted()
	assert.Equal(t, startRunning+1, testutil.ToFloat64(jobsRunning))

	d := 12.5
	JobFinished(&types.BackupJob{Status: types.JobStatusFailed, DurationSeconds: &d}, true)
	assert.Equal(t, startRunning, testutil.ToFloat64(jobsRunning))
	assert.Equal(t, startFailed+1, testutil.ToFloat64(jobsTotal.WithLabelValues("failed")))

	JobFinished(&types.BackupJob{Status: types.JobStatusCancelled}, false)
	assert.Equal(t, startRunning, testutil.ToFloat64(jobsRunning))
}

func TestAlertAndTickMetrics(t *testing.T) {
	before := testutil.ToFloat64(alertsTotal.WithLabelValues("critical"))
	AlertRaised(types.SeverityCritical)
	assert.Equal(t, before+1, testutil.ToFloat64(alertsTotal.WithLabelValues("critical")))

	ticks := testutil.ToFloat64(schedulerTicks)
	SchedulerTick()
	assert.Equal(t, ticks+1, testutil.ToFloat64(schedulerTicks))
}
