package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"strconv"
	"warden/internal/types"
)

var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_jobs_total",
		Help: "Backup jobs that reached a terminal status",
	}, []string{"status"})

	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "warden_job_duration_seconds",
		Help:    "Duration of finished backup jobs",
		Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600, 7200},
	})

	jobsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "warden_jobs_running",
		Help: "Backup jobs currently running",
	})

	alertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_alerts_total",
		Help: "Alerts raised by severity",
	}, []string{"severity"})

	schedulerTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warden_scheduler_ticks_total",
		Help: "Scheduler ticks evaluated",
	})

	retentionExpired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_retention_jobs_total",
		Help: "Retention outcomes per job examined",
	}, []string{"result"})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "warden_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

func JobStarted() {
	jobsRunning.Inc()
}

// JobFinished records a terminal job. wasRunning tells whether the job had
// been counted by JobStarted.
func JobFinished(job *types.BackupJob, wasRunning bool) {
	if wasRunning {
		jobsRunning.Dec()
	}
	jobsTotal.WithLabelValues(string(job.Status)).Inc()
	if job.DurationSeconds != nil {
		jobDuration.Observe(*job.DurationSeconds)
	}
}

func AlertRaised(severity types.Severity) {
	alertsTotal.WithLabelValues(string(severity)).Inc()
}

func SchedulerTick() {
	schedulerTicks.Inc()
}

func RetentionResult(result string) {
	retentionExpired.WithLabelValues(result).Inc()
}

func HTTPRequest(method, path string, status int, seconds float64) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(seconds)
}
