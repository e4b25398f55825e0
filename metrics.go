package uniq

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Acquisition results recorded by Metrics.
const (
	resultAcquired = "acquired"
	resultLocked   = "locked"
	resultError    = "error"
)

// Release paths recorded by Metrics.
const (
	releaseExecute = "execute"
	releaseDequeue = "dequeue"
	releaseStale   = "stale"
)

// Metrics holds the Prometheus instruments for lock activity. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	acquisitions *prometheus.CounterVec
	releases     *prometheus.CounterVec
	executions   *prometheus.HistogramVec
}

// NewMetrics creates the lock metrics and registers them with reg. Pass
// prometheus.DefaultRegisterer to expose them on the default /metrics
// handler, or nil to leave them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		acquisitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uniq_lock_acquisitions_total",
			Help: "Lock acquisition attempts by job type and result (acquired, locked, error).",
		}, []string{"job_type", "result"}),
		releases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uniq_lock_releases_total",
			Help: "Lock releases by job type and path (execute, dequeue, stale).",
		}, []string{"job_type", "path"}),
		executions: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "uniq_job_execution_seconds",
			Help:    "Duration of job bodies run under a lock, by job type and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job_type", "status"}),
	}
	if reg != nil {
		reg.MustRegister(m.acquisitions, m.releases, m.executions)
	}
	return m
}

func (m *Metrics) recordAcquire(jobType, result string) {
	if m == nil {
		return
	}
	m.acquisitions.WithLabelValues(jobType, result).Inc()
}

func (m *Metrics) recordRelease(jobType, path string) {
	if m == nil {
		return
	}
	m.releases.WithLabelValues(jobType, path).Inc()
}

func (m *Metrics) recordExecution(jobType, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(jobType, status).Observe(elapsed.Seconds())
}
