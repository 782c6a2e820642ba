package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// CronJobMetrics is safe to use as a nil pointer; every method is then a no-op.
type CronJobMetrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	rows     *prometheus.CounterVec
	skipped  prometheus.Counter
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return nil
	}
	m := &CronJobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cron_job_runs_total",
			Help: "Cron job executions by outcome.",
		}, []string{"job", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cron_job_duration_seconds",
			Help:    "Wall time of a single cron job execution.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cron_job_rows_total",
			Help: "Rows handled by cron jobs, split by result.",
		}, []string{"job", "result"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cron_cycles_skipped_total",
			Help: "Cycles skipped because another replica held the lock.",
		}),
	}
	reg.MustRegister(m.runs, m.duration, m.rows, m.skipped)
	return m
}

// ObserveRun records one execution of job. A non-nil err counts as a failure.
func (c *CronJobMetrics) ObserveRun(job string, took time.Duration, err error) {
	if c == nil {
		return
	}
	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeFailure
	}
	job = label(job)
	c.runs.WithLabelValues(job, outcome).Inc()
	c.duration.WithLabelValues(job).Observe(took.Seconds())
}

// AddRows counts rows a job handled with the given result, e.g. "completed".
func (c *CronJobMetrics) AddRows(job, result string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.rows.WithLabelValues(label(job), label(result)).Add(float64(n))
}

func (c *CronJobMetrics) IncSkippedCycle() {
	if c == nil {
		return
	}
	c.skipped.Inc()
}

func label(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
