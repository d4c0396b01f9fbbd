package metrics

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	SchedulerJobReasonDeadlineExceeded     = "deadline_exceeded"
	SchedulerJobReasonDBLockTimeout        = "db_lock_timeout"
	SchedulerJobReasonSerializationFailure = "serialization_failure"
	SchedulerJobReasonUniqueViolation      = "unique_violation"
	SchedulerJobReasonUnknown              = "unknown"
)

const (
	BillingOutcomeGenerated = "generated"
	BillingOutcomeSkipped   = "skipped"
	BillingOutcomeFailed    = "failed"
)

// SchedulerMetrics captures billing scheduler health signals.
type SchedulerMetrics struct {
	jobRuns         *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	jobTimeouts     *prometheus.CounterVec
	jobErrors       *prometheus.CounterVec
	batchProcessed  *prometheus.CounterVec
	billingOutcomes *prometheus.CounterVec
	runLockSkipped  prometheus.Counter
}

// NewSchedulerMetrics registers the scheduler collectors on registerer. Tests
// pass a private registry.
func NewSchedulerMetrics(registerer prometheus.Registerer, cfg Config) *SchedulerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "rentledger"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &SchedulerMetrics{
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "rentledger_scheduler_job_runs_total",
			Help:        "Scheduler job runs by name.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "rentledger_scheduler_job_duration_seconds",
			Help:        "Scheduler job latency.",
			Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "rentledger_scheduler_job_timeouts_total",
			Help:        "Scheduler jobs that hit their soft timeout.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "rentledger_scheduler_job_errors_total",
			Help:        "Scheduler job errors by low-cardinality reason.",
			ConstLabels: constLabels,
		}, []string{"job", "reason"}),
		batchProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "rentledger_scheduler_batch_processed_total",
			Help:        "Scheduler items processed by resource.",
			ConstLabels: constLabels,
		}, []string{"job", "resource"}),
		billingOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "rentledger_billing_leases_total",
			Help:        "Leases handled by billing runs by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		runLockSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "rentledger_scheduler_run_lock_skipped_total",
			Help:        "Billing runs skipped because another instance held the run lock.",
			ConstLabels: constLabels,
		}),
	}

	registerer.MustRegister(
		m.jobRuns,
		m.jobDuration,
		m.jobTimeouts,
		m.jobErrors,
		m.batchProcessed,
		m.billingOutcomes,
		m.runLockSkipped,
	)
	return m
}

func (m *SchedulerMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) ObserveJobDuration(job string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

func (m *SchedulerMetrics) IncJobTimeout(job string) {
	if m == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) IncJobError(job string, err error) {
	if m == nil || err == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifySchedulerJobReason(err)).Inc()
}

func (m *SchedulerMetrics) AddBatchProcessed(job, resource string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.batchProcessed.WithLabelValues(job, resource).Add(float64(count))
}

// AddBillingOutcome records how many leases ended in outcome during a run.
func (m *SchedulerMetrics) AddBillingOutcome(outcome string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.billingOutcomes.WithLabelValues(outcome).Add(float64(count))
}

func (m *SchedulerMetrics) IncRunLockSkipped() {
	if m == nil {
		return
	}
	m.runLockSkipped.Inc()
}

// ClassifySchedulerJobReason maps scheduler job errors to low-cardinality reasons.
func ClassifySchedulerJobReason(err error) string {
	if err == nil {
		return SchedulerJobReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return SchedulerJobReasonDeadlineExceeded
	}
	if hasPGCode(err, "55P03") {
		return SchedulerJobReasonDBLockTimeout
	}
	if hasPGCode(err, "40001") || hasPGCode(err, "40P01") {
		return SchedulerJobReasonSerializationFailure
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || hasPGCode(err, "23505") {
		return SchedulerJobReasonUniqueViolation
	}
	return SchedulerJobReasonUnknown
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
