package metrics

import (
	"cmp"
	"context"
	"errors"
	"io/fs"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/nanolite/pkg/db"
)

// Job error reasons. Keep this set small; it becomes a label value.
const (
	SchedulerJobReasonDeadlineExceeded = "deadline_exceeded"
	SchedulerJobReasonLockHeld         = "lock_held"
	SchedulerJobReasonStorage          = "storage"
	SchedulerJobReasonDBContention     = "db_contention"
	SchedulerJobReasonUniqueViolation  = "unique_violation"
	SchedulerJobReasonDatabase         = "database"
	SchedulerJobReasonUnknown          = "unknown"

	SchedulerBatchDeferredReasonLockHeld = "lock_held"
	SchedulerBatchDeferredReasonEmpty    = "empty"
)

// ErrLockHeld is returned by jobs that lost the distributed lock race.
var ErrLockHeld = errors.New("scheduler lock held by another instance")

// postgres lock_not_available / serialization_failure / deadlock_detected,
// mysql lock wait timeout / deadlock.
var (
	pgContentionCodes    = map[string]struct{}{"55P03": {}, "40001": {}, "40P01": {}}
	mysqlContentionCodes = map[uint16]struct{}{1205: {}, 1213: {}}
)

var durationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}

// SchedulerMetrics tracks the artifact backfill loop: how often it runs,
// how long a sweep takes and how many records each sweep repaired.
type SchedulerMetrics struct {
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobTimeouts    *prometheus.CounterVec
	jobErrors      *prometheus.CounterVec
	batchProcessed *prometheus.CounterVec
	batchDeferred  *prometheus.CounterVec
	runLoopLag     prometheus.Histogram
}

var (
	schedulerMetricsOnce sync.Once
	schedulerMetrics     *SchedulerMetrics
)

func Scheduler() *SchedulerMetrics {
	return SchedulerWithConfig(Config{})
}

// SchedulerWithConfig registers the scheduler collectors on the default
// registry the first time it is called. Later calls ignore cfg.
func SchedulerWithConfig(cfg Config) *SchedulerMetrics {
	schedulerMetricsOnce.Do(func() {
		schedulerMetrics = newSchedulerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return schedulerMetrics
}

func ResetSchedulerMetricsForTest() {
	schedulerMetricsOnce = sync.Once{}
	schedulerMetrics = nil
}

type schedulerVecs struct {
	labels prometheus.Labels
	reg    []prometheus.Collector
}

func (v *schedulerVecs) counter(name, help string, dims ...string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "nanolite_scheduler_" + name,
		Help:        help,
		ConstLabels: v.labels,
	}, dims)
	v.reg = append(v.reg, c)
	return c
}

func (v *schedulerVecs) histogram(name, help string, dims ...string) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "nanolite_scheduler_" + name,
		Help:        help,
		Buckets:     durationBuckets,
		ConstLabels: v.labels,
	}, dims)
	v.reg = append(v.reg, h)
	return h
}

func newSchedulerMetrics(registerer prometheus.Registerer, cfg Config) *SchedulerMetrics {
	vecs := &schedulerVecs{labels: prometheus.Labels{
		"service": cmp.Or(strings.TrimSpace(cfg.ServiceName), "nanolite"),
		"env":     cmp.Or(strings.TrimSpace(cfg.Environment), "unknown"),
	}}

	m := &SchedulerMetrics{
		jobRuns:        vecs.counter("job_runs_total", "Backfill sweeps started, by job.", "job"),
		jobDuration:    vecs.histogram("job_duration_seconds", "Wall time of one sweep.", "job"),
		jobTimeouts:    vecs.counter("job_timeouts_total", "Sweeps cut short by the job timeout.", "job"),
		jobErrors:      vecs.counter("job_errors_total", "Sweep failures by reason.", "job", "reason"),
		batchProcessed: vecs.counter("batch_processed_total", "Records whose artifacts were re-rendered.", "job", "resource"),
		batchDeferred:  vecs.counter("batch_deferred_total", "Sweeps skipped before doing any work.", "job", "reason"),
	}
	m.runLoopLag = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "nanolite_scheduler_runloop_lag_seconds",
		Help:        "Delay between the scheduled tick and the sweep start.",
		Buckets:     durationBuckets,
		ConstLabels: vecs.labels,
	})
	vecs.reg = append(vecs.reg, m.runLoopLag)

	cmp.Or(registerer, prometheus.DefaultRegisterer).MustRegister(vecs.reg...)
	return m
}

func (m *SchedulerMetrics) IncJobRun(job string) {
	if m != nil {
		m.jobRuns.WithLabelValues(job).Inc()
	}
}

func (m *SchedulerMetrics) ObserveJobDuration(job string, d time.Duration) {
	if m != nil {
		m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
	}
}

func (m *SchedulerMetrics) IncJobTimeout(job string) {
	if m != nil {
		m.jobTimeouts.WithLabelValues(job).Inc()
	}
}

func (m *SchedulerMetrics) IncJobError(job string, err error) {
	if m != nil && err != nil {
		m.jobErrors.WithLabelValues(job, ClassifySchedulerJobReason(err)).Inc()
	}
}

// AddBatchProcessed adds the number of records repaired for one resource.
// Zero and negative counts are ignored so quiet sweeps do not create series.
func (m *SchedulerMetrics) AddBatchProcessed(job, resource string, n int) {
	if m != nil && n > 0 {
		m.batchProcessed.WithLabelValues(job, resource).Add(float64(n))
	}
}

func (m *SchedulerMetrics) IncBatchDeferred(job, reason string) {
	if m != nil {
		m.batchDeferred.WithLabelValues(job, reason).Inc()
	}
}

func (m *SchedulerMetrics) ObserveRunLoopLag(lag time.Duration) {
	if m != nil {
		m.runLoopLag.Observe(max(lag, 0).Seconds())
	}
}

// ClassifySchedulerJobReason maps a sweep error to one of the
// SchedulerJobReason* values.
func ClassifySchedulerJobReason(err error) string {
	var pathErr *fs.PathError
	switch {
	case err == nil:
		return SchedulerJobReasonUnknown
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return SchedulerJobReasonDeadlineExceeded
	case errors.Is(err, ErrLockHeld):
		return SchedulerJobReasonLockHeld
	case errors.As(err, &pathErr):
		return SchedulerJobReasonStorage
	case isContention(err):
		return SchedulerJobReasonDBContention
	case db.IsDuplicateKeyErr(err):
		return SchedulerJobReasonUniqueViolation
	case isDriverErr(err):
		return SchedulerJobReasonDatabase
	default:
		return SchedulerJobReasonUnknown
	}
}

// IsSchedulerErrorRetryable reports whether the next tick is likely to
// succeed without intervention. Render and storage failures are not.
func IsSchedulerErrorRetryable(err error) bool {
	switch ClassifySchedulerJobReason(err) {
	case SchedulerJobReasonDeadlineExceeded, SchedulerJobReasonLockHeld, SchedulerJobReasonDBContention:
		return true
	}
	return false
}

func isContention(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		_, ok := pgContentionCodes[pgErr.Code]
		return ok
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		_, ok := mysqlContentionCodes[myErr.Number]
		return ok
	}
	return false
}

func isDriverErr(err error) bool {
	var pgErr *pgconn.PgError
	var myErr *mysql.MySQLError
	return errors.As(err, &pgErr) || errors.As(err, &myErr)
}
