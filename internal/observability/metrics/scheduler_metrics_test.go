package metrics

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestClassifySchedulerJobReason(t *testing.T) {
	missing := &fs.PathError{Op: "open", Path: "garansi/12.pdf", Err: fs.ErrNotExist}

	cases := map[string]struct {
		err       error
		reason    string
		retryable bool
	}{
		"deadline":       {context.DeadlineExceeded, SchedulerJobReasonDeadlineExceeded, true},
		"lock held":      {fmt.Errorf("artifact_backfill: %w", ErrLockHeld), SchedulerJobReasonLockHeld, true},
		"blob write":     {fmt.Errorf("render garansi 12: %w", missing), SchedulerJobReasonStorage, false},
		"pg lock":        {&pgconn.PgError{Code: "55P03"}, SchedulerJobReasonDBContention, true},
		"mysql deadlock": {&mysql.MySQLError{Number: 1213}, SchedulerJobReasonDBContention, true},
		"duplicate":      {gorm.ErrDuplicatedKey, SchedulerJobReasonUniqueViolation, false},
		"pg other":       {&pgconn.PgError{Code: "42P01"}, SchedulerJobReasonDatabase, false},
		"plain":          {errors.New("template missing"), SchedulerJobReasonUnknown, false},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.reason, ClassifySchedulerJobReason(tc.err))
			assert.Equal(t, tc.retryable, IsSchedulerErrorRetryable(tc.err))
		})
	}
	assert.False(t, IsSchedulerErrorRetryable(nil))
}

func TestSchedulerMetricsRecordSweep(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newSchedulerMetrics(registry, Config{Environment: "test"})

	m.IncJobRun("artifact_backfill")
	m.AddBatchProcessed("artifact_backfill", "garansi", 3)
	m.AddBatchProcessed("artifact_backfill", "garansi", 0)
	m.AddBatchProcessed("artifact_backfill", "order", -1)
	m.IncJobError("artifact_backfill", nil)
	m.ObserveRunLoopLag(-time.Second)

	assert.Equal(t, float64(3), testutil.ToFloat64(m.batchProcessed.WithLabelValues("artifact_backfill", "garansi")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.batchProcessed), "non-positive counts must not create series")
	assert.Equal(t, 0, testutil.CollectAndCount(m.jobErrors))

	families, err := registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			assert.Equal(t, "nanolite", labels["service"], mf.GetName())
			assert.Equal(t, "test", labels["env"], mf.GetName())
		}
	}
}

func TestNilSchedulerMetricsIsSafe(t *testing.T) {
	var m *SchedulerMetrics
	assert.NotPanics(t, func() {
		m.IncJobRun("x")
		m.IncJobTimeout("x")
		m.IncJobError("x", errors.New("boom"))
		m.AddBatchProcessed("x", "garansi", 1)
		m.IncBatchDeferred("x", SchedulerBatchDeferredReasonEmpty)
		m.ObserveJobDuration("x", time.Second)
		m.ObserveRunLoopLag(time.Second)
	})
}
