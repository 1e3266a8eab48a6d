package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/smallbiznis/nanolite/internal/clock"
	obsmetrics "github.com/smallbiznis/nanolite/internal/observability/metrics"
	"go.uber.org/zap"
)

type fakeBackfiller struct {
	fixed  int
	err    error
	limits []int
}

func (f *fakeBackfiller) Backfill(ctx context.Context, limit int) (int, error) {
	f.limits = append(f.limits, limit)
	return f.fixed, f.err
}

func newTestScheduler(t *testing.T, targets ...backfillTarget) *Scheduler {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return &Scheduler{
		log:     zap.NewNop(),
		cfg:     Config{BatchSize: 7}.withDefaults(),
		genID:   node,
		clock:   clock.NewFakeClock(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)),
		targets: targets,
	}
}

func TestRunJobTimeoutDoesNotReturnErrorAndIncrementsTimeout(t *testing.T) {
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	defer restore()

	obsmetrics.ResetSchedulerMetricsForTest()
	obsmetrics.SchedulerWithConfig(obsmetrics.Config{
		ServiceName: "nanolite",
		Environment: "test",
	})

	s := newTestScheduler(t)
	err := s.execute(context.Background(), job{
		name:    "timeout_job",
		timeout: 5 * time.Millisecond,
		run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	labels := map[string]string{
		"service": "nanolite",
		"env":     "test",
		"job":     "timeout_job",
	}
	if got := getCounterValue(t, registry, "nanolite_scheduler_job_timeouts_total", labels); got != 1 {
		t.Fatalf("expected timeout count 1, got %v", got)
	}

	errorLabels := map[string]string{
		"service": "nanolite",
		"env":     "test",
		"job":     "timeout_job",
		"reason":  obsmetrics.SchedulerJobReasonDeadlineExceeded,
	}
	if got := getCounterValue(t, registry, "nanolite_scheduler_job_errors_total", errorLabels); got != 1 {
		t.Fatalf("expected error count 1, got %v", got)
	}
}

func TestArtifactBackfillSweepsEveryResource(t *testing.T) {
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	defer restore()
	obsmetrics.SchedulerWithConfig(obsmetrics.Config{ServiceName: "nanolite", Environment: "test"})

	garansi := &fakeBackfiller{fixed: 2}
	orders := &fakeBackfiller{fixed: 1}
	s := newTestScheduler(t,
		backfillTarget{resource: "garansi", svc: garansi},
		backfillTarget{resource: "order", svc: orders},
	)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(garansi.limits) != 1 || garansi.limits[0] != 7 {
		t.Fatalf("garansi backfill limits = %v", garansi.limits)
	}
	if len(orders.limits) != 1 || orders.limits[0] != 7 {
		t.Fatalf("order backfill limits = %v", orders.limits)
	}

	labels := map[string]string{
		"service":  "nanolite",
		"env":      "test",
		"job":      JobArtifactBackfill,
		"resource": "garansi",
	}
	if got := getCounterValue(t, registry, "nanolite_scheduler_batch_processed_total", labels); got != 2 {
		t.Fatalf("expected 2 garansi processed, got %v", got)
	}
}

func TestArtifactBackfillContinuesAfterFailure(t *testing.T) {
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	defer restore()

	boom := errors.New("disk full")
	garansi := &fakeBackfiller{err: boom}
	orders := &fakeBackfiller{fixed: 3}
	s := newTestScheduler(t,
		backfillTarget{resource: "garansi", svc: garansi},
		backfillTarget{resource: "order", svc: orders},
	)

	err := s.RunOnce(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped backfill error, got %v", err)
	}
	if len(orders.limits) != 1 {
		t.Fatalf("orders should still be swept after garansi failure")
	}
}

func TestDisabledJobIsSkipped(t *testing.T) {
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	defer restore()

	garansi := &fakeBackfiller{}
	s := newTestScheduler(t, backfillTarget{resource: "garansi", svc: garansi})
	s.cfg.EnabledJobs = []string{"something_else"}

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(garansi.limits) != 0 {
		t.Fatalf("disabled job ran")
	}
}

func swapPrometheusRegistry(registry *prometheus.Registry) func() {
	oldRegisterer := prometheus.DefaultRegisterer
	oldGatherer := prometheus.DefaultGatherer
	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
	obsmetrics.ResetSchedulerMetricsForTest()
	return func() {
		prometheus.DefaultRegisterer = oldRegisterer
		prometheus.DefaultGatherer = oldGatherer
		obsmetrics.ResetSchedulerMetricsForTest()
	}
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			if metric.Counter == nil {
				t.Fatalf("metric %s is not a counter", name)
			}
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}
