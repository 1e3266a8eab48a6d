package scheduler

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	obscontext "github.com/smallbiznis/nanolite/internal/observability/context"
	obslogger "github.com/smallbiznis/nanolite/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/nanolite/internal/observability/metrics"
	"go.uber.org/zap"
)

// jobRun tallies one execution of a job so the finish line can report what
// was repaired per record family.
type jobRun struct {
	job       string
	runID     string
	batchSize int
	startedAt time.Time

	mu       sync.Mutex
	repaired map[string]int
	errors   int
}

type jobRunKey struct{}

func (r *jobRun) AddProcessed(resource string, count int) {
	if r == nil || count <= 0 {
		return
	}
	r.mu.Lock()
	r.repaired[resource] += count
	r.mu.Unlock()
}

func (r *jobRun) IncError() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.errors++
	r.mu.Unlock()
}

func (r *jobRun) ErrorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errors
}

func (r *jobRun) summary() (total int, fields []zap.Field) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, resource := range slices.Sorted(maps.Keys(r.repaired)) {
		n := r.repaired[resource]
		total += n
		fields = append(fields, zap.Int("repaired_"+resource, n))
	}
	return total, fields
}

func (s *Scheduler) ensureJobRun(ctx context.Context, job string, batchSize int) (context.Context, *jobRun, bool) {
	if existing := jobRunFromContext(ctx); existing != nil {
		return ctx, existing, false
	}
	run := &jobRun{
		job:       job,
		runID:     s.genID.Generate().String(),
		batchSize: batchSize,
		startedAt: s.clock.Now(),
		repaired:  map[string]int{},
	}
	ctx = context.WithValue(ctx, jobRunKey{}, run)
	ctx = obscontext.WithActor(ctx, "system", "scheduler")
	return ctx, run, true
}

func jobRunFromContext(ctx context.Context) *jobRun {
	run, _ := ctx.Value(jobRunKey{}).(*jobRun)
	return run
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logJobStart(ctx context.Context, run *jobRun) {
	s.logger(ctx).Info("scheduler.job.start",
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.Int("batch_size", run.batchSize),
	)
}

func (s *Scheduler) logJobFinish(ctx context.Context, run *jobRun) {
	total, perResource := run.summary()
	errCount := run.ErrorCount()
	fields := append([]zap.Field{
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.Int64("duration_ms", s.clock.Now().Sub(run.startedAt).Milliseconds()),
		zap.Int("processed_count", total),
		zap.Int("error_count", errCount),
	}, perResource...)

	if errCount > 0 {
		s.logger(ctx).Warn("scheduler.job.finish", fields...)
		return
	}
	s.logger(ctx).Info("scheduler.job.finish", fields...)
}

func (s *Scheduler) logSchedulerError(ctx context.Context, run *jobRun, msg string, job string, err error, fields ...zap.Field) {
	run.IncError()
	s.logger(ctx).Error(msg, append([]zap.Field{
		zap.String("job", job),
		zap.String("reason", obsmetrics.ClassifySchedulerJobReason(err)),
		zap.Bool("retryable", obsmetrics.IsSchedulerErrorRetryable(err)),
		zap.Error(err),
	}, fields...)...)
}
