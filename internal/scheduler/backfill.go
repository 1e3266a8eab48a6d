package scheduler

import (
	"context"
	"errors"
	"fmt"

	obsmetrics "github.com/smallbiznis/nanolite/internal/observability/metrics"
	"go.uber.org/zap"
)

const (
	JobArtifactBackfill = "artifact_backfill"

	lockArtifactBackfill = "nanolite:scheduler:artifact_backfill"
)

// ArtifactBackfillJob re-renders pdf and excel artifacts that failed during
// a write. With Redis enabled only one instance sweeps at a time.
func (s *Scheduler) ArtifactBackfillJob(ctx context.Context) error {
	acquired, err := s.locker.WithLock(ctx, lockArtifactBackfill, s.cfg.LockTTL, s.backfillAll)
	if err != nil {
		return err
	}
	if !acquired {
		obsmetrics.Scheduler().IncBatchDeferred(JobArtifactBackfill, obsmetrics.SchedulerBatchDeferredReasonLockHeld)
		s.logger(ctx).Debug("artifact backfill skipped, lock held")
	}
	return nil
}

func (s *Scheduler) backfillAll(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	var errs error
	for _, target := range s.targets {
		fixed, err := target.svc.Backfill(ctx, s.cfg.BatchSize)
		run.AddProcessed(target.resource, fixed)
		obsmetrics.Scheduler().AddBatchProcessed(JobArtifactBackfill, target.resource, fixed)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return err
			}
			s.logSchedulerError(ctx, run, "scheduler.backfill.failed", JobArtifactBackfill, err,
				zap.String("resource", target.resource),
			)
			errs = errors.Join(errs, fmt.Errorf("backfill %s: %w", target.resource, err))
			continue
		}
		if fixed > 0 {
			s.logger(ctx).Info("artifacts backfilled",
				zap.String("resource", target.resource),
				zap.Int("count", fixed),
			)
		}
	}
	return errs
}
