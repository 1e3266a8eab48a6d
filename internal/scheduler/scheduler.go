package scheduler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/nanolite/internal/audit/domain"
	"github.com/smallbiznis/nanolite/internal/auditcontext"
	"github.com/smallbiznis/nanolite/internal/clock"
	garansidomain "github.com/smallbiznis/nanolite/internal/garansi/domain"
	obsmetrics "github.com/smallbiznis/nanolite/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/nanolite/internal/order/domain"
	"github.com/smallbiznis/nanolite/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid scheduler config")

// Backfiller re-renders records whose artifacts are missing.
type Backfiller interface {
	Backfill(ctx context.Context, limit int) (int, error)
}

type Params struct {
	fx.In

	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Garansi garansidomain.Service
	Orders  orderdomain.Service
	Locker  *ratelimit.Locker `optional:"true"`
	Config  Config            `optional:"true"`
}

type Scheduler struct {
	log    *zap.Logger
	cfg    Config
	genID  *snowflake.Node
	clock  clock.Clock
	locker *ratelimit.Locker

	targets []backfillTarget
}

type backfillTarget struct {
	resource string
	svc      Backfiller
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Garansi == nil || p.Orders == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:    p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:    p.Config.withDefaults(),
		genID:  p.GenID,
		clock:  p.Clock,
		locker: p.Locker,
		targets: []backfillTarget{
			{resource: "garansi", svc: p.Garansi},
			{resource: "order", svc: p.Orders},
		},
	}, nil
}

// job is one periodic task. Jobs run sequentially inside a tick, each under
// its own timeout.
type job struct {
	name    string
	batch   int
	timeout time.Duration
	run     func(context.Context) error
}

func (s *Scheduler) jobs() []job {
	return []job{
		{name: JobArtifactBackfill, batch: s.cfg.BatchSize, timeout: s.cfg.JobTimeout, run: s.ArtifactBackfillJob},
	}
}

// execute runs j once. Hitting the timeout is not an error: whatever was
// left unrepaired is picked up on the next tick.
func (s *Scheduler) execute(parent context.Context, j job) error {
	metrics := obsmetrics.Scheduler()
	started := s.clock.Now()

	ctx, cancel := context.WithTimeout(parent, j.timeout)
	defer cancel()
	ctx = auditcontext.WithActor(ctx, string(auditdomain.ActorTypeSystem), "scheduler")
	ctx, run, owner := s.ensureJobRun(ctx, j.name, j.batch)
	if owner {
		s.logJobStart(ctx, run)
	}

	metrics.IncJobRun(j.name)
	err := j.run(ctx)
	metrics.ObserveJobDuration(j.name, s.clock.Now().Sub(started))

	if owner {
		if err != nil && run.ErrorCount() == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	metrics.IncJobError(j.name, err)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		metrics.IncJobTimeout(j.name)
		s.logger(ctx).Warn("job timed out",
			zap.String("job", j.name),
			zap.String("run_id", run.runID),
			zap.Duration("timeout", j.timeout),
			zap.Error(err),
		)
		return nil
	}
	return fmt.Errorf("%s: %w", j.name, err)
}

// RunOnce executes every enabled job and joins their errors.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var errs []error
	for _, j := range s.jobs() {
		if !s.enabled(j.name) {
			continue
		}
		errs = append(errs, s.execute(ctx, j))
	}
	return errors.Join(errs...)
}

// RunForever ticks every RunInterval until ctx ends. A tick that starts
// late because the previous one overran is recorded as loop lag.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	due := s.clock.Now().Add(s.cfg.RunInterval)

	for {
		if lag := s.clock.Now().Sub(due); lag > 0 {
			obsmetrics.Scheduler().ObserveRunLoopLag(lag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		due = due.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// enabled treats an empty EnabledJobs list as every job enabled.
func (s *Scheduler) enabled(name string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	return slices.ContainsFunc(s.cfg.EnabledJobs, func(v string) bool {
		return strings.EqualFold(strings.TrimSpace(v), name)
	})
}
