package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/snowflake"
	obslogger "github.com/smallbiznis/rentledger/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/rentledger/internal/observability/metrics"
	"go.uber.org/zap"
)

// jobRun tracks one execution of a job. Billing workers update the counters
// concurrently.
type jobRun struct {
	job       string
	runID     string
	batchSize int
	startedAt time.Time

	processed atomic.Int64
	failures  atomic.Int64
}

type jobRunKey struct{}

func (r *jobRun) AddProcessed(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.processed.Add(int64(count))
}

func (r *jobRun) IncError() {
	if r == nil {
		return
	}
	r.failures.Add(1)
}

func (r *jobRun) errorTotal() int64 {
	if r == nil {
		return 0
	}
	return r.failures.Load()
}

// ensureJobRun reuses the run already on ctx so a job started by runJob and
// re-entered through its public method logs a single start/finish pair. The
// third result reports whether the caller owns the run.
func (s *Scheduler) ensureJobRun(ctx context.Context, job string, batchSize int) (context.Context, *jobRun, bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	if existing := jobRunFromContext(ctx); existing != nil {
		return ctx, existing, false
	}
	run := &jobRun{
		job:       job,
		runID:     s.genID.Generate().String(),
		batchSize: batchSize,
		startedAt: time.Now(),
	}
	return context.WithValue(ctx, jobRunKey{}, run), run, true
}

func jobRunFromContext(ctx context.Context) *jobRun {
	if ctx == nil {
		return nil
	}
	run, _ := ctx.Value(jobRunKey{}).(*jobRun)
	return run
}

// logger carries the request id from ctx and, inside a run, the job and run id.
func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	log := obslogger.WithContext(ctx, s.log)
	if run := jobRunFromContext(ctx); run != nil {
		log = log.With(zap.String("job", run.job), zap.String("run_id", run.runID))
	}
	return log
}

func (s *Scheduler) logJobStart(ctx context.Context, run *jobRun) {
	if run == nil {
		return
	}
	s.logger(ctx).Info("scheduler.job.start", zap.Int("batch_size", run.batchSize))
}

func (s *Scheduler) logJobFinish(ctx context.Context, run *jobRun) {
	if run == nil {
		return
	}
	failures := run.errorTotal()
	fields := []zap.Field{
		zap.Int64("duration_ms", time.Since(run.startedAt).Milliseconds()),
		zap.Int64("processed_count", run.processed.Load()),
		zap.Int64("error_count", failures),
	}
	if failures > 0 {
		s.logger(ctx).Warn("scheduler.job.finish", fields...)
		return
	}
	s.logger(ctx).Info("scheduler.job.finish", fields...)
}

func (s *Scheduler) logLeaseFailure(ctx context.Context, leaseID snowflake.ID, err error) {
	if err == nil {
		return
	}
	s.logger(ctx).Warn("scheduler.lease.failed",
		zap.String("lease_id", idString(leaseID)),
		zap.String("reason", obsmetrics.ClassifySchedulerJobReason(err)),
		zap.Error(err),
	)
}

// logPostingDeferred records an invoice left PENDING for the retry sweep.
func (s *Scheduler) logPostingDeferred(ctx context.Context, leaseID, invoiceID snowflake.ID, err error) {
	s.logger(ctx).Warn("scheduler.posting.deferred",
		zap.String("lease_id", idString(leaseID)),
		zap.String("invoice_id", idString(invoiceID)),
		zap.String("reason", obsmetrics.ClassifySchedulerJobReason(err)),
		zap.Error(err),
	)
}

func idString(id snowflake.ID) string {
	if id == 0 {
		return ""
	}
	return id.String()
}
