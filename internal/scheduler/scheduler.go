package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	goredis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/rentledger/internal/auditcontext"
	"github.com/smallbiznis/rentledger/internal/clock"
	"github.com/smallbiznis/rentledger/internal/config"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	leasedomain "github.com/smallbiznis/rentledger/internal/lease/domain"
	ledgerdomain "github.com/smallbiznis/rentledger/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/rentledger/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	jobPostingRetry = "posting_retry"
	jobOverdue      = "overdue"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Config     Config `optional:"true"`
	Billing    *config.BillingConfigHolder
	LeaseSvc   leasedomain.Service
	InvoiceSvc invoicedomain.Service
	LedgerSvc  ledgerdomain.Service
	Redis      *goredis.Client              `optional:"true"`
	Metrics    *obsmetrics.SchedulerMetrics `optional:"true"`
}

type Scheduler struct {
	log          *zap.Logger
	cfg          Config
	genID        *snowflake.Node
	clock        clock.Clock
	billing      *config.BillingConfigHolder
	leaseSvc     leasedomain.Service
	invoiceSvc   invoicedomain.Service
	ledgerSvc    ledgerdomain.Service
	lock         *runLock
	schedMetrics *obsmetrics.SchedulerMetrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Billing == nil || p.LeaseSvc == nil || p.InvoiceSvc == nil || p.LedgerSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:          p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:          p.Config.withDefaults(),
		genID:        p.GenID,
		clock:        p.Clock,
		billing:      p.Billing,
		leaseSvc:     p.LeaseSvc,
		invoiceSvc:   p.InvoiceSvc,
		ledgerSvc:    p.LedgerSvc,
		lock:         newRunLock(p.Redis),
		schedMetrics: p.Metrics,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	if auditcontext.ActorIDFromContext(ctx) == "" {
		ctx = auditcontext.WithActorID(ctx, auditcontext.SystemActor)
	}
	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	s.schedMetrics.IncJobRun(name)

	err := fn(ctx)
	s.schedMetrics.ObserveJobDuration(name, time.Since(start))
	if owner {
		if err != nil && run.errorTotal() == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		s.schedMetrics.IncJobTimeout(name)
	}
	s.schedMetrics.IncJobError(name, err)
	if isTimeout {
		s.logger(ctx).Warn("scheduler.job.timeout",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce executes every enabled job in order: bill, retry postings, then
// age invoices. A failing job does not stop the next one.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name  string
		Batch int
		Run   func(context.Context) error
	}{
		{jobBillingCycle, s.cfg.LeasePage, s.BillingCycleJob},
		{jobPostingRetry, s.cfg.RetryBatch, s.PostingRetryJob},
		{jobOverdue, s.cfg.OverdueBatch, s.OverdueJob},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, job.Batch, s.cfg.RunTimeout, job.Run))
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler.run.failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

func (s *Scheduler) BillingCycleJob(ctx context.Context) error {
	result, err := s.RunBillingCycle(ctx)
	if errors.Is(err, ErrRunInProgress) {
		return nil
	}
	if err != nil {
		return err
	}
	if result.TotalFailure() {
		return fmt.Errorf("all %d leases failed", result.Failed)
	}
	return nil
}

func (s *Scheduler) PostingRetryJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, jobPostingRetry, s.cfg.RetryBatch)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	result, err := s.ledgerSvc.RetryPending(ctx, s.cfg.RetryBatch)
	run.AddProcessed(result.Attempted)
	s.schedMetrics.AddBatchProcessed(jobPostingRetry, "postings", result.Attempted)
	for range result.Failed {
		run.IncError()
	}
	return err
}

// OverdueJob drains PENDING invoices past due in batches until a short batch
// signals there is nothing left.
func (s *Scheduler) OverdueJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, jobOverdue, s.cfg.OverdueBatch)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	now := s.clock.Now()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		updated, err := s.invoiceSvc.MarkOverdue(ctx, now, s.cfg.OverdueBatch)
		if err != nil {
			return err
		}
		run.AddProcessed(int(updated))
		s.schedMetrics.AddBatchProcessed(jobOverdue, "invoices", int(updated))
		if updated < int64(s.cfg.OverdueBatch) {
			return nil
		}
	}
}
