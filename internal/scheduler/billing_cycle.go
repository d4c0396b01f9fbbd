package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/internal/config"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	leasedomain "github.com/smallbiznis/rentledger/internal/lease/domain"
	ledgerdomain "github.com/smallbiznis/rentledger/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/rentledger/internal/observability/metrics"
	"github.com/smallbiznis/rentledger/internal/observability/tracing"
	"github.com/smallbiznis/rentledger/internal/scheduler/guard"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const jobBillingCycle = "billing_cycle"

var ErrRunInProgress = errors.New("billing_run_in_progress")

type LeaseError struct {
	LeaseID snowflake.ID `json:"lease_id"`
	Error   string       `json:"error"`
}

// BillingRunResult summarises one rent roll. Per-lease failures are reported
// here and never abort the run.
type BillingRunResult struct {
	RunID      string       `json:"run_id"`
	Generated  int          `json:"generated"`
	Skipped    int          `json:"skipped"`
	Failed     int          `json:"failed"`
	Errors     []LeaseError `json:"errors"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// TotalFailure reports whether every lease the run attempted failed.
func (r BillingRunResult) TotalFailure() bool {
	return r.Failed > 0 && r.Generated == 0 && r.Skipped == 0
}

func (r *BillingRunResult) record(leaseID snowflake.ID, outcome string, err error) {
	switch outcome {
	case obsmetrics.BillingOutcomeGenerated:
		r.Generated++
	case obsmetrics.BillingOutcomeSkipped:
		r.Skipped++
	default:
		r.Failed++
		msg := "unknown error"
		if err != nil {
			msg = err.Error()
		}
		r.Errors = append(r.Errors, LeaseError{LeaseID: leaseID, Error: msg})
	}
}

// RunBillingCycle generates and posts the current period's RENT invoice for
// every ACTIVE lease. Leases are processed by a bounded worker pool, one
// bounded unit of work per lease. The returned error is non-nil only when the
// run could not proceed at all (lock held elsewhere, lease listing failed).
func (s *Scheduler) RunBillingCycle(ctx context.Context) (result BillingRunResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "scheduler.RunBillingCycle", attribute.String("job", jobBillingCycle))
	defer func() {
		tracing.EndSpan(span, err)
	}()

	ctx, run, owner := s.ensureJobRun(ctx, jobBillingCycle, s.cfg.LeasePage)
	result = BillingRunResult{RunID: run.runID, StartedAt: s.clock.Now(), Errors: []LeaseError{}}

	held, err := s.lock.acquire(ctx, billingRunLockKey, s.cfg.LockTTL)
	if errors.Is(err, ErrRunInProgress) {
		s.schedMetrics.IncRunLockSkipped()
		s.logger(ctx).Info("scheduler.billing_cycle.locked")
		return result, err
	}
	if err != nil {
		return result, fmt.Errorf("acquire run lock: %w", err)
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if relErr := held.release(releaseCtx); relErr != nil {
			s.log.Warn("scheduler.lock.release_failed", zap.Error(relErr))
		}
	}()

	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	now := s.clock.Now()
	policy := s.billing.Get()
	workers := policy.Workers
	if workers <= 0 {
		workers = 1
	}

	var mu sync.Mutex
	var afterID snowflake.ID
	for {
		if err := ctx.Err(); err != nil {
			return s.finish(result), err
		}
		leases, err := s.leaseSvc.ListActive(ctx, afterID, s.cfg.LeasePage)
		if err != nil {
			run.IncError()
			return s.finish(result), fmt.Errorf("list active leases: %w", err)
		}
		if len(leases) == 0 {
			break
		}

		var g errgroup.Group
		g.SetLimit(workers)
		for _, lease := range leases {
			g.Go(func() error {
				outcome, leaseErr := s.billLease(ctx, lease, now, policy)
				if leaseErr != nil {
					s.logLeaseFailure(ctx, lease.ID, leaseErr)
				}
				mu.Lock()
				result.record(lease.ID, outcome, leaseErr)
				if outcome == obsmetrics.BillingOutcomeFailed {
					run.IncError()
				}
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		run.AddProcessed(len(leases))
		s.schedMetrics.AddBatchProcessed(jobBillingCycle, "leases", len(leases))
		afterID = leases[len(leases)-1].ID
		if len(leases) < s.cfg.LeasePage {
			break
		}
	}

	return s.finish(result), nil
}

func (s *Scheduler) finish(result BillingRunResult) BillingRunResult {
	sort.Slice(result.Errors, func(i, j int) bool {
		return result.Errors[i].LeaseID < result.Errors[j].LeaseID
	})
	result.FinishedAt = s.clock.Now()
	s.schedMetrics.AddBillingOutcome(obsmetrics.BillingOutcomeGenerated, result.Generated)
	s.schedMetrics.AddBillingOutcome(obsmetrics.BillingOutcomeSkipped, result.Skipped)
	s.schedMetrics.AddBillingOutcome(obsmetrics.BillingOutcomeFailed, result.Failed)
	s.log.Info("scheduler.billing_cycle.finish",
		zap.String("run_id", result.RunID),
		zap.Int("generated", result.Generated),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result
}

// billLease is the per-lease unit of work: find or create the current RENT
// invoice, then try to post it. Posting failures stay with the invoice's
// outbox state and do not fail the lease.
func (s *Scheduler) billLease(ctx context.Context, lease leasedomain.Lease, now time.Time, policy config.BillingPolicy) (outcome string, err error) {
	defer s.recoverLease(lease.ID, &outcome, &err)

	if policy.Skips(int64(lease.ID)) {
		return obsmetrics.BillingOutcomeSkipped, nil
	}

	period := leasedomain.PeriodFor(lease.PaymentFrequency, now)
	if err := guard.EnsureLeaseBillable(lease, period); err != nil {
		if errors.Is(err, guard.ErrLeaseOutsideTerm) {
			return obsmetrics.BillingOutcomeSkipped, nil
		}
		return obsmetrics.BillingOutcomeFailed, err
	}

	leaseCtx, cancel := context.WithTimeout(ctx, s.cfg.LeaseTimeout)
	defer cancel()

	existing, err := s.invoiceSvc.FindForPeriod(leaseCtx, lease.ID, invoicedomain.InvoiceTypeRent, period)
	if err != nil {
		return obsmetrics.BillingOutcomeFailed, err
	}
	if existing != nil {
		return obsmetrics.BillingOutcomeSkipped, nil
	}

	inv, err := s.invoiceSvc.CreateRentInvoice(leaseCtx, invoicedomain.CreatePeriodInvoiceRequest{
		Lease:  lease,
		Period: period,
		Source: invoicedomain.SourceBillingCycle,
	})
	if errors.Is(err, invoicedomain.ErrDuplicateInvoice) {
		return obsmetrics.BillingOutcomeSkipped, nil
	}
	if err != nil {
		return obsmetrics.BillingOutcomeFailed, err
	}

	if inv.PostingStatus == ledgerdomain.PostingStatusPending {
		if _, postErr := s.ledgerSvc.PostInvoice(leaseCtx, inv.ID); postErr != nil {
			s.logPostingDeferred(ctx, lease.ID, inv.ID, postErr)
		}
	}
	return obsmetrics.BillingOutcomeGenerated, nil
}
