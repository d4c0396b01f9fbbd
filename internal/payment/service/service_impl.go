package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/rentledger/internal/audit/domain"
	auditservice "github.com/smallbiznis/rentledger/internal/audit/service"
	"github.com/smallbiznis/rentledger/internal/auditcontext"
	"github.com/smallbiznis/rentledger/internal/clock"
	"github.com/smallbiznis/rentledger/internal/config"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/rentledger/internal/ledger/domain"
	"github.com/smallbiznis/rentledger/internal/observability/metrics"
	"github.com/smallbiznis/rentledger/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/rentledger/internal/payment/domain"
	dbutil "github.com/smallbiznis/rentledger/pkg/db"
	"github.com/smallbiznis/rentledger/pkg/money"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxReferenceLength = 128

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Config      config.Config
	Repo        paymentdomain.Repository
	InvoiceRepo invoicedomain.Repository
	Ledger      ledgerdomain.Service
	AuditSvc    auditdomain.Service
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	repo        paymentdomain.Repository
	invoiceRepo invoicedomain.Repository
	ledger      ledgerdomain.Service
	auditSvc    auditdomain.Service
	metrics     *metrics.Metrics

	txRetries       int
	paymentTimeout  time.Duration
	reversalTimeout time.Duration
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("payment.service"),
		genID: p.GenID,
		clock: p.Clock,

		repo:        p.Repo,
		invoiceRepo: p.InvoiceRepo,
		ledger:      p.Ledger,
		auditSvc:    p.AuditSvc,
		metrics:     p.Metrics,

		txRetries:       p.Config.Billing.TxRetries,
		paymentTimeout:  p.Config.Billing.PaymentTimeout,
		reversalTimeout: p.Config.Billing.ReversalTimeout,
	}
}

func (s *Service) ApplyPayment(ctx context.Context, req paymentdomain.ApplyPaymentRequest) (result paymentdomain.ApplyPaymentResult, err error) {
	if err := money.ValidatePositive(req.Amount); err != nil {
		return paymentdomain.ApplyPaymentResult{}, fmt.Errorf("%w: %v", paymentdomain.ErrInvalidAmount, err)
	}
	method, ok := paymentdomain.ParseMethod(req.Method)
	if !ok {
		return paymentdomain.ApplyPaymentResult{}, paymentdomain.ErrInvalidMethod
	}
	reference := strings.TrimSpace(req.Reference)
	if len(reference) > maxReferenceLength {
		return paymentdomain.ApplyPaymentResult{}, paymentdomain.ErrReferenceTooLong
	}

	ctx, span := tracing.StartSpan(ctx, "payment.apply", attribute.String("invoice_id", req.InvoiceID.String()))
	defer func() { tracing.EndSpan(span, err) }()

	txCtx, cancel := withTimeout(ctx, s.paymentTimeout)
	defer cancel()

	err = dbutil.TransactionWithRetry(txCtx, s.db, s.txRetries, func(tx *gorm.DB) error {
		inv, err := s.invoiceRepo.FindByIDForUpdate(txCtx, tx, req.InvoiceID)
		if err != nil {
			return err
		}
		if inv == nil {
			return invoicedomain.ErrInvoiceNotFound
		}

		paidSoFar, err := s.repo.SumActive(txCtx, tx, inv.ID)
		if err != nil {
			return err
		}
		remaining := inv.TotalAmount.Sub(paidSoFar)
		if req.Amount.GreaterThan(remaining) {
			return fmt.Errorf("%w: amount %s exceeds remaining balance %s",
				paymentdomain.ErrExcessPayment, money.String(req.Amount), money.String(money.Max0(remaining)))
		}

		now := s.clock.Now()
		payment := paymentdomain.Payment{
			ID:                    s.genID.Generate(),
			OrgID:                 inv.OrgID,
			InvoiceID:             inv.ID,
			LeaseID:               inv.LeaseID,
			Amount:                req.Amount,
			Currency:              inv.Currency,
			Method:                method,
			Reference:             reference,
			PaidAt:                now,
			PostingStatus:         ledgerdomain.PostingStatusPending,
			ReversalPostingStatus: ledgerdomain.PostingStatusNotRequired,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		if err := s.repo.Insert(txCtx, tx, &payment); err != nil {
			return err
		}

		totalPaid := paidSoFar.Add(req.Amount)
		inv.ApplyTotalPaid(totalPaid, now)
		inv.UpdatedAt = now
		if err := s.invoiceRepo.UpdateSettlement(txCtx, tx, inv); err != nil {
			return err
		}

		if err := s.auditSvc.Record(txCtx, tx, auditdomain.Entry{
			OrgID:      inv.OrgID,
			Action:     auditdomain.ActionPaymentApplied,
			TargetType: "payment",
			TargetID:   auditservice.TargetID(payment.ID),
			Metadata: map[string]any{
				"invoice_id": inv.ID.String(),
				"amount":     money.String(payment.Amount),
				"method":     string(method),
				"reference":  reference,
				"total_paid": money.String(totalPaid),
				"status":     string(inv.Status),
			},
		}); err != nil {
			return err
		}

		result = paymentdomain.ApplyPaymentResult{
			Payment:   payment,
			Status:    inv.Status,
			TotalPaid: totalPaid,
			Remaining: inv.Balance,
		}
		return nil
	})
	if err != nil {
		s.logRejected("payment.apply.rejected", err, zap.String("invoice_id", req.InvoiceID.String()))
		return paymentdomain.ApplyPaymentResult{}, err
	}

	s.metrics.RecordPaymentEvent(ctx, string(method), "applied")
	s.log.Info("payment.applied",
		zap.String("payment_id", result.Payment.ID.String()),
		zap.String("invoice_id", req.InvoiceID.String()),
		zap.String("status", string(result.Status)),
	)

	if posted, err := s.ledger.PostPayment(ctx, result.Payment.ID); err != nil {
		s.log.Warn("payment.posting.deferred",
			zap.String("payment_id", result.Payment.ID.String()),
			zap.Error(err),
		)
	} else {
		result.Payment.PostingStatus = ledgerdomain.PostingStatusPosted
		entryID := posted.Entry.ID
		result.Payment.JournalEntryID = &entryID
	}
	return result, nil
}

func (s *Service) ReversePayment(ctx context.Context, req paymentdomain.ReversePaymentRequest) (result paymentdomain.ReversePaymentResult, err error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return paymentdomain.ReversePaymentResult{}, paymentdomain.ErrMissingReason
	}
	actor := strings.TrimSpace(req.Actor)
	if actor == "" {
		actor = auditcontext.ActorIDFromContext(ctx)
	}
	if actor == "" {
		actor = auditcontext.SystemActor
	}

	ctx, span := tracing.StartSpan(ctx, "payment.reverse", attribute.String("payment_id", req.PaymentID.String()))
	defer func() { tracing.EndSpan(span, err) }()

	// Reversal re-aggregates under contention, so it gets a longer budget.
	txCtx, cancel := withTimeout(ctx, s.reversalTimeout)
	defer cancel()

	var method paymentdomain.Method
	err = dbutil.TransactionWithRetry(txCtx, s.db, s.txRetries, func(tx *gorm.DB) error {
		// Lock the invoice before the payment, the same order ApplyPayment uses.
		current, err := s.repo.FindByID(txCtx, tx, req.PaymentID)
		if err != nil {
			return err
		}
		if current == nil {
			return paymentdomain.ErrPaymentNotFound
		}
		inv, err := s.invoiceRepo.FindByIDForUpdate(txCtx, tx, current.InvoiceID)
		if err != nil {
			return err
		}
		if inv == nil {
			return invoicedomain.ErrInvoiceNotFound
		}
		payment, err := s.repo.FindByIDForUpdate(txCtx, tx, req.PaymentID)
		if err != nil {
			return err
		}
		if payment == nil {
			return paymentdomain.ErrPaymentNotFound
		}
		if payment.IsReversed {
			return paymentdomain.ErrAlreadyReversed
		}

		now := s.clock.Now()
		payment.IsReversed = true
		payment.ReversedAt = &now
		payment.ReversedBy = &actor
		payment.ReversalReason = &reason
		payment.ReversalPostingStatus = ledgerdomain.PostingStatusPending
		payment.UpdatedAt = now
		flipped, err := s.repo.MarkReversed(txCtx, tx, payment)
		if err != nil {
			return err
		}
		if !flipped {
			return paymentdomain.ErrAlreadyReversed
		}

		previousPaid := inv.AmountPaid
		totalPaid, err := s.repo.SumActive(txCtx, tx, inv.ID)
		if err != nil {
			return err
		}
		inv.ApplyTotalPaid(totalPaid, now)
		inv.UpdatedAt = now
		if err := s.invoiceRepo.UpdateSettlement(txCtx, tx, inv); err != nil {
			return err
		}

		if err := s.auditSvc.Record(txCtx, tx, auditdomain.Entry{
			OrgID:      inv.OrgID,
			ActorID:    actor,
			Action:     auditdomain.ActionPaymentReversed,
			TargetType: "payment",
			TargetID:   auditservice.TargetID(payment.ID),
			Metadata: map[string]any{
				"invoice_id":          inv.ID.String(),
				"amount":              money.String(payment.Amount),
				"reason":              reason,
				"reference":           payment.Reference,
				"previous_total_paid": money.String(previousPaid),
				"total_paid":          money.String(totalPaid),
				"remaining":           money.String(inv.Balance),
				"status":              string(inv.Status),
			},
		}); err != nil {
			return err
		}

		method = payment.Method
		result = paymentdomain.ReversePaymentResult{
			Payment:   *payment,
			Status:    inv.Status,
			TotalPaid: totalPaid,
			Remaining: inv.Balance,
			Message: fmt.Sprintf("Payment of %s reversed. Invoice %s is %s with %s outstanding.",
				money.String(payment.Amount), inv.Number, inv.Status, money.String(inv.Balance)),
		}
		return nil
	})
	if err != nil {
		s.logRejected("payment.reverse.rejected", err, zap.String("payment_id", req.PaymentID.String()))
		return paymentdomain.ReversePaymentResult{}, err
	}

	s.metrics.RecordPaymentEvent(ctx, string(method), "reversed")
	s.log.Info("payment.reversed",
		zap.String("payment_id", req.PaymentID.String()),
		zap.String("actor_id", actor),
		zap.String("status", string(result.Status)),
	)

	if _, err := s.ledger.PostPaymentReversal(ctx, req.PaymentID); err != nil {
		s.log.Warn("payment.reversal_posting.deferred",
			zap.String("payment_id", req.PaymentID.String()),
			zap.Error(err),
		)
	} else {
		result.Payment.ReversalPostingStatus = ledgerdomain.PostingStatusPosted
	}
	return result, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (paymentdomain.Payment, error) {
	payment, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return paymentdomain.Payment{}, err
	}
	if payment == nil {
		return paymentdomain.Payment{}, paymentdomain.ErrPaymentNotFound
	}
	return *payment, nil
}

func (s *Service) ListByInvoice(ctx context.Context, invoiceID snowflake.ID) ([]paymentdomain.Payment, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, s.db, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	return s.repo.ListByInvoice(ctx, s.db, invoiceID)
}

func (s *Service) logRejected(event string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	switch {
	case errors.Is(err, paymentdomain.ErrExcessPayment),
		errors.Is(err, paymentdomain.ErrAlreadyReversed),
		errors.Is(err, paymentdomain.ErrPaymentNotFound),
		errors.Is(err, invoicedomain.ErrInvoiceNotFound):
		s.log.Info(event, fields...)
	default:
		s.log.Error(event, fields...)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

