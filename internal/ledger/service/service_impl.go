package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/rentledger/internal/clock"
	"github.com/smallbiznis/rentledger/internal/config"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/rentledger/internal/ledger/domain"
	"github.com/smallbiznis/rentledger/internal/observability/metrics"
	"github.com/smallbiznis/rentledger/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/rentledger/internal/payment/domain"
	dbutil "github.com/smallbiznis/rentledger/pkg/db"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const failureRecordTimeout = 5 * time.Second

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Config      config.Config
	Repo        ledgerdomain.Repository
	InvoiceRepo invoicedomain.Repository
	PaymentRepo paymentdomain.Repository
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	repo        ledgerdomain.Repository
	invoiceRepo invoicedomain.Repository
	paymentRepo paymentdomain.Repository
	metrics     *metrics.Metrics

	txRetries  int
	retryBatch int
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("ledger.service"),
		genID: p.GenID,
		clock: p.Clock,

		repo:        p.Repo,
		invoiceRepo: p.InvoiceRepo,
		paymentRepo: p.PaymentRepo,
		metrics:     p.Metrics,

		txRetries:  p.Config.Billing.TxRetries,
		retryBatch: p.Config.Billing.RetryBatchSize,
	}
}

// draft is a posting prepared while the source row is locked.
type draft struct {
	orgID      snowflake.ID
	invoiceID  snowflake.ID
	currency   string
	memo       string
	occurredAt time.Time
	lines      []draftLine
	// posted is set when the source already reached the ledger.
	posted bool
}

type draftLine struct {
	key    ledgerdomain.AccountKey
	debit  bool
	amount decimal.Decimal
	memo   string
}

type source struct {
	typ           ledgerdomain.SourceType
	id            snowflake.ID
	idAttr        string
	prepare       func(ctx context.Context, tx *gorm.DB) (draft, error)
	markPosted    func(ctx context.Context, tx *gorm.DB, entryID snowflake.ID, at time.Time) (bool, error)
	recordFailure func(ctx context.Context, db *gorm.DB, reason string) error
}

func (s *Service) PostInvoice(ctx context.Context, invoiceID snowflake.ID) (ledgerdomain.PostingResult, error) {
	return s.post(ctx, source{
		typ:    ledgerdomain.SourceTypeInvoice,
		id:     invoiceID,
		idAttr: "invoice_id",
		prepare: func(ctx context.Context, tx *gorm.DB) (draft, error) {
			return s.prepareInvoice(ctx, tx, invoiceID)
		},
		markPosted: func(ctx context.Context, tx *gorm.DB, entryID snowflake.ID, at time.Time) (bool, error) {
			return s.invoiceRepo.MarkPosted(ctx, tx, invoiceID, entryID, at)
		},
		recordFailure: func(ctx context.Context, db *gorm.DB, reason string) error {
			return s.invoiceRepo.RecordPostingFailure(ctx, db, invoiceID, reason)
		},
	})
}

func (s *Service) PostPayment(ctx context.Context, paymentID snowflake.ID) (ledgerdomain.PostingResult, error) {
	return s.post(ctx, source{
		typ:    ledgerdomain.SourceTypePayment,
		id:     paymentID,
		idAttr: "payment_id",
		prepare: func(ctx context.Context, tx *gorm.DB) (draft, error) {
			payment, err := s.lockPayment(ctx, tx, paymentID)
			if err != nil {
				return draft{}, err
			}
			d := paymentDraft(payment, "Payment "+string(payment.Method))
			d.posted = payment.PostingStatus == ledgerdomain.PostingStatusPosted
			d.lines = []draftLine{
				{key: ledgerdomain.AccountKeyCashInBank, debit: true, amount: payment.Amount},
				{key: ledgerdomain.AccountKeyAccountsReceivable, amount: payment.Amount},
			}
			return d, nil
		},
		markPosted: func(ctx context.Context, tx *gorm.DB, entryID snowflake.ID, at time.Time) (bool, error) {
			return s.paymentRepo.MarkPosted(ctx, tx, paymentID, entryID, at)
		},
		recordFailure: func(ctx context.Context, db *gorm.DB, reason string) error {
			return s.paymentRepo.RecordPostingFailure(ctx, db, paymentID, reason)
		},
	})
}

// PostPaymentReversal posts the counter-entry of a reversed payment. The
// original payment entry must already exist; it is never removed.
func (s *Service) PostPaymentReversal(ctx context.Context, paymentID snowflake.ID) (ledgerdomain.PostingResult, error) {
	return s.post(ctx, source{
		typ:    ledgerdomain.SourceTypePaymentReversal,
		id:     paymentID,
		idAttr: "payment_id",
		prepare: func(ctx context.Context, tx *gorm.DB) (draft, error) {
			payment, err := s.lockPayment(ctx, tx, paymentID)
			if err != nil {
				return draft{}, err
			}
			if !payment.IsReversed {
				return draft{}, ledgerdomain.ErrPaymentNotReversed
			}
			if payment.ReversalPostingStatus == ledgerdomain.PostingStatusPosted {
				return draft{posted: true}, nil
			}
			if payment.PostingStatus != ledgerdomain.PostingStatusPosted {
				return draft{}, ledgerdomain.ErrOriginalNotPosted
			}
			d := paymentDraft(payment, "Reversal of payment "+payment.ID.String())
			if payment.ReversedAt != nil {
				d.occurredAt = payment.ReversedAt.UTC()
			}
			d.lines = []draftLine{
				{key: ledgerdomain.AccountKeyAccountsReceivable, debit: true, amount: payment.Amount},
				{key: ledgerdomain.AccountKeyCashInBank, amount: payment.Amount},
			}
			return d, nil
		},
		markPosted: func(ctx context.Context, tx *gorm.DB, entryID snowflake.ID, at time.Time) (bool, error) {
			return s.paymentRepo.MarkReversalPosted(ctx, tx, paymentID, entryID, at)
		},
		recordFailure: func(ctx context.Context, db *gorm.DB, reason string) error {
			return s.paymentRepo.RecordPostingFailure(ctx, db, paymentID, reason)
		},
	})
}

func (s *Service) RetryPending(ctx context.Context, limit int) (ledgerdomain.RetryResult, error) {
	if limit <= 0 {
		limit = s.retryBatch
	}
	var result ledgerdomain.RetryResult
	track := func(kind string, id snowflake.ID, err error) {
		result.Attempted++
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s %s: %v", kind, id, err))
			return
		}
		result.Posted++
	}

	invoices, err := s.invoiceRepo.ListPendingPosting(ctx, s.db, limit)
	if err != nil {
		return result, err
	}
	for _, inv := range invoices {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		_, err := s.PostInvoice(ctx, inv.ID)
		track("invoice", inv.ID, err)
	}

	// Payments go before reversals so a reversal can follow its original in
	// the same sweep.
	payments, err := s.paymentRepo.ListPendingPosting(ctx, s.db, limit)
	if err != nil {
		return result, err
	}
	for _, payment := range payments {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		_, err := s.PostPayment(ctx, payment.ID)
		track("payment", payment.ID, err)
	}

	reversals, err := s.paymentRepo.ListPendingReversalPosting(ctx, s.db, limit)
	if err != nil {
		return result, err
	}
	for _, payment := range reversals {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		_, err := s.PostPaymentReversal(ctx, payment.ID)
		track("payment_reversal", payment.ID, err)
	}

	s.log.Info("ledger.retry.finish",
		zap.Int("attempted", result.Attempted),
		zap.Int("posted", result.Posted),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *Service) post(ctx context.Context, src source) (result ledgerdomain.PostingResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "ledger.post",
		attribute.String("source_type", string(src.typ)),
		attribute.String(src.idAttr, src.id.String()),
	)
	defer func() { tracing.EndSpan(span, err) }()

	err = dbutil.TransactionWithRetry(ctx, s.db, s.txRetries, func(tx *gorm.DB) error {
		result = ledgerdomain.PostingResult{}

		d, err := src.prepare(ctx, tx)
		if err != nil {
			return err
		}
		if d.posted {
			existing, err := s.repo.FindEntryBySource(ctx, tx, src.typ, src.id)
			if err != nil {
				return err
			}
			if existing == nil {
				return fmt.Errorf("%w: %s %s marked posted without entry", ledgerdomain.ErrSourceNotFound, src.typ, src.id)
			}
			result = ledgerdomain.PostingResult{Entry: *existing, AlreadyPosted: true}
			return nil
		}

		entry, err := s.buildEntry(ctx, tx, src, d)
		if err != nil {
			return err
		}

		inserted, err := s.repo.InsertEntry(ctx, tx, &entry)
		if err != nil {
			return err
		}
		if !inserted {
			existing, err := s.repo.FindEntryBySource(ctx, tx, src.typ, src.id)
			if err != nil {
				return err
			}
			if existing == nil {
				return fmt.Errorf("%w: %s %s", ledgerdomain.ErrSourceNotFound, src.typ, src.id)
			}
			if _, err := src.markPosted(ctx, tx, existing.ID, entry.CreatedAt); err != nil {
				return err
			}
			result = ledgerdomain.PostingResult{Entry: *existing, AlreadyPosted: true}
			return nil
		}

		if err := s.repo.InsertLines(ctx, tx, entry.Lines); err != nil {
			return err
		}
		if _, err := src.markPosted(ctx, tx, entry.ID, entry.CreatedAt); err != nil {
			return err
		}
		result = ledgerdomain.PostingResult{Entry: entry}
		return nil
	})
	if err != nil {
		s.recordFailure(ctx, src, err)
		return ledgerdomain.PostingResult{}, err
	}

	if !result.AlreadyPosted {
		s.metrics.RecordLedgerEntry(ctx, string(src.typ))
		s.log.Info("ledger.posting.posted",
			zap.String("source_type", string(src.typ)),
			zap.String("source_id", src.id.String()),
			zap.String("entry_id", result.Entry.ID.String()),
		)
	}
	return result, nil
}

func (s *Service) buildEntry(ctx context.Context, tx *gorm.DB, src source, d draft) (ledgerdomain.JournalEntry, error) {
	entity, err := s.repo.FindEntityByOrg(ctx, tx, d.orgID)
	if err != nil {
		return ledgerdomain.JournalEntry{}, err
	}
	if entity == nil {
		return ledgerdomain.JournalEntry{}, fmt.Errorf("%w: org %s", ledgerdomain.ErrEntityNotFound, d.orgID)
	}
	if d.currency != "" && d.currency != entity.Currency {
		return ledgerdomain.JournalEntry{}, fmt.Errorf("%w: %s vs %s", ledgerdomain.ErrCurrencyMismatch, d.currency, entity.Currency)
	}

	keys := make([]ledgerdomain.AccountKey, 0, len(d.lines))
	for _, line := range d.lines {
		keys = append(keys, line.key)
	}
	accounts, err := s.repo.FindAccountsByKeys(ctx, tx, entity.ID, keys)
	if err != nil {
		return ledgerdomain.JournalEntry{}, err
	}
	byKey := make(map[ledgerdomain.AccountKey]snowflake.ID, len(accounts))
	for _, account := range accounts {
		byKey[account.Key] = account.ID
	}

	now := s.clock.Now()
	entry := ledgerdomain.JournalEntry{
		ID:         s.genID.Generate(),
		EntityID:   entity.ID,
		SourceType: src.typ,
		SourceID:   src.id,
		InvoiceID:  d.invoiceID,
		Currency:   entity.Currency,
		Memo:       d.memo,
		OccurredAt: d.occurredAt,
		CreatedAt:  now,
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = now
	}

	lines := make([]ledgerdomain.JournalLine, 0, len(d.lines))
	for _, dl := range d.lines {
		accountID, ok := byKey[dl.key]
		if !ok {
			return ledgerdomain.JournalEntry{}, fmt.Errorf("%w: %s", ledgerdomain.ErrAccountNotFound, dl.key)
		}
		line := ledgerdomain.CreditLine(accountID, dl.amount, dl.memo)
		if dl.debit {
			line = ledgerdomain.DebitLine(accountID, dl.amount, dl.memo)
		}
		line.ID = s.genID.Generate()
		line.EntryID = entry.ID
		line.CreatedAt = now
		lines = append(lines, line)
	}
	if err := ledgerdomain.ValidateBalanced(lines); err != nil {
		return ledgerdomain.JournalEntry{}, err
	}
	entry.Lines = lines
	return entry, nil
}

func (s *Service) prepareInvoice(ctx context.Context, tx *gorm.DB, invoiceID snowflake.ID) (draft, error) {
	inv, err := s.invoiceRepo.FindByIDForUpdate(ctx, tx, invoiceID)
	if err != nil {
		return draft{}, err
	}
	if inv == nil {
		return draft{}, fmt.Errorf("%w: %w", ledgerdomain.ErrSourceNotFound, invoicedomain.ErrInvoiceNotFound)
	}
	switch inv.PostingStatus {
	case ledgerdomain.PostingStatusPosted:
		return draft{posted: true}, nil
	case ledgerdomain.PostingStatusNotRequired:
		return draft{}, ledgerdomain.ErrNothingToPost
	}

	d := draft{
		orgID:      inv.OrgID,
		invoiceID:  inv.ID,
		currency:   inv.Currency,
		memo:       fmt.Sprintf("Invoice %s", inv.Number),
		occurredAt: inv.CreatedAt,
		lines: []draftLine{{
			key:    ledgerdomain.AccountKeyAccountsReceivable,
			debit:  true,
			amount: inv.TotalAmount,
		}},
	}

	switch inv.Type {
	case invoicedomain.InvoiceTypeUtility:
		items, err := s.invoiceRepo.ListItems(ctx, tx, inv.ID)
		if err != nil {
			return draft{}, err
		}
		for _, item := range items {
			if item.Amount.IsZero() {
				continue
			}
			d.lines = append(d.lines, draftLine{
				key:    ledgerdomain.AccountKeyUtilityIncome,
				amount: item.Amount,
				memo:   item.Description,
			})
		}
	default:
		d.lines = append(d.lines, draftLine{
			key:    ledgerdomain.AccountKeyRentalIncome,
			amount: inv.TotalAmount,
		})
	}
	return d, nil
}

func (s *Service) lockPayment(ctx context.Context, tx *gorm.DB, paymentID snowflake.ID) (*paymentdomain.Payment, error) {
	payment, err := s.paymentRepo.FindByIDForUpdate(ctx, tx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, fmt.Errorf("%w: %w", ledgerdomain.ErrSourceNotFound, paymentdomain.ErrPaymentNotFound)
	}
	return payment, nil
}

func paymentDraft(payment *paymentdomain.Payment, memo string) draft {
	return draft{
		orgID:      payment.OrgID,
		invoiceID:  payment.InvoiceID,
		currency:   payment.Currency,
		memo:       memo,
		occurredAt: payment.PaidAt,
	}
}

// recordFailure bumps the attempt counter outside the failed transaction so
// the retry sweep can see it, even when ctx has already expired.
func (s *Service) recordFailure(ctx context.Context, src source, cause error) {
	log := s.log.With(
		zap.String("source_type", string(src.typ)),
		zap.String("source_id", src.id.String()),
	)
	if errors.Is(cause, ledgerdomain.ErrNothingToPost) || errors.Is(cause, ledgerdomain.ErrSourceNotFound) {
		log.Debug("ledger.posting.skipped", zap.Error(cause))
		return
	}

	s.metrics.RecordPostingFailure(ctx, string(src.typ))
	log.Warn("ledger.posting.failed", zap.Error(cause))

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureRecordTimeout)
	defer cancel()
	if err := src.recordFailure(recordCtx, s.db, truncate(cause.Error(), 500)); err != nil {
		log.Error("ledger.posting.record_failure_failed", zap.Error(err))
	}
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
