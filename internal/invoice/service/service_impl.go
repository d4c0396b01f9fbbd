package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/rentledger/internal/clock"
	"github.com/smallbiznis/rentledger/internal/config"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	leasedomain "github.com/smallbiznis/rentledger/internal/lease/domain"
	ledgerdomain "github.com/smallbiznis/rentledger/internal/ledger/domain"
	"github.com/smallbiznis/rentledger/internal/observability/metrics"
	"github.com/smallbiznis/rentledger/internal/observability/tracing"
	utilitydomain "github.com/smallbiznis/rentledger/internal/utility/domain"
	dbutil "github.com/smallbiznis/rentledger/pkg/db"
	"github.com/smallbiznis/rentledger/pkg/db/pagination"
	"github.com/smallbiznis/rentledger/pkg/money"
	"github.com/smallbiznis/rentledger/pkg/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       invoicedomain.Repository
	LeaseSvc   leasedomain.Service
	UtilitySvc utilitydomain.Service
	Ledger     ledgerdomain.Service
	Billing    *config.BillingConfigHolder
	Metrics    *metrics.Metrics `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	repo       invoicedomain.Repository
	store      repository.Repository[invoicedomain.Invoice]
	leaseSvc   leasedomain.Service
	utilitySvc utilitydomain.Service
	ledger     ledgerdomain.Service
	billing    *config.BillingConfigHolder
	metrics    *metrics.Metrics
}

func NewService(p Params) invoicedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("invoice.service"),
		genID: p.GenID,
		clock: p.Clock,

		repo:       p.Repo,
		store:      repository.ProvideStore[invoicedomain.Invoice](p.DB),
		leaseSvc:   p.LeaseSvc,
		utilitySvc: p.UtilitySvc,
		ledger:     p.Ledger,
		billing:    p.Billing,
		metrics:    p.Metrics,
	}
}

func (s *Service) CreateRentInvoice(ctx context.Context, req invoicedomain.CreatePeriodInvoiceRequest) (invoicedomain.Invoice, error) {
	lease := req.Lease
	if err := validatePeriodRequest(req); err != nil {
		return invoicedomain.Invoice{}, err
	}
	if !lease.RentAmount.IsPositive() {
		return invoicedomain.Invoice{}, invoicedomain.ErrMissingRentAmount
	}
	if !money.HasValidScale(lease.RentAmount) {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidAmount
	}

	policy := s.billing.Get()
	inv := s.newInvoice(lease, invoicedomain.InvoiceTypeRent, req.Period, req.Period.DueDate(lease.DueDay(policy.DefaultDueDay)), req.Source)
	inv.Items = []invoicedomain.InvoiceItem{{
		Description: "Rent " + req.Period.Label(),
		Amount:      lease.RentAmount,
	}}

	if err := s.create(ctx, &inv); err != nil {
		return invoicedomain.Invoice{}, err
	}
	return inv, nil
}

func (s *Service) CreateUtilityInvoice(ctx context.Context, req invoicedomain.CreatePeriodInvoiceRequest) (invoicedomain.Invoice, error) {
	lease := req.Lease
	if err := validatePeriodRequest(req); err != nil {
		return invoicedomain.Invoice{}, err
	}

	existing, err := s.repo.FindForPeriod(ctx, s.db, lease.ID, invoicedomain.InvoiceTypeUtility, req.Period.Start)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if existing != nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrDuplicateInvoice
	}

	allocations, err := s.utilitySvc.AllocateForLease(ctx, lease.ID, req.Period)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	policy := s.billing.Get()
	inv := s.newInvoice(lease, invoicedomain.InvoiceTypeUtility, req.Period, req.Period.DueDate(lease.DueDay(policy.DefaultDueDay)), req.Source)
	inv.Items = make([]invoicedomain.InvoiceItem, 0, len(allocations))
	for _, allocation := range allocations {
		inv.Items = append(inv.Items, invoicedomain.InvoiceItem{
			Description: allocation.Description,
			Amount:      allocation.Amount,
		})
	}

	if err := s.create(ctx, &inv); err != nil {
		return invoicedomain.Invoice{}, err
	}
	return inv, nil
}

func (s *Service) CreateManualInvoice(ctx context.Context, req invoicedomain.CreateManualInvoiceRequest) (invoicedomain.Invoice, error) {
	if !req.Type.Valid() {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidInvoiceType
	}
	if err := money.ValidatePositive(req.Amount); err != nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidAmount
	}
	if req.DueDate.IsZero() {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidDueDate
	}

	lease, err := s.leaseSvc.GetByID(ctx, req.LeaseID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	dueDate := req.DueDate.UTC()
	dueDate = time.Date(dueDate.Year(), dueDate.Month(), dueDate.Day(), 0, 0, 0, 0, time.UTC)
	period := invoicedomain.BillingPeriod(req.Type, lease, dueDate)

	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = manualDescription(req.Type, period)
	}

	inv := s.newInvoice(lease, req.Type, period, dueDate, invoicedomain.SourceManual)
	inv.Items = []invoicedomain.InvoiceItem{{Description: description, Amount: req.Amount}}
	if err := s.create(ctx, &inv); err != nil {
		return invoicedomain.Invoice{}, err
	}

	// Posting runs in its own transaction; failures stay PENDING for the retry sweep.
	if _, err := s.ledger.PostInvoice(ctx, inv.ID); err != nil {
		s.log.Warn("invoice.posting.deferred",
			zap.String("invoice_id", inv.ID.String()),
			zap.Error(err),
		)
	}
	return s.GetByID(ctx, inv.ID)
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (invoicedomain.Invoice, error) {
	if id == 0 {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceNotFound
	}
	inv, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if inv == nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvoiceNotFound
	}
	items, err := s.repo.ListItems(ctx, s.db, id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	inv.Items = items
	return *inv, nil
}

func (s *Service) ListByLease(ctx context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	if req.LeaseID == 0 {
		return invoicedomain.ListInvoiceResponse{}, leasedomain.ErrLeaseNotFound
	}
	afterID, err := req.AfterID()
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}
	limit := req.Limit()

	items, err := s.store.Find(ctx,
		&invoicedomain.Invoice{LeaseID: req.LeaseID, Status: req.Status},
		repository.AfterID(afterID),
		repository.OrderBy("id asc"),
		repository.Limit(limit+1),
	)
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	page, info := pagination.BuildCursorPage(items, limit, func(inv invoicedomain.Invoice) int64 {
		return inv.ID.Int64()
	})
	return invoicedomain.ListInvoiceResponse{PageInfo: info, Invoices: page}, nil
}

func (s *Service) FindForPeriod(ctx context.Context, leaseID snowflake.ID, typ invoicedomain.InvoiceType, period leasedomain.Period) (*invoicedomain.Invoice, error) {
	return s.repo.FindForPeriod(ctx, s.db, leaseID, typ, period.Start)
}

func (s *Service) MarkOverdue(ctx context.Context, now time.Time, limit int) (int64, error) {
	updated, err := s.repo.MarkOverdue(ctx, s.db, now, limit)
	if err != nil {
		return 0, err
	}
	if updated > 0 {
		s.log.Info("invoice.overdue.marked", zap.Int64("count", updated))
	}
	return updated, nil
}

func (s *Service) newInvoice(lease leasedomain.Lease, typ invoicedomain.InvoiceType, period leasedomain.Period, dueDate time.Time, source invoicedomain.Source) invoicedomain.Invoice {
	currency := strings.ToUpper(strings.TrimSpace(lease.Currency))
	if currency == "" {
		currency = s.billing.Get().DefaultCurrency
	}
	if source == "" {
		source = invoicedomain.SourceAPI
	}
	return invoicedomain.Invoice{
		ID:          s.genID.Generate(),
		OrgID:       lease.OrgID,
		LeaseID:     lease.ID,
		Type:        typ,
		PeriodStart: period.Start.UTC(),
		PeriodEnd:   period.End.UTC(),
		Number:      "INV-" + ulid.Make().String(),
		Currency:    currency,
		DueDate:     dueDate.UTC(),
		Source:      source,
		Metadata:    datatypes.JSONMap{"period": period.Label()},
	}
}

// create finalizes totals and writes the invoice with its items in one
// transaction. The unique (lease, type, period) index backs the pre-check when
// two creators race.
func (s *Service) create(ctx context.Context, inv *invoicedomain.Invoice) (err error) {
	ctx, span := tracing.StartSpan(ctx, "invoice.create",
		attribute.String("invoice_id", inv.ID.String()),
		attribute.String("lease_id", inv.LeaseID.String()),
	)
	defer func() { tracing.EndSpan(span, err) }()

	now := s.clock.Now()
	total := decimal.Zero
	for i := range inv.Items {
		item := &inv.Items[i]
		item.ID = s.genID.Generate()
		item.InvoiceID = inv.ID
		item.Position = i + 1
		item.Amount = money.Round(item.Amount)
		if item.Amount.IsNegative() {
			return invoicedomain.ErrInvalidAmount
		}
		total = total.Add(item.Amount)
	}
	inv.TotalAmount = total
	inv.ApplyTotalPaid(decimal.Zero, now)
	inv.PostingStatus = ledgerdomain.PostingStatusPending
	if total.IsZero() {
		inv.PostingStatus = ledgerdomain.PostingStatusNotRequired
	}
	inv.CreatedAt = now
	inv.UpdatedAt = now

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindForPeriod(ctx, tx, inv.LeaseID, inv.Type, inv.PeriodStart)
		if err != nil {
			return err
		}
		if existing != nil {
			return invoicedomain.ErrDuplicateInvoice
		}
		if err := s.repo.Insert(ctx, tx, inv); err != nil {
			if dbutil.IsDuplicateKeyErr(err) {
				return invoicedomain.ErrDuplicateInvoice
			}
			return err
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, invoicedomain.ErrDuplicateInvoice) {
			s.log.Error("invoice.create.failed",
				zap.String("lease_id", inv.LeaseID.String()),
				zap.String("type", string(inv.Type)),
				zap.Error(err),
			)
		}
		return err
	}

	s.metrics.RecordInvoiceCreated(ctx, string(inv.Type), string(inv.Source))
	s.log.Info("invoice.created",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("lease_id", inv.LeaseID.String()),
		zap.String("type", string(inv.Type)),
		zap.String("period", inv.PeriodStart.Format("2006-01-02")),
		zap.String("total", money.String(inv.TotalAmount)),
	)
	return nil
}

func validatePeriodRequest(req invoicedomain.CreatePeriodInvoiceRequest) error {
	if req.Lease.ID == 0 {
		return invoicedomain.ErrInvalidLease
	}
	if req.Lease.Status != leasedomain.LeaseStatusActive {
		return leasedomain.ErrLeaseNotActive
	}
	if req.Period.Start.IsZero() || !req.Period.End.After(req.Period.Start) {
		return invoicedomain.ErrInvalidPeriod
	}
	return nil
}

func manualDescription(typ invoicedomain.InvoiceType, period leasedomain.Period) string {
	switch typ {
	case invoicedomain.InvoiceTypeUtility:
		return fmt.Sprintf("Utilities %s", period.Label())
	default:
		return fmt.Sprintf("Rent %s", period.Label())
	}
}
