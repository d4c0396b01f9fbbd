package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	leasedomain "github.com/smallbiznis/rentledger/internal/lease/domain"
	"github.com/smallbiznis/rentledger/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, inv *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	// FindByIDForUpdate locks the row until the surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindForPeriod(ctx context.Context, db *gorm.DB, leaseID snowflake.ID, typ InvoiceType, periodStart time.Time) (*Invoice, error)
	ListItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]InvoiceItem, error)
	UpdateSettlement(ctx context.Context, db *gorm.DB, inv *Invoice) error
	// ListPendingPosting returns invoices still waiting for the ledger, oldest first.
	ListPendingPosting(ctx context.Context, db *gorm.DB, limit int) ([]Invoice, error)
	MarkPosted(ctx context.Context, db *gorm.DB, id, entryID snowflake.ID, at time.Time) (bool, error)
	RecordPostingFailure(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string) error
	// MarkOverdue compares due dates against the UTC date of now and stamps
	// updated_at with now.
	MarkOverdue(ctx context.Context, db *gorm.DB, now time.Time, limit int) (int64, error)
}

type Service interface {
	CreateRentInvoice(ctx context.Context, req CreatePeriodInvoiceRequest) (Invoice, error)
	CreateUtilityInvoice(ctx context.Context, req CreatePeriodInvoiceRequest) (Invoice, error)
	// CreateManualInvoice commits the invoice and then posts it in a separate
	// transaction. A posting failure leaves the invoice PENDING for the retry
	// sweep and is not returned.
	CreateManualInvoice(ctx context.Context, req CreateManualInvoiceRequest) (Invoice, error)
	GetByID(ctx context.Context, id snowflake.ID) (Invoice, error)
	ListByLease(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)
	FindForPeriod(ctx context.Context, leaseID snowflake.ID, typ InvoiceType, period leasedomain.Period) (*Invoice, error)
	// MarkOverdue moves unpaid PENDING invoices past their due date to OVERDUE.
	MarkOverdue(ctx context.Context, now time.Time, limit int) (int64, error)
}

type CreatePeriodInvoiceRequest struct {
	Lease  leasedomain.Lease
	Period leasedomain.Period
	Source Source
}

type CreateManualInvoiceRequest struct {
	LeaseID     snowflake.ID
	Type        InvoiceType
	Amount      decimal.Decimal
	DueDate     time.Time
	Description string
}

type ListInvoiceRequest struct {
	LeaseID snowflake.ID
	Status  InvoiceStatus
	pagination.Pagination
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

var (
	ErrInvoiceNotFound     = errors.New("invoice_not_found")
	ErrDuplicateInvoice    = errors.New("duplicate_invoice")
	ErrInvalidInvoiceType  = errors.New("invalid_invoice_type")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidDueDate      = errors.New("invalid_due_date")
	ErrInvalidPeriod       = errors.New("invalid_period")
	ErrMissingRentAmount   = errors.New("missing_rent_amount")
	ErrInvalidLease        = errors.New("invalid_lease")
	ErrCurrencyUnsupported = errors.New("currency_unsupported")
)
