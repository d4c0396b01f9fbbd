package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)
	ListByInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]Payment, error)
	// SumActive re-aggregates the non-reversed payments of an invoice.
	SumActive(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (decimal.Decimal, error)
	// MarkReversed flips the reversal flag; false means it was already set.
	MarkReversed(ctx context.Context, db *gorm.DB, payment *Payment) (bool, error)

	ListPendingPosting(ctx context.Context, db *gorm.DB, limit int) ([]Payment, error)
	ListPendingReversalPosting(ctx context.Context, db *gorm.DB, limit int) ([]Payment, error)
	MarkPosted(ctx context.Context, db *gorm.DB, id, entryID snowflake.ID, at time.Time) (bool, error)
	MarkReversalPosted(ctx context.Context, db *gorm.DB, id, entryID snowflake.ID, at time.Time) (bool, error)
	RecordPostingFailure(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string) error
}

type Service interface {
	ApplyPayment(ctx context.Context, req ApplyPaymentRequest) (ApplyPaymentResult, error)
	ReversePayment(ctx context.Context, req ReversePaymentRequest) (ReversePaymentResult, error)
	GetByID(ctx context.Context, id snowflake.ID) (Payment, error)
	ListByInvoice(ctx context.Context, invoiceID snowflake.ID) ([]Payment, error)
}

type ApplyPaymentRequest struct {
	InvoiceID snowflake.ID
	Amount    decimal.Decimal
	Method    string
	Reference string
}

type ApplyPaymentResult struct {
	Payment   Payment                     `json:"payment"`
	Status    invoicedomain.InvoiceStatus `json:"status"`
	TotalPaid decimal.Decimal             `json:"total_paid"`
	Remaining decimal.Decimal             `json:"remaining"`
}

type ReversePaymentRequest struct {
	PaymentID snowflake.ID
	Reason    string
	// Actor falls back to the actor on the request context.
	Actor string
}

type ReversePaymentResult struct {
	Payment   Payment                     `json:"payment"`
	Status    invoicedomain.InvoiceStatus `json:"status"`
	TotalPaid decimal.Decimal             `json:"total_paid"`
	Remaining decimal.Decimal             `json:"remaining"`
	Message   string                      `json:"message"`
}

var (
	ErrPaymentNotFound  = errors.New("payment_not_found")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrInvalidMethod    = errors.New("invalid_payment_method")
	ErrMissingReason    = errors.New("missing_reversal_reason")
	ErrExcessPayment    = errors.New("excess_payment")
	ErrAlreadyReversed  = errors.New("already_reversed")
	ErrReferenceTooLong = errors.New("reference_too_long")
)
