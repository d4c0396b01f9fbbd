package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/rentledger/internal/ledger/domain"
	"gorm.io/datatypes"
)

type InvoiceType string

const (
	InvoiceTypeRent    InvoiceType = "RENT"
	InvoiceTypeUtility InvoiceType = "UTILITY"
)

func (t InvoiceType) Valid() bool {
	return t == InvoiceTypeRent || t == InvoiceTypeUtility
}

type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "PENDING"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusOverdue InvoiceStatus = "OVERDUE"
)

// Source records which path created an invoice.
type Source string

const (
	SourceBillingCycle Source = "billing_cycle"
	SourceManual       Source = "manual"
	SourceAPI          Source = "api"
)

// Invoice is a billable obligation of one lease for one billing window. At most
// one invoice exists per (lease, type, period start).
type Invoice struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID    `gorm:"not null;index" json:"org_id"`
	LeaseID     snowflake.ID    `gorm:"not null;uniqueIndex:ux_invoices_lease_type_period,priority:1" json:"lease_id"`
	Type        InvoiceType     `gorm:"type:varchar(16);not null;uniqueIndex:ux_invoices_lease_type_period,priority:2" json:"type"`
	PeriodStart time.Time       `gorm:"not null;uniqueIndex:ux_invoices_lease_type_period,priority:3" json:"period_start"`
	PeriodEnd   time.Time       `gorm:"not null" json:"period_end"`
	Number      string          `gorm:"type:varchar(40);not null;uniqueIndex" json:"number"`
	Currency    string          `gorm:"type:varchar(3);not null" json:"currency"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"total_amount"`
	AmountPaid  decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"amount_paid"`
	Balance     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"balance"`
	DueDate     time.Time       `gorm:"not null;index" json:"due_date"`
	Status      InvoiceStatus   `gorm:"type:varchar(16);not null;index" json:"status"`

	PostingStatus    ledgerdomain.PostingStatus `gorm:"type:varchar(16);not null;index" json:"posting_status"`
	JournalEntryID   *snowflake.ID              `json:"journal_entry_id,omitempty"`
	PostingAttempts  int                        `gorm:"not null;default:0" json:"posting_attempts"`
	LastPostingError string                     `gorm:"type:text" json:"last_posting_error,omitempty"`
	PostedAt         *time.Time                 `json:"posted_at,omitempty"`

	PaidAt    *time.Time        `json:"paid_at,omitempty"`
	Source    Source            `gorm:"type:varchar(32);not null" json:"source"`
	Metadata  datatypes.JSONMap `gorm:"type:json" json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null" json:"updated_at"`

	Items []InvoiceItem `gorm:"foreignKey:InvoiceID" json:"items,omitempty"`
}

func (Invoice) TableName() string { return "invoices" }

// InvoiceItem is a line of an invoice. Items are written in the same
// transaction as their invoice and never change afterwards.
type InvoiceItem struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceID   snowflake.ID    `gorm:"not null;index" json:"invoice_id"`
	Position    int             `gorm:"not null" json:"position"`
	Description string          `gorm:"type:text;not null" json:"description"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"amount"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
}

func (InvoiceItem) TableName() string { return "invoice_items" }
