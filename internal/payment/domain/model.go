package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/rentledger/internal/ledger/domain"
)

type Method string

const (
	MethodCash         Method = "CASH"
	MethodBankTransfer Method = "BANK_TRANSFER"
	MethodMobileMoney  Method = "MOBILE_MONEY"
	MethodCheque       Method = "CHEQUE"
	MethodCard         Method = "CARD"
)

// ParseMethod normalizes a method name; the second result is false for
// unknown methods.
func ParseMethod(raw string) (Method, bool) {
	m := Method(strings.ToUpper(strings.TrimSpace(raw)))
	switch m {
	case MethodCash, MethodBankTransfer, MethodMobileMoney, MethodCheque, MethodCard:
		return m, true
	}
	return "", false
}

// Payment is a remittance against one invoice. Reversal is a terminal flag;
// payments are never deleted.
type Payment struct {
	ID        snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID    `gorm:"not null;index" json:"org_id"`
	InvoiceID snowflake.ID    `gorm:"not null;index" json:"invoice_id"`
	LeaseID   snowflake.ID    `gorm:"not null;index" json:"lease_id"`
	Amount    decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"amount"`
	Currency  string          `gorm:"type:varchar(3);not null" json:"currency"`
	Method    Method          `gorm:"type:varchar(32);not null" json:"method"`
	Reference string          `gorm:"type:varchar(128)" json:"reference,omitempty"`
	PaidAt    time.Time       `gorm:"not null" json:"paid_at"`

	IsReversed     bool       `gorm:"not null;default:false;index" json:"is_reversed"`
	ReversedAt     *time.Time `json:"reversed_at,omitempty"`
	ReversedBy     *string    `gorm:"type:varchar(128)" json:"reversed_by,omitempty"`
	ReversalReason *string    `gorm:"type:text" json:"reversal_reason,omitempty"`

	PostingStatus         ledgerdomain.PostingStatus `gorm:"type:varchar(16);not null;index" json:"posting_status"`
	JournalEntryID        *snowflake.ID              `json:"journal_entry_id,omitempty"`
	ReversalPostingStatus ledgerdomain.PostingStatus `gorm:"type:varchar(16);not null;index" json:"reversal_posting_status"`
	ReversalEntryID       *snowflake.ID              `json:"reversal_entry_id,omitempty"`
	PostingAttempts       int                        `gorm:"not null;default:0" json:"posting_attempts"`
	LastPostingError      string                     `gorm:"type:text" json:"last_posting_error,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Payment) TableName() string { return "payments" }
