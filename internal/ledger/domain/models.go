package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeIncome    AccountType = "INCOME"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// DebitNormal reports whether the account type grows with debits.
func (t AccountType) DebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeIncome, AccountTypeExpense:
		return true
	}
	return false
}

// Balance applies the normal-balance sign rule to raw totals.
func (t AccountType) Balance(totalDebits, totalCredits decimal.Decimal) decimal.Decimal {
	if t.DebitNormal() {
		return totalDebits.Sub(totalCredits)
	}
	return totalCredits.Sub(totalDebits)
}

// AccountKey is the stable, code-independent handle of a well-known account.
type AccountKey string

const (
	AccountKeyCashInBank         AccountKey = "cash-in-bank"
	AccountKeyAccountsReceivable AccountKey = "accounts-receivable"
	AccountKeyRentalIncome       AccountKey = "rental-income"
	AccountKeyUtilityIncome      AccountKey = "utility-income"
)

type SourceType string

const (
	SourceTypeInvoice         SourceType = "invoice"
	SourceTypePayment         SourceType = "payment"
	SourceTypePaymentReversal SourceType = "payment_reversal"
)

// PostingStatus tracks whether a document has reached the ledger.
type PostingStatus string

const (
	PostingStatusPending     PostingStatus = "PENDING"
	PostingStatusPosted      PostingStatus = "POSTED"
	PostingStatusNotRequired PostingStatus = "NOT_REQUIRED"
)

// FinancialEntity is the root ledger scope, one per organization.
type FinancialEntity struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;uniqueIndex" json:"org_id"`
	Name      string       `gorm:"type:varchar(128);not null" json:"name"`
	Currency  string       `gorm:"type:varchar(3);not null" json:"currency"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
}

func (FinancialEntity) TableName() string { return "financial_entities" }

// Account is a chart-of-accounts entry.
type Account struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	EntityID  snowflake.ID `gorm:"not null;uniqueIndex:ux_accounts_entity_code,priority:1;uniqueIndex:ux_accounts_entity_key,priority:1" json:"entity_id"`
	Code      string       `gorm:"type:varchar(16);not null;uniqueIndex:ux_accounts_entity_code,priority:2" json:"code"`
	Key       AccountKey   `gorm:"column:account_key;type:varchar(64);not null;uniqueIndex:ux_accounts_entity_key,priority:2" json:"key"`
	Name      string       `gorm:"type:varchar(128);not null" json:"name"`
	Type      AccountType  `gorm:"type:varchar(16);not null" json:"type"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
}

func (Account) TableName() string { return "accounts" }

// JournalEntry is the immutable header of one balanced posting.
type JournalEntry struct {
	ID         snowflake.ID  `gorm:"primaryKey" json:"id"`
	EntityID   snowflake.ID  `gorm:"not null;index" json:"entity_id"`
	SourceType SourceType    `gorm:"type:varchar(32);not null;uniqueIndex:ux_journal_entries_source,priority:1" json:"source_type"`
	SourceID   snowflake.ID  `gorm:"not null;uniqueIndex:ux_journal_entries_source,priority:2" json:"source_id"`
	InvoiceID  snowflake.ID  `gorm:"not null;index" json:"invoice_id"`
	Currency   string        `gorm:"type:varchar(3);not null" json:"currency"`
	Memo       string        `gorm:"type:text" json:"memo,omitempty"`
	OccurredAt time.Time     `gorm:"not null" json:"occurred_at"`
	CreatedAt  time.Time     `gorm:"not null" json:"created_at"`
	Lines      []JournalLine `gorm:"foreignKey:EntryID" json:"lines,omitempty"`
}

func (JournalEntry) TableName() string { return "journal_entries" }

// JournalLine is one debit or credit row. Exactly one of Debit or Credit is
// non-zero.
type JournalLine struct {
	ID        snowflake.ID    `gorm:"primaryKey" json:"id"`
	EntryID   snowflake.ID    `gorm:"not null;index" json:"entry_id"`
	AccountID snowflake.ID    `gorm:"not null;index" json:"account_id"`
	Debit     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"debit"`
	Credit    decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"credit"`
	Memo      string          `gorm:"type:text" json:"memo,omitempty"`
	CreatedAt time.Time       `gorm:"not null" json:"created_at"`
}

func (JournalLine) TableName() string { return "journal_lines" }

// DebitLine and CreditLine build posting lines.
func DebitLine(accountID snowflake.ID, amount decimal.Decimal, memo string) JournalLine {
	return JournalLine{AccountID: accountID, Debit: amount, Credit: decimal.Zero, Memo: memo}
}

func CreditLine(accountID snowflake.ID, amount decimal.Decimal, memo string) JournalLine {
	return JournalLine{AccountID: accountID, Debit: decimal.Zero, Credit: amount, Memo: memo}
}
