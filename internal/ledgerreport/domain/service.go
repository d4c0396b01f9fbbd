package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/rentledger/internal/ledger/domain"
)

type AccountBalance struct {
	AccountID    snowflake.ID             `json:"account_id"`
	AccountCode  string                   `json:"account_code"`
	AccountName  string                   `json:"account_name"`
	Type         ledgerdomain.AccountType `json:"type"`
	Balance      decimal.Decimal          `json:"balance"`
	TotalDebits  decimal.Decimal          `json:"total_debits"`
	TotalCredits decimal.Decimal          `json:"total_credits"`
}

type Ledger struct {
	EntityID snowflake.ID     `json:"entity_id"`
	Currency string           `json:"currency"`
	Accounts []AccountBalance `json:"accounts"`
}

type Summary struct {
	CashInBank         decimal.Decimal `json:"cash_in_bank"`
	OutstandingArrears decimal.Decimal `json:"outstanding_arrears"`
	Currency           string          `json:"currency"`
}

// Service is the read side of the ledger. It only reads committed journal
// lines and never writes.
type Service interface {
	ComputeAccountBalance(ctx context.Context, accountID snowflake.ID) (AccountBalance, error)
	// ComputeLedger returns every account of the entity ordered by code. An
	// unknown entity or one without accounts yields an empty ledger.
	ComputeLedger(ctx context.Context, entityID snowflake.ID) (Ledger, error)
	ComputeSummary(ctx context.Context, entityID snowflake.ID) (Summary, error)
}
