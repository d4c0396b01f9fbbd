package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AccountTotals are the raw debit and credit sums of one account.
type AccountTotals struct {
	AccountID    snowflake.ID
	TotalDebits  decimal.Decimal
	TotalCredits decimal.Decimal
}

type Repository interface {
	FindEntityByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*FinancialEntity, error)
	FindEntityByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*FinancialEntity, error)
	// InsertEntity is a no-op returning false when the org already has an entity.
	InsertEntity(ctx context.Context, db *gorm.DB, entity *FinancialEntity) (bool, error)

	FindAccountByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Account, error)
	FindAccountsByKeys(ctx context.Context, db *gorm.DB, entityID snowflake.ID, keys []AccountKey) ([]Account, error)
	ListAccounts(ctx context.Context, db *gorm.DB, entityID snowflake.ID) ([]Account, error)
	// InsertAccount is a no-op returning false when the code or key is taken.
	InsertAccount(ctx context.Context, db *gorm.DB, account *Account) (bool, error)

	// InsertEntry is a no-op returning false when the source already has an entry.
	InsertEntry(ctx context.Context, db *gorm.DB, entry *JournalEntry) (bool, error)
	InsertLines(ctx context.Context, db *gorm.DB, lines []JournalLine) error
	FindEntryBySource(ctx context.Context, db *gorm.DB, sourceType SourceType, sourceID snowflake.ID) (*JournalEntry, error)
	SumByAccount(ctx context.Context, db *gorm.DB, accountIDs []snowflake.ID) ([]AccountTotals, error)
}
