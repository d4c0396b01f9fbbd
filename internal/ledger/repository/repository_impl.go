package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/internal/ledger/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindEntityByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.FinancialEntity, error) {
	var entity domain.FinancialEntity
	return firstOrNil(&entity, db.WithContext(ctx).Where("id = ?", id).First(&entity).Error)
}

func (r *repo) FindEntityByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*domain.FinancialEntity, error) {
	var entity domain.FinancialEntity
	return firstOrNil(&entity, db.WithContext(ctx).Where("org_id = ?", orgID).First(&entity).Error)
}

func (r *repo) InsertEntity(ctx context.Context, db *gorm.DB, entity *domain.FinancialEntity) (bool, error) {
	return insertIgnoringConflict(ctx, db, entity, "org_id")
}

func (r *repo) FindAccountByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Account, error) {
	var account domain.Account
	return firstOrNil(&account, db.WithContext(ctx).Where("id = ?", id).First(&account).Error)
}

func (r *repo) FindAccountsByKeys(ctx context.Context, db *gorm.DB, entityID snowflake.ID, keys []domain.AccountKey) ([]domain.Account, error) {
	var accounts []domain.Account
	err := db.WithContext(ctx).
		Where("entity_id = ? AND account_key IN ?", entityID, keys).
		Find(&accounts).Error
	return accounts, err
}

func (r *repo) ListAccounts(ctx context.Context, db *gorm.DB, entityID snowflake.ID) ([]domain.Account, error) {
	var accounts []domain.Account
	err := db.WithContext(ctx).
		Where("entity_id = ?", entityID).
		Order("code asc").
		Find(&accounts).Error
	return accounts, err
}

func (r *repo) InsertAccount(ctx context.Context, db *gorm.DB, account *domain.Account) (bool, error) {
	return insertIgnoringConflict(ctx, db, account)
}

// InsertEntry reports false when the source document already has an entry.
// Lines are written separately by InsertLines.
func (r *repo) InsertEntry(ctx context.Context, db *gorm.DB, entry *domain.JournalEntry) (bool, error) {
	return insertIgnoringConflict(ctx, db, entry, "source_type", "source_id")
}

// insertIgnoringConflict inserts value and reports whether a row was written.
// The dialect renders the clause: ON CONFLICT DO NOTHING on postgres and
// sqlite, ON DUPLICATE KEY UPDATE on mysql.
func insertIgnoringConflict(ctx context.Context, db *gorm.DB, value any, columns ...string) (bool, error) {
	onConflict := clause.OnConflict{DoNothing: true}
	for _, name := range columns {
		onConflict.Columns = append(onConflict.Columns, clause.Column{Name: name})
	}
	res := db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(onConflict).
		Create(value)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) InsertLines(ctx context.Context, db *gorm.DB, lines []domain.JournalLine) error {
	if len(lines) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&lines).Error
}

func (r *repo) FindEntryBySource(ctx context.Context, db *gorm.DB, sourceType domain.SourceType, sourceID snowflake.ID) (*domain.JournalEntry, error) {
	var entry domain.JournalEntry
	err := db.WithContext(ctx).
		Preload("Lines", func(tx *gorm.DB) *gorm.DB { return tx.Order("id asc") }).
		Where("source_type = ? AND source_id = ?", sourceType, sourceID).
		First(&entry).Error
	return firstOrNil(&entry, err)
}

func (r *repo) SumByAccount(ctx context.Context, db *gorm.DB, accountIDs []snowflake.ID) ([]domain.AccountTotals, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}
	var totals []domain.AccountTotals
	err := db.WithContext(ctx).
		Model(&domain.JournalLine{}).
		Select("account_id, COALESCE(SUM(debit), 0) AS total_debits, COALESCE(SUM(credit), 0) AS total_credits").
		Where("account_id IN ?", accountIDs).
		Group("account_id").
		Scan(&totals).Error
	return totals, err
}

func firstOrNil[T any](row *T, err error) (*T, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}
