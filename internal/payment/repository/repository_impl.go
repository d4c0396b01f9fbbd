package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/rentledger/internal/ledger/domain"
	"github.com/smallbiznis/rentledger/internal/payment/domain"
	"github.com/smallbiznis/rentledger/pkg/money"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Create(payment).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	return first(db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	return first(db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

func first(stmt *gorm.DB) (*domain.Payment, error) {
	var payment domain.Payment
	err := stmt.First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repo) ListByInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]domain.Payment, error) {
	var payments []domain.Payment
	err := db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("id asc").
		Find(&payments).Error
	return payments, err
}

// SumActive adds amounts in decimal rather than SQL SUM so drivers without an
// exact numeric type still produce an exact total.
func (r *repo) SumActive(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	err := db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("invoice_id = ? AND is_reversed = ?", invoiceID, false).
		Pluck("amount", &amounts).Error
	if err != nil {
		return decimal.Zero, err
	}
	return money.Sum(amounts...), nil
}

func (r *repo) MarkReversed(ctx context.Context, db *gorm.DB, payment *domain.Payment) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("id = ? AND is_reversed = ?", payment.ID, false).
		Updates(map[string]any{
			"is_reversed":             true,
			"reversed_at":             payment.ReversedAt,
			"reversed_by":             payment.ReversedBy,
			"reversal_reason":         payment.ReversalReason,
			"reversal_posting_status": payment.ReversalPostingStatus,
			"updated_at":              payment.UpdatedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ListPendingPosting(ctx context.Context, db *gorm.DB, limit int) ([]domain.Payment, error) {
	return listByColumn(ctx, db, "posting_status", limit)
}

func (r *repo) ListPendingReversalPosting(ctx context.Context, db *gorm.DB, limit int) ([]domain.Payment, error) {
	return listByColumn(ctx, db, "reversal_posting_status", limit)
}

func listByColumn(ctx context.Context, db *gorm.DB, column string, limit int) ([]domain.Payment, error) {
	var payments []domain.Payment
	stmt := db.WithContext(ctx).
		Where(column+" = ?", ledgerdomain.PostingStatusPending).
		Order("id asc")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	err := stmt.Find(&payments).Error
	return payments, err
}

func (r *repo) MarkPosted(ctx context.Context, db *gorm.DB, id, entryID snowflake.ID, at time.Time) (bool, error) {
	return markPosted(ctx, db, id, "posting_status", "journal_entry_id", entryID, at)
}

func (r *repo) MarkReversalPosted(ctx context.Context, db *gorm.DB, id, entryID snowflake.ID, at time.Time) (bool, error) {
	return markPosted(ctx, db, id, "reversal_posting_status", "reversal_entry_id", entryID, at)
}

func markPosted(ctx context.Context, db *gorm.DB, id snowflake.ID, statusColumn, entryColumn string, entryID snowflake.ID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("id = ? AND "+statusColumn+" = ?", id, ledgerdomain.PostingStatusPending).
		Updates(map[string]any{
			statusColumn:         ledgerdomain.PostingStatusPosted,
			entryColumn:          entryID,
			"last_posting_error": "",
			"updated_at":         at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) RecordPostingFailure(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string) error {
	return db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"posting_attempts":   gorm.Expr("posting_attempts + 1"),
			"last_posting_error": reason,
		}).Error
}
