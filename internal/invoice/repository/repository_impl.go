package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/rentledger/internal/ledger/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, inv *domain.Invoice) error {
	if err := db.WithContext(ctx).Omit("Items").Create(inv).Error; err != nil {
		return err
	}
	if len(inv.Items) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&inv.Items).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	return r.first(db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	return r.first(db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

func (r *repo) FindForPeriod(ctx context.Context, db *gorm.DB, leaseID snowflake.ID, typ domain.InvoiceType, periodStart time.Time) (*domain.Invoice, error) {
	return r.first(db.WithContext(ctx).
		Where("lease_id = ? AND type = ? AND period_start = ?", leaseID, typ, periodStart.UTC()))
}

func (r *repo) first(stmt *gorm.DB) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := stmt.First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *repo) ListItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]domain.InvoiceItem, error) {
	var items []domain.InvoiceItem
	err := db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("position asc").
		Find(&items).Error
	return items, err
}

func (r *repo) UpdateSettlement(ctx context.Context, db *gorm.DB, inv *domain.Invoice) error {
	return db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("id = ?", inv.ID).
		Updates(map[string]any{
			"amount_paid": inv.AmountPaid,
			"balance":     inv.Balance,
			"status":      inv.Status,
			"paid_at":     inv.PaidAt,
			"updated_at":  inv.UpdatedAt,
		}).Error
}

func (r *repo) ListPendingPosting(ctx context.Context, db *gorm.DB, limit int) ([]domain.Invoice, error) {
	var invoices []domain.Invoice
	stmt := db.WithContext(ctx).
		Where("posting_status = ?", ledgerdomain.PostingStatusPending).
		Order("id asc")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	err := stmt.Find(&invoices).Error
	return invoices, err
}

func (r *repo) MarkPosted(ctx context.Context, db *gorm.DB, id, entryID snowflake.ID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("id = ? AND posting_status = ?", id, ledgerdomain.PostingStatusPending).
		Updates(map[string]any{
			"posting_status":     ledgerdomain.PostingStatusPosted,
			"journal_entry_id":   entryID,
			"posted_at":          at,
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
		Model(&domain.Invoice{}).
		Where("id = ? AND posting_status = ?", id, ledgerdomain.PostingStatusPending).
		Updates(map[string]any{
			"posting_attempts":   gorm.Expr("posting_attempts + 1"),
			"last_posting_error": reason,
		}).Error
}

func (r *repo) MarkOverdue(ctx context.Context, db *gorm.DB, now time.Time, limit int) (int64, error) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var ids []snowflake.ID
	stmt := db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("status = ? AND due_date < ?", domain.InvoiceStatusPending, today).
		Where("amount_paid < total_amount").
		Order("id asc")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	res := db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("id IN ? AND status = ?", ids, domain.InvoiceStatusPending).
		Updates(map[string]any{
			"status":     domain.InvoiceStatusOverdue,
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}
