package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/rentledger/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Insert joins the caller's transaction when db is one, so an audit row never
// outlives a rolled back reversal.
func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.AuditLog, error) {
	var logs []domain.AuditLog
	err := db.WithContext(ctx).
		Scopes(forTarget(filter.TargetType, filter.TargetID), afterCursor(filter.AfterID, filter.Limit)).
		Where("org_id = ?", filter.OrgID).
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func forTarget(targetType, targetID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if t := strings.TrimSpace(targetType); t != "" {
			db = db.Where("target_type = ?", t)
		}
		if id := strings.TrimSpace(targetID); id != "" {
			db = db.Where("target_id = ?", id)
		}
		return db
	}
}

// afterCursor fetches one row past the limit so the caller can tell whether
// another page exists.
func afterCursor(afterID int64, limit int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if afterID > 0 {
			db = db.Where("id > ?", afterID)
		}
		db = db.Order("id asc")
		if limit > 0 {
			db = db.Limit(limit + 1)
		}
		return db
	}
}
