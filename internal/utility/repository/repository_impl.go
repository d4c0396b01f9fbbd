package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/internal/utility/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) ListAssignments(ctx context.Context, db *gorm.DB, leaseID snowflake.ID) ([]domain.LeaseUtility, error) {
	var items []domain.LeaseUtility
	err := db.WithContext(ctx).
		Preload("Utility").
		Where("lease_id = ?", leaseID).
		Order("id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) LatestReadings(ctx context.Context, db *gorm.DB, leaseUtilityID snowflake.ID, before time.Time, limit int) ([]domain.UtilityReading, error) {
	var readings []domain.UtilityReading
	err := db.WithContext(ctx).
		Where("lease_utility_id = ? AND reading_date < ?", leaseUtilityID, before.UTC()).
		Order("reading_date desc, id desc").
		Limit(limit).
		Find(&readings).Error
	if err != nil {
		return nil, err
	}
	return readings, nil
}
