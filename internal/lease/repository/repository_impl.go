package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/internal/lease/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Lease, error) {
	var lease domain.Lease
	err := db.WithContext(ctx).Where("id = ?", id).First(&lease).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lease, nil
}

func (r *repo) ListByStatus(ctx context.Context, db *gorm.DB, status domain.LeaseStatus, afterID snowflake.ID, limit int) ([]domain.Lease, error) {
	var leases []domain.Lease
	stmt := db.WithContext(ctx).
		Where("status = ?", status).
		Where("id > ?", afterID).
		Order("id asc")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(&leases).Error; err != nil {
		return nil, err
	}
	return leases, nil
}
