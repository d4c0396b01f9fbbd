package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Lease, error)
	ListByStatus(ctx context.Context, db *gorm.DB, status LeaseStatus, afterID snowflake.ID, limit int) ([]Lease, error)
}

type Service interface {
	GetByID(ctx context.Context, id snowflake.ID) (Lease, error)
	// ListActive pages through ACTIVE leases in id order.
	ListActive(ctx context.Context, afterID snowflake.ID, limit int) ([]Lease, error)
}

var (
	ErrLeaseNotFound  = errors.New("lease_not_found")
	ErrLeaseNotActive = errors.New("lease_not_active")
)
