package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	leasedomain "github.com/smallbiznis/rentledger/internal/lease/domain"
	"gorm.io/gorm"
)

type Repository interface {
	ListAssignments(ctx context.Context, db *gorm.DB, leaseID snowflake.ID) ([]LeaseUtility, error)
	// LatestReadings returns up to limit readings taken before the cutoff,
	// newest first.
	LatestReadings(ctx context.Context, db *gorm.DB, leaseUtilityID snowflake.ID, before time.Time, limit int) ([]UtilityReading, error)
}

type Service interface {
	// AllocateForLease returns one allocation per utility assigned to the lease.
	// A metered utility bills only when its latest reading was taken inside
	// period; otherwise it fails with ErrMissingReading.
	AllocateForLease(ctx context.Context, leaseID snowflake.ID, period leasedomain.Period) ([]Allocation, error)
}
