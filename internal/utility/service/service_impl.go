package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	leasedomain "github.com/smallbiznis/rentledger/internal/lease/domain"
	utilitydomain "github.com/smallbiznis/rentledger/internal/utility/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo utilitydomain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo utilitydomain.Repository
}

func NewService(p Params) utilitydomain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("utility.service"),
		repo: p.Repo,
	}
}

func (s *Service) AllocateForLease(ctx context.Context, leaseID snowflake.ID, period leasedomain.Period) ([]utilitydomain.Allocation, error) {
	assignments, err := s.repo.ListAssignments(ctx, s.db, leaseID)
	if err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		return nil, utilitydomain.ErrNoUtilitiesAssigned
	}

	allocations := make([]utilitydomain.Allocation, 0, len(assignments))
	for _, assignment := range assignments {
		var current, previous *utilitydomain.UtilityReading
		if assignment.Utility.Type == utilitydomain.UtilityTypeMetered {
			readings, err := s.repo.LatestReadings(ctx, s.db, assignment.ID, period.End, 2)
			if err != nil {
				return nil, err
			}
			// A reading older than the period was already billed by an
			// earlier invoice.
			if len(readings) > 0 && !readings[0].ReadingDate.Before(period.Start) {
				current = &readings[0]
				if len(readings) > 1 {
					previous = &readings[1]
				}
			}
		}

		amount, consumption, err := utilitydomain.Allocate(assignment.Utility, current, previous)
		if err != nil {
			s.log.Warn("utility.allocation.failed",
				zap.String("lease_id", leaseID.String()),
				zap.String("lease_utility_id", assignment.ID.String()),
				zap.Error(err),
			)
			return nil, err
		}

		allocations = append(allocations, utilitydomain.Allocation{
			LeaseUtilityID: assignment.ID,
			Description:    describe(assignment.Utility, consumption),
			Amount:         amount,
			Consumption:    consumption,
		})
	}
	return allocations, nil
}

func describe(utility utilitydomain.UtilityBill, consumption decimal.Decimal) string {
	if utility.Type == utilitydomain.UtilityTypeMetered {
		return fmt.Sprintf("%s (%s units)", utility.Name, consumption.String())
	}
	return utility.Name
}
