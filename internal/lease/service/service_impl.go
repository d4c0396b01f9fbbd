package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	leasedomain "github.com/smallbiznis/rentledger/internal/lease/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo leasedomain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo leasedomain.Repository
}

func NewService(p Params) leasedomain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("lease.service"),
		repo: p.Repo,
	}
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (leasedomain.Lease, error) {
	if id == 0 {
		return leasedomain.Lease{}, leasedomain.ErrLeaseNotFound
	}
	lease, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return leasedomain.Lease{}, err
	}
	if lease == nil {
		return leasedomain.Lease{}, leasedomain.ErrLeaseNotFound
	}
	return *lease, nil
}

func (s *Service) ListActive(ctx context.Context, afterID snowflake.ID, limit int) ([]leasedomain.Lease, error) {
	return s.repo.ListByStatus(ctx, s.db, leasedomain.LeaseStatusActive, afterID, limit)
}
