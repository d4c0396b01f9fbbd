package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/rentledger/internal/audit/domain"
	"github.com/smallbiznis/rentledger/internal/audit/masking"
	"github.com/smallbiznis/rentledger/internal/auditcontext"
	"github.com/smallbiznis/rentledger/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, tx *gorm.DB, entry auditdomain.Entry) error {
	action := strings.TrimSpace(entry.Action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}
	if entry.OrgID == 0 {
		return auditdomain.ErrInvalidOrganization
	}

	targetType := strings.TrimSpace(entry.TargetType)
	if targetType == "" {
		targetType = "unknown"
	}

	actorType, actorID := resolveActor(ctx, entry.ActorID)

	payload := masking.MaskFields(entry.Metadata, "reference")
	if payload == nil {
		payload = map[string]any{}
	}
	if requestID := auditcontext.RequestIDFromContext(ctx); requestID != "" {
		payload["request_id"] = requestID
	}

	row := auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		OrgID:      entry.OrgID,
		ActorType:  string(actorType),
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   normalize(entry.TargetID),
		Metadata:   datatypes.JSONMap(payload),
		IPAddress:  normalize(auditcontext.IPAddressFromContext(ctx)),
		UserAgent:  normalize(auditcontext.UserAgentFromContext(ctx)),
		CreatedAt:  time.Now().UTC(),
	}

	db := tx
	if db == nil {
		db = s.db
	}
	if err := s.repo.Insert(ctx, db, &row); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	if req.OrgID == 0 {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidOrganization
	}
	afterID, err := req.AfterID()
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}
	limit := req.Limit()

	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		OrgID:      req.OrgID,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		AfterID:    afterID,
		Limit:      limit,
	})
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	page, info := pagination.BuildCursorPage(items, limit, func(item auditdomain.AuditLog) int64 {
		return item.ID.Int64()
	})
	return auditdomain.ListAuditLogResponse{PageInfo: info, AuditLogs: page}, nil
}

func resolveActor(ctx context.Context, actorID string) (auditdomain.ActorType, *string) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		actorID = auditcontext.ActorIDFromContext(ctx)
	}
	if actorID == "" || actorID == auditcontext.SystemActor {
		return auditdomain.ActorTypeSystem, nil
	}
	return auditdomain.ActorTypeUser, &actorID
}

func normalize(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// TargetID formats a snowflake id for the audit target column.
func TargetID(id snowflake.ID) string {
	return strconv.FormatInt(id.Int64(), 10)
}
