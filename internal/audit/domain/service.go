package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/pkg/db/pagination"
	"gorm.io/gorm"
)

// Entry describes one audited action.
type Entry struct {
	OrgID      snowflake.ID
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]any
}

type ListAuditLogRequest struct {
	pagination.Pagination
	OrgID      snowflake.ID
	TargetType string
	TargetID   string
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Service interface {
	// Record writes entry using tx when non-nil so the audit row commits or rolls
	// back with the change it describes.
	Record(ctx context.Context, tx *gorm.DB, entry Entry) error
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]AuditLog, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidAction       = errors.New("invalid_action")
)
