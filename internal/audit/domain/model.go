package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeSystem ActorType = "system"
)

const (
	ActionPaymentApplied  = "payment.applied"
	ActionPaymentReversed = "payment.reversed"
	ActionInvoiceCreated  = "invoice.created"
)

type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID      snowflake.ID      `gorm:"not null;index:idx_audit_logs_org_target,priority:1" json:"org_id"`
	ActorType  string            `gorm:"type:varchar(16);not null" json:"actor_type"`
	ActorID    *string           `gorm:"type:varchar(128)" json:"actor_id,omitempty"`
	Action     string            `gorm:"type:varchar(64);not null" json:"action"`
	TargetType string            `gorm:"type:varchar(32);not null;index:idx_audit_logs_org_target,priority:2" json:"target_type"`
	TargetID   *string           `gorm:"type:varchar(64);index:idx_audit_logs_org_target,priority:3" json:"target_id,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata,omitempty"`
	IPAddress  *string           `gorm:"type:varchar(64)" json:"ip_address,omitempty"`
	UserAgent  *string           `gorm:"type:text" json:"user_agent,omitempty"`
	CreatedAt  time.Time         `gorm:"not null" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

type ListFilter struct {
	OrgID      snowflake.ID
	TargetType string
	TargetID   string
	AfterID    int64
	Limit      int
}
