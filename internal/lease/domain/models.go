package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type LeaseStatus string

const (
	LeaseStatusDraft      LeaseStatus = "DRAFT"
	LeaseStatusActive     LeaseStatus = "ACTIVE"
	LeaseStatusTerminated LeaseStatus = "TERMINATED"
	LeaseStatusExpired    LeaseStatus = "EXPIRED"
)

type PaymentFrequency string

const (
	FrequencyMonthly   PaymentFrequency = "MONTHLY"
	FrequencyQuarterly PaymentFrequency = "QUARTERLY"
	FrequencyAnnually  PaymentFrequency = "ANNUALLY"
)

// Lease is master data owned by the leasing flow; this module only reads it.
type Lease struct {
	ID               snowflake.ID     `gorm:"primaryKey" json:"id"`
	OrgID            snowflake.ID     `gorm:"not null;index" json:"org_id"`
	TenantID         snowflake.ID     `gorm:"not null;index" json:"tenant_id"`
	UnitID           snowflake.ID     `gorm:"not null" json:"unit_id"`
	RentAmount       decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0" json:"rent_amount"`
	Currency         string           `gorm:"type:varchar(3);not null" json:"currency"`
	PaymentFrequency PaymentFrequency `gorm:"type:varchar(16);not null;default:MONTHLY" json:"payment_frequency"`
	PaymentDueDay    *int             `json:"payment_due_day,omitempty"`
	Status           LeaseStatus      `gorm:"type:varchar(16);not null;index" json:"status"`
	StartDate        time.Time        `gorm:"not null" json:"start_date"`
	EndDate          *time.Time       `json:"end_date,omitempty"`
	CreatedAt        time.Time        `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"not null" json:"updated_at"`
}

func (Lease) TableName() string { return "leases" }

// DueDay returns the configured due day or fallback when unset or out of range.
func (l Lease) DueDay(fallback int) int {
	if l.PaymentDueDay == nil || *l.PaymentDueDay < 1 || *l.PaymentDueDay > 31 {
		return fallback
	}
	return *l.PaymentDueDay
}

// Covers reports whether the lease term overlaps the period.
func (l Lease) Covers(p Period) bool {
	if !l.StartDate.Before(p.End) {
		return false
	}
	if l.EndDate != nil && l.EndDate.Before(p.Start) {
		return false
	}
	return true
}
