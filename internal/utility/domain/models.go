package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type UtilityType string

const (
	UtilityTypeFixed   UtilityType = "FIXED"
	UtilityTypeMetered UtilityType = "METERED"
)

// UtilityBill is a billable utility definition (water, power, service charge).
type UtilityBill struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID    `gorm:"not null;index" json:"org_id"`
	Name        string          `gorm:"type:varchar(128);not null" json:"name"`
	Type        UtilityType     `gorm:"type:varchar(16);not null" json:"type"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"unit_price"`
	FixedAmount decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"fixed_amount"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
}

func (UtilityBill) TableName() string { return "utility_bills" }

// LeaseUtility assigns a utility to a lease.
type LeaseUtility struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	LeaseID       snowflake.ID `gorm:"not null;uniqueIndex:ux_lease_utilities_lease_utility,priority:1" json:"lease_id"`
	UtilityBillID snowflake.ID `gorm:"not null;uniqueIndex:ux_lease_utilities_lease_utility,priority:2" json:"utility_bill_id"`
	CreatedAt     time.Time    `gorm:"not null" json:"created_at"`

	Utility UtilityBill `gorm:"foreignKey:UtilityBillID" json:"utility"`
}

func (LeaseUtility) TableName() string { return "lease_utilities" }

// UtilityReading is a cumulative meter reading for a lease utility.
type UtilityReading struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	LeaseUtilityID snowflake.ID    `gorm:"not null;index:idx_utility_readings_lu_date,priority:1" json:"lease_utility_id"`
	Value          decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"value"`
	ReadingDate    time.Time       `gorm:"not null;index:idx_utility_readings_lu_date,priority:2" json:"reading_date"`
	CreatedAt      time.Time       `gorm:"not null" json:"created_at"`
}

func (UtilityReading) TableName() string { return "utility_readings" }

// Allocation is the billable amount of one lease utility for one period.
type Allocation struct {
	LeaseUtilityID snowflake.ID    `json:"lease_utility_id"`
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
	Consumption    decimal.Decimal `json:"consumption"`
}
