package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRecomputeStatus(t *testing.T) {
	due := time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)
	inv := Invoice{TotalAmount: decimal.NewFromInt(500), DueDate: due}

	tests := []struct {
		name string
		paid string
		now  time.Time
		want InvoiceStatus
	}{
		{"unpaid before due", "0", due.AddDate(0, 0, -1), InvoiceStatusPending},
		{"unpaid late on due date", "0", due.Add(23 * time.Hour), InvoiceStatusPending},
		{"unpaid day after due", "0", due.AddDate(0, 0, 1), InvoiceStatusOverdue},
		{"partial after due", "499.99", due.AddDate(0, 1, 0), InvoiceStatusOverdue},
		{"fully paid after due", "500", due.AddDate(0, 1, 0), InvoiceStatusPaid},
		{"fully paid before due", "500.00", due.AddDate(0, 0, -3), InvoiceStatusPaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv.AmountPaid = decimal.RequireFromString(tt.paid)
			assert.Equal(t, tt.want, RecomputeStatus(inv, tt.now))
		})
	}
}

func TestApplyTotalPaid(t *testing.T) {
	due := time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)
	inv := Invoice{TotalAmount: decimal.NewFromInt(500), DueDate: due}
	now := due.AddDate(0, 0, -2)

	inv.ApplyTotalPaid(decimal.NewFromInt(500), now)
	assert.Equal(t, InvoiceStatusPaid, inv.Status)
	assert.True(t, inv.Balance.IsZero())
	if assert.NotNil(t, inv.PaidAt) {
		assert.Equal(t, now, *inv.PaidAt)
	}

	inv.ApplyTotalPaid(decimal.Zero, due.AddDate(0, 0, 10))
	assert.Equal(t, InvoiceStatusOverdue, inv.Status)
	assert.Equal(t, "500", inv.Balance.String())
	assert.Nil(t, inv.PaidAt)
}
