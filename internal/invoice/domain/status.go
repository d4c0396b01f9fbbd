package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

func day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// RecomputeStatus derives the status from payments and the calendar. An invoice
// becomes overdue the day after its due date.
func RecomputeStatus(inv Invoice, now time.Time) InvoiceStatus {
	if inv.AmountPaid.GreaterThanOrEqual(inv.TotalAmount) {
		return InvoiceStatusPaid
	}
	if day(now).After(day(inv.DueDate)) {
		return InvoiceStatusOverdue
	}
	return InvoiceStatusPending
}

// ApplyTotalPaid sets the paid amount and every field derived from it.
func (inv *Invoice) ApplyTotalPaid(totalPaid decimal.Decimal, now time.Time) {
	inv.AmountPaid = totalPaid
	inv.Balance = inv.TotalAmount.Sub(totalPaid)
	inv.Status = RecomputeStatus(*inv, now)
	if inv.Status == InvoiceStatusPaid {
		if inv.PaidAt == nil {
			paidAt := now.UTC()
			inv.PaidAt = &paidAt
		}
	} else {
		inv.PaidAt = nil
	}
}
