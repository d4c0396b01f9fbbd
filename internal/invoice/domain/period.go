package domain

import (
	"time"

	leasedomain "github.com/smallbiznis/rentledger/internal/lease/domain"
)

// BillingPeriod returns the window an invoice of the given type falls into.
// Rent follows the lease's payment frequency; utilities are billed monthly.
func BillingPeriod(typ InvoiceType, lease leasedomain.Lease, at time.Time) leasedomain.Period {
	if typ == InvoiceTypeUtility {
		return leasedomain.PeriodFor(leasedomain.FrequencyMonthly, at)
	}
	return leasedomain.PeriodFor(lease.PaymentFrequency, at)
}
