package guard

import (
	"errors"

	leasedomain "github.com/smallbiznis/rentledger/internal/lease/domain"
)

var (
	ErrLeaseOutsideTerm  = errors.New("lease_outside_term")
	ErrMissingRentAmount = errors.New("lease_missing_rent_amount")
)

// EnsureLeaseBillable checks that automated rent generation may run for the
// lease in period. ErrLeaseOutsideTerm is not a failure: the lease simply has
// nothing to bill yet (or anymore).
func EnsureLeaseBillable(lease leasedomain.Lease, period leasedomain.Period) error {
	if lease.Status != leasedomain.LeaseStatusActive {
		return leasedomain.ErrLeaseNotActive
	}
	if !lease.Covers(period) {
		return ErrLeaseOutsideTerm
	}
	if !lease.RentAmount.IsPositive() {
		return ErrMissingRentAmount
	}
	return nil
}
