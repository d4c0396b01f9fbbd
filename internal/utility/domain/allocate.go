package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNoUtilitiesAssigned = errors.New("no_utilities_assigned")
	ErrMissingReading      = errors.New("missing_meter_reading")
	ErrNegativeConsumption = errors.New("negative_consumption")
	ErrUnknownUtilityType  = errors.New("unknown_utility_type")
)

// Allocate computes the billable amount of one utility. FIXED utilities bill
// their fixed amount. METERED utilities bill (current − previous) × unit price;
// with no previous reading the current value is the consumption. The result is
// rounded to cents.
func Allocate(utility UtilityBill, current, previous *UtilityReading) (decimal.Decimal, decimal.Decimal, error) {
	switch utility.Type {
	case UtilityTypeFixed:
		return utility.FixedAmount.Round(2), decimal.Zero, nil
	case UtilityTypeMetered:
		if current == nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("%w: utility %s", ErrMissingReading, utility.Name)
		}
		consumption := current.Value
		if previous != nil {
			consumption = current.Value.Sub(previous.Value)
		}
		if consumption.IsNegative() {
			return decimal.Zero, decimal.Zero, fmt.Errorf("%w: utility %s", ErrNegativeConsumption, utility.Name)
		}
		return consumption.Mul(utility.UnitPrice).Round(2), consumption, nil
	default:
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownUtilityType, utility.Type)
	}
}
