// Package fees prices the marketplace: an upfront listing fee tiered by
// duration, and a proportional fee on the final sale price.
package fees

import (
	"github.com/stellarion/auction-api/internal/types"
)

// SaleFeePercent is the percentage of the final price kept by the
// marketplace when a listing sells.
const SaleFeePercent = int64(5)

// Listing fees in Metal, keyed by duration in hours.
var listingFees = map[int]int64{
	12: 100,
	24: 150,
	48: 250,
}

// ListingFee returns the upfront fee for the given listing duration.
// The fee is charged exactly once at creation and is never refunded.
func ListingFee(durationHours int) (int64, error) {
	fee, ok := listingFees[durationHours]
	if !ok {
		return 0, types.ErrInvalidDuration
	}
	return fee, nil
}

// ValidDuration reports whether the duration is one of the allowed tiers.
func ValidDuration(durationHours int) bool {
	_, ok := listingFees[durationHours]
	return ok
}

// SaleFee returns the marketplace's cut of a sale, truncated down so the
// seller never pays a fraction of a Metal unit. All-integer arithmetic;
// Metal never passes through a float.
func SaleFee(finalPrice int64) int64 {
	return finalPrice * SaleFeePercent / 100
}
