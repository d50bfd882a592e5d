package fees

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellarion/auction-api/internal/types"
)

func TestListingFeeTiers(t *testing.T) {
	cases := []struct {
		durationHours int
		fee           int64
	}{
		{12, 100},
		{24, 150},
		{48, 250},
	}

	for _, tc := range cases {
		fee, err := ListingFee(tc.durationHours)
		require.NoError(t, err)
		assert.Equal(t, tc.fee, fee)
	}
}

func TestListingFeeInvalidDuration(t *testing.T) {
	for _, duration := range []int{0, 1, 6, 36, 72, -24} {
		_, err := ListingFee(duration)
		assert.ErrorIs(t, err, types.ErrInvalidDuration)
		assert.False(t, ValidDuration(duration))
	}
}

func TestSaleFee(t *testing.T) {
	assert.Equal(t, int64(250), SaleFee(5000))
	assert.Equal(t, int64(0), SaleFee(0))

	// Truncates toward zero, never rounds up against the seller.
	assert.Equal(t, int64(5), SaleFee(101))
	assert.Equal(t, int64(4), SaleFee(99))
}
