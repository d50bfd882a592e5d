package settlement

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stellarion/auction-api/internal/escrow"
	"github.com/stellarion/auction-api/internal/treasury"
	"github.com/stellarion/auction-api/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&types.AuctionListing{},
		&types.Bid{},
		&escrow.EscrowHold{},
		&escrow.FeeRecord{},
		&treasury.PlayerBalance{},
		&treasury.PlayerItem{},
	))
	return db
}

func metalBalance(t *testing.T, db *gorm.DB, username string) int64 {
	t.Helper()
	balance, err := treasury.GetBalance(db, username)
	require.NoError(t, err)
	return balance.Metal
}

// dueListing builds an ACTIVE listing whose expiry has already passed,
// with the seller's item sitting in escrow the way the listing service
// leaves it.
func dueListing(t *testing.T, db *gorm.DB, reservePrice int64) *types.AuctionListing {
	t.Helper()

	item := types.ItemSpec{ItemType: types.ItemTypeTradeable, Quantity: 1}
	require.NoError(t, treasury.GiveItem(db, "seller", item))

	auctionID := "AUC_" + uuid.New().String()
	hold, err := escrow.HoldItem(db, auctionID, "seller", item)
	require.NoError(t, err)

	now := time.Now()
	listing := &types.AuctionListing{
		AuctionID:      auctionID,
		SellerUsername: "seller",
		Item:           item,
		StartingBid:    1000,
		CurrentBid:     1000,
		ReservePrice:   reservePrice,
		DurationHours:  12,
		Status:         types.StatusActive,
		ItemHoldID:     hold.HoldID,
		CreatedAt:      now.Add(-12 * time.Hour),
		ExpiresAt:      now.Add(-time.Minute),
	}
	require.NoError(t, db.Create(listing).Error)
	return listing
}

// recordBid attaches a highest bid with its funds held, the state the
// bid ledger leaves behind.
func recordBid(t *testing.T, db *gorm.DB, listing *types.AuctionListing, bidder string, amount int64) {
	t.Helper()

	require.NoError(t, treasury.CreditMetal(db, bidder, amount))
	hold, err := escrow.HoldFunds(db, listing.AuctionID, bidder, amount)
	require.NoError(t, err)

	require.NoError(t, db.Create(&types.Bid{
		BidID:     "BID_" + uuid.New().String(),
		AuctionID: listing.AuctionID,
		Bidder:    bidder,
		Amount:    amount,
		CreatedAt: time.Now(),
	}).Error)

	require.NoError(t, db.Model(&types.AuctionListing{}).
		Where("auction_id = ?", listing.AuctionID).
		Updates(map[string]interface{}{
			"current_bid":    amount,
			"highest_bidder": bidder,
			"bid_hold_id":    hold.HoldID,
		}).Error)
}

func getListing(t *testing.T, db *gorm.DB, auctionID string) *types.AuctionListing {
	t.Helper()
	var listing types.AuctionListing
	require.NoError(t, db.Where("auction_id = ?", auctionID).First(&listing).Error)
	return &listing
}

func TestSweepSellsToHighestBidder(t *testing.T) {
	db := newTestDB(t)
	listing := dueListing(t, db, 0)
	recordBid(t, db, listing, "winner", 1100)

	processor := NewProcessor(NewDatabase(db), time.Minute)
	settled, err := processor.SweepOnce()
	require.NoError(t, err)
	assert.Equal(t, 1, settled)

	stored := getListing(t, db, listing.AuctionID)
	assert.Equal(t, types.StatusSold, stored.Status)
	assert.Equal(t, int64(1100), stored.FinalPrice)
	assert.Equal(t, "winner", stored.WinnerUsername)
	assert.Equal(t, "winner", stored.HighestBidder)

	// Winner's held funds were consumed, seller netted price less fee.
	assert.Equal(t, int64(0), metalBalance(t, db, "winner"))
	assert.Equal(t, int64(1045), metalBalance(t, db, "seller"))

	// Item delivered.
	item := types.ItemSpec{ItemType: types.ItemTypeTradeable, Quantity: 1}
	require.NoError(t, treasury.TakeItem(db, "winner", item))

	records, err := escrow.FeesForAuction(db, listing.AuctionID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, escrow.FeeKindSale, records[0].Kind)
	assert.Equal(t, int64(55), records[0].Amount)
}

func TestSweepSellsWhenReserveMet(t *testing.T) {
	db := newTestDB(t)
	listing := dueListing(t, db, 1100)
	recordBid(t, db, listing, "winner", 1100)

	processor := NewProcessor(NewDatabase(db), time.Minute)
	_, err := processor.SweepOnce()
	require.NoError(t, err)

	assert.Equal(t, types.StatusSold, getListing(t, db, listing.AuctionID).Status)
}

func TestSweepExpiresWhenReserveNotMet(t *testing.T) {
	db := newTestDB(t)
	listing := dueListing(t, db, 2000)
	recordBid(t, db, listing, "bidder", 1100)

	processor := NewProcessor(NewDatabase(db), time.Minute)
	settled, err := processor.SweepOnce()
	require.NoError(t, err)
	assert.Equal(t, 1, settled)

	stored := getListing(t, db, listing.AuctionID)
	assert.Equal(t, types.StatusExpired, stored.Status)
	assert.Zero(t, stored.FinalPrice)

	// Bidder refunded in full, item back with the seller, no sale fee.
	assert.Equal(t, int64(1100), metalBalance(t, db, "bidder"))
	assert.Equal(t, int64(0), metalBalance(t, db, "seller"))

	item := types.ItemSpec{ItemType: types.ItemTypeTradeable, Quantity: 1}
	require.NoError(t, treasury.TakeItem(db, "seller", item))

	records, err := escrow.FeesForAuction(db, listing.AuctionID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSweepExpiresWithoutBids(t *testing.T) {
	db := newTestDB(t)
	listing := dueListing(t, db, 0)

	processor := NewProcessor(NewDatabase(db), time.Minute)
	settled, err := processor.SweepOnce()
	require.NoError(t, err)
	assert.Equal(t, 1, settled)

	assert.Equal(t, types.StatusExpired, getListing(t, db, listing.AuctionID).Status)

	item := types.ItemSpec{ItemType: types.ItemTypeTradeable, Quantity: 1}
	require.NoError(t, treasury.TakeItem(db, "seller", item))
}

func TestSweepIdempotent(t *testing.T) {
	db := newTestDB(t)
	listing := dueListing(t, db, 0)
	recordBid(t, db, listing, "winner", 1100)

	processor := NewProcessor(NewDatabase(db), time.Minute)
	settled, err := processor.SweepOnce()
	require.NoError(t, err)
	assert.Equal(t, 1, settled)

	// A second pass finds nothing due and moves no money.
	settled, err = processor.SweepOnce()
	require.NoError(t, err)
	assert.Equal(t, 0, settled)

	assert.Equal(t, int64(1045), metalBalance(t, db, "seller"))
	assert.Equal(t, int64(0), metalBalance(t, db, "winner"))

	records, err := escrow.FeesForAuction(db, listing.AuctionID)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSweepLeavesUnexpiredAlone(t *testing.T) {
	db := newTestDB(t)
	listing := dueListing(t, db, 0)
	require.NoError(t, db.Model(&types.AuctionListing{}).
		Where("auction_id = ?", listing.AuctionID).
		Update("expires_at", time.Now().Add(time.Hour)).Error)

	processor := NewProcessor(NewDatabase(db), time.Minute)
	settled, err := processor.SweepOnce()
	require.NoError(t, err)
	assert.Equal(t, 0, settled)

	assert.Equal(t, types.StatusActive, getListing(t, db, listing.AuctionID).Status)
}
