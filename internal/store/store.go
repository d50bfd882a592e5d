// Package store holds the listing transition that every writer goes
// through: bids, buyouts, cancels and the expiration sweep all mutate a
// listing via the same optimistic check-and-set, so the column set written
// back lives in exactly one place.
package store

import (
	"errors"
	"time"

	"github.com/stellarion/auction-api/internal/types"
	"gorm.io/gorm"
)

// TransitionIfActive re-reads the listing in a transaction, requires ACTIVE
// status, applies fn and writes the result back conditioned on the version
// being unchanged. A concurrent commit surfaces as ErrStaleListing and
// rolls back everything fn did, escrow movements included.
func TransitionIfActive(db *gorm.DB, auctionID string, fn func(tx *gorm.DB, listing *types.AuctionListing) error) (*types.AuctionListing, error) {
	var out *types.AuctionListing
	err := db.Transaction(func(tx *gorm.DB) error {
		var listing types.AuctionListing
		if err := tx.Where("auction_id = ?", auctionID).First(&listing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return types.ErrNotFound
			}
			return err
		}
		if listing.Status != types.StatusActive {
			return types.ErrNotActive
		}

		readVersion := listing.Version
		if err := fn(tx, &listing); err != nil {
			return err
		}
		listing.Version = readVersion + 1

		result := tx.Model(&types.AuctionListing{}).
			Where("auction_id = ? AND status = ? AND version = ?", auctionID, types.StatusActive, readVersion).
			Updates(map[string]interface{}{
				"status":          listing.Status,
				"current_bid":     listing.CurrentBid,
				"highest_bidder":  listing.HighestBidder,
				"winner_username": listing.WinnerUsername,
				"final_price":     listing.FinalPrice,
				"bid_hold_id":     listing.BidHoldID,
				"version":         listing.Version,
				"updated_at":      time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return types.ErrStaleListing
		}

		out = &listing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
