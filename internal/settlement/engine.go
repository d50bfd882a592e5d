// Package settlement performs the economic effects that conclude a
// listing: the item and fund transfers of a sale, the return path for a
// void, and the periodic sweep that resolves listings past their expiry.
package settlement

import (
	"github.com/stellarion/auction-api/internal/escrow"
	"github.com/stellarion/auction-api/internal/fees"
	"github.com/stellarion/auction-api/internal/treasury"
	"github.com/stellarion/auction-api/internal/types"
	"gorm.io/gorm"
)

// SettleSale applies a sale's economic effects inside the caller's
// transition transaction: the item goes to the winner, the seller is
// credited the final price less the sale fee, and the listing is marked
// SOLD.
//
// When winnerFundsHeld is true the winner's money is already sitting in
// the listing's bid hold (the sweep path); otherwise the winner is debited
// directly and any outstanding bid hold is refunded to the outbid player
// (the buyout path).
func SettleSale(tx *gorm.DB, listing *types.AuctionListing, finalPrice int64, winner string, winnerFundsHeld bool) error {
	if winnerFundsHeld {
		if err := escrow.ConsumeHold(tx, listing.BidHoldID); err != nil {
			return err
		}
	} else {
		if listing.BidHoldID != "" {
			if err := escrow.ReleaseHold(tx, listing.BidHoldID); err != nil {
				return err
			}
		}
		if err := treasury.DebitMetal(tx, winner, finalPrice); err != nil {
			return err
		}
	}

	saleFee := fees.SaleFee(finalPrice)
	if err := treasury.CreditMetal(tx, listing.SellerUsername, finalPrice-saleFee); err != nil {
		return err
	}
	if err := escrow.RecordFee(tx, listing.AuctionID, listing.SellerUsername, escrow.FeeKindSale, saleFee); err != nil {
		return err
	}
	if err := escrow.TransferHold(tx, listing.ItemHoldID, winner); err != nil {
		return err
	}

	// HighestBidder stays tied to the bid history; the buyer of record
	// goes in WinnerUsername so a buyout never rewrites the bid ledger.
	listing.Status = types.StatusSold
	listing.FinalPrice = finalPrice
	listing.WinnerUsername = winner
	listing.BidHoldID = ""
	return nil
}

// SettleVoid concludes a listing without a sale: the item goes back to the
// seller and any outstanding bid hold is refunded. The listing fee was
// consumed at creation and is not touched. terminal must be CANCELLED or
// EXPIRED.
func SettleVoid(tx *gorm.DB, listing *types.AuctionListing, terminal string) error {
	if listing.BidHoldID != "" {
		if err := escrow.ReleaseHold(tx, listing.BidHoldID); err != nil {
			return err
		}
	}
	if err := escrow.ReleaseHold(tx, listing.ItemHoldID); err != nil {
		return err
	}

	listing.Status = terminal
	listing.BidHoldID = ""
	return nil
}
