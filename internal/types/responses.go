package types

import "time"

// CreateListingRequest is the payload for POST /auction/create.
type CreateListingRequest struct {
	Item          ItemSpec `json:"item"`
	StartingBid   int64    `json:"starting_bid"`
	BuyoutPrice   int64    `json:"buyout_price,omitempty"`
	ReservePrice  int64    `json:"reserve_price,omitempty"`
	DurationHours int      `json:"duration_hours"`
	ClanOnly      bool     `json:"clan_only,omitempty"`
}

// CreateListingResponse confirms a new listing and the fee consumed.
type CreateListingResponse struct {
	AuctionID  string    `json:"auction_id"`
	FeeCharged int64     `json:"fee_charged"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// BidRequest is the payload for POST /auction/bid.
type BidRequest struct {
	AuctionID string `json:"auction_id" binding:"required"`
	Amount    int64  `json:"amount" binding:"required"`
}

// BidResponse confirms an accepted bid.
type BidResponse struct {
	Accepted   bool  `json:"accepted"`
	CurrentBid int64 `json:"current_bid"`
}

// ListingView is the bidder-facing projection of a listing. The reserve
// price is only revealed to the seller, and to everyone once the listing
// is terminal.
type ListingView struct {
	AuctionID      string    `json:"auction_id"`
	SellerUsername string    `json:"seller_username"`
	Item           ItemSpec  `json:"item"`
	StartingBid    int64     `json:"starting_bid"`
	CurrentBid     int64     `json:"current_bid"`
	HighestBidder  string    `json:"highest_bidder,omitempty"`
	BuyoutPrice    int64     `json:"buyout_price,omitempty"`
	HasReserve     bool      `json:"has_reserve"`
	ReservePrice   int64     `json:"reserve_price,omitempty"`
	DurationHours  int       `json:"duration_hours"`
	Status         string    `json:"status"`
	FinalPrice     int64     `json:"final_price,omitempty"`
	Winner         string    `json:"winner,omitempty"`
	ClanOnly       bool      `json:"clan_only"`
	BidCount       int       `json:"bid_count"`
	Bids           []Bid     `json:"bids,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// NewListingView projects a listing for the given viewer.
func NewListingView(listing *AuctionListing, viewer string, includeBids bool) ListingView {
	view := ListingView{
		AuctionID:      listing.AuctionID,
		SellerUsername: listing.SellerUsername,
		Item:           listing.Item,
		StartingBid:    listing.StartingBid,
		CurrentBid:     listing.CurrentBid,
		HighestBidder:  listing.HighestBidder,
		BuyoutPrice:    listing.BuyoutPrice,
		HasReserve:     listing.ReservePrice > 0,
		DurationHours:  listing.DurationHours,
		Status:         listing.Status,
		FinalPrice:     listing.FinalPrice,
		Winner:         listing.WinnerUsername,
		ClanOnly:       listing.ClanOnly,
		BidCount:       len(listing.Bids),
		CreatedAt:      listing.CreatedAt,
		ExpiresAt:      listing.ExpiresAt,
	}
	if viewer == listing.SellerUsername || listing.Status != StatusActive {
		view.ReservePrice = listing.ReservePrice
	}
	if includeBids {
		view.Bids = listing.Bids
	}
	return view
}

// ListingPage is the paginated result of a marketplace query.
type ListingPage struct {
	Auctions   []ListingView `json:"auctions"`
	TotalCount int64         `json:"total_count"`
	TotalPages int           `json:"total_pages"`
	Page       int           `json:"page"`
}
