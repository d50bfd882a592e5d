package types

import (
	"time"

	"gorm.io/gorm"
)

// Listing status values. Terminal states are only ever reached from ACTIVE.
const (
	StatusActive    = "ACTIVE"
	StatusSold      = "SOLD"
	StatusCancelled = "CANCELLED"
	StatusExpired   = "EXPIRED"
)

// Item variants a listing can carry.
const (
	ItemTypeUnit      = "UNIT"
	ItemTypeResource  = "RESOURCE"
	ItemTypeTradeable = "ITEM"
)

// Resource types tracked by the treasury ledger.
const (
	ResourceMetal  = "METAL"
	ResourceEnergy = "ENERGY"
)

// Marketplace economy constants. Bids are denominated in Metal.
const (
	MinStartingBid  = int64(100)
	MaxStartingBid  = int64(1_000_000)
	MinBidIncrement = int64(100)
)

// ItemSpec describes the goods attached to a listing. Exactly one variant
// is populated, selected by ItemType.
type ItemSpec struct {
	ItemType       string `json:"item_type"`
	UnitType       string `json:"unit_type,omitempty"`
	Strength       int64  `json:"strength,omitempty"`
	Defense        int64  `json:"defense,omitempty"`
	ResourceType   string `json:"resource_type,omitempty"`
	ResourceAmount int64  `json:"resource_amount,omitempty"`
	Quantity       int64  `json:"quantity,omitempty"`
}

type AuctionListing struct {
	gorm.Model     `json:"-"`
	AuctionID      string   `gorm:"uniqueIndex" json:"auction_id"`
	SellerUsername string   `gorm:"index" json:"seller_username"`
	Item           ItemSpec `gorm:"embedded" json:"item"`
	StartingBid    int64    `json:"starting_bid"`
	CurrentBid     int64    `json:"current_bid"`
	HighestBidder  string   `json:"highest_bidder,omitempty"`
	BuyoutPrice    int64    `json:"buyout_price,omitempty"` // 0 = no buyout
	ReservePrice   int64    `json:"-"`                      // hidden from bidders until settlement
	DurationHours  int      `json:"duration_hours"`
	Status         string   `gorm:"index" json:"status"` // ACTIVE, SOLD, CANCELLED, EXPIRED
	FinalPrice     int64    `json:"final_price,omitempty"`
	WinnerUsername string   `json:"winner,omitempty"` // buyer of record once SOLD; HighestBidder stays tied to the bid history
	ClanOnly       bool     `json:"clan_only"`
	ClanTag        string   `json:"clan_tag,omitempty"`

	// Escrow bookkeeping. ItemHoldID is set at creation, BidHoldID tracks
	// the current highest bidder's fund hold.
	ItemHoldID string `json:"-"`
	BidHoldID  string `json:"-"`

	// Version backs the optimistic check-and-set used by every mutation.
	Version int64 `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Bids []Bid `gorm:"foreignKey:AuctionID;references:AuctionID" json:"bids,omitempty"`
}

// Bid is one accepted bid. Rows are append-only; insertion order is both
// chronological and amount order since accepted bids increase monotonically.
type Bid struct {
	gorm.Model `json:"-"`
	BidID      string    `gorm:"uniqueIndex" json:"bid_id"`
	AuctionID  string    `gorm:"index" json:"auction_id"`
	Bidder     string    `gorm:"index" json:"bidder"`
	Amount     int64     `json:"amount"`
	CreatedAt  time.Time `json:"created_at"`
}

type IdempotencyRecord struct {
	gorm.Model
	IdempotencyKey string    `gorm:"uniqueIndex" json:"idempotency_key"`
	ResourceID     string    `json:"resource_id"`
	ResourceType   string    `json:"resource_type"`
	ExpiresAt      time.Time `json:"expires_at"`
}
