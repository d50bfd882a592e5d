package escrow

import (
	"time"

	"github.com/stellarion/auction-api/internal/types"
	"gorm.io/gorm"
)

// Hold status values.
const (
	HoldStatusHeld        = "HELD"
	HoldStatusReleased    = "RELEASED"
	HoldStatusTransferred = "TRANSFERRED"
)

// Hold kinds.
const (
	HoldKindFunds = "FUNDS"
	HoldKindItem  = "ITEM"
)

// Fee kinds.
const (
	FeeKindListing = "LISTING"
	FeeKindSale    = "SALE"
)

// EscrowHold is a reservation of a player's funds or goods pending an
// uncertain outcome. Funds holds record the amount debited; item holds
// snapshot the goods taken out of the seller's inventory.
type EscrowHold struct {
	gorm.Model `json:"-"`
	HoldID     string         `gorm:"uniqueIndex" json:"hold_id"`
	AuctionID  string         `gorm:"index" json:"auction_id"`
	Username   string         `gorm:"index" json:"username"`
	Kind       string         `json:"kind"`   // FUNDS or ITEM
	Status     string         `json:"status"` // HELD, RELEASED, TRANSFERRED
	Amount     int64          `json:"amount,omitempty"`
	Item       types.ItemSpec `gorm:"embedded" json:"item,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// FeeRecord is an audit row for every fee the marketplace consumes.
type FeeRecord struct {
	gorm.Model `json:"-"`
	FeeID      string    `gorm:"uniqueIndex" json:"fee_id"`
	AuctionID  string    `gorm:"index" json:"auction_id"`
	Username   string    `json:"username"`
	Kind       string    `json:"kind"` // LISTING or SALE
	Amount     int64     `json:"amount"`
	CreatedAt  time.Time `json:"created_at"`
}
