package auction

import (
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"github.com/stellarion/auction-api/internal/escrow"
	"github.com/stellarion/auction-api/internal/fees"
	"github.com/stellarion/auction-api/internal/settlement"
	"github.com/stellarion/auction-api/internal/types"
	"gorm.io/gorm"
)

var (
	bidsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auction_bids_accepted_total",
		Help: "Number of bids accepted by the bid ledger",
	})
	bidsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_bids_rejected_total",
		Help: "Number of bids rejected, by reason",
	}, []string{"reason"})
	listingsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auction_listings_created_total",
		Help: "Number of listings created",
	})
)

// Service owns the listing lifecycle: creation, bidding, buyout and
// cancellation. All mutations funnel through the store's atomic
// transition.
type Service struct {
	db *Database
}

// NewService creates a new auction service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// CreateListing validates pricing, escrows the seller's item, charges the
// duration-tier listing fee and inserts the ACTIVE record, all atomically.
// An idempotency key replays the original listing instead of double-charging.
func (s *Service) CreateListing(seller, clan string, req *types.CreateListingRequest, idempotencyKey string) (*types.AuctionListing, int64, error) {
	// Check for existing idempotency record
	record, err := s.db.GetIdempotencyRecord(idempotencyKey)
	if err == nil && record.ResourceID != "" && record.ExpiresAt.After(time.Now()) {
		existing, err := s.db.GetListing(record.ResourceID)
		if err != nil {
			return nil, 0, err
		}
		fee, _ := fees.ListingFee(existing.DurationHours)
		return existing, fee, nil
	}

	if err := validateListingRequest(req); err != nil {
		return nil, 0, err
	}
	fee, err := fees.ListingFee(req.DurationHours)
	if err != nil {
		return nil, 0, err
	}

	now := time.Now()
	listing := &types.AuctionListing{
		AuctionID:      "AUC_" + uuid.New().String(),
		SellerUsername: seller,
		Item:           req.Item,
		StartingBid:    req.StartingBid,
		CurrentBid:     req.StartingBid,
		BuyoutPrice:    req.BuyoutPrice,
		ReservePrice:   req.ReservePrice,
		DurationHours:  req.DurationHours,
		Status:         types.StatusActive,
		ClanOnly:       req.ClanOnly,
		ClanTag:        clan,
		CreatedAt:      now,
		ExpiresAt:      now.Add(time.Duration(req.DurationHours) * time.Hour),
	}

	err = s.db.CreateListingWithIdempotency(listing, idempotencyKey, func(tx *gorm.DB) error {
		hold, err := escrow.HoldItem(tx, listing.AuctionID, seller, req.Item)
		if err != nil {
			return err
		}
		listing.ItemHoldID = hold.HoldID
		return escrow.ChargeFee(tx, listing.AuctionID, seller, escrow.FeeKindListing, fee)
	})
	if err != nil {
		return nil, 0, err
	}

	listingsCreated.Inc()
	log.Info().
		Str("auction_id", listing.AuctionID).
		Str("seller", seller).
		Int64("starting_bid", listing.StartingBid).
		Int64("fee", fee).
		Int("duration_hours", listing.DurationHours).
		Msg("listing created")

	return listing, fee, nil
}

// PlaceBid validates and applies a single bid. On acceptance the bidder's
// funds are held and the previous highest bidder's hold is released in the
// same transaction as the listing update. A concurrent bid surfaces as
// ErrStaleListing so the client can refresh and resubmit.
func (s *Service) PlaceBid(auctionID, bidder, clan string, amount int64) (*types.AuctionListing, error) {
	listing, err := s.db.TransitionIfActive(auctionID, func(tx *gorm.DB, listing *types.AuctionListing) error {
		if listing.SellerUsername == bidder {
			return types.ErrSelfBid
		}
		if listing.ClanOnly && listing.ClanTag != clan {
			return types.ErrClanRestricted
		}
		// Lazy expiry: the sweep may not have run yet.
		if !time.Now().Before(listing.ExpiresAt) {
			return types.ErrExpired
		}
		if amount < listing.CurrentBid+types.MinBidIncrement {
			return types.ErrBelowMinimum
		}

		hold, err := escrow.HoldFunds(tx, listing.AuctionID, bidder, amount)
		if err != nil {
			return err
		}
		if listing.BidHoldID != "" {
			// Outbid refund for the previous highest bidder.
			if err := escrow.ReleaseHold(tx, listing.BidHoldID); err != nil {
				return err
			}
		}

		bid := &types.Bid{
			BidID:     "BID_" + uuid.New().String(),
			AuctionID: listing.AuctionID,
			Bidder:    bidder,
			Amount:    amount,
			CreatedAt: time.Now(),
		}
		if err := tx.Create(bid).Error; err != nil {
			return err
		}

		listing.CurrentBid = amount
		listing.HighestBidder = bidder
		listing.BidHoldID = hold.HoldID
		return nil
	})
	if err != nil {
		bidsRejected.WithLabelValues(rejectionReason(err)).Inc()
		return nil, err
	}

	bidsAccepted.Inc()
	log.Info().
		Str("auction_id", auctionID).
		Str("bidder", bidder).
		Int64("amount", amount).
		Msg("bid accepted")

	return listing, nil
}

// Buyout ends the auction immediately at the buyout price. The buyer is
// debited directly; any outstanding bid hold is refunded to the outbid
// player as part of settlement.
func (s *Service) Buyout(auctionID, buyer, clan string) (*types.AuctionListing, error) {
	listing, err := s.db.TransitionIfActive(auctionID, func(tx *gorm.DB, listing *types.AuctionListing) error {
		if listing.BuyoutPrice == 0 {
			return types.ErrNoBuyout
		}
		if listing.SellerUsername == buyer {
			return types.ErrSelfBuyout
		}
		if listing.ClanOnly && listing.ClanTag != clan {
			return types.ErrClanRestricted
		}
		if !time.Now().Before(listing.ExpiresAt) {
			return types.ErrExpired
		}
		return settlement.SettleSale(tx, listing, listing.BuyoutPrice, buyer, false)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("auction_id", auctionID).
		Str("buyer", buyer).
		Int64("price", listing.FinalPrice).
		Msg("listing bought out")

	return listing, nil
}

// Cancel withdraws a listing. Only the seller may cancel, and only while
// no bids exist; the item is returned but the listing fee is kept.
func (s *Service) Cancel(auctionID, seller string) (*types.AuctionListing, error) {
	listing, err := s.db.TransitionIfActive(auctionID, func(tx *gorm.DB, listing *types.AuctionListing) error {
		if listing.SellerUsername != seller {
			return types.ErrNotFound
		}
		if listing.HighestBidder != "" {
			return types.ErrHasBids
		}
		return settlement.SettleVoid(tx, listing, types.StatusCancelled)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("auction_id", auctionID).
		Str("seller", seller).
		Msg("listing cancelled")

	return listing, nil
}

// GetListing retrieves a listing with its bid history.
func (s *Service) GetListing(auctionID string) (*types.AuctionListing, error) {
	return s.db.GetListing(auctionID)
}

// ListListings runs a filtered, sorted, paginated marketplace query.
func (s *Service) ListListings(filters ListFilters, sortBy string, page, limit int) (*types.ListingPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 25
	}

	listings, total, err := s.db.ListListings(filters, sortBy, page, limit)
	if err != nil {
		return nil, err
	}

	views := make([]types.ListingView, 0, len(listings))
	for i := range listings {
		views = append(views, types.NewListingView(&listings[i], "", false))
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &types.ListingPage{
		Auctions:   views,
		TotalCount: total,
		TotalPages: totalPages,
		Page:       page,
	}, nil
}

// MyListings returns the caller's own listings, reserve prices included.
func (s *Service) MyListings(username string) ([]types.ListingView, error) {
	listings, err := s.db.GetSellerListings(username)
	if err != nil {
		return nil, err
	}
	views := make([]types.ListingView, 0, len(listings))
	for i := range listings {
		views = append(views, types.NewListingView(&listings[i], username, false))
	}
	return views, nil
}

// MyBids returns listings the caller has bid on, soonest-ending first.
func (s *Service) MyBids(username string) ([]types.ListingView, error) {
	listings, err := s.db.GetBidderListings(username)
	if err != nil {
		return nil, err
	}
	views := make([]types.ListingView, 0, len(listings))
	for i := range listings {
		views = append(views, types.NewListingView(&listings[i], "", false))
	}
	return views, nil
}

func validateListingRequest(req *types.CreateListingRequest) error {
	if req.StartingBid < types.MinStartingBid || req.StartingBid > types.MaxStartingBid {
		return types.ErrInvalidPricing
	}
	if req.BuyoutPrice != 0 && req.BuyoutPrice <= req.StartingBid {
		return types.ErrInvalidPricing
	}
	if req.ReservePrice != 0 && req.ReservePrice < req.StartingBid {
		return types.ErrInvalidPricing
	}
	if !fees.ValidDuration(req.DurationHours) {
		return types.ErrInvalidDuration
	}
	return validateItem(req.Item)
}

func validateItem(item types.ItemSpec) error {
	switch item.ItemType {
	case types.ItemTypeUnit:
		if item.UnitType == "" {
			return types.ErrItemNotOwned
		}
	case types.ItemTypeResource:
		if item.ResourceType != types.ResourceMetal && item.ResourceType != types.ResourceEnergy {
			return types.ErrItemNotOwned
		}
		if item.ResourceAmount <= 0 {
			return types.ErrItemNotOwned
		}
	case types.ItemTypeTradeable:
		if item.Quantity <= 0 {
			return types.ErrItemNotOwned
		}
	default:
		return types.ErrItemNotOwned
	}
	return nil
}

func rejectionReason(err error) string {
	switch err {
	case types.ErrSelfBid:
		return "self_bid"
	case types.ErrBelowMinimum:
		return "below_minimum"
	case types.ErrExpired:
		return "expired"
	case types.ErrStaleListing:
		return "stale"
	case types.ErrNotActive:
		return "not_active"
	case types.ErrInsufficientFunds:
		return "insufficient_funds"
	case types.ErrClanRestricted:
		return "clan_restricted"
	default:
		return "other"
	}
}
