package auction

import (
	"errors"
	"time"

	"github.com/stellarion/auction-api/internal/store"
	"github.com/stellarion/auction-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// ListFilters narrows a marketplace query. Zero values mean "no filter".
type ListFilters struct {
	ItemType   string
	MinPrice   int64
	MaxPrice   int64
	HasBuyout  bool
	Seller     string
	ViewerClan string
}

// Sort orders accepted by ListListings.
const (
	SortNewest     = "newest"
	SortEndingSoon = "ending_soon"
	SortPriceAsc   = "price_asc"
	SortPriceDesc  = "price_desc"
)

func (d *Database) GetListing(auctionID string) (*types.AuctionListing, error) {
	var listing types.AuctionListing
	err := d.db.
		Preload("Bids", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("auction_id = ?", auctionID).
		First(&listing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrNotFound
		}
		return nil, err
	}
	return &listing, nil
}

// ListListings is a pure read over active listings: clan-restricted
// listings are only visible to members of the listing's clan.
func (d *Database) ListListings(filters ListFilters, sortBy string, page, limit int) ([]types.AuctionListing, int64, error) {
	query := d.db.Model(&types.AuctionListing{}).
		Where("status = ?", types.StatusActive).
		Where("clan_only = ? OR clan_tag = ?", false, filters.ViewerClan)

	if filters.ItemType != "" {
		query = query.Where("item_type = ?", filters.ItemType)
	}
	if filters.MinPrice > 0 {
		query = query.Where("current_bid >= ?", filters.MinPrice)
	}
	if filters.MaxPrice > 0 {
		query = query.Where("current_bid <= ?", filters.MaxPrice)
	}
	if filters.HasBuyout {
		query = query.Where("buyout_price > 0")
	}
	if filters.Seller != "" {
		query = query.Where("seller_username = ?", filters.Seller)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	switch sortBy {
	case SortEndingSoon:
		query = query.Order("expires_at ASC")
	case SortPriceAsc:
		query = query.Order("current_bid ASC")
	case SortPriceDesc:
		query = query.Order("current_bid DESC")
	default:
		query = query.Order("created_at DESC")
	}

	var listings []types.AuctionListing
	if err := query.Offset((page - 1) * limit).Limit(limit).Find(&listings).Error; err != nil {
		return nil, 0, err
	}
	return listings, total, nil
}

// GetSellerListings returns every listing a player has created, newest
// first, terminal listings included.
func (d *Database) GetSellerListings(username string) ([]types.AuctionListing, error) {
	var listings []types.AuctionListing
	err := d.db.
		Where("seller_username = ?", username).
		Order("created_at DESC").
		Find(&listings).Error
	if err != nil {
		return nil, err
	}
	return listings, nil
}

// GetBidderListings returns every listing the player has bid on.
func (d *Database) GetBidderListings(username string) ([]types.AuctionListing, error) {
	sub := d.db.Model(&types.Bid{}).Select("auction_id").Where("bidder = ?", username)

	var listings []types.AuctionListing
	err := d.db.
		Where("auction_id IN (?)", sub).
		Order("expires_at ASC").
		Find(&listings).Error
	if err != nil {
		return nil, err
	}
	return listings, nil
}

// TransitionIfActive is the single mutation entry point for a listing. The
// shared transition in internal/store does the transactional re-read,
// ACTIVE check and version CAS; a concurrent commit surfaces as
// ErrStaleListing and rolls back everything fn did, escrow movements
// included.
func (d *Database) TransitionIfActive(auctionID string, fn func(tx *gorm.DB, listing *types.AuctionListing) error) (*types.AuctionListing, error) {
	return store.TransitionIfActive(d.db, auctionID, fn)
}

// CreateListingWithIdempotency inserts a listing, its escrow setup and an
// idempotency record in one transaction. setup runs first so a failed item
// hold or fee debit leaves no listing behind.
func (d *Database) CreateListingWithIdempotency(listing *types.AuctionListing, idempotencyKey string, setup func(tx *gorm.DB) error) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := setup(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Create(listing).Error; err != nil {
		tx.Rollback()
		return err
	}

	record := types.IdempotencyRecord{
		IdempotencyKey: idempotencyKey,
		ResourceID:     listing.AuctionID,
		ResourceType:   "listing",
		ExpiresAt:      time.Now().Add(24 * time.Hour),
	}
	if err := tx.Create(&record).Error; err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

// GetIdempotencyRecord retrieves an idempotency record by key
func (d *Database) GetIdempotencyRecord(key string) (*types.IdempotencyRecord, error) {
	var record types.IdempotencyRecord
	if err := d.db.Where("idempotency_key = ?", key).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &record, nil
		}
		return nil, err
	}
	return &record, nil
}
