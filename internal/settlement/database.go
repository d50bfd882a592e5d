package settlement

import (
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

// GetDueListings returns the IDs of active listings whose expiry has
// passed. Only IDs are fetched; each listing is re-read inside its own
// transition so the sweep never acts on stale state.
func (d *Database) GetDueListings(now time.Time) ([]string, error) {
	var auctionIDs []string
	err := d.db.Model(&types.AuctionListing{}).
		Where("status = ? AND expires_at <= ?", types.StatusActive, now).
		Pluck("auction_id", &auctionIDs).Error
	if err != nil {
		return nil, err
	}
	return auctionIDs, nil
}

// TransitionIfActive applies fn to the listing via the shared transition
// in internal/store: transactional re-read, ACTIVE check, version CAS. A
// concurrent transition surfaces as ErrStaleListing and rolls back
// everything fn did.
func (d *Database) TransitionIfActive(auctionID string, fn func(tx *gorm.DB, listing *types.AuctionListing) error) (*types.AuctionListing, error) {
	return store.TransitionIfActive(d.db, auctionID, fn)
}
