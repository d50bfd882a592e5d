package migrations

import (
	"github.com/stellarion/auction-api/internal/types"
	"gorm.io/gorm"
)

func AddBidHistory(db *gorm.DB) error {
	if err := db.AutoMigrate(&types.Bid{}); err != nil {
		return err
	}

	return db.AutoMigrate(&types.AuctionListing{})
}
