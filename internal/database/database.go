package database

import (
	"fmt"
	"os"

	"github.com/stellarion/auction-api/internal/database/migrations"
	"github.com/stellarion/auction-api/internal/escrow"
	"github.com/stellarion/auction-api/internal/treasury"
	"github.com/stellarion/auction-api/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase() (*gorm.DB, error) {
	path := os.Getenv("AUCTION_DB")
	if path == "" {
		path = "auction.db"
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := migrations.AddBidHistory(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := migrations.AddEscrowLedger(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Auto-migrate other schemas
	err = db.AutoMigrate(
		&types.AuctionListing{},
		&types.IdempotencyRecord{},
		&treasury.PlayerBalance{},
		&treasury.PlayerItem{},
	)
	if err != nil {
		return nil, err
	}

	// escrow tables are created by AddEscrowLedger; keep AutoMigrate for
	// columns added since
	if err := db.AutoMigrate(&escrow.EscrowHold{}, &escrow.FeeRecord{}); err != nil {
		return nil, err
	}

	return db, nil
}
