package migrations

import (
	"github.com/stellarion/auction-api/internal/escrow"
	"gorm.io/gorm"
)

func AddEscrowLedger(db *gorm.DB) error {
	if err := db.AutoMigrate(&escrow.EscrowHold{}); err != nil {
		return err
	}

	return db.AutoMigrate(&escrow.FeeRecord{})
}
