// Package escrow is the gateway between the auction engine and the
// treasury ledger. Every operation runs on the caller's transaction so a
// hold and the listing mutation it backs commit or roll back together.
// Release and transfer are idempotent: a hold already in a terminal state
// is left untouched.
package escrow

import (
	"errors"

	"github.com/google/uuid"
	"github.com/stellarion/auction-api/internal/treasury"
	"github.com/stellarion/auction-api/internal/types"
	"gorm.io/gorm"
)

// HoldFunds debits the bidder and records the reservation. Fails with
// ErrInsufficientFunds without any partial write.
func HoldFunds(tx *gorm.DB, auctionID, username string, amount int64) (*EscrowHold, error) {
	if err := treasury.DebitMetal(tx, username, amount); err != nil {
		return nil, err
	}
	hold := &EscrowHold{
		HoldID:    "HOLD_" + uuid.New().String(),
		AuctionID: auctionID,
		Username:  username,
		Kind:      HoldKindFunds,
		Status:    HoldStatusHeld,
		Amount:    amount,
	}
	if err := tx.Create(hold).Error; err != nil {
		return nil, err
	}
	return hold, nil
}

// HoldItem takes the listed goods out of the seller's holdings and records
// the reservation. Fails with ErrItemNotOwned when the seller does not
// hold the goods.
func HoldItem(tx *gorm.DB, auctionID, username string, item types.ItemSpec) (*EscrowHold, error) {
	if err := treasury.TakeItem(tx, username, item); err != nil {
		return nil, err
	}
	hold := &EscrowHold{
		HoldID:    "HOLD_" + uuid.New().String(),
		AuctionID: auctionID,
		Username:  username,
		Kind:      HoldKindItem,
		Status:    HoldStatusHeld,
		Item:      item,
	}
	if err := tx.Create(hold).Error; err != nil {
		return nil, err
	}
	return hold, nil
}

// ReleaseHold returns held funds or goods to their original owner. A hold
// already released or transferred is a no-op.
func ReleaseHold(tx *gorm.DB, holdID string) error {
	hold, err := claimHold(tx, holdID, HoldStatusReleased)
	if err != nil || hold == nil {
		return err
	}
	if hold.Kind == HoldKindFunds {
		return treasury.CreditMetal(tx, hold.Username, hold.Amount)
	}
	return treasury.GiveItem(tx, hold.Username, hold.Item)
}

// TransferHold delivers held goods to the given player, or credits held
// funds to them. A hold already settled is a no-op.
func TransferHold(tx *gorm.DB, holdID, toUsername string) error {
	hold, err := claimHold(tx, holdID, HoldStatusTransferred)
	if err != nil || hold == nil {
		return err
	}
	if hold.Kind == HoldKindFunds {
		return treasury.CreditMetal(tx, toUsername, hold.Amount)
	}
	return treasury.GiveItem(tx, toUsername, hold.Item)
}

// ConsumeHold marks a funds hold as transferred without crediting anyone.
// Used at settlement when the held amount is split between seller credit
// and sale fee by the caller.
func ConsumeHold(tx *gorm.DB, holdID string) error {
	_, err := claimHold(tx, holdID, HoldStatusTransferred)
	return err
}

// claimHold atomically moves a hold from HELD to the given terminal status.
// Returns nil, nil when the hold was already terminal.
func claimHold(tx *gorm.DB, holdID, toStatus string) (*EscrowHold, error) {
	var hold EscrowHold
	if err := tx.Where("hold_id = ?", holdID).First(&hold).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrNotFound
		}
		return nil, err
	}
	if hold.Status != HoldStatusHeld {
		return nil, nil
	}
	result := tx.Model(&EscrowHold{}).
		Where("hold_id = ? AND status = ?", holdID, HoldStatusHeld).
		Update("status", toStatus)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &hold, nil
}

// ChargeFee debits the player and records the fee for audit.
func ChargeFee(tx *gorm.DB, auctionID, username, kind string, amount int64) error {
	if err := treasury.DebitMetal(tx, username, amount); err != nil {
		return err
	}
	return recordFee(tx, auctionID, username, kind, amount)
}

// RecordFee logs a fee that was already taken out of a settlement amount.
func RecordFee(tx *gorm.DB, auctionID, username, kind string, amount int64) error {
	return recordFee(tx, auctionID, username, kind, amount)
}

func recordFee(tx *gorm.DB, auctionID, username, kind string, amount int64) error {
	return tx.Create(&FeeRecord{
		FeeID:     "FEE_" + uuid.New().String(),
		AuctionID: auctionID,
		Username:  username,
		Kind:      kind,
		Amount:    amount,
	}).Error
}

// GetHold fetches a hold by ID.
func GetHold(db *gorm.DB, holdID string) (*EscrowHold, error) {
	var hold EscrowHold
	if err := db.Where("hold_id = ?", holdID).First(&hold).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrNotFound
		}
		return nil, err
	}
	return &hold, nil
}

// FeesForAuction returns all fee records charged against a listing.
func FeesForAuction(db *gorm.DB, auctionID string) ([]FeeRecord, error) {
	var records []FeeRecord
	if err := db.Where("auction_id = ?", auctionID).Order("created_at ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
