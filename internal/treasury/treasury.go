// Package treasury is the game's resource and inventory ledger. The auction
// engine never touches balances directly; it goes through the escrow
// gateway, which drives these primitives inside its own transactions.
package treasury

import (
	"errors"
	"time"

	"github.com/stellarion/auction-api/internal/types"
	"gorm.io/gorm"
)

// PlayerBalance tracks a player's harvested resources.
type PlayerBalance struct {
	gorm.Model `json:"-"`
	Username   string    `gorm:"uniqueIndex" json:"username"`
	Metal      int64     `json:"metal"`
	Energy     int64     `json:"energy"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PlayerItem is an inventory stack: units or tradeable goods.
type PlayerItem struct {
	gorm.Model `json:"-"`
	Username   string `gorm:"index" json:"username"`
	ItemType   string `json:"item_type"` // UNIT or ITEM
	UnitType   string `json:"unit_type,omitempty"`
	Strength   int64  `json:"strength,omitempty"`
	Defense    int64  `json:"defense,omitempty"`
	Quantity   int64  `json:"quantity"`
}

// DebitMetal removes Metal from a player's balance, failing without any
// partial write when the balance is short.
func DebitMetal(tx *gorm.DB, username string, amount int64) error {
	result := tx.Model(&PlayerBalance{}).
		Where("username = ? AND metal >= ?", username, amount).
		Updates(map[string]interface{}{
			"metal":      gorm.Expr("metal - ?", amount),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return types.ErrInsufficientFunds
	}
	return nil
}

// CreditMetal adds Metal to a player's balance, creating the row if the
// player has never held resources before.
func CreditMetal(tx *gorm.DB, username string, amount int64) error {
	result := tx.Model(&PlayerBalance{}).
		Where("username = ?", username).
		Updates(map[string]interface{}{
			"metal":      gorm.Expr("metal + ?", amount),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return tx.Create(&PlayerBalance{Username: username, Metal: amount}).Error
	}
	return nil
}

func debitResource(tx *gorm.DB, username, resourceType string, amount int64) error {
	switch resourceType {
	case types.ResourceMetal:
		return DebitMetal(tx, username, amount)
	case types.ResourceEnergy:
		result := tx.Model(&PlayerBalance{}).
			Where("username = ? AND energy >= ?", username, amount).
			Updates(map[string]interface{}{
				"energy":     gorm.Expr("energy - ?", amount),
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return types.ErrItemNotOwned
		}
		return nil
	default:
		return types.ErrItemNotOwned
	}
}

func creditResource(tx *gorm.DB, username, resourceType string, amount int64) error {
	if resourceType == types.ResourceMetal {
		return CreditMetal(tx, username, amount)
	}
	result := tx.Model(&PlayerBalance{}).
		Where("username = ?", username).
		Updates(map[string]interface{}{
			"energy":     gorm.Expr("energy + ?", amount),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return tx.Create(&PlayerBalance{Username: username, Energy: amount}).Error
	}
	return nil
}

// TakeItem removes the described goods from the player's holdings. Resource
// stacks come off the balance; units and tradeable goods come out of
// inventory rows.
func TakeItem(tx *gorm.DB, username string, item types.ItemSpec) error {
	if item.ItemType == types.ItemTypeResource {
		return debitResource(tx, username, item.ResourceType, item.ResourceAmount)
	}

	quantity := itemQuantity(item)
	var row PlayerItem
	query := tx.Where(
		"username = ? AND item_type = ? AND unit_type = ? AND strength = ? AND defense = ? AND quantity >= ?",
		username, item.ItemType, item.UnitType, item.Strength, item.Defense, quantity,
	)
	if err := query.First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.ErrItemNotOwned
		}
		return err
	}

	if row.Quantity == quantity {
		return tx.Delete(&row).Error
	}
	return tx.Model(&row).Update("quantity", gorm.Expr("quantity - ?", quantity)).Error
}

// GiveItem places the described goods into the player's holdings, merging
// into an existing inventory stack where one matches.
func GiveItem(tx *gorm.DB, username string, item types.ItemSpec) error {
	if item.ItemType == types.ItemTypeResource {
		return creditResource(tx, username, item.ResourceType, item.ResourceAmount)
	}

	quantity := itemQuantity(item)
	result := tx.Model(&PlayerItem{}).
		Where("username = ? AND item_type = ? AND unit_type = ? AND strength = ? AND defense = ?",
			username, item.ItemType, item.UnitType, item.Strength, item.Defense).
		Update("quantity", gorm.Expr("quantity + ?", quantity))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return tx.Create(&PlayerItem{
			Username: username,
			ItemType: item.ItemType,
			UnitType: item.UnitType,
			Strength: item.Strength,
			Defense:  item.Defense,
			Quantity: quantity,
		}).Error
	}
	return nil
}

// GetBalance fetches a player's resource balance, returning a zero balance
// for players with no ledger row yet.
func GetBalance(db *gorm.DB, username string) (*PlayerBalance, error) {
	var balance PlayerBalance
	if err := db.Where("username = ?", username).First(&balance).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &PlayerBalance{Username: username}, nil
		}
		return nil, err
	}
	return &balance, nil
}

func itemQuantity(item types.ItemSpec) int64 {
	if item.ItemType == types.ItemTypeTradeable {
		if item.Quantity <= 0 {
			return 1
		}
		return item.Quantity
	}
	// Units trade one stack at a time.
	return 1
}
