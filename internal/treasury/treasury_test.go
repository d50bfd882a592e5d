package treasury

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stellarion/auction-api/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&PlayerBalance{}, &PlayerItem{}))
	return db
}

func TestCreditAndDebitMetal(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, CreditMetal(db, "vex", 1000))

	balance, err := GetBalance(db, "vex")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance.Metal)

	require.NoError(t, DebitMetal(db, "vex", 400))
	balance, err = GetBalance(db, "vex")
	require.NoError(t, err)
	assert.Equal(t, int64(600), balance.Metal)
}

func TestDebitMetalInsufficientFunds(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, CreditMetal(db, "vex", 100))
	err := DebitMetal(db, "vex", 101)
	assert.ErrorIs(t, err, types.ErrInsufficientFunds)

	// Nothing was taken.
	balance, err := GetBalance(db, "vex")
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance.Metal)
}

func TestDebitUnknownPlayer(t *testing.T) {
	db := newTestDB(t)

	err := DebitMetal(db, "ghost", 1)
	assert.ErrorIs(t, err, types.ErrInsufficientFunds)
}

func TestGetBalanceUnknownPlayer(t *testing.T) {
	db := newTestDB(t)

	balance, err := GetBalance(db, "ghost")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance.Metal)
	assert.Equal(t, int64(0), balance.Energy)
}

func TestTakeAndGiveResource(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, CreditMetal(db, "vex", 500))

	item := types.ItemSpec{
		ItemType:       types.ItemTypeResource,
		ResourceType:   types.ResourceMetal,
		ResourceAmount: 300,
	}
	require.NoError(t, TakeItem(db, "vex", item))

	balance, err := GetBalance(db, "vex")
	require.NoError(t, err)
	assert.Equal(t, int64(200), balance.Metal)

	require.NoError(t, GiveItem(db, "drel", item))
	balance, err = GetBalance(db, "drel")
	require.NoError(t, err)
	assert.Equal(t, int64(300), balance.Metal)
}

func TestTakeEnergyResource(t *testing.T) {
	db := newTestDB(t)

	item := types.ItemSpec{
		ItemType:       types.ItemTypeResource,
		ResourceType:   types.ResourceEnergy,
		ResourceAmount: 50,
	}
	require.NoError(t, GiveItem(db, "vex", item))

	require.NoError(t, TakeItem(db, "vex", item))
	err := TakeItem(db, "vex", item)
	assert.ErrorIs(t, err, types.ErrItemNotOwned)
}

func TestTakeAndGiveTradeableStack(t *testing.T) {
	db := newTestDB(t)

	stack := types.ItemSpec{ItemType: types.ItemTypeTradeable, Quantity: 5}
	require.NoError(t, GiveItem(db, "vex", stack))

	// Taking part of the stack decrements it.
	part := types.ItemSpec{ItemType: types.ItemTypeTradeable, Quantity: 2}
	require.NoError(t, TakeItem(db, "vex", part))

	var row PlayerItem
	require.NoError(t, db.Where("username = ?", "vex").First(&row).Error)
	assert.Equal(t, int64(3), row.Quantity)

	// Taking the remainder removes the row.
	rest := types.ItemSpec{ItemType: types.ItemTypeTradeable, Quantity: 3}
	require.NoError(t, TakeItem(db, "vex", rest))

	err := db.Where("username = ?", "vex").First(&row).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestTakeUnitNotOwned(t *testing.T) {
	db := newTestDB(t)

	unit := types.ItemSpec{
		ItemType: types.ItemTypeUnit,
		UnitType: "interceptor",
		Strength: 40,
		Defense:  20,
	}
	err := TakeItem(db, "vex", unit)
	assert.ErrorIs(t, err, types.ErrItemNotOwned)

	require.NoError(t, GiveItem(db, "vex", unit))
	require.NoError(t, TakeItem(db, "vex", unit))
}
