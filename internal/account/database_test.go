package account

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Account{}, &ItemFieldMapping{}))

	return NewDatabase(db)
}

func TestDisableSyncHappensAtMostOnce(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.CreateAccount(&Account{Name: "amazon-us", EnableSync: true}))

	disabled, err := db.DisableSync("amazon-us")
	require.NoError(t, err)
	assert.True(t, disabled)

	// The flag is already cleared, so a second call is a no-op
	disabled, err = db.DisableSync("amazon-us")
	require.NoError(t, err)
	assert.False(t, disabled)

	acc, err := db.GetAccount("amazon-us")
	require.NoError(t, err)
	require.NotNil(t, acc)
	assert.False(t, acc.EnableSync)
}

func TestEnableSyncRestoresDisabledAccount(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.CreateAccount(&Account{Name: "amazon-us", EnableSync: false}))
	require.NoError(t, db.EnableSync("amazon-us"))

	acc, err := db.GetAccount("amazon-us")
	require.NoError(t, err)
	assert.True(t, acc.EnableSync)

	assert.Error(t, db.EnableSync("missing"))
}

func TestGetAccountOrdersMappingsByPriority(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.CreateAccount(&Account{
		Name:       "amazon-us",
		EnableSync: true,
		FieldMappings: []ItemFieldMapping{
			{AccountName: "amazon-us", MarketplaceField: "ASIN", ItemField: "item_name", UseToFindItem: true, Priority: 2},
			{AccountName: "amazon-us", MarketplaceField: "SellerSKU", ItemField: "item_code", UseToFindItem: true, Priority: 1},
		},
	}))

	acc, err := db.GetAccount("amazon-us")
	require.NoError(t, err)
	require.NotNil(t, acc)
	require.Len(t, acc.FieldMappings, 2)
	assert.Equal(t, "SellerSKU", acc.FieldMappings[0].MarketplaceField)
	assert.Equal(t, "ASIN", acc.FieldMappings[1].MarketplaceField)
}

func TestGetSyncEnabledAccounts(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.CreateAccount(&Account{Name: "amazon-us", EnableSync: true}))
	require.NoError(t, db.CreateAccount(&Account{Name: "amazon-de", EnableSync: false}))

	accounts, err := db.GetSyncEnabledAccounts()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "amazon-us", accounts[0].Name)
}
