package migrations

import (
	"github.com/Shah313/ecommerce-integrations-custom/internal/account"
	"gorm.io/gorm"
)

// AddItemFieldMappings creates the per-account item field mapping table
// used to resolve marketplace order lines onto ERP items
func AddItemFieldMappings(db *gorm.DB) error {
	return db.AutoMigrate(&account.ItemFieldMapping{})
}
