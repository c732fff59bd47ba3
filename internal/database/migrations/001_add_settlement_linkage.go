package migrations

import (
	"github.com/Shah313/ecommerce-integrations-custom/internal/erp"
	"gorm.io/gorm"
)

// AddSettlementLinkage creates the invoice and payment tables carrying the
// settlement id columns the (invoice, settlement) dedup guard relies on
func AddSettlementLinkage(db *gorm.DB) error {
	if err := db.AutoMigrate(&erp.SalesInvoice{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&erp.PaymentEntry{}); err != nil {
		return err
	}

	return nil
}
