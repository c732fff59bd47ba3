package database

import (
	"fmt"

	"github.com/Shah313/ecommerce-integrations-custom/internal/account"
	"github.com/Shah313/ecommerce-integrations-custom/internal/database/migrations"
	"github.com/Shah313/ecommerce-integrations-custom/internal/erp"
	"github.com/Shah313/ecommerce-integrations-custom/internal/ordersync"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := migrations.AddSettlementLinkage(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := migrations.AddItemFieldMappings(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Auto-migrate other schemas
	err = db.AutoMigrate(
		&account.Account{},
		&erp.Customer{},
		&erp.Address{},
		&erp.Item{},
		&erp.ItemReference{},
		&erp.LedgerAccount{},
		&erp.CurrencyExchange{},
		&erp.SalesOrder{},
		&erp.SalesOrderItem{},
		&erp.TaxLine{},
		&erp.DeliveryNote{},
		&erp.DeliveryNoteItem{},
		&erp.SalesInvoiceItem{},
		&ordersync.SyncRun{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
