package erp

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrDocumentSubmitted = errors.New("document is submitted and cannot be modified")
	ErrUnknownItemField  = errors.New("unknown item lookup field")
)

// Database is the document store. Lookups for active documents always
// filter docstatus < cancelled so the at-most-one-active invariant holds.
type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// ---------------------------------------------------------------------
// Customers & addresses
// ---------------------------------------------------------------------

func (d *Database) GetCustomer(name string) (*Customer, error) {
	var customer Customer
	if err := d.db.Where("name = ?", name).First(&customer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &customer, nil
}

func (d *Database) CreateCustomer(customer *Customer) error {
	return d.db.Create(customer).Error
}

func (d *Database) GetAddress(customerName, line1, postalCode string) (*Address, error) {
	var addr Address
	err := d.db.Where(
		"customer_name = ? AND address_line1 = ? AND postal_code = ?",
		customerName, line1, postalCode,
	).First(&addr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &addr, nil
}

func (d *Database) CreateAddress(addr *Address) error {
	return d.db.Create(addr).Error
}

// ---------------------------------------------------------------------
// Items
// ---------------------------------------------------------------------

func (d *Database) GetItemByCode(code string) (*Item, error) {
	return d.getItem("item_code = ?", code)
}

// GetItemByField looks an item up by a configured mapping field. The field
// set is enumerated explicitly; unknown fields are a configuration error.
func (d *Database) GetItemByField(field, value string) (*Item, error) {
	switch field {
	case "item_code":
		return d.getItem("item_code = ?", value)
	case "item_name":
		return d.getItem("item_name = ?", value)
	case "description":
		return d.getItem("description = ?", value)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownItemField, field)
	}
}

func (d *Database) getItem(query string, value string) (*Item, error) {
	var item Item
	if err := d.db.Where(query, value).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// CreateItemWithReference creates the item and its marketplace
// cross-reference in one transaction
func (d *Database) CreateItemWithReference(item *Item, ref *ItemReference) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(item).Error; err != nil {
			return err
		}
		return tx.Create(ref).Error
	})
}

func (d *Database) GetItemReferenceBySKU(integration, sku string) (*ItemReference, error) {
	var ref ItemReference
	err := d.db.Where("integration = ? AND sku = ?", integration, sku).First(&ref).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ref, nil
}

// ---------------------------------------------------------------------
// Ledger accounts & currency
// ---------------------------------------------------------------------

// GetOrCreateLedgerAccount returns the posting account for a marketplace
// charge type, creating it under the configured parent group on first use
func (d *Database) GetOrCreateLedgerAccount(name, company, parentAccount string) (*LedgerAccount, error) {
	var acct LedgerAccount
	err := d.db.Where("name = ?", name).First(&acct).Error
	if err == nil {
		return &acct, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	acct = LedgerAccount{
		Name:          name,
		Company:       company,
		ParentAccount: parentAccount,
	}
	if err := d.db.Create(&acct).Error; err != nil {
		return nil, err
	}
	return &acct, nil
}

func (d *Database) GetLedgerAccount(name string) (*LedgerAccount, error) {
	var acct LedgerAccount
	if err := d.db.Where("name = ?", name).First(&acct).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &acct, nil
}

// GetExchangeRate returns the conversion rate between two currencies.
// Identical currencies always convert at 1.
func (d *Database) GetExchangeRate(from, to string) (float64, error) {
	if from == to {
		return 1, nil
	}
	var exchange CurrencyExchange
	err := d.db.Where("from_currency = ? AND to_currency = ?", from, to).
		Order("created_at DESC").
		First(&exchange).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("no exchange rate found for %s -> %s", from, to)
		}
		return 0, err
	}
	return exchange.Rate, nil
}

func (d *Database) CreateExchangeRate(exchange *CurrencyExchange) error {
	return d.db.Create(exchange).Error
}

// ---------------------------------------------------------------------
// Sales Orders
// ---------------------------------------------------------------------

// GetSalesOrderByAmazonOrderID returns the active (non-cancelled) Sales
// Order for a marketplace order, or nil
func (d *Database) GetSalesOrderByAmazonOrderID(amazonOrderID string) (*SalesOrder, error) {
	var so SalesOrder
	err := d.db.Preload("Items").
		Where("amazon_order_id = ? AND docstatus < ?", amazonOrderID, DocstatusCancelled).
		First(&so).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &so, nil
}

// CreateSalesOrder persists the order, its items and its tax lines in one
// transaction
func (d *Database) CreateSalesOrder(so *SalesOrder, taxes []TaxLine) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(so).Error; err != nil {
			return err
		}
		for i := range taxes {
			taxes[i].ParentType = TaxParentSalesOrder
			taxes[i].ParentID = so.SalesOrderID
			if err := tx.Create(&taxes[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *Database) SubmitSalesOrder(salesOrderID string) error {
	return d.submit(&SalesOrder{}, "sales_order_id = ?", salesOrderID)
}

func (d *Database) CancelSalesOrder(salesOrderID string) error {
	return d.cancel(&SalesOrder{}, "sales_order_id = ?", salesOrderID)
}

// ---------------------------------------------------------------------
// Delivery Notes
// ---------------------------------------------------------------------

func (d *Database) GetDeliveryNoteByAmazonOrderID(amazonOrderID string) (*DeliveryNote, error) {
	var dn DeliveryNote
	err := d.db.Preload("Items").
		Where("amazon_order_id = ? AND docstatus < ?", amazonOrderID, DocstatusCancelled).
		First(&dn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &dn, nil
}

func (d *Database) CreateDeliveryNote(dn *DeliveryNote) error {
	return d.db.Create(dn).Error
}

func (d *Database) SubmitDeliveryNote(deliveryNoteID string) error {
	return d.submit(&DeliveryNote{}, "delivery_note_id = ?", deliveryNoteID)
}

func (d *Database) CancelDeliveryNote(deliveryNoteID string) error {
	return d.cancel(&DeliveryNote{}, "delivery_note_id = ?", deliveryNoteID)
}

// ---------------------------------------------------------------------
// Sales Invoices
// ---------------------------------------------------------------------

func (d *Database) GetSalesInvoiceByAmazonOrderID(amazonOrderID string) (*SalesInvoice, error) {
	var si SalesInvoice
	err := d.db.Preload("Items").
		Where("amazon_order_id = ? AND docstatus < ?", amazonOrderID, DocstatusCancelled).
		First(&si).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &si, nil
}

// CreateSalesInvoice persists the invoice, its items and its tax lines in
// one transaction
func (d *Database) CreateSalesInvoice(si *SalesInvoice, taxes []TaxLine) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(si).Error; err != nil {
			return err
		}
		for i := range taxes {
			taxes[i].ParentType = TaxParentSalesInvoice
			taxes[i].ParentID = si.SalesInvoiceID
			if err := tx.Create(&taxes[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateSalesInvoice re-syncs a draft invoice's header and replaces its tax
// lines. Submitted invoices are immutable.
func (d *Database) UpdateSalesInvoice(si *SalesInvoice, taxes []TaxLine) error {
	if si.Docstatus != DocstatusDraft {
		return ErrDocumentSubmitted
	}
	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(si).Error; err != nil {
			return err
		}
		err := tx.Where("parent_type = ? AND parent_id = ?", TaxParentSalesInvoice, si.SalesInvoiceID).
			Delete(&TaxLine{}).Error
		if err != nil {
			return err
		}
		for i := range taxes {
			taxes[i].ID = 0
			taxes[i].ParentType = TaxParentSalesInvoice
			taxes[i].ParentID = si.SalesInvoiceID
			if err := tx.Create(&taxes[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *Database) SubmitSalesInvoice(salesInvoiceID string) error {
	return d.submit(&SalesInvoice{}, "sales_invoice_id = ?", salesInvoiceID)
}

func (d *Database) CancelSalesInvoice(salesInvoiceID string) error {
	return d.cancel(&SalesInvoice{}, "sales_invoice_id = ?", salesInvoiceID)
}

// ---------------------------------------------------------------------
// Payment Entries
// ---------------------------------------------------------------------

// GetPaymentEntryForSettlement returns the active Payment Entry for an
// (invoice, settlement) pair, or nil
func (d *Database) GetPaymentEntryForSettlement(salesInvoiceID, settlementID string) (*PaymentEntry, error) {
	var pe PaymentEntry
	err := d.db.Where(
		"sales_invoice_id = ? AND settlement_id = ? AND docstatus < ?",
		salesInvoiceID, settlementID, DocstatusCancelled,
	).First(&pe).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pe, nil
}

// GetPaymentEntryByOrder returns the active Payment Entry of the given
// direction for a marketplace order, or nil
func (d *Database) GetPaymentEntryByOrder(amazonOrderID, paymentType string) (*PaymentEntry, error) {
	var pe PaymentEntry
	err := d.db.Where(
		"amazon_order_id = ? AND payment_type = ? AND docstatus < ?",
		amazonOrderID, paymentType, DocstatusCancelled,
	).First(&pe).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pe, nil
}

// CreatePaymentEntryForSettlement creates the entry and records the
// settlement on the invoice in one transaction so the linkage invariant
// cannot be half-applied
func (d *Database) CreatePaymentEntryForSettlement(pe *PaymentEntry) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(pe).Error; err != nil {
			return err
		}
		if pe.SettlementID == "" {
			return nil
		}
		return tx.Model(&SalesInvoice{}).
			Where("sales_invoice_id = ?", pe.SalesInvoiceID).
			Update("settlement_id", pe.SettlementID).Error
	})
}

func (d *Database) CreatePaymentEntry(pe *PaymentEntry) error {
	return d.db.Create(pe).Error
}

func (d *Database) UpdatePaymentEntry(pe *PaymentEntry) error {
	if pe.Docstatus != DocstatusDraft {
		return ErrDocumentSubmitted
	}
	return d.db.Save(pe).Error
}

func (d *Database) SubmitPaymentEntry(paymentEntryID string) error {
	return d.submit(&PaymentEntry{}, "payment_entry_id = ?", paymentEntryID)
}

func (d *Database) CancelPaymentEntry(paymentEntryID string) error {
	return d.cancel(&PaymentEntry{}, "payment_entry_id = ?", paymentEntryID)
}

// ---------------------------------------------------------------------
// Tax lines
// ---------------------------------------------------------------------

func (d *Database) GetTaxLines(parentType, parentID string) ([]TaxLine, error) {
	var taxes []TaxLine
	err := d.db.Where("parent_type = ? AND parent_id = ?", parentType, parentID).
		Order("id ASC").
		Find(&taxes).Error
	if err != nil {
		return nil, err
	}
	return taxes, nil
}

// ---------------------------------------------------------------------
// Shared docstatus transitions
// ---------------------------------------------------------------------

func (d *Database) submit(model interface{}, query string, id string) error {
	result := d.db.Model(model).
		Where(query+" AND docstatus = ?", id, DocstatusDraft).
		Update("docstatus", DocstatusSubmitted)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("document not found or not in draft")
	}
	return nil
}

func (d *Database) cancel(model interface{}, query string, id string) error {
	result := d.db.Model(model).
		Where(query+" AND docstatus < ?", id, DocstatusCancelled).
		Update("docstatus", DocstatusCancelled)
	if result.Error != nil {
		return result.Error
	}
	return nil
}
