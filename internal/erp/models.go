package erp

import (
	"time"

	"gorm.io/gorm"
)

// Document lifecycle states. Draft documents may be updated in place;
// submitted documents are financially posted and never mutated, corrections
// happen via new documents; cancelled documents are ignored by the
// at-most-one-active lookups.
const (
	DocstatusDraft     = 0
	DocstatusSubmitted = 1
	DocstatusCancelled = 2
)

type Customer struct {
	gorm.Model    `json:"-"`
	Name          string `gorm:"uniqueIndex" json:"name"`
	CustomerGroup string `json:"customer_group"`
	Territory     string `json:"territory"`
	CustomerType  string `json:"customer_type"`
}

type Address struct {
	gorm.Model    `json:"-"`
	CustomerName  string `gorm:"index" json:"customer_name"`
	AddressType   string `json:"address_type"`
	AddressLine1  string `json:"address_line1"`
	City          string `json:"city"`
	StateOrRegion string `json:"state_or_region"`
	PostalCode    string `json:"postal_code"`
	Country       string `json:"country"`
}

type Item struct {
	gorm.Model   `json:"-"`
	ItemCode     string `gorm:"uniqueIndex" json:"item_code"`
	ItemName     string `json:"item_name"`
	Description  string `json:"description"`
	ItemGroup    string `json:"item_group"`
	Brand        string `json:"brand"`
	Manufacturer string `json:"manufacturer"`
	StockUOM     string `json:"stock_uom"`
}

// ItemReference cross-links a locally created item to its marketplace
// identifiers (external-SKU cross-reference record)
type ItemReference struct {
	gorm.Model          `json:"-"`
	Integration         string `json:"integration"`
	ItemCode            string `gorm:"index" json:"item_code"`
	IntegrationItemCode string `json:"integration_item_code"`
	SKU                 string `gorm:"index" json:"sku"`
}

// LedgerAccount is an auto-created posting account for a marketplace charge
// or fee type, e.g. "Amazon Shipping"
type LedgerAccount struct {
	gorm.Model    `json:"-"`
	Name          string `gorm:"uniqueIndex" json:"name"`
	Company       string `json:"company"`
	ParentAccount string `json:"parent_account"`
}

// CurrencyExchange holds conversion rates used when the settlement currency
// differs from the company base currency
type CurrencyExchange struct {
	gorm.Model   `json:"-"`
	FromCurrency string  `gorm:"index:idx_currency_pair" json:"from_currency"`
	ToCurrency   string  `gorm:"index:idx_currency_pair" json:"to_currency"`
	Rate         float64 `json:"rate"`
}

type SalesOrder struct {
	gorm.Model      `json:"-"`
	SalesOrderID    string    `gorm:"uniqueIndex" json:"sales_order_id"`
	AmazonOrderID   string    `gorm:"index" json:"amazon_order_id"`
	MarketplaceID   string    `json:"marketplace_id"`
	Company         string    `json:"company"`
	CustomerName    string    `json:"customer_name"`
	TransactionDate time.Time `json:"transaction_date"`
	DeliveryDate    time.Time `json:"delivery_date"`
	Currency        string    `json:"currency"`
	ConversionRate  float64   `json:"conversion_rate"`
	Docstatus       int       `gorm:"index" json:"docstatus"`

	Items []SalesOrderItem `gorm:"foreignKey:SalesOrderID;references:SalesOrderID" json:"items,omitempty"`
}

type SalesOrderItem struct {
	gorm.Model       `json:"-"`
	SalesOrderID     string  `gorm:"index" json:"sales_order_id"`
	ItemCode         string  `json:"item_code"`
	ItemName         string  `json:"item_name"`
	Description      string  `json:"description"`
	Qty              float64 `json:"qty"`
	Rate             float64 `json:"rate"`
	Warehouse        string  `json:"warehouse"`
	StockUOM         string  `json:"stock_uom"`
	ConversionFactor float64 `json:"conversion_factor"`
}

// TaxLine is a tax or charge row belonging to a Sales Order or Sales
// Invoice, identified by (ParentType, ParentID)
type TaxLine struct {
	gorm.Model  `json:"-"`
	ParentType  string  `gorm:"index:idx_tax_parent" json:"parent_type"`
	ParentID    string  `gorm:"index:idx_tax_parent" json:"parent_id"`
	ChargeType  string  `json:"charge_type"`
	AccountHead string  `json:"account_head"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

// Parent type values for TaxLine
const (
	TaxParentSalesOrder   = "Sales Order"
	TaxParentSalesInvoice = "Sales Invoice"
)

type DeliveryNote struct {
	gorm.Model     `json:"-"`
	DeliveryNoteID string `gorm:"uniqueIndex" json:"delivery_note_id"`
	AmazonOrderID  string `gorm:"index" json:"amazon_order_id"`
	SalesOrderID   string `json:"sales_order_id"`
	Company        string `json:"company"`
	CustomerName   string `json:"customer_name"`
	Docstatus      int    `gorm:"index" json:"docstatus"`

	Items []DeliveryNoteItem `gorm:"foreignKey:DeliveryNoteID;references:DeliveryNoteID" json:"items,omitempty"`
}

// DeliveryNoteItem carries the originating sales-order line reference so
// deliveries stay traceable to the ordered line
type DeliveryNoteItem struct {
	gorm.Model       `json:"-"`
	DeliveryNoteID   string  `gorm:"index" json:"delivery_note_id"`
	ItemCode         string  `json:"item_code"`
	ItemName         string  `json:"item_name"`
	Description      string  `json:"description"`
	Qty              float64 `json:"qty"`
	Rate             float64 `json:"rate"`
	Warehouse        string  `json:"warehouse"`
	SalesOrderID     string  `json:"sales_order_id"`
	SalesOrderItemID uint    `json:"sales_order_item_id"`
}

type SalesInvoice struct {
	gorm.Model     `json:"-"`
	SalesInvoiceID string    `gorm:"uniqueIndex" json:"sales_invoice_id"`
	AmazonOrderID  string    `gorm:"index" json:"amazon_order_id"`
	SalesOrderID   string    `json:"sales_order_id"`
	Company        string    `json:"company"`
	CustomerName   string    `json:"customer_name"`
	PostingDate    time.Time `json:"posting_date"`
	DueDate        time.Time `json:"due_date"`
	Currency       string    `json:"currency"`
	ConversionRate float64   `json:"conversion_rate"`
	// SettlementID records the payout cycle that paid this invoice; a second
	// Payment Entry must never be created for the same (invoice, settlement)
	SettlementID string `gorm:"index" json:"settlement_id"`
	Docstatus    int    `gorm:"index" json:"docstatus"`

	Items []SalesInvoiceItem `gorm:"foreignKey:SalesInvoiceID;references:SalesInvoiceID" json:"items,omitempty"`
}

type SalesInvoiceItem struct {
	gorm.Model       `json:"-"`
	SalesInvoiceID   string  `gorm:"index" json:"sales_invoice_id"`
	ItemCode         string  `json:"item_code"`
	ItemName         string  `json:"item_name"`
	Description      string  `json:"description"`
	Qty              float64 `json:"qty"`
	Rate             float64 `json:"rate"`
	Warehouse        string  `json:"warehouse"`
	SalesOrderID     string  `json:"sales_order_id"`
	SalesOrderItemID uint    `json:"sales_order_item_id"`
}

// Payment directions
const (
	PaymentTypeReceive = "Receive"
	PaymentTypePay     = "Pay"
)

type PaymentEntry struct {
	gorm.Model     `json:"-"`
	PaymentEntryID string `gorm:"uniqueIndex" json:"payment_entry_id"`
	AmazonOrderID  string `gorm:"index" json:"amazon_order_id"`
	PaymentType    string `json:"payment_type"`
	Company        string `json:"company"`
	PartyType      string `json:"party_type"`
	Party          string `json:"party"`
	SalesInvoiceID string `gorm:"index" json:"sales_invoice_id"`
	SettlementID   string `gorm:"index" json:"settlement_id"`
	// PaidAmount is in the settlement currency; ReceivedAmount is in the
	// company base currency after conversion
	PaidAmount       float64   `json:"paid_amount"`
	ReceivedAmount   float64   `json:"received_amount"`
	PaidCurrency     string    `json:"paid_currency"`
	ReceivedCurrency string    `json:"received_currency"`
	ExchangeRate     float64   `json:"exchange_rate"`
	PaidTo           string    `json:"paid_to"`
	ReferenceDate    time.Time `json:"reference_date"`
	Docstatus        int       `gorm:"index" json:"docstatus"`
}
