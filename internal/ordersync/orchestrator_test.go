package ordersync

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Shah313/ecommerce-integrations-custom/internal/account"
	"github.com/Shah313/ecommerce-integrations-custom/internal/erp"
	"github.com/Shah313/ecommerce-integrations-custom/internal/spapi"
)

func newTestGorm(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&account.Account{},
		&account.ItemFieldMapping{},
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
		&erp.SalesInvoice{},
		&erp.SalesInvoiceItem{},
		&erp.PaymentEntry{},
		&SyncRun{},
	))

	return db
}

func testAccount() *account.Account {
	return &account.Account{
		Name:                    "amazon-us",
		Company:                 "Acme Retail Ltd",
		BaseCurrency:            "USD",
		MaxRetryLimit:           1,
		EnableSync:              true,
		CreatedAfter:            time.Now().Add(-7 * 24 * time.Hour),
		CustomerGroup:           "Individual",
		Territory:               "All Territories",
		CustomerType:            "Individual",
		Warehouse:               "Stores - ARL",
		TaxesChargesAccount:     "Marketplace Taxes and Charges - ARL",
		PayoutAccount:           "Amazon Payout - ARL",
		MarketplaceAccountGroup: "Amazon Fees - ARL",
		CreateItemIfMissing:     true,
		FieldMappings: []account.ItemFieldMapping{
			{AccountName: "amazon-us", MarketplaceField: "SellerSKU", ItemField: "item_code", UseToFindItem: true, Priority: 1},
		},
	}
}

func newTestSyncer(t *testing.T) (*Syncer, *spapi.MockClient, *gorm.DB, *account.Account) {
	t.Helper()

	db := newTestGorm(t)
	acc := testAccount()
	client := spapi.NewMockClient()
	return NewSyncer(client, db, acc), client, db, acc
}

func testOrder(orderID, status string) spapi.Order {
	return spapi.Order{
		AmazonOrderID: orderID,
		OrderStatus:   status,
		MarketplaceID: "ATVPDKIKX0DER",
		PurchaseDate:  time.Now().Add(-24 * time.Hour),
		CurrencyCode:  "USD",
		BuyerInfo:     spapi.BuyerInfo{BuyerEmail: "alice@example.com"},
		ShippingAddress: &spapi.Address{
			AddressLine1:  "123 Main St",
			City:          "Springfield",
			StateOrRegion: "IL",
			PostalCode:    "62701",
			CountryCode:   "US",
		},
	}
}

func testLine(sku, asin string, qty int, price, shipping float64) spapi.OrderItem {
	return spapi.OrderItem{
		ASIN:            asin,
		SellerSKU:       sku,
		OrderItemID:     "OI-" + sku,
		Title:           "Test product " + sku,
		QuantityOrdered: qty,
		ItemPrice:       spapi.Money{CurrencyCode: "USD", Amount: price},
		ShippingPrice:   spapi.Money{CurrencyCode: "USD", Amount: shipping},
	}
}

// seedShippedOrder registers a shipped order with one line, its catalog item,
// its detailed charge breakdown, and a closed payout cycle netting to 43
func seedShippedOrder(client *spapi.MockClient, orderID string) {
	client.AddOrder(testOrder(orderID, spapi.StatusShipped), testLine("SKU-1", "B000001", 2, 20, 6))
	client.AddCatalogItem(spapi.CatalogItem{
		ASIN: "B000001",
		AttributeSets: []spapi.AttributeSet{
			{Title: "Test product SKU-1", ProductGroup: "Kitchen", Brand: "Acme", Manufacturer: "Acme Retail Ltd"},
		},
	})

	breakdown := spapi.FinancialEvents{
		ShipmentEventList: []spapi.ShipmentEvent{{
			AmazonOrderID: orderID,
			ShipmentItems: []spapi.ShipmentItem{{
				SellerSKU: "SKU-1",
				ItemCharges: []spapi.ChargeComponent{
					{ChargeType: "Principal", ChargeAmount: spapi.Money{CurrencyCode: "USD", Amount: 46}},
					{ChargeType: "Tax", ChargeAmount: spapi.Money{CurrencyCode: "USD", Amount: 2}},
				},
				ItemFees: []spapi.FeeComponent{
					{FeeType: "Commission", FeeAmount: spapi.Money{CurrencyCode: "USD", Amount: 5}},
				},
			}},
		}},
	}
	client.AddOrderEvents(orderID, breakdown)
	client.AddEventGroup(spapi.FinancialEventGroup{
		FinancialEventGroupID: "GRP-A",
		ProcessingStatus:      "Closed",
		FundTransferStatus:    "Succeeded",
	}, breakdown)
}

func TestProcessOrderCanceledCreatesNothing(t *testing.T) {
	syncer, client, db, _ := newTestSyncer(t)

	client.AddOrder(testOrder("111-1", spapi.StatusCanceled), testLine("SKU-1", "B000001", 1, 10, 0))

	order := testOrder("111-1", spapi.StatusCanceled)
	require.NoError(t, syncer.ProcessOrder(&order))

	var count int64
	db.Model(&erp.SalesOrder{}).Count(&count)
	assert.Zero(t, count)
	db.Model(&erp.Customer{}).Count(&count)
	assert.Zero(t, count)
}

func TestProcessOrderPendingCreatesOnlySalesOrder(t *testing.T) {
	syncer, client, db, _ := newTestSyncer(t)

	client.AddOrder(testOrder("111-2", spapi.StatusPending), testLine("SKU-1", "B000001", 3, 20, 6))
	client.AddCatalogItem(spapi.CatalogItem{ASIN: "B000001"})

	order := testOrder("111-2", spapi.StatusPending)
	require.NoError(t, syncer.ProcessOrder(&order))

	so, err := syncer.erpDB.GetSalesOrderByAmazonOrderID("111-2")
	require.NoError(t, err)
	require.NotNil(t, so)
	assert.Equal(t, erp.DocstatusSubmitted, so.Docstatus)
	require.Len(t, so.Items, 1)
	// rate = unit price + shipping apportioned across quantity: 20 + 6/3
	assert.InDelta(t, 22, so.Items[0].Rate, 0.001)
	assert.Equal(t, 3.0, so.Items[0].Qty)
	assert.Equal(t, "Stores - ARL", so.Items[0].Warehouse)

	var count int64
	db.Model(&erp.DeliveryNote{}).Count(&count)
	assert.Zero(t, count)
	db.Model(&erp.SalesInvoice{}).Count(&count)
	assert.Zero(t, count)
}

func TestProcessOrderShippedBuildsFullDocumentChain(t *testing.T) {
	syncer, client, _, _ := newTestSyncer(t)

	seedShippedOrder(client, "111-3")

	order := testOrder("111-3", spapi.StatusShipped)
	require.NoError(t, syncer.ProcessOrder(&order))

	so, err := syncer.erpDB.GetSalesOrderByAmazonOrderID("111-3")
	require.NoError(t, err)
	require.NotNil(t, so)
	assert.Equal(t, erp.DocstatusSubmitted, so.Docstatus)

	dn, err := syncer.erpDB.GetDeliveryNoteByAmazonOrderID("111-3")
	require.NoError(t, err)
	require.NotNil(t, dn)
	assert.Equal(t, erp.DocstatusSubmitted, dn.Docstatus)
	require.Len(t, dn.Items, 1)
	assert.Equal(t, so.Items[0].ID, dn.Items[0].SalesOrderItemID)

	si, err := syncer.erpDB.GetSalesInvoiceByAmazonOrderID("111-3")
	require.NoError(t, err)
	require.NotNil(t, si)
	assert.Equal(t, erp.DocstatusSubmitted, si.Docstatus)
	assert.Equal(t, "GRP-A", si.SettlementID)

	taxes, err := syncer.erpDB.GetTaxLines(erp.TaxParentSalesInvoice, si.SalesInvoiceID)
	require.NoError(t, err)
	// The detailed breakdown yields Tax and Commission lines; Principal is excluded
	require.Len(t, taxes, 2)
	assert.Equal(t, "Amazon Tax", taxes[0].AccountHead)
	assert.Equal(t, "Amazon Commission", taxes[1].AccountHead)

	pe, err := syncer.erpDB.GetPaymentEntryByOrder("111-3", erp.PaymentTypeReceive)
	require.NoError(t, err)
	require.NotNil(t, pe)
	assert.Equal(t, erp.DocstatusSubmitted, pe.Docstatus)
	assert.Equal(t, "GRP-A", pe.SettlementID)
	// 46 + 2 - 5 netted by the payout cycle
	assert.InDelta(t, 43, pe.PaidAmount, 0.001)
	assert.InDelta(t, 43, pe.ReceivedAmount, 0.001)
	assert.Equal(t, 1.0, pe.ExchangeRate)
	assert.Equal(t, "Amazon Payout - ARL", pe.PaidTo)
}

func TestProcessOrderIsIdempotentAcrossPasses(t *testing.T) {
	syncer, client, db, _ := newTestSyncer(t)

	seedShippedOrder(client, "111-4")

	order := testOrder("111-4", spapi.StatusShipped)
	require.NoError(t, syncer.ProcessOrder(&order))
	require.NoError(t, syncer.ProcessOrder(&order))
	require.NoError(t, syncer.ProcessOrder(&order))

	for model, want := range map[interface{}]int64{
		&erp.Customer{}:     1,
		&erp.Item{}:         1,
		&erp.SalesOrder{}:   1,
		&erp.DeliveryNote{}: 1,
		&erp.SalesInvoice{}: 1,
		&erp.PaymentEntry{}: 1,
	} {
		var count int64
		db.Model(model).Count(&count)
		assert.Equal(t, want, count)
	}
}

func TestProcessOrderCancellationVoidsExistingChain(t *testing.T) {
	syncer, client, db, _ := newTestSyncer(t)

	seedShippedOrder(client, "111-5")

	order := testOrder("111-5", spapi.StatusShipped)
	require.NoError(t, syncer.ProcessOrder(&order))

	order.OrderStatus = spapi.StatusCanceled
	require.NoError(t, syncer.ProcessOrder(&order))

	for _, model := range []interface{}{
		&erp.SalesOrder{}, &erp.DeliveryNote{}, &erp.SalesInvoice{}, &erp.PaymentEntry{},
	} {
		var active int64
		db.Model(model).Where("docstatus < ?", erp.DocstatusCancelled).Count(&active)
		assert.Zero(t, active)

		var cancelled int64
		db.Model(model).Where("docstatus = ?", erp.DocstatusCancelled).Count(&cancelled)
		assert.EqualValues(t, 1, cancelled)
	}
}

func TestProcessOrderFailsFastWhenItemMissingAndCreationDisabled(t *testing.T) {
	syncer, client, _, acc := newTestSyncer(t)
	acc.CreateItemIfMissing = false

	client.AddOrder(testOrder("111-6", spapi.StatusPending), testLine("SKU-MISSING", "B000009", 1, 10, 0))

	order := testOrder("111-6", spapi.StatusPending)
	err := syncer.ProcessOrder(&order)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "item not found using field item_code = SKU-MISSING")
}

func TestProcessOrderMappingPriorityResolvesExistingItem(t *testing.T) {
	syncer, client, _, acc := newTestSyncer(t)
	acc.CreateItemIfMissing = false
	acc.FieldMappings = []account.ItemFieldMapping{
		{MarketplaceField: "ASIN", ItemField: "item_code", UseToFindItem: true, Priority: 1},
		{MarketplaceField: "SellerSKU", ItemField: "item_code", UseToFindItem: true, Priority: 2},
	}

	require.NoError(t, syncer.erpDB.CreateItemWithReference(
		&erp.Item{ItemCode: "SKU-7", ItemName: "Test product SKU-7"},
		&erp.ItemReference{Integration: "Amazon SP API", ItemCode: "SKU-7", SKU: "SKU-7"},
	))

	// The line carries no ASIN, so the first mapping is skipped and the
	// SellerSKU mapping resolves the item
	line := testLine("SKU-7", "", 1, 10, 0)
	client.AddOrder(testOrder("111-7", spapi.StatusPending), line)

	order := testOrder("111-7", spapi.StatusPending)
	require.NoError(t, syncer.ProcessOrder(&order))

	so, err := syncer.erpDB.GetSalesOrderByAmazonOrderID("111-7")
	require.NoError(t, err)
	require.NotNil(t, so)
	require.Len(t, so.Items, 1)
	assert.Equal(t, "SKU-7", so.Items[0].ItemCode)
}

func TestProcessOrderDropsZeroQuantityLines(t *testing.T) {
	syncer, client, db, _ := newTestSyncer(t)

	client.AddOrder(testOrder("111-8", spapi.StatusPending), testLine("SKU-1", "B000001", 0, 10, 0))

	order := testOrder("111-8", spapi.StatusPending)
	require.NoError(t, syncer.ProcessOrder(&order))

	// The only line was dropped, so no Sales Order exists
	var count int64
	db.Model(&erp.SalesOrder{}).Count(&count)
	assert.Zero(t, count)
}

func TestProcessOrderRefundCreatesSinglePayEntry(t *testing.T) {
	syncer, client, db, _ := newTestSyncer(t)

	// Shipped order with an invoice but no closed payout cycle
	client.AddOrder(testOrder("111-9", spapi.StatusShipped), testLine("SKU-1", "B000001", 1, 25, 0))
	client.AddCatalogItem(spapi.CatalogItem{ASIN: "B000001"})

	order := testOrder("111-9", spapi.StatusShipped)
	require.NoError(t, syncer.ProcessOrder(&order))

	// A refund arrives after the invoice exists
	client.AddOrderEvents("111-9", spapi.FinancialEvents{
		RefundEventList: []spapi.RefundEvent{{
			AmazonOrderID: "111-9",
			RefundItems: []spapi.RefundItem{{
				SellerSKU: "SKU-1",
				ItemChargeAdjustments: []spapi.ChargeComponent{
					{ChargeType: "Principal", ChargeAmount: spapi.Money{CurrencyCode: "USD", Amount: -25}},
				},
				ItemFeeAdjustments: []spapi.FeeComponent{
					{FeeType: "Commission", FeeAmount: spapi.Money{CurrencyCode: "USD", Amount: -3}},
				},
			}},
		}},
	})

	require.NoError(t, syncer.ProcessOrder(&order))
	require.NoError(t, syncer.ProcessOrder(&order))

	pe, err := syncer.erpDB.GetPaymentEntryByOrder("111-9", erp.PaymentTypePay)
	require.NoError(t, err)
	require.NotNil(t, pe)
	assert.Equal(t, erp.DocstatusSubmitted, pe.Docstatus)
	// -(-25 - (-3)) = 22
	assert.InDelta(t, 22, pe.PaidAmount, 0.001)

	var count int64
	db.Model(&erp.PaymentEntry{}).Where("payment_type = ?", erp.PaymentTypePay).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestProcessOrderConvertsForeignSettlementCurrency(t *testing.T) {
	syncer, client, _, _ := newTestSyncer(t)

	require.NoError(t, syncer.erpDB.CreateExchangeRate(&erp.CurrencyExchange{
		FromCurrency: "EUR",
		ToCurrency:   "USD",
		Rate:         1.1,
	}))

	order := testOrder("111-20", spapi.StatusShipped)
	order.CurrencyCode = "EUR"
	client.AddOrder(order, testLine("SKU-1", "B000001", 2, 20, 6))
	client.AddCatalogItem(spapi.CatalogItem{ASIN: "B000001"})

	breakdown := spapi.FinancialEvents{
		ShipmentEventList: []spapi.ShipmentEvent{{
			AmazonOrderID: "111-20",
			ShipmentItems: []spapi.ShipmentItem{{
				SellerSKU: "SKU-1",
				ItemCharges: []spapi.ChargeComponent{
					{ChargeType: "Principal", ChargeAmount: spapi.Money{CurrencyCode: "EUR", Amount: 46}},
					{ChargeType: "Tax", ChargeAmount: spapi.Money{CurrencyCode: "EUR", Amount: 2}},
				},
				ItemFees: []spapi.FeeComponent{
					{FeeType: "Commission", FeeAmount: spapi.Money{CurrencyCode: "EUR", Amount: 5}},
				},
			}},
		}},
	}
	client.AddOrderEvents("111-20", breakdown)
	client.AddEventGroup(spapi.FinancialEventGroup{
		FinancialEventGroupID: "GRP-E",
		ProcessingStatus:      "Closed",
		FundTransferStatus:    "Succeeded",
	}, breakdown)

	require.NoError(t, syncer.ProcessOrder(&order))

	pe, err := syncer.erpDB.GetPaymentEntryByOrder("111-20", erp.PaymentTypeReceive)
	require.NoError(t, err)
	require.NotNil(t, pe)
	assert.Equal(t, "EUR", pe.PaidCurrency)
	assert.Equal(t, "USD", pe.ReceivedCurrency)
	assert.InDelta(t, 1.1, pe.ExchangeRate, 0.0001)
	// Paid in the settlement currency, received after conversion: 43 * 1.1
	assert.InDelta(t, 43, pe.PaidAmount, 0.001)
	assert.InDelta(t, 47.3, pe.ReceivedAmount, 0.001)
}

func TestProcessOrderRefundConvertsForeignCurrency(t *testing.T) {
	syncer, client, _, _ := newTestSyncer(t)

	require.NoError(t, syncer.erpDB.CreateExchangeRate(&erp.CurrencyExchange{
		FromCurrency: "EUR",
		ToCurrency:   "USD",
		Rate:         1.1,
	}))

	// Shipped EUR order with an invoice but no closed payout cycle
	order := testOrder("111-21", spapi.StatusShipped)
	order.CurrencyCode = "EUR"
	client.AddOrder(order, testLine("SKU-1", "B000001", 1, 20, 0))
	client.AddCatalogItem(spapi.CatalogItem{ASIN: "B000001"})

	require.NoError(t, syncer.ProcessOrder(&order))

	client.AddOrderEvents("111-21", spapi.FinancialEvents{
		RefundEventList: []spapi.RefundEvent{{
			AmazonOrderID: "111-21",
			RefundItems: []spapi.RefundItem{{
				SellerSKU: "SKU-1",
				ItemChargeAdjustments: []spapi.ChargeComponent{
					{ChargeType: "Principal", ChargeAmount: spapi.Money{CurrencyCode: "EUR", Amount: -20}},
				},
				ItemFeeAdjustments: []spapi.FeeComponent{
					{FeeType: "Commission", FeeAmount: spapi.Money{CurrencyCode: "EUR", Amount: -2}},
				},
			}},
		}},
	})

	require.NoError(t, syncer.ProcessOrder(&order))

	pe, err := syncer.erpDB.GetPaymentEntryByOrder("111-21", erp.PaymentTypePay)
	require.NoError(t, err)
	require.NotNil(t, pe)
	assert.Equal(t, "EUR", pe.PaidCurrency)
	assert.Equal(t, "USD", pe.ReceivedCurrency)
	assert.InDelta(t, 1.1, pe.ExchangeRate, 0.0001)
	// -(-20 - (-2)) = 18, converted at 1.1
	assert.InDelta(t, 18, pe.PaidAmount, 0.001)
	assert.InDelta(t, 19.8, pe.ReceivedAmount, 0.001)
}

func TestSyncOrdersPaginatesAndCountsFailures(t *testing.T) {
	syncer, client, _, acc := newTestSyncer(t)
	acc.CreateItemIfMissing = false

	// Three orders across two pages (mock page size is 2); the middle one
	// cannot resolve its item and must not abort the batch
	require.NoError(t, syncer.erpDB.CreateItemWithReference(
		&erp.Item{ItemCode: "SKU-OK"},
		&erp.ItemReference{Integration: "Amazon SP API", ItemCode: "SKU-OK", SKU: "SKU-OK"},
	))
	client.AddOrder(testOrder("111-10", spapi.StatusPending), testLine("SKU-OK", "B1", 1, 10, 0))
	client.AddOrder(testOrder("111-11", spapi.StatusPending), testLine("SKU-BAD", "B2", 1, 10, 0))
	client.AddOrder(testOrder("111-12", spapi.StatusPending), testLine("SKU-OK", "B1", 2, 10, 0))

	processed, failed, err := syncer.SyncOrders(time.Now().Add(-48 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"111-10", "111-12"}, processed)
	assert.Equal(t, 1, failed)
}
