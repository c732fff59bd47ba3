package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/Shah313/ecommerce-integrations-custom/internal/account"
	"github.com/Shah313/ecommerce-integrations-custom/internal/database"
	"github.com/Shah313/ecommerce-integrations-custom/internal/erp"
	"github.com/Shah313/ecommerce-integrations-custom/internal/ordersync"
	"github.com/Shah313/ecommerce-integrations-custom/internal/spapi"
)

const (
	dbFile      = "simulation.db"
	accountName = "amazon-us"
)

// product fixtures offered on the mock marketplace
var products = []struct {
	SKU   string
	ASIN  string
	Title string
	Price float64
}{
	{"SKU-RED-MUG", "B00RED001", "Red Ceramic Mug", 14.99},
	{"SKU-BLU-MUG", "B00BLU001", "Blue Ceramic Mug", 14.99},
	{"SKU-TEAPOT", "B00TEA001", "Stoneware Teapot", 32.50},
	{"SKU-COASTER", "B00COA001", "Cork Coaster Set", 9.99},
}

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	// Configure pretty logging
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// main walks a fleet of mock marketplace orders through their lifecycle and
// runs repeated sync passes against them, printing a reconciliation summary
// of the resulting document graph at the end
func main() {
	// Each run starts from a clean slate
	os.Remove(dbFile)

	db, err := database.NewDatabase(dbFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}

	marketplace := spapi.NewMockClient()
	seedMarketplace(marketplace)

	accountService := account.NewService(db)
	if err := seedAccount(db, accountService); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed account")
	}

	syncService := ordersync.NewService(db, accountService, func(acc *account.Account) (spapi.Client, error) {
		return marketplace, nil
	})

	var runs []*ordersync.SyncRun

	// Pass 1: every order is still pending or unshipped, so only Sales
	// Orders (plus customers, addresses and items) come into existence
	runs = append(runs, runPass(db, syncService, 1))

	// The marketplace moves on: most orders ship, one is cancelled, and the
	// first payout cycle closes covering two of the shipped orders
	shipAndSettleFirstCycle(marketplace)
	runs = append(runs, runPass(db, syncService, 2))

	// A buyer returns an item and the second payout cycle closes, covering
	// the remaining shipped orders including the EUR one
	refundAndSettleSecondCycle(marketplace)
	runs = append(runs, runPass(db, syncService, 3))

	printSummary(db, runs)
}

// runPass replays the full order window through one blocking sync run. The
// last-sync watermark is cleared first so orders whose status changed since
// the previous pass are fetched again.
func runPass(db *gorm.DB, syncService *ordersync.Service, pass int) *ordersync.SyncRun {
	if err := db.Model(&account.Account{}).
		Where("name = ?", accountName).
		Update("last_sync_at", nil).Error; err != nil {
		log.Fatal().Err(err).Msg("Failed to reset sync watermark")
	}

	run, err := syncService.RunSync(accountName)
	if err != nil {
		log.Fatal().Err(err).Int("pass", pass).Msg("Sync run failed to start")
	}

	log.Info().
		Int("pass", pass).
		Str("run_id", run.RunID).
		Str("status", run.Status).
		Int("orders_processed", run.OrdersProcessed).
		Int("orders_failed", run.OrdersFailed).
		Msg("Sync pass completed")

	return run
}

// seedMarketplace registers the initial order book: five fresh orders in
// various pre-shipment states plus their catalog entries
func seedMarketplace(m *spapi.MockClient) {
	for _, p := range products {
		m.AddCatalogItem(spapi.CatalogItem{
			ASIN: p.ASIN,
			AttributeSets: []spapi.AttributeSet{{
				Title:        p.Title,
				ProductGroup: "Kitchen",
				Brand:        "Acme",
				Manufacturer: "Acme Retail Ltd",
			}},
		})
	}

	now := time.Now()

	m.AddOrder(
		order("111-1000001", spapi.StatusUnshipped, "USD", now.Add(-48*time.Hour), "alice@example.com"),
		item(products[0], 2, 4.00),
	)
	m.AddOrder(
		order("111-1000002", spapi.StatusUnshipped, "USD", now.Add(-36*time.Hour), "bob@example.com"),
		item(products[2], 1, 0),
	)
	m.AddOrder(
		order("111-1000003", spapi.StatusUnshipped, "USD", now.Add(-30*time.Hour), "carol@example.com"),
		item(products[1], 1, 0),
		item(products[3], 1, 0),
	)
	m.AddOrder(
		order("111-1000004", spapi.StatusPending, "USD", now.Add(-24*time.Hour), "dave@example.com"),
		item(products[3], 3, 0),
	)
	m.AddOrder(
		order("111-1000005", spapi.StatusUnshipped, "EUR", now.Add(-20*time.Hour), "erik@example.de"),
		spapi.OrderItem{
			ASIN:            products[2].ASIN,
			SellerSKU:       products[2].SKU,
			OrderItemID:     "OI-" + products[2].SKU,
			Title:           products[2].Title,
			QuantityOrdered: 1,
			ItemPrice:       spapi.Money{CurrencyCode: "EUR", Amount: 29.95},
		},
	)
	m.AddOrder(
		order("111-1000006", spapi.StatusPending, "USD", now.Add(-2*time.Hour), "frank@example.com"),
		item(products[0], 1, 0),
	)
}

// shipAndSettleFirstCycle progresses the order book between pass 1 and 2:
// four orders ship, one is cancelled, the detailed charge breakdowns appear,
// and the first payout cycle closes covering orders 1 and 2
func shipAndSettleFirstCycle(m *spapi.MockClient) {
	m.SetOrderStatus("111-1000001", spapi.StatusShipped)
	m.SetOrderStatus("111-1000002", spapi.StatusShipped)
	m.SetOrderStatus("111-1000003", spapi.StatusShipped)
	m.SetOrderStatus("111-1000004", spapi.StatusCanceled)
	m.SetOrderStatus("111-1000005", spapi.StatusShipped)

	m.AddOrderEvents("111-1000001", spapi.FinancialEvents{
		ShipmentEventList: []spapi.ShipmentEvent{
			shipmentEvent("111-1000001", products[0].SKU,
				charges("Principal", 29.98, "Tax", 2.40, "ShippingCharge", 4.00),
				fees("FBAPerUnitFulfillmentFee", 3.50, "Commission", 4.50)),
		},
	})
	m.AddOrderEvents("111-1000002", spapi.FinancialEvents{
		ShipmentEventList: []spapi.ShipmentEvent{
			shipmentEvent("111-1000002", products[2].SKU,
				charges("Principal", 32.50, "Tax", 2.60),
				fees("Commission", 5.00)),
		},
	})

	m.AddEventGroup(
		spapi.FinancialEventGroup{
			FinancialEventGroupID: "GRP-2026-08-A",
			ProcessingStatus:      "Closed",
			FundTransferStatus:    "Succeeded",
			StartDate:             time.Now().Add(-14 * 24 * time.Hour),
			EndDate:               time.Now().Add(-24 * time.Hour),
		},
		spapi.FinancialEvents{
			ShipmentEventList: []spapi.ShipmentEvent{
				shipmentEvent("111-1000001", products[0].SKU,
					charges("Principal", 29.98, "Tax", 2.40, "ShippingCharge", 4.00),
					fees("FBAPerUnitFulfillmentFee", 3.50, "Commission", 4.50)),
			},
		},
		spapi.FinancialEvents{
			ShipmentEventList: []spapi.ShipmentEvent{
				shipmentEvent("111-1000002", products[2].SKU,
					charges("Principal", 32.50, "Tax", 2.60),
					fees("Commission", 5.00)),
			},
			ServiceFeeEventList: []spapi.ServiceFeeEvent{
				{AmazonOrderID: "111-1000001", Fees: []spapi.FeeComponent{
					{FeeType: "Subscription", FeeAmount: spapi.Money{CurrencyCode: "USD", Amount: 1.00}},
				}},
			},
		},
	)
}

// refundAndSettleSecondCycle progresses the order book between pass 2 and 3:
// order 3 is partially refunded and the second payout cycle closes covering
// orders 3 and 5
func refundAndSettleSecondCycle(m *spapi.MockClient) {
	refund := spapi.RefundEvent{
		AmazonOrderID: "111-1000003",
		PostedDate:    time.Now(),
		RefundItems: []spapi.RefundItem{{
			SellerSKU: products[1].SKU,
			ItemChargeAdjustments: []spapi.ChargeComponent{
				{ChargeType: "Principal", ChargeAmount: spapi.Money{CurrencyCode: "USD", Amount: -14.99}},
				{ChargeType: "Tax", ChargeAmount: spapi.Money{CurrencyCode: "USD", Amount: -1.20}},
			},
			ItemFeeAdjustments: []spapi.FeeComponent{
				{FeeType: "Commission", FeeAmount: spapi.Money{CurrencyCode: "USD", Amount: -2.00}},
			},
		}},
	}

	m.AddOrderEvents("111-1000003", spapi.FinancialEvents{
		RefundEventList: []spapi.RefundEvent{refund},
	})

	m.AddEventGroup(
		spapi.FinancialEventGroup{
			FinancialEventGroupID: "GRP-2026-08-B",
			ProcessingStatus:      "Closed",
			FundTransferStatus:    "Succeeded",
			StartDate:             time.Now().Add(-24 * time.Hour),
			EndDate:               time.Now(),
		},
		spapi.FinancialEvents{
			ShipmentEventList: []spapi.ShipmentEvent{
				shipmentEvent("111-1000003", products[1].SKU,
					charges("Principal", 24.98, "Tax", 2.00),
					fees("Commission", 3.00)),
			},
			RefundEventList: []spapi.RefundEvent{refund},
		},
		spapi.FinancialEvents{
			ShipmentEventList: []spapi.ShipmentEvent{
				shipmentEvent("111-1000005", products[2].SKU,
					charges("Principal", 29.95),
					fees("Commission", 4.00)),
			},
		},
	)
}

// seedAccount creates the marketplace account, its item field mappings and
// the EUR conversion rate used by the cross-currency payout
func seedAccount(db *gorm.DB, accounts *account.Service) error {
	acc := &account.Account{
		Name:                    accountName,
		Company:                 "Acme Retail Ltd",
		BaseCurrency:            "USD",
		CountryCode:             "US",
		MaxRetryLimit:           3,
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
			{AccountName: accountName, MarketplaceField: "SellerSKU", ItemField: "item_code", UseToFindItem: true, Priority: 1},
			{AccountName: accountName, MarketplaceField: "Title", ItemField: "item_name", UseToFindItem: false, Priority: 2},
		},
	}
	if err := accounts.CreateAccount(acc); err != nil {
		return err
	}

	return db.Create(&erp.CurrencyExchange{
		FromCurrency: "EUR",
		ToCurrency:   "USD",
		Rate:         1.08,
	}).Error
}

func order(orderID, status, currency string, purchased time.Time, buyerEmail string) spapi.Order {
	return spapi.Order{
		AmazonOrderID:      orderID,
		OrderStatus:        status,
		MarketplaceID:      "ATVPDKIKX0DER",
		SalesChannel:       "Amazon.com",
		FulfillmentChannel: "FBA",
		PurchaseDate:       purchased,
		LatestShipDate:     purchased.Add(72 * time.Hour),
		CurrencyCode:       currency,
		BuyerInfo:          spapi.BuyerInfo{BuyerEmail: buyerEmail},
		ShippingAddress: &spapi.Address{
			AddressLine1:  "123 Main St",
			City:          "Springfield",
			StateOrRegion: "IL",
			PostalCode:    "62701",
			CountryCode:   "US",
		},
	}
}

func item(p struct {
	SKU   string
	ASIN  string
	Title string
	Price float64
}, qty int, shipping float64) spapi.OrderItem {
	return spapi.OrderItem{
		ASIN:            p.ASIN,
		SellerSKU:       p.SKU,
		OrderItemID:     "OI-" + p.SKU,
		Title:           p.Title,
		QuantityOrdered: qty,
		ItemPrice:       spapi.Money{CurrencyCode: "USD", Amount: p.Price},
		ShippingPrice:   spapi.Money{CurrencyCode: "USD", Amount: shipping},
	}
}

func shipmentEvent(orderID, sku string, itemCharges []spapi.ChargeComponent, itemFees []spapi.FeeComponent) spapi.ShipmentEvent {
	return spapi.ShipmentEvent{
		AmazonOrderID: orderID,
		PostedDate:    time.Now(),
		ShipmentItems: []spapi.ShipmentItem{{
			SellerSKU:   sku,
			ItemCharges: itemCharges,
			ItemFees:    itemFees,
		}},
	}
}

// charges builds a charge list from alternating type/amount pairs
func charges(pairs ...interface{}) []spapi.ChargeComponent {
	var out []spapi.ChargeComponent
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, spapi.ChargeComponent{
			ChargeType:   pairs[i].(string),
			ChargeAmount: spapi.Money{CurrencyCode: "USD", Amount: pairs[i+1].(float64)},
		})
	}
	return out
}

// fees builds a fee list from alternating type/amount pairs
func fees(pairs ...interface{}) []spapi.FeeComponent {
	var out []spapi.FeeComponent
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, spapi.FeeComponent{
			FeeType:   pairs[i].(string),
			FeeAmount: spapi.Money{CurrencyCode: "USD", Amount: pairs[i+1].(float64)},
		})
	}
	return out
}

// printSummary reports the document graph built across all sync passes
func printSummary(db *gorm.DB, runs []*ordersync.SyncRun) {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("📦 ORDER SYNC SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Println("\n🔁 Sync Passes")
	fmt.Println("--------------")
	for i, run := range runs {
		fmt.Printf("Pass %d: %-10s processed=%-3d failed=%-3d run=%s\n",
			i+1, run.Status, run.OrdersProcessed, run.OrdersFailed, run.RunID)
	}

	counts := []struct {
		label string
		model interface{}
		where []interface{}
	}{
		{"Customers", &erp.Customer{}, nil},
		{"Items", &erp.Item{}, nil},
		{"Sales Orders (submitted)", &erp.SalesOrder{}, []interface{}{"docstatus = ?", erp.DocstatusSubmitted}},
		{"Sales Orders (cancelled)", &erp.SalesOrder{}, []interface{}{"docstatus = ?", erp.DocstatusCancelled}},
		{"Delivery Notes", &erp.DeliveryNote{}, []interface{}{"docstatus = ?", erp.DocstatusSubmitted}},
		{"Sales Invoices", &erp.SalesInvoice{}, []interface{}{"docstatus = ?", erp.DocstatusSubmitted}},
		{"Payment Entries (receive)", &erp.PaymentEntry{}, []interface{}{"payment_type = ? AND docstatus = ?", erp.PaymentTypeReceive, erp.DocstatusSubmitted}},
		{"Payment Entries (refund)", &erp.PaymentEntry{}, []interface{}{"payment_type = ? AND docstatus = ?", erp.PaymentTypePay, erp.DocstatusSubmitted}},
		{"Tax Lines", &erp.TaxLine{}, nil},
		{"Ledger Accounts", &erp.LedgerAccount{}, nil},
	}

	fmt.Println("\n📊 Document Counts")
	fmt.Println("------------------")
	maxCount := int64(1)
	rows := make([]struct {
		label string
		n     int64
	}, len(counts))
	for i, c := range counts {
		q := db.Model(c.model)
		if c.where != nil {
			q = q.Where(c.where[0], c.where[1:]...)
		}
		q.Count(&rows[i].n)
		rows[i].label = c.label
		if rows[i].n > maxCount {
			maxCount = rows[i].n
		}
	}
	for _, row := range rows {
		barLength := int(float64(row.n) / float64(maxCount) * 20)
		bar := strings.Repeat("█", barLength)
		fmt.Printf("%-28s: %-20s (%d)\n", row.label, bar, row.n)
	}

	var payouts []erp.PaymentEntry
	db.Where("docstatus = ?", erp.DocstatusSubmitted).Find(&payouts)

	fmt.Println("\n💰 Payout Reconciliation")
	fmt.Println("------------------------")
	var received, refunded float64
	for _, pe := range payouts {
		direction := "received"
		if pe.PaymentType == erp.PaymentTypePay {
			direction = "refunded"
			refunded += pe.ReceivedAmount
		} else {
			received += pe.ReceivedAmount
		}
		fmt.Printf("%-14s %-10s %10.2f %s -> %10.2f %s (rate %.2f, settlement %s)\n",
			pe.AmazonOrderID, direction,
			pe.PaidAmount, pe.PaidCurrency,
			pe.ReceivedAmount, pe.ReceivedCurrency,
			pe.ExchangeRate, pe.SettlementID)
	}
	fmt.Printf("\nNet cash position: %.2f USD (received %.2f, refunded %.2f)\n",
		received-refunded, received, refunded)

	fmt.Println("\n" + strings.Repeat("=", 80))

	log.Info().
		Int("passes", len(runs)).
		Float64("received", received).
		Float64("refunded", refunded).
		Msg("Simulation completed")
}
