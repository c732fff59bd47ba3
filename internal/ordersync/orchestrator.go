package ordersync

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/Shah313/ecommerce-integrations-custom/internal/account"
	"github.com/Shah313/ecommerce-integrations-custom/internal/erp"
	"github.com/Shah313/ecommerce-integrations-custom/internal/retry"
	"github.com/Shah313/ecommerce-integrations-custom/internal/settlement"
	"github.com/Shah313/ecommerce-integrations-custom/internal/spapi"
)

// orderPageSize is the marketplace page size requested per ListOrders call
const orderPageSize = 50

// invoiceDueDays is how far past the posting date a fresh invoice falls due
const invoiceDueDays = 7

// Syncer drives one account's order document state machine. It is built
// per sync run and processes orders serially; the idempotency lookups in
// each ensure step double as the safety net against overlapping runs.
type Syncer struct {
	client      spapi.Client
	caller      *retry.Caller
	erpDB       *erp.Database
	settlements *settlement.Service
	acc         *account.Account
}

// NewSyncer wires a sync engine for one account. The retry budget comes
// from the account's configured max retry limit.
func NewSyncer(client spapi.Client, gormDB *gorm.DB, acc *account.Account) *Syncer {
	caller := retry.NewCaller(acc.MaxRetryLimit)
	erpDB := erp.NewDatabase(gormDB)
	return &Syncer{
		client:      client,
		caller:      caller,
		erpDB:       erpDB,
		settlements: settlement.NewService(client, caller, erpDB, acc),
		acc:         acc,
	}
}

// Settlements exposes the aggregator for the internal settlement endpoint
func (s *Syncer) Settlements() *settlement.Service {
	return s.settlements
}

// SyncOrders pulls every order created after the given time and runs the
// per-order document state machine. Individual order failures are logged
// and counted but never abort the page; a retry-budget exhaustion aborts
// the whole run so the caller can disable the account.
func (s *Syncer) SyncOrders(createdAfter time.Time) (processed []string, failed int, err error) {
	logger := log.With().
		Str("account", s.acc.Name).
		Time("created_after", createdAfter).
		Str("service", "ordersync").
		Logger()

	logger.Info().Msg("starting order sync")

	params := spapi.ListOrdersParams{
		CreatedAfter:        createdAfter,
		OrderStatuses:       spapi.AllOrderStatuses,
		FulfillmentChannels: spapi.AllFulfillmentChannels,
		MaxResults:          orderPageSize,
	}

	for {
		page := params
		payload, err := retry.Do(s.caller, "ListOrders", func() (*spapi.OrdersPayload, error) {
			return s.client.ListOrders(page)
		})
		if err != nil {
			return processed, failed, fmt.Errorf("failed to list orders: %w", err)
		}

		for i := range payload.Orders {
			order := &payload.Orders[i]
			if err := s.ProcessOrder(order); err != nil {
				if retry.IsExhausted(err) {
					return processed, failed, err
				}
				failed++
				logger.Error().
					Err(err).
					Str("order_id", order.AmazonOrderID).
					Msg("failed to process order, continuing with batch")
				continue
			}
			processed = append(processed, order.AmazonOrderID)
		}

		if payload.NextToken == "" {
			break
		}
		params.NextToken = payload.NextToken
	}

	logger.Info().
		Int("orders_processed", len(processed)).
		Int("orders_failed", failed).
		Msg("order sync completed")

	return processed, failed, nil
}

// ProcessOrder runs one pass of the document state machine for a
// marketplace order, in priority order: cancellation short-circuits
// everything; refunds are processed regardless of status; then the
// status-gated Delivery Note, Sales Invoice and Payment Entry steps.
func (s *Syncer) ProcessOrder(order *spapi.Order) error {
	if order.AmazonOrderID == "" {
		return nil
	}

	logger := log.With().
		Str("order_id", order.AmazonOrderID).
		Str("order_status", order.OrderStatus).
		Str("service", "ordersync").
		Logger()

	if order.OrderStatus == spapi.StatusCanceled {
		return s.cancelDocuments(order.AmazonOrderID)
	}

	// Refunds apply regardless of order status; failures here must not
	// block the remaining documents
	if err := s.processRefunds(order); err != nil {
		if retry.IsExhausted(err) {
			return err
		}
		logger.Error().Err(err).Msg("refund processing failed")
	}

	so, err := s.ensureSalesOrder(order)
	if err != nil {
		return err
	}
	if so == nil {
		logger.Debug().Msg("order has no usable line items, skipping")
		return nil
	}

	if order.OrderStatus == spapi.StatusShipped || order.OrderStatus == spapi.StatusPartiallyShipped {
		if err := s.ensureDeliveryNote(order, so); err != nil {
			if retry.IsExhausted(err) {
				return err
			}
			logger.Error().Err(err).Msg("delivery note step failed")
		}
	}

	switch order.OrderStatus {
	case spapi.StatusShipped, spapi.StatusInvoiceUnconfirmed, spapi.StatusPartiallyShipped:
		si, err := s.ensureSalesInvoice(order, so)
		if err != nil {
			if retry.IsExhausted(err) {
				return err
			}
			logger.Error().Err(err).Msg("sales invoice step failed")
			return nil
		}
		if err := s.attemptSettlement(order, si); err != nil {
			if retry.IsExhausted(err) {
				return err
			}
			logger.Error().Err(err).Msg("payment entry step failed")
		}
	}

	return nil
}

// ensureSalesOrder returns the active Sales Order for the marketplace
// order, creating it (customer, address, items, taxes) when none exists.
// Returns nil without error when the order has no usable line items.
func (s *Syncer) ensureSalesOrder(order *spapi.Order) (*erp.SalesOrder, error) {
	existing, err := s.erpDB.GetSalesOrderByAmazonOrderID(order.AmazonOrderID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	lines, err := s.buildOrderLines(order.AmazonOrderID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, nil
	}

	customerName, err := s.ensureCustomer(order)
	if err != nil {
		return nil, err
	}

	// Address failures are logged and skipped; the order can live without one
	if err := s.ensureAddress(order, customerName); err != nil {
		log.Error().
			Err(err).
			Str("order_id", order.AmazonOrderID).
			Msg("failed to create shipping address")
	}

	taxes, err := s.buildTaxLines(order.AmazonOrderID, lines)
	if err != nil {
		return nil, err
	}

	so := &erp.SalesOrder{
		SalesOrderID:    "SO_" + uuid.New().String(),
		AmazonOrderID:   order.AmazonOrderID,
		MarketplaceID:   order.MarketplaceID,
		Company:         s.acc.Company,
		CustomerName:    customerName,
		TransactionDate: order.PurchaseDate,
		DeliveryDate:    order.LatestShipDate,
		Currency:        s.orderCurrency(order),
		ConversionRate:  1,
		Docstatus:       erp.DocstatusDraft,
	}
	if so.TransactionDate.IsZero() {
		so.TransactionDate = time.Now()
	}
	if so.DeliveryDate.IsZero() {
		so.DeliveryDate = time.Now()
	}

	for _, line := range lines {
		so.Items = append(so.Items, erp.SalesOrderItem{
			SalesOrderID:     so.SalesOrderID,
			ItemCode:         line.ItemCode,
			ItemName:         line.ItemName,
			Description:      line.Description,
			Qty:              line.Qty,
			Rate:             line.Rate,
			Warehouse:        line.Warehouse,
			StockUOM:         "Nos",
			ConversionFactor: 1,
		})
	}

	if err := s.erpDB.CreateSalesOrder(so, taxes); err != nil {
		return nil, fmt.Errorf("failed to create sales order: %w", err)
	}
	if err := s.erpDB.SubmitSalesOrder(so.SalesOrderID); err != nil {
		return nil, fmt.Errorf("failed to submit sales order: %w", err)
	}
	so.Docstatus = erp.DocstatusSubmitted

	log.Info().
		Str("order_id", order.AmazonOrderID).
		Str("sales_order_id", so.SalesOrderID).
		Int("line_count", len(so.Items)).
		Msg("created sales order from marketplace order")

	// Reload so child item IDs are populated for downstream references
	return s.erpDB.GetSalesOrderByAmazonOrderID(order.AmazonOrderID)
}

func (s *Syncer) ensureCustomer(order *spapi.Order) (string, error) {
	name := order.BuyerInfo.BuyerEmail
	if name == "" {
		name = "Buyer-" + order.AmazonOrderID
	}

	customer, err := s.erpDB.GetCustomer(name)
	if err != nil {
		return "", err
	}
	if customer != nil {
		return customer.Name, nil
	}

	customer = &erp.Customer{
		Name:          name,
		CustomerGroup: s.acc.CustomerGroup,
		Territory:     s.acc.Territory,
		CustomerType:  s.acc.CustomerType,
	}
	if err := s.erpDB.CreateCustomer(customer); err != nil {
		return "", fmt.Errorf("failed to create customer: %w", err)
	}
	return customer.Name, nil
}

func (s *Syncer) ensureAddress(order *spapi.Order, customerName string) error {
	shipping := order.ShippingAddress
	if shipping == nil {
		return nil
	}

	line1 := shipping.AddressLine1
	if line1 == "" {
		line1 = "Not Provided"
	}

	existing, err := s.erpDB.GetAddress(customerName, line1, shipping.PostalCode)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	return s.erpDB.CreateAddress(&erp.Address{
		CustomerName:  customerName,
		AddressType:   "Shipping",
		AddressLine1:  line1,
		City:          shipping.City,
		StateOrRegion: shipping.StateOrRegion,
		PostalCode:    shipping.PostalCode,
		Country:       mapCountryCode(shipping.CountryCode),
	})
}

// ensureDeliveryNote guarantees exactly one active Delivery Note for the
// order. The create path copies qty, rate and warehouse verbatim from the
// Sales Order lines and records each originating line for traceability.
func (s *Syncer) ensureDeliveryNote(order *spapi.Order, so *erp.SalesOrder) error {
	existing, err := s.erpDB.GetDeliveryNoteByAmazonOrderID(order.AmazonOrderID)
	if err != nil {
		return err
	}
	if existing != nil {
		// The note derives from a submitted, immutable Sales Order, so
		// there is nothing to re-sync; return it as-is
		return nil
	}

	dn := &erp.DeliveryNote{
		DeliveryNoteID: "DN_" + uuid.New().String(),
		AmazonOrderID:  order.AmazonOrderID,
		SalesOrderID:   so.SalesOrderID,
		Company:        so.Company,
		CustomerName:   so.CustomerName,
		Docstatus:      erp.DocstatusDraft,
	}

	for _, item := range so.Items {
		dn.Items = append(dn.Items, erp.DeliveryNoteItem{
			DeliveryNoteID:   dn.DeliveryNoteID,
			ItemCode:         item.ItemCode,
			ItemName:         item.ItemName,
			Description:      item.Description,
			Qty:              item.Qty,
			Rate:             item.Rate,
			Warehouse:        item.Warehouse,
			SalesOrderID:     so.SalesOrderID,
			SalesOrderItemID: item.ID,
		})
	}

	if err := s.erpDB.CreateDeliveryNote(dn); err != nil {
		return fmt.Errorf("failed to create delivery note: %w", err)
	}
	if err := s.erpDB.SubmitDeliveryNote(dn.DeliveryNoteID); err != nil {
		return fmt.Errorf("failed to submit delivery note: %w", err)
	}

	log.Info().
		Str("order_id", order.AmazonOrderID).
		Str("delivery_note_id", dn.DeliveryNoteID).
		Str("sales_order_id", so.SalesOrderID).
		Msg("created delivery note from sales order")

	return nil
}

// ensureSalesInvoice guarantees exactly one active Sales Invoice for the
// order. The update path re-syncs the due date and tax lines while the
// invoice is still draft; the create path copies items and tax lines from
// the Sales Order and inherits its currency and conversion rate.
func (s *Syncer) ensureSalesInvoice(order *spapi.Order, so *erp.SalesOrder) (*erp.SalesInvoice, error) {
	existing, err := s.erpDB.GetSalesInvoiceByAmazonOrderID(order.AmazonOrderID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Docstatus == erp.DocstatusDraft {
			// Re-sync tax lines from the detailed breakdown when it has
			// become available; otherwise keep the current lines
			var taxes []erp.TaxLine
			if s.acc.TaxesChargesAccount != "" {
				taxes, err = s.settlements.ChargesAndFees(order.AmazonOrderID)
				if err != nil {
					return nil, err
				}
			}
			if len(taxes) == 0 {
				taxes, err = s.erpDB.GetTaxLines(erp.TaxParentSalesInvoice, existing.SalesInvoiceID)
				if err != nil {
					return nil, err
				}
			}
			existing.DueDate = existing.PostingDate.AddDate(0, 0, invoiceDueDays)
			if err := s.erpDB.UpdateSalesInvoice(existing, taxes); err != nil {
				return nil, fmt.Errorf("failed to update sales invoice: %w", err)
			}
		}
		return existing, nil
	}

	soTaxes, err := s.erpDB.GetTaxLines(erp.TaxParentSalesOrder, so.SalesOrderID)
	if err != nil {
		return nil, err
	}
	taxes := make([]erp.TaxLine, len(soTaxes))
	for i, t := range soTaxes {
		taxes[i] = erp.TaxLine{
			ChargeType:  t.ChargeType,
			AccountHead: t.AccountHead,
			Amount:      t.Amount,
			Description: t.Description,
		}
	}

	now := time.Now()
	si := &erp.SalesInvoice{
		SalesInvoiceID: "SI_" + uuid.New().String(),
		AmazonOrderID:  order.AmazonOrderID,
		SalesOrderID:   so.SalesOrderID,
		Company:        so.Company,
		CustomerName:   so.CustomerName,
		PostingDate:    now,
		DueDate:        now.AddDate(0, 0, invoiceDueDays),
		Currency:       so.Currency,
		ConversionRate: so.ConversionRate,
		Docstatus:      erp.DocstatusDraft,
	}

	for _, item := range so.Items {
		si.Items = append(si.Items, erp.SalesInvoiceItem{
			SalesInvoiceID:   si.SalesInvoiceID,
			ItemCode:         item.ItemCode,
			ItemName:         item.ItemName,
			Description:      item.Description,
			Qty:              item.Qty,
			Rate:             item.Rate,
			Warehouse:        item.Warehouse,
			SalesOrderID:     so.SalesOrderID,
			SalesOrderItemID: item.ID,
		})
	}

	if err := s.erpDB.CreateSalesInvoice(si, taxes); err != nil {
		return nil, fmt.Errorf("failed to create sales invoice: %w", err)
	}
	if err := s.erpDB.SubmitSalesInvoice(si.SalesInvoiceID); err != nil {
		return nil, fmt.Errorf("failed to submit sales invoice: %w", err)
	}
	si.Docstatus = erp.DocstatusSubmitted

	log.Info().
		Str("order_id", order.AmazonOrderID).
		Str("sales_invoice_id", si.SalesInvoiceID).
		Str("sales_order_id", so.SalesOrderID).
		Msg("created sales invoice from sales order")

	return si, nil
}

// attemptSettlement creates the Payment Entry for an invoice once its net
// payout is available. Non-positive payouts mean "not yet settled" and the
// step is retried on the next sync pass; an invoice already settled by the
// same payout cycle is a no-op.
func (s *Syncer) attemptSettlement(order *spapi.Order, si *erp.SalesInvoice) error {
	logger := log.With().
		Str("order_id", order.AmazonOrderID).
		Str("sales_invoice_id", si.SalesInvoiceID).
		Str("service", "ordersync").
		Logger()

	if si.SettlementID != "" {
		logger.Debug().
			Str("settlement_id", si.SettlementID).
			Msg("invoice already settled, skipping payment entry")
		return nil
	}

	payout, err := s.settlements.ComputeNetPayout(order.AmazonOrderID)
	if err != nil {
		return err
	}
	if payout.Amount <= 0 || payout.SettlementID == "" {
		logger.Info().Msg("settlement not yet available for order, skipping payment entry")
		return nil
	}

	existing, err := s.erpDB.GetPaymentEntryForSettlement(si.SalesInvoiceID, payout.SettlementID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	if s.acc.PayoutAccount == "" {
		return fmt.Errorf("payout account not configured for account %s", s.acc.Name)
	}

	settlementCurrency := s.orderCurrency(order)
	rate, err := s.erpDB.GetExchangeRate(settlementCurrency, s.acc.BaseCurrency)
	if err != nil {
		return fmt.Errorf("cannot convert settlement currency: %w", err)
	}

	pe := &erp.PaymentEntry{
		PaymentEntryID:   "PE_" + uuid.New().String(),
		AmazonOrderID:    order.AmazonOrderID,
		PaymentType:      erp.PaymentTypeReceive,
		Company:          si.Company,
		PartyType:        "Customer",
		Party:            si.CustomerName,
		SalesInvoiceID:   si.SalesInvoiceID,
		SettlementID:     payout.SettlementID,
		PaidAmount:       payout.Amount,
		ReceivedAmount:   payout.Amount * rate,
		PaidCurrency:     settlementCurrency,
		ReceivedCurrency: s.acc.BaseCurrency,
		ExchangeRate:     rate,
		PaidTo:           s.acc.PayoutAccount,
		ReferenceDate:    time.Now(),
		Docstatus:        erp.DocstatusDraft,
	}

	if err := s.erpDB.CreatePaymentEntryForSettlement(pe); err != nil {
		return fmt.Errorf("failed to create payment entry: %w", err)
	}
	if err := s.erpDB.SubmitPaymentEntry(pe.PaymentEntryID); err != nil {
		return fmt.Errorf("failed to submit payment entry: %w", err)
	}
	si.SettlementID = payout.SettlementID

	logger.Info().
		Str("payment_entry_id", pe.PaymentEntryID).
		Str("settlement_id", payout.SettlementID).
		Float64("paid_amount", pe.PaidAmount).
		Float64("received_amount", pe.ReceivedAmount).
		Msg("created payment entry for settled payout")

	return nil
}

// processRefunds ensures exactly one refund Payment Entry exists for an
// order with refunded financial events, updating it while draft and never
// duplicating it
func (s *Syncer) processRefunds(order *spapi.Order) error {
	refund, err := s.settlements.RefundAmount(order.AmazonOrderID)
	if err != nil {
		return err
	}
	if refund <= 0 {
		return nil
	}

	si, err := s.erpDB.GetSalesInvoiceByAmazonOrderID(order.AmazonOrderID)
	if err != nil {
		return err
	}
	if si == nil {
		// Nothing posted to refund against yet
		return nil
	}

	existing, err := s.erpDB.GetPaymentEntryByOrder(order.AmazonOrderID, erp.PaymentTypePay)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.Docstatus == erp.DocstatusDraft && existing.PaidAmount != refund {
			existing.PaidAmount = refund
			existing.ReceivedAmount = refund * existing.ExchangeRate
			if err := s.erpDB.UpdatePaymentEntry(existing); err != nil {
				return fmt.Errorf("failed to update refund payment entry: %w", err)
			}
		}
		return nil
	}

	settlementCurrency := s.orderCurrency(order)
	rate, err := s.erpDB.GetExchangeRate(settlementCurrency, s.acc.BaseCurrency)
	if err != nil {
		return fmt.Errorf("cannot convert refund currency: %w", err)
	}

	pe := &erp.PaymentEntry{
		PaymentEntryID:   "PE_" + uuid.New().String(),
		AmazonOrderID:    order.AmazonOrderID,
		PaymentType:      erp.PaymentTypePay,
		Company:          si.Company,
		PartyType:        "Customer",
		Party:            si.CustomerName,
		SalesInvoiceID:   si.SalesInvoiceID,
		PaidAmount:       refund,
		ReceivedAmount:   refund * rate,
		PaidCurrency:     settlementCurrency,
		ReceivedCurrency: s.acc.BaseCurrency,
		ExchangeRate:     rate,
		PaidTo:           s.acc.PayoutAccount,
		ReferenceDate:    time.Now(),
		Docstatus:        erp.DocstatusDraft,
	}

	if err := s.erpDB.CreatePaymentEntry(pe); err != nil {
		return fmt.Errorf("failed to create refund payment entry: %w", err)
	}
	if err := s.erpDB.SubmitPaymentEntry(pe.PaymentEntryID); err != nil {
		return fmt.Errorf("failed to submit refund payment entry: %w", err)
	}

	log.Info().
		Str("order_id", order.AmazonOrderID).
		Str("payment_entry_id", pe.PaymentEntryID).
		Float64("refund_amount", refund).
		Msg("created refund payment entry")

	return nil
}

// cancelDocuments voids the order's downstream documents in reverse
// creation order. Already-cancelled documents are left untouched.
func (s *Syncer) cancelDocuments(orderID string) error {
	logger := log.With().
		Str("order_id", orderID).
		Str("service", "ordersync").
		Logger()

	for _, paymentType := range []string{erp.PaymentTypeReceive, erp.PaymentTypePay} {
		pe, err := s.erpDB.GetPaymentEntryByOrder(orderID, paymentType)
		if err != nil {
			return err
		}
		if pe != nil {
			if err := s.erpDB.CancelPaymentEntry(pe.PaymentEntryID); err != nil {
				return err
			}
			logger.Info().Str("payment_entry_id", pe.PaymentEntryID).Msg("cancelled payment entry")
		}
	}

	si, err := s.erpDB.GetSalesInvoiceByAmazonOrderID(orderID)
	if err != nil {
		return err
	}
	if si != nil {
		if err := s.erpDB.CancelSalesInvoice(si.SalesInvoiceID); err != nil {
			return err
		}
		logger.Info().Str("sales_invoice_id", si.SalesInvoiceID).Msg("cancelled sales invoice")
	}

	dn, err := s.erpDB.GetDeliveryNoteByAmazonOrderID(orderID)
	if err != nil {
		return err
	}
	if dn != nil {
		if err := s.erpDB.CancelDeliveryNote(dn.DeliveryNoteID); err != nil {
			return err
		}
		logger.Info().Str("delivery_note_id", dn.DeliveryNoteID).Msg("cancelled delivery note")
	}

	so, err := s.erpDB.GetSalesOrderByAmazonOrderID(orderID)
	if err != nil {
		return err
	}
	if so != nil {
		if err := s.erpDB.CancelSalesOrder(so.SalesOrderID); err != nil {
			return err
		}
		logger.Info().Str("sales_order_id", so.SalesOrderID).Msg("cancelled sales order")
	}

	return nil
}

// orderCurrency falls back to the account base currency when the
// marketplace order does not carry one
func (s *Syncer) orderCurrency(order *spapi.Order) string {
	if order.CurrencyCode != "" {
		return order.CurrencyCode
	}
	return s.acc.BaseCurrency
}

// mapCountryCode converts marketplace country codes to ERP country names
func mapCountryCode(code string) string {
	if code == "" {
		return ""
	}

	mapping := map[string]string{
		"US": "United States",
		"CA": "Canada",
		"MX": "Mexico",
		"GB": "United Kingdom",
		"UK": "United Kingdom",
		"DE": "Germany",
		"FR": "France",
		"IT": "Italy",
		"ES": "Spain",
		"IN": "India",
		"JP": "Japan",
		"AU": "Australia",
		"AE": "United Arab Emirates",
		"SA": "Saudi Arabia",
	}
	if name, ok := mapping[code]; ok {
		return name
	}
	return code
}
