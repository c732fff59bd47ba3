package ordersync

import (
	"fmt"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/Shah313/ecommerce-integrations-custom/internal/erp"
	"github.com/Shah313/ecommerce-integrations-custom/internal/retry"
	"github.com/Shah313/ecommerce-integrations-custom/internal/spapi"
)

// integrationName tags item cross-references created by this integration
const integrationName = "Amazon SP API"

// orderLine is one extracted marketplace order line with its resolved ERP
// item and effective rate
type orderLine struct {
	ItemCode      string
	ItemName      string
	Description   string
	Qty           float64
	Rate          float64
	Warehouse     string
	ItemPrice     float64
	ItemTax       float64
	ShippingPrice float64
	ShippingTax   float64
}

// buildOrderLines fetches all line items for an order and maps them onto
// ERP items. Lines with a non-positive quantity are dropped. The effective
// rate apportions the line's shipping price evenly across its quantity:
// rate = unit item price + shipping price / qty.
func (s *Syncer) buildOrderLines(orderID string) ([]orderLine, error) {
	var lines []orderLine

	nextToken := ""
	for {
		token := nextToken
		payload, err := retry.Do(s.caller, "ListOrderItems", func() (*spapi.OrderItemsPayload, error) {
			return s.client.ListOrderItems(orderID, token)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list order items for %s: %w", orderID, err)
		}

		for i := range payload.OrderItems {
			oi := &payload.OrderItems[i]
			if oi.QuantityOrdered <= 0 {
				log.Debug().
					Str("order_id", orderID).
					Str("seller_sku", oi.SellerSKU).
					Msg("dropping order line with non-positive quantity")
				continue
			}

			itemCode, err := s.resolveItemCode(oi)
			if err != nil {
				return nil, err
			}

			qty := float64(oi.QuantityOrdered)
			rate := oi.ItemPrice.Amount + oi.ShippingPrice.Amount/qty

			lines = append(lines, orderLine{
				ItemCode:      itemCode,
				ItemName:      oi.SellerSKU,
				Description:   oi.Title,
				Qty:           qty,
				Rate:          rate,
				Warehouse:     s.acc.Warehouse,
				ItemPrice:     oi.ItemPrice.Amount,
				ItemTax:       oi.ItemTax.Amount,
				ShippingPrice: oi.ShippingPrice.Amount,
				ShippingTax:   oi.ShippingTax.Amount,
			})
		}

		if payload.NextToken == "" {
			return lines, nil
		}
		nextToken = payload.NextToken
	}
}

// resolveItemCode finds the ERP item for a marketplace line by trying the
// account's field mappings in priority order: the first mapping whose
// marketplace field has a value and whose ERP lookup hits wins. A miss
// fails fast when local item creation is disabled, otherwise the item is
// created from the marketplace catalog.
func (s *Syncer) resolveItemCode(oi *spapi.OrderItem) (string, error) {
	for _, mapping := range s.acc.FieldMappings {
		if !mapping.UseToFindItem {
			continue
		}

		value := oi.FieldValue(mapping.MarketplaceField)
		if value == "" {
			continue
		}

		item, err := s.erpDB.GetItemByField(mapping.ItemField, value)
		if err != nil {
			return "", err
		}
		if item != nil {
			return item.ItemCode, nil
		}

		if !s.acc.CreateItemIfMissing {
			return "", fmt.Errorf("item not found using field %s = %s", mapping.ItemField, value)
		}
		break
	}

	if !s.acc.CreateItemIfMissing {
		return "", fmt.Errorf("no field mapping matched order line %s", oi.SellerSKU)
	}
	return s.createItem(oi)
}

// createItem builds a new ERP item from the marketplace catalog attributes
// and links it to an external-SKU cross-reference record. An existing
// cross-reference for the SKU short-circuits to the item it points at.
func (s *Syncer) createItem(oi *spapi.OrderItem) (string, error) {
	ref, err := s.erpDB.GetItemReferenceBySKU(integrationName, oi.SellerSKU)
	if err != nil {
		return "", err
	}
	if ref != nil {
		return ref.ItemCode, nil
	}

	asin := oi.ASIN
	catalog, err := retry.Do(s.caller, "GetCatalogItem", func() (*spapi.CatalogItem, error) {
		return s.client.GetCatalogItem(asin)
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch catalog item %s: %w", asin, err)
	}

	item := erp.Item{
		ItemCode: oi.SellerSKU,
		ItemName: truncate(oi.Title, 140),
		StockUOM: "Nos",
	}

	// Apply the configured field mappings onto the new item
	for _, mapping := range s.acc.FieldMappings {
		value := oi.FieldValue(mapping.MarketplaceField)
		if value == "" {
			continue
		}
		switch mapping.ItemField {
		case "item_code":
			item.ItemCode = value
		case "item_name":
			item.ItemName = truncate(value, 140)
		case "description":
			item.Description = value
		}
	}

	if len(catalog.AttributeSets) > 0 {
		attrs := catalog.AttributeSets[0]
		item.ItemGroup = attrs.ProductGroup
		item.Brand = attrs.Brand
		item.Manufacturer = attrs.Manufacturer
	}

	// A mapping miss can still land on an item code that already exists,
	// e.g. when the item was created manually; link it instead of failing
	// the unique index
	existing, err := s.erpDB.GetItemByCode(item.ItemCode)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.ItemCode, nil
	}

	xref := erp.ItemReference{
		Integration:         integrationName,
		ItemCode:            item.ItemCode,
		IntegrationItemCode: oi.ASIN,
		SKU:                 oi.SellerSKU,
	}

	if err := s.erpDB.CreateItemWithReference(&item, &xref); err != nil {
		return "", fmt.Errorf("failed to create item %s: %w", item.ItemCode, err)
	}

	log.Info().
		Str("item_code", item.ItemCode).
		Str("asin", oi.ASIN).
		Str("seller_sku", oi.SellerSKU).
		Msg("created item from marketplace catalog")

	return item.ItemCode, nil
}

// buildTaxLines synthesizes the tax table for an order. The detailed
// charge/fee breakdown from the financial events is preferred; the three
// fallback lines (item tax, shipping, shipping tax) are used only when the
// breakdown yields nothing. The two sources are never combined.
func (s *Syncer) buildTaxLines(orderID string, lines []orderLine) ([]erp.TaxLine, error) {
	if s.acc.TaxesChargesAccount == "" {
		return nil, nil
	}

	detailed, err := s.settlements.ChargesAndFees(orderID)
	if err != nil {
		return nil, err
	}
	if len(detailed) > 0 {
		return detailed, nil
	}

	var totalItemTax, totalShipping, totalShippingTax float64
	for _, line := range lines {
		totalItemTax += line.ItemTax
		totalShipping += line.ShippingPrice
		totalShippingTax += line.ShippingTax
	}

	var taxes []erp.TaxLine

	if totalItemTax > 0 {
		taxes = append(taxes, erp.TaxLine{
			ChargeType:  "Actual",
			AccountHead: s.acc.TaxesChargesAccount,
			Amount:      totalItemTax,
			Description: "Sales Tax from Amazon",
		})
	}

	if totalShipping > 0 {
		shippingAccount := s.acc.TaxesChargesAccount
		if acct, err := s.erpDB.GetLedgerAccount("Freight and Forwarding Charges"); err == nil && acct != nil {
			shippingAccount = acct.Name
		}
		taxes = append(taxes, erp.TaxLine{
			ChargeType:  "Actual",
			AccountHead: shippingAccount,
			Amount:      totalShipping,
			Description: "Shipping Charge from Amazon",
		})
	}

	if totalShippingTax > 0 {
		taxes = append(taxes, erp.TaxLine{
			ChargeType:  "Actual",
			AccountHead: s.acc.TaxesChargesAccount,
			Amount:      totalShippingTax,
			Description: "Shipping Tax from Amazon",
		})
	}

	return taxes, nil
}

// truncate shortens s to at most max bytes without splitting a rune
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
