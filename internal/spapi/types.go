package spapi

import (
	"fmt"
	"time"
)

// Order statuses as reported by the Selling Partner API
const (
	StatusPendingAvailability = "PendingAvailability"
	StatusPending             = "Pending"
	StatusUnshipped           = "Unshipped"
	StatusPartiallyShipped    = "PartiallyShipped"
	StatusShipped             = "Shipped"
	StatusInvoiceUnconfirmed  = "InvoiceUnconfirmed"
	StatusCanceled            = "Canceled"
	StatusUnfulfillable       = "Unfulfillable"
)

// AllOrderStatuses is the full status set requested on every sync pass
var AllOrderStatuses = []string{
	StatusPendingAvailability,
	StatusPending,
	StatusUnshipped,
	StatusPartiallyShipped,
	StatusShipped,
	StatusInvoiceUnconfirmed,
	StatusCanceled,
	StatusUnfulfillable,
}

// AllFulfillmentChannels covers both Amazon-fulfilled and seller-fulfilled orders
var AllFulfillmentChannels = []string{"FBA", "SellerFulfilled"}

// APIError is a transient marketplace failure classified by error code.
// The retry wrapper accumulates these per code before escalating.
type APIError struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Money is a currency-amount structure; a missing amount is read as 0
type Money struct {
	CurrencyCode string  `json:"CurrencyCode"`
	Amount       float64 `json:"Amount"`
}

// Order is an immutable snapshot of a marketplace order. It is re-fetched
// each sync cycle and never persisted locally.
type Order struct {
	AmazonOrderID      string    `json:"AmazonOrderId"`
	OrderStatus        string    `json:"OrderStatus"`
	MarketplaceID      string    `json:"MarketplaceId"`
	SalesChannel       string    `json:"SalesChannel"`
	FulfillmentChannel string    `json:"FulfillmentChannel"`
	PurchaseDate       time.Time `json:"PurchaseDate"`
	LatestShipDate     time.Time `json:"LatestShipDate"`
	CurrencyCode       string    `json:"CurrencyCode"`
	BuyerInfo          BuyerInfo `json:"BuyerInfo"`
	ShippingAddress    *Address  `json:"ShippingAddress,omitempty"`
}

type BuyerInfo struct {
	BuyerEmail string `json:"BuyerEmail"`
	BuyerName  string `json:"BuyerName"`
}

type Address struct {
	AddressLine1  string `json:"AddressLine1"`
	City          string `json:"City"`
	StateOrRegion string `json:"StateOrRegion"`
	PostalCode    string `json:"PostalCode"`
	CountryCode   string `json:"CountryCode"`
}

// OrderItem is one marketplace order line
type OrderItem struct {
	ASIN            string `json:"ASIN"`
	SellerSKU       string `json:"SellerSKU"`
	OrderItemID     string `json:"OrderItemId"`
	Title           string `json:"Title"`
	QuantityOrdered int    `json:"QuantityOrdered"`
	ItemPrice       Money  `json:"ItemPrice"`
	ItemTax         Money  `json:"ItemTax"`
	ShippingPrice   Money  `json:"ShippingPrice"`
	ShippingTax     Money  `json:"ShippingTax"`
}

// FieldValue resolves a marketplace field by its configured mapping name.
// Field sets are enumerated explicitly rather than via reflection.
func (i *OrderItem) FieldValue(field string) string {
	switch field {
	case "ASIN":
		return i.ASIN
	case "SellerSKU":
		return i.SellerSKU
	case "OrderItemId":
		return i.OrderItemID
	case "Title":
		return i.Title
	default:
		return ""
	}
}

// CatalogItem carries the marketplace catalog attributes used for local item creation
type CatalogItem struct {
	ASIN          string         `json:"ASIN"`
	AttributeSets []AttributeSet `json:"AttributeSets"`
}

type AttributeSet struct {
	Title        string `json:"Title"`
	ProductGroup string `json:"ProductGroup"`
	Brand        string `json:"Brand"`
	Manufacturer string `json:"Manufacturer"`
}

// FinancialEventGroup is a marketplace payout cycle grouping financial
// events across many orders
type FinancialEventGroup struct {
	FinancialEventGroupID string    `json:"FinancialEventGroupId"`
	ProcessingStatus      string    `json:"ProcessingStatus"`
	FundTransferStatus    string    `json:"FundTransferStatus"`
	StartDate             time.Time `json:"FinancialEventGroupStart"`
	EndDate               time.Time `json:"FinancialEventGroupEnd"`
}

// FinancialEvents holds the five event categories netted into a payout
type FinancialEvents struct {
	ShipmentEventList   []ShipmentEvent   `json:"ShipmentEventList"`
	RefundEventList     []RefundEvent     `json:"RefundEventList"`
	AdjustmentEventList []AdjustmentEvent `json:"AdjustmentEventList"`
	ServiceFeeEventList []ServiceFeeEvent `json:"ServiceFeeEventList"`
	ChargebackEventList []ChargebackEvent `json:"ChargebackEventList"`
}

type ShipmentEvent struct {
	AmazonOrderID string         `json:"AmazonOrderId"`
	PostedDate    time.Time      `json:"PostedDate"`
	ShipmentItems []ShipmentItem `json:"ShipmentItemList"`
}

type ShipmentItem struct {
	SellerSKU   string            `json:"SellerSKU"`
	ItemCharges []ChargeComponent `json:"ItemChargeList"`
	ItemFees    []FeeComponent    `json:"ItemFeeList"`
	Promotions  []Promotion       `json:"PromotionList"`
}

// ChargeTypePrincipal is the charge representing the item's sale price.
// It is excluded from tax-line synthesis because the line rate already
// carries it.
const ChargeTypePrincipal = "Principal"

type ChargeComponent struct {
	ChargeType   string `json:"ChargeType"`
	ChargeAmount Money  `json:"ChargeAmount"`
}

type FeeComponent struct {
	FeeType   string `json:"FeeType"`
	FeeAmount Money  `json:"FeeAmount"`
}

type Promotion struct {
	PromotionType   string `json:"PromotionType"`
	PromotionAmount Money  `json:"PromotionAmount"`
}

type RefundEvent struct {
	AmazonOrderID string       `json:"AmazonOrderId"`
	PostedDate    time.Time    `json:"PostedDate"`
	RefundItems   []RefundItem `json:"ShipmentItemAdjustmentList"`
}

type RefundItem struct {
	SellerSKU             string            `json:"SellerSKU"`
	ItemChargeAdjustments []ChargeComponent `json:"ItemChargeAdjustmentList"`
	ItemFeeAdjustments    []FeeComponent    `json:"ItemFeeAdjustmentList"`
}

// AdjustmentEvent carries the order identifier on each adjustment line,
// not on the event itself
type AdjustmentEvent struct {
	AdjustmentType  string           `json:"AdjustmentType"`
	PostedDate      time.Time        `json:"PostedDate"`
	AdjustmentItems []AdjustmentItem `json:"AdjustmentItemList"`
}

type AdjustmentItem struct {
	AmazonOrderID    string `json:"AmazonOrderId"`
	AdjustmentAmount Money  `json:"TotalAmount"`
}

type ServiceFeeEvent struct {
	AmazonOrderID string         `json:"AmazonOrderId"`
	Fees          []FeeComponent `json:"FeeList"`
}

type ChargebackEvent struct {
	AmazonOrderID string         `json:"AmazonOrderId"`
	PostedDate    time.Time      `json:"PostedDate"`
	ShipmentItems []ShipmentItem `json:"ShipmentItemList"`
}

// Paginated payloads. An empty NextToken terminates the page loop.

type OrdersPayload struct {
	Orders    []Order `json:"Orders"`
	NextToken string  `json:"NextToken"`
}

type OrderItemsPayload struct {
	OrderItems []OrderItem `json:"OrderItems"`
	NextToken  string      `json:"NextToken"`
}

type FinancialEventGroupsPayload struct {
	FinancialEventGroups []FinancialEventGroup `json:"FinancialEventGroupList"`
	NextToken            string                `json:"NextToken"`
}

type FinancialEventsPayload struct {
	FinancialEvents FinancialEvents `json:"FinancialEvents"`
	NextToken       string          `json:"NextToken"`
}

// ListOrdersParams filters the marketplace order listing
type ListOrdersParams struct {
	CreatedAfter        time.Time
	OrderStatuses       []string
	FulfillmentChannels []string
	MaxResults          int
	NextToken           string
}
