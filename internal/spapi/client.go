package spapi

// Client is the read surface of the Selling Partner API consumed by the
// sync pipeline. Every call may fail transiently with an *APIError; callers
// are expected to go through the retry wrapper.
//
// The HTTP transport is an external collaborator and is not owned here;
// tests and the simulation run against the in-memory MockClient.
type Client interface {
	// ListOrders returns one page of orders matching the filter
	ListOrders(params ListOrdersParams) (*OrdersPayload, error)

	// ListOrderItems returns one page of line items for an order
	ListOrderItems(orderID, nextToken string) (*OrderItemsPayload, error)

	// GetCatalogItem returns the catalog attributes for an ASIN
	GetCatalogItem(asin string) (*CatalogItem, error)

	// ListFinancialEventGroups returns one page of settlement groups
	ListFinancialEventGroups(nextToken string) (*FinancialEventGroupsPayload, error)

	// ListFinancialEventsByGroup returns one page of financial events
	// belonging to a settlement group
	ListFinancialEventsByGroup(groupID, nextToken string) (*FinancialEventsPayload, error)

	// ListFinancialEventsByOrder returns one page of financial events
	// referencing an order
	ListFinancialEventsByOrder(orderID, nextToken string) (*FinancialEventsPayload, error)
}
