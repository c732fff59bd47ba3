package spapi

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"
)

// MockClient is an in-memory marketplace used by the simulation and by
// package tests. Payloads are served in fixed pages so pagination loops are
// exercised, and failures can be scripted per method to drive the retry
// wrapper.
type MockClient struct {
	mu sync.Mutex

	PageSize int

	orders      []Order
	orderItems  map[string][]OrderItem
	catalog     map[string]CatalogItem
	groups      []FinancialEventGroup
	groupEvents map[string][]FinancialEvents
	orderEvents map[string][]FinancialEvents

	// scripted failures consumed FIFO, keyed by method name
	failures map[string][]*APIError
	calls    map[string]int
}

// NewMockClient creates an empty mock marketplace with a page size of 2,
// small enough that even short fixtures span multiple pages
func NewMockClient() *MockClient {
	return &MockClient{
		PageSize:    2,
		orderItems:  make(map[string][]OrderItem),
		catalog:     make(map[string]CatalogItem),
		groupEvents: make(map[string][]FinancialEvents),
		orderEvents: make(map[string][]FinancialEvents),
		failures:    make(map[string][]*APIError),
		calls:       make(map[string]int),
	}
}

// AddOrder registers an order and its line items
func (m *MockClient) AddOrder(order Order, items ...OrderItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = append(m.orders, order)
	m.orderItems[order.AmazonOrderID] = append(m.orderItems[order.AmazonOrderID], items...)
}

// SetOrderStatus rewrites the status of a registered order, simulating the
// order progressing between sync passes
func (m *MockClient) SetOrderStatus(orderID, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.orders {
		if m.orders[i].AmazonOrderID == orderID {
			m.orders[i].OrderStatus = status
		}
	}
}

// AddCatalogItem registers catalog attributes for an ASIN
func (m *MockClient) AddCatalogItem(item CatalogItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalog[item.ASIN] = item
}

// AddEventGroup registers a settlement group and its event pages. Each
// FinancialEvents value becomes one page of the group's event listing.
func (m *MockClient) AddEventGroup(group FinancialEventGroup, pages ...FinancialEvents) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups = append(m.groups, group)
	m.groupEvents[group.FinancialEventGroupID] = append(m.groupEvents[group.FinancialEventGroupID], pages...)
}

// AddOrderEvents registers event pages returned by ListFinancialEventsByOrder
func (m *MockClient) AddOrderEvents(orderID string, pages ...FinancialEvents) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orderEvents[orderID] = append(m.orderEvents[orderID], pages...)
}

// FailNext scripts the next n calls to a method to fail with the given error
func (m *MockClient) FailNext(method string, n int, err *APIError) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < n; i++ {
		m.failures[method] = append(m.failures[method], err)
	}
}

// Calls reports how many times a method was invoked
func (m *MockClient) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *MockClient) checkFailure(method string) error {
	m.calls[method]++
	queue := m.failures[method]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	m.failures[method] = queue[1:]
	log.Debug().
		Str("method", method).
		Str("error_code", err.Code).
		Msg("mock marketplace returning scripted failure")
	return err
}

func (m *MockClient) pageBounds(token string, total int) (int, int, string, error) {
	start := 0
	if token != "" {
		n, err := strconv.Atoi(token)
		if err != nil {
			return 0, 0, "", fmt.Errorf("invalid pagination token %q", token)
		}
		start = n
	}
	if start > total {
		start = total
	}
	end := start + m.PageSize
	next := ""
	if end >= total {
		end = total
	} else {
		next = strconv.Itoa(end)
	}
	return start, end, next, nil
}

func (m *MockClient) ListOrders(params ListOrdersParams) (*OrdersPayload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFailure("ListOrders"); err != nil {
		return nil, err
	}

	var matched []Order
	for _, o := range m.orders {
		if !params.CreatedAfter.IsZero() && o.PurchaseDate.Before(params.CreatedAfter) {
			continue
		}
		if len(params.OrderStatuses) > 0 && !contains(params.OrderStatuses, o.OrderStatus) {
			continue
		}
		if len(params.FulfillmentChannels) > 0 && o.FulfillmentChannel != "" &&
			!contains(params.FulfillmentChannels, o.FulfillmentChannel) {
			continue
		}
		matched = append(matched, o)
	}

	start, end, next, err := m.pageBounds(params.NextToken, len(matched))
	if err != nil {
		return nil, err
	}
	return &OrdersPayload{Orders: matched[start:end], NextToken: next}, nil
}

func (m *MockClient) ListOrderItems(orderID, nextToken string) (*OrderItemsPayload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFailure("ListOrderItems"); err != nil {
		return nil, err
	}

	items := m.orderItems[orderID]
	start, end, next, err := m.pageBounds(nextToken, len(items))
	if err != nil {
		return nil, err
	}
	return &OrderItemsPayload{OrderItems: items[start:end], NextToken: next}, nil
}

func (m *MockClient) GetCatalogItem(asin string) (*CatalogItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFailure("GetCatalogItem"); err != nil {
		return nil, err
	}

	item, ok := m.catalog[asin]
	if !ok {
		return nil, &APIError{Code: "NotFound", Description: "catalog item " + asin + " not found"}
	}
	return &item, nil
}

func (m *MockClient) ListFinancialEventGroups(nextToken string) (*FinancialEventGroupsPayload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFailure("ListFinancialEventGroups"); err != nil {
		return nil, err
	}

	start, end, next, err := m.pageBounds(nextToken, len(m.groups))
	if err != nil {
		return nil, err
	}
	return &FinancialEventGroupsPayload{
		FinancialEventGroups: m.groups[start:end],
		NextToken:            next,
	}, nil
}

func (m *MockClient) ListFinancialEventsByGroup(groupID, nextToken string) (*FinancialEventsPayload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFailure("ListFinancialEventsByGroup"); err != nil {
		return nil, err
	}
	return pageEvents(m.groupEvents[groupID], nextToken)
}

func (m *MockClient) ListFinancialEventsByOrder(orderID, nextToken string) (*FinancialEventsPayload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFailure("ListFinancialEventsByOrder"); err != nil {
		return nil, err
	}
	return pageEvents(m.orderEvents[orderID], nextToken)
}

// pageEvents serves pre-built event pages one at a time
func pageEvents(pages []FinancialEvents, token string) (*FinancialEventsPayload, error) {
	idx := 0
	if token != "" {
		n, err := strconv.Atoi(token)
		if err != nil {
			return nil, fmt.Errorf("invalid pagination token %q", token)
		}
		idx = n
	}
	if idx >= len(pages) {
		return &FinancialEventsPayload{}, nil
	}
	next := ""
	if idx+1 < len(pages) {
		next = strconv.Itoa(idx + 1)
	}
	return &FinancialEventsPayload{FinancialEvents: pages[idx], NextToken: next}, nil
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
