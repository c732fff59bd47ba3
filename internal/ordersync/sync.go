package ordersync

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/Shah313/ecommerce-integrations-custom/internal/account"
	"github.com/Shah313/ecommerce-integrations-custom/internal/erp"
	"github.com/Shah313/ecommerce-integrations-custom/internal/retry"
	"github.com/Shah313/ecommerce-integrations-custom/internal/spapi"
	"github.com/Shah313/ecommerce-integrations-custom/pkg/response"
)

var ErrSyncDisabled = errors.New("sync is disabled for this account")

// ClientFactory builds a marketplace client from an account's credentials.
// Production wiring would construct the SP-API transport here; tests and
// the simulation inject the mock marketplace.
type ClientFactory func(acc *account.Account) (spapi.Client, error)

// Service coordinates sync runs across accounts: it validates the account,
// records a SyncRun row, builds a per-account Syncer, and applies the
// disable-sync mutation when a run exhausts its retry budget.
type Service struct {
	gormDB   *gorm.DB
	db       *Database
	erpDB    *erp.Database
	accounts *account.Service
	clients  ClientFactory
}

func NewService(gormDB *gorm.DB, accounts *account.Service, clients ClientFactory) *Service {
	return &Service{
		gormDB:   gormDB,
		db:       NewDatabase(gormDB),
		erpDB:    erp.NewDatabase(gormDB),
		accounts: accounts,
		clients:  clients,
	}
}

// RunSync performs a full sync for the account and blocks until it
// completes. Used by the background processor and the simulation.
func (s *Service) RunSync(accountName string) (*SyncRun, error) {
	acc, run, err := s.prepareRun(accountName)
	if err != nil {
		return nil, err
	}
	s.executeRun(acc, run)
	return run, nil
}

// StartSync kicks off a sync in the background and returns the run record
// immediately so callers can poll its status
func (s *Service) StartSync(accountName string) (*SyncRun, error) {
	acc, run, err := s.prepareRun(accountName)
	if err != nil {
		return nil, err
	}
	go s.executeRun(acc, run)
	return run, nil
}

func (s *Service) prepareRun(accountName string) (*account.Account, *SyncRun, error) {
	acc, err := s.accounts.GetAccount(accountName)
	if err != nil {
		return nil, nil, err
	}
	if !acc.EnableSync {
		return nil, nil, ErrSyncDisabled
	}

	run := &SyncRun{
		RunID:       "RUN_" + uuid.New().String(),
		AccountName: acc.Name,
		Status:      RunStatusRunning,
		StartedAt:   time.Now(),
	}
	if err := s.db.CreateSyncRun(run); err != nil {
		return nil, nil, fmt.Errorf("failed to create sync run: %w", err)
	}
	return acc, run, nil
}

func (s *Service) executeRun(acc *account.Account, run *SyncRun) {
	logger := log.With().
		Str("account", acc.Name).
		Str("run_id", run.RunID).
		Str("service", "ordersync").
		Logger()

	client, err := s.clients(acc)
	if err != nil {
		s.finishRun(run, 0, 0, err)
		logger.Error().Err(err).Msg("failed to build marketplace client")
		return
	}

	since := acc.CreatedAfter
	if acc.LastSyncAt != nil {
		since = *acc.LastSyncAt
	}

	syncer := NewSyncer(client, s.gormDB, acc)
	processed, failed, err := syncer.SyncOrders(since)

	if retry.IsExhausted(err) {
		// The retry wrapper only signals exhaustion; applying the durable
		// disable is this caller's job, and at most once
		disabled, dErr := s.accounts.DisableSync(acc.Name)
		if dErr != nil {
			logger.Error().Err(dErr).Msg("failed to disable sync after retry exhaustion")
		} else if disabled {
			logger.Warn().Msg("sync disabled after retry exhaustion")
		}
	}

	s.finishRun(run, len(processed), failed, err)

	if err == nil {
		if err := s.accounts.GetDB().SetLastSyncAt(acc.Name, run.StartedAt); err != nil {
			logger.Error().Err(err).Msg("failed to record last sync time")
		}
	}

	logger.Info().
		Str("status", run.Status).
		Int("orders_processed", run.OrdersProcessed).
		Int("orders_failed", run.OrdersFailed).
		Msg("sync run finished")
}

func (s *Service) finishRun(run *SyncRun, processed, failed int, err error) {
	now := time.Now()
	run.OrdersProcessed = processed
	run.OrdersFailed = failed
	run.CompletedAt = &now
	if err != nil {
		run.Status = RunStatusFailed
		run.Error = err.Error()
	} else {
		run.Status = RunStatusCompleted
	}
	if dbErr := s.db.UpdateSyncRun(run); dbErr != nil {
		log.Error().Err(dbErr).Str("run_id", run.RunID).Msg("failed to update sync run")
	}
}

// GetSyncRun returns one run record by id
func (s *Service) GetSyncRun(runID string) (*SyncRun, error) {
	return s.db.GetSyncRun(runID)
}

// GetAccountSyncRuns returns an account's run history, newest first
func (s *Service) GetAccountSyncRuns(accountName string) ([]SyncRun, error) {
	if _, err := s.accounts.GetAccount(accountName); err != nil {
		return nil, err
	}
	return s.db.GetAccountSyncRuns(accountName)
}

// OrderDocuments is the document graph synced for one marketplace order
type OrderDocuments struct {
	SalesOrder     *erp.SalesOrder    `json:"sales_order,omitempty"`
	DeliveryNote   *erp.DeliveryNote  `json:"delivery_note,omitempty"`
	SalesInvoice   *erp.SalesInvoice  `json:"sales_invoice,omitempty"`
	PaymentEntries []erp.PaymentEntry `json:"payment_entries,omitempty"`
	Taxes          []erp.TaxLine      `json:"taxes,omitempty"`
}

// GetOrderDocuments assembles the active document graph for an order
func (s *Service) GetOrderDocuments(orderID string) (*OrderDocuments, error) {
	docs := &OrderDocuments{}

	so, err := s.erpDB.GetSalesOrderByAmazonOrderID(orderID)
	if err != nil {
		return nil, err
	}
	docs.SalesOrder = so

	dn, err := s.erpDB.GetDeliveryNoteByAmazonOrderID(orderID)
	if err != nil {
		return nil, err
	}
	docs.DeliveryNote = dn

	si, err := s.erpDB.GetSalesInvoiceByAmazonOrderID(orderID)
	if err != nil {
		return nil, err
	}
	docs.SalesInvoice = si

	if si != nil {
		taxes, err := s.erpDB.GetTaxLines(erp.TaxParentSalesInvoice, si.SalesInvoiceID)
		if err != nil {
			return nil, err
		}
		docs.Taxes = taxes
	}

	for _, paymentType := range []string{erp.PaymentTypeReceive, erp.PaymentTypePay} {
		pe, err := s.erpDB.GetPaymentEntryByOrder(orderID, paymentType)
		if err != nil {
			return nil, err
		}
		if pe != nil {
			docs.PaymentEntries = append(docs.PaymentEntries, *pe)
		}
	}

	return docs, nil
}

// ComputeNetPayout runs the settlement aggregator for one order on demand
func (s *Service) ComputeNetPayout(accountName, orderID string) (interface{}, error) {
	acc, err := s.accounts.GetAccount(accountName)
	if err != nil {
		return nil, err
	}
	client, err := s.clients(acc)
	if err != nil {
		return nil, err
	}
	syncer := NewSyncer(client, s.gormDB, acc)
	return syncer.Settlements().ComputeNetPayout(orderID)
}

// GinHandlers contains HTTP handlers for sync endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// TriggerSyncHandler handles POST requests to start a background sync run
// URL parameter: account
func (h *GinHandlers) TriggerSyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountName := c.Param("account")

		run, err := h.service.StartSync(accountName)
		if errors.Is(err, account.ErrAccountNotFound) {
			response.NotFound(c, "Account not found")
			return
		}
		if errors.Is(err, ErrSyncDisabled) {
			response.BadRequest(c, "Sync is disabled for this account")
			return
		}
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		// The run continues in the background; callers poll by run id
		response.Accepted(c, run)
	}
}

// GetSyncRunHandler handles GET requests for a sync run's status
// URL parameter: run_id
func (h *GinHandlers) GetSyncRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		runID := c.Param("run_id")

		run, err := h.service.GetSyncRun(runID)
		if err != nil || run == nil {
			response.NotFound(c, "Sync run not found")
			return
		}
		response.Success(c, run)
	}
}

// ListSyncRunsHandler handles GET requests for an account's run history
// URL parameter: account
func (h *GinHandlers) ListSyncRunsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountName := c.Param("account")

		runs, err := h.service.GetAccountSyncRuns(accountName)
		if errors.Is(err, account.ErrAccountNotFound) {
			response.NotFound(c, "Account not found")
			return
		}
		response.Handle(c, runs, err)
	}
}

// GetOrderDocumentsHandler handles GET requests for the document graph of
// a marketplace order
// URL parameter: order_id
func (h *GinHandlers) GetOrderDocumentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID := c.Param("order_id")
		if orderID == "" {
			response.BadRequest(c, "Order ID is required")
			return
		}

		docs, err := h.service.GetOrderDocuments(orderID)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		if docs.SalesOrder == nil && docs.SalesInvoice == nil && docs.DeliveryNote == nil {
			response.NotFound(c, "No documents found for order")
			return
		}
		response.Success(c, docs)
	}
}

// ComputeSettlementHandler handles POST requests to run the settlement
// aggregator for one order on demand
// URL parameters: account, order_id
func (h *GinHandlers) ComputeSettlementHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountName := c.Param("account")
		orderID := c.Param("order_id")

		payout, err := h.service.ComputeNetPayout(accountName, orderID)
		if errors.Is(err, account.ErrAccountNotFound) {
			response.NotFound(c, "Account not found")
			return
		}
		response.Handle(c, payout, err)
	}
}
