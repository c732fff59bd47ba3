package account

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/Shah313/ecommerce-integrations-custom/pkg/response"
)

var ErrAccountNotFound = errors.New("account not found")

// Service manages marketplace account configuration and the sync flag
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

func (s *Service) GetAccount(name string) (*Account, error) {
	acc, err := s.db.GetAccount(name)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, ErrAccountNotFound
	}
	return acc, nil
}

func (s *Service) CreateAccount(acc *Account) error {
	if acc.MaxRetryLimit < 1 {
		acc.MaxRetryLimit = 1
	}
	return s.db.CreateAccount(acc)
}

func (s *Service) UpdateAccount(acc *Account) error {
	return s.db.UpdateAccount(acc)
}

func (s *Service) GetSyncEnabledAccounts() ([]Account, error) {
	return s.db.GetSyncEnabledAccounts()
}

// DisableSync clears the account's sync flag, returning whether this call
// performed the disable. Repeated calls are no-ops.
func (s *Service) DisableSync(name string) (bool, error) {
	disabled, err := s.db.DisableSync(name)
	if err != nil {
		return false, err
	}
	if disabled {
		log.Warn().
			Str("account", name).
			Msg("marketplace sync disabled for account")
	}
	return disabled, nil
}

func (s *Service) EnableSync(name string) error {
	return s.db.EnableSync(name)
}

// GetDB exposes the store for collaborators wired in main
func (s *Service) GetDB() *Database {
	return s.db
}

// GinHandlers contains HTTP handlers for account administration
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// GetAccountHandler handles GET requests for account configuration
// URL parameter: account
func (h *GinHandlers) GetAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("account")

		acc, err := h.service.GetAccount(name)
		if errors.Is(err, ErrAccountNotFound) {
			response.NotFound(c, "Account not found")
			return
		}
		response.Handle(c, acc, err)
	}
}

// EnableSyncHandler re-enables sync for an account after an operator has
// resolved the failure that disabled it
func (h *GinHandlers) EnableSyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("account")

		if err := h.service.EnableSync(name); err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, gin.H{"message": "sync enabled", "account": name})
	}
}
