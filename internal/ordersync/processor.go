package ordersync

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Shah313/ecommerce-integrations-custom/internal/account"
)

// Processor runs scheduled sync cycles for every sync-enabled account. One
// worker handles all accounts serially, preserving the single-writer
// guarantee on each account's sync flag.
type Processor struct {
	service  *Service
	accounts *account.Service
	interval time.Duration
}

func NewProcessor(service *Service, accounts *account.Service, interval time.Duration) *Processor {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Processor{
		service:  service,
		accounts: accounts,
		interval: interval,
	}
}

// Start begins the sync processing loop
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "sync_processor").Logger()
	logger.Info().Dur("interval", p.interval).Msg("starting sync processor")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down sync processor")
			return
		case <-ticker.C:
			if err := p.processAccounts(); err != nil {
				logger.Error().Err(err).Msg("failed to process accounts")
			}
		}
	}
}

func (p *Processor) processAccounts() error {
	logger := log.With().Str("component", "sync_processor").Logger()

	accounts, err := p.accounts.GetSyncEnabledAccounts()
	if err != nil {
		return err
	}

	logger.Info().Int("account_count", len(accounts)).Msg("processing sync-enabled accounts")

	for i := range accounts {
		acc := &accounts[i]
		run, err := p.service.RunSync(acc.Name)
		if err != nil {
			// The account may have been disabled between listing and run
			logger.Error().
				Err(err).
				Str("account", acc.Name).
				Msg("scheduled sync failed to start")
			continue
		}
		logger.Info().
			Str("account", acc.Name).
			Str("run_id", run.RunID).
			Str("status", run.Status).
			Msg("scheduled sync completed")
	}

	return nil
}
