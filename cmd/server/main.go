package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/Shah313/ecommerce-integrations-custom/internal/account"
	"github.com/Shah313/ecommerce-integrations-custom/internal/auth"
	"github.com/Shah313/ecommerce-integrations-custom/internal/config"
	"github.com/Shah313/ecommerce-integrations-custom/internal/database"
	"github.com/Shah313/ecommerce-integrations-custom/internal/ordersync"
	"github.com/Shah313/ecommerce-integrations-custom/internal/spapi"
	"github.com/Shah313/ecommerce-integrations-custom/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the order sync API server with graceful shutdown
// support. It sets up all required services, database connections, the
// background sync processor, and API routes.
func main() {
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize database
	db, err := database.NewDatabase(cfg.DatabasePath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	middleware.SetJWTSecret(cfg.JWTSecret)
	authService := auth.NewService(cfg.JWTSecret)
	authHandlers := auth.NewGinHandlers(authService)
	// Register test credentials
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	accountService := account.NewService(db)
	accountHandlers := account.NewGinHandlers(accountService)

	// The marketplace client is an in-process sandbox, seeded per account.
	// Wiring a live SP-API transport happens here once credentials flow
	// through Account.
	sandbox := spapi.NewMockClient()
	syncService := ordersync.NewService(db, accountService, func(acc *account.Account) (spapi.Client, error) {
		return sandbox, nil
	})
	syncHandlers := ordersync.NewGinHandlers(syncService)

	// Create and start the scheduled sync processor
	syncProcessor := ordersync.NewProcessor(syncService, accountService, cfg.SyncInterval)
	processorCtx, processorCancel := context.WithCancel(context.Background())
	defer processorCancel()

	go syncProcessor.Start(processorCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, authHandlers, accountHandlers, syncHandlers)

	// Create server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Sync and order routes: Protected by JWT authentication
// - Internal routes: Protected by internal network authentication
func setupRoutes(
	router *gin.Engine,
	authHandlers *auth.GinHandlers,
	accountHandlers *account.GinHandlers,
	syncHandlers *ordersync.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		auth := v1.Group("/auth")
		{
			auth.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Sync routes
		sync := v1.Group("/sync")
		sync.Use(middleware.JWTAuth())
		{
			sync.POST("/:account", syncHandlers.TriggerSyncHandler())
			sync.GET("/runs/:run_id", syncHandlers.GetSyncRunHandler())
		}

		// Order document routes
		orders := v1.Group("/orders")
		orders.Use(middleware.JWTAuth())
		{
			orders.GET("/:order_id", syncHandlers.GetOrderDocumentsHandler())
		}

		// Internal routes (should be protected by internal network)
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth())
		{
			internal.POST("/settlement/:account/:order_id", syncHandlers.ComputeSettlementHandler())
			internal.POST("/accounts/:account/enable", accountHandlers.EnableSyncHandler())
			internal.GET("/accounts/:account", accountHandlers.GetAccountHandler())
			internal.GET("/accounts/:account/runs", syncHandlers.ListSyncRunsHandler())
		}
	}
}
