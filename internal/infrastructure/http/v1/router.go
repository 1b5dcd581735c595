// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"optipos/internal/domain/documents/purchase"
	"optipos/internal/domain/documents/sales"
	"optipos/internal/domain/documents/transfer"
	"optipos/internal/domain/ledger"
	"optipos/internal/infrastructure/http/v1/handlers"
	"optipos/internal/infrastructure/http/v1/middleware"
	"optipos/internal/infrastructure/storage/postgres"
	"optipos/pkg/logger"
)

// RouterConfig holds everything the router needs to wire the API.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// Pool is the database pool (health checks, pool stats)
	Pool *postgres.Pool

	// TokenValidator validates bearer tokens on protected routes
	TokenValidator *middleware.TokenValidator

	// Ledger is the stock movement engine
	Ledger *ledger.Service

	// Purchases handles purchase order lifecycle and receiving
	Purchases *purchase.Service

	// Sales handles sales order lifecycle and shipping
	Sales *sales.Service

	// Transfers handles inter-store transfers
	Transfers *transfer.Service

	// Audit records entity history, optional
	Audit *postgres.AuditService
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// API v1, everything below requires a valid token
	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.TokenValidator))
	{
		handlers.NewMovementHandler(cfg.Ledger, cfg.Audit).Register(v1)
		handlers.NewBalanceHandler(cfg.Ledger).Register(v1)
		handlers.NewPurchaseHandler(cfg.Purchases, cfg.Audit).Register(v1)
		handlers.NewSalesHandler(cfg.Sales, cfg.Audit).Register(v1)
		handlers.NewTransferHandler(cfg.Transfers, cfg.Audit).Register(v1)
	}

	return router
}
