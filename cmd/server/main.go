// Package main is the entry point for the OptiPOS stock ledger API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"optipos/internal/domain/documents/purchase"
	"optipos/internal/domain/documents/sales"
	"optipos/internal/domain/documents/transfer"
	"optipos/internal/domain/ledger"
	v1 "optipos/internal/infrastructure/http/v1"
	"optipos/internal/infrastructure/http/v1/middleware"
	"optipos/internal/infrastructure/storage/postgres"
	"optipos/internal/infrastructure/storage/postgres/document_repo"
	"optipos/internal/infrastructure/storage/postgres/ledger_repo"
	"optipos/pkg/logger"
)

func main() {
	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting optipos server")

	// --- Database connection ---
	poolCfg := postgres.DefaultPoolConfig(mustEnv("DATABASE_URL"))
	if maxConns := getEnvInt("DB_MAX_CONNS", 0); maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	// --- Transaction manager ---
	txOpts := postgres.DefaultTxOptions()
	if lockTimeout := getEnvDuration("DB_LOCK_TIMEOUT", 0); lockTimeout > 0 {
		txOpts.LockTimeout = lockTimeout
	}
	txManager := postgres.NewTxManagerWithOptions(pool, txOpts)

	// --- Audit trail ---
	auditService, err := postgres.NewAuditService(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit service", "error", err)
	}

	// --- Low-stock rule ---
	// The predicate is a CEL expression over quantity, stockAlert and isActive.
	var lowStockRule *ledger.LowStockRule
	if expr := getEnv("LOW_STOCK_RULE", ""); expr != "" {
		lowStockRule, err = ledger.CompileLowStockRule(expr)
		if err != nil {
			log.Fatalw("invalid LOW_STOCK_RULE expression", "expr", expr, "error", err)
		}
		log.Infow("custom low-stock rule compiled", "expr", expr)
	}

	// --- Domain services ---
	ledgerRepo := ledger_repo.NewLedgerRepo(txManager)
	ledgerService := ledger.NewService(ledgerRepo, txManager, lowStockRule)

	purchaseService := purchase.NewService(document_repo.NewPurchaseRepo(txManager), ledgerService, txManager)
	salesService := sales.NewService(
		document_repo.NewSalesOrderRepo(txManager),
		document_repo.NewShipmentRepo(txManager),
		ledgerService,
		txManager,
	)
	transferService := transfer.NewService(document_repo.NewTransferRepo(txManager), ledgerService, txManager)

	// --- Auth ---
	validator := middleware.NewTokenValidator(mustEnv("JWT_SECRET"))

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Logger:         log,
		Pool:           pool,
		TokenValidator: validator,
		Ledger:         ledgerService,
		Purchases:      purchaseService,
		Sales:          salesService,
		Transfers:      transferService,
		Audit:          auditService,
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
