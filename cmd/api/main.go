package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"balance-ledger/config"
	"balance-ledger/internal/adapter/events"
	httpHandler "balance-ledger/internal/adapter/http/handler"
	"balance-ledger/internal/adapter/provider"
	pgStorage "balance-ledger/internal/adapter/storage/postgres"
	redisStorage "balance-ledger/internal/adapter/storage/redis"
	"balance-ledger/internal/core/ports"
	"balance-ledger/internal/service"
	"balance-ledger/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Balance Ledger")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Run schema migrations
	if err := pgStorage.Migrate(cfg.Database, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	accountRepo := pgStorage.NewAccountRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	orderRepo := pgStorage.NewOrderRepo(pool)
	transactor := pgStorage.NewTransactor(pool, cfg.Database.Isolation)

	// Read-mostly lookups go through the Redis cache
	lookupCache := redisStorage.NewLookupCache(rdb)
	productRepo := redisStorage.NewCachedProductRepo(pgStorage.NewProductRepo(pool), lookupCache, log)
	userRepo := redisStorage.NewCachedUserRepo(pgStorage.NewUserRepo(pool), lookupCache, log)

	// Initialize collaborators
	publisher := events.NewPublisher(rdb, log)
	checkout := provider.NewCheckout(cfg.Provider.CheckoutBaseURL)

	// Parse ledger settings
	serviceAccountID, err := cfg.Ledger.ServiceAccountUUID()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid ledger configuration")
	}
	refillAmount, err := cfg.Ledger.RefillAmountDecimal()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid ledger configuration")
	}
	auditTolerance, err := cfg.Ledger.AuditToleranceDecimal()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid ledger configuration")
	}

	// Initialize business services
	ledger := service.NewAccountLedger(accountRepo, log)
	auditSvc := service.NewAuditService(accountRepo, txRepo, auditTolerance, log)
	engine := service.NewTransactionEngine(txRepo, orderRepo, productRepo, ledger, transactor, publisher, auditSvc, log)
	orchestrator := service.NewPaymentOrchestrator(
		engine,
		ledger,
		txRepo,
		orderRepo,
		productRepo,
		userRepo,
		checkout,
		serviceAccountID,
		cfg.Ledger.Currency,
		refillAmount,
		log,
	)

	// Initialize rate limit store
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		Orchestrator:   orchestrator,
		Engine:         engine,
		Auditor:        auditSvc,
		Provider:       checkout,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
