package handler

import (
	"balance-ledger/internal/adapter/http/middleware"
	redisStore "balance-ledger/internal/adapter/storage/redis"
	"balance-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	Orchestrator   ports.PaymentOrchestrator
	Engine         ports.TransactionEngine
	Auditor        ports.ReconciliationAuditor
	Provider       ports.PaymentProvider
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep: verifies PostgreSQL and Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	accountHandler := NewAccountHandler(deps.Orchestrator, deps.Auditor)
	paymentHandler := NewPaymentHandler(deps.Orchestrator, deps.Provider, deps.Logger)
	orderHandler := NewOrderHandler(deps.Orchestrator)
	catalogHandler := NewCatalogHandler(deps.Orchestrator, deps.Engine)

	accounts := r.Group("/accounts/user/:userId")
	{
		accounts.POST("/credit", rl("accounts_credit"), accountHandler.Credit)
		accounts.POST("/debit", rl("accounts_debit"), accountHandler.Debit)
		accounts.GET("", accountHandler.Get)
		accounts.GET("/history", accountHandler.History)
		accounts.GET("/audit", accountHandler.Audit)
	}

	payments := r.Group("/payments")
	{
		payments.POST("/url", rl("payments"), paymentHandler.CreatePaymentURL)
		payments.POST("/provider/webhook", rl("webhooks"), paymentHandler.ProviderWebhook)
	}

	orders := r.Group("/orders")
	{
		orders.POST("/create", rl("orders"), orderHandler.Create)
		orders.GET("/:id", orderHandler.Get)
	}

	r.GET("/transactions/:id", catalogHandler.Transaction)
	r.GET("/products", catalogHandler.Products)

	return r
}
