package handler

import (
	"custodial-wallet-service/internal/adapter/http/middleware"
	"custodial-wallet-service/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AccountSvc     ports.AccountService
	WalletSvc      ports.WalletService
	TransferSvc    ports.TransferService
	TokenSvc       ports.TokenService
	RateLimitStore ports.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	TokenDecimals  int
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check verifies store, Redis, and ledger RPC
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

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AccountSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register/investor", rl("auth_register"), authHandler.RegisterInvestor)
		auth.POST("/register/entrepreneur", rl("auth_register"), authHandler.RegisterEntrepreneur)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
	}

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	walletHandler := NewWalletHandler(deps.WalletSvc, deps.TokenDecimals)
	transferHandler := NewTransferHandler(deps.TransferSvc)
	accountsHandler := NewAccountsHandler(deps.AccountSvc)

	wallets := v1.Group("/wallets", jwtAuth)
	{
		wallets.POST("", rl("wallets"), walletHandler.CreateWallet)
		wallets.GET("/balance", rl("wallets"), walletHandler.RefreshBalance)
		wallets.GET("/token-balance", rl("wallets"), walletHandler.TokenBalance)
	}

	transfers := v1.Group("/transfers", jwtAuth)
	{
		transfers.POST("", rl("transfers"), transferHandler.Transfer)
		transfers.GET("/:hash", rl("status"), transferHandler.Status)
	}

	accounts := v1.Group("/accounts", jwtAuth)
	{
		accounts.GET("", rl("accounts"), accountsHandler.List)
	}

	return r
}
