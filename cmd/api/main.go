package main

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"custodial-wallet-service/config"
	"custodial-wallet-service/internal/adapter/custody"
	httpHandler "custodial-wallet-service/internal/adapter/http/handler"
	"custodial-wallet-service/internal/adapter/ledger"
	jsonStorage "custodial-wallet-service/internal/adapter/storage/jsonfile"
	pgStorage "custodial-wallet-service/internal/adapter/storage/postgres"
	redisStorage "custodial-wallet-service/internal/adapter/storage/redis"
	"custodial-wallet-service/internal/core/ports"
	"custodial-wallet-service/internal/service"
	"custodial-wallet-service/pkg/logger"

	"github.com/gin-gonic/gin"
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
		Str("store", cfg.Store.Backend).
		Msg("Starting Custodial Wallet Service")

	gin.SetMode(cfg.Server.Mode)

	ctx := context.Background()

	// Initialize the account store backend
	var (
		store     ports.AccountStore
		auditRepo ports.AuditRepository
		checkers  []ports.HealthChecker
	)
	switch cfg.Store.Backend {
	case "postgres":
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()
		store = pgStorage.NewDocumentStore(pool, log)
		auditRepo = pgStorage.NewAuditRepo(pool)
		checkers = append(checkers, pgStorage.NewHealthCheck(pool))
		log.Info().Msg("PostgreSQL connected")
	case "file":
		fileStore, err := jsonStorage.NewStore(cfg.Store.Path, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open account document")
		}
		store = fileStore
		checkers = append(checkers, fileStore)
		log.Info().Str("path", cfg.Store.Path).Msg("File store opened")
	default:
		log.Fatal().Str("backend", cfg.Store.Backend).Msg("Unknown store backend")
	}

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	checkers = append(checkers, redisStorage.NewHealthCheck(rdb))

	// Initialize Redis stores
	receiptCache := redisStorage.NewReceiptCache(rdb)
	transferGuard := redisStorage.NewTransferGuard(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize ledger RPC client
	ledgerClient, err := ledger.NewClient(ctx, cfg.Ledger.RPCURL, cfg.Ledger.RPCRateLimit, cfg.Ledger.CallTimeout, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to ledger RPC")
	}
	defer ledgerClient.Close()
	checkers = append(checkers, ledgerClient)
	log.Info().Str("rpc_url", cfg.Ledger.RPCURL).Int64("chain_id", cfg.Ledger.ChainID).Msg("Ledger RPC connected")

	// Initialize custody provider client
	provider := custody.NewProvider(
		cfg.Custody.BaseURL,
		cfg.Custody.APIKey,
		&http.Client{Timeout: cfg.Custody.Timeout},
		log,
	)

	// Initialize core services
	cipher, err := service.NewShareCipher(cfg.Encryption.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize share cipher")
	}
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	auditSvc := service.NewAuditService(auditRepo, log)
	custodySvc := service.NewCustodyService(provider, log)

	balanceDrift, ok := new(big.Int).SetString(cfg.Ledger.BalanceDriftWei, 10)
	if !ok {
		log.Fatal().Str("value", cfg.Ledger.BalanceDriftWei).Msg("Invalid balance drift threshold")
	}

	// Initialize business services
	walletSvc := service.NewWalletService(store, custodySvc, cipher, ledgerClient, auditSvc, service.WalletConfig{
		BalanceDriftWei: balanceDrift,
		TokenContract:   cfg.Token.Contract,
	}, log)
	transferSvc := service.NewTransferService(store, walletSvc, provider, ledgerClient, transferGuard, receiptCache, auditSvc, service.TransferConfig{
		GasLimit:        cfg.Ledger.GasLimit,
		TokenGasLimit:   cfg.Ledger.TokenGasLimit,
		ConfirmWait:     cfg.Ledger.ConfirmWait,
		ConfirmInterval: cfg.Ledger.ConfirmInterval,
		GuardTTL:        24 * time.Hour,
		ReceiptTTL:      24 * time.Hour,
		TokenContract:   cfg.Token.Contract,
		TokenDecimals:   cfg.Token.Decimals,
		ChainID:         cfg.Ledger.ChainID,
	}, log)
	accountSvc := service.NewAccountService(store, walletSvc, tokenSvc, auditSvc, log)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AccountSvc:     accountSvc,
		WalletSvc:      walletSvc,
		TransferSvc:    transferSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: checkers,
		TokenDecimals:  cfg.Token.Decimals,
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
