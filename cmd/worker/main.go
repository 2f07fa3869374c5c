package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"payout-settler/config"
	"payout-settler/internal/adapter/chain/cosmos"
	"payout-settler/internal/adapter/chain/evm"
	httpHandler "payout-settler/internal/adapter/http/handler"
	pgStorage "payout-settler/internal/adapter/storage/postgres"
	redisStorage "payout-settler/internal/adapter/storage/redis"
	"payout-settler/internal/core/ports"
	"payout-settler/internal/service"
	"payout-settler/pkg/logger"
	"payout-settler/pkg/metrics"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("PAYOUT_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Dur("polling_delay", cfg.Worker.PollingDelay()).
		Int("batch_limit", cfg.Worker.BatchLimit).
		Msg("Starting payout settler")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Initialize repositories
	payoutRepo := pgStorage.NewPayoutRepo(pool)
	claimLedger := pgStorage.NewClaimLedger(pgStorage.NewTransactor(pool, cfg.Database.LockTimeout))
	userRepo := pgStorage.NewUserRepo(pool)
	payoutLogRepo := pgStorage.NewPayoutLogRepo(pool)

	// Initialize chain dispatchers; an unconfigured chain is disabled
	var dispatchers []ports.ChainDispatcher
	if cfg.EVM.SignerKey != "" {
		if !common.IsHexAddress(cfg.EVM.TokenAddress) {
			log.Fatal().Str("token_address", cfg.EVM.TokenAddress).Msg("Invalid EVM token address")
		}
		evmClient, err := evm.Dial(ctx, cfg.EVM, logger.Component(log, "evm"))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize EVM client")
		}
		evmDispatcher, err := service.NewEVMDispatcher(evmClient, common.HexToAddress(cfg.EVM.TokenAddress))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize EVM dispatcher")
		}
		dispatchers = append(dispatchers, evmDispatcher)
	} else {
		log.Warn().Msg("EVM chain not configured, account-based wallets will be skipped")
	}
	if cfg.Cosmos.RelayURL != "" {
		cosmosClient := cosmos.NewClient(cfg.Cosmos, logger.Component(log, "cosmos"))
		dispatchers = append(dispatchers, service.NewCosmosDispatcher(cosmosClient, logger.Component(log, "cosmos")))
	} else {
		log.Warn().Msg("Cosmos chain not configured, sequence-based wallets will be skipped")
	}
	selector := service.NewChainSelector(cfg.Cosmos.Bech32Prefix, dispatchers...)

	// Initialize business services
	auditSvc := service.NewAuditService(payoutLogRepo, logger.Component(log, "audit"))
	settlementSvc := service.NewSettlementService(
		claimLedger,
		payoutRepo,
		userRepo,
		selector,
		auditSvc,
		redisStorage.NewEventPublisher(rdb),
		service.SettlementConfig{Topic: cfg.Event.Topic},
		logger.Component(log, "settlement"),
	)

	var cycleLock ports.CycleLock
	if cfg.Worker.CycleLockTTL > 0 {
		cycleLock = redisStorage.NewCycleLock(rdb)
	}
	poller := service.NewPoller(
		payoutRepo,
		service.NewAggregator(m, logger.Component(log, "aggregator")),
		settlementSvc,
		cycleLock,
		m,
		service.PollerConfig{
			Delay:      cfg.Worker.PollingDelay(),
			BatchLimit: cfg.Worker.BatchLimit,
			LockTTL:    cfg.Worker.CycleLockTTL,
		},
		logger.Component(log, "poller"),
	)
	staleMonitor := service.NewStaleClaimMonitor(
		payoutRepo, m,
		cfg.Worker.StaleClaimAfter, cfg.Worker.StaleScanInterval,
		logger.Component(log, "stale_claims"),
	)

	// Ops server (health + metrics)
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		HealthCheckers: []ports.HealthChecker{pgStorage.NewHealthCheck(pool), redisStorage.NewHealthCheck(rdb)},
		Gatherer:       reg,
		Logger:         logger.Component(log, "ops"),
	})
	srv := &http.Server{
		Addr:              cfg.Ops.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Ops server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Ops server failed")
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		staleMonitor.Run(ctx)
	}()

	// Blocks until SIGINT/SIGTERM
	if err := poller.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Poll loop exited")
	}

	log.Info().Msg("Shutting down...")
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Ops server forced to shutdown")
	}

	log.Info().Msg("Payout settler exited")
}
