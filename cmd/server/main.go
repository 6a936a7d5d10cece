// Package main is the entry point for the Helmsman portfolio engine.
// It values an equity portfolio against a transaction ledger and stored
// closes, computes risk measures, runs mean-variance optimizations, and
// screens the investable universe, all exposed over an HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/helmsman/internal/cache"
	"github.com/aristath/helmsman/internal/clients/euronext"
	"github.com/aristath/helmsman/internal/config"
	"github.com/aristath/helmsman/internal/database"
	ledgermod "github.com/aristath/helmsman/internal/modules/ledger"
	ledgerhandlers "github.com/aristath/helmsman/internal/modules/ledger/handlers"
	optimizationmod "github.com/aristath/helmsman/internal/modules/optimization"
	optimizationhandlers "github.com/aristath/helmsman/internal/modules/optimization/handlers"
	portfoliomod "github.com/aristath/helmsman/internal/modules/portfolio"
	portfoliohandlers "github.com/aristath/helmsman/internal/modules/portfolio/handlers"
	quotesmod "github.com/aristath/helmsman/internal/modules/quotes"
	quoteshandlers "github.com/aristath/helmsman/internal/modules/quotes/handlers"
	riskmod "github.com/aristath/helmsman/internal/modules/risk"
	riskhandlers "github.com/aristath/helmsman/internal/modules/risk/handlers"
	screenermod "github.com/aristath/helmsman/internal/modules/screener"
	screenerhandlers "github.com/aristath/helmsman/internal/modules/screener/handlers"
	"github.com/aristath/helmsman/internal/scheduler"
	"github.com/aristath/helmsman/internal/server"
	"github.com/aristath/helmsman/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting Helmsman")

	// Databases
	ledgerDB, err := database.New(database.Config{
		Path:    cfg.LedgerDBPath(),
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger database")
	}
	defer ledgerDB.Close()

	quotesDB, err := database.New(database.Config{
		Path:    cfg.QuotesDBPath(),
		Profile: database.ProfileStandard,
		Name:    "quotes",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open quotes database")
	}
	defer quotesDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    cfg.CacheDBPath(),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	for _, db := range []*database.DB{ledgerDB, quotesDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", db.Name()).Msg("Failed to run migrations")
		}
	}

	// Market data client
	market := euronext.NewClient(cfg.EuronextBaseURL, cfg.EuronextAuthKey, log)

	// Repositories
	ledgerRepo := ledgermod.NewRepository(ledgerDB.Conn(), log)
	quotesRepo := quotesmod.NewRepository(quotesDB.Conn(), log)
	navRepo := portfoliomod.NewNAVRepository(ledgerDB.Conn(), log)
	fundamentalsRepo := screenermod.NewRepository(quotesDB.Conn(), log)

	// Services
	ledgerSvc := ledgermod.NewService(ledgerRepo, log)
	valuator := portfoliomod.NewValuator(ledgerSvc, quotesRepo, market, log)
	portfolioSvc := portfoliomod.NewService(valuator, navRepo, log)
	returnsBuilder := riskmod.NewReturnsBuilder(quotesRepo)
	riskSvc := riskmod.NewService(valuator, ledgerSvc, quotesRepo, navRepo, riskmod.Config{
		RiskFreeRate:  cfg.RiskFreeRate,
		LookbackDays:  cfg.LookbackDays,
		VaRPercentile: int(cfg.VaRPercentile),
		VaRWeightMode: riskmod.WeightMode(cfg.VaRWeightMode),
	}, log)
	calcCache := cache.NewRepository(cacheDB.Conn(), log)
	optimizationSvc := optimizationmod.NewService(valuator, returnsBuilder, calcCache, cfg.LookbackDays, log)
	screenerSvc := screenermod.NewService(fundamentalsRepo, quotesRepo, log)

	// HTTP server
	srv := server.New(server.Config{
		Log:      log,
		Config:   cfg,
		LedgerDB: ledgerDB,
		QuotesDB: quotesDB,
		CacheDB:  cacheDB,

		LedgerHandlers:       ledgerhandlers.NewHandler(ledgerSvc, log),
		QuotesHandlers:       quoteshandlers.NewHandler(quotesRepo, log),
		PortfolioHandlers:    portfoliohandlers.NewHandler(portfolioSvc, log),
		RiskHandlers:         riskhandlers.NewHandler(riskSvc, log),
		OptimizationHandlers: optimizationhandlers.NewHandler(optimizationSvc, log),
		ScreenerHandlers:     screenerhandlers.NewHandler(screenerSvc, fundamentalsRepo, log),
	})

	// Background jobs
	sched := scheduler.New(log)
	navJob := scheduler.NewNAVSnapshotJob(portfolioSvc, log)
	if err := sched.AddJob(cfg.NAVSnapshotSchedule, navJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register NAV snapshot job")
	}
	purgeJob := scheduler.NewCachePurgeJob(calcCache, log)
	if err := sched.AddJob("@hourly", purgeJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cache purge job")
	}
	sched.Start()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
