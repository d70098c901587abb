package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SUOKE2024/suoke-life-sub003/internal/anchor"
	"github.com/SUOKE2024/suoke-life-sub003/internal/grants"
	"github.com/SUOKE2024/suoke-life-sub003/internal/integrity"
	"github.com/SUOKE2024/suoke-life-sub003/internal/ledger"
	"github.com/SUOKE2024/suoke-life-sub003/internal/server"
	"github.com/SUOKE2024/suoke-life-sub003/internal/status"
	"github.com/SUOKE2024/suoke-life-sub003/internal/zkp"
	"github.com/SUOKE2024/suoke-life-sub003/pkg/config"
	"github.com/SUOKE2024/suoke-life-sub003/pkg/database"
	"github.com/SUOKE2024/suoke-life-sub003/pkg/encryption"
	"github.com/SUOKE2024/suoke-life-sub003/pkg/logger"
	"github.com/SUOKE2024/suoke-life-sub003/pkg/monitoring"
	"github.com/SUOKE2024/suoke-life-sub003/pkg/repository"
)

const serviceName = "ledger-service"

func main() {
	log := logger.New(serviceName, "info")
	log.Info("Starting Health Record Ledger Service")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	log = logger.New(serviceName, cfg.LogLevel)

	// Local mirror is optional: the ledger core runs without it, serving
	// listings from the node only.
	var recordStore anchor.RecordStore
	var grantStore grants.GrantStore
	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		log.WithError(err).Warn("Local mirror unavailable, continuing without it")
	} else {
		defer db.Close()
		recordStore = repository.NewRecordRepository(db.DB, log)
		grantStore = repository.NewGrantRepository(db.DB, log)
	}

	deriver, err := encryption.NewKeyDeriver(
		[]byte(cfg.Encryption.MasterKey),
		[]byte(cfg.Encryption.KDF.Salt),
		cfg.Encryption.KDF.Iterations,
	)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize key derivation")
	}

	ledgerClient := ledger.NewHTTPClient(&cfg.Ledger, log)

	monitor, err := status.NewMonitor(ledgerClient, cfg.Breaker, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize ledger monitor")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go monitor.Run(runCtx, time.Duration(cfg.Ledger.PollInterval)*time.Second)

	retryPolicy := ledger.PolicyFromConfig(cfg.Retry)

	anchorService := anchor.NewService(ledgerClient, monitor, deriver, retryPolicy, recordStore, log)
	verifier := integrity.NewVerifier(ledgerClient, monitor, log)

	prover := zkp.NewHTTPProver(&cfg.ZKP, log)
	zkpManager := zkp.NewManager(prover, ledgerClient, zkp.NewRegistry(), cfg.ZKP.CacheSize, log)

	grantRegistry := grants.NewRegistry(ledgerClient, grantStore, log)

	metrics := monitoring.NewMetricsCollector(serviceName)

	metricsPath := ""
	if cfg.Monitoring.Enabled {
		metricsPath = cfg.Monitoring.MetricsPath
	}

	handlers := server.NewHandlers(anchorService, verifier, zkpManager, grantRegistry, monitor, metrics, log)
	validator := server.NewTokenValidator(&cfg.JWT)
	srv := server.New(&cfg.Server, handlers, validator, metrics, metricsPath, log)

	go func() {
		if err := srv.Start(); err != nil {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down Health Record Ledger Service")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Failed to shutdown server gracefully")
	}

	log.Info("Health Record Ledger Service stopped")
}
