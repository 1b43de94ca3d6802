package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"boostledger/internal/config"
	"boostledger/internal/db"
	"boostledger/internal/handlers"
	"boostledger/internal/jobs"
	"boostledger/internal/logging"
	"boostledger/internal/metrics"
	"boostledger/internal/money"
	"boostledger/internal/services"
	"boostledger/internal/storage"
	"boostledger/internal/store"
	"boostledger/internal/websocket"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect database", zap.Error(err))
	}
	defer database.Close()

	entries := store.NewLedgerStore(database)
	referralRecords := store.NewReferralStore(database)
	admins := store.NewAdminStore(database)
	audit := store.NewAuditStore(database)
	stores := services.Stores{
		Accounts:          store.NewAccountStore(database),
		Entries:           entries,
		Orders:            store.NewOrderStore(database),
		Boosts:            store.NewBoostStore(database),
		Stats:             store.NewStatEntryStore(database),
		Referrals:         referralRecords,
		WithdrawalConfigs: store.NewWithdrawalConfigStore(database),
		Admins:            admins,
		Audit:             audit,
	}
	hub := websocket.NewHub()
	m := metrics.New()
	deps := services.Deps{
		TxRunner: db.NewTxRunner(database, cfg.TxMaxAttempts),
		Stores:   stores,
		Hub:      hub,
		Logger:   logger,
		Metrics:  m,
	}

	referrals := services.NewReferralService(deps, cfg.ReferralRate)
	ledger := services.NewLedgerService(deps, referrals, money.FromDecimal(cfg.MinWithdrawal))
	catalog := services.NewCatalogService(deps)
	boosts := services.NewBoostService(deps, ledger, catalog)

	proofs, uploads, err := proofStorage(cfg)
	if err != nil {
		logger.Fatal("failed to configure proof storage", zap.Error(err))
	}

	reconciler := jobs.NewReconciler(referralRecords, entries, m, logger.Named("reconcile"))
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		logger.Fatal("failed to create scheduler", zap.Error(err))
	}
	if cfg.ReconcileInterval > 0 {
		if _, err := reconciler.Schedule(scheduler, cfg.ReconcileInterval); err != nil {
			logger.Fatal("failed to schedule reconciliation", zap.Error(err))
		}
	}
	scheduler.Start()

	handler := handlers.New(cfg, handlers.Services{
		Accounts:          services.NewAccountService(deps, cfg.JWTSecret, cfg.TokenTTL),
		Ledger:            ledger,
		Referrals:         referrals,
		Boosts:            boosts,
		Catalog:           catalog,
		WithdrawalConfigs: services.NewWithdrawalConfigService(deps),
		Admins:            admins,
		Audit:             audit,
		Proofs:            proofs,
		Reconciler:        reconciler,
	}, hub, logger.Named("http"), m, uploads)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("boost ledger API listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := scheduler.Shutdown(); err != nil {
		logger.Warn("scheduler shutdown", zap.Error(err))
	}
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}

// proofStorage picks the upload backend. Disk storage also returns the file
// server that exposes what it wrote.
func proofStorage(cfg config.Config) (storage.ProofStore, http.Handler, error) {
	if cfg.ProofStorage == "s3" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s3Store, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			PublicBaseURL:   cfg.PublicBaseURL,
		})
		if err != nil {
			return nil, nil, err
		}
		return s3Store, nil, nil
	}
	disk := storage.NewDiskStore(cfg.UploadDir, cfg.PublicBaseURL)
	return disk, http.FileServer(http.Dir(disk.Root())), nil
}
