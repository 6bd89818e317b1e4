package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/bsm/redislock"

	"cashflow/internal/amqp"
	"cashflow/internal/cache"
	"cashflow/internal/cli"
	"cashflow/internal/services"
	"cashflow/internal/sheets"
	gsheet "cashflow/internal/sheets/google"
	"cashflow/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap("worker")
	logger.Info("Starting cashflow-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger.Logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// Keep the interface nil when the mirror is disabled.
	var mirror sheets.LedgerMirror
	if cfg.MirrorEnabled() {
		client, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		mirror = client
		logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets mirror disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	// Several workers may share one Redis; the back-fill lock lets only one
	// of them run each cycle.
	var locker services.Locker
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisReportCache(context.Background(), cfg.RedisURL, "", time.Minute)
		if err != nil {
			logger.Warn("Redis unavailable, back-fill runs without a lock", "error", err)
		} else {
			defer rc.Close()
			locker = redislock.New(rc.Client())
		}
	}

	syncWorker := worker.NewSyncWorker(repo, mirror, cfg.SyncBatchSize)
	processor := services.NewSyncProcessor(syncWorker, locker, services.SyncProcessorConfig{
		PollInterval: cfg.SyncInterval,
	})

	ctx, stop, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Error("Sync processor stop error", "error", err)
		}
	})

	if mirror != nil {
		logger.Info("Performing startup sync check...")
		if err := syncWorker.StartupSyncCheck(ctx); err != nil {
			logger.Error("Failed startup sync check", "error", err)
		}
		if err := processor.Start(ctx); err != nil {
			logger.Error("Failed to start sync processor", "error", err)
		}
	}

	go func() {
		if err := amqpClient.ConsumeTransactionEvents(ctx, syncWorker.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Event consumption failed", "error", err)
		}
		stop()
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
