package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"cashflow/internal/backend"
	"cashflow/internal/cli"
	apphttp "cashflow/internal/http"
)

func main() {
	cfg, logger := cli.Bootstrap("server")

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}

	result, err := backend.NewFactory(logger.Logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", backendCfg.Type)
		os.Exit(1)
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Transactions:       result.Transactions,
		Reports:            result.ReportQuery,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	ctx, _, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting cashflow server",
		"port", cfg.Port,
		"backend", backendCfg.Type,
		"report_cache", cfg.ReportCache,
		"events", result.Events != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
