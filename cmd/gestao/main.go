package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"gestao/internal/auth"
	"gestao/internal/cli"
	apphttp "gestao/internal/http"
	applog "gestao/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)

	cfg := cli.LoadAndValidateConfig(logger)

	store := cli.InitStore(context.Background(), logger, cfg)
	amqpClient := cli.InitAMQP(logger, cfg)
	ledger := cli.InitLedger(logger, cfg, store, amqpClient)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledger:             ledger,
		Auth:               auth.NewService(store, cfg.JWTSecret, cfg.TokenTTL),
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		SecureCookies:      cfg.SecureCookies,
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("Failed to close AMQP client", applog.FieldError, err)
			}
		}
		if err := ledger.Close(); err != nil {
			logger.Error("Failed to close storage", applog.FieldError, err)
		}
	})

	logger.Info("Starting gestao server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events", amqpClient != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cli.Fatal(logger, "Server error", err)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
