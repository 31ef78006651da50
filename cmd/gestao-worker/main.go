package main

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"gestao/internal/cli"
	applog "gestao/internal/log"
	gsheet "gestao/internal/sheets/google"
	"gestao/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)

	logger.Info("Starting gestao-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if !cfg.SheetsEnabled() {
		cli.Fatal(logger, "Worker disabled", errors.New("GOOGLE_SPREADSHEET_ID is not set"))
	}
	if cfg.DataBackend == "memory" {
		logger.Warn("Memory backend is private to this process; the mirror will not see API writes")
	}

	store := cli.InitStore(context.Background(), logger, cfg)
	ledger := cli.InitLedger(logger, cfg, store, nil)
	defer ledger.Close()

	sheetsClient, err := gsheet.New(context.Background(), cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize Google Sheets client", err)
	}
	logger.Info("Google Sheets client initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)

	mirror := worker.NewSheetsMirror(ledger, sheetsClient)
	amqpClient := cli.InitAMQP(logger, cfg)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("Failed to close AMQP client", applog.FieldError, err)
			}
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return mirror.Run(gctx, cfg.SyncInterval)
	})
	if amqpClient != nil {
		g.Go(func() error {
			return amqpClient.ConsumeLedgerEvents(gctx, mirror.HandleEvent)
		})
	} else {
		logger.Info("Skipping AMQP consumption, relying on periodic resync",
			"interval", cfg.SyncInterval)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped", applog.FieldError, err)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
