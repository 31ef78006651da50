package main

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"

	"gestao/internal/cli"
	applog "gestao/internal/log"
	"gestao/internal/notify"
	"gestao/internal/services"
)

const digestTimeout = 2 * time.Minute

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentReminder)

	logger.Info("Starting gestao-reminder")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.SMTPHost == "" {
		cli.Fatal(logger, "Reminder disabled", errors.New("SMTP_HOST is not set"))
	}

	store := cli.InitStore(context.Background(), logger, cfg)
	ledger := cli.InitLedger(logger, cfg, store, nil)
	defer ledger.Close()

	mailer := notify.NewMailer(notify.SMTPConfig{
		Host:       cfg.SMTPHost,
		Port:       cfg.SMTPPort,
		Username:   cfg.SMTPUsername,
		Password:   cfg.SMTPPassword,
		From:       cfg.SenderEmail,
		Recipients: cfg.ReminderRecipients,
	})

	send := func() {
		ctx, cancel := context.WithTimeout(context.Background(), digestTimeout)
		defer cancel()
		if err := sendDigest(ctx, ledger, mailer, cfg.ReminderLookaheadDays); err != nil {
			logger.Error("Reminder run failed", applog.FieldError, err)
		}
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.ReminderSchedule, send); err != nil {
		cli.Fatal(logger, "Invalid reminder schedule", err)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		<-c.Stop().Done()
	})

	c.Start()
	logger.Info("Reminder scheduled",
		"schedule", cfg.ReminderSchedule,
		"lookahead_days", cfg.ReminderLookaheadDays,
		"recipients", len(cfg.ReminderRecipients))

	cli.WaitForShutdown(ctx, done)
	logger.Info("Reminder stopped")
}

func sendDigest(ctx context.Context, ledger *services.LedgerService, mailer *notify.Mailer, lookahead int) error {
	d, err := ledger.Digest(ctx, lookahead)
	if err != nil {
		return err
	}
	return mailer.SendDigest(ctx, d)
}
