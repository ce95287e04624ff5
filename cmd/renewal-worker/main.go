package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"subtracker/internal/amqp"
	"subtracker/internal/cli"
	applog "subtracker/internal/log"
	"subtracker/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentRenewal)

	logger.Info("Starting renewal-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	sqliteRepo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer sqliteRepo.Close()

	// AMQP carries the renewal reminder events; without it renewals still
	// advance, reminders are just skipped.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without reminders", "error", err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
			logger.Info("AMQP client initialized - reminders will be published")
		}
	} else {
		logger.Info("AMQP disabled - renewal reminders will not be published")
	}

	processor := services.NewRenewalProcessor(sqliteRepo, amqpClient)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Renewal processor configured",
		"interval", cfg.RenewalInterval,
		"reminder_window", cfg.ReminderWindow,
		"sqlite_db", cfg.SQLiteDBPath)

	ticker := time.NewTicker(cfg.RenewalInterval)
	defer ticker.Stop()

	runPass := func(now time.Time) {
		count, err := processor.ProcessDueRenewals(ctx, now)
		if err != nil {
			logger.Error("Renewal processing failed", "error", err)
		} else {
			logger.Info("Renewal processing complete", "renewals_advanced", count)
		}

		published, err := processor.PublishUpcomingReminders(ctx, now, cfg.ReminderWindow)
		if err != nil {
			logger.Error("Reminder publishing failed", "error", err)
		} else if published > 0 {
			logger.Info("Renewal reminders published", "count", published)
		}
	}

	// Run initial processing on startup
	logger.Info("Running initial renewal processing...")
	runPass(time.Now())

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				logger.Info("Processing due renewals...")
				runPass(now)
			}
		}
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down renewal-worker...")
	cancel()
	logger.Info("Renewal-worker shutdown complete")
}
