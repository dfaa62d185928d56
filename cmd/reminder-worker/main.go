package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"flowledger/internal/amqp"
	"flowledger/internal/config"
	"flowledger/internal/log"
	"flowledger/internal/services"
	"flowledger/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{Component: "reminder-worker", Level: log.LevelFromEnv()})
	log.SetDefault(logger)

	logger.Info("Starting reminder-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.PaymentQueue, cfg.ReminderQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err, "url", cfg.AMQPURL)
		os.Exit(1)
	}
	defer amqpClient.Close()

	processor := services.NewReminderProcessor(repo, amqpClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Reminder processor configured",
		"interval", cfg.ReminderInterval,
		"sqlite_db", cfg.SQLiteDBPath)

	ticker := time.NewTicker(cfg.ReminderInterval)
	defer ticker.Stop()

	// Run an initial pass on startup so restarts never delay reminders
	if count, err := processor.ProcessDueReminders(ctx, time.Now()); err != nil {
		logger.Error("Initial reminder processing failed", "error", err)
	} else {
		logger.Info("Initial reminder processing complete", "published", count)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				count, err := processor.ProcessDueReminders(ctx, now)
				if err != nil {
					logger.Error("Periodic reminder processing failed", "error", err)
				} else {
					logger.Info("Periodic reminder processing complete",
						"published", count,
						"next_check", now.Add(cfg.ReminderInterval).Format("15:04:05"))
				}
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	cancel()
	logger.Info("Reminder-worker shutdown complete")
}
