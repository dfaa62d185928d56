package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"flowledger/internal/amqp"
	"flowledger/internal/config"
	"flowledger/internal/ledger"
	lgoogle "flowledger/internal/ledger/google"
	lmemory "flowledger/internal/ledger/memory"
	"flowledger/internal/log"
	"flowledger/internal/storage"
	"flowledger/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{Component: "ledger-worker", Level: log.LevelFromEnv()})
	log.SetDefault(logger)

	logger.Info("Starting ledger-worker")

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var appender ledger.PaymentAppender
	switch cfg.LedgerBackend {
	case "sheets":
		appender, err = lgoogle.New(ctx, cfg.SheetsSpreadsheetID, cfg.SheetsLedgerSheet)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets ledger", "error", err)
			os.Exit(1)
		}
		logger.Info("Initialized Google Sheets ledger backend",
			"spreadsheet_id", cfg.SheetsSpreadsheetID,
			"sheet", cfg.SheetsLedgerSheet)
	default:
		appender = lmemory.New()
		logger.Info("Initialized memory ledger backend")
	}

	ledgerWorker := worker.NewLedgerWorker(repo, appender)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.ConsumePayments(gctx, func(msg *amqp.PaymentRecordedMessage) error {
			return ledgerWorker.HandlePaymentMessage(gctx, msg)
		})
	})

	g.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
			return nil
		case <-gctx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Ledger-worker stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("Ledger-worker shutdown complete")
}
