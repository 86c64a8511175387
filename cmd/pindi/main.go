package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pindi/internal/amqp"
	"pindi/internal/auth"
	"pindi/internal/config"
	apphttp "pindi/internal/http"
	"pindi/internal/log"
	"pindi/internal/remote"
	"pindi/internal/remote/script"
	"pindi/internal/services"
	"pindi/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	store, err := storage.NewStore(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize local store", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	// Remote ledger is optional; without it the app runs purely local.
	var ledger remote.Ledger
	if client := script.New(cfg.ScriptURL, cfg.RemoteTimeout); client.Configured() {
		ledger = client
		logger.Info("Remote ledger configured")
	} else {
		logger.Info("Remote ledger disabled - no SCRIPT_URL provided")
	}

	// AMQP is optional; without it remote pushes happen inline.
	var queue *amqp.Client
	if cfg.AMQPURL != "" {
		queue, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer queue.Close()
		logger.Info("AMQP sync queue configured", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - remote pushes happen inline")
	}

	entries := services.NewEntryService(store, ledger, queue, cfg.PIN)

	// Best-effort startup refresh. An unreachable remote is not fatal,
	// the local cache keeps serving.
	if ledger != nil {
		startupCtx, startupCancel := context.WithTimeout(context.Background(), cfg.RemoteTimeout+5*time.Second)
		if entries.Refresh(startupCtx) {
			logger.Info("Startup refresh completed")
		} else {
			logger.Warn("Startup refresh skipped, remote unavailable")
		}
		startupCancel()
	}

	gate := auth.NewGate(cfg.PIN, cfg.SessionTTL)

	srv := apphttp.NewServer(":"+cfg.Port, entries, gate, store)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting pindi server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
