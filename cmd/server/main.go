// Package main serves the timeout-tree analysis over HTTP:
// - POST /analyze, GET /ws/analyze: run scenarios
// - GET /runs/{id}: stored runs as JSON, CSV or Markdown
// - /health, /status, /metrics
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tt-analysis/internal/config"
	"tt-analysis/internal/optimizer"
	"tt-analysis/internal/server"
	"tt-analysis/internal/storage/setup"
)

func main() {
	// Load .env file if exists
	config.LoadEnvFile(".env")

	// Parse flags (env vars as defaults)
	addr := flag.String("addr", envOr("HTTP_ADDR", ":8080"), "HTTP listen address")
	configPath := flag.String("config", "", "Optional YAML config file")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	keepGoing := flag.Bool("keep-going", false, "Default to recording failing rows instead of aborting")
	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			logger.Fatalf("Failed to load config: %v", err)
		}
	}
	cfg.ApplyOverrides(*postgresDSN, *clickhouseDSN)

	opt, err := optimizer.New(cfg.Optimizer())
	if err != nil {
		logger.Fatalf("Invalid optimizer constants: %v", err)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := setup.OpenStores(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	srv, err := server.New(server.Options{
		Optimizer: opt,
		Stores:    stores,
		KeepGoing: cfg.KeepGoing || *keepGoing,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatalf("Failed to create server: %v", err)
	}

	// Channel to signal completion
	done := make(chan struct{})

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err = srv.ListenAndServe(ctx, *addr)
	close(done)

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Printf("Server error: %v", err)
		cleanup()
		os.Exit(1)
	}

	logger.Println("Shutdown complete")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
