// Package setup opens the result stores selected by configuration.
package setup

import (
	"context"
	"fmt"
	"log"
	"strings"

	"tt-analysis/internal/analysis"
	"tt-analysis/internal/config"
	chstore "tt-analysis/internal/storage/clickhouse"
	"tt-analysis/internal/storage/memory"
	"tt-analysis/internal/storage/migrations"
	pgstore "tt-analysis/internal/storage/postgres"
)

// Store names used in logs and metrics.
const (
	StoreMemory     = "memory"
	StorePostgres   = "postgres"
	StoreClickhouse = "clickhouse"
)

// OpenStores connects to every configured database and applies its migrations.
// With no DSN configured it returns a single in-memory store.
// The returned cleanup closes all connections.
func OpenStores(ctx context.Context, cfg config.Storage, logger *log.Logger) ([]analysis.NamedStore, func(), error) {
	if cfg.PostgresDSN == "" && cfg.ClickhouseDSN == "" {
		logger.Println("No database configured, keeping results in memory")
		return []analysis.NamedStore{{Name: StoreMemory, Store: memory.NewResultStore()}}, func() {}, nil
	}

	var (
		stores  []analysis.NamedStore
		closers []func()
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		closers = append(closers, pool.Close)

		applied, err := migrations.RunPostgresMigrations(ctx, pool)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		logger.Printf("Postgres migrations applied: %s", strings.Join(applied, ", "))
		stores = append(stores, analysis.NamedStore{Name: StorePostgres, Store: pgstore.NewResultStore(pool)})
	}

	if cfg.ClickhouseDSN != "" {
		conn, applied, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		closers = append(closers, func() { conn.Close() })
		logger.Printf("ClickHouse migrations applied: %s", strings.Join(applied, ", "))
		stores = append(stores, analysis.NamedStore{Name: StoreClickhouse, Store: chstore.NewResultStore(conn)})
	}

	return stores, cleanup, nil
}
