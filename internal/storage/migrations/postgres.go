package migrations

import (
	"context"

	"tt-analysis/internal/storage/postgres"
)

// RunPostgresMigrations applies the embedded analysis_results schema.
// Postgres accepts multi-statement payloads, so each file is sent whole.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) ([]string, error) {
	migrations, err := Load(PostgresFS, "postgres")
	if err != nil {
		return nil, err
	}
	return apply(ctx, migrations, func(ctx context.Context, sql string) error {
		_, err := pool.Exec(ctx, sql)
		return err
	})
}
