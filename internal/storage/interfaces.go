package storage

import (
	"context"

	"tt-analysis/internal/domain"
)

// ResultStore provides access to analysis_results storage.
// Rows are keyed by (run_id, row_index) and are append-only.
type ResultStore interface {
	// Insert adds a new result. Returns ErrDuplicateKey if (run_id, row_index) exists.
	Insert(ctx context.Context, r *domain.ScenarioResult) error

	// InsertBulk adds multiple results atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, results []*domain.ScenarioResult) error

	// GetByRunID retrieves all results of a run, ordered by row_index ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.ScenarioResult, error)

	// GetByScenarioID retrieves all results for a scenario across runs, ordered by run_id, row_index.
	GetByScenarioID(ctx context.Context, scenarioID string) ([]*domain.ScenarioResult, error)
}
