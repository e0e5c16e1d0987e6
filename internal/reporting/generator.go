package reporting

import (
	"context"
	"fmt"
	"time"

	"tt-analysis/internal/domain"
	"tt-analysis/internal/storage"
)

// Generator rebuilds reports from stored results.
type Generator struct {
	resultStore storage.ResultStore
	now         func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(resultStore storage.ResultStore) *Generator {
	return &Generator{
		resultStore: resultStore,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate loads every stored row of runID and builds its report.
// Returns storage.ErrNotFound if the run has no rows.
func (g *Generator) Generate(ctx context.Context, runID, source string) (*Report, error) {
	stored, err := g.resultStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	if len(stored) == 0 {
		return nil, fmt.Errorf("run %s: %w", runID, storage.ErrNotFound)
	}

	rows := make([]domain.ScenarioResult, len(stored))
	for i, r := range stored {
		rows[i] = *r
	}

	return NewReport(runID, source, g.now(), rows[0].Static, rows, nil), nil
}

// NewReport assembles a report and computes its summary.
func NewReport(runID, source string, generatedAt time.Time, static domain.StaticParameters,
	rows []domain.ScenarioResult, failures []RowFailure) *Report {
	return &Report{
		RunID:       runID,
		Source:      source,
		GeneratedAt: generatedAt,
		Static:      static,
		Rows:        rows,
		Failures:    failures,
		Summary:     Summarize(rows, failures),
	}
}
