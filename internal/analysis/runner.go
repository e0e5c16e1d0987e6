// Package analysis drives a timeout-tree analysis run.
// It coordinates: input rows → optimizer → CSV output → result stores
package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"tt-analysis/internal/domain"
	"tt-analysis/internal/idhash"
	"tt-analysis/internal/ingestion"
	"tt-analysis/internal/observability"
	"tt-analysis/internal/optimizer"
	"tt-analysis/internal/reporting"
	"tt-analysis/internal/storage"
)

// NamedStore is a result store with the label used in logs and metrics.
type NamedStore struct {
	Name  string
	Store storage.ResultStore
}

// RowOutcome is reported for every scenario row as soon as it is processed.
// Exactly one of Result and Err is set.
type RowOutcome struct {
	RowIndex   int
	ScenarioID string
	Scenario   domain.ScenarioParameters
	Result     *domain.OptimizationResult
	Err        error
}

// RowError ties an error to the scenario row that caused it.
type RowError struct {
	RowIndex int // 0-based
	Err      error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("scenario row %d: %v", e.RowIndex+1, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Runner processes one input at a time. Rows are optimized sequentially
// and independently.
type Runner struct {
	optimizer *optimizer.Optimizer
	stores    []NamedStore
	output    io.Writer
	onRow     func(RowOutcome)
	keepGoing bool
	verbose   bool
	logger    *log.Logger
	now       func() time.Time
}

// Options for creating Runner.
type Options struct {
	// Required
	Optimizer *optimizer.Optimizer

	// Result stores; every solved row is written to each of them
	Stores []NamedStore

	// CSV output; nil skips file output
	Output io.Writer

	// Called after each row, in row order
	OnRow func(RowOutcome)

	// Options
	KeepGoing bool // Record failed rows instead of aborting
	Verbose   bool
	Logger    *log.Logger
	Now       func() time.Time // Injectable clock
}

// New creates a new Runner.
func New(opts Options) (*Runner, error) {
	if opts.Optimizer == nil {
		return nil, errors.New("analysis: optimizer is required")
	}

	r := &Runner{
		optimizer: opts.Optimizer,
		stores:    opts.Stores,
		output:    opts.Output,
		onRow:     opts.OnRow,
		keepGoing: opts.KeepGoing,
		verbose:   opts.Verbose,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if r.logger == nil {
		r.logger = log.New(os.Stderr, "[analysis] ", log.LstdFlags)
	}
	if r.now == nil {
		r.now = func() time.Time { return time.Now().UTC() }
	}
	return r, nil
}

// RunResult contains results from one run.
type RunResult struct {
	RunID      string
	Source     string
	Static     domain.StaticParameters
	Results    []domain.ScenarioResult
	Failures   []reporting.RowFailure
	Errors     []string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Report builds the run report.
func (r *RunResult) Report() *reporting.Report {
	return reporting.NewReport(r.RunID, r.Source, r.FinishedAt, r.Static, r.Results, r.Failures)
}

// Run analyzes every scenario of src.
// Phases:
//  1. Validate static parameters and write the output header
//  2. Optimize each scenario row and write its output row
//  3. Derive the run ID and persist solved rows
//  4. Write the output footer
//
// Without KeepGoing the first failing row aborts the run with a *RowError.
func (r *Runner) Run(ctx context.Context, source string, src ingestion.ScenarioSource) (*RunResult, error) {
	start := r.now()
	result, err := r.run(ctx, source, src, start)
	status := "success"
	if err != nil {
		status = "error"
	}
	finished := r.now()
	observability.RecordRun(runLabel(source), status, finished.Sub(start).Seconds(), finished.Unix())
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", source, err)
	}
	result.FinishedAt = finished
	return result, nil
}

func (r *Runner) run(ctx context.Context, source string, src ingestion.ScenarioSource, start time.Time) (*RunResult, error) {
	result := &RunResult{Source: source, StartedAt: start}

	// Phase 1: Static parameters
	static := src.Static()
	if err := static.Validate(); err != nil {
		return nil, fmt.Errorf("static parameters: %w", err)
	}
	result.Static = static
	r.log("Static parameters: Ac=%d Ro=%d AS=%d MS=%d",
		static.ActiveLifetime, static.RolloverPeriod, static.AverageTxSize, static.MaxTxSize)

	var out *reporting.CSVWriter
	if r.output != nil {
		out = reporting.NewCSVWriter(r.output)
		if err := out.WriteHeader(static); err != nil {
			return nil, err
		}
	}

	// Phase 2: Scenario rows
	var scenarioIDs []string
	for row := 0; ; row++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sc, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		outcome := RowOutcome{RowIndex: row, Scenario: sc}
		if err == nil {
			outcome.ScenarioID = idhash.ComputeScenarioID(static, sc)
			outcome.Result, err = r.optimizeRow(static, sc)
		}
		outcome.Err = err

		if r.onRow != nil {
			r.onRow(outcome)
		}

		if err != nil {
			rowErr := &RowError{RowIndex: row, Err: err}
			observability.RecordScenarioFailed(FailureKind(err))
			if !r.keepGoing {
				return nil, rowErr
			}
			r.logger.Printf("skipping %v", rowErr)
			result.Failures = append(result.Failures, reporting.RowFailure{
				RowIndex: row,
				Kind:     FailureKind(err),
				Message:  err.Error(),
			})
			result.Errors = append(result.Errors, rowErr.Error())
			continue
		}

		if out != nil {
			if err := out.WriteRow(sc, outcome.Result); err != nil {
				return nil, err
			}
		}

		scenarioIDs = append(scenarioIDs, outcome.ScenarioID)
		result.Results = append(result.Results, domain.ScenarioResult{
			ScenarioID: outcome.ScenarioID,
			RowIndex:   row,
			Static:     static,
			Scenario:   sc,
			Result:     *outcome.Result,
		})
		r.log("  Row %d: x=%.6f blocks=%d overhead=%.6g",
			row+1, outcome.Result.FractionTTLeaves, outcome.Result.SecurityDelayBlocks,
			outcome.Result.ExpectedOverheadFraction)
	}
	r.log("Solved %d rows (%d failed)", len(result.Results), len(result.Failures))

	// Phase 3: Persistence
	result.RunID = idhash.ComputeRunID(source, scenarioIDs)
	for i := range result.Results {
		result.Results[i].RunID = result.RunID
	}
	if err := r.persist(ctx, result); err != nil {
		return nil, err
	}

	// Phase 4: Footer
	if out != nil {
		if err := out.Close(); err != nil {
			return nil, err
		}
	}

	r.log("Run %s completed", result.RunID)
	return result, nil
}

func (r *Runner) optimizeRow(static domain.StaticParameters, sc domain.ScenarioParameters) (*domain.OptimizationResult, error) {
	start := time.Now()
	res, err := r.optimizer.Optimize(static, sc)
	if err != nil {
		return nil, err
	}
	observability.RecordScenarioSolved(time.Since(start).Seconds(), res.FractionTTLeaves, res.SecurityDelayBlocks)
	return res, nil
}

// persist writes all solved rows to each store. A run that was already
// stored is reported and skipped.
func (r *Runner) persist(ctx context.Context, result *RunResult) error {
	if len(result.Results) == 0 || len(r.stores) == 0 {
		return nil
	}

	batch := make([]*domain.ScenarioResult, len(result.Results))
	for i := range result.Results {
		batch[i] = &result.Results[i]
	}

	for _, s := range r.stores {
		start := time.Now()
		err := s.Store.InsertBulk(ctx, batch)
		observability.RecordDBQuery(s.Name, "insert_bulk", time.Since(start).Seconds(), ignoreDuplicate(err))

		switch {
		case errors.Is(err, storage.ErrDuplicateKey):
			r.logger.Printf("run %s already stored in %s, skipping", result.RunID, s.Name)
		case err != nil:
			return fmt.Errorf("persist to %s: %w", s.Name, err)
		default:
			observability.RecordRowsPersisted(s.Name, len(batch))
			r.log("  Stored %d rows in %s", len(batch), s.Name)
		}
	}

	return nil
}

// FailureKind classifies a row error as "precondition", "degenerate" or "error".
func FailureKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrPreconditionViolation):
		return "precondition"
	case errors.Is(err, domain.ErrDegenerateInput):
		return "degenerate"
	default:
		return "error"
	}
}

func ignoreDuplicate(err error) error {
	if errors.Is(err, storage.ErrDuplicateKey) {
		return nil
	}
	return err
}

// runLabel keeps metric label cardinality bounded.
func runLabel(source string) string {
	if source == "api" || source == "ws" {
		return source
	}
	return "file"
}

func (r *Runner) log(format string, args ...interface{}) {
	if r.verbose {
		r.logger.Printf(format, args...)
	}
}
