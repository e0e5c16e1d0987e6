// Package verification re-optimizes stored runs and checks that every
// stored metric is reproduced.
package verification

import (
	"context"
	"errors"
	"fmt"
	"math"

	"tt-analysis/internal/domain"
	"tt-analysis/internal/idhash"
	"tt-analysis/internal/optimizer"
	"tt-analysis/internal/storage"
)

// FloatTolerance is the relative tolerance for float64 comparisons.
const FloatTolerance = 1e-9

const minAbsTolerance = 1e-300

// ErrRunNotFound is returned when a run ID has no stored rows.
var ErrRunNotFound = errors.New("run not found")

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string      // field name
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

// VerificationResult contains the result of verifying a single row.
type VerificationResult struct {
	RowIndex    int
	ScenarioID  string
	Match       bool              // true if all fields match
	Divergences []FieldDivergence // list of divergent fields
}

// VerificationReport contains results for a whole run.
type VerificationReport struct {
	RunID         string
	TotalRows     int
	MatchedRows   int
	DivergentRows int
	Results       []VerificationResult
}

// RunVerifier replays stored runs through the optimizer.
type RunVerifier struct {
	store     storage.ResultStore
	optimizer *optimizer.Optimizer
}

// NewRunVerifier creates a new RunVerifier.
func NewRunVerifier(store storage.ResultStore, opt *optimizer.Optimizer) *RunVerifier {
	return &RunVerifier{store: store, optimizer: opt}
}

// VerifyRun re-optimizes every stored row of runID and compares the metrics.
// A row whose replay fails is reported as divergent with an "Error" field.
func (v *RunVerifier) VerifyRun(ctx context.Context, runID string) (*VerificationReport, error) {
	rows, err := v.store.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	report := &VerificationReport{
		RunID:     runID,
		TotalRows: len(rows),
		Results:   make([]VerificationResult, 0, len(rows)),
	}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result := v.verifyRow(row)
		report.Results = append(report.Results, result)
		if result.Match {
			report.MatchedRows++
		} else {
			report.DivergentRows++
		}
	}

	return report, nil
}

func (v *RunVerifier) verifyRow(stored *domain.ScenarioResult) VerificationResult {
	result := VerificationResult{RowIndex: stored.RowIndex, ScenarioID: stored.ScenarioID}

	if id := idhash.ComputeScenarioID(stored.Static, stored.Scenario); id != stored.ScenarioID {
		result.Divergences = append(result.Divergences, FieldDivergence{
			Field:    "ScenarioID",
			Expected: stored.ScenarioID,
			Actual:   id,
		})
	}

	replayed, err := v.optimizer.Optimize(stored.Static, stored.Scenario)
	if err != nil {
		result.Divergences = append(result.Divergences, FieldDivergence{
			Field: "Error", Expected: nil, Actual: err.Error(),
		})
		return result
	}

	result.Divergences = append(result.Divergences, CompareResults(&stored.Result, replayed)...)
	result.Match = len(result.Divergences) == 0
	return result
}

// CompareResults compares the nine output metrics of two results.
// Diagnostics are not stored and are not compared.
func CompareResults(stored, replayed *domain.OptimizationResult) []FieldDivergence {
	var divergences []FieldDivergence

	if stored.SecurityDelayBlocks != replayed.SecurityDelayBlocks {
		divergences = append(divergences, FieldDivergence{
			Field:    "SecurityDelayBlocks",
			Expected: stored.SecurityDelayBlocks,
			Actual:   replayed.SecurityDelayBlocks,
		})
	}

	floats := []struct {
		field            string
		stored, replayed float64
	}{
		{"FractionTTLeaves", stored.FractionTTLeaves, replayed.FractionTTLeaves},
		{"SecurityDelayYears", stored.SecurityDelayYears, replayed.SecurityDelayYears},
		{"CapitalCost", stored.CapitalCost, replayed.CapitalCost},
		{"CapitalEfficiency", stored.CapitalEfficiency, replayed.CapitalEfficiency},
		{"OnchainFee", stored.OnchainFee, replayed.OnchainFee},
		{"OnchainFeeFraction", stored.OnchainFeeFraction, replayed.OnchainFeeFraction},
		{"ExpectedOnchainFee", stored.ExpectedOnchainFee, replayed.ExpectedOnchainFee},
		{"ExpectedOverheadFraction", stored.ExpectedOverheadFraction, replayed.ExpectedOverheadFraction},
	}
	for _, f := range floats {
		if !floatEquals(f.stored, f.replayed) {
			divergences = append(divergences, FieldDivergence{
				Field:    f.field,
				Expected: f.stored,
				Actual:   f.replayed,
			})
		}
	}

	return divergences
}

// floatEquals compares two float64 values within FloatTolerance relative to
// the larger magnitude. minAbsTolerance only absorbs differences between
// values that are both next to zero.
func floatEquals(a, b float64) bool {
	if a == b {
		return true
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	return math.Abs(a-b) <= math.Max(FloatTolerance*scale, minAbsTolerance)
}
