package verification

import (
	"context"
	"errors"
	"testing"

	"tt-analysis/internal/domain"
	"tt-analysis/internal/idhash"
	"tt-analysis/internal/optimizer"
	"tt-analysis/internal/storage/memory"
)

var testStatic = domain.StaticParameters{ActiveLifetime: 4320, RolloverPeriod: 1008, AverageTxSize: 150, MaxTxSize: 200}

var testScenario = domain.ScenarioParameters{
	BaseFeerate: 10, FeerateExponent: 2, OnchainProbability: 0.3,
	LeafCount: 1000, TotalValue: 10, CapitalCostRate: 0.05,
}

func newOptimizer(t *testing.T) *optimizer.Optimizer {
	t.Helper()
	opt, err := optimizer.New(optimizer.DefaultConfig())
	if err != nil {
		t.Fatalf("optimizer.New: %v", err)
	}
	return opt
}

func storedRow(t *testing.T, opt *optimizer.Optimizer, rowIndex int) *domain.ScenarioResult {
	t.Helper()
	res, err := opt.Optimize(testStatic, testScenario)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	return &domain.ScenarioResult{
		RunID:      "run1",
		ScenarioID: idhash.ComputeScenarioID(testStatic, testScenario),
		RowIndex:   rowIndex,
		Static:     testStatic,
		Scenario:   testScenario,
		Result:     *res,
	}
}

func TestCompareResults_ExactMatch(t *testing.T) {
	opt := newOptimizer(t)
	row := storedRow(t, opt, 0)
	replayed := row.Result

	if d := CompareResults(&row.Result, &replayed); len(d) != 0 {
		t.Errorf("expected no divergences, got %v", d)
	}
}

func TestCompareResults_WithinTolerance(t *testing.T) {
	stored := &domain.OptimizationResult{OnchainFee: 2025.174748342522, FractionTTLeaves: 0.0062}
	replayed := &domain.OptimizationResult{OnchainFee: 2025.174748342522 * (1 + 1e-12), FractionTTLeaves: 0.0062 + 1e-12}

	if d := CompareResults(stored, replayed); len(d) != 0 {
		t.Errorf("expected no divergences, got %v", d)
	}
}

func TestCompareResults_TinyFractionIsRelative(t *testing.T) {
	// Zero capital cost drives x down to ~1e-15; an absolute 1e-9 would hide this.
	stored := &domain.OptimizationResult{FractionTTLeaves: 1e-15}
	replayed := &domain.OptimizationResult{FractionTTLeaves: 1e-9}

	d := CompareResults(stored, replayed)
	if len(d) != 1 || d[0].Field != "FractionTTLeaves" {
		t.Fatalf("expected FractionTTLeaves divergence, got %v", d)
	}

	replayed.FractionTTLeaves = 1e-15 * (1 + 1e-12)
	if d := CompareResults(stored, replayed); len(d) != 0 {
		t.Errorf("expected no divergences, got %v", d)
	}
}

func TestFloatEquals(t *testing.T) {
	tests := []struct {
		a, b float64
		want bool
	}{
		{0, 0, true},
		{1, 1 + 1e-12, true},
		{1, 1 + 1e-6, false},
		{0.5, 0.5 + 1e-10, true},
		{0.5, 0.5 + 1e-8, false},
		{1e-15, 2e-15, false},
		{0, 1e-301, true},
		{-3, 3, false},
	}

	for _, tt := range tests {
		if got := floatEquals(tt.a, tt.b); got != tt.want {
			t.Errorf("floatEquals(%g, %g) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCompareResults_Divergences(t *testing.T) {
	stored := &domain.OptimizationResult{SecurityDelayBlocks: 7, CapitalCost: 6.65}
	replayed := &domain.OptimizationResult{SecurityDelayBlocks: 8, CapitalCost: 6.66}

	d := CompareResults(stored, replayed)
	if len(d) != 2 {
		t.Fatalf("expected 2 divergences, got %d: %v", len(d), d)
	}
	if d[0].Field != "SecurityDelayBlocks" || d[0].Expected != int64(7) || d[0].Actual != int64(8) {
		t.Errorf("unexpected first divergence: %+v", d[0])
	}
	if d[1].Field != "CapitalCost" {
		t.Errorf("expected CapitalCost divergence, got %s", d[1].Field)
	}
}

func TestVerifyRun_AllMatch(t *testing.T) {
	ctx := context.Background()
	opt := newOptimizer(t)
	store := memory.NewResultStore()

	if err := store.InsertBulk(ctx, []*domain.ScenarioResult{storedRow(t, opt, 0), storedRow(t, opt, 1)}); err != nil {
		t.Fatalf("InsertBulk: %v", err)
	}

	report, err := NewRunVerifier(store, opt).VerifyRun(ctx, "run1")
	if err != nil {
		t.Fatalf("VerifyRun: %v", err)
	}

	if report.TotalRows != 2 || report.MatchedRows != 2 || report.DivergentRows != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestVerifyRun_DetectsTampering(t *testing.T) {
	ctx := context.Background()
	opt := newOptimizer(t)
	store := memory.NewResultStore()

	good := storedRow(t, opt, 0)
	tampered := storedRow(t, opt, 1)
	tampered.Result.ExpectedOverheadFraction *= 2
	badID := storedRow(t, opt, 2)
	badID.ScenarioID = "not-the-hash"

	if err := store.InsertBulk(ctx, []*domain.ScenarioResult{good, tampered, badID}); err != nil {
		t.Fatalf("InsertBulk: %v", err)
	}

	report, err := NewRunVerifier(store, opt).VerifyRun(ctx, "run1")
	if err != nil {
		t.Fatalf("VerifyRun: %v", err)
	}

	if report.MatchedRows != 1 || report.DivergentRows != 2 {
		t.Fatalf("unexpected counts: %+v", report)
	}
	if report.Results[1].Divergences[0].Field != "ExpectedOverheadFraction" {
		t.Errorf("expected ExpectedOverheadFraction divergence, got %+v", report.Results[1].Divergences)
	}
	if report.Results[2].Divergences[0].Field != "ScenarioID" {
		t.Errorf("expected ScenarioID divergence, got %+v", report.Results[2].Divergences)
	}
}

func TestVerifyRun_ReplayError(t *testing.T) {
	ctx := context.Background()
	opt := newOptimizer(t)
	store := memory.NewResultStore()

	row := storedRow(t, opt, 0)
	row.Scenario.LeafCount = 0
	row.ScenarioID = idhash.ComputeScenarioID(row.Static, row.Scenario)
	if err := store.Insert(ctx, row); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	report, err := NewRunVerifier(store, opt).VerifyRun(ctx, "run1")
	if err != nil {
		t.Fatalf("VerifyRun: %v", err)
	}
	if report.DivergentRows != 1 || report.Results[0].Divergences[0].Field != "Error" {
		t.Errorf("expected replay error divergence, got %+v", report.Results[0])
	}
}

func TestVerifyRun_NotFound(t *testing.T) {
	_, err := NewRunVerifier(memory.NewResultStore(), newOptimizer(t)).VerifyRun(context.Background(), "missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}
