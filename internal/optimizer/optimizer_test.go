package optimizer

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tt-analysis/internal/domain"
)

func exampleStatic() domain.StaticParameters {
	return domain.StaticParameters{
		ActiveLifetime: 4320,
		RolloverPeriod: 1008,
		AverageTxSize:  150,
		MaxTxSize:      200,
	}
}

func exampleScenario() domain.ScenarioParameters {
	return domain.ScenarioParameters{
		BaseFeerate:        10,
		FeerateExponent:    2.0,
		OnchainProbability: 0.3,
		LeafCount:          1000,
		TotalValue:         10,
		CapitalCostRate:    0.05,
	}
}

func newTestOptimizer(t *testing.T) *Optimizer {
	t.Helper()
	o, err := New(DefaultConfig())
	require.NoError(t, err)
	return o
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 4_000_000.0, cfg.BlockSize)
	assert.Equal(t, 52596.0, cfg.BlocksPerYear)
	assert.Equal(t, 100_000_000.0, cfg.SatoshisPerBitcoin)
	assert.Equal(t, 50, cfg.Iterations)
	assert.NoError(t, cfg.Validate())
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero block size", func(c *Config) { c.BlockSize = 0 }},
		{"negative blocks per year", func(c *Config) { c.BlocksPerYear = -1 }},
		{"zero satoshis", func(c *Config) { c.SatoshisPerBitcoin = 0 }},
		{"zero iterations", func(c *Config) { c.Iterations = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := New(cfg)
			assert.Error(t, err)
		})
	}
}

func TestOptimize_EndToEndExample(t *testing.T) {
	o := newTestOptimizer(t)

	r, err := o.Optimize(exampleStatic(), exampleScenario())
	require.NoError(t, err)

	assert.InDelta(t, 666666.6666666666, r.CasualUserFunds, 1e-6)
	assert.Greater(t, r.FractionTTLeaves, 0.0)
	assert.Less(t, r.FractionTTLeaves, 1.0)
	assert.InDelta(t, 0.006234887792657299, r.FractionTTLeaves, 1e-12)
	assert.Equal(t, int64(7), r.SecurityDelayBlocks)
	assert.InDelta(t, 7/52596.0, r.SecurityDelayYears, 1e-15)
	assert.InDelta(t, 6.65449844094608, r.CapitalCost, 1e-9)
	assert.InDelta(t, 0.5398313027179007, r.CapitalEfficiency, 1e-12)
	assert.InDelta(t, 2025.174748342522, r.OnchainFee, 1e-6)
	assert.InDelta(t, 0.0030377621225137832, r.OnchainFeeFraction, 1e-12)
	assert.InDelta(t, 455.6643183770674, r.ExpectedOnchainFee, 1e-6)
	assert.InDelta(t, 0.0006934782252270203, r.ExpectedOverheadFraction, 1e-12)
	assert.Less(t, r.ExpectedOverheadFraction, 1.0)
	assert.InDelta(t, r.CapitalCost+r.ExpectedOnchainFee, r.ExpectedCost, 1e-9)
}

func TestOptimize_SecondExample(t *testing.T) {
	o := newTestOptimizer(t)

	s := domain.ScenarioParameters{
		BaseFeerate:        1,
		FeerateExponent:    1.5,
		OnchainProbability: 0.1,
		LeafCount:          100000,
		TotalValue:         1000,
		CapitalCostRate:    0.02,
	}

	r, err := o.Optimize(exampleStatic(), s)
	require.NoError(t, err)

	assert.InDelta(t, 0.192657282281689, r.FractionTTLeaves, 1e-10)
	assert.Equal(t, int64(20), r.SecurityDelayBlocks)
	assert.InDelta(t, 7.605141075366948, r.CapitalCost, 1e-9)
	assert.InDelta(t, 0.5385190725504861, r.CapitalEfficiency, 1e-12)
	assert.InDelta(t, 4.242441377225046e-05, r.ExpectedOverheadFraction, 1e-12)
}

func TestFeasibleFraction_MatchesClosedForm(t *testing.T) {
	o := newTestOptimizer(t)

	tests := []struct {
		name string
		fe   float64
		ex   float64
	}{
		{"example", 10, 2},
		{"linear", 5, 1},
		{"steep", 20, 4},
		{"gentle", 1, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := exampleStatic()
			s := exampleScenario()
			s.BaseFeerate = tt.fe
			s.FeerateExponent = tt.ex

			cuf := o.CasualUserFunds(s)
			got := o.FeasibleFraction(st, s, cuf)

			// MS*Fe/(1-x)^Ex = cuf
			want := 1 - math.Pow(float64(st.MaxTxSize)*tt.fe/cuf, 1/tt.ex)
			assert.InDelta(t, want, got, 1e-12)

			// Slightly below the bound is affordable, slightly above is not.
			assert.LessOrEqual(t, o.MaxFee(st, s, got-1e-10), cuf)
			assert.Greater(t, o.MaxFee(st, s, got+1e-10), cuf)
		})
	}
}

func TestMinimizeCost_BeatsGridSearch(t *testing.T) {
	o := newTestOptimizer(t)

	scenarios := []domain.ScenarioParameters{
		exampleScenario(),
		{BaseFeerate: 1, FeerateExponent: 1.5, OnchainProbability: 0.1, LeafCount: 100000, TotalValue: 1000, CapitalCostRate: 0.02},
		{BaseFeerate: 25, FeerateExponent: 3, OnchainProbability: 0.9, LeafCount: 50, TotalValue: 2, CapitalCostRate: 0.1},
		{BaseFeerate: 2, FeerateExponent: 1, OnchainProbability: 0.01, LeafCount: 1000000, TotalValue: 5000, CapitalCostRate: 0.5},
	}

	st := exampleStatic()
	for i, s := range scenarios {
		cuf := o.CasualUserFunds(s)
		xf := o.FeasibleFraction(st, s, cuf)
		xOpt := o.MinimizeCost(st, s, xf)
		best := o.Cost(st, s, xOpt)

		const steps = 20000
		for j := 1; j < steps; j++ {
			x := xf * float64(j) / steps
			c := o.Cost(st, s, x)
			if best > c*(1+1e-9) {
				t.Fatalf("scenario %d: cost(xOpt=%v)=%v exceeds cost(%v)=%v", i, xOpt, best, x, c)
			}
		}
	}
}

func TestOptimize_Idempotent(t *testing.T) {
	o := newTestOptimizer(t)

	first, err := o.Optimize(exampleStatic(), exampleScenario())
	require.NoError(t, err)
	second, err := o.Optimize(exampleStatic(), exampleScenario())
	require.NoError(t, err)

	assert.Equal(t, *first, *second)
	assert.Equal(t, math.Float64bits(first.FractionTTLeaves), math.Float64bits(second.FractionTTLeaves))
}

func TestOptimize_ZeroCapitalCost(t *testing.T) {
	o := newTestOptimizer(t)

	s := exampleScenario()
	s.CapitalCostRate = 0

	r, err := o.Optimize(exampleStatic(), s)
	require.NoError(t, err)

	assert.Greater(t, r.FractionTTLeaves, 0.0)
	assert.Less(t, r.FractionTTLeaves, 1e-12)
	assert.Equal(t, 0.0, r.CapitalCost)
	assert.Greater(t, r.SecurityDelayBlocks, int64(0))
}

func TestOptimize_ZeroOnchainProbability(t *testing.T) {
	// Without fee cost the capital term alone pushes x to the feasibility bound.
	o := newTestOptimizer(t)

	s := exampleScenario()
	s.OnchainProbability = 0

	r, err := o.Optimize(exampleStatic(), s)
	require.NoError(t, err)

	assert.InDelta(t, r.FeasibleFraction, r.FractionTTLeaves, 1e-12)
	assert.Equal(t, 0.0, r.ExpectedOnchainFee)
}

func TestOptimize_ZeroBaseFeerateSteepExponent(t *testing.T) {
	o := newTestOptimizer(t)

	for _, ex := range []float64{2, 25} {
		s := exampleScenario()
		s.BaseFeerate = 0
		s.FeerateExponent = ex

		r, err := o.Optimize(exampleStatic(), s)
		require.NoError(t, err, "Ex=%v", ex)

		assert.Less(t, r.FractionTTLeaves, 1.0)
		assert.Equal(t, 0.0, r.OnchainFee)
		assert.Equal(t, 0.0, r.ExpectedOnchainFee)
		assert.False(t, math.IsNaN(r.ExpectedOverheadFraction), "Ex=%v", ex)
		assert.Equal(t, r.CapitalCost, r.ExpectedCost)
	}
}

func TestCheckFinite(t *testing.T) {
	r := &domain.OptimizationResult{FractionTTLeaves: 0.5, OnchainFee: math.NaN()}
	err := checkFinite(r)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDegenerateInput))
	assert.Contains(t, err.Error(), "OnchainFee")

	r.OnchainFee = 1
	assert.NoError(t, checkFinite(r))

	r.ExpectedCost = math.Inf(1)
	assert.True(t, errors.Is(checkFinite(r), domain.ErrDegenerateInput))
}

func TestOptimize_CustomIterations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Iterations = 20
	o, err := New(cfg)
	require.NoError(t, err)

	precise := newTestOptimizer(t)

	coarse, err := o.Optimize(exampleStatic(), exampleScenario())
	require.NoError(t, err)
	fine, err := precise.Optimize(exampleStatic(), exampleScenario())
	require.NoError(t, err)

	assert.InDelta(t, fine.FractionTTLeaves, coarse.FractionTTLeaves, 1e-5)
}

func TestOptimize_Errors(t *testing.T) {
	o := newTestOptimizer(t)

	tests := []struct {
		name     string
		static   func(*domain.StaticParameters)
		scenario func(*domain.ScenarioParameters)
		wantKind error
	}{
		{
			name:     "negative active lifetime",
			static:   func(p *domain.StaticParameters) { p.ActiveLifetime = -1 },
			wantKind: domain.ErrPreconditionViolation,
		},
		{
			name:     "max size below average size",
			static:   func(p *domain.StaticParameters) { p.MaxTxSize = 100 },
			wantKind: domain.ErrPreconditionViolation,
		},
		{
			name:     "probability above one",
			scenario: func(p *domain.ScenarioParameters) { p.OnchainProbability = 1.5 },
			wantKind: domain.ErrPreconditionViolation,
		},
		{
			name:     "negative feerate",
			scenario: func(p *domain.ScenarioParameters) { p.BaseFeerate = -1 },
			wantKind: domain.ErrPreconditionViolation,
		},
		{
			name:     "capital cost above one",
			scenario: func(p *domain.ScenarioParameters) { p.CapitalCostRate = 1.1 },
			wantKind: domain.ErrPreconditionViolation,
		},
		{
			name:     "worst-case fee exceeds casual user funds",
			scenario: func(p *domain.ScenarioParameters) { p.BaseFeerate = 5000 },
			wantKind: domain.ErrPreconditionViolation,
		},
		{
			name:     "zero leaves",
			scenario: func(p *domain.ScenarioParameters) { p.LeafCount = 0 },
			wantKind: domain.ErrDegenerateInput,
		},
		{
			name:     "zero value",
			scenario: func(p *domain.ScenarioParameters) { p.TotalValue = 0 },
			wantKind: domain.ErrDegenerateInput,
		},
		{
			name:     "zero exponent",
			scenario: func(p *domain.ScenarioParameters) { p.FeerateExponent = 0 },
			wantKind: domain.ErrDegenerateInput,
		},
		{
			name:     "NaN feerate",
			scenario: func(p *domain.ScenarioParameters) { p.BaseFeerate = math.NaN() },
			wantKind: domain.ErrDegenerateInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := exampleStatic()
			s := exampleScenario()
			if tt.static != nil {
				tt.static(&st)
			}
			if tt.scenario != nil {
				tt.scenario(&s)
			}

			r, err := o.Optimize(st, s)
			require.Error(t, err)
			assert.Nil(t, r)
			assert.True(t, errors.Is(err, tt.wantKind), "got %v, want kind %v", err, tt.wantKind)

			var pe *domain.ParamError
			assert.True(t, errors.As(err, &pe))
		})
	}
}
