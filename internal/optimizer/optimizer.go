// Package optimizer finds the fraction of block space TT leaves should occupy
// to minimize expected cost per leaf, and derives the security and efficiency
// metrics that follow from it.
//
// Feerates are modelled as Fe/(1-x)^Ex where x is the fraction of each block
// used by TT leaves. Expected cost per leaf is
//
//	e(x) = Va*sats*Co*AS/(blocksPerYear*blockSize*x) + Pr*AS*feerate(x)
//
// and is minimized by bisecting on the sign of e'(x), within the largest x for
// which the worst-case single-leaf fee stays within the casual user's funds.
package optimizer

import (
	"math"

	"tt-analysis/internal/domain"
)

// Optimizer is stateless apart from its constants; it is safe for concurrent use.
type Optimizer struct {
	cfg Config
}

// New creates an Optimizer. Returns an error if cfg is invalid.
func New(cfg Config) (*Optimizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Optimizer{cfg: cfg}, nil
}

// Config returns the constants in use.
func (o *Optimizer) Config() Config {
	return o.cfg
}

// CasualUserFunds returns the casual user's funds per leaf in sats. Each leaf's
// value is split equally between the casual user's immediate bitcoin, the casual
// user's Lightning balance and the dedicated user's Lightning balance.
func (o *Optimizer) CasualUserFunds(s domain.ScenarioParameters) float64 {
	return 2.0 * s.TotalValue * o.cfg.SatoshisPerBitcoin / (3.0 * float64(s.LeafCount))
}

// MaxFee returns the worst-case fee for putting a single leaf on-chain at fraction x.
func (o *Optimizer) MaxFee(st domain.StaticParameters, s domain.ScenarioParameters, x float64) float64 {
	return float64(st.MaxTxSize) * Feerate(s.BaseFeerate, s.FeerateExponent, x)
}

// FeasibleFraction returns the largest x in [0, 1] for which MaxFee does not
// exceed cuf, to bisection precision.
func (o *Optimizer) FeasibleFraction(st domain.StaticParameters, s domain.ScenarioParameters, cuf float64) float64 {
	return Bisect(0, 1, o.cfg.Iterations, func(x float64) bool {
		return o.MaxFee(st, s, x) > cuf
	})
}

// capitalTerm is the numerator of the capital-cost term of e(x), divided by the
// block-space constants.
func (o *Optimizer) capitalTerm(st domain.StaticParameters, s domain.ScenarioParameters) float64 {
	return s.TotalValue * o.cfg.SatoshisPerBitcoin * s.CapitalCostRate * float64(st.AverageTxSize) /
		(o.cfg.BlocksPerYear * o.cfg.BlockSize)
}

// Cost returns the expected cost per leaf e(x). x must be in (0, 1).
func (o *Optimizer) Cost(st domain.StaticParameters, s domain.ScenarioParameters, x float64) float64 {
	return o.capitalTerm(st, s)/x +
		s.OnchainProbability*float64(st.AverageTxSize)*Feerate(s.BaseFeerate, s.FeerateExponent, x)
}

// CostDerivative returns e'(x). x must be in (0, 1).
func (o *Optimizer) CostDerivative(st domain.StaticParameters, s domain.ScenarioParameters, x float64) float64 {
	return -o.capitalTerm(st, s)/(x*x) +
		s.OnchainProbability*float64(st.AverageTxSize)*FeerateDerivative(s.BaseFeerate, s.FeerateExponent, x)
}

// MinimizeCost returns the x in (0, upper] minimizing e(x).
// With no capital cost the fee term alone is minimized at the lower bound, so
// the search floor is raised to the smallest positive float64 to keep x > 0.
func (o *Optimizer) MinimizeCost(st domain.StaticParameters, s domain.ScenarioParameters, upper float64) float64 {
	low := 0.0
	if s.TotalValue*s.CapitalCostRate == 0 {
		low = math.SmallestNonzeroFloat64
	}
	return Bisect(low, upper, o.cfg.Iterations, func(x float64) bool {
		return o.CostDerivative(st, s, x) > 0
	})
}

// Optimize validates the parameters, solves for the cost-minimizing fraction
// and derives all metrics. Errors wrap domain.ErrPreconditionViolation or
// domain.ErrDegenerateInput.
func (o *Optimizer) Optimize(st domain.StaticParameters, s domain.ScenarioParameters) (*domain.OptimizationResult, error) {
	if err := st.Validate(); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	cuf := o.CasualUserFunds(s)
	if !(cuf > float64(st.MaxTxSize)*s.BaseFeerate) {
		return nil, domain.NewPreconditionError("cuf", cuf, "casual user's funds per leaf must exceed MS*Fe")
	}

	xFeasible := o.FeasibleFraction(st, s, cuf)
	x := o.MinimizeCost(st, s, xFeasible)
	if !(x > 0) || x >= 1 {
		return nil, domain.NewDegenerateError("x", x, "solved fraction must be in (0, 1)")
	}

	r := &domain.OptimizationResult{
		FractionTTLeaves: x,
		CasualUserFunds:  cuf,
		FeasibleFraction: xFeasible,
	}
	if err := o.derive(st, s, r); err != nil {
		return nil, err
	}
	return r, nil
}

// derive fills the metrics of r from r.FractionTTLeaves, in dependency order.
func (o *Optimizer) derive(st domain.StaticParameters, s domain.ScenarioParameters, r *domain.OptimizationResult) error {
	x := r.FractionTTLeaves
	cuf := r.CasualUserFunds
	feerate := Feerate(s.BaseFeerate, s.FeerateExponent, x)
	vaSats := s.TotalValue * o.cfg.SatoshisPerBitcoin

	r.OnchainFee = float64(st.MaxTxSize) * feerate
	r.OnchainFeeFraction = r.OnchainFee / cuf
	r.ExpectedOnchainFee = s.OnchainProbability * float64(st.AverageTxSize) * feerate

	// Partial blocks still take a whole block.
	blocks := math.Ceil(float64(s.LeafCount) * float64(st.AverageTxSize) / (o.cfg.BlockSize * x))
	if math.IsInf(blocks, 0) || math.IsNaN(blocks) || blocks >= math.MaxInt64 {
		return domain.NewDegenerateError("SecurityDelayBlocks", blocks, "does not fit in int64")
	}
	r.SecurityDelayBlocks = int64(blocks)
	r.SecurityDelayYears = float64(r.SecurityDelayBlocks) / o.cfg.BlocksPerYear

	r.CapitalCost = vaSats * s.CapitalCostRate * float64(r.SecurityDelayBlocks) /
		(o.cfg.BlocksPerYear * float64(s.LeafCount))

	lifetime := float64(st.ActiveLifetime + st.RolloverPeriod + r.SecurityDelayBlocks)
	if lifetime > 0 {
		r.CapitalEfficiency = (2.0 / 3.0) * float64(st.ActiveLifetime) / lifetime
	}

	r.ExpectedCost = r.CapitalCost + r.ExpectedOnchainFee
	r.ExpectedOverheadFraction = r.ExpectedCost / cuf
	return checkFinite(r)
}

// checkFinite rejects results carrying NaN or Inf from an over- or underflow.
func checkFinite(r *domain.OptimizationResult) error {
	metrics := []struct {
		field string
		v     float64
	}{
		{"SecurityDelayYears", r.SecurityDelayYears},
		{"CapitalCost", r.CapitalCost},
		{"CapitalEfficiency", r.CapitalEfficiency},
		{"OnchainFee", r.OnchainFee},
		{"OnchainFeeFraction", r.OnchainFeeFraction},
		{"ExpectedOnchainFee", r.ExpectedOnchainFee},
		{"ExpectedOverheadFraction", r.ExpectedOverheadFraction},
		{"ExpectedCost", r.ExpectedCost},
	}
	for _, m := range metrics {
		if math.IsNaN(m.v) || math.IsInf(m.v, 0) {
			return domain.NewDegenerateError(m.field, m.v, "must be finite")
		}
	}
	return nil
}
