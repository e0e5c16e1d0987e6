package domain

import "math"

// StaticParameters holds the structural TT parameters shared by every scenario in a run.
// From row 2 of the input file.
type StaticParameters struct {
	ActiveLifetime int64 // Ac: blocks a TT instance stays active
	RolloverPeriod int64 // Ro: blocks of overlap before expiry
	AverageTxSize  int64 // AS: vbytes per leaf when all leaves go on-chain together
	MaxTxSize      int64 // MS: vbytes per leaf when a single leaf goes on-chain alone
}

// StaticHeaders are the expected column names for static parameters.
var StaticHeaders = []string{"Ac", "Ro", "AS", "MS"}

// Values returns the parameters in StaticHeaders order.
func (p StaticParameters) Values() []int64 {
	return []int64{p.ActiveLifetime, p.RolloverPeriod, p.AverageTxSize, p.MaxTxSize}
}

// Validate checks the non-negativity and size ordering constraints.
func (p StaticParameters) Validate() error {
	if p.ActiveLifetime < 0 {
		return precondition("Ac", float64(p.ActiveLifetime), "must be >= 0")
	}
	if p.RolloverPeriod < 0 {
		return precondition("Ro", float64(p.RolloverPeriod), "must be >= 0")
	}
	if p.AverageTxSize < 0 {
		return precondition("AS", float64(p.AverageTxSize), "must be >= 0")
	}
	if p.MaxTxSize < p.AverageTxSize {
		return precondition("MS", float64(p.MaxTxSize), "must be >= AS")
	}
	return nil
}

// ScenarioParameters holds one row of scenario parameters.
// From rows 4+ of the input file.
type ScenarioParameters struct {
	BaseFeerate        float64 // Fe: sats/vbyte with no TT leaves in blocks
	FeerateExponent    float64 // Ex: convexity of feerate growth
	OnchainProbability float64 // Pr: probability a leaf settles on-chain
	LeafCount          int64   // Le: leaves across all TTs
	TotalValue         float64 // Va: BTC locked across all leaves
	CapitalCostRate    float64 // Co: funder's cost of capital, fraction/year
}

// ScenarioHeaders are the expected column names for scenario parameters.
var ScenarioHeaders = []string{"Fe", "Ex", "Pr", "Le", "Va", "Co"}

// Validate checks the declared ranges. Degenerate values (zero leaves, zero value,
// non-positive exponent, non-finite numbers) are reported as ErrDegenerateInput so
// that callers never reach a division by zero.
func (p ScenarioParameters) Validate() error {
	finite := []struct {
		field string
		v     float64
	}{
		{"Fe", p.BaseFeerate},
		{"Ex", p.FeerateExponent},
		{"Pr", p.OnchainProbability},
		{"Va", p.TotalValue},
		{"Co", p.CapitalCostRate},
	}
	for _, f := range finite {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return degenerate(f.field, f.v, "must be finite")
		}
	}

	if p.BaseFeerate < 0 {
		return precondition("Fe", p.BaseFeerate, "must be >= 0")
	}
	if p.FeerateExponent <= 0 {
		return degenerate("Ex", p.FeerateExponent, "must be > 0")
	}
	if p.OnchainProbability < 0 || p.OnchainProbability > 1 {
		return precondition("Pr", p.OnchainProbability, "must be in [0, 1]")
	}
	if p.LeafCount < 0 {
		return precondition("Le", float64(p.LeafCount), "must be >= 0")
	}
	if p.LeafCount == 0 {
		return degenerate("Le", 0, "must be non-zero")
	}
	if p.TotalValue < 0 {
		return precondition("Va", p.TotalValue, "must be >= 0")
	}
	if p.TotalValue == 0 {
		return degenerate("Va", 0, "must be non-zero")
	}
	if p.CapitalCostRate < 0 || p.CapitalCostRate > 1 {
		return precondition("Co", p.CapitalCostRate, "must be in [0, 1]")
	}
	return nil
}
